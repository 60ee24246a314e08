// README: Redis client initialization for the vehicle cache and GEO index.
package infra

import "github.com/redis/go-redis/v9"

// NewRedis returns nil for an empty address; callers treat that as "no cache".
func NewRedis(addr string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr})
}
