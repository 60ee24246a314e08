// README: Vehicle store backed by PostgreSQL, with a Redis read cache and GEO index.
package vehicle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"rental/internal/types"
)

const (
	vehicleGeoKey    = "vehicles:geo"
	vehicleKeyPrefix = "vehicle:%s"
	// Catalog rows change rarely; the cache is refreshed on Save.
	cacheTTL = 10 * time.Minute
)

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

// NewStore returns a store. redis may be nil, in which case every read goes to Postgres.
func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

func (s *Store) Get(ctx context.Context, id types.ID) (Vehicle, error) {
	if v, ok := s.cached(ctx, id); ok {
		return v, nil
	}
	row := s.db.QueryRow(ctx, `
		SELECT id, name, capacity, location, lat, lng
		FROM vehicles
		WHERE id = $1`, string(id),
	)
	v, err := scanVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vehicle{}, ErrNotFound
	}
	if err != nil {
		return Vehicle{}, err
	}
	s.cache(ctx, v)
	return v, nil
}

func (s *Store) List(ctx context.Context, q Query) ([]Vehicle, error) {
	if q.Near != nil && q.RadiusKm > 0 && s.redis != nil {
		return s.nearby(ctx, q)
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, name, capacity, location, lat, lng
		FROM vehicles
		WHERE $1 = '' OR lower(location) = lower($1)
		ORDER BY id`, q.Location,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if q.Near != nil && q.RadiusKm > 0 {
		return withinRadius(out, *q.Near, q.RadiusKm), nil
	}
	return out, nil
}

// nearby resolves ids through the GEO index, closest first, then loads each vehicle.
func (s *Store) nearby(ctx context.Context, q Query) ([]Vehicle, error) {
	names, err := s.redis.GeoSearch(ctx, vehicleGeoKey, &redis.GeoSearchQuery{
		Longitude:  q.Near.Lng,
		Latitude:   q.Near.Lat,
		Radius:     q.RadiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo search: %w", err)
	}
	out := make([]Vehicle, 0, len(names))
	for _, name := range names {
		v, err := s.Get(ctx, types.ID(name))
		if errors.Is(err, ErrNotFound) {
			// stale GEO member
			s.redis.ZRem(ctx, vehicleGeoKey, name)
			continue
		}
		if err != nil {
			return nil, err
		}
		if q.matchesLocation(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Save upserts a vehicle row and refreshes its cache and GEO entries.
func (s *Store) Save(ctx context.Context, v Vehicle) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO vehicles (id, name, capacity, location, lat, lng)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			capacity = EXCLUDED.capacity,
			location = EXCLUDED.location,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng`,
		string(v.ID), v.Name, v.Capacity, v.Location, v.Position.Lat, v.Position.Lng,
	)
	if err != nil {
		return err
	}
	if s.redis == nil {
		return nil
	}
	pipe := s.redis.Pipeline()
	pipe.GeoAdd(ctx, vehicleGeoKey, &redis.GeoLocation{
		Name:      string(v.ID),
		Longitude: v.Position.Lng,
		Latitude:  v.Position.Lat,
	})
	if data, err := json.Marshal(v); err == nil {
		pipe.Set(ctx, vehicleKey(v.ID), data, cacheTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) cached(ctx context.Context, id types.ID) (Vehicle, bool) {
	if s.redis == nil {
		return Vehicle{}, false
	}
	data, err := s.redis.Get(ctx, vehicleKey(id)).Bytes()
	if err == redis.Nil {
		return Vehicle{}, false
	}
	if err != nil {
		log.Printf("vehicle cache get %s: %v", id, err)
		return Vehicle{}, false
	}
	var v Vehicle
	if err := json.Unmarshal(data, &v); err != nil {
		return Vehicle{}, false
	}
	return v, true
}

func (s *Store) cache(ctx context.Context, v Vehicle) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, vehicleKey(v.ID), data, cacheTTL).Err(); err != nil {
		log.Printf("vehicle cache set %s: %v", v.ID, err)
	}
}

func vehicleKey(id types.ID) string {
	return fmt.Sprintf(vehicleKeyPrefix, string(id))
}

func scanVehicle(row pgx.Row) (Vehicle, error) {
	var v Vehicle
	var id string
	err := row.Scan(&id, &v.Name, &v.Capacity, &v.Location, &v.Position.Lat, &v.Position.Lng)
	v.ID = types.ID(id)
	return v, err
}
