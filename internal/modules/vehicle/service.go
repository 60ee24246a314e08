// README: Vehicle service fronts the catalog repository (memory or Postgres).
package vehicle

import (
	"context"
	"strings"

	"rental/internal/types"
)

type Repository interface {
	Get(ctx context.Context, id types.ID) (Vehicle, error)
	List(ctx context.Context, q Query) ([]Vehicle, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id types.ID) (Vehicle, error) {
	if strings.TrimSpace(string(id)) == "" {
		return Vehicle{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Search lists catalog vehicles matching q. It does not look at bookings.
func (s *Service) Search(ctx context.Context, q Query) ([]Vehicle, error) {
	q.Location = strings.TrimSpace(q.Location)
	return s.repo.List(ctx, q)
}
