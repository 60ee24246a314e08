// README: Vehicle catalog entries consumed by availability search and booking.
package vehicle

import (
	"errors"
	"strings"

	"rental/internal/modules/pricing"
	"rental/internal/types"
)

var ErrNotFound = errors.New("vehicle not found")

type Vehicle struct {
	ID       types.ID    `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	Capacity int         `json:"capacity" yaml:"capacity"`
	Location string      `json:"location" yaml:"location"`
	Position types.Point `json:"position" yaml:"position"`
}

// Entry is a catalog record: the vehicle plus its pricing plan.
type Entry struct {
	Vehicle `yaml:",inline"`
	Plan    pricing.Plan `yaml:"plan"`
}

// Query filters a catalog search. Location matches case-insensitively; Near
// with a positive RadiusKm restricts to a radius around a point.
type Query struct {
	Location string
	Near     *types.Point
	RadiusKm float64
}

func (q Query) matchesLocation(v Vehicle) bool {
	return q.Location == "" || strings.EqualFold(strings.TrimSpace(q.Location), v.Location)
}
