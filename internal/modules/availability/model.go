// README: Reservation ranges and alternative-date suggestions for a vehicle.
package availability

import (
	"time"

	"rental/internal/types"
)

// Range is the reserved span [Start, End) of one booking on one vehicle.
type Range struct {
	BookingID types.ID  `json:"bookingId,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Cancelled bool      `json:"-"`
}

type Suggestion struct {
	AvailableFrom time.Time `json:"availableFrom"`
	DaysAvailable int       `json:"daysAvailable"`
}

type SuggestOptions struct {
	Max     int
	Horizon time.Duration
}

const (
	defaultMaxSuggestions = 3
	defaultHorizon        = 90 * types.Day
)
