// README: Tiered cancellation fee evaluation.
package policy

import (
	"math"
	"sort"

	"rental/internal/types"
)

// Tier charges FeePercentage when the booking is cancelled DaysBeforePickup
// days or fewer before pickup.
type Tier struct {
	DaysBeforePickup int     `json:"daysBeforePickup" yaml:"days_before_pickup"`
	FeePercentage    float64 `json:"feePercentage" yaml:"fee_percentage"`
}

// Sorted returns a copy of tiers ordered ascending by DaysBeforePickup.
func Sorted(tiers []Tier) []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysBeforePickup < out[j].DaysBeforePickup })
	return out
}

// Evaluate returns the fee percentage of the first tier whose threshold is
// not below daysUntilPickup. tiers must already be sorted ascending; no
// matching tier means free cancellation.
func Evaluate(tiers []Tier, daysUntilPickup int) float64 {
	for _, t := range tiers {
		if daysUntilPickup <= t.DaysBeforePickup {
			return t.FeePercentage
		}
	}
	return 0
}

// Split divides total into the cancellation fee and the refund. The two
// always add up to total.
func Split(total types.Cents, feePercentage float64) (fee, refund types.Cents) {
	fee = types.Cents(math.Round(float64(total) * feePercentage / 100))
	if fee > total {
		fee = total
	}
	if fee < 0 {
		fee = 0
	}
	return fee, total - fee
}
