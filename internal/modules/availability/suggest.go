// README: Best-effort search for open windows near a rejected request.
package availability

import (
	"sort"
	"time"

	"rental/internal/types"
)

// SuggestAlternatives proposes start dates at which a rental of the same
// length as [start, end) would fit. It scans forward from the end of every
// conflicting booking and reports the free run found there.
func SuggestAlternatives(existing []Range, start, end time.Time, opts SuggestOptions) []Suggestion {
	if opts.Max <= 0 {
		opts.Max = defaultMaxSuggestions
	}
	if opts.Horizon <= 0 {
		opts.Horizon = defaultHorizon
	}
	days := types.DaysCeil(start, end)
	if days <= 0 {
		return nil
	}
	length := time.Duration(days) * types.Day
	limit := start.Add(opts.Horizon)

	active := make([]Range, 0, len(existing))
	for _, r := range existing {
		if !r.Cancelled {
			active = append(active, r)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Start.Before(active[j].Start) })

	conflicts := Conflicts(active, start, end)
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].End.Before(conflicts[j].End) })

	seen := make(map[time.Time]bool)
	var out []Suggestion
	for _, c := range conflicts {
		if len(out) >= opts.Max {
			break
		}
		from, ok := nextFit(active, c.End, length, limit)
		if !ok || seen[from] {
			continue
		}
		seen[from] = true
		out = append(out, Suggestion{
			AvailableFrom: from,
			DaysAvailable: freeDays(active, from, limit),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AvailableFrom.Before(out[j].AvailableFrom) })
	return out
}

// nextFit walks forward from candidate until a window of the given length is
// conflict free or the horizon is passed.
func nextFit(active []Range, candidate time.Time, length time.Duration, limit time.Time) (time.Time, bool) {
	for !candidate.After(limit) {
		blocking := Conflicts(active, candidate, candidate.Add(length))
		if len(blocking) == 0 {
			return candidate, true
		}
		latest := blocking[0].End
		for _, b := range blocking[1:] {
			if b.End.After(latest) {
				latest = b.End
			}
		}
		candidate = latest
	}
	return time.Time{}, false
}

// freeDays counts the days from 'from' to the next reservation, bounded by the horizon.
func freeDays(active []Range, from, limit time.Time) int {
	next := limit
	for _, r := range active {
		if !r.Start.Before(from) && r.Start.Before(next) {
			next = r.Start
		}
	}
	return types.DaysCeil(from, next)
}
