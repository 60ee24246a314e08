// README: Conflict detection for vehicle reservations and a sorted per-vehicle range index.
package availability

import (
	"sort"
	"time"

	"rental/internal/types"
)

// Overlaps reports whether the requested [start, end) conflicts with b.
// The three clauses are kept as written; do not collapse them into a
// half-open interval test.
func Overlaps(start, end time.Time, b Range) bool {
	// 1. start in [bStart, bEnd)
	if !start.Before(b.Start) && start.Before(b.End) {
		return true
	}
	// 2. end in (bStart, bEnd]
	if end.After(b.Start) && !end.After(b.End) {
		return true
	}
	// 3. [start, end) contains [bStart, bEnd]
	return !start.After(b.Start) && !end.Before(b.End)
}

// Conflicts returns the non-cancelled ranges in existing that conflict with [start, end).
func Conflicts(existing []Range, start, end time.Time) []Range {
	var out []Range
	for _, r := range existing {
		if r.Cancelled {
			continue
		}
		if Overlaps(start, end, r) {
			out = append(out, r)
		}
	}
	return out
}

func Available(existing []Range, start, end time.Time) bool {
	return len(Conflicts(existing, start, end)) == 0
}

// Index holds the active reservations of a single vehicle ordered by start.
// Only ranges that passed a conflict check are inserted, so entries are
// pairwise disjoint and their ends are ordered as well. Index is not safe for
// concurrent use; callers hold the vehicle's lock.
type Index struct {
	ranges []Range
}

func NewIndex(rs ...Range) *Index {
	idx := &Index{}
	for _, r := range rs {
		if !r.Cancelled {
			idx.Insert(r)
		}
	}
	return idx
}

func (x *Index) Len() int { return len(x.ranges) }

// Ranges returns a copy of the active ranges, ordered by start.
func (x *Index) Ranges() []Range {
	out := make([]Range, len(x.ranges))
	copy(out, x.ranges)
	return out
}

func (x *Index) Insert(r Range) {
	i := sort.Search(len(x.ranges), func(i int) bool { return x.ranges[i].Start.After(r.Start) })
	x.ranges = append(x.ranges, Range{})
	copy(x.ranges[i+1:], x.ranges[i:])
	x.ranges[i] = r
}

func (x *Index) Remove(bookingID types.ID) bool {
	for i, r := range x.ranges {
		if r.BookingID == bookingID {
			x.ranges = append(x.ranges[:i], x.ranges[i+1:]...)
			return true
		}
	}
	return false
}

// Conflicts answers the same question as the package-level Conflicts in
// O(log n + k): every conflicting range starts before end, and the scan
// stops at the first range that ends at or before start.
func (x *Index) Conflicts(start, end time.Time) []Range {
	hi := sort.Search(len(x.ranges), func(i int) bool { return !x.ranges[i].Start.Before(end) })
	var out []Range
	for i := hi - 1; i >= 0; i-- {
		r := x.ranges[i]
		if !r.End.After(start) {
			break
		}
		if Overlaps(start, end, r) {
			out = append(out, r)
		}
	}
	// restore ascending order
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

func (x *Index) Available(start, end time.Time) bool {
	return len(x.Conflicts(start, end)) == 0
}
