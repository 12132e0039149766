/*
revenue.go - Revenue Allocation Engine

PURPOSE:
  Assigns a monetary value to each lesson by distributing every pass's
  price across the lessons it plausibly covers. Where the audit engine
  counts, this engine prices: the two share inputs and window rules but
  evolve independently. Output is advisory (reporting and analytics);
  it never blocks attendance marking.

PRICING RULES:
  Consecutive pass:     every covered lesson costs price/lessonsTotal.
  Non-consecutive pass: attended lessons cost the flat rate; the
    remainder of the pass value is split evenly across its unattended
    lessons (invalid skips and unmarked alike). Valid skips cost 0 and
    are excluded from the math entirely.

TWO TRAVERSALS:
  1. Stats pass: per non-consecutive pass, count attended vs unattended
     lessons inside the window while tracking capacity. Valid skips are
     invisible to stats.
  2. Allocation pass: capacity reset, then each lesson resolves its
     covering pass (non-consecutive windows first, then consecutive)
     and receives a cost plus a display equation. Every non-valid-skip
     allocation burns one unit of capacity.

  Each lesson beyond the reference day is flagged Estimated: a
  projected cost, not a realized one.

SEE ALSO:
  - audit.go: the counting sibling; keep the window and capacity
    semantics of the two aligned when touching either
*/
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RevenueItem is the priced disposition of one lesson.
type RevenueItem struct {
	Cost       decimal.Decimal
	Equation   string
	UsedPassID PassID
	Estimated  bool
}

// RevenueResult maps each covered lesson to its allocation. Lessons no
// pass covers have no entry.
type RevenueResult map[LessonID]RevenueItem

// passStats accumulates the attended/unattended split for one
// non-consecutive pass during the stats traversal.
type passStats struct {
	attended   int
	unattended int
}

// AllocateRevenue prices every lesson in the student+group scope.
// Same input contract as Audit: pure, deterministic, never fails.
func AllocateRevenue(in AuditInput) RevenueResult {
	s := filterScope(in)
	res := make(RevenueResult)
	if len(s.passes) == 0 || len(s.lessons) == 0 {
		return res
	}

	windows := CoverageWindows(s.passes)
	byID := make(map[PassID]Pass, len(s.passes))
	for _, p := range s.passes {
		byID[p.ID] = p
	}

	stats := statsPass(s, windows, in.AsOf)

	// Allocation pass runs on fresh capacity.
	remaining := make(map[PassID]int, len(s.passes))
	for _, p := range s.passes {
		remaining[p.ID] = p.Capacity()
	}

	for _, l := range s.lessons {
		if l.Status == LessonCancelled {
			continue
		}
		covering := resolveCoveringPass(s.passes, windows, remaining, l.Date, in.AsOf)
		if covering == "" {
			continue
		}
		p := byID[covering]
		mark, marked := s.marks[l.ID]
		validSkip := marked && mark.Status == AttendanceAbsenceValid

		item := RevenueItem{
			UsedPassID: covering,
			Estimated:  l.Date.After(in.AsOf),
		}

		switch {
		case !p.Consecutive && validSkip:
			item.Cost = decimal.Zero
			item.Equation = "0 (Valid Skip)"

		case !p.Consecutive && marked && mark.Status == AttendancePresent:
			item.Cost = p.PerLessonRate()
			item.Equation = flatEquation(p)

		case !p.Consecutive:
			// Invalid skip or unmarked: split the remainder of the pass
			// value across all non-attended lessons in its window.
			item.Cost, item.Equation = remainderSplit(p, stats[covering])

		default:
			item.Cost = p.PerLessonRate()
			item.Equation = flatEquation(p)
		}

		if !validSkip {
			remaining[covering]--
		}
		res[l.ID] = item
	}
	return res
}

// statsPass counts attended/unattended lessons per non-consecutive
// pass, first matching window wins, capacity tracked in parallel.
func statsPass(s scopedInput, windows map[PassID]Window, asOf Day) map[PassID]passStats {
	capacity := make(map[PassID]int, len(s.passes))
	for _, p := range s.passes {
		capacity[p.ID] = p.Capacity()
	}
	stats := make(map[PassID]passStats, len(s.passes))

	for _, l := range s.lessons {
		if l.Status == LessonCancelled {
			continue
		}
		mark, marked := s.marks[l.ID]
		if marked && mark.Status == AttendanceAbsenceValid {
			continue
		}
		for _, p := range s.passes {
			if p.Consecutive {
				continue
			}
			if !windows[p.ID].Covers(l.Date) {
				continue
			}
			if p.ExpiredAsOf(asOf) && l.Date.AfterOrEqual(asOf) {
				continue
			}
			if capacity[p.ID] <= 0 {
				continue
			}
			st := stats[p.ID]
			if marked && mark.Status == AttendancePresent {
				st.attended++
			} else {
				st.unattended++
			}
			stats[p.ID] = st
			capacity[p.ID]--
			break
		}
	}
	return stats
}

// resolveCoveringPass picks the pass that absorbs a lesson: first
// non-consecutive window with capacity, else first consecutive one.
func resolveCoveringPass(passes []Pass, windows map[PassID]Window, remaining map[PassID]int, d Day, asOf Day) PassID {
	for _, consecutive := range []bool{false, true} {
		for _, p := range passes {
			if p.Consecutive != consecutive {
				continue
			}
			if !windows[p.ID].Covers(d) {
				continue
			}
			if p.ExpiredAsOf(asOf) && d.AfterOrEqual(asOf) {
				continue
			}
			if remaining[p.ID] <= 0 {
				continue
			}
			return p.ID
		}
	}
	return ""
}

func flatEquation(p Pass) string {
	divisor := p.Capacity()
	if divisor == 0 {
		divisor = 1
	}
	return fmt.Sprintf("%s / %d", p.Price.String(), divisor)
}

// remainderSplit prices an unattended lesson of a non-consecutive pass:
// whatever the attended lessons did not use, split evenly across the
// unattended ones. Never negative.
func remainderSplit(p Pass, st passStats) (decimal.Decimal, string) {
	used := p.PerLessonRate().Mul(decimal.NewFromInt(int64(st.attended)))
	rest := p.Price.Sub(used)
	if rest.IsNegative() {
		rest = decimal.Zero
	}
	count := st.unattended
	if count == 0 {
		count = 1
	}
	cost := rest.Div(decimal.NewFromInt(int64(count)))
	equation := fmt.Sprintf("(%s - %d) / %d", p.Price.String(), used.Round(0).IntPart(), count)
	return cost, equation
}
