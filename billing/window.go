/*
window.go - Per-pass coverage window computation

PURPOSE:
  For a student's passes in one group, computes the date interval each
  pass can cover. Both engines consume this map; it is re-derived on
  every call and never persisted.

WINDOW RULES:
  Consecutive pass:
    [purchaseDate, expiryDate] or open-ended when no expiry is set.
    Never truncated by later purchases.

  Non-consecutive pass:
    start = purchaseDate
    end   = the NEXT non-consecutive pass's purchase date for the same
            student+group (exclusive), else this pass's own expiry date
            (inclusive), else unbounded.

REPRESENTATION:
  Windows are half-open [Start, End). An inclusive expiry day becomes
  End = expiry + 1 day; "unbounded" is End = 9999-12-31.

SEE ALSO:
  - audit.go, revenue.go: the two consumers
*/
package billing

// Window is the half-open date interval [Start, End) within which a
// pass may absorb a lesson.
type Window struct {
	Start Day
	End   Day
}

// Covers reports whether a day falls inside the window.
func (w Window) Covers(d Day) bool {
	return d.AfterOrEqual(w.Start) && d.Before(w.End)
}

// CoverageWindows computes the window for every pass in the slice.
// The input is re-sorted by purchase date; the result maps pass ID to
// its window. Passes for mixed students/groups are the caller's
// problem - this function just applies the date rules.
func CoverageWindows(passes []Pass) map[PassID]Window {
	ordered := make([]Pass, len(passes))
	copy(ordered, passes)
	sortPassesByPurchase(ordered)

	windows := make(map[PassID]Window, len(ordered))
	for i, p := range ordered {
		if p.Consecutive {
			windows[p.ID] = Window{Start: p.PurchaseDate, End: expiryEnd(p)}
			continue
		}

		// Next non-consecutive purchase truncates this window.
		end := Day{}
		for _, later := range ordered[i+1:] {
			if !later.Consecutive {
				end = later.PurchaseDate
				break
			}
		}
		if end.IsZero() {
			end = expiryEnd(p)
		}
		windows[p.ID] = Window{Start: p.PurchaseDate, End: end}
	}
	return windows
}

// expiryEnd converts an inclusive expiry day into the exclusive End of
// a window, or the unbounded sentinel when no expiry is set.
func expiryEnd(p Pass) Day {
	if p.ExpiryDate.IsZero() {
		return EndOfTime()
	}
	return p.ExpiryDate.AddDays(1)
}
