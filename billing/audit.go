/*
audit.go - Balance Audit Engine

PURPOSE:
  Walks one student's lesson history in one group and explains every
  lesson's accounting disposition: counted or not, against which pass,
  and why. The output is the signed balance the studio shows next to a
  student's name, plus the itemized trail that justifies it.

THE TRAVERSAL:
  Lessons are visited in (date, time) order. For each lesson:
    1. A lesson with no attendance mark is auto-consumed only when it
       is strictly in the past and some consecutive pass's window
       covers it (a consecutive pass is assumed used even without a
       mark). Otherwise an unmarked lesson never affects balance.
    2. Cancelled lessons and valid skips never count and never burn
       capacity.
    3. A spending lesson (present, invalid skip, or auto-consumed)
       searches passes in purchase-date order for the first covering
       window with capacity left. First match wins. Auto-consumed and
       invalid-skip lessons may only burn consecutive-pass credits.
    4. A spending lesson no pass absorbs becomes visible debt when it
       was an explicit present, or when a window covered it but was
       depleted. An invalid skip with no consecutive coverage is
       recorded but does not affect balance.

BALANCE:
  balance = total capacity - all counted lessons. Capacity sums
  LessonsTotal over passes that are still active or have recorded
  usage; an archived, never-used pass contributes nothing. Covered
  lessons consume capacity silently; only uncovered ones produce
  visible debt beyond it.

TOTALITY:
  Audit never fails. Records that reference the wrong group or a
  nonexistent lesson are filtered out; an empty scope produces an
  empty result.

SEE ALSO:
  - window.go:  coverage window rules
  - revenue.go: the sibling engine that prices lessons instead of
    counting them
*/
package billing

// =============================================================================
// RESULT TYPES
// =============================================================================

type AuditEntryStatus string

const (
	EntryCounted    AuditEntryStatus = "counted"
	EntryNotCounted AuditEntryStatus = "not_counted"
)

// AuditReason explains one lesson's disposition.
type AuditReason string

const (
	ReasonCountedPresent         AuditReason = "counted_present"
	ReasonCountedAbsenceInvalid  AuditReason = "counted_absence_invalid"
	ReasonCountedAutoConsecutive AuditReason = "counted_no_attendance_consecutive"
	ReasonUncoveredDepleted      AuditReason = "uncovered_pass_depleted"
	ReasonUncoveredNoPass        AuditReason = "uncovered_no_matching_pass"
	ReasonNotCountedCancelled    AuditReason = "not_counted_cancelled"
	ReasonNotCountedValidSkip    AuditReason = "not_counted_valid_skip"
	ReasonNotCountedNoAttendance AuditReason = "not_counted_no_attendance"
)

// AuditEntry is one lesson's accounting disposition.
type AuditEntry struct {
	LessonID         LessonID
	LessonDate       Day
	LessonTime       string
	AttendanceStatus AttendanceStatus // empty when no record exists
	Status           AuditEntryStatus
	Reason           AuditReason
	CoveredByPassID  PassID // set only when a pass absorbed the lesson
}

// PassUsage is the consumption ledger for one pass, reported for every
// pass in scope including archived and fully depleted ones.
type PassUsage struct {
	PassID       PassID
	LessonsUsed  int
	LessonsTotal int
	PurchaseDate Day
	ExpiryDate   Day
}

// UncoveredLesson identifies a debt lesson for quick display.
type UncoveredLesson struct {
	LessonID LessonID
	Date     Day
	GroupID  GroupID
}

// AuditResult is the full answer for one (student, group) scope.
// Balance is signed: positive means remaining prepaid credit, negative
// means lessons taken without a covering pass.
type AuditResult struct {
	Balance          int
	LessonsOwed      int
	LessonsCovered   int
	UncoveredLessons []UncoveredLesson
	Entries          []AuditEntry
	PassUsage        []PassUsage
}

// AuditInput is an immutable snapshot of everything the engine needs.
// Attendance may include provisional, uncommitted records; the engine
// treats them exactly as if they were persisted.
type AuditInput struct {
	StudentID  StudentID
	GroupID    GroupID
	Passes     []Pass
	Lessons    []Lesson
	Attendance []Attendance
	AsOf       Day // the injected "today"
}

// =============================================================================
// ENGINE
// =============================================================================

// Audit computes the balance audit for one student in one group.
// Deterministic and idempotent for fixed inputs; never fails.
func Audit(in AuditInput) AuditResult {
	scope := filterScope(in)

	if len(scope.passes) == 0 {
		return auditWithoutPasses(scope)
	}
	return auditWithPasses(scope, in.AsOf)
}

// scopedInput holds the filtered, sorted view of one student+group.
type scopedInput struct {
	groupID GroupID
	passes  []Pass // purchase-date ascending
	lessons []Lesson
	marks   map[LessonID]Attendance
}

func filterScope(in AuditInput) scopedInput {
	s := scopedInput{groupID: in.GroupID, marks: make(map[LessonID]Attendance)}

	for _, p := range in.Passes {
		if p.StudentID == in.StudentID && p.GroupID == in.GroupID {
			s.passes = append(s.passes, p)
		}
	}
	sortPassesByPurchase(s.passes)

	for _, l := range in.Lessons {
		if l.GroupID == in.GroupID {
			s.lessons = append(s.lessons, l)
		}
	}
	sortLessons(s.lessons)

	inGroup := make(map[LessonID]bool, len(s.lessons))
	for _, l := range s.lessons {
		inGroup[l.ID] = true
	}
	// Orphaned marks (wrong student, unknown lesson) are dropped here.
	for _, a := range in.Attendance {
		if a.StudentID == in.StudentID && inGroup[a.LessonID] {
			s.marks[a.LessonID] = a
		}
	}
	return s
}

// auditWithoutPasses handles the zero-pass scope: every explicitly
// marked present lesson is uncovered debt, nothing else moves balance.
func auditWithoutPasses(s scopedInput) AuditResult {
	res := AuditResult{}
	for _, l := range s.lessons {
		mark, marked := s.marks[l.ID]
		if !marked {
			continue
		}
		entry := AuditEntry{
			LessonID:         l.ID,
			LessonDate:       l.Date,
			LessonTime:       l.Time,
			AttendanceStatus: mark.Status,
		}
		switch {
		case l.Status == LessonCancelled:
			entry.Status = EntryNotCounted
			entry.Reason = ReasonNotCountedCancelled
		case mark.Status == AttendanceAbsenceValid:
			entry.Status = EntryNotCounted
			entry.Reason = ReasonNotCountedValidSkip
		case mark.Status == AttendanceAbsenceInvalid:
			entry.Status = EntryNotCounted
			entry.Reason = ReasonNotCountedNoAttendance
		default: // present
			entry.Status = EntryCounted
			entry.Reason = ReasonUncoveredNoPass
			res.LessonsOwed++
			res.UncoveredLessons = append(res.UncoveredLessons, UncoveredLesson{
				LessonID: l.ID, Date: l.Date, GroupID: s.groupID,
			})
		}
		res.Entries = append(res.Entries, entry)
	}
	res.Balance = -res.LessonsOwed
	return res
}

func auditWithPasses(s scopedInput, asOf Day) AuditResult {
	windows := CoverageWindows(s.passes)
	remaining := make(map[PassID]int, len(s.passes))
	used := make(map[PassID]int, len(s.passes))
	for _, p := range s.passes {
		remaining[p.ID] = p.Capacity()
	}

	res := AuditResult{}

	for _, l := range s.lessons {
		mark, marked := s.marks[l.ID]

		auto := !marked && l.Date.Before(asOf) && coveredByConsecutive(s.passes, windows, l.Date)
		if !marked && !auto {
			// Unmarked and not auto-consumed: the lesson never affects
			// balance and produces no entry.
			continue
		}

		entry := AuditEntry{
			LessonID:         l.ID,
			LessonDate:       l.Date,
			LessonTime:       l.Time,
			AttendanceStatus: mark.Status,
		}

		switch {
		case l.Status == LessonCancelled:
			entry.Status = EntryNotCounted
			entry.Reason = ReasonNotCountedCancelled

		case marked && mark.Status == AttendanceAbsenceValid:
			entry.Status = EntryNotCounted
			entry.Reason = ReasonNotCountedValidSkip

		default:
			entry = spendLesson(s, windows, remaining, used, l, mark, marked, auto, asOf)
			if entry.Status == EntryCounted {
				if entry.CoveredByPassID != "" {
					res.LessonsCovered++
				} else {
					res.LessonsOwed++
					res.UncoveredLessons = append(res.UncoveredLessons, UncoveredLesson{
						LessonID: l.ID, Date: l.Date, GroupID: s.groupID,
					})
				}
			}
		}
		res.Entries = append(res.Entries, entry)
	}

	// Capacity pools: active passes always contribute; archived passes
	// only if something was actually booked against them.
	totalCapacity := 0
	for _, p := range s.passes {
		if p.Status != PassArchived || used[p.ID] > 0 {
			totalCapacity += p.Capacity()
		}
	}
	res.Balance = totalCapacity - (res.LessonsCovered + res.LessonsOwed)

	for _, p := range s.passes {
		res.PassUsage = append(res.PassUsage, PassUsage{
			PassID:       p.ID,
			LessonsUsed:  used[p.ID],
			LessonsTotal: p.Capacity(),
			PurchaseDate: p.PurchaseDate,
			ExpiryDate:   p.ExpiryDate,
		})
	}
	return res
}

// spendLesson accounts one spending lesson (present, invalid skip, or
// auto-consumed) against the pass pool. First covering pass with
// capacity wins; the search order is purchase date ascending.
func spendLesson(
	s scopedInput,
	windows map[PassID]Window,
	remaining, used map[PassID]int,
	l Lesson,
	mark Attendance,
	marked, auto bool,
	asOf Day,
) AuditEntry {
	entry := AuditEntry{
		LessonID:         l.ID,
		LessonDate:       l.Date,
		LessonTime:       l.Time,
		AttendanceStatus: mark.Status,
	}
	invalidSkip := marked && mark.Status == AttendanceAbsenceInvalid

	windowMatched := false
	consecutiveMatched := false

	for _, p := range s.passes {
		// Auto-consumed lessons and invalid skips only burn
		// consecutive-pass credits.
		if (auto || invalidSkip) && !p.Consecutive {
			continue
		}
		if !windows[p.ID].Covers(l.Date) {
			continue
		}
		// An expired pass cannot cover lessons dated on/after the
		// reference day; retroactive coverage of past dates stands.
		if p.ExpiredAsOf(asOf) && l.Date.AfterOrEqual(asOf) {
			continue
		}
		windowMatched = true
		if p.Consecutive {
			consecutiveMatched = true
		}
		if remaining[p.ID] <= 0 {
			continue
		}

		remaining[p.ID]--
		used[p.ID]++
		entry.Status = EntryCounted
		entry.CoveredByPassID = p.ID
		switch {
		case auto:
			entry.Reason = ReasonCountedAutoConsecutive
		case invalidSkip:
			entry.Reason = ReasonCountedAbsenceInvalid
		default:
			entry.Reason = ReasonCountedPresent
		}
		return entry
	}

	// No pass had capacity. Explicit presents are always debt, as is
	// anything a consecutive window reached but could not absorb.
	present := auto || (marked && mark.Status == AttendancePresent)
	if present || consecutiveMatched {
		entry.Status = EntryCounted
		if windowMatched {
			entry.Reason = ReasonUncoveredDepleted
		} else {
			entry.Reason = ReasonUncoveredNoPass
		}
		return entry
	}

	// A non-consecutive-only, unmatched invalid skip: recorded, but it
	// does not affect balance.
	entry.Status = EntryNotCounted
	entry.Reason = ReasonNotCountedNoAttendance
	return entry
}

func coveredByConsecutive(passes []Pass, windows map[PassID]Window, d Day) bool {
	for _, p := range passes {
		if p.Consecutive && windows[p.ID].Covers(d) {
			return true
		}
	}
	return false
}
