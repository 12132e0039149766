/*
audit_test.go - Specification tests for the Balance Audit Engine

ORGANIZATION:
  1. Acceptance scenarios - end-to-end numbers a studio owner can check
  2. Disposition rules - one behavior per test, reason codes asserted
  3. Invariants - determinism, capacity bounds, allocation order

Each test states its scenario with GIVEN/WHEN/THEN comments.
*/
package billing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier/studio-engine/billing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	studentA = billing.StudentID("student-a")
	groupG   = billing.GroupID("group-g")
)

func day(y int, m time.Month, d int) billing.Day {
	return billing.NewDay(y, m, d)
}

// jan(n) is the nth of January 2025, the month most tests live in.
func jan(n int) billing.Day { return day(2025, time.January, n) }
func feb(n int) billing.Day { return day(2025, time.February, n) }

func lesson(id string, d billing.Day) billing.Lesson {
	return billing.Lesson{
		ID:              billing.LessonID(id),
		GroupID:         groupG,
		Date:            d,
		Time:            "17:00",
		DurationMinutes: 60,
		Status:          billing.LessonCompleted,
	}
}

func lessonsOn(days ...billing.Day) []billing.Lesson {
	out := make([]billing.Lesson, len(days))
	for i, d := range days {
		out[i] = lesson(lessonID(i), d)
	}
	return out
}

func lessonID(i int) string {
	return "lesson-" + string(rune('a'+i))
}

func consecutivePass(id string, purchase billing.Day, total int, price int64) billing.Pass {
	return billing.Pass{
		ID:           billing.PassID(id),
		StudentID:    studentA,
		GroupID:      groupG,
		PurchaseDate: purchase,
		LessonsTotal: total,
		Price:        decimal.NewFromInt(price),
		Consecutive:  true,
		Status:       billing.PassActive,
	}
}

func nonConsecutivePass(id string, purchase, expiry billing.Day, total int, price int64) billing.Pass {
	return billing.Pass{
		ID:           billing.PassID(id),
		StudentID:    studentA,
		GroupID:      groupG,
		PurchaseDate: purchase,
		ExpiryDate:   expiry,
		LessonsTotal: total,
		Price:        decimal.NewFromInt(price),
		Consecutive:  false,
		Status:       billing.PassActive,
	}
}

func marked(lessonID string, status billing.AttendanceStatus) billing.Attendance {
	return billing.Attendance{
		LessonID:  billing.LessonID(lessonID),
		StudentID: studentA,
		Status:    status,
	}
}

func allPresent(lessons []billing.Lesson) []billing.Attendance {
	out := make([]billing.Attendance, len(lessons))
	for i, l := range lessons {
		out[i] = marked(string(l.ID), billing.AttendancePresent)
	}
	return out
}

func entryFor(t *testing.T, res billing.AuditResult, id string) billing.AuditEntry {
	t.Helper()
	for _, e := range res.Entries {
		if e.LessonID == billing.LessonID(id) {
			return e
		}
	}
	t.Fatalf("no audit entry for lesson %s", id)
	return billing.AuditEntry{}
}

func usageFor(t *testing.T, res billing.AuditResult, id string) billing.PassUsage {
	t.Helper()
	for _, u := range res.PassUsage {
		if u.PassID == billing.PassID(id) {
			return u
		}
	}
	t.Fatalf("no pass usage for pass %s", id)
	return billing.PassUsage{}
}

// =============================================================================
// ACCEPTANCE SCENARIOS
// =============================================================================

func TestAudit_ConsecutivePass_FullyAttended_BalanceZero(t *testing.T) {
	// GIVEN: A consecutive 8-lesson pass and 8 lessons all marked present
	// WHEN: Auditing the student
	// THEN: Every lesson is covered and the balance lands exactly at 0

	lessons := lessonsOn(jan(2), jan(4), jan(7), jan(9), jan(11), jan(14), jan(16), jan(18))
	pass := consecutivePass("pass-1", jan(1), 8, 280)

	res := billing.Audit(billing.AuditInput{
		StudentID:  studentA,
		GroupID:    groupG,
		Passes:     []billing.Pass{pass},
		Lessons:    lessons,
		Attendance: allPresent(lessons),
		AsOf:       feb(1),
	})

	assert.Equal(t, 0, res.Balance)
	assert.Equal(t, 8, res.LessonsCovered)
	assert.Equal(t, 0, res.LessonsOwed)
	require.Len(t, res.Entries, 8)
	for _, e := range res.Entries {
		assert.Equal(t, billing.EntryCounted, e.Status)
		assert.Equal(t, billing.ReasonCountedPresent, e.Reason)
		assert.Equal(t, billing.PassID("pass-1"), e.CoveredByPassID)
	}
	assert.Equal(t, 8, usageFor(t, res, "pass-1").LessonsUsed)
}

func TestAudit_NoPasses_PresentLessonIsDebt(t *testing.T) {
	// GIVEN: A student with zero passes and one lesson marked present
	// WHEN: Auditing
	// THEN: balance = -1 with a single uncovered_no_matching_pass entry

	lessons := lessonsOn(jan(10))
	res := billing.Audit(billing.AuditInput{
		StudentID:  studentA,
		GroupID:    groupG,
		Lessons:    lessons,
		Attendance: allPresent(lessons),
		AsOf:       feb(1),
	})

	assert.Equal(t, -1, res.Balance)
	assert.Equal(t, 1, res.LessonsOwed)
	assert.Equal(t, 0, res.LessonsCovered)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, billing.EntryCounted, res.Entries[0].Status)
	assert.Equal(t, billing.ReasonUncoveredNoPass, res.Entries[0].Reason)
	require.Len(t, res.UncoveredLessons, 1)
	assert.Equal(t, billing.LessonID("lesson-a"), res.UncoveredLessons[0].LessonID)
}

func TestAudit_OverlappingWindows_EarlierPurchaseWins(t *testing.T) {
	// GIVEN: Two non-consecutive passes purchased Jan 1 and Feb 1
	// WHEN: A lesson on Jan 15 is marked present
	// THEN: The first pass absorbs it; its window ends where the second
	//       purchase begins, so the second pass is never considered

	first := nonConsecutivePass("pass-1", jan(1), billing.Day{}, 8, 320)
	second := nonConsecutivePass("pass-2", feb(1), billing.Day{}, 8, 320)
	lessons := lessonsOn(jan(15))

	res := billing.Audit(billing.AuditInput{
		StudentID:  studentA,
		GroupID:    groupG,
		Passes:     []billing.Pass{second, first}, // deliberately unordered
		Lessons:    lessons,
		Attendance: allPresent(lessons),
		AsOf:       feb(15),
	})

	e := entryFor(t, res, "lesson-a")
	assert.Equal(t, billing.PassID("pass-1"), e.CoveredByPassID)
	assert.Equal(t, 1, usageFor(t, res, "pass-1").LessonsUsed)
	assert.Equal(t, 0, usageFor(t, res, "pass-2").LessonsUsed)
}

// =============================================================================
// DISPOSITION RULES
// =============================================================================

func TestAudit_ValidSkip_NeverConsumesCapacity(t *testing.T) {
	// GIVEN: The same scenario twice, once with a lesson unmarked and
	//        once with it marked absence_valid
	// WHEN: Auditing both
	// THEN: Pass usage is identical - a valid skip never burns a credit

	pass := nonConsecutivePass("pass-1", jan(1), jan(31), 8, 320)
	lessons := lessonsOn(jan(5), jan(12))
	base := []billing.Attendance{marked("lesson-a", billing.AttendancePresent)}

	unmarkedRes := billing.Audit(billing.AuditInput{
		StudentID: studentA, GroupID: groupG,
		Passes: []billing.Pass{pass}, Lessons: lessons,
		Attendance: base, AsOf: feb(1),
	})
	skippedRes := billing.Audit(billing.AuditInput{
		StudentID: studentA, GroupID: groupG,
		Passes: []billing.Pass{pass}, Lessons: lessons,
		Attendance: append(base, marked("lesson-b", billing.AttendanceAbsenceValid)),
		AsOf:       feb(1),
	})

	assert.Equal(t, usageFor(t, unmarkedRes, "pass-1").LessonsUsed,
		usageFor(t, skippedRes, "pass-1").LessonsUsed)
	e := entryFor(t, skippedRes, "lesson-b")
	assert.Equal(t, billing.EntryNotCounted, e.Status)
	assert.Equal(t, billing.ReasonNotCountedValidSkip, e.Reason)
}

func TestAudit_CancelledLesson_NotCounted(t *testing.T) {
	// GIVEN: A marked lesson whose occurrence was cancelled
	// WHEN: Auditing
	// THEN: not_counted_cancelled, and no capacity consumed

	pass := consecutivePass("pass-1", jan(1), 8, 280)
	cancelled := lesson("lesson-a", jan(5))
	cancelled.Status = billing.LessonCancelled

	res := billing.Audit(billing.AuditInput{
		StudentID:  studentA,
		GroupID:    groupG,
		Passes:     []billing.Pass{pass},
		Lessons:    []billing.Lesson{cancelled},
		Attendance: []billing.Attendance{marked("lesson-a", billing.AttendancePresent)},
		AsOf:       feb(1),
	})

	e := entryFor(t, res, "lesson-a")
	assert.Equal(t, billing.EntryNotCounted, e.Status)
	assert.Equal(t, billing.ReasonNotCountedCancelled, e.Reason)
	assert.Equal(t, 0, usageFor(t, res, "pass-1").LessonsUsed)
}

func TestAudit_UnmarkedPastLesson_AutoConsumedByConsecutivePass(t *testing.T) {
	// GIVEN: A past lesson with no attendance record inside a
	//        consecutive pass's window
	// WHEN: Auditing as of a later day
	// THEN: The lesson is treated as an implicit present and counted
	//
	// This documents the literal auto-consumption rule: any unmarked
	// lesson strictly before the reference day is assumed used. A
	// future-dated lesson becomes eligible the day it slips into the
	// past, whether or not anyone ever intended to mark it.

	pass := consecutivePass("pass-1", jan(1), 8, 280)
	lessons := lessonsOn(jan(10))

	res := billing.Audit(billing.AuditInput{
		StudentID: studentA,
		GroupID:   groupG,
		Passes:    []billing.Pass{pass},
		Lessons:   lessons,
		AsOf:      jan(20),
	})

	e := entryFor(t, res, "lesson-a")
	assert.Equal(t, billing.EntryCounted, e.Status)
	assert.Equal(t, billing.ReasonCountedAutoConsecutive, e.Reason)
	assert.Equal(t, billing.PassID("pass-1"), e.CoveredByPassID)
	assert.Empty(t, e.AttendanceStatus)
}

func TestAudit_UnmarkedPastLesson_NotAutoConsumedByNonConsecutivePass(t *testing.T) {
	// GIVEN: A past unmarked lesson covered only by a non-consecutive pass
	// WHEN: Auditing
	// THEN: The lesson is skipped entirely - no entry, no consumption

	pass := nonConsecutivePass("pass-1", jan(1), jan(31), 8, 320)
	lessons := lessonsOn(jan(10))

	res := billing.Audit(billing.AuditInput{
		StudentID: studentA,
		GroupID:   groupG,
		Passes:    []billing.Pass{pass},
		Lessons:   lessons,
		AsOf:      jan(20),
	})

	assert.Empty(t, res.Entries)
	assert.Equal(t, 0, usageFor(t, res, "pass-1").LessonsUsed)
}

func TestAudit_InvalidSkip_OnlyBurnsConsecutiveCredits(t *testing.T) {
	// GIVEN: An invalid skip covered only by a non-consecutive pass
	// WHEN: Auditing
	// THEN: The skip does not consume capacity and does not move balance

	pass := nonConsecutivePass("pass-1", jan(1), jan(31), 8, 320)
	lessons := lessonsOn(jan(10))

	res := billing.Audit(billing.AuditInput{
		StudentID:  studentA,
		GroupID:    groupG,
		Passes:     []billing.Pass{pass},
		Lessons:    lessons,
		Attendance: []billing.Attendance{marked("lesson-a", billing.AttendanceAbsenceInvalid)},
		AsOf:       feb(1),
	})

	e := entryFor(t, res, "lesson-a")
	assert.Equal(t, billing.EntryNotCounted, e.Status)
	assert.Equal(t, billing.ReasonNotCountedNoAttendance, e.Reason)
	assert.Equal(t, 0, usageFor(t, res, "pass-1").LessonsUsed)
	assert.Equal(t, 8, res.Balance, "full capacity remains")
}

func TestAudit_InvalidSkip_ConsumesConsecutiveCredit(t *testing.T) {
	// GIVEN: An invalid skip inside a consecutive pass window
	// WHEN: Auditing
	// THEN: The skip burns one credit with counted_absence_invalid

	pass := consecutivePass("pass-1", jan(1), 8, 280)
	lessons := lessonsOn(jan(10))

	res := billing.Audit(billing.AuditInput{
		StudentID:  studentA,
		GroupID:    groupG,
		Passes:     []billing.Pass{pass},
		Lessons:    lessons,
		Attendance: []billing.Attendance{marked("lesson-a", billing.AttendanceAbsenceInvalid)},
		AsOf:       feb(1),
	})

	e := entryFor(t, res, "lesson-a")
	assert.Equal(t, billing.EntryCounted, e.Status)
	assert.Equal(t, billing.ReasonCountedAbsenceInvalid, e.Reason)
	assert.Equal(t, 1, usageFor(t, res, "pass-1").LessonsUsed)
}

func TestAudit_DepletedPass_ProducesVisibleDebt(t *testing.T) {
	// GIVEN: A 2-lesson consecutive pass and 3 present lessons in window
	// WHEN: Auditing
	// THEN: Two lessons are covered; the third is uncovered_pass_depleted
	//       and the balance goes negative

	pass := consecutivePass("pass-1", jan(1), 2, 70)
	lessons := lessonsOn(jan(5), jan(8), jan(12))

	res := billing.Audit(billing.AuditInput{
		StudentID:  studentA,
		GroupID:    groupG,
		Passes:     []billing.Pass{pass},
		Lessons:    lessons,
		Attendance: allPresent(lessons),
		AsOf:       feb(1),
	})

	assert.Equal(t, 2, res.LessonsCovered)
	assert.Equal(t, 1, res.LessonsOwed)
	assert.Equal(t, -1, res.Balance)
	last := entryFor(t, res, "lesson-c")
	assert.Equal(t, billing.ReasonUncoveredDepleted, last.Reason)
	assert.Empty(t, last.CoveredByPassID)
	assert.Equal(t, 2, usageFor(t, res, "pass-1").LessonsUsed)
}

func TestAudit_PresentOutsideAnyWindow_UncoveredNoMatchingPass(t *testing.T) {
	// GIVEN: A pass whose window ended before the lesson date
	// WHEN: A later lesson is marked present
	// THEN: Debt with uncovered_no_matching_pass (no window reached it)

	pass := nonConsecutivePass("pass-1", jan(1), jan(10), 8, 320)
	lessons := lessonsOn(feb(20))

	res := billing.Audit(billing.AuditInput{
		StudentID:  studentA,
		GroupID:    groupG,
		Passes:     []billing.Pass{pass},
		Lessons:    lessons,
		Attendance: allPresent(lessons),
		AsOf:       day(2025, time.March, 1),
	})

	e := entryFor(t, res, "lesson-a")
	assert.Equal(t, billing.EntryCounted, e.Status)
	assert.Equal(t, billing.ReasonUncoveredNoPass, e.Reason)
}

func TestAudit_ArchivedUnusedPass_ContributesNoCapacity(t *testing.T) {
	// GIVEN: An archived pass nothing was ever booked against, plus one
	//        uncovered present lesson
	// WHEN: Auditing
	// THEN: The archived pass adds no capacity; balance reflects pure debt

	archived := nonConsecutivePass("pass-1", jan(1), jan(10), 8, 320)
	archived.Status = billing.PassArchived
	lessons := lessonsOn(feb(20))

	res := billing.Audit(billing.AuditInput{
		StudentID:  studentA,
		GroupID:    groupG,
		Passes:     []billing.Pass{archived},
		Lessons:    lessons,
		Attendance: allPresent(lessons),
		AsOf:       day(2025, time.March, 1),
	})

	assert.Equal(t, -1, res.Balance)
	// Usage is still reported for archived passes.
	assert.Equal(t, 8, usageFor(t, res, "pass-1").LessonsTotal)
}

func TestAudit_ExpiredPass_StillCoversPastLessons(t *testing.T) {
	// GIVEN: A pass that expired before the reference day
	// WHEN: A lesson inside its (past) window is marked present
	// THEN: Expiry does not retroactively revoke coverage

	pass := consecutivePass("pass-1", jan(1), 8, 280)
	pass.ExpiryDate = jan(31)
	lessons := lessonsOn(jan(10))

	res := billing.Audit(billing.AuditInput{
		StudentID:  studentA,
		GroupID:    groupG,
		Passes:     []billing.Pass{pass},
		Lessons:    lessons,
		Attendance: allPresent(lessons),
		AsOf:       day(2025, time.June, 1),
	})

	e := entryFor(t, res, "lesson-a")
	assert.Equal(t, billing.PassID("pass-1"), e.CoveredByPassID)
}

// =============================================================================
// TOTALITY AND INVARIANTS
// =============================================================================

func TestAudit_Deterministic_SameInputsSameOutput(t *testing.T) {
	// GIVEN: A mixed scenario
	// WHEN: Auditing twice with identical inputs
	// THEN: The results are identical, entry for entry

	pass := nonConsecutivePass("pass-1", jan(1), jan(31), 8, 320)
	lessons := lessonsOn(jan(5), jan(8), jan(12), jan(15))
	attendance := []billing.Attendance{
		marked("lesson-a", billing.AttendancePresent),
		marked("lesson-b", billing.AttendanceAbsenceValid),
		marked("lesson-c", billing.AttendancePresent),
	}
	in := billing.AuditInput{
		StudentID: studentA, GroupID: groupG,
		Passes: []billing.Pass{pass}, Lessons: lessons,
		Attendance: attendance, AsOf: feb(1),
	}

	first := billing.Audit(in)
	second := billing.Audit(in)
	assert.Equal(t, first, second)
}

func TestAudit_CapacityNeverExceedsTotal(t *testing.T) {
	// GIVEN: Far more present lessons than the pass can hold
	// WHEN: Auditing
	// THEN: lessonsUsed never exceeds lessonsTotal

	pass := consecutivePass("pass-1", jan(1), 3, 105)
	var days []billing.Day
	for i := 2; i <= 20; i++ {
		days = append(days, jan(i))
	}
	lessons := lessonsOn(days...)

	res := billing.Audit(billing.AuditInput{
		StudentID:  studentA,
		GroupID:    groupG,
		Passes:     []billing.Pass{pass},
		Lessons:    lessons,
		Attendance: allPresent(lessons),
		AsOf:       feb(1),
	})

	u := usageFor(t, res, "pass-1")
	assert.LessOrEqual(t, u.LessonsUsed, u.LessonsTotal)
	assert.Equal(t, 3, u.LessonsUsed)
}

func TestAudit_ZeroCapacityPass_NeverDividesOrCovers(t *testing.T) {
	// GIVEN: A pass with lessonsTotal 0 (bad upstream data)
	// WHEN: Auditing a present lesson in its window
	// THEN: No panic; the lesson is debt against a depleted window

	pass := consecutivePass("pass-1", jan(1), 0, 100)
	lessons := lessonsOn(jan(10))

	res := billing.Audit(billing.AuditInput{
		StudentID:  studentA,
		GroupID:    groupG,
		Passes:     []billing.Pass{pass},
		Lessons:    lessons,
		Attendance: allPresent(lessons),
		AsOf:       feb(1),
	})

	e := entryFor(t, res, "lesson-a")
	assert.Equal(t, billing.ReasonUncoveredDepleted, e.Reason)
	assert.Equal(t, 0, usageFor(t, res, "pass-1").LessonsUsed)
}

func TestAudit_WrongScopeRecords_SilentlyExcluded(t *testing.T) {
	// GIVEN: Records referencing another group, another student, and a
	//        nonexistent lesson
	// WHEN: Auditing
	// THEN: They are filtered, not fatal, and produce no entries

	otherGroupLesson := lesson("lesson-x", jan(5))
	otherGroupLesson.GroupID = "group-other"

	res := billing.Audit(billing.AuditInput{
		StudentID: studentA,
		GroupID:   groupG,
		Passes: []billing.Pass{{
			ID: "pass-other", StudentID: "student-b", GroupID: groupG,
			PurchaseDate: jan(1), LessonsTotal: 8,
			Price: decimal.NewFromInt(280), Consecutive: true,
			Status: billing.PassActive,
		}},
		Lessons: []billing.Lesson{otherGroupLesson},
		Attendance: []billing.Attendance{
			marked("lesson-x", billing.AttendancePresent),
			marked("lesson-ghost", billing.AttendancePresent),
		},
		AsOf: feb(1),
	})

	assert.Empty(t, res.Entries)
	assert.Empty(t, res.PassUsage)
	assert.Equal(t, 0, res.Balance)
}

func TestAudit_VirtualAttendanceRecord_PreviewsWithoutState(t *testing.T) {
	// GIVEN: A provisional record spliced into the attendance slice
	// WHEN: Auditing with and without it
	// THEN: The engine treats the provisional record exactly like a
	//       persisted one, and the input slice is not mutated

	pass := consecutivePass("pass-1", jan(1), 8, 280)
	lessons := lessonsOn(feb(10)) // future lesson, would otherwise be skipped
	virtual := []billing.Attendance{marked("lesson-a", billing.AttendancePresent)}

	without := billing.Audit(billing.AuditInput{
		StudentID: studentA, GroupID: groupG,
		Passes: []billing.Pass{pass}, Lessons: lessons, AsOf: feb(1),
	})
	with := billing.Audit(billing.AuditInput{
		StudentID: studentA, GroupID: groupG,
		Passes: []billing.Pass{pass}, Lessons: lessons,
		Attendance: virtual, AsOf: feb(1),
	})

	assert.Empty(t, without.Entries)
	require.Len(t, with.Entries, 1)
	assert.Equal(t, billing.ReasonCountedPresent, with.Entries[0].Reason)
	assert.Equal(t, 1, usageFor(t, with, "pass-1").LessonsUsed)
}
