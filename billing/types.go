/*
Package billing contains the balance and revenue reconciliation core.

PURPOSE:
  Answers the question a tutoring studio asks constantly: "how many
  lessons does this student still owe or have credit for, in this
  group, and why?" Two sibling algorithms operate over the same
  immutable inputs:

  - Balance Audit Engine (audit.go): walks a student's lesson history
    and pass purchases and produces a signed balance, a reason-coded
    audit entry per lesson, and a per-pass usage ledger.
  - Revenue Allocation Engine (revenue.go): distributes each pass's
    price across the lessons it plausibly covers, producing a
    per-lesson monetary cost with a human-readable equation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Lesson: one scheduled class occurrence, totally ordered by (date, time)
  - Pass: a purchased block of lesson credits, consecutive or not
  - Attendance: one mark per (lesson, student); absence of a record
    means "not marked"

DESIGN PRINCIPLES:
  1. Purity: both engines are side-effect-free functions over snapshots;
     callers re-invoke them whenever the underlying records change.
  2. Totality: no input shape raises an error. Inconsistent records are
     filtered out, missing capacity defaults to zero, divisors are guarded.
  3. Determinism: the current day is an explicit parameter, never read
     from the wall clock inside a computation.
  4. Precision: money uses decimal.Decimal, never float64.

SEE ALSO:
  - window.go:  per-pass coverage window computation
  - audit.go:   balance audit traversal
  - revenue.go: revenue allocation traversal
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StudentID string
type GroupID string
type LessonID string
type PassID string

// =============================================================================
// LESSON - One scheduled class occurrence
// =============================================================================

type LessonStatus string

const (
	LessonUpcoming  LessonStatus = "upcoming"
	LessonCancelled LessonStatus = "cancelled"
	LessonCompleted LessonStatus = "completed"
)

// Lesson belongs to exactly one group. Lessons are created by schedule
// expansion or manually, mutated by reschedule/cancel, and ordered by
// (Date, Time) ascending everywhere in this package.
type Lesson struct {
	ID              LessonID
	GroupID         GroupID
	Date            Day
	Time            string // HH:mm, lexically sortable
	DurationMinutes int
	Status          LessonStatus
}

// =============================================================================
// PASS - A purchased block of lesson credits (one student, one group)
// =============================================================================

type PassStatus string

const (
	PassActive   PassStatus = "active"
	PassArchived PassStatus = "archived"
)

// Pass is immutable once created except for the active -> archived
// status transition driven by expiry or explicit archiving.
//
// Consecutive passes cover a fixed date window at a flat per-lesson
// rate and are assumed consumed for unmarked past lessons in their
// window. Non-consecutive passes cover a window truncated by the next
// non-consecutive purchase and only burn credits on explicit marks.
type Pass struct {
	ID           PassID
	StudentID    StudentID
	GroupID      GroupID
	PurchaseDate Day
	ExpiryDate   Day // zero = no expiry
	LessonsTotal int
	Price        decimal.Decimal
	Consecutive  bool
	Status       PassStatus
}

// Capacity returns the usable credit count. A missing or nonsensical
// LessonsTotal is 0 capacity, never a negative or NaN-ish value.
func (p Pass) Capacity() int {
	if p.LessonsTotal < 0 {
		return 0
	}
	return p.LessonsTotal
}

// ExpiredAsOf reports whether the pass can no longer cover lessons
// dated on or after the reference day. Expiry does not retroactively
// revoke coverage of past dates already inside the window.
func (p Pass) ExpiredAsOf(ref Day) bool {
	if p.Status == PassArchived {
		return true
	}
	return !p.ExpiryDate.IsZero() && p.ExpiryDate.Before(ref)
}

// PerLessonRate is Price / LessonsTotal with a guarded divisor.
func (p Pass) PerLessonRate() decimal.Decimal {
	divisor := p.Capacity()
	if divisor == 0 {
		divisor = 1
	}
	return p.Price.Div(decimal.NewFromInt(int64(divisor)))
}

// =============================================================================
// ATTENDANCE - One mark per (lesson, student)
// =============================================================================

type AttendanceStatus string

const (
	AttendancePresent        AttendanceStatus = "present"
	AttendanceAbsenceValid   AttendanceStatus = "absence_valid"
	AttendanceAbsenceInvalid AttendanceStatus = "absence_invalid"
)

// Attendance may be a persisted record or a caller-supplied provisional
// one ("what would this cost if marked present"); the engines treat
// both identically.
type Attendance struct {
	LessonID  LessonID
	StudentID StudentID
	Status    AttendanceStatus
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// sortLessons orders lessons by (date, time) ascending, in place.
// The sort must be stable so equal keys keep input order.
func sortLessons(lessons []Lesson) {
	// insertion sort keeps this dependency-free and stable; scopes are
	// tens to low hundreds of lessons
	for i := 1; i < len(lessons); i++ {
		for j := i; j > 0 && LessonOrder(lessons[j].Date, lessons[j].Time, lessons[j-1].Date, lessons[j-1].Time) < 0; j-- {
			lessons[j], lessons[j-1] = lessons[j-1], lessons[j]
		}
	}
}

// sortPassesByPurchase orders passes by purchase date ascending, the
// tie-break order used for first-match allocation.
func sortPassesByPurchase(passes []Pass) {
	for i := 1; i < len(passes); i++ {
		for j := i; j > 0 && passes[j].PurchaseDate.Before(passes[j-1].PurchaseDate); j-- {
			passes[j], passes[j-1] = passes[j-1], passes[j]
		}
	}
}
