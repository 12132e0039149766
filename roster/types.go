// Package roster manages the studio's records: students, groups,
// memberships, weekly schedule slots, lessons, passes, and attendance.
// It layers thin record management and marking workflows over the pure
// billing engines; everything interesting happens in package billing.
package roster

import (
	"time"

	"github.com/atelier/studio-engine/billing"
)

// =============================================================================
// RECORDS
// =============================================================================

// Student is one enrolled student.
type Student struct {
	ID        billing.StudentID
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Group is one teaching group (a class).
type Group struct {
	ID        billing.GroupID
	Name      string
	Subject   string
	CreatedAt time.Time
}

// Membership links a student to a group. LeftOn is zero while the
// student is still a member.
type Membership struct {
	ID        string
	StudentID billing.StudentID
	GroupID   billing.GroupID
	JoinedOn  billing.Day
	LeftOn    billing.Day
}

// Active reports whether the membership is current on the given day.
func (m Membership) Active(on billing.Day) bool {
	if on.Before(m.JoinedOn) {
		return false
	}
	return m.LeftOn.IsZero() || on.Before(m.LeftOn)
}

// ScheduleSlot is a weekly recurring slot a group's lessons are
// expanded from (e.g. "Tuesdays 17:00, 60 minutes").
type ScheduleSlot struct {
	ID              string
	GroupID         billing.GroupID
	Weekday         time.Weekday
	StartTime       string // HH:mm
	DurationMinutes int
}
