/*
errors.go - Centralized error types for record management

All roster-level failures live here so the HTTP layer can map them to
status codes with errors.Is. The billing engines themselves never
produce errors; everything below is about records and their integrity.
*/
package roster

import (
	"errors"
	"fmt"

	"github.com/atelier/studio-engine/billing"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStudentNotFound is returned when a referenced student doesn't exist.
	ErrStudentNotFound = errors.New("student not found")

	// ErrGroupNotFound is returned when a referenced group doesn't exist.
	ErrGroupNotFound = errors.New("group not found")

	// ErrLessonNotFound is returned when a referenced lesson doesn't exist.
	ErrLessonNotFound = errors.New("lesson not found")

	// ErrPassNotFound is returned when a referenced pass doesn't exist.
	ErrPassNotFound = errors.New("pass not found")

	// ErrAttendanceNotFound is returned when unmarking a lesson that was
	// never marked.
	ErrAttendanceNotFound = errors.New("attendance record not found")

	// ErrLessonCancelled is returned when marking attendance on a
	// cancelled lesson occurrence.
	ErrLessonCancelled = errors.New("lesson is cancelled")

	// ErrPassArchived is returned on mutations other than archiving
	// against an archived pass. Passes are immutable once created.
	ErrPassArchived = errors.New("pass is archived")

	// ErrInvalidAttendanceStatus is returned for a status outside
	// present/absence_valid/absence_invalid.
	ErrInvalidAttendanceStatus = errors.New("invalid attendance status")

	// ErrPlanNotFound is returned when purchasing against an unknown
	// plan name.
	ErrPlanNotFound = errors.New("pass plan not found")

	// ErrInvalidRange is returned when a date range ends before it starts.
	ErrInvalidRange = errors.New("invalid range: end before start")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NotMemberError reports an operation against a student who is not a
// member of the group.
type NotMemberError struct {
	StudentID billing.StudentID
	GroupID   billing.GroupID
}

func (e *NotMemberError) Error() string {
	return fmt.Sprintf("student %s is not a member of group %s", e.StudentID, e.GroupID)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrLessonNotFound) ||
		errors.Is(err, ErrPassNotFound) ||
		errors.Is(err, ErrAttendanceNotFound) ||
		errors.Is(err, ErrPlanNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	var notMember *NotMemberError
	return errors.Is(err, ErrLessonCancelled) ||
		errors.Is(err, ErrPassArchived) ||
		errors.Is(err, ErrInvalidAttendanceStatus) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.As(err, &notMember)
}
