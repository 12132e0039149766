/*
store.go - Persistence interface for studio records

PURPOSE:
  Defines the boundary between record management and the database.
  Implementations: store/sqlite (production) and store/memory (tests).

CONTRACT NOTES:
  - Lessons are never deleted implicitly; cancelling is a status
    change, rescheduling a date/time change.
  - Passes are immutable after creation except ArchivePass.
  - Attendance is at most one record per (lesson, student); Upsert
    replaces an existing mark.
  - Referential integrity is best effort: readers must tolerate
    orphaned records, the engines filter them out.
*/
package roster

import (
	"context"

	"github.com/atelier/studio-engine/billing"
)

// Store persists all studio records.
type Store interface {
	// Students
	CreateStudent(ctx context.Context, s Student) error
	GetStudent(ctx context.Context, id billing.StudentID) (*Student, error)
	ListStudents(ctx context.Context) ([]Student, error)

	// Groups and memberships
	CreateGroup(ctx context.Context, g Group) error
	GetGroup(ctx context.Context, id billing.GroupID) (*Group, error)
	ListGroups(ctx context.Context) ([]Group, error)
	AddMember(ctx context.Context, m Membership) error
	ListMembers(ctx context.Context, groupID billing.GroupID) ([]Membership, error)

	// Weekly schedule slots
	AddSlot(ctx context.Context, s ScheduleSlot) error
	ListSlots(ctx context.Context, groupID billing.GroupID) ([]ScheduleSlot, error)

	// Lessons
	CreateLesson(ctx context.Context, l billing.Lesson) error
	GetLesson(ctx context.Context, id billing.LessonID) (*billing.Lesson, error)
	UpdateLesson(ctx context.Context, l billing.Lesson) error
	ListLessons(ctx context.Context, groupID billing.GroupID) ([]billing.Lesson, error)

	// Passes
	CreatePass(ctx context.Context, p billing.Pass) error
	GetPass(ctx context.Context, id billing.PassID) (*billing.Pass, error)
	ListPasses(ctx context.Context, studentID billing.StudentID) ([]billing.Pass, error)
	ListActivePasses(ctx context.Context) ([]billing.Pass, error)
	// ArchivePass flips status to archived. The only pass mutation.
	ArchivePass(ctx context.Context, id billing.PassID) error

	// Attendance
	UpsertAttendance(ctx context.Context, a billing.Attendance) error
	DeleteAttendance(ctx context.Context, lessonID billing.LessonID, studentID billing.StudentID) error
	ListAttendanceByStudent(ctx context.Context, studentID billing.StudentID) ([]billing.Attendance, error)
	ListAttendanceByLesson(ctx context.Context, lessonID billing.LessonID) ([]billing.Attendance, error)

	// Reset wipes everything. Dev/test only.
	Reset(ctx context.Context) error
}
