/*
service.go - Record workflows over the billing engines

PURPOSE:
  The operations the front desk actually performs: mark attendance,
  sell a pass, cancel or move a lesson, and ask the two engines for a
  student's balance or revenue breakdown. The service loads snapshots
  from the Store and hands them to package billing; it holds no state
  of its own.

PREVIEWS:
  PreviewMark splices a provisional attendance record into the engine
  inputs and recomputes both results without persisting anything.
  This powers "what would this cost if marked present" displays; the
  engine cannot tell a provisional record from a stored one.
*/
package roster

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelier/studio-engine/billing"
)

// Service wires record workflows to a Store and the billing engines.
type Service struct {
	store Store
	// now supplies the reference day when callers don't pass one
	now func() billing.Day
}

// NewService creates a Service backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store, now: billing.Today}
}

// NewServiceAt pins the reference-day source, for deterministic tests.
func NewServiceAt(store Store, now func() billing.Day) *Service {
	return &Service{store: store, now: now}
}

// =============================================================================
// ENGINE FRONT DOORS
// =============================================================================

// BalanceAudit runs the Balance Audit Engine for one student+group.
// A zero asOf defaults to the current day.
func (s *Service) BalanceAudit(ctx context.Context, studentID billing.StudentID, groupID billing.GroupID, asOf billing.Day) (billing.AuditResult, error) {
	in, err := s.engineInput(ctx, studentID, groupID, asOf)
	if err != nil {
		return billing.AuditResult{}, err
	}
	return billing.Audit(in), nil
}

// RevenueAllocation runs the Revenue Allocation Engine for one
// student+group. A zero asOf defaults to the current day.
func (s *Service) RevenueAllocation(ctx context.Context, studentID billing.StudentID, groupID billing.GroupID, asOf billing.Day) (billing.RevenueResult, error) {
	in, err := s.engineInput(ctx, studentID, groupID, asOf)
	if err != nil {
		return nil, err
	}
	return billing.AllocateRevenue(in), nil
}

// engineInput assembles the immutable snapshot both engines consume.
func (s *Service) engineInput(ctx context.Context, studentID billing.StudentID, groupID billing.GroupID, asOf billing.Day) (billing.AuditInput, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	lessons, err := s.store.ListLessons(ctx, groupID)
	if err != nil {
		return billing.AuditInput{}, err
	}
	passes, err := s.store.ListPasses(ctx, studentID)
	if err != nil {
		return billing.AuditInput{}, err
	}
	attendance, err := s.store.ListAttendanceByStudent(ctx, studentID)
	if err != nil {
		return billing.AuditInput{}, err
	}
	return billing.AuditInput{
		StudentID:  studentID,
		GroupID:    groupID,
		Passes:     passes,
		Lessons:    lessons,
		Attendance: attendance,
		AsOf:       asOf,
	}, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// MarkAttendance records or replaces the mark for one (lesson, student).
func (s *Service) MarkAttendance(ctx context.Context, lessonID billing.LessonID, studentID billing.StudentID, status billing.AttendanceStatus) error {
	if !validAttendanceStatus(status) {
		return ErrInvalidAttendanceStatus
	}
	lesson, err := s.store.GetLesson(ctx, lessonID)
	if err != nil {
		return err
	}
	if lesson.Status == billing.LessonCancelled {
		return ErrLessonCancelled
	}
	if _, err := s.store.GetStudent(ctx, studentID); err != nil {
		return err
	}
	return s.store.UpsertAttendance(ctx, billing.Attendance{
		LessonID:  lessonID,
		StudentID: studentID,
		Status:    status,
	})
}

// UnmarkAttendance removes the mark for one (lesson, student).
func (s *Service) UnmarkAttendance(ctx context.Context, lessonID billing.LessonID, studentID billing.StudentID) error {
	return s.store.DeleteAttendance(ctx, lessonID, studentID)
}

// Preview is the combined what-if output for a prospective mark.
type Preview struct {
	Audit   billing.AuditResult
	Revenue billing.RevenueResult
}

// PreviewMark recomputes both engines as if the given mark were
// already stored. Nothing is persisted; the stored record for the same
// lesson, if any, is shadowed by the provisional one.
func (s *Service) PreviewMark(ctx context.Context, lessonID billing.LessonID, studentID billing.StudentID, status billing.AttendanceStatus, asOf billing.Day) (Preview, error) {
	if !validAttendanceStatus(status) {
		return Preview{}, ErrInvalidAttendanceStatus
	}
	lesson, err := s.store.GetLesson(ctx, lessonID)
	if err != nil {
		return Preview{}, err
	}
	in, err := s.engineInput(ctx, studentID, lesson.GroupID, asOf)
	if err != nil {
		return Preview{}, err
	}

	virtual := billing.Attendance{LessonID: lessonID, StudentID: studentID, Status: status}
	kept := in.Attendance[:0:0]
	for _, a := range in.Attendance {
		if a.LessonID != lessonID || a.StudentID != studentID {
			kept = append(kept, a)
		}
	}
	in.Attendance = append(kept, virtual)

	return Preview{
		Audit:   billing.Audit(in),
		Revenue: billing.AllocateRevenue(in),
	}, nil
}

func validAttendanceStatus(status billing.AttendanceStatus) bool {
	switch status {
	case billing.AttendancePresent, billing.AttendanceAbsenceValid, billing.AttendanceAbsenceInvalid:
		return true
	}
	return false
}

// =============================================================================
// PASSES
// =============================================================================

// PurchaseInput describes a pass purchase. DurationDays, when nonzero,
// derives the expiry from the purchase date; an explicit ExpiryDate
// wins over DurationDays.
type PurchaseInput struct {
	StudentID    billing.StudentID
	GroupID      billing.GroupID
	PurchaseDate billing.Day
	ExpiryDate   billing.Day
	DurationDays int
	LessonsTotal int
	Price        decimal.Decimal
	Consecutive  bool
}

// PurchasePass creates an immutable pass for a student in a group.
// The student must be a member of the group.
func (s *Service) PurchasePass(ctx context.Context, in PurchaseInput) (*billing.Pass, error) {
	if _, err := s.store.GetStudent(ctx, in.StudentID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetGroup(ctx, in.GroupID); err != nil {
		return nil, err
	}
	if !s.isMember(ctx, in.StudentID, in.GroupID, in.PurchaseDate) {
		return nil, &NotMemberError{StudentID: in.StudentID, GroupID: in.GroupID}
	}

	purchase := in.PurchaseDate
	if purchase.IsZero() {
		purchase = s.now()
	}
	expiry := in.ExpiryDate
	if expiry.IsZero() && in.DurationDays > 0 {
		expiry = purchase.AddDays(in.DurationDays)
	}

	pass := billing.Pass{
		ID:           billing.PassID(uuid.NewString()),
		StudentID:    in.StudentID,
		GroupID:      in.GroupID,
		PurchaseDate: purchase,
		ExpiryDate:   expiry,
		LessonsTotal: in.LessonsTotal,
		Price:        in.Price,
		Consecutive:  in.Consecutive,
		Status:       billing.PassActive,
	}
	if err := s.store.CreatePass(ctx, pass); err != nil {
		return nil, err
	}
	return &pass, nil
}

// ArchivePass archives a pass explicitly.
func (s *Service) ArchivePass(ctx context.Context, id billing.PassID) error {
	pass, err := s.store.GetPass(ctx, id)
	if err != nil {
		return err
	}
	if pass.Status == billing.PassArchived {
		return ErrPassArchived
	}
	return s.store.ArchivePass(ctx, id)
}

// ExpirePasses archives every active pass whose expiry day is before
// the given day. Idempotent; returns how many passes were archived.
func (s *Service) ExpirePasses(ctx context.Context, asOf billing.Day) (int, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	active, err := s.store.ListActivePasses(ctx)
	if err != nil {
		return 0, err
	}
	archived := 0
	for _, p := range active {
		if p.ExpiryDate.IsZero() || !p.ExpiryDate.Before(asOf) {
			continue
		}
		if err := s.store.ArchivePass(ctx, p.ID); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

func (s *Service) isMember(ctx context.Context, studentID billing.StudentID, groupID billing.GroupID, on billing.Day) bool {
	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return false
	}
	if on.IsZero() {
		on = s.now()
	}
	for _, m := range members {
		if m.StudentID == studentID && m.Active(on) {
			return true
		}
	}
	return false
}

// =============================================================================
// LESSONS
// =============================================================================

// CreateLesson adds a single occurrence manually.
func (s *Service) CreateLesson(ctx context.Context, groupID billing.GroupID, date billing.Day, startTime string, durationMinutes int) (*billing.Lesson, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	lesson := billing.Lesson{
		ID:              billing.LessonID(uuid.NewString()),
		GroupID:         groupID,
		Date:            date,
		Time:            startTime,
		DurationMinutes: durationMinutes,
		Status:          billing.LessonUpcoming,
	}
	if err := s.store.CreateLesson(ctx, lesson); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// CancelLesson marks an occurrence cancelled. Attendance records stay;
// the engines discount them.
func (s *Service) CancelLesson(ctx context.Context, id billing.LessonID) error {
	lesson, err := s.store.GetLesson(ctx, id)
	if err != nil {
		return err
	}
	lesson.Status = billing.LessonCancelled
	return s.store.UpdateLesson(ctx, *lesson)
}

// RescheduleLesson moves an occurrence to a new date and time.
func (s *Service) RescheduleLesson(ctx context.Context, id billing.LessonID, date billing.Day, startTime string) error {
	lesson, err := s.store.GetLesson(ctx, id)
	if err != nil {
		return err
	}
	if lesson.Status == billing.LessonCancelled {
		return ErrLessonCancelled
	}
	lesson.Date = date
	lesson.Time = startTime
	return s.store.UpdateLesson(ctx, *lesson)
}

// CompletePastLessons flips past upcoming lessons to completed.
// Harmless bookkeeping; the engines never look at the upcoming/
// completed distinction, only at cancellation.
func (s *Service) CompletePastLessons(ctx context.Context, groupID billing.GroupID, asOf billing.Day) error {
	if asOf.IsZero() {
		asOf = s.now()
	}
	lessons, err := s.store.ListLessons(ctx, groupID)
	if err != nil {
		return err
	}
	for _, l := range lessons {
		if l.Status == billing.LessonUpcoming && l.Date.Before(asOf) {
			l.Status = billing.LessonCompleted
			if err := s.store.UpdateLesson(ctx, l); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// RECORD CREATION HELPERS
// =============================================================================

// CreateStudent mints an ID when none is supplied.
func (s *Service) CreateStudent(ctx context.Context, st Student) (*Student, error) {
	if st.ID == "" {
		st.ID = billing.StudentID(uuid.NewString())
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	if err := s.store.CreateStudent(ctx, st); err != nil {
		return nil, err
	}
	return &st, nil
}

// CreateGroup mints an ID when none is supplied.
func (s *Service) CreateGroup(ctx context.Context, g Group) (*Group, error) {
	if g.ID == "" {
		g.ID = billing.GroupID(uuid.NewString())
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	if err := s.store.CreateGroup(ctx, g); err != nil {
		return nil, err
	}
	return &g, nil
}

// AddMember enrolls a student into a group starting on the given day.
func (s *Service) AddMember(ctx context.Context, studentID billing.StudentID, groupID billing.GroupID, joinedOn billing.Day) (*Membership, error) {
	if _, err := s.store.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if joinedOn.IsZero() {
		joinedOn = s.now()
	}
	m := Membership{
		ID:        uuid.NewString(),
		StudentID: studentID,
		GroupID:   groupID,
		JoinedOn:  joinedOn,
	}
	if err := s.store.AddMember(ctx, m); err != nil {
		return nil, err
	}
	return &m, nil
}
