package roster_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier/studio-engine/billing"
	"github.com/atelier/studio-engine/roster"
	"github.com/atelier/studio-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(d int) billing.Day { return billing.NewDay(2025, time.January, d) }

func fixedNow(d billing.Day) func() billing.Day {
	return func() billing.Day { return d }
}

// newStudio seeds a store with one student enrolled in one group and
// returns a service pinned to the given reference day.
func newStudio(t *testing.T, now billing.Day) (*roster.Service, *memory.Store, billing.StudentID, billing.GroupID) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	svc := roster.NewServiceAt(store, fixedNow(now))

	st, err := svc.CreateStudent(ctx, roster.Student{Name: "Mara Voss"})
	require.NoError(t, err)
	g, err := svc.CreateGroup(ctx, roster.Group{Name: "Cello B2", Subject: "cello"})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, st.ID, g.ID, day(1))
	require.NoError(t, err)

	return svc, store, st.ID, g.ID
}

func seedLesson(t *testing.T, svc *roster.Service, groupID billing.GroupID, d billing.Day) billing.LessonID {
	t.Helper()
	l, err := svc.CreateLesson(context.Background(), groupID, d, "17:00", 60)
	require.NoError(t, err)
	return l.ID
}

func seedPass(t *testing.T, svc *roster.Service, studentID billing.StudentID, groupID billing.GroupID, consecutive bool) billing.PassID {
	t.Helper()
	p, err := svc.PurchasePass(context.Background(), roster.PurchaseInput{
		StudentID:    studentID,
		GroupID:      groupID,
		PurchaseDate: day(1),
		LessonsTotal: 8,
		Price:        decimal.NewFromInt(280),
		Consecutive:  consecutive,
	})
	require.NoError(t, err)
	return p.ID
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestMarkAttendance_RoundTrip(t *testing.T) {
	// GIVEN: A scheduled lesson
	// WHEN: Marking present, remarking invalid, then unmarking
	// THEN: The store holds at most one record per (lesson, student)

	ctx := context.Background()
	svc, store, studentID, groupID := newStudio(t, day(20))
	lessonID := seedLesson(t, svc, groupID, day(7))

	require.NoError(t, svc.MarkAttendance(ctx, lessonID, studentID, billing.AttendancePresent))
	require.NoError(t, svc.MarkAttendance(ctx, lessonID, studentID, billing.AttendanceAbsenceInvalid))

	marks, err := store.ListAttendanceByLesson(ctx, lessonID)
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, billing.AttendanceAbsenceInvalid, marks[0].Status)

	require.NoError(t, svc.UnmarkAttendance(ctx, lessonID, studentID))
	marks, err = store.ListAttendanceByLesson(ctx, lessonID)
	require.NoError(t, err)
	assert.Empty(t, marks)
}

func TestMarkAttendance_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc, _, studentID, groupID := newStudio(t, day(20))
	lessonID := seedLesson(t, svc, groupID, day(7))

	// Unknown status
	err := svc.MarkAttendance(ctx, lessonID, studentID, billing.AttendanceStatus("late"))
	assert.ErrorIs(t, err, roster.ErrInvalidAttendanceStatus)

	// Cancelled lesson
	require.NoError(t, svc.CancelLesson(ctx, lessonID))
	err = svc.MarkAttendance(ctx, lessonID, studentID, billing.AttendancePresent)
	assert.ErrorIs(t, err, roster.ErrLessonCancelled)

	// Missing lesson
	err = svc.MarkAttendance(ctx, "nope", studentID, billing.AttendancePresent)
	assert.ErrorIs(t, err, roster.ErrLessonNotFound)
}

func TestUnmarkAttendance_MissingRecord(t *testing.T) {
	ctx := context.Background()
	svc, _, studentID, groupID := newStudio(t, day(20))
	lessonID := seedLesson(t, svc, groupID, day(7))

	err := svc.UnmarkAttendance(ctx, lessonID, studentID)
	assert.ErrorIs(t, err, roster.ErrAttendanceNotFound)
}

// =============================================================================
// ENGINE FRONT DOORS
// =============================================================================

func TestBalanceAudit_ThroughService(t *testing.T) {
	// GIVEN: A consecutive 8-lesson pass and two past lessons, one
	//        marked present, one unmarked
	// WHEN: Running the audit through the service
	// THEN: The unmarked past lesson is auto-consumed alongside the
	//       marked one, leaving 6 credits

	ctx := context.Background()
	svc, _, studentID, groupID := newStudio(t, day(20))
	seedPass(t, svc, studentID, groupID, true)
	l1 := seedLesson(t, svc, groupID, day(7))
	seedLesson(t, svc, groupID, day(14))

	require.NoError(t, svc.MarkAttendance(ctx, l1, studentID, billing.AttendancePresent))

	result, err := svc.BalanceAudit(ctx, studentID, groupID, day(20))
	require.NoError(t, err)
	assert.Equal(t, 6, result.Balance)
	assert.Equal(t, 2, result.LessonsCovered)
	assert.Equal(t, 0, result.LessonsOwed)
}

func TestRevenueAllocation_ThroughService(t *testing.T) {
	// GIVEN: A consecutive 280/8 pass and one attended lesson
	// WHEN: Allocating revenue through the service
	// THEN: The lesson costs 35 with the flat equation

	ctx := context.Background()
	svc, _, studentID, groupID := newStudio(t, day(20))
	seedPass(t, svc, studentID, groupID, true)
	lessonID := seedLesson(t, svc, groupID, day(7))
	require.NoError(t, svc.MarkAttendance(ctx, lessonID, studentID, billing.AttendancePresent))

	result, err := svc.RevenueAllocation(ctx, studentID, groupID, day(20))
	require.NoError(t, err)
	item, ok := result[lessonID]
	require.True(t, ok)
	assert.True(t, item.Cost.Equal(decimal.NewFromInt(35)))
	assert.Equal(t, "280 / 8", item.Equation)
}

func TestPreviewMark_DoesNotPersist(t *testing.T) {
	// GIVEN: A past unmarked lesson covered by a consecutive pass
	// WHEN: Previewing a valid-skip mark
	// THEN: The preview shows the skip not counted, but the stored
	//       audit still auto-consumes the lesson

	ctx := context.Background()
	svc, store, studentID, groupID := newStudio(t, day(20))
	seedPass(t, svc, studentID, groupID, true)
	lessonID := seedLesson(t, svc, groupID, day(7))

	preview, err := svc.PreviewMark(ctx, lessonID, studentID, billing.AttendanceAbsenceValid, day(20))
	require.NoError(t, err)
	assert.Equal(t, 8, preview.Audit.Balance, "valid skip spends nothing")

	// Nothing was written
	marks, err := store.ListAttendanceByLesson(ctx, lessonID)
	require.NoError(t, err)
	assert.Empty(t, marks)

	stored, err := svc.BalanceAudit(ctx, studentID, groupID, day(20))
	require.NoError(t, err)
	assert.Equal(t, 7, stored.Balance, "unmarked past lesson auto-consumed")
}

func TestPreviewMark_ShadowsStoredRecord(t *testing.T) {
	// GIVEN: A lesson already marked present
	// WHEN: Previewing a valid skip for the same lesson
	// THEN: The provisional record replaces the stored one in the preview

	ctx := context.Background()
	svc, _, studentID, groupID := newStudio(t, day(20))
	seedPass(t, svc, studentID, groupID, true)
	lessonID := seedLesson(t, svc, groupID, day(7))
	require.NoError(t, svc.MarkAttendance(ctx, lessonID, studentID, billing.AttendancePresent))

	preview, err := svc.PreviewMark(ctx, lessonID, studentID, billing.AttendanceAbsenceValid, day(20))
	require.NoError(t, err)
	assert.Equal(t, 8, preview.Audit.Balance)
}

// =============================================================================
// PASSES
// =============================================================================

func TestPurchasePass_RequiresMembership(t *testing.T) {
	ctx := context.Background()
	svc, _, studentID, _ := newStudio(t, day(20))

	other, err := svc.CreateGroup(ctx, roster.Group{Name: "Violin A1"})
	require.NoError(t, err)

	_, err = svc.PurchasePass(ctx, roster.PurchaseInput{
		StudentID:    studentID,
		GroupID:      other.ID,
		PurchaseDate: day(5),
		LessonsTotal: 8,
		Price:        decimal.NewFromInt(280),
	})
	var notMember *roster.NotMemberError
	require.ErrorAs(t, err, &notMember)
	assert.True(t, roster.IsClientError(err))
}

func TestPurchasePass_DurationDerivesExpiry(t *testing.T) {
	ctx := context.Background()
	svc, _, studentID, groupID := newStudio(t, day(20))

	p, err := svc.PurchasePass(ctx, roster.PurchaseInput{
		StudentID:    studentID,
		GroupID:      groupID,
		PurchaseDate: day(1),
		DurationDays: 30,
		LessonsTotal: 8,
		Price:        decimal.NewFromInt(280),
		Consecutive:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", p.ExpiryDate.String())
	assert.Equal(t, billing.PassActive, p.Status)
	assert.NotEmpty(t, p.ID)
}

func TestArchivePass_Twice(t *testing.T) {
	ctx := context.Background()
	svc, _, studentID, groupID := newStudio(t, day(20))
	passID := seedPass(t, svc, studentID, groupID, true)

	require.NoError(t, svc.ArchivePass(ctx, passID))
	err := svc.ArchivePass(ctx, passID)
	assert.ErrorIs(t, err, roster.ErrPassArchived)
}

func TestExpirePasses_ArchivesOnlyPastExpiry(t *testing.T) {
	// GIVEN: Three active passes - expired, expiring today, and open
	// WHEN: Running the expiry sweep
	// THEN: Only the pass whose expiry is strictly before asOf is
	//       archived; the sweep is idempotent

	ctx := context.Background()
	svc, store, studentID, groupID := newStudio(t, day(20))

	expired, err := svc.PurchasePass(ctx, roster.PurchaseInput{
		StudentID: studentID, GroupID: groupID,
		PurchaseDate: day(1), ExpiryDate: day(10),
		LessonsTotal: 8, Price: decimal.NewFromInt(280), Consecutive: true,
	})
	require.NoError(t, err)
	edge, err := svc.PurchasePass(ctx, roster.PurchaseInput{
		StudentID: studentID, GroupID: groupID,
		PurchaseDate: day(1), ExpiryDate: day(20),
		LessonsTotal: 8, Price: decimal.NewFromInt(280), Consecutive: true,
	})
	require.NoError(t, err)
	open, err := svc.PurchasePass(ctx, roster.PurchaseInput{
		StudentID: studentID, GroupID: groupID,
		PurchaseDate: day(1),
		LessonsTotal: 8, Price: decimal.NewFromInt(280), Consecutive: true,
	})
	require.NoError(t, err)

	n, err := svc.ExpirePasses(ctx, day(20))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetPass(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.PassArchived, got.Status)
	for _, id := range []billing.PassID{edge.ID, open.ID} {
		got, err := store.GetPass(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, billing.PassActive, got.Status)
	}

	n, err = svc.ExpirePasses(ctx, day(20))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// =============================================================================
// LESSONS
// =============================================================================

func TestRescheduleLesson(t *testing.T) {
	ctx := context.Background()
	svc, store, _, groupID := newStudio(t, day(20))
	lessonID := seedLesson(t, svc, groupID, day(7))

	require.NoError(t, svc.RescheduleLesson(ctx, lessonID, day(9), "18:30"))
	l, err := store.GetLesson(ctx, lessonID)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-09", l.Date.String())
	assert.Equal(t, "18:30", l.Time)

	require.NoError(t, svc.CancelLesson(ctx, lessonID))
	err = svc.RescheduleLesson(ctx, lessonID, day(10), "18:30")
	assert.ErrorIs(t, err, roster.ErrLessonCancelled)
}

func TestCancelLesson_DropsFromBilling(t *testing.T) {
	// GIVEN: A past lesson marked present, then cancelled
	// WHEN: Auditing
	// THEN: The cancelled occurrence spends nothing even though the
	//       attendance record still exists

	ctx := context.Background()
	svc, _, studentID, groupID := newStudio(t, day(20))
	seedPass(t, svc, studentID, groupID, true)
	lessonID := seedLesson(t, svc, groupID, day(7))
	require.NoError(t, svc.MarkAttendance(ctx, lessonID, studentID, billing.AttendancePresent))
	require.NoError(t, svc.CancelLesson(ctx, lessonID))

	result, err := svc.BalanceAudit(ctx, studentID, groupID, day(20))
	require.NoError(t, err)
	assert.Equal(t, 8, result.Balance)
}

func TestCompletePastLessons(t *testing.T) {
	ctx := context.Background()
	svc, store, _, groupID := newStudio(t, day(20))
	past := seedLesson(t, svc, groupID, day(7))
	future := seedLesson(t, svc, groupID, day(25))

	require.NoError(t, svc.CompletePastLessons(ctx, groupID, day(20)))

	l, err := store.GetLesson(ctx, past)
	require.NoError(t, err)
	assert.Equal(t, billing.LessonCompleted, l.Status)
	l, err = store.GetLesson(ctx, future)
	require.NoError(t, err)
	assert.Equal(t, billing.LessonUpcoming, l.Status)
}
