/*
scenarios.go - Demo scenario seed data

PURPOSE:
  Pre-built studio states for demos and exploratory testing. Loading a
  scenario wipes the store and seeds a small, fully deterministic
  fixture with fixed IDs, so every balance and allocation it produces
  can be predicted by hand.

SCENARIOS:
  1. consecutive-start: one consecutive pass, perfect attendance
  2. lesson-without-pass: attendance with nothing to cover it
  3. mixed-absences: a punch card meeting valid and invalid skips
  4. back-to-back-passes: two punch cards racing for the same lesson

SEE ALSO:
  - handlers.go: ListScenarios/LoadScenario endpoints
  - billing/audit.go, billing/revenue.go: What the fixtures exercise
*/
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atelier/studio-engine/billing"
	"github.com/atelier/studio-engine/roster"
)

// scenarios is the public catalog, in display order.
var scenarios = []ScenarioDTO{
	{
		ID:          "consecutive-start",
		Name:        "Consecutive pass, perfect attendance",
		Description: "Nora holds an 8-lesson consecutive pass (280) and has attended the first two Tuesday lessons. Her balance shows the remaining credit and every covered lesson costs the flat 35.",
	},
	{
		ID:          "lesson-without-pass",
		Name:        "Attendance without a pass",
		Description: "Felix attended one lesson but never bought a pass. His balance is -1 and the lesson shows up as uncovered debt.",
	},
	{
		ID:          "mixed-absences",
		Name:        "Punch card with valid and invalid skips",
		Description: "Ida holds an 8-lesson punch card (320, expires Jan 31). Three attended lessons burn credits; her unexcused absence soaks up the card's remaining value in the revenue view and her excused absence costs nothing.",
	},
	{
		ID:          "back-to-back-passes",
		Name:        "Two punch cards in sequence",
		Description: "Theo bought punch cards on Jan 1 and Feb 1. The mid-January lesson is covered by the first card; the February card takes over from its purchase date.",
	},
}

// scenarioLoaders maps scenario IDs to their seed functions.
func (h *Handler) scenarioLoaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"consecutive-start":   h.loadConsecutiveStart,
		"lesson-without-pass": h.loadLessonWithoutPass,
		"mixed-absences":      h.loadMixedAbsences,
		"back-to-back-passes": h.loadBackToBackPasses,
	}
}

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	loader, ok := h.scenarioLoaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown scenario", req.ScenarioID)
		return
	}
	if err := h.store.Reset(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := loader(r.Context()); err != nil {
		log.Printf("[API] Scenario %s failed to load: %v", req.ScenarioID, err)
		writeError(w, http.StatusInternalServerError, "scenario load failed", err.Error())
		return
	}
	log.Printf("[API] Loaded scenario %s", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func jan(d int) billing.Day { return billing.NewDay(2025, time.January, d) }
func feb(d int) billing.Day { return billing.NewDay(2025, time.February, d) }

type seeder struct {
	store roster.Store
	ctx   context.Context
	err   error
}

// do runs the next seed step unless an earlier one failed.
func (s *seeder) do(f func() error) {
	if s.err == nil {
		s.err = f()
	}
}

func (s *seeder) student(id billing.StudentID, name string) {
	s.do(func() error {
		return s.store.CreateStudent(s.ctx, roster.Student{
			ID: id, Name: name, CreatedAt: time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC),
		})
	})
}

func (s *seeder) group(id billing.GroupID, name, subject string) {
	s.do(func() error {
		return s.store.CreateGroup(s.ctx, roster.Group{
			ID: id, Name: name, Subject: subject, CreatedAt: time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC),
		})
	})
}

func (s *seeder) member(studentID billing.StudentID, groupID billing.GroupID, joined billing.Day) {
	s.do(func() error {
		return s.store.AddMember(s.ctx, roster.Membership{
			ID: "m-" + string(studentID) + "-" + string(groupID), StudentID: studentID, GroupID: groupID, JoinedOn: joined,
		})
	})
}

func (s *seeder) lesson(id billing.LessonID, groupID billing.GroupID, date billing.Day, status billing.LessonStatus) {
	s.do(func() error {
		return s.store.CreateLesson(s.ctx, billing.Lesson{
			ID: id, GroupID: groupID, Date: date, Time: "17:00", DurationMinutes: 60, Status: status,
		})
	})
}

func (s *seeder) pass(p billing.Pass) {
	s.do(func() error { return s.store.CreatePass(s.ctx, p) })
}

func (s *seeder) mark(lessonID billing.LessonID, studentID billing.StudentID, status billing.AttendanceStatus) {
	s.do(func() error {
		return s.store.UpsertAttendance(s.ctx, billing.Attendance{
			LessonID: lessonID, StudentID: studentID, Status: status,
		})
	})
}

// =============================================================================
// SCENARIO 1: Consecutive pass, perfect attendance
// =============================================================================

func (h *Handler) loadConsecutiveStart(ctx context.Context) error {
	s := &seeder{store: h.store, ctx: ctx}

	s.student("nora", "Nora Lindqvist")
	s.group("cello-b2", "Cello B2", "cello")
	s.member("nora", "cello-b2", jan(1))

	// Tuesdays through January and February
	dates := []billing.Day{jan(7), jan(14), jan(21), jan(28), feb(4), feb(11), feb(18), feb(25)}
	ids := []billing.LessonID{"les-01", "les-02", "les-03", "les-04", "les-05", "les-06", "les-07", "les-08"}
	for i, d := range dates {
		status := billing.LessonUpcoming
		if i < 2 {
			status = billing.LessonCompleted
		}
		s.lesson(ids[i], "cello-b2", d, status)
	}

	s.pass(billing.Pass{
		ID: "pass-nora-1", StudentID: "nora", GroupID: "cello-b2",
		PurchaseDate: jan(1), LessonsTotal: 8,
		Price: decimal.NewFromInt(280), Consecutive: true,
		Status: billing.PassActive,
	})

	s.mark("les-01", "nora", billing.AttendancePresent)
	s.mark("les-02", "nora", billing.AttendancePresent)

	return s.err
}

// =============================================================================
// SCENARIO 2: Attendance without a pass
// =============================================================================

func (h *Handler) loadLessonWithoutPass(ctx context.Context) error {
	s := &seeder{store: h.store, ctx: ctx}

	s.student("felix", "Felix Arnesen")
	s.group("guitar-a1", "Guitar A1", "guitar")
	s.member("felix", "guitar-a1", jan(1))

	s.lesson("les-01", "guitar-a1", jan(10), billing.LessonCompleted)
	s.mark("les-01", "felix", billing.AttendancePresent)

	return s.err
}

// =============================================================================
// SCENARIO 3: Punch card with valid and invalid skips
// =============================================================================

func (h *Handler) loadMixedAbsences(ctx context.Context) error {
	s := &seeder{store: h.store, ctx: ctx}

	s.student("ida", "Ida Brandt")
	s.group("piano-c1", "Piano C1", "piano")
	s.member("ida", "piano-c1", jan(1))

	s.pass(billing.Pass{
		ID: "pass-ida-1", StudentID: "ida", GroupID: "piano-c1",
		PurchaseDate: jan(1), ExpiryDate: jan(31), LessonsTotal: 8,
		Price: decimal.NewFromInt(320),
		Status: billing.PassActive,
	})

	dates := []billing.Day{jan(6), jan(8), jan(13), jan(15), jan(20)}
	ids := []billing.LessonID{"les-01", "les-02", "les-03", "les-04", "les-05"}
	for i, d := range dates {
		s.lesson(ids[i], "piano-c1", d, billing.LessonCompleted)
	}

	s.mark("les-01", "ida", billing.AttendancePresent)
	s.mark("les-02", "ida", billing.AttendancePresent)
	s.mark("les-03", "ida", billing.AttendancePresent)
	s.mark("les-04", "ida", billing.AttendanceAbsenceInvalid)
	s.mark("les-05", "ida", billing.AttendanceAbsenceValid)

	return s.err
}

// =============================================================================
// SCENARIO 4: Two punch cards in sequence
// =============================================================================

func (h *Handler) loadBackToBackPasses(ctx context.Context) error {
	s := &seeder{store: h.store, ctx: ctx}

	s.student("theo", "Theo Maras")
	s.group("violin-b1", "Violin B1", "violin")
	s.member("theo", "violin-b1", jan(1))

	s.pass(billing.Pass{
		ID: "pass-theo-jan", StudentID: "theo", GroupID: "violin-b1",
		PurchaseDate: jan(1), LessonsTotal: 4,
		Price: decimal.NewFromInt(160),
		Status: billing.PassActive,
	})
	s.pass(billing.Pass{
		ID: "pass-theo-feb", StudentID: "theo", GroupID: "violin-b1",
		PurchaseDate: feb(1), LessonsTotal: 4,
		Price: decimal.NewFromInt(160),
		Status: billing.PassActive,
	})

	s.lesson("les-01", "violin-b1", jan(15), billing.LessonCompleted)
	s.lesson("les-02", "violin-b1", feb(15), billing.LessonUpcoming)

	s.mark("les-01", "theo", billing.AttendancePresent)

	return s.err
}
