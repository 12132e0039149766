/*
handlers.go - HTTP request handlers

PURPOSE:
  Implements every API endpoint: roster records, schedule expansion,
  attendance marking, pass purchasing, the two engine front doors,
  reports, and demo scenario management.

ERROR MAPPING:
  Domain errors translate to status codes in writeDomainError:
  - roster.IsNotFound    -> 404
  - roster.IsClientError -> 400
  - everything else      -> 500

SEE ALSO:
  - dto.go: Request/response types
  - server.go: Route registration
  - roster/service.go: The workflows these handlers front
*/
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelier/studio-engine/billing"
	"github.com/atelier/studio-engine/factory"
	"github.com/atelier/studio-engine/report"
	"github.com/atelier/studio-engine/roster"
	"github.com/atelier/studio-engine/schedule"
)

// Handler holds dependencies for all HTTP handlers.
type Handler struct {
	store    roster.Store
	service  *roster.Service
	planner  *schedule.Planner
	reporter *report.Reporter
	catalog  *factory.Catalog
	validate *validator.Validate
}

// NewHandler creates a handler with all dependencies wired to the store.
func NewHandler(store roster.Store, service *roster.Service) *Handler {
	return &Handler{
		store:    store,
		service:  service,
		planner:  schedule.NewPlanner(store),
		reporter: report.NewReporter(store),
		catalog:  factory.DefaultCatalog(),
		validate: validator.New(),
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// writeDomainError maps roster errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case roster.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case roster.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		log.Printf("[API] Internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// decodeAndValidate decodes the request body into v and runs validation.
// On failure it writes the error response and returns false.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err.Error())
		return false
	}
	return true
}

// asOfParam reads the optional as_of query parameter. A missing or
// malformed value yields the zero Day, which resolveAsOf and the
// service both substitute with the current day.
func asOfParam(r *http.Request) billing.Day {
	return billing.ParseDay(r.URL.Query().Get("as_of"))
}

// resolveAsOf substitutes today for the zero day so response envelopes
// echo the day the engines actually used.
func resolveAsOf(asOf billing.Day) billing.Day {
	if asOf.IsZero() {
		return billing.Today()
	}
	return asOf
}

// =============================================================================
// STUDENTS
// =============================================================================

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.store.ListStudents(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]StudentDTO, len(students))
	for i, s := range students {
		dtos[i] = toStudentDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	st, err := h.service.CreateStudent(r.Context(), roster.Student{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStudentDTO(*st))
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id := billing.StudentID(chi.URLParam(r, "studentID"))
	st, err := h.store.GetStudent(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(*st))
}

func (h *Handler) ListStudentPasses(w http.ResponseWriter, r *http.Request) {
	id := billing.StudentID(chi.URLParam(r, "studentID"))
	if _, err := h.store.GetStudent(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	passes, err := h.store.ListPasses(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PassDTO, len(passes))
	for i, p := range passes {
		dtos[i] = toPassDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PurchasePass sells a pass to a student, either from a catalog plan or
// with explicit terms.
func (h *Handler) PurchasePass(w http.ResponseWriter, r *http.Request) {
	studentID := billing.StudentID(chi.URLParam(r, "studentID"))
	var req PurchasePassRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	var in roster.PurchaseInput
	if req.PlanID != "" {
		plan, err := h.catalog.Get(req.PlanID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		in = plan.Materialize(studentID, billing.GroupID(req.GroupID), billing.ParseDay(req.PurchaseDate))
	} else {
		price, err := decimal.NewFromString(req.Price)
		if err != nil || price.IsNegative() {
			writeError(w, http.StatusBadRequest, "invalid price", req.Price)
			return
		}
		in = roster.PurchaseInput{
			StudentID:    studentID,
			GroupID:      billing.GroupID(req.GroupID),
			PurchaseDate: billing.ParseDay(req.PurchaseDate),
			ExpiryDate:   billing.ParseDay(req.ExpiryDate),
			DurationDays: req.DurationDays,
			LessonsTotal: req.LessonsTotal,
			Price:        price,
			Consecutive:  req.Consecutive,
		}
	}

	pass, err := h.service.PurchasePass(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPassDTO(*pass))
}

// =============================================================================
// ENGINE FRONT DOORS
// =============================================================================

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	studentID := billing.StudentID(chi.URLParam(r, "studentID"))
	groupID := billing.GroupID(chi.URLParam(r, "groupID"))
	if _, err := h.store.GetStudent(r.Context(), studentID); err != nil {
		writeDomainError(w, err)
		return
	}
	asOf := asOfParam(r)
	res, err := h.service.BalanceAudit(r.Context(), studentID, groupID, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(studentID, groupID, resolveAsOf(asOf), res))
}

func (h *Handler) GetRevenue(w http.ResponseWriter, r *http.Request) {
	studentID := billing.StudentID(chi.URLParam(r, "studentID"))
	groupID := billing.GroupID(chi.URLParam(r, "groupID"))
	if _, err := h.store.GetStudent(r.Context(), studentID); err != nil {
		writeDomainError(w, err)
		return
	}
	asOf := asOfParam(r)
	res, err := h.service.RevenueAllocation(r.Context(), studentID, groupID, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	lessons, err := h.store.ListLessons(r.Context(), groupID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRevenueDTO(studentID, groupID, resolveAsOf(asOf), lessons, res))
}

func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	studentID := billing.StudentID(chi.URLParam(r, "studentID"))
	groupID := billing.GroupID(chi.URLParam(r, "groupID"))
	if _, err := h.store.GetStudent(r.Context(), studentID); err != nil {
		writeDomainError(w, err)
		return
	}
	st, err := h.reporter.StudentStatement(r.Context(), studentID, groupID, resolveAsOf(asOfParam(r)))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(st))
}

// =============================================================================
// GROUPS
// =============================================================================

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.store.ListGroups(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]GroupDTO, len(groups))
	for i, g := range groups {
		dtos[i] = toGroupDTO(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	g, err := h.service.CreateGroup(r.Context(), roster.Group{
		Name:    req.Name,
		Subject: req.Subject,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupDTO(*g))
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id := billing.GroupID(chi.URLParam(r, "groupID"))
	g, err := h.store.GetGroup(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupDTO(*g))
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id := billing.GroupID(chi.URLParam(r, "groupID"))
	if _, err := h.store.GetGroup(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	members, err := h.store.ListMembers(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]MembershipDTO, len(members))
	for i, m := range members {
		dtos[i] = toMembershipDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID := billing.GroupID(chi.URLParam(r, "groupID"))
	var req AddMemberRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	m, err := h.service.AddMember(r.Context(), billing.StudentID(req.StudentID), groupID, billing.ParseDay(req.JoinedOn))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMembershipDTO(*m))
}

// =============================================================================
// SCHEDULE
// =============================================================================

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	id := billing.GroupID(chi.URLParam(r, "groupID"))
	if _, err := h.store.GetGroup(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	slots, err := h.store.ListSlots(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]SlotDTO, len(slots))
	for i, s := range slots {
		dtos[i] = toSlotDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AddSlot(w http.ResponseWriter, r *http.Request) {
	groupID := billing.GroupID(chi.URLParam(r, "groupID"))
	if _, err := h.store.GetGroup(r.Context(), groupID); err != nil {
		writeDomainError(w, err)
		return
	}
	var req AddSlotRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	slot := roster.ScheduleSlot{
		ID:              uuid.NewString(),
		GroupID:         groupID,
		Weekday:         time.Weekday(req.Weekday),
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
	}
	if err := h.store.AddSlot(r.Context(), slot); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotDTO(slot))
}

// ExpandSchedule materializes weekly slots into lessons over a range.
func (h *Handler) ExpandSchedule(w http.ResponseWriter, r *http.Request) {
	groupID := billing.GroupID(chi.URLParam(r, "groupID"))
	var req ExpandScheduleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	created, err := h.planner.ExpandRange(r.Context(), groupID, billing.ParseDay(req.From), billing.ParseDay(req.To))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLessonDTOs(created))
}

func (h *Handler) ListLessons(w http.ResponseWriter, r *http.Request) {
	id := billing.GroupID(chi.URLParam(r, "groupID"))
	if _, err := h.store.GetGroup(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	lessons, err := h.store.ListLessons(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLessonDTOs(lessons))
}

func (h *Handler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	groupID := billing.GroupID(chi.URLParam(r, "groupID"))
	var req CreateLessonRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	lesson, err := h.service.CreateLesson(r.Context(), groupID, billing.ParseDay(req.Date), req.Time, req.DurationMinutes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLessonDTO(*lesson))
}

// GroupRevenueReport totals allocated revenue over a lesson-date range.
// Query: from, to (required), as_of (optional).
func (h *Handler) GroupRevenueReport(w http.ResponseWriter, r *http.Request) {
	groupID := billing.GroupID(chi.URLParam(r, "groupID"))
	from := billing.ParseDay(r.URL.Query().Get("from"))
	to := billing.ParseDay(r.URL.Query().Get("to"))
	if from.IsZero() || to.IsZero() {
		writeError(w, http.StatusBadRequest, "from and to query parameters are required (YYYY-MM-DD)", nil)
		return
	}
	if _, err := h.store.GetGroup(r.Context(), groupID); err != nil {
		writeDomainError(w, err)
		return
	}
	rep, err := h.reporter.GroupRevenue(r.Context(), groupID, from, to, resolveAsOf(asOfParam(r)))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupRevenueDTO(rep))
}

// =============================================================================
// LESSONS
// =============================================================================

func (h *Handler) GetLesson(w http.ResponseWriter, r *http.Request) {
	id := billing.LessonID(chi.URLParam(r, "lessonID"))
	lesson, err := h.store.GetLesson(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLessonDTO(*lesson))
}

func (h *Handler) CancelLesson(w http.ResponseWriter, r *http.Request) {
	id := billing.LessonID(chi.URLParam(r, "lessonID"))
	if err := h.service.CancelLesson(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	lesson, err := h.store.GetLesson(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLessonDTO(*lesson))
}

func (h *Handler) RescheduleLesson(w http.ResponseWriter, r *http.Request) {
	id := billing.LessonID(chi.URLParam(r, "lessonID"))
	var req RescheduleLessonRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.service.RescheduleLesson(r.Context(), id, billing.ParseDay(req.Date), req.Time); err != nil {
		writeDomainError(w, err)
		return
	}
	lesson, err := h.store.GetLesson(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLessonDTO(*lesson))
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	id := billing.LessonID(chi.URLParam(r, "lessonID"))
	if _, err := h.store.GetLesson(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	marks, err := h.store.ListAttendanceByLesson(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]AttendanceDTO, len(marks))
	for i, m := range marks {
		dtos[i] = AttendanceDTO{
			LessonID:  string(m.LessonID),
			StudentID: string(m.StudentID),
			Status:    string(m.Status),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	lessonID := billing.LessonID(chi.URLParam(r, "lessonID"))
	var req MarkAttendanceRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	err := h.service.MarkAttendance(r.Context(), lessonID, billing.StudentID(req.StudentID), billing.AttendanceStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AttendanceDTO{
		LessonID:  string(lessonID),
		StudentID: req.StudentID,
		Status:    req.Status,
	})
}

func (h *Handler) UnmarkAttendance(w http.ResponseWriter, r *http.Request) {
	lessonID := billing.LessonID(chi.URLParam(r, "lessonID"))
	studentID := billing.StudentID(chi.URLParam(r, "studentID"))
	if err := h.service.UnmarkAttendance(r.Context(), lessonID, studentID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewAttendance runs both engines as if the mark were stored,
// without persisting anything.
func (h *Handler) PreviewAttendance(w http.ResponseWriter, r *http.Request) {
	lessonID := billing.LessonID(chi.URLParam(r, "lessonID"))
	var req MarkAttendanceRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	lesson, err := h.store.GetLesson(r.Context(), lessonID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	asOf := resolveAsOf(asOfParam(r))
	studentID := billing.StudentID(req.StudentID)
	preview, err := h.service.PreviewMark(r.Context(), lessonID, studentID, billing.AttendanceStatus(req.Status), asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	lessons, err := h.store.ListLessons(r.Context(), lesson.GroupID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewDTO{
		Audit:   toBalanceDTO(studentID, lesson.GroupID, asOf, preview.Audit),
		Revenue: toRevenueDTO(studentID, lesson.GroupID, asOf, lessons, preview.Revenue),
	})
}

// =============================================================================
// PASSES
// =============================================================================

func (h *Handler) GetPass(w http.ResponseWriter, r *http.Request) {
	id := billing.PassID(chi.URLParam(r, "passID"))
	pass, err := h.store.GetPass(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPassDTO(*pass))
}

func (h *Handler) ArchivePass(w http.ResponseWriter, r *http.Request) {
	id := billing.PassID(chi.URLParam(r, "passID"))
	if err := h.service.ArchivePass(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	pass, err := h.store.GetPass(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPassDTO(*pass))
}

// ExpirePasses archives every active pass past its expiry. The
// scheduler runs this automatically; this endpoint triggers it on
// demand.
func (h *Handler) ExpirePasses(w http.ResponseWriter, r *http.Request) {
	asOf := resolveAsOf(asOfParam(r))
	archived, err := h.service.ExpirePasses(r.Context(), asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExpirePassesResponse{Archived: archived, AsOf: asOf.String()})
}

// =============================================================================
// PLANS
// =============================================================================

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans := h.catalog.List()
	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = PlanDTO{PlanJSON: factory.ToJSON(p)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.catalog.Get(chi.URLParam(r, "planID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PlanDTO{PlanJSON: factory.ToJSON(plan)})
}

// =============================================================================
// ADMIN
// =============================================================================

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
