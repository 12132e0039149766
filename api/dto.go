/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  them through the shared validator before touching the domain layer.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON type
*/
package api

import (
	"time"

	"github.com/atelier/studio-engine/billing"
	"github.com/atelier/studio-engine/factory"
	"github.com/atelier/studio-engine/report"
	"github.com/atelier/studio-engine/roster"
)

// =============================================================================
// STUDENTS AND GROUPS
// =============================================================================

// StudentDTO represents a student in API responses.
type StudentDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateStudentRequest is the request to enroll a student.
type CreateStudentRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty"`
}

// GroupDTO represents a teaching group.
type GroupDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Subject   string `json:"subject,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateGroupRequest is the request to create a group.
type CreateGroupRequest struct {
	Name    string `json:"name" validate:"required"`
	Subject string `json:"subject,omitempty"`
}

// AddMemberRequest enrolls a student into a group.
type AddMemberRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	JoinedOn  string `json:"joined_on,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// MembershipDTO represents a group membership.
type MembershipDTO struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	GroupID   string `json:"group_id"`
	JoinedOn  string `json:"joined_on"`
	LeftOn    string `json:"left_on,omitempty"`
}

// =============================================================================
// SCHEDULE
// =============================================================================

// AddSlotRequest adds a weekly slot to a group.
type AddSlotRequest struct {
	// Weekday follows time.Weekday numbering: 0 = Sunday.
	Weekday         int    `json:"weekday" validate:"gte=0,lte=6"`
	StartTime       string `json:"start_time" validate:"required,datetime=15:04"`
	DurationMinutes int    `json:"duration_minutes" validate:"gt=0"`
}

// SlotDTO represents a weekly slot.
type SlotDTO struct {
	ID              string `json:"id"`
	GroupID         string `json:"group_id"`
	Weekday         int    `json:"weekday"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// ExpandScheduleRequest expands a group's slots over a date range.
type ExpandScheduleRequest struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// LESSONS AND ATTENDANCE
// =============================================================================

// LessonDTO represents a lesson occurrence.
type LessonDTO struct {
	ID              string `json:"id"`
	GroupID         string `json:"group_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
}

// CreateLessonRequest adds a single occurrence manually.
type CreateLessonRequest struct {
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string `json:"time" validate:"required,datetime=15:04"`
	DurationMinutes int    `json:"duration_minutes" validate:"gt=0"`
}

// RescheduleLessonRequest moves an occurrence.
type RescheduleLessonRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Time string `json:"time" validate:"required,datetime=15:04"`
}

// MarkAttendanceRequest records a mark for one student.
type MarkAttendanceRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absence_valid absence_invalid"`
}

// AttendanceDTO represents one stored mark.
type AttendanceDTO struct {
	LessonID  string `json:"lesson_id"`
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
}

// =============================================================================
// PASSES AND PLANS
// =============================================================================

// PassDTO represents a pass in API responses.
type PassDTO struct {
	ID           string `json:"id"`
	StudentID    string `json:"student_id"`
	GroupID      string `json:"group_id"`
	PurchaseDate string `json:"purchase_date"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
	LessonsTotal int    `json:"lessons_total"`
	Price        string `json:"price"`
	Consecutive  bool   `json:"consecutive"`
	Status       string `json:"status"`
}

// PurchasePassRequest buys a pass, either from a catalog plan or with
// explicit terms.
type PurchasePassRequest struct {
	GroupID      string `json:"group_id" validate:"required"`
	PlanID       string `json:"plan_id,omitempty"`
	PurchaseDate string `json:"purchase_date,omitempty" validate:"omitempty,datetime=2006-01-02"`

	// Explicit terms, used when PlanID is empty.
	LessonsTotal int    `json:"lessons_total,omitempty" validate:"required_without=PlanID,omitempty,gt=0"`
	Price        string `json:"price,omitempty" validate:"required_without=PlanID"`
	Consecutive  bool   `json:"consecutive,omitempty"`
	ExpiryDate   string `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DurationDays int    `json:"duration_days,omitempty" validate:"gte=0"`
}

// PlanDTO wraps a catalog plan.
type PlanDTO struct {
	factory.PlanJSON
}

// =============================================================================
// ENGINE OUTPUT
// =============================================================================

// AuditEntryDTO is one lesson's accounting disposition.
type AuditEntryDTO struct {
	LessonID         string `json:"lesson_id"`
	Date             string `json:"date"`
	Time             string `json:"time,omitempty"`
	AttendanceStatus string `json:"attendance_status,omitempty"`
	Status           string `json:"status"`
	Reason           string `json:"reason"`
	CoveredByPassID  string `json:"covered_by_pass_id,omitempty"`
}

// PassUsageDTO is the consumption ledger for one pass.
type PassUsageDTO struct {
	PassID       string `json:"pass_id"`
	LessonsUsed  int    `json:"lessons_used"`
	LessonsTotal int    `json:"lessons_total"`
	PurchaseDate string `json:"purchase_date"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
}

// UncoveredLessonDTO identifies a debt lesson.
type UncoveredLessonDTO struct {
	LessonID string `json:"lesson_id"`
	Date     string `json:"date"`
	GroupID  string `json:"group_id"`
}

// BalanceDTO is the full audit answer for one (student, group).
type BalanceDTO struct {
	StudentID        string               `json:"student_id"`
	GroupID          string               `json:"group_id"`
	AsOf             string               `json:"as_of"`
	Balance          int                  `json:"balance"`
	LessonsOwed      int                  `json:"lessons_owed"`
	LessonsCovered   int                  `json:"lessons_covered"`
	UncoveredLessons []UncoveredLessonDTO `json:"uncovered_lessons"`
	Entries          []AuditEntryDTO      `json:"audit_entries"`
	PassUsage        []PassUsageDTO       `json:"pass_usage"`
}

// RevenueItemDTO is the priced disposition of one lesson.
type RevenueItemDTO struct {
	LessonID   string `json:"lesson_id"`
	Cost       string `json:"cost"`
	Equation   string `json:"equation"`
	UsedPassID string `json:"used_pass_id,omitempty"`
	Estimated  bool   `json:"is_estimated"`
}

// RevenueDTO is the full allocation for one (student, group).
type RevenueDTO struct {
	StudentID string           `json:"student_id"`
	GroupID   string           `json:"group_id"`
	AsOf      string           `json:"as_of"`
	Items     []RevenueItemDTO `json:"items"`
}

// PreviewDTO combines both engines' what-if output for one mark.
type PreviewDTO struct {
	Audit   BalanceDTO `json:"audit"`
	Revenue RevenueDTO `json:"revenue"`
}

// =============================================================================
// REPORTS
// =============================================================================

// StudentRevenueLineDTO is one member's contribution to a group total.
type StudentRevenueLineDTO struct {
	StudentID  string `json:"student_id"`
	Lessons    int    `json:"lessons"`
	Recognized string `json:"recognized"`
	Estimated  string `json:"estimated"`
}

// GroupRevenueDTO totals allocated revenue for a group over a range.
type GroupRevenueDTO struct {
	GroupID    string                  `json:"group_id"`
	From       string                  `json:"from"`
	To         string                  `json:"to"`
	Recognized string                  `json:"recognized"`
	Estimated  string                  `json:"estimated"`
	Total      string                  `json:"total"`
	PerStudent []StudentRevenueLineDTO `json:"per_student"`
}

// StatementLineDTO merges audit and revenue for one lesson.
type StatementLineDTO struct {
	LessonID  string `json:"lesson_id"`
	Date      string `json:"date"`
	Time      string `json:"time,omitempty"`
	Counted   bool   `json:"counted"`
	Reason    string `json:"reason"`
	Cost      string `json:"cost,omitempty"`
	Equation  string `json:"equation,omitempty"`
	Estimated bool   `json:"is_estimated,omitempty"`
}

// StatementDTO is the per-student statement for one group.
type StatementDTO struct {
	StudentID string             `json:"student_id"`
	GroupID   string             `json:"group_id"`
	AsOf      string             `json:"as_of"`
	Balance   int                `json:"balance"`
	Owed      int                `json:"owed"`
	Lines     []StatementLineDTO `json:"lines"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ExpirePassesResponse reports an expiry sweep.
type ExpirePassesResponse struct {
	Archived int    `json:"archived"`
	AsOf     string `json:"as_of"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toStudentDTO(s roster.Student) StudentDTO {
	return StudentDTO{
		ID:        string(s.ID),
		Name:      s.Name,
		Email:     s.Email,
		Phone:     s.Phone,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

func toGroupDTO(g roster.Group) GroupDTO {
	return GroupDTO{
		ID:        string(g.ID),
		Name:      g.Name,
		Subject:   g.Subject,
		CreatedAt: g.CreatedAt.Format(time.RFC3339),
	}
}

func toMembershipDTO(m roster.Membership) MembershipDTO {
	dto := MembershipDTO{
		ID:        m.ID,
		StudentID: string(m.StudentID),
		GroupID:   string(m.GroupID),
		JoinedOn:  m.JoinedOn.String(),
	}
	if !m.LeftOn.IsZero() {
		dto.LeftOn = m.LeftOn.String()
	}
	return dto
}

func toSlotDTO(s roster.ScheduleSlot) SlotDTO {
	return SlotDTO{
		ID:              s.ID,
		GroupID:         string(s.GroupID),
		Weekday:         int(s.Weekday),
		StartTime:       s.StartTime,
		DurationMinutes: s.DurationMinutes,
	}
}

func toLessonDTO(l billing.Lesson) LessonDTO {
	return LessonDTO{
		ID:              string(l.ID),
		GroupID:         string(l.GroupID),
		Date:            l.Date.String(),
		Time:            l.Time,
		DurationMinutes: l.DurationMinutes,
		Status:          string(l.Status),
	}
}

func toLessonDTOs(lessons []billing.Lesson) []LessonDTO {
	dtos := make([]LessonDTO, len(lessons))
	for i, l := range lessons {
		dtos[i] = toLessonDTO(l)
	}
	return dtos
}

func toPassDTO(p billing.Pass) PassDTO {
	dto := PassDTO{
		ID:           string(p.ID),
		StudentID:    string(p.StudentID),
		GroupID:      string(p.GroupID),
		PurchaseDate: p.PurchaseDate.String(),
		LessonsTotal: p.LessonsTotal,
		Price:        p.Price.String(),
		Consecutive:  p.Consecutive,
		Status:       string(p.Status),
	}
	if !p.ExpiryDate.IsZero() {
		dto.ExpiryDate = p.ExpiryDate.String()
	}
	return dto
}

func toBalanceDTO(studentID billing.StudentID, groupID billing.GroupID, asOf billing.Day, res billing.AuditResult) BalanceDTO {
	dto := BalanceDTO{
		StudentID:        string(studentID),
		GroupID:          string(groupID),
		AsOf:             asOf.String(),
		Balance:          res.Balance,
		LessonsOwed:      res.LessonsOwed,
		LessonsCovered:   res.LessonsCovered,
		UncoveredLessons: []UncoveredLessonDTO{},
		Entries:          []AuditEntryDTO{},
		PassUsage:        []PassUsageDTO{},
	}
	for _, u := range res.UncoveredLessons {
		dto.UncoveredLessons = append(dto.UncoveredLessons, UncoveredLessonDTO{
			LessonID: string(u.LessonID),
			Date:     u.Date.String(),
			GroupID:  string(u.GroupID),
		})
	}
	for _, e := range res.Entries {
		dto.Entries = append(dto.Entries, AuditEntryDTO{
			LessonID:         string(e.LessonID),
			Date:             e.LessonDate.String(),
			Time:             e.LessonTime,
			AttendanceStatus: string(e.AttendanceStatus),
			Status:           string(e.Status),
			Reason:           string(e.Reason),
			CoveredByPassID:  string(e.CoveredByPassID),
		})
	}
	for _, u := range res.PassUsage {
		usage := PassUsageDTO{
			PassID:       string(u.PassID),
			LessonsUsed:  u.LessonsUsed,
			LessonsTotal: u.LessonsTotal,
			PurchaseDate: u.PurchaseDate.String(),
		}
		if !u.ExpiryDate.IsZero() {
			usage.ExpiryDate = u.ExpiryDate.String()
		}
		dto.PassUsage = append(dto.PassUsage, usage)
	}
	return dto
}

// toRevenueDTO orders items by lesson so output is stable across calls.
func toRevenueDTO(studentID billing.StudentID, groupID billing.GroupID, asOf billing.Day, lessons []billing.Lesson, res billing.RevenueResult) RevenueDTO {
	dto := RevenueDTO{
		StudentID: string(studentID),
		GroupID:   string(groupID),
		AsOf:      asOf.String(),
		Items:     []RevenueItemDTO{},
	}
	for _, l := range lessons {
		item, ok := res[l.ID]
		if !ok {
			continue
		}
		dto.Items = append(dto.Items, RevenueItemDTO{
			LessonID:   string(l.ID),
			Cost:       item.Cost.String(),
			Equation:   item.Equation,
			UsedPassID: string(item.UsedPassID),
			Estimated:  item.Estimated,
		})
	}
	return dto
}

func toGroupRevenueDTO(r *report.GroupRevenueReport) GroupRevenueDTO {
	dto := GroupRevenueDTO{
		GroupID:    string(r.GroupID),
		From:       r.From.String(),
		To:         r.To.String(),
		Recognized: r.Recognized.String(),
		Estimated:  r.Estimated.String(),
		Total:      r.Total().String(),
		PerStudent: []StudentRevenueLineDTO{},
	}
	for _, line := range r.PerStudent {
		dto.PerStudent = append(dto.PerStudent, StudentRevenueLineDTO{
			StudentID:  string(line.StudentID),
			Lessons:    line.Lessons,
			Recognized: line.Recognized.String(),
			Estimated:  line.Estimated.String(),
		})
	}
	return dto
}

func toStatementDTO(st *report.Statement) StatementDTO {
	dto := StatementDTO{
		StudentID: string(st.StudentID),
		GroupID:   string(st.GroupID),
		AsOf:      st.AsOf.String(),
		Balance:   st.Balance,
		Owed:      st.Owed,
		Lines:     []StatementLineDTO{},
	}
	for _, line := range st.Lines {
		out := StatementLineDTO{
			LessonID:  string(line.LessonID),
			Date:      line.Date.String(),
			Time:      line.Time,
			Counted:   line.Counted,
			Reason:    string(line.Reason),
			Equation:  line.Equation,
			Estimated: line.Estimated,
		}
		if line.Equation != "" {
			out.Cost = line.Cost.String()
		}
		dto.Lines = append(dto.Lines, out)
	}
	return dto
}
