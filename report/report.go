/*
Package report aggregates engine output into the summaries the studio
owner actually reads: recognized vs estimated revenue per group, and
per-student statements combining audit dispositions with lesson costs.

PURPOSE:
  The engines answer per-student questions. Reports fan out over a
  group's roster, run both engines per member, and fold the results.
  Like the engines, reports take an explicit as-of day so a month can
  be re-reported long after it closed.
*/
package report

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/atelier/studio-engine/billing"
	"github.com/atelier/studio-engine/roster"
)

// Reporter builds summaries from stored records.
type Reporter struct {
	store roster.Store
}

func NewReporter(store roster.Store) *Reporter {
	return &Reporter{store: store}
}

// =============================================================================
// GROUP REVENUE
// =============================================================================

// StudentRevenueLine is one member's contribution to a group total.
type StudentRevenueLine struct {
	StudentID  billing.StudentID
	Lessons    int
	Recognized decimal.Decimal
	Estimated  decimal.Decimal
}

// GroupRevenueReport totals allocated revenue for a group over a
// lesson-date range.
type GroupRevenueReport struct {
	GroupID    billing.GroupID
	From       billing.Day
	To         billing.Day
	Recognized decimal.Decimal
	Estimated  decimal.Decimal
	PerStudent []StudentRevenueLine
}

// Total is recognized plus estimated revenue.
func (r GroupRevenueReport) Total() decimal.Decimal {
	return r.Recognized.Add(r.Estimated)
}

// GroupRevenue runs the revenue engine for every member of the group
// and sums allocations whose lesson date falls in [from, to] inclusive.
func (rp *Reporter) GroupRevenue(ctx context.Context, groupID billing.GroupID, from, to, asOf billing.Day) (*GroupRevenueReport, error) {
	if to.Before(from) {
		return nil, roster.ErrInvalidRange
	}
	members, err := rp.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	lessons, err := rp.store.ListLessons(ctx, groupID)
	if err != nil {
		return nil, err
	}
	lessonDate := make(map[billing.LessonID]billing.Day, len(lessons))
	for _, l := range lessons {
		lessonDate[l.ID] = l.Date
	}

	out := &GroupRevenueReport{GroupID: groupID, From: from, To: to}
	seen := make(map[billing.StudentID]bool)
	for _, m := range members {
		if seen[m.StudentID] {
			continue
		}
		seen[m.StudentID] = true

		result, err := rp.studentRevenue(ctx, m.StudentID, groupID, lessons, asOf)
		if err != nil {
			return nil, err
		}

		line := StudentRevenueLine{StudentID: m.StudentID}
		for lessonID, item := range result {
			d := lessonDate[lessonID]
			if d.Before(from) || to.Before(d) {
				continue
			}
			line.Lessons++
			if item.Estimated {
				line.Estimated = line.Estimated.Add(item.Cost)
			} else {
				line.Recognized = line.Recognized.Add(item.Cost)
			}
		}
		if line.Lessons == 0 {
			continue
		}
		out.PerStudent = append(out.PerStudent, line)
		out.Recognized = out.Recognized.Add(line.Recognized)
		out.Estimated = out.Estimated.Add(line.Estimated)
	}
	sortLines(out.PerStudent)
	return out, nil
}

func (rp *Reporter) studentRevenue(ctx context.Context, studentID billing.StudentID, groupID billing.GroupID, lessons []billing.Lesson, asOf billing.Day) (billing.RevenueResult, error) {
	passes, err := rp.store.ListPasses(ctx, studentID)
	if err != nil {
		return nil, err
	}
	attendance, err := rp.store.ListAttendanceByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return billing.AllocateRevenue(billing.AuditInput{
		StudentID:  studentID,
		GroupID:    groupID,
		Passes:     passes,
		Lessons:    lessons,
		Attendance: attendance,
		AsOf:       asOf,
	}), nil
}

func sortLines(lines []StudentRevenueLine) {
	for i := 1; i < len(lines); i++ {
		for j := i; j > 0 && lines[j].StudentID < lines[j-1].StudentID; j-- {
			lines[j], lines[j-1] = lines[j-1], lines[j]
		}
	}
}

// =============================================================================
// STUDENT STATEMENT
// =============================================================================

// StatementLine merges one lesson's audit disposition with its cost.
type StatementLine struct {
	LessonID billing.LessonID
	Date     billing.Day
	Time     string
	Counted  bool
	Reason   billing.AuditReason
	// Cost fields are zero valued when the revenue engine allocated
	// nothing to this lesson.
	Cost      decimal.Decimal
	Equation  string
	Estimated bool
}

// Statement is the full per-student view for one group.
type Statement struct {
	StudentID billing.StudentID
	GroupID   billing.GroupID
	AsOf      billing.Day
	Balance   int
	Owed      int
	Lines     []StatementLine
}

// StudentStatement runs both engines and merges their output per lesson,
// ordered chronologically.
func (rp *Reporter) StudentStatement(ctx context.Context, studentID billing.StudentID, groupID billing.GroupID, asOf billing.Day) (*Statement, error) {
	lessons, err := rp.store.ListLessons(ctx, groupID)
	if err != nil {
		return nil, err
	}
	passes, err := rp.store.ListPasses(ctx, studentID)
	if err != nil {
		return nil, err
	}
	attendance, err := rp.store.ListAttendanceByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	in := billing.AuditInput{
		StudentID:  studentID,
		GroupID:    groupID,
		Passes:     passes,
		Lessons:    lessons,
		Attendance: attendance,
		AsOf:       asOf,
	}
	audit := billing.Audit(in)
	revenue := billing.AllocateRevenue(in)

	st := &Statement{
		StudentID: studentID,
		GroupID:   groupID,
		AsOf:      asOf,
		Balance:   audit.Balance,
		Owed:      audit.LessonsOwed,
	}
	for _, e := range audit.Entries {
		line := StatementLine{
			LessonID: e.LessonID,
			Date:     e.LessonDate,
			Time:     e.LessonTime,
			Counted:  e.Status == billing.EntryCounted,
			Reason:   e.Reason,
		}
		if item, ok := revenue[e.LessonID]; ok {
			line.Cost = item.Cost
			line.Equation = item.Equation
			line.Estimated = item.Estimated
		}
		st.Lines = append(st.Lines, line)
	}
	return st, nil
}
