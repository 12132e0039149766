/*
expand.go - Weekly slot expansion

PURPOSE:
  Turns a group's recurring weekly slots ("Tuesdays 17:00") into
  concrete lesson occurrences over a date range. Expansion is
  idempotent: a (date, time) the group already has a lesson for is
  skipped, so re-running over an overlapping range never duplicates.

  Occurrence generation is pure (Occurrences); the Planner wraps it
  with store access and persistence.
*/
package schedule

import (
	"context"

	"github.com/google/uuid"

	"github.com/atelier/studio-engine/billing"
	"github.com/atelier/studio-engine/roster"
)

// Occurrence is one generated (not yet persisted) lesson slot instance.
type Occurrence struct {
	Date            billing.Day
	Time            string
	DurationMinutes int
}

// Occurrences expands the slots over [from, to] inclusive, in
// chronological order. A zero-length or inverted range yields nothing.
func Occurrences(slots []roster.ScheduleSlot, from, to billing.Day) []Occurrence {
	var out []Occurrence
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		for _, slot := range slots {
			if slot.Weekday != d.Weekday() {
				continue
			}
			out = append(out, Occurrence{
				Date:            d,
				Time:            slot.StartTime,
				DurationMinutes: slot.DurationMinutes,
			})
		}
	}
	return out
}

// Planner persists expanded occurrences as lessons.
type Planner struct {
	store roster.Store
}

func NewPlanner(store roster.Store) *Planner {
	return &Planner{store: store}
}

// ExpandRange generates lessons for every slot occurrence of the group
// in [from, to] inclusive, skipping dates already scheduled. Returns
// the lessons it created.
func (p *Planner) ExpandRange(ctx context.Context, groupID billing.GroupID, from, to billing.Day) ([]billing.Lesson, error) {
	if to.Before(from) {
		return nil, roster.ErrInvalidRange
	}
	if _, err := p.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	slots, err := p.store.ListSlots(ctx, groupID)
	if err != nil {
		return nil, err
	}
	existing, err := p.store.ListLessons(ctx, groupID)
	if err != nil {
		return nil, err
	}

	taken := make(map[occKey]bool, len(existing))
	for _, l := range existing {
		taken[occKey{date: l.Date.String(), time: l.Time}] = true
	}

	var created []billing.Lesson
	for _, occ := range Occurrences(slots, from, to) {
		k := occKey{date: occ.Date.String(), time: occ.Time}
		if taken[k] {
			continue
		}
		taken[k] = true
		lesson := billing.Lesson{
			ID:              billing.LessonID(uuid.NewString()),
			GroupID:         groupID,
			Date:            occ.Date,
			Time:            occ.Time,
			DurationMinutes: occ.DurationMinutes,
			Status:          billing.LessonUpcoming,
		}
		if err := p.store.CreateLesson(ctx, lesson); err != nil {
			return created, err
		}
		created = append(created, lesson)
	}
	return created, nil
}

type occKey struct {
	date string
	time string
}
