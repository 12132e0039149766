// Package memory provides an in-memory roster.Store (for testing/dev).
package memory

import (
	"context"
	"sync"

	"github.com/atelier/studio-engine/billing"
	"github.com/atelier/studio-engine/roster"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu          sync.RWMutex
	students    map[billing.StudentID]roster.Student
	groups      map[billing.GroupID]roster.Group
	memberships []roster.Membership
	slots       []roster.ScheduleSlot
	lessons     map[billing.LessonID]billing.Lesson
	passes      map[billing.PassID]billing.Pass
	attendance  map[attKey]billing.Attendance

	// insertion counters keep List* output in creation order without
	// storing timestamps on every record
	lessonSeq map[billing.LessonID]int
	passSeq   map[billing.PassID]int
	seq       int
}

type attKey struct {
	LessonID  billing.LessonID
	StudentID billing.StudentID
}

var _ roster.Store = (*Store)(nil)

func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.students = make(map[billing.StudentID]roster.Student)
	s.groups = make(map[billing.GroupID]roster.Group)
	s.memberships = nil
	s.slots = nil
	s.lessons = make(map[billing.LessonID]billing.Lesson)
	s.passes = make(map[billing.PassID]billing.Pass)
	s.attendance = make(map[attKey]billing.Attendance)
	s.lessonSeq = make(map[billing.LessonID]int)
	s.passSeq = make(map[billing.PassID]int)
	s.seq = 0
}

// Reset wipes everything. Dev/test only.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// =============================================================================
// STUDENTS
// =============================================================================

func (s *Store) CreateStudent(_ context.Context, st roster.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[st.ID] = st
	return nil
}

func (s *Store) GetStudent(_ context.Context, id billing.StudentID) (*roster.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return nil, roster.ErrStudentNotFound
	}
	return &st, nil
}

func (s *Store) ListStudents(_ context.Context) ([]roster.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]roster.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, st)
	}
	return out, nil
}

// =============================================================================
// GROUPS AND MEMBERSHIPS
// =============================================================================

func (s *Store) CreateGroup(_ context.Context, g roster.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
	return nil
}

func (s *Store) GetGroup(_ context.Context, id billing.GroupID) (*roster.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, roster.ErrGroupNotFound
	}
	return &g, nil
}

func (s *Store) ListGroups(_ context.Context) ([]roster.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]roster.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	return out, nil
}

func (s *Store) AddMember(_ context.Context, m roster.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships = append(s.memberships, m)
	return nil
}

func (s *Store) ListMembers(_ context.Context, groupID billing.GroupID) ([]roster.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []roster.Membership
	for _, m := range s.memberships {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	return out, nil
}

// =============================================================================
// SCHEDULE SLOTS
// =============================================================================

func (s *Store) AddSlot(_ context.Context, slot roster.ScheduleSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = append(s.slots, slot)
	return nil
}

func (s *Store) ListSlots(_ context.Context, groupID billing.GroupID) ([]roster.ScheduleSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []roster.ScheduleSlot
	for _, slot := range s.slots {
		if slot.GroupID == groupID {
			out = append(out, slot)
		}
	}
	return out, nil
}

// =============================================================================
// LESSONS
// =============================================================================

func (s *Store) CreateLesson(_ context.Context, l billing.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[l.ID]; !ok {
		s.seq++
		s.lessonSeq[l.ID] = s.seq
	}
	s.lessons[l.ID] = l
	return nil
}

func (s *Store) GetLesson(_ context.Context, id billing.LessonID) (*billing.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lessons[id]
	if !ok {
		return nil, roster.ErrLessonNotFound
	}
	return &l, nil
}

func (s *Store) UpdateLesson(_ context.Context, l billing.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[l.ID]; !ok {
		return roster.ErrLessonNotFound
	}
	s.lessons[l.ID] = l
	return nil
}

func (s *Store) ListLessons(_ context.Context, groupID billing.GroupID) ([]billing.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []billing.Lesson
	for _, l := range s.lessons {
		if l.GroupID == groupID {
			out = append(out, l)
		}
	}
	s.sortByCreation(out)
	return out, nil
}

func (s *Store) sortByCreation(out []billing.Lesson) {
	// insertion sort; lesson lists are small and mostly ordered already
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && s.lessonSeq[out[j].ID] < s.lessonSeq[out[j-1].ID]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
}

// =============================================================================
// PASSES
// =============================================================================

func (s *Store) CreatePass(_ context.Context, p billing.Pass) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.passes[p.ID]; !ok {
		s.seq++
		s.passSeq[p.ID] = s.seq
	}
	s.passes[p.ID] = p
	return nil
}

func (s *Store) GetPass(_ context.Context, id billing.PassID) (*billing.Pass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.passes[id]
	if !ok {
		return nil, roster.ErrPassNotFound
	}
	return &p, nil
}

func (s *Store) ListPasses(_ context.Context, studentID billing.StudentID) ([]billing.Pass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []billing.Pass
	for _, p := range s.passes {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	s.sortPassesByCreation(out)
	return out, nil
}

func (s *Store) ListActivePasses(_ context.Context) ([]billing.Pass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []billing.Pass
	for _, p := range s.passes {
		if p.Status == billing.PassActive {
			out = append(out, p)
		}
	}
	s.sortPassesByCreation(out)
	return out, nil
}

func (s *Store) sortPassesByCreation(out []billing.Pass) {
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && s.passSeq[out[j].ID] < s.passSeq[out[j-1].ID]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
}

func (s *Store) ArchivePass(_ context.Context, id billing.PassID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passes[id]
	if !ok {
		return roster.ErrPassNotFound
	}
	p.Status = billing.PassArchived
	s.passes[id] = p
	return nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (s *Store) UpsertAttendance(_ context.Context, a billing.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendance[attKey{LessonID: a.LessonID, StudentID: a.StudentID}] = a
	return nil
}

func (s *Store) DeleteAttendance(_ context.Context, lessonID billing.LessonID, studentID billing.StudentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := attKey{LessonID: lessonID, StudentID: studentID}
	if _, ok := s.attendance[k]; !ok {
		return roster.ErrAttendanceNotFound
	}
	delete(s.attendance, k)
	return nil
}

func (s *Store) ListAttendanceByStudent(_ context.Context, studentID billing.StudentID) ([]billing.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []billing.Attendance
	for _, a := range s.attendance {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) ListAttendanceByLesson(_ context.Context, lessonID billing.LessonID) ([]billing.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []billing.Attendance
	for _, a := range s.attendance {
		if a.LessonID == lessonID {
			out = append(out, a)
		}
	}
	return out, nil
}
