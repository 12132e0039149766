/*
Package sqlite provides a SQLite-backed implementation of roster.Store.

PURPOSE:
  Production persistence for all studio records. In production with
  PostgreSQL the same patterns apply - only minor SQL dialect
  differences.

KEY TABLES:
  students:       Enrolled students
  groups:         Teaching groups
  memberships:    Student-to-group links with join/leave dates
  schedule_slots: Weekly recurring slots per group
  lessons:        Concrete occurrences (never deleted, only cancelled)
  passes:         Immutable purchases; archiving is the only mutation
  attendance:     One mark per (lesson, student), upserted

MUTABILITY:
  Passes have no UPDATE path except the status flip in ArchivePass.
  Lessons are updated in place (cancel, reschedule) but never deleted.

DATES:
  Day-granularity values are stored as 'YYYY-MM-DD' text so SQLite's
  lexicographic ordering matches chronological ordering. Timestamps
  are RFC3339. Money is stored as decimal strings, never REAL.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened with WAL
  (Write-Ahead Logging) so readers don't block.

USAGE:
  store, err := sqlite.New("./data/studio.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - roster/store.go: Interface definition and contract notes
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/atelier/studio-engine/billing"
	"github.com/atelier/studio-engine/roster"
)

// Store implements roster.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ roster.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		subject TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memberships (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		joined_on TEXT NOT NULL,
		left_on TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_memberships_group
		ON memberships(group_id);
	CREATE INDEX IF NOT EXISTS idx_memberships_student
		ON memberships(student_id);

	CREATE TABLE IF NOT EXISTS schedule_slots (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		weekday INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_slots_group
		ON schedule_slots(group_id);

	CREATE TABLE IF NOT EXISTS lessons (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		status TEXT NOT NULL
	);

	-- Hot path: both engines load a full group's lessons in date order
	CREATE INDEX IF NOT EXISTS idx_lessons_group_date
		ON lessons(group_id, date, time);

	CREATE TABLE IF NOT EXISTS passes (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		purchase_date TEXT NOT NULL,
		expiry_date TEXT,
		lessons_total INTEGER NOT NULL,
		price TEXT NOT NULL,
		consecutive BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_passes_student
		ON passes(student_id, purchase_date);
	CREATE INDEX IF NOT EXISTS idx_passes_status
		ON passes(status);

	CREATE TABLE IF NOT EXISTS attendance (
		lesson_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		status TEXT NOT NULL,
		PRIMARY KEY (lesson_id, student_id)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_student
		ON attendance(student_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STUDENTS
// =============================================================================

func (s *Store) CreateStudent(ctx context.Context, st roster.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO students (id, name, email, phone, created_at) VALUES (?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Email, st.Phone, st.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetStudent(ctx context.Context, id billing.StudentID) (*roster.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st roster.Student
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, phone, created_at FROM students WHERE id = ?", id,
	).Scan(&st.ID, &st.Name, &st.Email, &st.Phone, &createdAt)
	if err == sql.ErrNoRows {
		return nil, roster.ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}
	st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &st, nil
}

func (s *Store) ListStudents(ctx context.Context) ([]roster.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, phone, created_at FROM students ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []roster.Student
	for rows.Next() {
		var st roster.Student
		var createdAt string
		if err := rows.Scan(&st.ID, &st.Name, &st.Email, &st.Phone, &createdAt); err != nil {
			return nil, err
		}
		st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		students = append(students, st)
	}
	return students, rows.Err()
}

// =============================================================================
// GROUPS AND MEMBERSHIPS
// =============================================================================

func (s *Store) CreateGroup(ctx context.Context, g roster.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (id, name, subject, created_at) VALUES (?, ?, ?, ?)`,
		g.ID, g.Name, g.Subject, g.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetGroup(ctx context.Context, id billing.GroupID) (*roster.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var g roster.Group
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, subject, created_at FROM groups WHERE id = ?", id,
	).Scan(&g.ID, &g.Name, &g.Subject, &createdAt)
	if err == sql.ErrNoRows {
		return nil, roster.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &g, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]roster.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, subject, created_at FROM groups ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []roster.Group
	for rows.Next() {
		var g roster.Group
		var createdAt string
		if err := rows.Scan(&g.ID, &g.Name, &g.Subject, &createdAt); err != nil {
			return nil, err
		}
		g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *Store) AddMember(ctx context.Context, m roster.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (id, student_id, group_id, joined_on, left_on) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.StudentID, m.GroupID, m.JoinedOn.String(), nullDay(m.LeftOn),
	)
	return err
}

func (s *Store) ListMembers(ctx context.Context, groupID billing.GroupID) ([]roster.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, group_id, joined_on, left_on FROM memberships WHERE group_id = ? ORDER BY joined_on ASC`,
		groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []roster.Membership
	for rows.Next() {
		var m roster.Membership
		var joined string
		var left sql.NullString
		if err := rows.Scan(&m.ID, &m.StudentID, &m.GroupID, &joined, &left); err != nil {
			return nil, err
		}
		m.JoinedOn = billing.ParseDay(joined)
		if left.Valid {
			m.LeftOn = billing.ParseDay(left.String)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// =============================================================================
// SCHEDULE SLOTS
// =============================================================================

func (s *Store) AddSlot(ctx context.Context, slot roster.ScheduleSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedule_slots (id, group_id, weekday, start_time, duration_minutes) VALUES (?, ?, ?, ?, ?)`,
		slot.ID, slot.GroupID, int(slot.Weekday), slot.StartTime, slot.DurationMinutes,
	)
	return err
}

func (s *Store) ListSlots(ctx context.Context, groupID billing.GroupID) ([]roster.ScheduleSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, weekday, start_time, duration_minutes FROM schedule_slots WHERE group_id = ? ORDER BY weekday, start_time`,
		groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []roster.ScheduleSlot
	for rows.Next() {
		var slot roster.ScheduleSlot
		var weekday int
		if err := rows.Scan(&slot.ID, &slot.GroupID, &weekday, &slot.StartTime, &slot.DurationMinutes); err != nil {
			return nil, err
		}
		slot.Weekday = time.Weekday(weekday)
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// =============================================================================
// LESSONS
// =============================================================================

func (s *Store) CreateLesson(ctx context.Context, l billing.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (id, group_id, date, time, duration_minutes, status) VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.GroupID, l.Date.String(), l.Time, l.DurationMinutes, l.Status,
	)
	return err
}

func (s *Store) GetLesson(ctx context.Context, id billing.LessonID) (*billing.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var l billing.Lesson
	var date string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, group_id, date, time, duration_minutes, status FROM lessons WHERE id = ?", id,
	).Scan(&l.ID, &l.GroupID, &date, &l.Time, &l.DurationMinutes, &l.Status)
	if err == sql.ErrNoRows {
		return nil, roster.ErrLessonNotFound
	}
	if err != nil {
		return nil, err
	}
	l.Date = billing.ParseDay(date)
	return &l, nil
}

func (s *Store) UpdateLesson(ctx context.Context, l billing.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE lessons SET date = ?, time = ?, duration_minutes = ?, status = ? WHERE id = ?`,
		l.Date.String(), l.Time, l.DurationMinutes, l.Status, l.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return roster.ErrLessonNotFound
	}
	return nil
}

func (s *Store) ListLessons(ctx context.Context, groupID billing.GroupID) ([]billing.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, date, time, duration_minutes, status FROM lessons WHERE group_id = ? ORDER BY date ASC, time ASC`,
		groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []billing.Lesson
	for rows.Next() {
		var l billing.Lesson
		var date string
		if err := rows.Scan(&l.ID, &l.GroupID, &date, &l.Time, &l.DurationMinutes, &l.Status); err != nil {
			return nil, err
		}
		l.Date = billing.ParseDay(date)
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// =============================================================================
// PASSES
// =============================================================================

func (s *Store) CreatePass(ctx context.Context, p billing.Pass) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO passes (id, student_id, group_id, purchase_date, expiry_date, lessons_total, price, consecutive, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.StudentID, p.GroupID, p.PurchaseDate.String(), nullDay(p.ExpiryDate),
		p.LessonsTotal, p.Price.String(), p.Consecutive, p.Status,
	)
	return err
}

func (s *Store) GetPass(ctx context.Context, id billing.PassID) (*billing.Pass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, group_id, purchase_date, expiry_date, lessons_total, price, consecutive, status
		 FROM passes WHERE id = ?`, id)
	p, err := scanPass(row)
	if err == sql.ErrNoRows {
		return nil, roster.ErrPassNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListPasses(ctx context.Context, studentID billing.StudentID) ([]billing.Pass, error) {
	return s.queryPasses(ctx,
		`SELECT id, student_id, group_id, purchase_date, expiry_date, lessons_total, price, consecutive, status
		 FROM passes WHERE student_id = ? ORDER BY purchase_date ASC`, studentID)
}

func (s *Store) ListActivePasses(ctx context.Context) ([]billing.Pass, error) {
	return s.queryPasses(ctx,
		`SELECT id, student_id, group_id, purchase_date, expiry_date, lessons_total, price, consecutive, status
		 FROM passes WHERE status = ? ORDER BY purchase_date ASC`, billing.PassActive)
}

func (s *Store) queryPasses(ctx context.Context, query string, args ...any) ([]billing.Pass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passes []billing.Pass
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, *p)
	}
	return passes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPass(row rowScanner) (*billing.Pass, error) {
	var p billing.Pass
	var purchase, price string
	var expiry sql.NullString
	err := row.Scan(&p.ID, &p.StudentID, &p.GroupID, &purchase, &expiry,
		&p.LessonsTotal, &price, &p.Consecutive, &p.Status)
	if err != nil {
		return nil, err
	}
	p.PurchaseDate = billing.ParseDay(purchase)
	if expiry.Valid {
		p.ExpiryDate = billing.ParseDay(expiry.String)
	}
	// A corrupt price row falls back to zero rather than failing reads.
	p.Price, _ = decimal.NewFromString(price)
	return &p, nil
}

func (s *Store) ArchivePass(ctx context.Context, id billing.PassID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE passes SET status = ? WHERE id = ?", billing.PassArchived, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return roster.ErrPassNotFound
	}
	return nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (s *Store) UpsertAttendance(ctx context.Context, a billing.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attendance (lesson_id, student_id, status) VALUES (?, ?, ?)
		 ON CONFLICT(lesson_id, student_id) DO UPDATE SET status = excluded.status`,
		a.LessonID, a.StudentID, a.Status,
	)
	return err
}

func (s *Store) DeleteAttendance(ctx context.Context, lessonID billing.LessonID, studentID billing.StudentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM attendance WHERE lesson_id = ? AND student_id = ?", lessonID, studentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return roster.ErrAttendanceNotFound
	}
	return nil
}

func (s *Store) ListAttendanceByStudent(ctx context.Context, studentID billing.StudentID) ([]billing.Attendance, error) {
	return s.queryAttendance(ctx,
		"SELECT lesson_id, student_id, status FROM attendance WHERE student_id = ?", studentID)
}

func (s *Store) ListAttendanceByLesson(ctx context.Context, lessonID billing.LessonID) ([]billing.Attendance, error) {
	return s.queryAttendance(ctx,
		"SELECT lesson_id, student_id, status FROM attendance WHERE lesson_id = ?", lessonID)
}

func (s *Store) queryAttendance(ctx context.Context, query string, args ...any) ([]billing.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var marks []billing.Attendance
	for rows.Next() {
		var a billing.Attendance
		if err := rows.Scan(&a.LessonID, &a.StudentID, &a.Status); err != nil {
			return nil, err
		}
		marks = append(marks, a)
	}
	return marks, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"attendance", "passes", "lessons", "schedule_slots", "memberships", "groups", "students"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullDay(d billing.Day) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}