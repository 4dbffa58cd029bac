package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"classtrack/internal/apperr"
)

// Student is the read model the derivation engines need; enrollment metadata
// lives in the roster package.
type Student struct {
	ID          int64
	Code        string
	Name        string
	ClassroomID int64
}

// Log is a raw check-in event for a student. Association to a scheduled date
// is derived at read time from the UTC calendar date of LoggedAt.
type Log struct {
	ID        int64
	StudentID int64
	LoggedAt  time.Time
	Note      *string
}

// Date returns the UTC calendar date the log is attributed to.
func (l Log) Date() string { return l.LoggedAt.UTC().Format(dateLayout) }

// Repository is the query/write contract the service needs. The Postgres
// implementation is PGRepository; tests use an in-memory fake.
type Repository interface {
	StudentByCode(ctx context.Context, classroomID int64, code string) (Student, error)
	StudentByID(ctx context.Context, id int64) (Student, error)
	// StudentsByClassroom orders byte-wise ascending by name, ties by id.
	StudentsByClassroom(ctx context.Context, classroomID int64) ([]Student, error)
	// LatestLog returns the most recent log for a student, nil when none.
	LatestLog(ctx context.Context, studentID int64) (*Log, error)
	InsertLog(ctx context.Context, lg Log) (Log, error)
	// LogsByStudent orders ascending by logged_at, ties by id.
	LogsByStudent(ctx context.Context, studentID int64) ([]Log, error)
	// LogsByClassroom returns every student's logs keyed by student id, each
	// slice ordered as in LogsByStudent.
	LogsByClassroom(ctx context.Context, classroomID int64) (map[int64][]Log, error)
	// ScheduleDates returns the classroom's class dates ("2006-01-02"),
	// descending.
	ScheduleDates(ctx context.Context, classroomID int64) ([]string, error)
	SetNote(ctx context.Context, logID int64, note string) error
}

// PGRepository persists attendance data in Postgres.
type PGRepository struct {
	db *sql.DB
}

// NewPGRepository creates a repo.
func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

func (r *PGRepository) StudentByCode(ctx context.Context, classroomID int64, code string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_code, name, classroom_id
		FROM students
		WHERE classroom_id = $1 AND student_code = $2
	`, classroomID, code)
	var st Student
	if err := row.Scan(&st.ID, &st.Code, &st.Name, &st.ClassroomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, apperr.NotFound("student %q in classroom %d", code, classroomID)
		}
		return Student{}, err
	}
	return st, nil
}

func (r *PGRepository) StudentByID(ctx context.Context, id int64) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_code, name, classroom_id
		FROM students WHERE id = $1
	`, id)
	var st Student
	if err := row.Scan(&st.ID, &st.Code, &st.Name, &st.ClassroomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, apperr.NotFound("student %d", id)
		}
		return Student{}, err
	}
	return st, nil
}

func (r *PGRepository) StudentsByClassroom(ctx context.Context, classroomID int64) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_code, name, classroom_id
		FROM students
		WHERE classroom_id = $1
		ORDER BY name COLLATE "C", id
	`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.Code, &st.Name, &st.ClassroomID); err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

func (r *PGRepository) LatestLog(ctx context.Context, studentID int64) (*Log, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, logged_at, note
		FROM attendance_logs
		WHERE student_id = $1
		ORDER BY logged_at DESC, id DESC
		LIMIT 1
	`, studentID)
	var lg Log
	if err := row.Scan(&lg.ID, &lg.StudentID, &lg.LoggedAt, &lg.Note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &lg, nil
}

func (r *PGRepository) InsertLog(ctx context.Context, lg Log) (Log, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_logs (student_id, logged_at, note)
		VALUES ($1, $2, $3)
		RETURNING id
	`, lg.StudentID, lg.LoggedAt.UTC(), lg.Note)
	if err := row.Scan(&lg.ID); err != nil {
		return Log{}, err
	}
	return lg, nil
}

func (r *PGRepository) LogsByStudent(ctx context.Context, studentID int64) ([]Log, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, logged_at, note
		FROM attendance_logs
		WHERE student_id = $1
		ORDER BY logged_at, id
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogs(rows)
}

func (r *PGRepository) LogsByClassroom(ctx context.Context, classroomID int64) (map[int64][]Log, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT l.id, l.student_id, l.logged_at, l.note
		FROM attendance_logs l
		JOIN students s ON s.id = l.student_id
		WHERE s.classroom_id = $1
		ORDER BY l.logged_at, l.id
	`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	logs, err := scanLogs(rows)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[int64][]Log, len(logs))
	for _, lg := range logs {
		byStudent[lg.StudentID] = append(byStudent[lg.StudentID], lg)
	}
	return byStudent, nil
}

func (r *PGRepository) ScheduleDates(ctx context.Context, classroomID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT to_char(class_date, 'YYYY-MM-DD')
		FROM schedule_entries
		WHERE classroom_id = $1
		ORDER BY class_date DESC
	`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (r *PGRepository) SetNote(ctx context.Context, logID int64, note string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE attendance_logs SET note = $2 WHERE id = $1`, logID, note)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("log %d", logID)
	}
	return nil
}

func scanLogs(rows *sql.Rows) ([]Log, error) {
	var res []Log
	for rows.Next() {
		var lg Log
		if err := rows.Scan(&lg.ID, &lg.StudentID, &lg.LoggedAt, &lg.Note); err != nil {
			return nil, err
		}
		res = append(res, lg)
	}
	return res, rows.Err()
}
