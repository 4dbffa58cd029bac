package roster

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"classtrack/internal/apperr"
)

// Repository persists roster data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ---------- Classrooms ----------

func (r *Repository) CreateClassroom(ctx context.Context, name string) (Classroom, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO classrooms (name) VALUES ($1)
		RETURNING id, name, created_at
	`, name)
	var cl Classroom
	if err := row.Scan(&cl.ID, &cl.Name, &cl.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Classroom{}, apperr.Conflict("classroom %q already exists", name)
		}
		return Classroom{}, err
	}
	return cl, nil
}

func (r *Repository) ClassroomByID(ctx context.Context, id int64) (Classroom, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM classrooms WHERE id = $1`, id)
	var cl Classroom
	if err := row.Scan(&cl.ID, &cl.Name, &cl.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Classroom{}, apperr.NotFound("classroom %d", id)
		}
		return Classroom{}, err
	}
	return cl, nil
}

func (r *Repository) ListClassrooms(ctx context.Context) ([]Classroom, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM classrooms ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Classroom
	for rows.Next() {
		var cl Classroom
		if err := rows.Scan(&cl.ID, &cl.Name, &cl.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, cl)
	}
	return res, rows.Err()
}

// DeleteClassroom removes a classroom; students, teacher binding, schedule
// entries and logs go with it via cascades.
func (r *Repository) DeleteClassroom(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classrooms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("classroom %d", id)
	}
	return nil
}

// ---------- Students ----------

func (r *Repository) CreateStudent(ctx context.Context, st Student) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (student_code, name, classroom_id, reference_image_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, st.StudentCode, st.Name, st.ClassroomID, st.ReferenceImageURL)
	if err := row.Scan(&st.ID, &st.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Student{}, apperr.Conflict("student %q already enrolled in classroom %d", st.StudentCode, st.ClassroomID)
		}
		if isForeignKeyViolation(err) {
			return Student{}, apperr.NotFound("classroom %d", st.ClassroomID)
		}
		return Student{}, err
	}
	return st, nil
}

func (r *Repository) StudentByID(ctx context.Context, id int64) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_code, name, classroom_id, reference_image_url, created_at
		FROM students WHERE id = $1
	`, id)
	var st Student
	if err := row.Scan(&st.ID, &st.StudentCode, &st.Name, &st.ClassroomID, &st.ReferenceImageURL, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, apperr.NotFound("student %d", id)
		}
		return Student{}, err
	}
	return st, nil
}

func (r *Repository) StudentsByClassroom(ctx context.Context, classroomID int64) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_code, name, classroom_id, reference_image_url, created_at
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
		if err := rows.Scan(&st.ID, &st.StudentCode, &st.Name, &st.ClassroomID, &st.ReferenceImageURL, &st.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

// UpdateStudent rewrites the code and/or name of an enrolled student. Nil
// fields keep their current value.
func (r *Repository) UpdateStudent(ctx context.Context, id int64, studentCode, name *string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE students
		SET student_code = COALESCE($2, student_code),
		    name         = COALESCE($3, name)
		WHERE id = $1
		RETURNING id, student_code, name, classroom_id, reference_image_url, created_at
	`, id, studentCode, name)
	var st Student
	if err := row.Scan(&st.ID, &st.StudentCode, &st.Name, &st.ClassroomID, &st.ReferenceImageURL, &st.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Student{}, apperr.Conflict("student code already taken in this classroom")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, apperr.NotFound("student %d", id)
		}
		return Student{}, err
	}
	return st, nil
}

// DeleteStudent removes a student (logs cascade) and returns the reference
// image URL so the caller can destroy the stored image.
func (r *Repository) DeleteStudent(ctx context.Context, id int64) (string, error) {
	row := r.db.QueryRowContext(ctx, `
		DELETE FROM students WHERE id = $1
		RETURNING reference_image_url
	`, id)
	var imageURL string
	if err := row.Scan(&imageURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperr.NotFound("student %d", id)
		}
		return "", err
	}
	return imageURL, nil
}

// ---------- Schedule registry ----------

// AddScheduleEntry relies on the (classroom_id, class_date) unique constraint
// to reject duplicates under concurrency; duplicates would double-count
// sessions in every rate.
func (r *Repository) AddScheduleEntry(ctx context.Context, classroomID int64, classDate string) (ScheduleEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO schedule_entries (classroom_id, class_date)
		VALUES ($1, $2)
		RETURNING id, classroom_id, to_char(class_date, 'YYYY-MM-DD')
	`, classroomID, classDate)
	var se ScheduleEntry
	if err := row.Scan(&se.ID, &se.ClassroomID, &se.ClassDate); err != nil {
		if isUniqueViolation(err) {
			return ScheduleEntry{}, apperr.Conflict("schedule entry %s already exists for classroom %d", classDate, classroomID)
		}
		if isForeignKeyViolation(err) {
			return ScheduleEntry{}, apperr.NotFound("classroom %d", classroomID)
		}
		return ScheduleEntry{}, err
	}
	return se, nil
}

func (r *Repository) RemoveScheduleEntry(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("schedule entry %d", id)
	}
	return nil
}

func (r *Repository) ListSchedule(ctx context.Context, classroomID int64) ([]ScheduleEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, classroom_id, to_char(class_date, 'YYYY-MM-DD')
		FROM schedule_entries
		WHERE classroom_id = $1
		ORDER BY class_date DESC
	`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ScheduleEntry
	for rows.Next() {
		var se ScheduleEntry
		if err := rows.Scan(&se.ID, &se.ClassroomID, &se.ClassDate); err != nil {
			return nil, err
		}
		res = append(res, se)
	}
	return res, rows.Err()
}

// ---------- Accounts ----------

func (r *Repository) CreateAccount(ctx context.Context, acc Account) (Account, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO accounts (username, password_hash, role, classroom_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, acc.Username, acc.PasswordHash, acc.Role, acc.ClassroomID)
	if err := row.Scan(&acc.ID); err != nil {
		if isUniqueViolation(err) {
			return Account{}, apperr.Conflict("account %q already exists", acc.Username)
		}
		if isForeignKeyViolation(err) {
			return Account{}, apperr.NotFound("classroom")
		}
		return Account{}, err
	}
	return acc, nil
}

func (r *Repository) AccountByUsername(ctx context.Context, username string) (Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, classroom_id, current_session_id
		FROM accounts WHERE username = $1
	`, username)
	return scanAccount(row)
}

func (r *Repository) AccountByID(ctx context.Context, id int64) (Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, classroom_id, current_session_id
		FROM accounts WHERE id = $1
	`, id)
	return scanAccount(row)
}

// SetCurrentSession overwrites the account's active session id. Issuing a new
// token through this path invalidates every previously issued one.
func (r *Repository) SetCurrentSession(ctx context.Context, accountID int64, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET current_session_id = $2 WHERE id = $1
	`, accountID, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("account %d", accountID)
	}
	return nil
}

// ListTeachers returns every teacher account with its classroom binding,
// joined so the dashboard does not need a second lookup.
func (r *Repository) ListTeachers(ctx context.Context) ([]Teacher, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.username, a.classroom_id, c.name
		FROM accounts a
		LEFT JOIN classrooms c ON c.id = a.classroom_id
		WHERE a.role = $1
		ORDER BY a.username
	`, RoleTeacher)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Teacher
	for rows.Next() {
		var tc Teacher
		if err := rows.Scan(&tc.ID, &tc.Username, &tc.ClassroomID, &tc.ClassroomName); err != nil {
			return nil, err
		}
		res = append(res, tc)
	}
	return res, rows.Err()
}

func scanAccount(row *sql.Row) (Account, error) {
	var acc Account
	if err := row.Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &acc.Role, &acc.ClassroomID, &acc.CurrentSessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, apperr.NotFound("account")
		}
		return Account{}, err
	}
	return acc, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
