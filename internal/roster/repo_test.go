package roster

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"classtrack/internal/apperr"
)

// errDriver surfaces a fixed driver error on every statement, standing in for
// Postgres constraint rejections.
type errDriver struct{ err error }

func (d errDriver) Open(string) (driver.Conn, error) { return errConn{err: d.err}, nil }

type errConn struct{ err error }

func (c errConn) Prepare(string) (driver.Stmt, error) { return nil, c.err }
func (c errConn) Close() error                        { return nil }
func (c errConn) Begin() (driver.Tx, error)           { return nil, c.err }

func init() {
	sql.Register("roster-unique-violation", errDriver{err: &pgconn.PgError{
		Code:    "23505",
		Message: "duplicate key value violates unique constraint",
	}})
	sql.Register("roster-fk-violation", errDriver{err: &pgconn.PgError{
		Code:    "23503",
		Message: "insert or update violates foreign key constraint",
	}})
}

func openStub(t *testing.T, name string) *Repository {
	t.Helper()
	db, err := sql.Open(name, "")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db)
}

func TestAddScheduleEntryDuplicateIsConflict(t *testing.T) {
	repo := openStub(t, "roster-unique-violation")

	// The (classroom_id, class_date) unique constraint rejects the insert;
	// the write surfaces as a typed Conflict and nothing is persisted.
	_, err := repo.AddScheduleEntry(context.Background(), 1, "2025-03-03")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAddScheduleEntryMissingClassroomIsNotFound(t *testing.T) {
	repo := openStub(t, "roster-fk-violation")
	_, err := repo.AddScheduleEntry(context.Background(), 99, "2025-03-03")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateClassroomDuplicateIsConflict(t *testing.T) {
	repo := openStub(t, "roster-unique-violation")
	_, err := repo.CreateClassroom(context.Background(), "10A")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreateStudentDuplicateIsConflict(t *testing.T) {
	repo := openStub(t, "roster-unique-violation")
	_, err := repo.CreateStudent(context.Background(), Student{StudentCode: "S1", Name: "An", ClassroomID: 1})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreateStudentMissingClassroomIsNotFound(t *testing.T) {
	repo := openStub(t, "roster-fk-violation")
	_, err := repo.CreateStudent(context.Background(), Student{StudentCode: "S1", Name: "An", ClassroomID: 99})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateStudentDuplicateIsConflict(t *testing.T) {
	repo := openStub(t, "roster-unique-violation")
	code := "S2"
	_, err := repo.UpdateStudent(context.Background(), 1, &code, nil)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestPgErrorClassification(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, isUniqueViolation(unique))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", unique)))
	assert.False(t, isUniqueViolation(fk))
	assert.False(t, isUniqueViolation(errors.New("broken pipe")))

	assert.True(t, isForeignKeyViolation(fk))
	assert.True(t, isForeignKeyViolation(fmt.Errorf("insert: %w", fk)))
	assert.False(t, isForeignKeyViolation(unique))
	assert.False(t, isForeignKeyViolation(nil))
}
