package store

import "database/sql"

// Schema is applied at startup. Cascades encode ownership: classroom owns
// students, teacher binding and schedule entries; student owns logs.
const schema = `
CREATE TABLE IF NOT EXISTS classrooms (
	id          SERIAL PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS accounts (
	id                 SERIAL PRIMARY KEY,
	username           TEXT NOT NULL UNIQUE,
	password_hash      TEXT NOT NULL,
	role               TEXT NOT NULL,
	classroom_id       INTEGER UNIQUE REFERENCES classrooms(id) ON DELETE CASCADE,
	current_session_id TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS students (
	id                   SERIAL PRIMARY KEY,
	student_code         TEXT NOT NULL,
	name                 TEXT NOT NULL,
	classroom_id         INTEGER NOT NULL REFERENCES classrooms(id) ON DELETE CASCADE,
	reference_image_url  TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (student_code, classroom_id)
);

CREATE TABLE IF NOT EXISTS schedule_entries (
	id            SERIAL PRIMARY KEY,
	classroom_id  INTEGER NOT NULL REFERENCES classrooms(id) ON DELETE CASCADE,
	class_date    DATE NOT NULL,
	UNIQUE (classroom_id, class_date)
);

CREATE TABLE IF NOT EXISTS attendance_logs (
	id          SERIAL PRIMARY KEY,
	student_id  INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	logged_at   TIMESTAMPTZ NOT NULL,
	note        TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_logs_student_time ON attendance_logs(student_id, logged_at DESC);
CREATE INDEX IF NOT EXISTS idx_schedule_classroom ON schedule_entries(classroom_id, class_date DESC);
CREATE INDEX IF NOT EXISTS idx_students_classroom ON students(classroom_id, name);
`

func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
