package roster

import "time"

// Classroom owns its students, its teacher binding and its schedule entries.
type Classroom struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Student as enrolled, including the stored reference image location.
type Student struct {
	ID                int64     `json:"id"`
	StudentCode       string    `json:"student_code"`
	Name              string    `json:"name"`
	ClassroomID       int64     `json:"classroom_id"`
	ReferenceImageURL string    `json:"reference_image_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// ScheduleEntry records that a session was held on class_date for a
// classroom. It is the denominator of every attendance rate.
type ScheduleEntry struct {
	ID          int64  `json:"id"`
	ClassroomID int64  `json:"classroom_id"`
	ClassDate   string `json:"class_date"`
}

// Account is a teacher or admin login. CurrentSessionID holds the session id
// of the latest issued token; older tokens are rejected as expired sessions.
type Account struct {
	ID               int64
	Username         string
	PasswordHash     string
	Role             string
	ClassroomID      *int64
	CurrentSessionID string
}

const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Teacher is the admin-facing view of a teacher account.
type Teacher struct {
	ID            int64   `json:"id"`
	Username      string  `json:"username"`
	ClassroomID   *int64  `json:"classroom_id,omitempty"`
	ClassroomName *string `json:"classroom_name,omitempty"`
}
