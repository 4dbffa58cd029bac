package attendance

import (
	"context"
	"sort"
	"sync"

	"classtrack/internal/apperr"
)

// memRepo is an in-memory Repository for tests.
type memRepo struct {
	mu       sync.Mutex
	students map[int64]Student
	logs     []Log
	schedule map[int64][]string
	nextLog  int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		students: make(map[int64]Student),
		schedule: make(map[int64][]string),
	}
}

func (m *memRepo) addStudent(st Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[st.ID] = st
}

func (m *memRepo) addSchedule(classroomID int64, dates ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedule[classroomID] = append(m.schedule[classroomID], dates...)
}

func (m *memRepo) logCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func (m *memRepo) StudentByCode(_ context.Context, classroomID int64, code string) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.students {
		if st.ClassroomID == classroomID && st.Code == code {
			return st, nil
		}
	}
	return Student{}, apperr.NotFound("student %q in classroom %d", code, classroomID)
}

func (m *memRepo) StudentByID(_ context.Context, id int64) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.students[id]
	if !ok {
		return Student{}, apperr.NotFound("student %d", id)
	}
	return st, nil
}

func (m *memRepo) StudentsByClassroom(_ context.Context, classroomID int64) ([]Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Student
	for _, st := range m.students {
		if st.ClassroomID == classroomID {
			res = append(res, st)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Name != res[j].Name {
			return res[i].Name < res[j].Name
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (m *memRepo) LatestLog(_ context.Context, studentID int64) (*Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Log
	for i := range m.logs {
		lg := m.logs[i]
		if lg.StudentID != studentID {
			continue
		}
		if latest == nil || lg.LoggedAt.After(latest.LoggedAt) ||
			(lg.LoggedAt.Equal(latest.LoggedAt) && lg.ID > latest.ID) {
			cp := lg
			latest = &cp
		}
	}
	return latest, nil
}

func (m *memRepo) InsertLog(_ context.Context, lg Log) (Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLog++
	lg.ID = m.nextLog
	lg.LoggedAt = lg.LoggedAt.UTC()
	m.logs = append(m.logs, lg)
	return lg, nil
}

func (m *memRepo) LogsByStudent(_ context.Context, studentID int64) ([]Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Log
	for _, lg := range m.logs {
		if lg.StudentID == studentID {
			res = append(res, lg)
		}
	}
	sortLogs(res)
	return res, nil
}

func (m *memRepo) LogsByClassroom(_ context.Context, classroomID int64) (map[int64][]Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byStudent := make(map[int64][]Log)
	for _, lg := range m.logs {
		st, ok := m.students[lg.StudentID]
		if !ok || st.ClassroomID != classroomID {
			continue
		}
		byStudent[lg.StudentID] = append(byStudent[lg.StudentID], lg)
	}
	for id := range byStudent {
		sortLogs(byStudent[id])
	}
	return byStudent, nil
}

func (m *memRepo) ScheduleDates(_ context.Context, classroomID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dates := append([]string(nil), m.schedule[classroomID]...)
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

func (m *memRepo) SetNote(_ context.Context, logID int64, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.logs {
		if m.logs[i].ID == logID {
			n := note
			m.logs[i].Note = &n
			return nil
		}
	}
	return apperr.NotFound("log %d", logID)
}

func sortLogs(logs []Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		if !logs[i].LoggedAt.Equal(logs[j].LoggedAt) {
			return logs[i].LoggedAt.Before(logs[j].LoggedAt)
		}
		return logs[i].ID < logs[j].ID
	})
}
