package attendance

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Outcome reports whether an ingest call wrote a log.
type Outcome string

const (
	OutcomeRecorded Outcome = "RECORDED"
	OutcomeSkipped  Outcome = "SKIPPED"
)

// CheckInResult is the ingest outcome. Timestamp is the new log's time on
// RECORDED, and the suppressing prior log's time on SKIPPED.
type CheckInResult struct {
	Outcome   Outcome
	Timestamp time.Time
	Log       *Log
}

// DailyStatus is one resolved schedule date for a student.
type DailyStatus struct {
	Date        string  `json:"date"`
	Status      Status  `json:"status"`
	CheckInTime *string `json:"check_in_time"`
}

// Summary aggregates one student's statuses over every scheduled session.
type Summary struct {
	StudentID              int64   `json:"student_id"`
	StudentCode            string  `json:"student_code"`
	StudentName            string  `json:"student_name"`
	OnTimeCount            int     `json:"on_time_count"`
	LateCount              int     `json:"late_count"`
	AbsentCount            int     `json:"absent_count"`
	PresentRate            float64 `json:"present_rate"`
	OnTimeRate             float64 `json:"on_time_rate"`
	LateRate               float64 `json:"late_rate"`
	AbsentRate             float64 `json:"absent_rate"`
	TotalScheduledSessions int     `json:"total_scheduled_sessions"`
}

// Cell is one grid entry for a (student, scheduled date) pair.
type Cell struct {
	Status      Status  `json:"status"`
	Note        *string `json:"note"`
	CheckInTime *string `json:"check_in_time"`
}

// GridRow is one student's row of cells keyed by scheduled date.
type GridRow struct {
	StudentID   int64           `json:"student_id"`
	StudentName string          `json:"student_name"`
	StudentCode string          `json:"student_code"`
	LogsByDate  map[string]Cell `json:"logs_by_date"`
}

// Grid is the dense students x scheduled-dates matrix.
type Grid struct {
	ScheduledDates []string  `json:"scheduled_dates"`
	Rows           []GridRow `json:"attendance_data"`
}

// Service derives attendance state from logs and schedules, and guards the
// single write path with a debounce rule.
type Service struct {
	repo     Repository
	cutoff   Clock
	debounce time.Duration
	ingestMu *keyedMutex
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, cutoff Clock, debounce time.Duration) *Service {
	if cutoff <= 0 {
		cutoff = MustClock("08:05:00")
	}
	if debounce <= 0 {
		debounce = 10 * time.Minute
	}
	return &Service{repo: repo, cutoff: cutoff, debounce: debounce, ingestMu: newKeyedMutex()}
}

// RecordCheckIn records a check-in for a student unless one was already
// accepted within the debounce window. The read-then-insert sequence is
// serialized per student.
func (s *Service) RecordCheckIn(ctx context.Context, classroomID int64, studentCode string, observedAt time.Time) (CheckInResult, error) {
	st, err := s.repo.StudentByCode(ctx, classroomID, studentCode)
	if err != nil {
		return CheckInResult{}, err
	}

	unlock := s.ingestMu.lock(st.ID)
	defer unlock()

	latest, err := s.repo.LatestLog(ctx, st.ID)
	if err != nil {
		return CheckInResult{}, err
	}
	if latest != nil {
		// A note placeholder can sit on a future date; only a log at or
		// before observedAt may suppress a new check-in.
		if delta := observedAt.Sub(latest.LoggedAt); delta >= 0 && delta < s.debounce {
			return CheckInResult{Outcome: OutcomeSkipped, Timestamp: latest.LoggedAt, Log: latest}, nil
		}
	}

	lg, err := s.repo.InsertLog(ctx, Log{StudentID: st.ID, LoggedAt: observedAt.UTC()})
	if err != nil {
		return CheckInResult{}, err
	}
	return CheckInResult{Outcome: OutcomeRecorded, Timestamp: lg.LoggedAt, Log: &lg}, nil
}

// DailyStatuses resolves one status per scheduled date of the student's
// classroom, most recent date first.
func (s *Service) DailyStatuses(ctx context.Context, studentID int64) ([]DailyStatus, error) {
	st, err := s.repo.StudentByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	dates, err := s.repo.ScheduleDates(ctx, st.ClassroomID)
	if err != nil {
		return nil, err
	}
	logs, err := s.repo.LogsByStudent(ctx, st.ID)
	if err != nil {
		return nil, err
	}

	idx := dateIndex(logs)
	out := make([]DailyStatus, 0, len(dates))
	for _, d := range dates {
		ds := DailyStatus{Date: d, Status: StatusAbsent}
		if lg, ok := idx[d]; ok {
			ds.Status = classify(lg.LoggedAt, s.cutoff)
			t := lg.LoggedAt.UTC().Format(timeLayout)
			ds.CheckInTime = &t
		}
		out = append(out, ds)
	}
	return out, nil
}

// Summarize folds every student's per-date statuses into counts and rates.
// A classroom with no scheduled sessions yields an empty sequence.
func (s *Service) Summarize(ctx context.Context, classroomID int64) ([]Summary, error) {
	dates, err := s.repo.ScheduleDates(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return []Summary{}, nil
	}
	students, err := s.repo.StudentsByClassroom(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	logsByStudent, err := s.repo.LogsByClassroom(ctx, classroomID)
	if err != nil {
		return nil, err
	}

	total := len(dates)
	out := make([]Summary, 0, len(students))
	for _, st := range students {
		idx := dateIndex(logsByStudent[st.ID])
		var onTime, late int
		for _, d := range dates {
			if lg, ok := idx[d]; ok {
				if classify(lg.LoggedAt, s.cutoff) == StatusPresent {
					onTime++
				} else {
					late++
				}
			}
		}
		present := onTime + late
		// Absences are implicit: derived by subtraction, never enumerated.
		absent := total - present

		out = append(out, Summary{
			StudentID:              st.ID,
			StudentCode:            st.Code,
			StudentName:            st.Name,
			OnTimeCount:            onTime,
			LateCount:              late,
			AbsentCount:            absent,
			PresentRate:            rate(present, total),
			OnTimeRate:             rate(onTime, total),
			LateRate:               rate(late, total),
			AbsentRate:             rate(absent, total),
			TotalScheduledSessions: total,
		})
	}
	return out, nil
}

// BuildGrid produces the dense matrix of cells for every (student, scheduled
// date) pair, students ordered byte-wise by name.
func (s *Service) BuildGrid(ctx context.Context, classroomID int64) (Grid, error) {
	dates, err := s.repo.ScheduleDates(ctx, classroomID)
	if err != nil {
		return Grid{}, err
	}
	students, err := s.repo.StudentsByClassroom(ctx, classroomID)
	if err != nil {
		return Grid{}, err
	}
	logsByStudent, err := s.repo.LogsByClassroom(ctx, classroomID)
	if err != nil {
		return Grid{}, err
	}

	grid := Grid{ScheduledDates: dates, Rows: make([]GridRow, 0, len(students))}
	if grid.ScheduledDates == nil {
		grid.ScheduledDates = []string{}
	}
	for _, st := range students {
		idx := dateIndex(logsByStudent[st.ID])
		row := GridRow{
			StudentID:   st.ID,
			StudentName: st.Name,
			StudentCode: st.Code,
			LogsByDate:  make(map[string]Cell, len(dates)),
		}
		for _, d := range dates {
			cell := Cell{Status: StatusAbsent}
			if lg, ok := idx[d]; ok {
				cell.Status = classify(lg.LoggedAt, s.cutoff)
				cell.Note = lg.Note
				t := lg.LoggedAt.UTC().Format(timeLayout)
				cell.CheckInTime = &t
			}
			row.LogsByDate[d] = cell
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid, nil
}

// AttachNote attaches a note to the student's earliest log on classDate, or
// synthesizes a midnight placeholder log carrying the note when the student
// has no log on that date.
func (s *Service) AttachNote(ctx context.Context, studentID int64, classDate, note string) error {
	day, err := time.ParseInLocation(dateLayout, classDate, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid class_date %q: %w", classDate, err)
	}
	st, err := s.repo.StudentByID(ctx, studentID)
	if err != nil {
		return err
	}
	logs, err := s.repo.LogsByStudent(ctx, st.ID)
	if err != nil {
		return err
	}
	if lg, ok := dateIndex(logs)[classDate]; ok {
		return s.repo.SetNote(ctx, lg.ID, note)
	}
	_, err = s.repo.InsertLog(ctx, Log{StudentID: st.ID, LoggedAt: day, Note: &note})
	return err
}

// dateIndex keeps the earliest log per UTC calendar date. Input is ordered
// ascending by logged_at then id, so the first log seen for a date wins.
func dateIndex(logs []Log) map[string]Log {
	idx := make(map[string]Log, len(logs))
	for _, lg := range logs {
		d := lg.Date()
		if _, ok := idx[d]; !ok {
			idx[d] = lg
		}
	}
	return idx
}

func rate(count, total int) float64 {
	return math.Round(float64(count)/float64(total)*100*100) / 100
}
