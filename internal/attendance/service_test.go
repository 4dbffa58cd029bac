package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"classtrack/internal/apperr"
)

const classroom = int64(1)

func setup(t *testing.T) (*Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	svc := NewService(repo, MustClock("08:05:00"), 10*time.Minute)
	return svc, repo
}

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		t.Fatalf("bad timestamp %q: %v", value, err)
	}
	return parsed.UTC()
}

func TestRecordCheckInDebounce(t *testing.T) {
	svc, repo := setup(t)
	repo.addStudent(Student{ID: 1, Code: "S1", Name: "An", ClassroomID: classroom})

	ctx := context.Background()
	t0 := ts(t, "2025-03-03 07:50:00")

	res, err := svc.RecordCheckIn(ctx, classroom, "S1", t0)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, res.Outcome)
	assert.Equal(t, t0, res.Timestamp)

	// 5 minutes later, inside the 10 minute window: suppressed, prior
	// timestamp returned, no new row.
	res, err = svc.RecordCheckIn(ctx, classroom, "S1", t0.Add(5*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, t0, res.Timestamp)
	assert.Equal(t, 1, repo.logCount())

	// Past the window: recorded again.
	res, err = svc.RecordCheckIn(ctx, classroom, "S1", t0.Add(10*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, res.Outcome)
	assert.Equal(t, 2, repo.logCount())
}

func TestRecordCheckInAfterFutureNotePlaceholder(t *testing.T) {
	svc, repo := setup(t)
	repo.addStudent(Student{ID: 1, Code: "S1", Name: "An", ClassroomID: classroom})
	repo.addSchedule(classroom, "2025-03-03", "2025-03-04")

	ctx := context.Background()
	// A note on tomorrow's session synthesizes a midnight placeholder that is
	// now the student's newest log. It must not suppress today's check-in.
	assert.NoError(t, svc.AttachNote(ctx, 1, "2025-03-04", "field trip"))

	res, err := svc.RecordCheckIn(ctx, classroom, "S1", ts(t, "2025-03-03 14:00:00"))
	assert.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, res.Outcome)
	assert.Equal(t, ts(t, "2025-03-03 14:00:00"), res.Timestamp)
	assert.Equal(t, 2, repo.logCount())

	statuses, err := svc.DailyStatuses(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, "2025-03-03", statuses[1].Date)
	assert.Equal(t, StatusLate, statuses[1].Status)
	if assert.NotNil(t, statuses[1].CheckInTime) {
		assert.Equal(t, "14:00:00", *statuses[1].CheckInTime)
	}
}

func TestRecordCheckInUnknownStudent(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.RecordCheckIn(context.Background(), classroom, "ghost", time.Now())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordCheckInConcurrent(t *testing.T) {
	svc, repo := setup(t)
	repo.addStudent(Student{ID: 1, Code: "S1", Name: "An", ClassroomID: classroom})

	t0 := ts(t, "2025-03-03 07:50:00")
	var wg sync.WaitGroup
	var mu sync.Mutex
	recorded := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.RecordCheckIn(context.Background(), classroom, "S1", t0.Add(time.Duration(i)*time.Second))
			if err != nil {
				t.Errorf("check-in: %v", err)
				return
			}
			if res.Outcome == OutcomeRecorded {
				mu.Lock()
				recorded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	// All observed timestamps fall inside one window, so exactly one insert
	// must win regardless of interleaving.
	assert.Equal(t, 1, recorded)
	assert.Equal(t, 1, repo.logCount())
}

func TestDailyStatusesScenario(t *testing.T) {
	svc, repo := setup(t)
	repo.addStudent(Student{ID: 1, Code: "S1", Name: "An", ClassroomID: classroom})
	repo.addSchedule(classroom, "2025-03-03", "2025-03-04", "2025-03-05")

	_, err := svc.RecordCheckIn(context.Background(), classroom, "S1", ts(t, "2025-03-04 07:50:00"))
	assert.NoError(t, err)

	statuses, err := svc.DailyStatuses(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, statuses, 3)

	assert.Equal(t, DailyStatus{Date: "2025-03-05", Status: StatusAbsent}, statuses[0])
	assert.Equal(t, "2025-03-04", statuses[1].Date)
	assert.Equal(t, StatusPresent, statuses[1].Status)
	if assert.NotNil(t, statuses[1].CheckInTime) {
		assert.Equal(t, "07:50:00", *statuses[1].CheckInTime)
	}
	assert.Equal(t, DailyStatus{Date: "2025-03-03", Status: StatusAbsent}, statuses[2])
}

func TestDailyStatusesNoLogsAllAbsent(t *testing.T) {
	svc, repo := setup(t)
	repo.addStudent(Student{ID: 1, Code: "S1", Name: "An", ClassroomID: classroom})
	repo.addSchedule(classroom, "2025-03-03", "2025-03-04", "2025-03-10", "2099-01-01")

	statuses, err := svc.DailyStatuses(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, statuses, 4)
	for _, ds := range statuses {
		assert.Equal(t, StatusAbsent, ds.Status)
		assert.Nil(t, ds.CheckInTime)
	}
}

func TestDailyStatusesEarliestLogWins(t *testing.T) {
	svc, repo := setup(t)
	repo.addStudent(Student{ID: 1, Code: "S1", Name: "An", ClassroomID: classroom})
	repo.addSchedule(classroom, "2025-03-03")

	ctx := context.Background()
	// Two logs on the same date, inserted late-first: the earlier timestamp
	// is the one that counts.
	_, err := repo.InsertLog(ctx, Log{StudentID: 1, LoggedAt: ts(t, "2025-03-03 09:30:00")})
	assert.NoError(t, err)
	_, err = repo.InsertLog(ctx, Log{StudentID: 1, LoggedAt: ts(t, "2025-03-03 08:00:00")})
	assert.NoError(t, err)

	statuses, err := svc.DailyStatuses(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, StatusPresent, statuses[0].Status)
	assert.Equal(t, "08:00:00", *statuses[0].CheckInTime)
}

func TestDailyStatusesUnscheduledLogInvisible(t *testing.T) {
	svc, repo := setup(t)
	repo.addStudent(Student{ID: 1, Code: "S1", Name: "An", ClassroomID: classroom})
	repo.addSchedule(classroom, "2025-03-03")

	ctx := context.Background()
	_, err := repo.InsertLog(ctx, Log{StudentID: 1, LoggedAt: ts(t, "2025-03-08 07:00:00")})
	assert.NoError(t, err)

	statuses, err := svc.DailyStatuses(ctx, 1)
	assert.NoError(t, err)
	assert.Len(t, statuses, 1)
	assert.Equal(t, StatusAbsent, statuses[0].Status)
}

func TestCutoffBoundary(t *testing.T) {
	svc, repo := setup(t)
	repo.addStudent(Student{ID: 1, Code: "S1", Name: "An", ClassroomID: classroom})
	repo.addSchedule(classroom, "2025-03-03", "2025-03-04")

	ctx := context.Background()
	_, err := repo.InsertLog(ctx, Log{StudentID: 1, LoggedAt: ts(t, "2025-03-03 08:05:00")})
	assert.NoError(t, err)
	_, err = repo.InsertLog(ctx, Log{StudentID: 1, LoggedAt: ts(t, "2025-03-04 08:05:01")})
	assert.NoError(t, err)

	statuses, err := svc.DailyStatuses(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, StatusLate, statuses[0].Status)    // 03-04, one second past
	assert.Equal(t, StatusPresent, statuses[1].Status) // 03-03, exactly at cutoff
}

func TestSummarizeScenario(t *testing.T) {
	svc, repo := setup(t)
	repo.addStudent(Student{ID: 1, Code: "S1", Name: "An", ClassroomID: classroom})
	repo.addSchedule(classroom, "2025-03-03", "2025-03-04", "2025-03-05")

	_, err := svc.RecordCheckIn(context.Background(), classroom, "S1", ts(t, "2025-03-04 07:50:00"))
	assert.NoError(t, err)

	sums, err := svc.Summarize(context.Background(), classroom)
	assert.NoError(t, err)
	assert.Len(t, sums, 1)

	sum := sums[0]
	assert.Equal(t, 1, sum.OnTimeCount)
	assert.Equal(t, 0, sum.LateCount)
	assert.Equal(t, 2, sum.AbsentCount)
	assert.Equal(t, 3, sum.TotalScheduledSessions)
	assert.Equal(t, 33.33, sum.PresentRate)
	assert.Equal(t, 33.33, sum.OnTimeRate)
	assert.Equal(t, 0.0, sum.LateRate)
	assert.Equal(t, 66.67, sum.AbsentRate)
}

func TestSummarizeCountsPartition(t *testing.T) {
	svc, repo := setup(t)
	repo.addStudent(Student{ID: 1, Code: "S1", Name: "An", ClassroomID: classroom})
	repo.addStudent(Student{ID: 2, Code: "S2", Name: "Binh", ClassroomID: classroom})
	repo.addSchedule(classroom, "2025-03-03", "2025-03-04", "2025-03-05", "2025-03-06", "2025-03-07", "2025-03-10", "2025-03-11")

	ctx := context.Background()
	for _, v := range []string{"2025-03-03 07:12:00", "2025-03-04 08:41:00", "2025-03-07 08:05:00"} {
		_, err := repo.InsertLog(ctx, Log{StudentID: 1, LoggedAt: ts(t, v)})
		assert.NoError(t, err)
	}
	_, err := repo.InsertLog(ctx, Log{StudentID: 2, LoggedAt: ts(t, "2025-03-10 09:00:00")})
	assert.NoError(t, err)

	sums, err := svc.Summarize(ctx, classroom)
	assert.NoError(t, err)
	assert.Len(t, sums, 2)
	for _, sum := range sums {
		assert.Equal(t, sum.TotalScheduledSessions, sum.OnTimeCount+sum.LateCount+sum.AbsentCount)
		assert.InDelta(t, 100.0, sum.OnTimeRate+sum.LateRate+sum.AbsentRate, 0.02)
		assert.InDelta(t, sum.PresentRate, sum.OnTimeRate+sum.LateRate, 0.02)
	}
}

func TestSummarizeEmptySchedule(t *testing.T) {
	svc, repo := setup(t)
	repo.addStudent(Student{ID: 1, Code: "S1", Name: "An", ClassroomID: classroom})

	sums, err := svc.Summarize(context.Background(), classroom)
	assert.NoError(t, err)
	assert.Empty(t, sums)
}

func TestReadsAreIdempotent(t *testing.T) {
	svc, repo := setup(t)
	repo.addStudent(Student{ID: 1, Code: "S1", Name: "An", ClassroomID: classroom})
	repo.addSchedule(classroom, "2025-03-03", "2025-03-04")

	ctx := context.Background()
	_, err := svc.RecordCheckIn(ctx, classroom, "S1", ts(t, "2025-03-03 08:30:00"))
	assert.NoError(t, err)

	s1, err := svc.Summarize(ctx, classroom)
	assert.NoError(t, err)
	s2, err := svc.Summarize(ctx, classroom)
	assert.NoError(t, err)
	assert.Equal(t, s1, s2)

	g1, err := svc.BuildGrid(ctx, classroom)
	assert.NoError(t, err)
	g2, err := svc.BuildGrid(ctx, classroom)
	assert.NoError(t, err)
	assert.Equal(t, g1, g2)
}
