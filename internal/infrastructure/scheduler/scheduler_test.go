package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestParseWeeklySchedule(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want WeeklySchedule
	}{
		{"default Monday 6am", "0 6 * * 1", WeeklySchedule{Weekday: time.Monday, Hour: 6}},
		{"empty keeps default", "", DefaultWeeklySchedule},
		{"Sunday as 7", "30 22 * * 7", WeeklySchedule{Weekday: time.Sunday, Hour: 22, Minute: 30}},
		{"weekday name", "15 4 * * fri", WeeklySchedule{Weekday: time.Friday, Hour: 4, Minute: 15}},
		{"extra whitespace", "  5   7  *  *  2 ", WeeklySchedule{Weekday: time.Tuesday, Hour: 7, Minute: 5}},
		{"wildcard weekday", "0 8 * * *", WeeklySchedule{Weekday: time.Monday, Hour: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWeeklySchedule(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"0 6 * *", "61 6 * * 1", "0 24 * * 1", "0 6 * * 8", "x 6 * * 1"} {
		_, err := ParseWeeklySchedule(bad)
		assert.ErrorIs(t, err, ErrInvalidSchedule, bad)
	}
}

func TestWeeklySchedule_NextAndDue(t *testing.T) {
	s := WeeklySchedule{Weekday: time.Monday, Hour: 6}

	wed := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC), s.Next(wed))

	slot := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	assert.True(t, s.Due(slot.Add(30*time.Second)))
	assert.False(t, s.Due(slot.Add(time.Minute)))
	assert.Equal(t, slot.AddDate(0, 0, 7), s.Next(slot))
	assert.Equal(t, slot, s.Next(slot.Add(-time.Second)))
}

type memoryRecorder struct {
	mu       sync.Mutex
	statuses []JobStatus
}

func (r *memoryRecorder) Record(ctx context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, job.Status)
	return nil
}

func (r *memoryRecorder) snapshot() []JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]JobStatus(nil), r.statuses...)
}

func TestScheduler_RetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32
	done := make(chan *Job, 1)
	executor := ExecutorFunc(func(ctx context.Context, job *Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("weclapp: HTTP 503")
		}
		done <- job
		return nil
	})
	recorder := &memoryRecorder{}
	s := NewScheduler(SchedulerConfig{RetryAttempts: 2, RetryDelay: 10 * time.Millisecond}, executor, recorder, zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	job := NewJob(JobKindWeeklyOrderExport, time.Now(), time.Now(), 2)
	require.NoError(t, s.SubmitJob(job))

	select {
	case got := <-done:
		assert.Equal(t, 1, got.RetryCount)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "job never succeeded")
	}
	assert.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 4
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []JobStatus{JobStatusRunning, JobStatusFailed, JobStatusRunning, JobStatusSuccess}, recorder.snapshot())
}

func TestScheduler_GivesUpAfterRetries(t *testing.T) {
	var attempts atomic.Int32
	executor := ExecutorFunc(func(ctx context.Context, job *Job) error {
		attempts.Add(1)
		return errors.New("boom")
	})
	s := NewScheduler(SchedulerConfig{RetryDelay: time.Millisecond}, executor, nil, zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))

	job := NewJob(JobKindWeeklyOrderExport, time.Now(), time.Now(), 1)
	require.NoError(t, s.SubmitJob(job))
	assert.Eventually(t, func() bool { return attempts.Load() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, int32(2), attempts.Load())
	assert.ErrorIs(t, s.SubmitJob(job), ErrSchedulerNotRunning)
}

type stubHistory struct {
	record *JobRecord
	err    error
}

func (h stubHistory) LastJob(ctx context.Context, kind string) (*JobRecord, error) {
	return h.record, h.err
}

func weekBefore(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -7)
	return start, start.AddDate(0, 0, 6)
}

func newTestTrigger(t *testing.T, history JobHistory) (*WeeklyTrigger, chan *Job) {
	t.Helper()
	ran := make(chan *Job, 4)
	s := NewScheduler(SchedulerConfig{}, ExecutorFunc(func(ctx context.Context, job *Job) error {
		ran <- job
		return nil
	}), nil, zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	trigger := NewWeeklyTrigger(WeeklyTriggerConfig{
		Schedule: WeeklySchedule{Weekday: time.Monday, Hour: 6},
		Kind:     JobKindWeeklyOrderExport,
	}, s, weekBefore, history, zaptest.NewLogger(t))
	return trigger, ran
}

func TestWeeklyTrigger_FiresOncePerSlot(t *testing.T) {
	trigger, ran := newTestTrigger(t, nil)
	slot := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

	assert.False(t, trigger.checkAndTrigger(slot.Add(-time.Minute)))
	assert.True(t, trigger.checkAndTrigger(slot))
	assert.False(t, trigger.checkAndTrigger(slot.Add(20*time.Second)))

	select {
	case job := <-ran:
		assert.Equal(t, JobKindWeeklyOrderExport, job.Kind)
		assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), job.PeriodStart)
		assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), job.PeriodEnd)
	case <-time.After(time.Second):
		require.FailNow(t, "scheduled job did not run")
	}

	assert.True(t, trigger.checkAndTrigger(slot.AddDate(0, 0, 7)))
}

func TestWeeklyTrigger_CatchUp(t *testing.T) {
	now := time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC)
	missedSlot := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	expected, _ := weekBefore(missedSlot)

	t.Run("older period is caught up", func(t *testing.T) {
		trigger, ran := newTestTrigger(t, stubHistory{record: &JobRecord{PeriodStart: expected.AddDate(0, 0, -7)}})
		assert.True(t, trigger.catchUp(context.Background(), now))
		job := <-ran
		assert.Equal(t, expected, job.PeriodStart)
	})

	t.Run("current period already recorded", func(t *testing.T) {
		trigger, _ := newTestTrigger(t, stubHistory{record: &JobRecord{PeriodStart: expected}})
		assert.False(t, trigger.catchUp(context.Background(), now))
	})

	t.Run("no history", func(t *testing.T) {
		trigger, _ := newTestTrigger(t, stubHistory{err: gorm.ErrRecordNotFound})
		assert.False(t, trigger.catchUp(context.Background(), now))
	})
}

func TestJobRepository(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&JobRecord{}))
	repo := NewJobRepository(db)
	ctx := context.Background()

	_, err = repo.LastJob(ctx, JobKindWeeklyOrderExport)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	start := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	job := NewJob(JobKindWeeklyOrderExport, start, start.AddDate(0, 0, 6), 3)
	job.Start()
	require.NoError(t, repo.Record(ctx, job))
	job.Fail("weclapp: HTTP 503")
	job.RetryCount = 1
	require.NoError(t, repo.Record(ctx, job))

	var count int64
	require.NoError(t, db.Model(&JobRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	last, err := repo.LastJob(ctx, JobKindWeeklyOrderExport)
	require.NoError(t, err)
	assert.Equal(t, job.ID, last.ID)
	assert.Equal(t, string(JobStatusFailed), last.Status)
	assert.Equal(t, "weclapp: HTTP 503", last.Error)
	assert.Equal(t, 1, last.RetryCount)
	assert.True(t, start.Equal(last.PeriodStart))
}
