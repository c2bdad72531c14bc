package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WeeklySchedule is a day of week and time of day
type WeeklySchedule struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

// DefaultWeeklySchedule is Monday 06:00
var DefaultWeeklySchedule = WeeklySchedule{Weekday: time.Monday, Hour: 6}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWeeklySchedule reads "minute hour * * weekday". Weekday is 0-7
// (0 and 7 are Sunday) or a three-letter name. Empty or "*" fields keep
// the DefaultWeeklySchedule values.
func ParseWeeklySchedule(expr string) (WeeklySchedule, error) {
	s := DefaultWeeklySchedule
	parts := strings.Fields(expr)
	if len(parts) == 0 {
		return s, nil
	}
	if len(parts) != 5 {
		return s, fmt.Errorf("%w: want 5 fields, got %d in %q", ErrInvalidSchedule, len(parts), expr)
	}

	var err error
	if s.Minute, err = field(parts[0], s.Minute, 0, 59); err != nil {
		return DefaultWeeklySchedule, fmt.Errorf("%w: minute: %v", ErrInvalidSchedule, err)
	}
	if s.Hour, err = field(parts[1], s.Hour, 0, 23); err != nil {
		return DefaultWeeklySchedule, fmt.Errorf("%w: hour: %v", ErrInvalidSchedule, err)
	}
	if day, ok := weekdayNames[strings.ToLower(parts[4])]; ok {
		s.Weekday = day
		return s, nil
	}
	dow, err := field(parts[4], int(s.Weekday), 0, 7)
	if err != nil {
		return DefaultWeeklySchedule, fmt.Errorf("%w: weekday: %v", ErrInvalidSchedule, err)
	}
	s.Weekday = time.Weekday(dow % 7)
	return s, nil
}

func field(s string, def, lo, hi int) (int, error) {
	if s == "*" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def, err
	}
	if v < lo || v > hi {
		return def, fmt.Errorf("%d out of range %d-%d", v, lo, hi)
	}
	return v, nil
}

// Due reports whether now is within the scheduled minute
func (s WeeklySchedule) Due(now time.Time) bool {
	return now.Weekday() == s.Weekday && now.Hour() == s.Hour && now.Minute() == s.Minute
}

// Next returns the first scheduled minute after now
func (s WeeklySchedule) Next(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, now.Location())
	next = next.AddDate(0, 0, (int(s.Weekday)-int(now.Weekday())+7)%7)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (s WeeklySchedule) String() string {
	return fmt.Sprintf("%s %02d:%02d", s.Weekday, s.Hour, s.Minute)
}

// PeriodFunc returns the reporting period of a run started at now
type PeriodFunc func(now time.Time) (start, end time.Time)

// WeeklyTriggerConfig holds configuration for the weekly trigger
type WeeklyTriggerConfig struct {
	Schedule      WeeklySchedule
	Kind          string
	MaxRetries    int
	CheckInterval time.Duration
}

// JobHistory looks up the last recorded job of a kind
type JobHistory interface {
	LastJob(ctx context.Context, kind string) (*JobRecord, error)
}

// WeeklyTrigger submits one job per week at the scheduled minute. With a
// JobHistory it also catches up on a slot missed while the process was
// down.
type WeeklyTrigger struct {
	config    WeeklyTriggerConfig
	scheduler *Scheduler
	period    PeriodFunc
	history   JobHistory
	logger    *zap.Logger

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewWeeklyTrigger creates a trigger feeding scheduler. history may be nil.
func NewWeeklyTrigger(config WeeklyTriggerConfig, scheduler *Scheduler, period PeriodFunc, history JobHistory, logger *zap.Logger) *WeeklyTrigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	return &WeeklyTrigger{
		config:    config,
		scheduler: scheduler,
		period:    period,
		history:   history,
		logger:    logger,
	}
}

// Start starts the scheduler and the trigger loop
func (t *WeeklyTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	if err := t.scheduler.Start(ctx); err != nil {
		return err
	}

	t.catchUp(ctx, time.Now())

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Weekly trigger started",
		zap.String("kind", t.config.Kind),
		zap.Stringer("schedule", t.config.Schedule),
		zap.Time("next_run_at", t.config.Schedule.Next(time.Now())),
	)
	return nil
}

// Stop stops the trigger loop, then the scheduler
func (t *WeeklyTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
	return t.scheduler.Stop(ctx)
}

func (t *WeeklyTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.checkAndTrigger(now)
		}
	}
}

// checkAndTrigger submits the job when now is due and this day has not
// run yet. It reports whether a job was submitted.
func (t *WeeklyTrigger) checkAndTrigger(now time.Time) bool {
	if !t.config.Schedule.Due(now) {
		return false
	}
	today := now.Format(time.DateOnly)

	t.mu.Lock()
	if t.lastRunDate == today {
		t.mu.Unlock()
		return false
	}
	t.lastRunDate = today
	t.mu.Unlock()

	start, end := t.period(now)
	job := NewJob(t.config.Kind, start, end, t.config.MaxRetries)
	if err := t.scheduler.SubmitJob(job); err != nil {
		t.logger.Error("Failed to submit scheduled job",
			zap.String("kind", t.config.Kind),
			zap.Error(err),
		)
		return false
	}
	t.logger.Info("Scheduled job submitted",
		zap.String("kind", t.config.Kind),
		zap.String("job_id", job.ID.String()),
		zap.Time("period_start", start),
		zap.Time("period_end", end),
	)
	return true
}

// catchUp submits the job for the most recent slot when the last recorded
// job covers an older period. Without any recorded job nothing is
// submitted; the first run waits for the schedule.
func (t *WeeklyTrigger) catchUp(ctx context.Context, now time.Time) bool {
	if t.history == nil {
		return false
	}
	last, err := t.history.LastJob(ctx, t.config.Kind)
	if err != nil {
		t.logger.Debug("No job history, skipping catch-up", zap.String("kind", t.config.Kind), zap.Error(err))
		return false
	}
	slot := t.config.Schedule.Next(now).AddDate(0, 0, -7)
	start, end := t.period(slot)
	if !last.PeriodStart.Before(start) {
		return false
	}

	job := NewJob(t.config.Kind, start, end, t.config.MaxRetries)
	if err := t.scheduler.SubmitJob(job); err != nil {
		t.logger.Error("Failed to submit catch-up job", zap.String("kind", t.config.Kind), zap.Error(err))
		return false
	}
	t.logger.Info("Missed scheduled run, catch-up job submitted",
		zap.String("kind", t.config.Kind),
		zap.Time("missed_slot", slot),
		zap.Time("period_start", start),
	)
	return true
}
