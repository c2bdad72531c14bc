package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRecord is the persisted state of a job
type JobRecord struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Kind        string     `gorm:"column:kind;size:50;not null"`
	PeriodStart time.Time  `gorm:"column:period_start;not null"`
	PeriodEnd   time.Time  `gorm:"column:period_end;not null"`
	Status      string     `gorm:"column:status;size:20;not null"`
	Error       string     `gorm:"column:last_error;type:text"`
	RetryCount  int        `gorm:"column:retry_count;not null"`
	StartedAt   *time.Time `gorm:"column:started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

// TableName returns the table name for GORM
func (JobRecord) TableName() string {
	return "scheduler_jobs"
}

// JobRepository stores job state in scheduler_jobs
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Record implements JobRecorder. One row per job is kept and updated on
// every attempt.
func (r *JobRepository) Record(ctx context.Context, job *Job) error {
	record := &JobRecord{
		ID:          job.ID,
		Kind:        job.Kind,
		PeriodStart: job.PeriodStart,
		PeriodEnd:   job.PeriodEnd,
		Status:      string(job.Status),
		Error:       job.Error,
		RetryCount:  job.RetryCount,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "last_error", "retry_count", "started_at", "completed_at", "updated_at",
		}),
	}).Create(record).Error
}

// LastJob returns the most recently started job of kind
func (r *JobRepository) LastJob(ctx context.Context, kind string) (*JobRecord, error) {
	var record JobRecord
	err := r.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("started_at DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}
