package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeScheduleOptimize asks the schedule oracle to reorder a day's
	// pending goals.
	JobTypeScheduleOptimize JobType = "schedule_optimize"
	// JobTypeHistorySummarize retries the AI summary for a history record
	// that was appended with a truncated fallback label.
	JobTypeHistorySummarize JobType = "history_summarize"
)

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Type       JobType    `json:"type"`
	Date       string     `json:"date"`                 // plan date the job concerns
	RecordID   *uuid.UUID `json:"record_id,omitempty"`  // history record, for summarize jobs
	NotBefore  *time.Time `json:"not_before,omitempty"` // earliest time to process (nil = immediate)
	NotAfter   *time.Time `json:"not_after,omitempty"`  // latest time to process (nil = no expiration)
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, date string) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		Date:       date,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3,
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
