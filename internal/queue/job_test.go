package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewJob(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeScheduleOptimize, "2026-08-29")

	if job.ID == uuid.Nil {
		t.Error("expected a generated job ID")
	}
	if job.Type != JobTypeScheduleOptimize {
		t.Errorf("type = %s, want %s", job.Type, JobTypeScheduleOptimize)
	}
	if job.Date != "2026-08-29" {
		t.Errorf("date = %s, want 2026-08-29", job.Date)
	}
	if job.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", job.RetryCount)
	}
	if job.MaxRetries != 3 {
		t.Errorf("max retries = %d, want 3", job.MaxRetries)
	}
	if !job.ShouldProcess() {
		t.Error("a fresh job should be processable immediately")
	}
}

func TestJobShouldProcess(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name      string
		notBefore *time.Time
		notAfter  *time.Time
		want      bool
	}{
		{"no window", nil, nil, true},
		{"not before in past", &past, nil, true},
		{"not before in future", &future, nil, false},
		{"not after in future", nil, &future, true},
		{"not after in past", nil, &past, false},
		{"inside window", &past, &future, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := NewJob(JobTypeHistorySummarize, "2026-08-29")
			job.NotBefore = tt.notBefore
			job.NotAfter = tt.notAfter
			if got := job.ShouldProcess(); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJobIsExpired(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeScheduleOptimize, "2026-08-29")
	if job.IsExpired() {
		t.Error("job with no NotAfter must never expire")
	}

	past := time.Now().Add(-time.Minute)
	job.NotAfter = &past
	if !job.IsExpired() {
		t.Error("job past its NotAfter should be expired")
	}
}

func TestJobRetries(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeHistorySummarize, "2026-08-29")
	for i := 0; i < job.MaxRetries; i++ {
		if !job.CanRetry() {
			t.Fatalf("CanRetry() = false after %d retries, want true", i)
		}
		job.IncrementRetry()
	}
	if job.CanRetry() {
		t.Errorf("CanRetry() = true after %d retries, want false", job.RetryCount)
	}
}
