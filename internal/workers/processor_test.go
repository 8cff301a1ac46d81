package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mstanton/daykeeper/internal/models"
	"github.com/mstanton/daykeeper/internal/queue"
	"github.com/mstanton/daykeeper/internal/services/ai"
)

type fakeMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *fakeMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *fakeMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *fakeMessage) GetJob() *queue.Job { return m.job }

type fakeJobQueue struct {
	enqueued   []*queue.Job
	enqueueErr error
}

func (q *fakeJobQueue) Enqueue(_ context.Context, job *queue.Job) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.enqueued = append(q.enqueued, job)
	return nil
}

func (q *fakeJobQueue) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, nil
}

func (q *fakeJobQueue) Close() error { return nil }

func (q *fakeJobQueue) HealthCheck(context.Context) error { return nil }

// processorFixture builds a processor whose optimizer sees a two-goal plan
// for 2026-08-29, so optimize jobs exercise the oracle.
func processorFixture(t *testing.T, oracle *fakeOracle) (*Processor, *fakeJobQueue) {
	t.Helper()
	g1 := slotGoal(t, "deep work", "09:00", "10:00")
	g2 := slotGoal(t, "review", "10:00", "11:00")
	planRepo := newFakePlanRepo()
	planRepo.plans["2026-08-29"] = &models.DailyPlan{
		Date:  "2026-08-29",
		Goals: []models.PlannedGoal{g1, g2},
	}

	jobQueue := &fakeJobQueue{}
	processor := NewProcessor(
		NewScheduleOptimizer(oracle, planRepo, zap.NewNop()),
		NewHistorySummarizer(&fakeSummarizer{summary: "ok"}, newFakeHistoryRepo(), zap.NewNop()),
		jobQueue,
		zap.NewNop(),
	)
	return processor, jobQueue
}

func TestProcessJob_AcksOnSuccess(t *testing.T) {
	t.Parallel()

	processor, jobQueue := processorFixture(t, &fakeOracle{})
	msg := &fakeMessage{job: optimizeJob("2026-08-29")}

	if err := processor.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}
	if !msg.acked || msg.nacked {
		t.Errorf("acked=%v nacked=%v, want ack only", msg.acked, msg.nacked)
	}
	if len(jobQueue.enqueued) != 0 {
		t.Error("nothing should be re-enqueued on success")
	}
}

func TestProcessJob_RequeuesNotReadyJob(t *testing.T) {
	t.Parallel()

	processor, _ := processorFixture(t, &fakeOracle{})
	job := optimizeJob("2026-08-29")
	notBefore := time.Now().Add(time.Hour)
	job.NotBefore = &notBefore
	msg := &fakeMessage{job: job}

	if err := processor.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}
	if !msg.nacked || !msg.requeue {
		t.Errorf("nacked=%v requeue=%v, want requeueing nack", msg.nacked, msg.requeue)
	}
}

func TestProcessJob_DeadLettersUnknownType(t *testing.T) {
	t.Parallel()

	processor, _ := processorFixture(t, &fakeOracle{})
	msg := &fakeMessage{job: queue.NewJob(queue.JobType("nonsense"), "2026-08-29")}

	if err := processor.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}
	if !msg.nacked || msg.requeue {
		t.Errorf("nacked=%v requeue=%v, want dead-lettering nack", msg.nacked, msg.requeue)
	}
}

func TestProcessJob_RetriesTransientFailure(t *testing.T) {
	t.Parallel()

	processor, jobQueue := processorFixture(t, &fakeOracle{err: errors.New("connection reset")})
	msg := &fakeMessage{job: optimizeJob("2026-08-29")}

	if err := processor.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}
	if !msg.acked {
		t.Error("original message should be acked after re-enqueue")
	}
	if len(jobQueue.enqueued) != 1 {
		t.Fatalf("enqueued = %d, want 1", len(jobQueue.enqueued))
	}
	retried := jobQueue.enqueued[0]
	if retried.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", retried.RetryCount)
	}
	if retried.NotBefore != nil {
		t.Error("transient retries redeliver immediately, without a delay")
	}
}

func TestProcessJob_DelaysRateLimitedRetry(t *testing.T) {
	t.Parallel()

	rateLimitErr := &ai.APIError{StatusCode: 429, Type: "rate_limit_error", Message: "slow down"}
	processor, jobQueue := processorFixture(t, &fakeOracle{err: rateLimitErr})
	msg := &fakeMessage{job: optimizeJob("2026-08-29")}

	if err := processor.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}
	if !msg.acked {
		t.Error("original message should be acked after the delayed re-enqueue")
	}
	if len(jobQueue.enqueued) != 1 {
		t.Fatalf("enqueued = %d, want 1", len(jobQueue.enqueued))
	}
	retried := jobQueue.enqueued[0]
	if retried.NotBefore == nil || !retried.NotBefore.After(time.Now()) {
		t.Errorf("not before = %v, want a future delay", retried.NotBefore)
	}
	if retried.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", retried.RetryCount)
	}
}

func TestProcessJob_DeadLettersExhaustedJob(t *testing.T) {
	t.Parallel()

	processor, jobQueue := processorFixture(t, &fakeOracle{err: errors.New("still failing")})
	job := optimizeJob("2026-08-29")
	job.RetryCount = job.MaxRetries
	msg := &fakeMessage{job: job}

	if err := processor.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}
	if !msg.nacked || msg.requeue {
		t.Errorf("nacked=%v requeue=%v, want dead-lettering nack", msg.nacked, msg.requeue)
	}
	if len(jobQueue.enqueued) != 0 {
		t.Error("an exhausted job must not be re-enqueued")
	}
}

func TestProcessJob_NacksWhenDelayedEnqueueFails(t *testing.T) {
	t.Parallel()

	rateLimitErr := &ai.APIError{StatusCode: 429, Type: "rate_limit_error", Message: "slow down"}
	processor, jobQueue := processorFixture(t, &fakeOracle{err: rateLimitErr})
	jobQueue.enqueueErr = errors.New("broker down")
	msg := &fakeMessage{job: optimizeJob("2026-08-29")}

	if err := processor.ProcessJob(context.Background(), msg); err == nil {
		t.Error("expected the enqueue failure to propagate")
	}
	if !msg.nacked || msg.requeue {
		t.Errorf("nacked=%v requeue=%v, want dead-lettering nack", msg.nacked, msg.requeue)
	}
}
