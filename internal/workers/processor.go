// Package workers implements background job processing for schedule
// optimization and history summarization.
package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mstanton/daykeeper/internal/queue"
	"github.com/mstanton/daykeeper/internal/services/ai"
)

// Processor dispatches queue messages to the job handlers and owns the
// ack/nack/retry decisions.
type Processor struct {
	optimizer  *ScheduleOptimizer
	summarizer *HistorySummarizer
	jobQueue   queue.JobQueue // for re-enqueueing jobs with delays
	logger     *zap.Logger
}

// NewProcessor creates a new job processor
func NewProcessor(optimizer *ScheduleOptimizer, summarizer *HistorySummarizer, jobQueue queue.JobQueue, logger *zap.Logger) *Processor {
	return &Processor{
		optimizer:  optimizer,
		summarizer: summarizer,
		jobQueue:   jobQueue,
		logger:     logger,
	}
}

// ProcessJob processes a single message from the queue
func (p *Processor) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	// NotBefore not yet reached: requeue and let the broker redeliver.
	if !job.ShouldProcess() {
		p.logger.Debug("job_not_ready",
			zap.String("job_id", job.ID.String()),
			zap.String("type", string(job.Type)))
		return msg.Nack(true)
	}

	var err error
	switch job.Type {
	case queue.JobTypeScheduleOptimize:
		err = p.optimizer.ProcessOptimizeJob(ctx, job)
	case queue.JobTypeHistorySummarize:
		err = p.summarizer.ProcessSummarizeJob(ctx, job)
	default:
		p.logger.Warn("unknown_job_type",
			zap.String("job_id", job.ID.String()),
			zap.String("type", string(job.Type)))
		return msg.Nack(false) // dead-letter unknown types
	}

	if err != nil {
		return p.handleJobError(ctx, msg, err)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		p.logger.Error("failed_to_ack_job",
			zap.String("job_id", job.ID.String()),
			zap.Error(ackErr))
		return ackErr
	}
	return nil
}

// handleJobError decides between delayed retry and dead-lettering.
// Rate-limit and quota errors re-enqueue with a NotBefore delay so the
// delayed exchange holds them; everything else retries immediately
// until MaxRetries, then goes to the DLQ.
func (p *Processor) handleJobError(ctx context.Context, msg queue.MessageInterface, err error) error {
	job := msg.GetJob()

	p.logger.Error("job_failed",
		zap.String("job_id", job.ID.String()),
		zap.String("type", string(job.Type)),
		zap.Int("retry_count", job.RetryCount),
		zap.Error(err))

	if !job.CanRetry() {
		p.logger.Warn("job_exhausted_retries", zap.String("job_id", job.ID.String()))
		return msg.Nack(false)
	}

	if ai.IsRateLimitError(err) || ai.IsQuotaError(err) {
		return p.reenqueueDelayed(ctx, msg, ai.GetRetryDelay(err, job.RetryCount))
	}

	// Transient failure: requeue for immediate redelivery.
	retried := *job
	retried.IncrementRetry()
	if enqueueErr := p.jobQueue.Enqueue(ctx, &retried); enqueueErr != nil {
		p.logger.Error("failed_to_reenqueue_job",
			zap.String("job_id", job.ID.String()),
			zap.Error(enqueueErr))
		return msg.Nack(false)
	}
	return msg.Ack()
}

func (p *Processor) reenqueueDelayed(ctx context.Context, msg queue.MessageInterface, delay time.Duration) error {
	job := msg.GetJob()
	notBefore := time.Now().Add(delay)

	retried := *job
	retried.IncrementRetry()
	retried.NotBefore = &notBefore

	if p.jobQueue == nil {
		p.logger.Warn("no_queue_for_delayed_retry", zap.String("job_id", job.ID.String()))
		return msg.Nack(false)
	}
	if enqueueErr := p.jobQueue.Enqueue(ctx, &retried); enqueueErr != nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Error("failed_to_nack_job",
				zap.String("job_id", job.ID.String()),
				zap.Error(nackErr))
		}
		return fmt.Errorf("failed to re-enqueue delayed job: %w", enqueueErr)
	}

	p.logger.Info("job_reenqueued_with_delay",
		zap.String("job_id", job.ID.String()),
		zap.Duration("delay", delay),
		zap.Time("not_before", notBefore))
	return msg.Ack()
}
