package workers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mstanton/daykeeper/internal/database"
	"github.com/mstanton/daykeeper/internal/queue"
	"github.com/mstanton/daykeeper/internal/services/ai"
)

// HistorySummarizer retries AI summarization for history records that
// were stored with a truncated fallback label.
type HistorySummarizer struct {
	summarizer  ai.Summarizer
	historyRepo database.HistoryRepositoryInterface
	logger      *zap.Logger
}

// NewHistorySummarizer creates a new history summarizer
func NewHistorySummarizer(summarizer ai.Summarizer, historyRepo database.HistoryRepositoryInterface, logger *zap.Logger) *HistorySummarizer {
	return &HistorySummarizer{
		summarizer:  summarizer,
		historyRepo: historyRepo,
		logger:      logger,
	}
}

// ProcessSummarizeJob replaces the fallback summary on the record named
// by the job. Records already summarized (or deleted) are skipped.
func (s *HistorySummarizer) ProcessSummarizeJob(ctx context.Context, job *queue.Job) error {
	if job.RecordID == nil {
		return fmt.Errorf("record_id is required for history summarize job")
	}

	record, err := s.historyRepo.GetByID(ctx, *job.RecordID)
	if err != nil {
		return fmt.Errorf("failed to get history record: %w", err)
	}
	if record == nil {
		s.logger.Info("summarize_skipped_record_gone", zap.String("record_id", job.RecordID.String()))
		return nil
	}
	if !record.SummaryPending {
		s.logger.Info("summarize_skipped_already_done", zap.String("record_id", job.RecordID.String()))
		return nil
	}

	summary, err := s.summarizer.Summarize(ctx, record.Description)
	if err != nil {
		return fmt.Errorf("failed to summarize goal: %w", err)
	}

	if err := s.historyRepo.UpdateSummary(ctx, record.ID, summary); err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}

	s.logger.Info("history_summarized",
		zap.String("record_id", record.ID.String()),
		zap.String("date", job.Date))
	return nil
}
