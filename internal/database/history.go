package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mstanton/daykeeper/internal/models"
)

// HistoryRepository handles completed-goal history records. Records are
// append-only; besides whole-record deletion the only write is the
// one-shot summary rewrite used by the summary-retry worker.
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append inserts a new history record.
func (r *HistoryRepository) Append(ctx context.Context, record *models.CompletedGoalRecord) error {
	query := `
		INSERT INTO history (id, goal_id, kind, description, subject, summary, summary_pending, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.GoalID,
		record.Kind,
		record.Description,
		record.Subject,
		record.Summary,
		record.SummaryPending,
		record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}

	return nil
}

// GetByID retrieves a single history record.
func (r *HistoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CompletedGoalRecord, error) {
	query := `
		SELECT id, goal_id, kind, description, subject, summary, summary_pending, completed_at
		FROM history
		WHERE id = $1
	`

	record := &models.CompletedGoalRecord{}
	var goalID uuid.NullUUID
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID,
		&goalID,
		&record.Kind,
		&record.Description,
		&record.Subject,
		&record.Summary,
		&record.SummaryPending,
		&record.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history record: %w", err)
	}
	if goalID.Valid {
		record.GoalID = &goalID.UUID
	}

	return record, nil
}

// List returns history records, newest first.
func (r *HistoryRepository) List(ctx context.Context, limit int) ([]*models.CompletedGoalRecord, error) {
	query := `
		SELECT id, goal_id, kind, description, subject, summary, summary_pending, completed_at
		FROM history
		ORDER BY completed_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	var records []*models.CompletedGoalRecord
	for rows.Next() {
		record := &models.CompletedGoalRecord{}
		var goalID uuid.NullUUID
		if err := rows.Scan(
			&record.ID,
			&goalID,
			&record.Kind,
			&record.Description,
			&record.Subject,
			&record.Summary,
			&record.SummaryPending,
			&record.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		if goalID.Valid {
			record.GoalID = &goalID.UUID
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// Delete removes a record as a whole.
func (r *HistoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete history record: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("history record %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// UpdateSummary rewrites the summary label of a record that was appended
// with a pending fallback, and clears the pending flag. A record whose
// summary is no longer pending is left untouched.
func (r *HistoryRepository) UpdateSummary(ctx context.Context, id uuid.UUID, summary string) error {
	query := `
		UPDATE history
		SET summary = $2, summary_pending = FALSE
		WHERE id = $1 AND summary_pending = TRUE
	`

	if _, err := r.db.ExecContext(ctx, query, id, summary); err != nil {
		return fmt.Errorf("failed to update history summary: %w", err)
	}
	return nil
}
