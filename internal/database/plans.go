package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mstanton/daykeeper/internal/models"
)

// PlanRepository handles daily plan database operations.
type PlanRepository struct {
	db *DB
}

// NewPlanRepository creates a new plan repository.
func NewPlanRepository(db *DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// GetByDate retrieves the plan for a calendar date. Returns (nil, nil) when
// no plan exists yet; the caller seeds an empty one on first access.
func (r *PlanRepository) GetByDate(ctx context.Context, date string) (*models.DailyPlan, error) {
	query := `
		SELECT date, goals
		FROM daily_plans
		WHERE date = $1
	`

	var goalsJSON []byte
	plan := &models.DailyPlan{}
	err := r.db.QueryRowContext(ctx, query, date).Scan(&plan.Date, &goalsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	if err := json.Unmarshal(goalsJSON, &plan.Goals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal goals: %w", err)
	}

	return plan, nil
}

// Save upserts a plan by date.
func (r *PlanRepository) Save(ctx context.Context, plan *models.DailyPlan) error {
	goalsJSON, err := json.Marshal(plan.Goals)
	if err != nil {
		return fmt.Errorf("failed to marshal goals: %w", err)
	}

	query := `
		INSERT INTO daily_plans (date, goals, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (date) DO UPDATE SET goals = $2, updated_at = $3
	`

	if _, err := r.db.ExecContext(ctx, query, plan.Date, goalsJSON, time.Now()); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	return nil
}

// ListDates returns the plan dates present in storage, newest first.
func (r *PlanRepository) ListDates(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT date
		FROM daily_plans
		ORDER BY date DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan dates: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("failed to scan plan date: %w", err)
		}
		dates = append(dates, date)
	}

	return dates, rows.Err()
}
