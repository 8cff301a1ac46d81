package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mstanton/daykeeper/internal/models"
)

// ActiveGoalRepository persists the single in-progress goal. The table
// holds at most one row; clearing it is how a goal stops being active.
type ActiveGoalRepository struct {
	db *DB
}

// NewActiveGoalRepository creates a new active goal repository.
func NewActiveGoalRepository(db *DB) *ActiveGoalRepository {
	return &ActiveGoalRepository{db: db}
}

// Get returns the active goal, or (nil, nil) when no goal is active.
func (r *ActiveGoalRepository) Get(ctx context.Context) (*models.ActiveGoal, error) {
	query := `
		SELECT goal
		FROM active_goal
		WHERE id = 1
	`

	var goalJSON []byte
	err := r.db.QueryRowContext(ctx, query).Scan(&goalJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active goal: %w", err)
	}

	goal := &models.ActiveGoal{}
	if err := json.Unmarshal(goalJSON, goal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal active goal: %w", err)
	}

	return goal, nil
}

// Save upserts the active goal row.
func (r *ActiveGoalRepository) Save(ctx context.Context, goal *models.ActiveGoal) error {
	goalJSON, err := json.Marshal(goal)
	if err != nil {
		return fmt.Errorf("failed to marshal active goal: %w", err)
	}

	query := `
		INSERT INTO active_goal (id, goal, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET goal = $1, updated_at = $2
	`

	if _, err := r.db.ExecContext(ctx, query, goalJSON, time.Now()); err != nil {
		return fmt.Errorf("failed to save active goal: %w", err)
	}

	return nil
}

// Clear removes the active goal row. Clearing an already-empty table is
// not an error.
func (r *ActiveGoalRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM active_goal WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to clear active goal: %w", err)
	}
	return nil
}
