package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mstanton/daykeeper/internal/models"
)

// StreakRepository persists the single rolling streak record.
type StreakRepository struct {
	db *DB
}

// NewStreakRepository creates a new streak repository.
func NewStreakRepository(db *DB) *StreakRepository {
	return &StreakRepository{db: db}
}

// Get returns the streak record, or (nil, nil) when none has been saved yet.
func (r *StreakRepository) Get(ctx context.Context) (*models.StreakData, error) {
	query := `
		SELECT data
		FROM streak
		WHERE id = 1
	`

	var dataJSON []byte
	err := r.db.QueryRowContext(ctx, query).Scan(&dataJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}

	streak := &models.StreakData{}
	if err := json.Unmarshal(dataJSON, streak); err != nil {
		return nil, fmt.Errorf("failed to unmarshal streak: %w", err)
	}

	return streak, nil
}

// Save upserts the streak record.
func (r *StreakRepository) Save(ctx context.Context, streak *models.StreakData) error {
	dataJSON, err := json.Marshal(streak)
	if err != nil {
		return fmt.Errorf("failed to marshal streak: %w", err)
	}

	query := `
		INSERT INTO streak (id, data, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET data = $1, updated_at = $2
	`

	if _, err := r.db.ExecContext(ctx, query, dataJSON, time.Now()); err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}

	return nil
}
