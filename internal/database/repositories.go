package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/mstanton/daykeeper/internal/models"
)

// PlanRepositoryInterface defines the interface for plan repository operations.
// This interface enables better testability by allowing mock implementations.
type PlanRepositoryInterface interface {
	GetByDate(ctx context.Context, date string) (*models.DailyPlan, error)
	Save(ctx context.Context, plan *models.DailyPlan) error
}

// ActiveGoalRepositoryInterface defines the interface for active goal repository operations.
type ActiveGoalRepositoryInterface interface {
	Get(ctx context.Context) (*models.ActiveGoal, error)
	Save(ctx context.Context, goal *models.ActiveGoal) error
	Clear(ctx context.Context) error
}

// StreakRepositoryInterface defines the interface for streak repository operations.
type StreakRepositoryInterface interface {
	Get(ctx context.Context) (*models.StreakData, error)
	Save(ctx context.Context, streak *models.StreakData) error
}

// HistoryRepositoryInterface defines the interface for history repository operations.
type HistoryRepositoryInterface interface {
	Append(ctx context.Context, record *models.CompletedGoalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CompletedGoalRecord, error)
	List(ctx context.Context, limit int) ([]*models.CompletedGoalRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateSummary(ctx context.Context, id uuid.UUID, summary string) error
}

// Ensure concrete types implement the interfaces
var (
	_ PlanRepositoryInterface       = (*PlanRepository)(nil)
	_ ActiveGoalRepositoryInterface = (*ActiveGoalRepository)(nil)
	_ StreakRepositoryInterface     = (*StreakRepository)(nil)
	_ HistoryRepositoryInterface    = (*HistoryRepository)(nil)
)
