package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordKind distinguishes normal completions from skip reflections.
type RecordKind string

const (
	RecordKindCompleted  RecordKind = "completed"
	RecordKindReflection RecordKind = "reflection"
)

// CompletedGoalRecord is an immutable history entry appended when a goal
// completes or is skipped with a written reflection. Records are only ever
// deleted as a whole; the single exception is the summary label, which may
// be rewritten once by the summary-retry worker when the record was
// appended with a truncated fallback.
type CompletedGoalRecord struct {
	ID             uuid.UUID  `json:"id"`
	GoalID         *uuid.UUID `json:"goal_id,omitempty"`
	Kind           RecordKind `json:"kind"`
	Description    string     `json:"description"`
	Subject        string     `json:"subject,omitempty"`
	Summary        string     `json:"summary"`
	SummaryPending bool       `json:"summary_pending"`
	CompletedAt    time.Time  `json:"completed_at"`
}

// BreakAllocation is the derived break window granted after a completion.
// It is recomputed at each completion and never persisted.
type BreakAllocation struct {
	Duration   time.Duration `json:"duration"`
	AppliedTax time.Duration `json:"applied_tax"`
	NextGoalID *uuid.UUID    `json:"next_goal_id,omitempty"`
}
