package models

import (
	"time"

	"github.com/google/uuid"
)

// ActiveGoal is the single goal currently in progress. At most one exists
// at a time; it is owned by the session and cleared on completion, skip or
// reset.
type ActiveGoal struct {
	GoalID      *uuid.UUID     `json:"goal_id,omitempty"` // nil for ad hoc goals started outside a plan
	Description string         `json:"description"`
	Subject     string         `json:"subject,omitempty"`
	ActivatedAt time.Time      `json:"activated_at"`
	TimeLimit   *time.Duration `json:"time_limit,omitempty"`
	// PausedFor accumulates time spent waiting on failed external calls,
	// so the user is not penalized for system latency.
	PausedFor time.Duration `json:"paused_for"`
}

// Deadline returns the moment the time limit elapses, adjusted for paused
// time. The second return is false when the goal has no time limit.
func (a *ActiveGoal) Deadline() (time.Time, bool) {
	if a.TimeLimit == nil {
		return time.Time{}, false
	}
	return a.ActivatedAt.Add(*a.TimeLimit + a.PausedFor), true
}
