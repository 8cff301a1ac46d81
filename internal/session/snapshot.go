package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/mstanton/daykeeper/internal/models"
)

// Snapshot is a read-only view of the session at one instant. All nested
// data is copied; mutating a snapshot never affects the engine.
type Snapshot struct {
	State             State                   `json:"state"`
	Plan              models.DailyPlan        `json:"plan"`
	Streak            models.StreakData       `json:"streak"`
	ActiveGoal        *models.ActiveGoal      `json:"active_goal,omitempty"`
	DeadlinePassed    bool                    `json:"deadline_passed"`
	Break             *models.BreakAllocation `json:"break,omitempty"`
	ChoiceRemaining   *time.Duration          `json:"choice_remaining,omitempty"`
	BreakRemaining    *time.Duration          `json:"break_remaining,omitempty"`
	PreparedGoalID    *uuid.UUID              `json:"prepared_goal_id,omitempty"`
	PreparedCodeReady bool                    `json:"prepared_code_ready"`
	DayFinished       bool                    `json:"day_finished"`
	Feedback          string                  `json:"feedback,omitempty"`
}

// snapshotLocked builds a Snapshot. Callers must hold the engine lock.
func (e *Engine) snapshotLocked(now time.Time) *Snapshot {
	snap := &Snapshot{
		State:          e.state,
		Streak:         *e.streak,
		DeadlinePassed: e.deadlinePassed,
		DayFinished:    e.plan.AllResolved(),
		Feedback:       e.feedback,
	}

	snap.Plan = models.DailyPlan{Date: e.plan.Date, Goals: make([]models.PlannedGoal, len(e.plan.Goals))}
	copy(snap.Plan.Goals, e.plan.Goals)

	if e.active != nil {
		active := *e.active
		snap.ActiveGoal = &active
	}
	if e.breakAlloc != nil {
		alloc := *e.breakAlloc
		snap.Break = &alloc
	}
	if e.prepared != nil {
		id := e.prepared.goalID
		snap.PreparedGoalID = &id
		snap.PreparedCodeReady = e.prepared.codeReady
	}
	snap.ChoiceRemaining = remaining(now, e.countdowns.choice)
	snap.BreakRemaining = remaining(now, e.countdowns.brk)

	return snap
}
