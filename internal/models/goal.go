package models

import (
	"time"

	"github.com/google/uuid"
)

// GoalStatus represents the lifecycle status of a planned goal.
// The status is monotonic: once completed or skipped it never reverts.
type GoalStatus string

const (
	GoalStatusPending   GoalStatus = "pending"
	GoalStatusCompleted GoalStatus = "completed"
	GoalStatusSkipped   GoalStatus = "skipped"
)

// PlannedGoal is a task scheduled within a day.
type PlannedGoal struct {
	ID               uuid.UUID  `json:"id"`
	Description      string     `json:"description"`
	Subject          string     `json:"subject,omitempty"`
	ScheduledStart   *TimeOfDay `json:"scheduled_start,omitempty"`
	ScheduledEnd     *TimeOfDay `json:"scheduled_end,omitempty"`
	EstimatedMinutes *int       `json:"estimated_minutes,omitempty"`
	Status           GoalStatus `json:"status"`
}

// IsPending reports whether the goal has not yet been completed or skipped.
func (g *PlannedGoal) IsPending() bool {
	return g.Status == GoalStatusPending
}

// IsScheduled reports whether the goal carries both a start and an end time.
func (g *PlannedGoal) IsScheduled() bool {
	return g.ScheduledStart != nil && g.ScheduledEnd != nil
}

// ScheduledDuration returns the span between the scheduled start and end times.
func (g *PlannedGoal) ScheduledDuration() (time.Duration, bool) {
	if !g.IsScheduled() || *g.ScheduledEnd <= *g.ScheduledStart {
		return 0, false
	}
	return g.ScheduledEnd.Sub(*g.ScheduledStart), true
}

// Estimate returns the goal's estimated duration, falling back to the
// scheduled span when no explicit estimate exists.
func (g *PlannedGoal) Estimate() (time.Duration, bool) {
	if g.EstimatedMinutes != nil && *g.EstimatedMinutes > 0 {
		return time.Duration(*g.EstimatedMinutes) * time.Minute, true
	}
	return g.ScheduledDuration()
}
