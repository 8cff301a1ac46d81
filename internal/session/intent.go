package session

import (
	"github.com/google/uuid"
)

// IntentKind is the closed set of user and clock actions the session accepts.
type IntentKind string

const (
	// IntentStartGoal starts a planned or ad hoc goal from PlanningToday.
	IntentStartGoal IntentKind = "start_goal"
	// IntentCodeSequestered confirms the start code has been captured and
	// locked away; it activates the pending goal, or marks the prepared
	// next goal ready during a break.
	IntentCodeSequestered IntentKind = "code_sequestered"
	// IntentSubmitProof submits completion proof for verification.
	IntentSubmitProof IntentKind = "submit_proof"
	// IntentVerificationMessage sends a follow-up message in the
	// re-verification conversation after a rejected proof.
	IntentVerificationMessage IntentKind = "verification_message"
	// IntentSkipGoal abandons the active goal, substituting a reflection goal.
	IntentSkipGoal IntentKind = "skip_goal"
	// IntentPickNextGoal chooses the next goal during AwaitingBreakChoice.
	IntentPickNextGoal IntentKind = "pick_next_goal"
	// IntentOpenHistory and IntentOpenWeeklyPlan enter the side views.
	IntentOpenHistory    IntentKind = "open_history"
	IntentOpenWeeklyPlan IntentKind = "open_weekly_plan"
	// IntentCloseView leaves a side view or the completed screen.
	IntentCloseView IntentKind = "close_view"
	// IntentReset abandons the session and returns to planning.
	IntentReset IntentKind = "reset"
	// IntentTick is the periodic clock sample driving countdowns.
	IntentTick IntentKind = "tick"
)

// GoalInput describes a goal to start or add. Schedule times use "HH:mm".
type GoalInput struct {
	Description      string  `json:"description" validate:"required,min=1,max=2000"`
	Subject          string  `json:"subject,omitempty" validate:"max=200"`
	ScheduledStart   *string `json:"scheduled_start,omitempty"`
	ScheduledEnd     *string `json:"scheduled_end,omitempty"`
	EstimatedMinutes *int    `json:"estimated_minutes,omitempty" validate:"omitempty,min=1,max=1440"`
}

// Intent is the single entry point payload for all session actions.
type Intent struct {
	Kind    IntentKind `json:"kind" validate:"required"`
	GoalID  *uuid.UUID `json:"goal_id,omitempty"` // start_goal from plan, pick_next_goal
	Goal    *GoalInput `json:"goal,omitempty"`    // start_goal ad hoc
	Proof   string     `json:"proof,omitempty"`   // submit_proof
	Message string     `json:"message,omitempty"` // verification_message
}
