// Package session implements the daily goal session: a single-actor state
// machine driven by user intents, external verification results and clock
// ticks. All transitions execute to completion under one lock; the only
// suspension points are the external verification call and the periodic
// tick.
package session

// State identifies the session's position in the daily lifecycle.
type State string

const (
	StatePlanningToday       State = "planning_today"
	StateAwaitingCode        State = "awaiting_code"
	StateGoalActive          State = "goal_active"
	StateVerifyingProof      State = "verifying_proof"
	StateGoalCompleted       State = "goal_completed"
	StateAwaitingBreakChoice State = "awaiting_break_choice"
	StateBreakActive         State = "break_active"
	StateHistoryView         State = "history_view"
	StateWeeklyPlanView      State = "weekly_plan_view"
)

// sideStates are reachable only from PlanningToday and always return to it;
// they never interact with the active-goal lifecycle.
func (s State) isSideState() bool {
	return s == StateHistoryView || s == StateWeeklyPlanView
}
