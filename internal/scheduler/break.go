package scheduler

import (
	"time"

	"github.com/mstanton/daykeeper/internal/models"
)

// AvailableBreak computes the break granted after completing a goal: the
// gap between the completed goal's scheduled end and the next pending
// goal's scheduled start, floored at zero. The returned goal is the break's
// next-goal candidate; both are zero-valued when no pending scheduled goal
// remains.
func AvailableBreak(completed models.PlannedGoal, goals []models.PlannedGoal) (time.Duration, *models.PlannedGoal) {
	var next *models.PlannedGoal
	for i := range goals {
		g := &goals[i]
		if g.ID == completed.ID || !g.IsPending() || g.ScheduledStart == nil {
			continue
		}
		if next == nil || *g.ScheduledStart < *next.ScheduledStart {
			next = g
		}
	}
	if next == nil || completed.ScheduledEnd == nil {
		return 0, next
	}
	if *next.ScheduledStart <= *completed.ScheduledEnd {
		return 0, next
	}
	return next.ScheduledStart.Sub(*completed.ScheduledEnd), next
}

// ApplyTax deducts the streak's accrued tax from a computed break, floored
// at zero. The full debt is consumed by this single application; the
// returned appliedTax is what was actually deducted, surfaced to the user.
func ApplyTax(breakDur time.Duration, streak *models.StreakData) (finalBreak, appliedTax time.Duration) {
	tax := streak.ConsumeTax()
	if tax <= 0 {
		return breakDur, 0
	}
	if tax >= breakDur {
		return 0, breakDur
	}
	return breakDur - tax, tax
}
