// Package scheduler holds the pure scheduling computations: the lateness
// tax charged for starting a goal behind schedule, the cascade that shifts
// later pending goals out of the way, and break allocation between goals.
package scheduler

import (
	"time"

	"github.com/google/uuid"
	"github.com/mstanton/daykeeper/internal/models"
)

const (
	// LatenessGrace is the delay tolerated before any tax is charged.
	LatenessGrace = time.Minute
	// latenessTaxRate is the fraction of the delay charged as tax.
	latenessTaxRate = 0.25
)

// LatenessTax computes the tax for starting a goal after its scheduled
// time: zero within the grace period, otherwise a quarter of the delay
// rounded to the nearest millisecond. Callers merge the result additively
// into the streak's accrued tax.
func LatenessTax(scheduledStart, actualStart time.Time) time.Duration {
	delay := actualStart.Sub(scheduledStart)
	if delay <= LatenessGrace {
		return 0
	}
	return time.Duration(float64(delay) * latenessTaxRate).Round(time.Millisecond)
}

// CascadeReschedule shifts pending goals scheduled after a late-started
// goal so that nothing overlaps its new implied end. The walk is
// conservative: it stops at the first goal that already starts at or after
// the cursor, assuming later goals were spaced with slack. It returns the
// rewritten plan and the IDs of the goals that were shifted; all other
// goals are untouched.
func CascadeReschedule(plan models.DailyPlan, started models.PlannedGoal, actualStart time.Time) (models.DailyPlan, []uuid.UUID) {
	if started.ScheduledStart == nil {
		return plan, nil
	}
	dur, ok := started.Estimate()
	if !ok {
		return plan, nil
	}

	out := plan
	out.Goals = make([]models.PlannedGoal, len(plan.Goals))
	copy(out.Goals, plan.Goals)

	// Later pending goals, ascending by scheduled start.
	var later []*models.PlannedGoal
	for i := range out.Goals {
		g := &out.Goals[i]
		if g.ID == started.ID || !g.IsPending() || g.ScheduledStart == nil {
			continue
		}
		if *g.ScheduledStart > *started.ScheduledStart {
			later = append(later, g)
		}
	}
	sortByStart(later)

	cursor := models.TimeOfDayFrom(actualStart).Add(dur)
	var shifted []uuid.UUID
	for _, g := range later {
		if *g.ScheduledStart >= cursor {
			break
		}
		if span, ok := g.ScheduledDuration(); ok {
			g.ScheduledStart = models.TimeOfDayPtr(cursor)
			g.ScheduledEnd = models.TimeOfDayPtr(cursor.Add(span))
			cursor = *g.ScheduledEnd
		} else {
			// No end time: move the start, the cursor stays at the new start.
			g.ScheduledStart = models.TimeOfDayPtr(cursor)
		}
		shifted = append(shifted, g.ID)
	}
	return out, shifted
}

func sortByStart(goals []*models.PlannedGoal) {
	for i := 1; i < len(goals); i++ {
		for j := i; j > 0 && *goals[j].ScheduledStart < *goals[j-1].ScheduledStart; j-- {
			goals[j], goals[j-1] = goals[j-1], goals[j]
		}
	}
}
