package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// PlanDateFormat is the calendar-date key format for daily plans.
const PlanDateFormat = "2006-01-02"

// DailyPlan holds one day's goals. The goal order in storage is not
// meaningful; callers derive ordering by scheduled start time.
type DailyPlan struct {
	Date  string        `json:"date"`
	Goals []PlannedGoal `json:"goals"`
}

// NewDailyPlan creates an empty plan for the given date.
func NewDailyPlan(date time.Time) *DailyPlan {
	return &DailyPlan{Date: date.Format(PlanDateFormat), Goals: []PlannedGoal{}}
}

// Goal returns a pointer into the plan's goal slice, or nil if absent.
func (p *DailyPlan) Goal(id uuid.UUID) *PlannedGoal {
	for i := range p.Goals {
		if p.Goals[i].ID == id {
			return &p.Goals[i]
		}
	}
	return nil
}

// SortedGoals returns the goals ordered ascending by scheduled start time.
// Unscheduled goals sort last, in their insertion order.
func (p *DailyPlan) SortedGoals() []PlannedGoal {
	goals := make([]PlannedGoal, len(p.Goals))
	copy(goals, p.Goals)
	sort.SliceStable(goals, func(i, j int) bool {
		a, b := goals[i].ScheduledStart, goals[j].ScheduledStart
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return goals
}

// NextPending returns the earliest-starting pending goal that has a
// scheduled start time, or nil if none exists.
func (p *DailyPlan) NextPending() *PlannedGoal {
	var next *PlannedGoal
	for i := range p.Goals {
		g := &p.Goals[i]
		if !g.IsPending() || g.ScheduledStart == nil {
			continue
		}
		if next == nil || *g.ScheduledStart < *next.ScheduledStart {
			next = g
		}
	}
	return next
}

// AllResolved reports whether every goal in the plan has been completed or
// skipped. An empty plan is not considered resolved.
func (p *DailyPlan) AllResolved() bool {
	if len(p.Goals) == 0 {
		return false
	}
	for i := range p.Goals {
		if p.Goals[i].IsPending() {
			return false
		}
	}
	return true
}

// Validate checks the plan's non-overlap invariant: no two pending goals
// with both a start and an end time may overlap.
func (p *DailyPlan) Validate() error {
	type span struct {
		id         uuid.UUID
		start, end TimeOfDay
	}
	var spans []span
	for i := range p.Goals {
		g := &p.Goals[i]
		if !g.IsPending() || !g.IsScheduled() {
			continue
		}
		if *g.ScheduledEnd <= *g.ScheduledStart {
			return fmt.Errorf("goal %s: scheduled end %s is not after start %s", g.ID, g.ScheduledEnd, g.ScheduledStart)
		}
		spans = append(spans, span{g.ID, *g.ScheduledStart, *g.ScheduledEnd})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return fmt.Errorf("goals %s and %s overlap", spans[i-1].id, spans[i].id)
		}
	}
	return nil
}
