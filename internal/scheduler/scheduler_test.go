package scheduler

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mstanton/daykeeper/internal/models"
)

func mustTOD(t *testing.T, s string) models.TimeOfDay {
	t.Helper()
	tod, err := models.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%s): %v", s, err)
	}
	return tod
}

func todPtr(t *testing.T, s string) *models.TimeOfDay {
	t.Helper()
	tod := mustTOD(t, s)
	return &tod
}

func at(t *testing.T, s string) time.Time {
	t.Helper()
	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	return mustTOD(t, s).At(day)
}

func TestLatenessTax(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		scheduled string
		actual    string
		want      time.Duration
	}{
		{"on time", "09:00", "09:00", 0},
		{"early start", "09:00", "08:50", 0},
		{"within grace", "09:00", "09:01", 0},
		{"just past grace", "09:00", "09:02", 30 * time.Second},
		{"twenty minutes late", "09:00", "09:20", 5 * time.Minute},
		{"an hour late", "09:00", "10:00", 15 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := LatenessTax(at(t, tt.scheduled), at(t, tt.actual))
			if got != tt.want {
				t.Errorf("LatenessTax(%s, %s) = %v, want %v", tt.scheduled, tt.actual, got, tt.want)
			}
		})
	}
}

func TestLatenessTax_Rounding(t *testing.T) {
	t.Parallel()

	scheduled := at(t, "09:00")
	actual := scheduled.Add(2*time.Minute + 2*time.Millisecond)
	got := LatenessTax(scheduled, actual)
	// 25% of 2m2ms is 30.0005s, which rounds up to 30.001s.
	want := 30*time.Second + time.Millisecond
	if got != want {
		t.Errorf("LatenessTax rounding = %v, want %v", got, want)
	}
}

func TestLatenessTax_Monotonic(t *testing.T) {
	t.Parallel()

	scheduled := at(t, "09:00")
	var prev time.Duration
	for delay := 2 * time.Minute; delay <= 2*time.Hour; delay += time.Minute {
		tax := LatenessTax(scheduled, scheduled.Add(delay))
		if tax < prev {
			t.Fatalf("tax decreased: delay %v gave %v, previous %v", delay, tax, prev)
		}
		prev = tax
	}
}

func goal(t *testing.T, desc, start, end string) models.PlannedGoal {
	t.Helper()
	g := models.PlannedGoal{
		ID:          uuid.New(),
		Description: desc,
		Status:      models.GoalStatusPending,
	}
	if start != "" {
		g.ScheduledStart = todPtr(t, start)
	}
	if end != "" {
		g.ScheduledEnd = todPtr(t, end)
	}
	return g
}

func TestCascadeReschedule_ShiftsOverlappingGoal(t *testing.T) {
	t.Parallel()

	first := goal(t, "write report", "09:00", "10:00")
	second := goal(t, "review inbox", "10:00", "10:30")
	plan := models.DailyPlan{Date: "2026-08-29", Goals: []models.PlannedGoal{first, second}}

	// Started twenty minutes late: the first goal now implies a 10:20 end.
	out, shifted := CascadeReschedule(plan, first, at(t, "09:20"))

	if len(shifted) != 1 || shifted[0] != second.ID {
		t.Fatalf("shifted = %v, want [%s]", shifted, second.ID)
	}
	got := out.Goal(second.ID)
	if got.ScheduledStart.String() != "10:20" || got.ScheduledEnd.String() != "10:50" {
		t.Errorf("second goal moved to %s-%s, want 10:20-10:50", got.ScheduledStart, got.ScheduledEnd)
	}
	// Input plan untouched.
	if plan.Goals[1].ScheduledStart.String() != "10:00" {
		t.Errorf("input plan mutated: %s", plan.Goals[1].ScheduledStart)
	}
}

func TestCascadeReschedule_StopsAtSlack(t *testing.T) {
	t.Parallel()

	first := goal(t, "deep work", "09:00", "10:00")
	second := goal(t, "standup", "10:00", "10:15")
	third := goal(t, "lunch errand", "12:00", "12:30")
	plan := models.DailyPlan{Date: "2026-08-29", Goals: []models.PlannedGoal{first, second, third}}

	out, shifted := CascadeReschedule(plan, first, at(t, "09:30"))

	if len(shifted) != 1 || shifted[0] != second.ID {
		t.Fatalf("shifted = %v, want only the standup", shifted)
	}
	if g := out.Goal(third.ID); g.ScheduledStart.String() != "12:00" {
		t.Errorf("goal past the slack point moved to %s", g.ScheduledStart)
	}
}

func TestCascadeReschedule_CascadesThroughChain(t *testing.T) {
	t.Parallel()

	first := goal(t, "a", "09:00", "10:00")
	second := goal(t, "b", "10:00", "10:30")
	third := goal(t, "c", "10:30", "11:00")
	plan := models.DailyPlan{Date: "2026-08-29", Goals: []models.PlannedGoal{first, second, third}}

	out, shifted := CascadeReschedule(plan, first, at(t, "09:20"))

	if len(shifted) != 2 {
		t.Fatalf("shifted = %v, want two goals", shifted)
	}
	b := out.Goal(second.ID)
	c := out.Goal(third.ID)
	if b.ScheduledStart.String() != "10:20" || b.ScheduledEnd.String() != "10:50" {
		t.Errorf("b = %s-%s, want 10:20-10:50", b.ScheduledStart, b.ScheduledEnd)
	}
	if c.ScheduledStart.String() != "10:50" || c.ScheduledEnd.String() != "11:20" {
		t.Errorf("c = %s-%s, want 10:50-11:20", c.ScheduledStart, c.ScheduledEnd)
	}
	if err := out.Validate(); err != nil {
		t.Errorf("rescheduled plan not valid: %v", err)
	}
}

func TestCascadeReschedule_IgnoresResolvedAndEarlierGoals(t *testing.T) {
	t.Parallel()

	earlier := goal(t, "morning run", "07:00", "08:00")
	earlier.Status = models.GoalStatusCompleted
	started := goal(t, "study", "09:00", "10:00")
	skipped := goal(t, "abandoned", "10:00", "10:30")
	skipped.Status = models.GoalStatusSkipped
	plan := models.DailyPlan{Date: "2026-08-29", Goals: []models.PlannedGoal{earlier, started, skipped}}

	_, shifted := CascadeReschedule(plan, started, at(t, "09:45"))
	if len(shifted) != 0 {
		t.Errorf("shifted = %v, want none", shifted)
	}
}

func TestCascadeReschedule_UsesEstimateOverSpan(t *testing.T) {
	t.Parallel()

	est := 30
	first := goal(t, "scoped work", "09:00", "10:00")
	first.EstimatedMinutes = &est
	second := goal(t, "next", "09:45", "10:15")
	plan := models.DailyPlan{Date: "2026-08-29", Goals: []models.PlannedGoal{first, second}}

	// Started at 09:30 with a 30m estimate the cursor lands on 10:00.
	out, shifted := CascadeReschedule(plan, first, at(t, "09:30"))
	if len(shifted) != 1 {
		t.Fatalf("shifted = %v, want one", shifted)
	}
	if g := out.Goal(second.ID); g.ScheduledStart.String() != "10:00" {
		t.Errorf("second start = %s, want 10:00", g.ScheduledStart)
	}
}

func TestCascadeReschedule_NoScheduleNoChange(t *testing.T) {
	t.Parallel()

	adHoc := goal(t, "ad hoc", "", "")
	other := goal(t, "planned", "10:00", "11:00")
	plan := models.DailyPlan{Date: "2026-08-29", Goals: []models.PlannedGoal{adHoc, other}}

	out, shifted := CascadeReschedule(plan, adHoc, at(t, "09:00"))
	if len(shifted) != 0 {
		t.Errorf("shifted = %v, want none", shifted)
	}
	if g := out.Goal(other.ID); g.ScheduledStart.String() != "10:00" {
		t.Errorf("planned goal moved to %s", g.ScheduledStart)
	}
}
