package session

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mstanton/daykeeper/internal/models"
	"github.com/mstanton/daykeeper/internal/queue"
	"github.com/mstanton/daykeeper/internal/services/ai"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakePlanRepo struct {
	plans   map[string]*models.DailyPlan
	saveErr error
	saves   int
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: make(map[string]*models.DailyPlan)}
}

func (r *fakePlanRepo) GetByDate(_ context.Context, date string) (*models.DailyPlan, error) {
	return r.plans[date], nil
}

func (r *fakePlanRepo) Save(_ context.Context, plan *models.DailyPlan) error {
	r.saves++
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *plan
	cp.Goals = append([]models.PlannedGoal{}, plan.Goals...)
	r.plans[plan.Date] = &cp
	return nil
}

type fakeActiveRepo struct {
	stored *models.ActiveGoal
	clears int
}

func (r *fakeActiveRepo) Get(context.Context) (*models.ActiveGoal, error) {
	return r.stored, nil
}

func (r *fakeActiveRepo) Save(_ context.Context, goal *models.ActiveGoal) error {
	cp := *goal
	r.stored = &cp
	return nil
}

func (r *fakeActiveRepo) Clear(context.Context) error {
	r.clears++
	r.stored = nil
	return nil
}

type fakeStreakRepo struct {
	stored  *models.StreakData
	saveErr error
}

func (r *fakeStreakRepo) Get(context.Context) (*models.StreakData, error) {
	return r.stored, nil
}

func (r *fakeStreakRepo) Save(_ context.Context, streak *models.StreakData) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *streak
	r.stored = &cp
	return nil
}

type fakeHistoryRepo struct {
	records []*models.CompletedGoalRecord
}

func (r *fakeHistoryRepo) Append(_ context.Context, record *models.CompletedGoalRecord) error {
	cp := *record
	r.records = append(r.records, &cp)
	return nil
}

func (r *fakeHistoryRepo) GetByID(_ context.Context, id uuid.UUID) (*models.CompletedGoalRecord, error) {
	for _, rec := range r.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, nil
}

func (r *fakeHistoryRepo) List(context.Context, int) ([]*models.CompletedGoalRecord, error) {
	return r.records, nil
}

func (r *fakeHistoryRepo) Delete(context.Context, uuid.UUID) error { return nil }

func (r *fakeHistoryRepo) UpdateSummary(context.Context, uuid.UUID, string) error { return nil }

type fakeVerifier struct {
	result   *ai.VerificationResult
	err      error
	onVerify func()
	calls    int
}

func (v *fakeVerifier) Verify(context.Context, string, string) (*ai.VerificationResult, error) {
	v.calls++
	if v.onVerify != nil {
		v.onVerify()
	}
	return v.result, v.err
}

func (v *fakeVerifier) VerifyFollowUp(context.Context, string, []ai.ChatMessage) (*ai.VerificationResult, error) {
	v.calls++
	if v.onVerify != nil {
		v.onVerify()
	}
	return v.result, v.err
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (s *fakeSummarizer) Summarize(context.Context, string) (string, error) {
	return s.summary, s.err
}

type fakeJobs struct {
	enqueued []*queue.Job
}

func (q *fakeJobs) Enqueue(_ context.Context, job *queue.Job) error {
	q.enqueued = append(q.enqueued, job)
	return nil
}

func (q *fakeJobs) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, nil
}

func (q *fakeJobs) Close() error { return nil }

func (q *fakeJobs) HealthCheck(context.Context) error { return nil }

// fixture wires an engine to in-memory collaborators around a fake clock
// starting at 09:00 on 2026-08-29.
type fixture struct {
	engine   *Engine
	clock    *fakeClock
	plans    *fakePlanRepo
	actives  *fakeActiveRepo
	streaks  *fakeStreakRepo
	history  *fakeHistoryRepo
	verifier *fakeVerifier
	jobs     *fakeJobs
}

func newFixture(t *testing.T, goals ...models.PlannedGoal) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)}
	plans := newFakePlanRepo()
	plan := models.NewDailyPlan(clock.now)
	plan.Goals = goals
	plans.plans[plan.Date] = plan

	f := &fixture{
		clock:    clock,
		plans:    plans,
		actives:  &fakeActiveRepo{},
		streaks:  &fakeStreakRepo{},
		history:  &fakeHistoryRepo{},
		verifier: &fakeVerifier{result: &ai.VerificationResult{Completed: true}},
		jobs:     &fakeJobs{},
	}

	engine, err := NewEngine(context.Background(), Ports{
		Plans:       f.plans,
		ActiveGoals: f.actives,
		Streaks:     f.streaks,
		History:     f.history,
		Verifier:    f.verifier,
		Summarizer:  &fakeSummarizer{summary: "did the thing"},
		Jobs:        f.jobs,
	}, clock, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	f.engine = engine
	return f
}

func mustTime(t *testing.T, s string) models.TimeOfDay {
	t.Helper()
	tod, err := models.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", s, err)
	}
	return tod
}

func scheduledGoal(t *testing.T, description, start, end string) models.PlannedGoal {
	t.Helper()
	s := mustTime(t, start)
	e := mustTime(t, end)
	return models.PlannedGoal{
		ID:             uuid.New(),
		Description:    description,
		ScheduledStart: &s,
		ScheduledEnd:   &e,
		Status:         models.GoalStatusPending,
	}
}

func (f *fixture) apply(t *testing.T, intent Intent) *Snapshot {
	t.Helper()
	snap, err := f.engine.Apply(context.Background(), intent)
	if err != nil {
		t.Fatalf("Apply(%s) failed: %v", intent.Kind, err)
	}
	return snap
}

// activate drives a planned goal through start and code sequestration.
func (f *fixture) activate(t *testing.T, goalID uuid.UUID) *Snapshot {
	t.Helper()
	f.apply(t, Intent{Kind: IntentStartGoal, GoalID: &goalID})
	return f.apply(t, Intent{Kind: IntentCodeSequestered})
}

func TestNewEngine_SeedsMissingPlan(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)}
	plans := newFakePlanRepo()
	engine, err := NewEngine(context.Background(), Ports{
		Plans:       plans,
		ActiveGoals: &fakeActiveRepo{},
		Streaks:     &fakeStreakRepo{},
		History:     &fakeHistoryRepo{},
		Verifier:    &fakeVerifier{},
		Summarizer:  &fakeSummarizer{},
	}, clock, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	snap := engine.Snapshot()
	if snap.State != StatePlanningToday {
		t.Errorf("state = %s, want %s", snap.State, StatePlanningToday)
	}
	if snap.Plan.Date != "2026-08-29" {
		t.Errorf("plan date = %s, want 2026-08-29", snap.Plan.Date)
	}
	if plans.plans["2026-08-29"] == nil {
		t.Error("expected seeded plan to be persisted")
	}
}

func TestNewEngine_ResumesActiveGoal(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)}
	plans := newFakePlanRepo()
	actives := &fakeActiveRepo{stored: &models.ActiveGoal{
		Description: "finish chapter",
		ActivatedAt: clock.now.Add(-10 * time.Minute),
	}}
	engine, err := NewEngine(context.Background(), Ports{
		Plans:       plans,
		ActiveGoals: actives,
		Streaks:     &fakeStreakRepo{},
		History:     &fakeHistoryRepo{},
		Verifier:    &fakeVerifier{},
		Summarizer:  &fakeSummarizer{},
	}, clock, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	snap := engine.Snapshot()
	if snap.State != StateGoalActive {
		t.Errorf("state = %s, want %s", snap.State, StateGoalActive)
	}
	if snap.ActiveGoal == nil || snap.ActiveGoal.Description != "finish chapter" {
		t.Errorf("active goal = %+v, want resumed goal", snap.ActiveGoal)
	}
}

func TestStartGoal_OnTime(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	f := newFixture(t, g1)

	snap := f.apply(t, Intent{Kind: IntentStartGoal, GoalID: &g1.ID})
	if snap.State != StateAwaitingCode {
		t.Fatalf("state = %s, want %s", snap.State, StateAwaitingCode)
	}
	if snap.Streak.AccruedTax() != 0 {
		t.Errorf("accrued tax = %v, want 0 for on-time start", snap.Streak.AccruedTax())
	}

	snap = f.apply(t, Intent{Kind: IntentCodeSequestered})
	if snap.State != StateGoalActive {
		t.Fatalf("state = %s, want %s", snap.State, StateGoalActive)
	}
	if snap.ActiveGoal == nil {
		t.Fatal("expected an active goal")
	}
	if snap.ActiveGoal.GoalID == nil || *snap.ActiveGoal.GoalID != g1.ID {
		t.Errorf("active goal id = %v, want %s", snap.ActiveGoal.GoalID, g1.ID)
	}
	if snap.ActiveGoal.TimeLimit == nil || *snap.ActiveGoal.TimeLimit != time.Hour {
		t.Errorf("time limit = %v, want 1h from scheduled span", snap.ActiveGoal.TimeLimit)
	}
	if f.actives.stored == nil {
		t.Error("expected active goal to be persisted")
	}
}

func TestStartGoal_LateChargesTaxAndCascades(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	g2 := scheduledGoal(t, "review notes", "10:00", "10:30")
	f := newFixture(t, g1, g2)

	f.clock.Advance(20 * time.Minute) // start 09:20, 20 minutes late
	snap := f.apply(t, Intent{Kind: IntentStartGoal, GoalID: &g1.ID})

	if got, want := snap.Streak.AccruedTax(), 5*time.Minute; got != want {
		t.Errorf("accrued tax = %v, want %v", got, want)
	}

	// The started goal shifts to 09:20-10:20, pushing the overlapping
	// second goal to 10:20.
	shifted := snap.Plan.Goal(g2.ID)
	if shifted == nil || shifted.ScheduledStart == nil {
		t.Fatal("expected second goal to remain scheduled")
	}
	if got := shifted.ScheduledStart.String(); got != "10:20" {
		t.Errorf("second goal start = %s, want 10:20", got)
	}
	if got := shifted.ScheduledEnd.String(); got != "10:50" {
		t.Errorf("second goal end = %s, want 10:50", got)
	}
}

func TestStartGoal_Guards(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	done := scheduledGoal(t, "already done", "11:00", "12:00")
	done.Status = models.GoalStatusCompleted

	tests := []struct {
		name   string
		intent Intent
	}{
		{"missing payload", Intent{Kind: IntentStartGoal}},
		{"unknown goal", Intent{Kind: IntentStartGoal, GoalID: uuidPtr(uuid.New())}},
		{"resolved goal", Intent{Kind: IntentStartGoal, GoalID: &done.ID}},
		{"blank ad hoc description", Intent{Kind: IntentStartGoal, Goal: &GoalInput{Description: "   "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, g1, done)
			_, err := f.engine.Apply(context.Background(), tt.intent)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("error = %v, want ValidationError", err)
			}
			if snap := f.engine.Snapshot(); snap.State != StatePlanningToday {
				t.Errorf("state = %s, want unchanged %s", snap.State, StatePlanningToday)
			}
		})
	}

	t.Run("wrong state", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, g1)
		f.apply(t, Intent{Kind: IntentStartGoal, GoalID: &g1.ID})
		_, err := f.engine.Apply(context.Background(), Intent{Kind: IntentStartGoal, GoalID: &g1.ID})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("error = %v, want ErrInvalidTransition", err)
		}
	})
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

func TestCompletion_GrantsBreakAndAdvancesStreak(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	g2 := scheduledGoal(t, "review notes", "10:30", "11:00")
	f := newFixture(t, g1, g2)
	f.activate(t, g1.ID)

	f.clock.Advance(50 * time.Minute)
	snap := f.apply(t, Intent{Kind: IntentSubmitProof, Proof: "here is the finished report"})

	if snap.State != StateAwaitingBreakChoice {
		t.Fatalf("state = %s, want %s", snap.State, StateAwaitingBreakChoice)
	}
	if snap.Break == nil {
		t.Fatal("expected a break allocation")
	}
	if snap.Break.Duration != 30*time.Minute {
		t.Errorf("break = %v, want 30m gap to next goal", snap.Break.Duration)
	}
	if snap.Break.NextGoalID == nil || *snap.Break.NextGoalID != g2.ID {
		t.Errorf("break next goal = %v, want %s", snap.Break.NextGoalID, g2.ID)
	}
	if snap.Streak.CurrentStreak != 1 {
		t.Errorf("streak = %d, want 1", snap.Streak.CurrentStreak)
	}
	if got := snap.Plan.Goal(g1.ID).Status; got != models.GoalStatusCompleted {
		t.Errorf("plan status = %s, want completed", got)
	}
	if snap.ActiveGoal != nil {
		t.Error("active goal should be cleared after completion")
	}
	if snap.ChoiceRemaining == nil || *snap.ChoiceRemaining != ChoiceWindow {
		t.Errorf("choice remaining = %v, want %v", snap.ChoiceRemaining, ChoiceWindow)
	}

	if len(f.history.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(f.history.records))
	}
	rec := f.history.records[0]
	if rec.Kind != models.RecordKindCompleted {
		t.Errorf("record kind = %s, want %s", rec.Kind, models.RecordKindCompleted)
	}
	if rec.Summary != "did the thing" {
		t.Errorf("record summary = %q", rec.Summary)
	}
}

func TestCompletion_NoNextGoal(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	f := newFixture(t, g1)
	f.activate(t, g1.ID)

	snap := f.apply(t, Intent{Kind: IntentSubmitProof, Proof: "done"})
	if snap.State != StateGoalCompleted {
		t.Errorf("state = %s, want %s", snap.State, StateGoalCompleted)
	}
	if snap.Break != nil {
		t.Errorf("break = %+v, want none", snap.Break)
	}
	if !snap.DayFinished {
		t.Error("expected day finished with all goals resolved")
	}
}

func TestCompletion_BreakPaysAccruedTax(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	g2 := scheduledGoal(t, "review notes", "10:30", "11:00")
	f := newFixture(t, g1, g2)

	f.clock.Advance(40 * time.Minute) // 09:40, 10 minutes of tax
	f.apply(t, Intent{Kind: IntentStartGoal, GoalID: &g1.ID})
	f.apply(t, Intent{Kind: IntentCodeSequestered})

	snap := f.apply(t, Intent{Kind: IntentSubmitProof, Proof: "done"})
	if snap.Break == nil {
		t.Fatal("expected a break allocation")
	}
	// The cascade moved the second goal to 10:40 (clear of the late start's
	// implied end), leaving a 40 minute gap, reduced by the 10 minute tax.
	if got, want := snap.Break.AppliedTax, 10*time.Minute; got != want {
		t.Errorf("applied tax = %v, want %v", got, want)
	}
	if got, want := snap.Break.Duration, 30*time.Minute; got != want {
		t.Errorf("break = %v, want %v", got, want)
	}
	if snap.Streak.AccruedTax() != 0 {
		t.Errorf("accrued tax = %v, want consumed to 0", snap.Streak.AccruedTax())
	}
}

func TestVerification_RejectionKeepsGoalActive(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	f := newFixture(t, g1)
	f.activate(t, g1.ID)

	f.verifier.result = &ai.VerificationResult{Completed: false, Feedback: "the summary section is missing"}
	f.verifier.onVerify = func() { f.clock.Advance(3 * time.Second) }

	snap := f.apply(t, Intent{Kind: IntentSubmitProof, Proof: "partial draft"})
	if snap.State != StateGoalActive {
		t.Fatalf("state = %s, want %s", snap.State, StateGoalActive)
	}
	if snap.Feedback != "the summary section is missing" {
		t.Errorf("feedback = %q", snap.Feedback)
	}
	if snap.ActiveGoal == nil || snap.ActiveGoal.PausedFor != 3*time.Second {
		t.Errorf("paused for = %v, want 3s of verification wait", snap.ActiveGoal.PausedFor)
	}
	if len(f.history.records) != 0 {
		t.Error("rejected proof must not append history")
	}

	// The follow-up conversation resolves it.
	f.verifier.result = &ai.VerificationResult{Completed: true}
	f.verifier.onVerify = nil
	snap = f.apply(t, Intent{Kind: IntentVerificationMessage, Message: "added the summary now"})
	if snap.State != StateGoalCompleted {
		t.Errorf("state = %s, want %s", snap.State, StateGoalCompleted)
	}
}

func TestVerification_ExternalFailure(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	f := newFixture(t, g1)
	f.activate(t, g1.ID)

	f.verifier.result = nil
	f.verifier.err = errors.New("upstream timeout")

	snap, err := f.engine.Apply(context.Background(), Intent{Kind: IntentSubmitProof, Proof: "done"})
	var extErr *ExternalError
	if !errors.As(err, &extErr) {
		t.Fatalf("error = %v, want ExternalError", err)
	}
	if snap.State != StateGoalActive {
		t.Errorf("state = %s, want %s for retry", snap.State, StateGoalActive)
	}
	if snap.Feedback == "" {
		t.Error("expected retry feedback")
	}
}

func TestVerification_StaleResultDiscarded(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	f := newFixture(t, g1)
	f.activate(t, g1.ID)

	// The session is reset while verification is in flight; the verdict
	// that arrives afterwards must not complete anything.
	f.verifier.onVerify = func() {
		if _, err := f.engine.Apply(context.Background(), Intent{Kind: IntentReset}); err != nil {
			t.Errorf("reset during verification failed: %v", err)
		}
	}

	snap, err := f.engine.Apply(context.Background(), Intent{Kind: IntentSubmitProof, Proof: "done"})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if snap.State != StatePlanningToday {
		t.Errorf("state = %s, want %s after reset", snap.State, StatePlanningToday)
	}
	if len(f.history.records) != 0 {
		t.Error("stale verification must not append history")
	}
	if snap.Streak.CurrentStreak != 0 {
		t.Errorf("streak = %d, want 0", snap.Streak.CurrentStreak)
	}
}

func TestVerification_NewProofSupersedesInFlight(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	f := newFixture(t, g1)
	f.activate(t, g1.ID)

	// A second proof arrives while the first verifier call is still out.
	// The second submission wins: its rejection is applied, and the first
	// call's approval is discarded when it finally lands.
	rejected := &ai.VerificationResult{Completed: false, Feedback: "show the failing test output"}
	approved := &ai.VerificationResult{Completed: true}
	f.verifier.result = approved
	f.verifier.onVerify = func() {
		f.verifier.onVerify = nil
		f.verifier.result = rejected
		if _, err := f.engine.Apply(context.Background(), Intent{Kind: IntentSubmitProof, Proof: "better proof"}); err != nil {
			t.Errorf("superseding submission failed: %v", err)
		}
		f.verifier.result = approved
	}

	snap, err := f.engine.Apply(context.Background(), Intent{Kind: IntentSubmitProof, Proof: "done"})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if f.verifier.calls != 2 {
		t.Fatalf("verifier calls = %d, want 2", f.verifier.calls)
	}
	if snap.State != StateGoalActive {
		t.Errorf("state = %s, want %s", snap.State, StateGoalActive)
	}
	if snap.Feedback != rejected.Feedback {
		t.Errorf("feedback = %q, want %q", snap.Feedback, rejected.Feedback)
	}
	if len(f.history.records) != 0 {
		t.Error("discarded approval must not complete the goal")
	}
	if snap.Streak.CurrentStreak != 0 {
		t.Errorf("streak = %d, want 0", snap.Streak.CurrentStreak)
	}
}

func TestVerification_EmptyProofRejected(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	f := newFixture(t, g1)
	f.activate(t, g1.ID)

	_, err := f.engine.Apply(context.Background(), Intent{Kind: IntentSubmitProof, Proof: "   "})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("error = %v, want ValidationError", err)
	}
	if f.verifier.calls != 0 {
		t.Error("verifier must not be called for an empty proof")
	}
}

func TestSkip_SubstitutesReflection(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	g2 := scheduledGoal(t, "review notes", "10:30", "11:00")
	f := newFixture(t, g1, g2)
	f.activate(t, g1.ID)

	snap := f.apply(t, Intent{Kind: IntentSkipGoal})
	if snap.State != StateAwaitingCode {
		t.Fatalf("state = %s, want %s for the reflection goal", snap.State, StateAwaitingCode)
	}
	if snap.Streak.SkipsThisWeek != 1 {
		t.Errorf("skips = %d, want 1", snap.Streak.SkipsThisWeek)
	}
	if got := snap.Plan.Goal(g1.ID).Status; got != models.GoalStatusSkipped {
		t.Errorf("plan status = %s, want skipped", got)
	}

	snap = f.apply(t, Intent{Kind: IntentCodeSequestered})
	if snap.ActiveGoal == nil || snap.ActiveGoal.Subject != ReflectionSubject {
		t.Fatalf("active goal = %+v, want reflection", snap.ActiveGoal)
	}
	if snap.ActiveGoal.TimeLimit == nil || *snap.ActiveGoal.TimeLimit != ReflectionTimeLimit {
		t.Errorf("time limit = %v, want %v", snap.ActiveGoal.TimeLimit, ReflectionTimeLimit)
	}

	// Completing the reflection does not advance the streak, records a
	// fixed history label, and computes the break from the skipped goal's
	// slot rather than the reflection's.
	snap = f.apply(t, Intent{Kind: IntentSubmitProof, Proof: "I overcommitted this morning"})
	if snap.Streak.CurrentStreak != 0 {
		t.Errorf("streak = %d, want 0 after reflection", snap.Streak.CurrentStreak)
	}
	if len(f.history.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(f.history.records))
	}
	if f.history.records[0].Kind != models.RecordKindReflection {
		t.Errorf("record kind = %s, want reflection", f.history.records[0].Kind)
	}
	if snap.State != StateAwaitingBreakChoice {
		t.Fatalf("state = %s, want %s", snap.State, StateAwaitingBreakChoice)
	}
	if snap.Break == nil || snap.Break.Duration != 30*time.Minute {
		t.Errorf("break = %+v, want 30m from skipped goal's end", snap.Break)
	}
}

func TestSkip_LimitEnforced(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	f := newFixture(t, g1)
	f.activate(t, g1.ID)

	f.engine.streak.SkipsThisWeek = SkipLimitPerWeek

	snap, err := f.engine.Apply(context.Background(), Intent{Kind: IntentSkipGoal})
	if !errors.Is(err, ErrSkipLimitReached) {
		t.Fatalf("error = %v, want ErrSkipLimitReached", err)
	}
	if snap.State != StateGoalActive {
		t.Errorf("state = %s, want unchanged %s", snap.State, StateGoalActive)
	}
	if snap.Streak.SkipsThisWeek != SkipLimitPerWeek {
		t.Errorf("skips = %d, want unchanged %d", snap.Streak.SkipsThisWeek, SkipLimitPerWeek)
	}
}

func TestSkip_ReflectionCannotBeSkipped(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	f := newFixture(t, g1)
	f.activate(t, g1.ID)
	f.apply(t, Intent{Kind: IntentSkipGoal})
	f.apply(t, Intent{Kind: IntentCodeSequestered})

	_, err := f.engine.Apply(context.Background(), Intent{Kind: IntentSkipGoal})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("error = %v, want ValidationError", err)
	}
}

func TestTick_DeadlineFlag(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	f := newFixture(t, g1)
	f.activate(t, g1.ID)

	f.clock.Advance(59 * time.Minute)
	snap := f.apply(t, Intent{Kind: IntentTick})
	if snap.DeadlinePassed {
		t.Error("deadline must not be flagged before the limit")
	}

	f.clock.Advance(2 * time.Minute)
	snap = f.apply(t, Intent{Kind: IntentTick})
	if !snap.DeadlinePassed {
		t.Error("deadline flag expected after the limit")
	}
	if snap.State != StateGoalActive {
		t.Errorf("state = %s, deadline must not force a transition", snap.State)
	}
}

func TestTick_NoElapsedTimeIsIdempotent(t *testing.T) {
	t.Parallel()

	// Two ticks at the same instant must produce identical snapshots in
	// every countdown-bearing state.
	states := map[string]func(t *testing.T, f *fixture, next models.PlannedGoal) State{
		"goal active": func(t *testing.T, f *fixture, _ models.PlannedGoal) State {
			return StateGoalActive
		},
		"awaiting break choice": func(t *testing.T, f *fixture, _ models.PlannedGoal) State {
			f.apply(t, Intent{Kind: IntentSubmitProof, Proof: "done"})
			return StateAwaitingBreakChoice
		},
		"break active": func(t *testing.T, f *fixture, next models.PlannedGoal) State {
			f.apply(t, Intent{Kind: IntentSubmitProof, Proof: "done"})
			f.apply(t, Intent{Kind: IntentPickNextGoal, GoalID: &next.ID})
			return StateBreakActive
		},
	}

	for name, arrange := range states {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			g1 := scheduledGoal(t, "write report", "09:00", "10:00")
			g2 := scheduledGoal(t, "review notes", "10:30", "11:00")
			f := newFixture(t, g1, g2)
			f.activate(t, g1.ID)
			want := arrange(t, f, g2)

			first := f.apply(t, Intent{Kind: IntentTick})
			if first.State != want {
				t.Fatalf("state = %s, want %s", first.State, want)
			}
			second := f.apply(t, Intent{Kind: IntentTick})
			if !reflect.DeepEqual(first, second) {
				t.Errorf("snapshots differ with no elapsed time:\nfirst:  %+v\nsecond: %+v", first, second)
			}
		})
	}
}

func TestChoiceExpiry_AutoPicksNextPending(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	g2 := scheduledGoal(t, "review notes", "10:30", "11:00")
	f := newFixture(t, g1, g2)
	f.activate(t, g1.ID)
	f.apply(t, Intent{Kind: IntentSubmitProof, Proof: "done"})

	f.clock.Advance(ChoiceWindow)
	snap := f.apply(t, Intent{Kind: IntentTick})
	if snap.State != StateBreakActive {
		t.Fatalf("state = %s, want %s after auto-pick", snap.State, StateBreakActive)
	}
	if snap.PreparedGoalID == nil || *snap.PreparedGoalID != g2.ID {
		t.Errorf("prepared goal = %v, want %s", snap.PreparedGoalID, g2.ID)
	}
	if snap.BreakRemaining == nil || *snap.BreakRemaining != 30*time.Minute {
		t.Errorf("break remaining = %v, want 30m", snap.BreakRemaining)
	}
}

func TestPickNextGoal_ThenAutoStart(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	g2 := scheduledGoal(t, "review notes", "10:30", "11:00")
	f := newFixture(t, g1, g2)
	f.activate(t, g1.ID)

	f.clock.Advance(time.Hour) // complete exactly at 10:00
	f.apply(t, Intent{Kind: IntentSubmitProof, Proof: "done"})

	snap := f.apply(t, Intent{Kind: IntentPickNextGoal, GoalID: &g2.ID})
	if snap.State != StateBreakActive {
		t.Fatalf("state = %s, want %s", snap.State, StateBreakActive)
	}

	// Sequestering the next code during the break marks it ready without
	// ending the break.
	snap = f.apply(t, Intent{Kind: IntentCodeSequestered})
	if snap.State != StateBreakActive {
		t.Fatalf("state = %s, break must keep running", snap.State)
	}
	if !snap.PreparedCodeReady {
		t.Fatal("prepared goal should be code-ready")
	}

	f.clock.Advance(30 * time.Minute) // break ends at 10:30, on time
	snap = f.apply(t, Intent{Kind: IntentTick})
	if snap.State != StateGoalActive {
		t.Fatalf("state = %s, want auto-started %s", snap.State, StateGoalActive)
	}
	if snap.ActiveGoal == nil || snap.ActiveGoal.GoalID == nil || *snap.ActiveGoal.GoalID != g2.ID {
		t.Errorf("active goal = %+v, want %s", snap.ActiveGoal, g2.ID)
	}
	if snap.Streak.AccruedTax() != 0 {
		t.Errorf("accrued tax = %v, want 0 for an on-time auto-start", snap.Streak.AccruedTax())
	}
}

func TestBreakExpiry_WithoutCodeResets(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	g2 := scheduledGoal(t, "review notes", "10:30", "11:00")
	f := newFixture(t, g1, g2)
	f.activate(t, g1.ID)
	f.apply(t, Intent{Kind: IntentSubmitProof, Proof: "done"})
	f.apply(t, Intent{Kind: IntentPickNextGoal, GoalID: &g2.ID})

	f.clock.Advance(31 * time.Minute)
	snap, err := f.engine.Apply(context.Background(), Intent{Kind: IntentTick})
	var inv *InvariantViolation
	if !errors.As(err, &inv) {
		t.Fatalf("error = %v, want InvariantViolation", err)
	}
	if snap.State != StatePlanningToday {
		t.Errorf("state = %s, want reset to %s", snap.State, StatePlanningToday)
	}
	if snap.ActiveGoal != nil {
		t.Error("no goal may be active after the reset")
	}
	if snap.Feedback == "" {
		t.Error("expected the reset reason in feedback")
	}
}

func TestViews(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")

	t.Run("open and close", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, g1)
		snap := f.apply(t, Intent{Kind: IntentOpenHistory})
		if snap.State != StateHistoryView {
			t.Fatalf("state = %s, want %s", snap.State, StateHistoryView)
		}
		snap = f.apply(t, Intent{Kind: IntentCloseView})
		if snap.State != StatePlanningToday {
			t.Errorf("state = %s, want %s", snap.State, StatePlanningToday)
		}
	})

	t.Run("blocked while goal active", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, g1)
		f.activate(t, g1.ID)
		_, err := f.engine.Apply(context.Background(), Intent{Kind: IntentOpenWeeklyPlan})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("close leaves completed screen", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, g1)
		f.activate(t, g1.ID)
		f.apply(t, Intent{Kind: IntentSubmitProof, Proof: "done"})
		snap := f.apply(t, Intent{Kind: IntentCloseView})
		if snap.State != StatePlanningToday {
			t.Errorf("state = %s, want %s", snap.State, StatePlanningToday)
		}
	})
}

func TestAddGoal(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, g1)
		start, end := "10:30", "11:00"
		snap, err := f.engine.AddGoal(context.Background(), GoalInput{
			Description:    "review notes",
			ScheduledStart: &start,
			ScheduledEnd:   &end,
		})
		if err != nil {
			t.Fatalf("AddGoal failed: %v", err)
		}
		if len(snap.Plan.Goals) != 2 {
			t.Errorf("plan goals = %d, want 2", len(snap.Plan.Goals))
		}
		saved := f.plans.plans[snap.Plan.Date]
		if saved == nil || len(saved.Goals) != 2 {
			t.Error("expected updated plan to be persisted")
		}
	})

	t.Run("overlap rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, g1)
		start, end := "09:30", "10:30"
		snap, err := f.engine.AddGoal(context.Background(), GoalInput{
			Description:    "overlapping",
			ScheduledStart: &start,
			ScheduledEnd:   &end,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
		if len(snap.Plan.Goals) != 1 {
			t.Errorf("plan goals = %d, want unchanged 1", len(snap.Plan.Goals))
		}
	})

	t.Run("inverted span rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, g1)
		start, end := "12:00", "11:00"
		_, err := f.engine.AddGoal(context.Background(), GoalInput{
			Description:    "inverted",
			ScheduledStart: &start,
			ScheduledEnd:   &end,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("error = %v, want ValidationError", err)
		}
	})
}

func TestUpdateGoal(t *testing.T) {
	t.Parallel()

	t.Run("reschedules pending goal", func(t *testing.T) {
		t.Parallel()
		g1 := scheduledGoal(t, "write report", "09:00", "10:00")
		f := newFixture(t, g1)
		start, end := "13:00", "14:00"
		snap, err := f.engine.UpdateGoal(context.Background(), g1.ID, GoalInput{
			Description:    "write the full report",
			ScheduledStart: &start,
			ScheduledEnd:   &end,
		})
		if err != nil {
			t.Fatalf("UpdateGoal failed: %v", err)
		}
		updated := snap.Plan.Goal(g1.ID)
		if updated.Description != "write the full report" {
			t.Errorf("description = %q", updated.Description)
		}
		if updated.ScheduledStart.String() != "13:00" {
			t.Errorf("start = %s, want 13:00", updated.ScheduledStart)
		}
	})

	t.Run("resolved goal rejected", func(t *testing.T) {
		t.Parallel()
		g1 := scheduledGoal(t, "write report", "09:00", "10:00")
		g1.Status = models.GoalStatusCompleted
		f := newFixture(t, g1)
		_, err := f.engine.UpdateGoal(context.Background(), g1.ID, GoalInput{Description: "edited"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("error = %v, want ValidationError", err)
		}
	})
}

func TestCommitment(t *testing.T) {
	t.Parallel()

	t.Run("set and complete", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		snap, err := f.engine.SetCommitment(context.Background(), "ship the release notes")
		if err != nil {
			t.Fatalf("SetCommitment failed: %v", err)
		}
		if snap.Streak.Commitment == nil || snap.Streak.Commitment.Text != "ship the release notes" {
			t.Fatalf("commitment = %+v", snap.Streak.Commitment)
		}
		if snap.Streak.Commitment.Date != "2026-08-29" {
			t.Errorf("commitment date = %s", snap.Streak.Commitment.Date)
		}

		snap, err = f.engine.CompleteCommitment(context.Background())
		if err != nil {
			t.Fatalf("CompleteCommitment failed: %v", err)
		}
		if !snap.Streak.Commitment.Completed {
			t.Error("commitment should be completed")
		}
	})

	t.Run("blank rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.engine.SetCommitment(context.Background(), "   ")
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("error = %v, want ValidationError", err)
		}
	})

	t.Run("complete without commitment", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.engine.CompleteCommitment(context.Background())
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("error = %v, want ValidationError", err)
		}
	})
}

func TestSummarizationFailure_FallsBackAndQueuesRetry(t *testing.T) {
	t.Parallel()

	longDescription := strings.Repeat("finish the quarterly report ", 5)
	g1 := models.PlannedGoal{
		ID:          uuid.New(),
		Description: longDescription,
		Status:      models.GoalStatusPending,
	}
	f := newFixture(t, g1)
	f.engine.ports.Summarizer = &fakeSummarizer{err: errors.New("model overloaded")}
	f.activate(t, g1.ID)

	f.apply(t, Intent{Kind: IntentSubmitProof, Proof: "done"})

	if len(f.history.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(f.history.records))
	}
	rec := f.history.records[0]
	if !rec.SummaryPending {
		t.Error("record should be flagged for summary retry")
	}
	if !strings.HasSuffix(rec.Summary, "…") {
		t.Errorf("summary = %q, want truncated fallback", rec.Summary)
	}

	if len(f.jobs.enqueued) != 1 {
		t.Fatalf("enqueued jobs = %d, want 1", len(f.jobs.enqueued))
	}
	job := f.jobs.enqueued[0]
	if job.Type != queue.JobTypeHistorySummarize {
		t.Errorf("job type = %s, want %s", job.Type, queue.JobTypeHistorySummarize)
	}
	if job.RecordID == nil || *job.RecordID != rec.ID {
		t.Errorf("job record = %v, want %s", job.RecordID, rec.ID)
	}
}

func TestPersistenceFailure_DoesNotBlockTransitions(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	f := newFixture(t, g1)
	f.streaks.saveErr = errors.New("disk full")
	f.plans.saveErr = errors.New("disk full")

	f.clock.Advance(20 * time.Minute)
	snap := f.apply(t, Intent{Kind: IntentStartGoal, GoalID: &g1.ID})
	if snap.State != StateAwaitingCode {
		t.Errorf("state = %s, want %s despite write failures", snap.State, StateAwaitingCode)
	}
	if snap.Streak.AccruedTax() != 5*time.Minute {
		t.Errorf("accrued tax = %v, want held in memory", snap.Streak.AccruedTax())
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	g1 := scheduledGoal(t, "write report", "09:00", "10:00")
	f := newFixture(t, g1)
	f.activate(t, g1.ID)

	snap := f.apply(t, Intent{Kind: IntentReset})
	if snap.State != StatePlanningToday {
		t.Errorf("state = %s, want %s", snap.State, StatePlanningToday)
	}
	if snap.ActiveGoal != nil {
		t.Error("active goal should be cleared")
	}
	if f.actives.stored != nil {
		t.Error("active goal store should be cleared")
	}
	// The plan entry stays pending; a reset abandons the attempt, not the goal.
	if got := snap.Plan.Goal(g1.ID).Status; got != models.GoalStatusPending {
		t.Errorf("plan status = %s, want pending", got)
	}
}
