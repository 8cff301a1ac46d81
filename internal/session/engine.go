package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mstanton/daykeeper/internal/database"
	logpkg "github.com/mstanton/daykeeper/internal/logger"
	"github.com/mstanton/daykeeper/internal/models"
	"github.com/mstanton/daykeeper/internal/queue"
	"github.com/mstanton/daykeeper/internal/scheduler"
	"github.com/mstanton/daykeeper/internal/services/ai"
	"go.uber.org/zap"
)

const (
	// ReflectionSubject marks the synthetic goal substituted on a skip.
	ReflectionSubject = "session.reflection"
	// ReflectionDescription is the fixed task given after a skip.
	ReflectionDescription = "Write a short reflection: why did you skip this goal, and what will you do differently?"
	// ReflectionTimeLimit bounds the reflection goal.
	ReflectionTimeLimit = 5 * time.Minute
	// reflectionSummary is the fixed history label for reflections; they
	// never go through AI summarization.
	reflectionSummary = "Skipped-goal reflection"

	// SkipLimitPerWeek caps skips per ISO week.
	SkipLimitPerWeek = 2

	// summaryFallbackLength bounds the truncated-literal history label used
	// when summarization fails.
	summaryFallbackLength = 60
	summarizeTimeout      = 5 * time.Second
)

// Ports are the external collaborators the session drives. Jobs may be nil;
// without a queue, failed summaries simply keep their fallback label.
type Ports struct {
	Plans       database.PlanRepositoryInterface
	ActiveGoals database.ActiveGoalRepositoryInterface
	Streaks     database.StreakRepositoryInterface
	History     database.HistoryRepositoryInterface
	Verifier    ai.Verifier
	Summarizer  ai.Summarizer
	Jobs        queue.JobQueue
}

// pendingActivation is a goal that has been started but whose start code
// has not yet been sequestered.
type pendingActivation struct {
	goal      models.PlannedGoal
	fromPlan  bool
	timeLimit *time.Duration
}

// preparedNext is the goal lined up to auto-start when the break ends.
type preparedNext struct {
	goalID    uuid.UUID
	codeReady bool
}

// Engine is the session state machine. It is a single logical actor: every
// transition runs to completion under the mutex, and persistence writes are
// issued only after the in-memory state fully reflects the transition.
type Engine struct {
	mu     sync.Mutex
	clock  Clock
	logger *zap.Logger
	ports  Ports

	state  State
	plan   *models.DailyPlan
	streak *models.StreakData
	active *models.ActiveGoal

	pending      *pendingActivation
	prepared     *preparedNext
	reflectionOf *models.PlannedGoal // schedule context of the skipped goal while its reflection runs
	breakAlloc   *models.BreakAllocation
	countdowns   countdowns

	verifySeq    uint64 // monotonically increasing; stale verification responses are discarded
	pauseStart   time.Time
	conversation []ai.ChatMessage

	deadlinePassed bool
	feedback       string
}

// NewEngine loads today's plan, the streak record and any in-flight active
// goal, and resumes the session: GoalActive when an active goal survives a
// restart, PlanningToday otherwise.
func NewEngine(ctx context.Context, ports Ports, clock Clock, logger *zap.Logger) (*Engine, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		clock:  clock,
		logger: logger,
		ports:  ports,
		state:  StatePlanningToday,
	}

	now := clock.Now()
	plan, err := ports.Plans.GetByDate(ctx, now.Format(models.PlanDateFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to load today's plan: %w", err)
	}
	if plan == nil {
		plan = models.NewDailyPlan(now)
		if err := ports.Plans.Save(ctx, plan); err != nil {
			return nil, fmt.Errorf("failed to seed today's plan: %w", err)
		}
	}
	e.plan = plan

	streak, err := ports.Streaks.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}
	if streak == nil {
		streak = models.NewStreakData(now)
	}
	if streak.EnsureCurrent(now) || streak.WeekStart == "" {
		if err := ports.Streaks.Save(ctx, streak); err != nil {
			return nil, fmt.Errorf("failed to save streak: %w", err)
		}
	}
	e.streak = streak

	active, err := ports.ActiveGoals.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active goal: %w", err)
	}
	if active != nil {
		e.active = active
		e.state = StateGoalActive
		logger.Info("resumed_active_goal",
			zap.String("description", logpkg.SanitizeString(active.Description, logpkg.MaxFieldLength)),
			zap.Time("activated_at", active.ActivatedAt),
		)
	}

	return e, nil
}

// Snapshot returns a read-only view of the current session.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.clock.Now())
}

// Apply is the single entry point for all session actions. It returns the
// post-transition snapshot; on a guard failure the snapshot is unchanged
// and the error describes the rejection.
func (e *Engine) Apply(ctx context.Context, intent Intent) (*Snapshot, error) {
	switch intent.Kind {
	case IntentSubmitProof:
		return e.applyVerification(ctx, intent.Proof, false)
	case IntentVerificationMessage:
		return e.applyVerification(ctx, intent.Message, true)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	e.ensureCurrentLocked(ctx, now)

	var err error
	switch intent.Kind {
	case IntentStartGoal:
		err = e.startGoalLocked(ctx, now, intent)
	case IntentCodeSequestered:
		err = e.codeSequesteredLocked(ctx, now)
	case IntentSkipGoal:
		err = e.skipGoalLocked(ctx, now)
	case IntentPickNextGoal:
		err = e.pickNextGoalLocked(now, intent)
	case IntentOpenHistory:
		err = e.openViewLocked(StateHistoryView)
	case IntentOpenWeeklyPlan:
		err = e.openViewLocked(StateWeeklyPlanView)
	case IntentCloseView:
		err = e.closeViewLocked()
	case IntentReset:
		err = e.resetLocked(ctx, "session reset")
	case IntentTick:
		err = e.tickLocked(ctx, now)
	default:
		err = &ValidationError{Reason: fmt.Sprintf("unknown intent kind %q", intent.Kind)}
	}

	return e.snapshotLocked(now), err
}

// ensureCurrentLocked refreshes time-derived state on every intent: the
// weekly skip window and streak staleness, and the plan itself once the
// calendar date rolls over with no goal in flight.
func (e *Engine) ensureCurrentLocked(ctx context.Context, now time.Time) {
	if e.streak.EnsureCurrent(now) {
		e.saveStreakLocked(ctx)
	}

	today := now.Format(models.PlanDateFormat)
	if e.plan.Date == today {
		return
	}
	if e.state != StatePlanningToday || e.active != nil || e.pending != nil {
		return // finish the in-flight goal against yesterday's plan first
	}
	plan, err := e.ports.Plans.GetByDate(ctx, today)
	if err != nil {
		e.logger.Warn("failed_to_load_rolled_over_plan", zap.Error(err))
		return
	}
	if plan == nil {
		plan = models.NewDailyPlan(now)
		if err := e.ports.Plans.Save(ctx, plan); err != nil {
			e.logger.Warn("failed_to_seed_rolled_over_plan", zap.Error(err))
		}
	}
	e.plan = plan
	e.breakAlloc = nil
	e.prepared = nil
	e.countdowns.cancelAll()
}

func (e *Engine) startGoalLocked(ctx context.Context, now time.Time, intent Intent) error {
	if e.state != StatePlanningToday {
		return ErrInvalidTransition
	}

	var goal models.PlannedGoal
	var fromPlan bool
	switch {
	case intent.GoalID != nil:
		g := e.plan.Goal(*intent.GoalID)
		if g == nil {
			return &ValidationError{Reason: "goal not found in today's plan"}
		}
		if !g.IsPending() {
			return &ValidationError{Reason: "goal was already completed or skipped"}
		}
		goal = *g
		fromPlan = true
	case intent.Goal != nil:
		parsed, err := goalFromInput(*intent.Goal)
		if err != nil {
			return err
		}
		goal = parsed
	default:
		return &ValidationError{Reason: "start_goal requires goal_id or goal"}
	}

	if strings.TrimSpace(goal.Description) == "" {
		return &ValidationError{Reason: "goal description must not be empty"}
	}

	e.chargeLatenessLocked(ctx, now, goal, fromPlan)

	var limit *time.Duration
	if d, ok := goal.Estimate(); ok {
		limit = &d
	}
	e.pending = &pendingActivation{goal: goal, fromPlan: fromPlan, timeLimit: limit}
	e.state = StateAwaitingCode
	e.feedback = ""
	return nil
}

// chargeLatenessLocked computes the lateness tax for a late start, merges
// it into the accrued debt, and cascade-shifts the rest of the day's plan.
func (e *Engine) chargeLatenessLocked(ctx context.Context, now time.Time, goal models.PlannedGoal, fromPlan bool) {
	if goal.ScheduledStart == nil {
		return
	}
	tax := scheduler.LatenessTax(goal.ScheduledStart.At(now), now)
	if tax <= 0 {
		return
	}

	e.streak.AddTax(tax)
	e.saveStreakLocked(ctx)
	e.logger.Info("lateness_tax_charged",
		zap.String("goal_id", goal.ID.String()),
		zap.Duration("tax", tax),
	)

	if !fromPlan {
		return
	}
	updated, shifted := scheduler.CascadeReschedule(*e.plan, goal, now)
	if len(shifted) == 0 {
		return
	}
	e.plan = &updated
	e.savePlanLocked(ctx)
	e.logger.Info("cascade_rescheduled",
		zap.String("started_goal_id", goal.ID.String()),
		zap.Int("shifted_goals", len(shifted)),
	)
}

func (e *Engine) codeSequesteredLocked(ctx context.Context, now time.Time) error {
	switch e.state {
	case StateAwaitingCode:
		if e.pending == nil {
			return ErrInvalidTransition
		}
		p := e.pending
		e.pending = nil
		e.activateLocked(ctx, now, p.goal, p.fromPlan, p.timeLimit)
		return nil
	case StateBreakActive:
		// Preparing the next goal's code during the break; the break keeps
		// running and the goal auto-starts when it expires.
		if e.prepared == nil {
			return ErrInvalidTransition
		}
		e.prepared.codeReady = true
		return nil
	default:
		return ErrInvalidTransition
	}
}

// activateLocked creates the active goal and enters GoalActive.
func (e *Engine) activateLocked(ctx context.Context, now time.Time, goal models.PlannedGoal, fromPlan bool, limit *time.Duration) {
	active := &models.ActiveGoal{
		Description: goal.Description,
		Subject:     goal.Subject,
		ActivatedAt: now,
		TimeLimit:   limit,
	}
	if fromPlan {
		id := goal.ID
		active.GoalID = &id
	}
	e.active = active
	e.deadlinePassed = false
	e.conversation = nil
	e.state = StateGoalActive
	e.feedback = ""
	e.saveActiveLocked(ctx)
}

func (e *Engine) skipGoalLocked(ctx context.Context, now time.Time) error {
	if e.state != StateGoalActive || e.active == nil {
		return ErrInvalidTransition
	}
	if e.active.Subject == ReflectionSubject {
		return &ValidationError{Reason: "a reflection goal cannot be skipped"}
	}

	e.streak.EnsureCurrent(now)
	if e.streak.SkipsThisWeek >= SkipLimitPerWeek {
		return ErrSkipLimitReached
	}
	e.streak.SkipsThisWeek++
	e.saveStreakLocked(ctx)

	// Flip the plan entry and remember its schedule context: the reflection
	// goal's completion computes the break from the skipped goal, not from
	// the reflection itself.
	var skipped models.PlannedGoal
	if e.active.GoalID != nil {
		if g := e.plan.Goal(*e.active.GoalID); g != nil {
			g.Status = models.GoalStatusSkipped
			skipped = *g
			e.savePlanLocked(ctx)
		}
	}
	if skipped.ID == uuid.Nil {
		skipped = models.PlannedGoal{
			ID:          uuid.New(),
			Description: e.active.Description,
			Subject:     e.active.Subject,
			Status:      models.GoalStatusSkipped,
		}
	}
	e.reflectionOf = &skipped

	e.active = nil
	e.deadlinePassed = false
	e.clearActiveLocked(ctx)

	limit := ReflectionTimeLimit
	e.pending = &pendingActivation{
		goal: models.PlannedGoal{
			ID:          uuid.New(),
			Description: ReflectionDescription,
			Subject:     ReflectionSubject,
			Status:      models.GoalStatusPending,
		},
		timeLimit: &limit,
	}
	e.state = StateAwaitingCode
	e.feedback = ""
	return nil
}

// applyVerification drives proof submission and re-verification follow-ups.
// The engine releases its lock for the duration of the external call; the
// response is applied only if no newer submission superseded it. A second
// submission while a call is in flight bumps the sequence number, so the
// older response is discarded whenever it arrives.
func (e *Engine) applyVerification(ctx context.Context, payload string, followUp bool) (*Snapshot, error) {
	e.mu.Lock()
	now := e.clock.Now()
	if (e.state != StateGoalActive && e.state != StateVerifyingProof) || e.active == nil {
		snap := e.snapshotLocked(now)
		e.mu.Unlock()
		return snap, ErrInvalidTransition
	}
	if strings.TrimSpace(payload) == "" {
		snap := e.snapshotLocked(now)
		e.mu.Unlock()
		return snap, &ValidationError{Reason: "proof must not be empty"}
	}

	e.verifySeq++
	seq := e.verifySeq
	description := e.active.Description
	if !followUp {
		e.conversation = nil
	}
	e.conversation = append(e.conversation, ai.ChatMessage{Role: "user", Content: payload})
	history := make([]ai.ChatMessage, len(e.conversation))
	copy(history, e.conversation)
	if e.state == StateGoalActive {
		// The pause spans from the first submission until the winning
		// response resolves; a superseding submission does not restart it.
		e.pauseStart = now
	}
	e.state = StateVerifyingProof
	e.mu.Unlock()

	var result *ai.VerificationResult
	var err error
	if followUp {
		result, err = e.ports.Verifier.VerifyFollowUp(ctx, description, history)
	} else {
		result, err = e.ports.Verifier.Verify(ctx, description, payload)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolveVerificationLocked(ctx, seq, result, err)
}

func (e *Engine) resolveVerificationLocked(ctx context.Context, seq uint64, result *ai.VerificationResult, callErr error) (*Snapshot, error) {
	now := e.clock.Now()

	// A newer submission or a reset superseded this response; discard it.
	if seq != e.verifySeq || e.state != StateVerifyingProof {
		e.logger.Debug("stale_verification_discarded", zap.Uint64("seq", seq))
		return e.snapshotLocked(now), nil
	}

	pause := now.Sub(e.pauseStart)

	if callErr != nil {
		e.state = StateGoalActive
		if e.active != nil {
			e.active.PausedFor += pause
			e.saveActiveLocked(ctx)
		}
		e.feedback = "verification is unavailable, please try again"
		e.logger.Warn("verification_failed", zap.Error(callErr))
		return e.snapshotLocked(now), &ExternalError{Op: "verification", Err: callErr}
	}

	if !result.Completed {
		e.state = StateGoalActive
		if e.active != nil {
			e.active.PausedFor += pause
			e.saveActiveLocked(ctx)
		}
		e.conversation = append(e.conversation, ai.ChatMessage{Role: "assistant", Content: result.Feedback})
		e.feedback = result.Feedback
		return e.snapshotLocked(now), nil
	}

	e.conversation = nil
	err := e.completeActiveLocked(ctx, now)
	return e.snapshotLocked(now), err
}

// completeActiveLocked finishes the active goal: plan status flip, streak
// advance, history append, break allocation. The "clear active goal" write
// is issued before the break computation that depends on the completed
// entry.
func (e *Engine) completeActiveLocked(ctx context.Context, now time.Time) error {
	active := e.active
	isReflection := active.Subject == ReflectionSubject

	var completedCtx models.PlannedGoal
	if active.GoalID != nil {
		if g := e.plan.Goal(*active.GoalID); g != nil {
			g.Status = models.GoalStatusCompleted
			completedCtx = *g
			e.savePlanLocked(ctx)
		}
	}
	if completedCtx.ID == uuid.Nil {
		completedCtx = models.PlannedGoal{
			ID:          uuid.New(),
			Description: active.Description,
			Subject:     active.Subject,
			Status:      models.GoalStatusCompleted,
		}
	}
	if isReflection && e.reflectionOf != nil {
		completedCtx = *e.reflectionOf
	}

	e.active = nil
	e.deadlinePassed = false
	e.clearActiveLocked(ctx)

	if !isReflection {
		e.streak.RecordCompletion(now)
	}

	e.appendHistoryLocked(ctx, now, active, isReflection)
	e.reflectionOf = nil

	gap, next := scheduler.AvailableBreak(completedCtx, e.plan.Goals)
	if gap > 0 && next != nil {
		final, applied := scheduler.ApplyTax(gap, e.streak)
		nextID := next.ID
		e.breakAlloc = &models.BreakAllocation{
			Duration:   final,
			AppliedTax: applied,
			NextGoalID: &nextID,
		}
		e.state = StateAwaitingBreakChoice
		e.countdowns.armChoice(now)
	} else {
		e.breakAlloc = nil
		e.state = StateGoalCompleted
	}
	e.saveStreakLocked(ctx)
	e.feedback = ""
	return nil
}

func (e *Engine) appendHistoryLocked(ctx context.Context, now time.Time, active *models.ActiveGoal, isReflection bool) {
	record := &models.CompletedGoalRecord{
		ID:          uuid.New(),
		GoalID:      active.GoalID,
		Description: active.Description,
		Subject:     active.Subject,
		CompletedAt: now,
	}

	if isReflection {
		record.Kind = models.RecordKindReflection
		record.Summary = reflectionSummary
	} else {
		record.Kind = models.RecordKindCompleted
		sumCtx, cancel := context.WithTimeout(ctx, summarizeTimeout)
		summary, err := e.ports.Summarizer.Summarize(sumCtx, active.Description)
		cancel()
		if err != nil {
			record.Summary = truncateSummary(active.Description)
			record.SummaryPending = true
			e.logger.Warn("summarization_failed", zap.Error(err))
		} else {
			record.Summary = summary
		}
	}

	if err := e.ports.History.Append(ctx, record); err != nil {
		e.logger.Error("failed_to_append_history", zap.Error(err))
		return
	}

	if record.SummaryPending && e.ports.Jobs != nil {
		job := queue.NewJob(queue.JobTypeHistorySummarize, e.plan.Date)
		job.RecordID = &record.ID
		if err := e.ports.Jobs.Enqueue(ctx, job); err != nil {
			e.logger.Warn("failed_to_enqueue_summary_retry", zap.Error(err))
		}
	}
}

func (e *Engine) pickNextGoalLocked(now time.Time, intent Intent) error {
	if e.state != StateAwaitingBreakChoice {
		return ErrInvalidTransition
	}
	if intent.GoalID == nil {
		return &ValidationError{Reason: "pick_next_goal requires goal_id"}
	}
	g := e.plan.Goal(*intent.GoalID)
	if g == nil || !g.IsPending() {
		return &ValidationError{Reason: "picked goal is not pending in today's plan"}
	}

	e.prepared = &preparedNext{goalID: g.ID}
	e.countdowns.cancelChoice()
	e.enterBreakLocked(now)
	return nil
}

func (e *Engine) enterBreakLocked(now time.Time) {
	var dur time.Duration
	if e.breakAlloc != nil {
		dur = e.breakAlloc.Duration
	}
	e.state = StateBreakActive
	e.countdowns.armBreak(now, dur)
}

func (e *Engine) tickLocked(ctx context.Context, now time.Time) error {
	// Consequence deadline: reaching zero never forces a transition, it
	// only surfaces a flag while the goal stays active.
	if (e.state == StateGoalActive || e.state == StateVerifyingProof) && e.active != nil {
		if deadline, ok := e.active.Deadline(); ok {
			e.deadlinePassed = !now.Before(deadline)
		}
	}

	if e.state == StateAwaitingBreakChoice && e.countdowns.choiceExpired(now) {
		e.countdowns.cancelChoice()
		next := e.plan.NextPending()
		if next == nil {
			e.breakAlloc = nil
			e.state = StateGoalCompleted
			return nil
		}
		e.prepared = &preparedNext{goalID: next.ID}
		e.enterBreakLocked(now)
		return nil
	}

	if e.state == StateBreakActive && e.countdowns.breakExpired(now) {
		e.countdowns.cancelBreak()
		return e.breakExpiredLocked(ctx, now)
	}

	return nil
}

// breakExpiredLocked auto-starts the prepared next goal. Expiring without a
// code-ready prepared goal violates the at-most-one-active-goal contract
// the auto-start depends on, so the session resets instead of guessing.
func (e *Engine) breakExpiredLocked(ctx context.Context, now time.Time) error {
	prepared := e.prepared
	e.prepared = nil
	e.breakAlloc = nil

	if prepared == nil || !prepared.codeReady {
		reason := "break ended with no prepared next goal"
		if resetErr := e.resetLocked(ctx, reason); resetErr != nil {
			e.logger.Warn("reset_after_invariant_violation_failed", zap.Error(resetErr))
		}
		return &InvariantViolation{Reason: reason}
	}

	g := e.plan.Goal(prepared.goalID)
	if g == nil || !g.IsPending() {
		reason := "prepared next goal is no longer pending"
		if resetErr := e.resetLocked(ctx, reason); resetErr != nil {
			e.logger.Warn("reset_after_invariant_violation_failed", zap.Error(resetErr))
		}
		return &InvariantViolation{Reason: reason}
	}

	goal := *g
	e.chargeLatenessLocked(ctx, now, goal, true)
	if shifted := e.plan.Goal(goal.ID); shifted != nil {
		goal = *shifted
	}
	var limit *time.Duration
	if d, ok := goal.Estimate(); ok {
		limit = &d
	}
	e.activateLocked(ctx, now, goal, true, limit)
	return nil
}

func (e *Engine) openViewLocked(target State) error {
	if e.state != StatePlanningToday {
		return ErrInvalidTransition
	}
	e.state = target
	return nil
}

func (e *Engine) closeViewLocked() error {
	if !e.state.isSideState() && e.state != StateGoalCompleted {
		return ErrInvalidTransition
	}
	e.state = StatePlanningToday
	e.breakAlloc = nil
	e.feedback = ""
	return nil
}

func (e *Engine) resetLocked(ctx context.Context, reason string) error {
	e.state = StatePlanningToday
	e.active = nil
	e.pending = nil
	e.prepared = nil
	e.breakAlloc = nil
	e.reflectionOf = nil
	e.conversation = nil
	e.deadlinePassed = false
	e.countdowns.cancelAll()
	e.verifySeq++ // supersede any in-flight verification
	e.feedback = reason
	e.clearActiveLocked(ctx)
	return nil
}

// AddGoal appends a goal to today's plan, enforcing the non-overlap
// invariant before saving.
func (e *Engine) AddGoal(ctx context.Context, input GoalInput) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	e.ensureCurrentLocked(ctx, now)

	goal, err := goalFromInput(input)
	if err != nil {
		return e.snapshotLocked(now), err
	}

	candidate := *e.plan
	candidate.Goals = append(append([]models.PlannedGoal{}, e.plan.Goals...), goal)
	if err := candidate.Validate(); err != nil {
		return e.snapshotLocked(now), &ValidationError{Reason: err.Error()}
	}

	e.plan = &candidate
	e.savePlanLocked(ctx)
	return e.snapshotLocked(now), nil
}

// UpdateGoal edits a pending goal in today's plan, re-validating the
// non-overlap invariant.
func (e *Engine) UpdateGoal(ctx context.Context, id uuid.UUID, input GoalInput) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	e.ensureCurrentLocked(ctx, now)

	existing := e.plan.Goal(id)
	if existing == nil {
		return e.snapshotLocked(now), &ValidationError{Reason: "goal not found in today's plan"}
	}
	if !existing.IsPending() {
		return e.snapshotLocked(now), &ValidationError{Reason: "only pending goals can be edited"}
	}

	updated, err := goalFromInput(input)
	if err != nil {
		return e.snapshotLocked(now), err
	}
	updated.ID = existing.ID
	updated.Status = existing.Status

	candidate := *e.plan
	candidate.Goals = append([]models.PlannedGoal{}, e.plan.Goals...)
	for i := range candidate.Goals {
		if candidate.Goals[i].ID == id {
			candidate.Goals[i] = updated
		}
	}
	if err := candidate.Validate(); err != nil {
		return e.snapshotLocked(now), &ValidationError{Reason: err.Error()}
	}

	e.plan = &candidate
	e.savePlanLocked(ctx)
	return e.snapshotLocked(now), nil
}

// SetCommitment stores the single daily commitment for today.
func (e *Engine) SetCommitment(ctx context.Context, text string) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	e.ensureCurrentLocked(ctx, now)

	if strings.TrimSpace(text) == "" {
		return e.snapshotLocked(now), &ValidationError{Reason: "commitment text must not be empty"}
	}
	e.streak.Commitment = &models.DailyCommitment{
		Date: now.Format(models.PlanDateFormat),
		Text: text,
	}
	e.saveStreakLocked(ctx)
	return e.snapshotLocked(now), nil
}

// CompleteCommitment marks today's commitment as done.
func (e *Engine) CompleteCommitment(ctx context.Context) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	e.ensureCurrentLocked(ctx, now)

	today := now.Format(models.PlanDateFormat)
	if e.streak.Commitment == nil || e.streak.Commitment.Date != today {
		return e.snapshotLocked(now), &ValidationError{Reason: "no commitment set for today"}
	}
	e.streak.Commitment.Completed = true
	e.saveStreakLocked(ctx)
	return e.snapshotLocked(now), nil
}

// Persistence helpers. The in-memory state is the source of truth once a
// transition has been computed; write failures are logged and the session
// continues, so a flaky store can never corrupt the machine.

func (e *Engine) savePlanLocked(ctx context.Context) {
	if err := e.ports.Plans.Save(ctx, e.plan); err != nil {
		e.logger.Error("failed_to_save_plan", zap.String("date", e.plan.Date), zap.Error(err))
	}
}

func (e *Engine) saveStreakLocked(ctx context.Context) {
	if err := e.ports.Streaks.Save(ctx, e.streak); err != nil {
		e.logger.Error("failed_to_save_streak", zap.Error(err))
	}
}

func (e *Engine) saveActiveLocked(ctx context.Context) {
	if e.active == nil {
		return
	}
	if err := e.ports.ActiveGoals.Save(ctx, e.active); err != nil {
		e.logger.Error("failed_to_save_active_goal", zap.Error(err))
	}
}

func (e *Engine) clearActiveLocked(ctx context.Context) {
	if err := e.ports.ActiveGoals.Clear(ctx); err != nil {
		e.logger.Error("failed_to_clear_active_goal", zap.Error(err))
	}
}

// goalFromInput builds a pending goal from request input, parsing the
// optional HH:mm schedule times.
func goalFromInput(input GoalInput) (models.PlannedGoal, error) {
	goal := models.PlannedGoal{
		ID:          uuid.New(),
		Description: strings.TrimSpace(input.Description),
		Subject:     strings.TrimSpace(input.Subject),
		Status:      models.GoalStatusPending,
	}
	if goal.Description == "" {
		return goal, &ValidationError{Reason: "goal description must not be empty"}
	}
	if input.ScheduledStart != nil {
		start, err := models.ParseTimeOfDay(*input.ScheduledStart)
		if err != nil {
			return goal, &ValidationError{Reason: err.Error()}
		}
		goal.ScheduledStart = &start
	}
	if input.ScheduledEnd != nil {
		end, err := models.ParseTimeOfDay(*input.ScheduledEnd)
		if err != nil {
			return goal, &ValidationError{Reason: err.Error()}
		}
		goal.ScheduledEnd = &end
	}
	if goal.ScheduledStart != nil && goal.ScheduledEnd != nil && *goal.ScheduledEnd <= *goal.ScheduledStart {
		return goal, &ValidationError{Reason: "scheduled end must be after scheduled start"}
	}
	if input.EstimatedMinutes != nil {
		if *input.EstimatedMinutes <= 0 {
			return goal, &ValidationError{Reason: "estimated minutes must be positive"}
		}
		minutes := *input.EstimatedMinutes
		goal.EstimatedMinutes = &minutes
	}
	return goal, nil
}

func truncateSummary(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= summaryFallbackLength {
		return string(runes)
	}
	return string(runes[:summaryFallbackLength]) + "…"
}
