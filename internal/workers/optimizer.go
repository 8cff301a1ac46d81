package workers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mstanton/daykeeper/internal/database"
	"github.com/mstanton/daykeeper/internal/models"
	"github.com/mstanton/daykeeper/internal/queue"
	"github.com/mstanton/daykeeper/internal/services/ai"
)

// ScheduleOptimizer reorders a day's pending goals using the schedule
// oracle and repacks their time slots.
type ScheduleOptimizer struct {
	oracle   ai.ScheduleOracle
	planRepo database.PlanRepositoryInterface
	logger   *zap.Logger
}

// NewScheduleOptimizer creates a new schedule optimizer
func NewScheduleOptimizer(oracle ai.ScheduleOracle, planRepo database.PlanRepositoryInterface, logger *zap.Logger) *ScheduleOptimizer {
	return &ScheduleOptimizer{
		oracle:   oracle,
		planRepo: planRepo,
		logger:   logger,
	}
}

// ProcessOptimizeJob reorders the pending scheduled goals of the plan
// named by the job. Completed and skipped goals keep their slots; only
// pending goals with both start and end times participate.
func (o *ScheduleOptimizer) ProcessOptimizeJob(ctx context.Context, job *queue.Job) error {
	if job.Date == "" {
		return fmt.Errorf("date is required for schedule optimize job")
	}

	plan, err := o.planRepo.GetByDate(ctx, job.Date)
	if err != nil {
		return fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		o.logger.Info("optimize_skipped_no_plan", zap.String("date", job.Date))
		return nil
	}

	candidates := optimizableGoals(plan)
	if len(candidates) < 2 {
		o.logger.Info("optimize_skipped_too_few_goals",
			zap.String("date", job.Date),
			zap.Int("candidates", len(candidates)))
		return nil
	}

	offered := make([]ai.OrderCandidate, 0, len(candidates))
	for _, g := range candidates {
		offered = append(offered, ai.OrderCandidate{GoalID: g.ID, Description: g.Description})
	}

	order, err := o.oracle.SuggestOrder(ctx, offered)
	if err != nil {
		return fmt.Errorf("failed to get order suggestion: %w", err)
	}
	if len(order) != len(candidates) {
		return fmt.Errorf("order suggestion covers %d of %d goals", len(order), len(candidates))
	}

	repacked, err := repackSchedule(plan, candidates, order)
	if err != nil {
		return fmt.Errorf("failed to repack schedule: %w", err)
	}
	if err := repacked.Validate(); err != nil {
		return fmt.Errorf("repacked plan is invalid: %w", err)
	}

	if err := o.planRepo.Save(ctx, repacked); err != nil {
		return fmt.Errorf("failed to save optimized plan: %w", err)
	}

	o.logger.Info("schedule_optimized",
		zap.String("date", job.Date),
		zap.Int("reordered_goals", len(order)))
	return nil
}

// optimizableGoals returns the pending goals with a full time slot, in
// schedule order.
func optimizableGoals(plan *models.DailyPlan) []models.PlannedGoal {
	var out []models.PlannedGoal
	for _, g := range plan.SortedGoals() {
		if g.IsPending() && g.ScheduledStart != nil && g.ScheduledEnd != nil {
			out = append(out, g)
		}
	}
	return out
}

// repackSchedule assigns the candidates' existing time slots to the
// goals in suggested order: the first suggested goal takes the earliest
// slot stretched or shrunk to its own duration, and each subsequent
// goal starts where the previous one ends. Slots never extend past the
// last candidate's original end.
func repackSchedule(plan *models.DailyPlan, candidates []models.PlannedGoal, order []uuid.UUID) (*models.DailyPlan, error) {
	byID := make(map[uuid.UUID]*models.PlannedGoal, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}

	cursor := *candidates[0].ScheduledStart

	out := &models.DailyPlan{Date: plan.Date, Goals: make([]models.PlannedGoal, len(plan.Goals))}
	copy(out.Goals, plan.Goals)

	for _, id := range order {
		src, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("suggested goal %s is not optimizable", id)
		}
		dur := src.ScheduledEnd.Sub(*src.ScheduledStart)

		target := out.Goal(id)
		if target == nil {
			return nil, fmt.Errorf("goal %s missing from plan", id)
		}
		start := cursor
		end := start.Add(dur)
		target.ScheduledStart = models.TimeOfDayPtr(start)
		target.ScheduledEnd = models.TimeOfDayPtr(end)
		cursor = end
	}

	return out, nil
}
