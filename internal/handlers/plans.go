package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mstanton/daykeeper/internal/database"
	"github.com/mstanton/daykeeper/internal/models"
	"github.com/mstanton/daykeeper/internal/queue"
	"github.com/mstanton/daykeeper/internal/session"
	"github.com/mstanton/daykeeper/internal/validation"
)

// PlanHandler handles daily plan requests. Mutations to today's plan go
// through the session engine so the live session sees them; other dates
// hit the repository directly.
type PlanHandler struct {
	planRepo database.PlanRepositoryInterface
	engine   *session.Engine
	jobQueue queue.JobQueue
	logger   *zap.Logger
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(planRepo database.PlanRepositoryInterface, engine *session.Engine, jobQueue queue.JobQueue, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{
		planRepo: planRepo,
		engine:   engine,
		jobQueue: jobQueue,
		logger:   logger,
	}
}

// RegisterRoutes registers plan routes on the given router.
// The router should already have the /plans prefix.
func (h *PlanHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{date}", h.GetPlan).Methods("GET")
	r.HandleFunc("/{date}/goals", h.AddGoal).Methods("POST")
	r.HandleFunc("/{date}/goals/{id}", h.UpdateGoal).Methods("PATCH")
	r.HandleFunc("/{date}/optimize", h.OptimizePlan).Methods("POST")
}

func planDate(r *http.Request) (string, bool) {
	date := mux.Vars(r)["date"]
	if _, err := time.Parse(models.PlanDateFormat, date); err != nil {
		return "", false
	}
	return date, true
}

func isToday(date string) bool {
	return date == time.Now().Format(models.PlanDateFormat)
}

// GetPlan returns the plan for a date, an empty plan if none is stored
func (h *PlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	date, ok := planDate(r)
	if !ok {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid date, expected YYYY-MM-DD")
		return
	}

	if isToday(date) {
		respondJSON(w, http.StatusOK, h.engine.Snapshot().Plan)
		return
	}

	plan, err := h.planRepo.GetByDate(r.Context(), date)
	if err != nil {
		h.logger.Error("failed_to_get_plan", zap.String("date", date), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get plan")
		return
	}
	if plan == nil {
		plan = &models.DailyPlan{Date: date}
	}
	respondJSON(w, http.StatusOK, plan)
}

// AddGoal appends a goal to a plan
func (h *PlanHandler) AddGoal(w http.ResponseWriter, r *http.Request) {
	date, ok := planDate(r)
	if !ok {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid date, expected YYYY-MM-DD")
		return
	}

	var input session.GoalInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validate.Struct(&input); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	if isToday(date) {
		snap, err := h.engine.AddGoal(r.Context(), input)
		if err != nil {
			respondEngineError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, snap.Plan)
		return
	}

	plan, err := h.planRepo.GetByDate(r.Context(), date)
	if err != nil {
		h.logger.Error("failed_to_get_plan", zap.String("date", date), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get plan")
		return
	}
	if plan == nil {
		plan = &models.DailyPlan{Date: date}
	}

	goal, err := goalFromInput(input)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	plan.Goals = append(plan.Goals, *goal)
	if err := plan.Validate(); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.planRepo.Save(r.Context(), plan); err != nil {
		h.logger.Error("failed_to_save_plan", zap.String("date", date), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to save plan")
		return
	}
	respondJSON(w, http.StatusCreated, plan)
}

// UpdateGoal rewrites a goal's description, subject or schedule
func (h *PlanHandler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	date, ok := planDate(r)
	if !ok {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid date, expected YYYY-MM-DD")
		return
	}
	goalID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid goal ID")
		return
	}

	var input session.GoalInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validate.Struct(&input); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	if isToday(date) {
		snap, err := h.engine.UpdateGoal(r.Context(), goalID, input)
		if err != nil {
			respondEngineError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, snap.Plan)
		return
	}

	plan, err := h.planRepo.GetByDate(r.Context(), date)
	if err != nil {
		h.logger.Error("failed_to_get_plan", zap.String("date", date), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get plan")
		return
	}
	if plan == nil || plan.Goal(goalID) == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Goal not found")
		return
	}

	target := plan.Goal(goalID)
	if !target.IsPending() {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Only pending goals can be edited")
		return
	}

	updated, err := goalFromInput(input)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	target.Description = updated.Description
	target.Subject = updated.Subject
	target.ScheduledStart = updated.ScheduledStart
	target.ScheduledEnd = updated.ScheduledEnd
	target.EstimatedMinutes = updated.EstimatedMinutes

	if err := plan.Validate(); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.planRepo.Save(r.Context(), plan); err != nil {
		h.logger.Error("failed_to_save_plan", zap.String("date", date), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to save plan")
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// OptimizePlan enqueues a background reorder of the plan's pending goals
func (h *PlanHandler) OptimizePlan(w http.ResponseWriter, r *http.Request) {
	date, ok := planDate(r)
	if !ok {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid date, expected YYYY-MM-DD")
		return
	}
	if h.jobQueue == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Job queue not configured")
		return
	}

	job := queue.NewJob(queue.JobTypeScheduleOptimize, date)
	if err := h.jobQueue.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("failed_to_enqueue_optimize", zap.String("date", date), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID.String(),
		"date":   date,
	})
}

// goalFromInput builds a pending goal from a request payload, parsing
// the optional "HH:mm" schedule times.
func goalFromInput(input session.GoalInput) (*models.PlannedGoal, error) {
	goal := &models.PlannedGoal{
		ID:               uuid.New(),
		Description:      input.Description,
		Subject:          input.Subject,
		EstimatedMinutes: input.EstimatedMinutes,
		Status:           models.GoalStatusPending,
	}
	if input.ScheduledStart != nil {
		start, err := models.ParseTimeOfDay(*input.ScheduledStart)
		if err != nil {
			return nil, err
		}
		goal.ScheduledStart = models.TimeOfDayPtr(start)
	}
	if input.ScheduledEnd != nil {
		end, err := models.ParseTimeOfDay(*input.ScheduledEnd)
		if err != nil {
			return nil, err
		}
		goal.ScheduledEnd = models.TimeOfDayPtr(end)
	}
	if goal.ScheduledStart != nil && goal.ScheduledEnd != nil && *goal.ScheduledEnd <= *goal.ScheduledStart {
		return nil, &session.ValidationError{Reason: "scheduled end must be after start"}
	}
	return goal, nil
}
