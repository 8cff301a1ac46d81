package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mstanton/daykeeper/internal/session"
	"github.com/mstanton/daykeeper/internal/validation"
)

// StreakHandler exposes the streak record and the daily commitment
type StreakHandler struct {
	engine *session.Engine
}

// NewStreakHandler creates a new streak handler
func NewStreakHandler(engine *session.Engine) *StreakHandler {
	return &StreakHandler{engine: engine}
}

// RegisterRoutes registers streak routes on the given router.
// The router should already have the /streak prefix.
func (h *StreakHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetStreak).Methods("GET")
	r.HandleFunc("/commitment", h.SetCommitment).Methods("PUT")
	r.HandleFunc("/commitment/complete", h.CompleteCommitment).Methods("POST")
}

// SetCommitmentRequest represents a set commitment request
type SetCommitmentRequest struct {
	Text string `json:"text" validate:"required,min=1,max=500"`
}

// GetStreak returns the current streak record
func (h *StreakHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Snapshot().Streak)
}

// SetCommitment replaces today's commitment text
func (h *StreakHandler) SetCommitment(w http.ResponseWriter, r *http.Request) {
	var req SetCommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	snap, err := h.engine.SetCommitment(r.Context(), req.Text)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap.Streak)
}

// CompleteCommitment marks today's commitment as fulfilled
func (h *StreakHandler) CompleteCommitment(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.CompleteCommitment(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap.Streak)
}
