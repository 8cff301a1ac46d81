package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mstanton/daykeeper/internal/database"
)

const (
	// DefaultHistoryLimit is the default number of history records returned
	DefaultHistoryLimit = 100
	// MaxHistoryLimit is the maximum number of history records returned
	MaxHistoryLimit = 500
)

// HistoryHandler exposes the completed-goal history
type HistoryHandler struct {
	historyRepo database.HistoryRepositoryInterface
	logger      *zap.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(historyRepo database.HistoryRepositoryInterface, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{historyRepo: historyRepo, logger: logger}
}

// RegisterRoutes registers history routes on the given router.
// The router should already have the /history prefix.
func (h *HistoryHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListHistory).Methods("GET")
	r.HandleFunc("/{id}", h.GetRecord).Methods("GET")
	r.HandleFunc("/{id}", h.DeleteRecord).Methods("DELETE")
}

// ListHistory lists completed-goal records, newest first
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid limit")
			return
		}
		limit = parsed
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	records, err := h.historyRepo.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed_to_list_history", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list history")
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// GetRecord returns a single history record
func (h *HistoryHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid record ID")
		return
	}

	record, err := h.historyRepo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed_to_get_history_record", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get record")
		return
	}
	if record == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Record not found")
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// DeleteRecord removes a history record
func (h *HistoryHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid record ID")
		return
	}

	if err := h.historyRepo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Record not found")
			return
		}
		h.logger.Error("failed_to_delete_history_record", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete record")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": id.String()})
}
