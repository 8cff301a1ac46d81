package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mstanton/daykeeper/internal/services/ai"
	"github.com/mstanton/daykeeper/internal/session"
	"github.com/mstanton/daykeeper/internal/validation"
)

// MaxProofLength is the maximum length for a proof payload
const MaxProofLength = 20000

// SessionHandler exposes the session engine over HTTP
type SessionHandler struct {
	engine    *session.Engine
	extractor ai.CodeExtractor
	logger    *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(engine *session.Engine, extractor ai.CodeExtractor, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		engine:    engine,
		extractor: extractor,
		logger:    logger,
	}
}

// RegisterRoutes registers session routes on the given router.
// The router should already have the /session prefix.
func (h *SessionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetSession).Methods("GET")
	r.HandleFunc("/intents", h.ApplyIntent).Methods("POST")
}

// IntentRequest is the POST /session/intents payload. ImageBase64 may
// accompany code_sequestered: the start code is read out of the photo
// before the intent is applied.
type IntentRequest struct {
	session.Intent
	ImageBase64 string `json:"image_base64,omitempty"`
}

// GetSession returns the current session snapshot
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Snapshot())
}

// ApplyIntent applies a single session intent and returns the resulting snapshot
func (h *SessionHandler) ApplyIntent(w http.ResponseWriter, r *http.Request) {
	var req IntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if err := validation.Validate.Struct(&req.Intent); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if req.Goal != nil {
		if err := validation.Validate.Struct(req.Goal); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
	}
	if len(req.Proof) > MaxProofLength {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Proof payload too large")
		return
	}

	if req.Kind == session.IntentCodeSequestered && req.ImageBase64 != "" {
		code, err := h.extractor.ExtractCode(r.Context(), req.ImageBase64)
		if err != nil {
			if errors.Is(err, ai.ErrNoCodeFound) {
				respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", "No start code found in image")
				return
			}
			h.logger.Error("code_extraction_failed", zap.Error(err))
			respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Code extraction unavailable")
			return
		}
		h.logger.Info("start_code_captured", zap.Int("code_length", len(code)))
	}

	snap, err := h.engine.Apply(r.Context(), req.Intent)
	if err != nil {
		// InvariantViolation still produced a usable snapshot: the
		// session was reset, report the conflict with the new state.
		var invariantErr *session.InvariantViolation
		if errors.As(err, &invariantErr) && snap != nil {
			h.logger.Warn("session_reset_on_invariant", zap.String("reason", invariantErr.Reason))
		}
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}
