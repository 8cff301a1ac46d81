package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mstanton/daykeeper/internal/models"
)

func historyRouter(repo *memHistoryRepo) *mux.Router {
	r := mux.NewRouter()
	handler := NewHistoryHandler(repo, zap.NewNop())
	handler.RegisterRoutes(r.PathPrefix("/api/v1/history").Subrouter())
	return r
}

func TestListHistory(t *testing.T) {
	t.Parallel()

	repo := &memHistoryRepo{records: []*models.CompletedGoalRecord{
		{ID: uuid.New(), Description: "first", Summary: "First goal", Kind: models.RecordKindCompleted, CompletedAt: time.Now()},
		{ID: uuid.New(), Description: "second", Summary: "Second goal", Kind: models.RecordKindReflection, CompletedAt: time.Now()},
	}}
	router := historyRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("records = %d, want 2", len(resp.Data))
	}
}

func TestListHistory_InvalidLimit(t *testing.T) {
	t.Parallel()

	router := historyRouter(&memHistoryRepo{})
	for _, limit := range []string{"0", "-5", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/history?limit="+limit, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("limit %q: status = %d, want %d", limit, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestGetRecord(t *testing.T) {
	t.Parallel()

	record := &models.CompletedGoalRecord{ID: uuid.New(), Description: "goal", Summary: "Goal done"}
	router := historyRouter(&memHistoryRepo{records: []*models.CompletedGoalRecord{record}})

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/history/"+record.ID.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/history/"+uuid.NewString(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
		}
	})

	t.Run("bad id", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/history/not-a-uuid", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
		}
	})
}

func TestDeleteRecord(t *testing.T) {
	t.Parallel()

	t.Run("deleted", func(t *testing.T) {
		t.Parallel()
		router := historyRouter(&memHistoryRepo{})
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/history/"+uuid.NewString(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
		}
	})

	t.Run("missing record", func(t *testing.T) {
		t.Parallel()
		repo := &memHistoryRepo{delErr: fmt.Errorf("history record: %w", sql.ErrNoRows)}
		router := historyRouter(repo)
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/history/"+uuid.NewString(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
		}
	})
}
