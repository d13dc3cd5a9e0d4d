// Package api provides HTTP API handlers for analysis runs.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/handscope/internal/boundary"
	"github.com/ayusman/handscope/internal/store"
)

// Launcher starts analyses in the background.
type Launcher interface {
	// Launch registers a run for source and starts analysing it.
	Launch(source string) (*store.Run, error)
	// Cancel stops an active run. It reports whether the run was active.
	Cancel(runID string) bool
}

// RunHandler handles HTTP requests for run resources.
type RunHandler struct {
	store    *store.Store
	launcher Launcher
}

// NewRunHandler creates a new RunHandler. A nil launcher makes the API
// read-only.
func NewRunHandler(s *store.Store, l Launcher) *RunHandler {
	return &RunHandler{store: s, launcher: l}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/runs, /api/runs/{id}, /api/runs/{id}/hands,
	// /api/runs/{id}/deliveries
	path := strings.TrimPrefix(r.URL.Path, "/api/runs")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "hands":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.hands(w, r, id)
	case "deliveries":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.deliveries(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// Request and response types

type createRunRequest struct {
	Source string `json:"source"`
}

type listRunsResponse struct {
	Runs []*store.Run `json:"runs"`
}

type handsResponse struct {
	RunID string                  `json:"run_id"`
	Hands []boundary.HandBoundary `json:"hands"`
}

type deliveriesResponse struct {
	RunID      string            `json:"run_id"`
	Deliveries []*store.Delivery `json:"deliveries"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/runs and returns all runs, newest first.
func (h *RunHandler) list(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.Runs().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}

	writeJSON(w, http.StatusOK, listRunsResponse{Runs: runs})
}

// get handles GET /api/runs/{id}.
func (h *RunHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	run, ok := h.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// create handles POST /api/runs and starts a background analysis.
func (h *RunHandler) create(w http.ResponseWriter, r *http.Request) {
	if h.launcher == nil {
		writeError(w, http.StatusServiceUnavailable, "Analysis is not available")
		return
	}

	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Source = strings.TrimSpace(req.Source)
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "Source is required")
		return
	}

	run, err := h.launcher.Launch(req.Source)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start run")
		return
	}

	w.Header().Set("Location", "/api/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, run)
}

// delete handles DELETE /api/runs/{id}. An active run is cancelled first.
func (h *RunHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if h.launcher != nil {
		h.launcher.Cancel(id)
	}

	if err := h.store.Runs().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete run")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// hands handles GET /api/runs/{id}/hands.
func (h *RunHandler) hands(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	hands, err := h.store.Hands().ListByRun(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list hands")
		return
	}
	if hands == nil {
		hands = []boundary.HandBoundary{}
	}

	writeJSON(w, http.StatusOK, handsResponse{RunID: id, Hands: hands})
}

// deliveries handles GET /api/runs/{id}/deliveries.
func (h *RunHandler) deliveries(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	deliveries, err := h.store.Deliveries().ListByRun(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list deliveries")
		return
	}
	if deliveries == nil {
		deliveries = []*store.Delivery{}
	}

	writeJSON(w, http.StatusOK, deliveriesResponse{RunID: id, Deliveries: deliveries})
}

func (h *RunHandler) lookup(w http.ResponseWriter, id string) (*store.Run, bool) {
	run, err := h.store.Runs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return nil, false
	}
	return run, true
}
