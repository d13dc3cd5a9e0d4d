package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handscope/internal/engine"
	"github.com/ayusman/handscope/internal/store"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message types sent on a progress socket.
const (
	MessageProgress = "progress"
	MessageFinished = "finished"
)

// ProgressMessage is one frame on a progress socket.
type ProgressMessage struct {
	Type     string           `json:"type"`
	Progress *engine.Progress `json:"progress,omitempty"`
	Run      *store.Run       `json:"run,omitempty"`
}

// ProgressHub fans run progress out to WebSocket subscribers.
type ProgressHub struct {
	clients map[string]map[*websocket.Conn]bool
	last    map[string][]byte
	runs    *store.RunRepository
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewProgressHub creates a new ProgressHub. When runs is set, subscribers
// to unknown runs are rejected and subscribers to finished runs receive the
// stored outcome at once.
func NewProgressHub(runs *store.RunRepository, logger *slog.Logger) *ProgressHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressHub{
		clients: make(map[string]map[*websocket.Conn]bool),
		last:    make(map[string][]byte),
		runs:    runs,
		logger:  logger.With("component", "progress"),
	}
}

// ServeHTTP handles WebSocket upgrade requests on /api/runs/{id}/progress.
// A subscriber joining mid-run first receives the latest message.
func (h *ProgressHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	runID = strings.TrimSuffix(runID, "/progress")
	if runID == "" || strings.Contains(runID, "/") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if h.runs != nil {
		if _, err := h.runs.GetByID(runID); errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	// Checked under the lock so a concurrent Finish is either seen here
	// or delivered to the registered connection.
	if run := h.finishedRun(runID); run != nil {
		data, err := json.Marshal(ProgressMessage{Type: MessageFinished, Run: run})
		if err == nil {
			h.write(conn, data)
		}
		h.mu.Unlock()
		h.close(conn)
		return
	}
	if h.clients[runID] == nil {
		h.clients[runID] = make(map[*websocket.Conn]bool)
	}
	h.clients[runID][conn] = true
	last := h.last[runID]
	if last != nil {
		h.write(conn, last)
	}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients[runID], conn)
		if len(h.clients[runID]) == 0 {
			delete(h.clients, runID)
		}
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Publish sends a progress update to the run's subscribers.
func (h *ProgressHub) Publish(p engine.Progress) {
	h.send(p.RunID.String(), ProgressMessage{Type: MessageProgress, Progress: &p}, false)
}

// Finish sends the final run state to subscribers and forgets the run.
func (h *ProgressHub) Finish(run *store.Run) {
	h.send(run.ID, ProgressMessage{Type: MessageFinished, Run: run}, true)
}

// Subscribers returns the number of connections following runID.
func (h *ProgressHub) Subscribers(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[runID])
}

func (h *ProgressHub) send(runID string, msg ProgressMessage, final bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("failed to encode progress", "run_id", runID, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if final {
		delete(h.last, runID)
	} else {
		h.last[runID] = data
	}
	for conn := range h.clients[runID] {
		h.write(conn, data)
		if final {
			h.close(conn)
		}
	}
}

// finishedRun returns the stored run when it is no longer running.
func (h *ProgressHub) finishedRun(runID string) *store.Run {
	if h.runs == nil {
		return nil
	}
	run, err := h.runs.GetByID(runID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Warn("failed to look up run", "run_id", runID, "error", err)
		}
		return nil
	}
	if run.Status == store.RunStatusRunning {
		return nil
	}
	return run
}

func (h *ProgressHub) close(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
		time.Now().Add(writeWait))
}

func (h *ProgressHub) write(conn *websocket.Conn, data []byte) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug("progress write failed", "error", err)
	}
}
