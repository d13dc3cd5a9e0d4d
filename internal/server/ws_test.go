package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ayusman/handscope/internal/engine"
	"github.com/ayusman/handscope/internal/store"
)

func dialProgress(t *testing.T, ts *httptest.Server, runID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/runs/" + runID + "/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ProgressMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg ProgressMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid message %s: %v", data, err)
	}
	return msg
}

func TestProgressHub_PublishAndFinish(t *testing.T) {
	hub := NewProgressHub(nil, slog.New(slog.DiscardHandler))
	ts := httptest.NewServer(hub)
	defer ts.Close()

	id := uuid.New()
	conn := dialProgress(t, ts, id.String())
	waitFor(t, func() bool { return hub.Subscribers(id.String()) == 1 })

	// Updates for other runs are not delivered
	hub.Publish(engine.Progress{RunID: uuid.New(), CurrentFrame: 99})
	hub.Publish(engine.Progress{RunID: id, CurrentFrame: 30, TotalFrames: 300, HandsSoFar: 1})

	msg := readMessage(t, conn)
	if msg.Type != MessageProgress || msg.Progress == nil {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Progress.CurrentFrame != 30 || msg.Progress.HandsSoFar != 1 {
		t.Errorf("unexpected progress: %+v", msg.Progress)
	}

	hub.Finish(&store.Run{ID: id.String(), Status: store.RunStatusCompleted, Hands: 1})

	msg = readMessage(t, conn)
	if msg.Type != MessageFinished || msg.Run == nil || msg.Run.Status != store.RunStatusCompleted {
		t.Fatalf("unexpected final message: %+v", msg)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close after finish, got %v", err)
	}
}

func TestProgressHub_LateSubscriberGetsLatest(t *testing.T) {
	hub := NewProgressHub(nil, slog.New(slog.DiscardHandler))
	ts := httptest.NewServer(hub)
	defer ts.Close()

	id := uuid.New()
	hub.Publish(engine.Progress{RunID: id, CurrentFrame: 10})
	hub.Publish(engine.Progress{RunID: id, CurrentFrame: 20})

	conn := dialProgress(t, ts, id.String())
	msg := readMessage(t, conn)
	if msg.Progress == nil || msg.Progress.CurrentFrame != 20 {
		t.Errorf("expected latest progress, got %+v", msg)
	}
}

func TestProgressHub_BadPath(t *testing.T) {
	hub := NewProgressHub(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/runs//progress", nil)
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
