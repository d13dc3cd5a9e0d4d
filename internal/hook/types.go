// Package hook notifies external executables about detected hands.
//
// A hook is a directory holding a hook.json manifest and an executable. The
// executable receives one JSON Request on stdin and answers with one JSON
// Response on stdout.
package hook

import (
	"encoding/json"
	"slices"

	"github.com/ayusman/handscope/internal/boundary"
)

// Event names a notification kind.
type Event string

const (
	// EventHand is sent once per validated hand.
	EventHand Event = "hand"
	// EventRunFinished is sent once per run after all hands.
	EventRunFinished Event = "run_finished"
)

// Manifest describes a hook's metadata and subscriptions.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`
	// Events lists the subscribed events; empty means all events.
	Events []Event         `json:"events,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Request represents a notification sent to a hook.
type Request struct {
	Event  Event                  `json:"event"`
	RunID  string                 `json:"run_id"`
	Source string                 `json:"source"`
	Hand   *boundary.HandBoundary `json:"hand,omitempty"`
	// Hands is the validated hand count, set for EventRunFinished.
	Hands  int             `json:"hands,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Response represents the answer of a hook.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook represents a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Subscribes reports whether the hook wants ev.
func (h *Hook) Subscribes(ev Event) bool {
	return len(h.Manifest.Events) == 0 || slices.Contains(h.Manifest.Events, ev)
}
