// Package main provides a hook that appends detected hands to a JSON Lines
// file, one object per hand, and a summary line when a run finishes.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Request represents the input from the hook executor.
type Request struct {
	Event  string          `json:"event"`
	RunID  string          `json:"run_id"`
	Source string          `json:"source"`
	Hand   json.RawMessage `json:"hand,omitempty"`
	Hands  int             `json:"hands,omitempty"`
	Config json.RawMessage `json:"config"`
}

// Response represents the output to the hook executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type hookConfig struct {
	Path string `json:"path"`
}

// record is one line in the output file.
type record struct {
	Event      string          `json:"event"`
	RunID      string          `json:"run_id"`
	Source     string          `json:"source"`
	Hand       json.RawMessage `json:"hand,omitempty"`
	Hands      int             `json:"hands,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	cfg := hookConfig{Path: "hands.jsonl"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	switch req.Event {
	case "hand", "run_finished":
	default:
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}

	if err := appendRecord(cfg.Path, record{
		Event:      req.Event,
		RunID:      req.RunID,
		Source:     req.Source,
		Hand:       req.Hand,
		Hands:      req.Hands,
		RecordedAt: time.Now().UTC(),
	}); err != nil {
		writeErrorResponse(fmt.Sprintf("append failed: %v", err))
		return
	}

	writeSuccessResponse()
}

// appendRecord writes rec as one line to path. Relative paths resolve
// against the hook directory, which is the working directory.
func appendRecord(path string, rec record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(rec)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
