package e2e

import (
	"context"
	"encoding/json"
	"image"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/handscope/internal/app"
	"github.com/ayusman/handscope/internal/detector"
	"github.com/ayusman/handscope/internal/engine"
	"github.com/ayusman/handscope/internal/server"
	"github.com/ayusman/handscope/internal/store"
	"github.com/ayusman/handscope/internal/synth"
)

// writeVideo encodes frames to an MJPG AVI file. It skips the test when the
// OpenCV build has no encoder for it.
func writeVideo(t *testing.T, path string, frames []*gocv.Mat, fps float64) {
	t.Helper()
	w, err := gocv.VideoWriterFile(path, "MJPG", fps, frames[0].Cols(), frames[0].Rows(), true)
	if err != nil {
		t.Skipf("video writer unavailable: %v", err)
	}
	defer w.Close()
	if !w.IsOpened() {
		t.Skip("video writer could not be opened")
	}
	for _, f := range frames {
		if err := w.Write(*f); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}
}

// staticTable is a table with a community card and a pot that never moves.
func staticTable(int) synth.Scene {
	return synth.Scene{
		Cards: []image.Rectangle{image.Rect(290, 210, 330, 266)},
		Chips: []synth.Chip{{Center: image.Pt(350, 250), Radius: 16, Color: synth.ChipRed}},
	}
}

func TestE2E_StaticTable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	videoPath := filepath.Join(tmpDir, "static.avi")

	frames := synth.Sequence(90, 480, 640, staticTable)
	defer synth.CloseAll(frames)
	writeVideo(t, videoPath, frames, 30)

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	logger := slog.New(slog.DiscardHandler)
	application := app.New(app.Config{
		Store:  s,
		Engine: engine.DefaultConfig(),
		Logger: logger,
	})

	var run *store.Run
	t.Run("Analyze", func(t *testing.T) {
		r, result, err := application.Analyze(context.Background(), videoPath, nil)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		run = r

		if result.FramesProcessed != 90 {
			t.Errorf("FramesProcessed = %d, want 90", result.FramesProcessed)
		}
		// A motionless table never accumulates enough start evidence
		if len(result.Events) != 0 || len(result.Hands) != 0 {
			t.Errorf("expected no events, got %d events and %d hands", len(result.Events), len(result.Hands))
		}
	})
	if run == nil {
		t.FailNow()
	}

	srv := server.New(server.Config{
		Store:    s,
		App:      application,
		Detector: detector.DefaultConfig(),
		Logger:   logger,
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	t.Run("RunIsListed", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/runs/" + run.ID)
		if err != nil {
			t.Fatalf("GET run error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		var got store.Run
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode run: %v", err)
		}
		if got.Status != store.RunStatusCompleted || got.FramesProcessed != 90 {
			t.Errorf("unexpected run: %+v", got)
		}
	})

	t.Run("Preview", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/preview?frame=10&source=" + url.QueryEscape(videoPath))
		if err != nil {
			t.Fatalf("GET preview error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("Content-Type = %s, want image/jpeg", ct)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("GET health error = %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after analysis")
		}
		resp.Body.Close()
	})
}

func TestE2E_MissingVideoFailsRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	application := app.New(app.Config{
		Store:  s,
		Engine: engine.DefaultConfig(),
		Logger: slog.New(slog.DiscardHandler),
	})

	run, _, err := application.Analyze(context.Background(), filepath.Join(tmpDir, "missing.mp4"), nil)
	if err == nil {
		t.Fatal("expected error for missing video")
	}

	got, err := s.Runs().GetByID(run.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != store.RunStatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
}
