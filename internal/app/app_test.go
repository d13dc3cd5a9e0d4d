package app

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/handscope/internal/capture"
	"github.com/ayusman/handscope/internal/detector"
	"github.com/ayusman/handscope/internal/engine"
	"github.com/ayusman/handscope/internal/motion"
	"github.com/ayusman/handscope/internal/store"
)

// scriptedTracker replays a clean hand: a dealing burst at 35-37s and a
// collection sweep at 71-72s.
type scriptedTracker struct{ last float64 }

func (s *scriptedTracker) Update(_ *gocv.Mat, ts float64) motion.Sample {
	s.last = ts
	area := 0.0
	if ts >= 38 && ts <= 70 {
		area = 1000
	}
	return motion.Sample{Timestamp: ts, TotalArea: area}
}

func (s *scriptedTracker) AnalyzePattern(p motion.Pattern) float64 {
	switch {
	case p == motion.PatternDealing && s.last >= 35 && s.last <= 37:
		return 0.75
	case p == motion.PatternCollection && s.last >= 71 && s.last <= 72:
		return 0.75
	}
	return 0
}

func (s *scriptedTracker) Close() {}

func cleanHandDetector() *detector.MockDetector {
	d := detector.NewMockDetector()
	cards := make([][]detector.Card, 38)
	cards[37] = []detector.Card{{}, {}, {}}
	d.ScriptCards(cards...)
	potChip := []detector.Chip{{Centroid: image.Pt(50, 50), Color: "red"}}
	d.ScriptChips(potChip, potChip, potChip, nil, nil)
	return d
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestApp builds an App whose sources play total black frames at 1 fps.
func newTestApp(t *testing.T, cfg Config, total int) *App {
	t.Helper()
	mat := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })

	cfg.Logger = slog.New(slog.DiscardHandler)
	cfg.Engine = engine.DefaultConfig()
	if cfg.OpenSource == nil {
		cfg.OpenSource = func(string) capture.Source {
			return capture.NewMockSource([]*gocv.Mat{&mat}, 1, total)
		}
	}
	cfg.EngineOptions = append(cfg.EngineOptions,
		engine.WithDetector(cleanHandDetector()),
		engine.WithTrackerFactory(func(motion.Config, float64) engine.MotionTracker {
			return &scriptedTracker{}
		}))
	return New(cfg)
}

func TestApp_Analyze_PersistsRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	s := newTestStore(t)
	a := newTestApp(t, Config{Store: s}, 80)

	var progress []engine.Progress
	run, result, err := a.Analyze(context.Background(), "table.mp4", func(p engine.Progress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(result.Hands) != 1 {
		t.Fatalf("got %d hands, want 1", len(result.Hands))
	}
	if result.RunID.String() != run.ID {
		t.Errorf("engine run id %s != stored run id %s", result.RunID, run.ID)
	}
	if len(progress) == 0 || progress[0].RunID.String() != run.ID {
		t.Errorf("progress not reported for run: %+v", progress)
	}

	got, err := s.Runs().GetByID(run.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != store.RunStatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.Source != "table.mp4" || got.FramesProcessed != 80 || got.Candidates != 1 || got.Hands != 1 {
		t.Errorf("unexpected run row: %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}

	hands, err := s.Hands().ListByRun(run.ID)
	if err != nil {
		t.Fatalf("ListByRun() error = %v", err)
	}
	if len(hands) != 1 || hands[0].StartFrame != 37 || hands[0].EndFrame != 72 {
		t.Errorf("unexpected stored hands: %+v", hands)
	}
	if a.Active() != 0 {
		t.Errorf("Active() = %d after run, want 0", a.Active())
	}
}

func TestApp_Analyze_UnavailableSource(t *testing.T) {
	s := newTestStore(t)
	a := New(Config{
		Store:  s,
		Engine: engine.DefaultConfig(),
		Logger: slog.New(slog.DiscardHandler),
		OpenSource: func(string) capture.Source {
			src := capture.NewMockSource(nil, 1, 0)
			src.SetOpenError(errors.New("no such file"))
			return src
		},
		EngineOptions: []engine.Option{engine.WithDetector(detector.NewMockDetector())},
	})

	run, result, err := a.Analyze(context.Background(), "missing.mp4", nil)
	if !errors.Is(err, engine.ErrSourceUnavailable) {
		t.Fatalf("Analyze() error = %v, want ErrSourceUnavailable", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}

	got, err := s.Runs().GetByID(run.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != store.RunStatusFailed || got.Error == "" {
		t.Errorf("expected failed run with error, got %+v", got)
	}
}

func TestApp_Analyze_WithoutStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	a := newTestApp(t, Config{}, 80)
	run, result, err := a.Analyze(context.Background(), "table.mp4", nil)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if run.Status != store.RunStatusCompleted || run.Hands != 1 {
		t.Errorf("unexpected run: %+v", run)
	}
	if len(result.Hands) != 1 {
		t.Errorf("got %d hands, want 1", len(result.Hands))
	}
}

func TestApp_Run_Cancelled(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	s := newTestStore(t)
	a := newTestApp(t, Config{Store: s}, 80)

	run, err := a.Begin("table.mp4")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	_, err = a.Run(ctx, run, func(p engine.Progress) {
		if p.CurrentFrame >= 10 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	got, err := s.Runs().GetByID(run.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != store.RunStatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
}

func TestApp_Cancel_Unknown(t *testing.T) {
	a := New(Config{Logger: slog.New(slog.DiscardHandler)})
	if a.Cancel("nope") {
		t.Error("Cancel() of unknown run should report false")
	}
}

func TestApp_Run_InvalidID(t *testing.T) {
	a := New(Config{Logger: slog.New(slog.DiscardHandler)})
	if _, err := a.Run(context.Background(), &store.Run{ID: "not-a-uuid"}, nil); err == nil {
		t.Fatal("expected error for invalid run id")
	}
}

func TestApp_Analyze_NotifiesHooks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	hookDir := t.TempDir()
	writeHook(t, hookDir, "ok", "#!/bin/sh\ncat >/dev/null\necho '{\"success\":true}'\n")
	writeHook(t, hookDir, "broken", "#!/bin/sh\nexit 2\n")

	s := newTestStore(t)
	a := newTestApp(t, Config{Store: s, HookDir: hookDir, HooksEnabled: true}, 80)
	if err := a.DiscoverHooks(); err != nil {
		t.Fatalf("DiscoverHooks() error = %v", err)
	}
	if len(a.Hooks().List()) != 2 {
		t.Fatalf("expected 2 hooks, got %d", len(a.Hooks().List()))
	}

	run, _, err := a.Analyze(context.Background(), "table.mp4", nil)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	deliveries, err := s.Deliveries().ListByRun(run.ID)
	if err != nil {
		t.Fatalf("ListByRun() error = %v", err)
	}
	// One hand plus the run summary, delivered to both hooks
	if len(deliveries) != 4 {
		t.Fatalf("got %d deliveries, want 4", len(deliveries))
	}
	for _, d := range deliveries {
		switch d.Hook {
		case "ok":
			if !d.Success {
				t.Errorf("delivery to ok failed: %+v", d)
			}
		case "broken":
			if d.Success || d.Error == "" {
				t.Errorf("delivery to broken should fail with error: %+v", d)
			}
		default:
			t.Errorf("unexpected hook %q", d.Hook)
		}
	}
	if deliveries[0].HandID != 1 || deliveries[3].HandID != 0 {
		t.Errorf("unexpected delivery order: %+v", deliveries)
	}

	// A failing hook never fails the run
	got, err := s.Runs().GetByID(run.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != store.RunStatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
}

func writeHook(t *testing.T, dir, name, script string) {
	t.Helper()
	hookDir := filepath.Join(dir, name)
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(hookDir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"` + name + `","version":"1.0.0","executable":"run.sh"}`
	if err := os.WriteFile(filepath.Join(hookDir, "hook.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
}
