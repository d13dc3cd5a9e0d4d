package engine

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/handscope/internal/boundary"
	"github.com/ayusman/handscope/internal/capture"
	"github.com/ayusman/handscope/internal/detector"
	"github.com/ayusman/handscope/internal/motion"
)

// fakeTracker replays motion signals keyed by timestamp.
type fakeTracker struct {
	signal func(ts float64) (area, dealing, collection float64)
	last   float64
	closed bool
}

func (f *fakeTracker) Update(_ *gocv.Mat, ts float64) motion.Sample {
	f.last = ts
	area, _, _ := f.signal(ts)
	return motion.Sample{Timestamp: ts, TotalArea: area}
}

func (f *fakeTracker) AnalyzePattern(p motion.Pattern) float64 {
	_, dealing, collection := f.signal(f.last)
	if p == motion.PatternDealing {
		return dealing
	}
	return collection
}

func (f *fakeTracker) Close() { f.closed = true }

func trackerFactory(signal func(ts float64) (float64, float64, float64)) TrackerFactory {
	return func(motion.Config, float64) MotionTracker {
		return &fakeTracker{signal: signal}
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newSource plays total copies of a 100x100 black frame at fps.
func newSource(t *testing.T, fps float64, total int) *capture.MockSource {
	t.Helper()
	mat := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })
	return capture.NewMockSource([]*gocv.Mat{&mat}, fps, total)
}

// cleanHandSignal is the clean single hand scenario at 1 fps: a dealing
// burst at 35-37s and a collection sweep over an empty pot at 71-72s.
func cleanHandSignal(ts float64) (area, dealing, collection float64) {
	switch {
	case ts >= 35 && ts <= 37:
		return 0, 0.75, 0
	case ts >= 38 && ts <= 70:
		return 1000, 0, 0
	case ts >= 71 && ts <= 72:
		return 100, 0, 0.75
	}
	return 0, 0, 0
}

// cleanHandDetector reports three cards on the 38th card call (frame 37)
// and chips in the pot until the sweep.
func cleanHandDetector() *detector.MockDetector {
	d := detector.NewMockDetector()

	cards := make([][]detector.Card, 38)
	cards[37] = []detector.Card{{}, {}, {}}
	d.ScriptCards(cards...)

	potChip := []detector.Chip{{Centroid: image.Pt(50, 50), Color: "red"}}
	// End evaluation starts at 68s: three frames with chips, then the sweep.
	d.ScriptChips(potChip, potChip, potChip, nil, nil)
	return d
}

func TestAnalyze_CleanSingleHand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	e := New(DefaultConfig(),
		WithLogger(quietLogger()),
		WithDetector(cleanHandDetector()),
		WithTrackerFactory(trackerFactory(cleanHandSignal)))
	defer e.Close()

	res, err := e.Analyze(context.Background(), newSource(t, 1, 80))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(res.Events), res.Events)
	}
	if res.Events[0].Type != boundary.EventHandStart || res.Events[0].FrameNumber != 37 {
		t.Errorf("start event = %+v", res.Events[0])
	}
	if res.Events[1].Type != boundary.EventHandEnd || res.Events[1].FrameNumber != 72 {
		t.Errorf("end event = %+v", res.Events[1])
	}
	if len(res.Hands) != 1 {
		t.Fatalf("got %d hands, want 1", len(res.Hands))
	}
	if d := res.Hands[0].Duration; d != 35 {
		t.Errorf("Duration = %v, want 35", d)
	}
	if res.FramesProcessed != 80 || res.Dropped != nil {
		t.Errorf("FramesProcessed = %d, Dropped = %+v", res.FramesProcessed, res.Dropped)
	}
	if res.RunID == uuid.Nil {
		t.Error("RunID should be set")
	}
}

func TestAnalyze_Determinism(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	run := func() []boundary.HandBoundary {
		e := New(DefaultConfig(),
			WithLogger(quietLogger()),
			WithDetector(cleanHandDetector()),
			WithTrackerFactory(trackerFactory(cleanHandSignal)))
		defer e.Close()
		res, err := e.Analyze(context.Background(), newSource(t, 1, 80))
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		return res.Hands
	}

	if a, b := run(), run(); !reflect.DeepEqual(a, b) {
		t.Errorf("runs differ:\n%+v\n%+v", a, b)
	}
}

func TestAnalyze_NoisyNonEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	noise := func(ts float64) (float64, float64, float64) {
		i := int(ts * 4)
		return float64((i * 37) % 1900), float64(i%5) / 10, float64(i%7) / 10
	}

	d := detector.NewMockDetector()
	d.SetCards([]detector.Card{{}})
	d.SetChips([]detector.Chip{{Centroid: image.Pt(50, 50)}})

	e := New(DefaultConfig(),
		WithLogger(quietLogger()),
		WithDetector(d),
		WithTrackerFactory(trackerFactory(noise)))
	defer e.Close()

	res, err := e.Analyze(context.Background(), newSource(t, 4, 4*300))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Events) != 0 || len(res.Hands) != 0 {
		t.Errorf("got %d events and %d hands, want none", len(res.Events), len(res.Hands))
	}
}

func TestAnalyze_UnopenableSource(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	src := newSource(t, 30, 10)
	src.SetOpenError(errors.New("no such file"))

	e := New(DefaultConfig(), WithLogger(quietLogger()), WithDetector(detector.NewMockDetector()))
	defer e.Close()

	res, err := e.Analyze(context.Background(), src)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Analyze() error = %v, want ErrSourceUnavailable", err)
	}
	if res != nil {
		t.Errorf("Analyze() result = %+v, want nil", res)
	}
}

func TestAnalyze_MidStreamFailureDropsOpenHand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	src := newSource(t, 1, 80)
	src.SetFailAt(50)

	e := New(DefaultConfig(),
		WithLogger(quietLogger()),
		WithDetector(cleanHandDetector()),
		WithTrackerFactory(trackerFactory(cleanHandSignal)))
	defer e.Close()

	res, err := e.Analyze(context.Background(), src)
	if err != nil {
		t.Fatalf("Analyze() error = %v, want normal end of stream", err)
	}
	if res.FramesProcessed != 50 {
		t.Errorf("FramesProcessed = %d, want 50", res.FramesProcessed)
	}
	if len(res.Hands) != 0 {
		t.Errorf("got %d hands, want the open hand dropped", len(res.Hands))
	}
	if res.Dropped == nil || res.Dropped.FrameNumber != 37 {
		t.Errorf("Dropped = %+v, want the hand opened at frame 37", res.Dropped)
	}
}

func TestAnalyze_DetectorFailuresAreContained(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	tests := []struct {
		name  string
		setup func(*detector.MockDetector)
	}{
		{name: "error", setup: func(d *detector.MockDetector) { d.SetError(errors.New("bad frame")) }},
		{name: "panic", setup: func(d *detector.MockDetector) { d.SetPanic(true) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := detector.NewMockDetector()
			tt.setup(d)

			e := New(DefaultConfig(),
				WithLogger(quietLogger()),
				WithDetector(d),
				WithTrackerFactory(trackerFactory(cleanHandSignal)))
			defer e.Close()

			res, err := e.Analyze(context.Background(), newSource(t, 1, 80))
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if res.FramesProcessed != 80 {
				t.Errorf("FramesProcessed = %d, want 80", res.FramesProcessed)
			}
			if len(res.Hands) != 0 {
				t.Errorf("got %d hands, want none without detections", len(res.Hands))
			}
		})
	}
}

func TestAnalyze_ProgressAndStride(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	var reports []Progress
	cfg := DefaultConfig()
	cfg.FrameStride = 2
	id := uuid.New()

	e := New(cfg,
		WithLogger(quietLogger()),
		WithDetector(detector.NewMockDetector()),
		WithRunID(id),
		WithProgress(func(p Progress) { reports = append(reports, p) }),
		WithTrackerFactory(trackerFactory(func(float64) (float64, float64, float64) { return 0, 0, 0 })))
	defer e.Close()

	res, err := e.Analyze(context.Background(), newSource(t, 5, 20))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.FramesProcessed != 10 {
		t.Errorf("FramesProcessed = %d, want 10", res.FramesProcessed)
	}
	if res.RunID != id {
		t.Errorf("RunID = %v, want %v", res.RunID, id)
	}

	// Every second of video, plus the final frame.
	wantFrames := []int{0, 5, 10, 15, 19}
	if len(reports) != len(wantFrames) {
		t.Fatalf("got %d progress reports, want %d", len(reports), len(wantFrames))
	}
	for i, p := range reports {
		if p.CurrentFrame != wantFrames[i] || p.TotalFrames != 20 || p.RunID != id {
			t.Errorf("report %d = %+v", i, p)
		}
		if want := float64(wantFrames[i]) / 5; p.CurrentTime != want {
			t.Errorf("report %d CurrentTime = %v, want %v", i, p.CurrentTime, want)
		}
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(DefaultConfig(), WithLogger(quietLogger()), WithDetector(detector.NewMockDetector()))
	defer e.Close()

	res, err := e.Analyze(ctx, newSource(t, 1, 10))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Analyze() error = %v, want context.Canceled", err)
	}
	if res == nil || res.FramesProcessed != 0 {
		t.Errorf("Analyze() result = %+v, want empty partial result", res)
	}
}

func TestProcess_Errors(t *testing.T) {
	e := New(DefaultConfig(),
		WithLogger(quietLogger()),
		WithDetector(detector.NewMockDetector()),
		WithTrackerFactory(trackerFactory(func(float64) (float64, float64, float64) { return 0, 0, 0 })))
	defer e.Close()

	if _, err := e.Process(capture.Frame{}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Process() before Start error = %v, want ErrNotStarted", err)
	}

	e.Start(30, 0)
	if _, err := e.Process(capture.Frame{Index: 0}); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Process(empty) error = %v, want ErrEmptyFrame", err)
	}
}

func TestProcess_OutOfOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	e := New(DefaultConfig(),
		WithLogger(quietLogger()),
		WithDetector(detector.NewMockDetector()),
		WithTrackerFactory(trackerFactory(func(float64) (float64, float64, float64) { return 0, 0, 0 })))
	defer e.Close()
	e.Start(1, 0)

	mat := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer mat.Close()

	if _, err := e.Process(capture.NewFrame(&mat, 5, 1)); err != nil {
		t.Fatalf("Process(5) error = %v", err)
	}
	if _, err := e.Process(capture.NewFrame(&mat, 5, 1)); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("Process(5) again error = %v, want ErrOutOfOrder", err)
	}
	if st := e.Snapshot(); len(st.CardCounts) != 1 {
		t.Errorf("CardCounts = %v, want one entry", st.CardCounts)
	}
}
