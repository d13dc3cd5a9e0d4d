package motion

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

func TestNewTracker_Capacity(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		want       int
	}{
		{name: "one second at 30fps", sampleRate: 30, want: 30},
		{name: "rounds fractional rates", sampleRate: 29.97, want: 30},
		{name: "never below min samples", sampleRate: 2, want: 10},
		{name: "unknown rate", sampleRate: 0, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(DefaultConfig(), tt.sampleRate)
			defer tr.Close()

			if got := tr.history.Cap(); got != tt.want {
				t.Errorf("history capacity = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTracker_FirstFrameHasNoFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	tr := NewTracker(DefaultConfig(), 10)
	defer tr.Close()

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	sample := tr.Update(&frame, 0)
	if len(sample.Flow) != 0 {
		t.Errorf("first frame Flow = %d vectors, want 0", len(sample.Flow))
	}
	if len(tr.history.Slice()) != 1 {
		t.Errorf("history length = %d, want 1", len(tr.history.Slice()))
	}
}

func TestTracker_HistoryIsBounded(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	tr := NewTracker(DefaultConfig(), 12)
	defer tr.Close()

	frame := gocv.NewMatWithSize(60, 80, gocv.MatTypeCV8UC3)
	defer frame.Close()

	for i := 0; i < 40; i++ {
		tr.Update(&frame, float64(i)/12)
	}

	history := tr.history.Slice()
	if len(history) != 12 {
		t.Fatalf("history length = %d, want 12", len(history))
	}
	if history[0].Timestamp >= history[len(history)-1].Timestamp {
		t.Error("history should be ordered oldest first")
	}
}

func TestTracker_DetectsMovingBlock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	tr := NewTracker(DefaultConfig(), 10)
	defer tr.Close()

	background := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer background.Close()

	var last Sample
	for i := 0; i < 20; i++ {
		last = tr.Update(&background, float64(i)/10)
	}
	if last.TotalArea != 0 {
		t.Errorf("static scene TotalArea = %f, want 0", last.TotalArea)
	}

	moving := background.Clone()
	defer moving.Close()
	gocv.Rectangle(&moving, image.Rect(100, 80, 180, 160), color.RGBA{255, 255, 255, 0}, -1)

	sample := tr.Update(&moving, 2.0)
	if len(sample.Regions) == 0 {
		t.Fatal("expected a motion region for the new block")
	}
	if sample.TotalArea <= DefaultConfig().MinRegionArea {
		t.Errorf("TotalArea = %f, want > %f", sample.TotalArea, DefaultConfig().MinRegionArea)
	}
}

func TestTracker_AnalyzePattern_NeedsHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	tr := NewTracker(DefaultConfig(), 30)
	defer tr.Close()

	frame := gocv.NewMatWithSize(60, 80, gocv.MatTypeCV8UC3)
	defer frame.Close()

	for i := 0; i < 5; i++ {
		tr.Update(&frame, float64(i)/30)
	}

	for _, p := range []Pattern{PatternDealing, PatternCollection, Pattern("unknown")} {
		if got := tr.AnalyzePattern(p); got != 0 {
			t.Errorf("AnalyzePattern(%s) = %f, want 0 with short history", p, got)
		}
	}
}

func TestTracker_UpdateAfterClose(t *testing.T) {
	tr := NewTracker(DefaultConfig(), 10)
	tr.Close()
	tr.Close()

	sample := tr.Update(nil, 1.5)
	if sample.Timestamp != 1.5 || len(sample.Regions) != 0 {
		t.Errorf("Update() after Close = %+v, want empty sample", sample)
	}
}
