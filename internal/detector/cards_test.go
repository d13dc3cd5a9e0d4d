package detector

import (
	"image"
	"testing"
)

func TestAspectInRange(t *testing.T) {
	tests := []struct {
		name string
		w, h float64
		want bool
	}{
		{name: "portrait card", w: 63, h: 88, want: true},
		{name: "landscape card", w: 88, h: 63, want: true},
		{name: "square", w: 50, h: 50, want: false},
		{name: "too elongated", w: 20, h: 80, want: false},
		{name: "lower bound", w: 50, h: 60, want: true},
		{name: "upper bound", w: 50, h: 90, want: true},
		{name: "degenerate", w: 0, h: 40, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AspectInRange(tt.w, tt.h, 1.2, 1.8); got != tt.want {
				t.Errorf("AspectInRange(%v, %v) = %v, want %v", tt.w, tt.h, got, tt.want)
			}
		})
	}
}

func TestMergeCards(t *testing.T) {
	shapeA := newCard(image.Rect(100, 100, 140, 160), 2400, 0.7, SourceShape)
	colorA := newCard(image.Rect(105, 102, 143, 158), 2100, 0.6, SourceColor)
	colorB := newCard(image.Rect(400, 100, 440, 160), 2400, 0.6, SourceColor)

	t.Run("keeps higher confidence duplicate", func(t *testing.T) {
		merged := MergeCards([]Card{colorA, shapeA}, 50)
		if len(merged) != 1 {
			t.Fatalf("len(merged) = %d, want 1", len(merged))
		}
		if merged[0].Source != SourceShape {
			t.Errorf("Source = %s, want %s", merged[0].Source, SourceShape)
		}
		if merged[0].Box != shapeA.Box {
			t.Errorf("Box = %v, want winning detection's box %v", merged[0].Box, shapeA.Box)
		}
	})

	t.Run("lower confidence duplicate dropped", func(t *testing.T) {
		merged := MergeCards([]Card{shapeA, colorA}, 50)
		if len(merged) != 1 || merged[0].Source != SourceShape {
			t.Errorf("merged = %+v, want only the shape detection", merged)
		}
	})

	t.Run("distinct cards kept", func(t *testing.T) {
		merged := MergeCards([]Card{shapeA, colorB}, 50)
		if len(merged) != 2 {
			t.Errorf("len(merged) = %d, want 2", len(merged))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if merged := MergeCards(nil, 50); len(merged) != 0 {
			t.Errorf("MergeCards(nil) = %v, want empty", merged)
		}
	})
}

func TestOddSize(t *testing.T) {
	for in, want := range map[int]int{-3: 1, 0: 1, 1: 1, 4: 5, 11: 11} {
		if got := oddSize(in); got != want {
			t.Errorf("oddSize(%d) = %d, want %d", in, got, want)
		}
	}
}
