// Package synth draws synthetic poker table frames for tests and demos.
package synth

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Standard colours. Felt sits outside every default chip colour range so
// the table itself never masks as a chip colour.
var (
	Felt      = color.RGBA{70, 40, 100, 0}
	CardWhite = color.RGBA{250, 250, 250, 0}
	ChipRed   = color.RGBA{220, 0, 0, 0}
	ChipBlue  = color.RGBA{0, 60, 220, 0}
	ChipBlack = color.RGBA{15, 15, 15, 0}
)

// Table returns an empty felt-coloured frame.
// The caller is responsible for closing the returned Mat.
func Table(height, width int) gocv.Mat {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	mat.SetTo(gocv.NewScalar(float64(Felt.B), float64(Felt.G), float64(Felt.R), 0))
	return mat
}

// DrawCard paints a face-up card filling rect.
func DrawCard(frame *gocv.Mat, rect image.Rectangle) {
	gocv.Rectangle(frame, rect, CardWhite, -1)
}

// DrawChip paints a solid chip.
func DrawChip(frame *gocv.Mat, center image.Point, radius int, c color.RGBA) {
	gocv.Circle(frame, center, radius, c, -1)
}

// Scene describes the objects on a synthetic table.
type Scene struct {
	Cards []image.Rectangle
	Chips []Chip
}

// Chip is a chip placement in a Scene.
type Chip struct {
	Center image.Point
	Radius int
	Color  color.RGBA
}

// Render draws the scene onto a new table frame.
// The caller is responsible for closing the returned Mat.
func (s Scene) Render(height, width int) gocv.Mat {
	frame := Table(height, width)
	for _, r := range s.Cards {
		DrawCard(&frame, r)
	}
	for _, c := range s.Chips {
		DrawChip(&frame, c.Center, c.Radius, c.Color)
	}
	return frame
}

// Sequence renders n frames, calling scene for each index.
// The caller is responsible for closing the returned Mats.
func Sequence(n, height, width int, scene func(i int) Scene) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		f := scene(i).Render(height, width)
		frames = append(frames, &f)
	}
	return frames
}

// CloseAll closes every frame in frames.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
