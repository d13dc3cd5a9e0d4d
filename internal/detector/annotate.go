package detector

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	potColor    = color.RGBA{255, 215, 0, 0}
	seatColor   = color.RGBA{255, 128, 0, 0}
	cardColor   = color.RGBA{0, 255, 0, 0}
	chipOutline = color.RGBA{255, 0, 0, 0}
)

// Annotate draws the regions and detections onto a copy of frame.
// The caller is responsible for closing the returned Mat.
func Annotate(frame *gocv.Mat, regions Regions, cards []Card, chips []Chip) gocv.Mat {
	out := frame.Clone()

	gocv.Rectangle(&out, regions.Pot, potColor, 2)
	gocv.PutText(&out, "pot", regions.Pot.Min.Add(image.Pt(4, 16)), gocv.FontHersheySimplex, 0.5, potColor, 1)

	for i, r := range regions.Players {
		gocv.Rectangle(&out, r, seatColor, 1)
		gocv.PutText(&out, fmt.Sprintf("seat %d", i+1), r.Min.Add(image.Pt(4, 16)), gocv.FontHersheySimplex, 0.45, seatColor, 1)
	}

	for _, c := range cards {
		gocv.Rectangle(&out, c.Box, cardColor, 2)
		label := fmt.Sprintf("%s %.1f", c.Source, c.Confidence)
		gocv.PutText(&out, label, c.Box.Min.Sub(image.Pt(0, 4)), gocv.FontHersheySimplex, 0.4, cardColor, 1)
	}

	for _, c := range chips {
		gocv.Circle(&out, c.Centroid, int(c.Radius), chipOutline, 2)
	}

	return out
}
