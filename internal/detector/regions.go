package detector

import "image"

// NumPlayerRegions is the number of seat regions in a table layout.
const NumPlayerRegions = 6

// Box is a rectangle expressed as fractions of the frame size.
type Box struct {
	X0 float64 `toml:"x0"`
	Y0 float64 `toml:"y0"`
	X1 float64 `toml:"x1"`
	Y1 float64 `toml:"y1"`
}

// Rect scales the box to a frame of the given size.
func (b Box) Rect(height, width int) image.Rectangle {
	return image.Rect(
		int(b.X0*float64(width)), int(b.Y0*float64(height)),
		int(b.X1*float64(width)), int(b.Y1*float64(height)),
	)
}

// Layout places the pot and seats on the table as fractional boxes.
type Layout struct {
	Pot     Box                   `toml:"pot"`
	Players [NumPlayerRegions]Box `toml:"players"`
}

// DefaultLayout returns a central pot covering 20%×20% of the frame and six
// seats around an oval table.
func DefaultLayout() Layout {
	return Layout{
		Pot: Box{0.4, 0.4, 0.6, 0.6},
		Players: [NumPlayerRegions]Box{
			{0.15, 0.65, 0.35, 0.90}, // bottom left
			{0.65, 0.65, 0.85, 0.90}, // bottom right
			{0.80, 0.35, 0.98, 0.65}, // right
			{0.65, 0.10, 0.85, 0.35}, // top right
			{0.15, 0.10, 0.35, 0.35}, // top left
			{0.02, 0.35, 0.20, 0.65}, // left
		},
	}
}

// Regions are the table regions of interest in pixel coordinates.
type Regions struct {
	Pot     image.Rectangle                   `json:"pot"`
	Players [NumPlayerRegions]image.Rectangle `json:"players"`
}

// ComputeRegions scales a layout to a frame of the given size.
func ComputeRegions(layout Layout, height, width int) Regions {
	r := Regions{Pot: layout.Pot.Rect(height, width)}
	for i, b := range layout.Players {
		r.Players[i] = b.Rect(height, width)
	}
	return r
}

// ChipsInRegion counts the chips whose centre lies inside rect.
func ChipsInRegion(chips []Chip, rect image.Rectangle) int {
	n := 0
	for _, c := range chips {
		if c.Centroid.In(rect) {
			n++
		}
	}
	return n
}
