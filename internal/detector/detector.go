// Package detector locates card-like and chip-like objects in table video
// frames using geometry and colour heuristics.
package detector

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// ErrInvalidFrame is returned when a frame cannot be analysed.
var ErrInvalidFrame = errors.New("invalid frame")

// Detector defines the interface for table object detection implementations.
type Detector interface {
	// DetectCards returns card-like regions. An empty slice is a valid result.
	DetectCards(frame *gocv.Mat) ([]Card, error)

	// DetectChips returns chip-like circles. An empty slice is a valid result.
	DetectChips(frame *gocv.Mat) ([]Chip, error)

	// SetRegions derives the table regions of interest from the frame size.
	SetRegions(height, width int)

	// Regions returns the regions computed by the last SetRegions call.
	Regions() Regions

	// Close releases any resources held by the detector.
	Close() error
}

// CardSource records which heuristic produced a card detection.
type CardSource string

const (
	// SourceShape marks detections from contour geometry.
	SourceShape CardSource = "shape"
	// SourceColor marks detections from the near-white colour mask.
	SourceColor CardSource = "color"
)

// Card is a card-like detection in a single frame.
type Card struct {
	Box        image.Rectangle `json:"box"`
	Centroid   image.Point     `json:"centroid"`
	Area       float64         `json:"area"`
	Confidence float64         `json:"confidence"`
	Source     CardSource      `json:"source"`
}

// Chip is a chip-like circle in a single frame.
type Chip struct {
	Centroid   image.Point `json:"centroid"`
	Radius     float64     `json:"radius"`
	Color      string      `json:"color"`
	Confidence float64     `json:"confidence"`
}

// HSV is an OpenCV-scaled colour (H in [0,180], S and V in [0,255]).
type HSV struct {
	H float64 `toml:"h"`
	S float64 `toml:"s"`
	V float64 `toml:"v"`
}

func (c HSV) scalar() gocv.Scalar {
	return gocv.NewScalar(c.H, c.S, c.V, 0)
}

// ColorRange is a named inclusive HSV range.
type ColorRange struct {
	Name  string `toml:"name"`
	Lower HSV    `toml:"lower"`
	Upper HSV    `toml:"upper"`
}

// Config holds thresholds for the card and chip heuristics.
type Config struct {
	// Shape-based cards
	BlurSize           int
	ThresholdBlockSize int
	ThresholdC         float32
	ApproxEpsilon      float64
	ShapeMinArea       float64
	ShapeMaxArea       float64
	ShapeConfidence    float64

	// Colour-based cards
	CardWhite       ColorRange
	ColorMinArea    float64
	ColorMaxArea    float64
	ColorConfidence float64

	MinAspect     float64
	MaxAspect     float64
	MergeDistance float64

	// Chips
	ChipColors     []ColorRange
	ChipBlurSize   int
	HoughDP        float64
	HoughMinDist   float64
	HoughParam1    float64
	HoughParam2    float64
	MinChipRadius  int
	MaxChipRadius  int
	ChipConfidence float64

	Layout Layout
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		BlurSize:           5,
		ThresholdBlockSize: 11,
		ThresholdC:         2,
		ApproxEpsilon:      0.02,
		ShapeMinArea:       800,
		ShapeMaxArea:       8000,
		ShapeConfidence:    0.7,

		CardWhite:       ColorRange{Name: "white", Lower: HSV{0, 0, 200}, Upper: HSV{180, 30, 255}},
		ColorMinArea:    400,
		ColorMaxArea:    8000,
		ColorConfidence: 0.6,

		MinAspect:     1.2,
		MaxAspect:     1.8,
		MergeDistance: 50,

		ChipColors:     DefaultChipColors(),
		ChipBlurSize:   5,
		HoughDP:        1,
		HoughMinDist:   20,
		HoughParam1:    50,
		HoughParam2:    30,
		MinChipRadius:  8,
		MaxChipRadius:  40,
		ChipConfidence: 0.8,

		Layout: DefaultLayout(),
	}
}

// DefaultChipColors returns the five standard chip colour ranges.
func DefaultChipColors() []ColorRange {
	return []ColorRange{
		{Name: "white", Lower: HSV{0, 0, 200}, Upper: HSV{180, 30, 255}},
		{Name: "red", Lower: HSV{0, 100, 100}, Upper: HSV{10, 255, 255}},
		{Name: "green", Lower: HSV{40, 50, 50}, Upper: HSV{80, 255, 255}},
		{Name: "blue", Lower: HSV{100, 50, 50}, Upper: HSV{130, 255, 255}},
		{Name: "black", Lower: HSV{0, 0, 0}, Upper: HSV{180, 255, 50}},
	}
}

// validFrame reports whether frame is a non-empty 3-channel 8-bit image.
func validFrame(frame *gocv.Mat) bool {
	return frame != nil && !frame.Empty() && frame.Channels() == 3 && frame.Type() == gocv.MatTypeCV8UC3
}
