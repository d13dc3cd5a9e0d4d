// Package motion turns consecutive video frames into a quantified motion
// signal and scores it against known dealer gestures.
package motion

import (
	"image"
	"math"
)

// Pattern names a gesture the tracker can score.
type Pattern string

const (
	// PatternDealing is motion radiating from the table centre towards the seats.
	PatternDealing Pattern = "dealing"
	// PatternCollection is a single fast, directionally consistent sweep.
	PatternCollection Pattern = "collection"
)

// Region is a connected foreground blob from background subtraction.
type Region struct {
	Box      image.Rectangle `json:"box"`
	Centroid image.Point     `json:"centroid"`
	Area     float64         `json:"area"`
}

// Vector is a sparse optical flow displacement for one grid point.
type Vector struct {
	From image.Point `json:"from"`
	DX   float64     `json:"dx"`
	DY   float64     `json:"dy"`
}

// Magnitude returns the displacement length in pixels.
func (v Vector) Magnitude() float64 {
	return math.Hypot(v.DX, v.DY)
}

// Angle returns the displacement direction in radians.
func (v Vector) Angle() float64 {
	return math.Atan2(v.DY, v.DX)
}

// Sample is the motion record for a single frame.
type Sample struct {
	Timestamp float64  `json:"timestamp"`
	Regions   []Region `json:"regions"`
	TotalArea float64  `json:"total_area"`
	Flow      []Vector `json:"flow,omitempty"`
}

// Config holds tuning values for motion extraction and pattern scoring.
type Config struct {
	// Background subtractor learning history in frames.
	History int
	// VarThreshold is the MOG2 variance threshold.
	VarThreshold float64
	// KernelSize is the side of the square opening kernel.
	KernelSize int
	// MinRegionArea drops contours at or below this area in px².
	MinRegionArea float64

	FlowGridStride int
	FlowWindow     int
	FlowLevels     int
	FlowIterations int
	FlowEpsilon    float64

	// MinSamples is the history length required before any pattern scores.
	MinSamples int

	DealingWindow int
	// CentralRadius is the fraction of frame width separating central from radial motion.
	CentralRadius float64

	CollectionWindow int
	MinFlowMagnitude float64
	MagnitudeScale   float64
	MinVectors       int
}

// DefaultConfig returns a Config with the tuned default values.
func DefaultConfig() Config {
	return Config{
		History:          500,
		VarThreshold:     50,
		KernelSize:       3,
		MinRegionArea:    500,
		FlowGridStride:   20,
		FlowWindow:       15,
		FlowLevels:       2,
		FlowIterations:   10,
		FlowEpsilon:      0.03,
		MinSamples:       10,
		DealingWindow:    30,
		CentralRadius:    0.3,
		CollectionWindow: 15,
		MinFlowMagnitude: 2,
		MagnitudeScale:   10,
		MinVectors:       3,
	}
}
