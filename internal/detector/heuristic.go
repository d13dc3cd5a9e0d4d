package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Heuristic implements Detector with OpenCV geometry and colour heuristics.
// It holds no per-frame state apart from the configured regions.
type Heuristic struct {
	config  Config
	kernel  gocv.Mat
	regions Regions
	mu      sync.RWMutex
	closed  bool
}

// NewHeuristic creates a Heuristic detector with the given configuration.
func NewHeuristic(config Config) *Heuristic {
	return &Heuristic{
		config: config,
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
	}
}

// SetRegions derives the pot and seat regions from the frame size.
func (h *Heuristic) SetRegions(height, width int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.regions = ComputeRegions(h.config.Layout, height, width)
}

// Regions returns the current regions of interest.
func (h *Heuristic) Regions() Regions {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.regions
}

// Close releases the morphology kernel.
func (h *Heuristic) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.kernel.Close()
}
