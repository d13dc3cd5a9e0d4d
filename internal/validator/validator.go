// Package validator turns raw hand candidates into a clean, non-overlapping
// list of plausible hands.
package validator

import (
	"sort"

	"github.com/ayusman/handscope/internal/boundary"
)

// Config bounds what counts as a plausible hand.
type Config struct {
	MinDuration   float64
	MaxDuration   float64
	MinConfidence float64
}

// DefaultConfig returns the standard bounds: 30s to 10 minutes, confidence 50.
func DefaultConfig() Config {
	return Config{
		MinDuration:   30,
		MaxDuration:   600,
		MinConfidence: 50,
	}
}

// Validator filters hand candidates.
type Validator struct {
	cfg Config
}

// New creates a Validator.
func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate drops implausible hands and resolves overlaps in chronological
// order: a hand starting before the previously accepted hand ends replaces
// it only with strictly higher overall confidence. The input is not modified.
func (v *Validator) Validate(hands []boundary.HandBoundary) []boundary.HandBoundary {
	candidates := make([]boundary.HandBoundary, 0, len(hands))
	for _, h := range hands {
		if v.Plausible(h) {
			candidates = append(candidates, h)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].StartTime < candidates[j].StartTime
	})

	var out []boundary.HandBoundary
	for _, h := range candidates {
		if n := len(out); n > 0 && h.Overlaps(out[n-1]) {
			if h.OverallConfidence > out[n-1].OverallConfidence {
				out[n-1] = h
			}
			continue
		}
		out = append(out, h)
	}

	return out
}

// Plausible reports whether h passes the duration and confidence bounds.
func (v *Validator) Plausible(h boundary.HandBoundary) bool {
	return h.Duration >= v.cfg.MinDuration &&
		h.Duration <= v.cfg.MaxDuration &&
		h.OverallConfidence >= v.cfg.MinConfidence
}
