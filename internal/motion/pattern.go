package motion

import (
	"image"
	"math"
)

// DealingScore scores outward motion over the most recent samples.
// Region centroids closer to the frame centre than CentralRadius×width count
// as central, the rest as radial; the score is radial/central scaled by 0.5
// and capped at 1.
func DealingScore(samples []Sample, frame image.Point, cfg Config) float64 {
	if len(samples) < cfg.MinSamples || frame.X <= 0 || frame.Y <= 0 {
		return 0
	}

	samples = tail(samples, cfg.DealingWindow)
	cx, cy := float64(frame.X)/2, float64(frame.Y)/2
	radius := cfg.CentralRadius * float64(frame.X)

	var central, radial int
	for _, s := range samples {
		for _, r := range s.Regions {
			d := math.Hypot(float64(r.Centroid.X)-cx, float64(r.Centroid.Y)-cy)
			if d < radius {
				central++
			} else {
				radial++
			}
		}
	}

	return math.Min(float64(radial)/float64(max(central, 1))*0.5, 1.0)
}

// CollectionScore scores a directed sweep over the most recent samples as
// the mean of angular consistency and normalised average speed.
func CollectionScore(samples []Sample, cfg Config) float64 {
	if len(samples) < cfg.MinSamples {
		return 0
	}

	samples = tail(samples, cfg.CollectionWindow)

	var angles []float64
	var magSum float64
	for _, s := range samples {
		for _, v := range s.Flow {
			m := v.Magnitude()
			if m <= cfg.MinFlowMagnitude {
				continue
			}
			angles = append(angles, v.Angle())
			magSum += m
		}
	}

	if len(angles) < cfg.MinVectors {
		return 0
	}

	consistency := 1 - math.Min(circularStd(angles)/math.Pi, 1)
	scale := cfg.MagnitudeScale
	if scale <= 0 {
		scale = 1
	}
	magnitude := math.Min(magSum/float64(len(angles))/scale, 1.0)

	return (consistency + magnitude) / 2
}

// circularStd returns the circular standard deviation of angles in radians.
// A fully dispersed set yields +Inf.
func circularStd(angles []float64) float64 {
	var sinSum, cosSum float64
	for _, a := range angles {
		sinSum += math.Sin(a)
		cosSum += math.Cos(a)
	}
	n := float64(len(angles))
	r := math.Hypot(sinSum/n, cosSum/n)
	if r >= 1 {
		return 0
	}
	if r <= 0 {
		return math.Inf(1)
	}
	return math.Sqrt(-2 * math.Log(r))
}

func tail(samples []Sample, n int) []Sample {
	if n > 0 && len(samples) > n {
		return samples[len(samples)-n:]
	}
	return samples
}
