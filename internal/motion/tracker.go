package motion

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/handscope/internal/ringbuf"
)

// Tracker maintains a background model and a rolling motion history.
// It is not safe for concurrent use; each analysis run owns its own Tracker.
type Tracker struct {
	cfg        Config
	subtractor gocv.BackgroundSubtractorMOG2
	kernel     gocv.Mat
	prevGray   gocv.Mat
	history    *ringbuf.Buffer[Sample]
	frameSize  image.Point
	closed     bool
}

// NewTracker creates a Tracker whose history holds about one second of
// samples at the given sample rate, and never fewer than MinSamples.
func NewTracker(cfg Config, sampleRate float64) *Tracker {
	capacity := max(int(math.Round(sampleRate)), cfg.MinSamples, 1)
	kernel := cfg.KernelSize
	if kernel < 1 {
		kernel = 3
	}

	return &Tracker{
		cfg:        cfg,
		subtractor: gocv.NewBackgroundSubtractorMOG2WithParams(cfg.History, cfg.VarThreshold, false),
		kernel:     gocv.GetStructuringElement(gocv.MorphRect, image.Pt(kernel, kernel)),
		prevGray:   gocv.NewMat(),
		history:    ringbuf.New[Sample](capacity),
	}
}

// Update extracts motion regions and optical flow from frame, appends the
// resulting Sample to the history and returns it.
//
// Algorithm:
// 1. MOG2 foreground mask (no shadows)
// 2. Morphological opening to remove speckle
// 3. External contours with area above MinRegionArea become regions
// 4. Pyramidal Lucas-Kanade flow on a fixed grid against the previous frame
func (t *Tracker) Update(frame *gocv.Mat, timestamp float64) Sample {
	sample := Sample{Timestamp: timestamp}

	if t.closed || frame == nil || frame.Empty() {
		t.history.Push(sample)
		return sample
	}

	t.frameSize = image.Pt(frame.Cols(), frame.Rows())

	sample.Regions, sample.TotalArea = t.extractRegions(frame)

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	// No flow on the first frame or after a resolution change
	if !t.prevGray.Empty() && t.prevGray.Rows() == gray.Rows() && t.prevGray.Cols() == gray.Cols() {
		sample.Flow = t.trackFlow(gray)
	}
	gray.CopyTo(&t.prevGray)

	t.history.Push(sample)
	return sample
}

func (t *Tracker) extractRegions(frame *gocv.Mat) ([]Region, float64) {
	fg := gocv.NewMat()
	defer fg.Close()
	t.subtractor.Apply(*frame, &fg)

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(fg, &opened, gocv.MorphOpen, t.kernel)

	contours := gocv.FindContours(opened, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []Region
	var total float64
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area <= t.cfg.MinRegionArea {
			continue
		}
		box := gocv.BoundingRect(c)
		regions = append(regions, Region{
			Box:      box,
			Centroid: image.Pt(box.Min.X+box.Dx()/2, box.Min.Y+box.Dy()/2),
			Area:     area,
		})
		total += area
	}

	return regions, total
}

func (t *Tracker) trackFlow(gray gocv.Mat) []Vector {
	stride := t.cfg.FlowGridStride
	if stride < 1 {
		stride = 20
	}

	var grid []gocv.Point2f
	for y := stride / 2; y < gray.Rows(); y += stride {
		for x := stride / 2; x < gray.Cols(); x += stride {
			grid = append(grid, gocv.Point2f{X: float32(x), Y: float32(y)})
		}
	}
	if len(grid) == 0 {
		return nil
	}

	pv := gocv.NewPoint2fVectorFromPoints(grid)
	defer pv.Close()
	prevPts := gocv.NewMatFromPoint2fVector(pv, true)
	defer prevPts.Close()

	nextPts := gocv.NewMat()
	defer nextPts.Close()
	status := gocv.NewMat()
	defer status.Close()
	errs := gocv.NewMat()
	defer errs.Close()

	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, t.cfg.FlowIterations, t.cfg.FlowEpsilon)
	gocv.CalcOpticalFlowPyrLKWithParams(
		t.prevGray, gray, prevPts, nextPts, &status, &errs,
		image.Pt(t.cfg.FlowWindow, t.cfg.FlowWindow), t.cfg.FlowLevels, criteria, 0, 1e-4,
	)

	if nextPts.Empty() || status.Empty() {
		return nil
	}

	vectors := make([]Vector, 0, len(grid))
	for i, p := range grid {
		if i >= status.Rows() || status.GetUCharAt(i, 0) != 1 {
			continue
		}
		next := nextPts.GetVecfAt(i, 0)
		vectors = append(vectors, Vector{
			From: image.Pt(int(p.X), int(p.Y)),
			DX:   float64(next[0] - p.X),
			DY:   float64(next[1] - p.Y),
		})
	}

	return vectors
}

// AnalyzePattern scores the buffered history against a gesture pattern.
// It returns 0 until MinSamples samples have been buffered.
func (t *Tracker) AnalyzePattern(p Pattern) float64 {
	samples := t.history.Slice()
	switch p {
	case PatternDealing:
		return DealingScore(samples, t.frameSize, t.cfg)
	case PatternCollection:
		return CollectionScore(samples, t.cfg)
	default:
		return 0
	}
}

// Reset clears the motion history and the previous frame.
// The background model keeps what it has learned.
func (t *Tracker) Reset() {
	t.history.Reset()
	if !t.prevGray.Empty() {
		t.prevGray.Close()
		t.prevGray = gocv.NewMat()
	}
}

// Close releases OpenCV resources. Close may be called more than once.
func (t *Tracker) Close() {
	if t.closed {
		return
	}
	t.closed = true
	t.subtractor.Close()
	t.kernel.Close()
	t.prevGray.Close()
}
