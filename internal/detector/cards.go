package detector

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// DetectCards runs the shape and colour heuristics and merges their results.
func (h *Heuristic) DetectCards(frame *gocv.Mat) ([]Card, error) {
	if !validFrame(frame) {
		return nil, fmt.Errorf("detect cards: %w", ErrInvalidFrame)
	}

	shape := h.detectShapeCards(frame)
	color := h.detectColorCards(frame)

	return MergeCards(append(shape, color...), h.config.MergeDistance), nil
}

// detectShapeCards finds quadrilaterals with card-like area and proportions.
//
// Algorithm:
// 1. Grayscale and Gaussian blur
// 2. Inverted adaptive threshold so object outlines become foreground
// 3. External contours approximated to polygons (epsilon 2% of perimeter)
// 4. Keep 4-vertex polygons within the area and aspect bounds
func (h *Heuristic) detectShapeCards(frame *gocv.Mat) []Card {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := oddSize(h.config.BlurSize)
	gocv.GaussianBlur(gray, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(blurred, &thresh, 255, gocv.AdaptiveThresholdGaussian,
		gocv.ThresholdBinaryInv, oddSize(h.config.ThresholdBlockSize), h.config.ThresholdC)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var cards []Card
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < h.config.ShapeMinArea || area > h.config.ShapeMaxArea {
			continue
		}

		approx := gocv.ApproxPolyDP(c, h.config.ApproxEpsilon*gocv.ArcLength(c, true), true)
		vertices := approx.Size()
		approx.Close()
		if vertices != 4 {
			continue
		}

		if !h.cardAspect(c) {
			continue
		}

		cards = append(cards, newCard(gocv.BoundingRect(c), area, h.config.ShapeConfidence, SourceShape))
	}

	return cards
}

// detectColorCards finds near-white blobs with card-like proportions.
// The lower area bound is half the shape bound since card faces are often
// partially covered.
func (h *Heuristic) detectColorCards(frame *gocv.Mat) []Card {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(*frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv, h.config.CardWhite.Lower.scalar(), h.config.CardWhite.Upper.scalar(), &mask)

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(mask, &closed, gocv.MorphClose, h.kernel)

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(closed, &opened, gocv.MorphOpen, h.kernel)

	contours := gocv.FindContours(opened, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var cards []Card
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < h.config.ColorMinArea || area > h.config.ColorMaxArea {
			continue
		}
		if !h.cardAspect(c) {
			continue
		}
		cards = append(cards, newCard(gocv.BoundingRect(c), area, h.config.ColorConfidence, SourceColor))
	}

	return cards
}

// cardAspect checks the minimum-area rectangle of a contour against the
// configured aspect ratio bounds.
func (h *Heuristic) cardAspect(c gocv.PointVector) bool {
	rect := gocv.MinAreaRect(c)
	return AspectInRange(float64(rect.Width), float64(rect.Height), h.config.MinAspect, h.config.MaxAspect)
}

// AspectInRange reports whether the long/short side ratio of a rectangle is
// within [minAspect, maxAspect]. Degenerate rectangles never match.
func AspectInRange(w, h, minAspect, maxAspect float64) bool {
	short, long := math.Min(w, h), math.Max(w, h)
	if short <= 0 {
		return false
	}
	ratio := long / short
	return ratio >= minAspect && ratio <= maxAspect
}

// MergeCards removes duplicate detections. Two cards are duplicates when
// their centroids are closer than distance; the higher-confidence card wins
// and replaces the earlier entry in place.
func MergeCards(cards []Card, distance float64) []Card {
	merged := make([]Card, 0, len(cards))
	for _, c := range cards {
		dup := -1
		for i, m := range merged {
			if centroidDistance(c.Centroid, m.Centroid) < distance {
				dup = i
				break
			}
		}
		if dup < 0 {
			merged = append(merged, c)
			continue
		}
		if c.Confidence > merged[dup].Confidence {
			merged[dup] = c
		}
	}
	return merged
}

func newCard(box image.Rectangle, area, confidence float64, source CardSource) Card {
	return Card{
		Box:        box,
		Centroid:   image.Pt(box.Min.X+box.Dx()/2, box.Min.Y+box.Dy()/2),
		Area:       area,
		Confidence: confidence,
		Source:     source,
	}
}

func centroidDistance(a, b image.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

// oddSize returns k rounded up to a positive odd kernel size.
func oddSize(k int) int {
	if k < 1 {
		return 1
	}
	if k%2 == 0 {
		return k + 1
	}
	return k
}
