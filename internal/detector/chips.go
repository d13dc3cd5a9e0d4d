package detector

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// DetectChips masks the frame with each chip colour range and runs Hough
// circle detection on the masked image. Chips of different colours are
// reported separately; no cross-colour deduplication is done.
func (h *Heuristic) DetectChips(frame *gocv.Mat) ([]Chip, error) {
	if !validFrame(frame) {
		return nil, fmt.Errorf("detect chips: %w", ErrInvalidFrame)
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(*frame, &hsv, gocv.ColorBGRToHSV)

	var chips []Chip
	for _, cr := range h.config.ChipColors {
		chips = append(chips, h.detectColor(frame, hsv, cr)...)
	}

	return chips, nil
}

func (h *Heuristic) detectColor(frame *gocv.Mat, hsv gocv.Mat, cr ColorRange) []Chip {
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv, cr.Lower.scalar(), cr.Upper.scalar(), &mask)

	if gocv.CountNonZero(mask) == 0 {
		return nil
	}

	masked := gocv.NewMat()
	defer masked.Close()
	gocv.BitwiseAndWithMask(*frame, *frame, &masked, mask)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(masked, &gray, gocv.ColorBGRToGray)

	// Median blur suppresses mask edge noise that produces false circles
	smoothed := gocv.NewMat()
	defer smoothed.Close()
	gocv.MedianBlur(gray, &smoothed, oddSize(h.config.ChipBlurSize))

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(smoothed, &circles, gocv.HoughGradient,
		h.config.HoughDP, h.config.HoughMinDist, h.config.HoughParam1, h.config.HoughParam2,
		h.config.MinChipRadius, h.config.MaxChipRadius)

	if circles.Empty() {
		return nil
	}

	chips := make([]Chip, 0, circles.Cols())
	for i := 0; i < circles.Cols(); i++ {
		v := circles.GetVecfAt(0, i)
		chips = append(chips, Chip{
			Centroid:   image.Pt(int(math.Round(float64(v[0]))), int(math.Round(float64(v[1])))),
			Radius:     float64(v[2]),
			Color:      cr.Name,
			Confidence: h.config.ChipConfidence,
		})
	}

	return chips
}
