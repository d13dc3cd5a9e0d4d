package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"gocv.io/x/gocv"

	"github.com/ayusman/handscope/internal/capture"
	"github.com/ayusman/handscope/internal/detector"
)

// PreviewHandler serves a single annotated frame as JPEG. Regions, cards
// and chips are drawn over the frame so detector tuning can be checked by
// eye.
type PreviewHandler struct {
	config     detector.Config
	openSource func(path string) capture.Source
	logger     *slog.Logger
}

// NewPreviewHandler creates a new PreviewHandler.
func NewPreviewHandler(cfg detector.Config, open func(path string) capture.Source, logger *slog.Logger) *PreviewHandler {
	if open == nil {
		open = capture.NewFileSource
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PreviewHandler{config: cfg, openSource: open, logger: logger.With("component", "preview")}
}

// ServeHTTP handles GET /api/preview?source=...&frame=N.
func (h *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		http.Error(w, "source is required", http.StatusBadRequest)
		return
	}
	index := 0
	if v := r.URL.Query().Get("frame"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "frame must be a non-negative integer", http.StatusBadRequest)
			return
		}
		index = n
	}

	buf, err := RenderPreview(h.config, h.openSource(source), index)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrPreviewSource) {
			status = http.StatusNotFound
		}
		h.logger.Warn("preview failed", "source", source, "frame", index, "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.Write(buf)
}

// ErrPreviewSource is returned when the preview frame cannot be read.
var ErrPreviewSource = errors.New("preview source unavailable")

// RenderPreview reads frame index from src, runs the heuristic detector on
// it and returns the annotated frame encoded as JPEG.
func RenderPreview(cfg detector.Config, src capture.Source, index int) ([]byte, error) {
	if err := src.Open(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreviewSource, err)
	}
	defer src.Close()

	if index > 0 {
		if err := src.Seek(index); err != nil {
			return nil, fmt.Errorf("%w: seek to frame %d: %v", ErrPreviewSource, index, err)
		}
	}
	frame, err := src.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d: %v", ErrPreviewSource, index, err)
	}
	defer frame.Close()

	det := detector.NewHeuristic(cfg)
	defer det.Close()
	det.SetRegions(frame.Rows(), frame.Cols())

	cards, err := det.DetectCards(frame)
	if err != nil {
		return nil, fmt.Errorf("detect cards: %w", err)
	}
	chips, err := det.DetectChips(frame)
	if err != nil {
		return nil, fmt.Errorf("detect chips: %w", err)
	}

	annotated := detector.Annotate(frame, det.Regions(), cards, chips)
	defer annotated.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, annotated)
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
