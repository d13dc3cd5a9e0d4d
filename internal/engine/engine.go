// Package engine runs the hand boundary pipeline over a frame source:
// motion tracking, object detection, the boundary state machine and final
// validation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/handscope/internal/boundary"
	"github.com/ayusman/handscope/internal/capture"
	"github.com/ayusman/handscope/internal/detector"
	"github.com/ayusman/handscope/internal/motion"
	"github.com/ayusman/handscope/internal/validator"
)

var (
	// ErrSourceUnavailable is returned when the frame source cannot be opened.
	ErrSourceUnavailable = errors.New("video source unavailable")
	// ErrNotStarted is returned by Process before Start.
	ErrNotStarted = errors.New("engine not started")
	// ErrEmptyFrame is returned by Process for a frame without pixels.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrOutOfOrder is returned by Process for a frame index that does not
	// increase.
	ErrOutOfOrder = errors.New("frame out of order")
)

// MotionTracker is the motion analysis the engine needs.
type MotionTracker interface {
	Update(frame *gocv.Mat, timestamp float64) motion.Sample
	AnalyzePattern(p motion.Pattern) float64
	Close()
}

// TrackerFactory builds a MotionTracker for one run.
type TrackerFactory func(cfg motion.Config, sampleRate float64) MotionTracker

// Progress is reported about once per second of source video.
type Progress struct {
	RunID        uuid.UUID `json:"run_id"`
	CurrentFrame int       `json:"current_frame"`
	// TotalFrames is 0 when the source length is unknown.
	TotalFrames int     `json:"total_frames"`
	CurrentTime float64 `json:"current_time"`
	HandsSoFar  int     `json:"hands_so_far"`
}

// Config groups the configuration of every pipeline stage.
type Config struct {
	Motion    motion.Config
	Detector  detector.Config
	Boundary  boundary.Config
	Validator validator.Config
	// FrameStride processes every n-th frame.
	FrameStride int
}

// DefaultConfig returns the default configuration of every stage.
func DefaultConfig() Config {
	return Config{
		Motion:      motion.DefaultConfig(),
		Detector:    detector.DefaultConfig(),
		Boundary:    boundary.DefaultConfig(),
		Validator:   validator.DefaultConfig(),
		FrameStride: 1,
	}
}

// Result is the outcome of one analysis run.
type Result struct {
	RunID           uuid.UUID                 `json:"run_id"`
	Source          string                    `json:"source"`
	FPS             float64                   `json:"fps"`
	TotalFrames     int                       `json:"total_frames"`
	FramesProcessed int                       `json:"frames_processed"`
	Duration        float64                   `json:"duration"`
	Elapsed         time.Duration             `json:"elapsed"`
	Events          []boundary.DetectionEvent `json:"events"`
	RawHands        []boundary.HandBoundary   `json:"raw_hands"`
	Hands           []boundary.HandBoundary   `json:"hands"`
	Dropped         *boundary.DetectionEvent  `json:"dropped,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDetector replaces the heuristic detector. The engine does not close
// a detector supplied this way.
func WithDetector(d detector.Detector) Option {
	return func(e *Engine) {
		e.detector = d
	}
}

// WithTrackerFactory replaces the motion tracker constructor.
func WithTrackerFactory(f TrackerFactory) Option {
	return func(e *Engine) {
		e.newTracker = f
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn func(Progress)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithRunID fixes the run id instead of generating one per run.
func WithRunID(id uuid.UUID) Option {
	return func(e *Engine) {
		e.fixedID = id
	}
}

// Engine analyses one source at a time. It is not safe for concurrent use;
// analyse videos in parallel with separate engines.
type Engine struct {
	cfg        Config
	logger     *slog.Logger
	detector   detector.Detector
	ownsDet    bool
	newTracker TrackerFactory
	progress   func(Progress)
	fixedID    uuid.UUID

	// per-run state
	runID      uuid.UUID
	tracker    MotionTracker
	machine    *boundary.StateMachine
	validator  *validator.Validator
	source     string
	fps        float64
	total      int
	regionsSet bool
	lastIndex  int
	lastTime   float64
	processed  int
	startedAt  time.Time
}

// New creates an Engine.
func New(cfg Config, opts ...Option) *Engine {
	if cfg.FrameStride < 1 {
		cfg.FrameStride = 1
	}

	e := &Engine{
		cfg:    cfg,
		logger: slog.Default(),
		newTracker: func(cfg motion.Config, sampleRate float64) MotionTracker {
			return motion.NewTracker(cfg, sampleRate)
		},
		validator: validator.New(cfg.Validator),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.detector == nil {
		e.detector = detector.NewHeuristic(cfg.Detector)
		e.ownsDet = true
	}
	e.logger = e.logger.With("component", "engine")

	return e
}

// Start resets all per-run state for a source at fps with total frames
// (0 when unknown).
func (e *Engine) Start(fps float64, total int) {
	if e.tracker != nil {
		e.tracker.Close()
	}
	if fps <= 0 {
		fps = capture.DefaultFPS
	}

	e.fps = fps
	e.total = total
	e.tracker = e.newTracker(e.cfg.Motion, fps/float64(e.cfg.FrameStride))
	e.machine = boundary.NewStateMachine(e.cfg.Boundary)
	e.regionsSet = false
	e.lastIndex = -1
	e.lastTime = 0
	e.processed = 0
	e.startedAt = time.Now()
	e.runID = e.fixedID
	if e.runID == uuid.Nil {
		e.runID = uuid.New()
	}
}

// Process runs one frame through the pipeline and returns the event it
// triggered, if any. Detector failures are logged and count as no
// detections.
func (e *Engine) Process(frame capture.Frame) (*boundary.DetectionEvent, error) {
	if e.machine == nil {
		return nil, ErrNotStarted
	}
	if frame.Mat == nil || frame.Mat.Empty() {
		return nil, fmt.Errorf("frame %d: %w", frame.Index, ErrEmptyFrame)
	}
	if frame.Index <= e.lastIndex {
		return nil, fmt.Errorf("frame %d after %d: %w", frame.Index, e.lastIndex, ErrOutOfOrder)
	}

	if !e.regionsSet {
		e.detector.SetRegions(frame.Mat.Rows(), frame.Mat.Cols())
		e.regionsSet = true
	}

	sample := e.tracker.Update(frame.Mat, frame.Timestamp)
	obs := boundary.Observation{
		FrameNumber: frame.Index,
		Timestamp:   frame.Timestamp,
		MotionArea:  sample.TotalArea,
	}

	switch e.machine.State() {
	case boundary.Idle:
		obs.DealingScore = e.tracker.AnalyzePattern(motion.PatternDealing)
		obs.CardCount = len(e.detectCards(frame))
	case boundary.HandOpen:
		if e.machine.EndDue(frame.Timestamp) {
			obs.CollectionScore = e.tracker.AnalyzePattern(motion.PatternCollection)
			if chips, ok := e.detectChips(frame); ok {
				obs.ChipsObserved = true
				obs.PotChips = detector.ChipsInRegion(chips, e.detector.Regions().Pot)
			}
		}
	}

	ev, hand := e.machine.Step(obs)
	e.lastIndex = frame.Index
	e.lastTime = frame.Timestamp
	e.processed++

	if ev != nil {
		e.logger.Info("boundary detected",
			"event", ev.Type,
			"hand_id", ev.HandID,
			"frame", ev.FrameNumber,
			"time", ev.Timestamp,
			"confidence", ev.Confidence)
	}
	if hand != nil {
		e.logger.Debug("hand closed", "hand_id", hand.HandID, "duration", hand.Duration)
	}

	return ev, nil
}

func (e *Engine) detectCards(frame capture.Frame) (cards []detector.Card) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("card detector panicked", "frame", frame.Index, "panic", r)
			cards = nil
		}
	}()

	cards, err := e.detector.DetectCards(frame.Mat)
	if err != nil {
		e.logger.Warn("card detection failed", "frame", frame.Index, "error", err)
		return nil
	}
	return cards
}

func (e *Engine) detectChips(frame capture.Frame) (chips []detector.Chip, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("chip detector panicked", "frame", frame.Index, "panic", r)
			chips, ok = nil, false
		}
	}()

	chips, err := e.detector.DetectChips(frame.Mat)
	if err != nil {
		e.logger.Warn("chip detection failed", "frame", frame.Index, "error", err)
		return nil, false
	}
	return chips, true
}

// Snapshot returns the state machine's current state.
func (e *Engine) Snapshot() boundary.EngineState {
	if e.machine == nil {
		return boundary.EngineState{}
	}
	return e.machine.Snapshot()
}

// Finish ends the run: any open hand is dropped and the completed hands
// are validated.
func (e *Engine) Finish() *Result {
	res := &Result{
		RunID:           e.runID,
		Source:          e.source,
		FPS:             e.fps,
		TotalFrames:     e.total,
		FramesProcessed: e.processed,
		Duration:        e.lastTime,
		Elapsed:         time.Since(e.startedAt),
	}
	if e.machine == nil {
		return res
	}

	raw, dropped := e.machine.Finish()
	if dropped != nil {
		e.logger.Info("dropping unfinished hand",
			"hand_id", dropped.HandID,
			"start_frame", dropped.FrameNumber,
			"start_time", dropped.Timestamp)
	}

	res.Events = e.machine.Events()
	res.RawHands = raw
	res.Hands = e.validator.Validate(raw)
	res.Dropped = dropped

	e.logger.Info("run finished",
		"run_id", e.runID,
		"frames", e.processed,
		"candidates", len(raw),
		"hands", len(res.Hands))

	return res
}

// Analyze opens src and runs every frame through the pipeline. Only an
// unopenable source is an error; a read failure mid-stream ends the run
// normally. On context cancellation the partial result is returned with
// the context error.
func (e *Engine) Analyze(ctx context.Context, src capture.Source) (*Result, error) {
	if err := src.Open(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, src.Name(), err)
	}
	defer src.Close()

	e.Start(src.FPS(), src.FrameCount())
	e.source = src.Name()
	e.logger.Info("analysis started",
		"run_id", e.runID,
		"source", e.source,
		"fps", e.fps,
		"total_frames", e.total,
		"stride", e.cfg.FrameStride)

	interval := max(int(math.Round(e.fps)), 1)
	last := -1

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return e.Finish(), err
		}

		mat, err := src.ReadFrame()
		if err != nil {
			if !errors.Is(err, capture.ErrEndOfStream) {
				e.logger.Warn("frame read failed, ending stream", "frame", index, "error", err)
			}
			break
		}

		if index%e.cfg.FrameStride == 0 {
			if _, err := e.Process(capture.NewFrame(mat, index, e.fps)); err != nil {
				e.logger.Warn("frame skipped", "frame", index, "error", err)
			}
		}
		mat.Close()
		last = index

		if index%interval == 0 {
			e.reportProgress(index)
		}
	}

	// Always report the final frame.
	if last >= 0 && last%interval != 0 {
		e.reportProgress(last)
	}

	return e.Finish(), nil
}

func (e *Engine) reportProgress(index int) {
	if e.progress == nil {
		return
	}
	e.progress(Progress{
		RunID:        e.runID,
		CurrentFrame: index,
		TotalFrames:  e.total,
		CurrentTime:  float64(index) / e.fps,
		HandsSoFar:   len(e.machine.Hands()),
	})
}

// Close releases the tracker and, if the engine created it, the detector.
func (e *Engine) Close() error {
	if e.tracker != nil {
		e.tracker.Close()
		e.tracker = nil
	}
	if e.ownsDet {
		return e.detector.Close()
	}
	return nil
}
