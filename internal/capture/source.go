// Package capture provides video frame supply using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// DefaultFPS is used when a container does not report a usable frame rate.
const DefaultFPS = 30

var (
	// ErrSourceNotOpen is returned when trying to read from a source that is not open.
	ErrSourceNotOpen = errors.New("source is not open")
	// ErrEndOfStream is returned by ReadFrame once no more frames are available.
	ErrEndOfStream = errors.New("end of stream")
)

// Frame is a decoded video frame with its position in the stream.
// The Mat is owned by whoever read it from the Source.
type Frame struct {
	Mat       *gocv.Mat
	Index     int
	Timestamp float64
}

// NewFrame builds a Frame whose timestamp is derived from the frame index.
func NewFrame(mat *gocv.Mat, index int, fps float64) Frame {
	ts := 0.0
	if fps > 0 {
		ts = float64(index) / fps
	}
	return Frame{Mat: mat, Index: index, Timestamp: ts}
}

// Source defines the interface for frame suppliers.
type Source interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	// Seek positions the source so the next ReadFrame returns frame index.
	Seek(index int) error
	FPS() float64
	// FrameCount returns the total number of frames, or 0 when unknown.
	FrameCount() int
	Name() string
	IsOpen() bool
}

// fileSource reads frames from a video file or stream URL through gocv.
type fileSource struct {
	path       string
	capture    *gocv.VideoCapture
	mu         sync.Mutex
	running    bool
	fps        float64
	frameCount int
}

// NewFileSource creates a Source for the given file path or stream URL.
func NewFileSource(path string) Source {
	return &fileSource{path: path}
}

// Open opens the underlying container and reads its frame rate and length.
func (s *fileSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(s.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open %s: container could not be opened", s.path)
	}

	s.fps = capture.Get(gocv.VideoCaptureFPS)
	if s.fps <= 0 {
		s.fps = DefaultFPS
	}

	// Live streams report zero or negative counts.
	s.frameCount = int(capture.Get(gocv.VideoCaptureFrameCount))
	if s.frameCount < 0 {
		s.frameCount = 0
	}

	s.capture = capture
	s.running = true

	return nil
}

// Close releases the underlying capture.
func (s *fileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		s.running = false
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	s.running = false

	return err
}

// ReadFrame reads the next frame.
// The caller is responsible for closing the returned Mat.
func (s *fileSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok {
		mat.Close()
		return nil, ErrEndOfStream
	}

	if mat.Empty() {
		mat.Close()
		return nil, ErrEndOfStream
	}

	return &mat, nil
}

// Seek moves the read position to the given frame index.
func (s *fileSource) Seek(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		return ErrSourceNotOpen
	}
	if index < 0 {
		return fmt.Errorf("seek: negative frame index %d", index)
	}

	s.capture.Set(gocv.VideoCapturePosFrames, float64(index))
	return nil
}

// FPS returns the container frame rate.
func (s *fileSource) FPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fps
}

// FrameCount returns the container frame count, or 0 when unknown.
func (s *fileSource) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.frameCount
}

// Name returns the path the source was created with.
func (s *fileSource) Name() string {
	return s.path
}

// IsOpen returns true if the source is currently open.
func (s *fileSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}
