package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back pre-built frames for testing.
// When total exceeds the number of frames, frames are cycled.
type MockSource struct {
	frames  []*gocv.Mat
	fps     float64
	total   int
	index   int
	failAt  int
	openErr error
	mu      sync.Mutex
	running bool
}

// NewMockSource creates a MockSource that yields total frames at fps.
func NewMockSource(frames []*gocv.Mat, fps float64, total int) *MockSource {
	return &MockSource{
		frames: frames,
		fps:    fps,
		total:  total,
		failAt: -1,
	}
}

// SetOpenError makes Open fail with err.
func (s *MockSource) SetOpenError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

// SetFailAt makes ReadFrame fail with a read error at the given frame index.
func (s *MockSource) SetFailAt(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt = index
}

func (s *MockSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.running = true
	s.index = 0
	return nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *MockSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrSourceNotOpen
	}

	if s.failAt >= 0 && s.index == s.failAt {
		return nil, fmt.Errorf("read frame %d: simulated decode failure", s.index)
	}

	if len(s.frames) == 0 || s.index >= s.total {
		return nil, ErrEndOfStream
	}

	// Clone the frame so the original isn't modified
	frame := s.frames[s.index%len(s.frames)].Clone()
	s.index++

	return &frame, nil
}

func (s *MockSource) Seek(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 {
		return fmt.Errorf("seek: negative frame index %d", index)
	}
	s.index = index
	return nil
}

func (s *MockSource) FPS() float64    { return s.fps }
func (s *MockSource) FrameCount() int { return s.total }
func (s *MockSource) Name() string    { return "mock" }

func (s *MockSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
