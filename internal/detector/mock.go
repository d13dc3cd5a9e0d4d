package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results. Scripted results are
// consumed one per call; once exhausted the static results are returned.
type MockDetector struct {
	cards       []Card
	chips       []Chip
	cardScript  [][]Card
	chipScript  [][]Chip
	err         error
	panicOnCall bool
	layout      Layout
	regions     Regions
	cardCalls   int
	chipCalls   int
	mu          sync.Mutex
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{layout: DefaultLayout()}
}

// SetCards sets the cards that will be returned by DetectCards.
func (m *MockDetector) SetCards(cards []Card) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards = cards
}

// SetChips sets the chips that will be returned by DetectChips.
func (m *MockDetector) SetChips(chips []Chip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chips = chips
}

// ScriptCards queues per-call card results.
func (m *MockDetector) ScriptCards(script ...[]Card) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cardScript = append(m.cardScript, script...)
}

// ScriptChips queues per-call chip results.
func (m *MockDetector) ScriptChips(script ...[]Chip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chipScript = append(m.chipScript, script...)
}

// SetError sets the error that will be returned by both detection calls.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetPanic makes both detection calls panic, simulating a native failure.
func (m *MockDetector) SetPanic(p bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicOnCall = p
}

// DetectCards returns the next scripted cards, the static cards, or the error.
func (m *MockDetector) DetectCards(frame *gocv.Mat) ([]Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cardCalls++
	if m.panicOnCall {
		panic("mock detector failure")
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.cardScript) > 0 {
		next := m.cardScript[0]
		m.cardScript = m.cardScript[1:]
		return next, nil
	}
	return m.cards, nil
}

// DetectChips returns the next scripted chips, the static chips, or the error.
func (m *MockDetector) DetectChips(frame *gocv.Mat) ([]Chip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chipCalls++
	if m.panicOnCall {
		panic("mock detector failure")
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.chipScript) > 0 {
		next := m.chipScript[0]
		m.chipScript = m.chipScript[1:]
		return next, nil
	}
	return m.chips, nil
}

// SetRegions computes regions from the default layout.
func (m *MockDetector) SetRegions(height, width int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions = ComputeRegions(m.layout, height, width)
}

// Regions returns the regions from the last SetRegions call.
func (m *MockDetector) Regions() Regions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regions
}

// Calls returns how many times each detection method was invoked.
func (m *MockDetector) Calls() (cards, chips int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cardCalls, m.chipCalls
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}
