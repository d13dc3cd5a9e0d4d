// Package boundary implements the hand boundary state machine. It fuses
// per-frame motion and object signals into weighted confidence scores and
// emits hand-start and hand-end events.
package boundary

// State is the state machine's phase.
type State int

const (
	// Idle means no hand is open.
	Idle State = iota
	// HandOpen means a hand-start event is waiting for its end.
	HandOpen
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case HandOpen:
		return "hand_open"
	default:
		return "unknown"
	}
}

// EventType distinguishes hand-start from hand-end events.
type EventType string

const (
	// EventHandStart marks the first frame of a hand.
	EventHandStart EventType = "hand_start"
	// EventHandEnd marks the last frame of a hand.
	EventHandEnd EventType = "hand_end"
)

// Signal is one named contribution to a confidence score.
type Signal struct {
	Triggered bool    `json:"triggered"`
	Points    float64 `json:"points"`
}

func (s *Signal) award(points float64) {
	s.Triggered = true
	s.Points = points
}

// StartSignals is the score breakdown of a hand-start evaluation.
type StartSignals struct {
	NewCards          Signal `json:"new_cards"`
	DealingMotion     Signal `json:"dealing_motion"`
	TimeSinceLastHand Signal `json:"time_since_last_hand"`
	MotionActivity    Signal `json:"motion_activity"`
}

// Total returns the summed points of all start signals.
func (s StartSignals) Total() float64 {
	return s.NewCards.Points + s.DealingMotion.Points + s.TimeSinceLastHand.Points + s.MotionActivity.Points
}

// EndSignals is the score breakdown of a hand-end evaluation.
type EndSignals struct {
	PotCollection Signal `json:"pot_collection"`
	PotCleared    Signal `json:"pot_cleared"`
	ActivityDrop  Signal `json:"activity_drop"`
}

// Total returns the summed points of all end signals.
func (s EndSignals) Total() float64 {
	return s.PotCollection.Points + s.PotCleared.Points + s.ActivityDrop.Points
}

// DetectionEvent is emitted when a start or end threshold is crossed.
// Exactly one of Start and End is set, matching Type.
type DetectionEvent struct {
	Type        EventType     `json:"event_type"`
	HandID      int           `json:"hand_id"`
	FrameNumber int           `json:"frame_number"`
	Timestamp   float64       `json:"timestamp"`
	Confidence  float64       `json:"confidence"`
	Start       *StartSignals `json:"start,omitempty"`
	End         *EndSignals   `json:"end,omitempty"`
}

// HandBoundary is a completed hand interval.
type HandBoundary struct {
	HandID            int          `json:"hand_id"`
	StartFrame        int          `json:"start_frame"`
	EndFrame          int          `json:"end_frame"`
	StartTime         float64      `json:"start_time"`
	EndTime           float64      `json:"end_time"`
	Duration          float64      `json:"duration"`
	StartConfidence   float64      `json:"start_confidence"`
	EndConfidence     float64      `json:"end_confidence"`
	OverallConfidence float64      `json:"overall_confidence"`
	StartIndicators   StartSignals `json:"start_indicators"`
	EndIndicators     EndSignals   `json:"end_indicators"`
}

// Overlaps reports whether h starts before other ends and ends after
// other starts.
func (h HandBoundary) Overlaps(other HandBoundary) bool {
	return h.StartTime < other.EndTime && other.StartTime < h.EndTime
}

// Observation is everything the state machine sees of one sampled frame.
type Observation struct {
	FrameNumber     int
	Timestamp       float64
	CardCount       int
	DealingScore    float64
	CollectionScore float64
	MotionArea      float64
	// PotChips is only meaningful when ChipsObserved is set.
	PotChips      int
	ChipsObserved bool
}

// EngineState is the per-run mutable state of the state machine. The
// machine steps over it directly; a hand is open exactly when OpenHand is set.
type EngineState struct {
	OpenHand         *DetectionEvent
	HandIDCounter    int
	DealingStreak    int
	CollectionStreak int
	// CardCounts holds the most recent idle card counts, oldest first.
	CardCounts  []int
	LastHandEnd float64
	HasLastHand bool
}

// Config holds every threshold, window and point value of the state machine.
type Config struct {
	StartThreshold  float64
	EndThreshold    float64
	MinHandDuration float64

	NewCardsPoints   float64
	NewCardsDelta    float64
	CardHistorySize  int
	CardHistoryMin   int
	CardPriorWindow  int
	DealingPoints    float64
	DealingThreshold float64
	DealingStreak    int

	GapPoints      float64
	GapMin         float64
	GapMax         float64
	ShortGapPoints float64
	ShortGapMin    float64
	FirstHandGap   float64

	ActivityPoints float64
	ActivityArea   float64

	CollectionPoints    float64
	CollectionThreshold float64
	CollectionStreak    int
	PotClearedPoints    float64
	ActivityDropPoints  float64
	ActivityDropArea    float64
}

// DefaultConfig returns the standard scoring tables.
func DefaultConfig() Config {
	return Config{
		StartThreshold:  75,
		EndThreshold:    80,
		MinHandDuration: 30,

		NewCardsPoints:   35,
		NewCardsDelta:    2,
		CardHistorySize:  10,
		CardHistoryMin:   5,
		CardPriorWindow:  4,
		DealingPoints:    40,
		DealingThreshold: 0.6,
		DealingStreak:    3,

		GapPoints:      15,
		GapMin:         30,
		GapMax:         120,
		ShortGapPoints: 8,
		ShortGapMin:    20,
		FirstHandGap:   60,

		ActivityPoints: 10,
		ActivityArea:   2000,

		CollectionPoints:    50,
		CollectionThreshold: 0.7,
		CollectionStreak:    2,
		PotClearedPoints:    30,
		ActivityDropPoints:  20,
		ActivityDropArea:    500,
	}
}
