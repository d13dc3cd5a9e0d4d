package boundary

// StateMachine tracks at most one open hand across a run. Observations must
// be supplied in increasing timestamp order. It is not safe for concurrent use.
type StateMachine struct {
	cfg     Config
	st      EngineState
	history int

	events []DetectionEvent
	hands  []HandBoundary
}

// NewStateMachine creates a StateMachine in the Idle state.
func NewStateMachine(cfg Config) *StateMachine {
	return &StateMachine{
		cfg:     cfg,
		history: max(cfg.CardHistorySize, cfg.CardHistoryMin, cfg.CardPriorWindow+1),
	}
}

// State returns the current phase.
func (m *StateMachine) State() State {
	if m.st.OpenHand != nil {
		return HandOpen
	}
	return Idle
}

// EndDue reports whether an observation at ts would be evaluated for a
// hand end.
func (m *StateMachine) EndDue(ts float64) bool {
	return m.st.OpenHand != nil && ts-m.st.OpenHand.Timestamp > m.cfg.MinHandDuration
}

// Step advances the machine by one observation. It returns the event
// emitted on this step, if any, and the hand completed by a hand-end event.
func (m *StateMachine) Step(obs Observation) (*DetectionEvent, *HandBoundary) {
	if m.st.OpenHand == nil {
		return m.evaluateStart(obs), nil
	}
	if !m.EndDue(obs.Timestamp) {
		return nil, nil
	}
	return m.evaluateEnd(obs)
}

// pushCardCount appends c to the card history, keeping the newest entries.
func (m *StateMachine) pushCardCount(c int) {
	m.st.CardCounts = append(m.st.CardCounts, c)
	if over := len(m.st.CardCounts) - m.history; over > 0 {
		m.st.CardCounts = append(m.st.CardCounts[:0], m.st.CardCounts[over:]...)
	}
}

func (m *StateMachine) evaluateStart(obs Observation) *DetectionEvent {
	var s StartSignals

	m.pushCardCount(obs.CardCount)
	if n := len(m.st.CardCounts); n >= m.cfg.CardHistoryMin && n > 1 {
		prior := m.st.CardCounts[n-1-min(m.cfg.CardPriorWindow, n-1) : n-1]
		var sum float64
		for _, c := range prior {
			sum += float64(c)
		}
		if float64(obs.CardCount) > sum/float64(len(prior))+m.cfg.NewCardsDelta {
			s.NewCards.award(m.cfg.NewCardsPoints)
		}
	}

	m.st.DealingStreak = streak(m.st.DealingStreak, obs.DealingScore > m.cfg.DealingThreshold)
	if m.st.DealingStreak >= m.cfg.DealingStreak {
		s.DealingMotion.award(obs.DealingScore * m.cfg.DealingPoints)
	}

	gap := m.cfg.FirstHandGap
	if m.st.HasLastHand {
		gap = obs.Timestamp - m.st.LastHandEnd
	}
	switch {
	case gap >= m.cfg.GapMin && gap <= m.cfg.GapMax:
		s.TimeSinceLastHand.award(m.cfg.GapPoints)
	case gap >= m.cfg.ShortGapMin:
		s.TimeSinceLastHand.award(m.cfg.ShortGapPoints)
	}

	if obs.MotionArea > m.cfg.ActivityArea {
		s.MotionActivity.award(m.cfg.ActivityPoints)
	}

	total := s.Total()
	if total < m.cfg.StartThreshold {
		return nil
	}

	m.st.HandIDCounter++
	ev := DetectionEvent{
		Type:        EventHandStart,
		HandID:      m.st.HandIDCounter,
		FrameNumber: obs.FrameNumber,
		Timestamp:   obs.Timestamp,
		Confidence:  total,
		Start:       &s,
	}
	m.st.OpenHand = &ev
	m.st.DealingStreak = 0
	m.st.CollectionStreak = 0
	m.events = append(m.events, ev)
	return &ev
}

func (m *StateMachine) evaluateEnd(obs Observation) (*DetectionEvent, *HandBoundary) {
	var s EndSignals

	m.st.CollectionStreak = streak(m.st.CollectionStreak, obs.CollectionScore > m.cfg.CollectionThreshold)
	if m.st.CollectionStreak >= m.cfg.CollectionStreak {
		s.PotCollection.award(obs.CollectionScore * m.cfg.CollectionPoints)
	}

	if obs.ChipsObserved && obs.PotChips == 0 {
		s.PotCleared.award(m.cfg.PotClearedPoints)
	}

	if obs.MotionArea < m.cfg.ActivityDropArea {
		s.ActivityDrop.award(m.cfg.ActivityDropPoints)
	}

	total := s.Total()
	if total < m.cfg.EndThreshold {
		return nil, nil
	}

	start := m.st.OpenHand
	ev := DetectionEvent{
		Type:        EventHandEnd,
		HandID:      start.HandID,
		FrameNumber: obs.FrameNumber,
		Timestamp:   obs.Timestamp,
		Confidence:  total,
		End:         &s,
	}
	hand := HandBoundary{
		HandID:            start.HandID,
		StartFrame:        start.FrameNumber,
		EndFrame:          obs.FrameNumber,
		StartTime:         start.Timestamp,
		EndTime:           obs.Timestamp,
		Duration:          obs.Timestamp - start.Timestamp,
		StartConfidence:   start.Confidence,
		EndConfidence:     total,
		OverallConfidence: (start.Confidence + total) / 2,
		StartIndicators:   *start.Start,
		EndIndicators:     s,
	}

	m.st.OpenHand = nil
	m.st.DealingStreak = 0
	m.st.CollectionStreak = 0
	m.st.LastHandEnd = obs.Timestamp
	m.st.HasLastHand = true
	m.events = append(m.events, ev)
	m.hands = append(m.hands, hand)
	return &ev, &hand
}

// streak increments on pass and decrements otherwise, never below zero.
func streak(n int, pass bool) int {
	if pass {
		return n + 1
	}
	return max(n-1, 0)
}

// Events returns a copy of every event emitted so far.
func (m *StateMachine) Events() []DetectionEvent {
	return append([]DetectionEvent(nil), m.events...)
}

// Hands returns a copy of every completed hand so far.
func (m *StateMachine) Hands() []HandBoundary {
	return append([]HandBoundary(nil), m.hands...)
}

// Snapshot returns a copy of the current state.
func (m *StateMachine) Snapshot() EngineState {
	st := m.st
	st.CardCounts = append([]int(nil), m.st.CardCounts...)
	if m.st.OpenHand != nil {
		open := *m.st.OpenHand
		st.OpenHand = &open
	}
	return st
}

// Finish ends the run. A hand still open is discarded, not closed, and
// returned as dropped so the caller can report it.
func (m *StateMachine) Finish() (hands []HandBoundary, dropped *DetectionEvent) {
	dropped = m.st.OpenHand
	m.st.OpenHand = nil
	return m.Hands(), dropped
}
