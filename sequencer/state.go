package sequencer

// LaneState is one lane's configuration plus its live position, which is
// included for display and ignored on restore.
type LaneState struct {
	Values   [NumSteps]float32 `json:"values"`
	Length   int               `json:"length"`
	Division Division          `json:"division"`
	Mode     string            `json:"mode"`
	Position int               `json:"position"`
}

// State is a by-value snapshot of the whole engine, shaped for an external
// storage collaborator to serialize however it likes. This layer only
// defines the snapshot pair, not where snapshots go.
type State struct {
	Lanes       [NumLanes]LaneState `json:"lanes"`
	StepEnabled [NumSteps]bool      `json:"stepEnabled"`
	SnakeIndex  int                 `json:"snakeIndex"`
	Tempo       float64             `json:"tempo"`
	Running     bool                `json:"running"`
}

// State returns the engine's full current state by value.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	var s State
	for i, l := range e.lanes {
		s.Lanes[i] = LaneState{
			Values:   l.values,
			Length:   l.length,
			Division: l.division,
			Mode:     l.mode.String(),
			Position: l.position,
		}
	}
	s.StepEnabled = e.stepEnabled
	s.SnakeIndex = e.snakeIndex
	s.Tempo = e.tempo
	s.Running = e.running
	return s
}

// SetState restores a snapshot with the same clamping and rejection rules
// as the individual setters: lengths clamp, invalid divisions and unknown
// mode names leave the lane's prior value in place, tempo clamps. Lanes are
// rewound to the top; restoring never fires a cycle event and never touches
// the transport.
func (e *Engine) SetState(s State) {
	e.mu.Lock()
	for i, l := range e.lanes {
		ls := s.Lanes[i]
		l.values = ls.Values
		if ls.Length < 1 {
			ls.Length = 1
		}
		if ls.Length > NumSteps {
			ls.Length = NumSteps
		}
		l.length = ls.Length
		if ls.Division.Valid() {
			l.division = ls.Division
		}
		if m, ok := ParseMode(ls.Mode); ok {
			l.mode = m
		}
		l.rewind()
	}
	e.stepEnabled = s.StepEnabled
	e.snakeIndex = ClampPatternIndex(s.SnakeIndex)
	e.mu.Unlock()

	e.SetTempo(s.Tempo)
}
