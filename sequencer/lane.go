package sequencer

// LaneID indexes the six lanes.
type LaneID int

const (
	LaneNote LaneID = iota
	LaneGate
	LaneMod0
	LaneMod1
	LaneMod2
	LaneMod3
	NumLanes
)

var laneNames = [NumLanes]string{"note", "gate", "mod0", "mod1", "mod2", "mod3"}

func (id LaneID) String() string {
	if id < 0 || id >= NumLanes {
		return "?"
	}
	return laneNames[id]
}

// Valid reports whether id names one of the six lanes.
func (id LaneID) Valid() bool {
	return id >= 0 && id < NumLanes
}

// Lane is one independently clocked track. The engine owns all lanes;
// everything here is mutated either inside tick processing or under the
// engine's lock by the boundary-validated setters, never from two threads
// at once.
//
// values are indexed by physical step. The note lane stores semitone
// offsets, the gate lane stores 0/1, the mod lanes store 0..1.
type Lane struct {
	values   [NumSteps]float32
	length   int
	division Division
	mode     Mode
	position int
	divCount int
	dir      Direction
}

func newLane() *Lane {
	l := &Lane{
		length:   NumSteps,
		division: DivQuarter,
		mode:     ModeForward,
	}
	l.rewind()
	return l
}

// rewind puts the lane back at the top: position zero, direction forward,
// and the division counter primed so the very first base tick processes a
// step.
func (l *Lane) rewind() {
	l.position = 0
	l.dir = DirForward
	l.divCount = int(l.division) - 1
}
