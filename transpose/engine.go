package transpose

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gregoryhbowler/sing-sub000/sequencer"
)

const (
	// NumCells is the fixed sequence length; Active stands in for the lane
	// scheduler's step mask, so there is no separate length here.
	NumCells = 16

	MinTranspose = -24
	MaxTranspose = 24
	MinRepeats   = 1
	MaxRepeats   = 64

	// stepPulseLen is the width of the step and reset pulses.
	stepPulseLen = 5 * time.Millisecond

	// clockThreshold is the rising-edge level for the internal clock
	// detector.
	clockThreshold = 0.5
)

// ClockSource selects which clock advances the engine. Exactly one is
// authoritative; switching never resets the position.
type ClockSource uint8

const (
	ClockInternal ClockSource = iota
	ClockExternal
)

func (c ClockSource) String() string {
	switch c {
	case ClockInternal:
		return "internal"
	case ClockExternal:
		return "external"
	}
	return "unknown"
}

// ParseClockSource maps a name to a ClockSource; ok is false for unknown
// names so callers keep the value they already have.
func ParseClockSource(s string) (ClockSource, bool) {
	switch s {
	case "internal":
		return ClockInternal, true
	case "external":
		return ClockExternal, true
	}
	return ClockInternal, false
}

// Cell is one step of the transpose sequence.
type Cell struct {
	Transpose int // semitones, clamped to [-24, 24]
	Repeats   int // advance events consumed before moving on, [1, 64]
	Active    bool
}

func clampCell(c Cell) Cell {
	if c.Transpose < MinTranspose {
		c.Transpose = MinTranspose
	}
	if c.Transpose > MaxTranspose {
		c.Transpose = MaxTranspose
	}
	if c.Repeats < MinRepeats {
		c.Repeats = MinRepeats
	}
	if c.Repeats > MaxRepeats {
		c.Repeats = MaxRepeats
	}
	return c
}

// Frame is one sample of engine output: channel 0 is the transpose CV
// (semitones / 12), channel 1 the step pulse, channel 2 the reset pulse.
type Frame [3]float32

// Engine is the audio-domain 16-cell transpose sequencer.
//
// The fields after the ring belong to the audio goroutine and are touched
// only inside ProcessBlock. The control side mutates them exclusively
// through the command ring and observes them through the published atomics;
// its own mutex-guarded shadow exists so the UI can read configuration
// without crossing into the audio domain.
type Engine struct {
	ring commandRing

	cells      [NumCells]Cell
	pos        int
	repeat     int
	mode       sequencer.Mode
	dir        sequencer.Direction
	clock      ClockSource
	prev       float32
	stepPulse  int
	resetPulse int

	pulseSamples int
	sampleRate   int
	rng          *rand.Rand
	activeFn     func(int) bool

	posPub  atomic.Int32
	semiPub atomic.Int32

	mu          sync.Mutex
	shadow      [NumCells]Cell
	shadowMode  sequencer.Mode
	shadowClock ClockSource
}

// New returns an engine at the given sample rate with every cell active,
// zero transpose and a single repeat, running forward on the internal
// clock.
func New(sampleRate int) *Engine {
	e := &Engine{
		mode:         sequencer.ModeForward,
		dir:          sequencer.DirForward,
		sampleRate:   sampleRate,
		pulseSamples: int(time.Duration(sampleRate) * stepPulseLen / time.Second),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		prev:         clockThreshold,
	}
	for i := range e.cells {
		e.cells[i] = Cell{Transpose: 0, Repeats: 1, Active: true}
	}
	e.shadow = e.cells
	e.shadowMode = e.mode
	e.shadowClock = e.clock
	e.activeFn = func(i int) bool { return e.cells[i].Active }
	e.publish()
	return e
}

// SampleRate returns the rate the pulse widths were derived from.
func (e *Engine) SampleRate() int { return e.sampleRate }

// SetCell clamps and queues one cell update. It reports false if the ring
// is full and nothing was queued.
func (e *Engine) SetCell(index int, c Cell) bool {
	if index < 0 || index >= NumCells {
		return false
	}
	c = clampCell(c)
	if !e.ring.push(command{kind: cmdSetCell, index: index, cell: c}) {
		return false
	}
	e.mu.Lock()
	e.shadow[index] = c
	e.mu.Unlock()
	return true
}

// SetMode queues a playback mode change. Unknown modes are rejected and the
// prior mode kept.
func (e *Engine) SetMode(m sequencer.Mode) bool {
	if !m.Valid() {
		return false
	}
	if !e.ring.push(command{kind: cmdSetMode, mode: m}) {
		return false
	}
	e.mu.Lock()
	e.shadowMode = m
	e.mu.Unlock()
	return true
}

// SetClockSource queues a clock source change. Position is preserved across
// the switch.
func (e *Engine) SetClockSource(c ClockSource) bool {
	if c != ClockInternal && c != ClockExternal {
		return false
	}
	if !e.ring.push(command{kind: cmdSetClock, clock: c}) {
		return false
	}
	e.mu.Lock()
	e.shadowClock = c
	e.mu.Unlock()
	return true
}

// Reset queues an explicit return to cell zero; the reset pulse fires
// whether or not any wrap rule would have.
func (e *Engine) Reset() bool {
	return e.ring.push(command{kind: cmdReset})
}

// TriggerExternalAdvance queues one discrete advance event. Events apply in
// arrival order at the next block boundary and are never merged; false
// means the ring was full and the event was not queued.
func (e *Engine) TriggerExternalAdvance() bool {
	return e.ring.push(command{kind: cmdAdvance})
}

// Cells returns the control-side view of the sequence.
func (e *Engine) Cells() [NumCells]Cell {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shadow
}

// Mode returns the control-side view of the playback mode.
func (e *Engine) Mode() sequencer.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shadowMode
}

// Clock returns the control-side view of the clock source.
func (e *Engine) Clock() ClockSource {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shadowClock
}

// Position returns the cell the audio side most recently landed on.
func (e *Engine) Position() int {
	return int(e.posPub.Load())
}

// CurrentTranspose returns the semitone offset the audio side is holding;
// an inactive cell reads as zero.
func (e *Engine) CurrentTranspose() int {
	return int(e.semiPub.Load())
}

// ProcessBlock runs the engine for one block. in carries the continuous
// clock signal, ignored in external mode; out receives one frame per input
// sample. Pending commands apply before the first sample, so a block never
// sees a partial update. The method does not allocate, lock, or panic; it
// is safe to call from a hard-real-time audio callback.
func (e *Engine) ProcessBlock(in []float32, out []Frame) {
	e.drainCommands()
	n := len(in)
	if len(out) < n {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = e.tickSample(in[i])
	}
}

// drainCommands applies everything queued since the last block, in arrival
// order, bounded by the ring capacity.
func (e *Engine) drainCommands() {
	for i := 0; i < ringSize; i++ {
		c, ok := e.ring.pop()
		if !ok {
			return
		}
		switch c.kind {
		case cmdAdvance:
			// Discrete advances only count when the external clock is
			// authoritative; otherwise the internal detector would be
			// double-clocked.
			if e.clock == ClockExternal {
				e.advanceSequence()
			}
		case cmdReset:
			e.pos = 0
			e.repeat = 0
			e.resetPulse = e.pulseSamples
			e.publish()
		case cmdSetCell:
			e.cells[c.index] = c.cell
			e.publish()
		case cmdSetMode:
			e.mode = c.mode
		case cmdSetClock:
			if c.clock == ClockInternal && e.clock != ClockInternal {
				// Prime the detector at the threshold so a stale low
				// sample cannot fire a spurious advance; the signal must
				// dip below the threshold before the next crossing.
				e.prev = clockThreshold
			}
			e.clock = c.clock
		}
	}
}

func (e *Engine) tickSample(in float32) Frame {
	if e.clock == ClockInternal {
		if e.prev < clockThreshold && in >= clockThreshold {
			e.advanceSequence()
		}
		e.prev = in
	}
	var f Frame
	if c := e.cells[e.pos]; c.Active {
		f[0] = float32(c.Transpose) / 12.0
	}
	if e.stepPulse > 0 {
		f[1] = 1
		e.stepPulse--
	}
	if e.resetPulse > 0 {
		f[2] = 1
		e.resetPulse--
	}
	return f
}

// advanceSequence consumes one advance event. An active cell holds until
// its repeat budget is spent; an inactive cell is a pass-through beat and
// consumes nothing.
func (e *Engine) advanceSequence() {
	if c := e.cells[e.pos]; c.Active {
		e.repeat++
		if e.repeat < c.Repeats {
			return
		}
		e.repeat = 0
	}
	e.advanceStep()
}

// advanceStep moves the position through the shared traversal modes and
// arms the step pulse. The reset pulse has a wrap rule for the directional
// modes only; ping-pong and random define no wrap here.
func (e *Engine) advanceStep() {
	prev := e.pos
	e.pos = sequencer.Advance(e.pos, NumCells, e.mode, &e.dir, e.rng, e.activeFn)
	e.repeat = 0
	e.stepPulse = e.pulseSamples
	switch e.mode {
	case sequencer.ModeForward:
		if prev > e.pos {
			e.resetPulse = e.pulseSamples
		}
	case sequencer.ModeReverse:
		if prev < e.pos {
			e.resetPulse = e.pulseSamples
		}
	}
	e.publish()
}

func (e *Engine) publish() {
	e.posPub.Store(int32(e.pos))
	semi := 0
	if c := e.cells[e.pos]; c.Active {
		semi = c.Transpose
	}
	e.semiPub.Store(int32(semi))
}
