package sequencer

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gregoryhbowler/sing-sub000/debug"
)

const (
	// lookahead is how far into the future each wake-up dispatches ticks.
	// Correctness only needs wake-ups to land more often than this.
	lookahead = 100 * time.Millisecond

	// wakeInterval is the clock goroutine's ticker period.
	wakeInterval = 25 * time.Millisecond

	// gatePulseWidth is the fraction of a gate step that stays high.
	gatePulseWidth = 0.9

	MinTempo     = 10.0
	MaxTempo     = 300.0
	DefaultTempo = 120.0
)

// Engine drives the six lanes from one master clock with look-ahead
// scheduling: each wake-up dispatches every base tick due inside the
// lookahead window, stamped with its exact time, so consumers stay accurate
// no matter how much the wake-ups themselves jitter.
//
// The zero value is not usable; construct with New. The engine is owned by
// its caller; there is no package-level instance.
type Engine struct {
	mu sync.Mutex

	lanes       [NumLanes]*Lane
	stepEnabled [NumSteps]bool
	snakeIndex  int
	tempo       float64
	basePeriod  time.Duration

	running      bool
	nextTick     time.Time
	gateHigh     bool
	lastGateStep int

	stepSinks  [NumLanes][]StepSink
	gateSinks  []GateSink
	cycleSinks []CycleSink
	tickSinks  []TickSink

	// enabledFn maps a logical position through the current snake pattern
	// into the step mask. Built once so the traversal hot path does not
	// allocate.
	enabledFn func(int) bool

	rng *rand.Rand
	now func() time.Time

	stop chan struct{}
	done chan struct{}

	updates chan struct{}
}

// New returns an engine with all steps enabled, every lane at length 16,
// quarter-note division, forward mode, and the default tempo.
func New() *Engine {
	e := &Engine{
		tempo:        DefaultTempo,
		lastGateStep: -1,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		now:          time.Now,
		updates:      make(chan struct{}, 1),
	}
	for i := range e.lanes {
		e.lanes[i] = newLane()
	}
	for i := range e.stepEnabled {
		e.stepEnabled[i] = true
	}
	e.basePeriod = periodFor(e.tempo)
	e.enabledFn = func(p int) bool {
		return e.stepEnabled[snakePatterns[e.snakeIndex].Sequence[p]]
	}
	return e
}

func periodFor(tempo float64) time.Duration {
	beat := time.Duration(float64(time.Second) * 60.0 / tempo)
	return beat / 4
}

// Start rewinds every lane to the top and begins the clock goroutine.
// Starting an already-running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	for _, l := range e.lanes {
		l.rewind()
	}
	e.gateHigh = false
	e.nextTick = e.now()
	e.running = true
	stop := make(chan struct{})
	done := make(chan struct{})
	e.stop, e.done = stop, done
	tempo := e.tempo
	e.mu.Unlock()

	debug.Log("engine", "start tempo=%.1f", tempo)
	go e.run(stop, done)
	e.notify()
}

// Stop halts the clock goroutine. If the gate lane is sounding, one
// corrective off is emitted before returning. Stop is idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	stop, done := e.stop, e.done
	e.stop, e.done = nil, nil
	e.mu.Unlock()

	close(stop)
	<-done

	e.mu.Lock()
	if e.gateHigh {
		e.gateHigh = false
		at := e.now()
		step := e.lastGateStep
		for _, s := range e.gateSinks {
			s.OnGate(false, at, step)
		}
	}
	e.mu.Unlock()

	debug.Log("engine", "stop")
	e.notify()
}

// Running reports whether the clock goroutine is live.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) run(stop, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(wakeInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			e.mu.Lock()
			e.catchUp(e.now())
			e.mu.Unlock()
			e.notify()
		}
	}
}

// catchUp dispatches every base tick due before now+lookahead. A delayed
// wake-up dispatches several ticks in one pass; their timestamps come from
// nextTick, not the wall clock, so they never drift. Caller holds mu.
func (e *Engine) catchUp(now time.Time) {
	horizon := now.Add(lookahead)
	for e.nextTick.Before(horizon) {
		e.dispatchTick(e.nextTick)
		e.nextTick = e.nextTick.Add(e.basePeriod)
	}
}

func (e *Engine) dispatchTick(at time.Time) {
	for _, s := range e.tickSinks {
		s.OnBaseTick(at)
	}
	for id := LaneID(0); id < NumLanes; id++ {
		l := e.lanes[id]
		l.divCount++
		if l.divCount >= int(l.division) {
			l.divCount = 0
			e.processStep(id, l, at)
		}
	}
}

// processStep emits the lane's current step and then advances its position.
// Cycle detection runs only here, on the note lane: a position that returns
// to zero from anywhere else means a full traversal, because length is
// mutable and the pattern is a permutation, so no counter could tell.
func (e *Engine) processStep(id LaneID, l *Lane, at time.Time) {
	phys := snakePatterns[e.snakeIndex].Sequence[l.position]
	enabled := e.stepEnabled[phys]

	if id == LaneGate {
		e.processGateStep(l, phys, enabled, at)
	} else if enabled {
		v := l.values[phys]
		for _, s := range e.stepSinks[id] {
			s.OnStep(v, at, phys)
		}
	}

	old := l.position
	l.position = Advance(l.position, l.length, l.mode, &l.dir, e.rng, e.enabledFn)
	if id == LaneNote && old != 0 && l.position == 0 {
		for _, s := range e.cycleSinks {
			s.OnCycleComplete(at)
		}
	}
}

// processGateStep emits a full on/off pair for every active step so a
// downstream envelope always retriggers, and a single corrective off when a
// sounding gate lands on a disabled or cleared step.
func (e *Engine) processGateStep(l *Lane, phys int, enabled bool, at time.Time) {
	on := enabled && l.values[phys] >= 0.5
	if on {
		off := at.Add(time.Duration(float64(l.division) * gatePulseWidth * float64(e.basePeriod)))
		for _, s := range e.gateSinks {
			s.OnGate(true, at, phys)
			s.OnGate(false, off, phys)
		}
		e.gateHigh = true
		e.lastGateStep = phys
		return
	}
	if e.gateHigh {
		for _, s := range e.gateSinks {
			s.OnGate(false, at, phys)
		}
		e.gateHigh = false
	}
}

// SetTempo clamps bpm into [MinTempo, MaxTempo] and recomputes the base
// period. While running, the next tick is rescheduled to now so a large
// tempo jump cannot trigger a catch-up burst; lane phase is untouched.
func (e *Engine) SetTempo(bpm float64) {
	if math.IsNaN(bpm) || bpm < MinTempo {
		bpm = MinTempo
	}
	if bpm > MaxTempo {
		bpm = MaxTempo
	}
	e.mu.Lock()
	e.tempo = bpm
	e.basePeriod = periodFor(bpm)
	if e.running {
		e.nextTick = e.now()
	}
	e.mu.Unlock()
	debug.Log("engine", "tempo=%.1f", bpm)
	e.notify()
}

// Tempo returns the current tempo in BPM.
func (e *Engine) Tempo() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tempo
}

// BasePeriod returns the duration of one base (sixteenth) tick.
func (e *Engine) BasePeriod() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.basePeriod
}

// SetLaneValues replaces a lane's whole value array.
func (e *Engine) SetLaneValues(id LaneID, values [NumSteps]float32) {
	if !id.Valid() {
		return
	}
	e.mu.Lock()
	e.lanes[id].values = values
	e.mu.Unlock()
	e.notify()
}

// SetStepValue sets one physical step's value on a lane.
func (e *Engine) SetStepValue(id LaneID, step int, v float32) {
	if !id.Valid() || step < 0 || step >= NumSteps {
		return
	}
	e.mu.Lock()
	e.lanes[id].values[step] = v
	e.mu.Unlock()
	e.notify()
}

// SetLaneLength clamps length into [1,16]. If the lane's position falls
// outside the new range it resets to zero; that reset happens here, outside
// the advance path, so it can never read as a cycle.
func (e *Engine) SetLaneLength(id LaneID, length int) {
	if !id.Valid() {
		return
	}
	if length < 1 {
		length = 1
	}
	if length > NumSteps {
		length = NumSteps
	}
	e.mu.Lock()
	l := e.lanes[id]
	l.length = length
	if l.position >= length {
		l.position = 0
	}
	e.mu.Unlock()
	e.notify()
}

// SetLaneDivision rejects values outside the enumerated set, keeping the
// prior division.
func (e *Engine) SetLaneDivision(id LaneID, d Division) {
	if !id.Valid() {
		return
	}
	if !d.Valid() {
		debug.Log("engine", "rejected division %d for %s", int(d), id)
		return
	}
	e.mu.Lock()
	e.lanes[id].division = d
	e.mu.Unlock()
	e.notify()
}

// SetLaneMode rejects unknown modes, keeping the prior mode.
func (e *Engine) SetLaneMode(id LaneID, m Mode) {
	if !id.Valid() {
		return
	}
	if !m.Valid() {
		debug.Log("engine", "rejected mode %d for %s", int(m), id)
		return
	}
	e.mu.Lock()
	e.lanes[id].mode = m
	e.mu.Unlock()
	e.notify()
}

// SetStepEnabled flips one step in the global mask shared by every lane.
func (e *Engine) SetStepEnabled(step int, on bool) {
	if step < 0 || step >= NumSteps {
		return
	}
	e.mu.Lock()
	e.stepEnabled[step] = on
	e.mu.Unlock()
	e.notify()
}

// ToggleStep toggles one step in the global mask.
func (e *Engine) ToggleStep(step int) {
	if step < 0 || step >= NumSteps {
		return
	}
	e.mu.Lock()
	e.stepEnabled[step] = !e.stepEnabled[step]
	e.mu.Unlock()
	e.notify()
}

// SetSnakeIndex selects the traversal pattern, clamped into range.
func (e *Engine) SetSnakeIndex(index int) {
	e.mu.Lock()
	e.snakeIndex = ClampPatternIndex(index)
	e.mu.Unlock()
	e.notify()
}

// RegisterStepSink adds a per-lane step consumer.
func (e *Engine) RegisterStepSink(id LaneID, s StepSink) {
	if !id.Valid() || s == nil {
		return
	}
	e.mu.Lock()
	e.stepSinks[id] = append(e.stepSinks[id], s)
	e.mu.Unlock()
}

// RegisterGateSink adds a gate consumer.
func (e *Engine) RegisterGateSink(s GateSink) {
	if s == nil {
		return
	}
	e.mu.Lock()
	e.gateSinks = append(e.gateSinks, s)
	e.mu.Unlock()
}

// RegisterCycleSink adds a cycle-complete consumer.
func (e *Engine) RegisterCycleSink(s CycleSink) {
	if s == nil {
		return
	}
	e.mu.Lock()
	e.cycleSinks = append(e.cycleSinks, s)
	e.mu.Unlock()
}

// RegisterTickSink adds a base-tick consumer.
func (e *Engine) RegisterTickSink(s TickSink) {
	if s == nil {
		return
	}
	e.mu.Lock()
	e.tickSinks = append(e.tickSinks, s)
	e.mu.Unlock()
}

// Updates delivers a pulse whenever engine state worth redrawing changed.
// The channel never blocks the engine; a slow reader just misses pulses.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

func (e *Engine) notify() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}
