package sequencer

import (
	"testing"
	"time"
)

type stepRec struct {
	v    float32
	at   time.Time
	step int
}

type recSteps struct{ evs []stepRec }

func (r *recSteps) OnStep(v float32, at time.Time, step int) {
	r.evs = append(r.evs, stepRec{v, at, step})
}

type gateRec struct {
	on   bool
	at   time.Time
	step int
}

type recGates struct{ evs []gateRec }

func (r *recGates) OnGate(on bool, at time.Time, step int) {
	r.evs = append(r.evs, gateRec{on, at, step})
}

type recCycles struct{ ats []time.Time }

func (r *recCycles) OnCycleComplete(at time.Time) { r.ats = append(r.ats, at) }

type recTicks struct{ ats []time.Time }

func (r *recTicks) OnBaseTick(at time.Time) { r.ats = append(r.ats, at) }

var testBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// primeAt rewinds the lanes and pins the first base tick, standing in for
// Start without spinning the clock goroutine.
func primeAt(e *Engine, t0 time.Time) {
	e.mu.Lock()
	for _, l := range e.lanes {
		l.rewind()
	}
	e.gateHigh = false
	e.nextTick = t0
	e.mu.Unlock()
}

// wake simulates one clock wake-up at the given instant.
func wake(e *Engine, now time.Time) {
	e.mu.Lock()
	e.catchUp(now)
	e.mu.Unlock()
}

// TestLookaheadDeterminism dispatches the same span of time through a
// regular wake-up schedule and a jittered one. As long as every gap stays
// under the lookahead window, the dispatched ticks and their timestamps
// must be identical.
func TestLookaheadDeterminism(t *testing.T) {
	run := func(wakeOffsets []time.Duration) []time.Time {
		e := New()
		ticks := &recTicks{}
		e.RegisterTickSink(ticks)
		primeAt(e, testBase)
		for _, off := range wakeOffsets {
			wake(e, testBase.Add(off))
		}
		return ticks.ats
	}

	var regular []time.Duration
	for off := time.Duration(0); off <= 500*time.Millisecond; off += 25 * time.Millisecond {
		regular = append(regular, off)
	}
	jittered := []time.Duration{
		0,
		90 * time.Millisecond,
		91 * time.Millisecond,
		180 * time.Millisecond,
		199 * time.Millisecond,
		260 * time.Millisecond,
		350 * time.Millisecond,
		420 * time.Millisecond,
		500 * time.Millisecond,
	}

	a := run(regular)
	b := run(jittered)

	if len(a) != len(b) {
		t.Fatalf("tick counts differ: regular %d, jittered %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Errorf("tick %d: regular %v, jittered %v", i, a[i], b[i])
		}
	}
	// 120 BPM makes the base tick 125ms; ticks at 0..500ms inclusive.
	if len(a) != 5 {
		t.Fatalf("dispatched %d ticks, want 5", len(a))
	}
	for i, at := range a {
		want := testBase.Add(time.Duration(i) * 125 * time.Millisecond)
		if !at.Equal(want) {
			t.Errorf("tick %d at %v, want %v", i, at, want)
		}
	}
}

// TestCatchUpBurst delivers a whole span in one late wake-up; every missed
// tick must still arrive, in order, with its original timestamp.
func TestCatchUpBurst(t *testing.T) {
	e := New()
	ticks := &recTicks{}
	e.RegisterTickSink(ticks)
	primeAt(e, testBase)

	wake(e, testBase.Add(900*time.Millisecond))

	if len(ticks.ats) != 8 {
		t.Fatalf("dispatched %d ticks, want 8", len(ticks.ats))
	}
	for i, at := range ticks.ats {
		want := testBase.Add(time.Duration(i) * 125 * time.Millisecond)
		if !at.Equal(want) {
			t.Errorf("tick %d at %v, want %v", i, at, want)
		}
	}
}

func TestDivisionCounters(t *testing.T) {
	e := New()
	note := &recSteps{}
	mod := &recSteps{}
	e.RegisterStepSink(LaneNote, note)
	e.RegisterStepSink(LaneMod0, mod)
	e.SetLaneDivision(LaneNote, Div16th)
	e.SetLaneDivision(LaneMod0, Div8th)
	var vals [NumSteps]float32
	for i := range vals {
		vals[i] = float32(i)
	}
	e.SetLaneValues(LaneNote, vals)
	primeAt(e, testBase)

	wake(e, testBase.Add(900*time.Millisecond)) // 8 base ticks

	if len(note.evs) != 8 {
		t.Fatalf("note lane fired %d steps, want 8", len(note.evs))
	}
	for i, ev := range note.evs {
		if ev.step != i || ev.v != float32(i) {
			t.Errorf("note step %d: got step %d value %v", i, ev.step, ev.v)
		}
		want := testBase.Add(time.Duration(i) * 125 * time.Millisecond)
		if !ev.at.Equal(want) {
			t.Errorf("note step %d at %v, want %v", i, ev.at, want)
		}
	}

	// Division 2 fires on ticks 0, 2, 4, 6.
	if len(mod.evs) != 4 {
		t.Fatalf("mod lane fired %d steps, want 4", len(mod.evs))
	}
	for i, ev := range mod.evs {
		want := testBase.Add(time.Duration(2*i) * 125 * time.Millisecond)
		if !ev.at.Equal(want) {
			t.Errorf("mod step %d at %v, want %v", i, ev.at, want)
		}
	}
}

// TestMaskOutsideLength disables a step beyond a short lane's reach; the
// lane must not notice.
func TestMaskOutsideLength(t *testing.T) {
	e := New()
	note := &recSteps{}
	e.RegisterStepSink(LaneNote, note)
	e.SetLaneDivision(LaneNote, Div16th)
	e.SetLaneLength(LaneNote, 4)
	e.SetStepEnabled(14, false)
	primeAt(e, testBase)

	wake(e, testBase.Add(900*time.Millisecond)) // 8 base ticks, two laps

	if len(note.evs) != 8 {
		t.Fatalf("note lane fired %d steps, want 8", len(note.evs))
	}
	wantSteps := []int{0, 1, 2, 3, 0, 1, 2, 3}
	for i, ev := range note.evs {
		if ev.step != wantSteps[i] {
			t.Errorf("step %d: got %d, want %d", i, ev.step, wantSteps[i])
		}
	}
}

func TestCycleDetection(t *testing.T) {
	t.Run("forward wrap fires once", func(t *testing.T) {
		e := New()
		cycles := &recCycles{}
		e.RegisterCycleSink(cycles)
		e.SetLaneDivision(LaneNote, Div16th)
		e.SetLaneLength(LaneNote, 8)
		primeAt(e, testBase)

		// 7 ticks: positions 0..6 emitted, no wrap yet.
		wake(e, testBase.Add(750*time.Millisecond))
		if len(cycles.ats) != 0 {
			t.Fatalf("cycle fired after %d ticks without a wrap", 7)
		}

		// Tick 8 emits step 7 and wraps 7 -> 0.
		wake(e, testBase.Add(900*time.Millisecond))
		if len(cycles.ats) != 1 {
			t.Fatalf("cycle fired %d times, want 1", len(cycles.ats))
		}
		want := testBase.Add(7 * 125 * time.Millisecond)
		if !cycles.ats[0].Equal(want) {
			t.Errorf("cycle at %v, want %v", cycles.ats[0], want)
		}
	})

	t.Run("ping-pong return to zero fires once", func(t *testing.T) {
		e := New()
		cycles := &recCycles{}
		e.RegisterCycleSink(cycles)
		e.SetLaneDivision(LaneNote, Div16th)
		e.SetLaneLength(LaneNote, 8)
		e.SetLaneMode(LaneNote, ModePingPong)
		primeAt(e, testBase)

		// Walk 0..7 and back down through the 1 -> 0 transition.
		wake(e, testBase.Add(1700*time.Millisecond))
		if len(cycles.ats) != 1 {
			t.Fatalf("cycle fired %d times, want 1", len(cycles.ats))
		}
		want := testBase.Add(13 * 125 * time.Millisecond)
		if !cycles.ats[0].Equal(want) {
			t.Errorf("cycle at %v, want %v", cycles.ats[0], want)
		}
	})

	t.Run("setter resets never fire", func(t *testing.T) {
		e := New()
		cycles := &recCycles{}
		e.RegisterCycleSink(cycles)
		e.SetLaneDivision(LaneNote, Div16th)
		primeAt(e, testBase)

		// Advance a few steps, then shrink length under the position.
		wake(e, testBase.Add(300*time.Millisecond))
		e.SetLaneLength(LaneNote, 2)
		e.SetState(e.State())
		if len(cycles.ats) != 0 {
			t.Errorf("cycle fired %d times from setter resets, want 0", len(cycles.ats))
		}
	})

	t.Run("non-primary lanes never fire", func(t *testing.T) {
		e := New()
		cycles := &recCycles{}
		e.RegisterCycleSink(cycles)
		e.SetLaneDivision(LaneMod0, Div16th)
		e.SetLaneLength(LaneMod0, 2)
		e.SetLaneDivision(LaneNote, DivDoubleWhole)
		primeAt(e, testBase)

		// Mod0 wraps every two ticks; the note lane steps only once at
		// the top, which is not a wrap.
		wake(e, testBase.Add(900*time.Millisecond))
		if len(cycles.ats) != 0 {
			t.Errorf("cycle fired %d times from a mod lane wrap, want 0", len(cycles.ats))
		}
	})
}

func TestGateRetrigger(t *testing.T) {
	e := New()
	gates := &recGates{}
	e.RegisterGateSink(gates)
	e.SetLaneDivision(LaneGate, Div16th)
	var vals [NumSteps]float32
	vals[0], vals[1] = 1, 1
	e.SetLaneValues(LaneGate, vals)
	primeAt(e, testBase)

	wake(e, testBase.Add(300*time.Millisecond)) // ticks 0..3, step 3 silent

	// Two active steps produce two full on/off pairs; step 2 is cleared, so
	// the sounding gate gets one corrective off at the step time.
	period := 125 * time.Millisecond
	hold := 112500 * time.Microsecond // 0.9 of a sixteenth at 120 BPM
	want := []gateRec{
		{true, testBase, 0},
		{false, testBase.Add(hold), 0},
		{true, testBase.Add(period), 1},
		{false, testBase.Add(period + hold), 1},
		{false, testBase.Add(2 * period), 2},
	}
	if len(gates.evs) != len(want) {
		t.Fatalf("got %d gate events, want %d: %+v", len(gates.evs), len(want), gates.evs)
	}
	for i, ev := range gates.evs {
		w := want[i]
		if ev.on != w.on || ev.step != w.step || !ev.at.Equal(w.at) {
			t.Errorf("event %d = %+v, want %+v", i, ev, w)
		}
	}
}

// TestGateCorrectiveOffOnce checks a long disabled run emits exactly one
// corrective off, not one per silent step.
func TestGateCorrectiveOffOnce(t *testing.T) {
	e := New()
	gates := &recGates{}
	e.RegisterGateSink(gates)
	e.SetLaneDivision(LaneGate, Div16th)
	var vals [NumSteps]float32
	vals[0] = 1
	e.SetLaneValues(LaneGate, vals)
	primeAt(e, testBase)

	wake(e, testBase.Add(500*time.Millisecond)) // ticks 0..4

	offs := 0
	for _, ev := range gates.evs[2:] { // past the step-0 pair
		if ev.on {
			t.Errorf("unexpected on event %+v", ev)
		}
		offs++
	}
	if offs != 1 {
		t.Errorf("got %d corrective offs, want 1", offs)
	}
}

func TestSetTempo(t *testing.T) {
	t.Run("clamps to range", func(t *testing.T) {
		e := New()
		e.SetTempo(5)
		if got := e.Tempo(); got != MinTempo {
			t.Errorf("Tempo() = %v, want %v", got, MinTempo)
		}
		e.SetTempo(1000)
		if got := e.Tempo(); got != MaxTempo {
			t.Errorf("Tempo() = %v, want %v", got, MaxTempo)
		}
	})

	t.Run("reschedules next tick while running", func(t *testing.T) {
		e := New()
		primeAt(e, testBase)
		wake(e, testBase)

		tNow := testBase.Add(2 * time.Second)
		e.mu.Lock()
		e.running = true
		e.now = func() time.Time { return tNow }
		e.mu.Unlock()

		e.SetTempo(60)
		e.mu.Lock()
		next, period := e.nextTick, e.basePeriod
		e.mu.Unlock()
		if !next.Equal(tNow) {
			t.Errorf("nextTick = %v, want %v", next, tNow)
		}
		if period != 250*time.Millisecond {
			t.Errorf("basePeriod = %v, want 250ms", period)
		}
	})

	t.Run("keeps lane phase", func(t *testing.T) {
		e := New()
		e.SetLaneDivision(LaneNote, Div16th)
		primeAt(e, testBase)
		wake(e, testBase.Add(250*time.Millisecond)) // position now 3
		e.SetTempo(90)
		if got := e.State().Lanes[LaneNote].Position; got != 3 {
			t.Errorf("position = %d after tempo change, want 3", got)
		}
	})
}

func TestStopEmitsCorrectiveOff(t *testing.T) {
	e := New()
	gates := &recGates{}
	e.RegisterGateSink(gates)

	// Stand in for a running engine whose gate is sounding.
	done := make(chan struct{})
	close(done)
	e.mu.Lock()
	e.running = true
	e.stop = make(chan struct{})
	e.done = done
	e.gateHigh = true
	e.lastGateStep = 5
	e.mu.Unlock()

	e.Stop()
	if len(gates.evs) != 1 || gates.evs[0].on || gates.evs[0].step != 5 {
		t.Fatalf("gate events after stop = %+v, want one off at step 5", gates.evs)
	}

	e.Stop() // idempotent
	if len(gates.evs) != 1 {
		t.Errorf("second stop emitted %d extra events", len(gates.evs)-1)
	}
}

func TestStateRestore(t *testing.T) {
	a := New()
	var vals [NumSteps]float32
	for i := range vals {
		vals[i] = float32(i) / 2
	}
	a.SetLaneValues(LaneMod1, vals)
	a.SetLaneLength(LaneNote, 12)
	a.SetLaneDivision(LaneGate, DivHalf)
	a.SetLaneMode(LaneMod2, ModeRandom)
	a.SetStepEnabled(3, false)
	a.SetSnakeIndex(5)
	a.SetTempo(141)

	b := New()
	b.SetState(a.State())
	got := b.State()

	if got.Lanes[LaneMod1].Values != vals {
		t.Error("mod1 values not restored")
	}
	if got.Lanes[LaneNote].Length != 12 {
		t.Errorf("note length = %d, want 12", got.Lanes[LaneNote].Length)
	}
	if got.Lanes[LaneGate].Division != DivHalf {
		t.Errorf("gate division = %v, want %v", got.Lanes[LaneGate].Division, DivHalf)
	}
	if got.Lanes[LaneMod2].Mode != "random" {
		t.Errorf("mod2 mode = %q, want random", got.Lanes[LaneMod2].Mode)
	}
	if got.StepEnabled[3] {
		t.Error("step 3 should be disabled")
	}
	if got.SnakeIndex != 5 {
		t.Errorf("snake index = %d, want 5", got.SnakeIndex)
	}
	if got.Tempo != 141 {
		t.Errorf("tempo = %v, want 141", got.Tempo)
	}
	for i, l := range got.Lanes {
		if l.Position != 0 {
			t.Errorf("lane %d position = %d after restore, want 0", i, l.Position)
		}
	}
}

func TestRejectedSettersRetainPrior(t *testing.T) {
	e := New()

	e.SetLaneDivision(LaneNote, Division(5))
	if got := e.State().Lanes[LaneNote].Division; got != DivQuarter {
		t.Errorf("division = %v after invalid set, want %v", got, DivQuarter)
	}

	e.SetLaneMode(LaneNote, Mode(99))
	if got := e.State().Lanes[LaneNote].Mode; got != "forward" {
		t.Errorf("mode = %q after invalid set, want forward", got)
	}

	e.SetSnakeIndex(99)
	if got := e.State().SnakeIndex; got != NumPatterns-1 {
		t.Errorf("snake index = %d, want %d", got, NumPatterns-1)
	}

	s := e.State()
	s.Lanes[LaneNote].Mode = "sideways"
	s.Lanes[LaneNote].Division = Division(7)
	e.SetLaneMode(LaneNote, ModePingPong)
	e.SetLaneDivision(LaneNote, Div8th)
	e.SetState(s)
	got := e.State().Lanes[LaneNote]
	if got.Mode != "pingpong" {
		t.Errorf("mode = %q after restore with bad name, want pingpong", got.Mode)
	}
	if got.Division != Div8th {
		t.Errorf("division = %v after restore with bad value, want %v", got.Division, Div8th)
	}
}
