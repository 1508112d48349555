package transpose

import (
	"testing"

	"github.com/gregoryhbowler/sing-sub000/sequencer"
)

// testRate keeps the pulse math easy to read: 5ms is 5 samples.
const testRate = 1000

// crossings builds a clock signal with n rising edges, one low/high pair
// per edge.
func crossings(n int) []float32 {
	sig := make([]float32, 0, 2*n)
	for i := 0; i < n; i++ {
		sig = append(sig, 0, 1)
	}
	return sig
}

func process(e *Engine, in []float32) []Frame {
	out := make([]Frame, len(in))
	e.ProcessBlock(in, out)
	return out
}

func TestInternalClockCrossings(t *testing.T) {
	e := New(testRate)
	process(e, crossings(3))
	if got := e.Position(); got != 3 {
		t.Errorf("position = %d after 3 crossings, want 3", got)
	}

	// A held-high signal has no further rising edges.
	process(e, []float32{1, 1, 1, 1, 1, 1})
	if got := e.Position(); got != 3 {
		t.Errorf("position = %d after held-high signal, want 3", got)
	}
}

func TestRepeatGatedAdvance(t *testing.T) {
	e := New(testRate)
	e.SetCell(0, Cell{Transpose: 5, Repeats: 3, Active: true})

	process(e, crossings(1))
	if got := e.Position(); got != 0 {
		t.Fatalf("position = %d after 1 advance, want 0", got)
	}
	process(e, crossings(1))
	if got := e.Position(); got != 0 {
		t.Fatalf("position = %d after 2 advances, want 0", got)
	}
	process(e, crossings(1))
	if got := e.Position(); got != 1 {
		t.Fatalf("position = %d after 3 advances, want 1", got)
	}

	// The counter reset with the step: cell 1 has a single repeat, so the
	// next advance moves immediately.
	process(e, crossings(1))
	if got := e.Position(); got != 2 {
		t.Errorf("position = %d, want 2", got)
	}
}

func TestInactiveCells(t *testing.T) {
	e := New(testRate)
	e.SetCell(1, Cell{Transpose: 7, Repeats: 8, Active: false})

	// Traversal never lands on an inactive cell; its repeat budget is dead
	// weight.
	process(e, crossings(1))
	if got := e.Position(); got != 2 {
		t.Fatalf("position = %d after 1 advance, want 2 (cell 1 skipped)", got)
	}

	// A cell deactivated in place becomes a pass-through: the very next
	// advance moves on without honoring repeats.
	e.SetCell(2, Cell{Transpose: 0, Repeats: 8, Active: false})
	process(e, crossings(1))
	if got := e.Position(); got != 3 {
		t.Errorf("position = %d, want 3 (deactivated cell passes through)", got)
	}
}

func TestTransposeOutput(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		want float32
	}{
		{"octave up", Cell{Transpose: 12, Repeats: 1, Active: true}, 1.0},
		{"tritone down", Cell{Transpose: -6, Repeats: 1, Active: true}, -0.5},
		{"inactive is silent", Cell{Transpose: 12, Repeats: 1, Active: false}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := New(testRate)
			e.SetCell(0, tc.cell)
			frames := process(e, make([]float32, 4))
			if got := frames[0][0]; got != tc.want {
				t.Errorf("cv = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStepPulseWidth(t *testing.T) {
	e := New(testRate)
	if got := e.SampleRate(); got != testRate {
		t.Fatalf("SampleRate() = %d, want %d", got, testRate)
	}
	in := make([]float32, 12)
	in[1] = 1 // one rising edge at sample 1
	frames := process(e, in)

	for i, f := range frames {
		high := i >= 1 && i <= 5
		if (f[1] == 1) != high {
			t.Errorf("sample %d: step pulse = %v, want high=%v", i, f[1], high)
		}
	}
}

func TestResetPulseForwardWrap(t *testing.T) {
	e := New(testRate)
	in := append(crossings(16), make([]float32, 8)...)
	frames := process(e, in)

	if got := e.Position(); got != 0 {
		t.Fatalf("position = %d after 16 advances, want 0", got)
	}
	// The wrap lands on the 16th edge, sample 31; the reset pulse holds
	// for 5 samples and nothing fires before it.
	for i, f := range frames {
		high := i >= 31 && i <= 35
		if (f[2] == 1) != high {
			t.Errorf("sample %d: reset pulse = %v, want high=%v", i, f[2], high)
		}
	}
}

func TestResetPulseReverseWrap(t *testing.T) {
	e := New(testRate)
	e.SetMode(sequencer.ModeReverse)
	frames := process(e, append(crossings(1), make([]float32, 8)...))

	if got := e.Position(); got != 15 {
		t.Fatalf("position = %d after reverse advance, want 15", got)
	}
	// 0 -> 15 is the reverse wrap; the pulse arms on the edge at sample 1.
	if frames[1][2] != 1 || frames[5][2] != 1 || frames[6][2] != 0 {
		t.Errorf("reset pulse not armed for reverse wrap: %v", frames)
	}
}

// TestNoResetPulseUndirectedModes pins down the deliberate gap: ping-pong
// and random have no wrap rule, so only an explicit reset can fire the
// pulse in those modes.
func TestNoResetPulseUndirectedModes(t *testing.T) {
	for _, mode := range []sequencer.Mode{sequencer.ModePingPong, sequencer.ModeRandom} {
		t.Run(mode.String(), func(t *testing.T) {
			e := New(testRate)
			e.SetMode(mode)
			frames := process(e, crossings(50))
			for i, f := range frames {
				if f[2] != 0 {
					t.Fatalf("sample %d: reset pulse fired in %s mode", i, mode)
				}
			}
		})
	}
}

func TestExplicitReset(t *testing.T) {
	e := New(testRate)
	process(e, crossings(4))
	if got := e.Position(); got != 4 {
		t.Fatalf("position = %d, want 4", got)
	}

	e.Reset()
	frames := process(e, make([]float32, 8))
	if got := e.Position(); got != 0 {
		t.Errorf("position = %d after reset, want 0", got)
	}
	// Reset applies at block start, so the pulse spans samples 0..4.
	for i, f := range frames {
		high := i <= 4
		if (f[2] == 1) != high {
			t.Errorf("sample %d: reset pulse = %v, want high=%v", i, f[2], high)
		}
	}
}

func TestExternalClock(t *testing.T) {
	e := New(testRate)
	e.SetClockSource(ClockExternal)

	// The continuous path is dead in external mode.
	process(e, crossings(5))
	if got := e.Position(); got != 0 {
		t.Fatalf("position = %d from crossings in external mode, want 0", got)
	}

	// Three queued events apply in order at the next block start.
	e.TriggerExternalAdvance()
	e.TriggerExternalAdvance()
	e.TriggerExternalAdvance()
	process(e, make([]float32, 4))
	if got := e.Position(); got != 3 {
		t.Errorf("position = %d after 3 external advances, want 3", got)
	}
}

// TestExternalAdvancesNotCoalesced gives cell zero a repeat budget; two
// separate events must land as two advanceSequence calls, not one merged
// event.
func TestExternalAdvancesNotCoalesced(t *testing.T) {
	e := New(testRate)
	e.SetClockSource(ClockExternal)
	e.SetCell(0, Cell{Transpose: 0, Repeats: 2, Active: true})

	e.TriggerExternalAdvance()
	e.TriggerExternalAdvance()
	process(e, make([]float32, 2))
	if got := e.Position(); got != 1 {
		t.Errorf("position = %d, want 1 (two events spend the repeat budget)", got)
	}
}

func TestClockSwitchKeepsPosition(t *testing.T) {
	e := New(testRate)
	process(e, crossings(2))
	if got := e.Position(); got != 2 {
		t.Fatalf("position = %d, want 2", got)
	}

	e.SetClockSource(ClockExternal)
	process(e, make([]float32, 2))
	if got := e.Position(); got != 2 {
		t.Errorf("position = %d after switch to external, want 2", got)
	}
	e.TriggerExternalAdvance()
	process(e, make([]float32, 2))
	if got := e.Position(); got != 3 {
		t.Errorf("position = %d after external advance, want 3", got)
	}

	// Back to internal against a signal that is already high: the primed
	// detector must wait for a dip before the next crossing counts.
	e.SetClockSource(ClockInternal)
	process(e, []float32{1, 1, 1, 1})
	if got := e.Position(); got != 3 {
		t.Errorf("position = %d, spurious advance after clock switch", got)
	}
	process(e, []float32{0, 1})
	if got := e.Position(); got != 4 {
		t.Errorf("position = %d after real crossing, want 4", got)
	}
}

func TestSetCellClamps(t *testing.T) {
	tests := []struct {
		name string
		in   Cell
		want Cell
	}{
		{"transpose high", Cell{Transpose: 99, Repeats: 4, Active: true}, Cell{Transpose: 24, Repeats: 4, Active: true}},
		{"transpose low", Cell{Transpose: -99, Repeats: 4, Active: true}, Cell{Transpose: -24, Repeats: 4, Active: true}},
		{"repeats low", Cell{Transpose: 0, Repeats: 0, Active: true}, Cell{Transpose: 0, Repeats: 1, Active: true}},
		{"repeats high", Cell{Transpose: 0, Repeats: 200, Active: false}, Cell{Transpose: 0, Repeats: 64, Active: false}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := New(testRate)
			if !e.SetCell(3, tc.in) {
				t.Fatal("SetCell refused a valid index")
			}
			if got := e.Cells()[3]; got != tc.want {
				t.Errorf("cell = %+v, want %+v", got, tc.want)
			}
		})
	}

	e := New(testRate)
	if e.SetCell(-1, Cell{}) || e.SetCell(16, Cell{}) {
		t.Error("SetCell accepted an out-of-range index")
	}
}

func TestInvalidModeAndClockRejected(t *testing.T) {
	e := New(testRate)
	e.SetMode(sequencer.ModePingPong)

	if e.SetMode(sequencer.Mode(99)) {
		t.Error("SetMode accepted an unknown mode")
	}
	if got := e.Mode(); got != sequencer.ModePingPong {
		t.Errorf("mode = %v after rejected set, want pingpong", got)
	}

	if e.SetClockSource(ClockSource(9)) {
		t.Error("SetClockSource accepted an unknown source")
	}
	if got := e.Clock(); got != ClockInternal {
		t.Errorf("clock = %v after rejected set, want internal", got)
	}
}

// TestBlockBoundaryApplication queues an update between blocks and checks
// it is visible from the very first sample of the next block, never
// mid-block.
func TestBlockBoundaryApplication(t *testing.T) {
	e := New(testRate)
	frames := process(e, make([]float32, 4))
	if frames[0][0] != 0 {
		t.Fatalf("cv = %v before any update, want 0", frames[0][0])
	}

	e.SetCell(0, Cell{Transpose: 12, Repeats: 1, Active: true})
	frames = process(e, make([]float32, 4))
	for i, f := range frames {
		if f[0] != 1.0 {
			t.Errorf("sample %d: cv = %v, want 1.0 from block start", i, f[0])
		}
	}
}

func TestParseClockSource(t *testing.T) {
	tests := []struct {
		in     string
		want   ClockSource
		wantOK bool
	}{
		{"internal", ClockInternal, true},
		{"external", ClockExternal, true},
		{"sideways", ClockInternal, false},
	}
	for _, tc := range tests {
		got, ok := ParseClockSource(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("ParseClockSource(%q) = %v, %v, want %v, %v", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}
