package transpose

import (
	"math"
	"sync/atomic"

	"github.com/gopxl/beep"
)

// StepClock is a unipolar square oscillator, the engine's internal clock
// signal: high for the first half of each cycle, low for the second, so the
// rising edge crosses the detector threshold once per cycle. Rate changes
// arrive from the control domain through an atomic bit pattern and take
// effect at the next read.
type StepClock struct {
	sampleRate int
	phase      float64
	rateBits   atomic.Uint64
}

// NewStepClock returns a clock producing stepsPerSecond rising edges.
func NewStepClock(sampleRate int, stepsPerSecond float64) *StepClock {
	c := &StepClock{sampleRate: sampleRate}
	c.SetRate(stepsPerSecond)
	return c
}

// SetRate retunes the clock. Safe to call from any goroutine.
func (c *StepClock) SetRate(stepsPerSecond float64) {
	if stepsPerSecond < 0 {
		stepsPerSecond = 0
	}
	c.rateBits.Store(math.Float64bits(stepsPerSecond))
}

// Rate returns the current steps per second.
func (c *StepClock) Rate() float64 {
	return math.Float64frombits(c.rateBits.Load())
}

func (c *StepClock) next() float32 {
	c.phase += c.Rate() / float64(c.sampleRate)
	c.phase -= math.Floor(c.phase)
	if c.phase < 0.5 {
		return 1
	}
	return 0
}

// StepsPerSecond converts a tempo in BPM to sixteenth-note clock edges.
func StepsPerSecond(bpm float64) float64 {
	return bpm / 60.0 * 4.0
}

// Streamer hosts the engine in a beep pipeline. Each Stream call is an
// audio block: pending commands apply at its start, then the left channel
// carries the transpose CV and the right carries the pulses, step positive
// and reset negative. Buffers are preallocated; the callback path stays
// allocation-free.
type Streamer struct {
	engine *Engine
	clock  *StepClock
	in     [512]float32
	out    [512]Frame
}

var _ beep.Streamer = (*Streamer)(nil)

// NewStreamer wires an engine and its internal clock into a beep.Streamer.
func NewStreamer(e *Engine, c *StepClock) *Streamer {
	return &Streamer{engine: e, clock: c}
}

func (s *Streamer) Stream(samples [][2]float64) (int, bool) {
	total := 0
	for total < len(samples) {
		n := len(samples) - total
		if n > len(s.in) {
			n = len(s.in)
		}
		for i := 0; i < n; i++ {
			s.in[i] = s.clock.next()
		}
		s.engine.ProcessBlock(s.in[:n], s.out[:n])
		for i := 0; i < n; i++ {
			f := s.out[i]
			samples[total+i][0] = float64(f[0])
			samples[total+i][1] = float64(f[1] - f[2])
		}
		total += n
	}
	return len(samples), true
}

func (s *Streamer) Err() error { return nil }
