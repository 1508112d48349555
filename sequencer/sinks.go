package sequencer

import "time"

// Sinks receive engine events carrying absolute timestamps, usually a
// little ahead of real time because of the look-ahead window. They run on
// the engine's clock goroutine and must not block; a consumer that needs
// precise delivery schedules against the timestamp itself, the way the MIDI
// output queue does.

// StepSink receives one value per lane step. step is the physical step
// index 0-15.
type StepSink interface {
	OnStep(value float32, at time.Time, step int)
}

// GateSink receives gate on/off transitions. Every active step produces a
// full on/off pair; a corrective off arrives when a sounding gate hits a
// disabled step or the transport stops.
type GateSink interface {
	OnGate(on bool, at time.Time, step int)
}

// CycleSink is notified when the note lane's position wraps back to zero.
type CycleSink interface {
	OnCycleComplete(at time.Time)
}

// TickSink receives the sixteenth-note heartbeat, independent of any lane's
// length or division.
type TickSink interface {
	OnBaseTick(at time.Time)
}
