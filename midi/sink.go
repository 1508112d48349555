package midi

import (
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// TransposeTap exposes the semitone offset the audio-domain sequencer is
// holding. Reads must be cheap and lock-free; the tap is consulted on every
// gate-on.
type TransposeTap interface {
	CurrentTranspose() int
}

const defaultVelocity = 100

// NoteOut turns note-lane steps and gate transitions into MIDI notes. The
// note lane latches the pitch as a semitone offset from the root; gates
// open and close the note. The transpose tap is read at gate-on so pitch
// shifts land exactly on note boundaries, and the note-off always reuses
// the pitch that is actually sounding, whatever the tap says by then.
type NoteOut struct {
	out     *Output
	channel uint8
	root    uint8
	tap     TransposeTap

	mu       sync.Mutex
	offset   float32 // latched note-lane value, semitones above root
	sounding bool
	onPitch  uint8
}

// NewNoteOut builds a note adapter. tap may be nil for an untransposed
// output.
func NewNoteOut(out *Output, channel, root uint8, tap TransposeTap) *NoteOut {
	return &NoteOut{out: out, channel: channel, root: root, tap: tap}
}

// OnStep latches the note lane's value. Register on the note lane only.
func (n *NoteOut) OnStep(value float32, at time.Time, step int) {
	n.mu.Lock()
	n.offset = value
	n.mu.Unlock()
}

// OnGate opens and closes the latched note.
func (n *NoteOut) OnGate(on bool, at time.Time, step int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !on {
		if !n.sounding {
			return
		}
		n.sounding = false
		n.out.Send(at, gomidi.NoteOff(n.channel, n.onPitch))
		return
	}

	semi := 0
	if n.tap != nil {
		semi = n.tap.CurrentTranspose()
	}
	pitch := clampPitch(int(n.root) + roundOffset(n.offset) + semi)
	n.sounding = true
	n.onPitch = pitch
	n.out.Send(at, gomidi.NoteOn(n.channel, pitch, defaultVelocity))
}

func roundOffset(v float32) int {
	if v < 0 {
		return -int(-v + 0.5)
	}
	return int(v + 0.5)
}

func clampPitch(p int) uint8 {
	if p < 0 {
		return 0
	}
	if p > 127 {
		return 127
	}
	return uint8(p)
}

// ModOut scales one mod lane's normalized values onto a CC controller.
type ModOut struct {
	out     *Output
	channel uint8
	cc      uint8
}

func NewModOut(out *Output, channel, cc uint8) *ModOut {
	return &ModOut{out: out, channel: channel, cc: cc}
}

// OnStep maps value in [0,1] to CC 0-127, clamping anything outside.
func (m *ModOut) OnStep(value float32, at time.Time, step int) {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	m.out.Send(at, gomidi.ControlChange(m.channel, m.cc, uint8(value*127+0.5)))
}
