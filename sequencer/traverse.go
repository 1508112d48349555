package sequencer

import "math/rand"

// Mode selects how a position walks its steps.
type Mode int

const (
	ModeForward Mode = iota
	ModeReverse
	ModePingPong
	ModeRandom
)

var modeNames = [...]string{"forward", "reverse", "pingpong", "random"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "unknown"
	}
	return modeNames[m]
}

// Valid reports whether m is one of the four playback modes.
func (m Mode) Valid() bool {
	return m >= ModeForward && m <= ModeRandom
}

// ParseMode maps a mode name to its Mode. ok is false for unknown names so
// callers keep the value they already have.
func ParseMode(s string) (Mode, bool) {
	for i, name := range modeNames {
		if s == name {
			return Mode(i), true
		}
	}
	return ModeForward, false
}

// NextMode cycles through the modes, for UI stepping.
func NextMode(m Mode) Mode {
	return (m + 1) % Mode(len(modeNames))
}

// Direction is the ping-pong travel direction, +1 or -1.
type Direction int

const (
	DirForward Direction = 1
	DirReverse Direction = -1
)

// Advance computes the next logical position for one traversal step.
//
// enabled is consulted with logical positions (always < 16 since length is
// at most 16); callers fold their own mapping into it, e.g. the snake
// pattern lookup against the step mask, or a cell's active flag. dir is
// read and flipped by ping-pong and ignored by the other modes. rng is only
// consulted by random mode.
//
// Every mode terminates within length attempts when all steps are disabled:
// forward and reverse stay on the wrapped candidate, ping-pong clamps the
// bounced candidate into range, random falls back to 0.
func Advance(position, length int, mode Mode, dir *Direction, rng *rand.Rand, enabled func(int) bool) int {
	if length < 1 {
		return 0
	}
	switch mode {
	case ModeForward:
		next := (position + 1) % length
		for tries := 0; !enabled(next) && tries < length; tries++ {
			next = (next + 1) % length
		}
		return next

	case ModeReverse:
		next := position - 1
		if next < 0 {
			next = length - 1
		}
		for tries := 0; !enabled(next) && tries < length; tries++ {
			next--
			if next < 0 {
				next = length - 1
			}
		}
		return next

	case ModePingPong:
		d := DirForward
		if dir != nil {
			d = *dir
		}
		step := func(p int) int {
			if length == 1 {
				return 0
			}
			if d == DirForward {
				if p >= length-1 {
					d = DirReverse
					return length - 2
				}
				return p + 1
			}
			if p <= 0 {
				d = DirForward
				return 1
			}
			return p - 1
		}
		next := step(position)
		for tries := 0; tries < length; tries++ {
			if next >= 0 && next < length && enabled(next) {
				break
			}
			next = step(next)
		}
		if dir != nil {
			*dir = d
		}
		if next < 0 {
			next = 0
		}
		if next >= length {
			next = length - 1
		}
		return next

	case ModeRandom:
		var candidates [NumSteps]int
		n := 0
		for i := 0; i < length; i++ {
			if enabled(i) {
				candidates[n] = i
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return candidates[rng.Intn(n)]
	}
	return position
}
