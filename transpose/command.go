package transpose

import (
	"sync"
	"sync/atomic"

	"github.com/gregoryhbowler/sing-sub000/sequencer"
)

// Commands cross from the control domain into the audio domain through a
// bounded ring. Two goroutines produce: the UI, and the sequencer clock
// forwarding cycle-complete as an external advance. Pushes serialize on a
// mutex; the audio side is the single consumer and never takes the lock.
// It drains the ring only at block boundaries, so a block never observes a
// half-applied update, and FIFO order means advances are never reordered
// or merged.

type commandKind uint8

const (
	cmdAdvance commandKind = iota + 1
	cmdReset
	cmdSetCell
	cmdSetMode
	cmdSetClock
)

type command struct {
	kind  commandKind
	index int
	cell  Cell
	mode  sequencer.Mode
	clock ClockSource
}

// ringSize must stay a power of two for the index mask. 256 slots absorbs
// several seconds of control traffic between blocks.
const ringSize = 256

type commandRing struct {
	pushMu sync.Mutex // serializes producers; pop never takes it
	buf    [ringSize]command
	head   atomic.Uint64 // next slot to consume
	tail   atomic.Uint64 // next slot to fill
}

// push enqueues one command. The lock keeps two concurrent pushes from
// claiming the same slot. It reports false when the ring is full; the
// producer may retry, but never silently merge.
func (r *commandRing) push(c command) bool {
	r.pushMu.Lock()
	defer r.pushMu.Unlock()
	tail := r.tail.Load()
	if tail-r.head.Load() >= ringSize {
		return false
	}
	r.buf[tail&(ringSize-1)] = c
	r.tail.Store(tail + 1)
	return true
}

// pop dequeues one command, if any. Consumer side only.
func (r *commandRing) pop() (command, bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return command{}, false
	}
	c := r.buf[head&(ringSize-1)]
	r.head.Store(head + 1)
	return c, true
}
