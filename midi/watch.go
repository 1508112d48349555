package midi

import (
	"context"
	"time"

	"github.com/gregoryhbowler/sing-sub000/debug"
)

// WatchEvent reports an output port appearing or disappearing.
type WatchEvent struct {
	Port    string
	Present bool
}

// Watcher polls the MIDI port list for hot-plug changes.
type Watcher struct {
	events   chan WatchEvent
	pollRate time.Duration
	known    map[string]bool
}

func NewWatcher() *Watcher {
	return &Watcher{
		events:   make(chan WatchEvent, 16),
		pollRate: time.Second,
		known:    make(map[string]bool),
	}
}

// Events returns a channel of port connect/disconnect events. Events are
// dropped, not blocked on, when the consumer falls behind.
func (w *Watcher) Events() <-chan WatchEvent {
	return w.events
}

// Run starts the polling loop (blocking - run in goroutine). The events
// channel closes when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()

	// Initial scan
	w.scan()

	for {
		select {
		case <-ctx.Done():
			close(w.events)
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *Watcher) scan() {
	ports, err := OutPorts()
	if err != nil {
		// Enumeration hung; skip this scan.
		debug.Log("watch", "%v", err)
		return
	}

	seen := make(map[string]bool, len(ports))
	for _, p := range ports {
		seen[p] = true
		if !w.known[p] {
			w.known[p] = true
			w.emit(WatchEvent{Port: p, Present: true})
		}
	}

	for p := range w.known {
		if !seen[p] {
			delete(w.known, p)
			w.emit(WatchEvent{Port: p, Present: false})
		}
	}
}

func (w *Watcher) emit(e WatchEvent) {
	select {
	case w.events <- e:
	default:
	}
}
