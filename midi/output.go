package midi

import (
	"container/heap"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gregoryhbowler/sing-sub000/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// Event is one timestamped message awaiting dispatch.
type Event struct {
	At  time.Time
	Msg gomidi.Message
}

// eventQueue is a min-heap ordered by send time.
type eventQueue []Event

func (q eventQueue) Len() int           { return len(q) }
func (q eventQueue) Less(i, j int) bool { return q[i].At.Before(q[j].At) }
func (q eventQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(Event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

// Output schedules timestamped messages onto a MIDI port. Future events sit
// in a heap and a dedicated goroutine sends each one when its timestamp
// comes due; messages already due are sent on the caller's goroutine, so a
// corrective note-off at stop time can never be dropped by a Clear that
// follows it.
type Output struct {
	mu    sync.Mutex
	queue eventQueue
	port  string

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	// Port senders are opened lazily and cached by port name.
	senders   map[string]func(gomidi.Message) error
	sendersMu sync.RWMutex

	now func() time.Time
}

// NewOutput creates an output with no port bound yet.
func NewOutput() *Output {
	return &Output{
		wake:    make(chan struct{}, 1),
		senders: make(map[string]func(gomidi.Message) error),
		now:     time.Now,
	}
}

// SetPort selects the destination port by full name. The port opens on the
// first send.
func (o *Output) SetPort(name string) {
	o.mu.Lock()
	o.port = name
	o.mu.Unlock()
}

// Port returns the currently selected port name.
func (o *Output) Port() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.port
}

// Start launches the dispatch goroutine. Call once; Close stops it.
func (o *Output) Start() {
	o.stop = make(chan struct{})
	o.done = make(chan struct{})
	go o.dispatchLoop()
}

// Close stops the dispatch goroutine and drops anything still queued.
func (o *Output) Close() {
	if o.stop == nil {
		return
	}
	close(o.stop)
	<-o.done
	o.stop = nil
	o.Clear()
}

// Send queues msg for delivery at the given time. A message already due
// goes out immediately on the caller's goroutine instead of the queue.
func (o *Output) Send(at time.Time, msg gomidi.Message) {
	if !at.After(o.now()) {
		o.deliver(msg)
		return
	}
	o.mu.Lock()
	heap.Push(&o.queue, Event{At: at, Msg: msg})
	o.mu.Unlock()
	o.wakeLoop()
}

// Clear drops every queued event.
func (o *Output) Clear() {
	o.mu.Lock()
	o.queue = o.queue[:0]
	o.mu.Unlock()
	o.wakeLoop()
}

// Pending returns the number of queued events.
func (o *Output) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queue.Len()
}

// Invalidate drops the cached sender for a port so the next send reopens
// it. Call when the port disappears; a replugged interface gets a fresh
// connection instead of a dead handle.
func (o *Output) Invalidate(name string) {
	o.sendersMu.Lock()
	delete(o.senders, name)
	o.sendersMu.Unlock()
}

// wakeLoop nudges the dispatch goroutine to recalculate its earliest event.
func (o *Output) wakeLoop() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Output) dispatchLoop() {
	// Keep dispatch on one OS thread for stable send timing.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(o.done)

	for {
		o.mu.Lock()
		if o.queue.Len() == 0 {
			o.mu.Unlock()
			select {
			case <-o.stop:
				return
			case <-o.wake:
			}
			continue
		}
		at := o.queue[0].At
		o.mu.Unlock()

		if wait := at.Sub(o.now()); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-o.stop:
				timer.Stop()
				return
			case <-o.wake:
				// Queue changed while waiting; recalculate.
				timer.Stop()
				continue
			case <-timer.C:
			}
		}

		o.mu.Lock()
		if o.queue.Len() == 0 || o.queue[0].At.After(o.now()) {
			o.mu.Unlock()
			continue
		}
		evt := heap.Pop(&o.queue).(Event)
		o.mu.Unlock()

		o.deliver(evt.Msg)
	}
}

func (o *Output) deliver(msg gomidi.Message) {
	send := o.getSender(o.Port())
	if send == nil {
		return
	}
	if err := send(msg); err != nil {
		debug.Log("midi", "send failed: %v", err)
	}
}

// getSender returns a sender for the given port name, lazily opening it.
func (o *Output) getSender(portName string) func(gomidi.Message) error {
	if portName == "" {
		return nil
	}

	o.sendersMu.RLock()
	if sender, ok := o.senders[portName]; ok {
		o.sendersMu.RUnlock()
		return sender
	}
	o.sendersMu.RUnlock()

	o.sendersMu.Lock()
	defer o.sendersMu.Unlock()

	// Double-check after acquiring write lock
	if sender, ok := o.senders[portName]; ok {
		return sender
	}

	for _, port := range gomidi.GetOutPorts() {
		if port.String() == portName {
			sender, err := gomidi.SendTo(port)
			if err != nil {
				debug.Log("midi", "open %q: %v", portName, err)
				return nil
			}
			o.senders[portName] = sender
			return sender
		}
	}
	return nil
}

// enumTimeout bounds port enumeration; CoreMIDI can hang when the MIDI
// server is wedged.
const enumTimeout = 3 * time.Second

// OutPorts lists the available output port names, or fails if enumeration
// hangs.
func OutPorts() ([]string, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case outs := <-ch:
		names := make([]string, len(outs))
		for i, p := range outs {
			names[i] = p.String()
		}
		return names, nil
	case <-time.After(enumTimeout):
		return nil, fmt.Errorf("midi: port enumeration timed out after %s", enumTimeout)
	}
}

// FindOutPort resolves a case-insensitive substring to a full port name.
// An empty name matches the first available port.
func FindOutPort(name string) (string, error) {
	ports, err := OutPorts()
	if err != nil {
		return "", err
	}
	if match, ok := matchPort(ports, name); ok {
		return match, nil
	}
	return "", fmt.Errorf("midi: no output port matching %q", name)
}

func matchPort(ports []string, name string) (string, bool) {
	needle := strings.ToLower(name)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p), needle) {
			return p, true
		}
	}
	return "", false
}
