package watcher

import (
	"sort"
	"sync"
	"time"
)

// DebouncedEvent is the last operation seen for a path within one quiet period.
type DebouncedEvent struct {
	Path string
	Op   EventOp
}

// EventOp is the kind of file system change.
type EventOp int

const (
	OpCreate EventOp = iota
	OpWrite
	OpRemove
	OpRename
)

func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	}
	return "unknown"
}

// Debouncer collects events and emits them as one path-sorted batch once no
// new event has arrived for the configured interval. Repeated events for a
// path collapse into the latest one.
type Debouncer struct {
	interval time.Duration
	events   map[string]DebouncedEvent
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
	output   chan []DebouncedEvent
}

func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		events:   make(map[string]DebouncedEvent),
		output:   make(chan []DebouncedEvent, 16),
	}
}

// Output returns the channel that receives batches.
func (d *Debouncer) Output() <-chan []DebouncedEvent {
	return d.output
}

// Add records an event and restarts the quiet period. Events after Stop are dropped.
func (d *Debouncer) Add(path string, op EventOp) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.events[path] = DebouncedEvent{Path: path, Op: op}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.flush)
}

// Stop discards pending events and cancels the timer. It is safe to call twice.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.events = make(map[string]DebouncedEvent)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.events) == 0 {
		return
	}

	batch := make([]DebouncedEvent, 0, len(d.events))
	for _, event := range d.events {
		batch = append(batch, event)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	d.events = make(map[string]DebouncedEvent)
	select {
	case d.output <- batch:
	default:
		// Consumer is behind; merge back so the next flush carries these paths.
		for _, event := range batch {
			d.events[event.Path] = event
		}
		d.timer = time.AfterFunc(d.interval, d.flush)
	}
}
