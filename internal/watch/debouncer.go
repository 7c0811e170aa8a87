package watch

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid per-path events within a short window, per
// spec.md §4.7: only the last event's semantics survive, except a delete
// always wins over a pending create/modify for the same path.
type Debouncer struct {
	window  time.Duration
	pending map[string]*pendingEvent
	mu      sync.Mutex
	output  chan []FileEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event     FileEvent
	sawDelete bool
}

// NewDebouncer creates a debouncer that flushes coalesced batches after window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []FileEvent, 10),
	}
}

// Add queues event for path, coalescing it with whatever is already pending.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[event.Path]; ok {
		existing.event = d.coalesce(existing, event)
		if event.Operation == OpDelete {
			existing.sawDelete = true
		}
	} else {
		d.pending[event.Path] = &pendingEvent{
			event:     event,
			sawDelete: event.Operation == OpDelete,
		}
	}

	d.scheduleFlush()
}

// coalesce returns the event that should survive once existing and new are
// merged: a delete always wins once seen, regardless of arrival order.
func (d *Debouncer) coalesce(existing *pendingEvent, new FileEvent) FileEvent {
	if existing.sawDelete || new.Operation == OpDelete {
		new.Operation = OpDelete
		return new
	}
	return new
}

func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]FileEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		events = append(events, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)

	select {
	case d.output <- events:
	default:
		slog.Warn("watch debouncer output full, dropping batch", slog.Int("batch_size", len(events)))
	}
}

// Output returns the channel of debounced event batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop stops the debouncer and closes the output channel. Safe to call
// multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
