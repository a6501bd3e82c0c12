// Package watcher implements file system watching for incremental rebuilds.
package watcher

import (
	"sync"
	"time"
	"unique"

	"go.trai.ch/tint/internal/core/ports"
)

// Debouncer coalesces rapid file system events into batches. Events for the
// same path within one window collapse into a single event carrying the
// latest operation, so an editor's write-rename-write dance arrives as one
// change.
type Debouncer struct {
	mu       sync.Mutex
	pending  map[unique.Handle[string]]ports.WatchOp
	timer    *time.Timer
	window   time.Duration
	callback func(events []ports.WatchEvent)
}

// NewDebouncer creates a new debouncer with the given time window and callback.
func NewDebouncer(window time.Duration, callback func(events []ports.WatchEvent)) *Debouncer {
	return &Debouncer{
		pending:  make(map[unique.Handle[string]]ports.WatchOp),
		window:   window,
		callback: callback,
	}
}

// Add records an event and restarts the debounce window.
func (d *Debouncer) Add(event ports.WatchEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	handle := unique.Make(event.Path)
	d.pending[handle] = mergeOps(d.pending[handle], event.Operation)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

// mergeOps picks the operation a batched event should carry when several
// operations hit the same path within one window. Later operations win, with
// two exceptions: a remove followed by a create is a write (the file exists
// again and must be re-read), and a create followed by a write stays a create
// (a brand-new file arrives as create+write, and only create handling lets it
// satisfy imports that previously failed to resolve).
func mergeOps(earlier, later ports.WatchOp) ports.WatchOp {
	switch {
	case (earlier == ports.OpRemove || earlier == ports.OpRename) && later == ports.OpCreate:
		return ports.OpWrite
	case earlier == ports.OpCreate && later == ports.OpWrite:
		return ports.OpCreate
	}
	return later
}

// fire is called when the debounce window expires.
func (d *Debouncer) fire() {
	d.mu.Lock()

	// Nothing to do if Flush already drained the set.
	if len(d.pending) == 0 {
		d.timer = nil
		d.mu.Unlock()
		return
	}

	events := d.drainLocked()
	d.timer = nil
	d.mu.Unlock()

	if len(events) > 0 && d.callback != nil {
		go d.callback(events)
	}
}

// Flush immediately delivers all pending events, synchronously. It is meant
// for shutdown, where the last batch must complete before the caller exits.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		if !d.timer.Stop() {
			// The timer already fired; let it deliver rather than delivering twice.
			d.mu.Unlock()
			return
		}
		d.timer = nil
	}
	events := d.drainLocked()
	d.mu.Unlock()

	if len(events) > 0 && d.callback != nil {
		d.callback(events)
	}
}

func (d *Debouncer) drainLocked() []ports.WatchEvent {
	events := make([]ports.WatchEvent, 0, len(d.pending))
	for handle, op := range d.pending {
		events = append(events, ports.WatchEvent{Path: handle.Value(), Operation: op})
	}
	d.pending = make(map[unique.Handle[string]]ports.WatchOp)
	return events
}
