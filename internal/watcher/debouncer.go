package watcher

import (
	"os"
	"sync"
	"time"
)

// deleteInterval is how long a removal must stick before it counts.
// Atomic saves remove and recreate the target within this window.
const deleteInterval = 100 * time.Millisecond

type pendingEntry struct {
	timer *time.Timer
}

// Debouncer coalesces rapid change events per path and fires after a
// quiet period.
type Debouncer struct {
	mu             sync.Mutex
	pending        map[string]*pendingEntry
	pendingDeletes map[string]*pendingEntry
	interval       time.Duration
	callback       func(path string)
	deleteCallback func(path string)
	stopped        bool
}

// NewDebouncer creates a debouncer that calls callback once a path has been
// quiet for interval.
func NewDebouncer(interval time.Duration, callback func(path string)) *Debouncer {
	return &Debouncer{
		pending:        make(map[string]*pendingEntry),
		pendingDeletes: make(map[string]*pendingEntry),
		interval:       interval,
		callback:       callback,
	}
}

// SetDeleteCallback sets the callback for verified removals.
func (d *Debouncer) SetDeleteCallback(callback func(path string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleteCallback = callback
}

// Trigger registers a change to path, restarting its quiet period.
func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if entry, ok := d.pending[path]; ok {
		entry.timer.Reset(d.interval)
		return
	}
	d.pending[path] = &pendingEntry{
		timer: time.AfterFunc(d.interval, func() { d.fire(path) }),
	}
}

func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	if _, ok := d.pending[path]; !ok || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	d.mu.Unlock()

	d.callback(path)
}

// TriggerDelete schedules a check that path is really gone.
func (d *Debouncer) TriggerDelete(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if entry, ok := d.pendingDeletes[path]; ok {
		entry.timer.Reset(deleteInterval)
		return
	}
	d.pendingDeletes[path] = &pendingEntry{
		timer: time.AfterFunc(deleteInterval, func() { d.fireDelete(path) }),
	}
}

// CancelDelete drops a pending removal check, used when path reappears.
func (d *Debouncer) CancelDelete(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.pendingDeletes[path]; ok {
		entry.timer.Stop()
		delete(d.pendingDeletes, path)
	}
}

func (d *Debouncer) fireDelete(path string) {
	d.mu.Lock()
	if _, ok := d.pendingDeletes[path]; !ok || d.stopped {
		d.mu.Unlock()
		return
	}
	callback := d.deleteCallback
	delete(d.pendingDeletes, path)
	d.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return
	}
	if callback != nil {
		callback(path)
	}
}

// Stop cancels all pending timers and ignores further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for path, entry := range d.pending {
		entry.timer.Stop()
		delete(d.pending, path)
	}
	for path, entry := range d.pendingDeletes {
		entry.timer.Stop()
		delete(d.pendingDeletes, path)
	}
}

// PendingCount returns the number of pending change events.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
