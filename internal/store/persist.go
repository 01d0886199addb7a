package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Persister coalesces bursts of changes into a single save.
// Each Schedule resets the quiet-period timer; the save fires once the
// burst is over. Failures are logged and never roll back in-memory state.
type Persister struct {
	mu       sync.Mutex
	timer    *time.Timer
	dirty    bool
	stopped  bool
	interval time.Duration
	save     func(ctx context.Context) error
	logger   *slog.Logger

	// saveMu keeps a timer-driven save and Flush from overlapping.
	saveMu sync.Mutex
}

// NewPersister creates a persister. A non-positive interval saves synchronously
// on every Schedule call.
func NewPersister(interval time.Duration, save func(ctx context.Context) error, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		interval: interval,
		save:     save,
		logger:   logger,
	}
}

// Schedule marks state dirty and (re)starts the debounce timer.
func (p *Persister) Schedule() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.dirty = true
	if p.interval <= 0 {
		p.mu.Unlock()
		p.fire()
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.interval, p.fire)
	p.mu.Unlock()
}

// Pending reports whether a save is waiting to fire.
func (p *Persister) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

func (p *Persister) fire() {
	if err := p.run(context.Background()); err != nil {
		p.logger.Warn("persist tasks failed", "error", err)
	}
}

func (p *Persister) run(ctx context.Context) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return nil
	}
	p.dirty = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	return p.save(ctx)
}

// Flush saves immediately if anything is pending.
func (p *Persister) Flush(ctx context.Context) error {
	return p.run(ctx)
}

// Close flushes pending state and stops accepting new work.
func (p *Persister) Close(ctx context.Context) error {
	err := p.Flush(ctx)
	p.mu.Lock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()
	return err
}
