package store

import (
	"context"
	"fmt"
)

// Hook observes a completed mutation. prev and curr are immutable snapshots.
//
// A hook may issue further mutations, but it must pass the ctx it was given:
// that is how the store recognizes them as part of the running cycle. Such
// mutations apply immediately and their own hook cycle runs after the current
// one finishes, before the outermost mutation returns.
type Hook func(ctx context.Context, prev, curr *Snapshot)

type namedHook struct {
	name string
	fn   Hook
}

type change struct {
	prev, curr *Snapshot
	depth      int
}

type cycleKey struct{}

// cycleDepth reports whether ctx belongs to a running hook cycle, and its depth.
func cycleDepth(ctx context.Context) (int, bool) {
	d, ok := ctx.Value(cycleKey{}).(int)
	return d, ok
}

// AddHook registers a hook. Hooks run in registration order.
func (s *Store) AddHook(name string, fn Hook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, namedHook{name: name, fn: fn})
}

func (s *Store) hookList() []namedHook {
	s.hookMu.RLock()
	defer s.hookMu.RUnlock()
	return append([]namedHook(nil), s.hooks...)
}

// mutate applies fn under the state lock and runs the hook cycle.
// fn reports whether anything changed; an unchanged state skips hooks and persistence.
func (s *Store) mutate(ctx context.Context, fn func() (bool, error)) error {
	depth, nested := cycleDepth(ctx)
	if !nested {
		s.opMu.Lock()
		defer s.opMu.Unlock()
	}

	s.mu.Lock()
	prev := newSnapshot(s.version, s.projects, s.personal)
	changed, err := fn()
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}
	s.version++
	curr := newSnapshot(s.version, s.projects, s.personal)
	s.mu.Unlock()

	s.deliver(ctx)
	if s.persister != nil {
		s.persister.Schedule()
	}

	c := change{prev: prev, curr: curr, depth: depth}
	if nested {
		s.hookMu.Lock()
		s.pending = append(s.pending, c)
		s.hookMu.Unlock()
		return nil
	}
	s.dispatch(ctx, c)
	return nil
}

// dispatch runs hooks for c and then for every mutation the hooks issued,
// breadth-first, until the queue drains.
func (s *Store) dispatch(ctx context.Context, first change) {
	queue := []change{first}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		if c.depth >= s.maxDepth {
			s.logger.Warn("hook nesting limit reached, skipping hooks",
				"depth", c.depth,
				"version", c.curr.Version)
			continue
		}

		hctx := context.WithValue(ctx, cycleKey{}, c.depth+1)
		for _, h := range s.hookList() {
			s.runHook(hctx, h, c)
		}

		s.hookMu.Lock()
		queue = append(queue, s.pending...)
		s.pending = nil
		s.hookMu.Unlock()
	}
}

func (s *Store) runHook(ctx context.Context, h namedHook, c change) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("hook panicked", "hook", h.name, "error", fmt.Sprint(r))
		}
	}()
	h.fn(ctx, c.prev, c.curr)
}
