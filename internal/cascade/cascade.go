// Package cascade advances dependents when the tasks they wait on complete.
package cascade

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/taskgraph/internal/store"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// Store is the subset of the task store the resolver needs.
type Store interface {
	Snapshot() *store.Snapshot
	UpdateTaskStatus(ctx context.Context, projectID, taskID string, status task.Status) error
}

// Resolver moves dependents from todo to in-progress once every one of their
// dependencies is done. It never completes a task.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// New creates a resolver.
func New(s Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: s, logger: logger}
}

// OnTaskCompleted advances the dependents of taskID that are now unblocked.
// Returns the IDs of the tasks it advanced. It always reads the current
// snapshot, so a stale caller view cannot cause a double transition.
func (r *Resolver) OnTaskCompleted(ctx context.Context, taskID string) ([]string, error) {
	snap := r.store.Snapshot()
	completed, _, ok := snap.Task(taskID)
	if !ok || !completed.IsDone() {
		return nil, nil
	}

	byID := snap.Index()
	var advanced []string
	for _, dep := range task.Dependents(taskID, snap.Tasks()) {
		if dep.Status != task.StatusTodo || dep.HasUnmetDependencies(byID) {
			continue
		}
		_, projectID, _ := snap.Task(dep.ID)
		if err := r.store.UpdateTaskStatus(ctx, projectID, dep.ID, task.StatusInProgress); err != nil {
			return advanced, err
		}
		r.logger.Info("dependencies met, task started",
			"task", dep.ID,
			"completed", taskID)
		advanced = append(advanced, dep.ID)
	}
	return advanced, nil
}

// Hook returns a store hook that runs OnTaskCompleted for every task that
// transitioned to done in the mutation.
func (r *Resolver) Hook() store.Hook {
	return func(ctx context.Context, prev, curr *store.Snapshot) {
		for _, id := range CompletedIn(prev, curr) {
			if _, err := r.OnTaskCompleted(ctx, id); err != nil {
				r.logger.Warn("cascade failed", "task", id, "error", err)
			}
		}
	}
}

// CompletedIn returns the IDs of tasks that are done in curr but were not
// done (or did not exist) in prev.
func CompletedIn(prev, curr *store.Snapshot) []string {
	var ids []string
	for _, t := range curr.Tasks() {
		if !t.IsDone() {
			continue
		}
		if old, _, ok := prev.Task(t.ID); ok && old.IsDone() {
			continue
		}
		ids = append(ids, t.ID)
	}
	return ids
}
