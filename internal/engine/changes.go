package engine

import (
	"context"

	"github.com/randalmurphal/taskgraph/internal/events"
	"github.com/randalmurphal/taskgraph/internal/store"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// changeHook publishes one event per task or project that differs between
// the snapshots taken around a mutation.
func changeHook(pub events.Publisher) store.Hook {
	return func(_ context.Context, prev, curr *store.Snapshot) {
		for _, ev := range diffSnapshots(prev, curr) {
			pub.Publish(ev)
		}
	}
}

// diffSnapshots returns change events in a stable order: projects created,
// tasks created/updated/moved in curr order, tasks deleted and projects
// removed in prev order.
func diffSnapshots(prev, curr *store.Snapshot) []events.Event {
	if prev == nil {
		prev = &store.Snapshot{}
	}
	if curr == nil {
		curr = &store.Snapshot{}
	}

	var out []events.Event
	for _, p := range curr.Projects {
		if prev.Project(p.ID) == nil {
			out = append(out, events.NewEvent(events.EventProjectCreated, p.ID, "", events.TaskChange{Title: p.Title}))
		}
	}

	for _, v := range curr.Views() {
		t := v.Task
		old, oldProject, ok := prev.Task(t.ID)
		switch {
		case !ok:
			out = append(out, events.NewEvent(events.EventTaskCreated, v.ProjectID, t.ID, events.TaskChange{
				Title:  t.Title,
				Status: string(t.Status),
			}))
		case oldProject != v.ProjectID:
			out = append(out, events.NewEvent(events.EventTaskMoved, v.ProjectID, t.ID, events.TaskChange{
				Title:       t.Title,
				Status:      string(t.Status),
				FromProject: oldProject,
			}))
		case changed(old, t):
			ch := events.TaskChange{Title: t.Title, Status: string(t.Status)}
			if old.Status != t.Status {
				ch.PrevStatus = string(old.Status)
			}
			out = append(out, events.NewEvent(events.EventTaskUpdated, v.ProjectID, t.ID, ch))
		}
	}

	for _, v := range prev.Views() {
		if _, _, ok := curr.Task(v.ID); !ok {
			out = append(out, events.NewEvent(events.EventTaskDeleted, v.ProjectID, v.ID, events.TaskChange{
				Title:  v.Title,
				Status: string(v.Status),
			}))
		}
	}

	for _, p := range prev.Projects {
		if curr.Project(p.ID) == nil {
			out = append(out, events.NewEvent(events.EventProjectRemoved, p.ID, "", events.TaskChange{Title: p.Title}))
		}
	}
	return out
}

func changed(a, b *task.Task) bool {
	return a.Status != b.Status ||
		a.Title != b.Title ||
		a.Priority != b.Priority ||
		!a.UpdatedAt.Equal(b.UpdatedAt)
}
