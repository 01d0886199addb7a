package engine

import (
	"context"
	"fmt"
	"slices"

	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
	"github.com/randalmurphal/taskgraph/internal/risk"
	"github.com/randalmurphal/taskgraph/internal/schedule"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// Today returns the engine's current calendar date.
func (e *Engine) Today() string {
	return task.Today(e.now())
}

// Risks returns the risk assessments for the current graph, critical first.
// Results are cached per store version and day; concurrent callers share
// one computation.
func (e *Engine) Risks() []risk.Assessment {
	snap := e.store.Snapshot()
	today := e.Today()
	key := fmt.Sprintf("%d@%s", snap.Version, today)

	e.riskMu.Lock()
	if e.riskKey == key {
		list := slices.Clone(e.riskList)
		e.riskMu.Unlock()
		return list
	}
	e.riskMu.Unlock()

	v, _, _ := e.riskGroup.Do(key, func() (any, error) {
		list := e.analyzer.Analyze(snap.Views(), today)
		e.riskMu.Lock()
		e.riskKey = key
		e.riskList = list
		e.riskMu.Unlock()
		return list, nil
	})
	return slices.Clone(v.([]risk.Assessment))
}

// ScheduledTask is a task with its computed slot.
type ScheduledTask struct {
	schedule.Slot
	Title    string        `json:"title"`
	Status   task.Status   `json:"status"`
	Priority task.Priority `json:"priority"`
}

// ScheduledView orders a project's open tasks by dependency and assigns
// dates starting today. The order is recorded in the store's schedule index.
// PersonalProjectID selects personal tasks.
func (e *Engine) ScheduledView(projectID string) ([]ScheduledTask, error) {
	snap := e.store.Snapshot()
	if projectID != task.PersonalProjectID && snap.Project(projectID) == nil {
		return nil, tgerrors.ErrProjectNotFound(projectID)
	}
	tasks := snap.TasksIn(projectID)

	slots := schedule.Assign(tasks, e.Today(), schedule.Options{Estimator: e.estimator, SkipDone: true})
	byID := task.Index(tasks)
	out := make([]ScheduledTask, 0, len(slots))
	order := make([]string, 0, len(slots))
	for _, s := range slots {
		t := byID[s.TaskID]
		out = append(out, ScheduledTask{Slot: s, Title: t.Title, Status: t.Status, Priority: t.Priority})
		order = append(order, s.TaskID)
	}
	e.store.SetSchedule(projectID, order)
	return out, nil
}

// ApplySchedule writes the scheduled dates back onto the project's tasks.
// Tasks whose dates already match are left untouched. Returns the number of
// tasks changed.
func (e *Engine) ApplySchedule(ctx context.Context, projectID string) (int, error) {
	view, err := e.ScheduledView(projectID)
	if err != nil {
		return 0, err
	}

	snap := e.store.Snapshot()
	changed := 0
	for _, st := range view {
		t, _, ok := snap.Task(st.TaskID)
		if !ok || (t.StartDate == st.Start && t.EndDate == st.End) {
			continue
		}
		start, end := st.Start, st.End
		if _, err := e.store.UpdateTask(ctx, projectID, st.TaskID, task.Patch{StartDate: &start, EndDate: &end}); err != nil {
			if tgerrors.HasCode(err, tgerrors.CodeTaskNotFound) {
				// Removed by a hook since the view was computed.
				continue
			}
			return changed, fmt.Errorf("apply schedule to %s: %w", st.TaskID, err)
		}
		changed++
	}
	return changed, nil
}
