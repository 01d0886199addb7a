package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/taskgraph/internal/automation"
	"github.com/randalmurphal/taskgraph/internal/config"
	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
	"github.com/randalmurphal/taskgraph/internal/events"
	"github.com/randalmurphal/taskgraph/internal/recurrence"
	"github.com/randalmurphal/taskgraph/internal/risk"
	"github.com/randalmurphal/taskgraph/internal/storage"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// Friday.
var testNow = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Storage.Debounce = 0
	return cfg
}

func idGen() task.IDGenerator {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

func newEngine(t *testing.T, cfg *config.Config, backend storage.Backend) *Engine {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	e := New(cfg, backend, nil, nil,
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(idGen()),
	)
	e.Open(context.Background())
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func launchProject(t *testing.T, e *Engine) *task.Project {
	t.Helper()
	p, err := e.Store().AddProject(context.Background(), "Launch", "", []task.Draft{
		{ID: "design", Title: "Design"},
		{ID: "build", Title: "Build", DependencyIDs: []string{"design"}},
		{ID: "ship", Title: "Ship", DependencyIDs: []string{"build"}},
	})
	require.NoError(t, err)
	return p
}

func statusOf(t *testing.T, e *Engine, id string) task.Status {
	t.Helper()
	v, ok := e.Store().Task(id)
	require.True(t, ok, "task %s missing", id)
	return v.Status
}

func drain(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestEngine_CascadeAndRulesOnCompletion(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)
	p := launchProject(t, e)

	_, err := e.Rules().RegisterRule(ctx, automation.Rule{
		Name:     "Tag finished",
		IsActive: true,
		Trigger:  automation.Trigger{Type: automation.TriggerStatusChange, Value: "done"},
		Actions:  []automation.Action{{Type: automation.ActionAddTag, Value: "DONE"}},
	})
	require.NoError(t, err)

	require.NoError(t, e.Store().UpdateTaskStatus(ctx, p.ID, "design", task.StatusDone))

	assert.Equal(t, task.StatusInProgress, statusOf(t, e, "build"))
	assert.Equal(t, task.StatusTodo, statusOf(t, e, "ship"))

	design, _ := e.Store().Task("design")
	assert.Equal(t, []string{"DONE"}, design.Tags)
	build, _ := e.Store().Task("build")
	assert.Empty(t, build.Tags)
}

func TestEngine_CascadeDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Automation.CascadeOnComplete = false
	e := newEngine(t, cfg, nil)
	p := launchProject(t, e)

	require.NoError(t, e.Store().UpdateTaskStatus(ctx, p.ID, "design", task.StatusDone))
	assert.Equal(t, task.StatusTodo, statusOf(t, e, "build"))
}

func TestEngine_AutomationDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Automation.Enabled = false
	e := newEngine(t, cfg, nil)
	p := launchProject(t, e)

	_, err := e.Rules().RegisterRule(ctx, automation.Rule{
		Name:     "Tag finished",
		IsActive: true,
		Trigger:  automation.Trigger{Type: automation.TriggerStatusChange, Value: "done"},
		Actions:  []automation.Action{{Type: automation.ActionAddTag, Value: "DONE"}},
	})
	require.NoError(t, err)
	require.NoError(t, e.Store().UpdateTaskStatus(ctx, p.ID, "design", task.StatusDone))

	design, _ := e.Store().Task("design")
	assert.Empty(t, design.Tags)
}

func TestEngine_PublishesChangeEvents(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)
	ch := e.Events().Subscribe(events.GlobalTopic)

	p := launchProject(t, e)
	require.NoError(t, e.Store().UpdateTaskStatus(ctx, p.ID, "ship", task.StatusInProgress))
	require.NoError(t, e.Store().MoveTask(ctx, "ship", p.ID, task.PersonalProjectID))
	require.NoError(t, e.Store().DeleteTask(ctx, task.PersonalProjectID, "ship"))
	require.NoError(t, e.Store().RemoveProject(ctx, p.ID))

	var types []events.EventType
	for _, ev := range drain(ch) {
		if ev.Type != events.EventNotification {
			types = append(types, ev.Type)
		}
	}
	assert.Equal(t, []events.EventType{
		events.EventProjectCreated,
		events.EventTaskCreated, events.EventTaskCreated, events.EventTaskCreated,
		events.EventTaskUpdated,
		events.EventTaskMoved,
		events.EventTaskDeleted,
		events.EventTaskDeleted, events.EventTaskDeleted,
		events.EventProjectRemoved,
	}, types)
}

func TestDiffSnapshots_StatusChangeCarriesPrevious(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)
	p := launchProject(t, e)

	prev := e.Store().Snapshot()
	require.NoError(t, e.Store().UpdateTaskStatus(ctx, p.ID, "ship", task.StatusInProgress))
	curr := e.Store().Snapshot()

	evs := diffSnapshots(prev, curr)
	require.Len(t, evs, 1)
	assert.Equal(t, events.EventTaskUpdated, evs[0].Type)
	assert.Equal(t, "ship", evs[0].TaskID)
	ch, ok := evs[0].Data.(events.TaskChange)
	require.True(t, ok)
	assert.Equal(t, "todo", ch.PrevStatus)
	assert.Equal(t, "in-progress", ch.Status)

	assert.Empty(t, diffSnapshots(curr, curr))
	assert.Len(t, diffSnapshots(nil, curr), 4)
}

func TestEngine_PersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	cfg := testConfig()
	cfg.Storage.Debounce = time.Hour

	e := New(cfg, backend, nil, nil, WithClock(func() time.Time { return testNow }), WithIDGenerator(idGen()))
	e.Open(ctx)
	launchProject(t, e)
	_, err := e.Rules().RegisterRule(ctx, automation.Rule{
		Name:     "Notify on high",
		IsActive: true,
		Trigger:  automation.Trigger{Type: automation.TriggerPriorityChange, Value: "high"},
		Actions:  []automation.Action{{Type: automation.ActionSendNotification}},
	})
	require.NoError(t, err)
	_, err = e.Recurrence().Add(ctx, recurrence.Template{Title: "Standup", Frequency: recurrence.FrequencyDaily, IsActive: true})
	require.NoError(t, err)
	require.NoError(t, e.Close(ctx))
	require.NoError(t, e.Close(ctx), "second close is a no-op")

	reopened := newEngine(t, testConfig(), backend)
	assert.Equal(t, 3, reopened.Store().Snapshot().Len())
	assert.Len(t, reopened.Rules().Rules(), 1)
	assert.Len(t, reopened.Recurrence().List(), 1)
}

func TestEngine_RunEvaluatesMonitorsOnce(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)

	_, err := e.Store().AddTask(ctx, task.PersonalProjectID, task.Draft{Title: "Late", EndDate: "2026-04-08"})
	require.NoError(t, err)
	_, err = e.Recurrence().Add(ctx, recurrence.Template{Title: "Standup", Frequency: recurrence.FrequencyDaily, IsActive: true})
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, e.Run(runCtx))

	var overdue int
	for _, n := range e.Inbox().All() {
		if n.Title == "Task overdue" {
			overdue++
		}
	}
	assert.Equal(t, 1, overdue)

	var standups int
	for _, tk := range e.Store().Snapshot().TasksIn(task.PersonalProjectID) {
		if tk.Title == "Standup" {
			standups++
			assert.True(t, tk.HasTag(recurrence.RecurringTag))
		}
	}
	assert.Equal(t, 1, standups)
}

func TestEngine_RunReloadsExternalEdits(t *testing.T) {
	dir := t.TempDir()
	fb, err := storage.NewFileBackend(dir)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Storage.Backend = config.BackendFile
	cfg.Storage.Path = dir
	e := newEngine(t, cfg, fb)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()
	time.Sleep(100 * time.Millisecond)

	other, err := storage.NewFileBackend(dir)
	require.NoError(t, err)
	require.NoError(t, other.SaveRules(context.Background(), []*automation.Rule{{
		ID:       "r-ext",
		Name:     "Added elsewhere",
		IsActive: true,
		Trigger:  automation.Trigger{Type: automation.TriggerPriorityChange, Value: "high"},
		Actions:  []automation.Action{{Type: automation.ActionSendNotification}},
	}}))

	require.Eventually(t, func() bool { return len(e.Rules().Rules()) == 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "Added elsewhere", e.Rules().Rules()[0].Name)
}

func TestEngine_ReloadTasks(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	e := newEngine(t, nil, backend)

	require.NoError(t, backend.SaveTasks(ctx, []*task.Project{{ID: "p1", Title: "Elsewhere"}}, nil))
	assert.Empty(t, e.Store().Projects())

	e.Reload(ctx, "unrelated.yaml")
	assert.Empty(t, e.Store().Projects())

	e.Reload(ctx, storage.TasksFile)
	require.Len(t, e.Store().Projects(), 1)
	assert.Equal(t, "Elsewhere", e.Store().Projects()[0].Title)
}

func TestEngine_RisksCachedPerVersion(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)

	_, err := e.Store().AddTask(ctx, task.PersonalProjectID, task.Draft{Title: "Late", EndDate: "2026-04-08"})
	require.NoError(t, err)

	first := e.Risks()
	require.Len(t, first, 1)
	assert.Equal(t, risk.LevelCritical, first[0].Level)

	first[0].Title = "mutated"
	again := e.Risks()
	assert.Equal(t, "Late", again[0].Title, "cached list must not be shared")

	_, err = e.Store().AddTask(ctx, task.PersonalProjectID, task.Draft{Title: "Also late", EndDate: "2026-04-09"})
	require.NoError(t, err)
	assert.Len(t, e.Risks(), 2)
}

func TestEngine_ScheduleViewAndApply(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)
	p := launchProject(t, e)

	view, err := e.ScheduledView(p.ID)
	require.NoError(t, err)
	require.Len(t, view, 3)
	assert.Equal(t, "design", view[0].TaskID)
	assert.Equal(t, "2026-04-10", view[0].Start)
	assert.Equal(t, view[0].End, view[1].Start)
	assert.Equal(t, view[1].End, view[2].Start)

	order, ok := e.Store().Schedule(p.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"design", "build", "ship"}, order)

	n, err := e.ApplySchedule(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	build, _ := e.Store().Task("build")
	assert.Equal(t, view[1].Start, build.StartDate)
	assert.Equal(t, view[1].End, build.EndDate)

	n, err = e.ApplySchedule(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "applying twice changes nothing")

	_, err = e.ScheduledView("missing")
	assert.True(t, tgerrors.HasCode(err, tgerrors.CodeProjectNotFound))
}

func TestEngine_ImportPlanNewProject(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)

	raw := "Here is your plan:\n```json\n" +
		`{"tasks":[{"title":"Design","durationDays":2,"startDayOffset":0},` +
		`{"title":"Build","durationDays":3,"startDayOffset":2,"dependencyIndices":[0,7]}]}` +
		"\n```"
	res, err := e.ImportPlan(ctx, ImportTarget{NewProjectTitle: "Website"}, raw)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 2)
	assert.NotEmpty(t, res.Issues, "out of range index is reported")

	p := e.Store().Snapshot().Project(res.ProjectID)
	require.NotNil(t, p)
	assert.Equal(t, "Website", p.Title)

	design, build := res.Tasks[0], res.Tasks[1]
	assert.Equal(t, "2026-04-10", design.StartDate)
	assert.Equal(t, "2026-04-12", design.EndDate)
	assert.Equal(t, "2026-04-12", build.StartDate)
	assert.Equal(t, "2026-04-15", build.EndDate)
	assert.Equal(t, []string{design.ID}, build.DependencyIDs)
}

func TestEngine_ImportPlanExistingProject(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)
	p := launchProject(t, e)

	res, err := e.ImportPlan(ctx, ImportTarget{ProjectID: p.ID}, `[{"title":"Docs"}]`)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)
	assert.Len(t, e.Store().Snapshot().TasksIn(p.ID), 4)

	_, err = e.ImportPlan(ctx, ImportTarget{ProjectID: "missing"}, `[{"title":"Docs"}]`)
	assert.True(t, tgerrors.HasCode(err, tgerrors.CodeProjectNotFound))
}

func TestEngine_UnusableAIOutput(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)
	before := e.Store().Version()

	_, err := e.ImportPlan(ctx, ImportTarget{NewProjectTitle: "X"}, "I could not produce a plan.")
	assert.True(t, tgerrors.HasCode(err, tgerrors.CodeNoSuggestion))

	_, err = e.AcceptSuggestion(ctx, "", `{"title":""}`)
	assert.True(t, tgerrors.HasCode(err, tgerrors.CodeNoSuggestion))

	assert.Equal(t, before, e.Store().Version(), "no mutation on unusable output")

	var aiErrors int
	for _, n := range e.Inbox().All() {
		if n.Title == AIErrorTitle {
			aiErrors++
		}
	}
	assert.Equal(t, 2, aiErrors)
}

func TestEngine_AcceptSuggestion(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)

	tk, err := e.AcceptSuggestion(ctx, "", `{"title":"Call the **vendor**","priority":"urgent"}`)
	require.NoError(t, err)
	assert.Equal(t, "Call the vendor", tk.Title)
	assert.Equal(t, task.PriorityHigh, tk.Priority)

	_, projectID, ok := e.Store().Snapshot().Task(tk.ID)
	require.True(t, ok)
	assert.Equal(t, task.PersonalProjectID, projectID)
}
