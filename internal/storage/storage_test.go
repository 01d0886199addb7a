package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/taskgraph/internal/automation"
	"github.com/randalmurphal/taskgraph/internal/config"
	"github.com/randalmurphal/taskgraph/internal/db"
	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
	"github.com/randalmurphal/taskgraph/internal/recurrence"
	"github.com/randalmurphal/taskgraph/internal/task"
)

var fixedTime = time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)

func sampleGraph() ([]*task.Project, []*task.Task) {
	design := task.New("t1", "Design", fixedTime)
	design.Status = task.StatusDone
	design.Tags = []string{"work"}
	design.EndDate = "2026-04-12"
	design.Comments = []task.Comment{{ID: "c1", Text: "looks good", CreatedAt: fixedTime}}

	build := task.New("t2", "Build", fixedTime)
	build.DependencyIDs = []string{"t1"}
	build.Priority = task.PriorityHigh
	build.Focus = true
	build.FocusOrder = 2

	errand := task.New("t3", "Buy milk", fixedTime)

	projects := []*task.Project{{
		ID:        "p1",
		Title:     "Launch",
		Color:     "#ff0000",
		CreatedAt: fixedTime,
		Tasks:     []*task.Task{design, build},
	}}
	return projects, []*task.Task{errand}
}

func sampleRules() []*automation.Rule {
	fired := fixedTime.Add(time.Hour)
	return []*automation.Rule{{
		ID:       "r1",
		Name:     "Tag finished work",
		IsActive: true,
		Trigger:  automation.Trigger{Type: automation.TriggerStatusChange, Value: "done"},
		Actions: []automation.Action{
			{Type: automation.ActionAddTag, Value: "DONE"},
			{Type: automation.ActionSendNotification, Params: map[string]string{"severity": "warning"}},
		},
		CreatedAt:       fixedTime,
		UpdatedAt:       fixedTime,
		LastTriggeredAt: &fired,
		TriggerCount:    3,
	}}
}

func sampleTemplates() []*recurrence.Template {
	return []*recurrence.Template{{
		ID:          "tpl1",
		ProjectID:   "p1",
		Title:       "Standup notes",
		Priority:    task.PriorityLow,
		Tags:        []string{"meeting"},
		Frequency:   recurrence.FrequencyWeekly,
		DaysOfWeek:  []int{1, 3},
		LastCreated: "2026-04-08",
		IsActive:    true,
		CreatedAt:   fixedTime,
	}}
}

// backends returns one instance of every backend kind.
func backends(t *testing.T) map[string]Backend {
	t.Helper()
	fb, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return map[string]Backend{
		"file":     fb,
		"memory":   NewMemoryBackend(),
		"database": NewDatabaseBackend(db.NewTestDB(t), nil),
	}
}

func TestBackends_EmptyLoad(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			projects, personal, err := b.LoadTasks(ctx)
			require.NoError(t, err)
			assert.Empty(t, projects)
			assert.Empty(t, personal)

			rules, err := b.LoadRules(ctx)
			require.NoError(t, err)
			assert.Empty(t, rules)

			templates, err := b.LoadTemplates(ctx)
			require.NoError(t, err)
			assert.Empty(t, templates)
		})
	}
}

func TestBackends_TaskRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			projects, personal := sampleGraph()
			require.NoError(t, b.SaveTasks(ctx, projects, personal))

			gotProjects, gotPersonal, err := b.LoadTasks(ctx)
			require.NoError(t, err)

			require.Len(t, gotProjects, 1)
			p := gotProjects[0]
			assert.Equal(t, "p1", p.ID)
			assert.Equal(t, "Launch", p.Title)
			assert.Equal(t, "#ff0000", p.Color)
			assert.True(t, p.CreatedAt.Equal(fixedTime))

			require.Len(t, p.Tasks, 2)
			assert.Equal(t, "t1", p.Tasks[0].ID)
			assert.Equal(t, task.StatusDone, p.Tasks[0].Status)
			assert.Equal(t, []string{"work"}, p.Tasks[0].Tags)
			assert.Equal(t, "2026-04-12", p.Tasks[0].EndDate)
			require.Len(t, p.Tasks[0].Comments, 1)
			assert.Equal(t, "looks good", p.Tasks[0].Comments[0].Text)

			assert.Equal(t, "t2", p.Tasks[1].ID)
			assert.Equal(t, []string{"t1"}, p.Tasks[1].DependencyIDs)
			assert.Equal(t, task.PriorityHigh, p.Tasks[1].Priority)
			assert.True(t, p.Tasks[1].Focus)
			assert.Equal(t, 2, p.Tasks[1].FocusOrder)

			require.Len(t, gotPersonal, 1)
			assert.Equal(t, "Buy milk", gotPersonal[0].Title)
			assert.True(t, gotPersonal[0].UpdatedAt.Equal(fixedTime))
		})
	}
}

func TestBackends_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			projects, personal := sampleGraph()
			require.NoError(t, b.SaveTasks(ctx, projects, personal))
			require.NoError(t, b.SaveTasks(ctx, nil, personal))

			gotProjects, gotPersonal, err := b.LoadTasks(ctx)
			require.NoError(t, err)
			assert.Empty(t, gotProjects)
			assert.Len(t, gotPersonal, 1)
		})
	}
}

func TestBackends_RuleRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.SaveRules(ctx, sampleRules()))

			rules, err := b.LoadRules(ctx)
			require.NoError(t, err)
			require.Len(t, rules, 1)

			r := rules[0]
			assert.Equal(t, "r1", r.ID)
			assert.True(t, r.IsActive)
			assert.Equal(t, automation.TriggerStatusChange, r.Trigger.Type)
			assert.Equal(t, "done", r.Trigger.Value)
			require.Len(t, r.Actions, 2)
			assert.Equal(t, automation.ActionAddTag, r.Actions[0].Type)
			assert.Equal(t, "warning", r.Actions[1].Params["severity"])
			assert.Equal(t, 3, r.TriggerCount)
			require.NotNil(t, r.LastTriggeredAt)
			assert.True(t, r.LastTriggeredAt.Equal(fixedTime.Add(time.Hour)))
		})
	}
}

func TestBackends_TemplateRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.SaveTemplates(ctx, sampleTemplates()))

			templates, err := b.LoadTemplates(ctx)
			require.NoError(t, err)
			require.Len(t, templates, 1)

			tpl := templates[0]
			assert.Equal(t, "tpl1", tpl.ID)
			assert.Equal(t, "p1", tpl.ProjectID)
			assert.Equal(t, recurrence.FrequencyWeekly, tpl.Frequency)
			assert.Equal(t, []int{1, 3}, tpl.DaysOfWeek)
			assert.Equal(t, "2026-04-08", tpl.LastCreated)
			assert.Equal(t, task.PriorityLow, tpl.Priority)
			assert.True(t, tpl.IsActive)
		})
	}
}

func TestMemoryBackend_CopiesOnSave(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	projects, personal := sampleGraph()
	require.NoError(t, b.SaveTasks(ctx, projects, personal))
	projects[0].Tasks[0].Title = "mutated"

	got, _, err := b.LoadTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Design", got[0].Tasks[0].Title)

	got[0].Title = "mutated again"
	again, _, err := b.LoadTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Launch", again[0].Title)
	assert.Equal(t, 1, b.Saves())
}

func TestFileBackend_WritesYAML(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "data")
	b, err := NewFileBackend(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, b.Dir())

	projects, personal := sampleGraph()
	require.NoError(t, b.SaveTasks(ctx, projects, personal))

	data, err := os.ReadFile(filepath.Join(dir, TasksFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "version: 1")
	assert.Contains(t, string(data), "title: Launch")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}
}

func TestFileBackend_OnWrite(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	var seen []string
	var last []byte
	b.OnWrite(func(path string, data []byte) {
		seen = append(seen, filepath.Base(path))
		last = data
	})
	require.NoError(t, b.SaveRules(context.Background(), nil))

	assert.Equal(t, []string{RulesFile}, seen)
	onDisk, err := os.ReadFile(filepath.Join(dir, RulesFile))
	require.NoError(t, err)
	assert.Equal(t, onDisk, last)
}

func TestFileBackend_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, RulesFile), []byte("rules: [unclosed"), 0644))

	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	_, err = b.LoadRules(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), RulesFile)
}

func TestFileBackend_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TemplatesFile), []byte("\n"), 0644))

	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	templates, err := b.LoadTemplates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestDatabaseBackend_OrphanTasksBecomePersonal(t *testing.T) {
	ctx := context.Background()
	database := db.NewTestDB(t)
	require.NoError(t, database.SaveGraph(ctx, nil, []db.Task{
		{ID: "a", ProjectID: "gone", Title: "Orphan", Status: "todo", Priority: "medium"},
		{ID: "b", ProjectID: task.PersonalProjectID, Title: "Mine", Status: "todo", Priority: "medium"},
	}))

	b := NewDatabaseBackend(database, nil)
	projects, personal, err := b.LoadTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
	require.Len(t, personal, 2)
	assert.Equal(t, "a", personal[0].ID)
	assert.Equal(t, "b", personal[1].ID)
}

func TestDatabaseBackend_SkipsCorruptRules(t *testing.T) {
	ctx := context.Background()
	database := db.NewTestDB(t)
	require.NoError(t, database.SaveRules(ctx, []db.Rule{
		{ID: "bad", Name: "Bad", Trigger: "{not json", Actions: "[]", CreatedAt: fixedTime, UpdatedAt: fixedTime},
		{ID: "good", Name: "Good", Trigger: `{"type":"tag_added","value":"x"}`, Actions: `[]`, CreatedAt: fixedTime, UpdatedAt: fixedTime},
	}))

	rules, err := NewDatabaseBackend(database, nil).LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "good", rules[0].ID)
	assert.Nil(t, rules[0].LastTriggeredAt)
}

func TestNewBackend(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		want    string
		wantErr tgerrors.Code
	}{
		{name: "file", cfg: config.StorageConfig{Backend: config.BackendFile, Path: dir}, want: "*storage.FileBackend"},
		{name: "default is file", cfg: config.StorageConfig{Path: dir}, want: "*storage.FileBackend"},
		{name: "memory", cfg: config.StorageConfig{Backend: config.BackendMemory}, want: "*storage.MemoryBackend"},
		{name: "sqlite", cfg: config.StorageConfig{Backend: config.BackendSQLite, Path: dir}, want: "*storage.DatabaseBackend"},
		{name: "unknown", cfg: config.StorageConfig{Backend: "mongo"}, wantErr: tgerrors.CodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(tt.cfg, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, tgerrors.HasCode(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })
			assert.Equal(t, tt.want, typeName(b))
		})
	}
}

func TestNewBackend_SQLiteFileCreated(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBackend(config.StorageConfig{Backend: config.BackendSQLite, Path: dir}, nil)
	require.NoError(t, err)
	require.NoError(t, b.SaveRules(context.Background(), sampleRules()))
	require.NoError(t, b.Close())

	_, err = os.Stat(filepath.Join(dir, config.DatabaseFileName))
	assert.NoError(t, err)
}

func typeName(b Backend) string {
	switch b.(type) {
	case *FileBackend:
		return "*storage.FileBackend"
	case *MemoryBackend:
		return "*storage.MemoryBackend"
	case *DatabaseBackend:
		return "*storage.DatabaseBackend"
	default:
		return "unknown"
	}
}
