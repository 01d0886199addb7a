package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewTestDB(t)

	created := time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC)
	projects := []Project{
		{ID: "p2", Title: "Second", Color: "#fff", CreatedAt: created},
		{ID: "p1", Title: "First", Description: "d", CreatedAt: created},
	}
	tasks := []Task{
		{ID: "b", ProjectID: "p1", Title: "B", Status: "todo", Priority: "high", DependencyIDs: []string{"a"}, CreatedAt: created, UpdatedAt: created},
		{ID: "a", ProjectID: "p1", Title: "A", Status: "done", Priority: "medium", Tags: []string{"x", "y"}, Focus: true, FocusOrder: 2, CreatedAt: created, UpdatedAt: created},
		{ID: "c", ProjectID: "personal", Title: "C", Status: "in-progress", Priority: "low", EndDate: "2026-04-10",
			Comments: []Comment{{ID: "c1", Text: "note", CreatedAt: created}}, CreatedAt: created, UpdatedAt: created},
	}
	require.NoError(t, d.SaveGraph(ctx, projects, tasks))

	gotProjects, gotTasks, err := d.LoadGraph(ctx)
	require.NoError(t, err)

	require.Len(t, gotProjects, 2)
	assert.Equal(t, "p2", gotProjects[0].ID, "project order is kept")
	assert.Equal(t, created, gotProjects[0].CreatedAt)

	require.Len(t, gotTasks, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{gotTasks[0].ID, gotTasks[1].ID, gotTasks[2].ID})
	assert.Equal(t, []string{"a"}, gotTasks[0].DependencyIDs)
	assert.Equal(t, []string{"x", "y"}, gotTasks[1].Tags)
	assert.True(t, gotTasks[1].Focus)
	assert.Equal(t, 2, gotTasks[1].FocusOrder)
	require.Len(t, gotTasks[2].Comments, 1)
	assert.Equal(t, "note", gotTasks[2].Comments[0].Text)
	assert.Equal(t, "2026-04-10", gotTasks[2].EndDate)
}

func TestSaveGraphReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewTestDB(t)

	require.NoError(t, d.SaveGraph(ctx, []Project{{ID: "old", Title: "Old"}}, []Task{{ID: "t", ProjectID: "old", Title: "T", Status: "todo", Priority: "medium"}}))
	require.NoError(t, d.SaveGraph(ctx, []Project{{ID: "new", Title: "New"}}, nil))

	projects, tasks, err := d.LoadGraph(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "new", projects[0].ID)
	assert.Empty(t, tasks)
}

func TestSaveGraphRollsBackOnFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewTestDB(t)

	require.NoError(t, d.SaveGraph(ctx, []Project{{ID: "keep", Title: "Keep"}}, nil))

	// Duplicate primary keys fail the insert after the delete ran.
	err := d.SaveGraph(ctx, []Project{{ID: "dup", Title: "A"}, {ID: "dup", Title: "B"}}, nil)
	require.Error(t, err)

	projects, _, err := d.LoadGraph(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "keep", projects[0].ID)
}

func TestRulesRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewTestDB(t)

	fired := time.Date(2026, 4, 9, 8, 0, 0, 0, time.UTC)
	require.NoError(t, d.SaveRules(ctx, []Rule{
		{ID: "r1", Name: "one", IsActive: true, Trigger: `{"type":"tag_added","value":"x"}`, Actions: `[]`, LastTriggeredAt: fired, TriggerCount: 3},
		{ID: "r2", Name: "two", Trigger: `{}`, Actions: `[]`},
	}))

	rules, err := d.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "r1", rules[0].ID)
	assert.True(t, rules[0].IsActive)
	assert.Equal(t, fired, rules[0].LastTriggeredAt)
	assert.Equal(t, 3, rules[0].TriggerCount)
	assert.JSONEq(t, `{"type":"tag_added","value":"x"}`, rules[0].Trigger)
	assert.False(t, rules[1].IsActive)
	assert.True(t, rules[1].LastTriggeredAt.IsZero())
}

func TestTemplatesRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewTestDB(t)

	require.NoError(t, d.SaveTemplates(ctx, []Template{{
		ID: "t1", Title: "Gym", Priority: "medium", Frequency: "weekly",
		DaysOfWeek: []int{1, 3}, Tags: []string{"health"}, LastCreated: "2026-04-08", IsActive: true,
	}}))

	templates, err := d.LoadTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, []int{1, 3}, templates[0].DaysOfWeek)
	assert.Equal(t, []string{"health"}, templates[0].Tags)
	assert.Equal(t, "2026-04-08", templates[0].LastCreated)
	assert.True(t, templates[0].IsActive)
}

func TestOpen_FileDatabaseReopens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "taskgraph.db")

	d, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, d.SaveRules(ctx, []Rule{{ID: "r", Name: "n", Trigger: "{}", Actions: "[]"}}))
	require.NoError(t, d.Close())

	d, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	rules, err := d.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, path, d.Path())
}
