package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/taskgraph/internal/store"
	"github.com/randalmurphal/taskgraph/internal/task"
)

const today = "2026-07-15"

func view(t *task.Task) store.TaskView {
	if t.Status == "" {
		t.Status = task.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = task.PriorityMedium
	}
	return store.TaskView{Task: t, ProjectID: "p1", ProjectTitle: "Proj"}
}

func find(list []Assessment, id string) (Assessment, bool) {
	for _, a := range list {
		if a.TaskID == id {
			return a, true
		}
	}
	return Assessment{}, false
}

func TestAnalyze_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		task    *task.Task
		want    Level
		factor  Factor
		exclude bool
	}{
		{"overdue yesterday", &task.Task{ID: "t", StartDate: "2026-07-01", EndDate: "2026-07-14"}, LevelCritical, FactorOverdue, false},
		{"due today", &task.Task{ID: "t", StartDate: "2026-07-01", EndDate: today}, LevelHigh, FactorDueSoon, false},
		{"due in two days", &task.Task{ID: "t", StartDate: "2026-07-01", EndDate: "2026-07-17"}, LevelHigh, FactorDueSoon, false},
		{"due in five days", &task.Task{ID: "t", StartDate: "2026-07-01", EndDate: "2026-07-20"}, LevelMedium, FactorDueThisWeek, false},
		{"no dates", &task.Task{ID: "t"}, LevelMedium, FactorUnscheduled, false},
		{"high priority todo", &task.Task{ID: "t", Priority: task.PriorityHigh, StartDate: "2026-07-01", EndDate: "2026-09-01"}, LevelMedium, FactorUnstartedHigh, false},
		{"far future", &task.Task{ID: "t", StartDate: "2026-07-01", EndDate: "2026-09-01"}, "", "", true},
		{"done and overdue", &task.Task{ID: "t", Status: task.StatusDone, EndDate: "2026-01-01"}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyzer{}.Analyze([]store.TaskView{view(tt.task)}, today)
			if tt.exclude {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Level)
			assert.Contains(t, got[0].Factors, tt.factor)
			assert.NotEmpty(t, got[0].Recommendation)
		})
	}
}

func TestAnalyze_Blocked(t *testing.T) {
	t.Parallel()

	dep := &task.Task{ID: "dep", Status: task.StatusInProgress, StartDate: "2026-07-01", EndDate: "2026-09-01"}
	blocked := &task.Task{ID: "blocked", StartDate: "2026-07-01", EndDate: "2026-09-01", DependencyIDs: []string{"dep"}}
	orphan := &task.Task{ID: "orphan", StartDate: "2026-07-01", EndDate: "2026-09-01", DependencyIDs: []string{"gone"}}

	got := Analyzer{}.Analyze([]store.TaskView{view(dep), view(blocked), view(orphan)}, today)
	require.Len(t, got, 2)

	a, ok := find(got, "blocked")
	require.True(t, ok)
	assert.Equal(t, LevelMedium, a.Level)
	assert.Equal(t, []Factor{FactorBlocked}, a.Factors)
	assert.Contains(t, a.Recommendation, "1 open dependency")

	_, ok = find(got, "orphan")
	assert.True(t, ok, "missing dependency counts as unmet")
}

func TestAnalyze_SortedStable(t *testing.T) {
	t.Parallel()

	views := []store.TaskView{
		view(&task.Task{ID: "m1"}),
		view(&task.Task{ID: "c1", EndDate: "2026-07-10"}),
		view(&task.Task{ID: "h1", EndDate: "2026-07-16"}),
		view(&task.Task{ID: "m2"}),
		view(&task.Task{ID: "c2", EndDate: "2026-07-01"}),
	}

	got := Analyzer{}.Analyze(views, today)
	var ids []string
	for _, a := range got {
		ids = append(ids, a.TaskID)
	}
	assert.Equal(t, []string{"c1", "c2", "h1", "m1", "m2"}, ids)

	counts := Count(got)
	assert.Equal(t, 2, counts[LevelCritical])
	assert.Equal(t, 1, counts[LevelHigh])
	assert.Equal(t, 2, counts[LevelMedium])
}

func TestRecommendation_Priority(t *testing.T) {
	t.Parallel()

	dep := &task.Task{ID: "dep", StartDate: "2026-07-01", EndDate: "2026-09-01"}
	both := &task.Task{ID: "both", Priority: task.PriorityHigh, EndDate: "2026-07-12", DependencyIDs: []string{"dep"}}
	blockedSoon := &task.Task{ID: "bs", EndDate: "2026-07-16", DependencyIDs: []string{"dep"}}

	got := Analyzer{}.Analyze([]store.TaskView{view(dep), view(both), view(blockedSoon)}, today)

	a, _ := find(got, "both")
	assert.Equal(t, LevelCritical, a.Level)
	assert.Contains(t, a.Recommendation, "3 days overdue")
	require.NotNil(t, a.DaysUntilDue)
	assert.Equal(t, -3, *a.DaysUntilDue)

	b, _ := find(got, "bs")
	assert.Equal(t, LevelHigh, b.Level)
	assert.Contains(t, b.Recommendation, "waiting on")
}

func TestAnalyzer_CustomThresholds(t *testing.T) {
	t.Parallel()

	v := view(&task.Task{ID: "t", StartDate: "2026-07-01", EndDate: "2026-07-19"})
	assert.Equal(t, LevelMedium, Analyzer{}.Analyze([]store.TaskView{v}, today)[0].Level)
	assert.Equal(t, LevelHigh, Analyzer{DueSoonDays: 5}.Analyze([]store.TaskView{v}, today)[0].Level)
}
