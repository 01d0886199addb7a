package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/taskgraph/internal/automation"
	"github.com/randalmurphal/taskgraph/internal/config"
	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
	"github.com/randalmurphal/taskgraph/internal/lock"
	"github.com/randalmurphal/taskgraph/internal/recurrence"
)

func TestParseActionSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    automation.Action
		wantErr bool
	}{
		{
			name: "type only",
			spec: "add_tag:urgent",
			want: automation.Action{Type: automation.ActionAddTag, Value: "urgent"},
		},
		{
			name: "with params",
			spec: "create_task:Follow up; priority=high ;days=2",
			want: automation.Action{
				Type:   automation.ActionCreateTask,
				Value:  "Follow up",
				Params: map[string]string{"priority": "high", "days": "2"},
			},
		},
		{
			name: "trailing separator ignored",
			spec: "change_status:done;",
			want: automation.Action{Type: automation.ActionChangeStatus, Value: "done"},
		},
		{name: "missing type", spec: ":x", wantErr: true},
		{name: "bad param", spec: "add_tag:x;nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseActionSpec(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, tgerrors.HasCode(err, tgerrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleFromFlags(t *testing.T) {
	r, err := ruleFromFlags("Escalate", "", "status_change:done", "in-progress", "p1",
		[]string{"add_tag:shipped", "send_notification:Shipped"})
	require.NoError(t, err)

	assert.Equal(t, automation.TriggerStatusChange, r.Trigger.Type)
	assert.Equal(t, "done", r.Trigger.Value)
	assert.Equal(t, "in-progress", r.Trigger.From)
	assert.Equal(t, "p1", r.Trigger.ProjectID)
	require.Len(t, r.Actions, 2)
	assert.Equal(t, automation.ActionSendNotification, r.Actions[1].Type)

	_, err = ruleFromFlags("x", "", "", "", "", []string{"add_tag:a"})
	assert.Error(t, err)
	_, err = ruleFromFlags("x", "", "tag_added:a", "", "", nil)
	assert.Error(t, err)
}

func TestReadRuleFile(t *testing.T) {
	dir := t.TempDir()

	list := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(list, []byte(`rules:
  - name: Done tag
    is_active: true
    trigger: {type: status_change, value: done}
    actions: [{type: add_tag, value: finished}]
  - name: Urgent
    trigger: {type: tag_added, value: urgent}
    actions: [{type: change_priority, value: high}]
`), 0o644))
	rules, err := readRuleFile(list)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "Done tag", rules[0].Name)
	assert.True(t, rules[0].IsActive)
	assert.False(t, rules[1].IsActive)

	single := filepath.Join(dir, "one.yaml")
	require.NoError(t, os.WriteFile(single, []byte(`name: Solo
trigger: {type: date_reached}
actions: [{type: send_notification, value: Due}]
`), 0o644))
	rules, err = readRuleFile(single)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, automation.TriggerDateReached, rules[0].Trigger.Type)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("name: nothing\n"), 0o644))
	_, err = readRuleFile(empty)
	assert.True(t, tgerrors.HasCode(err, tgerrors.CodeInvalidInput))

	_, err = readRuleFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDescribeSchedule(t *testing.T) {
	tests := []struct {
		tmpl recurrence.Template
		want string
	}{
		{recurrence.Template{Frequency: recurrence.FrequencyDaily}, "daily"},
		{recurrence.Template{Frequency: recurrence.FrequencyWeekly, DaysOfWeek: []int{1, 3, 9}}, "weekly Mon,Wed"},
		{recurrence.Template{Frequency: recurrence.FrequencyMonthly, DayOfMonth: 15}, "monthly day 15"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, describeSchedule(&tt.tmpl))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "häll...", truncate("hällöwörld", 7))
	assert.Equal(t, "abc", truncate("abc", 2))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 3, ExitCode(tgerrors.ErrTaskNotFound("p", "t")))
	assert.Equal(t, 2, ExitCode(tgerrors.ErrInvalidInput("x", "y")))
	assert.Equal(t, 1, ExitCode(os.ErrClosed))
}

func TestRunnerGuard(t *testing.T) {
	dir := t.TempDir()

	g := runnerGuard(config.StorageConfig{Backend: config.BackendFile, Path: dir})
	require.NotNil(t, g)
	assert.Equal(t, filepath.Join(dir, lock.PIDFileName), g.Path())

	g = runnerGuard(config.StorageConfig{Backend: config.BackendSQLite, Path: dir})
	require.NotNil(t, g)
	assert.Equal(t, dir, filepath.Dir(g.Path()))

	assert.Nil(t, runnerGuard(config.StorageConfig{Backend: config.BackendMemory}))
	assert.Nil(t, runnerGuard(config.StorageConfig{Backend: config.BackendPostgres, DSN: "postgres://x"}))
}
