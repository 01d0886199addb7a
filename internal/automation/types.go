// Package automation provides trigger/action rules that react to task graph
// changes. Rules are evaluated once per store mutation cycle against the
// snapshots taken before and after the mutation.
package automation

import (
	"fmt"
	"slices"
	"strings"
	"time"

	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// TriggerType defines the type of trigger.
type TriggerType string

const (
	TriggerStatusChange   TriggerType = "status_change"   // Task status changed to Value
	TriggerPriorityChange TriggerType = "priority_change" // Task priority changed to Value
	TriggerTagAdded       TriggerType = "tag_added"       // Tag Value appeared on a task
	TriggerDateReached    TriggerType = "date_reached"    // Task date (end by default) is today
)

// ValidTriggerTypes returns all trigger types.
func ValidTriggerTypes() []TriggerType {
	return []TriggerType{TriggerStatusChange, TriggerPriorityChange, TriggerTagAdded, TriggerDateReached}
}

// ActionType defines what a rule does when it fires.
type ActionType string

const (
	ActionChangeStatus     ActionType = "change_status"
	ActionChangePriority   ActionType = "change_priority"
	ActionAddTag           ActionType = "add_tag"
	ActionMoveProject      ActionType = "move_project"
	ActionCreateTask       ActionType = "create_task"
	ActionSendNotification ActionType = "send_notification"
)

// ValidActionTypes returns all action types.
func ValidActionTypes() []ActionType {
	return []ActionType{
		ActionChangeStatus, ActionChangePriority, ActionAddTag,
		ActionMoveProject, ActionCreateTask, ActionSendNotification,
	}
}

// Action parameter keys.
const (
	ParamTarget           = "target"             // change_status: self | dependents
	ParamProject          = "project"            // create_task: target project (default: trigger task's)
	ParamDescription      = "description"        // create_task
	ParamPriority         = "priority"           // create_task
	ParamTags             = "tags"               // create_task: comma separated
	ParamDependsOnTrigger = "depends_on_trigger" // create_task: "true" links the new task to the trigger task
	ParamTitle            = "title"              // send_notification
	ParamSeverity         = "severity"           // send_notification
)

// Targets for change_status.
const (
	TargetSelf       = "self"
	TargetDependents = "dependents"
)

// Date fields for date_reached.
const (
	DateFieldEnd   = "end"
	DateFieldStart = "start"
)

// TaskPlaceholder in create_task titles and notification messages is
// replaced by the trigger task's title.
const TaskPlaceholder = "{task}"

// Trigger describes the transition a rule reacts to.
type Trigger struct {
	Type TriggerType `json:"type" yaml:"type"`
	// Value is the target status, priority or tag, or the date field for date_reached.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	// From restricts status/priority changes to those leaving this value.
	From string `json:"from,omitempty" yaml:"from,omitempty"`
	// ProjectID restricts the rule to one project.
	ProjectID string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
}

// Action is one step a rule executes against the matched task.
type Action struct {
	Type   ActionType        `json:"type" yaml:"type"`
	Value  string            `json:"value,omitempty" yaml:"value,omitempty"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Param returns a parameter value or def when it is absent.
func (a Action) Param(key, def string) string {
	if v, ok := a.Params[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// Rule is a user-defined automation entry.
type Rule struct {
	ID              string     `json:"id" yaml:"id"`
	Name            string     `json:"name" yaml:"name"`
	Description     string     `json:"description,omitempty" yaml:"description,omitempty"`
	IsActive        bool       `json:"is_active" yaml:"is_active"`
	Trigger         Trigger    `json:"trigger" yaml:"trigger"`
	Actions         []Action   `json:"actions" yaml:"actions"`
	CreatedAt       time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" yaml:"updated_at"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty" yaml:"last_triggered_at,omitempty"`
	TriggerCount    int        `json:"trigger_count" yaml:"trigger_count"`
}

// Clone returns a deep copy of the rule.
func (r *Rule) Clone() *Rule {
	c := *r
	c.Actions = make([]Action, len(r.Actions))
	for i, a := range r.Actions {
		c.Actions[i] = a
		if a.Params != nil {
			c.Actions[i].Params = make(map[string]string, len(a.Params))
			for k, v := range a.Params {
				c.Actions[i].Params[k] = v
			}
		}
	}
	if r.LastTriggeredAt != nil {
		t := *r.LastTriggeredAt
		c.LastTriggeredAt = &t
	}
	return &c
}

// Normalize canonicalizes loose trigger and action values in place.
func (r *Rule) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		r.Name = fmt.Sprintf("When %s", r.Trigger.Type)
	}
	r.Trigger.Value = strings.TrimSpace(r.Trigger.Value)
	r.Trigger.From = strings.TrimSpace(r.Trigger.From)
	switch r.Trigger.Type {
	case TriggerStatusChange:
		r.Trigger.Value = canonicalStatus(r.Trigger.Value)
		r.Trigger.From = canonicalStatus(r.Trigger.From)
	case TriggerPriorityChange:
		r.Trigger.Value = canonicalPriority(r.Trigger.Value)
		r.Trigger.From = canonicalPriority(r.Trigger.From)
	case TriggerTagAdded:
		r.Trigger.Value = strings.TrimPrefix(r.Trigger.Value, "#")
	case TriggerDateReached:
		if r.Trigger.Value == "" {
			r.Trigger.Value = DateFieldEnd
		}
	}
	for i := range r.Actions {
		a := &r.Actions[i]
		a.Value = strings.TrimSpace(a.Value)
		switch a.Type {
		case ActionChangeStatus:
			a.Value = canonicalStatus(a.Value)
			// Dependents only ever advance through the completion cascade.
			if a.Param(ParamTarget, TargetSelf) == TargetDependents {
				a.Value = ""
			}
		case ActionChangePriority:
			a.Value = canonicalPriority(a.Value)
		case ActionAddTag:
			a.Value = strings.TrimPrefix(a.Value, "#")
		}
	}
}

// Validate checks that the rule can be evaluated. Call Normalize first.
func (r *Rule) Validate() error {
	if !slices.Contains(ValidTriggerTypes(), r.Trigger.Type) {
		return tgerrors.ErrInvalidInput("trigger.type", fmt.Sprintf("unknown trigger type %q", r.Trigger.Type))
	}
	switch r.Trigger.Type {
	case TriggerStatusChange:
		if !task.IsValidStatus(task.Status(r.Trigger.Value)) {
			return tgerrors.ErrInvalidInput("trigger.value", "status_change needs a target status")
		}
	case TriggerPriorityChange:
		if !task.IsValidPriority(task.Priority(r.Trigger.Value)) {
			return tgerrors.ErrInvalidInput("trigger.value", "priority_change needs a target priority")
		}
	case TriggerTagAdded:
		if r.Trigger.Value == "" {
			return tgerrors.ErrInvalidInput("trigger.value", "tag_added needs a tag")
		}
	case TriggerDateReached:
		if r.Trigger.Value != DateFieldEnd && r.Trigger.Value != DateFieldStart {
			return tgerrors.ErrInvalidInput("trigger.value", "date_reached watches \"end\" or \"start\"")
		}
	}

	if len(r.Actions) == 0 {
		return tgerrors.ErrInvalidInput("actions", "a rule needs at least one action")
	}
	for i, a := range r.Actions {
		field := fmt.Sprintf("actions[%d]", i)
		switch a.Type {
		case ActionChangeStatus:
			if a.Param(ParamTarget, TargetSelf) == TargetDependents {
				continue
			}
			if !task.IsValidStatus(task.Status(a.Value)) {
				return tgerrors.ErrInvalidInput(field, "change_status needs a status")
			}
		case ActionChangePriority:
			if !task.IsValidPriority(task.Priority(a.Value)) {
				return tgerrors.ErrInvalidInput(field, "change_priority needs a priority")
			}
		case ActionAddTag, ActionMoveProject, ActionCreateTask:
			if a.Value == "" {
				return tgerrors.ErrInvalidInput(field, fmt.Sprintf("%s needs a value", a.Type))
			}
		case ActionSendNotification:
		default:
			return tgerrors.ErrInvalidInput(field, fmt.Sprintf("unknown action type %q", a.Type))
		}
	}
	return nil
}

func canonicalStatus(s string) string {
	if s == "" {
		return ""
	}
	if st, ok := task.ParseStatus(s); ok {
		return string(st)
	}
	return s
}

func canonicalPriority(s string) string {
	if s == "" {
		return ""
	}
	if p, ok := task.ParsePriority(s); ok {
		return string(p)
	}
	return s
}

// ExecutionStatus represents the outcome of a rule firing.
type ExecutionStatus string

const (
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// Execution records a rule firing.
type Execution struct {
	RuleID      string          `json:"rule_id"`
	RuleName    string          `json:"rule_name"`
	TaskID      string          `json:"task_id"`
	ProjectID   string          `json:"project_id"`
	TriggeredAt time.Time       `json:"triggered_at"`
	Reason      string          `json:"reason"`
	Actions     int             `json:"actions"`
	Status      ExecutionStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
}

// Stats provides automation statistics.
type Stats struct {
	TotalRules  int `json:"total_rules"`
	ActiveRules int `json:"active_rules"`
	Executions  int `json:"executions"`
	Failed      int `json:"failed"`
}
