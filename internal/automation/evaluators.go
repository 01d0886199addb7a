package automation

import (
	"fmt"

	"github.com/randalmurphal/taskgraph/internal/task"
)

// Transition is one task's before/after pair within a mutation cycle.
// Prev is a zero task (carrying only the ID) when the task is new.
type Transition struct {
	Prev      *task.Task
	Curr      *task.Task
	ProjectID string
	Today     string
}

// StatusChangeEvaluator fires when a task's status changes to the trigger value.
type StatusChangeEvaluator struct{}

func (e *StatusChangeEvaluator) Type() TriggerType {
	return TriggerStatusChange
}

func (e *StatusChangeEvaluator) Evaluate(trigger Trigger, tr Transition) (bool, string) {
	if tr.Prev.Status == tr.Curr.Status || string(tr.Curr.Status) != trigger.Value {
		return false, ""
	}
	if trigger.From != "" && string(tr.Prev.Status) != trigger.From {
		return false, ""
	}
	return true, fmt.Sprintf("status changed %s -> %s", describe(string(tr.Prev.Status)), tr.Curr.Status)
}

// PriorityChangeEvaluator fires when a task's priority changes to the trigger value.
type PriorityChangeEvaluator struct{}

func (e *PriorityChangeEvaluator) Type() TriggerType {
	return TriggerPriorityChange
}

func (e *PriorityChangeEvaluator) Evaluate(trigger Trigger, tr Transition) (bool, string) {
	if tr.Prev.Priority == tr.Curr.Priority || string(tr.Curr.Priority) != trigger.Value {
		return false, ""
	}
	if trigger.From != "" && string(tr.Prev.Priority) != trigger.From {
		return false, ""
	}
	return true, fmt.Sprintf("priority changed %s -> %s", describe(string(tr.Prev.Priority)), tr.Curr.Priority)
}

// TagAddedEvaluator fires when the trigger tag appears on a task.
type TagAddedEvaluator struct{}

func (e *TagAddedEvaluator) Type() TriggerType {
	return TriggerTagAdded
}

func (e *TagAddedEvaluator) Evaluate(trigger Trigger, tr Transition) (bool, string) {
	if !tr.Curr.HasTag(trigger.Value) || tr.Prev.HasTag(trigger.Value) {
		return false, ""
	}
	return true, fmt.Sprintf("tag %q added", trigger.Value)
}

// DateReachedEvaluator fires when the watched date of an open task is today.
// It does not diff: the service guards it so it fires once per task per day.
type DateReachedEvaluator struct{}

func (e *DateReachedEvaluator) Type() TriggerType {
	return TriggerDateReached
}

func (e *DateReachedEvaluator) Evaluate(trigger Trigger, tr Transition) (bool, string) {
	if tr.Curr.IsDone() || tr.Today == "" {
		return false, ""
	}
	date := tr.Curr.EndDate
	if trigger.Value == DateFieldStart {
		date = tr.Curr.StartDate
	}
	if date != tr.Today {
		return false, ""
	}
	return true, fmt.Sprintf("%s date %s reached", trigger.Value, date)
}

func describe(v string) string {
	if v == "" {
		return "(new)"
	}
	return v
}
