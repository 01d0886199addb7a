// Package events provides change and notification events for taskgraph.
package events

import (
	"time"
)

// EventType defines the type of event.
type EventType string

const (
	// EventTaskCreated indicates a task appeared in the graph.
	EventTaskCreated EventType = "task_created"
	// EventTaskUpdated indicates a task's fields changed.
	EventTaskUpdated EventType = "task_updated"
	// EventTaskDeleted indicates a task was removed.
	EventTaskDeleted EventType = "task_deleted"
	// EventTaskMoved indicates a task changed project.
	EventTaskMoved EventType = "task_moved"

	// EventProjectCreated indicates a new project was added.
	EventProjectCreated EventType = "project_created"
	// EventProjectRemoved indicates a project and its tasks were removed.
	EventProjectRemoved EventType = "project_removed"

	// EventNotification carries a user-facing notification.
	EventNotification EventType = "notification"
	// EventRuleFired indicates an automation rule executed its actions.
	EventRuleFired EventType = "rule_fired"
)

// Event represents a published event.
type Event struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Time      time.Time `json:"time"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, projectID, taskID string, data any) Event {
	return Event{
		Type:      eventType,
		TaskID:    taskID,
		ProjectID: projectID,
		Data:      data,
		Time:      time.Now(),
	}
}

// TaskChange is the payload for task events.
type TaskChange struct {
	Title       string `json:"title"`
	Status      string `json:"status,omitempty"`
	PrevStatus  string `json:"prev_status,omitempty"`
	FromProject string `json:"from_project,omitempty"`
}

// RuleFired is the payload for EventRuleFired.
type RuleFired struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Actions  int    `json:"actions"`
}
