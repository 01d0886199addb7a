// Package task provides the task graph data model for taskgraph.
package task

import (
	"slices"
	"strings"
	"time"
)

// PersonalProjectID is the synthetic project ID for tasks that belong to no project.
const PersonalProjectID = "personal"

// PersonalProjectTitle is the display title used for personal tasks.
const PersonalProjectTitle = "Personal"

// DefaultColor is used for projects created without a display color.
const DefaultColor = "#6366f1"

// MaxTitleLength is the maximum number of characters kept in a title.
const MaxTitleLength = 80

// Status represents the current state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// ValidStatuses returns all valid status values.
func ValidStatuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusDone}
}

// IsValidStatus returns true if the status is a valid status value.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// ParseStatus maps loose external input to a Status.
// The second return value is false when the input was not recognized and
// the default (todo) was substituted.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo", "to-do", "to_do", "open", "pending", "backlog":
		return StatusTodo, true
	case "in-progress", "in_progress", "inprogress", "in progress", "doing", "started", "active":
		return StatusInProgress, true
	case "done", "complete", "completed", "finished", "closed":
		return StatusDone, true
	default:
		return StatusTodo, false
	}
}

// Priority represents the urgency/importance of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriorities returns all valid priority values.
func ValidPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

// IsValidPriority returns true if the priority is a valid priority value.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// ParsePriority maps loose external input to a Priority, defaulting to medium.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "minor", "p3":
		return PriorityLow, true
	case "medium", "normal", "med", "p2":
		return PriorityMedium, true
	case "high", "urgent", "critical", "p1", "p0":
		return PriorityHigh, true
	default:
		return PriorityMedium, false
	}
}

// PriorityOrder returns a numeric value for sorting (lower = higher priority).
func PriorityOrder(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// Comment is a note attached to a task.
type Comment struct {
	ID        string    `yaml:"id" json:"id"`
	Text      string    `yaml:"text" json:"text"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// Task represents a unit of work in the task graph.
type Task struct {
	// ID is the opaque unique identifier
	ID string `yaml:"id" json:"id"`

	// Title is a short, markup-free description (at most MaxTitleLength characters)
	Title string `yaml:"title" json:"title"`

	// Description holds the full text, including any title overflow
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Status   Status   `yaml:"status" json:"status"`
	Priority Priority `yaml:"priority" json:"priority"`

	// StartDate and EndDate are calendar dates (YYYY-MM-DD); empty means unset.
	StartDate string `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate   string `yaml:"end_date,omitempty" json:"end_date,omitempty"`

	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// DependencyIDs lists task IDs that must complete before this task is actionable.
	DependencyIDs []string `yaml:"dependency_ids,omitempty" json:"dependency_ids,omitempty"`

	AttachmentIDs []string  `yaml:"attachment_ids,omitempty" json:"attachment_ids,omitempty"`
	Comments      []Comment `yaml:"comments,omitempty" json:"comments,omitempty"`

	// Focus marks membership in the focus list; FocusOrder orders it.
	Focus      bool `yaml:"focus,omitempty" json:"focus,omitempty"`
	FocusOrder int  `yaml:"focus_order,omitempty" json:"focus_order,omitempty"`

	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

// New creates a new task with defaults applied.
func New(id, title string, now time.Time) *Task {
	return &Task{
		ID:        id,
		Title:     title,
		Status:    StatusTodo,
		Priority:  PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsDone returns true if the task is complete.
func (t *Task) IsDone() bool {
	return t.Status == StatusDone
}

// HasTag reports whether the task carries the tag (case-insensitive).
func (t *Task) HasTag(tag string) bool {
	return containsFold(t.Tags, tag)
}

// AddTag adds a tag if not already present. Returns false if it was present.
func (t *Task) AddTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" || t.HasTag(tag) {
		return false
	}
	t.Tags = append(t.Tags, tag)
	return true
}

// DependsOn reports whether id is one of the task's dependencies.
func (t *Task) DependsOn(id string) bool {
	return slices.Contains(t.DependencyIDs, id)
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Tags = slices.Clone(t.Tags)
	c.DependencyIDs = slices.Clone(t.DependencyIDs)
	c.AttachmentIDs = slices.Clone(t.AttachmentIDs)
	c.Comments = slices.Clone(t.Comments)
	return &c
}

// Project groups an ordered collection of tasks. Deleting a project deletes its tasks.
type Project struct {
	ID          string    `yaml:"id" json:"id"`
	Title       string    `yaml:"title" json:"title"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Color       string    `yaml:"color,omitempty" json:"color,omitempty"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
	Tasks       []*Task   `yaml:"tasks,omitempty" json:"tasks,omitempty"`
}

// Clone returns a deep copy of the project and its tasks.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.Tasks = CloneTasks(p.Tasks)
	return &c
}

// FindTask returns the task with the given ID and its index, or nil and -1.
func (p *Project) FindTask(id string) (*Task, int) {
	return findTask(p.Tasks, id)
}

// CloneTasks deep-copies a task slice.
func CloneTasks(tasks []*Task) []*Task {
	if tasks == nil {
		return nil
	}
	out := make([]*Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

func findTask(tasks []*Task, id string) (*Task, int) {
	for i, t := range tasks {
		if t.ID == id {
			return t, i
		}
	}
	return nil, -1
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
