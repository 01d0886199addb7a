// Package storage persists the task graph, automation rules and recurring
// templates. Backends store whole sets: every save replaces what was there.
package storage

import (
	"context"

	"github.com/randalmurphal/taskgraph/internal/automation"
	"github.com/randalmurphal/taskgraph/internal/recurrence"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// Backend defines the storage operations for taskgraph.
// All implementations must be safe for concurrent access.
type Backend interface {
	// Task graph
	SaveTasks(ctx context.Context, projects []*task.Project, personal []*task.Task) error
	LoadTasks(ctx context.Context) ([]*task.Project, []*task.Task, error)

	// Automation rules
	SaveRules(ctx context.Context, rules []*automation.Rule) error
	LoadRules(ctx context.Context) ([]*automation.Rule, error)

	// Recurring templates
	SaveTemplates(ctx context.Context, templates []*recurrence.Template) error
	LoadTemplates(ctx context.Context) ([]*recurrence.Template, error)

	// Lifecycle
	Close() error
}
