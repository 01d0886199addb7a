package storage

import (
	"context"
	"sync"

	"github.com/randalmurphal/taskgraph/internal/automation"
	"github.com/randalmurphal/taskgraph/internal/recurrence"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// MemoryBackend keeps deep copies of everything in memory.
type MemoryBackend struct {
	mu        sync.Mutex
	projects  []*task.Project
	personal  []*task.Task
	rules     []*automation.Rule
	templates []*recurrence.Template
	saves     int
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Saves returns how many save calls succeeded.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func (b *MemoryBackend) SaveTasks(_ context.Context, projects []*task.Project, personal []*task.Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.projects = cloneAll(projects, (*task.Project).Clone)
	b.personal = cloneAll(personal, (*task.Task).Clone)
	b.saves++
	return nil
}

func (b *MemoryBackend) LoadTasks(context.Context) ([]*task.Project, []*task.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneAll(b.projects, (*task.Project).Clone), cloneAll(b.personal, (*task.Task).Clone), nil
}

func (b *MemoryBackend) SaveRules(_ context.Context, rules []*automation.Rule) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = cloneAll(rules, (*automation.Rule).Clone)
	b.saves++
	return nil
}

func (b *MemoryBackend) LoadRules(context.Context) ([]*automation.Rule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneAll(b.rules, (*automation.Rule).Clone), nil
}

func (b *MemoryBackend) SaveTemplates(_ context.Context, templates []*recurrence.Template) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.templates = cloneAll(templates, (*recurrence.Template).Clone)
	b.saves++
	return nil
}

func (b *MemoryBackend) LoadTemplates(context.Context) ([]*recurrence.Template, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneAll(b.templates, (*recurrence.Template).Clone), nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

func cloneAll[T any](in []*T, clone func(*T) *T) []*T {
	if in == nil {
		return nil
	}
	out := make([]*T, len(in))
	for i, v := range in {
		out[i] = clone(v)
	}
	return out
}
