package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
	"github.com/randalmurphal/taskgraph/internal/notify"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// UntitledProject replaces project titles that are empty after normalization.
const UntitledProject = "Untitled project"

// ProjectPatch is a partial project update. nil fields are left unchanged.
type ProjectPatch struct {
	Title       *string
	Description *string
	Color       *string
}

// AddProject creates a project, optionally seeded with task drafts.
func (s *Store) AddProject(ctx context.Context, title, description string, drafts []task.Draft) (*task.Project, error) {
	var created *task.Project
	err := s.mutate(ctx, func() (bool, error) {
		now := s.now()
		p := &task.Project{
			ID:          s.newID(),
			Title:       projectTitle(title),
			Description: strings.TrimSpace(description),
			Color:       task.DefaultColor,
			CreatedAt:   now,
		}
		s.projects = append(s.projects, p)
		for _, d := range drafts {
			p.Tasks = append(p.Tasks, d.Build(s.newID(), now))
		}
		s.pruneDependencies(p.Tasks)
		for _, t := range p.Tasks {
			s.announceCreated(p.ID, t)
		}
		created = p.Clone()
		return true, nil
	})
	return created, err
}

// UpdateProject changes project metadata.
func (s *Store) UpdateProject(ctx context.Context, projectID string, patch ProjectPatch) error {
	return s.mutate(ctx, func() (bool, error) {
		p, _ := s.findProject(projectID)
		if p == nil {
			return false, tgerrors.ErrProjectNotFound(projectID)
		}
		if patch.Title != nil {
			p.Title = projectTitle(*patch.Title)
		}
		if patch.Description != nil {
			p.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Color != nil {
			p.Color = strings.TrimSpace(*patch.Color)
			if p.Color == "" {
				p.Color = task.DefaultColor
			}
		}
		return true, nil
	})
}

// RemoveProject deletes a project, its tasks, every dependency edge that
// pointed at those tasks, and the project's schedule index.
func (s *Store) RemoveProject(ctx context.Context, projectID string) error {
	if projectID == task.PersonalProjectID {
		return tgerrors.ErrInvalidInput("project", "personal tasks cannot be removed as a project")
	}
	return s.mutate(ctx, func() (bool, error) {
		p, i := s.findProject(projectID)
		if p == nil {
			return false, tgerrors.ErrProjectNotFound(projectID)
		}
		s.projects = slices.Delete(s.projects, i, i+1)
		delete(s.schedules, projectID)

		remaining := s.allTasks()
		for _, t := range p.Tasks {
			task.StripDependency(t.ID, remaining)
		}

		s.notifyLocked(notify.New(s.now(), "Project removed",
			fmt.Sprintf("%q and its %d tasks were removed", p.Title, len(p.Tasks)),
			notify.SeverityInfo, projectID, ""))
		return true, nil
	})
}

// AddTask creates a task in a project. An empty projectID or
// PersonalProjectID adds a personal task.
func (s *Store) AddTask(ctx context.Context, projectID string, draft task.Draft) (*task.Task, error) {
	tasks, err := s.AddTasks(ctx, projectID, []task.Draft{draft})
	if err != nil {
		return nil, err
	}
	return tasks[0], nil
}

// AddTasks creates several tasks in one mutation. Drafts may reference each
// other by pre-assigned ID.
func (s *Store) AddTasks(ctx context.Context, projectID string, drafts []task.Draft) ([]*task.Task, error) {
	if projectID == "" {
		projectID = task.PersonalProjectID
	}
	var created []*task.Task
	err := s.mutate(ctx, func() (bool, error) {
		var p *task.Project
		if projectID != task.PersonalProjectID {
			if p, _ = s.findProject(projectID); p == nil {
				return false, tgerrors.ErrProjectNotFound(projectID)
			}
		}
		if len(drafts) == 0 {
			return false, nil
		}

		now := s.now()
		batch := make([]*task.Task, 0, len(drafts))
		for _, d := range drafts {
			batch = append(batch, d.Build(s.newID(), now))
		}
		if p != nil {
			p.Tasks = append(p.Tasks, batch...)
		} else {
			s.personal = append(s.personal, batch...)
		}
		s.pruneDependencies(batch)

		for _, t := range batch {
			s.announceCreated(projectID, t)
			created = append(created, t.Clone())
		}
		return true, nil
	})
	return created, err
}

// UpdateTask applies a partial update to a task.
// An empty projectID finds the task in any project.
func (s *Store) UpdateTask(ctx context.Context, projectID, taskID string, patch task.Patch) (*task.Task, error) {
	var updated *task.Task
	err := s.mutate(ctx, func() (bool, error) {
		t, _ := s.locate(projectID, taskID)
		if t == nil {
			return false, tgerrors.ErrTaskNotFound(projectID, taskID)
		}
		if patch.IsEmpty() {
			updated = t.Clone()
			return false, nil
		}
		patch.Apply(t, s.now())
		if patch.DependencyIDs != nil {
			s.pruneDependencies([]*task.Task{t})
		}
		updated = t.Clone()
		return true, nil
	})
	return updated, err
}

// UpdateTaskStatus sets a task's status. Setting the current status is a no-op.
func (s *Store) UpdateTaskStatus(ctx context.Context, projectID, taskID string, status task.Status) error {
	if !task.IsValidStatus(status) {
		parsed, ok := task.ParseStatus(string(status))
		if !ok {
			s.logger.Debug("ignoring unknown status", "task", taskID, "status", status)
			return nil
		}
		status = parsed
	}
	return s.mutate(ctx, func() (bool, error) {
		t, _ := s.locate(projectID, taskID)
		if t == nil {
			return false, tgerrors.ErrTaskNotFound(projectID, taskID)
		}
		if t.Status == status {
			return false, nil
		}
		t.Status = status
		t.UpdatedAt = s.now()
		return true, nil
	})
}

// DeleteTask removes a task and strips it from every dependency list.
func (s *Store) DeleteTask(ctx context.Context, projectID, taskID string) error {
	return s.mutate(ctx, func() (bool, error) {
		_, owner := s.locate(projectID, taskID)
		if owner == "" {
			return false, tgerrors.ErrTaskNotFound(projectID, taskID)
		}
		s.detach(owner, taskID)
		task.StripDependency(taskID, s.allTasks())
		for pid, order := range s.schedules {
			if i := slices.Index(order, taskID); i >= 0 {
				s.schedules[pid] = slices.Delete(order, i, i+1)
			}
		}
		return true, nil
	})
}

// MoveTask moves a task between projects, appending it to the target.
// An empty fromProjectID finds the task in any project.
func (s *Store) MoveTask(ctx context.Context, taskID, fromProjectID, toProjectID string) error {
	if toProjectID == "" {
		toProjectID = task.PersonalProjectID
	}
	return s.mutate(ctx, func() (bool, error) {
		t, owner := s.locate(fromProjectID, taskID)
		if t == nil {
			return false, tgerrors.ErrTaskNotFound(fromProjectID, taskID)
		}
		var target *task.Project
		if toProjectID != task.PersonalProjectID {
			if target, _ = s.findProject(toProjectID); target == nil {
				return false, tgerrors.ErrProjectNotFound(toProjectID)
			}
		}
		if owner == toProjectID {
			return false, nil
		}

		s.detach(owner, taskID)
		if order, ok := s.schedules[owner]; ok {
			if i := slices.Index(order, taskID); i >= 0 {
				s.schedules[owner] = slices.Delete(order, i, i+1)
			}
		}
		t.UpdatedAt = s.now()
		if target != nil {
			target.Tasks = append(target.Tasks, t)
		} else {
			s.personal = append(s.personal, t)
		}
		return true, nil
	})
}

// SetFocus adds a task to, or removes it from, the focus list.
func (s *Store) SetFocus(ctx context.Context, projectID, taskID string, focus bool) error {
	return s.mutate(ctx, func() (bool, error) {
		t, _ := s.locate(projectID, taskID)
		if t == nil {
			return false, tgerrors.ErrTaskNotFound(projectID, taskID)
		}
		if t.Focus == focus {
			return false, nil
		}
		t.Focus = focus
		t.FocusOrder = 0
		if focus {
			next := 0
			s.forEachTask(func(o *task.Task) {
				if o.Focus && o.FocusOrder > next {
					next = o.FocusOrder
				}
			})
			t.FocusOrder = next + 1
		}
		t.UpdatedAt = s.now()
		return true, nil
	})
}

// AddComment appends a comment to a task.
func (s *Store) AddComment(ctx context.Context, projectID, taskID, text string) (task.Comment, error) {
	var c task.Comment
	text = strings.TrimSpace(text)
	if text == "" {
		return c, tgerrors.ErrInvalidInput("comment", "text is empty")
	}
	err := s.mutate(ctx, func() (bool, error) {
		t, _ := s.locate(projectID, taskID)
		if t == nil {
			return false, tgerrors.ErrTaskNotFound(projectID, taskID)
		}
		now := s.now()
		c = task.Comment{ID: s.newID(), Text: text, CreatedAt: now}
		t.Comments = append(t.Comments, c)
		t.UpdatedAt = now
		return true, nil
	})
	return c, err
}

// SetSchedule records the computed task order for a project.
// The schedule index is derived data: it is not persisted and runs no hooks.
func (s *Store) SetSchedule(projectID string, order []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[projectID] = slices.Clone(order)
}

// Schedule returns the recorded task order for a project.
func (s *Store) Schedule(projectID string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.schedules[projectID]
	return slices.Clone(order), ok
}

// detach removes a task from its owner's list; callers hold mu.
func (s *Store) detach(owner, taskID string) {
	if owner == task.PersonalProjectID {
		s.personal = slices.DeleteFunc(s.personal, func(t *task.Task) bool { return t.ID == taskID })
		return
	}
	if p, _ := s.findProject(owner); p != nil {
		p.Tasks = slices.DeleteFunc(p.Tasks, func(t *task.Task) bool { return t.ID == taskID })
	}
}

// pruneDependencies drops dependency references to tasks that do not exist
// and warns about cycles; callers hold mu.
func (s *Store) pruneDependencies(tasks []*task.Task) {
	byID := task.Index(s.allTasks())
	for _, t := range tasks {
		kept := t.DependencyIDs[:0]
		for _, id := range t.DependencyIDs {
			if _, ok := byID[id]; ok {
				kept = append(kept, id)
				continue
			}
			s.logger.Warn("dropping unknown dependency", "task", t.ID, "dependency", id)
		}
		if len(kept) == 0 {
			kept = nil
		}
		t.DependencyIDs = kept
		if cycle := task.DetectCircularDependency(t.ID, t.DependencyIDs, byID); cycle != nil {
			s.logger.Warn("dependency cycle", "task", t.ID, "cycle", strings.Join(cycle, " -> "))
		}
	}
}

// announceCreated queues the critical notice for high-priority tasks; callers hold mu.
func (s *Store) announceCreated(projectID string, t *task.Task) {
	if t.Priority != task.PriorityHigh {
		return
	}
	s.notifyLocked(notify.New(s.now(), "High-priority task created", t.Title,
		notify.SeverityCritical, projectID, t.ID))
}

func projectTitle(raw string) string {
	title := task.StripMarkup(raw)
	if title == "" {
		return UntitledProject
	}
	return title
}
