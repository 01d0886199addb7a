package engine

import (
	"context"
	"fmt"

	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
	"github.com/randalmurphal/taskgraph/internal/notify"
	"github.com/randalmurphal/taskgraph/internal/plan"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// AIErrorTitle is the notification title for unusable provider output.
const AIErrorTitle = "AI error"

// ImportTarget selects where imported tasks go. ProjectID wins when set;
// otherwise a new project titled NewProjectTitle is created.
type ImportTarget struct {
	ProjectID       string
	NewProjectTitle string
	Description     string
}

// ImportResult reports an imported plan.
type ImportResult struct {
	ProjectID string
	Tasks     []*task.Task
	Issues    []plan.Issue
}

// ImportPlan decodes raw AI plan output, hydrates it against today and adds
// the tasks to the target. Output with no usable task raises an "AI error"
// notification and returns a NO_SUGGESTION error; nothing is mutated.
func (e *Engine) ImportPlan(ctx context.Context, target ImportTarget, raw string) (*ImportResult, error) {
	drafts, issues := plan.DecodePlan(raw)
	if len(drafts) == 0 {
		reason := "plan contained no usable tasks"
		e.aiError(ctx, target.ProjectID, reason)
		return &ImportResult{ProjectID: target.ProjectID, Issues: issues}, tgerrors.ErrNoSuggestion(reason)
	}

	hydrated, hydrateIssues := plan.Hydrate(drafts, e.Today(), e.newID, e.estimator)
	issues = append(issues, hydrateIssues...)
	for _, is := range issues {
		e.logger.Debug("plan issue", "issue", is.String())
	}

	if target.ProjectID != "" {
		tasks, err := e.store.AddTasks(ctx, target.ProjectID, hydrated)
		if err != nil {
			return nil, fmt.Errorf("import plan: %w", err)
		}
		return &ImportResult{ProjectID: target.ProjectID, Tasks: tasks, Issues: issues}, nil
	}

	p, err := e.store.AddProject(ctx, target.NewProjectTitle, target.Description, hydrated)
	if err != nil {
		return nil, fmt.Errorf("import plan: %w", err)
	}
	return &ImportResult{ProjectID: p.ID, Tasks: p.Tasks, Issues: issues}, nil
}

// AcceptSuggestion decodes a single suggested task and adds it to projectID.
// Unusable output raises an "AI error" notification and returns a
// NO_SUGGESTION error.
func (e *Engine) AcceptSuggestion(ctx context.Context, projectID, raw string) (*task.Task, error) {
	s, ok := plan.DecodeSuggestion(raw)
	if !ok {
		reason := "suggestion output was empty or unreadable"
		e.aiError(ctx, projectID, reason)
		return nil, tgerrors.ErrNoSuggestion(reason)
	}
	if projectID == "" {
		projectID = task.PersonalProjectID
	}

	t, err := e.store.AddTask(ctx, projectID, task.Draft{
		Title:       s.Title,
		Description: s.Description,
		Priority:    s.Priority,
	})
	if err != nil {
		return nil, fmt.Errorf("accept suggestion: %w", err)
	}
	return t, nil
}

func (e *Engine) aiError(ctx context.Context, projectID, reason string) {
	e.logger.Warn("unusable AI output", "project", projectID, "reason", reason)
	e.notifier.Notify(ctx, notify.New(e.now(), AIErrorTitle, reason, notify.SeverityWarning, projectID, ""))
}
