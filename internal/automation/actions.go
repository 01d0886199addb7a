package automation

import (
	"context"
	"fmt"
	"strings"

	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
	"github.com/randalmurphal/taskgraph/internal/notify"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// Target is the task a matched rule acts on.
type Target struct {
	Rule      *Rule
	Task      *task.Task
	ProjectID string
}

// Executor performs one action type. Executors go through the store so
// their mutations join the current cycle.
type Executor interface {
	Type() ActionType
	Execute(ctx context.Context, s *Service, action Action, target Target) error
}

// current re-reads the target task, since earlier actions may have changed it.
func (s *Service) current(target Target) (*task.Task, string, error) {
	t, projectID, ok := s.store.Snapshot().Task(target.Task.ID)
	if !ok {
		return nil, "", tgerrors.ErrTaskNotFound(target.ProjectID, target.Task.ID)
	}
	return t, projectID, nil
}

type changeStatusExecutor struct{}

func (changeStatusExecutor) Type() ActionType { return ActionChangeStatus }

func (changeStatusExecutor) Execute(ctx context.Context, s *Service, a Action, target Target) error {
	if a.Param(ParamTarget, TargetSelf) == TargetDependents {
		return changeDependents(ctx, s, target)
	}
	_, projectID, err := s.current(target)
	if err != nil {
		return err
	}
	return s.store.UpdateTaskStatus(ctx, projectID, target.Task.ID, task.Status(a.Value))
}

// changeDependents runs the completion cascade from the trigger task. It
// never sets a status directly: a dependent advances only from todo and only
// once all of its dependencies are done.
func changeDependents(ctx context.Context, s *Service, target Target) error {
	if s.cascade == nil {
		return fmt.Errorf("change_status on dependents: no cascade resolver configured")
	}
	_, err := s.cascade.OnTaskCompleted(ctx, target.Task.ID)
	return err
}

type changePriorityExecutor struct{}

func (changePriorityExecutor) Type() ActionType { return ActionChangePriority }

func (changePriorityExecutor) Execute(ctx context.Context, s *Service, a Action, target Target) error {
	t, projectID, err := s.current(target)
	if err != nil {
		return err
	}
	p := task.Priority(a.Value)
	if t.Priority == p {
		return nil
	}
	_, err = s.store.UpdateTask(ctx, projectID, t.ID, task.Patch{Priority: &p})
	return err
}

type addTagExecutor struct{}

func (addTagExecutor) Type() ActionType { return ActionAddTag }

func (addTagExecutor) Execute(ctx context.Context, s *Service, a Action, target Target) error {
	t, projectID, err := s.current(target)
	if err != nil {
		return err
	}
	t = t.Clone()
	if !t.AddTag(a.Value) {
		return nil
	}
	_, err = s.store.UpdateTask(ctx, projectID, t.ID, task.Patch{Tags: &t.Tags})
	return err
}

type moveProjectExecutor struct{}

func (moveProjectExecutor) Type() ActionType { return ActionMoveProject }

func (moveProjectExecutor) Execute(ctx context.Context, s *Service, a Action, target Target) error {
	_, projectID, err := s.current(target)
	if err != nil {
		return err
	}
	if projectID == a.Value {
		return nil
	}
	return s.store.MoveTask(ctx, target.Task.ID, projectID, a.Value)
}

type createTaskExecutor struct{}

func (createTaskExecutor) Type() ActionType { return ActionCreateTask }

func (createTaskExecutor) Execute(ctx context.Context, s *Service, a Action, target Target) error {
	projectID := a.Param(ParamProject, target.ProjectID)
	if projectID == "same" {
		projectID = target.ProjectID
	}

	draft := task.Draft{
		Title:       expand(a.Value, target.Task),
		Description: expand(a.Param(ParamDescription, ""), target.Task),
	}
	if p, ok := task.ParsePriority(a.Param(ParamPriority, "")); ok {
		draft.Priority = p
	}
	if tags := a.Param(ParamTags, ""); tags != "" {
		draft.Tags = strings.Split(tags, ",")
	}
	if a.Param(ParamDependsOnTrigger, "false") == "true" {
		draft.DependencyIDs = []string{target.Task.ID}
	}

	created, err := s.store.AddTask(ctx, projectID, draft)
	if err != nil {
		return err
	}
	s.logger.Debug("rule created task", "rule", target.Rule.ID, "task", created.ID)
	return nil
}

type sendNotificationExecutor struct{}

func (sendNotificationExecutor) Type() ActionType { return ActionSendNotification }

func (sendNotificationExecutor) Execute(ctx context.Context, s *Service, a Action, target Target) error {
	title := a.Param(ParamTitle, target.Rule.Name)
	message := a.Value
	if message == "" {
		message = fmt.Sprintf("Rule %q fired for %q", target.Rule.Name, TaskPlaceholder)
	}
	n := notify.New(
		s.now(),
		expand(title, target.Task),
		expand(message, target.Task),
		notify.ParseSeverity(a.Param(ParamSeverity, "")),
		target.ProjectID,
		target.Task.ID,
	)
	s.notifier.Notify(ctx, n)
	return nil
}

func expand(s string, t *task.Task) string {
	return strings.ReplaceAll(s, TaskPlaceholder, t.Title)
}
