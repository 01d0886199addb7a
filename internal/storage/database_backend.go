package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/taskgraph/internal/automation"
	"github.com/randalmurphal/taskgraph/internal/db"
	"github.com/randalmurphal/taskgraph/internal/recurrence"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// DatabaseBackend stores state in SQLite or PostgreSQL through the db package.
type DatabaseBackend struct {
	db     *db.DB
	logger *slog.Logger
}

// NewDatabaseBackend wraps an open, migrated database.
func NewDatabaseBackend(database *db.DB, logger *slog.Logger) *DatabaseBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatabaseBackend{db: database, logger: logger}
}

// DB returns the underlying database.
func (b *DatabaseBackend) DB() *db.DB {
	return b.db
}

func (b *DatabaseBackend) SaveTasks(ctx context.Context, projects []*task.Project, personal []*task.Task) error {
	projectRows := make([]db.Project, 0, len(projects))
	var taskRows []db.Task
	for _, p := range projects {
		projectRows = append(projectRows, db.Project{
			ID:          p.ID,
			Title:       p.Title,
			Description: p.Description,
			Color:       p.Color,
			CreatedAt:   p.CreatedAt,
		})
		for _, t := range p.Tasks {
			taskRows = append(taskRows, taskToRow(p.ID, t))
		}
	}
	for _, t := range personal {
		taskRows = append(taskRows, taskToRow(task.PersonalProjectID, t))
	}

	if err := b.db.SaveGraph(ctx, projectRows, taskRows); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	return nil
}

func (b *DatabaseBackend) LoadTasks(ctx context.Context) ([]*task.Project, []*task.Task, error) {
	projectRows, taskRows, err := b.db.LoadGraph(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load tasks: %w", err)
	}

	projects := make([]*task.Project, 0, len(projectRows))
	byID := make(map[string]*task.Project, len(projectRows))
	for _, r := range projectRows {
		p := &task.Project{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Color:       r.Color,
			CreatedAt:   r.CreatedAt,
		}
		projects = append(projects, p)
		byID[p.ID] = p
	}

	var personal []*task.Task
	for _, r := range taskRows {
		t := rowToTask(r)
		if p, ok := byID[r.ProjectID]; ok {
			p.Tasks = append(p.Tasks, t)
			continue
		}
		if r.ProjectID != task.PersonalProjectID {
			b.logger.Warn("task references unknown project, loading as personal",
				"task", r.ID, "project", r.ProjectID)
		}
		personal = append(personal, t)
	}
	return projects, personal, nil
}

func (b *DatabaseBackend) SaveRules(ctx context.Context, rules []*automation.Rule) error {
	rows := make([]db.Rule, 0, len(rules))
	for _, r := range rules {
		trigger, err := json.Marshal(r.Trigger)
		if err != nil {
			return fmt.Errorf("encode trigger for rule %s: %w", r.ID, err)
		}
		actions, err := json.Marshal(r.Actions)
		if err != nil {
			return fmt.Errorf("encode actions for rule %s: %w", r.ID, err)
		}
		row := db.Rule{
			ID:           r.ID,
			Name:         r.Name,
			Description:  r.Description,
			IsActive:     r.IsActive,
			Trigger:      string(trigger),
			Actions:      string(actions),
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
			TriggerCount: r.TriggerCount,
		}
		if r.LastTriggeredAt != nil {
			row.LastTriggeredAt = *r.LastTriggeredAt
		}
		rows = append(rows, row)
	}
	if err := b.db.SaveRules(ctx, rows); err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	return nil
}

func (b *DatabaseBackend) LoadRules(ctx context.Context) ([]*automation.Rule, error) {
	rows, err := b.db.LoadRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	rules := make([]*automation.Rule, 0, len(rows))
	for _, row := range rows {
		r := &automation.Rule{
			ID:           row.ID,
			Name:         row.Name,
			Description:  row.Description,
			IsActive:     row.IsActive,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
			TriggerCount: row.TriggerCount,
		}
		if err := json.Unmarshal([]byte(row.Trigger), &r.Trigger); err != nil {
			b.logger.Warn("skip rule with corrupt trigger", "rule", row.ID, "error", err)
			continue
		}
		if err := json.Unmarshal([]byte(row.Actions), &r.Actions); err != nil {
			b.logger.Warn("skip rule with corrupt actions", "rule", row.ID, "error", err)
			continue
		}
		if !row.LastTriggeredAt.IsZero() {
			at := row.LastTriggeredAt
			r.LastTriggeredAt = &at
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (b *DatabaseBackend) SaveTemplates(ctx context.Context, templates []*recurrence.Template) error {
	rows := make([]db.Template, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, db.Template{
			ID:          t.ID,
			ProjectID:   t.ProjectID,
			Title:       t.Title,
			Description: t.Description,
			Priority:    string(t.Priority),
			Tags:        t.Tags,
			Frequency:   string(t.Frequency),
			DaysOfWeek:  t.DaysOfWeek,
			DayOfMonth:  t.DayOfMonth,
			StartDate:   t.StartDate,
			EndDate:     t.EndDate,
			LastCreated: t.LastCreated,
			IsActive:    t.IsActive,
			CreatedAt:   t.CreatedAt,
		})
	}
	if err := b.db.SaveTemplates(ctx, rows); err != nil {
		return fmt.Errorf("save templates: %w", err)
	}
	return nil
}

func (b *DatabaseBackend) LoadTemplates(ctx context.Context) ([]*recurrence.Template, error) {
	rows, err := b.db.LoadTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	templates := make([]*recurrence.Template, 0, len(rows))
	for _, r := range rows {
		templates = append(templates, &recurrence.Template{
			ID:          r.ID,
			ProjectID:   r.ProjectID,
			Title:       r.Title,
			Description: r.Description,
			Priority:    task.Priority(r.Priority),
			Tags:        r.Tags,
			Frequency:   recurrence.Frequency(r.Frequency),
			DaysOfWeek:  r.DaysOfWeek,
			DayOfMonth:  r.DayOfMonth,
			StartDate:   r.StartDate,
			EndDate:     r.EndDate,
			LastCreated: r.LastCreated,
			IsActive:    r.IsActive,
			CreatedAt:   r.CreatedAt,
		})
	}
	return templates, nil
}

// Close closes the database.
func (b *DatabaseBackend) Close() error {
	return b.db.Close()
}

func taskToRow(projectID string, t *task.Task) db.Task {
	comments := make([]db.Comment, 0, len(t.Comments))
	for _, c := range t.Comments {
		comments = append(comments, db.Comment{ID: c.ID, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	return db.Task{
		ID:            t.ID,
		ProjectID:     projectID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        string(t.Status),
		Priority:      string(t.Priority),
		StartDate:     t.StartDate,
		EndDate:       t.EndDate,
		Tags:          t.Tags,
		DependencyIDs: t.DependencyIDs,
		AttachmentIDs: t.AttachmentIDs,
		Comments:      comments,
		Focus:         t.Focus,
		FocusOrder:    t.FocusOrder,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func rowToTask(r db.Task) *task.Task {
	var comments []task.Comment
	for _, c := range r.Comments {
		comments = append(comments, task.Comment{ID: c.ID, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	return &task.Task{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Status:        task.Status(r.Status),
		Priority:      task.Priority(r.Priority),
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		Tags:          r.Tags,
		DependencyIDs: r.DependencyIDs,
		AttachmentIDs: r.AttachmentIDs,
		Comments:      comments,
		Focus:         r.Focus,
		FocusOrder:    r.FocusOrder,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
