package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Project is a stored project row.
type Project struct {
	ID          string
	Title       string
	Description string
	Color       string
	CreatedAt   time.Time
}

// Comment is a stored task comment.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is a stored task row. ProjectID is "personal" for personal tasks.
type Task struct {
	ID            string
	ProjectID     string
	Title         string
	Description   string
	Status        string
	Priority      string
	StartDate     string
	EndDate       string
	Tags          []string
	DependencyIDs []string
	AttachmentIDs []string
	Comments      []Comment
	Focus         bool
	FocusOrder    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SaveGraph replaces every stored project and task. Order is kept.
func (d *DB) SaveGraph(ctx context.Context, projects []Project, tasks []Task) error {
	return d.replace(ctx, []string{"tasks", "projects"}, func(exec execFunc) error {
		for i, p := range projects {
			if err := exec(`
				INSERT INTO projects (id, position, title, description, color, created_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, p.ID, i, p.Title, p.Description, p.Color, formatTime(p.CreatedAt)); err != nil {
				return fmt.Errorf("insert project %s: %w", p.ID, err)
			}
		}
		for i, t := range tasks {
			if err := exec(`
				INSERT INTO tasks (id, project_id, position, title, description, status, priority,
					start_date, end_date, tags, dependency_ids, attachment_ids, comments,
					focus, focus_order, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, t.ID, t.ProjectID, i, t.Title, t.Description, t.Status, t.Priority,
				t.StartDate, t.EndDate, encodeJSON(t.Tags), encodeJSON(t.DependencyIDs),
				encodeJSON(t.AttachmentIDs), encodeJSON(t.Comments),
				boolToInt(t.Focus), t.FocusOrder, formatTime(t.CreatedAt), formatTime(t.UpdatedAt)); err != nil {
				return fmt.Errorf("insert task %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// LoadGraph returns every stored project and task in saved order.
func (d *DB) LoadGraph(ctx context.Context) ([]Project, []Task, error) {
	projects, err := d.loadProjects(ctx)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := d.loadTasks(ctx)
	if err != nil {
		return nil, nil, err
	}
	return projects, tasks, nil
}

func (d *DB) loadProjects(ctx context.Context) ([]Project, error) {
	rows, err := d.QueryContext(ctx, `
		SELECT id, title, description, color, created_at
		FROM projects ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Project
	for rows.Next() {
		var p Project
		var created string
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Color, &created); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.CreatedAt = parseTime(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) loadTasks(ctx context.Context) ([]Task, error) {
	rows, err := d.QueryContext(ctx, `
		SELECT id, project_id, title, description, status, priority, start_date, end_date,
			tags, dependency_ids, attachment_ids, comments, focus, focus_order, created_at, updated_at
		FROM tasks ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Task
	for rows.Next() {
		var t Task
		var tags, deps, attachments, comments, created, updated string
		var focus int
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
			&t.StartDate, &t.EndDate, &tags, &deps, &attachments, &comments,
			&focus, &t.FocusOrder, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if err := decodeJSON(tags, &t.Tags); err != nil {
			return nil, fmt.Errorf("task %s tags: %w", t.ID, err)
		}
		if err := decodeJSON(deps, &t.DependencyIDs); err != nil {
			return nil, fmt.Errorf("task %s dependencies: %w", t.ID, err)
		}
		if err := decodeJSON(attachments, &t.AttachmentIDs); err != nil {
			return nil, fmt.Errorf("task %s attachments: %w", t.ID, err)
		}
		if err := decodeJSON(comments, &t.Comments); err != nil {
			return nil, fmt.Errorf("task %s comments: %w", t.ID, err)
		}
		t.Focus = focus != 0
		t.CreatedAt = parseTime(created)
		t.UpdatedAt = parseTime(updated)
		out = append(out, t)
	}
	return out, rows.Err()
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return "[]"
	}
	return string(b)
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
