package db

import (
	"context"
	"fmt"
	"time"
)

// Rule is a stored automation rule. Trigger and Actions hold JSON documents
// owned by the automation package.
type Rule struct {
	ID              string
	Name            string
	Description     string
	IsActive        bool
	Trigger         string
	Actions         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastTriggeredAt time.Time
	TriggerCount    int
}

// SaveRules replaces every stored rule. Order is kept.
func (d *DB) SaveRules(ctx context.Context, rules []Rule) error {
	return d.replace(ctx, []string{"rules"}, func(exec execFunc) error {
		for i, r := range rules {
			if err := exec(`
				INSERT INTO rules (id, position, name, description, is_active, trigger_def, actions,
					created_at, updated_at, last_triggered_at, trigger_count)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, r.ID, i, r.Name, r.Description, boolToInt(r.IsActive), r.Trigger, r.Actions,
				formatTime(r.CreatedAt), formatTime(r.UpdatedAt), formatTime(r.LastTriggeredAt),
				r.TriggerCount); err != nil {
				return fmt.Errorf("insert rule %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// LoadRules returns every stored rule in saved order.
func (d *DB) LoadRules(ctx context.Context) ([]Rule, error) {
	rows, err := d.QueryContext(ctx, `
		SELECT id, name, description, is_active, trigger_def, actions,
			created_at, updated_at, last_triggered_at, trigger_count
		FROM rules ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Rule
	for rows.Next() {
		var r Rule
		var active int
		var created, updated, last string
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &active, &r.Trigger, &r.Actions,
			&created, &updated, &last, &r.TriggerCount); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.IsActive = active != 0
		r.CreatedAt = parseTime(created)
		r.UpdatedAt = parseTime(updated)
		r.LastTriggeredAt = parseTime(last)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Template is a stored recurring task template.
type Template struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Priority    string
	Tags        []string
	Frequency   string
	DaysOfWeek  []int
	DayOfMonth  int
	StartDate   string
	EndDate     string
	LastCreated string
	IsActive    bool
	CreatedAt   time.Time
}

// SaveTemplates replaces every stored template. Order is kept.
func (d *DB) SaveTemplates(ctx context.Context, templates []Template) error {
	return d.replace(ctx, []string{"recurring_templates"}, func(exec execFunc) error {
		for i, t := range templates {
			if err := exec(`
				INSERT INTO recurring_templates (id, position, project_id, title, description, priority,
					tags, frequency, days_of_week, day_of_month, start_date, end_date,
					last_created, is_active, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, t.ID, i, t.ProjectID, t.Title, t.Description, t.Priority,
				encodeJSON(t.Tags), t.Frequency, encodeJSON(t.DaysOfWeek), t.DayOfMonth,
				t.StartDate, t.EndDate, t.LastCreated, boolToInt(t.IsActive),
				formatTime(t.CreatedAt)); err != nil {
				return fmt.Errorf("insert template %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// LoadTemplates returns every stored template in saved order.
func (d *DB) LoadTemplates(ctx context.Context) ([]Template, error) {
	rows, err := d.QueryContext(ctx, `
		SELECT id, project_id, title, description, priority, tags, frequency, days_of_week,
			day_of_month, start_date, end_date, last_created, is_active, created_at
		FROM recurring_templates ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Template
	for rows.Next() {
		var t Template
		var tags, days, created string
		var active int
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Priority, &tags,
			&t.Frequency, &days, &t.DayOfMonth, &t.StartDate, &t.EndDate, &t.LastCreated,
			&active, &created); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		if err := decodeJSON(tags, &t.Tags); err != nil {
			return nil, fmt.Errorf("template %s tags: %w", t.ID, err)
		}
		if err := decodeJSON(days, &t.DaysOfWeek); err != nil {
			return nil, fmt.Errorf("template %s days: %w", t.ID, err)
		}
		t.IsActive = active != 0
		t.CreatedAt = parseTime(created)
		out = append(out, t)
	}
	return out, rows.Err()
}
