// Package recurrence materializes tasks from recurring templates. Each
// template produces at most one task per calendar day.
package recurrence

import (
	"fmt"
	"slices"
	"strings"
	"time"

	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// Frequency is how often a template recurs.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// RecurringTag is added to every materialized task.
const RecurringTag = "recurring"

// Template describes a task that is created on a schedule.
type Template struct {
	ID          string        `json:"id" yaml:"id"`
	ProjectID   string        `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Title       string        `json:"title" yaml:"title"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Priority    task.Priority `json:"priority" yaml:"priority"`
	Tags        []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	Frequency   Frequency     `json:"frequency" yaml:"frequency"`
	// DaysOfWeek selects weekdays for weekly templates (0 = Sunday).
	DaysOfWeek []int `json:"days_of_week,omitempty" yaml:"days_of_week,omitempty"`
	// DayOfMonth selects the day for monthly templates; past the month's
	// end it falls on the last day.
	DayOfMonth int `json:"day_of_month,omitempty" yaml:"day_of_month,omitempty"`

	// StartDate and EndDate bound the validity window; empty means open.
	StartDate string `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty" yaml:"end_date,omitempty"`

	// LastCreated is the date of the most recent materialization.
	LastCreated string    `json:"last_created,omitempty" yaml:"last_created,omitempty"`
	IsActive    bool      `json:"is_active" yaml:"is_active"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Clone returns a deep copy.
func (t *Template) Clone() *Template {
	c := *t
	c.Tags = slices.Clone(t.Tags)
	c.DaysOfWeek = slices.Clone(t.DaysOfWeek)
	return &c
}

// Normalize canonicalizes loose input in place.
func (t *Template) Normalize() {
	t.Title = strings.TrimSpace(t.Title)
	t.Frequency = Frequency(strings.ToLower(strings.TrimSpace(string(t.Frequency))))
	if !task.IsValidPriority(t.Priority) {
		t.Priority, _ = task.ParsePriority(string(t.Priority))
	}
	t.StartDate = task.NormalizeDate(t.StartDate)
	t.EndDate = task.NormalizeDate(t.EndDate)

	days := t.DaysOfWeek[:0:0]
	for _, d := range t.DaysOfWeek {
		if d >= 0 && d <= 6 && !slices.Contains(days, d) {
			days = append(days, d)
		}
	}
	slices.Sort(days)
	t.DaysOfWeek = days
	if len(t.DaysOfWeek) == 0 {
		t.DaysOfWeek = nil
	}
}

// Validate checks the template can be evaluated. Call Normalize first.
func (t *Template) Validate() error {
	if t.Title == "" {
		return tgerrors.ErrInvalidInput("title", "a template needs a title")
	}
	switch t.Frequency {
	case FrequencyDaily:
	case FrequencyWeekly:
		if len(t.DaysOfWeek) == 0 {
			return tgerrors.ErrInvalidInput("days_of_week", "weekly templates need at least one weekday (0-6)")
		}
	case FrequencyMonthly:
		if t.DayOfMonth < 1 || t.DayOfMonth > 31 {
			return tgerrors.ErrInvalidInput("day_of_month", "monthly templates need a day between 1 and 31")
		}
	default:
		return tgerrors.ErrInvalidInput("frequency", fmt.Sprintf("unknown frequency %q", t.Frequency))
	}
	if t.StartDate != "" && t.EndDate != "" && t.EndDate < t.StartDate {
		return tgerrors.ErrInvalidInput("end_date", "end date is before start date")
	}
	return nil
}

// DueOn reports whether the template should produce a task on day,
// ignoring the active flag and the LastCreated marker.
func (t *Template) DueOn(day time.Time) bool {
	date := task.FormatDate(day)
	if t.StartDate != "" && date < t.StartDate {
		return false
	}
	if t.EndDate != "" && date > t.EndDate {
		return false
	}

	switch t.Frequency {
	case FrequencyDaily:
		return true
	case FrequencyWeekly:
		return slices.Contains(t.DaysOfWeek, int(day.Weekday()))
	case FrequencyMonthly:
		return day.Day() == min(t.DayOfMonth, lastDayOfMonth(day))
	default:
		return false
	}
}

func lastDayOfMonth(day time.Time) int {
	return time.Date(day.Year(), day.Month()+1, 0, 0, 0, 0, 0, day.Location()).Day()
}

// draft builds the task a template materializes on date.
func (t *Template) draft(date string) task.Draft {
	tags := append(slices.Clone(t.Tags), RecurringTag)
	return task.Draft{
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		StartDate:   date,
		EndDate:     date,
		Tags:        tags,
	}
}
