package task

import (
	"slices"
	"time"
)

// Draft is the input for creating a task. Zero values take defaults.
type Draft struct {
	// ID is optional; callers that pre-assign identities (plan hydration) set it.
	ID            string   `yaml:"id,omitempty" json:"id,omitempty"`
	Title         string   `yaml:"title" json:"title"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	Status        Status   `yaml:"status,omitempty" json:"status,omitempty"`
	Priority      Priority `yaml:"priority,omitempty" json:"priority,omitempty"`
	StartDate     string   `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate       string   `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	Tags          []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	DependencyIDs []string `yaml:"dependency_ids,omitempty" json:"dependency_ids,omitempty"`
}

// Build creates a normalized task from the draft. id is used when the draft has none.
func (d Draft) Build(id string, now time.Time) *Task {
	if d.ID != "" {
		id = d.ID
	}
	t := New(id, d.Title, now)
	t.Description = d.Description
	if IsValidStatus(d.Status) {
		t.Status = d.Status
	}
	if IsValidPriority(d.Priority) {
		t.Priority = d.Priority
	}
	t.StartDate = d.StartDate
	t.EndDate = d.EndDate
	t.Tags = slices.Clone(d.Tags)
	t.DependencyIDs = slices.Clone(d.DependencyIDs)
	Normalize(t)
	return t
}

// Patch represents a partial update.
// nil pointer => "no change"; empty string for date fields => clear.
type Patch struct {
	Title         *string   `yaml:"title,omitempty" json:"title,omitempty"`
	Description   *string   `yaml:"description,omitempty" json:"description,omitempty"`
	Status        *Status   `yaml:"status,omitempty" json:"status,omitempty"`
	Priority      *Priority `yaml:"priority,omitempty" json:"priority,omitempty"`
	StartDate     *string   `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate       *string   `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	Tags          *[]string `yaml:"tags,omitempty" json:"tags,omitempty"`
	DependencyIDs *[]string `yaml:"dependency_ids,omitempty" json:"dependency_ids,omitempty"`
	AttachmentIDs *[]string `yaml:"attachment_ids,omitempty" json:"attachment_ids,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.StartDate == nil && p.EndDate == nil &&
		p.Tags == nil && p.DependencyIDs == nil && p.AttachmentIDs == nil
}

// Apply writes the patch onto t and re-normalizes it.
// Invalid enum values in the patch are ignored.
func (p Patch) Apply(t *Task, now time.Time) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil && IsValidStatus(*p.Status) {
		t.Status = *p.Status
	}
	if p.Priority != nil && IsValidPriority(*p.Priority) {
		t.Priority = *p.Priority
	}
	if p.StartDate != nil {
		t.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		t.EndDate = *p.EndDate
	}
	if p.Tags != nil {
		t.Tags = slices.Clone(*p.Tags)
	}
	if p.DependencyIDs != nil {
		t.DependencyIDs = slices.Clone(*p.DependencyIDs)
	}
	if p.AttachmentIDs != nil {
		t.AttachmentIDs = slices.Clone(*p.AttachmentIDs)
	}
	t.UpdatedAt = now
	Normalize(t)
}
