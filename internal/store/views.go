package store

import (
	"sort"

	"github.com/randalmurphal/taskgraph/internal/task"
)

// TaskView is a task annotated with its parent project.
type TaskView struct {
	*task.Task
	ProjectID    string `json:"project_id"`
	ProjectTitle string `json:"project_title"`
	ProjectColor string `json:"project_color"`
}

// Metrics aggregates counts over the whole graph.
type Metrics struct {
	Projects          int     `json:"projects"`
	Total             int     `json:"total"`
	Todo              int     `json:"todo"`
	InProgress        int     `json:"in_progress"`
	Done              int     `json:"done"`
	HighPriorityOpen  int     `json:"high_priority_open"`
	Focus             int     `json:"focus"`
	CompletionPercent float64 `json:"completion_percent"`
}

// Views derives the annotated flat task list from a snapshot.
func (s *Snapshot) Views() []TaskView {
	if s == nil {
		return nil
	}
	out := make([]TaskView, 0, len(s.index))
	for _, p := range s.Projects {
		for _, t := range p.Tasks {
			out = append(out, TaskView{Task: t, ProjectID: p.ID, ProjectTitle: p.Title, ProjectColor: p.Color})
		}
	}
	for _, t := range s.Personal {
		out = append(out, TaskView{
			Task:         t,
			ProjectID:    task.PersonalProjectID,
			ProjectTitle: task.PersonalProjectTitle,
			ProjectColor: task.DefaultColor,
		})
	}
	return out
}

// Metrics computes aggregate counts for the snapshot.
func (s *Snapshot) Metrics() Metrics {
	m := Metrics{Projects: len(s.Projects)}
	for _, t := range s.Tasks() {
		m.Total++
		switch t.Status {
		case task.StatusDone:
			m.Done++
		case task.StatusInProgress:
			m.InProgress++
		default:
			m.Todo++
		}
		if t.Priority == task.PriorityHigh && !t.IsDone() {
			m.HighPriorityOpen++
		}
		if t.Focus {
			m.Focus++
		}
	}
	if m.Total > 0 {
		m.CompletionPercent = float64(m.Done) * 100 / float64(m.Total)
	}
	return m
}

// AllTasks returns every task annotated with its project.
func (s *Store) AllTasks() []TaskView {
	return s.Snapshot().Views()
}

// ActiveTasks returns tasks that are not done.
func (s *Store) ActiveTasks() []TaskView {
	all := s.AllTasks()
	out := all[:0]
	for _, v := range all {
		if !v.IsDone() {
			out = append(out, v)
		}
	}
	return out
}

// FocusList returns focused tasks ordered by their focus index.
func (s *Store) FocusList() []TaskView {
	var out []TaskView
	for _, v := range s.AllTasks() {
		if v.Focus {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FocusOrder < out[j].FocusOrder
	})
	return out
}

// Metrics returns current aggregate counts.
func (s *Store) Metrics() Metrics {
	return s.Snapshot().Metrics()
}

// Task returns a copy of one task with its project annotation.
func (s *Store) Task(id string) (TaskView, bool) {
	snap := s.Snapshot()
	t, projectID, ok := snap.Task(id)
	if !ok {
		return TaskView{}, false
	}
	v := TaskView{Task: t, ProjectID: projectID}
	if p := snap.Project(projectID); p != nil {
		v.ProjectTitle, v.ProjectColor = p.Title, p.Color
	} else {
		v.ProjectTitle, v.ProjectColor = task.PersonalProjectTitle, task.DefaultColor
	}
	return v, true
}

// Projects returns copies of all projects with their tasks.
func (s *Store) Projects() []*task.Project {
	return s.Snapshot().Projects
}
