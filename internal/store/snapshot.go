package store

import (
	"github.com/randalmurphal/taskgraph/internal/task"
)

// Snapshot is an immutable deep copy of the task graph at one point in time.
// Hooks receive the snapshots taken before and after a mutation.
type Snapshot struct {
	Version  uint64
	Projects []*task.Project
	Personal []*task.Task

	index map[string]located
}

type located struct {
	projectID string
	task      *task.Task
}

func newSnapshot(version uint64, projects []*task.Project, personal []*task.Task) *Snapshot {
	snap := &Snapshot{
		Version:  version,
		Projects: make([]*task.Project, len(projects)),
		Personal: task.CloneTasks(personal),
	}
	for i, p := range projects {
		snap.Projects[i] = p.Clone()
	}
	snap.buildIndex()
	return snap
}

func (s *Snapshot) buildIndex() {
	s.index = make(map[string]located)
	for _, p := range s.Projects {
		for _, t := range p.Tasks {
			s.index[t.ID] = located{projectID: p.ID, task: t}
		}
	}
	for _, t := range s.Personal {
		s.index[t.ID] = located{projectID: task.PersonalProjectID, task: t}
	}
}

// Task returns the task with the given ID and the ID of the project holding it.
func (s *Snapshot) Task(id string) (*task.Task, string, bool) {
	if s == nil {
		return nil, "", false
	}
	loc, ok := s.index[id]
	if !ok {
		return nil, "", false
	}
	return loc.task, loc.projectID, true
}

// Project returns the project with the given ID.
func (s *Snapshot) Project(id string) *task.Project {
	if s == nil {
		return nil
	}
	for _, p := range s.Projects {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Tasks returns every task, projects first in order, then personal tasks.
func (s *Snapshot) Tasks() []*task.Task {
	if s == nil {
		return nil
	}
	out := make([]*task.Task, 0, len(s.index))
	for _, p := range s.Projects {
		out = append(out, p.Tasks...)
	}
	return append(out, s.Personal...)
}

// TasksIn returns the tasks of one project; PersonalProjectID selects personal tasks.
func (s *Snapshot) TasksIn(projectID string) []*task.Task {
	if s == nil {
		return nil
	}
	if projectID == task.PersonalProjectID {
		return s.Personal
	}
	if p := s.Project(projectID); p != nil {
		return p.Tasks
	}
	return nil
}

// Index returns an ID lookup over every task in the snapshot.
func (s *Snapshot) Index() map[string]*task.Task {
	out := make(map[string]*task.Task, len(s.index))
	for id, loc := range s.index {
		out[id] = loc.task
	}
	return out
}

// Len returns the total number of tasks.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.index)
}
