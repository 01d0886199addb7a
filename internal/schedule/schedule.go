// Package schedule orders tasks along their dependency edges and assigns dates.
package schedule

import (
	"github.com/randalmurphal/taskgraph/internal/task"
)

// DefaultBaseDays is the starting point of the duration heuristic.
const DefaultBaseDays = 3

// Order returns tasks so that each task follows its in-set dependencies.
// It is a depth-first visit in input order: tasks without a dependency
// relationship keep their relative order. A task reached again while it is
// still being visited closes a cycle; that edge is not descended, so ordering
// terminates and every task appears exactly once.
func Order(tasks []*task.Task) []*task.Task {
	byID := task.Index(tasks)
	visited := make(map[string]bool, len(tasks))
	visiting := make(map[string]bool)
	out := make([]*task.Task, 0, len(tasks))

	var visit func(t *task.Task)
	visit = func(t *task.Task) {
		if visited[t.ID] || visiting[t.ID] {
			return
		}
		visiting[t.ID] = true
		for _, depID := range t.DependencyIDs {
			// Dependencies outside the set are ignored.
			if dep, ok := byID[depID]; ok {
				visit(dep)
			}
		}
		visiting[t.ID] = false
		visited[t.ID] = true
		out = append(out, t)
	}

	for _, t := range tasks {
		visit(t)
	}
	return out
}

// OrderIDs is Order over IDs.
func OrderIDs(tasks []*task.Task) []string {
	ordered := Order(tasks)
	ids := make([]string, len(ordered))
	for i, t := range ordered {
		ids[i] = t.ID
	}
	return ids
}

// Estimator computes duration estimates.
type Estimator struct {
	// BaseDays is the estimate for a medium-priority task with few
	// dependencies and a short description.
	BaseDays int
}

// EstimateDuration returns the heuristic duration in days using DefaultBaseDays.
func EstimateDuration(t *task.Task) int {
	return Estimator{BaseDays: DefaultBaseDays}.Estimate(t)
}

// Estimate returns the heuristic duration in days, never less than 1.
func (e Estimator) Estimate(t *task.Task) int {
	days := e.BaseDays
	if days <= 0 {
		days = DefaultBaseDays
	}
	switch t.Priority {
	case task.PriorityHigh:
		days += 2
	case task.PriorityLow:
		days--
	}
	if len(t.DependencyIDs) > 2 {
		days += 2
	}
	switch n := len([]rune(t.Description)); {
	case n > 500:
		days += 2
	case n > 200:
		days++
	}
	return max(days, 1)
}

// Slot is a task's assigned date range.
type Slot struct {
	TaskID string `json:"task_id"`
	Start  string `json:"start_date"`
	End    string `json:"end_date"`
	Days   int    `json:"days"`
}

// Options tunes Assign.
type Options struct {
	Estimator Estimator
	// SkipDone leaves completed tasks out of the result.
	SkipDone bool
}

// Assign dates tasks in dependency order starting no earlier than start
// (YYYY-MM-DD). A task starts at the later of start and the latest end of its
// in-set dependencies. Its duration is its existing date span when both dates
// are set, otherwise the estimate. Cycles are tolerated: a dependency not yet
// dated when its dependent is reached does not constrain it.
func Assign(tasks []*task.Task, start string, opts Options) []Slot {
	ends := make(map[string]string, len(tasks))
	slots := make([]Slot, 0, len(tasks))

	for _, t := range Order(tasks) {
		if opts.SkipDone && t.IsDone() {
			continue
		}
		begin := start
		for _, depID := range t.DependencyIDs {
			begin = task.LaterDate(begin, ends[depID])
		}

		days := opts.Estimator.Estimate(t)
		if t.StartDate != "" && t.EndDate != "" {
			if span, ok := task.DaysBetween(t.StartDate, t.EndDate); ok && span > 0 {
				days = span
			}
		}

		end := task.AddDays(begin, days)
		ends[t.ID] = end
		slots = append(slots, Slot{TaskID: t.ID, Start: begin, End: end, Days: days})
	}
	return slots
}
