package task

import "slices"

// Index builds an ID lookup map over tasks.
func Index(tasks []*Task) map[string]*Task {
	m := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		m[t.ID] = t
	}
	return m
}

// UnmetDependencies returns the IDs of dependencies that are not done.
// A dependency that does not exist is treated as unmet.
func (t *Task) UnmetDependencies(byID map[string]*Task) []string {
	var unmet []string
	for _, depID := range t.DependencyIDs {
		dep, ok := byID[depID]
		if !ok || !dep.IsDone() {
			unmet = append(unmet, depID)
		}
	}
	return unmet
}

// HasUnmetDependencies returns true if any dependency is not done.
func (t *Task) HasUnmetDependencies(byID map[string]*Task) bool {
	for _, depID := range t.DependencyIDs {
		dep, ok := byID[depID]
		if !ok || !dep.IsDone() {
			return true
		}
	}
	return false
}

// Dependents returns the tasks that list id among their dependencies,
// in the order they appear in tasks. Edges are stored one way, so this scans.
func Dependents(id string, tasks []*Task) []*Task {
	var out []*Task
	for _, t := range tasks {
		if t.DependsOn(id) {
			out = append(out, t)
		}
	}
	return out
}

// StripDependency removes id from every task's dependency list.
// Returns the IDs of tasks that were changed.
func StripDependency(id string, tasks []*Task) []string {
	var changed []string
	for _, t := range tasks {
		if i := slices.Index(t.DependencyIDs, id); i >= 0 {
			t.DependencyIDs = slices.Delete(t.DependencyIDs, i, i+1)
			if len(t.DependencyIDs) == 0 {
				t.DependencyIDs = nil
			}
			changed = append(changed, t.ID)
		}
	}
	return changed
}

// DetectCircularDependency reports the cycle that would exist if taskID depended
// on deps. Cycles are tolerated by the engine; this is used to warn, not to reject.
// Returns the cycle path, or nil.
func DetectCircularDependency(taskID string, deps []string, tasks map[string]*Task) []string {
	// Copy slices to avoid mutating original task data
	graph := make(map[string][]string, len(tasks)+1)
	for id, t := range tasks {
		graph[id] = slices.Clone(t.DependencyIDs)
	}
	graph[taskID] = slices.Clone(deps)

	visited := make(map[string]bool)
	path := make(map[string]bool)
	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		if path[id] {
			cyclePath = append(cyclePath, id)
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		path[id] = true
		for _, dep := range graph[id] {
			if dfs(dep) {
				cyclePath = append(cyclePath, id)
				return true
			}
		}
		path[id] = false
		return false
	}

	if !dfs(taskID) {
		return nil
	}
	slices.Reverse(cyclePath)
	return cyclePath
}
