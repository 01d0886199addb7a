package task

import (
	"slices"
	"testing"
)

func TestUnmetDependencies(t *testing.T) {
	tasks := []*Task{
		{ID: "a", Status: StatusDone},
		{ID: "b", Status: StatusInProgress},
		{ID: "c", DependencyIDs: []string{"a", "b", "missing"}},
		{ID: "d", DependencyIDs: []string{"a"}},
	}
	byID := Index(tasks)

	got := byID["c"].UnmetDependencies(byID)
	want := []string{"b", "missing"}
	if !slices.Equal(got, want) {
		t.Errorf("UnmetDependencies = %v, want %v", got, want)
	}
	if !byID["c"].HasUnmetDependencies(byID) {
		t.Error("c should have unmet dependencies")
	}
	if byID["d"].HasUnmetDependencies(byID) {
		t.Error("d should have all dependencies met")
	}
}

func TestDependentsAndStrip(t *testing.T) {
	tasks := []*Task{
		{ID: "a"},
		{ID: "b", DependencyIDs: []string{"a"}},
		{ID: "c", DependencyIDs: []string{"x", "a"}},
		{ID: "d", DependencyIDs: []string{"x"}},
	}

	var ids []string
	for _, d := range Dependents("a", tasks) {
		ids = append(ids, d.ID)
	}
	if !slices.Equal(ids, []string{"b", "c"}) {
		t.Errorf("Dependents(a) = %v, want [b c]", ids)
	}

	changed := StripDependency("a", tasks)
	if !slices.Equal(changed, []string{"b", "c"}) {
		t.Errorf("StripDependency changed = %v, want [b c]", changed)
	}
	if tasks[1].DependencyIDs != nil {
		t.Errorf("b deps = %v, want nil", tasks[1].DependencyIDs)
	}
	if !slices.Equal(tasks[2].DependencyIDs, []string{"x"}) {
		t.Errorf("c deps = %v, want [x]", tasks[2].DependencyIDs)
	}
}

func TestDetectCircularDependency(t *testing.T) {
	tasks := map[string]*Task{
		"a": {ID: "a"},
		"b": {ID: "b", DependencyIDs: []string{"a"}},
		"c": {ID: "c", DependencyIDs: []string{"b"}},
	}

	tests := []struct {
		name    string
		taskID  string
		deps    []string
		wantNil bool
	}{
		{"no cycle", "d", []string{"c"}, true},
		{"direct cycle", "a", []string{"b"}, false},
		{"transitive cycle", "a", []string{"c"}, false},
		{"self cycle", "a", []string{"a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycle := DetectCircularDependency(tt.taskID, tt.deps, tasks)
			if tt.wantNil {
				if cycle != nil {
					t.Errorf("expected no cycle, got %v", cycle)
				}
				return
			}
			if len(cycle) < 2 {
				t.Fatalf("expected cycle path, got %v", cycle)
			}
			if cycle[0] != cycle[len(cycle)-1] {
				t.Errorf("cycle path should start and end on the same task: %v", cycle)
			}
		})
	}

	// Original graph must not be mutated.
	if !slices.Equal(tasks["a"].DependencyIDs, nil) {
		t.Errorf("input graph mutated: a deps = %v", tasks["a"].DependencyIDs)
	}
}
