// Package risk flags open tasks whose schedule is in trouble.
package risk

import (
	"fmt"
	"sort"

	"github.com/randalmurphal/taskgraph/internal/store"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// Level is the severity of a task's schedule risk.
type Level string

const (
	LevelCritical Level = "critical"
	LevelHigh     Level = "high"
	LevelMedium   Level = "medium"
	LevelLow      Level = "low"
)

// Rank orders levels; higher is more severe.
func (l Level) Rank() int {
	switch l {
	case LevelCritical:
		return 3
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// Factor is one condition contributing to a task's risk.
type Factor string

const (
	FactorOverdue       Factor = "overdue"
	FactorDueSoon       Factor = "due_soon"
	FactorDueThisWeek   Factor = "due_this_week"
	FactorBlocked       Factor = "blocked"
	FactorUnstartedHigh Factor = "unstarted_high_priority"
	FactorUnscheduled   Factor = "unscheduled"
)

// Level returns the minimum risk level the factor implies.
func (f Factor) Level() Level {
	switch f {
	case FactorOverdue:
		return LevelCritical
	case FactorDueSoon:
		return LevelHigh
	default:
		return LevelMedium
	}
}

// Assessment is the risk evaluation of one task.
type Assessment struct {
	TaskID         string   `json:"task_id"`
	ProjectID      string   `json:"project_id"`
	ProjectTitle   string   `json:"project_title"`
	Title          string   `json:"title"`
	Level          Level    `json:"level"`
	Factors        []Factor `json:"factors"`
	Recommendation string   `json:"recommendation"`
	// DaysUntilDue is negative when overdue and nil when there is no end date.
	DaysUntilDue *int `json:"days_until_due,omitempty"`
}

// Default thresholds in days.
const (
	DefaultDueSoonDays = 2
	DefaultDueWeekDays = 7
)

// Analyzer scores tasks. Zero thresholds use the defaults.
type Analyzer struct {
	DueSoonDays int
	DueWeekDays int
}

// Analyze returns assessments for every open task with at least one risk
// factor, sorted critical first. Order within a level follows the input.
func (a Analyzer) Analyze(views []store.TaskView, today string) []Assessment {
	soon, week := a.DueSoonDays, a.DueWeekDays
	if soon <= 0 {
		soon = DefaultDueSoonDays
	}
	if week <= 0 {
		week = DefaultDueWeekDays
	}

	byID := make(map[string]*task.Task, len(views))
	for _, v := range views {
		byID[v.ID] = v.Task
	}

	var out []Assessment
	for _, v := range views {
		if v.IsDone() {
			continue
		}
		as, ok := assess(v, byID, today, soon, week)
		if ok {
			out = append(out, as)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Level.Rank() > out[j].Level.Rank()
	})
	return out
}

func assess(v store.TaskView, byID map[string]*task.Task, today string, soon, week int) (Assessment, bool) {
	as := Assessment{
		TaskID:       v.ID,
		ProjectID:    v.ProjectID,
		ProjectTitle: v.ProjectTitle,
		Title:        v.Title,
	}

	if v.EndDate != "" {
		if days, ok := task.DaysBetween(today, v.EndDate); ok {
			as.DaysUntilDue = &days
			switch {
			case days < 0:
				as.Factors = append(as.Factors, FactorOverdue)
			case days <= soon:
				as.Factors = append(as.Factors, FactorDueSoon)
			case days <= week:
				as.Factors = append(as.Factors, FactorDueThisWeek)
			}
		}
	}

	unmet := v.UnmetDependencies(byID)
	if len(unmet) > 0 {
		as.Factors = append(as.Factors, FactorBlocked)
	}
	if v.Priority == task.PriorityHigh && v.Status == task.StatusTodo {
		as.Factors = append(as.Factors, FactorUnstartedHigh)
	}
	if v.StartDate == "" && v.EndDate == "" {
		as.Factors = append(as.Factors, FactorUnscheduled)
	}

	if len(as.Factors) == 0 {
		return as, false
	}

	as.Level = LevelLow
	for _, f := range as.Factors {
		if f.Level().Rank() > as.Level.Rank() {
			as.Level = f.Level()
		}
	}
	as.Recommendation = recommend(as, len(unmet))
	return as, true
}

// recommend picks the message for the most pressing factor:
// overdue, then blocked, then due soon, then unstarted high priority.
func recommend(as Assessment, unmet int) string {
	has := func(f Factor) bool {
		for _, x := range as.Factors {
			if x == f {
				return true
			}
		}
		return false
	}

	switch {
	case has(FactorOverdue):
		return fmt.Sprintf("%q is %s overdue. Reschedule it or mark it done.", as.Title, plural(-*as.DaysUntilDue, "day"))
	case has(FactorBlocked):
		return fmt.Sprintf("%q is waiting on %s. Finish those first or drop the link.", as.Title, plural(unmet, "open dependency"))
	case has(FactorDueSoon):
		if *as.DaysUntilDue == 0 {
			return fmt.Sprintf("%q is due today. Start on it now.", as.Title)
		}
		return fmt.Sprintf("%q is due in %s. Start on it now.", as.Title, plural(*as.DaysUntilDue, "day"))
	case has(FactorUnstartedHigh):
		return fmt.Sprintf("%q is high priority but not started. Move it to in progress.", as.Title)
	case has(FactorUnscheduled):
		return fmt.Sprintf("%q has no dates. Schedule it so it does not slip.", as.Title)
	default:
		return fmt.Sprintf("Keep an eye on %q; it is due within the week.", as.Title)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	if noun == "open dependency" {
		return fmt.Sprintf("%d open dependencies", n)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// Count tallies assessments per level.
func Count(list []Assessment) map[Level]int {
	out := make(map[Level]int, 4)
	for _, a := range list {
		out[a.Level]++
	}
	return out
}
