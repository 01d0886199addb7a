package plan

import (
	"fmt"

	"github.com/randalmurphal/taskgraph/internal/schedule"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// Hydrate converts plan drafts into task drafts with identities, dates and
// dependency links.
//
// It works in two phases. Phase one assigns a fresh identity to every draft in
// the batch. Phase two resolves each draft's dependency indices against those
// identities, dropping indices that are out of range, self-referential or
// repeated. References can only point within the batch.
//
// Dates are start = today + startDayOffset and end = start + durationDays.
// A missing duration is estimated. Both spans are capped at MaxDaySpan.
func Hydrate(drafts []Draft, today string, newID task.IDGenerator, est schedule.Estimator) ([]task.Draft, []Issue) {
	if newID == nil {
		newID = task.NewID
	}

	// Phase 1: identities.
	ids := make([]string, len(drafts))
	for i := range drafts {
		ids[i] = newID()
	}

	// Phase 2: index -> identity, within this batch only.
	var issues []Issue
	deps := make([][]string, len(drafts))
	for i, d := range drafts {
		seen := make(map[int]bool, len(d.DependencyIndices))
		for _, idx := range d.DependencyIndices {
			switch {
			case idx < 0 || idx >= len(drafts):
				issues = append(issues, Issue{Index: i, Field: "dependencyIndices",
					Problem: fmt.Sprintf("index %d out of range, dropped", idx)})
			case idx == i:
				issues = append(issues, Issue{Index: i, Field: "dependencyIndices",
					Problem: "self reference dropped"})
			case seen[idx]:
			default:
				seen[idx] = true
				deps[i] = append(deps[i], ids[idx])
			}
		}
	}

	out := make([]task.Draft, len(drafts))
	for i, d := range drafts {
		offset := min(max(d.StartDayOffset, 0), MaxDaySpan)
		days := min(d.DurationDays, MaxDaySpan)
		if days < 1 {
			days = est.Estimate(&task.Task{
				Priority:      d.Priority,
				Description:   d.Description,
				DependencyIDs: deps[i],
			})
		}
		start := task.AddDays(today, offset)

		out[i] = task.Draft{
			ID:            ids[i],
			Title:         d.Title,
			Description:   d.Description,
			Status:        d.Status,
			Priority:      d.Priority,
			StartDate:     start,
			EndDate:       task.AddDays(start, days),
			Tags:          d.Tags,
			DependencyIDs: deps[i],
		}
	}
	return out, issues
}
