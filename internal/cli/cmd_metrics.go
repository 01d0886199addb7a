package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/taskgraph/internal/automation"
	"github.com/randalmurphal/taskgraph/internal/engine"
	"github.com/randalmurphal/taskgraph/internal/risk"
	"github.com/randalmurphal/taskgraph/internal/store"
)

type metricsReport struct {
	Tasks store.Metrics      `json:"tasks"`
	Rules automation.Stats   `json:"rules"`
	Risk  map[risk.Level]int `json:"risk"`
}

func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show task, rule and risk counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				r := metricsReport{
					Tasks: eng.Store().Metrics(),
					Rules: eng.Rules().Stats(),
					Risk:  risk.Count(eng.Risks()),
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), r)
				}

				w := newTable(cmd.OutOrStdout())
				_, _ = fmt.Fprintf(w, "Projects:\t%d\n", r.Tasks.Projects)
				_, _ = fmt.Fprintf(w, "Tasks:\t%d\n", r.Tasks.Total)
				_, _ = fmt.Fprintf(w, "  todo:\t%d\n", r.Tasks.Todo)
				_, _ = fmt.Fprintf(w, "  in-progress:\t%d\n", r.Tasks.InProgress)
				_, _ = fmt.Fprintf(w, "  done:\t%d\n", r.Tasks.Done)
				_, _ = fmt.Fprintf(w, "Completion:\t%.0f%%\n", r.Tasks.CompletionPercent)
				_, _ = fmt.Fprintf(w, "High priority open:\t%d\n", r.Tasks.HighPriorityOpen)
				_, _ = fmt.Fprintf(w, "Focus:\t%d\n", r.Tasks.Focus)
				_, _ = fmt.Fprintf(w, "Rules:\t%d (%d active)\n", r.Rules.TotalRules, r.Rules.ActiveRules)
				_, _ = fmt.Fprintf(w, "At risk:\t%d critical, %d high, %d medium, %d low\n",
					r.Risk[risk.LevelCritical], r.Risk[risk.LevelHigh], r.Risk[risk.LevelMedium], r.Risk[risk.LevelLow])
				return w.Flush()
			})
		},
	}
}
