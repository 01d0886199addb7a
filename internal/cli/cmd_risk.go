package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/taskgraph/internal/engine"
	"github.com/randalmurphal/taskgraph/internal/risk"
)

func newRiskCmd() *cobra.Command {
	var minLevel string

	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Show open tasks at risk, most critical first",
		RunE: func(cmd *cobra.Command, args []string) error {
			min := risk.Level(minLevel)
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				var list []risk.Assessment
				for _, a := range eng.Risks() {
					if a.Level.Rank() >= min.Rank() {
						list = append(list, a)
					}
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), list)
				}
				if len(list) == 0 {
					info(cmd.OutOrStdout(), "Nothing at risk.")
					return nil
				}

				counts := risk.Count(list)
				info(cmd.OutOrStdout(), "%d critical, %d high, %d medium, %d low",
					counts[risk.LevelCritical], counts[risk.LevelHigh], counts[risk.LevelMedium], counts[risk.LevelLow])

				w := newTable(cmd.OutOrStdout())
				_, _ = fmt.Fprintln(w, "LEVEL\tTASK\tTITLE\tPROJECT\tDUE IN\tRECOMMENDATION")
				for _, a := range list {
					due := "-"
					if a.DaysUntilDue != nil {
						due = fmt.Sprintf("%dd", *a.DaysUntilDue)
					}
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						riskLevel(a.Level), a.TaskID, truncate(a.Title, 32),
						truncate(a.ProjectTitle, 20), due, a.Recommendation)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&minLevel, "min", string(risk.LevelLow), "lowest level to show (low, medium, high, critical)")
	return cmd
}
