package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/taskgraph/internal/engine"
)

func newScheduleCmd() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "schedule <project>",
		Short: "Order a project's open tasks by dependency and assign dates",
		Long: `Order a project's open tasks so every task follows its dependencies, then
lay them out back to back starting today using estimated durations.
Use "personal" for tasks outside any project. --apply writes the dates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				view, err := eng.ScheduledView(args[0])
				if err != nil {
					return err
				}
				changed := 0
				if apply {
					if changed, err = eng.ApplySchedule(cmd.Context(), args[0]); err != nil {
						return err
					}
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), view)
				}
				if len(view) == 0 {
					info(cmd.OutOrStdout(), "No open tasks to schedule.")
					return nil
				}

				w := newTable(cmd.OutOrStdout())
				_, _ = fmt.Fprintln(w, "#\tID\tTITLE\tSTATUS\tPRIORITY\tSTART\tEND\tDAYS")
				for i, st := range view {
					_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
						i+1, st.TaskID, truncate(st.Title, 36), statusLabel(st.Status),
						priorityLabel(st.Priority), st.Start, st.End, st.Days)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				if apply {
					info(cmd.OutOrStdout(), "Updated dates on %d tasks", changed)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "write the computed dates to the tasks")
	return cmd
}
