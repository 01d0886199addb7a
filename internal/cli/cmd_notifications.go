package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/taskgraph/internal/engine"
)

func newNotificationsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notify"},
		Short:   "Run a deadline check and list the resulting notifications",
		Long: `Run one deadline check: every open task that is overdue or due today
produces a notification, and date-based automation rules are evaluated.
Warning and critical notifications are listed; --all includes the rest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				eng.Deadlines().Check(cmd.Context(), eng.Store().Now())

				list := eng.Inbox().Persistent()
				if all {
					list = eng.Inbox().All()
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), list)
				}
				if len(list) == 0 {
					info(cmd.OutOrStdout(), "No notifications.")
					return nil
				}

				w := newTable(cmd.OutOrStdout())
				_, _ = fmt.Fprintln(w, "SEVERITY\tTITLE\tMESSAGE\tTASK")
				for _, n := range list {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						severityLabel(n.Severity), n.Title, truncate(n.Message, 60), dash(n.TaskID))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include info and success notifications")
	return cmd
}
