package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/taskgraph/internal/engine"
	"github.com/randalmurphal/taskgraph/internal/recurrence"
	"github.com/randalmurphal/taskgraph/internal/task"
)

func newRecurCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recur",
		Aliases: []string{"recurring", "template"},
		Short:   "Manage recurring task templates",
		Long: `Manage recurring task templates. Each active template creates at most one
task per day on the days its frequency selects. "taskgraph watch" checks
templates every monitor.recurrence_interval; "taskgraph recur run" checks now.`,
	}
	cmd.AddCommand(newRecurAddCmd())
	cmd.AddCommand(newRecurListCmd())
	cmd.AddCommand(newRecurSetActiveCmd("enable", true))
	cmd.AddCommand(newRecurSetActiveCmd("disable", false))
	cmd.AddCommand(newRecurRmCmd())
	cmd.AddCommand(newRecurRunCmd())
	return cmd
}

func newRecurAddCmd() *cobra.Command {
	var (
		projectID   string
		description string
		priority    string
		frequency   string
		days        []int
		dayOfMonth  int
		start       string
		end         string
		tags        []string
		inactive    bool
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a recurring template",
		Args:  cobra.MinimumNArgs(1),
		Example: `  taskgraph recur add "Standup notes" --frequency daily
  taskgraph recur add "Team sync" --frequency weekly --days 1,3
  taskgraph recur add "Pay rent" --frequency monthly --day-of-month 31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl := recurrence.Template{
				ProjectID:   projectID,
				Title:       strings.Join(args, " "),
				Description: description,
				Priority:    task.Priority(priority),
				Tags:        tags,
				Frequency:   recurrence.Frequency(frequency),
				DaysOfWeek:  days,
				DayOfMonth:  dayOfMonth,
				StartDate:   start,
				EndDate:     end,
				IsActive:    !inactive,
			}
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				t, err := eng.Recurrence().Add(cmd.Context(), tmpl)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), t)
				}
				info(cmd.OutOrStdout(), "Added template %s (%s)", t.Title, t.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project for created tasks (default personal)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description for created tasks")
	cmd.Flags().StringVar(&priority, "priority", "", "priority for created tasks")
	cmd.Flags().StringVar(&frequency, "frequency", string(recurrence.FrequencyDaily), "daily, weekly or monthly")
	cmd.Flags().IntSliceVar(&days, "days", nil, "weekdays for weekly templates (0=Sunday)")
	cmd.Flags().IntVar(&dayOfMonth, "day-of-month", 0, "day for monthly templates (1-31)")
	cmd.Flags().StringVar(&start, "start", "", "first date the template is valid")
	cmd.Flags().StringVar(&end, "end", "", "last date the template is valid")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag for created tasks (repeatable)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "add the template disabled")
	return cmd
}

func newRecurListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recurring templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				templates := eng.Recurrence().List()
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), templates)
				}
				if len(templates) == 0 {
					info(cmd.OutOrStdout(), "No recurring templates.")
					return nil
				}

				w := newTable(cmd.OutOrStdout())
				_, _ = fmt.Fprintln(w, "ID\tTITLE\tSCHEDULE\tACTIVE\tLAST CREATED")
				for _, t := range templates {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						t.ID, truncate(t.Title, 40), describeSchedule(t), yesNo(t.IsActive), dash(t.LastCreated))
				}
				return w.Flush()
			})
		},
	}
}

var weekdayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func describeSchedule(t *recurrence.Template) string {
	switch t.Frequency {
	case recurrence.FrequencyWeekly:
		names := make([]string, 0, len(t.DaysOfWeek))
		for _, d := range t.DaysOfWeek {
			if d >= 0 && d < len(weekdayNames) {
				names = append(names, weekdayNames[d])
			}
		}
		return "weekly " + strings.Join(names, ",")
	case recurrence.FrequencyMonthly:
		return "monthly day " + strconv.Itoa(t.DayOfMonth)
	default:
		return string(t.Frequency)
	}
}

func newRecurSetActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <template-id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				if err := eng.Recurrence().SetActive(cmd.Context(), args[0], active); err != nil {
					return err
				}
				info(cmd.OutOrStdout(), "Template %s %sd", args[0], use)
				return nil
			})
		},
	}
}

func newRecurRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <template-id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a template; tasks it created are kept",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				if err := eng.Recurrence().Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				info(cmd.OutOrStdout(), "Deleted template %s", args[0])
				return nil
			})
		},
	}
}

func newRecurRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Create today's tasks for due templates now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				created := eng.Recurrence().Evaluate(cmd.Context(), eng.Store().Now())
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), created)
				}
				if len(created) == 0 {
					info(cmd.OutOrStdout(), "No templates due today.")
					return nil
				}
				for _, t := range created {
					info(cmd.OutOrStdout(), "Created %s (%s)", t.Title, t.ID)
				}
				return nil
			})
		},
	}
}
