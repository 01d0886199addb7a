package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/taskgraph/internal/engine"
	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
	"github.com/randalmurphal/taskgraph/internal/store"
	"github.com/randalmurphal/taskgraph/internal/task"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks", "t"},
		Short:   "Manage tasks",
		Long: `Manage tasks in projects or in the personal list.

Tasks without --project are personal. Task IDs are unique across all
projects, so commands that take a task ID find it wherever it lives.`,
	}
	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskEditCmd())
	cmd.AddCommand(newTaskStatusCmd())
	cmd.AddCommand(newTaskMoveCmd())
	cmd.AddCommand(newTaskRmCmd())
	cmd.AddCommand(newTaskFocusCmd())
	cmd.AddCommand(newTaskCommentCmd())
	return cmd
}

// taskFields holds the editable task flags shared by add and edit.
type taskFields struct {
	description string
	status      string
	priority    string
	start       string
	end         string
	tags        []string
	depends     []string
}

func (f *taskFields) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&f.status, "status", "", "status (todo, in-progress, done)")
	cmd.Flags().StringVar(&f.priority, "priority", "", "priority (low, medium, high)")
	cmd.Flags().StringVar(&f.start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringSliceVar(&f.depends, "depends", nil, "ID of a task this one depends on (repeatable)")
}

func newTaskAddCmd() *cobra.Command {
	var projectID string
	var f taskFields

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		Example: `  taskgraph task add "Write tests" -p <project> --priority high --end 2026-05-01
  taskgraph task add "Deploy" -p <project> --depends <task-id>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				t, err := eng.Store().AddTask(cmd.Context(), projectID, task.Draft{
					Title:         strings.Join(args, " "),
					Description:   f.description,
					Status:        task.Status(f.status),
					Priority:      task.Priority(f.priority),
					StartDate:     f.start,
					EndDate:       f.end,
					Tags:          f.tags,
					DependencyIDs: f.depends,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), t)
				}
				info(cmd.OutOrStdout(), "Created task %s (%s)", t.Title, t.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project ID (default personal)")
	f.register(cmd)
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var projectID string
	var all, focus bool
	var tag string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List open tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				st := eng.Store()
				var views []store.TaskView
				switch {
				case focus:
					views = st.FocusList()
				case all:
					views = st.AllTasks()
				default:
					views = st.ActiveTasks()
				}

				filtered := views[:0:0]
				for _, v := range views {
					if projectID != "" && v.ProjectID != projectID {
						continue
					}
					if tag != "" && !v.HasTag(tag) {
						continue
					}
					filtered = append(filtered, v)
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), filtered)
				}
				if len(filtered) == 0 {
					info(cmd.OutOrStdout(), "No tasks.")
					return nil
				}
				return printTasks(cmd, filtered, st.Snapshot())
			})
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "only tasks in this project")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include done tasks")
	cmd.Flags().BoolVar(&focus, "focus", false, "only the focus list")
	cmd.Flags().StringVar(&tag, "tag", "", "only tasks with this tag")
	return cmd
}

func printTasks(cmd *cobra.Command, views []store.TaskView, snap *store.Snapshot) error {
	index := snap.Index()
	// ID, status, priority, due and project columns take roughly 70 cells.
	titleWidth := max(terminalWidth()-70, 20)

	w := newTable(cmd.OutOrStdout())
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE\tPROJECT\tBLOCKED BY")
	for _, v := range views {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ID,
			truncate(v.Title, titleWidth),
			statusLabel(v.Status),
			priorityLabel(v.Priority),
			dash(v.EndDate),
			truncate(dash(v.ProjectTitle), 20),
			dash(strings.Join(v.UnmetDependencies(index), ",")),
		)
	}
	return w.Flush()
}

func newTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				v, ok := eng.Store().Task(args[0])
				if !ok {
					return tgerrors.ErrTaskNotFound("", args[0])
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), v)
				}

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "%s\n", v.Title)
				_, _ = fmt.Fprintf(out, "  ID:        %s\n", v.ID)
				_, _ = fmt.Fprintf(out, "  Project:   %s (%s)\n", v.ProjectTitle, v.ProjectID)
				_, _ = fmt.Fprintf(out, "  Status:    %s\n", statusLabel(v.Status))
				_, _ = fmt.Fprintf(out, "  Priority:  %s\n", priorityLabel(v.Priority))
				_, _ = fmt.Fprintf(out, "  Dates:     %s .. %s\n", dash(v.StartDate), dash(v.EndDate))
				if len(v.Tags) > 0 {
					_, _ = fmt.Fprintf(out, "  Tags:      %s\n", strings.Join(v.Tags, ", "))
				}
				if len(v.DependencyIDs) > 0 {
					_, _ = fmt.Fprintf(out, "  Depends:   %s\n", strings.Join(v.DependencyIDs, ", "))
				}
				snap := eng.Store().Snapshot()
				if deps := task.Dependents(v.ID, snap.Tasks()); len(deps) > 0 {
					ids := make([]string, len(deps))
					for i, d := range deps {
						ids[i] = d.ID
					}
					_, _ = fmt.Fprintf(out, "  Blocks:    %s\n", strings.Join(ids, ", "))
				}
				if cycle := task.DetectCircularDependency(v.ID, v.DependencyIDs, snap.Index()); cycle != nil {
					_, _ = fmt.Fprintf(out, "  Cycle:     %s\n", strings.Join(cycle, " -> "))
				}
				if v.Description != "" {
					_, _ = fmt.Fprintf(out, "\n%s\n", v.Description)
				}
				for _, c := range v.Comments {
					_, _ = fmt.Fprintf(out, "\n[%s] %s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.Text)
				}
				return nil
			})
		},
	}
}

func newTaskEditCmd() *cobra.Command {
	var title string
	var f taskFields

	cmd := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Change task fields",
		Long: `Change task fields. Only the flags given are changed; pass an empty
value to clear a date (--end "").`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := f.patch(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if patch.IsEmpty() {
				return tgerrors.ErrInvalidInput("flags", "nothing to change")
			}
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				t, err := eng.Store().UpdateTask(cmd.Context(), "", args[0], patch)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), t)
				}
				info(cmd.OutOrStdout(), "Updated task %s", t.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	f.register(cmd)
	return cmd
}

// patch builds a task patch from the flags the user actually set.
func (f *taskFields) patch(cmd *cobra.Command) (task.Patch, error) {
	var p task.Patch
	flags := cmd.Flags()
	if flags.Changed("description") {
		p.Description = &f.description
	}
	if flags.Changed("status") {
		s, err := parseStatusArg(f.status)
		if err != nil {
			return p, err
		}
		p.Status = &s
	}
	if flags.Changed("priority") {
		pr, ok := task.ParsePriority(f.priority)
		if !ok {
			return p, tgerrors.ErrInvalidInput("priority", fmt.Sprintf("unknown priority %q", f.priority))
		}
		p.Priority = &pr
	}
	if flags.Changed("start") {
		p.StartDate = &f.start
	}
	if flags.Changed("end") {
		p.EndDate = &f.end
	}
	if flags.Changed("tag") {
		p.Tags = &f.tags
	}
	if flags.Changed("depends") {
		p.DependencyIDs = &f.depends
	}
	return p, nil
}

func parseStatusArg(raw string) (task.Status, error) {
	s, ok := task.ParseStatus(raw)
	if !ok {
		return "", tgerrors.ErrInvalidInput("status", fmt.Sprintf("unknown status %q", raw))
	}
	return s, nil
}

func newTaskStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Set task status (todo, in-progress, done)",
		Long: `Set task status. Completing a task starts every dependent whose
dependencies are now all done, and fires matching automation rules.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parseStatusArg(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				if err := eng.Store().UpdateTaskStatus(cmd.Context(), "", args[0], status); err != nil {
					return err
				}
				info(cmd.OutOrStdout(), "Task %s is %s", args[0], status)
				return nil
			})
		},
	}
}

func newTaskMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mv <task-id> <project-id>",
		Aliases: []string{"move"},
		Short:   "Move a task to another project (\"personal\" for the personal list)",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				if err := eng.Store().MoveTask(cmd.Context(), args[0], "", args[1]); err != nil {
					return err
				}
				info(cmd.OutOrStdout(), "Moved task %s to %s", args[0], args[1])
				return nil
			})
		},
	}
}

func newTaskRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <task-id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a task and drop it from every dependency list",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				if err := eng.Store().DeleteTask(cmd.Context(), "", args[0]); err != nil {
					return err
				}
				info(cmd.OutOrStdout(), "Deleted task %s", args[0])
				return nil
			})
		},
	}
}

func newTaskFocusCmd() *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "focus <task-id>",
		Short: "Add a task to the focus list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				if err := eng.Store().SetFocus(cmd.Context(), "", args[0], !remove); err != nil {
					return err
				}
				if remove {
					info(cmd.OutOrStdout(), "Removed %s from focus", args[0])
				} else {
					info(cmd.OutOrStdout(), "Focused %s", args[0])
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "remove from the focus list")
	return cmd
}

func newTaskCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <task-id> <text>",
		Short: "Add a comment to a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				c, err := eng.Store().AddComment(cmd.Context(), "", args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				info(cmd.OutOrStdout(), "Added comment %s", c.ID)
				return nil
			})
		},
	}
}
