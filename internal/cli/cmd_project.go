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

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects", "p"},
		Short:   "Manage projects",
	}
	cmd.AddCommand(newProjectAddCmd())
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectShowCmd())
	cmd.AddCommand(newProjectEditCmd())
	cmd.AddCommand(newProjectRmCmd())
	return cmd
}

func newProjectAddCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				p, err := eng.Store().AddProject(cmd.Context(), strings.Join(args, " "), description, nil)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), p)
				}
				info(cmd.OutOrStdout(), "Created project %s (%s)", p.Title, p.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "project description")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				projects := eng.Store().Projects()
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), projects)
				}
				if len(projects) == 0 {
					info(cmd.OutOrStdout(), "No projects. Create one with: taskgraph project add <title>")
					return nil
				}

				w := newTable(cmd.OutOrStdout())
				_, _ = fmt.Fprintln(w, "ID\tTITLE\tTASKS\tDONE")
				for _, p := range projects {
					done := 0
					for _, t := range p.Tasks {
						if t.IsDone() {
							done++
						}
					}
					_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", p.ID, truncate(p.Title, 40), len(p.Tasks), done)
				}
				return w.Flush()
			})
		},
	}
}

func newProjectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				snap := eng.Store().Snapshot()
				id := args[0]
				var title, description string
				if id == task.PersonalProjectID {
					title = task.PersonalProjectTitle
				} else {
					p := snap.Project(id)
					if p == nil {
						return tgerrors.ErrProjectNotFound(id)
					}
					title, description = p.Title, p.Description
				}
				tasks := snap.TasksIn(id)
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"id": id, "title": title, "description": description, "tasks": tasks,
					})
				}

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "%s (%s)\n", title, id)
				if description != "" {
					_, _ = fmt.Fprintf(out, "%s\n", description)
				}
				_, _ = fmt.Fprintln(out)
				return printTasks(cmd, viewsOf(tasks, id, title), snap)
			})
		},
	}
}

func newProjectEditCmd() *cobra.Command {
	var title, description, color string

	cmd := &cobra.Command{
		Use:   "edit <project-id>",
		Short: "Change project title, description or color",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch store.ProjectPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("color") {
				patch.Color = &color
			}
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				if err := eng.Store().UpdateProject(cmd.Context(), args[0], patch); err != nil {
					return err
				}
				info(cmd.OutOrStdout(), "Updated project %s", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVar(&color, "color", "", "display color")
	return cmd
}

func newProjectRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <project-id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Remove a project and all of its tasks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				if err := eng.Store().RemoveProject(cmd.Context(), args[0]); err != nil {
					return err
				}
				info(cmd.OutOrStdout(), "Removed project %s", args[0])
				return nil
			})
		},
	}
}

func viewsOf(tasks []*task.Task, projectID, projectTitle string) []store.TaskView {
	out := make([]store.TaskView, len(tasks))
	for i, t := range tasks {
		out[i] = store.TaskView{Task: t, ProjectID: projectID, ProjectTitle: projectTitle}
	}
	return out
}
