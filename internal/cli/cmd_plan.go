package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/taskgraph/internal/engine"
)

// DefaultImportTitle names projects created by plan import without --title.
const DefaultImportTitle = "Imported plan"

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Work with AI-generated task plans",
	}
	cmd.AddCommand(newPlanImportCmd())
	return cmd
}

func newPlanImportCmd() *cobra.Command {
	var projectID, title, description string

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a task plan produced by an AI provider",
		Long: `Import a task plan. The input is a JSON array of tasks, or an object with a
"tasks" list, optionally inside a markdown code fence or surrounded by prose.
Each task may carry title, description, priority, status, tags, durationDays,
startDayOffset and dependencyIndices (positions within the same plan).

Without --project a new project is created. Reads stdin when no file is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if projectID == "" && title == "" {
				title = DefaultImportTitle
			}
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				res, err := eng.ImportPlan(cmd.Context(), engine.ImportTarget{
					ProjectID:       projectID,
					NewProjectTitle: title,
					Description:     description,
				}, raw)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), res)
				}

				out := cmd.OutOrStdout()
				info(out, "Imported %d tasks into %s", len(res.Tasks), res.ProjectID)
				w := newTable(out)
				_, _ = fmt.Fprintln(w, "ID\tTITLE\tSTART\tEND\tDEPENDS")
				for _, t := range res.Tasks {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
						t.ID, truncate(t.Title, 40), dash(t.StartDate), dash(t.EndDate), len(t.DependencyIDs))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				if verbose {
					for _, is := range res.Issues {
						_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "note: %s\n", is)
					}
				} else if len(res.Issues) > 0 {
					info(out, "%d fields were dropped or defaulted (-v to list)", len(res.Issues))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "add to an existing project")
	cmd.Flags().StringVar(&title, "title", "", "title for the new project")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description for the new project")
	return cmd
}

func newSuggestCmd() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "suggest [file]",
		Short: "Accept a single AI-suggested task",
		Long: `Accept a single suggested task: a JSON object with title, description and
priority. Reads stdin when no file is given. Output without a usable title
produces no task and an "AI error" notification.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				t, err := eng.AcceptSuggestion(cmd.Context(), projectID, raw)
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
	return cmd
}

// readInput reads the named file, or stdin when there is none or it is "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}
