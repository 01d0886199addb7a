package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/taskgraph/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigPathCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration and where it came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig()
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), loaded)
			}

			out, err := loaded.Config.YAML()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, f := range loaded.Files {
				_, _ = fmt.Fprintf(w, "# file: %s\n", f)
			}
			for _, env := range loaded.EnvOverrides {
				_, _ = fmt.Fprintf(w, "# env:  %s\n", env)
			}
			_, _ = fmt.Fprint(w, out)
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved storage location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig()
			if err != nil {
				return err
			}
			st := loaded.Config.Storage
			switch st.Backend {
			case config.BackendSQLite:
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), st.DatabasePath())
			case config.BackendPostgres:
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "postgres (dsn from storage.dsn)")
			case config.BackendMemory:
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "memory (nothing persisted)")
			default:
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), st.Path)
			}
			return nil
		},
	}
}
