package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/taskgraph/internal/config"
	"github.com/randalmurphal/taskgraph/internal/engine"
	"github.com/randalmurphal/taskgraph/internal/events"
	"github.com/randalmurphal/taskgraph/internal/lock"
	"github.com/randalmurphal/taskgraph/internal/notify"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the deadline monitor and recurrence scheduler until interrupted",
		Long: `Run the background loops: deadline checks, date-based automation rules and
recurring task generation. Change events and notifications are printed as
they happen. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withEngine(ctx, func(eng *engine.Engine) error {
				if g := runnerGuard(eng.Config().Storage); g != nil {
					if err := g.Acquire(); err != nil {
						return err
					}
					defer g.Release()
				}

				ch := eng.Events().Subscribe(events.GlobalTopic)
				defer eng.Events().Unsubscribe(events.GlobalTopic, ch)

				printCtx, cancel := context.WithCancel(ctx)
				done := make(chan struct{})
				go func() {
					defer close(done)
					for {
						select {
						case <-printCtx.Done():
							return
						case ev, ok := <-ch:
							if !ok {
								return
							}
							printEvent(cmd, ev)
						}
					}
				}()

				info(cmd.OutOrStdout(), "Watching %s (Ctrl-C to stop)", eng.Config().Storage.Backend)
				err := eng.Run(ctx)
				cancel()
				<-done
				if err != nil && ctx.Err() == nil {
					return err
				}
				return nil
			})
		},
	}
}

// runnerGuard returns the single-runner guard for local backends. Memory
// storage has nothing to share and postgres may be shared across hosts.
func runnerGuard(st config.StorageConfig) *lock.Guard {
	switch st.Backend {
	case config.BackendFile, "":
		return lock.NewGuard(st.Path)
	case config.BackendSQLite:
		return lock.NewGuard(filepath.Dir(st.DatabasePath()))
	default:
		return nil
	}
}

func printEvent(cmd *cobra.Command, ev events.Event) {
	out := cmd.OutOrStdout()
	if jsonOut {
		_ = printJSON(out, ev)
		return
	}
	ts := ev.Time.Format("15:04:05")
	switch data := ev.Data.(type) {
	case notify.Notification:
		_, _ = fmt.Fprintf(out, "%s %s %s: %s\n", ts, severityLabel(data.Severity), data.Title, data.Message)
	case events.TaskChange:
		_, _ = fmt.Fprintf(out, "%s %s %s %q\n", ts, ev.Type, ev.TaskID, data.Title)
	default:
		target := ev.TaskID
		if target == "" {
			target = ev.ProjectID
		}
		_, _ = fmt.Fprintf(out, "%s %s %s\n", ts, ev.Type, target)
	}
}
