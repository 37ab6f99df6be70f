package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/argonaut-dev/argonaut/internal/session"
)

// newStatusCmd creates the status command.
func (cli *CLI) newStatusCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show connection and session status",
		Long: `Show the lifecycle state of the active connection.

Reports whether the argocd CLI is available, which connection is active,
and whether a live session exists against its server. With --watch the
command keeps running and reports session transitions as the registry
file changes, including changes made by other processes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			state := cli.Manager.State(ctx)
			current, hasSession := cli.Sessions.Current(ctx)
			cli.UI.Recompute(ctx, hasSession)
			flags := cli.UI.Snapshot()

			active, hasActive := cli.Store.Active()

			output := NewOutputWriter(OutputFormat(cli.outputFlag))
			payload := map[string]any{
				"state":           state.String(),
				"isAuthenticated": flags.IsAuthenticated,
				"isCliAvailable":  flags.IsCliAvailable,
			}
			if hasActive {
				payload["activeConnection"] = active
			}
			if hasSession {
				payload["session"] = current
			}

			err := output.Write(payload, func() {
				fmt.Printf("State:          %s\n", state)
				fmt.Printf("CLI available:  %t\n", flags.IsCliAvailable)
				fmt.Printf("Authenticated:  %t\n", flags.IsAuthenticated)
				if hasActive {
					fmt.Printf("Active:         %s (%s, %s auth)\n", active.Name, active.ServerAddress, active.AuthMethod)
				} else {
					fmt.Println("Active:         none")
				}
				if hasSession {
					fmt.Printf("Session:        %s (%s)\n", current.ID, current.AccountLabel)
				}
			})
			if err != nil || !watch {
				return err
			}

			return cli.watchSessions(cmd)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and report session transitions")

	return cmd
}

// watchSessions blocks until the context is cancelled, printing session
// transitions driven by registry file changes.
func (cli *CLI) watchSessions(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cancel := cli.Sessions.Subscribe(func(event session.ChangeEvent) {
		for _, s := range event.Removed {
			fmt.Printf("session ended: %s (%s)\n", s.ID, s.AccountLabel)
		}
		for _, s := range event.Added {
			fmt.Printf("session started: %s (%s)\n", s.ID, s.AccountLabel)
		}
	})
	defer cancel()

	watcher := session.NewWatcher(cli.Sessions, cli.Store.Path(), cli.logger)
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to watch registry file: %w", err)
	}

	<-ctx.Done()
	return nil
}
