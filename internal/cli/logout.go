package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newLogoutCmd creates the logout command.
func (cli *CLI) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out of the active connection",
		Long: `Log out of the active connection.

The server session is ended on a best-effort basis and the active pointer
is cleared. The connection itself stays in the registry; activate it again
with 'argonaut connection use'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			active, hadActive := cli.Store.Active()

			if err := cli.Manager.Logout(cmd.Context()); err != nil {
				return err
			}

			if hadActive {
				fmt.Printf("Logged out of %q (%s)\n", active.Name, active.ServerAddress)
			} else {
				fmt.Println("No active connection.")
			}
			return nil
		},
	}
}
