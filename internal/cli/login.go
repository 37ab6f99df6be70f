package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/argonaut-dev/argonaut/internal/connection"
)

// newLoginCmd creates the login command.
func (cli *CLI) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Re-authenticate the active connection",
		Long: `Re-authenticate the active connection with its stored method.

Token connections are probed with their stored token, username connections
prompt for the password, and SSO connections reopen the browser flow.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			active, ok := cli.Store.Active()
			if !ok {
				return errors.New("no active connection; add one with 'argonaut connection add'")
			}

			authOK, err := cli.Manager.Authenticate(cmd.Context())
			if err != nil {
				if errors.Is(err, connection.ErrCancelled) {
					fmt.Println("Login cancelled.")
					return nil
				}
				return err
			}
			if !authOK {
				return fmt.Errorf("authentication against %s failed: %w",
					active.ServerAddress, connection.ErrAuthenticationFailed)
			}

			fmt.Printf("Logged in to %s as connection %q\n", active.ServerAddress, active.Name)
			return nil
		},
	}
}
