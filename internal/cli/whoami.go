package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/argonaut-dev/argonaut/internal/argocd"
	"github.com/argonaut-dev/argonaut/internal/registry"
)

// newWhoamiCmd creates the whoami command.
func (cli *CLI) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated account",
		Long:  "Show the account the active connection is authenticated as, per the server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			active, ok := cli.Store.Active()
			if !ok {
				return errors.New("no active connection; add one with 'argonaut connection add'")
			}

			var info *argocd.UserInfo
			var found bool
			if active.AuthMethod == registry.AuthMethodToken {
				token, err := cli.Manager.ResolveToken(active)
				if err != nil {
					return err
				}
				info, found = cli.Gateway.UserInfoWithToken(ctx, active.ServerAddress, token, active.SkipTLSVerify)
			} else {
				info, found = cli.Gateway.UserInfo(ctx)
			}
			if !found {
				return fmt.Errorf("not logged in to %s; run 'argonaut login'", active.ServerAddress)
			}

			output := NewOutputWriter(OutputFormat(cli.outputFlag))
			return output.Write(info, func() {
				fmt.Printf("Logged in:  %t\n", info.LoggedIn)
				if info.Username != "" {
					fmt.Printf("Username:   %s\n", info.Username)
				}
				if info.Name != "" {
					fmt.Printf("Name:       %s\n", info.Name)
				}
				if info.Email != "" {
					fmt.Printf("Email:      %s\n", info.Email)
				}
				if info.Iss != "" {
					fmt.Printf("Issuer:     %s\n", info.Iss)
				}
				if len(info.Groups) > 0 {
					fmt.Printf("Groups:     %s\n", strings.Join(info.Groups, ", "))
				}
				fmt.Printf("Server:     %s\n", active.ServerAddress)
			})
		},
	}
}
