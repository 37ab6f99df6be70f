package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/argonaut-dev/argonaut/internal/connection"
	"github.com/argonaut-dev/argonaut/internal/registry"
)

// newConnectionCmd creates the connection command group.
func (cli *CLI) newConnectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connection",
		Aliases: []string{"conn", "connections"},
		Short:   "Manage Argo CD connections",
		Long: `Manage named Argo CD connections.

A connection pairs a server address with an authentication method. Exactly
one connection is active at a time; switching connections logs out of the
old server and re-authenticates against the new one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		cli.newConnectionAddCmd(),
		cli.newConnectionListCmd(),
		cli.newConnectionUseCmd(),
		cli.newConnectionRenameCmd(),
		cli.newConnectionRemoveCmd(),
	)

	return cmd
}

// resolveConnection finds a profile by name, falling back to id.
func (cli *CLI) resolveConnection(ref string) (registry.Profile, error) {
	for _, p := range cli.Store.All() {
		if p.Name == ref {
			return p, nil
		}
	}
	if p, ok := cli.Store.Get(ref); ok {
		return p, nil
	}
	return registry.Profile{}, fmt.Errorf("connection %q: %w", ref, registry.ErrNotFound)
}

func (cli *CLI) newConnectionAddCmd() *cobra.Command {
	var (
		server        string
		authMethod    string
		username      string
		password      string
		token         string
		skipTLSVerify bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new connection",
		Long: `Add a new connection and authenticate against it.

The authentication method decides which credentials are needed:

  token     requires --token
  username  requires --username; the password is prompted when --password
            is not given
  sso       opens the server's single sign-on flow in a browser

The first connection added becomes active automatically. The profile is
stored even when authentication fails, so credentials can be fixed later
with 'argonaut login'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := registry.ParseAuthMethod(authMethod)
			if err != nil {
				return err
			}

			profile, authOK, err := cli.Manager.Add(cmd.Context(), connection.AddInput{
				Name:          args[0],
				ServerAddress: server,
				AuthMethod:    method,
				Username:      username,
				Password:      password,
				APIToken:      token,
				SkipTLSVerify: skipTLSVerify,
			})
			if err != nil {
				return err
			}

			output := NewOutputWriter(OutputFormat(cli.outputFlag))
			return output.Write(map[string]any{
				"connection":    profile,
				"authenticated": authOK,
			}, func() {
				if authOK {
					fmt.Printf("Connection %q added and authenticated against %s\n", profile.Name, profile.ServerAddress)
				} else {
					fmt.Printf("Connection %q added, but authentication failed; run 'argonaut login' to retry\n", profile.Name)
				}
			})
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Argo CD server address (required)")
	cmd.Flags().StringVar(&authMethod, "auth-method", "token", "Authentication method (token, username, sso)")
	cmd.Flags().StringVar(&username, "username", "", "Username for username auth")
	cmd.Flags().StringVar(&password, "password", "", "Password for username auth (prompted when omitted)")
	cmd.Flags().StringVar(&token, "token", "", "API token for token auth")
	cmd.Flags().BoolVar(&skipTLSVerify, "insecure", false, "Skip TLS certificate verification")
	_ = cmd.MarkFlagRequired("server")

	return cmd
}

func (cli *CLI) newConnectionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all connections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles := cli.Store.All()
			activeID := cli.Store.ActiveID()

			output := NewOutputWriter(OutputFormat(cli.outputFlag))
			return output.Write(map[string]any{
				"connections":        profiles,
				"activeConnectionId": activeID,
			}, func() {
				if len(profiles) == 0 {
					fmt.Println("No connections configured. Add one with 'argonaut connection add'.")
					return
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
				fmt.Fprintln(w, "ACTIVE\tNAME\tSERVER\tAUTH\tLAST USED")
				for _, p := range profiles {
					marker := ""
					if p.ID == activeID {
						marker = "*"
					}
					lastUsed := "never"
					if p.LastUsedAt != nil {
						lastUsed = p.LastUsedAt.Local().Format("2006-01-02 15:04")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", marker, p.Name, p.ServerAddress, p.AuthMethod, lastUsed)
				}
				_ = w.Flush()
			})
		},
	}
}

func (cli *CLI) newConnectionUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "use <name>",
		Aliases: []string{"switch"},
		Short:   "Switch the active connection",
		Long: `Switch the active connection.

The old server is logged out on a best-effort basis, then the target
connection is activated and re-authenticated with its stored method. The
target stays active even when re-authentication fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cli.resolveConnection(args[0])
			if err != nil {
				return err
			}

			authOK, err := cli.Manager.Switch(cmd.Context(), profile.ID)
			if err != nil {
				return err
			}

			if authOK {
				fmt.Printf("Switched to %q (%s)\n", profile.Name, profile.ServerAddress)
			} else {
				fmt.Printf("Switched to %q, but authentication failed; run 'argonaut login' to retry\n", profile.Name)
			}
			return nil
		},
	}
}

func (cli *CLI) newConnectionRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <name> <new-name>",
		Short: "Rename a connection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cli.resolveConnection(args[0])
			if err != nil {
				return err
			}

			if err := cli.Manager.Edit(cmd.Context(), profile.ID, args[1]); err != nil {
				return err
			}

			fmt.Printf("Connection %q renamed to %q\n", profile.Name, args[1])
			return nil
		},
	}
}

func (cli *CLI) newConnectionRemoveCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a connection",
		Long: `Remove a connection from the registry.

Removing the active connection activates the first remaining one, or
leaves no connection active when it was the last. No logout is sent to
the server; use 'argonaut logout' first to end the server session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cli.resolveConnection(args[0])
			if err != nil {
				return err
			}

			if !force {
				ok, err := cli.prompter.Confirm(fmt.Sprintf("Remove connection %q (%s)?", profile.Name, profile.ServerAddress))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Aborted.")
					return nil
				}
			}

			if err := cli.Manager.Delete(cmd.Context(), profile.ID); err != nil {
				return err
			}

			fmt.Printf("Connection %q removed\n", profile.Name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
