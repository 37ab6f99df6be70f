// Package cli provides the command-line interface for Argonaut.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/argonaut-dev/argonaut/internal/argocd"
	"github.com/argonaut-dev/argonaut/internal/config"
	"github.com/argonaut-dev/argonaut/internal/connection"
	"github.com/argonaut-dev/argonaut/internal/notify"
	"github.com/argonaut-dev/argonaut/internal/registry"
	"github.com/argonaut-dev/argonaut/internal/secret"
	"github.com/argonaut-dev/argonaut/internal/session"
	"github.com/argonaut-dev/argonaut/internal/uistate"
)

// CLI holds the application state for the CLI. It is the composition
// root: the registry store, gateway, manager and session provider are
// constructed here once and passed by reference to every command.
type CLI struct {
	Settings *config.Settings
	Store    *registry.Store
	Gateway  *argocd.Gateway
	Manager  *connection.Manager
	Sessions *session.Provider
	UI       *uistate.Propagator

	rootCmd  *cobra.Command
	prompter *TerminalPrompter
	logger   *slog.Logger

	// Flags
	verboseFlag bool
	outputFlag  string
}

// New creates a new CLI instance.
func New() *CLI {
	cli := &CLI{
		prompter: NewTerminalPrompter(),
	}

	cli.rootCmd = &cobra.Command{
		Use:   "argonaut [command]",
		Short: "Argonaut - Argo CD connection manager",
		Long: `Argonaut manages named connections to Argo CD control-plane servers.

Each connection carries its own server address and authentication method
(API token, username/password or SSO). Exactly one connection is active at
a time; its credentials back all outbound argocd CLI operations.

Authentication is driven through the external argocd CLI, which must be
installed and reachable in PATH (or configured via the settings file).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.initialize(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Global flags
	cli.rootCmd.PersistentFlags().BoolVarP(&cli.verboseFlag, "verbose", "v", false, "Enable verbose output")
	cli.rootCmd.PersistentFlags().StringVarP(&cli.outputFlag, "output", "o", "text", "Output format (text, json)")

	cli.addCommands()

	return cli
}

// addCommands adds all subcommands to the root command.
func (cli *CLI) addCommands() {
	cli.rootCmd.AddCommand(
		cli.newVersionCmd(),
		cli.newConnectionCmd(),
		cli.newLoginCmd(),
		cli.newLogoutCmd(),
		cli.newStatusCmd(),
		cli.newWhoamiCmd(),
		cli.newCompletionCmd(),
	)
}

// initialize loads settings and wires the component graph.
func (cli *CLI) initialize(cmd *cobra.Command) error {
	if _, err := ParseOutputFormat(cli.outputFlag); err != nil {
		return err
	}

	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	cli.Settings = settings

	level := parseLogLevel(settings.LogLevel)
	if cli.verboseFlag {
		level = slog.LevelDebug
	}
	cli.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := settings.ValidateBinaryPath(); err != nil {
		return err
	}

	paths := config.GetPaths()
	store, err := registry.Open(afero.NewOsFs(), paths.RegistryFile, cli.logger)
	if err != nil {
		return fmt.Errorf("failed to load connection registry: %w", err)
	}
	cli.Store = store

	cli.Gateway = argocd.New(settings.BinaryPath(), argocd.WithLogger(cli.logger))

	managerOpts := []connection.Option{
		connection.WithNotifier(notify.New(settings.Notifications)),
		connection.WithLogger(cli.logger),
	}
	if settings.SecretStorage == config.SecretStorageKeyring {
		managerOpts = append(managerOpts, connection.WithSecretStore(secret.DefaultStore()))
	}
	cli.Manager = connection.NewManager(store, cli.Gateway, cli.prompter, managerOpts...)

	cli.Sessions = session.NewProvider(store, cli.Gateway, cli.Manager, session.WithLogger(cli.logger))
	cli.Manager.OnChange(cli.Sessions.Refresh)

	cli.UI = uistate.NewPropagator(cli.Gateway)
	cli.UI.Attach(cli.Sessions)

	return nil
}

// Execute runs the CLI.
func (cli *CLI) Execute(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(ctx)
}

// parseLogLevel maps a settings log level onto slog.
func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN", "warning":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
