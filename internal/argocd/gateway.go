// Package argocd drives the external argocd CLI for login, logout,
// authenticated command execution and identity queries. It is the only
// component allowed to spawn that process for authentication purposes.
package argocd

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/argonaut-dev/argonaut/internal/utils"
)

// UserInfo is the identity reported by the control plane.
type UserInfo struct {
	LoggedIn bool     `json:"loggedIn"`
	Username string   `json:"username,omitempty"`
	Iss      string   `json:"iss,omitempty"`
	Groups   []string `json:"groups,omitempty"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
}

var loggedInPattern = regexp.MustCompile(`(?i)Logged In:\s*(true|false)`)

// Gateway wraps invocation of the argocd CLI and normalizes its text and
// JSON outputs into typed results.
type Gateway struct {
	runner CommandRunner
	binary string
	logger *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRunner sets a custom command runner (for testing).
func WithRunner(r CommandRunner) Option {
	return func(g *Gateway) {
		g.runner = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// New creates a Gateway for the given argocd binary.
func New(binary string, opts ...Option) *Gateway {
	if binary == "" {
		binary = "argocd"
	}
	g := &Gateway{
		runner: NewCommandRunner(),
		binary: binary,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// run executes one argocd invocation. Non-zero exit codes and spawn
// failures both surface as a *CLIError carrying masked diagnostics.
func (g *Gateway) run(ctx context.Context, args ...string) (string, error) {
	masked := utils.MaskCommandLine(g.binary, args)

	path, err := g.runner.LookPath(g.binary)
	if err != nil {
		g.logger.Debug("argocd binary not found", "binary", g.binary)
		return "", &CLIError{Command: masked, ExitCode: 1, Err: err}
	}

	g.logger.Debug("executing argocd command", "command", masked)
	res, err := g.runner.Run(ctx, path, args, nil)
	if err != nil {
		return "", &CLIError{Command: masked, ExitCode: res.ExitCode, Stderr: res.Stderr, Err: err}
	}
	if res.ExitCode != 0 {
		return "", &CLIError{Command: masked, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	if res.Stderr != "" {
		g.logger.Debug("argocd command stderr", "command", masked, "stderr", strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

// CheckCLI reports whether the argocd binary is installed and runnable.
func (g *Gateway) CheckCLI(ctx context.Context) bool {
	out, err := g.run(ctx, "version", "--client")
	if err != nil {
		g.logger.Debug("argocd CLI check failed", "error", err)
		return false
	}
	return strings.Contains(strings.ToLower(out), "argocd")
}

// Execute runs an arbitrary argocd command using the ambient logged-in
// state and returns its stdout.
func (g *Gateway) Execute(ctx context.Context, args ...string) (string, error) {
	return g.run(ctx, args...)
}

// ExecuteWithToken runs an argocd command using explicit credentials
// instead of the ambient session. Used to validate tokens without mutating
// any persistent external state.
func (g *Gateway) ExecuteWithToken(ctx context.Context, args []string, server, token string, insecure bool) (string, error) {
	full := append([]string{}, args...)
	full = append(full, "--server", server, "--auth-token", token)
	if insecure {
		full = append(full, "--insecure")
	}
	return g.run(ctx, full...)
}

// Login authenticates with username and password. Success is determined by
// the process exit status; failures return false so callers can prompt for
// a retry.
func (g *Gateway) Login(ctx context.Context, server, username, password string, insecure bool) bool {
	args := []string{"login", server, "--username", username, "--password", password}
	if insecure {
		args = append(args, "--insecure")
	}

	if _, err := g.run(ctx, args...); err != nil {
		g.logger.Warn("login failed", "server", server, "user", username)
		return false
	}
	g.logger.Info("login successful", "server", server, "user", username)
	return true
}

// LoginSSO initiates a browser-based login and blocks until the CLI
// reports completion. The login command's exit code alone is not trusted:
// the browser step is asynchronous to the process, so a cheap authorized
// call verifies the session actually took effect.
func (g *Gateway) LoginSSO(ctx context.Context, server string, insecure bool) bool {
	args := []string{"login", server, "--sso"}
	if insecure {
		args = append(args, "--insecure")
	}

	if _, err := g.run(ctx, args...); err != nil {
		g.logger.Warn("sso login failed", "server", server)
		return false
	}

	if _, err := g.run(ctx, "cluster", "list"); err != nil {
		g.logger.Warn("sso login verification failed", "server", server)
		return false
	}

	g.logger.Info("sso login successful", "server", server)
	return true
}

// IsAuthenticated queries the ambient identity and parses the logged-in
// flag out of the response. When the flag is unparseable but the command
// succeeded, the answer defaults to true: a successful privileged command
// implies an authenticated session, and output-format drift must not
// produce false negatives.
func (g *Gateway) IsAuthenticated(ctx context.Context) bool {
	out, err := g.run(ctx, "account", "get-user-info")
	if err != nil {
		g.logger.Debug("authentication check failed", "error", err)
		return false
	}

	if m := loggedInPattern.FindStringSubmatch(out); m != nil {
		return strings.EqualFold(m[1], "true")
	}

	g.logger.Debug("logged-in flag not present in output, assuming authenticated")
	return true
}

// UserInfo resolves the ambient identity. Identity enrichment is
// best-effort: any command or parse failure returns absent, never an
// error.
func (g *Gateway) UserInfo(ctx context.Context) (*UserInfo, bool) {
	out, err := g.run(ctx, "account", "get-user-info", "-o", "json")
	if err != nil {
		return nil, false
	}
	return parseUserInfo(g.logger, out)
}

// UserInfoWithToken resolves identity using explicit credentials.
func (g *Gateway) UserInfoWithToken(ctx context.Context, server, token string, insecure bool) (*UserInfo, bool) {
	out, err := g.ExecuteWithToken(ctx, []string{"account", "get-user-info", "-o", "json"}, server, token, insecure)
	if err != nil {
		return nil, false
	}
	return parseUserInfo(g.logger, out)
}

func parseUserInfo(logger *slog.Logger, out string) (*UserInfo, bool) {
	var info UserInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		logger.Debug("failed to parse user info output", "error", err)
		return nil, false
	}
	return &info, true
}

// Logout clears the external CLI's session for the given server.
// Best-effort: logout must be safe to call repeatedly, so failures (for
// example when already logged out) are swallowed.
func (g *Gateway) Logout(ctx context.Context, server string) {
	args := []string{"logout"}
	if server != "" {
		args = append(args, server)
	}

	if _, err := g.run(ctx, args...); err != nil {
		g.logger.Debug("logout failed, ignoring", "server", server, "error", err)
		return
	}
	g.logger.Info("logged out", "server", server)
}
