// Package connection orchestrates the lifecycle of connection profiles:
// add, switch, edit, delete and logout intents, and the authentication
// state they drive through the external CLI.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/argonaut-dev/argonaut/internal/registry"
	"github.com/argonaut-dev/argonaut/internal/secret"
	"github.com/argonaut-dev/argonaut/internal/utils"
)

var (
	// ErrCancelled is returned when the user aborts an interactive prompt.
	// A cancelled intent never mutates the connection store.
	ErrCancelled = errors.New("operation cancelled")
	// ErrAuthenticationFailed is returned when credentials are rejected or
	// an authentication flow is abandoned.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// Authenticator is the CLI gateway surface the manager drives.
type Authenticator interface {
	Login(ctx context.Context, server, username, password string, insecure bool) bool
	LoginSSO(ctx context.Context, server string, insecure bool) bool
	ExecuteWithToken(ctx context.Context, args []string, server, token string, insecure bool) (string, error)
	IsAuthenticated(ctx context.Context) bool
	Logout(ctx context.Context, server string)
}

// Prompter collects interactive input at the caller boundary.
type Prompter interface {
	// Password reads a secret without echo. It returns an error when the
	// user cancels.
	Password(prompt string) (string, error)
}

// Notifier receives user-facing notifications for lifecycle transitions.
type Notifier interface {
	LoginSucceeded(connection, account string) error
	LoggedOut(connection string) error
	AuthFailed(connection string, err error) error
}

// State describes the registry-plus-authentication state machine.
type State int

const (
	// StateUnconfigured means no profiles exist.
	StateUnconfigured State = iota
	// StateInactive means profiles exist but none is active.
	StateInactive
	// StateActiveUnauthenticated means a profile is active but the
	// external check fails.
	StateActiveUnauthenticated
	// StateActiveAuthenticated means the active profile is authenticated.
	StateActiveAuthenticated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateInactive:
		return "inactive"
	case StateActiveUnauthenticated:
		return "active-unauthenticated"
	case StateActiveAuthenticated:
		return "active-authenticated"
	default:
		return "unknown"
	}
}

// AddInput carries the caller-provided fields for a new connection.
// Password is only consulted for username auth; when empty, the prompter
// collects it.
type AddInput struct {
	Name          string
	ServerAddress string
	AuthMethod    registry.AuthMethod
	Username      string
	Password      string
	APIToken      string
	SkipTLSVerify bool
}

// Manager drives add/switch/edit/delete/logout intents against the
// connection store and the CLI gateway.
type Manager struct {
	store    *registry.Store
	auth     Authenticator
	prompter Prompter
	secrets  secret.Store // nil when tokens stay in the registry file
	notifier Notifier
	logger   *slog.Logger
	changed  func(ctx context.Context)
}

// Option configures a Manager.
type Option func(*Manager)

// WithSecretStore routes API tokens to the given secret store instead of
// the registry file.
func WithSecretStore(s secret.Store) Option {
	return func(m *Manager) {
		m.secrets = s
	}
}

// WithNotifier sets the lifecycle notifier.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager over the given store and gateway.
func NewManager(store *registry.Store, auth Authenticator, prompter Prompter, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		auth:     auth,
		prompter: prompter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnChange registers a callback invoked after every committed mutation,
// so session state can be recomputed. At most one listener is supported;
// fan-out belongs to the session provider.
func (m *Manager) OnChange(fn func(ctx context.Context)) {
	m.changed = fn
}

func (m *Manager) fireChanged(ctx context.Context) {
	if m.changed != nil {
		m.changed(ctx)
	}
}

func (m *Manager) notifyLogin(name, account string) {
	if m.notifier != nil {
		_ = m.notifier.LoginSucceeded(name, account)
	}
}

func (m *Manager) notifyLogout(name string) {
	if m.notifier != nil {
		_ = m.notifier.LoggedOut(name)
	}
}

func (m *Manager) notifyFailure(name string, err error) {
	if m.notifier != nil {
		_ = m.notifier.AuthFailed(name, err)
	}
}

// Add collects and validates a new connection, attempts the matching
// authentication path, then persists the profile. The profile is stored
// even when authentication fails, so the user can fix credentials later;
// the returned bool reports whether authentication succeeded. A cancelled
// prompt aborts without touching the store.
func (m *Manager) Add(ctx context.Context, input AddInput) (registry.Profile, bool, error) {
	if !utils.IsValidConnectionName(input.Name) {
		return registry.Profile{}, false, fmt.Errorf("invalid connection name %q", input.Name)
	}
	server := utils.StripProtocol(input.ServerAddress)
	if server == "" {
		return registry.Profile{}, false, errors.New("server address is required")
	}

	regInput := registry.Input{
		Name:          input.Name,
		ServerAddress: server,
		AuthMethod:    input.AuthMethod,
		SkipTLSVerify: input.SkipTLSVerify,
	}

	var authOK bool
	switch input.AuthMethod {
	case registry.AuthMethodUsername:
		if input.Username == "" {
			return registry.Profile{}, false, errors.New("username auth requires a username")
		}
		password := input.Password
		if password == "" {
			var err error
			password, err = m.prompter.Password(fmt.Sprintf("Password for %s@%s", input.Username, server))
			if err != nil {
				return registry.Profile{}, false, fmt.Errorf("%w: %v", ErrCancelled, err)
			}
		}
		regInput.Username = input.Username
		authOK = m.auth.Login(ctx, server, input.Username, password, input.SkipTLSVerify)

	case registry.AuthMethodToken:
		if input.APIToken == "" {
			return registry.Profile{}, false, errors.New("token auth requires an API token")
		}
		if m.secrets == nil {
			regInput.APIToken = input.APIToken
		}
		authOK = m.probeToken(ctx, server, input.APIToken, input.SkipTLSVerify)

	case registry.AuthMethodSSO:
		authOK = m.auth.LoginSSO(ctx, server, input.SkipTLSVerify)

	default:
		return registry.Profile{}, false, fmt.Errorf("invalid auth method %q", input.AuthMethod)
	}

	profile, err := m.store.Add(regInput)
	if err != nil {
		return registry.Profile{}, false, err
	}

	if m.secrets != nil && input.AuthMethod == registry.AuthMethodToken {
		if err := m.secrets.Set(profile.ID, input.APIToken); err != nil {
			// Without its token the stored profile is unusable; undo the add.
			if delErr := m.store.Delete(profile.ID); delErr != nil {
				m.logger.Error("failed to roll back connection after keyring failure",
					"id", profile.ID, "error", delErr)
			}
			return registry.Profile{}, false, fmt.Errorf("failed to store token securely: %w", err)
		}
	}

	if authOK {
		m.notifyLogin(profile.Name, accountFallback(profile))
	} else {
		m.logger.Warn("connection stored but not authenticated", "name", profile.Name)
		m.notifyFailure(profile.Name, ErrAuthenticationFailed)
	}

	m.fireChanged(ctx)
	return profile, authOK, nil
}

// Switch activates the target profile. The sequence is fixed: best-effort
// logout of the old server, then activation, then re-authentication with
// the target's stored method. When re-authentication fails the active
// pointer stays on the new profile; the user fixes credentials on the now
// active connection instead of being bounced back.
func (m *Manager) Switch(ctx context.Context, id string) (bool, error) {
	target, ok := m.store.Get(id)
	if !ok {
		return false, fmt.Errorf("connection %q: %w", id, registry.ErrNotFound)
	}

	if old, ok := m.store.Active(); ok && old.ID != id {
		m.auth.Logout(ctx, old.ServerAddress)
	}

	if err := m.store.SetActive(id); err != nil {
		return false, err
	}

	authOK, err := m.authenticate(ctx, target)
	if err != nil && !errors.Is(err, ErrCancelled) {
		return false, err
	}

	if authOK {
		m.notifyLogin(target.Name, accountFallback(target))
	} else {
		m.notifyFailure(target.Name, ErrAuthenticationFailed)
	}

	m.fireChanged(ctx)
	return authOK, nil
}

// Authenticate re-runs the stored authentication path for the active
// connection.
func (m *Manager) Authenticate(ctx context.Context) (bool, error) {
	active, ok := m.store.Active()
	if !ok {
		return false, fmt.Errorf("no active connection: %w", registry.ErrNotFound)
	}

	authOK, err := m.authenticate(ctx, active)
	if err != nil {
		return false, err
	}

	if authOK {
		m.notifyLogin(active.Name, accountFallback(active))
	} else {
		m.notifyFailure(active.Name, ErrAuthenticationFailed)
	}

	m.fireChanged(ctx)
	return authOK, nil
}

// authenticate runs the profile's stored auth method. A cancelled password
// prompt surfaces as (false, ErrCancelled); credential rejection is
// (false, nil).
func (m *Manager) authenticate(ctx context.Context, p registry.Profile) (bool, error) {
	switch p.AuthMethod {
	case registry.AuthMethodUsername:
		password, err := m.prompter.Password(fmt.Sprintf("Password for %s@%s", p.Username, p.ServerAddress))
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return m.auth.Login(ctx, p.ServerAddress, p.Username, password, p.SkipTLSVerify), nil

	case registry.AuthMethodToken:
		token, err := m.ResolveToken(p)
		if err != nil {
			return false, err
		}
		return m.probeToken(ctx, p.ServerAddress, token, p.SkipTLSVerify), nil

	case registry.AuthMethodSSO:
		return m.auth.LoginSSO(ctx, p.ServerAddress, p.SkipTLSVerify), nil

	default:
		return false, fmt.Errorf("invalid auth method %q", p.AuthMethod)
	}
}

// probeToken validates a token against a cheap authorized command without
// mutating any persistent external session.
func (m *Manager) probeToken(ctx context.Context, server, token string, insecure bool) bool {
	_, err := m.auth.ExecuteWithToken(ctx, []string{"cluster", "list"}, server, token, insecure)
	if err != nil {
		m.logger.Warn("token probe failed", "server", server)
		return false
	}
	return true
}

// ResolveToken returns the profile's API token, looking it up in the
// secret store when it is not kept in the registry file.
func (m *Manager) ResolveToken(p registry.Profile) (string, error) {
	if p.APIToken != "" {
		return p.APIToken, nil
	}
	if p.AuthMethod != registry.AuthMethodToken {
		return "", nil
	}
	if m.secrets == nil {
		return "", errors.New("no API token stored for connection")
	}
	token, err := m.secrets.Get(p.ID)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve token: %w", err)
	}
	return token, nil
}

// Edit renames a connection. Renaming never touches authentication state.
func (m *Manager) Edit(ctx context.Context, id, newName string) error {
	if !utils.IsValidConnectionName(newName) {
		return fmt.Errorf("invalid connection name %q", newName)
	}
	if err := m.store.Update(id, registry.Update{Name: &newName}); err != nil {
		return err
	}
	m.fireChanged(ctx)
	return nil
}

// Delete removes a connection. Confirmation happens at the caller
// boundary; deletion does not log out of the external CLI.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(id); err != nil {
		return err
	}
	if m.secrets != nil {
		if err := m.secrets.Delete(id); err != nil {
			m.logger.Warn("failed to remove token from keyring", "id", id, "error", err)
		}
	}
	m.fireChanged(ctx)
	return nil
}

// Logout logs out of the active connection's server (best-effort) and
// clears the active pointer. This is the only path that returns the
// registry to the configured-but-inactive state; a failed CLI logout never
// prevents the pointer from clearing.
func (m *Manager) Logout(ctx context.Context) error {
	active, hadActive := m.store.Active()
	if hadActive {
		m.auth.Logout(ctx, active.ServerAddress)
	}

	if err := m.store.ClearActive(); err != nil {
		return err
	}

	if hadActive {
		m.notifyLogout(active.Name)
	}
	m.fireChanged(ctx)
	return nil
}

// State reports the current lifecycle state, including a live external
// authentication check when a connection is active.
func (m *Manager) State(ctx context.Context) State {
	if !m.store.IsConfigured() {
		return StateUnconfigured
	}
	if _, ok := m.store.Active(); !ok {
		return StateInactive
	}
	if m.auth.IsAuthenticated(ctx) {
		return StateActiveAuthenticated
	}
	return StateActiveUnauthenticated
}

// Store exposes the underlying registry for read access.
func (m *Manager) Store() *registry.Store {
	return m.store
}

// accountFallback derives a display label from stored credentials alone.
func accountFallback(p registry.Profile) string {
	switch p.AuthMethod {
	case registry.AuthMethodUsername:
		if p.Username != "" {
			return p.Username
		}
		return "Unknown User"
	case registry.AuthMethodToken:
		return "API Token"
	case registry.AuthMethodSSO:
		return "SSO User"
	default:
		return "Unknown"
	}
}
