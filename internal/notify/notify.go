// Package notify provides desktop notification support for session
// transitions.
package notify

import (
	"fmt"

	"github.com/argonaut-dev/argonaut/internal/config"
)

// Notifier defines the interface for sending desktop notifications.
type Notifier interface {
	// LoginSucceeded announces a successfully authenticated connection.
	LoginSucceeded(connection, account string) error
	// LoggedOut announces that the active connection was cleared.
	LoggedOut(connection string) error
	// AuthFailed announces a failed authentication attempt.
	AuthFailed(connection string, err error) error
}

// Option configures a Notifier.
type Option func(*notifier)

// WithBackend sets a custom notification backend (for testing).
func WithBackend(backend Backend) Option {
	return func(n *notifier) {
		n.backend = backend
	}
}

// notifier sends desktop notifications using the system notification
// service.
type notifier struct {
	onLogin   bool
	onLogout  bool
	onFailure bool
	backend   Backend
}

// New creates a Notifier based on the configuration.
func New(cfg config.NotificationConfig, opts ...Option) Notifier {
	n := &notifier{
		onLogin:   cfg.Enabled && cfg.OnLogin,
		onLogout:  cfg.Enabled && cfg.OnLogout,
		onFailure: cfg.Enabled && cfg.OnFailure,
		backend:   newDesktopBackend(),
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// LoginSucceeded implements Notifier.
func (n *notifier) LoginSucceeded(connection, account string) error {
	if !n.onLogin {
		return nil
	}

	title := "Argonaut: Connected"
	message := fmt.Sprintf("Authenticated to '%s' as %s.", connection, account)
	return n.backend.Notify(title, message, "")
}

// LoggedOut implements Notifier.
func (n *notifier) LoggedOut(connection string) error {
	if !n.onLogout {
		return nil
	}

	title := "Argonaut: Signed Out"
	message := fmt.Sprintf("Logged out from '%s'.", connection)
	return n.backend.Notify(title, message, "")
}

// AuthFailed implements Notifier.
func (n *notifier) AuthFailed(connection string, err error) error {
	if !n.onFailure {
		return nil
	}

	title := "Argonaut: Authentication Failed"
	message := fmt.Sprintf("Could not authenticate connection '%s'.\nError: %v", connection, err)
	return n.backend.Alert(title, message, "")
}
