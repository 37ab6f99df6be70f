// Package secret provides optional OS-keyring storage for API tokens.
// The default registry keeps tokens in the connections file as provided;
// keyring storage is an explicit opt-in through the settings file.
package secret

import (
	"errors"
	"fmt"
	"runtime"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/argonaut-dev/argonaut/internal/utils"
)

// ServicePrefix is the prefix used for keyring service names. Each
// connection gets its own entry: "Argonaut - <connection id>".
const ServicePrefix = "Argonaut"

var (
	// ErrKeyringUnavailable is returned when no secure keyring is available.
	ErrKeyringUnavailable = errors.New("secure keyring is not available on this system")
	// ErrTokenNotFound is returned when a token is not found in the keyring.
	ErrTokenNotFound = errors.New("token not found in keyring")
	// ErrKeyringAccessDenied is returned when access to the keyring is denied.
	ErrKeyringAccessDenied = errors.New("access to keyring denied")
)

// Store represents a secure token storage backend.
type Store interface {
	// Set stores a token for the given key.
	Set(key, token string) error
	// Get retrieves a token for the given key.
	Get(key string) (string, error)
	// Delete removes a token for the given key.
	Delete(key string) error
	// IsAvailable checks if the keyring is available.
	IsAvailable() error
}

// serviceName returns the keyring service name for a connection.
func serviceName(key string) string {
	return ServicePrefix + " - " + key
}

// DefaultStore returns the OS keyring store for the current platform.
func DefaultStore() Store {
	return &osKeyring{}
}

// osKeyring implements Store using the OS keyring.
type osKeyring struct{}

// IsAvailable checks if a secure keyring is available on this system.
func (k *osKeyring) IsAvailable() error {
	_, err := gokeyring.Get(serviceName("__availability_check__"), "test")
	if err != nil {
		// ErrNotFound means the keyring works but the key does not exist.
		if errors.Is(err, gokeyring.ErrNotFound) {
			return nil
		}

		errStr := err.Error()
		if runtime.GOOS == "linux" &&
			utils.ContainsAny(errStr, "secret service", "dbus", "org.freedesktop.secrets") {
			return fmt.Errorf("%w: D-Bus secret service not available - install and start gnome-keyring, kwallet, or another secret service provider", ErrKeyringUnavailable)
		}
		if runtime.GOOS == "darwin" && utils.ContainsAny(errStr, "keychain", "security") {
			return fmt.Errorf("%w: macOS Keychain not accessible", ErrKeyringUnavailable)
		}
		if runtime.GOOS == "windows" && utils.ContainsAny(errStr, "credential", "wincred") {
			return fmt.Errorf("%w: Windows Credential Manager not accessible", ErrKeyringUnavailable)
		}

		// Other errors during the availability check are treated as
		// available; the actual operations give better messages.
		return nil
	}

	return nil
}

// Set stores a token in the keyring. The key is the connection id.
func (k *osKeyring) Set(key, token string) error {
	if err := k.IsAvailable(); err != nil {
		return err
	}
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if token == "" {
		return errors.New("token cannot be empty")
	}

	if err := gokeyring.Set(serviceName(key), key, token); err != nil {
		return wrapKeyringError(err, "failed to store token")
	}
	return nil
}

// Get retrieves a token from the keyring.
func (k *osKeyring) Get(key string) (string, error) {
	if err := k.IsAvailable(); err != nil {
		return "", err
	}
	if key == "" {
		return "", errors.New("key cannot be empty")
	}

	token, err := gokeyring.Get(serviceName(key), key)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ErrTokenNotFound
		}
		return "", wrapKeyringError(err, "failed to retrieve token")
	}
	return token, nil
}

// Delete removes a token from the keyring. Deleting an absent entry is
// not an error.
func (k *osKeyring) Delete(key string) error {
	if err := k.IsAvailable(); err != nil {
		return err
	}
	if key == "" {
		return errors.New("key cannot be empty")
	}

	if err := gokeyring.Delete(serviceName(key), key); err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return nil
		}
		return wrapKeyringError(err, "failed to delete token")
	}
	return nil
}

// wrapKeyringError wraps a keyring error with context.
func wrapKeyringError(err error, context string) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	if utils.ContainsAny(errStr, "denied", "permission", "not allowed", "unauthorized") {
		return fmt.Errorf("%w: %s: %v", ErrKeyringAccessDenied, context, err)
	}
	return fmt.Errorf("%s: %w", context, err)
}
