package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidBinaryPath indicates the configured argocd binary path is not
// safe to execute.
var ErrInvalidBinaryPath = errors.New("invalid binary path")

// SecretStorage selects where API tokens are kept.
type SecretStorage string

const (
	// SecretStorageFile keeps tokens in the registry file as provided.
	SecretStorageFile SecretStorage = "file"
	// SecretStorageKeyring delegates token storage to the OS keyring.
	SecretStorageKeyring SecretStorage = "keyring"
)

// CLIConfig holds settings for the external argocd CLI.
type CLIConfig struct {
	// BinaryPath is an optional custom path to the argocd binary.
	BinaryPath string `yaml:"binary_path,omitempty"`
}

// NotificationConfig holds settings for desktop notifications.
type NotificationConfig struct {
	// Enabled enables desktop notifications.
	Enabled bool `yaml:"enabled,omitempty"`
	// OnLogin sends a notification when a connection authenticates.
	OnLogin bool `yaml:"on_login,omitempty"`
	// OnLogout sends a notification when the active connection is cleared.
	OnLogout bool `yaml:"on_logout,omitempty"`
	// OnFailure sends a notification when authentication fails.
	OnFailure bool `yaml:"on_failure,omitempty"`
}

// Settings represents the Argonaut configuration file.
type Settings struct {
	// CLI holds external argocd CLI settings.
	CLI CLIConfig `yaml:"cli,omitempty"`
	// SecretStorage selects where API tokens are stored (file or keyring).
	SecretStorage SecretStorage `yaml:"secret_storage,omitempty"`
	// Notifications holds notification settings.
	Notifications NotificationConfig `yaml:"notifications,omitempty"`
	// LogLevel is the logging level (debug, info, warn, error).
	LogLevel string `yaml:"log_level,omitempty"`

	// filePath is the path where these settings were loaded from.
	filePath string `yaml:"-"`
}

// Default returns new Settings with default values.
func Default() *Settings {
	paths := GetPaths()
	return &Settings{
		SecretStorage: SecretStorageFile,
		Notifications: NotificationConfig{
			Enabled:   false,
			OnLogin:   true,
			OnLogout:  true,
			OnFailure: true,
		},
		LogLevel: "info",
		filePath: paths.SettingsFile,
	}
}

// Load loads the settings from the default path.
func Load() (*Settings, error) {
	paths := GetPaths()
	return LoadFrom(paths.SettingsFile)
}

// LoadFrom loads the settings from a specific path. An absent file is not
// an error; defaults are returned.
func LoadFrom(path string) (*Settings, error) {
	s := Default()
	s.filePath = path

	// #nosec G304 - path is the settings file path from the user config directory
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	if s.SecretStorage == "" {
		s.SecretStorage = SecretStorageFile
	}
	if s.SecretStorage != SecretStorageFile && s.SecretStorage != SecretStorageKeyring {
		return nil, fmt.Errorf("invalid secret_storage %q: must be %q or %q",
			s.SecretStorage, SecretStorageFile, SecretStorageKeyring)
	}

	return s, nil
}

// Save writes the settings to their file path.
func (s *Settings) Save() error {
	if s.filePath == "" {
		return errors.New("settings file path not set")
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// FilePath returns the path where these settings were loaded from.
func (s *Settings) FilePath() string {
	return s.filePath
}

// BinaryPath returns the argocd binary to execute.
func (s *Settings) BinaryPath() string {
	if s.CLI.BinaryPath != "" {
		return s.CLI.BinaryPath
	}
	return "argocd"
}

// ValidateBinaryPath validates that a custom binary path is safe to
// execute. This prevents command injection via a tampered settings file.
func (s *Settings) ValidateBinaryPath() error {
	binaryPath := s.CLI.BinaryPath

	// The default is looked up in PATH and always safe.
	if binaryPath == "" {
		return nil
	}

	// A bare name without separators is also a PATH lookup.
	if binaryPath == filepath.Base(binaryPath) {
		return nil
	}

	if !filepath.IsAbs(binaryPath) {
		return fmt.Errorf("%w: custom binary path must be absolute, got %q", ErrInvalidBinaryPath, binaryPath)
	}
	if strings.Contains(binaryPath, "..") {
		return fmt.Errorf("%w: binary path contains path traversal", ErrInvalidBinaryPath)
	}
	if filepath.Clean(binaryPath) != binaryPath {
		return fmt.Errorf("%w: binary path contains suspicious components", ErrInvalidBinaryPath)
	}

	info, err := os.Lstat(binaryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: binary not found at %q", ErrInvalidBinaryPath, binaryPath)
		}
		return fmt.Errorf("%w: cannot access binary at %q: %v", ErrInvalidBinaryPath, binaryPath, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%w: %q is a symlink", ErrInvalidBinaryPath, binaryPath)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %q is not a regular file", ErrInvalidBinaryPath, binaryPath)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("%w: %q is not executable", ErrInvalidBinaryPath, binaryPath)
	}

	return nil
}
