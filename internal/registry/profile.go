// Package registry provides the durable, file-backed store of named
// connection profiles and the pointer to the currently active one.
package registry

import (
	"errors"
	"fmt"
	"time"
)

// AuthMethod identifies how a connection authenticates against the
// control plane.
type AuthMethod string

const (
	// AuthMethodToken authenticates with a stored API token.
	AuthMethodToken AuthMethod = "token"
	// AuthMethodUsername authenticates with username and password.
	AuthMethodUsername AuthMethod = "username"
	// AuthMethodSSO authenticates through a browser-based SSO flow.
	AuthMethodSSO AuthMethod = "sso"
)

// ParseAuthMethod parses an auth method string.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch AuthMethod(s) {
	case AuthMethodToken, AuthMethodUsername, AuthMethodSSO:
		return AuthMethod(s), nil
	default:
		return "", fmt.Errorf("invalid auth method %q: must be token, username or sso", s)
	}
}

// Profile is a named, durable credential set for one remote server.
// Field names follow the persisted registry layout.
type Profile struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ServerAddress string     `json:"serverAddress"`
	AuthMethod    AuthMethod `json:"authMethod"`
	Username      string     `json:"username,omitempty"`
	APIToken      string     `json:"apiToken,omitempty"`
	SkipTLSVerify bool       `json:"skipTlsVerify,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastUsedAt    *time.Time `json:"lastUsedAt,omitempty"`
}

// Validate checks the credential invariant: the stored credential fields
// must be consistent with the auth method.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("connection name is required")
	}
	if p.ServerAddress == "" {
		return errors.New("server address is required")
	}

	switch p.AuthMethod {
	case AuthMethodToken:
		// The token itself may live in the OS keyring instead of the
		// registry file, so its presence is not required here.
		if p.Username != "" {
			return errors.New("token auth must not carry a username")
		}
	case AuthMethodUsername:
		if p.Username == "" {
			return errors.New("username auth requires a username")
		}
		if p.APIToken != "" {
			return errors.New("username auth must not carry an API token")
		}
	case AuthMethodSSO:
		if p.Username != "" || p.APIToken != "" {
			return errors.New("sso auth must not carry stored credentials")
		}
	default:
		return fmt.Errorf("invalid auth method %q", p.AuthMethod)
	}

	return nil
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	clone := p
	if p.LastUsedAt != nil {
		t := *p.LastUsedAt
		clone.LastUsedAt = &t
	}
	return clone
}

// Input carries the caller-provided fields for a new profile. ID and
// creation timestamp are generated by the store.
type Input struct {
	Name          string
	ServerAddress string
	AuthMethod    AuthMethod
	Username      string
	APIToken      string
	SkipTLSVerify bool
}

// Update carries a partial set of profile fields to merge. Nil fields are
// left untouched.
type Update struct {
	Name          *string
	ServerAddress *string
	AuthMethod    *AuthMethod
	Username      *string
	APIToken      *string
	SkipTLSVerify *bool
}
