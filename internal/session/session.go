// Package session derives the ephemeral authenticated-session view of the
// active connection and notifies subscribers of changes. Authentication
// truth lives in the external CLI, so sessions are recomputed from a fresh
// external check on every query, never served from memory.
package session

import (
	"fmt"

	"github.com/argonaut-dev/argonaut/internal/argocd"
	"github.com/argonaut-dev/argonaut/internal/registry"
)

// Session is a point-in-time view of "the active connection is
// authenticated, as this account". At most one session exists at a time.
type Session struct {
	// ID is derived from the active profile id, so it is stable across
	// reloads for the same profile.
	ID string `json:"id"`
	// AccountID uniquely identifies the resolved account.
	AccountID string `json:"accountId"`
	// AccountLabel is the display identity: the resolved username when the
	// control plane reports one, else a credential-derived label.
	AccountLabel string `json:"accountLabel"`
	// Scopes carry the auth method tag plus any resolved group and issuer
	// claims.
	Scopes []string `json:"scopes"`
	// AccessToken is the raw secret behind the session, for display and
	// debugging only.
	AccessToken string `json:"-"`
}

// Equal reports whether two sessions are observably identical.
func (s Session) Equal(other Session) bool {
	if s.ID != other.ID || s.AccountID != other.AccountID || s.AccountLabel != other.AccountLabel {
		return false
	}
	if len(s.Scopes) != len(other.Scopes) {
		return false
	}
	for i := range s.Scopes {
		if s.Scopes[i] != other.Scopes[i] {
			return false
		}
	}
	return true
}

// HasScope reports whether the session carries the given scope.
func (s Session) HasScope(scope string) bool {
	for _, sc := range s.Scopes {
		if sc == scope {
			return true
		}
	}
	return false
}

// ChangeEvent describes one observable session transition.
type ChangeEvent struct {
	Added   []Session
	Removed []Session
	Changed []Session
}

// sessionID derives the stable session id for a profile.
func sessionID(p registry.Profile) string {
	return "argocd-" + p.ID
}

// buildSession assembles a Session from a profile, the best-effort
// resolved identity and the raw credential.
func buildSession(p registry.Profile, info *argocd.UserInfo, token string) Session {
	var label, accountID string
	if info != nil && info.Username != "" {
		label = info.Username
		accountID = fmt.Sprintf("%s-%s", p.ID, info.Username)
	} else {
		switch p.AuthMethod {
		case registry.AuthMethodUsername:
			label = p.Username
			if label == "" {
				label = "Unknown User"
			}
			accountID = fmt.Sprintf("%s-%s", p.ID, label)
		case registry.AuthMethodToken:
			label = "API Token"
			accountID = p.ID + "-token"
		case registry.AuthMethodSSO:
			label = "SSO User"
			accountID = p.ID + "-sso"
		default:
			label = "Unknown"
			accountID = p.ID + "-unknown"
		}
	}

	scopes := []string{string(p.AuthMethod)}
	if info != nil {
		scopes = append(scopes, info.Groups...)
		if info.Iss != "" {
			scopes = append(scopes, "iss:"+info.Iss)
		}
	}

	return Session{
		ID:           sessionID(p),
		AccountID:    accountID,
		AccountLabel: label,
		Scopes:       scopes,
		AccessToken:  token,
	}
}
