package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/argonaut-dev/argonaut/internal/argocd"
	"github.com/argonaut-dev/argonaut/internal/connection"
	"github.com/argonaut-dev/argonaut/internal/registry"
)

// ErrNotFound is returned when a session id does not match the current
// session.
var ErrNotFound = errors.New("session not found")

// Identity is the gateway surface used to resolve authentication truth.
type Identity interface {
	IsAuthenticated(ctx context.Context) bool
	UserInfo(ctx context.Context) (*argocd.UserInfo, bool)
	UserInfoWithToken(ctx context.Context, server, token string, insecure bool) (*argocd.UserInfo, bool)
}

// Lifecycle is the manager surface the provider needs for session removal
// and credential resolution.
type Lifecycle interface {
	Logout(ctx context.Context) error
	ResolveToken(p registry.Profile) (string, error)
}

// ConfigureFunc runs the full interactive configure-and-authenticate flow
// and reports whether authentication succeeded.
type ConfigureFunc func(ctx context.Context) (bool, error)

// Provider computes Session values from the active profile plus a live
// external check, and dispatches change events to subscribers.
type Provider struct {
	store     *registry.Store
	identity  Identity
	lifecycle Lifecycle
	configure ConfigureFunc
	logger    *slog.Logger

	mu      sync.Mutex
	current []Session
	subs    map[int]func(ChangeEvent)
	nextSub int
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithConfigurer sets the interactive configuration flow used by Create.
func WithConfigurer(fn ConfigureFunc) ProviderOption {
	return func(p *Provider) {
		p.configure = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = l
	}
}

// NewProvider creates a session provider.
func NewProvider(store *registry.Store, identity Identity, lifecycle Lifecycle, opts ...ProviderOption) *Provider {
	p := &Provider{
		store:     store,
		identity:  identity,
		lifecycle: lifecycle,
		logger:    slog.Default(),
		subs:      make(map[int]func(ChangeEvent)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers a change listener, dispatched synchronously after
// each committed session change. The returned func cancels the
// subscription.
func (p *Provider) Subscribe(fn func(ChangeEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// compute derives the current session set (empty or singleton) from a
// fresh external check.
func (p *Provider) compute(ctx context.Context) []Session {
	active, ok := p.store.Active()
	if !ok {
		return nil
	}

	var (
		info          *argocd.UserInfo
		infoOK        bool
		authenticated bool
		token         string
	)

	switch active.AuthMethod {
	case registry.AuthMethodToken:
		var err error
		token, err = p.lifecycle.ResolveToken(active)
		if err != nil {
			p.logger.Warn("cannot resolve token for active connection", "name", active.Name, "error", err)
			return nil
		}
		info, infoOK = p.identity.UserInfoWithToken(ctx, active.ServerAddress, token, active.SkipTLSVerify)
		if infoOK {
			authenticated = info.LoggedIn || info.Username != ""
		} else {
			// Identity enrichment is best-effort; fall back to the
			// ambient check rather than reporting a false negative.
			authenticated = p.identity.IsAuthenticated(ctx)
		}

	default:
		authenticated = p.identity.IsAuthenticated(ctx)
		if authenticated {
			info, infoOK = p.identity.UserInfo(ctx)
		}
	}

	if !authenticated {
		return nil
	}
	if !infoOK {
		info = nil
	}

	return []Session{buildSession(active, info, token)}
}

func sessionsEqual(a, b []Session) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Refresh recomputes the session set and, when the observable state
// changed, emits an event listing all previously-held sessions as removed
// and all newly-computed sessions as added. An unchanged recompute emits
// nothing.
func (p *Provider) Refresh(ctx context.Context) {
	fresh := p.compute(ctx)

	p.mu.Lock()
	old := p.current
	if sessionsEqual(old, fresh) {
		p.mu.Unlock()
		return
	}
	p.current = fresh
	subs := make([]func(ChangeEvent), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	event := ChangeEvent{Added: fresh, Removed: old}
	p.logger.Debug("session state changed", "added", len(fresh), "removed", len(old))
	for _, fn := range subs {
		fn(event)
	}
}

// Sessions performs a fresh external check and returns the current
// session set, filtered by scopes and account id last. The set is always
// empty or a singleton.
func (p *Provider) Sessions(ctx context.Context, scopes []string, accountID string) []Session {
	p.Refresh(ctx)

	p.mu.Lock()
	sessions := make([]Session, len(p.current))
	copy(sessions, p.current)
	p.mu.Unlock()

	if accountID != "" {
		filtered := sessions[:0]
		for _, s := range sessions {
			if s.AccountID == accountID {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}

	if len(scopes) > 0 {
		filtered := sessions[:0]
		for _, s := range sessions {
			for _, scope := range scopes {
				if s.HasScope(scope) {
					filtered = append(filtered, s)
					break
				}
			}
		}
		sessions = filtered
	}

	return sessions
}

// Current returns the single current session, if one exists.
func (p *Provider) Current(ctx context.Context) (Session, bool) {
	sessions := p.Sessions(ctx, nil, "")
	if len(sessions) == 0 {
		return Session{}, false
	}
	return sessions[0], true
}

// Create runs the interactive configuration and authentication flow and
// returns the resulting session. It is only meaningful when no connection
// is configured yet; cancellation or a failed login surfaces as an
// authentication error.
func (p *Provider) Create(ctx context.Context) (Session, error) {
	if p.configure == nil {
		return Session{}, fmt.Errorf("%w: no interactive configuration flow available", connection.ErrAuthenticationFailed)
	}

	authOK, err := p.configure(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", connection.ErrAuthenticationFailed, err)
	}
	if !authOK {
		return Session{}, connection.ErrAuthenticationFailed
	}

	p.Refresh(ctx)
	current, ok := p.Current(ctx)
	if !ok {
		return Session{}, connection.ErrAuthenticationFailed
	}
	return current, nil
}

// Remove ends the session with the given id: it logs out of the owning
// connection and clears the active pointer. The id must match the current
// session.
func (p *Provider) Remove(ctx context.Context, id string) error {
	active, ok := p.store.Active()
	if !ok || sessionID(active) != id {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}

	if err := p.lifecycle.Logout(ctx); err != nil {
		return err
	}

	p.Refresh(ctx)
	return nil
}
