package session

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/argonaut-dev/argonaut/internal/argocd"
	"github.com/argonaut-dev/argonaut/internal/connection"
	"github.com/argonaut-dev/argonaut/internal/registry"
)

// stubIdentity scripts the external authentication truth.
type stubIdentity struct {
	authenticated bool
	info          *argocd.UserInfo
	infoOK        bool
}

func (s *stubIdentity) IsAuthenticated(ctx context.Context) bool {
	return s.authenticated
}

func (s *stubIdentity) UserInfo(ctx context.Context) (*argocd.UserInfo, bool) {
	return s.info, s.infoOK
}

func (s *stubIdentity) UserInfoWithToken(ctx context.Context, server, token string, insecure bool) (*argocd.UserInfo, bool) {
	return s.info, s.infoOK
}

// stubLifecycle scripts manager behavior.
type stubLifecycle struct {
	store       *registry.Store
	logoutErr   error
	logoutCalls int
}

func (s *stubLifecycle) Logout(ctx context.Context) error {
	s.logoutCalls++
	if s.logoutErr != nil {
		return s.logoutErr
	}
	return s.store.ClearActive()
}

func (s *stubLifecycle) ResolveToken(p registry.Profile) (string, error) {
	if p.APIToken == "" && p.AuthMethod == registry.AuthMethodToken {
		return "", errors.New("no token")
	}
	return p.APIToken, nil
}

func newTestStore(t *testing.T) *registry.Store {
	t.Helper()
	s, err := registry.Open(afero.NewMemMapFs(), "/data/connections.json", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func addToken(t *testing.T, store *registry.Store, name string) registry.Profile {
	t.Helper()
	p, err := store.Add(registry.Input{
		Name:          name,
		ServerAddress: "argocd." + name + ".example.com",
		AuthMethod:    registry.AuthMethodToken,
		APIToken:      "tok-" + name,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func newTestProvider(t *testing.T, store *registry.Store, identity *stubIdentity) (*Provider, *stubLifecycle) {
	t.Helper()
	lifecycle := &stubLifecycle{store: store}
	return NewProvider(store, identity, lifecycle), lifecycle
}

func TestProvider_Sessions(t *testing.T) {
	t.Run("no active connection means no session", func(t *testing.T) {
		p, _ := newTestProvider(t, newTestStore(t), &stubIdentity{authenticated: true})
		if got := p.Sessions(context.Background(), nil, ""); len(got) != 0 {
			t.Errorf("expected no sessions, got %d", len(got))
		}
	})

	t.Run("unauthenticated active connection means no session", func(t *testing.T) {
		store := newTestStore(t)
		addToken(t, store, "prod")
		p, _ := newTestProvider(t, store, &stubIdentity{})

		if got := p.Sessions(context.Background(), nil, ""); len(got) != 0 {
			t.Errorf("expected no sessions, got %d", len(got))
		}
	})

	t.Run("authenticated active connection yields a singleton", func(t *testing.T) {
		store := newTestStore(t)
		profile := addToken(t, store, "prod")
		identity := &stubIdentity{
			info:   &argocd.UserInfo{LoggedIn: true, Username: "admin", Groups: []string{"ops"}, Iss: "argocd"},
			infoOK: true,
		}
		p, _ := newTestProvider(t, store, identity)

		got := p.Sessions(context.Background(), nil, "")
		if len(got) != 1 {
			t.Fatalf("expected one session, got %d", len(got))
		}
		s := got[0]
		if s.ID != "argocd-"+profile.ID {
			t.Errorf("unexpected session id %q", s.ID)
		}
		if s.AccountLabel != "admin" {
			t.Errorf("expected resolved username label, got %q", s.AccountLabel)
		}
		if !s.HasScope("token") || !s.HasScope("ops") || !s.HasScope("iss:argocd") {
			t.Errorf("unexpected scopes %v", s.Scopes)
		}
		if s.AccessToken != "tok-prod" {
			t.Error("expected access token on session")
		}
	})

	t.Run("identity enrichment failure falls back to credential label", func(t *testing.T) {
		store := newTestStore(t)
		addToken(t, store, "prod")
		p, _ := newTestProvider(t, store, &stubIdentity{authenticated: true})

		got := p.Sessions(context.Background(), nil, "")
		if len(got) != 1 {
			t.Fatalf("expected one session, got %d", len(got))
		}
		if got[0].AccountLabel != "API Token" {
			t.Errorf("expected fallback label, got %q", got[0].AccountLabel)
		}
	})

	t.Run("filters by scope and account id", func(t *testing.T) {
		store := newTestStore(t)
		profile := addToken(t, store, "prod")
		identity := &stubIdentity{
			info:   &argocd.UserInfo{LoggedIn: true, Username: "admin"},
			infoOK: true,
		}
		p, _ := newTestProvider(t, store, identity)

		if got := p.Sessions(context.Background(), []string{"token"}, ""); len(got) != 1 {
			t.Errorf("expected scope match, got %d sessions", len(got))
		}
		if got := p.Sessions(context.Background(), []string{"nope"}, ""); len(got) != 0 {
			t.Errorf("expected no scope match, got %d sessions", len(got))
		}
		if got := p.Sessions(context.Background(), nil, profile.ID+"-admin"); len(got) != 1 {
			t.Errorf("expected account match, got %d sessions", len(got))
		}
		if got := p.Sessions(context.Background(), nil, "other"); len(got) != 0 {
			t.Errorf("expected no account match, got %d sessions", len(got))
		}
	})
}

func TestProvider_Refresh(t *testing.T) {
	t.Run("unchanged state emits nothing", func(t *testing.T) {
		store := newTestStore(t)
		addToken(t, store, "prod")
		identity := &stubIdentity{authenticated: true}
		p, _ := newTestProvider(t, store, identity)

		var events []ChangeEvent
		p.Subscribe(func(e ChangeEvent) { events = append(events, e) })

		p.Refresh(context.Background())
		p.Refresh(context.Background())
		p.Refresh(context.Background())

		if len(events) != 1 {
			t.Errorf("expected one event for repeated identical refreshes, got %d", len(events))
		}
	})

	t.Run("session appearing emits added", func(t *testing.T) {
		store := newTestStore(t)
		addToken(t, store, "prod")
		identity := &stubIdentity{}
		p, _ := newTestProvider(t, store, identity)

		p.Refresh(context.Background())

		var event ChangeEvent
		p.Subscribe(func(e ChangeEvent) { event = e })

		identity.authenticated = true
		p.Refresh(context.Background())

		if len(event.Added) != 1 || len(event.Removed) != 0 {
			t.Errorf("expected one added session, got %+v", event)
		}
	})

	t.Run("session disappearing emits removed", func(t *testing.T) {
		store := newTestStore(t)
		addToken(t, store, "prod")
		identity := &stubIdentity{authenticated: true}
		p, _ := newTestProvider(t, store, identity)

		p.Refresh(context.Background())

		var event ChangeEvent
		p.Subscribe(func(e ChangeEvent) { event = e })

		identity.authenticated = false
		p.Refresh(context.Background())

		if len(event.Removed) != 1 || len(event.Added) != 0 {
			t.Errorf("expected one removed session, got %+v", event)
		}
	})

	t.Run("cancelled subscription stops receiving", func(t *testing.T) {
		store := newTestStore(t)
		addToken(t, store, "prod")
		identity := &stubIdentity{authenticated: true}
		p, _ := newTestProvider(t, store, identity)

		var fired int
		cancel := p.Subscribe(func(e ChangeEvent) { fired++ })
		cancel()

		p.Refresh(context.Background())
		if fired != 0 {
			t.Errorf("expected no events after cancel, got %d", fired)
		}
	})
}

func TestProvider_Remove(t *testing.T) {
	t.Run("ends the current session", func(t *testing.T) {
		store := newTestStore(t)
		profile := addToken(t, store, "prod")
		identity := &stubIdentity{authenticated: true}
		p, lifecycle := newTestProvider(t, store, identity)

		p.Refresh(context.Background())

		identity.authenticated = false
		if err := p.Remove(context.Background(), "argocd-"+profile.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lifecycle.logoutCalls != 1 {
			t.Errorf("expected one logout, got %d", lifecycle.logoutCalls)
		}
		if _, ok := p.Current(context.Background()); ok {
			t.Error("expected no current session after removal")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		store := newTestStore(t)
		addToken(t, store, "prod")
		p, _ := newTestProvider(t, store, &stubIdentity{authenticated: true})

		err := p.Remove(context.Background(), "argocd-other")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestProvider_Create(t *testing.T) {
	t.Run("no configurer", func(t *testing.T) {
		p, _ := newTestProvider(t, newTestStore(t), &stubIdentity{})
		_, err := p.Create(context.Background())
		if !errors.Is(err, connection.ErrAuthenticationFailed) {
			t.Errorf("expected ErrAuthenticationFailed, got %v", err)
		}
	})

	t.Run("successful flow returns the new session", func(t *testing.T) {
		store := newTestStore(t)
		identity := &stubIdentity{}
		lifecycle := &stubLifecycle{store: store}
		p := NewProvider(store, identity, lifecycle, WithConfigurer(func(ctx context.Context) (bool, error) {
			addToken(t, store, "prod")
			identity.authenticated = true
			return true, nil
		}))

		s, err := p.Create(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.AccountLabel != "API Token" {
			t.Errorf("unexpected session %+v", s)
		}
	})

	t.Run("abandoned flow is an authentication failure", func(t *testing.T) {
		store := newTestStore(t)
		p := NewProvider(store, &stubIdentity{}, &stubLifecycle{store: store}, WithConfigurer(func(ctx context.Context) (bool, error) {
			return false, connection.ErrCancelled
		}))

		_, err := p.Create(context.Background())
		if !errors.Is(err, connection.ErrAuthenticationFailed) {
			t.Errorf("expected ErrAuthenticationFailed, got %v", err)
		}
	})
}
