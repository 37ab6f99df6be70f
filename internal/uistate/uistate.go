// Package uistate maps session and connection changes onto the small set
// of flags the presentation layer reads to decide what to show.
package uistate

import (
	"context"
	"sync"

	"github.com/argonaut-dev/argonaut/internal/session"
)

// Flags are the booleans exposed to the presentation layer.
type Flags struct {
	// IsAuthenticated reports whether a live session exists.
	IsAuthenticated bool `json:"isAuthenticated"`
	// IsCliAvailable reports whether the external argocd binary is
	// runnable.
	IsCliAvailable bool `json:"isCliAvailable"`
}

// CLIChecker probes for the external CLI.
type CLIChecker interface {
	CheckCLI(ctx context.Context) bool
}

// Propagator recomputes the flags after every lifecycle transition. It
// subscribes to session change events and re-probes the CLI on demand.
type Propagator struct {
	checker CLIChecker

	mu    sync.RWMutex
	flags Flags
}

// NewPropagator creates a Propagator.
func NewPropagator(checker CLIChecker) *Propagator {
	return &Propagator{checker: checker}
}

// Attach subscribes the propagator to the session provider. The returned
// func cancels the subscription.
func (p *Propagator) Attach(provider *session.Provider) func() {
	return provider.Subscribe(func(event session.ChangeEvent) {
		p.mu.Lock()
		p.flags.IsAuthenticated = len(event.Added) > 0
		p.mu.Unlock()
	})
}

// Recompute refreshes both flags from live state.
func (p *Propagator) Recompute(ctx context.Context, authenticated bool) {
	available := p.checker.CheckCLI(ctx)

	p.mu.Lock()
	p.flags.IsAuthenticated = authenticated
	p.flags.IsCliAvailable = available
	p.mu.Unlock()
}

// Snapshot returns the current flags.
func (p *Propagator) Snapshot() Flags {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.flags
}
