package workspace

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/forerelic/truss/internal/permission"
)

// State is the manager's position in the session lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateResolving
	StateResolved
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

const (
	// PersonalRoute is the navigation target for the personal workspace.
	PersonalRoute = "/workspace/personal"

	orgRoutePrefix = "/workspace/"
)

// OrganizationRoute returns the navigation target for an organization
// workspace.
func OrganizationRoute(organizationID string) string {
	return orgRoutePrefix + organizationID
}

// Manager is the stateful workspace façade consumed by UI surfaces. It
// caches the latest resolved Context and re-resolves on demand.
//
// Overlapping refreshes are coalesced with a monotonic generation
// counter: a resolution that finishes after a newer one started is
// discarded, so the applied context is always the result of the latest
// trigger rather than the first finisher.
type Manager struct {
	resolver *Resolver
	sessions SessionProvider
	nav      Navigator

	onResolved func(*Context)

	gen atomic.Uint64

	mu        sync.Mutex
	state     State
	workspace *Context
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithResolvedHook registers a callback invoked with each context that
// is actually applied (stale resolutions never reach it).
func WithResolvedHook(hook func(*Context)) ManagerOption {
	return func(m *Manager) { m.onResolved = hook }
}

// NewManager constructs a Manager. The Navigator may be nil when the
// embedding surface handles navigation itself.
func NewManager(resolver *Resolver, sessions SessionProvider, nav Navigator, opts ...ManagerOption) *Manager {
	m := &Manager{
		resolver: resolver,
		sessions: sessions,
		nav:      nav,
		state:    StateUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Refresh re-runs resolution and applies the result unless a newer
// refresh started in the meantime. It is the entry point for both the
// initial mount and out-of-band permission changes.
func (m *Manager) Refresh(ctx context.Context) error {
	gen := m.gen.Add(1)

	m.mu.Lock()
	m.state = StateResolving
	m.mu.Unlock()

	resolved, err := m.resolver.Resolve(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen.Load() {
		// A newer refresh superseded this one; discard the result.
		return nil
	}

	if err != nil {
		if m.workspace != nil {
			m.state = StateResolved
		} else {
			m.state = StateUninitialized
		}
		return err
	}

	if resolved == nil {
		m.state = StateUnauthenticated
		m.workspace = nil
		return nil
	}

	m.state = StateResolved
	m.workspace = resolved
	if m.onResolved != nil {
		m.onResolved(resolved)
	}
	return nil
}

// Workspace returns the latest applied context, or nil before the first
// successful resolution or when unauthenticated. Contexts are replaced
// whole, never mutated, so the returned pointer is safe to share.
func (m *Manager) Workspace() *Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workspace
}

// State returns the manager's lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AppAccess expands the current workspace's level for the app into the
// UI gating view. With no resolved workspace every field is denied.
func (m *Manager) AppAccess(app permission.App) permission.Access {
	return m.Workspace().Access(app)
}

// Organizations lists the workspaces available to the signed-in user.
func (m *Manager) Organizations(ctx context.Context) ([]OrganizationSummary, error) {
	return m.sessions.Organizations(ctx)
}

// SwitchToPersonal requests navigation to the personal workspace. The
// transition is external: local state changes only once the session
// read model reports the new active organization and a refresh runs.
func (m *Manager) SwitchToPersonal(ctx context.Context) error {
	return m.navigate(ctx, PersonalRoute)
}

// SwitchToOrganization requests navigation to an organization
// workspace. Idempotent and fire-and-forget like SwitchToPersonal.
func (m *Manager) SwitchToOrganization(ctx context.Context, organizationID string) error {
	if organizationID == "" {
		return errors.New("workspace: organization id is required")
	}
	return m.navigate(ctx, OrganizationRoute(organizationID))
}

func (m *Manager) navigate(ctx context.Context, route string) error {
	if m.nav == nil {
		return errors.New("workspace: no navigator configured")
	}
	return m.nav.Navigate(ctx, route)
}
