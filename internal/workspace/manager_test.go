package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/forerelic/truss/internal/permission"
)

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
	err    error
}

func (n *recordingNavigator) Navigate(_ context.Context, route string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
	return n.err
}

func (n *recordingNavigator) recorded() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

// scriptedSessions serves one scripted response per Session call and can
// hold a call open on a gate channel to model slow resolutions.
type scriptedSessions struct {
	mu      sync.Mutex
	calls   int
	gates   []chan struct{}
	scripts []struct {
		session *Session
		active  *Organization
	}
	lastActive *Organization
}

func (s *scriptedSessions) Session(context.Context) (*Session, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	var gate chan struct{}
	if i < len(s.gates) {
		gate = s.gates[i]
	}
	script := s.scripts[min(i, len(s.scripts)-1)]
	s.lastActive = script.active
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return script.session, nil
}

func (s *scriptedSessions) ActiveOrganization(context.Context) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, nil
}

func (s *scriptedSessions) Organizations(context.Context) ([]OrganizationSummary, error) {
	return []OrganizationSummary{{ID: "org-1", Name: "Acme", Slug: "acme", Role: "member"}}, nil
}

func (s *scriptedSessions) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestManager(sessions SessionProvider, perms PermissionStore, nav Navigator, opts ...ManagerOption) *Manager {
	return NewManager(NewResolver(sessions, perms), sessions, nav, opts...)
}

func TestManagerLifecycle(t *testing.T) {
	sessions := &stubSessions{}
	m := newTestManager(sessions, &stubPerms{}, nil)

	if m.State() != StateUninitialized {
		t.Fatalf("initial state = %s", m.State())
	}
	if m.Workspace() != nil {
		t.Fatalf("workspace must be nil before first refresh")
	}

	// No session yet.
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if m.State() != StateUnauthenticated || m.Workspace() != nil {
		t.Fatalf("expected unauthenticated, got %s", m.State())
	}

	// Signing in moves to a resolved personal workspace.
	sessions.session = &Session{UserID: "u-1"}
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if m.State() != StateResolved {
		t.Fatalf("expected resolved, got %s", m.State())
	}
	if !m.Workspace().Personal() {
		t.Fatalf("expected personal workspace")
	}

	// Signing out drops the workspace again.
	sessions.session = nil
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if m.State() != StateUnauthenticated || m.Workspace() != nil {
		t.Fatalf("expected unauthenticated after sign-out, got %s", m.State())
	}
}

func TestManagerAppAccessScenarios(t *testing.T) {
	member := Member{ID: "m-2", UserID: "u-2", OrganizationID: "org-1", Role: permission.RoleMember}
	perms := &stubPerms{perms: map[string]map[permission.App]permission.Level{
		"m-2": {permission.AppPrecision: permission.Write},
	}}
	sessions := &stubSessions{session: &Session{UserID: "u-2"}, active: demoOrg(member)}
	m := newTestManager(sessions, perms, nil)

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	precision := m.AppAccess(permission.AppPrecision)
	if !precision.HasAccess || !precision.CanView || !precision.CanEdit || precision.CanAdmin {
		t.Fatalf("unexpected precision access: %+v", precision)
	}
	if precision.Permission != permission.Write {
		t.Fatalf("precision permission = %s", precision.Permission)
	}

	momentum := m.AppAccess(permission.AppMomentum)
	if momentum.HasAccess || momentum.Permission != permission.None {
		t.Fatalf("momentum must default to none: %+v", momentum)
	}
}

func TestManagerAppAccessWithoutWorkspace(t *testing.T) {
	m := newTestManager(&stubSessions{}, &stubPerms{}, nil)
	access := m.AppAccess(permission.AppPrecision)
	if access.HasAccess || access.CanView || access.CanEdit || access.CanAdmin {
		t.Fatalf("no workspace must deny everything: %+v", access)
	}
}

func TestManagerCoalescesStaleResolutions(t *testing.T) {
	member := Member{ID: "m-1", UserID: "u-1", OrganizationID: "org-1", Role: permission.RoleOwner}
	gate := make(chan struct{})
	sessions := &scriptedSessions{
		gates: []chan struct{}{gate, nil},
		scripts: []struct {
			session *Session
			active  *Organization
		}{
			{session: &Session{UserID: "u-1"}, active: demoOrg(member)}, // stale, held open
			{session: &Session{UserID: "u-1"}, active: nil},            // newer, personal
		},
	}

	var hookCalls int
	var hookMu sync.Mutex
	m := newTestManager(sessions, &stubPerms{}, nil, WithResolvedHook(func(*Context) {
		hookMu.Lock()
		hookCalls++
		hookMu.Unlock()
	}))

	staleDone := make(chan error, 1)
	go func() { staleDone <- m.Refresh(context.Background()) }()

	// Wait until the stale refresh is parked inside the provider so the
	// second refresh is guaranteed the newer generation.
	deadline := time.After(2 * time.Second)
	for sessions.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("stale refresh never reached the provider")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("newer refresh: %v", err)
	}
	if !m.Workspace().Personal() {
		t.Fatalf("newer refresh must win")
	}

	close(gate)
	if err := <-staleDone; err != nil {
		t.Fatalf("stale refresh: %v", err)
	}

	// The stale organization resolution must not overwrite newer state.
	if !m.Workspace().Personal() {
		t.Fatalf("stale resolution overwrote newer workspace")
	}
	if m.State() != StateResolved {
		t.Fatalf("unexpected state %s", m.State())
	}

	hookMu.Lock()
	defer hookMu.Unlock()
	if hookCalls != 1 {
		t.Fatalf("hook must fire only for applied contexts, fired %d times", hookCalls)
	}
}

func TestManagerSwitchRequestsNavigation(t *testing.T) {
	nav := &recordingNavigator{}
	m := newTestManager(&stubSessions{session: &Session{UserID: "u-1"}}, &stubPerms{}, nav)

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	before := m.Workspace()

	if err := m.SwitchToOrganization(context.Background(), "org-1"); err != nil {
		t.Fatalf("SwitchToOrganization: %v", err)
	}
	if err := m.SwitchToOrganization(context.Background(), "org-1"); err != nil {
		t.Fatalf("repeat switch must stay idempotent: %v", err)
	}
	if err := m.SwitchToPersonal(context.Background()); err != nil {
		t.Fatalf("SwitchToPersonal: %v", err)
	}

	routes := nav.recorded()
	want := []string{"/workspace/org-1", "/workspace/org-1", "/workspace/personal"}
	if len(routes) != len(want) {
		t.Fatalf("recorded routes %v, want %v", routes, want)
	}
	for i := range want {
		if routes[i] != want[i] {
			t.Fatalf("route[%d] = %s, want %s", i, routes[i], want[i])
		}
	}

	// Switching never mutates local state directly.
	if m.Workspace() != before {
		t.Fatalf("switch must not touch the resolved workspace")
	}

	if err := m.SwitchToOrganization(context.Background(), ""); err == nil {
		t.Fatalf("empty organization id must be rejected")
	}
}

func TestManagerRefreshErrorKeepsWorkspace(t *testing.T) {
	sessions := &stubSessions{session: &Session{UserID: "u-1"}}
	m := newTestManager(sessions, &stubPerms{}, nil)
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	sessions.sessErr = errors.New("provider flake")
	if err := m.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	if m.Workspace() == nil || m.State() != StateResolved {
		t.Fatalf("failed refresh must keep the previous workspace")
	}
}

func TestManagerOrganizations(t *testing.T) {
	sessions := &stubSessions{orgs: []OrganizationSummary{{ID: "org-1", Name: "Acme", Slug: "acme", Role: "member"}}}
	m := newTestManager(sessions, &stubPerms{}, nil)

	orgs, err := m.Organizations(context.Background())
	if err != nil {
		t.Fatalf("Organizations: %v", err)
	}
	if len(orgs) != 1 || orgs[0].Slug != "acme" {
		t.Fatalf("unexpected organizations: %+v", orgs)
	}
}
