package workspace

import (
	"context"
	"errors"

	"github.com/forerelic/truss/internal/permission"
)

var (
	// ErrNotMember indicates the signed-in user has an active
	// organization they hold no Member record in. The session and the
	// membership read model disagree; see Resolver for how this is
	// surfaced.
	ErrNotMember = errors.New("workspace: user is not a member of the active organization")

	ErrNotFound = errors.New("workspace: not found")
)

// PermissionStore reads and writes per-member app permission grants.
type PermissionStore interface {
	// MemberAppPermissions returns the level for every registered app,
	// defaulting unset apps to None. The read is fail-closed: on a
	// store error it returns None for every app instead of propagating.
	MemberAppPermissions(ctx context.Context, memberID string) map[permission.App]permission.Level

	// SetMemberAppPermission upserts the grant keyed on (member, app).
	// The store performs no authorization check; callers gate writes on
	// the acting member's role.
	SetMemberAppPermission(ctx context.Context, memberID string, app permission.App, level permission.Level) error
}

// MembersQuery lists an organization's members with their permissions.
// Kept separate from PermissionStore so a SQL backend can collapse the
// two-step lookup into one join without changing resolver contracts.
type MembersQuery interface {
	OrganizationMembers(ctx context.Context, organizationID string) ([]MemberWithPermissions, error)
	FindMember(ctx context.Context, memberID string) (Member, error)
}

// SessionProvider is the read model of the external auth provider. The
// core never mutates sessions; switching workspaces happens through
// navigation, which makes the provider report a different active
// organization on the next read.
type SessionProvider interface {
	// Session returns the signed-in user, or nil when unauthenticated.
	Session(ctx context.Context) (*Session, error)

	// ActiveOrganization returns the active organization with its
	// member list, or nil for the personal workspace.
	ActiveOrganization(ctx context.Context) (*Organization, error)

	// Organizations lists the workspaces available to the user.
	Organizations(ctx context.Context) ([]OrganizationSummary, error)
}

// Navigator requests navigation to a workspace route. Implementations
// must be idempotent and must not assume the transition completes
// synchronously.
type Navigator interface {
	Navigate(ctx context.Context, route string) error
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, route string) error

func (f NavigatorFunc) Navigate(ctx context.Context, route string) error { return f(ctx, route) }
