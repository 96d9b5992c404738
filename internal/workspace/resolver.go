package workspace

import (
	"context"
	"fmt"

	"github.com/forerelic/truss/internal/obs"
	"github.com/forerelic/truss/internal/permission"
)

// Resolver assembles the workspace Context for the signed-in user.
//
// The personal branch never touches the permission store. The
// organization branch looks up the caller's membership, short-circuits
// owners to full access, and reads fine-grained grants for everyone
// else. Resolution failures in the organization branch fall back to the
// personal shape by default; the fallback is always logged and counted
// so a degraded resolution stays distinguishable from a genuinely
// personal workspace. WithStrictResolution turns the fallback into an
// error instead.
type Resolver struct {
	sessions SessionProvider
	perms    PermissionStore
	strict   bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStrictResolution makes organization-branch failures surface as
// errors instead of degrading to the personal workspace.
func WithStrictResolution() ResolverOption {
	return func(r *Resolver) { r.strict = true }
}

// NewResolver constructs a Resolver over the given capabilities.
func NewResolver(sessions SessionProvider, perms PermissionStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{sessions: sessions, perms: perms}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the workspace context for the current session. It
// returns (nil, nil) when there is no signed-in user. A cancelled
// context abandons resolution rather than fabricating a fallback.
func (r *Resolver) Resolve(ctx context.Context) (*Context, error) {
	wctx, _, err := r.ResolveWithFallback(ctx)
	return wctx, err
}

// ResolveWithFallback is Resolve plus a report of whether the returned
// context is the fail-open fallback rather than a clean resolution.
// Fallback contexts are per-resolution stopgaps: callers that cache or
// persist resolved contexts must skip them, or a transient provider
// failure would pin the all-admin personal shape past recovery.
func (r *Resolver) ResolveWithFallback(ctx context.Context) (*Context, bool, error) {
	sess, err := r.sessions.Session(ctx)
	if err != nil {
		obs.IncResolution("error")
		return nil, false, fmt.Errorf("fetch session: %w", err)
	}
	if sess == nil {
		obs.IncResolution("unauthenticated")
		return nil, false, nil
	}

	active, err := r.sessions.ActiveOrganization(ctx)
	if err != nil {
		return r.fallback(ctx, sess.UserID, "active_organization_fetch", err)
	}

	if active == nil {
		obs.IncResolution("personal")
		return PersonalContext(), false, nil
	}

	member := findMember(active, sess.UserID)
	if member == nil {
		return r.fallback(ctx, sess.UserID, "member_missing", ErrNotMember)
	}

	// Owners always have total access. Skipping the store both saves a
	// round trip and makes stale permission rows irrelevant for owners.
	if member.Role == permission.RoleOwner {
		obs.IncResolution("owner")
		return orgContext(active, member.Role, adminForAllApps()), false, nil
	}

	perms := r.perms.MemberAppPermissions(ctx, member.ID)
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	obs.IncResolution("organization")
	return orgContext(active, member.Role, perms), false, nil
}

// fallback applies the legacy fail-open policy: organization-branch
// failures degrade to the personal-workspace shape unless strict mode
// is enabled. Either way the cause is logged and counted.
func (r *Resolver) fallback(ctx context.Context, userID, cause string, err error) (*Context, bool, error) {
	if cerr := ctx.Err(); cerr != nil {
		return nil, false, cerr
	}

	obs.LogEvent("warn", "workspace_resolution_fallback", map[string]any{
		"user_id": userID,
		"cause":   cause,
		"error":   err.Error(),
		"strict":  r.strict,
	})
	obs.IncResolutionFallback(cause)

	if r.strict {
		obs.IncResolution("error")
		return nil, false, fmt.Errorf("resolve organization workspace: %w", err)
	}
	obs.IncResolution("personal_fallback")
	return PersonalContext(), true, nil
}

func findMember(org *Organization, userID string) *Member {
	for i := range org.Members {
		if org.Members[i].UserID == userID {
			return &org.Members[i]
		}
	}
	return nil
}

func adminForAllApps() map[permission.App]permission.Level {
	perms := make(map[permission.App]permission.Level, len(permission.Apps()))
	for _, app := range permission.Apps() {
		perms[app] = permission.Admin
	}
	return perms
}

func orgContext(org *Organization, role permission.Role, perms map[permission.App]permission.Level) *Context {
	if perms == nil {
		perms = map[permission.App]permission.Level{}
	}
	// Unset apps resolve to None rather than staying absent.
	for _, app := range permission.Apps() {
		if _, ok := perms[app]; !ok {
			perms[app] = permission.None
		}
	}
	id, name, slug := org.ID, org.Name, org.Slug
	r := role
	return &Context{
		OrganizationID:   &id,
		OrganizationName: &name,
		OrganizationSlug: &slug,
		Role:             &r,
		Permissions:      perms,
		AllowedDomains:   org.AllowedDomains,
		AutoJoinEnabled:  org.AutoJoinEnabled,
	}
}
