package workspace

import (
	"time"

	"github.com/forerelic/truss/internal/permission"
)

// Member is a user's association with one organization. A user holds at
// most one Member per organization.
type Member struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	OrganizationID string          `json:"organization_id"`
	Role           permission.Role `json:"role"`
	CreatedAt      time.Time       `json:"created_at"`
}

// UserInfo carries the user details joined into member listings.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

// AppPermission is the explicit grant for a (member, app) pair. Absence
// of a row is semantically equivalent to permission.None; rows are never
// hard-deleted.
type AppPermission struct {
	MemberID   string           `json:"member_id"`
	App        permission.App   `json:"app"`
	Permission permission.Level `json:"permission"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// MemberWithPermissions is the admin-facing member listing entry.
type MemberWithPermissions struct {
	Member
	User           UserInfo        `json:"user"`
	AppPermissions []AppPermission `json:"app_permissions"`
}

// OrganizationSummary is one entry of the caller's organization list.
type OrganizationSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Role string `json:"role"`
}

// Organization is the active-organization read model consumed from the
// auth provider, including its member list and auto-join settings.
type Organization struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Slug            string   `json:"slug"`
	Members         []Member `json:"members"`
	AllowedDomains  []string `json:"allowed_domains"`
	AutoJoinEnabled bool     `json:"auto_join_enabled"`
}

// Session is the signed-in user read model consumed from the auth provider.
type Session struct {
	UserID string `json:"user_id"`
}

// Context is the resolved, consumer-facing workspace view. A nil
// OrganizationID denotes the personal workspace, which always implies a
// nil Role and Admin permission for every app. The object is recomputed
// whole on every resolution, never mutated in place.
type Context struct {
	OrganizationID   *string                             `json:"organization_id"`
	OrganizationName *string                             `json:"organization_name"`
	OrganizationSlug *string                             `json:"organization_slug"`
	Role             *permission.Role                    `json:"role"`
	Permissions      map[permission.App]permission.Level `json:"permissions"`
	AllowedDomains   []string                            `json:"allowed_domains"`
	AutoJoinEnabled  bool                                `json:"auto_join_enabled"`
}

// Personal reports whether the context is the personal workspace.
func (c *Context) Personal() bool {
	return c != nil && c.OrganizationID == nil
}

// Permission returns the resolved level for the app, defaulting to None
// for apps the context does not know about.
func (c *Context) Permission(app permission.App) permission.Level {
	if c == nil {
		return permission.None
	}
	return c.Permissions[app]
}

// Access expands the resolved level for the app into the UI gating view.
func (c *Context) Access(app permission.App) permission.Access {
	return permission.AccessFor(c.Permission(app))
}

// PersonalContext builds the personal-workspace shape: no organization,
// no role, full access to every registered app.
func PersonalContext() *Context {
	perms := make(map[permission.App]permission.Level, len(permission.Apps()))
	for _, app := range permission.Apps() {
		perms[app] = permission.Admin
	}
	return &Context{Permissions: perms}
}
