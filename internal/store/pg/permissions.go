package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/forerelic/truss/internal/ids"
	"github.com/forerelic/truss/internal/obs"
	"github.com/forerelic/truss/internal/permission"
	"github.com/forerelic/truss/internal/workspace"
)

var (
	_ workspace.PermissionStore = (*Store)(nil)
	_ workspace.MembersQuery    = (*Store)(nil)
)

// MemberAppPermissions returns the grant for every registered app,
// defaulting unset apps to None.
//
// The read is fail-closed: any query error yields None for every app
// instead of propagating. A degraded database must never widen access.
func (s *Store) MemberAppPermissions(ctx context.Context, memberID string) map[permission.App]permission.Level {
	perms := make(map[permission.App]permission.Level, len(permission.Apps()))
	for _, app := range permission.Apps() {
		perms[app] = permission.None
	}

	rows, err := s.db.QueryContext(ctx,
		`select app, permission from app_permissions where member_id = $1`, memberID)
	if err != nil {
		s.logReadFailure(memberID, err)
		return perms
	}
	defer rows.Close()

	for rows.Next() {
		var rawApp, rawLevel string
		if err := rows.Scan(&rawApp, &rawLevel); err != nil {
			s.logReadFailure(memberID, err)
			return failClosed()
		}
		app, err := permission.ParseApp(rawApp)
		if err != nil {
			// Rows for retired apps are ignored, not fatal.
			continue
		}
		level, err := permission.ParseLevel(rawLevel)
		if err != nil {
			s.logReadFailure(memberID, err)
			return failClosed()
		}
		perms[app] = level
	}
	if err := rows.Err(); err != nil {
		s.logReadFailure(memberID, err)
		return failClosed()
	}
	return perms
}

func failClosed() map[permission.App]permission.Level {
	perms := make(map[permission.App]permission.Level, len(permission.Apps()))
	for _, app := range permission.Apps() {
		perms[app] = permission.None
	}
	return perms
}

func (s *Store) logReadFailure(memberID string, err error) {
	obs.LogEvent("error", "app_permissions_read_failed", map[string]any{
		"member_id": memberID,
		"error":     err.Error(),
	})
}

// SetMemberAppPermission upserts the grant keyed on (member_id, app)
// and stamps updated_at. Authorization is the caller's responsibility.
func (s *Store) SetMemberAppPermission(ctx context.Context, memberID string, app permission.App, level permission.Level) error {
	if strings.TrimSpace(memberID) == "" {
		return errors.New("member id is required")
	}
	if _, err := permission.ParseApp(string(app)); err != nil {
		return err
	}
	if !level.Valid() {
		return fmt.Errorf("invalid permission level %d", int(level))
	}

	_, err := s.db.ExecContext(ctx, `
		insert into app_permissions (id, member_id, app, permission, created_at, updated_at)
		values ($1, $2, $3, $4, now(), now())
		on conflict (member_id, app) do update
		set permission = excluded.permission, updated_at = now()
	`, ids.New(), memberID, string(app), level.String())
	if err != nil {
		return fmt.Errorf("upsert app permission: %w", err)
	}
	return nil
}

// OrganizationMembers lists an organization's members with user info
// and their explicit app permission rows.
//
// Two queries combined client-side instead of one relational join; org
// member counts are bounded, so the id list stays small.
func (s *Store) OrganizationMembers(ctx context.Context, organizationID string) ([]workspace.MemberWithPermissions, error) {
	rows, err := s.db.QueryContext(ctx, `
		select m.id, m.user_id, m.organization_id, m.role, m.created_at,
		       u.id, u.name, u.email, coalesce(u.image, '')
		from member m
		join "user" u on u.id = m.user_id
		where m.organization_id = $1
		order by m.created_at asc
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []workspace.MemberWithPermissions
	var memberIDs []string
	for rows.Next() {
		var (
			m       workspace.MemberWithPermissions
			rawRole string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &rawRole, &m.CreatedAt,
			&m.User.ID, &m.User.Name, &m.User.Email, &m.User.Image); err != nil {
			return nil, err
		}
		role, err := permission.ParseRole(rawRole)
		if err != nil {
			return nil, err
		}
		m.Role = role
		m.AppPermissions = []workspace.AppPermission{}
		members = append(members, m)
		memberIDs = append(memberIDs, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []workspace.MemberWithPermissions{}, nil
	}

	grants, err := s.appPermissionsForMembers(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if rows := grants[members[i].ID]; rows != nil {
			members[i].AppPermissions = rows
		}
	}
	return members, nil
}

func (s *Store) appPermissionsForMembers(ctx context.Context, memberIDs []string) (map[string][]workspace.AppPermission, error) {
	placeholders := make([]string, len(memberIDs))
	args := make([]any, len(memberIDs))
	for i, id := range memberIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select member_id, app, permission, created_at, updated_at
		from app_permissions
		where member_id in (%s)
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := make(map[string][]workspace.AppPermission)
	for rows.Next() {
		var (
			p        workspace.AppPermission
			rawApp   string
			rawLevel string
		)
		if err := rows.Scan(&p.MemberID, &rawApp, &rawLevel, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		app, err := permission.ParseApp(rawApp)
		if err != nil {
			continue
		}
		level, err := permission.ParseLevel(rawLevel)
		if err != nil {
			return nil, err
		}
		p.App = app
		p.Permission = level
		grants[p.MemberID] = append(grants[p.MemberID], p)
	}
	return grants, rows.Err()
}

// FindMember returns a single membership row.
func (s *Store) FindMember(ctx context.Context, memberID string) (workspace.Member, error) {
	var (
		m       workspace.Member
		rawRole string
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, organization_id, role, created_at
		from member
		where id = $1
	`, memberID).Scan(&m.ID, &m.UserID, &m.OrganizationID, &rawRole, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return workspace.Member{}, workspace.ErrNotFound
	}
	if err != nil {
		return workspace.Member{}, err
	}
	role, err := permission.ParseRole(rawRole)
	if err != nil {
		return workspace.Member{}, err
	}
	m.Role = role
	return m, nil
}

// UserHasAppPermission evaluates the server-side enforcement mirror of
// the permission lattice via the user_has_app_permission SQL function.
// The function's ordinal mapping must stay identical to the Go lattice;
// the migration that defines it is the source of truth for the SQL side.
func (s *Store) UserHasAppPermission(ctx context.Context, userID, organizationID string, app permission.App, required permission.Level) (bool, error) {
	var allowed bool
	err := s.db.QueryRowContext(ctx,
		`select user_has_app_permission($1, $2, $3, $4)`,
		userID, organizationID, string(app), required.String(),
	).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("check app permission: %w", err)
	}
	return allowed, nil
}
