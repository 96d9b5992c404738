package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/forerelic/truss/internal/permission"
	"github.com/forerelic/truss/internal/stream"
	"github.com/forerelic/truss/internal/workspace"
)

type updateMemberPermissionRequest struct {
	App        string `json:"app"`
	Permission string `json:"permission"`
}

func (a *API) handleOrganizationScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/organizations/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "members" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.listOrganizationMembers(w, r, parts[0])
}

// listOrganizationMembers serves the member roster with per-app grants.
// Only owners and admins of the organization may read it.
func (a *API) listOrganizationMembers(w http.ResponseWriter, r *http.Request, orgID string) {
	wctx, ok := a.resolveCaller(w, r)
	if !ok {
		return
	}
	if !canManageOrganization(wctx, orgID) {
		writeError(w, r, http.StatusForbidden, "admin access required")
		return
	}

	members, err := a.directory.OrganizationMembers(r.Context(), orgID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []workspace.MemberWithPermissions{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": members,
	})
}

func (a *API) handleMemberResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/members/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "permissions" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	a.updateMemberPermission(w, r, parts[0])
}

// updateMemberPermission upserts one (member, app) grant. The response
// always carries a structured result so callers can distinguish a
// rejected write from a transport failure.
func (a *API) updateMemberPermission(w http.ResponseWriter, r *http.Request, memberID string) {
	var req updateMemberPermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeUpdateFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	app, err := permission.ParseApp(req.App)
	if err != nil {
		writeUpdateFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	level, err := permission.ParseLevel(req.Permission)
	if err != nil {
		writeUpdateFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	// Authorize the caller before touching the member directory, so an
	// unauthorized caller cannot learn which member ids exist.
	wctx, err := a.resolver.Resolve(r.Context())
	if err != nil {
		writeUpdateFailure(w, http.StatusBadGateway, "workspace resolution failed")
		return
	}
	if wctx == nil {
		writeUpdateFailure(w, http.StatusUnauthorized, "no active session")
		return
	}
	if wctx.OrganizationID == nil || wctx.Role == nil || !wctx.Role.CanManageMembers() {
		writeUpdateFailure(w, http.StatusForbidden, "admin access required")
		return
	}

	target, err := a.directory.FindMember(r.Context(), memberID)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			writeUpdateFailure(w, http.StatusNotFound, "member not found")
			return
		}
		writeUpdateFailure(w, http.StatusInternalServerError, "failed to load member")
		return
	}
	// Members outside the caller's organization read as absent rather
	// than forbidden, so ids cannot be confirmed across organizations.
	if target.OrganizationID != *wctx.OrganizationID {
		writeUpdateFailure(w, http.StatusNotFound, "member not found")
		return
	}

	if err := a.directory.SetMemberAppPermission(r.Context(), memberID, app, level); err != nil {
		writeUpdateFailure(w, http.StatusInternalServerError, "failed to update permission")
		return
	}

	a.audit(r.Context(), "member.permissions.update", "member", memberID, map[string]string{
		"organization_id": target.OrganizationID,
		"app":             string(app),
		"permission":      level.String(),
	})
	if a.stream != nil {
		a.stream.Publish(stream.PermissionUpdated(
			target.OrganizationID, memberID, target.UserID, string(app), level.String()))
	}
	// The grant no longer matches whatever the target user has cached.
	if a.cache != nil {
		a.cache.Invalidate(r.Context(), target.UserID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
	})
}

func canManageOrganization(wctx *workspace.Context, orgID string) bool {
	if wctx == nil || wctx.OrganizationID == nil || wctx.Role == nil {
		return false
	}
	return *wctx.OrganizationID == orgID && wctx.Role.CanManageMembers()
}

func writeUpdateFailure(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"success": false,
		"error":   msg,
	})
}
