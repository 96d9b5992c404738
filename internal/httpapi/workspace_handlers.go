package httpapi

import (
	"net/http"
	"strings"

	"github.com/forerelic/truss/internal/auth"
	"github.com/forerelic/truss/internal/obs"
	"github.com/forerelic/truss/internal/permission"
	"github.com/forerelic/truss/internal/stream"
	"github.com/forerelic/truss/internal/workspace"
)

type switchWorkspaceRequest struct {
	OrganizationID string `json:"organization_id"`
}

// handleWorkspace serves the caller's resolved workspace context. Reads
// go through the cache when one is wired; a cache failure just means a
// fresh resolution.
func (a *API) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	if a.cache != nil {
		if wctx, hit := a.cache.Get(r.Context(), userID); hit {
			writeJSON(w, http.StatusOK, wctx)
			return
		}
	}

	wctx, degraded, ok := a.resolveCallerFresh(w, r)
	if !ok {
		return
	}
	// Never cache a fallback shape: it would keep serving all-admin
	// after the provider recovers and hide the fallback telemetry.
	if a.cache != nil && !degraded {
		a.cache.Put(r.Context(), userID, wctx)
	}
	writeJSON(w, http.StatusOK, wctx)
}

// handleWorkspaceRefresh drops any cached context and resolves fresh.
func (a *API) handleWorkspaceRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	if a.cache != nil {
		a.cache.Invalidate(r.Context(), userID)
	}

	wctx, degraded, ok := a.resolveCallerFresh(w, r)
	if !ok {
		return
	}
	if a.cache != nil && !degraded {
		a.cache.Put(r.Context(), userID, wctx)
	}
	a.audit(r.Context(), "workspace.refresh", "user", userID, nil)
	writeJSON(w, http.StatusOK, wctx)
}

// handleWorkspaceSwitch validates the target and answers with the route
// the client should navigate to. The switch itself is a navigation: the
// auth provider reports the new active organization on the next
// resolution, so no local state changes here.
func (a *API) handleWorkspaceSwitch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req switchWorkspaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	route := workspace.PersonalRoute
	orgID := strings.TrimSpace(req.OrganizationID)
	if orgID != "" {
		orgs, err := a.sessions.Organizations(r.Context())
		if err != nil {
			writeError(w, r, http.StatusBadGateway, "organization list unavailable")
			return
		}
		found := false
		for _, org := range orgs {
			if org.ID == orgID {
				found = true
				break
			}
		}
		if !found {
			writeError(w, r, http.StatusNotFound, "unknown organization")
			return
		}
		route = workspace.OrganizationRoute(orgID)
	}

	if a.cache != nil {
		a.cache.Invalidate(r.Context(), userID)
	}
	if a.stream != nil {
		a.stream.Publish(stream.WorkspaceEvent{
			Type:           stream.EventWorkspaceSwitched,
			OrganizationID: orgID,
			UserID:         userID,
		})
	}
	a.audit(r.Context(), "workspace.switch", "user", userID, map[string]string{
		"route": route,
	})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"route": route,
	})
}

// handleOrganizations lists the workspaces available to the caller.
func (a *API) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	orgs, err := a.sessions.Organizations(r.Context())
	if err != nil {
		writeError(w, r, http.StatusBadGateway, "organization list unavailable")
		return
	}
	if orgs == nil {
		orgs = []workspace.OrganizationSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": orgs,
	})
}

// handlePermissionCheck compares the caller's grant for an app against
// a required level. With an organization_id parameter the check runs
// through the database-side mirror instead of the resolved workspace.
func (a *API) handlePermissionCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()

	app, err := permission.ParseApp(q.Get("app"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	required, err := permission.ParseLevel(q.Get("permission"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if orgID := strings.TrimSpace(q.Get("organization_id")); orgID != "" {
		// An organization_id asks for the server-enforcement mirror;
		// answering from the resolved workspace instead would silently
		// change semantics.
		if a.checker == nil {
			writeError(w, r, http.StatusNotImplemented, "server-side permission checks are not configured")
			return
		}
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		allowed, err := a.checker.UserHasAppPermission(r.Context(), userID, orgID, app, required)
		if err != nil {
			writeError(w, r, http.StatusBadGateway, "permission check failed")
			return
		}
		obs.IncPermissionCheck(string(app), allowed)
		writeJSON(w, http.StatusOK, map[string]any{
			"hasAccess": allowed,
		})
		return
	}

	wctx, ok := a.resolveCaller(w, r)
	if !ok {
		return
	}
	chk := permission.CheckLevel(wctx.Permission(app), required)
	obs.IncPermissionCheck(string(app), chk.HasAccess)
	writeJSON(w, http.StatusOK, chk)
}

// resolveCaller resolves the current workspace context, writing the
// error response itself when resolution cannot produce one.
func (a *API) resolveCaller(w http.ResponseWriter, r *http.Request) (*workspace.Context, bool) {
	wctx, _, ok := a.resolveCallerFresh(w, r)
	return wctx, ok
}

// resolveCallerFresh additionally reports whether the context is a
// fail-open fallback, for callers that must not cache degraded shapes.
func (a *API) resolveCallerFresh(w http.ResponseWriter, r *http.Request) (*workspace.Context, bool, bool) {
	wctx, degraded, err := a.resolver.ResolveWithFallback(r.Context())
	if err != nil {
		writeError(w, r, http.StatusBadGateway, "workspace resolution failed")
		return nil, false, false
	}
	if wctx == nil {
		writeError(w, r, http.StatusUnauthorized, "no active session")
		return nil, false, false
	}
	return wctx, degraded, true
}
