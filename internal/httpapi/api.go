package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/forerelic/truss/internal/audit"
	"github.com/forerelic/truss/internal/obs"
	"github.com/forerelic/truss/internal/permission"
	"github.com/forerelic/truss/internal/stream"
	"github.com/forerelic/truss/internal/workspace"
)

// ReadyProbe checks backing dependencies before the service reports
// itself ready.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Directory is the membership read/write surface the API serves:
// per-member permission grants plus member listings.
type Directory interface {
	workspace.PermissionStore
	workspace.MembersQuery
}

// PermissionChecker mirrors the database-side permission function so
// callers can verify access the same way server-side enforcement does.
type PermissionChecker interface {
	UserHasAppPermission(ctx context.Context, userID, organizationID string, app permission.App, required permission.Level) (bool, error)
}

// WorkspaceCache is the optional resolved-context cache. All methods
// are best-effort; the API never fails a request on cache errors.
type WorkspaceCache interface {
	Get(ctx context.Context, userID string) (*workspace.Context, bool)
	Put(ctx context.Context, userID string, wctx *workspace.Context)
	Invalidate(ctx context.Context, userID string)
}

// API is the HTTP layer over workspace resolution and permission
// management.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	sessions  workspace.SessionProvider
	resolver  *workspace.Resolver
	directory Directory
	checker   PermissionChecker
	cache     WorkspaceCache
	stream    *stream.Stream

	rateBurst  int
	ratePerSec int
}

// Option configures optional API collaborators.
type Option func(*API)

// WithCache wires the resolved-workspace cache.
func WithCache(c WorkspaceCache) Option {
	return func(a *API) { a.cache = c }
}

// WithChecker wires the server-side permission check mirror.
func WithChecker(c PermissionChecker) Option {
	return func(a *API) { a.checker = c }
}

// WithRateLimit overrides the default per-IP token bucket.
func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		a.rateBurst = burst
		a.ratePerSec = perSecond
	}
}

func New(rp ReadyProbe, version string, resolver *workspace.Resolver, sessions workspace.SessionProvider, dir Directory, st *stream.Stream, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		sessions:   sessions,
		resolver:   resolver,
		directory:  dir,
		stream:     st,
		rateBurst:  20,
		ratePerSec: 10,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/workspace", a.handleWorkspace)
	a.mux.HandleFunc("/v1/workspace/refresh", a.handleWorkspaceRefresh)
	a.mux.HandleFunc("/v1/workspace/switch", a.handleWorkspaceSwitch)
	a.mux.HandleFunc("/v1/workspace/events", a.Stream)

	a.mux.HandleFunc("/v1/organizations", a.handleOrganizations)
	a.mux.HandleFunc("/v1/organizations/", a.handleOrganizationScoped)
	a.mux.HandleFunc("/v1/members/", a.handleMemberResource)
	a.mux.HandleFunc("/v1/permissions/check", a.handlePermissionCheck)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) audit(ctx context.Context, event, resourceType, resourceID string, meta map[string]string) {
	fields := map[string]any{
		"resource_type": resourceType,
		"resource_id":   resourceID,
	}
	for k, v := range meta {
		fields[k] = v
	}
	_ = audit.LogEvent(ctx, event, fields)
}
