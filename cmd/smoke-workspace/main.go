package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/forerelic/truss/internal/auth"
	"github.com/forerelic/truss/internal/permission"
	"github.com/forerelic/truss/internal/session"
	"github.com/forerelic/truss/internal/store/pg"
	"github.com/forerelic/truss/internal/workspace"
)

// Smoke test against a running auth provider and database: resolves the
// workspace for a real session token and walks the manager lifecycle.
func main() {
	baseURL := os.Getenv("TRUSS_AUTH_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3000/api/auth"
	}
	token := os.Getenv("TRUSS_AUTH_TOKEN")
	if token == "" {
		log.Fatal("missing session token: set TRUSS_AUTH_TOKEN")
	}
	dsn := os.Getenv("TRUSS_PG_DSN")
	if dsn == "" {
		log.Fatal("missing DSN: set TRUSS_PG_DSN")
	}

	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	sessions := session.NewClient(baseURL)
	resolver := workspace.NewResolver(sessions, store)
	nav := workspace.NavigatorFunc(func(_ context.Context, route string) error {
		log.Printf("navigate -> %s", route)
		return nil
	})
	mgr := workspace.NewManager(resolver, sessions, nav)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ctx = auth.ContextWithToken(ctx, token)

	if err := mgr.Refresh(ctx); err != nil {
		log.Fatalf("refresh: %v", err)
	}
	if mgr.State() != workspace.StateResolved {
		log.Fatalf("expected resolved state, got %s", mgr.State())
	}

	wctx := mgr.Workspace()
	if wctx.Personal() {
		log.Printf("workspace: personal")
	} else {
		log.Printf("workspace: organization %s (%s)", *wctx.OrganizationID, *wctx.Role)
	}
	for _, app := range permission.Apps() {
		access := mgr.AppAccess(app)
		log.Printf("  %s: %s (view=%t edit=%t admin=%t)",
			app, access.Permission, access.CanView, access.CanEdit, access.CanAdmin)
	}

	orgs, err := mgr.Organizations(ctx)
	if err != nil {
		log.Fatalf("list organizations: %v", err)
	}
	log.Printf("available workspaces: %d", len(orgs))

	if err := mgr.SwitchToPersonal(ctx); err != nil {
		log.Fatalf("switch to personal: %v", err)
	}
	if len(orgs) > 0 {
		if err := mgr.SwitchToOrganization(ctx, orgs[0].ID); err != nil {
			log.Fatalf("switch to organization: %v", err)
		}
	}

	fmt.Println("✅ workspace smoke test passed")
}
