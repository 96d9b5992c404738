package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forerelic/truss/internal/cache"
	"github.com/forerelic/truss/internal/config"
	"github.com/forerelic/truss/internal/httpapi"
	"github.com/forerelic/truss/internal/obs"
	"github.com/forerelic/truss/internal/session"
	"github.com/forerelic/truss/internal/store/pg"
	"github.com/forerelic/truss/internal/stream"
	"github.com/forerelic/truss/internal/workspace"
)

var (
	version = "0.4.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		log.Fatal("missing DSN: set TRUSS_PG_DSN")
	}
	store, err := pg.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	sessions := session.NewClient(cfg.AuthBaseURL)

	var resolverOpts []workspace.ResolverOption
	if cfg.StrictResolution {
		resolverOpts = append(resolverOpts, workspace.WithStrictResolution())
	}
	resolver := workspace.NewResolver(sessions, store, resolverOpts...)

	apiOpts := []httpapi.Option{
		httpapi.WithChecker(store),
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec),
	}
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		ws, err := cache.New(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		cancel()
		if err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		defer ws.Close()
		apiOpts = append(apiOpts, httpapi.WithCache(ws))
	}

	api := httpapi.New(
		httpapi.ReadyProbe{DB: store.DB()},
		version,
		resolver,
		sessions,
		store,
		stream.New(),
		apiOpts...,
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: the events endpoint holds connections open.
	}

	log.Printf("Starting truss-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
