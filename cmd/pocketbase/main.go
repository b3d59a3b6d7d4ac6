package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"

	"github.com/dujjonku-map/server/cmd/pocketbase/hooks"
	_ "github.com/dujjonku-map/server/cmd/pocketbase/migrations"
	"github.com/dujjonku-map/server/cmd/pocketbase/pbstore"
	"github.com/dujjonku-map/server/src/server/ads"
	"github.com/dujjonku-map/server/src/server/config"
	"github.com/dujjonku-map/server/src/server/handlers"
	"github.com/dujjonku-map/server/src/server/maps"
	"github.com/dujjonku-map/server/src/server/session"
	"github.com/dujjonku-map/server/src/server/snapshot"
	"github.com/dujjonku-map/server/src/server/static"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	app := pocketbase.New()

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Dir:         "cmd/pocketbase/migrations",
		Automigrate: true,
	})

	hooks.Register(app)

	var (
		registry *session.Registry
		loader   *snapshot.Loader
	)
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		history := pbstore.New(app)
		loader = snapshot.NewLoader(cfg.DataURL, snapshot.NewArchiver(history, nil))
		registry = newRegistry(cfg, app, loader)
		registerRoutes(se, registry, history)
		return se.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		if registry != nil {
			registry.Close()
			loader.Wait()
		}
		return e.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

// newRegistry wires the session stack around a loader that archives into PocketBase.
func newRegistry(cfg *config.Config, app core.App, loader *snapshot.Loader) *session.Registry {
	var adProvider ads.Provider = ads.Disabled{}
	if cfg.AdGatewayURL != "" {
		adProvider = ads.NewHTTPProvider(cfg.AdGatewayURL)
	}

	registry := session.NewRegistry(session.RegistryConfig{
		Session: session.Config{
			RevealDelay:       cfg.RevealDelay,
			ListAdDelay:       cfg.ListAdDelay,
			RefreshInterval:   cfg.RefreshInterval,
			AdPreloadInterval: cfg.AdPreloadInterval,
			NearbyLimit:       cfg.NearbyLimit,
		},
		TTL:        cfg.SessionTTL,
		Loader:     loader,
		Maps:       maps.NewChecker(cfg.NaverClientID, cfg.MapScriptURL),
		AdProvider: adProvider,
		AdGroupID:  cfg.AdGroupID,
	})

	app.Cron().MustAdd("reapSessions", "*/5 * * * *", func() {
		registry.Reap()
	})
	return registry
}

// registerRoutes exposes the same session API as the standalone server.
// PocketBase keeps /api/ and /_/ for itself; everything else is ours.
func registerRoutes(se *core.ServeEvent, registry *session.Registry, history *pbstore.Store) {
	api := chi.NewRouter()
	sessions := &handlers.SessionHandler{Registry: registry}
	api.Route("/sessions", sessions.Routes)
	api.Get("/deeplink", handlers.DeepLink)
	api.Handle("/stores.json", &handlers.StoresFile{FS: static.Files})

	serve := func(e *core.RequestEvent) error {
		api.ServeHTTP(e.Response, e.Request)
		return nil
	}
	se.Router.Any("/sessions", serve)
	se.Router.Any("/sessions/{path...}", serve)
	se.Router.GET("/deeplink", serve)
	se.Router.GET("/stores.json", serve)

	health := &handlers.HealthHandler{Store: history, Sessions: registry}
	se.Router.GET("/health", func(e *core.RequestEvent) error {
		health.Check(e.Response, e.Request)
		return nil
	})

	se.Router.POST("/admin/refresh", func(e *core.RequestEvent) error {
		n := registry.RefreshAll(e.Request.Context())
		return e.JSON(http.StatusOK, map[string]any{"status": "refreshed", "sessions": n})
	}).Bind(apis.RequireSuperuserAuth())
}
