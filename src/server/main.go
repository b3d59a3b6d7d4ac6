package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dujjonku-map/server/src/server/ads"
	"github.com/dujjonku-map/server/src/server/config"
	"github.com/dujjonku-map/server/src/server/forge"
	"github.com/dujjonku-map/server/src/server/handlers"
	"github.com/dujjonku-map/server/src/server/logging"
	"github.com/dujjonku-map/server/src/server/maps"
	"github.com/dujjonku-map/server/src/server/middleware"
	"github.com/dujjonku-map/server/src/server/session"
	"github.com/dujjonku-map/server/src/server/snapshot"
	"github.com/dujjonku-map/server/src/server/static"
	"github.com/dujjonku-map/server/src/server/storage"
	"github.com/dujjonku-map/server/src/server/store"
	"github.com/dujjonku-map/server/src/server/store/postgres"
	"github.com/dujjonku-map/server/src/server/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel)

	st, closeStore, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to open snapshot store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	objects, err := openStorage(cfg)
	if err != nil {
		slog.Error("Failed to open archive storage", "error", err)
		os.Exit(1)
	}

	var adProvider ads.Provider = ads.Disabled{}
	if cfg.AdGatewayURL != "" {
		adProvider = ads.NewHTTPProvider(cfg.AdGatewayURL)
	}

	loader := snapshot.NewLoader(cfg.DataURL, snapshot.NewArchiver(st, objects))
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go registry.Run(ctx)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.Requests)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	health := &handlers.HealthHandler{Store: st, Storage: objects, Sessions: registry}
	r.Get("/health", health.Check)
	r.Handle("/stores.json", &handlers.StoresFile{FS: static.Files})
	r.Get("/deeplink", handlers.DeepLink)

	sessions := &handlers.SessionHandler{Registry: registry}
	r.Route("/sessions", sessions.Routes)

	if cfg.WebhookSecret != "" {
		fg, err := forge.New(cfg.WebhookForge, cfg.Project(), cfg.WebhookSecret)
		if err != nil {
			slog.Error("Invalid webhook forge", "error", err)
			os.Exit(1)
		}
		webhook := &handlers.WebhookHandler{Forge: fg, Sessions: registry, Branch: cfg.PagesBranch}
		r.Post("/webhooks/git", webhook.Handle)
		slog.Info("Webhook enabled", "forge", fg.Name(), "repo", fg.RepoURL(), "branch", cfg.PagesBranch)
	}

	admin := &handlers.AdminHandler{Store: st, Storage: objects, Sessions: registry}
	r.Route("/admin", func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(middleware.RequireAuth(middleware.AuthConfig{
				Issuer:   cfg.AuthIssuer,
				Audience: cfg.AuthAudience,
			}))
		} else {
			slog.Warn("Admin routes are unauthenticated; set AUTH_ENABLED=true to protect them")
		}
		admin.Routes(r)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "port", cfg.Port, "data_url", cfg.DataURL, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	slog.Info("Shutting down", "signal", sig.String())

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	cancel()
	registry.Close()
	loader.Wait()
	slog.Info("Server stopped")
}

func openStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(); err != nil {
			pg.Close()
			return nil, nil, err
		}
		slog.Info("Using PostgreSQL snapshot store")
		return pg, func() { pg.Close() }, nil
	case "sqlite":
		sq, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		if err := sq.Migrate(); err != nil {
			sq.Close()
			return nil, nil, err
		}
		slog.Info("Using SQLite snapshot store", "path", cfg.DatabasePath)
		return sq, func() { sq.Close() }, nil
	default:
		slog.Info("Using in-memory snapshot store")
		return store.NewMemoryStore(), func() {}, nil
	}
}

// openStorage returns nil when raw snapshots are not archived.
func openStorage(cfg *config.Config) (storage.ObjectStorage, error) {
	switch {
	case cfg.S3Endpoint != "":
		s3, err := storage.NewS3(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("Archiving snapshots to S3", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
		return s3, nil
	case cfg.ArchiveDir != "":
		local, err := storage.NewLocal(cfg.ArchiveDir, "/archive")
		if err != nil {
			return nil, err
		}
		slog.Info("Archiving snapshots locally", "dir", cfg.ArchiveDir)
		return local, nil
	default:
		return nil, nil
	}
}
