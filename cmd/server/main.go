package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tphummel/pcbuild/internal/builds"
	"github.com/tphummel/pcbuild/internal/catalog"
	"github.com/tphummel/pcbuild/internal/db"
	"github.com/tphummel/pcbuild/internal/handlers"
	"github.com/tphummel/pcbuild/internal/metrics"
	"github.com/tphummel/pcbuild/internal/middleware"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

type config struct {
	token       string
	dbPath      string
	port        string
	seedCatalog bool
	logLevel    slog.Level
}

// loadConfig reads service configuration from environment variables and
// applies defaults. It returns an error when a required variable is absent
// or a value cannot be parsed.
func loadConfig() (config, error) {
	cfg := config{
		token:       os.Getenv("API_TOKEN"),
		dbPath:      os.Getenv("DB_PATH"),
		port:        os.Getenv("PORT"),
		seedCatalog: true,
		logLevel:    slog.LevelInfo,
	}
	if cfg.token == "" {
		return cfg, fmt.Errorf("API_TOKEN environment variable is required")
	}
	if cfg.dbPath == "" {
		cfg.dbPath = "./pcbuild.db"
	}
	if cfg.port == "" {
		cfg.port = "8080"
	}
	if v := os.Getenv("SEED_CATALOG"); v != "" {
		seed, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("SEED_CATALOG: %w", err)
		}
		cfg.seedCatalog = seed
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := cfg.logLevel.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	return cfg, nil
}

// newMux registers every route. Each API route is wrapped with the metrics
// middleware under its own pattern.
func newMux(h *handlers.Handler, token string) *http.ServeMux {
	mux := http.NewServeMux()
	route := func(pattern string, next http.Handler) {
		mux.Handle(pattern, metrics.Middleware(pattern, next))
	}

	// Health check: no auth
	mux.HandleFunc("GET /healthz", h.Health)

	// Prometheus metrics: no auth
	mux.Handle("GET /metrics", metrics.Handler())

	// API docs: no auth
	mux.HandleFunc("GET /openapi.yaml", handlers.OpenAPISpec(h.Version))
	mux.HandleFunc("GET /docs", handlers.Docs)

	// Catalog and compatibility: no auth
	route("GET /api/v1/components/categories", http.HandlerFunc(h.Categories))
	route("GET /api/v1/components", http.HandlerFunc(h.ListComponents))
	route("GET /api/v1/components/{id}", http.HandlerFunc(h.GetComponent))
	route("POST /api/v1/compatibility/check", http.HandlerFunc(h.CheckCompatibility))

	// Builds: reads widen with a token, writes require one
	route("GET /api/v1/builds", http.HandlerFunc(h.ListBuilds))
	route("GET /api/v1/builds/{id}", http.HandlerFunc(h.GetBuild))
	route("POST /api/v1/builds", middleware.Auth(token, http.HandlerFunc(h.CreateBuild)))
	route("DELETE /api/v1/builds/{id}", middleware.Auth(token, http.HandlerFunc(h.DeleteBuild)))

	return mux
}

func seedCatalog(ctx context.Context, database *db.DB) error {
	seed, err := catalog.Default()
	if err != nil {
		return err
	}
	if err := database.Seed(ctx, seed.Categories, seed.Components); err != nil {
		return err
	}
	slog.Info("catalog seeded", "categories", len(seed.Categories), "components", len(seed.Components))
	return nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel})))

	database, err := db.New(cfg.dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	if cfg.seedCatalog {
		if err := seedCatalog(context.Background(), database); err != nil {
			log.Fatalf("failed to seed catalog: %v", err)
		}
	}

	metrics.Register(database)

	h := &handlers.Handler{
		Catalog: database,
		Builds: &builds.Service{
			Catalog: database,
			Store:   database,
			Observe: metrics.ObserveReport,
		},
		Token:   cfg.token,
		Version: version,
		Commit:  commit,
	}

	skip := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}
	handler := middleware.RequestLogger(slog.Default(), skip, newMux(h, cfg.token))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("listening", "addr", srv.Addr, "version", version, "commit", commit)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}
	slog.Info("server stopped")
}
