package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/tphummel/pcbuild/internal/builds"
	"github.com/tphummel/pcbuild/internal/db"
	"github.com/tphummel/pcbuild/internal/handlers"
)

// helper that clears the config env vars and restores them after the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	vars := []string{"API_TOKEN", "DB_PATH", "PORT", "SEED_CATALOG", "LOG_LEVEL"}
	saved := make(map[string]string, len(vars))
	for _, v := range vars {
		saved[v] = os.Getenv(v)
		os.Unsetenv(v)
	}
	t.Cleanup(func() {
		for k, val := range saved {
			if val == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, val)
			}
		}
	})
}

func TestLoadConfig_MissingToken(t *testing.T) {
	clearConfigEnv(t)

	_, err := loadConfig()
	if err == nil {
		t.Fatal("expected error when API_TOKEN is unset, got nil")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)
	os.Setenv("API_TOKEN", "my-token")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.dbPath != "./pcbuild.db" {
		t.Errorf("DB_PATH default: got %q, want ./pcbuild.db", cfg.dbPath)
	}
	if cfg.port != "8080" {
		t.Errorf("PORT default: got %q, want 8080", cfg.port)
	}
	if !cfg.seedCatalog {
		t.Error("SEED_CATALOG default: got false, want true")
	}
	if cfg.logLevel != slog.LevelInfo {
		t.Errorf("LOG_LEVEL default: got %v, want INFO", cfg.logLevel)
	}
}

func TestLoadConfig_CustomValues(t *testing.T) {
	clearConfigEnv(t)
	os.Setenv("API_TOKEN", "secret")
	os.Setenv("DB_PATH", "/data/pcbuild.db")
	os.Setenv("PORT", "9090")
	os.Setenv("SEED_CATALOG", "false")
	os.Setenv("LOG_LEVEL", "debug")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.token != "secret" {
		t.Errorf("token: got %q, want secret", cfg.token)
	}
	if cfg.dbPath != "/data/pcbuild.db" {
		t.Errorf("dbPath: got %q, want /data/pcbuild.db", cfg.dbPath)
	}
	if cfg.port != "9090" {
		t.Errorf("port: got %q, want 9090", cfg.port)
	}
	if cfg.seedCatalog {
		t.Error("seedCatalog: got true, want false")
	}
	if cfg.logLevel != slog.LevelDebug {
		t.Errorf("logLevel: got %v, want DEBUG", cfg.logLevel)
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"seed flag", "SEED_CATALOG", "sometimes"},
		{"log level", "LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			os.Setenv("API_TOKEN", "secret")
			os.Setenv(tt.key, tt.value)
			if _, err := loadConfig(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestNewMux_Routes(t *testing.T) {
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := seedCatalog(context.Background(), database); err != nil {
		t.Fatalf("seedCatalog: %v", err)
	}

	h := &handlers.Handler{
		Catalog: database,
		Builds:  &builds.Service{Catalog: database, Store: database},
		Token:   "secret",
	}
	mux := newMux(h, "secret")

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/openapi.yaml", http.StatusOK},
		{http.MethodGet, "/docs", http.StatusOK},
		{http.MethodGet, "/api/v1/components/categories", http.StatusOK},
		{http.MethodGet, "/api/v1/components", http.StatusOK},
		{http.MethodGet, "/api/v1/components/missing", http.StatusNotFound},
		{http.MethodGet, "/api/v1/builds", http.StatusOK},
		{http.MethodPost, "/api/v1/builds", http.StatusUnauthorized},
		{http.MethodDelete, "/api/v1/builds/missing", http.StatusUnauthorized},
		{http.MethodPut, "/api/v1/builds/missing", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}
