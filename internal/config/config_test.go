package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if len(cfg.WebSocket.AllowedOrigins) != 0 {
		t.Errorf("expected empty allowed origins by default, got %v", cfg.WebSocket.AllowedOrigins)
	}

	if cfg.WebSocket.MaxMessageSize != 4096 {
		t.Errorf("expected max message size 4096, got %d", cfg.WebSocket.MaxMessageSize)
	}

	if cfg.Filter.FilterOptions != DefaultFilterOptions() {
		t.Errorf("expected default filter options, got %+v", cfg.Filter.FilterOptions)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadConfig_FileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")

	if err != nil {
		t.Errorf("expected no error for missing file, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected default config for missing file, got nil")
	}

	if cfg.HTTP.Address != ":8080" {
		t.Errorf("expected default address :8080, got %s", cfg.HTTP.Address)
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "server.yaml")

	content := `
http:
  address: "127.0.0.1:9000"
  read_timeout: 5s
websocket:
  allowed_origins:
    - "https://example.com"
    - "http://localhost:3000"
  max_message_size: 8192
filter:
  allow_live_filtering: true
  disable_prefilter_check: true
  random_seed: 42
world:
  seed: 7
  tile_count: 1200
  coverage: 0.5
database:
  driver: postgres
  postgres:
    host: db.internal
    database: tiles
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Address != "127.0.0.1:9000" || cfg.HTTP.ReadTimeout != 5*time.Second {
		t.Errorf("http = %+v", cfg.HTTP)
	}

	if len(cfg.WebSocket.AllowedOrigins) != 2 {
		t.Errorf("expected 2 allowed origins, got %d", len(cfg.WebSocket.AllowedOrigins))
	}

	if cfg.WebSocket.MaxMessageSize != 8192 {
		t.Errorf("expected max message size 8192, got %d", cfg.WebSocket.MaxMessageSize)
	}

	if !cfg.Filter.AllowLiveFiltering || !cfg.Filter.DisablePreFilterCheck || cfg.Filter.RandomSeed != 42 {
		t.Errorf("filter = %+v", cfg.Filter)
	}

	if cfg.World.TileCount != 1200 || cfg.World.Coverage != 0.5 {
		t.Errorf("world = %+v", cfg.World)
	}

	// Unset postgres fields keep their defaults
	if cfg.Database.Postgres.Host != "db.internal" || cfg.Database.Postgres.Port != 5432 {
		t.Errorf("postgres = %+v", cfg.Database.Postgres)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "http: [\n"},
		{"driver", "database:\n  driver: mysql\n"},
		{"coverage", "world:\n  coverage: 2\n"},
		{"sqlite path", "database:\n  driver: sqlite\n  sqlite_path: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "server.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := LoadConfig(path)
			if err == nil {
				t.Error("expected an error")
			}
			if cfg == nil || cfg.HTTP.Address != ":8080" {
				t.Error("expected defaults alongside the error")
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "h", Port: 1, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	dsn := p.DSN()
	for _, part := range []string{"host=h", "port=1", "user=u", "dbname=d", "sslmode=disable"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN() = %q, missing %q", dsn, part)
		}
	}
}

func TestDatabaseEnabled(t *testing.T) {
	tests := []struct {
		driver string
		want   bool
	}{
		{"sqlite", true},
		{"postgres", true},
		{"", false},
	}
	for _, tt := range tests {
		db := DatabaseConfig{Driver: tt.driver}
		if got := db.Enabled(); got != tt.want {
			t.Errorf("Enabled() with driver %q = %v, want %v", tt.driver, got, tt.want)
		}
	}
}

func TestIsOriginAllowed_EmptyList_SameOrigin(t *testing.T) {
	cfg := WebSocketConfig{
		AllowedOrigins: []string{},
	}

	// Same origin (no Origin header)
	if !cfg.IsOriginAllowed("", "localhost:4000") {
		t.Error("expected empty origin to be allowed (same-origin)")
	}

	// Same origin (matching host)
	if !cfg.IsOriginAllowed("http://localhost:4000", "localhost:4000") {
		t.Error("expected matching origin to be allowed (same-origin)")
	}

	// Different origin should be rejected
	if cfg.IsOriginAllowed("http://evil.com", "localhost:4000") {
		t.Error("expected different origin to be rejected (same-origin policy)")
	}
}

func TestIsOriginAllowed_Lists(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"wildcard", []string{"*"}, "http://anything.com", true},
		{"wildcard empty origin", []string{"*"}, "", true},
		{"exact", []string{"https://example.com", "http://localhost:3000"}, "http://localhost:3000", true},
		{"no match", []string{"https://example.com"}, "http://evil.com", false},
		{"partial", []string{"https://example.com"}, "https://example.com:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := WebSocketConfig{AllowedOrigins: tt.allowed}
			if got := cfg.IsOriginAllowed(tt.origin, "localhost:4000"); got != tt.want {
				t.Errorf("IsOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestIsSameOrigin(t *testing.T) {
	tests := []struct {
		origin      string
		requestHost string
		expected    bool
	}{
		{"", "localhost:4000", true},                       // No origin header
		{"http://localhost:4000", "localhost:4000", true},  // HTTP match
		{"https://localhost:4000", "localhost:4000", true}, // HTTPS match
		{"http://localhost:4000/", "localhost:4000", true}, // Trailing slash
		{"http://example.com", "localhost:4000", false},    // Different host
		{"http://localhost:3000", "localhost:4000", false}, // Different port
		{"ws://localhost:4000", "localhost:4000", true},    // WebSocket scheme
	}

	for _, tt := range tests {
		result := isSameOrigin(tt.origin, tt.requestHost)
		if result != tt.expected {
			t.Errorf("isSameOrigin(%q, %q) = %v, want %v",
				tt.origin, tt.requestHost, result, tt.expected)
		}
	}
}

func TestOptionsSetNotifiesOnChange(t *testing.T) {
	opts := NewOptions(DefaultFilterOptions())

	type change struct {
		key   OptionKey
		value bool
	}
	var changes []change
	unsubscribe := opts.Subscribe(func(key OptionKey, value bool) {
		changes = append(changes, change{key, value})
	})

	if err := opts.Set(AllowImpassableHilliness, true); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	// Same value again is not a change
	if err := opts.Set(AllowImpassableHilliness, true); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	if len(changes) != 1 || changes[0] != (change{AllowImpassableHilliness, true}) {
		t.Errorf("changes = %v, want one change", changes)
	}
	if !opts.Values().AllowImpassableHilliness {
		t.Error("Values() did not reflect Set()")
	}

	unsubscribe()
	opts.Set(AllowLiveFiltering, true)
	if len(changes) != 1 {
		t.Errorf("listener called after unsubscribe: %v", changes)
	}
}

func TestOptionsUnknownKey(t *testing.T) {
	opts := NewOptions(DefaultFilterOptions())
	if err := opts.Set("fast_mode", true); err == nil {
		t.Error("Set() with unknown key should fail")
	}
	if _, err := opts.Values().Get("fast_mode"); err == nil {
		t.Error("Get() with unknown key should fail")
	}
}

func TestOptionKeysResolve(t *testing.T) {
	values := FilterOptions{}
	for _, key := range OptionKeys {
		if _, err := values.Get(key); err != nil {
			t.Errorf("Get(%s) error: %v", key, err)
		}
	}
}
