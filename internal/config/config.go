package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the daemon configuration settings.
type ServerConfig struct {
	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Filter    FilterConfig    `yaml:"filter"`
	World     WorldConfig     `yaml:"world"`
	Database  DatabaseConfig  `yaml:"database"`
}

// HTTPConfig holds HTTP API settings.
type HTTPConfig struct {
	// Address is the listen address, e.g. ":8080".
	Address string `yaml:"address"`

	// ReadTimeout and WriteTimeout bound a single request.
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is how long in-flight requests get on shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`

	// MaxPerIP and MaxTotal cap concurrent WebSocket clients. 0 means unlimited.
	MaxPerIP int `yaml:"max_per_ip"`
	MaxTotal int `yaml:"max_total"`
}

// FilterConfig holds the startup filter options.
type FilterConfig struct {
	FilterOptions `yaml:",inline"`

	// RandomSeed seeds random tile selection; 0 seeds from the clock.
	RandomSeed int64 `yaml:"random_seed"`

	// TemperatureUnit is the default unit of constraint documents.
	TemperatureUnit string `yaml:"temperature_unit"`
}

// WorldConfig selects the world the daemon starts with.
type WorldConfig struct {
	// Path is a world YAML file. Empty means generate one.
	Path string `yaml:"path"`

	// Fingerprint loads a world previously saved to the database.
	Fingerprint string `yaml:"fingerprint"`

	// Generation parameters used when neither Path nor Fingerprint is set.
	Seed      int64   `yaml:"seed"`
	TileCount int     `yaml:"tile_count"`
	Coverage  float64 `yaml:"coverage"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Driver specifies which database to use: "sqlite", "postgres" or "" for none.
	Driver string `yaml:"driver"`

	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `yaml:"sqlite_path"`

	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific configuration.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Enabled reports whether a database driver is configured
func (d DatabaseConfig) Enabled() bool {
	return d.Driver != ""
}

// DSN returns the lib/pq connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// DefaultConfig returns a ServerConfig with defaults suitable for local use.
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		HTTP: HTTPConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second, // immediate filter runs happen inside the request
			ShutdownTimeout: 10 * time.Second,
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: []string{}, // Same-origin only by default
			MaxMessageSize: 4096,
			MaxPerIP:       5,
			MaxTotal:       100,
		},
		Filter: FilterConfig{
			FilterOptions:   DefaultFilterOptions(),
			TemperatureUnit: "celsius",
		},
		World: WorldConfig{
			Seed:      1,
			TileCount: 5000,
			Coverage:  0.3,
		},
		Database: DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: "data/tilefilter.db",
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				SSLMode:         "disable",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
	}
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, returns default config.
func LoadConfig(path string) (*ServerConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Use defaults if file doesn't exist
		}
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return DefaultConfig(), err
	}

	return config, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *ServerConfig) Validate() error {
	switch c.Database.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "sqlite" && c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required for the sqlite driver")
	}
	if c.World.Coverage < 0 || c.World.Coverage > 1 {
		return fmt.Errorf("world.coverage %.2f is outside [0, 1]", c.World.Coverage)
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("websocket.max_message_size must be positive")
	}
	if c.WebSocket.MaxPerIP < 0 || c.WebSocket.MaxTotal < 0 {
		return fmt.Errorf("websocket connection limits must not be negative")
	}
	return nil
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host (same-origin policy).
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // No origin header means same-origin (e.g., non-browser client)
	}

	// "http://localhost:3000" -> "localhost:3000"
	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
