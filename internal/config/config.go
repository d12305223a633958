package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServiceConfig holds settings for the generation service.
type ServiceConfig struct {
	ListenAddr  string            `yaml:"listen_addr"`
	Library     string            `yaml:"library"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Connections ConnectionsConfig `yaml:"connections"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Jobs        JobsConfig        `yaml:"jobs"`
	Database    DatabaseConfig    `yaml:"database"`
}

// ConnectionsConfig holds connection limiting settings.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent connections from a single IP. 0 = unlimited.
	MaxPerIP int `yaml:"max_per_ip"`

	// MaxTotal is the maximum total concurrent connections. 0 = unlimited.
	MaxTotal int `yaml:"max_total"`
}

// RateLimitConfig locks out clients that keep sending rejected requests.
type RateLimitConfig struct {
	// MaxAttempts is rejected requests allowed before lockout.
	MaxAttempts int `yaml:"max_attempts"`

	// LockoutSeconds is the initial lockout duration.
	LockoutSeconds int `yaml:"lockout_seconds"`

	// MaxLockoutSeconds caps the exponential backoff.
	MaxLockoutSeconds int `yaml:"max_lockout_seconds"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// JobsConfig limits background generation work.
type JobsConfig struct {
	// MaxConcurrent is the number of generation attempts run at once.
	MaxConcurrent int `yaml:"max_concurrent"`

	// TimeoutSeconds abandons a job that runs longer. 0 means no limit.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// DatabaseConfig selects the run history store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres"
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`

	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     int    `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresDatabase string `yaml:"postgres_database"`
	PostgresSSLMode  string `yaml:"postgres_ssl_mode"`
}

// DefaultServiceConfig returns a ServiceConfig with secure defaults.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		ListenAddr: ":8420",
		Library:    "data/rooms",
		WebSocket: WebSocketConfig{
			AllowedOrigins: []string{}, // Same-origin only by default
			MaxMessageSize: 8192,
		},
		Connections: ConnectionsConfig{
			MaxPerIP: 4,
			MaxTotal: 64,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts:       5,
			LockoutSeconds:    30,
			MaxLockoutSeconds: 300,
		},
		Jobs: JobsConfig{
			MaxConcurrent:  2,
			TimeoutSeconds: 60,
		},
		Database: DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: "data/runs.db",
		},
	}
}

// LoadServiceConfig loads service configuration from a YAML file.
// If the file doesn't exist or can't be parsed, returns default config.
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	config := DefaultServiceConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Use defaults if file doesn't exist
		}
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultServiceConfig(), err
	}

	return config, nil
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

// isSameOrigin checks if the origin matches the request host.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // Non-browser clients send no origin
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
