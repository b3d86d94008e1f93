// Package config provides unified configuration for the einlass server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (EINLASS_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the einlass server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       StorageConfig       `yaml:"storage"`
	Throttle      ThrottleConfig      `yaml:"throttle"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 60s
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Chain is the ordered list of strategy identifiers forming the
	// process-wide default chain. Recognized identifiers: "basic",
	// "token", "session", "remote", "jwt". Order is significant: the
	// first strategy's challenge decides 401 vs 403 on denial.
	Chain []string `yaml:"chain"`

	// Endpoints overrides the chain for individual paths.
	Endpoints []EndpointConfig `yaml:"endpoints"`

	// Anonymous configures the credential used when no strategy
	// resolves and none fails.
	Anonymous AnonymousConfig `yaml:"anonymous"`

	// Realm qualifies the Basic and Bearer challenges. Default: "api".
	Realm string `yaml:"realm"`

	// TokenKeyword is the scheme token of the opaque-token strategy.
	// Default: "Token".
	TokenKeyword string `yaml:"token_keyword"`

	// RemoteHeader is the trusted gateway header for the remote
	// strategy. Default: "X-Remote-User".
	RemoteHeader string `yaml:"remote_header"`

	// Session holds session-strategy settings.
	Session SessionConfig `yaml:"session"`

	// JWT holds jwt-strategy settings.
	JWT JWTConfig `yaml:"jwt"`

	// Users seeds the in-memory user store (ignored for postgres).
	Users []UserConfig `yaml:"users"`

	// Tokens seeds the in-memory token store (ignored for postgres).
	Tokens []TokenConfig `yaml:"tokens"`
}

// EndpointConfig overrides the strategy chain for one path.
type EndpointConfig struct {
	Path  string   `yaml:"path"`
	Chain []string `yaml:"chain"`
}

// AnonymousConfig configures the anonymous credential.
type AnonymousConfig struct {
	Principal string            `yaml:"principal"` // default: "anonymous"
	Context   map[string]string `yaml:"context"`   // optional auth-context
}

// SessionConfig holds session cookie settings.
type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"` // default: "sessionid"
	TTL        time.Duration `yaml:"ttl"`         // default: 336h (14 days)
}

// JWTConfig holds JWT strategy settings.
type JWTConfig struct {
	Issuer      string        `yaml:"issuer"`
	Audience    string        `yaml:"audience"`
	JWKSURL     string        `yaml:"jwks_url"`
	UserClaim   string        `yaml:"user_claim"`   // default: "sub"
	ScopesClaim string        `yaml:"scopes_claim"` // default: "scope"
	CacheTTL    time.Duration `yaml:"cache_ttl"`    // default: 1h
}

// UserConfig describes a seeded user entry.
type UserConfig struct {
	Username         string            `yaml:"username"`
	PasswordHash     string            `yaml:"password_hash"`
	PasswordHashFile string            `yaml:"password_hash_file"` // _file variant for password_hash
	Scopes           []string          `yaml:"scopes"`
	Metadata         map[string]string `yaml:"metadata"`
}

// TokenConfig describes a seeded token entry.
type TokenConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"` // _file variant for key
	Subject string `yaml:"subject"`
}

// StorageConfig holds credential/token store settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// ThrottleConfig holds rate limiting settings.
type ThrottleConfig struct {
	Enabled    bool           `yaml:"enabled"`     // default: false
	DefaultRPM int            `yaml:"default_rpm"` // default: 120
	Tiers      map[string]int `yaml:"tiers"`       // tier -> requests per minute
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Auth: AuthConfig{
			Chain:        []string{"session", "basic"},
			Anonymous:    AnonymousConfig{Principal: "anonymous"},
			Realm:        "api",
			TokenKeyword: "Token",
			RemoteHeader: "X-Remote-User",
			Session: SessionConfig{
				CookieName: "sessionid",
				TTL:        14 * 24 * time.Hour,
			},
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Throttle: ThrottleConfig{
			DefaultRPM: 120,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
