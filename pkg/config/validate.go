package config

import (
	"errors"
	"fmt"
)

// knownStrategies lists the recognized chain identifiers.
var knownStrategies = map[string]bool{
	"basic":   true,
	"token":   true,
	"session": true,
	"remote":  true,
	"jwt":     true,
}

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// auth.chain identifiers must be recognized.
	errs = append(errs, validateChain("auth.chain", c.Auth.Chain)...)
	for i, ep := range c.Auth.Endpoints {
		if ep.Path == "" {
			errs = append(errs, fmt.Errorf("auth.endpoints[%d].path is required", i))
		}
		errs = append(errs, validateChain(fmt.Sprintf("auth.endpoints[%d].chain", i), ep.Chain)...)
	}

	// auth.anonymous.principal must be non-empty.
	if c.Auth.Anonymous.Principal == "" {
		errs = append(errs, fmt.Errorf("auth.anonymous.principal must be non-empty"))
	}

	// jwt in any chain requires a JWKS URL.
	if c.usesStrategy("jwt") && c.Auth.JWT.JWKSURL == "" {
		errs = append(errs, fmt.Errorf("auth.jwt.jwks_url is required when \"jwt\" is in a chain"))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	// Seeded users need a username and a hash.
	for i, u := range c.Auth.Users {
		if u.Username == "" {
			errs = append(errs, fmt.Errorf("auth.users[%d].username is required", i))
		}
		if u.PasswordHash == "" && u.PasswordHashFile == "" {
			errs = append(errs, fmt.Errorf("auth.users[%d].password_hash or password_hash_file is required", i))
		}
	}

	// Seeded tokens need a key and an owner.
	for i, t := range c.Auth.Tokens {
		if t.Key == "" && t.KeyFile == "" {
			errs = append(errs, fmt.Errorf("auth.tokens[%d].key or key_file is required", i))
		}
		if t.Subject == "" {
			errs = append(errs, fmt.Errorf("auth.tokens[%d].subject is required", i))
		}
	}

	return errors.Join(errs...)
}

// validateChain checks every identifier in a chain against the known set.
func validateChain(field string, chain []string) []error {
	var errs []error
	for _, id := range chain {
		if !knownStrategies[id] {
			errs = append(errs, fmt.Errorf("%s: unknown strategy %q", field, id))
		}
	}
	return errs
}

// usesStrategy reports whether the identifier appears in the default
// chain or any endpoint override.
func (c *Config) usesStrategy(id string) bool {
	for _, s := range c.Auth.Chain {
		if s == id {
			return true
		}
	}
	for _, ep := range c.Auth.Endpoints {
		for _, s := range ep.Chain {
			if s == id {
				return true
			}
		}
	}
	return false
}
