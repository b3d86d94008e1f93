package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, EINLASS_CONFIG env, ./config.yaml, /etc/einlass/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. EINLASS_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/einlass/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check EINLASS_CONFIG env var.
	if envPath := os.Getenv("EINLASS_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/einlass/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EINLASS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EINLASS_CHAIN"); v != "" {
		cfg.Auth.Chain = splitList(v)
	}
	if v := os.Getenv("EINLASS_REALM"); v != "" {
		cfg.Auth.Realm = v
	}
	if v := os.Getenv("EINLASS_ANONYMOUS_PRINCIPAL"); v != "" {
		cfg.Auth.Anonymous.Principal = v
	}
	if v := os.Getenv("EINLASS_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("EINLASS_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("EINLASS_JWKS_URL"); v != "" {
		cfg.Auth.JWT.JWKSURL = v
	}
	if v := os.Getenv("EINLASS_THROTTLE"); v != "" {
		cfg.Throttle.Enabled = v == "true" || v == "1"
	}
}

// splitList splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// auth.users[*].password_hash_file -> auth.users[*].password_hash
	for i := range cfg.Auth.Users {
		if cfg.Auth.Users[i].PasswordHashFile != "" && cfg.Auth.Users[i].PasswordHash == "" {
			val, err := readSecretFile(cfg.Auth.Users[i].PasswordHashFile)
			if err != nil {
				return fmt.Errorf("auth.users[%d].password_hash_file: %w", i, err)
			}
			cfg.Auth.Users[i].PasswordHash = val
		}
	}

	// auth.tokens[*].key_file -> auth.tokens[*].key
	for i := range cfg.Auth.Tokens {
		if cfg.Auth.Tokens[i].KeyFile != "" && cfg.Auth.Tokens[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.Tokens[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.tokens[%d].key_file: %w", i, err)
			}
			cfg.Auth.Tokens[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
