// Command server runs the einlass authentication gateway.
//
// Configuration is loaded from a YAML file with environment overrides:
//
//	EINLASS_CONFIG              - Config file path (default: ./config.yaml)
//	EINLASS_PORT                - Listen port (default: 8080)
//	EINLASS_CHAIN               - Default strategy chain, comma-separated
//	EINLASS_STORAGE             - Storage type: "memory" or "postgres"
//	EINLASS_POSTGRES_DSN        - PostgreSQL connection string
//	EINLASS_ANONYMOUS_PRINCIPAL - Subject assigned to unauthenticated requests
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/einlass-dev/einlass/pkg/auth/factory"
	"github.com/einlass-dev/einlass/pkg/auth/session"
	"github.com/einlass-dev/einlass/pkg/config"
	"github.com/einlass-dev/einlass/pkg/server"
	"github.com/einlass-dev/einlass/pkg/store"
	"github.com/einlass-dev/einlass/pkg/store/memory"
	"github.com/einlass-dev/einlass/pkg/store/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Build the credential stores.
	users, tokens, closeStore, err := buildStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating stores: %w", err)
	}
	defer closeStore()

	// The session manager is always constructed; the session strategy
	// only participates when "session" appears in a configured chain.
	sessions := session.NewManager(cfg.Auth.Session.CookieName, cfg.Auth.Session.TTL)

	srv, err := server.New(cfg, factory.Deps{
		Users:    users,
		Tokens:   tokens,
		Sessions: sessions,
	})
	if err != nil {
		return err
	}

	slog.Info("starting einlass",
		"port", cfg.Server.Port,
		"chain", cfg.Auth.Chain,
		"storage", cfg.Storage.Type,
		"throttle", cfg.Throttle.Enabled,
	)

	return srv.ListenAndServe(ctx)
}

// buildStores creates the configured user and token stores. The memory
// store is seeded from the config file; the postgres store connects and
// optionally migrates.
func buildStores(ctx context.Context, cfg *config.Config) (store.UserStore, store.TokenStore, func(), error) {
	switch cfg.Storage.Type {
	case "memory":
		s := memory.New()
		for _, u := range cfg.Auth.Users {
			s.AddUser(store.User{
				Username:     u.Username,
				PasswordHash: u.PasswordHash,
				Scopes:       u.Scopes,
				Metadata:     u.Metadata,
			})
		}
		for _, t := range cfg.Auth.Tokens {
			s.AddToken(store.Token{
				Key:       t.Key,
				Subject:   t.Subject,
				CreatedAt: time.Now(),
			})
		}
		slog.Info("storage enabled", "type", "memory",
			"users", len(cfg.Auth.Users), "tokens", len(cfg.Auth.Tokens))
		return s, s, func() {}, nil

	case "postgres":
		s, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		slog.Info("storage enabled", "type", "postgres")
		return s, s, func() { s.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}
