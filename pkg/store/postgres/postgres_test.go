package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/einlass-dev/einlass/pkg/store"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if no container runtime is available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("einlass_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	s, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestPostgres_CreateAndGetUser(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	username := uniqueName("alice")
	err := s.CreateUser(ctx, store.User{
		Username:     username,
		PasswordHash: "$2a$10$hash",
		Scopes:       []string{"read", "write"},
		Metadata:     map[string]string{"tier": "premium"},
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := s.GetUser(ctx, username)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.PasswordHash != "$2a$10$hash" {
		t.Errorf("PasswordHash = %q, want stored hash", got.PasswordHash)
	}
	if len(got.Scopes) != 2 || got.Scopes[0] != "read" {
		t.Errorf("Scopes = %v, want [read write]", got.Scopes)
	}
	if got.Metadata["tier"] != "premium" {
		t.Errorf("Metadata[tier] = %q, want %q", got.Metadata["tier"], "premium")
	}
}

func TestPostgres_GetUserNotFound(t *testing.T) {
	s := setupTestDB(t)

	_, err := s.GetUser(context.Background(), "no-such-user")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetUser = %v, want ErrNotFound", err)
	}
}

func TestPostgres_DuplicateUser(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	username := uniqueName("dup")
	u := store.User{Username: username, PasswordHash: "h"}

	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := s.CreateUser(ctx, u); err == nil {
		t.Fatal("CreateUser accepted duplicate username")
	}
}

func TestPostgres_TokenLifecycle(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	username := uniqueName("bob")
	if err := s.CreateUser(ctx, store.User{Username: username, PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	first, err := s.GetOrCreateToken(ctx, username, "key-one-"+username)
	if err != nil {
		t.Fatalf("GetOrCreateToken failed: %v", err)
	}
	if first.Subject != username {
		t.Errorf("Subject = %q, want %q", first.Subject, username)
	}

	// A second call returns the existing live token.
	second, err := s.GetOrCreateToken(ctx, username, "key-two-"+username)
	if err != nil {
		t.Fatalf("GetOrCreateToken failed: %v", err)
	}
	if second.Key != first.Key {
		t.Errorf("Key = %q, want existing %q", second.Key, first.Key)
	}

	got, err := s.GetToken(ctx, first.Key)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if got.Revoked {
		t.Error("fresh token marked revoked")
	}

	if err := s.RevokeToken(ctx, first.Key); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}

	got, err = s.GetToken(ctx, first.Key)
	if err != nil {
		t.Fatalf("GetToken after revoke failed: %v", err)
	}
	if !got.Revoked {
		t.Error("token not marked revoked")
	}

	// After revocation, a fresh token is issued.
	third, err := s.GetOrCreateToken(ctx, username, "key-three-"+username)
	if err != nil {
		t.Fatalf("GetOrCreateToken after revoke failed: %v", err)
	}
	if third.Key == first.Key {
		t.Error("revoked token reissued")
	}
}

func TestPostgres_GetTokenNotFound(t *testing.T) {
	s := setupTestDB(t)

	_, err := s.GetToken(context.Background(), "no-such-key")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetToken = %v, want ErrNotFound", err)
	}
}

func TestPostgres_RevokeUnknownToken(t *testing.T) {
	s := setupTestDB(t)

	err := s.RevokeToken(context.Background(), "no-such-key")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("RevokeToken = %v, want ErrNotFound", err)
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	s := setupTestDB(t)

	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestPostgres_MigrationsAreIdempotent(t *testing.T) {
	s := setupTestDB(t)

	// Setup already ran migrations once; a second run must be a no-op.
	if err := s.migrate(context.Background()); err != nil {
		t.Fatalf("re-running migrations failed: %v", err)
	}
}
