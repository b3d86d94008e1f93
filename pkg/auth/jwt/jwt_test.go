package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/einlass-dev/einlass/pkg/auth"
)

// testKeyPair holds the RSA key pair used throughout the tests.
var testKeyPair *rsa.PrivateKey

func init() {
	var err error
	testKeyPair, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("generating test RSA key: %v", err))
	}
}

// testKID is the key ID used for the test key pair.
const testKID = "test-key-1"

// jwksHandler serves the test public key as a JWKS and counts fetches.
func jwksHandler(fetchCount *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fetchCount != nil {
			fetchCount.Add(1)
		}

		pubKey := testKeyPair.PublicKey
		nBase64 := base64.RawURLEncoding.EncodeToString(pubKey.N.Bytes())
		eBase64 := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pubKey.E)).Bytes())

		jwks := map[string]interface{}{
			"keys": []map[string]string{
				{
					"kty": "RSA",
					"kid": testKID,
					"use": "sig",
					"n":   nBase64,
					"e":   eBase64,
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jwks)
	}
}

// createSignedToken creates a JWT signed with the test private key.
func createSignedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = testKID

	tokenStr, err := token.SignedString(testKeyPair)
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return tokenStr
}

// newTestStrategy creates a test JWKS server and JWT strategy.
func newTestStrategy(t *testing.T, cfgOverride func(*Config), fetchCount *atomic.Int32) *Strategy {
	t.Helper()

	server := httptest.NewServer(jwksHandler(fetchCount))
	t.Cleanup(server.Close)

	cfg := Config{
		Issuer:   "https://auth.example.com",
		Audience: "my-api",
		JWKSURL:  server.URL + "/.well-known/jwks.json",
		CacheTTL: 1 * time.Hour,
	}

	if cfgOverride != nil {
		cfgOverride(&cfg)
	}

	return New(cfg)
}

func validClaims() jwtlib.MapClaims {
	return jwtlib.MapClaims{
		"sub": "user-123",
		"iss": "https://auth.example.com",
		"aud": "my-api",
		"exp": time.Now().Add(1 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

func bearerRequest(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func TestJWT_ValidToken(t *testing.T) {
	s := newTestStrategy(t, nil, nil)
	token := createSignedToken(t, validClaims())

	result := s.Resolve(context.Background(), bearerRequest(token))

	if result.Decision != auth.Bound {
		t.Fatalf("Decision = %d, want Bound; err=%v", result.Decision, result.Err)
	}
	if result.Credential.Principal.Subject != "user-123" {
		t.Errorf("Subject = %q, want %q", result.Credential.Principal.Subject, "user-123")
	}

	// The raw claims ride along as auth-context.
	if _, ok := result.Credential.Context.(jwtlib.MapClaims); !ok {
		t.Errorf("Context = %T, want jwt.MapClaims", result.Credential.Context)
	}
}

func TestJWT_ExpiredToken(t *testing.T) {
	s := newTestStrategy(t, nil, nil)

	claims := validClaims()
	claims["exp"] = time.Now().Add(-1 * time.Hour).Unix()
	claims["iat"] = time.Now().Add(-2 * time.Hour).Unix()
	token := createSignedToken(t, claims)

	result := s.Resolve(context.Background(), bearerRequest(token))
	if result.Decision != auth.Failed {
		t.Fatalf("Decision = %d, want Failed (expired)", result.Decision)
	}
}

func TestJWT_WrongAudience(t *testing.T) {
	s := newTestStrategy(t, nil, nil)

	claims := validClaims()
	claims["aud"] = "wrong-api"
	token := createSignedToken(t, claims)

	result := s.Resolve(context.Background(), bearerRequest(token))
	if result.Decision != auth.Failed {
		t.Fatalf("Decision = %d, want Failed (wrong audience)", result.Decision)
	}
}

func TestJWT_WrongIssuer(t *testing.T) {
	s := newTestStrategy(t, nil, nil)

	claims := validClaims()
	claims["iss"] = "https://evil.example.com"
	token := createSignedToken(t, claims)

	result := s.Resolve(context.Background(), bearerRequest(token))
	if result.Decision != auth.Failed {
		t.Fatalf("Decision = %d, want Failed (wrong issuer)", result.Decision)
	}
}

func TestJWT_NoBearerToken(t *testing.T) {
	s := newTestStrategy(t, nil, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"token scheme", "Token opaque-key"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}

			result := s.Resolve(context.Background(), r)
			if result.Decision != auth.Unresolved {
				t.Fatalf("Decision = %d, want Unresolved", result.Decision)
			}
		})
	}
}

func TestJWT_InvalidToken(t *testing.T) {
	s := newTestStrategy(t, nil, nil)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"empty bearer", ""},
		{"partial jwt", "eyJhbGciOiJSUzI1NiJ9.invalidpayload"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := s.Resolve(context.Background(), bearerRequest(tc.token))
			if result.Decision != auth.Failed {
				t.Fatalf("Decision = %d, want Failed (invalid token)", result.Decision)
			}
		})
	}
}

func TestJWT_MissingSubjectClaim(t *testing.T) {
	s := newTestStrategy(t, nil, nil)

	claims := validClaims()
	delete(claims, "sub")
	token := createSignedToken(t, claims)

	result := s.Resolve(context.Background(), bearerRequest(token))
	if result.Decision != auth.Failed {
		t.Fatalf("Decision = %d, want Failed (missing subject)", result.Decision)
	}
}

func TestJWT_CustomUserClaim(t *testing.T) {
	s := newTestStrategy(t, func(cfg *Config) {
		cfg.UserClaim = "preferred_username"
	}, nil)

	claims := validClaims()
	claims["preferred_username"] = "alice"
	token := createSignedToken(t, claims)

	result := s.Resolve(context.Background(), bearerRequest(token))
	if result.Decision != auth.Bound {
		t.Fatalf("Decision = %d, want Bound; err=%v", result.Decision, result.Err)
	}
	if result.Credential.Principal.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", result.Credential.Principal.Subject, "alice")
	}
}

func TestJWT_ScopesExtraction(t *testing.T) {
	t.Run("space-separated string", func(t *testing.T) {
		s := newTestStrategy(t, nil, nil)

		claims := validClaims()
		claims["scope"] = "read write admin"
		token := createSignedToken(t, claims)

		result := s.Resolve(context.Background(), bearerRequest(token))
		if result.Decision != auth.Bound {
			t.Fatalf("Decision = %d, want Bound; err=%v", result.Decision, result.Err)
		}

		expected := []string{"read", "write", "admin"}
		got := result.Credential.Principal.Scopes
		if len(got) != len(expected) {
			t.Fatalf("Scopes = %v, want %v", got, expected)
		}
		for i, scope := range expected {
			if got[i] != scope {
				t.Errorf("Scopes[%d] = %q, want %q", i, got[i], scope)
			}
		}
	})

	t.Run("json array", func(t *testing.T) {
		s := newTestStrategy(t, nil, nil)

		claims := validClaims()
		claims["scope"] = []interface{}{"read", "write"}
		token := createSignedToken(t, claims)

		result := s.Resolve(context.Background(), bearerRequest(token))
		if result.Decision != auth.Bound {
			t.Fatalf("Decision = %d, want Bound; err=%v", result.Decision, result.Err)
		}
		if len(result.Credential.Principal.Scopes) != 2 {
			t.Fatalf("Scopes = %v, want [read write]", result.Credential.Principal.Scopes)
		}
	})
}

func TestJWT_JWKSCaching(t *testing.T) {
	var fetchCount atomic.Int32
	s := newTestStrategy(t, nil, &fetchCount)

	token := createSignedToken(t, validClaims())

	for i := 0; i < 3; i++ {
		result := s.Resolve(context.Background(), bearerRequest(token))
		if result.Decision != auth.Bound {
			t.Fatalf("request %d: Decision = %d, want Bound; err=%v", i+1, result.Decision, result.Err)
		}
	}

	if got := fetchCount.Load(); got != 1 {
		t.Errorf("JWKS fetched %d times, want 1 (cached)", got)
	}
}

func TestJWT_Challenge(t *testing.T) {
	s := newTestStrategy(t, nil, nil)
	if got := s.Challenge(); got != `Bearer realm="api"` {
		t.Errorf("Challenge() = %q, want %q", got, `Bearer realm="api"`)
	}
}
