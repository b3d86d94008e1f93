package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/einlass-dev/einlass/pkg/auth"
)

// whoamiResponse describes the resolved principal for the request.
type whoamiResponse struct {
	Subject   string   `json:"subject"`
	Scopes    []string `json:"scopes,omitempty"`
	Anonymous bool     `json:"anonymous"`
}

// handleWhoami reports the principal the chain resolved for the request.
// Anonymous requests are allowed and report the anonymous principal.
func handleWhoami(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		http.Error(w, "no principal", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(whoamiResponse{
		Subject:   p.Subject,
		Scopes:    p.Scopes,
		Anonymous: auth.IsAnonymous(r.Context()),
	})
}

// handlePrivate is a sample endpoint that requires an authenticated
// principal.
func handlePrivate(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"detail":  "authenticated",
		"subject": p.Subject,
	})
}

// handleAdmin is a sample endpoint that requires the admin scope.
func handleAdmin(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"detail":  "admin access granted",
		"subject": p.Subject,
	})
}

// handleHealth reports process liveness.
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}

// healthChecker is implemented by stores that can verify connectivity.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// handleReady reports readiness. When the user store can verify its
// backend connection, readiness reflects that check; the in-memory
// store has no backend and is always ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if hc, ok := s.deps.Users.(healthChecker); ok {
		if err := hc.HealthCheck(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, `{"status":"unavailable"}`)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ready"}`)
}
