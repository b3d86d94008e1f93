package session

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/einlass-dev/einlass/pkg/observability"
)

// CSRFHeader is the request header carrying the anti-forgery token.
const CSRFHeader = "X-CSRF-Token"

// CSRF returns middleware enforcing the anti-forgery precondition for
// session-cookie requests. State-mutating methods must echo the session's
// CSRF token in the X-CSRF-Token header; a missing or mismatched token is
// rejected with 403 before authentication resolution runs.
//
// Requests without a session cookie pass through untouched: there is no
// ambient credential a cross-site request could ride on.
func CSRF(manager *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if safeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			sess := manager.FromRequest(r)
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get(CSRFHeader)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(sess.CSRFToken)) != 1 {
				slog.Warn("CSRF verification failed",
					"path", r.URL.Path,
					"method", r.Method,
					"subject", sess.Subject,
				)
				observability.CSRFRejectedTotal.Inc()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprintln(w, `{"error":{"type":"permission_denied","message":"CSRF verification failed"}}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// safeMethod reports whether the method is defined as safe (read-only)
// and therefore exempt from the anti-forgery check.
func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
