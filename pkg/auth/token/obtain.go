package token

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/einlass-dev/einlass/pkg/observability"
	"github.com/einlass-dev/einlass/pkg/store"
)

// ObtainHandler exchanges a username and password for the user's API
// token, creating one on first use. It accepts the credentials as a form
// body or a JSON object and responds with {"token":"<key>"}.
type ObtainHandler struct {
	Users  store.UserStore
	Tokens store.TokenStore
}

// obtainRequest is the JSON body accepted by the endpoint.
type obtainRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ServeHTTP implements http.Handler.
func (h *ObtainHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	username, password, err := readCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user, err := h.Users.GetUser(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to log in with provided credentials")
		return
	}
	if err != nil {
		slog.Error("user lookup failed", "username", username, "error", err)
		writeError(w, http.StatusServiceUnavailable, "server_error", "credential store unavailable")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to log in with provided credentials")
		return
	}

	record, err := h.Tokens.GetOrCreateToken(r.Context(), user.Username, generateKey())
	if err != nil {
		slog.Error("token issue failed", "username", username, "error", err)
		writeError(w, http.StatusServiceUnavailable, "server_error", "token store unavailable")
		return
	}
	observability.TokensIssuedTotal.Inc()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": record.Key})
}

// readCredentials extracts username and password from a JSON or form body.
func readCredentials(r *http.Request) (username, password string, err error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var req obtainRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", "", fmt.Errorf("parsing JSON body: %w", err)
		}
		username, password = req.Username, req.Password
	} else {
		if err := r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("parsing form body: %w", err)
		}
		username = r.PostFormValue("username")
		password = r.PostFormValue("password")
	}

	if username == "" || password == "" {
		return "", "", errors.New("username and password are required")
	}
	return username, password, nil
}

// generateKey creates a new opaque token key as a hex string.
func generateKey() string {
	b := make([]byte, 20)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// writeError writes a structured error body with the given status.
func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"type":%q,"message":%q}}`+"\n", errType, message)
}
