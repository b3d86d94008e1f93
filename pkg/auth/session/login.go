package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/einlass-dev/einlass/pkg/store"
)

// LoginHandler verifies a username and password against the user store and
// starts a session. The response sets the session cookie and returns the
// CSRF token the client must echo on state-mutating requests.
type LoginHandler struct {
	Users   store.UserStore
	Manager *Manager
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ServeHTTP implements http.Handler.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	username, password, err := readLogin(r)
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

	sess := h.Manager.Create(user.Username)
	h.Manager.SetCookie(w, sess)

	slog.Info("session started", "subject", user.Username)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"csrftoken": sess.CSRFToken})
}

// LogoutHandler ends the request's session, if any, and clears the cookie.
type LogoutHandler struct {
	Manager *Manager
}

// ServeHTTP implements http.Handler.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	if cookie, err := r.Cookie(h.Manager.cookieName); err == nil && cookie.Value != "" {
		h.Manager.Delete(cookie.Value)
	}
	h.Manager.ClearCookie(w)

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"detail":"logged out"}`)
}

// readLogin extracts username and password from a JSON or form body.
func readLogin(r *http.Request) (username, password string, err error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var req loginRequest
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

// writeError writes a structured error body with the given status.
func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"type":%q,"message":%q}}`+"\n", errType, message)
}
