package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/einlass-dev/einlass/pkg/store"
	"github.com/einlass-dev/einlass/pkg/store/memory"
)

func loginStore(t *testing.T) *memory.Store {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("wonderland"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	s := memory.New()
	s.AddUser(store.User{Username: "alice", PasswordHash: string(hash)})
	return s
}

func TestLoginStartsSession(t *testing.T) {
	m := NewManager("", 0)
	h := &LoginHandler{Users: loginStore(t), Manager: m}

	r := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"username":"alice","password":"wonderland"}`))
	r.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("len(cookies) = %d, want 1", len(cookies))
	}

	sess := m.Get(cookies[0].Value)
	if sess == nil || sess.Subject != "alice" {
		t.Fatalf("session = %+v, want live session for alice", sess)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["csrftoken"] != sess.CSRFToken {
		t.Errorf("csrftoken = %q, want session's CSRF token", resp["csrftoken"])
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h := &LoginHandler{Users: loginStore(t), Manager: NewManager("", 0)}

	r := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"username":"alice","password":"rabbit"}`))
	r.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("failed login set a cookie")
	}
}

func TestLoginRejectsGet(t *testing.T) {
	h := &LoginHandler{Users: loginStore(t), Manager: NewManager("", 0)}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/login", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	m := NewManager("", 0)
	sess := m.Create("alice")
	h := &LogoutHandler{Manager: m}

	r := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: sess.ID})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if m.Get(sess.ID) != nil {
		t.Error("session survived logout")
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Errorf("cookies = %+v, want single expired cookie", cookies)
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	h := &LogoutHandler{Manager: NewManager("", 0)}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/logout", nil))

	// Logging out without a session is not an error.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
