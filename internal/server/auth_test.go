package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func gatedHandler(t *testing.T, cfg BasicAuthConfig) http.Handler {
	t.Helper()
	return basicAuth(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func authConfig() BasicAuthConfig {
	return BasicAuthConfig{
		Username:     "admin",
		Password:     "secret",
		CookieSecret: "cookie-key",
		CookieTTL:    time.Hour,
	}
}

func TestBasicAuthDisabledWhenUnconfigured(t *testing.T) {
	h := gatedHandler(t, BasicAuthConfig{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected pass-through without credentials configured, got %d", rec.Code)
	}
}

func TestBasicAuthChallengesWithoutHeader(t *testing.T) {
	h := gatedHandler(t, authConfig())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != `Basic realm="Protected"` {
		t.Errorf("Expected basic challenge header, got %q", got)
	}
}

func TestBasicAuthRejectsMalformedHeader(t *testing.T) {
	h := gatedHandler(t, authConfig())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic ###not-base64###")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed header, got %d", rec.Code)
	}
}

func TestBasicAuthRejectsWrongCredentials(t *testing.T) {
	h := gatedHandler(t, authConfig())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for bad password, got %d", rec.Code)
	}
}

func TestBasicAuthSetsCookieOnSuccess(t *testing.T) {
	cfg := authConfig()
	h := gatedHandler(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 with valid credentials, got %d", rec.Code)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == authCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("Expected auth cookie on successful login")
	}

	// Cookie alone grants access on the next request.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with valid cookie, got %d", rec.Code)
	}
}

func TestBasicAuthRejectsTamperedCookie(t *testing.T) {
	cfg := authConfig()
	h := gatedHandler(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: authCookieName, Value: "9999999999.deadbeef"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for forged cookie, got %d", rec.Code)
	}
}

func TestBasicAuthRejectsExpiredCookie(t *testing.T) {
	cfg := authConfig()
	h := gatedHandler(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{
		Name:  authCookieName,
		Value: signAuthCookie(cfg, time.Now().Add(-time.Minute)),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for expired cookie, got %d", rec.Code)
	}
}

func TestBasicAuthExemptsAPIAndWebsocket(t *testing.T) {
	h := gatedHandler(t, authConfig())
	for _, path := range []string{"/api/trading/accounts", "/api/trades", "/ws"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("Expected %s exempt from the page gate, got %d", path, rec.Code)
		}
	}
}
