package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const authCookieName = "tradewatch_auth"

// BasicAuthConfig configures the page gate. Empty credentials disable
// the gate entirely, a convenience for local development.
type BasicAuthConfig struct {
	Username     string
	Password     string
	CookieSecret string
	CookieTTL    time.Duration
}

func (c BasicAuthConfig) enabled() bool {
	return c.Username != "" && c.Password != ""
}

// basicAuth gates page routes behind configured credentials. A signed
// cookie set on first success short-circuits the credential compare on
// later requests. API routes are exempt: the external writer posts
// snapshots without browser credentials.
func basicAuth(cfg BasicAuthConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cfg.enabled() || strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		if cookie, err := r.Cookie(authCookieName); err == nil && verifyAuthCookie(cfg, cookie.Value) {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Basic ") {
			unauthorized(w, "Unauthorized")
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			http.Error(w, "Invalid authorization header", http.StatusBadRequest)
			return
		}

		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.Username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.Password)) == 1
		if !userOK || !passOK {
			unauthorized(w, "Invalid credentials")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     authCookieName,
			Value:    signAuthCookie(cfg, time.Now().Add(cfg.CookieTTL)),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Protected"`)
	http.Error(w, message, http.StatusUnauthorized)
}

// signAuthCookie produces "expiryUnix.hexmac" where the mac covers the
// username and the expiry.
func signAuthCookie(cfg BasicAuthConfig, expiry time.Time) string {
	exp := strconv.FormatInt(expiry.Unix(), 10)
	return exp + "." + cookieMAC(cfg, exp)
}

func verifyAuthCookie(cfg BasicAuthConfig, value string) bool {
	exp, mac, found := strings.Cut(value, ".")
	if !found {
		return false
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil || time.Now().Unix() > expUnix {
		return false
	}
	return hmac.Equal([]byte(mac), []byte(cookieMAC(cfg, exp)))
}

func cookieMAC(cfg BasicAuthConfig, exp string) string {
	mac := hmac.New(sha256.New, []byte(cfg.CookieSecret))
	fmt.Fprintf(mac, "%s|%s", cfg.Username, exp)
	return hex.EncodeToString(mac.Sum(nil))
}
