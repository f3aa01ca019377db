package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noah-isme/agromarket/internal/common"
)

// CSRF applies the double-submit check to writes authenticated by cookie.
// Bearer-authenticated requests are exempt.
type CSRF struct {
	Header string
	Cookie string
}

// Middleware enforces that unsafe requests carry a header token equal to the cookie token.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	header := strings.TrimSpace(c.Header)
	if header == "" {
		header = "X-CSRF-Token"
	}
	cookieName := strings.TrimSpace(c.Cookie)
	if cookieName == "" {
		cookieName = "csrf_token"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(header))
		cookie, err := r.Cookie(cookieName)
		if token == "" || err != nil || strings.TrimSpace(cookie.Value) == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_REJECTED", "missing csrf token", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(strings.TrimSpace(cookie.Value))) != 1 {
			common.JSONError(w, http.StatusForbidden, "CSRF_REJECTED", "invalid csrf token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
