package identity

import (
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/agromarket/internal/common"
)

var errNoToken = errors.New("identity: token missing")

// Middleware wires the caller's principal into HTTP handlers.
type Middleware struct {
	Verifier     *Verifier
	AccessCookie string
}

// Authenticate attaches the principal when a valid token is present and
// otherwise lets the request through anonymously.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.authenticate(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithPrincipal(r.Context(), p)))
	})
}

// RequireAuth rejects requests without a valid token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.authenticate(r)
		if err != nil {
			if errors.Is(err, errNoToken) {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
				return
			}
			common.WriteError(w, err, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithPrincipal(r.Context(), p)))
	})
}

func (m Middleware) authenticate(r *http.Request) (common.Principal, error) {
	if m.Verifier == nil {
		return common.Principal{}, errors.New("identity: verifier not configured")
	}
	token := m.extractToken(r)
	if token == "" {
		return common.Principal{}, errNoToken
	}
	return m.Verifier.Verify(token)
}

func (m Middleware) extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if m.AccessCookie != "" {
		if cookie, err := r.Cookie(m.AccessCookie); err == nil {
			if value := strings.TrimSpace(cookie.Value); value != "" {
				return value
			}
		}
	}
	return ""
}
