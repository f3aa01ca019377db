package common

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// IdempotencyHeader is the request header carrying the client-generated key.
const IdempotencyHeader = "Idempotency-Key"

// Idem rejects replays of write requests that reuse an Idempotency-Key within
// TTL. Keys are scoped to the caller and the route so two buyers can never
// collide.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

// IdempotencyKey returns the trimmed Idempotency-Key header.
func IdempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(IdempotencyHeader))
}

func (i Idem) storeKey(r *http.Request, header string) string {
	owner, _ := UserID(r.Context())
	if owner == "" {
		owner = ClientIP(r)
	}
	return "idem:" + Sha256Hex(owner+"|"+r.Method+"|"+r.URL.Path+"|"+header)
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 24 * time.Hour
	}
	return i.TTL
}

// Middleware enforces idempotency semantics for write endpoints.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := IdempotencyKey(r)
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := i.storeKey(r, header)
		ok, err := i.R.SetNX(r.Context(), key, "locked", i.ttl()).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", map[string]any{"error": err.Error()})
			return
		}
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, "{\"error\":{\"code\":\"IDEMPOTENT_REPLAY\",\"message\":\"duplicate request\"}}")
			return
		}
		defer func() {
			_ = i.R.Expire(context.Background(), key, i.ttl()).Err()
		}()
		next.ServeHTTP(w, r)
	})
}
