package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/agromarket/internal/common"
)

// Handler enforces rate limits before delegating to the next handler.
type Handler struct {
	Limiter *limiter.Limiter
	// Key derives the bucket for a request. ByCaller is used when nil.
	Key     func(*http.Request) string
	OnError func(error)
}

// ByCaller buckets authenticated requests per user and anonymous ones per IP.
func ByCaller(r *http.Request) string {
	if userID, ok := common.UserID(r.Context()); ok && strings.TrimSpace(userID) != "" {
		return "user:" + userID
	}
	return "ip:" + common.ClientIP(r)
}

// Middleware implements the http.Handler middleware interface. Store errors
// let the request through.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		keyFn := h.Key
		if keyFn == nil {
			keyFn = ByCaller
		}
		lctx, err := h.Limiter.Get(r.Context(), keyFn(r))
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retryAfter := int(time.Until(time.Unix(lctx.Reset, 0)).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, please slow down", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
