package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/warung-ops/backend-warung/internal/tenant"
)

// Middleware enforces the configured rate before delegating. Limiter
// failures fail open so Redis trouble never takes the API down.
type Middleware struct {
	Limiter Limiter
	Rate    Rate
	OnError func(error)
}

func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := requestKey(r)
		allowed, remaining, resetAt, err := m.Limiter.Allow(r.Context(), key, m.Rate)
		if err != nil {
			if m.OnError != nil {
				m.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(m.Rate.Max))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestKey buckets hits by tenant and client IP so one noisy warung
// cannot starve the others.
func requestKey(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	tid, _ := tenant.From(r.Context())
	return tid + ":" + ip
}
