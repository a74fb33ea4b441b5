package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimiter tracks a token bucket per client IP. It protects the login
// exchange from credential stuffing; idle buckets are dropped after an hour.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	lastSeen time.Duration
}

type clientLimiter struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewRateLimiter creates a per-client rate limiter allowing limit events per
// second with the given burst.
func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		clients:  make(map[string]*clientLimiter),
		limit:    limit,
		burst:    burst,
		lastSeen: time.Hour,
	}
}

// Allow reports whether the client may proceed.
func (l *RateLimiter) Allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	client, exists := l.clients[clientIP]
	if !exists {
		client = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[clientIP] = client
	}
	client.seen = now

	// Opportunistic sweep of idle buckets
	for ip, c := range l.clients {
		if now.Sub(c.seen) > l.lastSeen {
			delete(l.clients, ip)
		}
	}

	return client.limiter.Allow()
}

// Middleware rejects over-limit clients with 429 before the handler runs.
func (l *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ClientIPFromContext(r.Context())
			if clientIP == "" {
				clientIP = ExtractClientIP(r)
			}

			if !l.Allow(clientIP) {
				zerolog.Ctx(r.Context()).Warn().
					Str("client_ip", clientIP).
					Msg("Rate limit exceeded")
				WriteDetail(w, http.StatusTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
