package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aamsco/awardswithfriends/internal/auth"
	"github.com/aamsco/awardswithfriends/pkg/functions"
)

const (
	// cleanupThreshold is the minimum map size before a cleanup pass runs
	cleanupThreshold = 500
	// maxIdleAge is how long an idle entry survives a cleanup pass
	maxIdleAge = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter hands out one token bucket per caller and prunes idle
// callers inline
type UserRateLimiter struct {
	entries map[string]*limiterEntry
	mu      sync.Mutex
	r       rate.Limit
	b       int
}

// NewUserRateLimiter creates a new UserRateLimiter
func NewUserRateLimiter(r rate.Limit, b int) *UserRateLimiter {
	return &UserRateLimiter{
		entries: make(map[string]*limiterEntry),
		r:       r,
		b:       b,
	}
}

// GetLimiter returns the limiter for key
func (l *UserRateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > cleanupThreshold {
		cutoff := time.Now().Add(-maxIdleAge)
		for k, e := range l.entries {
			if e.lastSeen.Before(cutoff) {
				delete(l.entries, k)
			}
		}
	}

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// rateLimit limits requests per signed-in user, falling back to the remote
// address for anonymous requests
func (h *Handlers) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ""
		if id := auth.IdentityFrom(r.Context()); id != nil {
			key = "uid:" + id.UserID
		} else {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			key = "ip:" + ip
		}

		if !h.limiter.GetLimiter(key).Allow() {
			respondError(w, ErrTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// forwardToken makes the caller's ID token available to remote commands
// issued while serving the request
func (h *Handlers) forwardToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFrom(r.Context())
		if id == nil {
			respondError(w, ErrUnauthorized)
			return
		}
		ctx := functions.WithTokenSource(r.Context(), id.TokenSource())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cors sets CORS headers for the configured origins. Without origins it
// does nothing.
func (h *Handlers) cors(next http.Handler) http.Handler {
	origins := make(map[string]struct{}, len(h.allowedOrigins))
	for _, o := range h.allowedOrigins {
		origins[o] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(origins) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		if origin := r.Header.Get("Origin"); origin != "" {
			if _, ok := origins[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// uid returns the signed-in user of r. Routes behind RequireAuthAPI always
// have one.
func uid(r *http.Request) string {
	if id := auth.IdentityFrom(r.Context()); id != nil {
		return id.UserID
	}
	return ""
}
