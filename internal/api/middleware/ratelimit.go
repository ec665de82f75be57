package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	appErr "github.com/pagecraft/engine/pkg/errors"
)

const (
	visitorIdle = 10 * time.Minute
	gcInterval  = 5 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

type visitors struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	entries map[string]*limiterEntry
	lastGC  time.Time
}

func (v *visitors) allow(ip string, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if now.Sub(v.lastGC) > gcInterval {
		for k, e := range v.entries {
			if now.Sub(e.last) > visitorIdle {
				delete(v.entries, k)
			}
		}
		v.lastGC = now
	}
	le, ok := v.entries[ip]
	if !ok {
		le = &limiterEntry{limiter: rate.NewLimiter(v.rps, v.burst)}
		v.entries[ip] = le
	}
	le.last = now
	return le.limiter.AllowN(now, 1)
}

func getIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit applies an IP-based token bucket limiter. Idle visitors are
// pruned lazily on the request path.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	v := &visitors{
		rps:     rate.Limit(rps),
		burst:   burst,
		entries: map[string]*limiterEntry{},
		lastGC:  time.Now(),
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.allow(getIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, appErr.CodeUnavailable, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
