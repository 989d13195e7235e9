package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10_000
	clientIdleTTL     = 10 * time.Minute
)

// rateLimiter decides whether the client identified by key may proceed.
type rateLimiter interface {
	Allow(key string) bool
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter keeps one token bucket per client so a single noisy uploader
// cannot starve everybody else.
type keyedLimiter struct {
	ratePerSecond rate.Limit
	burst         int
	maxClients    int
	now           func() time.Time

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) rateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &keyedLimiter{
		ratePerSecond: rate.Limit(ratePerSecond),
		burst:         burst,
		maxClients:    maxTrackedClients,
		now:           time.Now,
		clients:       make(map[string]*clientLimiter),
	}
}

func (l *keyedLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	client, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= l.maxClients {
			l.pruneLocked(now)
		}
		// Unknown clients are turned away until idle entries expire.
		if len(l.clients) >= l.maxClients {
			return false
		}
		client = &clientLimiter{limiter: rate.NewLimiter(l.ratePerSecond, l.burst)}
		l.clients[key] = client
	}
	client.lastSeen = now
	return client.limiter.AllowN(now, 1)
}

func (l *keyedLimiter) pruneLocked(now time.Time) {
	for key, client := range l.clients {
		if now.Sub(client.lastSeen) > clientIdleTTL {
			delete(l.clients, key)
		}
	}
}

// clientKey identifies the caller by remote address. The first X-Forwarded-For
// hop is used instead only when trustForwarded is set.
func clientKey(r *http.Request, trustForwarded bool) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); trustForwarded && forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rateLimitMiddleware(limiter rateLimiter, trustForwarded bool, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow(clientKey(r, trustForwarded)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(1))
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}
