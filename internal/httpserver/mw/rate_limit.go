package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/utils"
)

type RateLimitConfig struct {
	Burst             int
	RefillPerIPPerMin int
	MaxEntries        int // sweep idle buckets early past this size, 0 = no cap
	SweepInterval     time.Duration
	IdleTTL           time.Duration
	TrustProxy        bool // resolve IP from proxy headers when true

	// KeyFunc picks the bucket of a request; it defaults to the client IP.
	// Returning "" falls back to the client IP.
	KeyFunc func(r *http.Request) string
}

// SessionOrIP buckets signed-in users by user id and everybody else by IP
func SessionOrIP(r *http.Request) string {
	if s, ok := auth.FromContext(r.Context()); ok {
		return "user:" + s.UserID
	}
	return ""
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter holds one token bucket per key and forgets idle keys
type keyedLimiter struct {
	cfg   RateLimitConfig
	every rate.Limit

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newKeyedLimiter(cfg RateLimitConfig, now time.Time) *keyedLimiter {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	cfg.Burst = max(cfg.Burst, 1)
	cfg.RefillPerIPPerMin = max(cfg.RefillPerIPPerMin, 1)

	return &keyedLimiter{
		cfg:       cfg,
		every:     rate.Every(time.Minute / time.Duration(cfg.RefillPerIPPerMin)),
		visitors:  make(map[string]*visitor, 1024),
		lastSweep: now,
	}
}

// allow takes one token for key. When none is left it reports how long
// until the next one.
func (l *keyedLimiter) allow(key string, now time.Time) (ok bool, remaining int, retryAfter time.Duration) {
	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.cfg.SweepInterval ||
		(l.cfg.MaxEntries > 0 && len(l.visitors) >= l.cfg.MaxEntries) {
		l.sweepLocked(now)
	}
	v := l.visitors[key]
	if v == nil {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.cfg.Burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	res := v.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, 0, delay
	}
	return true, int(math.Floor(v.limiter.TokensAt(now))), 0
}

func (l *keyedLimiter) sweepLocked(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.cfg.IdleTTL {
			delete(l.visitors, key)
		}
	}
	l.lastSweep = now
}

// RateLimit is a per-key token bucket; over-limit requests get 429 with Retry-After.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newKeyedLimiter(cfg, time.Now())
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if l.cfg.KeyFunc != nil {
				key = l.cfg.KeyFunc(r)
			}
			if key == "" {
				key = "ip:" + utils.ClientIP(r, l.cfg.TrustProxy)
			}

			ok, remaining, retryAfter := l.allow(key, time.Now())
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(max(int(math.Ceil(retryAfter.Seconds())), 1)))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
