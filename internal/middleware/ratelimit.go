// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/bookshelf/internal/core"
)

// RateLimitConfig picks a key and a limit per request. LimitFor wins over
// Limit when both are set.
type RateLimitConfig struct {
	Limit    redis_rate.Limit
	LimitFor func(*http.Request) redis_rate.Limit
	KeyFunc  func(*http.Request) string
}

// RateLimiter enforces a GCRA limit in redis and falls back to an
// in-process token bucket when redis is unreachable.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	config   RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.LimitFor == nil {
		fixed := cfg.Limit
		cfg.LimitFor = func(*http.Request) redis_rate.Limit { return fixed }
	}

	return &RateLimiter{
		limiter:  redis_rate.NewLimiter(rdb),
		fallback: newLocalLimiter(),
		config:   cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.config.KeyFunc(r)
		limit := rl.config.LimitFor(r)

		res, err := rl.limiter.Allow(r.Context(), key, limit)
		if err != nil {
			slog.Warn("rate limiter unavailable, using local bucket",
				"error", err,
				"key", key,
			)
			res = rl.fallback.allow(key, limit)
		}

		setRateLimitHeaders(w, res, limit)

		if res.Allowed == 0 {
			retryAfter := max(int(res.RetryAfter.Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			core.JSONError(w, core.RateLimitedError(retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RoleLimits maps a role to its limit. Unknown or empty roles use the
// "user" entry.
type RoleLimits map[string]redis_rate.Limit

func (l RoleLimits) forRole(role string) redis_rate.Limit {
	if limit, ok := l[role]; ok {
		return limit
	}
	return l[core.RoleUser]
}

// RoleRateLimiter limits authenticated callers per user and endpoint, with
// the budget chosen by role. It must run after Authenticator.
func RoleRateLimiter(rdb *redis.Client, limits RoleLimits) func(http.Handler) http.Handler {
	return NewRateLimiter(rdb, RateLimitConfig{
		LimitFor: func(r *http.Request) redis_rate.Limit {
			return limits.forRole(GetUserRole(r.Context()))
		},
		KeyFunc: KeyByUserAndEndpoint,
	}).Handler
}

// ClientIP is the peer address. Forwarding headers only count once RealIP
// has vetted them and rewritten RemoteAddr.
func ClientIP(r *http.Request) string {
	return remoteHost(r)
}

func KeyByIP(r *http.Request) string {
	return "ratelimit:ip:" + ClientIP(r)
}

func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return "ratelimit:user:" + userID
	}
	return KeyByIP(r)
}

func KeyByUserAndEndpoint(r *http.Request) string {
	return KeyByUser(r) + ":" + r.Method + ":" + normalizeEndpoint(r.URL.Path)
}

func normalizeEndpoint(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if isIdentifier(part) {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func isIdentifier(s string) bool {
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

func setRateLimitHeaders(w http.ResponseWriter, res *redis_rate.Result, limit redis_rate.Limit) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d", limit.Rate, int(limit.Period.Seconds())))
	h.Set("RateLimit", fmt.Sprintf("%d;t=%d", res.Remaining, int(res.ResetAfter.Seconds())))
}

const (
	sweepEvery = 5 * time.Minute
	entryTTL   = 10 * time.Minute
)

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter keeps one token bucket per key. Stale buckets are swept on
// access instead of by a background goroutine.
type localLimiter struct {
	mu        sync.Mutex
	entries   map[string]*localEntry
	lastSweep time.Time
	now       func() time.Time
}

func newLocalLimiter() *localLimiter {
	return &localLimiter{
		entries: make(map[string]*localEntry),
		now:     time.Now,
	}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	now := l.now()
	perSec := float64(limit.Rate) / limit.Period.Seconds()
	interval := time.Duration(float64(time.Second) / perSec)

	l.mu.Lock()
	if now.Sub(l.lastSweep) > sweepEvery {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > entryTTL {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(rate.Limit(perSec), limit.Burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)
	remaining := max(int(e.limiter.TokensAt(now)), 0)
	l.mu.Unlock()

	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  remaining,
		RetryAfter: -1,
		ResetAfter: interval,
	}
	if allowed {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	return res
}

func Per(period time.Duration, requests, burst int) redis_rate.Limit {
	if period <= 0 {
		period = time.Minute
	}
	return redis_rate.Limit{Rate: requests, Burst: burst, Period: period}
}

func PerMinute(requests, burst int) redis_rate.Limit {
	return Per(time.Minute, requests, burst)
}
