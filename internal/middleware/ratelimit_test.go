// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bookshelf/internal/core"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/books", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rdb, _ := newTestRedis(t)
	h := NewRateLimiter(rdb, RateLimitConfig{Limit: PerMinute(2, 2)}).Handler(okHandler())

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234").Code)

	rec := hit(h, "10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
}

func TestRateLimiterSeparatesClients(t *testing.T) {
	rdb, _ := newTestRedis(t)
	h := NewRateLimiter(rdb, RateLimitConfig{Limit: PerMinute(1, 1)}).Handler(okHandler())

	for _, ip := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		rec := hit(h, ip)
		assert.Equal(t, http.StatusOK, rec.Code, ip)
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiterFallsBackWhenRedisDown(t *testing.T) {
	rdb, srv := newTestRedis(t)
	h := NewRateLimiter(rdb, RateLimitConfig{Limit: PerMinute(1, 1)}).Handler(okHandler())

	srv.Close()

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.9:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.9:1").Code)
}

func TestRoleRateLimiterUsesRoleBudget(t *testing.T) {
	rdb, _ := newTestRedis(t)
	limits := RoleLimits{
		core.RoleUser:  PerMinute(1, 1),
		core.RoleAdmin: PerMinute(5, 5),
	}
	h := RoleRateLimiter(rdb, limits)(okHandler())

	send := func(v core.Viewer) int {
		req := httptest.NewRequest(http.MethodPut, "/v1/progress/6f1c1f4e-7d1f-4d55-8a3b-0f9f7d2e9a10", nil)
		req = req.WithContext(WithViewer(req.Context(), v))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	reader := core.Viewer{UserID: "u-1", Role: core.RoleUser}
	assert.Equal(t, http.StatusOK, send(reader))
	assert.Equal(t, http.StatusTooManyRequests, send(reader))

	admin := core.Viewer{UserID: "a-1", Role: core.RoleAdmin}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send(admin))
	}

	unknown := core.Viewer{UserID: "x-1", Role: "librarian"}
	assert.Equal(t, http.StatusOK, send(unknown))
	assert.Equal(t, http.StatusTooManyRequests, send(unknown))
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "/v1/progress/{id}", normalizeEndpoint("/v1/progress/6f1c1f4e-7d1f-4d55-8a3b-0f9f7d2e9a10"))
	assert.Equal(t, "/v1/books/{id}/read", normalizeEndpoint("/v1/books/42/read"))
	assert.Equal(t, "/v1/books/recent", normalizeEndpoint("/v1/books/recent"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded header ignored", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "9.9.9.9:1", "9.9.9.9"},
		{"real ip ignored", map[string]string{"X-Real-IP": "3.3.3.3"}, "9.9.9.9:1", "9.9.9.9"},
		{"remote addr", nil, "9.9.9.9:1", "9.9.9.9"},
		{"no port", nil, "9.9.9.9", "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestLocalLimiterSweepsStaleBuckets(t *testing.T) {
	l := newLocalLimiter()
	clock := time.Now()
	l.now = func() time.Time { return clock }

	l.allow("a", PerMinute(1, 1))
	clock = clock.Add(entryTTL + sweepEvery + time.Second)
	l.allow("b", PerMinute(1, 1))

	_, kept := l.entries["a"]
	assert.False(t, kept)
	assert.Len(t, l.entries, 1)
}
