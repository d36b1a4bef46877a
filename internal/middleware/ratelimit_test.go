// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newThrottle(t *testing.T, name string, requests int, opts ...ThrottleOption) (*Throttle, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	opts = append([]ThrottleOption{WithThrottleLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewThrottle(rdb, name, Every(time.Minute, requests, requests), opts...), mr
}

func hit(h http.Handler, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = ip + ":51000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestThrottleLimitsPerAddress(t *testing.T) {
	th, _ := newThrottle(t, "login", 2)
	h := th.Handler(echoUser())

	assert.Equal(t, http.StatusNoContent, hit(h, "/v1/auth/login", "10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, hit(h, "/v1/auth/login", "10.0.0.1").Code)

	rec := hit(h, "/v1/auth/login", "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))

	assert.Equal(t, http.StatusNoContent, hit(h, "/v1/auth/login", "10.0.0.2").Code)
}

func TestThrottlePerRouteKeepsBudgetsApart(t *testing.T) {
	th, _ := newThrottle(t, "review", 1, WithKey(PerRoute(ByIP)))
	h := th.Handler(echoUser())

	first := "/v1/products/6f0d4f7e-9d8b-4a55-8f0c-5b2f0f6d2a10/reviews"
	second := "/v1/products/0b6fce2e-61a7-4b42-9a47-3c3c1c9dd001/reviews"

	assert.Equal(t, http.StatusNoContent, hit(h, first, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, second, "10.0.0.1").Code,
		"product ids collapse into one route")
	assert.Equal(t, http.StatusNoContent, hit(h, "/v1/orders", "10.0.0.1").Code)
}

func TestThrottleFallsBackWhenRedisIsDown(t *testing.T) {
	th, mr := newThrottle(t, "global", 1)
	h := th.Handler(echoUser())
	mr.Close()

	assert.Equal(t, http.StatusNoContent, hit(h, "/v1/products", "10.0.0.9").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "/v1/products", "10.0.0.9").Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.4:4000"
	assert.Equal(t, "192.168.1.4", ClientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.1, 203.0.113.9")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}

func TestRouteShape(t *testing.T) {
	assert.Equal(t, "/v1/orders/{id}", routeShape("/v1/orders/6f0d4f7e-9d8b-4a55-8f0c-5b2f0f6d2a10"))
	assert.Equal(t, "/v1/banners/{id}", routeShape("/v1/banners/42/"))
	assert.Equal(t, "/v1/orders/track", routeShape("/v1/orders/track"))
}
