// AngelaMos | 2026
// cache_test.go

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/harvest-table/internal/config"
)

func newTestCache(t *testing.T, maxBody int) (*ResponseCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewResponseCache(rdb, config.CacheConfig{
		Enabled:      true,
		TTL:          time.Minute,
		Prefix:       "test",
		MaxBodyBytes: maxBody,
	}), mr
}

func countingHandler(calls *atomic.Int32, status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func get(h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestResponseCacheHitAndInvalidate(t *testing.T) {
	rc, mr := newTestCache(t, 0)
	var calls atomic.Int32
	h := rc.Namespace("products")(countingHandler(&calls, http.StatusOK, `{"items":[]}`))

	first := get(h, "/v1/products?page=1")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := get(h, "/v1/products?page=1")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, `{"items":[]}`, second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, int32(1), calls.Load())

	get(h, "/v1/products?page=2")
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, mr.Keys(), 2)

	rc.InvalidateCache(context.Background(), "products")
	assert.Empty(t, mr.Keys())

	get(h, "/v1/products?page=1")
	assert.Equal(t, int32(3), calls.Load())
}

func TestResponseCacheSkipsAuthenticatedAndErrors(t *testing.T) {
	rc, mr := newTestCache(t, 0)

	var calls atomic.Int32
	h := rc.Namespace("products")(countingHandler(&calls, http.StatusOK, `{}`))
	get(h, "/v1/products", "Authorization", "Bearer token")
	get(h, "/v1/products", "Authorization", "Bearer token")
	assert.Equal(t, int32(2), calls.Load())
	assert.Empty(t, mr.Keys())

	var failing atomic.Int32
	bad := rc.Namespace("banners")(countingHandler(&failing, http.StatusInternalServerError, `{}`))
	get(bad, "/v1/banners")
	get(bad, "/v1/banners")
	assert.Equal(t, int32(2), failing.Load())
	assert.Empty(t, mr.Keys())
}

func TestResponseCacheSkipsOversizedBodies(t *testing.T) {
	rc, mr := newTestCache(t, 8)

	var calls atomic.Int32
	h := rc.Namespace("products")(countingHandler(&calls, http.StatusOK, `{"much":"too long"}`))

	rec := get(h, "/v1/products")
	assert.Equal(t, `{"much":"too long"}`, rec.Body.String())
	assert.Empty(t, mr.Keys())
}

func TestResponseCacheDisabledPassesThrough(t *testing.T) {
	var rc *ResponseCache
	var calls atomic.Int32
	h := rc.Namespace("products")(countingHandler(&calls, http.StatusOK, `{}`))

	rec := get(h, "/v1/products")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	rc.InvalidateCache(context.Background(), "products")
}
