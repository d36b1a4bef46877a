// AngelaMos | 2026
// cache.go

package middleware

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // cache key digest, not a security boundary
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/harvest-table/internal/config"
	"github.com/carterperez-dev/harvest-table/internal/core"
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type captureWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.overflow {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.overflow = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// ResponseCache caches successful anonymous GET responses in Redis under
// "<prefix>:<namespace>:<digest>". Writers call InvalidateCache with the same
// namespace after mutating the underlying rows.
type ResponseCache struct {
	rdb redis.UniversalClient
	cfg config.CacheConfig
}

func NewResponseCache(rdb redis.UniversalClient, cfg config.CacheConfig) *ResponseCache {
	return &ResponseCache{rdb: rdb, cfg: cfg}
}

func (rc *ResponseCache) Namespace(namespace string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rc == nil || rc.rdb == nil || !rc.cfg.Enabled {
			return next
		}

		ttl := rc.cfg.TTL
		if ttl <= 0 {
			ttl = 30 * time.Second
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.Header.Get("Authorization") != "" {
				next.ServeHTTP(w, r)
				return
			}

			key := rc.key(namespace, r)

			var hit cachedResponse
			if err := core.GetJSON(r.Context(), rc.rdb, key, &hit); err == nil {
				w.Header().Set("Content-Type", hit.ContentType)
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(hit.Status)
				//nolint:errcheck // best-effort response write
				_, _ = w.Write(hit.Body)
				return
			}

			w.Header().Set("X-Cache", "MISS")
			cw := &captureWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
				limit:          rc.cfg.MaxBodyBytes,
			}
			next.ServeHTTP(cw, r)

			if cw.status != http.StatusOK || cw.overflow {
				return
			}

			entry := cachedResponse{
				Status:      cw.status,
				ContentType: w.Header().Get("Content-Type"),
				Body:        cw.buf.Bytes(),
			}
			if err := core.SetJSON(context.WithoutCancel(r.Context()), rc.rdb, key, entry, ttl); err != nil {
				slog.Warn("response cache store failed", "key", key, "error", err)
			}
		})
	}
}

func (rc *ResponseCache) key(namespace string, r *http.Request) string {
	//nolint:gosec // cache key digest, not a security boundary
	sum := sha1.Sum([]byte(r.URL.Path + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s:%s:%s", rc.cfg.Prefix, namespace, hex.EncodeToString(sum[:]))
}

// InvalidateCache drops every cached response in namespace.
func (rc *ResponseCache) InvalidateCache(ctx context.Context, namespace string) {
	if rc == nil || rc.rdb == nil || !rc.cfg.Enabled {
		return
	}

	pattern := fmt.Sprintf("%s:%s:*", rc.cfg.Prefix, namespace)
	iter := rc.rdb.Scan(ctx, 0, pattern, 200).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.Warn("response cache scan failed", "namespace", namespace, "error", err)
		return
	}

	if len(keys) == 0 {
		return
	}

	if err := rc.rdb.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("response cache invalidation failed",
			"namespace", namespace,
			"error", err,
		)
	}
}
