// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

// KeyFunc names the bucket a request draws from.
type KeyFunc func(*http.Request) string

// Throttle caps requests per key with a Redis GCRA limiter. While Redis is
// unreachable each instance enforces the same limit from local buckets.
type Throttle struct {
	name   string
	limit  redis_rate.Limit
	key    KeyFunc
	shared *redis_rate.Limiter
	local  *localBuckets
	logger *slog.Logger
}

type ThrottleOption func(*Throttle)

func WithKey(fn KeyFunc) ThrottleOption {
	return func(t *Throttle) { t.key = fn }
}

func WithThrottleLogger(l *slog.Logger) ThrottleOption {
	return func(t *Throttle) { t.logger = l }
}

func NewThrottle(
	rdb *redis.Client,
	name string,
	limit redis_rate.Limit,
	opts ...ThrottleOption,
) *Throttle {
	t := &Throttle{
		name:   name,
		limit:  limit,
		key:    ByIP,
		shared: redis_rate.NewLimiter(rdb),
		local:  &localBuckets{entries: make(map[string]*bucket)},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Throttle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "throttle:" + t.name + ":" + t.key(r)

		res, err := t.shared.Allow(r.Context(), key, t.limit)
		if err != nil {
			t.logger.Warn("shared throttle unavailable, using local buckets",
				"throttle", t.name,
				"error", err,
			)
			res = t.local.allow(key, t.limit, time.Now())
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(t.limit.Rate))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
		h.Set("X-RateLimit-Reset",
			strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))

		if res.Allowed > 0 {
			next.ServeHTTP(w, r)
			return
		}

		retry := max(int(res.RetryAfter.Seconds()), 1)
		h.Set("Retry-After", strconv.Itoa(retry))
		core.JSONError(w, core.RateLimitedError(retry))
	})
}

// ClientIP trusts the hop appended by the nearest proxy, which is the last
// X-Forwarded-For entry.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ByIP(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// ByUser keys signed-in shoppers by account and guests by address.
func ByUser(r *http.Request) string {
	if id := GetUserID(r.Context()); id != "" {
		return "user:" + id
	}
	return ByIP(r)
}

// PerRoute narrows base to the request path with identifiers collapsed, so a
// tight limit on one route never spends the caller's budget on others.
func PerRoute(base KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		return base(r) + ":" + routeShape(r.URL.Path)
	}
}

func routeShape(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if _, err := uuid.Parse(p); err == nil {
			parts[i] = "{id}"
			continue
		}
		if _, err := strconv.ParseUint(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func Every(period time.Duration, requests, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: requests, Burst: burst, Period: period}
}

const bucketIdle = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type localBuckets struct {
	mu        sync.Mutex
	entries   map[string]*bucket
	lastSweep time.Time
}

func (b *localBuckets) allow(
	key string,
	limit redis_rate.Limit,
	now time.Time,
) *redis_rate.Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastSweep) > bucketIdle {
		for k, e := range b.entries {
			if now.Sub(e.lastSeen) > bucketIdle {
				delete(b.entries, k)
			}
		}
		b.lastSweep = now
	}

	perSecond := float64(limit.Rate) / limit.Period.Seconds()
	e, ok := b.entries[key]
	if !ok {
		e = &bucket{limiter: rate.NewLimiter(rate.Limit(perSecond), limit.Burst)}
		b.entries[key] = e
	}
	e.lastSeen = now

	interval := time.Duration(float64(time.Second) / perSecond)
	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  int(e.limiter.TokensAt(now)),
		ResetAfter: interval,
		RetryAfter: -1,
	}
	if e.limiter.AllowN(now, 1) {
		res.Allowed = 1
		res.Remaining = max(res.Remaining-1, 0)
		return res
	}
	res.RetryAfter = interval
	return res
}
