// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/harvest-table/internal/core"
	"github.com/carterperez-dev/harvest-table/internal/order"
)

// Counter reports a row count for the dashboard.
type Counter func(ctx context.Context) (int, error)

type OrderStats interface {
	Stats(ctx context.Context) (*order.Stats, error)
}

type Handler struct {
	dbStats      func() sql.DBStats
	redisStats   func() *redis.PoolStats
	redisPing    func(ctx context.Context) error
	dbPing       func(ctx context.Context) error
	users        Counter
	products     Counter
	unread       Counter
	orders       OrderStats
	liveSessions func() int
}

type HandlerConfig struct {
	DBStats      func() sql.DBStats
	RedisStats   func() *redis.PoolStats
	RedisPing    func(ctx context.Context) error
	DBPing       func(ctx context.Context) error
	Users        Counter
	Products     Counter
	Unread       Counter
	Orders       OrderStats
	LiveSessions func() int
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:      cfg.DBStats,
		redisStats:   cfg.RedisStats,
		redisPing:    cfg.RedisPing,
		dbPing:       cfg.DBPing,
		users:        cfg.Users,
		products:     cfg.Products,
		unread:       cfg.Unread,
		orders:       cfg.Orders,
		liveSessions: cfg.LiveSessions,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats/store", h.GetStoreStats)
		r.Get("/stats/system", h.GetSystemStats)
	})
}

// GetStoreStats gathers the store counters the admin landing page shows.
func (h *Handler) GetStoreStats(w http.ResponseWriter, r *http.Request) {
	var resp StoreStatsResponse

	g, ctx := errgroup.WithContext(r.Context())

	count := func(c Counter, dst *int) {
		if c == nil {
			return
		}
		g.Go(func() error {
			n, err := c(ctx)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}

	count(h.users, &resp.Users)
	count(h.products, &resp.Products)
	count(h.unread, &resp.UnreadNotifications)

	if h.orders != nil {
		g.Go(func() error {
			st, err := h.orders.Stats(ctx)
			if err != nil {
				return err
			}
			resp.Orders = st
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		core.InternalServerError(w, err)
		return
	}

	if h.liveSessions != nil {
		resp.LiveConnections = h.liveSessions()
	}

	core.OK(w, resp)
}

const pingTimeout = 2 * time.Second

// GetSystemStats pings the database and Redis side by side and reports the
// pools along with process figures.
func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	var resp SystemStatsResponse
	var g errgroup.Group
	g.Go(func() error {
		resp.Database.Healthy = h.dbPing == nil || h.dbPing(ctx) == nil
		return nil
	})
	g.Go(func() error {
		resp.Redis.Healthy = h.redisPing == nil || h.redisPing(ctx) == nil
		return nil
	})
	_ = g.Wait()

	if h.dbStats != nil {
		st := h.dbStats()
		resp.Database.Stats = &DBPoolStats{
			MaxOpenConnections: st.MaxOpenConnections,
			OpenConnections:    st.OpenConnections,
			InUse:              st.InUse,
			Idle:               st.Idle,
			WaitCount:          st.WaitCount,
			WaitDuration:       st.WaitDuration.String(),
		}
	}
	if h.redisStats != nil {
		st := h.redisStats()
		resp.Redis.Stats = &RedisPoolStats{
			Hits:       st.Hits,
			Misses:     st.Misses,
			Timeouts:   st.Timeouts,
			TotalConns: st.TotalConns,
			IdleConns:  st.IdleConns,
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	resp.Runtime = RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		MemAlloc:     mem.Alloc,
		NumGC:        mem.NumGC,
	}

	core.OK(w, resp)
}

type StoreStatsResponse struct {
	Users               int          `json:"users"`
	Products            int          `json:"products"`
	UnreadNotifications int          `json:"unread_notifications"`
	LiveConnections     int          `json:"live_connections"`
	Orders              *order.Stats `json:"orders,omitempty"`
}

type SystemStatsResponse struct {
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
	Runtime  RuntimeStats   `json:"runtime"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
