// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/harvest-table/internal/order"
)

type fixedOrders struct{ stats *order.Stats }

func (f fixedOrders) Stats(context.Context) (*order.Stats, error) { return f.stats, nil }

func fixed(n int) Counter {
	return func(context.Context) (int, error) { return n, nil }
}

func passThrough(next http.Handler) http.Handler { return next }

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r, passThrough, passThrough)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStoreStats(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Users:    fixed(12),
		Products: fixed(40),
		Unread:   fixed(3),
		Orders: fixedOrders{&order.Stats{
			Total:    5,
			ByStatus: map[order.Status]int{order.StatusDelivered: 2},
			Revenue:  decimal.RequireFromString("41.50"),
		}},
		LiveSessions: func() int { return 2 },
	})

	rec := serve(h, "/admin/stats/store")
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data StoreStatsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, 12, env.Data.Users)
	assert.Equal(t, 40, env.Data.Products)
	assert.Equal(t, 3, env.Data.UnreadNotifications)
	assert.Equal(t, 2, env.Data.LiveConnections)
	require.NotNil(t, env.Data.Orders)
	assert.Equal(t, 5, env.Data.Orders.Total)
	assert.True(t, decimal.RequireFromString("41.5").Equal(env.Data.Orders.Revenue))
}

func TestStoreStatsCounterFailure(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Users: func(context.Context) (int, error) { return 0, errors.New("db down") },
	})

	assert.Equal(t, http.StatusInternalServerError, serve(h, "/admin/stats/store").Code)
}

func TestSystemStatsReportsUnhealthyRedis(t *testing.T) {
	h := NewHandler(HandlerConfig{
		DBPing:    func(context.Context) error { return nil },
		RedisPing: func(context.Context) error { return errors.New("refused") },
		DBStats:   func() sql.DBStats { return sql.DBStats{OpenConnections: 4, InUse: 1} },
	})

	rec := serve(h, "/admin/stats/system")
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data SystemStatsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.True(t, env.Data.Database.Healthy)
	assert.False(t, env.Data.Redis.Healthy)
	require.NotNil(t, env.Data.Database.Stats)
	assert.Equal(t, 4, env.Data.Database.Stats.OpenConnections)
	assert.Nil(t, env.Data.Redis.Stats)
	assert.NotEmpty(t, env.Data.Runtime.GoVersion)
}
