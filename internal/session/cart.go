// AngelaMos | 2026
// cart.go

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/harvest-table/internal/cart"
)

var ErrAuthRequired = errors.New("authentication required")

type CartBackend interface {
	GetCart(ctx context.Context) (*cart.CartResponse, error)
	AddCartItem(ctx context.Context, productID string, quantity int) error
	UpdateCartItem(ctx context.Context, itemID string, quantity int) error
	RemoveCartItem(ctx context.Context, itemID string) error
	ClearCart(ctx context.Context) error
}

// Cart mirrors the signed-in user's server cart. Every write is followed
// by a full reload; the local copy is never patched.
type Cart struct {
	store   *Store
	backend CartBackend
	logger  *slog.Logger

	mu      sync.Mutex
	userID  string
	items   []cart.LineResponse
	loading bool
	seq     uint64

	unwatch func()
}

func NewCart(store *Store, backend CartBackend, logger *slog.Logger) *Cart {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cart{store: store, backend: backend, logger: logger}
	c.unwatch = store.Watch(c.onSnapshot)
	return c
}

// Close stops following the store.
func (c *Cart) Close() {
	c.unwatch()
}

// onSnapshot runs on the store's task goroutine, so the reload it starts
// runs in its own goroutine.
func (c *Cart) onSnapshot(snap Snapshot) {
	userID := snap.UserID()

	c.mu.Lock()
	if userID == c.userID {
		c.mu.Unlock()
		return
	}
	c.userID = userID
	c.items = nil
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	if userID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := c.reload(ctx, seq, userID); err != nil {
			c.logger.Warn("cart load failed", "user_id", userID, "error", err)
		}
	}()
}

// AddToCart adds quantity (at least one) of productID. Repeat adds of the
// same product merge server side.
func (c *Cart) AddToCart(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	return c.write(ctx, func(ctx context.Context) error {
		return c.backend.AddCartItem(ctx, productID, quantity)
	})
}

// UpdateCartItemQuantity ignores quantities below one. Use RemoveFromCart
// to drop a line.
func (c *Cart) UpdateCartItemQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity < 1 {
		return nil
	}

	return c.write(ctx, func(ctx context.Context) error {
		return c.backend.UpdateCartItem(ctx, itemID, quantity)
	})
}

func (c *Cart) RemoveFromCart(ctx context.Context, itemID string) error {
	return c.write(ctx, func(ctx context.Context) error {
		return c.backend.RemoveCartItem(ctx, itemID)
	})
}

func (c *Cart) ClearCart(ctx context.Context) error {
	return c.write(ctx, c.backend.ClearCart)
}

// Refresh reloads the cart for the current user.
func (c *Cart) Refresh(ctx context.Context) error {
	return c.write(ctx, func(context.Context) error { return nil })
}

func (c *Cart) write(ctx context.Context, op func(ctx context.Context) error) error {
	userID := c.store.Snapshot().UserID()
	if userID == "" {
		return ErrAuthRequired
	}

	if err := op(ctx); err != nil {
		return err
	}

	// The user may have signed out while op ran. Never pin an identity the
	// store has already left; only catch up to the one it holds now.
	c.mu.Lock()
	if c.userID != userID {
		if c.store.Snapshot().UserID() != userID {
			c.mu.Unlock()
			return ErrAuthRequired
		}
		c.userID = userID
		c.items = nil
	}
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	return c.reload(ctx, seq, userID)
}

func (c *Cart) reload(ctx context.Context, seq uint64, userID string) error {
	c.setLoading(seq, true)
	defer c.setLoading(seq, false)

	resp, err := c.backend.GetCart(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seq != seq || c.userID != userID {
		return nil
	}
	c.items = append([]cart.LineResponse(nil), resp.Items...)
	return nil
}

func (c *Cart) setLoading(seq uint64, loading bool) {
	c.mu.Lock()
	if c.seq == seq {
		c.loading = loading
	}
	c.mu.Unlock()
}

func (c *Cart) Items() []cart.LineResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]cart.LineResponse(nil), c.items...)
}

func (c *Cart) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// TotalAmount sums price times quantity over the local copy.
func (c *Cart) TotalAmount() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}
