// AngelaMos | 2026
// service_test.go

package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/harvest-table/internal/cart"
	"github.com/carterperez-dev/harvest-table/internal/core"
	"github.com/carterperez-dev/harvest-table/internal/profile"
	"github.com/carterperez-dev/harvest-table/internal/queue"
)

type memRepo struct {
	products map[string]PricedProduct
	orders   map[string]*Order
	items    map[string][]Item
}

func newMemRepo() *memRepo {
	return &memRepo{
		products: make(map[string]PricedProduct),
		orders:   make(map[string]*Order),
		items:    make(map[string][]Item),
	}
}

func (m *memRepo) addProduct(name, price string, active bool) string {
	id := uuid.NewString()
	m.products[id] = PricedProduct{
		ID:       id,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		IsActive: active,
	}
	return id
}

func (m *memRepo) PricedProducts(_ context.Context, ids []string) (map[string]PricedProduct, error) {
	out := make(map[string]PricedProduct)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memRepo) Create(_ context.Context, o *Order) error {
	cp := *o
	cp.Items = nil
	m.orders[o.ID] = &cp
	return nil
}

func (m *memRepo) InsertItems(_ context.Context, items []Item) error {
	for _, it := range items {
		m.items[it.OrderID] = append(m.items[it.OrderID], it)
	}
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memRepo) GetByTrackingCode(_ context.Context, code string) (*Order, error) {
	for _, o := range m.orders {
		if o.TrackingCode == code {
			cp := *o
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memRepo) ListForUser(_ context.Context, userID string, _, _ int) ([]Order, int, error) {
	var out []Order
	for _, o := range m.orders {
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

func (m *memRepo) List(_ context.Context, _ ListOrdersParams) ([]Order, int, error) {
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (m *memRepo) Items(_ context.Context, orderIDs ...string) (map[string][]Item, error) {
	out := make(map[string][]Item)
	for _, id := range orderIDs {
		out[id] = m.items[id]
	}
	return out, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, o *Order) error {
	if _, ok := m.orders[o.ID]; !ok {
		return core.ErrNotFound
	}
	cp := *o
	cp.Items = nil
	m.orders[o.ID] = &cp
	return nil
}

func (m *memRepo) CountByStatus(_ context.Context) ([]StatusCount, error) {
	counts := make(map[Status]int)
	for _, o := range m.orders {
		counts[o.Status]++
	}
	out := make([]StatusCount, 0, len(counts))
	for st, n := range counts {
		out = append(out, StatusCount{Status: st, Count: n})
	}
	return out, nil
}

func (m *memRepo) Revenue(_ context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, o := range m.orders {
		if o.Status == StatusDelivered {
			total = total.Add(o.TotalAmount)
		}
	}
	return total, nil
}

type memCart struct {
	lines   map[string][]cart.Line
	cleared []string
}

func (c *memCart) List(_ context.Context, userID string) ([]cart.Line, error) {
	return c.lines[userID], nil
}

func (c *memCart) Add(context.Context, string, string, int) error            { return nil }
func (c *memCart) UpdateQuantity(context.Context, string, string, int) error { return nil }
func (c *memCart) Remove(context.Context, string, string) error              { return nil }

func (c *memCart) Clear(_ context.Context, userID string) error {
	c.cleared = append(c.cleared, userID)
	delete(c.lines, userID)
	return nil
}

// directTx runs fn without a transaction and records the outcome.
type directTx struct {
	err error
}

func (d *directTx) InTx(_ context.Context, fn func(tx core.DBTX) error) error {
	d.err = fn(nil)
	return d.err
}

type profileStub map[string]*profile.Profile

func (p profileStub) Get(_ context.Context, userID string) (*profile.Profile, error) {
	if pr, ok := p[userID]; ok {
		return pr, nil
	}
	return nil, core.ErrNotFound
}

type recorder struct {
	mu         sync.Mutex
	dispatched []string
	events     []any
	notified   []string
	published  []string
}

func (r *recorder) Dispatch(_ context.Context, q string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched = append(r.dispatched, q)
	r.events = append(r.events, v)
	return nil
}

func (r *recorder) Notify(_ context.Context, kind, _, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, kind)
}

func (r *recorder) Publish(_ context.Context, tbl, action string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, tbl+":"+action)
}

type fixture struct {
	repo     *memRepo
	carts    *memCart
	tx       *directTx
	profiles profileStub
	rec      *recorder
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMemRepo(),
		carts:    &memCart{lines: make(map[string][]cart.Line)},
		tx:       &directTx{},
		profiles: profileStub{},
		rec:      &recorder{},
	}
	f.svc = NewService(Deps{
		Tx:         f.tx,
		Repo:       f.repo,
		NewRepo:    func(core.DBTX) Repository { return f.repo },
		NewCart:    func(core.DBTX) cart.Repository { return f.carts },
		Profiles:   f.profiles,
		Dispatcher: f.rec,
		Notifier:   f.rec,
		Live:       f.rec,
	})
	return f
}

func guestRequest(items ...CheckoutItem) CheckoutRequest {
	return CheckoutRequest{
		CustomerName: "Guest Shopper",
		Email:        "Guest@Example.com ",
		Phone:        "555-0100",
		AddressLine1: "1 Orchard Lane",
		City:         "Springfield",
		PostalCode:   "12345",
		Items:        items,
	}
}

func TestCheckoutGuest(t *testing.T) {
	f := newFixture()
	apple := f.repo.addProduct("Apple", "1.25", true)
	bread := f.repo.addProduct("Bread", "4.50", true)

	o, err := f.svc.Checkout(context.Background(), Customer{}, guestRequest(
		CheckoutItem{ProductID: apple, Quantity: 2},
		CheckoutItem{ProductID: bread, Quantity: 1},
		CheckoutItem{ProductID: apple, Quantity: 1},
	))
	require.NoError(t, err)

	assert.True(t, o.IsGuest())
	assert.Equal(t, "guest@example.com", o.Email)
	assert.Equal(t, PaymentMethodCOD, o.PaymentMethod)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, ShippingNotShipped, o.ShippingStatus)
	assert.Regexp(t, `^HT-[0-9A-Za-z]{27}$`, o.TrackingCode)
	assert.True(t, decimal.RequireFromString("8.25").Equal(o.TotalAmount))

	require.Len(t, o.Items, 2)
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.Equal(t, "Apple", o.Items[0].ProductName)

	assert.Contains(t, f.repo.orders, o.ID)
	assert.Len(t, f.repo.items[o.ID], 2)
	assert.Empty(t, f.carts.cleared)

	assert.Equal(t, []string{queue.OrderConfirmedQueue}, f.rec.dispatched)
	ev, ok := f.rec.events[0].(queue.OrderConfirmedEvent)
	require.True(t, ok)
	assert.Equal(t, o.TrackingCode, ev.TrackingCode)
	assert.Equal(t, "8.25", ev.TotalAmount)
	assert.Empty(t, ev.UserID)
	assert.Len(t, f.rec.notified, 1)
	assert.Equal(t, []string{"orders:INSERT"}, f.rec.published)
}

func TestCheckoutGuestWithoutItems(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Checkout(context.Background(), Customer{}, guestRequest())
	require.ErrorIs(t, err, core.ErrEmptyCart)
	assert.Empty(t, f.repo.orders)
	assert.Empty(t, f.rec.dispatched)
}

func TestCheckoutGuestMissingDelivery(t *testing.T) {
	f := newFixture()
	apple := f.repo.addProduct("Apple", "1.25", true)

	req := guestRequest(CheckoutItem{ProductID: apple, Quantity: 1})
	req.Phone = ""
	req.City = "  "

	_, err := f.svc.Checkout(context.Background(), Customer{}, req)

	var missing *MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []string{"phone", "city"}, missing.Fields)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCheckoutRejectsInactiveProduct(t *testing.T) {
	f := newFixture()
	apple := f.repo.addProduct("Apple", "1.25", true)
	gone := f.repo.addProduct("Retired", "9.99", false)

	_, err := f.svc.Checkout(context.Background(), Customer{}, guestRequest(
		CheckoutItem{ProductID: apple, Quantity: 1},
		CheckoutItem{ProductID: gone, Quantity: 1},
	))

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, gone, unavailable.ProductID)
	assert.Empty(t, f.repo.orders)
}

func TestCheckoutSignedInFromCart(t *testing.T) {
	f := newFixture()
	userID := uuid.NewString()
	apple := f.repo.addProduct("Apple", "1.25", true)
	bread := f.repo.addProduct("Bread", "4.50", true)

	f.carts.lines[userID] = []cart.Line{
		{ID: uuid.NewString(), UserID: userID, ProductID: apple, Quantity: 4},
		{ID: uuid.NewString(), UserID: userID, ProductID: bread, Quantity: 2},
	}
	f.profiles[userID] = &profile.Profile{
		ID:           userID,
		FullName:     "Saved Name",
		Phone:        "555-0199",
		AddressLine1: "9 Saved Road",
		City:         "Shelbyville",
		State:        "OR",
		PostalCode:   "97000",
	}

	o, err := f.svc.Checkout(context.Background(),
		Customer{UserID: userID, Email: "member@example.com"},
		CheckoutRequest{CustomerName: "Override Name"},
	)
	require.NoError(t, err)

	require.NotNil(t, o.UserID)
	assert.Equal(t, userID, *o.UserID)
	assert.Equal(t, "Override Name", o.CustomerName)
	assert.Equal(t, "member@example.com", o.Email)
	assert.Equal(t, "555-0199", o.Phone)
	assert.Equal(t, "9 Saved Road", o.AddressLine1)
	assert.Equal(t, "OR", o.State)
	assert.True(t, decimal.RequireFromString("14").Equal(o.TotalAmount))

	assert.Equal(t, []string{userID}, f.carts.cleared)
	assert.Empty(t, f.carts.lines[userID])

	ev := f.rec.events[0].(queue.OrderConfirmedEvent)
	assert.Equal(t, userID, ev.UserID)
}

func TestCheckoutSignedInExplicitItemsKeepCart(t *testing.T) {
	f := newFixture()
	userID := uuid.NewString()
	apple := f.repo.addProduct("Apple", "1.25", true)
	f.carts.lines[userID] = []cart.Line{{ID: uuid.NewString(), ProductID: apple, Quantity: 9}}

	req := guestRequest(CheckoutItem{ProductID: apple, Quantity: 1})
	req.Email = ""

	o, err := f.svc.Checkout(context.Background(),
		Customer{UserID: userID, Email: "member@example.com"}, req)
	require.NoError(t, err)

	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Empty(t, f.carts.cleared)
	assert.Len(t, f.carts.lines[userID], 1)
}

func TestCheckoutSignedInEmptyCart(t *testing.T) {
	f := newFixture()
	userID := uuid.NewString()
	f.profiles[userID] = &profile.Profile{
		ID: userID, FullName: "A", Phone: "1", AddressLine1: "x", City: "y", PostalCode: "z",
	}

	_, err := f.svc.Checkout(context.Background(),
		Customer{UserID: userID, Email: "member@example.com"}, CheckoutRequest{})
	require.ErrorIs(t, err, core.ErrEmptyCart)
}

func TestCheckoutPartialAddressDoesNotMixProfile(t *testing.T) {
	f := newFixture()
	userID := uuid.NewString()
	apple := f.repo.addProduct("Apple", "1.25", true)
	f.profiles[userID] = &profile.Profile{
		ID: userID, FullName: "A", Phone: "1",
		AddressLine1: "9 Saved Road", City: "Shelbyville", PostalCode: "97000",
	}

	_, err := f.svc.Checkout(context.Background(),
		Customer{UserID: userID, Email: "member@example.com"},
		CheckoutRequest{
			AddressLine1: "2 New Street",
			Items:        []CheckoutItem{{ProductID: apple, Quantity: 1}},
		},
	)

	var missing *MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []string{"city", "postal_code"}, missing.Fields)
}

func TestCheckoutProfileLookupFailure(t *testing.T) {
	f := newFixture()
	boom := errors.New("db down")
	f.svc.deps.Profiles = failingProfiles{err: boom}

	_, err := f.svc.Checkout(context.Background(),
		Customer{UserID: uuid.NewString(), Email: "m@example.com"}, CheckoutRequest{})
	require.ErrorIs(t, err, boom)
}

type failingProfiles struct{ err error }

func (f failingProfiles) Get(context.Context, string) (*profile.Profile, error) {
	return nil, f.err
}

func TestMergeItems(t *testing.T) {
	merged := mergeItems([]CheckoutItem{
		{ProductID: "b", Quantity: 1},
		{ProductID: "a", Quantity: 2},
		{ProductID: "b", Quantity: 3},
	})

	assert.Equal(t, []CheckoutItem{
		{ProductID: "b", Quantity: 4},
		{ProductID: "a", Quantity: 2},
	}, merged)
}

func TestGetForUserHidesOtherCustomersOrders(t *testing.T) {
	f := newFixture()
	owner := uuid.NewString()
	apple := f.repo.addProduct("Apple", "1.25", true)

	req := guestRequest(CheckoutItem{ProductID: apple, Quantity: 1})
	o, err := f.svc.Checkout(context.Background(), Customer{UserID: owner, Email: "o@example.com"}, req)
	require.NoError(t, err)

	got, err := f.svc.GetForUser(context.Background(), owner, o.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)

	_, err = f.svc.GetForUser(context.Background(), uuid.NewString(), o.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTrackTrimsCode(t *testing.T) {
	f := newFixture()
	apple := f.repo.addProduct("Apple", "1.25", true)

	o, err := f.svc.Checkout(context.Background(), Customer{}, guestRequest(
		CheckoutItem{ProductID: apple, Quantity: 2},
	))
	require.NoError(t, err)

	got, err := f.svc.Track(context.Background(), "  "+o.TrackingCode+" ")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Len(t, got.Items, 1)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	apple := f.repo.addProduct("Apple", "1.25", true)

	o, err := f.svc.Checkout(context.Background(), Customer{}, guestRequest(
		CheckoutItem{ProductID: apple, Quantity: 2},
	))
	require.NoError(t, err)
	f.rec.notified = nil
	f.rec.published = nil

	courier := "  FastFood Couriers "
	shipped := string(ShippingInTransit)
	preparing := string(StatusPreparing)

	updated, err := f.svc.UpdateStatus(context.Background(), o.ID, UpdateStatusRequest{
		Status:         &preparing,
		ShippingStatus: &shipped,
		CourierName:    &courier,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPreparing, updated.Status)
	assert.Equal(t, ShippingInTransit, updated.ShippingStatus)
	assert.Equal(t, "FastFood Couriers", updated.CourierName)
	assert.Len(t, f.rec.notified, 1)
	assert.Equal(t, []string{"orders:UPDATE"}, f.rec.published)

	delivered := string(StatusDelivered)
	updated, err = f.svc.UpdateStatus(context.Background(), o.ID, UpdateStatusRequest{Status: &delivered})
	require.NoError(t, err)
	assert.Equal(t, ShippingDelivered, updated.ShippingStatus)

	cancelled := string(StatusCancelled)
	_, err = f.svc.UpdateStatus(context.Background(), o.ID, UpdateStatusRequest{Status: &cancelled})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture()
	apple := f.repo.addProduct("Apple", "1.25", true)

	o, err := f.svc.Checkout(context.Background(), Customer{}, guestRequest(
		CheckoutItem{ProductID: apple, Quantity: 1},
	))
	require.NoError(t, err)

	bogus := "teleported"
	_, err = f.svc.UpdateStatus(context.Background(), o.ID, UpdateStatusRequest{Status: &bogus})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestStats(t *testing.T) {
	f := newFixture()
	apple := f.repo.addProduct("Apple", "2.00", true)

	for range 3 {
		_, err := f.svc.Checkout(context.Background(), Customer{}, guestRequest(
			CheckoutItem{ProductID: apple, Quantity: 1},
		))
		require.NoError(t, err)
	}

	var first string
	for id := range f.repo.orders {
		first = id
		break
	}
	delivered := string(StatusDelivered)
	_, err := f.svc.UpdateStatus(context.Background(), first, UpdateStatusRequest{Status: &delivered})
	require.NoError(t, err)

	st, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.ByStatus[StatusPending])
	assert.Equal(t, 1, st.ByStatus[StatusDelivered])
	assert.True(t, decimal.RequireFromString("2").Equal(st.Revenue))
}
