// AngelaMos | 2026
// service.go

package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/harvest-table/internal/cart"
	"github.com/carterperez-dev/harvest-table/internal/core"
	"github.com/carterperez-dev/harvest-table/internal/mail"
	"github.com/carterperez-dev/harvest-table/internal/notification"
	"github.com/carterperez-dev/harvest-table/internal/profile"
	"github.com/carterperez-dev/harvest-table/internal/queue"
	"github.com/carterperez-dev/harvest-table/internal/realtime"
)

const (
	table              = "orders"
	trackingCodePrefix = "HT-"
	tracerName         = "order"
)

// MissingFieldsError lists delivery fields that neither the request nor
// the customer's profile supplied.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing delivery details: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Unwrap() error {
	return core.ErrInvalidInput
}

// UnavailableError names a product that is unknown or no longer sold.
type UnavailableError struct {
	ProductID string
}

func (e *UnavailableError) Error() string {
	return "product " + e.ProductID + " is not available"
}

func (e *UnavailableError) Unwrap() error {
	return core.ErrInvalidInput
}

type ProfileReader interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, queue string, v any) error
}

type Notifier interface {
	Notify(ctx context.Context, kind, title, message string)
}

type Broadcaster interface {
	Publish(ctx context.Context, table, action string, record any)
}

type Deps struct {
	Tx         core.TxRunner
	Repo       Repository
	NewRepo    func(core.DBTX) Repository
	NewCart    func(core.DBTX) cart.Repository
	Profiles   ProfileReader
	Dispatcher Dispatcher
	Notifier   Notifier
	Live       Broadcaster
}

type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	if deps.NewRepo == nil {
		deps.NewRepo = NewRepository
	}
	if deps.NewCart == nil {
		deps.NewCart = cart.NewRepository
	}
	return &Service{deps: deps}
}

// Checkout places a cash-on-delivery order. Prices are read from the
// catalog inside the transaction. A signed-in customer who sends no items
// checks out their cart, which is emptied in the same transaction.
func (s *Service) Checkout(
	ctx context.Context,
	customer Customer,
	req CheckoutRequest,
) (*Order, error) {
	ctx, span := core.StartSpan(ctx, tracerName, "order.Checkout",
		attribute.Bool("order.guest", customer.IsGuest()),
		attribute.Int("order.request_items", len(req.Items)),
	)
	defer span.End()

	o, err := s.draft(ctx, customer, req)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	err = s.deps.Tx.InTx(ctx, func(tx core.DBTX) error {
		repo := s.deps.NewRepo(tx)
		carts := s.deps.NewCart(tx)

		wanted, fromCart, err := s.requestedItems(ctx, carts, customer, req)
		if err != nil {
			return err
		}

		if err := capturePrices(ctx, repo, o, wanted); err != nil {
			return err
		}

		if err := repo.Create(ctx, o); err != nil {
			return err
		}

		if err := repo.InsertItems(ctx, o.Items); err != nil {
			return err
		}

		if fromCart {
			return carts.Clear(ctx, customer.UserID)
		}
		return nil
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.String("order.total", o.TotalAmount.StringFixed(2)),
	)

	slog.InfoContext(ctx, "order placed",
		"order_id", o.ID,
		"tracking_code", o.TrackingCode,
		"guest", o.IsGuest(),
		"total", o.TotalAmount.StringFixed(2),
	)

	s.afterCheckout(ctx, o)

	return o, nil
}

func (s *Service) draft(
	ctx context.Context,
	customer Customer,
	req CheckoutRequest,
) (*Order, error) {
	o := &Order{
		ID:             uuid.New().String(),
		TrackingCode:   trackingCodePrefix + ksuid.New().String(),
		CustomerName:   strings.TrimSpace(req.CustomerName),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:          strings.TrimSpace(req.Phone),
		AddressLine1:   strings.TrimSpace(req.AddressLine1),
		AddressLine2:   strings.TrimSpace(req.AddressLine2),
		City:           strings.TrimSpace(req.City),
		State:          strings.TrimSpace(req.State),
		PostalCode:     strings.TrimSpace(req.PostalCode),
		Notes:          strings.TrimSpace(req.Notes),
		PaymentMethod:  PaymentMethodCOD,
		Status:         StatusPending,
		ShippingStatus: ShippingNotShipped,
	}

	if !customer.IsGuest() {
		userID := customer.UserID
		o.UserID = &userID
		if o.Email == "" {
			o.Email = customer.Email
		}
		if err := s.fillFromProfile(ctx, o, userID); err != nil {
			return nil, err
		}
	}

	if missing := o.missingDelivery(); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	return o, nil
}

// fillFromProfile snapshots saved delivery details into fields the request
// left empty. A customer without a profile keeps the request as is.
func (s *Service) fillFromProfile(ctx context.Context, o *Order, userID string) error {
	if s.deps.Profiles == nil {
		return nil
	}

	p, err := s.deps.Profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load profile for checkout: %w", err)
	}

	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&o.CustomerName, p.FullName)
	fill(&o.Phone, p.Phone)

	// Address lines travel together so a partial override never mixes two
	// addresses.
	if o.AddressLine1 == "" && o.City == "" && o.PostalCode == "" {
		o.AddressLine1 = p.AddressLine1
		o.AddressLine2 = p.AddressLine2
		o.City = p.City
		o.State = p.State
		o.PostalCode = p.PostalCode
	}

	return nil
}

func (s *Service) requestedItems(
	ctx context.Context,
	carts cart.Repository,
	customer Customer,
	req CheckoutRequest,
) ([]CheckoutItem, bool, error) {
	if len(req.Items) > 0 {
		return mergeItems(req.Items), false, nil
	}

	if customer.IsGuest() {
		return nil, false, fmt.Errorf("checkout: %w", core.ErrEmptyCart)
	}

	lines, err := carts.List(ctx, customer.UserID)
	if err != nil {
		return nil, false, err
	}

	if len(lines) == 0 {
		return nil, false, fmt.Errorf("checkout: %w", core.ErrEmptyCart)
	}

	items := make([]CheckoutItem, 0, len(lines))
	for i := range lines {
		items = append(items, CheckoutItem{
			ProductID: lines[i].ProductID,
			Quantity:  lines[i].Quantity,
		})
	}

	return items, true, nil
}

// mergeItems folds repeated products into one line, keeping first-seen
// order.
func mergeItems(items []CheckoutItem) []CheckoutItem {
	index := make(map[string]int, len(items))
	out := make([]CheckoutItem, 0, len(items))

	for _, it := range items {
		if i, ok := index[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}

	return out
}

func capturePrices(
	ctx context.Context,
	repo Repository,
	o *Order,
	wanted []CheckoutItem,
) error {
	ids := make([]string, 0, len(wanted))
	for _, it := range wanted {
		ids = append(ids, it.ProductID)
	}

	products, err := repo.PricedProducts(ctx, ids)
	if err != nil {
		return err
	}

	o.Items = make([]Item, 0, len(wanted))
	for _, it := range wanted {
		p, ok := products[it.ProductID]
		if !ok || !p.IsActive {
			return &UnavailableError{ProductID: it.ProductID}
		}

		o.Items = append(o.Items, Item{
			ID:          uuid.New().String(),
			OrderID:     o.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    it.Quantity,
			Price:       p.Price,
		})
	}

	o.TotalAmount = Total(o.Items)
	return nil
}

// afterCheckout runs once the order is committed. Every step is
// best-effort and never fails the checkout.
func (s *Service) afterCheckout(ctx context.Context, o *Order) {
	if s.deps.Dispatcher != nil {
		if err := s.deps.Dispatcher.Dispatch(ctx, queue.OrderConfirmedQueue, confirmationEvent(o)); err != nil {
			slog.WarnContext(ctx, "order confirmation not queued",
				"order_id", o.ID,
				"error", err,
			)
		}
	}

	if s.deps.Notifier != nil {
		s.deps.Notifier.Notify(ctx, notification.TypeNewOrder,
			"New order "+o.TrackingCode,
			fmt.Sprintf("%s placed an order of %s (%d items).",
				o.CustomerName, o.TotalAmount.StringFixed(2), len(o.Items)),
		)
	}

	if s.deps.Live != nil {
		resp := ToOrderResponse(o)
		s.deps.Live.Publish(ctx, table, realtime.ActionInsert, resp)
	}
}

func confirmationEvent(o *Order) queue.OrderConfirmedEvent {
	lines := make([]mail.OrderLine, 0, len(o.Items))
	for i := range o.Items {
		lines = append(lines, mail.OrderLine{
			Name:     o.Items[i].ProductName,
			Quantity: o.Items[i].Quantity,
			Price:    o.Items[i].Price.StringFixed(2),
		})
	}

	ev := queue.OrderConfirmedEvent{
		OrderConfirmation: mail.OrderConfirmation{
			OrderID:      o.ID,
			TrackingCode: o.TrackingCode,
			CustomerName: o.CustomerName,
			Email:        o.Email,
			Address:      o.Address(),
			TotalAmount:  o.TotalAmount.StringFixed(2),
			Items:        lines,
		},
		CreatedAt: o.CreatedAt,
	}
	if o.UserID != nil {
		ev.UserID = *o.UserID
	}

	return ev
}

// GetForUser returns the order only when userID placed it.
func (s *Service) GetForUser(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.deps.Repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.UserID == nil || *o.UserID != userID {
		return nil, fmt.Errorf("get order: %w", core.ErrNotFound)
	}

	return o, s.attachItems(ctx, o)
}

func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.deps.Repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return o, s.attachItems(ctx, o)
}

func (s *Service) Track(ctx context.Context, code string) (*Order, error) {
	o, err := s.deps.Repo.GetByTrackingCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	return o, s.attachItems(ctx, o)
}

func (s *Service) ListForUser(
	ctx context.Context,
	userID string,
	page, pageSize int,
) ([]Order, int, error) {
	params := ListOrdersParams{Page: page, PageSize: pageSize}
	params.Normalize()

	orders, total, err := s.deps.Repo.ListForUser(ctx, userID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, err
	}

	return orders, total, s.attachItems(ctx, ordersPtrs(orders)...)
}

func (s *Service) List(ctx context.Context, params ListOrdersParams) ([]Order, int, error) {
	params.Normalize()

	orders, total, err := s.deps.Repo.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, s.attachItems(ctx, ordersPtrs(orders)...)
}

// UpdateStatus applies an admin change. Delivered and cancelled orders are
// final.
func (s *Service) UpdateStatus(
	ctx context.Context,
	orderID string,
	req UpdateStatusRequest,
) (*Order, error) {
	o, err := s.deps.Repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status.IsFinal() {
		return nil, fmt.Errorf("update order %s: status %s is final: %w",
			orderID, o.Status, core.ErrConflict)
	}

	previous := o.Status

	if req.Status != nil {
		st, err := ParseStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		o.Status = st
	}
	if req.ShippingStatus != nil {
		ss, err := ParseShippingStatus(*req.ShippingStatus)
		if err != nil {
			return nil, err
		}
		o.ShippingStatus = ss
	}
	if req.CourierName != nil {
		o.CourierName = strings.TrimSpace(*req.CourierName)
	}
	if req.CourierTrackingNumber != nil {
		o.CourierTrackingNumber = strings.TrimSpace(*req.CourierTrackingNumber)
	}

	if o.Status == StatusDelivered {
		o.ShippingStatus = ShippingDelivered
	}

	if err := s.deps.Repo.UpdateStatus(ctx, o); err != nil {
		return nil, err
	}

	if err := s.attachItems(ctx, o); err != nil {
		return nil, err
	}

	if s.deps.Live != nil {
		s.deps.Live.Publish(ctx, table, realtime.ActionUpdate, ToOrderResponse(o))
	}

	if previous != o.Status && s.deps.Notifier != nil {
		s.deps.Notifier.Notify(ctx, notification.TypeOrderUpdate,
			"Order "+o.TrackingCode+" updated",
			fmt.Sprintf("Status changed from %s to %s.", previous, o.Status),
		)
	}

	return o, nil
}

type Stats struct {
	ByStatus map[Status]int  `json:"by_status"`
	Total    int             `json:"total"`
	Revenue  decimal.Decimal `json:"revenue"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.deps.Repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	revenue, err := s.deps.Repo.Revenue(ctx)
	if err != nil {
		return nil, err
	}

	st := &Stats{ByStatus: make(map[Status]int, len(statuses)), Revenue: revenue}
	for _, c := range counts {
		st.ByStatus[c.Status] = c.Count
		st.Total += c.Count
	}

	return st, nil
}

func (s *Service) attachItems(ctx context.Context, orders ...*Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	items, err := s.deps.Repo.Items(ctx, ids...)
	if err != nil {
		return err
	}

	for _, o := range orders {
		o.Items = items[o.ID]
	}

	return nil
}

func ordersPtrs(orders []Order) []*Order {
	out := make([]*Order, len(orders))
	for i := range orders {
		out[i] = &orders[i]
	}
	return out
}

