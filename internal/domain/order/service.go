package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

const (
	instrumentationName = "github.com/xenking/storefront/internal/domain/order"
	defaultPerPage      = 10
	maxPerPage          = 100
	// maxPage keeps (page-1)*perPage far from integer overflow.
	maxPage = 1 << 20
)

// Options configures a Service.
type Options struct {
	// Pricing computes tax and shipping. The zero Policy charges neither.
	Pricing pricing.Policy
	// RestockOnCancel returns item quantities to stock when an order is
	// cancelled.
	RestockOnCancel bool
	// PermissiveAdminStatus lets admins set any valid status regardless of
	// the current one.
	PermissiveAdminStatus bool

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Now            func() time.Time
}

func (o *Options) setDefaults() {
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
	if o.MeterProvider == nil {
		o.MeterProvider = metricnoop.NewMeterProvider()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Service encapsulates checkout and order lifecycle business logic.
type Service struct {
	orders   Repository
	carts    cart.Store
	payments PaymentProcessor
	events   Publisher
	opts     Options

	tracer        trace.Tracer
	placed        metric.Int64Counter
	failed        metric.Int64Counter
	statusChanges metric.Int64Counter
}

// NewService creates an order Service.
func NewService(
	orders Repository,
	carts cart.Store,
	payments PaymentProcessor,
	events Publisher,
	opts Options,
) (*Service, error) {
	opts.setDefaults()
	if events == nil {
		events = NopPublisher{}
	}
	s := &Service{
		orders:   orders,
		carts:    carts,
		payments: payments,
		events:   events,
		opts:     opts,
		tracer:   opts.TracerProvider.Tracer(instrumentationName),
	}

	meter := opts.MeterProvider.Meter(instrumentationName)
	var err error
	if s.placed, err = meter.Int64Counter("shop.orders.placed",
		metric.WithDescription("Orders committed by checkout"),
	); err != nil {
		return nil, errors.Wrap(err, "create placed counter")
	}
	if s.failed, err = meter.Int64Counter("shop.orders.failed",
		metric.WithDescription("Checkouts that did not commit"),
	); err != nil {
		return nil, errors.Wrap(err, "create failed counter")
	}
	if s.statusChanges, err = meter.Int64Counter("shop.orders.status_changes",
		metric.WithDescription("Committed order status changes"),
	); err != nil {
		return nil, errors.Wrap(err, "create status counter")
	}
	return s, nil
}

// PlaceOrder converts the cart into a pending order owned by p. Stock is
// checked and decremented, the order and its items are written and the
// payment is charged in one transaction. The cart is cleared only after
// commit.
func (s *Service) PlaceOrder(ctx context.Context, p auth.Principal, cartID, shippingAddress string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, "place order failed")
			s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", failureReason(rerr))))
		}
		span.End()
	}()

	if !p.Authenticated() {
		return nil, &apperr.UnauthorizedError{Reason: "login required"}
	}
	shippingAddress = strings.TrimSpace(shippingAddress)
	if shippingAddress == "" {
		return nil, &apperr.ValidationError{Field: "shipping_address", Message: "required"}
	}

	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, apperr.Persistence("get cart", err)
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	ids := c.ProductIDs()
	for _, id := range ids {
		if qty := c.Items[id]; qty < 1 {
			return nil, &InvalidQuantityError{ProductID: id, Quantity: qty}
		}
	}

	now := s.opts.Now()
	o := &Order{
		ID:              uuid.New().String(),
		UserID:          p.UserID,
		Status:          StatusPending,
		ShippingAddress: shippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.Int("order.lines", len(ids)))

	err = s.orders.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return apperr.Persistence("lock products", err)
		}
		byID := make(map[string]product.Product, len(locked))
		for _, lp := range locked {
			byID[lp.ID] = lp
		}

		items := make([]Item, 0, len(ids))
		lines := make([]pricing.Line, 0, len(ids))
		for _, id := range ids {
			lp, ok := byID[id]
			if !ok {
				return &apperr.NotFoundError{Entity: "product", ID: id}
			}
			qty := c.Items[id]
			if !lp.InStock(qty) {
				return &InsufficientStockError{ProductID: id, Requested: qty, Available: lp.Stock}
			}
			items = append(items, Item{
				ProductID:   id,
				ProductName: lp.Name,
				Quantity:    qty,
				UnitPrice:   lp.Price,
			})
			lines = append(lines, pricing.Line{UnitPrice: lp.Price, Quantity: qty})
		}

		b := s.opts.Pricing.Quote(lines)
		o.Items = items
		o.Subtotal, o.Tax, o.Shipping, o.Total = b.Subtotal, b.Tax, b.Shipping, b.Total

		if err := tx.InsertOrder(ctx, o); err != nil {
			return apperr.Persistence("insert order", err)
		}
		for _, it := range items {
			ok, err := tx.DecrementStock(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return apperr.Persistence("decrement stock", err)
			}
			if !ok {
				return &InsufficientStockError{
					ProductID: it.ProductID,
					Requested: it.Quantity,
					Available: byID[it.ProductID].Stock,
				}
			}
		}

		if err := s.payments.Charge(ctx, Charge{OrderID: o.ID, UserID: o.UserID, Amount: o.Total}); err != nil {
			if errors.Is(err, ErrPaymentDeclined) {
				return ErrPaymentDeclined
			}
			return apperr.Persistence("charge payment", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.txError("place order", err)
	}
	s.placed.Add(ctx, 1)

	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))
	if err := s.carts.Clear(ctx, cartID); err != nil {
		lg.Warn("Clear cart after checkout", zap.Error(err))
	}
	lg.Info("Order placed",
		zap.String("user_id", o.UserID),
		zap.String("total", o.Total.StringFixed(2)),
	)
	s.publish(ctx, Event{
		Kind:       EventPlaced,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		Total:      o.Total,
		OccurredAt: now,
	})
	return o, nil
}

// CancelOrder cancels an order owned by p. Only pending and processing
// orders can be cancelled; orders of other users are reported as missing.
func (s *Service) CancelOrder(ctx context.Context, p auth.Principal, orderID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.CancelOrder",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if !p.Authenticated() {
		return nil, &apperr.UnauthorizedError{Reason: "login required"}
	}

	var (
		out  *Order
		prev Status
	)
	err := s.orders.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != p.UserID {
			return &apperr.NotFoundError{Entity: "order", ID: orderID}
		}
		if !o.Status.Cancellable() {
			return &InvalidTransitionError{From: o.Status, To: StatusCancelled}
		}
		prev = o.Status
		if err := s.applyStatus(ctx, tx, o, StatusCancelled); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, s.txError("cancel order", err)
	}

	s.statusCommitted(ctx, out, prev)
	return out, nil
}

// SetStatus changes an order's status on behalf of an admin. Unless the
// service runs with PermissiveAdminStatus the lifecycle graph is enforced.
func (s *Service) SetStatus(ctx context.Context, p auth.Principal, orderID, status string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.SetStatus",
		trace.WithAttributes(attribute.String("order.id", orderID), attribute.String("order.status", status)))
	defer span.End()

	if !p.IsAdmin {
		return nil, &apperr.UnauthorizedError{Reason: "admin required"}
	}
	next, err := ParseStatus(status)
	if err != nil {
		return nil, &apperr.ValidationError{Field: "status", Message: err.Error()}
	}

	var (
		out  *Order
		prev Status
	)
	err = s.orders.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !s.opts.PermissiveAdminStatus && !o.Status.CanTransition(next) {
			return &InvalidTransitionError{From: o.Status, To: next}
		}
		prev = o.Status
		if err := s.applyStatus(ctx, tx, o, next); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, s.txError("set order status", err)
	}

	s.statusCommitted(ctx, out, prev)
	return out, nil
}

// DeleteOrder removes an order and its items.
func (s *Service) DeleteOrder(ctx context.Context, p auth.Principal, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "order.DeleteOrder",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if !p.IsAdmin {
		return &apperr.UnauthorizedError{Reason: "admin required"}
	}

	err := s.orders.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Delete(ctx, orderID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return &apperr.NotFoundError{Entity: "order", ID: orderID}
			}
			return apperr.Persistence("delete order", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return s.txError("delete order", err)
	}

	zctx.From(ctx).Info("Order deleted", zap.String("order_id", orderID), zap.String("admin_id", p.UserID))
	s.publish(ctx, Event{Kind: EventDeleted, OrderID: orderID, OccurredAt: s.opts.Now()})
	return nil
}

// Get returns an order with its items. Customers only see their own orders.
func (s *Service) Get(ctx context.Context, p auth.Principal, orderID string) (*Order, error) {
	if !p.Authenticated() {
		return nil, &apperr.UnauthorizedError{Reason: "login required"}
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &apperr.NotFoundError{Entity: "order", ID: orderID}
		}
		return nil, apperr.Persistence("get order", err)
	}
	if o.UserID != p.UserID && !p.IsAdmin {
		return nil, &apperr.NotFoundError{Entity: "order", ID: orderID}
	}
	return o, nil
}

// ListMine returns a page of p's orders, optionally filtered by status.
func (s *Service) ListMine(ctx context.Context, p auth.Principal, status string, page int) (*Page, error) {
	if !p.Authenticated() {
		return nil, &apperr.UnauthorizedError{Reason: "login required"}
	}
	f := ListFilter{UserID: p.UserID, Page: page, PerPage: defaultPerPage}
	if status != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, &apperr.ValidationError{Field: "status", Message: err.Error()}
		}
		f.Status = st
	}
	return s.list(ctx, f)
}

// ListAll returns a page of every user's orders. f.UserID may narrow the
// listing to one customer.
func (s *Service) ListAll(ctx context.Context, p auth.Principal, f ListFilter) (*Page, error) {
	if !p.IsAdmin {
		return nil, &apperr.UnauthorizedError{Reason: "admin required"}
	}
	return s.list(ctx, f)
}

func (s *Service) list(ctx context.Context, f ListFilter) (*Page, error) {
	f.Page = min(max(f.Page, 1), maxPage)
	if f.PerPage <= 0 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
	page, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, apperr.Persistence("list orders", err)
	}
	page.Page, page.PerPage = f.Page, f.PerPage
	return page, nil
}

func (s *Service) lockOrder(ctx context.Context, tx Tx, orderID string) (*Order, error) {
	o, err := tx.GetForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &apperr.NotFoundError{Entity: "order", ID: orderID}
		}
		return nil, apperr.Persistence("lock order", err)
	}
	return o, nil
}

// applyStatus writes next and restocks on cancellation when configured.
func (s *Service) applyStatus(ctx context.Context, tx Tx, o *Order, next Status) error {
	if err := tx.UpdateStatus(ctx, o.ID, next); err != nil {
		return apperr.Persistence("update order status", err)
	}
	if next == StatusCancelled && o.Status != StatusCancelled && s.opts.RestockOnCancel {
		if err := tx.RestockItems(ctx, o.ID); err != nil {
			return apperr.Persistence("restock items", err)
		}
	}
	o.Status = next
	o.UpdatedAt = s.opts.Now()
	return nil
}

func (s *Service) statusCommitted(ctx context.Context, o *Order, prev Status) {
	s.statusChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(prev)),
		attribute.String("to", string(o.Status)),
	))
	zctx.From(ctx).Info("Order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(o.Status)),
	)
	s.publish(ctx, Event{
		Kind:           EventStatusChanged,
		OrderID:        o.ID,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: prev,
		Total:          o.Total,
		OccurredAt:     o.UpdatedAt,
	})
}

func (s *Service) publish(ctx context.Context, e Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		zctx.From(ctx).Warn("Publish order event",
			zap.String("event", string(e.Kind)),
			zap.String("order_id", e.OrderID),
			zap.Error(err),
		)
	}
}

// txError passes domain errors through and wraps anything else, such as a
// failed begin or commit, as a persistence error.
func (s *Service) txError(op string, err error) error {
	if isDomainError(err) {
		return err
	}
	return apperr.Persistence(op, err)
}

func isDomainError(err error) bool {
	var (
		stockErr      *InsufficientStockError
		transitionErr *InvalidTransitionError
		qtyErr        *InvalidQuantityError
		notFoundErr   *apperr.NotFoundError
		validationErr *apperr.ValidationError
		authErr       *apperr.UnauthorizedError
		persistErr    *apperr.PersistenceError
	)
	switch {
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrPaymentDeclined):
		return true
	case errors.As(err, &stockErr), errors.As(err, &transitionErr), errors.As(err, &qtyErr):
		return true
	case errors.As(err, &notFoundErr), errors.As(err, &validationErr), errors.As(err, &authErr):
		return true
	case errors.As(err, &persistErr):
		return true
	}
	return false
}

func failureReason(err error) string {
	var (
		stockErr    *InsufficientStockError
		notFoundErr *apperr.NotFoundError
		persistErr  *apperr.PersistenceError
	)
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrPaymentDeclined):
		return "payment_declined"
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.As(err, &notFoundErr):
		return "not_found"
	case errors.As(err, &persistErr):
		return "persistence"
	}
	return "invalid"
}
