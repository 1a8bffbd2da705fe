package order

import (
	"context"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

// --- Mock implementations ---

// memState is the committed contents of the in-memory database.
type memState struct {
	products map[string]product.Product
	orders   map[string]*Order
}

func (s memState) clone() memState {
	out := memState{
		products: make(map[string]product.Product, len(s.products)),
		orders:   make(map[string]*Order, len(s.orders)),
	}
	for id, p := range s.products {
		out.products[id] = p
	}
	for id, o := range s.orders {
		cp := *o
		cp.Items = append([]Item(nil), o.Items...)
		out.orders[id] = &cp
	}
	return out
}

// memRepo serializes transactions behind a single mutex, which models
// row locks held for the whole transaction. A transaction works on a copy
// of the state that replaces the committed state only on success.
type memRepo struct {
	mu    sync.Mutex
	state memState

	txCount      int
	insertErr    error
	decrementErr error
	beforeLock   func()
}

func newMemRepo(products ...product.Product) *memRepo {
	r := &memRepo{state: memState{
		products: map[string]product.Product{},
		orders:   map[string]*Order{},
	}}
	for _, p := range products {
		r.state.products[p.ID] = p
	}
	return r
}

func (r *memRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if r.beforeLock != nil {
		r.beforeLock()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.txCount++
	tx := &memTx{repo: r, state: r.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.state.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) List(_ context.Context, f ListFilter) (*Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.state.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		cp := *o
		cp.ItemCount = len(o.Items)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	start := min(f.Offset(), total)
	end := min(start+f.PerPage, total)
	return &Page{Orders: out[start:end], Total: total}, nil
}

func (r *memRepo) product(id string) product.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.products[id]
}

func (r *memRepo) orderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.orders)
}

type memTx struct {
	repo  *memRepo
	state memState
}

func (t *memTx) LockProducts(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := t.state.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	if t.repo.insertErr != nil {
		return t.repo.insertErr
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	t.state.orders[o.ID] = &cp
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, productID string, qty int) (bool, error) {
	if t.repo.decrementErr != nil {
		return false, t.repo.decrementErr
	}
	p, ok := t.state.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	t.state.products[productID] = p
	return true, nil
}

func (t *memTx) GetForUpdate(_ context.Context, id string) (*Order, error) {
	o, ok := t.state.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (t *memTx) UpdateStatus(_ context.Context, id string, status Status) error {
	t.state.orders[id].Status = status
	return nil
}

func (t *memTx) RestockItems(_ context.Context, id string) error {
	for _, it := range t.state.orders[id].Items {
		p := t.state.products[it.ProductID]
		p.Stock += it.Quantity
		t.state.products[it.ProductID] = p
	}
	return nil
}

func (t *memTx) Delete(_ context.Context, id string) error {
	if _, ok := t.state.orders[id]; !ok {
		return ErrNotFound
	}
	delete(t.state.orders, id)
	return nil
}

type memCarts struct {
	mu       sync.Mutex
	carts    map[string]cart.Cart
	clearErr error
}

func newMemCarts() *memCarts { return &memCarts{carts: map[string]cart.Cart{}} }

func (m *memCarts) Get(_ context.Context, id string) (cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carts[id].Clone(), nil
}

func (m *memCarts) Set(_ context.Context, id string, c cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[id] = c.Clone()
	return nil
}

func (m *memCarts) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	delete(m.carts, id)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) kinds() []EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventKind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

// --- Helpers ---

var (
	alice = auth.Principal{UserID: "u-alice", Username: "alice"}
	bob   = auth.Principal{UserID: "u-bob", Username: "bob"}
	admin = auth.Principal{UserID: "u-admin", Username: "admin", IsAdmin: true}
)

func newTestProduct(id, price string, stock int) product.Product {
	return product.Product{
		ID:    id,
		Name:  "Product " + id,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}

type fixture struct {
	repo   *memRepo
	carts  *memCarts
	events *recordingPublisher
	svc    *Service
}

func newFixture(t *testing.T, opts Options, payments PaymentProcessor, products ...product.Product) *fixture {
	t.Helper()
	if opts.Pricing == (pricing.Policy{}) {
		opts.Pricing = pricing.DefaultPolicy()
	}
	f := &fixture{
		repo:   newMemRepo(products...),
		carts:  newMemCarts(),
		events: &recordingPublisher{},
	}
	svc, err := NewService(f.repo, f.carts, payments, f.events, opts)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) fillCart(id string, items map[string]int) {
	f.carts.carts[id] = cart.Cart{Items: items}
}

// placePending places a single-line order for p and returns its ID.
func (f *fixture) placePending(t *testing.T, p auth.Principal, productID string, qty int) string {
	t.Helper()
	cartID := "cart-" + p.UserID
	f.fillCart(cartID, map[string]int{productID: qty})
	o, err := f.svc.PlaceOrder(context.Background(), p, cartID, "1 Main St")
	require.NoError(t, err)
	return o.ID
}

func (f *fixture) setStatus(id string, st Status) {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	f.repo.state.orders[id].Status = st
}

// --- Tests ---

func TestPlaceOrder_HappyPath(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{},
		newTestProduct("a", "10.00", 5),
		newTestProduct("b", "25.00", 5),
	)
	f.fillCart("c1", map[string]int{"a": 2, "b": 1})

	o, err := f.svc.PlaceOrder(context.Background(), alice, "c1", "  1 Main St  ")
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, alice.UserID, o.UserID)
	assert.Equal(t, "1 Main St", o.ShippingAddress)
	assert.Equal(t, "45.00", o.Subtotal.StringFixed(2))
	assert.Equal(t, "4.50", o.Tax.StringFixed(2))
	assert.Equal(t, "15.00", o.Shipping.StringFixed(2))
	assert.Equal(t, "64.50", o.Total.StringFixed(2))
	require.Len(t, o.Items, 2)

	assert.Equal(t, 3, f.repo.product("a").Stock)
	assert.Equal(t, 4, f.repo.product("b").Stock)
	assert.Empty(t, f.carts.carts["c1"].Items)
	assert.Equal(t, []EventKind{EventPlaced}, f.events.kinds())
}

func TestPlaceOrder_RequiresLogin(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "1.00", 1))
	f.fillCart("c1", map[string]int{"a": 1})

	_, err := f.svc.PlaceOrder(context.Background(), auth.Principal{}, "c1", "addr")
	var authErr *apperr.UnauthorizedError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, f.repo.txCount)
}

func TestPlaceOrder_BlankAddress(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "1.00", 1))
	f.fillCart("c1", map[string]int{"a": 1})

	_, err := f.svc.PlaceOrder(context.Background(), alice, "c1", " \t ")
	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "shipping_address", vErr.Field)
	assert.Zero(t, f.repo.txCount)
}

func TestPlaceOrder_EmptyCartOpensNoTransaction(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{})

	_, err := f.svc.PlaceOrder(context.Background(), alice, "nothing", "addr")
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, f.repo.txCount)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "1.00", 5))
	f.fillCart("c1", map[string]int{"a": 0})

	_, err := f.svc.PlaceOrder(context.Background(), alice, "c1", "addr")
	var qErr *InvalidQuantityError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, "a", qErr.ProductID)
	assert.Zero(t, f.repo.txCount)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{},
		newTestProduct("a", "10.00", 5),
		newTestProduct("b", "10.00", 1),
	)
	f.fillCart("c1", map[string]int{"a": 2, "b": 2})

	_, err := f.svc.PlaceOrder(context.Background(), alice, "c1", "addr")
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, InsufficientStockError{ProductID: "b", Requested: 2, Available: 1}, *stockErr)

	assert.Equal(t, 5, f.repo.product("a").Stock)
	assert.Equal(t, 1, f.repo.product("b").Stock)
	assert.Zero(t, f.repo.orderCount())
	assert.Equal(t, map[string]int{"a": 2, "b": 2}, f.carts.carts["c1"].Items)
	assert.Empty(t, f.events.kinds())
}

func TestPlaceOrder_MissingProduct(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
	f.fillCart("c1", map[string]int{"a": 1, "gone": 1})

	_, err := f.svc.PlaceOrder(context.Background(), alice, "c1", "addr")
	var nfErr *apperr.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "product", nfErr.Entity)
	assert.Equal(t, "gone", nfErr.ID)
	assert.Equal(t, 5, f.repo.product("a").Stock)
}

func TestPlaceOrder_FailureRollsBackEverything(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		payments PaymentProcessor
		check    func(t *testing.T, err error)
	}{
		{
			name:     "insert fails",
			setup:    func(f *fixture) { f.repo.insertErr = errors.New("disk full") },
			payments: SimulatedProcessor{},
			check: func(t *testing.T, err error) {
				var pErr *apperr.PersistenceError
				require.ErrorAs(t, err, &pErr)
			},
		},
		{
			name:     "decrement fails",
			setup:    func(f *fixture) { f.repo.decrementErr = errors.New("connection reset") },
			payments: SimulatedProcessor{},
			check: func(t *testing.T, err error) {
				var pErr *apperr.PersistenceError
				require.ErrorAs(t, err, &pErr)
			},
		},
		{
			name:     "payment declined",
			setup:    func(*fixture) {},
			payments: SimulatedProcessor{Decline: true},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrPaymentDeclined)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{}, tt.payments, newTestProduct("a", "10.00", 5))
			tt.setup(f)
			f.fillCart("c1", map[string]int{"a": 3})

			_, err := f.svc.PlaceOrder(context.Background(), alice, "c1", "addr")
			tt.check(t, err)

			assert.Equal(t, 5, f.repo.product("a").Stock)
			assert.Zero(t, f.repo.orderCount())
			assert.Equal(t, map[string]int{"a": 3}, f.carts.carts["c1"].Items)
		})
	}
}

func TestPlaceOrder_CapturesPriceAtPurchase(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
	id := f.placePending(t, alice, "a", 1)

	f.repo.mu.Lock()
	p := f.repo.state.products["a"]
	p.Price = decimal.RequireFromString("99.00")
	f.repo.state.products["a"] = p
	f.repo.mu.Unlock()

	o, err := f.svc.Get(context.Background(), alice, id)
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "10.00", o.Items[0].UnitPrice.StringFixed(2))
}

func TestPlaceOrder_ClearCartFailureKeepsOrder(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
	f.carts.clearErr = errors.New("redis timeout")
	f.fillCart("c1", map[string]int{"a": 1})

	o, err := f.svc.PlaceOrder(context.Background(), alice, "c1", "addr")
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 1, f.repo.orderCount())
}

func TestPlaceOrder_PublishFailureIsIgnored(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
	f.events.err = errors.New("broker unavailable")
	f.fillCart("c1", map[string]int{"a": 1})

	_, err := f.svc.PlaceOrder(context.Background(), alice, "c1", "addr")
	require.NoError(t, err)
}

func TestPlaceOrder_ConcurrentPlacementsNeverOversell(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
	f.fillCart("c-alice", map[string]int{"a": 3})
	f.fillCart("c-bob", map[string]int{"a": 3})

	start := make(chan struct{})
	f.repo.beforeLock = func() { <-start }

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, p := range []auth.Principal{alice, bob} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.PlaceOrder(context.Background(), p, "c-"+p.Username, "addr")
		}()
	}
	close(start)
	wg.Wait()

	var succeeded, failed int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 2, stockErr.Available)
		failed++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, f.repo.product("a").Stock)
	assert.Equal(t, 1, f.repo.orderCount())
}

func TestCancelOrder(t *testing.T) {
	tests := []struct {
		from    Status
		wantErr bool
	}{
		{from: StatusPending},
		{from: StatusProcessing},
		{from: StatusShipped, wantErr: true},
		{from: StatusDelivered, wantErr: true},
		{from: StatusCancelled, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
			id := f.placePending(t, alice, "a", 2)
			f.setStatus(id, tt.from)

			o, err := f.svc.CancelOrder(context.Background(), alice, id)
			if tt.wantErr {
				var trErr *InvalidTransitionError
				require.ErrorAs(t, err, &trErr)
				assert.Equal(t, tt.from, trErr.From)
				assert.Equal(t, StatusCancelled, trErr.To)

				stored, err := f.svc.Get(context.Background(), alice, id)
				require.NoError(t, err)
				assert.Equal(t, tt.from, stored.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, o.Status)
			// Stock is not restored by default.
			assert.Equal(t, 3, f.repo.product("a").Stock)
		})
	}
}

func TestCancelOrder_Twice(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
	id := f.placePending(t, alice, "a", 1)

	_, err := f.svc.CancelOrder(context.Background(), alice, id)
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(context.Background(), alice, id)
	var trErr *InvalidTransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, StatusCancelled, trErr.From)
	assert.Equal(t, []EventKind{EventPlaced, EventStatusChanged}, f.events.kinds())
}

func TestCancelOrder_NotOwner(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
	id := f.placePending(t, alice, "a", 1)

	_, err := f.svc.CancelOrder(context.Background(), bob, id)
	var nfErr *apperr.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "order", nfErr.Entity)

	stored, err := f.svc.Get(context.Background(), alice, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestCancelOrder_RestockWhenEnabled(t *testing.T) {
	f := newFixture(t, Options{RestockOnCancel: true}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
	id := f.placePending(t, alice, "a", 2)
	require.Equal(t, 3, f.repo.product("a").Stock)

	_, err := f.svc.CancelOrder(context.Background(), alice, id)
	require.NoError(t, err)
	assert.Equal(t, 5, f.repo.product("a").Stock)
}

func TestSetStatus_Strict(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusShipped, true},
		{StatusProcessing, StatusDelivered, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusShipped, StatusPending, false},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusShipped, false},
		{StatusCancelled, StatusPending, false},
		{StatusPending, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
			id := f.placePending(t, alice, "a", 1)
			f.setStatus(id, tt.from)

			o, err := f.svc.SetStatus(context.Background(), admin, id, string(tt.to))
			if !tt.ok {
				var trErr *InvalidTransitionError
				require.ErrorAs(t, err, &trErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, o.Status)
		})
	}
}

func TestSetStatus_Permissive(t *testing.T) {
	f := newFixture(t, Options{PermissiveAdminStatus: true}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
	id := f.placePending(t, alice, "a", 1)
	f.setStatus(id, StatusDelivered)

	o, err := f.svc.SetStatus(context.Background(), admin, id, "pending")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
}

func TestSetStatus_Rejections(t *testing.T) {
	f := newFixture(t, Options{PermissiveAdminStatus: true}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
	id := f.placePending(t, alice, "a", 1)
	txBefore := f.repo.txCount

	var authErr *apperr.UnauthorizedError
	_, err := f.svc.SetStatus(context.Background(), alice, id, "bogus")
	require.ErrorAs(t, err, &authErr, "authorization is checked before validation")

	var vErr *apperr.ValidationError
	_, err = f.svc.SetStatus(context.Background(), admin, id, "bogus")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, txBefore, f.repo.txCount)

	var nfErr *apperr.NotFoundError
	_, err = f.svc.SetStatus(context.Background(), admin, "missing", "shipped")
	require.ErrorAs(t, err, &nfErr)
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
	id := f.placePending(t, alice, "a", 1)

	var authErr *apperr.UnauthorizedError
	require.ErrorAs(t, f.svc.DeleteOrder(context.Background(), alice, id), &authErr)

	require.NoError(t, f.svc.DeleteOrder(context.Background(), admin, id))
	assert.Zero(t, f.repo.orderCount())

	var nfErr *apperr.NotFoundError
	require.ErrorAs(t, f.svc.DeleteOrder(context.Background(), admin, id), &nfErr)
	assert.Equal(t, []EventKind{EventPlaced, EventDeleted}, f.events.kinds())
}

func TestGet_Visibility(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "10.00", 5))
	id := f.placePending(t, alice, "a", 1)

	_, err := f.svc.Get(context.Background(), alice, id)
	require.NoError(t, err)
	_, err = f.svc.Get(context.Background(), admin, id)
	require.NoError(t, err)

	var nfErr *apperr.NotFoundError
	_, err = f.svc.Get(context.Background(), bob, id)
	require.ErrorAs(t, err, &nfErr)
}

func TestListMine(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "1.00", 100))
	for range 12 {
		f.placePending(t, alice, "a", 1)
	}
	cancelled := f.placePending(t, alice, "a", 1)
	f.setStatus(cancelled, StatusCancelled)
	f.placePending(t, bob, "a", 1)

	page, err := f.svc.ListMine(context.Background(), alice, "", 2)
	require.NoError(t, err)
	assert.Equal(t, 13, page.Total)
	assert.Len(t, page.Orders, 3)
	assert.Equal(t, 10, page.PerPage)

	page, err = f.svc.ListMine(context.Background(), alice, "cancelled", 0)
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, cancelled, page.Orders[0].ID)
	assert.Equal(t, 1, page.Page)

	var vErr *apperr.ValidationError
	_, err = f.svc.ListMine(context.Background(), alice, "lost", 1)
	require.ErrorAs(t, err, &vErr)
}

func TestList_HugePageIsClamped(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "1.00", 10))
	f.placePending(t, alice, "a", 1)

	page, err := f.svc.ListMine(context.Background(), alice, "", math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, maxPage, page.Page)
	assert.Empty(t, page.Orders)
	assert.Equal(t, 1, page.Total)

	page, err = f.svc.ListAll(context.Background(), admin, ListFilter{Page: math.MaxInt, PerPage: math.MaxInt})
	require.NoError(t, err)
	assert.Equal(t, maxPage, page.Page)
	assert.Equal(t, maxPerPage, page.PerPage)
	assert.Empty(t, page.Orders)

	offset := ListFilter{Page: maxPage, PerPage: maxPerPage}.Offset()
	assert.Positive(t, offset)
}

func TestListAll_AdminOnly(t *testing.T) {
	f := newFixture(t, Options{}, SimulatedProcessor{}, newTestProduct("a", "1.00", 10))
	f.placePending(t, alice, "a", 1)
	f.placePending(t, bob, "a", 1)

	var authErr *apperr.UnauthorizedError
	_, err := f.svc.ListAll(context.Background(), alice, ListFilter{})
	require.ErrorAs(t, err, &authErr)

	page, err := f.svc.ListAll(context.Background(), admin, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestStatus_CanTransition(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusDelivered))
	assert.False(t, StatusDelivered.CanTransition(StatusCancelled))
	assert.False(t, StatusShipped.CanTransition(StatusProcessing))

	_, err := ParseStatus("refunded")
	require.Error(t, err)
}

func TestPlaceOrder_SetsTimestamps(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, Options{Now: func() time.Time { return now }}, SimulatedProcessor{}, newTestProduct("a", "150.00", 1))
	f.fillCart("c1", map[string]int{"a": 1})

	o, err := f.svc.PlaceOrder(context.Background(), alice, "c1", "addr")
	require.NoError(t, err)
	assert.Equal(t, now, o.CreatedAt)
	assert.True(t, o.Shipping.IsZero())
	assert.Equal(t, "165.00", o.Total.StringFixed(2))
}
