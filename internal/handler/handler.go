// Package handler exposes the storefront over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// Catalog is the product service used by the handlers.
type Catalog interface {
	List(ctx context.Context, f product.Filter) ([]product.Product, error)
	Featured(ctx context.Context) ([]product.Product, error)
	Sale(ctx context.Context) (*product.Sale, error)
	Get(ctx context.Context, id string) (*product.Product, error)
	Categories(ctx context.Context) ([]product.Category, error)
	Create(ctx context.Context, p auth.Principal, in product.Input) (*product.Product, error)
	Update(ctx context.Context, p auth.Principal, id string, in product.Input) (*product.Product, error)
	Delete(ctx context.Context, p auth.Principal, id string) error
	Export(ctx context.Context, p auth.Principal) ([]product.Product, error)
	CreateCategory(ctx context.Context, p auth.Principal, name, description string) (*product.Category, error)
	UpdateCategory(ctx context.Context, p auth.Principal, id, name, description string) (*product.Category, error)
	DeleteCategory(ctx context.Context, p auth.Principal, id string) error
}

// Carts is the cart service used by the handlers.
type Carts interface {
	View(ctx context.Context, cartID string) (*cart.View, error)
	Add(ctx context.Context, cartID, productID string, qty int) error
	Update(ctx context.Context, cartID string, quantities map[string]int) error
	Remove(ctx context.Context, cartID, productID string) error
}

// Orders is the order service used by the handlers.
type Orders interface {
	PlaceOrder(ctx context.Context, p auth.Principal, cartID, shippingAddress string) (*order.Order, error)
	CancelOrder(ctx context.Context, p auth.Principal, orderID string) (*order.Order, error)
	SetStatus(ctx context.Context, p auth.Principal, orderID, status string) (*order.Order, error)
	DeleteOrder(ctx context.Context, p auth.Principal, orderID string) error
	Get(ctx context.Context, p auth.Principal, orderID string) (*order.Order, error)
	ListMine(ctx context.Context, p auth.Principal, status string, page int) (*order.Page, error)
	ListAll(ctx context.Context, p auth.Principal, f order.ListFilter) (*order.Page, error)
}

// Users is the account service used by the handlers.
type Users interface {
	Register(ctx context.Context, r user.Registration) (*user.User, error)
	Authenticate(ctx context.Context, login, password string) (*user.User, error)
	Get(ctx context.Context, id string) (*user.User, error)
	List(ctx context.Context, p auth.Principal) ([]user.User, error)
	ToggleAdmin(ctx context.Context, p auth.Principal, id string) (*user.User, error)
	Delete(ctx context.Context, p auth.Principal, id string) error
}

// Sessions creates and validates browser sessions.
type Sessions interface {
	Create(ctx context.Context, p auth.Principal, fingerprint string) (*auth.Session, error)
	Resolve(ctx context.Context, id, fingerprint string) (*auth.Session, error)
	Elevate(ctx context.Context, s *auth.Session, p auth.Principal) (*auth.Session, error)
	Destroy(ctx context.Context, id string) error
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// CookieName is the name of the session cookie.
	CookieName string
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
	// SessionTTL is the cookie Max-Age. It should match the session idle
	// timeout.
	SessionTTL time.Duration
}

// Handler serves the storefront JSON API.
type Handler struct {
	catalog  Catalog
	carts    Carts
	orders   Orders
	users    Users
	sessions Sessions
	cfg      Config
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	catalog Catalog,
	carts Carts,
	orders Orders,
	users Users,
	sessions Sessions,
) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "shop_session"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	return &Handler{
		catalog:  catalog,
		carts:    carts,
		orders:   orders,
		users:    users,
		sessions: sessions,
		cfg:      cfg,
	}
}

// Routes returns the API router. Every /api route runs behind the session
// middleware.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(h.withSession)

		r.Get("/products", h.ListProducts)
		r.Get("/products/featured", h.FeaturedProducts)
		r.Get("/products/sale", h.SaleProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/categories", h.ListCategories)

		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)
		r.Get("/me", h.Me)

		r.Get("/cart", h.ViewCart)
		r.Post("/cart/items", h.AddCartItem)
		r.Put("/cart/items", h.UpdateCart)
		r.Delete("/cart/items/{productId}", h.RemoveCartItem)

		r.Group(func(r chi.Router) {
			r.Use(requireLogin)

			r.Post("/checkout", h.Checkout)
			r.Get("/orders", h.ListMyOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Post("/orders/{id}/cancel", h.CancelOrder)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)

				r.Get("/orders", h.AdminListOrders)
				r.Put("/orders/{id}/status", h.AdminSetOrderStatus)
				r.Delete("/orders/{id}", h.AdminDeleteOrder)

				r.Get("/users", h.AdminListUsers)
				r.Post("/users/{id}/toggle-admin", h.AdminToggleAdmin)
				r.Delete("/users/{id}", h.AdminDeleteUser)

				r.Post("/products", h.AdminCreateProduct)
				r.Put("/products/{id}", h.AdminUpdateProduct)
				r.Delete("/products/{id}", h.AdminDeleteProduct)
				r.Get("/products/export.csv", h.AdminExportProducts)

				r.Post("/categories", h.AdminCreateCategory)
				r.Put("/categories/{id}", h.AdminUpdateCategory)
				r.Delete("/categories/{id}", h.AdminDeleteCategory)
			})
		})
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
