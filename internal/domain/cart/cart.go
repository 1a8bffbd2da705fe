// Package cart holds the per-session shopping cart and its pricing view.
package cart

import (
	"context"
	"sort"
)

// Cart maps product IDs to requested quantities.
type Cart struct {
	Items map[string]int
}

// New returns an empty cart.
func New() Cart {
	return Cart{Items: make(map[string]int)}
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ProductIDs returns the product IDs in the cart in a stable order.
func (c Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for id := range c.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	out := Cart{Items: make(map[string]int, len(c.Items))}
	for id, qty := range c.Items {
		out.Items[id] = qty
	}
	return out
}

// Store is the session-scoped key-value store for carts. Get returns an
// empty cart for unknown ids.
type Store interface {
	Get(ctx context.Context, cartID string) (Cart, error)
	Set(ctx context.Context, cartID string, c Cart) error
	Clear(ctx context.Context, cartID string) error
}
