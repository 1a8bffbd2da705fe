package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, cartID string) {
	v, err := h.carts.View(r.Context(), cartID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, v) })
}

// ViewCart serves GET /api/cart.
func (h *Handler) ViewCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.ensureSession(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.writeCart(w, r, s.CartID)
}

// AddCartItem serves POST /api/cart/items.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	s, err := h.ensureSession(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.carts.Add(r.Context(), s.CartID, req.ProductID, req.Quantity); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeCart(w, r, s.CartID)
}

// UpdateCart serves PUT /api/cart/items.
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	var req cartUpdateRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	s, err := h.ensureSession(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.carts.Update(r.Context(), s.CartID, req.Quantities); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeCart(w, r, s.CartID)
}

// RemoveCartItem serves DELETE /api/cart/items/{productId}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	s, err := h.ensureSession(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.carts.Remove(r.Context(), s.CartID, chi.URLParam(r, "productId")); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeCart(w, r, s.CartID)
}
