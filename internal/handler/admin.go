package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
)

// AdminListOrders serves GET /api/admin/orders?status=&userId=&page=&perPage=.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	f := order.ListFilter{UserID: r.URL.Query().Get("userId")}
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := order.ParseStatus(v)
		if err != nil {
			respondError(w, r, &malformedError{err: err})
			return
		}
		f.Status = st
	}
	var err error
	if f.Page, err = queryInt(r, "page"); err != nil {
		respondError(w, r, err)
		return
	}
	if f.PerPage, err = queryInt(r, "perPage"); err != nil {
		respondError(w, r, err)
		return
	}

	page, err := h.orders.ListAll(r.Context(), auth.PrincipalFrom(r.Context()), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrderPage(e, page) })
}

// AdminSetOrderStatus serves PUT /api/admin/orders/{id}/status.
func (h *Handler) AdminSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.orders.SetStatus(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// AdminDeleteOrder serves DELETE /api/admin/orders/{id}.
func (h *Handler) AdminDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.DeleteOrder(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminListUsers serves GET /api/admin/users.
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), auth.PrincipalFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("users", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range users {
						encodeUser(e, &users[i])
					}
				})
			})
		})
	})
}

// AdminToggleAdmin serves POST /api/admin/users/{id}/toggle-admin.
func (h *Handler) AdminToggleAdmin(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.ToggleAdmin(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeUser(e, u) })
}

// AdminDeleteUser serves DELETE /api/admin/users/{id}.
func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminCreateProduct serves POST /api/admin/products.
func (h *Handler) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.catalog.Create(r.Context(), auth.PrincipalFrom(r.Context()), req.Input)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

// AdminUpdateProduct serves PUT /api/admin/products/{id}.
func (h *Handler) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.catalog.Update(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id"), req.Input)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

// AdminDeleteProduct serves DELETE /api/admin/products/{id}.
func (h *Handler) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminCreateCategory serves POST /api/admin/categories.
func (h *Handler) AdminCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.catalog.CreateCategory(r.Context(), auth.PrincipalFrom(r.Context()), req.Name, req.Description)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCategory(e, *c) })
}

// AdminUpdateCategory serves PUT /api/admin/categories/{id}.
func (h *Handler) AdminUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.catalog.UpdateCategory(r.Context(), auth.PrincipalFrom(r.Context()),
		chi.URLParam(r, "id"), req.Name, req.Description)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCategory(e, *c) })
}

// AdminDeleteCategory serves DELETE /api/admin/categories/{id}.
func (h *Handler) AdminDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCategory(r.Context(), auth.PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
