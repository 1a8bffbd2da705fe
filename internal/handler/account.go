package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/user"
)

// Register serves POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	u, err := h.users.Register(r.Context(), req.Registration)
	if err != nil {
		respondError(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("User registered", zap.String("user_id", u.ID))
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeUser(e, u) })
}

// Login serves POST /api/auth/login. The session is re-issued under a new
// id bound to the user; an anonymous cart carries over.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	u, err := h.users.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	p := auth.Principal{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
	holder := holderFrom(r.Context())
	var s *auth.Session
	if holder.s != nil {
		s, err = h.sessions.Elevate(r.Context(), holder.s, p)
	} else {
		s, err = h.sessions.Create(r.Context(), p, fingerprint(r))
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	holder.s = s
	h.setCookie(w, s.ID)
	w.Header().Set(csrfHeader, s.CSRFToken)

	zctx.From(r.Context()).Info("User logged in", zap.String("user_id", u.ID))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeMe(e, u, s) })
}

// Logout serves POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if holder := holderFrom(r.Context()); holder != nil && holder.s != nil {
		if err := h.sessions.Destroy(r.Context(), holder.s.ID); err != nil {
			respondError(w, r, err)
			return
		}
		holder.s = nil
	}
	h.clearCookie(w)
	w.Header().Del(csrfHeader)
	w.WriteHeader(http.StatusNoContent)
}

// Me serves GET /api/me. It starts an anonymous session when needed so the
// client always receives a CSRF token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	s, err := h.ensureSession(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var u *user.User
	if s.UserID != "" {
		if u, err = h.users.Get(r.Context(), s.UserID); err != nil {
			respondError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeMe(e, u, s) })
}

func encodeMe(e *jx.Encoder, u *user.User, s *auth.Session) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("user", func(e *jx.Encoder) {
			if u == nil {
				e.Null()
				return
			}
			encodeUser(e, u)
		})
		e.Field("csrfToken", func(e *jx.Encoder) { e.Str(s.CSRFToken) })
	})
}
