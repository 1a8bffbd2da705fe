package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const csrfHeader = "X-CSRF-Token"

type sessionKey struct{}

// sessionHolder lets handlers create a session lazily and have later
// middleware see it.
type sessionHolder struct {
	s *auth.Session
}

func holderFrom(ctx context.Context) *sessionHolder {
	h, _ := ctx.Value(sessionKey{}).(*sessionHolder)
	return h
}

func fingerprint(r *http.Request) string {
	return auth.Fingerprint(r.UserAgent(), httpmiddleware.ClientIP(r))
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// withSession resolves the session cookie, rotates it when the session id
// changed, and enforces the CSRF token on mutating requests of an existing
// session.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		holder := &sessionHolder{}

		if c, err := r.Cookie(h.cfg.CookieName); err == nil && c.Value != "" {
			s, err := h.sessions.Resolve(ctx, c.Value, fingerprint(r))
			switch {
			case err == nil:
				holder.s = s
				if s.ID != c.Value {
					h.setCookie(w, s.ID)
				}
			case errors.Is(err, auth.ErrSessionNotFound),
				errors.Is(err, auth.ErrSessionExpired),
				errors.Is(err, auth.ErrSessionInvalid):
				zctx.From(ctx).Debug("Dropping session", zap.Error(err))
				h.clearCookie(w)
			default:
				zctx.From(ctx).Error("Resolve session", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
		}

		if s := holder.s; s != nil {
			if !isSafeMethod(r.Method) {
				token := r.Header.Get(csrfHeader)
				if subtle.ConstantTimeCompare([]byte(token), []byte(s.CSRFToken)) != 1 {
					writeError(w, http.StatusForbidden, "invalid csrf token")
					return
				}
			}
			w.Header().Set(csrfHeader, s.CSRFToken)
			ctx = auth.WithPrincipal(ctx, s.Principal())
		}

		ctx = context.WithValue(ctx, sessionKey{}, holder)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ensureSession returns the request's session, starting an anonymous one
// when the client has none.
func (h *Handler) ensureSession(w http.ResponseWriter, r *http.Request) (*auth.Session, error) {
	holder := holderFrom(r.Context())
	if holder == nil {
		return nil, errors.New("session middleware not installed")
	}
	if holder.s != nil {
		return holder.s, nil
	}
	s, err := h.sessions.Create(r.Context(), auth.Principal{}, fingerprint(r))
	if err != nil {
		return nil, errors.Wrap(err, "create session")
	}
	holder.s = s
	h.setCookie(w, s.ID)
	w.Header().Set(csrfHeader, s.CSRFToken)
	return s, nil
}

func (h *Handler) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

// requireLogin rejects anonymous requests with 401.
func requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.PrincipalFrom(r.Context()).Authenticated() {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin rejects non-admin principals with 403 before any request
// decoding happens. Services repeat the check.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.PrincipalFrom(r.Context()).IsAdmin {
			writeError(w, http.StatusForbidden, "admin required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
