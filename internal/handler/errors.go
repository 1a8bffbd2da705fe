package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// writeError writes the {"code","message"} error body.
func writeError(w http.ResponseWriter, code int, message string) {
	writeErrorField(w, code, message, "")
}

func writeErrorField(w http.ResponseWriter, code int, message, field string) {
	writeJSON(w, code, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
			if field != "" {
				e.Field("field", func(e *jx.Encoder) { e.Str(field) })
			}
		})
	})
}

// respondError maps a domain error to its HTTP response. Unknown and
// persistence errors are logged and reported generically.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound   *apperr.NotFoundError
		unauth     *apperr.UnauthorizedError
		validation *apperr.ValidationError
		stock      *order.InsufficientStockError
		transition *order.InvalidTransitionError
		quantity   *order.InvalidQuantityError
		malformed  *malformedError
	)
	switch {
	case errors.As(err, &malformed):
		writeError(w, http.StatusBadRequest, malformed.Error())
	case errors.As(err, &validation):
		writeErrorField(w, http.StatusUnprocessableEntity, validation.Message, validation.Field)
	case errors.As(err, &quantity):
		writeError(w, http.StatusUnprocessableEntity, quantity.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &unauth):
		code := http.StatusForbidden
		if !auth.PrincipalFrom(r.Context()).Authenticated() {
			code = http.StatusUnauthorized
		}
		writeError(w, code, unauth.Error())
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrPaymentDeclined):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.As(err, &stock), errors.As(err, &transition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, product.ErrInUse),
		errors.Is(err, product.ErrCategoryInUse),
		errors.Is(err, product.ErrCategoryExists),
		errors.Is(err, user.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, user.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
