package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/bakeshop-backend/api/responses"
	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
	"github.com/angelmondragon/bakeshop-backend/pkg/logger"
)

const CartIDHeader = "X-Cart-Id"

// CartID resolves the anonymous cart for the request. A missing header starts
// a new cart; the id is echoed back so the client can keep it.
func CartID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cartID := strings.TrimSpace(r.Header.Get(CartIDHeader))
			if cartID == "" {
				cartID = uuid.NewString()
			} else if _, err := uuid.Parse(cartID); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart id"))
				return
			}

			w.Header().Set(CartIDHeader, cartID)

			ctx := WithCartID(r.Context(), cartID)
			if logg != nil {
				ctx = logg.WithCartID(ctx, cartID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
