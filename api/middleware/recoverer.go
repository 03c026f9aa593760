package middleware

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bakeshop-backend/api/responses"
	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
	"github.com/angelmondragon/bakeshop-backend/pkg/logger"
)

// Recoverer turns a panic into a 500 envelope. The log line carries the cart
// and kit the request was working on; the cart id is read back from the
// response header because CartID runs further down the chain.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, panicFields(w, r, rec))
					logg.Error(ctx, "panic.recovered", err)
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func panicFields(w http.ResponseWriter, r *http.Request, rec any) map[string]any {
	fields := map[string]any{
		"panic":  rec,
		"method": r.Method,
		"path":   r.URL.Path,
	}
	if cartID := w.Header().Get(CartIDHeader); cartID != "" {
		fields["cart_id"] = cartID
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if kitID := rctx.URLParam("kitId"); kitID != "" {
			fields["kit_id"] = kitID
		}
		if pattern := rctx.RoutePattern(); pattern != "" {
			fields["route"] = pattern
		}
	}
	return fields
}
