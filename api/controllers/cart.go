package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/bakeshop-backend/api/middleware"
	"github.com/angelmondragon/bakeshop-backend/api/responses"
	"github.com/angelmondragon/bakeshop-backend/api/validators"
	cartsvc "github.com/angelmondragon/bakeshop-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
	"github.com/angelmondragon/bakeshop-backend/pkg/logger"
)

type cartItemKey struct {
	ProductID    uuid.UUID `json:"product_id" validate:"required"`
	HasChocolate bool      `json:"has_chocolate"`
}

func (k cartItemKey) identity() cartsvc.LineItemIdentity {
	return cartsvc.LineItemIdentity{ProductID: k.ProductID, HasChocolate: k.HasChocolate}
}

type addCartItemRequest struct {
	cartItemKey
	Quantity int `json:"quantity" validate:"required"`
}

type setQuantityRequest struct {
	cartItemKey
	Quantity int `json:"quantity"`
}

type setUnitQuantityRequest struct {
	cartItemKey
	UnitQuantity int `json:"unit_quantity" validate:"gte=1"`
}

type cartOp func(r *http.Request, cartID string) (*cartsvc.View, error)

// cartHandler resolves the cart id and writes the resulting view.
func cartHandler(svc cartsvc.Service, logg *logger.Logger, op cartOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		cartID := middleware.CartIDFromContext(r.Context())
		if cartID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart id missing"))
			return
		}
		view, err := op(r, cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, cartID string) (*cartsvc.View, error) {
		return svc.Get(r.Context(), cartID)
	})
}

// CartAddItem adds or merges a product variant. Quantity is a delta.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, cartID string) (*cartsvc.View, error) {
		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddProduct(r.Context(), cartID, cartsvc.AddProductInput{
			ProductID:    payload.ProductID,
			HasChocolate: payload.HasChocolate,
			Quantity:     payload.Quantity,
		})
	})
}

func CartSetQuantity(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, cartID string) (*cartsvc.View, error) {
		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.UpdateQuantity(r.Context(), cartID, payload.identity(), payload.Quantity)
	})
}

func CartSetUnitQuantity(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, cartID string) (*cartsvc.View, error) {
		var payload setUnitQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.UpdateUnitQuantity(r.Context(), cartID, payload.identity(), payload.UnitQuantity)
	})
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, cartID string) (*cartsvc.View, error) {
		var payload cartItemKey
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.RemoveItem(r.Context(), cartID, payload.identity())
	})
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, cartID string) (*cartsvc.View, error) {
		return svc.Clear(r.Context(), cartID)
	})
}
