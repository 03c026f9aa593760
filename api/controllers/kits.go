package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/bakeshop-backend/api/middleware"
	"github.com/angelmondragon/bakeshop-backend/api/responses"
	"github.com/angelmondragon/bakeshop-backend/api/validators"
	"github.com/angelmondragon/bakeshop-backend/internal/kit"
	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
	"github.com/angelmondragon/bakeshop-backend/pkg/logger"
)

type selectKitItemRequest struct {
	ProductID    uuid.UUID `json:"product_id" validate:"required"`
	HasChocolate bool      `json:"has_chocolate"`
}

// updateKitItemRequest carries either field; absent ones are left alone and
// both are applied or neither is.
type updateKitItemRequest struct {
	Quantity     *int `json:"quantity"`
	UnitQuantity *int `json:"unit_quantity"`
}

type kitOp func(r *http.Request, id uuid.UUID) (kit.Snapshot, error)

func kitHandler(svc kit.Service, logg *logger.Logger, op kitOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kit service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(chi.URLParam(r, "kitId"), "kit id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := op(r, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

func KitStart(svc kit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kit service unavailable"))
			return
		}
		snap, err := svc.Start(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, snap)
	}
}

func KitGet(svc kit.Service, logg *logger.Logger) http.HandlerFunc {
	return kitHandler(svc, logg, func(r *http.Request, id uuid.UUID) (kit.Snapshot, error) {
		return svc.Get(r.Context(), id)
	})
}

func KitSelectItem(svc kit.Service, logg *logger.Logger) http.HandlerFunc {
	return kitHandler(svc, logg, func(r *http.Request, id uuid.UUID) (kit.Snapshot, error) {
		var payload selectKitItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return kit.Snapshot{}, err
		}
		return svc.SelectItem(r.Context(), id, payload.ProductID, payload.HasChocolate)
	})
}

func KitUpdateItem(svc kit.Service, logg *logger.Logger) http.HandlerFunc {
	return kitHandler(svc, logg, func(r *http.Request, id uuid.UUID) (kit.Snapshot, error) {
		index, err := validators.ParseIndexParam(chi.URLParam(r, "index"), "index")
		if err != nil {
			return kit.Snapshot{}, err
		}
		var payload updateKitItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return kit.Snapshot{}, err
		}
		return svc.ChangeItem(r.Context(), id, index, payload.Quantity, payload.UnitQuantity)
	})
}

func KitRemoveItem(svc kit.Service, logg *logger.Logger) http.HandlerFunc {
	return kitHandler(svc, logg, func(r *http.Request, id uuid.UUID) (kit.Snapshot, error) {
		index, err := validators.ParseIndexParam(chi.URLParam(r, "index"), "index")
		if err != nil {
			return kit.Snapshot{}, err
		}
		return svc.RemoveItem(r.Context(), id, index)
	})
}

func KitNext(svc kit.Service, logg *logger.Logger) http.HandlerFunc {
	return kitHandler(svc, logg, func(r *http.Request, id uuid.UUID) (kit.Snapshot, error) {
		return svc.Next(r.Context(), id)
	})
}

func KitBack(svc kit.Service, logg *logger.Logger) http.HandlerFunc {
	return kitHandler(svc, logg, func(r *http.Request, id uuid.UUID) (kit.Snapshot, error) {
		return svc.Back(r.Context(), id)
	})
}

// KitComplete merges the kit into the caller's cart and returns the cart.
func KitComplete(svc kit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kit service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(chi.URLParam(r, "kitId"), "kit id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Complete(r.Context(), id, middleware.CartIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func KitCancel(svc kit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kit service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(chi.URLParam(r, "kitId"), "kit id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Cancel(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}
