package kit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/bakeshop-backend/internal/cart"
	"github.com/angelmondragon/bakeshop-backend/internal/catalog"
	"github.com/angelmondragon/bakeshop-backend/internal/notifications"
	"github.com/angelmondragon/bakeshop-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
	"github.com/angelmondragon/bakeshop-backend/pkg/logger"
	"github.com/angelmondragon/bakeshop-backend/pkg/metrics"
)

const opKitComplete = "kit_complete"

type cartMutator interface {
	Mutate(ctx context.Context, cartID, op string, fn func(*cart.Store) error) (*cart.View, error)
}

type sessionRecorder interface {
	ObserveResolution(source string, valid bool)
	IncKitSession(outcome string)
}

// Service drives kit sessions for the HTTP layer.
type Service interface {
	Start(ctx context.Context) (Snapshot, error)
	Get(ctx context.Context, id uuid.UUID) (Snapshot, error)
	SelectItem(ctx context.Context, id, productID uuid.UUID, hasChocolate bool) (Snapshot, error)
	Next(ctx context.Context, id uuid.UUID) (Snapshot, error)
	Back(ctx context.Context, id uuid.UUID) (Snapshot, error)
	ChangeQuantity(ctx context.Context, id uuid.UUID, index, quantity int) (Snapshot, error)
	ChangeUnitQuantity(ctx context.Context, id uuid.UUID, index, unitQuantity int) (Snapshot, error)
	ChangeItem(ctx context.Context, id uuid.UUID, index int, quantity, unitQuantity *int) (Snapshot, error)
	RemoveItem(ctx context.Context, id uuid.UUID, index int) (Snapshot, error)
	Complete(ctx context.Context, id uuid.UUID, cartID string) (*cart.View, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// ServiceParams bundles the collaborators required by NewService.
type ServiceParams struct {
	Registry *Registry
	Catalog  catalog.Reader
	Carts    cartMutator
	Sink     notifications.Sink
	Metrics  sessionRecorder
	Logger   *logger.Logger
}

type service struct {
	registry *Registry
	catalog  catalog.Reader
	carts    cartMutator
	sink     notifications.Sink
	metrics  sessionRecorder
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Registry == nil {
		return nil, fmt.Errorf("kit registry required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart mutator required")
	}
	sink := params.Sink
	if sink == nil {
		sink = notifications.NopSink{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		registry: params.Registry,
		catalog:  params.Catalog,
		carts:    params.Carts,
		sink:     sink,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

func (s *service) Start(ctx context.Context) (Snapshot, error) {
	snap, err := s.registry.Start()
	if err != nil {
		s.logg.Warn(ctx, "kit.start_refused")
		return Snapshot{}, err
	}
	s.logg.Info(s.logg.WithKitID(ctx, snap.ID.String()), "kit.started")
	return snap, nil
}

func (s *service) Get(_ context.Context, id uuid.UUID) (Snapshot, error) {
	return s.registry.Get(id)
}

// SelectItem fetches the product before taking the registry lock.
func (s *service) SelectItem(ctx context.Context, id, productID uuid.UUID, hasChocolate bool) (Snapshot, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := s.do(ctx, id, func(session *Session) error {
		return session.SelectItem(*product, hasChocolate)
	})
	if err == nil {
		s.observe(true)
	}
	return snap, err
}

func (s *service) Next(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	return s.do(ctx, id, (*Session).Next)
}

func (s *service) Back(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	return s.do(ctx, id, (*Session).Back)
}

func (s *service) ChangeQuantity(ctx context.Context, id uuid.UUID, index, quantity int) (Snapshot, error) {
	snap, err := s.do(ctx, id, func(session *Session) error {
		return session.ChangeQuantity(index, quantity)
	})
	if err == nil {
		s.observe(true)
	}
	return snap, err
}

func (s *service) ChangeUnitQuantity(ctx context.Context, id uuid.UUID, index, unitQuantity int) (Snapshot, error) {
	return s.do(ctx, id, func(session *Session) error {
		return session.ChangeUnitQuantity(index, unitQuantity)
	})
}

// ChangeItem applies both fields in one registry operation; a rejected value
// leaves the item as it was.
func (s *service) ChangeItem(ctx context.Context, id uuid.UUID, index int, quantity, unitQuantity *int) (Snapshot, error) {
	snap, err := s.do(ctx, id, func(session *Session) error {
		return session.ChangeItem(index, quantity, unitQuantity)
	})
	if err == nil && quantity != nil {
		s.observe(true)
	}
	return snap, err
}

func (s *service) RemoveItem(ctx context.Context, id uuid.UUID, index int) (Snapshot, error) {
	return s.do(ctx, id, func(session *Session) error {
		return session.RemoveItem(index)
	})
}

// Complete stages the hand-off on a copy of the session and commits the close
// only once the cart snapshot is saved, so a failed write leaves the kit open.
// Merged lines are re-resolved at their combined quantity.
func (s *service) Complete(ctx context.Context, id uuid.UUID, cartID string) (*cart.View, error) {
	ctx = s.logg.WithKitID(ctx, id.String())
	var view *cart.View
	_, err := s.do(ctx, id, func(session *Session) error {
		staged := session.clone()
		merged, err := s.carts.Mutate(ctx, cartID, opKitComplete, func(store *cart.Store) error {
			touched := staged.Items()
			if err := staged.Complete(store); err != nil {
				return err
			}
			reprice(store, touched)
			return nil
		})
		if err != nil {
			return err
		}
		*session = *staged
		view = merged
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncKitSession(metrics.OutcomeCompleted)
	}
	s.notify(ctx, id, cartID, notifications.Success("kit added to cart"))
	s.logg.Info(s.logg.WithCartID(ctx, cartID), "kit.completed")
	return view, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) error {
	if _, err := s.do(ctx, id, (*Session).Cancel); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncKitSession(metrics.OutcomeCancelled)
	}
	s.logg.Info(s.logg.WithKitID(ctx, id.String()), "kit.cancelled")
	return nil
}

func (s *service) do(ctx context.Context, id uuid.UUID, fn func(*Session) error) (Snapshot, error) {
	snap, err := s.registry.Do(id, fn)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeInvalidQuantity) {
			s.observe(false)
			s.notify(ctx, id, "", notifications.Failure(pkgerrors.As(err).Message()))
		}
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *service) observe(valid bool) {
	if s.metrics != nil {
		s.metrics.ObserveResolution("kit", valid)
	}
}

func (s *service) notify(ctx context.Context, kitID uuid.UUID, cartID string, n notifications.Notification) {
	n.KitID = kitID.String()
	n.CartID = cartID
	s.sink.Notify(ctx, n)
}

// reprice resolves every line touched by a kit at its merged quantity. Lines
// whose merged quantity no rule accepts keep the price they were added with.
func reprice(store *cart.Store, touched []cart.LineItem) {
	for _, item := range touched {
		line, ok := store.Get(item.Identity)
		if !ok {
			continue
		}
		res := pricing.Resolve(line.Quantity, line.Rules)
		if res.Valid {
			store.SetQuantity(line.Identity, line.Quantity, res.PriceOr(line.BasePrice))
		}
	}
}
