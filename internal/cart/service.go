package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakeshop-backend/internal/catalog"
	"github.com/angelmondragon/bakeshop-backend/internal/notifications"
	"github.com/angelmondragon/bakeshop-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
	"github.com/angelmondragon/bakeshop-backend/pkg/logger"
)

const (
	OpAdd             = "add"
	OpSetQuantity     = "set_quantity"
	OpSetUnitQuantity = "set_unit_quantity"
	OpRemove          = "remove"
	OpClear           = "clear"
)

type mutationRecorder interface {
	ObserveResolution(source string, valid bool)
	IncCartMutation(op string)
}

// Service is the cart application layer. Every mutating call loads the whole
// snapshot, applies one store operation and writes the collection back.
type Service interface {
	AddProduct(ctx context.Context, cartID string, input AddProductInput) (*View, error)
	UpdateQuantity(ctx context.Context, cartID string, id LineItemIdentity, quantity int) (*View, error)
	UpdateUnitQuantity(ctx context.Context, cartID string, id LineItemIdentity, unitQuantity int) (*View, error)
	RemoveItem(ctx context.Context, cartID string, id LineItemIdentity) (*View, error)
	Clear(ctx context.Context, cartID string) (*View, error)
	Get(ctx context.Context, cartID string) (*View, error)
	Mutate(ctx context.Context, cartID, op string, fn func(*Store) error) (*View, error)
}

// AddProductInput is an add-to-cart request for one product variant.
type AddProductInput struct {
	ProductID    uuid.UUID
	HasChocolate bool
	Quantity     int
}

// View is the cart as returned to callers.
type View struct {
	CartID    string          `json:"cart_id"`
	Items     []LineItem      `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// ServiceParams bundles the collaborators required by NewService.
type ServiceParams struct {
	Snapshots SnapshotRepository
	Catalog   catalog.Reader
	Sink      notifications.Sink
	Metrics   mutationRecorder
	Logger    *logger.Logger
}

type service struct {
	snapshots SnapshotRepository
	catalog   catalog.Reader
	sink      notifications.Sink
	metrics   mutationRecorder
	logg      *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Snapshots == nil {
		return nil, fmt.Errorf("snapshot repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
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
		snapshots: params.Snapshots,
		catalog:   params.Catalog,
		sink:      sink,
		metrics:   params.Metrics,
		logg:      logg,
	}, nil
}

func (s *service) AddProduct(ctx context.Context, cartID string, input AddProductInput) (*View, error) {
	product, err := s.catalog.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if input.HasChocolate && !product.HasChocolateOption {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product has no chocolate option")
	}
	id := LineItemIdentity{ProductID: product.ID, HasChocolate: input.HasChocolate}

	removed := false
	view, err := s.Mutate(ctx, cartID, OpAdd, func(store *Store) error {
		merged := input.Quantity
		existing, ok := store.Get(id)
		if ok {
			merged += existing.Quantity
		}

		// A negative delta that empties an existing line is a removal, not a
		// pricing question.
		if ok && merged <= 0 {
			store.Add(AddInput{Identity: id, QuantityDelta: input.Quantity})
			removed = true
			return nil
		}

		res := s.resolve(merged, product.Rules)
		if !res.Valid {
			s.notify(ctx, cartID, notifications.Failure(res.Message))
			return pkgerrors.New(pkgerrors.CodeInvalidQuantity, res.Message)
		}

		store.Add(AddInput{
			Identity:      id,
			ProductName:   product.Name,
			QuantityDelta: input.Quantity,
			UnitPrice:     res.PriceOr(product.BasePrice),
			BasePrice:     product.BasePrice,
			Rules:         product.Rules,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	// The snapshot is saved by now; announcing earlier could confirm an add
	// that never persisted.
	if !removed {
		s.notify(ctx, view.CartID, notifications.Success(fmt.Sprintf("%s added to cart", product.Name)))
	}
	return view, nil
}

// UpdateQuantity re-resolves against the rules captured when the line was
// added; it never goes back to the catalog.
func (s *service) UpdateQuantity(ctx context.Context, cartID string, id LineItemIdentity, quantity int) (*View, error) {
	return s.Mutate(ctx, cartID, OpSetQuantity, func(store *Store) error {
		item, ok := store.Get(id)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		if quantity <= 0 {
			store.Remove(id)
			return nil
		}
		res := s.resolve(quantity, item.Rules)
		if !res.Valid {
			s.notify(ctx, cartID, notifications.Failure(res.Message))
			return pkgerrors.New(pkgerrors.CodeInvalidQuantity, res.Message)
		}
		store.SetQuantity(id, quantity, res.PriceOr(item.BasePrice))
		return nil
	})
}

func (s *service) UpdateUnitQuantity(ctx context.Context, cartID string, id LineItemIdentity, unitQuantity int) (*View, error) {
	return s.Mutate(ctx, cartID, OpSetUnitQuantity, func(store *Store) error {
		if _, ok := store.Get(id); !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return store.SetUnitQuantity(id, unitQuantity)
	})
}

func (s *service) RemoveItem(ctx context.Context, cartID string, id LineItemIdentity) (*View, error) {
	return s.Mutate(ctx, cartID, OpRemove, func(store *Store) error {
		store.Remove(id)
		return nil
	})
}

func (s *service) Clear(ctx context.Context, cartID string) (*View, error) {
	return s.Mutate(ctx, cartID, OpClear, func(store *Store) error {
		store.Clear()
		return nil
	})
}

func (s *service) Get(ctx context.Context, cartID string) (*View, error) {
	cartID = strings.TrimSpace(cartID)
	store, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return newView(cartID, store), nil
}

// Mutate runs fn against the loaded store and saves the result. Nothing is
// written when fn fails.
func (s *service) Mutate(ctx context.Context, cartID, op string, fn func(*Store) error) (*View, error) {
	cartID = strings.TrimSpace(cartID)
	store, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := fn(store); err != nil {
		return nil, err
	}
	if err := s.snapshots.SaveSnapshot(ctx, cartID, store.Items()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	if s.metrics != nil {
		s.metrics.IncCartMutation(op)
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"cart_op":    op,
		"item_count": store.Len(),
	})
	s.logg.Debug(ctx, "cart.saved")
	return newView(cartID, store), nil
}

func (s *service) load(ctx context.Context, cartID string) (*Store, error) {
	if cartID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	items, err := s.snapshots.LoadSnapshot(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return NewStore(items), nil
}

func (s *service) resolve(quantity int, rules []pricing.PriceRule) pricing.ValidationResult {
	res := pricing.Resolve(quantity, rules)
	if s.metrics != nil {
		s.metrics.ObserveResolution("cart", res.Valid)
	}
	return res
}

func (s *service) notify(ctx context.Context, cartID string, n notifications.Notification) {
	n.CartID = cartID
	s.sink.Notify(ctx, n)
}

func newView(cartID string, store *Store) *View {
	return &View{
		CartID:    cartID,
		Items:     store.Items(),
		ItemCount: store.Len(),
		Total:     store.Total(),
	}
}
