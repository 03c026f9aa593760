package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakeshop-backend/internal/pricing"
	"github.com/angelmondragon/bakeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
	"github.com/angelmondragon/bakeshop-backend/pkg/logger"
)

type productRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListActive(ctx context.Context) ([]models.Product, error)
}

type pricingRecorder interface {
	ObserveResolution(source string, valid bool)
	IncMalformedRuleSet()
}

// Reader is the lookup the cart and kit flows depend on.
type Reader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
}

// Service exposes catalog reads and price quotes.
type Service interface {
	Reader
	ListProducts(ctx context.Context) ([]Product, error)
	Quote(ctx context.Context, productID uuid.UUID, quantity int) (*Quote, error)
}

// Quote is the resolver outcome for one product at one quantity, shaped for the
// quantity selector.
type Quote struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Valid     bool            `json:"valid"`
	Message   string          `json:"message,omitempty"`
	Tiered    bool            `json:"tiered"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	MinQty    int             `json:"min_qty"`
}

type service struct {
	repo    productRepository
	logg    *logger.Logger
	metrics pricingRecorder
}

// NewService builds a catalog service over the product repository.
func NewService(repo productRepository, logg *logger.Logger, metrics pricingRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, logg: logg, metrics: metrics}, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	product := s.load(ctx, *row)
	return &product, nil
}

func (s *service) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, s.load(ctx, row))
	}
	return products, nil
}

func (s *service) Quote(ctx context.Context, productID uuid.UUID, quantity int) (*Quote, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	res := pricing.Resolve(quantity, product.Rules)
	s.observe(res.Valid)

	quote := &Quote{
		ProductID: product.ID,
		Quantity:  quantity,
		Valid:     res.Valid,
		Message:   res.Message,
		Tiered:    res.Price != nil,
		UnitPrice: res.PriceOr(product.BasePrice),
		MinQty:    product.MinQty,
	}
	if res.Valid {
		quote.LineTotal = quote.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	}
	return quote, nil
}

// load maps a row and strips incoherent rule sets so the product falls back to
// its base price instead of resolving unpredictably.
func (s *service) load(ctx context.Context, row models.Product) Product {
	product := toProduct(row)
	rules, err := pricing.Sanitize(product.Rules)
	if err != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"product_id": product.ID.String(),
			"problems":   pkgerrors.As(err).Details(),
		})
		s.logg.Warn(ctx, "catalog.malformed_rule_set")
		if s.metrics != nil {
			s.metrics.IncMalformedRuleSet()
		}
	}
	product.Rules = rules
	product.MinQty = pricing.MinimumQuantity(rules)
	return product
}

func (s *service) observe(valid bool) {
	if s.metrics != nil {
		s.metrics.ObserveResolution("quote", valid)
	}
}
