package kit

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakeshop-backend/internal/cart"
	"github.com/angelmondragon/bakeshop-backend/internal/catalog"
	"github.com/angelmondragon/bakeshop-backend/internal/pricing"
	"github.com/angelmondragon/bakeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
)

type action string

const (
	actionSelect             action = "select_item"
	actionNext               action = "next"
	actionBack               action = "back"
	actionChangeQuantity     action = "change_quantity"
	actionChangeUnitQuantity action = "change_unit_quantity"
	actionRemove             action = "remove_item"
	actionComplete           action = "complete"
)

// transitions lists the step moves; a missing entry is a disallowed move.
var transitions = map[enums.KitStep]map[action]enums.KitStep{
	enums.KitStepSelecting: {
		actionNext: enums.KitStepReviewing,
	},
	enums.KitStepReviewing: {
		actionNext: enums.KitStepConfirming,
		actionBack: enums.KitStepSelecting,
	},
	enums.KitStepConfirming: {
		actionBack: enums.KitStepReviewing,
	},
}

// allowed lists the in-step edits.
var allowed = map[action]enums.KitStep{
	actionSelect:             enums.KitStepSelecting,
	actionChangeQuantity:     enums.KitStepReviewing,
	actionChangeUnitQuantity: enums.KitStepReviewing,
	actionRemove:             enums.KitStepReviewing,
	actionComplete:           enums.KitStepConfirming,
}

// Session is one kit composition flow. Items are provisional until Complete
// copies them into a cart store. A Session is not safe for concurrent use.
type Session struct {
	id       uuid.UUID
	step     enums.KitStep
	items    []cart.LineItem
	closed   bool
	maxItems int
}

// NewSession opens a session in the selecting step. maxItems ≤ 0 means no cap.
func NewSession(id uuid.UUID, maxItems int) *Session {
	return &Session{id: id, step: enums.KitStepSelecting, maxItems: maxItems}
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Step() enums.KitStep { return s.step }

func (s *Session) Closed() bool { return s.closed }

// Items returns a deep copy of the provisional selection.
func (s *Session) Items() []cart.LineItem {
	out := make([]cart.LineItem, len(s.items))
	for i, item := range s.items {
		out[i] = item.Clone()
	}
	return out
}

// Total uses the same aggregation as the cart.
func (s *Session) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// SelectItem adds the product variant at its minimum quantity. Selecting the
// same variant twice yields two entries.
func (s *Session) SelectItem(product catalog.Product, hasChocolate bool) error {
	if err := s.guard(actionSelect); err != nil {
		return err
	}
	if hasChocolate && !product.HasChocolateOption {
		return pkgerrors.New(pkgerrors.CodeValidation, "product has no chocolate option")
	}
	if s.maxItems > 0 && len(s.items) >= s.maxItems {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("a kit holds at most %d items", s.maxItems))
	}

	minQty := pricing.MinimumQuantity(product.Rules)
	res := pricing.Resolve(minQty, product.Rules)
	if !res.Valid {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, res.Message)
	}

	s.items = append(s.items, cart.LineItem{
		Identity:     cart.LineItemIdentity{ProductID: product.ID, HasChocolate: hasChocolate},
		ProductName:  product.Name,
		Quantity:     minQty,
		UnitQuantity: 1,
		UnitPrice:    res.PriceOr(product.BasePrice),
		BasePrice:    product.BasePrice,
		HasChocolate: hasChocolate,
		Rules:        pricing.Clone(product.Rules),
	})
	return nil
}

func (s *Session) Next() error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if len(s.items) == 0 {
		return pkgerrors.New(pkgerrors.CodeEmptySelection, "select at least one item")
	}
	return s.move(actionNext)
}

func (s *Session) Back() error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.move(actionBack)
}

// ChangeQuantity re-resolves the item at q. Rejected quantities leave the
// item untouched.
func (s *Session) ChangeQuantity(index, quantity int) error {
	return s.ChangeItem(index, &quantity, nil)
}

// ChangeUnitQuantity sets the pieces per priced unit and refreshes the price at
// the current quantity.
func (s *Session) ChangeUnitQuantity(index, unitQuantity int) error {
	return s.ChangeItem(index, nil, &unitQuantity)
}

// ChangeItem applies a quantity and/or unit quantity edit as one change. Both
// values are checked before the item is written, so a rejected edit leaves it
// as it was.
func (s *Session) ChangeItem(index int, quantity, unitQuantity *int) error {
	a := actionChangeQuantity
	if quantity == nil {
		a = actionChangeUnitQuantity
	}
	item, err := s.itemFor(a, index)
	if err != nil {
		return err
	}
	if quantity == nil && unitQuantity == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity or unit_quantity is required")
	}

	nextQty := item.Quantity
	if quantity != nil {
		nextQty = *quantity
	}
	res := pricing.Resolve(nextQty, item.Rules)
	if quantity != nil && !res.Valid {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, res.Message)
	}
	if unitQuantity != nil && *unitQuantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, pricing.MsgQuantityNotPositive)
	}

	item.Quantity = nextQty
	if unitQuantity != nil {
		item.UnitQuantity = *unitQuantity
	}
	if res.Valid {
		item.UnitPrice = res.PriceOr(item.BasePrice)
	}
	return nil
}

func (s *Session) RemoveItem(index int) error {
	if _, err := s.itemFor(actionRemove, index); err != nil {
		return err
	}
	s.items = append(s.items[:index], s.items[index+1:]...)
	return nil
}

// Complete merges every item into store by identity and closes the session.
func (s *Session) Complete(store *cart.Store) error {
	if err := s.guard(actionComplete); err != nil {
		return err
	}
	if len(s.items) == 0 {
		return pkgerrors.New(pkgerrors.CodeEmptySelection, "select at least one item")
	}
	for _, item := range s.items {
		store.Add(cart.AddInput{
			Identity:          item.Identity,
			ProductName:       item.ProductName,
			QuantityDelta:     item.Quantity,
			UnitQuantityDelta: item.UnitQuantity,
			UnitPrice:         item.UnitPrice,
			BasePrice:         item.BasePrice,
			Rules:             pricing.Clone(item.Rules),
		})
	}
	s.close()
	return nil
}

// Cancel discards the selection from any step. It never touches a cart.
func (s *Session) Cancel() error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	s.close()
	return nil
}

func (s *Session) clone() *Session {
	out := *s
	out.items = s.Items()
	return &out
}

func (s *Session) close() {
	s.items = nil
	s.closed = true
}

func (s *Session) ensureOpen() error {
	if s.closed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "kit session is closed")
	}
	return nil
}

func (s *Session) guard(a action) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if want := allowed[a]; want != s.step {
		return conflict(a, s.step)
	}
	return nil
}

func (s *Session) move(a action) error {
	next, ok := transitions[s.step][a]
	if !ok {
		return conflict(a, s.step)
	}
	s.step = next
	return nil
}

func (s *Session) itemFor(a action, index int) (*cart.LineItem, error) {
	if err := s.guard(a); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(s.items) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("kit item %d not found", index))
	}
	return &s.items[index], nil
}

func conflict(a action, step enums.KitStep) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s while %s", strings.ReplaceAll(string(a), "_", " "), step)).
		WithDetails(map[string]any{"action": string(a), "step": step.String()})
}
