package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakeshop-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
)

// LineItemIdentity is the deduplication key of a cart line. Two adds with the
// same product and variant merge into one line.
type LineItemIdentity struct {
	ProductID    uuid.UUID `json:"product_id"`
	HasChocolate bool      `json:"has_chocolate"`
}

// LineItem is one priced line. Quantity counts priced units; UnitQuantity is
// the number of physical pieces per priced unit and never affects price.
type LineItem struct {
	Identity     LineItemIdentity    `json:"identity"`
	ProductName  string              `json:"product_name"`
	Quantity     int                 `json:"quantity"`
	UnitQuantity int                 `json:"unit_quantity"`
	UnitPrice    decimal.Decimal     `json:"unit_price"`
	BasePrice    decimal.Decimal     `json:"base_price"`
	HasChocolate bool                `json:"has_chocolate"`
	Rules        []pricing.PriceRule `json:"rules,omitempty"`
}

// LineTotal is Quantity × UnitPrice.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Clone deep-copies the item including its rules snapshot.
func (li LineItem) Clone() LineItem {
	out := li
	out.Rules = pricing.Clone(li.Rules)
	return out
}

// AddInput describes one add-or-merge against the store. Deltas may be
// negative; the store heals items whose quantity falls to zero.
type AddInput struct {
	Identity          LineItemIdentity
	ProductName       string
	QuantityDelta     int
	UnitQuantityDelta int
	UnitPrice         decimal.Decimal
	BasePrice         decimal.Decimal
	Rules             []pricing.PriceRule
}

// Store is the in-memory line-item collection for one cart. It keeps insertion
// order and knows nothing about pricing; callers resolve prices first.
type Store struct {
	items []LineItem
	index map[LineItemIdentity]int
}

// NewStore builds a store from a loaded snapshot. Items with a non-positive
// quantity are dropped and duplicate identities merge, so a damaged snapshot
// still yields a coherent cart.
func NewStore(snapshot []LineItem) *Store {
	s := &Store{index: make(map[LineItemIdentity]int, len(snapshot))}
	for _, item := range snapshot {
		if item.Quantity <= 0 {
			continue
		}
		item.HasChocolate = item.Identity.HasChocolate
		if item.UnitQuantity < 1 {
			item.UnitQuantity = 1
		}
		if pos, ok := s.index[item.Identity]; ok {
			s.items[pos].Quantity += item.Quantity
			continue
		}
		s.index[item.Identity] = len(s.items)
		s.items = append(s.items, item.Clone())
	}
	return s
}

// Add merges into an existing line or creates a new one.
func (s *Store) Add(in AddInput) {
	if pos, ok := s.index[in.Identity]; ok {
		item := &s.items[pos]
		item.Quantity += in.QuantityDelta
		item.UnitQuantity += in.UnitQuantityDelta
		if item.UnitQuantity < 1 {
			item.UnitQuantity = 1
		}
		item.UnitPrice = in.UnitPrice
		item.Rules = pricing.Clone(in.Rules)
		if in.ProductName != "" {
			item.ProductName = in.ProductName
		}
		if item.Quantity <= 0 {
			s.removeAt(pos)
		}
		return
	}

	if in.QuantityDelta < 1 {
		return
	}
	unitQty := in.UnitQuantityDelta
	if unitQty < 1 {
		unitQty = 1
	}
	s.index[in.Identity] = len(s.items)
	s.items = append(s.items, LineItem{
		Identity:     in.Identity,
		ProductName:  in.ProductName,
		Quantity:     in.QuantityDelta,
		UnitQuantity: unitQty,
		UnitPrice:    in.UnitPrice,
		BasePrice:    in.BasePrice,
		HasChocolate: in.Identity.HasChocolate,
		Rules:        pricing.Clone(in.Rules),
	})
}

// SetQuantity overwrites quantity and price. A quantity of zero or less removes
// the line.
func (s *Store) SetQuantity(id LineItemIdentity, quantity int, unitPrice decimal.Decimal) {
	pos, ok := s.index[id]
	if !ok {
		return
	}
	if quantity <= 0 {
		s.removeAt(pos)
		return
	}
	s.items[pos].Quantity = quantity
	s.items[pos].UnitPrice = unitPrice
}

// SetUnitQuantity rejects non-positive values and leaves the store unchanged.
func (s *Store) SetUnitQuantity(id LineItemIdentity, unitQuantity int) error {
	if unitQuantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, pricing.MsgQuantityNotPositive)
	}
	if pos, ok := s.index[id]; ok {
		s.items[pos].UnitQuantity = unitQuantity
	}
	return nil
}

func (s *Store) Remove(id LineItemIdentity) {
	if pos, ok := s.index[id]; ok {
		s.removeAt(pos)
	}
}

func (s *Store) Clear() {
	s.items = nil
	s.index = make(map[LineItemIdentity]int)
}

// Total sums Quantity × UnitPrice across lines.
func (s *Store) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Items returns a deep copy in insertion order.
func (s *Store) Items() []LineItem {
	out := make([]LineItem, len(s.items))
	for i, item := range s.items {
		out[i] = item.Clone()
	}
	return out
}

func (s *Store) Get(id LineItemIdentity) (LineItem, bool) {
	pos, ok := s.index[id]
	if !ok {
		return LineItem{}, false
	}
	return s.items[pos].Clone(), true
}

func (s *Store) Len() int {
	return len(s.items)
}

func (s *Store) removeAt(pos int) {
	delete(s.index, s.items[pos].Identity)
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	for i := pos; i < len(s.items); i++ {
		s.index[s.items[i].Identity] = i
	}
}
