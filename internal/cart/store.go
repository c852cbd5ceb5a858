package cart

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/obs"
)

// Store owns a single cart's line items. It is not safe for concurrent use;
// callers that share a Store serialize access (see Sessions).
type Store struct {
	items     []LineItem
	persister Persister
	logger    zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a logger used for swallowed persistence failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore returns an empty store backed by p. A nil persister discards writes.
func NewStore(p Persister, opts ...Option) *Store {
	if p == nil {
		p = NopPersister{}
	}
	s := &Store{persister: p, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load hydrates the store from its persister. A failed load leaves the cart
// empty; invariants are re-applied to whatever was stored.
func (s *Store) Load(ctx context.Context) {
	state, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("cart load failed")
		obs.CountCartPersistFailure("load")
		s.items = nil
		return
	}
	s.items = nil
	s.merge(state.Items)
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	return cloneItems(s.items)
}

// Len returns the number of distinct line items.
func (s *Store) Len() int {
	return len(s.items)
}

// TotalItemCount sums quantities across all line items.
func (s *Store) TotalItemCount() int {
	total := 0
	for _, it := range s.items {
		total += it.Quantity
	}
	return total
}

// Add appends the product or, when it is already in the cart, increments its
// quantity in place. A non-positive quantity adds one.
func (s *Store) Add(ctx context.Context, p Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	if idx := s.indexOf(p.ID); idx >= 0 {
		s.items[idx].Quantity += quantity
	} else {
		s.items = append(s.items, LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.UnitPrice,
			Quantity:  quantity,
		})
	}
	s.persist(ctx, "add")
}

// Remove deletes the line item for id. Unknown ids are ignored.
func (s *Store) Remove(ctx context.Context, id ProductID) {
	idx := s.indexOf(id)
	if idx < 0 {
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.persist(ctx, "remove")
}

// SetQuantity replaces the quantity for id, clamped to at least 1. Unknown
// ids are ignored.
func (s *Store) SetQuantity(ctx context.Context, id ProductID, quantity int) {
	idx := s.indexOf(id)
	if idx < 0 {
		return
	}
	if quantity < 1 {
		quantity = 1
	}
	s.items[idx].Quantity = quantity
	s.persist(ctx, "set_quantity")
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.items = nil
	s.persist(ctx, "clear")
}

// Merge folds items from another cart into this one with add semantics.
func (s *Store) Merge(ctx context.Context, items []LineItem) {
	if len(items) == 0 {
		return
	}
	s.merge(items)
	s.persist(ctx, "merge")
}

func (s *Store) merge(items []LineItem) {
	for _, it := range items {
		if it.ProductID == "" {
			continue
		}
		qty := it.EffectiveQuantity()
		if idx := s.indexOf(it.ProductID); idx >= 0 {
			s.items[idx].Quantity += qty
			continue
		}
		it.Quantity = qty
		s.items = append(s.items, it)
	}
}

func (s *Store) indexOf(id ProductID) int {
	for i := range s.items {
		if s.items[i].ProductID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persist(ctx context.Context, op string) {
	obs.CountCartMutation(op)
	if err := s.persister.Save(ctx, State{Items: cloneItems(s.items)}); err != nil {
		s.logger.Debug().Err(err).Str("op", op).Msg("cart persist failed")
		obs.CountCartPersistFailure(op)
	}
}
