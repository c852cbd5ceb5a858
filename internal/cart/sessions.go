package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/lock"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// PersisterFactory builds the persister for a cart identifier.
type PersisterFactory func(cartID string) Persister

type existenceChecker interface {
	Exists(ctx context.Context) (bool, error)
}

// Sessions keeps the live Store for every cart this process has touched and
// serializes access to each one.
type Sessions struct {
	// Persisters builds storage for new or unknown carts.
	Persisters PersisterFactory
	// Locker serializes access per cart. Defaults to an in-process lock.
	Locker lock.Locker
	// Shared re-reads carts from storage on every access so several
	// instances can serve the same cart.
	Shared  bool
	LockTTL time.Duration
	Logger  zerolog.Logger

	mu     sync.Mutex
	stores map[string]*Store
	local  lock.Local
}

// Create allocates a new, empty cart and returns its identifier. The cart is
// usable from this process even when the initial write fails.
func (s *Sessions) Create(ctx context.Context) string {
	id := uuid.NewString()
	p := s.persisterFor(id)
	if err := p.Save(ctx, State{}); err != nil {
		s.Logger.Debug().Err(err).Str("cart_id", id).Msg("persist new cart failed")
	}
	store := NewStore(p, WithLogger(s.Logger.With().Str("cart_id", id).Logger()))
	s.mu.Lock()
	s.ensureMap()
	s.stores[id] = store
	s.mu.Unlock()
	return id
}

// Do runs fn with exclusive access to the cart identified by id.
func (s *Sessions) Do(ctx context.Context, id string, fn func(*Store) error) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("parse cart id: %w", ErrInvalidInput)
	}
	return s.locker().WithLock(ctx, lockKey(id), s.lockTTL(), func(ctx context.Context) error {
		store, err := s.resolve(ctx, id)
		if err != nil {
			return err
		}
		return fn(store)
	})
}

// DoPair runs fn with exclusive access to two distinct carts. Locks are
// taken in id order so concurrent pairs over the same carts cannot deadlock.
func (s *Sessions) DoPair(ctx context.Context, a, b string, fn func(sa, sb *Store) error) error {
	for _, id := range []string{a, b} {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("parse cart id: %w", ErrInvalidInput)
		}
	}
	if a == b {
		return fmt.Errorf("same cart twice: %w", ErrInvalidInput)
	}
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	locker, ttl := s.locker(), s.lockTTL()
	return locker.WithLock(ctx, lockKey(first), ttl, func(ctx context.Context) error {
		return locker.WithLock(ctx, lockKey(second), ttl, func(ctx context.Context) error {
			sa, err := s.resolve(ctx, a)
			if err != nil {
				return err
			}
			sb, err := s.resolve(ctx, b)
			if err != nil {
				return err
			}
			return fn(sa, sb)
		})
	})
}

func (s *Sessions) resolve(ctx context.Context, id string) (*Store, error) {
	s.mu.Lock()
	s.ensureMap()
	store, cached := s.stores[id]
	s.mu.Unlock()

	if cached && !s.Shared {
		return store, nil
	}

	p := s.persisterFor(id)
	if !cached {
		checker, ok := p.(existenceChecker)
		if !ok {
			return nil, ErrNotFound
		}
		exists, err := checker.Exists(ctx)
		if err != nil {
			return nil, fmt.Errorf("lookup cart: %w", err)
		}
		if !exists {
			return nil, ErrNotFound
		}
		store = NewStore(p, WithLogger(s.Logger.With().Str("cart_id", id).Logger()))
	}

	if state, err := p.Load(ctx); err == nil {
		store.items = nil
		store.merge(state.Items)
	} else if !cached {
		return nil, fmt.Errorf("load cart: %w", err)
	} else {
		s.Logger.Debug().Err(err).Str("cart_id", id).Msg("cart refresh failed, using in-memory copy")
	}

	s.mu.Lock()
	s.stores[id] = store
	s.mu.Unlock()
	return store, nil
}

// Forget drops the in-process copy of a cart.
func (s *Sessions) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stores, id)
}

func (s *Sessions) persisterFor(id string) Persister {
	if s.Persisters == nil {
		return &MemoryPersister{}
	}
	if p := s.Persisters(id); p != nil {
		return p
	}
	return NopPersister{}
}

func (s *Sessions) locker() lock.Locker {
	if s.Locker != nil {
		return s.Locker
	}
	return &s.local
}

func (s *Sessions) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return lock.DefaultLease
	}
	return s.LockTTL
}

func (s *Sessions) ensureMap() {
	if s.stores == nil {
		s.stores = make(map[string]*Store)
	}
}

func lockKey(id string) string {
	return "lock:" + Key(id)
}
