package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// State is the persisted shape of a cart.
type State struct {
	Items []LineItem `json:"items"`
}

// Persister stores cart state. Stores treat it as a best-effort cache.
type Persister interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// NopPersister discards writes and always loads an empty cart.
type NopPersister struct{}

// Load returns an empty state.
func (NopPersister) Load(context.Context) (State, error) { return State{}, nil }

// Save does nothing.
func (NopPersister) Save(context.Context, State) error { return nil }

// MemoryPersister keeps the last saved state in memory.
type MemoryPersister struct {
	mu    sync.Mutex
	state State
	saves int
	// Err, when set, is returned from both Load and Save.
	Err error
}

// Load returns a copy of the last saved state.
func (m *MemoryPersister) Load(context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return State{}, m.Err
	}
	return State{Items: cloneItems(m.state.Items)}, nil
}

// Save stores a copy of state.
func (m *MemoryPersister) Save(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.state = State{Items: cloneItems(state.Items)}
	m.saves++
	return nil
}

// Saves reports how many successful writes happened.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// RedisPersister stores a cart as a JSON document with a sliding TTL.
type RedisPersister struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisPersister builds a persister for the cart stored under key.
func NewRedisPersister(client *redis.Client, key string, ttl time.Duration) *RedisPersister {
	return &RedisPersister{client: client, key: key, ttl: ttl}
}

// Key returns the redis key for a cart identifier.
func Key(cartID string) string {
	return "cart:" + cartID
}

// Load reads the cart document. A missing key is an empty cart.
func (p *RedisPersister) Load(ctx context.Context) (State, error) {
	if p == nil || p.client == nil {
		return State{}, errors.New("cart: redis client not configured")
	}
	data, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("cart: load %s: %w", p.key, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("cart: decode %s: %w", p.key, err)
	}
	return state, nil
}

// Save writes the cart document and refreshes its TTL.
func (p *RedisPersister) Save(ctx context.Context, state State) error {
	if p == nil || p.client == nil {
		return errors.New("cart: redis client not configured")
	}
	if state.Items == nil {
		state.Items = []LineItem{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("cart: encode %s: %w", p.key, err)
	}
	return p.client.Set(ctx, p.key, data, p.ttl).Err()
}

// Exists reports whether a cart document is stored under the key.
func (p *RedisPersister) Exists(ctx context.Context) (bool, error) {
	if p == nil || p.client == nil {
		return false, errors.New("cart: redis client not configured")
	}
	n, err := p.client.Exists(ctx, p.key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func cloneItems(items []LineItem) []LineItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
