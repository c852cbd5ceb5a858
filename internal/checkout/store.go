package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// SessionStore persists checkout session records per cart.
type SessionStore interface {
	Load(ctx context.Context, cartID string) (Record, error)
	Save(ctx context.Context, cartID string, rec Record) error
}

// MemorySessionStore keeps records in process.
type MemorySessionStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// Load returns the record for cartID or an idle record.
func (m *MemorySessionStore) Load(_ context.Context, cartID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[cartID]; ok {
		return rec, nil
	}
	return Record{State: StateIdle}, nil
}

// Save stores rec for cartID.
func (m *MemorySessionStore) Save(_ context.Context, cartID string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]Record)
	}
	m.records[cartID] = rec
	return nil
}

// RedisSessionStore keeps records as JSON documents next to the cart.
type RedisSessionStore struct {
	R   *redis.Client
	TTL time.Duration
}

func sessionKey(cartID string) string {
	return "checkout:" + cartID
}

// Load returns the record for cartID or an idle record when none is stored.
func (s RedisSessionStore) Load(ctx context.Context, cartID string) (Record, error) {
	if s.R == nil {
		return Record{}, errors.New("checkout: redis client not configured")
	}
	raw, err := s.R.Get(ctx, sessionKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{State: StateIdle}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("checkout: load session %s: %w", cartID, err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("checkout: decode session %s: %w", cartID, err)
	}
	return rec, nil
}

// Save writes rec for cartID.
func (s RedisSessionStore) Save(ctx context.Context, cartID string, rec Record) error {
	if s.R == nil {
		return errors.New("checkout: redis client not configured")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("checkout: encode session %s: %w", cartID, err)
	}
	ttl := s.TTL
	if ttl < 0 {
		ttl = 0
	}
	if err := s.R.Set(ctx, sessionKey(cartID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("checkout: save session %s: %w", cartID, err)
	}
	return nil
}
