package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// SnapshotRepository persists a cart as one blob. Save replaces the whole
// collection; there are no partial writes.
type SnapshotRepository interface {
	LoadSnapshot(ctx context.Context, cartID string) ([]LineItem, error)
	SaveSnapshot(ctx context.Context, cartID string, items []LineItem) error
}

// MemorySnapshotRepository keeps snapshots in process. Used for local runs and
// tests.
type MemorySnapshotRepository struct {
	mu    sync.Mutex
	carts map[string][]LineItem
}

func NewMemorySnapshotRepository() *MemorySnapshotRepository {
	return &MemorySnapshotRepository{carts: make(map[string][]LineItem)}
}

func (r *MemorySnapshotRepository) LoadSnapshot(_ context.Context, cartID string) ([]LineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneItems(r.carts[cartID]), nil
}

func (r *MemorySnapshotRepository) SaveSnapshot(_ context.Context, cartID string, items []LineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(items) == 0 {
		delete(r.carts, cartID)
		return nil
	}
	r.carts[cartID] = cloneItems(items)
	return nil
}

type snapshotStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartSnapshotKey(cartID string) string
}

type snapshotEnvelope struct {
	Items   []LineItem `json:"items"`
	SavedAt time.Time  `json:"saved_at"`
}

// RedisSnapshotRepository stores each cart as a JSON document with a sliding
// TTL refreshed on every save.
type RedisSnapshotRepository struct {
	store snapshotStore
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisSnapshotRepository wires the repository to a redis-backed store.
// isMissing reports whether a Get error means the key does not exist.
func NewRedisSnapshotRepository(store snapshotStore, ttl time.Duration, isMissing func(error) bool) *RedisSnapshotRepository {
	return &RedisSnapshotRepository{
		store: missAwareStore{snapshotStore: store, isMissing: isMissing},
		ttl:   ttl,
		now:   time.Now,
	}
}

type missAwareStore struct {
	snapshotStore
	isMissing func(error) bool
}

func (m missAwareStore) Get(ctx context.Context, key string) (string, error) {
	raw, err := m.snapshotStore.Get(ctx, key)
	if err != nil && m.isMissing != nil && m.isMissing(err) {
		return "", nil
	}
	return raw, err
}

func (r *RedisSnapshotRepository) LoadSnapshot(ctx context.Context, cartID string) ([]LineItem, error) {
	raw, err := r.store.Get(ctx, r.store.CartSnapshotKey(cartID))
	if err != nil {
		return nil, fmt.Errorf("load cart snapshot: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var envelope snapshotEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, fmt.Errorf("decode cart snapshot: %w", err)
	}
	return envelope.Items, nil
}

func (r *RedisSnapshotRepository) SaveSnapshot(ctx context.Context, cartID string, items []LineItem) error {
	key := r.store.CartSnapshotKey(cartID)
	if len(items) == 0 {
		if err := r.store.Del(ctx, key); err != nil {
			return fmt.Errorf("delete cart snapshot: %w", err)
		}
		return nil
	}
	payload, err := json.Marshal(snapshotEnvelope{Items: items, SavedAt: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode cart snapshot: %w", err)
	}
	if err := r.store.Set(ctx, key, string(payload), r.ttl); err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}

func cloneItems(items []LineItem) []LineItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
