package kit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakeshop-backend/internal/cart"
	"github.com/angelmondragon/bakeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
)

// Snapshot is a read-only copy of a session taken under its lock.
type Snapshot struct {
	ID     uuid.UUID       `json:"id"`
	Step   enums.KitStep   `json:"step"`
	Items  []cart.LineItem `json:"items"`
	Total  decimal.Decimal `json:"total"`
	Closed bool            `json:"closed"`
}

func snapshotOf(s *Session) Snapshot {
	return Snapshot{
		ID:     s.ID(),
		Step:   s.Step(),
		Items:  s.Items(),
		Total:  s.Total(),
		Closed: s.Closed(),
	}
}

// RegistryConfig bounds the registry. Zero values disable the matching limit.
type RegistryConfig struct {
	MaxItems    int
	MaxSessions int
	SessionTTL  time.Duration
}

// entry pairs a session with its own lock. busy, touched and gone are guarded
// by the registry lock; session is guarded by mu.
type entry struct {
	mu      sync.Mutex
	session *Session
	busy    int
	touched time.Time
	gone    bool
}

// Registry holds the open kit sessions shared by concurrent requests. Each
// session is mutated under its own lock, so a slow operation on one kit does
// not hold up the others. Closed sessions are dropped at once and idle ones
// once they outlive SessionTTL.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	cfg     RegistryConfig
	newID   func() uuid.UUID
	now     func() time.Time
}

func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		entries: make(map[uuid.UUID]*entry),
		cfg:     cfg,
		newID:   uuid.New,
		now:     time.Now,
	}
}

// Start opens a session and returns its initial snapshot. Idle sessions are
// swept first; a registry still at MaxSessions refuses the new one.
func (r *Registry) Start() (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweepLocked(now)
	if r.cfg.MaxSessions > 0 && len(r.entries) >= r.cfg.MaxSessions {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeRateLimit, "too many open kit sessions, try again later")
	}
	session := NewSession(r.newID(), r.cfg.MaxItems)
	r.entries[session.ID()] = &entry{session: session, touched: now}
	return snapshotOf(session), nil
}

func (r *Registry) Get(id uuid.UUID) (Snapshot, error) {
	return r.Do(id, func(*Session) error { return nil })
}

// Do runs fn against the session under the session lock. A session closed by
// fn is removed before the lock is released.
func (r *Registry) Do(id uuid.UUID, fn func(*Session) error) (Snapshot, error) {
	e, err := r.acquire(id)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if r.isGone(e) {
		r.release(id, e)
		return Snapshot{}, errSessionNotFound()
	}
	err = fn(e.session)
	snap := snapshotOf(e.session)
	r.release(id, e)
	return snap, err
}

// Sweep drops every idle session past SessionTTL and reports how many went.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.now())
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) acquire(id uuid.UUID) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, errSessionNotFound()
	}
	if e.busy == 0 && r.expired(e, r.now()) {
		r.dropLocked(id, e)
		return nil, errSessionNotFound()
	}
	e.busy++
	return e, nil
}

func (r *Registry) release(id uuid.UUID, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.busy--
	e.touched = r.now()
	if !e.gone && e.session.Closed() {
		r.dropLocked(id, e)
	}
}

func (r *Registry) isGone(e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return e.gone
}

func (r *Registry) sweepLocked(now time.Time) int {
	dropped := 0
	for id, e := range r.entries {
		if e.busy == 0 && r.expired(e, now) {
			r.dropLocked(id, e)
			dropped++
		}
	}
	return dropped
}

func (r *Registry) expired(e *entry, now time.Time) bool {
	return r.cfg.SessionTTL > 0 && now.Sub(e.touched) > r.cfg.SessionTTL
}

func (r *Registry) dropLocked(id uuid.UUID, e *entry) {
	e.gone = true
	delete(r.entries, id)
}

func errSessionNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "kit session not found")
}
