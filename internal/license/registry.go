package license

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Store persists registry records. The registry keeps the authoritative
// in-memory copy and writes through to the store inside its transactions.
type Store interface {
	LoadKeys(ctx context.Context) ([]LicenseKey, error)
	CreateKey(ctx context.Context, key LicenseKey) error
	SaveKey(ctx context.Context, key LicenseKey) error
	DeleteKeys(ctx context.Context, ids []string) error
}

var errImmutable = errors.New("license: mutation changes an immutable field")

// Registry holds every issued key and the owner -> key index.
type Registry struct {
	mu     sync.RWMutex
	keys   map[string]LicenseKey
	owners map[string]string
	store  Store
}

// NewRegistry returns an empty registry. store may be nil for a purely
// in-memory registry.
func NewRegistry(store Store) *Registry {
	return &Registry{
		keys:   make(map[string]LicenseKey),
		owners: make(map[string]string),
		store:  store,
	}
}

// Load replaces the in-memory state with the store's contents and rebuilds
// the owner index from activated records.
func (r *Registry) Load(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	keys, err := r.store.LoadKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("load keys: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = make(map[string]LicenseKey, len(keys))
	r.owners = make(map[string]string)
	for _, k := range keys {
		r.keys[k.ID] = k
		if k.Activated && k.OwnerID != "" {
			// Latest activation wins when history holds several.
			if prev, ok := r.keys[r.owners[k.OwnerID]]; ok && prev.ActivatedAt != nil && k.ActivatedAt != nil && prev.ActivatedAt.After(*k.ActivatedAt) {
				continue
			}
			r.owners[k.OwnerID] = k.ID
		}
	}
	return len(keys), nil
}

// Insert adds a brand-new record.
func (r *Registry) Insert(ctx context.Context, key LicenseKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[key.ID]; exists {
		return fmt.Errorf("insert %s: %w", key.ID, ErrDuplicateKey)
	}
	if r.store != nil {
		if err := r.store.CreateKey(ctx, key); err != nil {
			return fmt.Errorf("insert %s: %w", key.ID, err)
		}
	}
	r.keys[key.ID] = key.clone()
	return nil
}

// Get returns a copy of the record.
func (r *Registry) Get(id string) (LicenseKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[id]
	if !ok {
		return LicenseKey{}, false
	}
	return k.clone(), true
}

// FindByOwner returns the owner's activated key.
func (r *Registry) FindByOwner(ownerID string) (LicenseKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findByOwner(ownerID)
}

func (r *Registry) findByOwner(ownerID string) (LicenseKey, bool) {
	id, ok := r.owners[ownerID]
	if !ok {
		return LicenseKey{}, false
	}
	k, ok := r.keys[id]
	if !ok || !k.Activated {
		return LicenseKey{}, false
	}
	return k.clone(), true
}

// Tx is the view a Mutation gets of the registry while the write lock is held.
type Tx struct {
	r *Registry
}

func (tx *Tx) Get(id string) (LicenseKey, bool) {
	k, ok := tx.r.keys[id]
	return k.clone(), ok
}

func (tx *Tx) FindByOwner(ownerID string) (LicenseKey, bool) {
	return tx.r.findByOwner(ownerID)
}

// Mutation edits key in place. Returning an error aborts the transaction
// and leaves the record untouched.
type Mutation func(tx *Tx, key *LicenseKey) error

// Update applies mutation to the record as one atomic transaction. The
// result is persisted before it becomes visible to readers.
func (r *Registry) Update(ctx context.Context, id string, mutation Mutation) (LicenseKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.keys[id]
	if !ok {
		return LicenseKey{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}

	next := current.clone()
	if err := mutation(&Tx{r: r}, &next); err != nil {
		return current.clone(), err
	}
	if err := checkTransition(current, next); err != nil {
		return current.clone(), fmt.Errorf("update %s: %w", id, err)
	}
	if sameKey(current, next) {
		return next, nil
	}

	if r.store != nil {
		if err := r.store.SaveKey(ctx, next); err != nil {
			return current.clone(), fmt.Errorf("update %s: %w", id, err)
		}
	}
	r.keys[id] = next
	if next.Activated && current.OwnerID == "" {
		r.owners[next.OwnerID] = id
	}
	return next.clone(), nil
}

func checkTransition(prev, next LicenseKey) error {
	switch {
	case next.ID != prev.ID:
		return errImmutable
	case prev.Activated && !next.Activated:
		return errImmutable
	case prev.OwnerID != "" && next.OwnerID != prev.OwnerID:
		return errImmutable
	case next.Activated != (next.OwnerID != ""):
		return errImmutable
	case prev.Fingerprint != "" && next.Fingerprint != prev.Fingerprint:
		return errImmutable
	case next.DurationDays != prev.DurationDays:
		return errImmutable
	}
	return nil
}

// Stats summarises the registry.
type Stats struct {
	Total     int
	Activated int
	Bound     int
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{Total: len(r.keys)}
	for _, k := range r.keys {
		if k.Activated {
			s.Activated++
		}
		if k.Fingerprint != "" {
			s.Bound++
		}
	}
	return s
}

// Sweep removes activated keys that expired before cutoff, along with their
// owner index entries. Unactivated keys are never swept.
func (r *Registry) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, k := range r.keys {
		if k.Activated && k.ExpiresAt != nil && k.ExpiresAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if r.store != nil {
		if err := r.store.DeleteKeys(ctx, ids); err != nil {
			return 0, fmt.Errorf("sweep: %w", err)
		}
	}
	for _, id := range ids {
		owner := r.keys[id].OwnerID
		if r.owners[owner] == id {
			delete(r.owners, owner)
		}
		delete(r.keys, id)
	}
	return len(ids), nil
}
