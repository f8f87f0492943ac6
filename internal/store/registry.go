package store

import (
	"context"
	"errors"
	"sync"
)

// ErrTenantRequired is returned when no tenant is given
var ErrTenantRequired = errors.New("tenant id is required")

type registryEntry struct {
	store   *Store
	ready   chan struct{}
	loadErr error
}

// Registry owns one Store per tenant. A tenant's store is loaded once, on
// first use; later loads happen only on explicit Reload.
type Registry struct {
	catalog Catalog
	opts    []Option

	mu     sync.Mutex
	stores map[string]*registryEntry
	closed bool
}

// NewRegistry creates a registry whose stores share catalog and opts
func NewRegistry(catalog Catalog, opts ...Option) *Registry {
	return &Registry{
		catalog: catalog,
		opts:    opts,
		stores:  make(map[string]*registryEntry),
	}
}

// ForTenant returns the tenant's store, mounting and loading it on first
// use. A failed initial load is reported through the store's State.
func (r *Registry) ForTenant(ctx context.Context, tenantID string) (*Store, error) {
	entry, _, err := r.get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return entry.store, nil
}

// Reload refreshes the tenant's collection from the server
func (r *Registry) Reload(ctx context.Context, tenantID string) (*Store, error) {
	entry, fresh, err := r.get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if fresh {
		return entry.store, entry.loadErr
	}
	return entry.store, entry.store.Load(ctx)
}

// Tenants returns the number of mounted stores
func (r *Registry) Tenants() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Close unmounts every store
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, entry := range r.stores {
		entry.store.Close()
	}
}

func (r *Registry) get(ctx context.Context, tenantID string) (*registryEntry, bool, error) {
	if tenantID == "" {
		return nil, false, ErrTenantRequired
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, false, ErrClosed
	}
	entry, ok := r.stores[tenantID]
	if !ok {
		entry = &registryEntry{
			store: New(tenantID, r.catalog, r.opts...),
			ready: make(chan struct{}),
		}
		r.stores[tenantID] = entry
		r.mu.Unlock()

		// the mount load outlives the request that triggered it
		entry.loadErr = entry.store.Load(context.WithoutCancel(ctx))
		close(entry.ready)
		return entry, true, nil
	}
	r.mu.Unlock()

	select {
	case <-entry.ready:
		return entry, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
