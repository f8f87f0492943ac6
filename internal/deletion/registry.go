package deletion

import (
	"sync"

	"storefront-admin-service/internal/models"
)

type flowKey struct {
	tenantID string
	userID   string
}

// Registry keeps one flow per admin
type Registry struct {
	mu    sync.Mutex
	flows map[flowKey]*Flow
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{flows: make(map[flowKey]*Flow)}
}

// For returns the admin's flow, creating it over target on first use
func (r *Registry) For(tenantID, userID string, target Target) *Flow {
	key := flowKey{tenantID: tenantID, userID: userID}

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.flows[key]; ok {
		return f
	}
	f := NewFlow(target)
	r.flows[key] = f
	return f
}

// Holds reports whether the admin's flow has a confirmation open or a
// delete running for id. It never creates a flow.
func (r *Registry) Holds(tenantID, userID string, id models.ProductID) bool {
	r.mu.Lock()
	f, ok := r.flows[flowKey{tenantID: tenantID, userID: userID}]
	r.mu.Unlock()
	return ok && f.Holds(id)
}
