package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storefront-admin-service/internal/clients"
	"storefront-admin-service/internal/models"
)

// DefaultSessionTTL is how long an untouched session survives
const DefaultSessionTTL = 30 * time.Minute

// ErrSessionNotFound is returned for unknown, expired or foreign sessions
var ErrSessionNotFound = errors.New("editor session not found")

// ManagerOptions configures a Manager
type ManagerOptions struct {
	SessionTTL    time.Duration
	MaxImageBytes int64
	Logger        *logrus.Entry
}

// Manager tracks open editor sessions by id and owner
type Manager struct {
	categories    clients.CategoryLister
	ttl           time.Duration
	maxImageBytes int64
	logger        *logrus.Entry
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager fetching categories from source
func NewManager(source clients.CategoryLister, opts ManagerOptions) *Manager {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = DefaultMaxImageBytes
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		categories:    source,
		ttl:           opts.SessionTTL,
		maxImageBytes: opts.MaxImageBytes,
		logger:        opts.Logger.WithField("component", "product_editor"),
		now:           time.Now,
		sessions:      make(map[string]*Session),
	}
}

// OpenCreate opens an editor seeded with the create defaults
func (m *Manager) OpenCreate(ctx context.Context, owner Owner, submitter Submitter) (*Session, error) {
	return m.open(ctx, owner, ModeCreate, "", DefaultFormValues(), submitter)
}

// OpenEdit opens an editor seeded with product's current attributes
func (m *Manager) OpenEdit(ctx context.Context, owner Owner, submitter Submitter, product models.Product) (*Session, error) {
	if !product.IsPersisted() {
		return nil, ErrNoProductID
	}
	return m.open(ctx, owner, ModeEdit, product.ID, FormValuesFrom(product), submitter)
}

func (m *Manager) open(ctx context.Context, owner Owner, mode Mode, target models.ProductID, form FormValues, submitter Submitter) (*Session, error) {
	s := newSession(uuid.New().String(), owner, mode, target, form, submitter, m.maxImageBytes, m.logger, m.now)
	s.loadCategories(ctx, m.categories)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	s.logger.WithField("tenant_id", owner.TenantID).Debug("editor opened")
	return s, nil
}

// Get returns the owner's session
func (m *Manager) Get(owner Owner, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.owner != owner {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Submit submits the owner's session and forgets it once it closes
func (m *Manager) Submit(ctx context.Context, owner Owner, id string) (models.Product, error) {
	s, err := m.Get(owner, id)
	if err != nil {
		return models.Product{}, err
	}
	product, err := s.Submit(ctx)
	if s.State() == StateClosed {
		m.forget(id)
	}
	return product, err
}

// Cancel closes and forgets the owner's session
func (m *Manager) Cancel(owner Owner, id string) error {
	s, err := m.Get(owner, id)
	if err != nil {
		return err
	}
	s.Cancel()
	m.forget(id)
	return nil
}

// Len returns the number of tracked sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Expire closes sessions idle longer than the TTL and returns how many
func (m *Manager) Expire() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	expired := 0
	for id, s := range m.sessions {
		if s.expireIfIdle(cutoff) {
			delete(m.sessions, id)
			expired++
		}
	}
	m.mu.Unlock()

	if expired > 0 {
		m.logger.WithField("count", expired).Info("expired idle editor sessions")
	}
	return expired
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
