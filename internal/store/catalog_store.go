package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"storefront-admin-service/internal/clients"
	"storefront-admin-service/internal/models"
)

var (
	// ErrOperationInFlight is returned when an update or delete is already
	// running for the same product
	ErrOperationInFlight = errors.New("an operation is already in progress for this product")
	// ErrUnknownProduct is returned for ids not present in the local collection
	ErrUnknownProduct = errors.New("product not found")
	// ErrClosed is returned once the store has been unmounted
	ErrClosed = errors.New("catalog store is closed")
)

// Status is the load state of the collection
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// NoticeKind distinguishes success and error banners
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is the last banner shown to the admin
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// State is a snapshot of the store's bookkeeping
type State struct {
	Status       Status             `json:"status"`
	Error        string             `json:"error,omitempty"`
	Notice       *Notice            `json:"notice,omitempty"`
	Pending      []models.ProductID `json:"pending"`
	LastLoadedAt *time.Time         `json:"lastLoadedAt,omitempty"`
}

const (
	msgCreated = "Product created successfully"
	msgUpdated = "Product updated successfully"
	msgDeleted = "Product deleted successfully"
)

// Catalog is the remote catalog API the store synchronizes with
type Catalog interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	CreateProduct(ctx context.Context, payload models.ProductPayload) (*clients.MutationResult, error)
	UpdateProduct(ctx context.Context, id models.ProductID, payload models.ProductPayload) (*clients.MutationResult, error)
	DeleteProduct(ctx context.Context, id models.ProductID) (string, error)
}

// EventPublisher receives confirmed mutations
type EventPublisher interface {
	PublishProductCreated(ctx context.Context, tenantID, actorID string, product models.Product) error
	PublishProductUpdated(ctx context.Context, tenantID, actorID string, product, previous models.Product) error
	PublishProductDeleted(ctx context.Context, tenantID, actorID string, product models.Product) error
}

// Store is the authoritative local product collection of one tenant.
// Only the store mutates the collection, and only after the catalog has
// acknowledged the change.
type Store struct {
	tenantID  string
	catalog   Catalog
	publisher EventPublisher
	logger    *logrus.Entry
	now       func() time.Time

	mu       sync.Mutex
	products []models.Product
	pending  map[models.ProductID]struct{}
	status   Status
	lastErr  string
	notice   *Notice
	loaded   bool
	loadedAt time.Time
	loadSeq  uint64
	epoch    uint64 // mutations applied to the collection
	closed   bool
}

// Option configures a Store
type Option func(*Store)

// WithPublisher publishes confirmed mutations
func WithPublisher(p EventPublisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithLogger sets the store logger
func WithLogger(l *logrus.Entry) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty, unloaded store
func New(tenantID string, catalog Catalog, opts ...Option) *Store {
	s := &Store{
		tenantID: tenantID,
		catalog:  catalog,
		now:      time.Now,
		products: []models.Product{},
		pending:  make(map[models.ProductID]struct{}),
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	s.logger = s.logger.WithFields(logrus.Fields{"component": "catalog_store", "tenant_id": tenantID})
	return s
}

// TenantID returns the tenant the store belongs to
func (s *Store) TenantID() string {
	return s.tenantID
}

// maxLoadAttempts bounds how often Load re-fetches a listing that a
// concurrently applied mutation made stale
const maxLoadAttempts = 3

// Load replaces the collection with the server's. On failure the
// collection stays as it was, or empty if it was never loaded.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.loadSeq++
	seq := s.loadSeq
	s.status = StatusLoading
	s.mu.Unlock()

	var (
		products []models.Product
		err      error
		epoch    uint64
	)
	for attempt := 1; attempt <= maxLoadAttempts; attempt++ {
		s.mu.Lock()
		epoch = s.epoch
		s.mu.Unlock()

		products, err = s.catalog.ListProducts(ctx)

		s.mu.Lock()
		stale := err == nil && epoch != s.epoch
		s.mu.Unlock()
		if !stale {
			break
		}
		s.logger.WithField("attempt", attempt).Debug("listing predates an applied mutation, fetching again")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err == nil && epoch != s.epoch {
		// every listing raced a mutation; keep the confirmed local collection
		if seq == s.loadSeq {
			s.status = StatusReady
			if !s.loaded {
				s.status = StatusIdle
			}
		}
		s.logger.Warn("discarding product listing older than applied mutations")
		return nil
	}
	if seq != s.loadSeq {
		// a newer load owns the collection
		if err != nil {
			return fmt.Errorf("failed to load products: %w", err)
		}
		return nil
	}

	if err != nil {
		msg := userMessage(err)
		s.status = StatusError
		s.lastErr = msg
		s.notice = &Notice{Kind: NoticeError, Message: msg, At: s.now()}
		if !s.loaded {
			s.products = []models.Product{}
		}
		s.logger.WithError(err).Warn("failed to load products")
		return fmt.Errorf("failed to load products: %w", err)
	}

	s.products = cloneAll(products)
	s.loaded = true
	s.loadedAt = s.now()
	s.status = StatusReady
	s.lastErr = ""
	s.logger.WithField("count", len(products)).Debug("products loaded")
	return nil
}

// Create submits a new product and appends the server's representation
func (s *Store) Create(ctx context.Context, payload models.ProductPayload) (models.Product, error) {
	payload = payload.Normalized()
	if err := payload.Validate(); err != nil {
		return models.Product{}, err
	}
	if s.isClosed() {
		return models.Product{}, ErrClosed
	}

	ctx = context.WithoutCancel(ctx)
	result, err := s.catalog.CreateProduct(ctx, payload)
	if err != nil {
		s.recordFailure("create", err)
		return models.Product{}, fmt.Errorf("failed to create product: %w", err)
	}

	product := result.Product
	message := messageOr(result.Message, msgCreated)

	if product.ID.IsZero() || (payload.HasAttachment() && !result.Echoed) {
		product = s.reconcile(ctx, product, message)
	} else {
		s.mu.Lock()
		if !s.closed {
			s.upsert(product)
			s.epoch++
			s.notice = &Notice{Kind: NoticeSuccess, Message: message, At: s.now()}
		}
		s.mu.Unlock()
	}

	if !product.ID.IsZero() {
		s.publish(ctx, func(p EventPublisher, actor string) error {
			return p.PublishProductCreated(ctx, s.tenantID, actor, product)
		})
	}
	return product.Clone(), nil
}

// Update replaces the attributes of product id, keeping its position
func (s *Store) Update(ctx context.Context, id models.ProductID, payload models.ProductPayload) (models.Product, error) {
	payload = payload.Normalized()
	if err := payload.Validate(); err != nil {
		return models.Product{}, err
	}

	previous, err := s.acquire(id)
	if err != nil {
		return models.Product{}, err
	}
	defer s.release(id)

	ctx = context.WithoutCancel(ctx)
	result, err := s.catalog.UpdateProduct(ctx, id, payload)
	if err != nil {
		s.recordFailure("update", err)
		return models.Product{}, fmt.Errorf("failed to update product %s: %w", id, err)
	}

	product := result.Product
	product.ID = id
	if !result.Echoed && product.Image == "" {
		product.Image = previous.Image
	}
	message := messageOr(result.Message, msgUpdated)

	if payload.HasAttachment() && !result.Echoed {
		product = s.reconcile(ctx, product, message)
	} else {
		s.mu.Lock()
		if !s.closed {
			if idx := s.indexOf(id); idx >= 0 {
				s.products[idx] = product.Clone()
			}
			s.epoch++
			s.notice = &Notice{Kind: NoticeSuccess, Message: message, At: s.now()}
		}
		s.mu.Unlock()
	}

	s.publish(ctx, func(p EventPublisher, actor string) error {
		return p.PublishProductUpdated(ctx, s.tenantID, actor, product, previous)
	})
	return product.Clone(), nil
}

// Remove deletes product id on the server, then locally
func (s *Store) Remove(ctx context.Context, id models.ProductID) error {
	target, err := s.acquire(id)
	if err != nil {
		return err
	}
	defer s.release(id)

	ctx = context.WithoutCancel(ctx)
	serverMsg, err := s.catalog.DeleteProduct(ctx, id)
	if err != nil {
		s.recordFailure("delete", err)
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}

	s.mu.Lock()
	if !s.closed {
		if idx := s.indexOf(id); idx >= 0 {
			s.products = append(s.products[:idx], s.products[idx+1:]...)
		}
		s.epoch++
		s.notice = &Notice{Kind: NoticeSuccess, Message: messageOr(serverMsg, msgDeleted), At: s.now()}
	}
	s.mu.Unlock()

	s.publish(ctx, func(p EventPublisher, actor string) error {
		return p.PublishProductDeleted(ctx, s.tenantID, actor, target)
	})
	return nil
}

// Products returns a deep copy of the collection in server order
func (s *Store) Products() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.products)
}

// Lookup returns a copy of product id
func (s *Store) Lookup(id models.ProductID) (models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return models.Product{}, false
	}
	return s.products[idx].Clone(), true
}

// IsPending reports whether an update or delete is in flight for id
func (s *Store) IsPending(id models.ProductID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// State returns the current status, error, notice and pending ids
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Status:  s.status,
		Error:   s.lastErr,
		Pending: make([]models.ProductID, 0, len(s.pending)),
	}
	if s.notice != nil {
		n := *s.notice
		st.Notice = &n
	}
	if s.loaded {
		at := s.loadedAt
		st.LastLoadedAt = &at
	}
	for _, p := range s.products {
		if _, ok := s.pending[p.ID]; ok {
			st.Pending = append(st.Pending, p.ID)
		}
	}
	return st
}

// DismissNotice clears the banner
func (s *Store) DismissNotice() {
	s.mu.Lock()
	s.notice = nil
	s.mu.Unlock()
}

// Close unmounts the store. Calls completing afterwards leave it untouched.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// acquire marks id as in flight and returns its current value
func (s *Store) acquire(id models.ProductID) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.Product{}, ErrClosed
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return models.Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	if _, busy := s.pending[id]; busy {
		return models.Product{}, ErrOperationInFlight
	}
	s.pending[id] = struct{}{}
	return s.products[idx].Clone(), nil
}

func (s *Store) release(id models.ProductID) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// reconcile reloads the collection when the server's response cannot be
// trusted to describe what it stored. If the reload fails and the id is
// known, the synthesized product stands in until the next load.
func (s *Store) reconcile(ctx context.Context, product models.Product, message string) models.Product {
	s.logger.WithField("product_id", product.ID).Debug("server did not echo the stored product, reloading")

	if err := s.Load(ctx); err != nil {
		s.logger.WithError(err).Warn("reconciliation reload failed")
		s.mu.Lock()
		if !s.closed && !product.ID.IsZero() {
			s.upsert(product)
			s.epoch++
			s.notice = &Notice{Kind: NoticeSuccess, Message: message, At: s.now()}
		}
		s.mu.Unlock()
		return product
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.notice = &Notice{Kind: NoticeSuccess, Message: message, At: s.now()}
	}
	if idx := s.indexOf(product.ID); idx >= 0 && !product.ID.IsZero() {
		return s.products[idx].Clone()
	}
	return product
}

// upsert replaces the entry with the same id or appends; caller holds mu
func (s *Store) upsert(product models.Product) {
	if idx := s.indexOf(product.ID); idx >= 0 {
		s.products[idx] = product.Clone()
		return
	}
	s.products = append(s.products, product.Clone())
}

// indexOf returns the position of id or -1; caller holds mu
func (s *Store) indexOf(id models.ProductID) int {
	if id.IsZero() {
		return -1
	}
	for i := range s.products {
		if s.products[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) recordFailure(op string, err error) {
	s.logger.WithError(err).WithField("operation", op).Warn("catalog mutation failed")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.notice = &Notice{Kind: NoticeError, Message: userMessage(err), At: s.now()}
}

func (s *Store) publish(ctx context.Context, send func(p EventPublisher, actor string) error) {
	if s.publisher == nil {
		return
	}
	creds, _ := clients.CredentialsFromContext(ctx)
	if err := send(s.publisher, creds.UserID); err != nil {
		s.logger.WithError(err).Warn("failed to publish product event")
	}
}

func userMessage(err error) string {
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return err.Error()
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

func cloneAll(products []models.Product) []models.Product {
	out := make([]models.Product, len(products))
	for i, p := range products {
		out[i] = p.Clone()
	}
	return out
}
