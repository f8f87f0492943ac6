package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"storefront-admin-service/internal/clients"
	"storefront-admin-service/internal/models"
)

// Mode is the identity an editor session is bound to
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// State of an editor session
type State string

const (
	StateOpen       State = "open"
	StateSubmitting State = "submitting"
	StateClosed     State = "closed"
)

const categoriesWarning = "Failed to load categories"

var (
	ErrNotOpen     = errors.New("editor session is not open")
	ErrSubmitting  = errors.New("a submission is already in progress")
	ErrNoProductID = errors.New("edit mode requires a saved product")
)

// Submitter is the part of the Catalog Store the editor writes through
type Submitter interface {
	Create(ctx context.Context, payload models.ProductPayload) (models.Product, error)
	Update(ctx context.Context, id models.ProductID, payload models.ProductPayload) (models.Product, error)
}

// Owner identifies who opened a session
type Owner struct {
	TenantID string
	UserID   string
}

// AttachmentInfo describes the pending upload without its bytes
type AttachmentInfo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// View is a serializable snapshot of a session
type View struct {
	ID          string            `json:"id"`
	Mode        Mode              `json:"mode"`
	State       State             `json:"state"`
	TargetID    models.ProductID  `json:"targetId,omitempty"`
	Form        FormValues        `json:"form"`
	Categories  []models.Category `json:"categories"`
	Badges      []BadgeOption     `json:"badges"`
	Warning     string            `json:"warning,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	Error       string            `json:"error,omitempty"`
	Attachment  *AttachmentInfo   `json:"attachment,omitempty"`
}

// BadgeOption is one entry of the badge selector
type BadgeOption struct {
	Value models.Badge `json:"value"`
	Label string       `json:"label"`
}

func badgeOptions() []BadgeOption {
	badges := models.Badges()
	out := make([]BadgeOption, 0, len(badges))
	for _, b := range badges {
		out = append(out, BadgeOption{Value: b, Label: b.Label()})
	}
	return out
}

// Session is one opening of the product editor
type Session struct {
	id            string
	owner         Owner
	mode          Mode
	target        models.ProductID
	submitter     Submitter
	maxImageBytes int64
	logger        *logrus.Entry
	now           func() time.Time

	mu          sync.Mutex
	state       State
	form        FormValues
	categories  []models.Category
	warning     string
	fieldErrors map[string]string
	lastErr     string
	attachment  *models.Attachment
	lastActive  time.Time
}

func newSession(id string, owner Owner, mode Mode, target models.ProductID, form FormValues, submitter Submitter, maxImageBytes int64, logger *logrus.Entry, now func() time.Time) *Session {
	return &Session{
		id:            id,
		owner:         owner,
		mode:          mode,
		target:        target,
		submitter:     submitter,
		maxImageBytes: maxImageBytes,
		logger:        logger.WithFields(logrus.Fields{"session_id": id, "mode": mode}),
		now:           now,
		state:         StateOpen,
		form:          form,
		categories:    []models.Category{},
		lastActive:    now(),
	}
}

// loadCategories fetches the selector options once per opening. A failure
// leaves the list empty with a non-blocking warning.
func (s *Session) loadCategories(ctx context.Context, source clients.CategoryLister) {
	if source == nil {
		return
	}
	categories, err := source.ListCategories(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.WithError(err).Warn("failed to load categories")
		s.categories = []models.Category{}
		s.warning = categoriesWarning
		return
	}
	sorted := append([]models.Category{}, categories...)
	clients.SortCategories(sorted)
	s.categories = sorted
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// Owner returns who opened the session
func (s *Session) Owner() Owner { return s.owner }

// Apply patches form fields. Values are only judged at submission.
func (s *Session) Apply(fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	if err := s.form.apply(fields); err != nil {
		return err
	}
	for k := range fields {
		name := k
		if alias, ok := fieldAliases[k]; ok {
			name = alias
		}
		delete(s.fieldErrors, name)
	}
	s.touchLocked()
	return nil
}

// Attach sets the pending image upload, replacing any previous one
func (s *Session) Attach(att models.Attachment) error {
	checked, err := checkAttachment(att, s.maxImageBytes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.attachment = checked
	delete(s.fieldErrors, "image")
	s.touchLocked()
	return nil
}

// Detach drops the pending upload
func (s *Session) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.attachment = nil
	s.touchLocked()
	return nil
}

// Submit validates the form and hands one payload to the store. The session
// closes on success and stays open with the error otherwise.
func (s *Session) Submit(ctx context.Context) (models.Product, error) {
	s.mu.Lock()
	if err := s.editableLocked(); err != nil {
		s.mu.Unlock()
		return models.Product{}, err
	}
	payload, err := s.form.payload(s.attachment)
	if err != nil {
		var verrs models.ValidationErrors
		if errors.As(err, &verrs) {
			s.fieldErrors = verrs.Fields()
		}
		s.lastErr = ""
		s.touchLocked()
		s.mu.Unlock()
		return models.Product{}, err
	}
	s.state = StateSubmitting
	s.fieldErrors = nil
	s.lastErr = ""
	mode, target := s.mode, s.target
	s.mu.Unlock()

	var product models.Product
	if mode == ModeEdit {
		product, err = s.submitter.Update(ctx, target, payload)
	} else {
		product, err = s.submitter.Create(ctx, payload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	if s.state == StateClosed {
		// cancelled while in flight; the store already holds the outcome
		s.logger.Debug("submission finished after the session was closed")
		return product, err
	}
	if err != nil {
		s.state = StateOpen
		var verrs models.ValidationErrors
		if errors.As(err, &verrs) {
			s.fieldErrors = verrs.Fields()
		}
		s.lastErr = errorMessage(err)
		return models.Product{}, err
	}

	s.state = StateClosed
	s.attachment = nil
	return product, nil
}

// Cancel closes the session. An in-flight submission is not aborted.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
	s.attachment = nil
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns a snapshot of the session
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:         s.id,
		Mode:       s.mode,
		State:      s.state,
		TargetID:   s.target,
		Form:       s.form.clone(),
		Categories: append([]models.Category{}, s.categories...),
		Badges:     badgeOptions(),
		Warning:    s.warning,
		Error:      s.lastErr,
	}
	if len(s.fieldErrors) > 0 {
		v.FieldErrors = make(map[string]string, len(s.fieldErrors))
		for k, msg := range s.fieldErrors {
			v.FieldErrors[k] = msg
		}
	}
	if s.attachment != nil {
		v.Attachment = &AttachmentInfo{
			Filename:    s.attachment.Filename,
			ContentType: s.attachment.ContentType,
			Size:        s.attachment.Size(),
		}
	}
	return v
}

// expireIfIdle closes the session when it was last active before cutoff.
// A submission in flight is never expired.
func (s *Session) expireIfIdle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting || !s.lastActive.Before(cutoff) {
		return false
	}
	s.state = StateClosed
	s.attachment = nil
	return true
}

func (s *Session) editableLocked() error {
	switch s.state {
	case StateOpen:
		return nil
	case StateSubmitting:
		return ErrSubmitting
	default:
		return ErrNotOpen
	}
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

func errorMessage(err error) string {
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return err.Error()
}
