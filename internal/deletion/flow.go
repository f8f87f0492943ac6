package deletion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront-admin-service/internal/models"
	"storefront-admin-service/internal/store"
)

// Phase of a delete confirmation flow
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseConfirmPending Phase = "confirm_pending"
	PhaseDeleting       Phase = "deleting"
)

var (
	// ErrAffordanceDisabled means the delete control for this product is
	// disabled because a confirmation or operation is already running for it
	ErrAffordanceDisabled = errors.New("delete is not available for this product right now")
	// ErrBusy means a confirmation for another product is open
	ErrBusy = errors.New("another delete confirmation is open")
	// ErrNotPending means no confirmation is open for the product
	ErrNotPending = errors.New("no delete confirmation is open for this product")
)

// Target is the part of the Catalog Store the flow needs
type Target interface {
	Lookup(id models.ProductID) (models.Product, bool)
	IsPending(id models.ProductID) bool
	Remove(ctx context.Context, id models.ProductID) error
}

// Prompt is the confirmation shown to the admin
type Prompt struct {
	ProductID   models.ProductID `json:"productId"`
	ProductName string           `json:"productName"`
	Message     string           `json:"message"`
}

// Status is a snapshot of the flow
type Status struct {
	Phase  Phase            `json:"phase"`
	Target models.ProductID `json:"target,omitempty"`
}

// Flow guards deletion behind an explicit confirmation step.
// Remove is only ever called from Confirm.
type Flow struct {
	store Target

	mu     sync.Mutex
	phase  Phase
	target models.ProductID
}

// NewFlow creates an idle flow over store
func NewFlow(s Target) *Flow {
	return &Flow{store: s, phase: PhaseIdle}
}

// Request opens a confirmation for id
func (f *Flow) Request(id models.ProductID) (Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.phase != PhaseIdle {
		if f.target == id {
			return Prompt{}, ErrAffordanceDisabled
		}
		return Prompt{}, ErrBusy
	}
	if f.store.IsPending(id) {
		return Prompt{}, ErrAffordanceDisabled
	}
	product, ok := f.store.Lookup(id)
	if !ok {
		return Prompt{}, fmt.Errorf("%w: %s", store.ErrUnknownProduct, id)
	}

	f.phase = PhaseConfirmPending
	f.target = id
	return Prompt{
		ProductID:   id,
		ProductName: product.Name,
		Message:     fmt.Sprintf("Are you sure you want to delete %q?", product.Name),
	}, nil
}

// Confirm deletes the pending target and returns to idle whatever the outcome
func (f *Flow) Confirm(ctx context.Context, id models.ProductID) error {
	f.mu.Lock()
	if f.phase == PhaseDeleting && f.target == id {
		f.mu.Unlock()
		return ErrAffordanceDisabled
	}
	if f.phase != PhaseConfirmPending || f.target != id {
		f.mu.Unlock()
		return ErrNotPending
	}
	f.phase = PhaseDeleting
	f.mu.Unlock()

	err := f.store.Remove(ctx, id)

	f.mu.Lock()
	f.phase = PhaseIdle
	f.target = ""
	f.mu.Unlock()
	return err
}

// Holds reports whether id is awaiting confirmation or being deleted
func (f *Flow) Holds(id models.ProductID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase != PhaseIdle && f.target == id
}

// Cancel dismisses the confirmation without contacting the server
func (f *Flow) Cancel(id models.ProductID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.phase == PhaseIdle:
		return nil
	case f.target != id:
		return ErrNotPending
	case f.phase == PhaseDeleting:
		return ErrAffordanceDisabled
	}
	f.phase = PhaseIdle
	f.target = ""
	return nil
}

// Status returns the current phase and target
func (f *Flow) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{Phase: f.phase, Target: f.target}
}
