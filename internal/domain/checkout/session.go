// Package checkout holds the checkout session step machine and the shipping
// address model.
package checkout

import (
	"fmt"
	"sync"

	"github.com/go-faster/errors"
)

// Step is a checkout session state.
type Step string

const (
	StepCart    Step = "cart"
	StepAddress Step = "address"
	StepPlacing Step = "placing"
	StepPlaced  Step = "placed"
)

// Sentinel errors for illegal transitions and placement preconditions.
var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrNoZoneSelected   = errors.New("no delivery zone selected")
	ErrQuotePending     = errors.New("shipping quote still resolving")
	ErrQuoteUnavailable = errors.New("no valid shipping quote")
	ErrPlacementDone    = errors.New("order already placed")
)

// TransitionError indicates a step change not permitted from the current step.
type TransitionError struct {
	From Step
	To   Step
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s", e.From, e.To)
}

// Session drives cart → address → placing → placed. Placed is terminal;
// a recoverable placement failure reverts to address.
type Session struct {
	mu   sync.Mutex
	step Step
}

// NewSession starts a session at the cart step.
func NewSession() *Session {
	return &Session{step: StepCart}
}

// Step returns the current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// ToAddress moves cart → address. Requires a non-empty cart.
func (s *Session) ToAddress(cartEmpty bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != StepCart {
		return &TransitionError{From: s.step, To: StepAddress}
	}
	if cartEmpty {
		return ErrEmptyCart
	}
	s.step = StepAddress
	return nil
}

// BackToCart moves address → cart. Always permitted from address; the cart
// is untouched.
func (s *Session) BackToCart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != StepAddress {
		return &TransitionError{From: s.step, To: StepCart}
	}
	s.step = StepCart
	return nil
}

// BeginPlacement moves address → placing after validating the placement
// preconditions: a structurally valid address, a selected zone, and a
// resolved (not in-flight) quote.
func (s *Session) BeginPlacement(addr Address, zoneSelected, quoteLoading, quoteReady bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step == StepPlaced {
		return ErrPlacementDone
	}
	if s.step != StepAddress {
		return &TransitionError{From: s.step, To: StepPlacing}
	}
	if err := addr.Validate(); err != nil {
		return err
	}
	if !zoneSelected {
		return ErrNoZoneSelected
	}
	if quoteLoading {
		return ErrQuotePending
	}
	if !quoteReady {
		return ErrQuoteUnavailable
	}
	s.step = StepPlacing
	return nil
}

// FinishPlacement leaves the ephemeral placing step: placed on success,
// back to address on a recoverable failure.
func (s *Session) FinishPlacement(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != StepPlacing {
		return
	}
	if success {
		s.step = StepPlaced
	} else {
		s.step = StepAddress
	}
}

// MarkPlaced forces the terminal step. Used when a partial success is
// explicitly accepted from the address step.
func (s *Session) MarkPlaced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = StepPlaced
}
