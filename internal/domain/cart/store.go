package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Repository persists cart contents keyed per session so the cart survives
// reloads. Implementations live outside the domain package.
type Repository interface {
	Save(ctx context.Context, sessionID string, lines []Line) error
	Load(ctx context.Context, sessionID string) ([]Line, error)
	Delete(ctx context.Context, sessionID string) error
}

// Store is the keyed collection of cart lines. Every mutation recomputes the
// derived total and count and writes through to the repository when one is
// configured.
type Store struct {
	mu        sync.Mutex
	sessionID string
	lines     map[string]Line
	order     []string
	total     decimal.Decimal
	count     int
	repo      Repository
}

// NewStore creates an empty cart for the given session. repo may be nil for
// an unpersisted cart.
func NewStore(sessionID string, repo Repository) *Store {
	return &Store{
		sessionID: sessionID,
		lines:     make(map[string]Line),
		total:     decimal.Zero,
		repo:      repo,
	}
}

// Restore loads previously persisted lines for the session. Lines carrying an
// unknown kind (written before tagging) are kept as-is; classification
// happens at partition time.
func (s *Store) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	lines, err := s.repo.Load(ctx, s.sessionID)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = make(map[string]Line, len(lines))
	s.order = s.order[:0]
	for _, l := range lines {
		k := l.Key()
		if _, ok := s.lines[k]; !ok {
			s.order = append(s.order, k)
		}
		s.lines[k] = l
	}
	s.recompute()
	return nil
}

// Add inserts a line, or increments the quantity when the (product, variant)
// key already exists. The combined quantity is checked against the line's
// stock ceiling.
func (s *Store) Add(ctx context.Context, line Line) error {
	if line.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := line.Key()
	if existing, ok := s.lines[k]; ok {
		next := existing.Quantity + line.Quantity
		if next > existing.Stock {
			return &InsufficientStockError{Name: existing.Name, Requested: next, Available: existing.Stock}
		}
		existing.Quantity = next
		s.lines[k] = existing
	} else {
		if line.Quantity > line.Stock {
			return &InsufficientStockError{Name: line.Name, Requested: line.Quantity, Available: line.Stock}
		}
		s.lines[k] = line
		s.order = append(s.order, k)
	}

	s.recompute()
	return s.persist(ctx)
}

// UpdateQuantity sets the quantity for an existing line. Zero or negative
// removes the line; below the unit's minimum increment or above the stock
// ceiling is rejected.
func (s *Store) UpdateQuantity(ctx context.Context, key string, quantity float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[key]
	if !ok {
		return errors.Wrapf(ErrUnknownLine, "key %q", key)
	}

	if quantity <= 0 {
		s.remove(key)
		s.recompute()
		return s.persist(ctx)
	}
	if min := line.Unit.MinIncrement(); quantity < min {
		return &BelowMinimumError{Name: line.Name, Unit: line.Unit, Min: min}
	}
	if quantity > line.Stock {
		return &InsufficientStockError{Name: line.Name, Requested: quantity, Available: line.Stock}
	}

	line.Quantity = quantity
	s.lines[key] = line
	s.recompute()
	return s.persist(ctx)
}

// Remove deletes a line. Removing an absent key is a no-op.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lines[key]; !ok {
		return nil
	}
	s.remove(key)
	s.recompute()
	return s.persist(ctx)
}

// Clear empties the cart and deletes the persisted copy.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = make(map[string]Line)
	s.order = s.order[:0]
	s.recompute()

	if s.repo == nil {
		return nil
	}
	if err := s.repo.Delete(ctx, s.sessionID); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}

// Lines returns the cart contents in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Line, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.lines[k])
	}
	return out
}

// Get returns the line for a key, if present.
func (s *Store) Get(key string) (Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[key]
	return l, ok
}

// Total returns Σ(unitPrice × quantity) across all lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Count returns the number of distinct lines in the cart.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	return s.Count() == 0
}

// remove drops a key from both the map and the ordering. Caller holds mu.
func (s *Store) remove(key string) {
	delete(s.lines, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// recompute refreshes the derived total and count. Caller holds mu.
func (s *Store) recompute() {
	total := decimal.Zero
	for _, k := range s.order {
		total = total.Add(s.lines[k].Subtotal())
	}
	s.total = total
	s.count = len(s.order)
}

// persist writes the current lines through to the repository. Caller holds mu.
func (s *Store) persist(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	lines := make([]Line, 0, len(s.order))
	for _, k := range s.order {
		lines = append(lines, s.lines[k])
	}
	if err := s.repo.Save(ctx, s.sessionID, lines); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}
