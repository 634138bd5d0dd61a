package cart

import (
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Storage persists the cart between runs. Persistence is advisory: the
// in-memory store stays authoritative for the session, and storage errors
// are logged and otherwise ignored.
type Storage interface {
	Load() ([]Item, error)
	Save([]Item) error
}

// taxRate is the flat share of the displayed total treated as tax on the
// checkout summary.
var taxRate = decimal.New(16, -2)

// Store holds the user's pending selection with set semantics over the
// item id: adding an id twice keeps the first item untouched.
type Store struct {
	mu      sync.Mutex
	items   []Item
	storage Storage
	log     logrus.FieldLogger
}

// NewStore builds a store hydrated from storage. A failed load starts the
// session with an empty cart.
func NewStore(storage Storage, log logrus.FieldLogger) *Store {
	s := &Store{
		storage: storage,
		log:     log,
	}

	items, err := storage.Load()
	if err != nil {
		s.log.Warnf("loading cart from storage: %v", err)
		return s
	}
	s.items = items

	return s
}

// Add inserts the item unless one with the same id is already present.
// Items are taken as-is; the price was already sanitized on decode.
func (s *Store) Add(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.items {
		if it.ID == item.ID {
			return
		}
	}

	s.items = append(s.items, item)
	s.persist()
}

// Remove drops the item with the given id, a no-op when absent.
func (s *Store) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.persist()
			return
		}
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.persist()
}

// Items returns the line items in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tot decimal.Decimal
	for _, it := range s.items {
		tot = tot.Add(it.Price.Decimal)
	}
	return tot
}

func (s *Store) IsInCart(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.items {
		if it.ID == id {
			return true
		}
	}
	return false
}

// CourseIDs lists the ids in the cart, ready for the create-order call.
func (s *Store) CourseIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.items))
	for _, it := range s.items {
		ids = append(ids, it.ID)
	}
	return ids
}

// Totals is the checkout summary split: prices are tax-inclusive and 16%
// of the total is displayed as tax, rounded to cents.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

func (s *Store) Totals() Totals {
	total := s.TotalPrice()
	tax := total.Mul(taxRate).Round(2)

	return Totals{
		Subtotal: total.Sub(tax),
		Tax:      tax,
		Total:    total,
	}
}

// persist mirrors the current items to storage. Callers hold the lock.
func (s *Store) persist() {
	if err := s.storage.Save(s.items); err != nil {
		s.log.Warnf("persisting cart: %v", err)
	}
}
