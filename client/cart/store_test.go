package cart

import (
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/khalidmaz/e-learning-market/client/localstore"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type memStorage struct {
	items   []Item
	loadErr error
	saveErr error
	saves   int
}

func (m *memStorage) Load() ([]Item, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.items, nil
}

func (m *memStorage) Save(items []Item) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.items = items
	return nil
}

func TestAddIsIdempotent(t *testing.T) {
	s := NewStore(&memStorage{}, testLogger())

	for i := 0; i < 5; i++ {
		s.Add(Item{ID: 1, Name: "Algebra", Price: PriceFromString("19.99")})
	}

	if got := s.TotalItems(); got != 1 {
		t.Fatalf("expected 1 item after repeated adds, got %d", got)
	}
}

func TestAddKeepsFirstItem(t *testing.T) {
	s := NewStore(&memStorage{}, testLogger())

	s.Add(Item{ID: 1, Price: PriceFromString("19.99")})
	s.Add(Item{ID: 1, Price: PriceFromString("29.99")})

	items := s.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	want := decimal.RequireFromString("19.99")
	if !items[0].Price.Equal(want) {
		t.Fatalf("expected the first price %s to win, got %s", want, items[0].Price)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	storage := &memStorage{}
	s := NewStore(storage, testLogger())

	s.Add(Item{ID: 1, Price: PriceFromString("10")})
	s.Add(Item{ID: 2, Price: PriceFromString("15")})

	s.Remove(1)

	if got := s.TotalItems(); got != 1 {
		t.Fatalf("expected 1 item after remove, got %d", got)
	}
	if !s.TotalPrice().Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected total 15, got %s", s.TotalPrice())
	}

	saves := storage.saves
	s.Remove(1)

	if got := s.TotalItems(); got != 1 {
		t.Fatalf("second remove should be a no-op, got %d items", got)
	}
	if storage.saves != saves {
		t.Fatal("second remove should not persist")
	}
}

func TestRemoveKeepsOrder(t *testing.T) {
	s := NewStore(&memStorage{}, testLogger())

	s.Add(Item{ID: 1, Price: PriceFromString("10")})
	s.Add(Item{ID: 2, Price: PriceFromString("15")})
	s.Add(Item{ID: 3, Price: PriceFromString("20")})

	s.Remove(2)

	var ids []int64
	for _, it := range s.Items() {
		ids = append(ids, it.ID)
	}
	if diff := cmp.Diff([]int64{1, 3}, ids); diff != "" {
		t.Fatalf("unexpected items after remove (-want +got):\n%s", diff)
	}
}

func TestClear(t *testing.T) {
	s := NewStore(&memStorage{}, testLogger())

	s.Add(Item{ID: 1, Price: PriceFromString("10")})
	s.Add(Item{ID: 2, Price: PriceFromString("15")})
	s.Clear()

	if got := s.TotalItems(); got != 0 {
		t.Fatalf("expected empty cart, got %d items", got)
	}
	if !s.TotalPrice().IsZero() {
		t.Fatalf("expected zero total, got %s", s.TotalPrice())
	}
}

func TestIsInCart(t *testing.T) {
	s := NewStore(&memStorage{}, testLogger())

	s.Add(Item{ID: 7})

	if !s.IsInCart(7) {
		t.Fatal("expected item 7 to be in the cart")
	}
	if s.IsInCart(8) {
		t.Fatal("did not expect item 8 in the cart")
	}
}

func TestTotalPriceExactness(t *testing.T) {
	s := NewStore(&memStorage{}, testLogger())

	// Classic float trap: 0.1 + 0.2. Decimal sums must stay exact.
	s.Add(Item{ID: 1, Price: PriceFromString("0.1")})
	s.Add(Item{ID: 2, Price: PriceFromString("0.2")})

	if got := s.TotalPrice().String(); got != "0.3" {
		t.Fatalf("expected exactly 0.3, got %s", got)
	}
}

func TestPriceCoercion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"number", `{"id":1,"price":19.99}`, "19.99"},
		{"string", `{"id":1,"price":"29.99"}`, "29.99"},
		{"garbage", `{"id":1,"price":"not a price"}`, "0"},
		{"missing", `{"id":1}`, "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var it Item
			if err := json.Unmarshal([]byte(tc.raw), &it); err != nil {
				t.Fatalf("unmarshaling item: %v", err)
			}
			if got := it.Price.String(); got != tc.want {
				t.Fatalf("expected price %s, got %s", tc.want, got)
			}
		})
	}
}

func TestPersistReloadRoundTrip(t *testing.T) {
	kv := localstore.New(filepath.Join(t.TempDir(), "state.json"))

	s := NewStore(NewLocalStorage(kv), testLogger())
	s.Add(Item{ID: 1, Name: "Algebra", Price: PriceFromString("19.99")})
	s.Add(Item{ID: 2, Name: "Geometry", Price: PriceFromString("24.50")})

	reloaded := NewStore(NewLocalStorage(kv), testLogger())

	type pair struct {
		ID    int64
		Price string
	}
	pairs := func(items []Item) []pair {
		out := make([]pair, 0, len(items))
		for _, it := range items {
			out = append(out, pair{ID: it.ID, Price: it.Price.String()})
		}
		return out
	}

	if diff := cmp.Diff(pairs(s.Items()), pairs(reloaded.Items())); diff != "" {
		t.Fatalf("reloaded cart differs (-want +got):\n%s", diff)
	}

	if !s.TotalPrice().Equal(reloaded.TotalPrice()) {
		t.Fatalf("total changed across reload: %s != %s", s.TotalPrice(), reloaded.TotalPrice())
	}
}

func TestLoadFailureStartsEmpty(t *testing.T) {
	s := NewStore(&memStorage{loadErr: errors.New("disk gone")}, testLogger())

	if got := s.TotalItems(); got != 0 {
		t.Fatalf("expected empty cart on load failure, got %d items", got)
	}

	// The store must still work without its storage.
	s.Add(Item{ID: 1, Price: PriceFromString("5")})
	if got := s.TotalItems(); got != 1 {
		t.Fatalf("expected 1 item, got %d", got)
	}
}

func TestSaveFailureKeepsMemoryState(t *testing.T) {
	s := NewStore(&memStorage{saveErr: errors.New("disk full")}, testLogger())

	s.Add(Item{ID: 1, Price: PriceFromString("5")})

	if got := s.TotalItems(); got != 1 {
		t.Fatalf("expected the in-memory cart to keep the item, got %d", got)
	}
}

func TestTotals(t *testing.T) {
	s := NewStore(&memStorage{}, testLogger())

	s.Add(Item{ID: 1, Price: PriceFromString("50")})
	s.Add(Item{ID: 2, Price: PriceFromString("50")})

	tot := s.Totals()

	if got := tot.Total.String(); got != "100" {
		t.Fatalf("expected total 100, got %s", got)
	}
	if got := tot.Tax.String(); got != "16" {
		t.Fatalf("expected tax 16, got %s", got)
	}
	if got := tot.Subtotal.String(); got != "84" {
		t.Fatalf("expected subtotal 84, got %s", got)
	}
}

func TestTotalsRoundsTax(t *testing.T) {
	s := NewStore(&memStorage{}, testLogger())

	s.Add(Item{ID: 1, Price: PriceFromString("19.99")})

	tot := s.Totals()

	// 19.99 * 0.16 = 3.1984, displayed as cents.
	if got := tot.Tax.String(); got != "3.2" {
		t.Fatalf("expected tax 3.2, got %s", got)
	}
	if !tot.Subtotal.Add(tot.Tax).Equal(tot.Total) {
		t.Fatal("subtotal and tax must add up to the total")
	}
}

func TestCourseIDs(t *testing.T) {
	s := NewStore(&memStorage{}, testLogger())

	s.Add(Item{ID: 3})
	s.Add(Item{ID: 1})

	if diff := cmp.Diff([]int64{3, 1}, s.CourseIDs()); diff != "" {
		t.Fatalf("unexpected course ids (-want +got):\n%s", diff)
	}
}
