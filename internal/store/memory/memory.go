package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"supplydesk/backend/internal/domain"
	"supplydesk/backend/internal/store"
)

// Store is an in-process document store. Every write wakes the active
// subscriptions, which then push a fresh full snapshot.
type Store struct {
	mu          sync.RWMutex
	invoices    []domain.Invoice
	invoiceByID map[string]int
	items       []domain.InventoryItem
	categories  []domain.Category
	restaurants []domain.Restaurant

	failWrites map[string]error

	subMu       sync.Mutex
	nextSub     int
	invoiceSubs map[int]chan struct{}
	stockSubs   map[int]chan struct{}
}

func New() *Store {
	return &Store{
		invoiceByID: map[string]int{},
		failWrites:  map[string]error{},
		invoiceSubs: map[int]chan struct{}{},
		stockSubs:   map[int]chan struct{}{},
	}
}

// NewSeeded returns a store with demo reference data and a couple of weeks
// of invoices ending at now.
func NewSeeded(now time.Time) *Store {
	s := New()
	s.categories = []domain.Category{
		{ID: "cat-grains", Name: "Grains"},
		{ID: "cat-dairy", Name: "Dairy"},
		{ID: "cat-produce", Name: "Produce"},
		{ID: "cat-dry", Name: "Dry Goods"},
	}
	s.items = []domain.InventoryItem{
		{ID: "item-rice", Title: "Basmati Rice 10kg", Brand: "Tilda", CategoryID: "cat-grains", AvailableQuantity: 42, SoldQuantity: 118, Price: 18.5},
		{ID: "item-flour", Title: "Plain Flour 16kg", Brand: "Allinson", CategoryID: "cat-grains", AvailableQuantity: 9, SoldQuantity: 64, Price: 14.2},
		{ID: "item-milk", Title: "Whole Milk 4pt", Brand: "Cravendale", CategoryID: "cat-dairy", AvailableQuantity: 60, SoldQuantity: 230, Price: 2.35},
		{ID: "item-butter", Title: "Unsalted Butter 2kg", Brand: "Lurpak", CategoryID: "cat-dairy", AvailableQuantity: 6, SoldQuantity: 41, Price: 16.8},
		{ID: "item-tomato", Title: "Chopped Tomatoes 2.5kg", Brand: "Napolina", CategoryID: "cat-produce", AvailableQuantity: 75, SoldQuantity: 96, Price: 4.1},
		{ID: "item-onion", Title: "Brown Onions 10kg", CategoryID: "cat-produce", AvailableQuantity: 12, SoldQuantity: 57, Price: 7.25},
		{ID: "item-salt", Title: "Sea Salt 1kg", CategoryID: "cat-dry", AvailableQuantity: 30, SoldQuantity: 22, Price: 1.9},
	}
	s.restaurants = []domain.Restaurant{
		{ID: "user-olive", RestaurantName: "The Olive Tree", Email: "orders@olivetree.example", Phone: "020 7946 0011", Address: "12 Market St, London"},
		{ID: "user-spice", RestaurantName: "Spice Route", Email: "kitchen@spiceroute.example", Phone: "020 7946 0022", Address: "4 Brick Ln, London"},
		{ID: "user-harbour", RestaurantName: "Harbour Grill", Email: "chef@harbourgrill.example", Phone: "020 7946 0033", Address: "88 Quay Rd, London"},
	}

	type order struct {
		daysAgo int
		hour    int
		r       int
		status  string
		paid    bool
		items   []domain.LineItem
	}
	orders := []order{
		{0, 9, 0, "pending", false, []domain.LineItem{
			{Title: "Basmati Rice 10kg", Price: 18.5, Quantity: 2, Units: "bag"},
			{Title: "Whole Milk 4pt", Price: 2.35, Quantity: 12, Units: "bottle"},
		}},
		{0, 10, 1, "accepted", false, []domain.LineItem{
			{Title: "Basmati Rice 10kg", Price: 18.5, Quantity: 5, Units: "bag"},
			{Title: "Chopped Tomatoes 2.5kg", Price: 4.1, Quantity: 8, Units: "tin"},
			{Title: "Ghee 1kg", Price: 9.99, Quantity: 3, Units: "tub"},
		}},
		{1, 14, 2, "shipped", false, []domain.LineItem{
			{Title: "Brown Onions 10kg", Price: 7.25, Quantity: 2, Units: "sack"},
		}},
		{2, 11, 0, "delivered", true, []domain.LineItem{
			{Title: "Unsalted Butter 2kg", Price: 16.8, Quantity: 1, Units: "block"},
			{Title: "Plain Flour 16kg", Price: 14.2, Quantity: 2, Units: "bag"},
		}},
		{4, 16, 1, "delivered", true, []domain.LineItem{
			{Title: "Whole Milk 4pt", Price: 2.35, Quantity: 20, Units: "bottle"},
		}},
		{9, 12, 2, "delivered", false, []domain.LineItem{
			{Title: "Sea Salt 1kg", Price: 1.9, Quantity: 6, Units: "bag"},
			{Title: "Basmati Rice 10kg", Price: 18.5, Quantity: 1, Units: "bag"},
		}},
		{16, 9, 0, "delivered", true, []domain.LineItem{
			{Title: "Chopped Tomatoes 2.5kg", Price: 4.1, Quantity: 10, Units: "tin"},
		}},
	}
	for i, o := range orders {
		r := s.restaurants[o.r]
		inv := domain.Invoice{
			ID:             fmt.Sprintf("inv-%03d", i+1),
			UserID:         r.ID,
			RestaurantName: r.RestaurantName,
			CreatedAt:      time.Date(now.Year(), now.Month(), now.Day()-o.daysAgo, o.hour, 0, 0, 0, now.Location()).UTC(),
			Items:          o.items,
			OrderStatus:    o.status,
			IsBillPaid:     o.paid,
		}
		for _, item := range o.items {
			inv.TotalPrice += item.Price * item.Quantity
		}
		s.invoiceByID[inv.ID] = len(s.invoices)
		s.invoices = append(s.invoices, inv)
	}
	return s
}

func (s *Store) ListInventoryItems(_ context.Context) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items), nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories), nil
}

func (s *Store) ListRestaurants(_ context.Context) ([]domain.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.restaurants), nil
}

func (s *Store) ListInvoices(_ context.Context, filter store.InvoiceFilter) ([]domain.Invoice, error) {
	return s.snapshotInvoices(filter), nil
}

func (s *Store) snapshotInvoices(filter store.InvoiceFilter) []domain.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		if filter.Matches(inv) {
			inv.Items = slices.Clone(inv.Items)
			out = append(out, inv)
		}
	}
	return out
}

func (s *Store) SubscribeInvoices(ctx context.Context, filter store.InvoiceFilter, push func([]domain.Invoice)) error {
	return s.subscribe(ctx, s.invoiceSubs, func() { push(s.snapshotInvoices(filter)) })
}

func (s *Store) SubscribeInventory(ctx context.Context, push func([]domain.InventoryItem)) error {
	return s.subscribe(ctx, s.stockSubs, func() {
		items, _ := s.ListInventoryItems(ctx)
		push(items)
	})
}

func (s *Store) subscribe(ctx context.Context, subs map[int]chan struct{}, emit func()) error {
	wake := make(chan struct{}, 1)
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	subs[id] = wake
	s.subMu.Unlock()
	defer func() {
		s.subMu.Lock()
		delete(subs, id)
		s.subMu.Unlock()
	}()

	emit()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
			emit()
		}
	}
}

func (s *Store) notify(subs map[int]chan struct{}) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, wake := range subs {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

func (s *Store) SetInvoiceBillPaid(_ context.Context, invoiceID string, paid bool) error {
	s.mu.Lock()
	if err, ok := s.failWrites[invoiceID]; ok {
		s.mu.Unlock()
		return err
	}
	idx, ok := s.invoiceByID[invoiceID]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	s.invoices[idx].IsBillPaid = paid
	s.mu.Unlock()

	s.notify(s.invoiceSubs)
	return nil
}

// PutInvoice inserts or replaces an invoice by id.
func (s *Store) PutInvoice(_ context.Context, inv domain.Invoice) error {
	if inv.ID == "" {
		return store.ErrInvalidInput
	}
	s.mu.Lock()
	if idx, ok := s.invoiceByID[inv.ID]; ok {
		s.invoices[idx] = inv
	} else {
		s.invoiceByID[inv.ID] = len(s.invoices)
		s.invoices = append(s.invoices, inv)
	}
	s.mu.Unlock()
	s.notify(s.invoiceSubs)
	return nil
}

func (s *Store) PutInventoryItem(_ context.Context, item domain.InventoryItem) error {
	s.mu.Lock()
	idx := slices.IndexFunc(s.items, func(it domain.InventoryItem) bool { return it.ID == item.ID })
	if idx >= 0 {
		s.items[idx] = item
	} else {
		s.items = append(s.items, item)
	}
	s.mu.Unlock()
	s.notify(s.stockSubs)
	return nil
}

func (s *Store) PutCategory(_ context.Context, c domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.categories, func(existing domain.Category) bool { return existing.ID == c.ID })
	if idx >= 0 {
		s.categories[idx] = c
		return nil
	}
	s.categories = append(s.categories, c)
	return nil
}

func (s *Store) PutRestaurant(_ context.Context, r domain.Restaurant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.restaurants, func(existing domain.Restaurant) bool { return existing.ID == r.ID })
	if idx >= 0 {
		s.restaurants[idx] = r
		return nil
	}
	s.restaurants = append(s.restaurants, r)
	return nil
}

// FailWrites makes later SetInvoiceBillPaid calls for the given invoice
// return err. A nil err clears the failure.
func (s *Store) FailWrites(err error, invoiceIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range invoiceIDs {
		if err == nil {
			delete(s.failWrites, id)
			continue
		}
		s.failWrites[id] = err
	}
}
