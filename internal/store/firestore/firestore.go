// Package firestore reads and writes the back-office collections in Cloud
// Firestore and turns query snapshots into store subscriptions.
package firestore

import (
	"context"
	"fmt"

	gfs "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"supplydesk/backend/internal/domain"
	"supplydesk/backend/internal/store"
)

const (
	collectionInvoices   = "invoices"
	collectionInventory  = "inventoryItems"
	collectionCategories = "inventoryCategory"
	collectionUsers      = "users"
)

type Config struct {
	ProjectID       string
	CredentialsFile string
}

type Store struct {
	client *gfs.Client
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := []option.ClientOption{}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open firestore client: %w", classify(err))
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error) {
	docs, err := s.client.Collection(collectionInventory).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collectionInventory, classify(err))
	}
	return decodeInventory(docs), nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	docs, err := s.client.Collection(collectionCategories).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collectionCategories, classify(err))
	}
	out := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.CategoryFromDocument(doc.Ref.ID, doc.Data()))
	}
	return out, nil
}

func (s *Store) ListRestaurants(ctx context.Context) ([]domain.Restaurant, error) {
	docs, err := s.client.Collection(collectionUsers).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collectionUsers, classify(err))
	}
	out := make([]domain.Restaurant, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.RestaurantFromDocument(doc.Ref.ID, doc.Data()))
	}
	return out, nil
}

func (s *Store) ListInvoices(ctx context.Context, filter store.InvoiceFilter) ([]domain.Invoice, error) {
	docs, err := s.invoiceQuery(filter).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collectionInvoices, classify(err))
	}
	return decodeInvoices(docs), nil
}

func (s *Store) invoiceQuery(filter store.InvoiceFilter) gfs.Query {
	q := s.client.Collection(collectionInvoices).Query
	if filter.UserID != "" {
		q = q.Where("userId", "==", filter.UserID)
	}
	if filter.RestaurantName != "" {
		q = q.Where("restaurantName", "==", filter.RestaurantName)
	}
	return q
}

func (s *Store) SubscribeInvoices(ctx context.Context, filter store.InvoiceFilter, push func([]domain.Invoice)) error {
	return watch(ctx, s.invoiceQuery(filter), func(docs []*gfs.DocumentSnapshot) {
		push(decodeInvoices(docs))
	})
}

func (s *Store) SubscribeInventory(ctx context.Context, push func([]domain.InventoryItem)) error {
	return watch(ctx, s.client.Collection(collectionInventory).Query, func(docs []*gfs.DocumentSnapshot) {
		push(decodeInventory(docs))
	})
}

func watch(ctx context.Context, q gfs.Query, emit func([]*gfs.DocumentSnapshot)) error {
	it := q.Snapshots(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch snapshots: %w", classify(err))
		}
		docs, err := snap.Documents.GetAll()
		if err != nil {
			return fmt.Errorf("read snapshot documents: %w", classify(err))
		}
		emit(docs)
	}
}

func (s *Store) SetInvoiceBillPaid(ctx context.Context, invoiceID string, paid bool) error {
	_, err := s.client.Collection(collectionInvoices).Doc(invoiceID).Update(ctx, []gfs.Update{
		{Path: "isBillPaid", Value: paid},
	})
	return classify(err)
}

func (s *Store) PutCategory(ctx context.Context, c domain.Category) error {
	_, err := s.client.Collection(collectionCategories).Doc(c.ID).Set(ctx, map[string]any{
		"category": c.Name,
	})
	return classify(err)
}

func (s *Store) PutInventoryItem(ctx context.Context, it domain.InventoryItem) error {
	_, err := s.client.Collection(collectionInventory).Doc(it.ID).Set(ctx, map[string]any{
		"title":             it.Title,
		"brand":             it.Brand,
		"categoryId":        it.CategoryID,
		"availableQuantity": it.AvailableQuantity,
		"soldQuantity":      it.SoldQuantity,
		"price":             it.Price,
	})
	return classify(err)
}

func (s *Store) PutRestaurant(ctx context.Context, r domain.Restaurant) error {
	_, err := s.client.Collection(collectionUsers).Doc(r.ID).Set(ctx, map[string]any{
		"restaurantName": r.RestaurantName,
		"email":          r.Email,
		"phone":          r.Phone,
		"address":        r.Address,
	})
	return classify(err)
}

func (s *Store) PutInvoice(ctx context.Context, inv domain.Invoice) error {
	_, err := s.client.Collection(collectionInvoices).Doc(inv.ID).Set(ctx, invoiceDocument(inv))
	return classify(err)
}

func invoiceDocument(inv domain.Invoice) map[string]any {
	items := make([]any, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, map[string]any{
			"title":    item.Title,
			"brand":    item.Brand,
			"units":    item.Units,
			"price":    item.Price,
			"quantity": item.Quantity,
		})
	}
	doc := map[string]any{
		"userId":         inv.UserID,
		"restaurantName": inv.RestaurantName,
		"items":          items,
		"orderStatus":    inv.OrderStatus,
		"isBillPaid":     inv.IsBillPaid,
		"totalPrice":     inv.TotalPrice,
	}
	if !inv.CreatedAt.IsZero() {
		doc["createdAt"] = inv.CreatedAt
	}
	return doc
}

func decodeInvoices(docs []*gfs.DocumentSnapshot) []domain.Invoice {
	out := make([]domain.Invoice, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.InvoiceFromDocument(doc.Ref.ID, doc.Data()))
	}
	return out
}

func decodeInventory(docs []*gfs.DocumentSnapshot) []domain.InventoryItem {
	out := make([]domain.InventoryItem, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.InventoryItemFromDocument(doc.Ref.ID, doc.Data()))
	}
	return out
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}
