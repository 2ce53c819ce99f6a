package store

import (
	"context"
	"errors"

	"supplydesk/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrPartialWrite = errors.New("partial write")
	ErrUnavailable  = errors.New("data source unavailable")
)

// InvoiceFilter narrows an invoice query. Empty fields match everything;
// set fields must all match.
type InvoiceFilter struct {
	UserID         string
	RestaurantName string
}

func (f InvoiceFilter) Matches(inv domain.Invoice) bool {
	if f.UserID != "" && inv.UserID != f.UserID {
		return false
	}
	if f.RestaurantName != "" && inv.RestaurantName != f.RestaurantName {
		return false
	}
	return true
}

type ReferenceDataSource interface {
	ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListRestaurants(ctx context.Context) ([]domain.Restaurant, error)
}

// InvoiceFeed exposes invoices and inventory as snapshots. The Subscribe
// methods block until ctx is done, calling push with the full current
// snapshot once on start and again after every change. They return nil when
// ctx ends and an error when the underlying stream fails.
type InvoiceFeed interface {
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]domain.Invoice, error)
	SubscribeInvoices(ctx context.Context, filter InvoiceFilter, push func([]domain.Invoice)) error
	SubscribeInventory(ctx context.Context, push func([]domain.InventoryItem)) error
}

type InvoiceWriter interface {
	SetInvoiceBillPaid(ctx context.Context, invoiceID string, paid bool) error
}

type Repository interface {
	ReferenceDataSource
	InvoiceFeed
	InvoiceWriter
}

// Seeder upserts documents by id. It backs demo-data loading.
type Seeder interface {
	PutCategory(ctx context.Context, c domain.Category) error
	PutInventoryItem(ctx context.Context, item domain.InventoryItem) error
	PutRestaurant(ctx context.Context, r domain.Restaurant) error
	PutInvoice(ctx context.Context, inv domain.Invoice) error
}

// Seed copies every document of src into dst.
func Seed(ctx context.Context, dst Seeder, src interface {
	ReferenceDataSource
	InvoiceFeed
}) (int, error) {
	written := 0
	categories, err := src.ListCategories(ctx)
	if err != nil {
		return written, err
	}
	for _, c := range categories {
		if err := dst.PutCategory(ctx, c); err != nil {
			return written, err
		}
		written++
	}
	items, err := src.ListInventoryItems(ctx)
	if err != nil {
		return written, err
	}
	for _, it := range items {
		if err := dst.PutInventoryItem(ctx, it); err != nil {
			return written, err
		}
		written++
	}
	restaurants, err := src.ListRestaurants(ctx)
	if err != nil {
		return written, err
	}
	for _, r := range restaurants {
		if err := dst.PutRestaurant(ctx, r); err != nil {
			return written, err
		}
		written++
	}
	invoices, err := src.ListInvoices(ctx, InvoiceFilter{})
	if err != nil {
		return written, err
	}
	for _, inv := range invoices {
		if err := dst.PutInvoice(ctx, inv); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
