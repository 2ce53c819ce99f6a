package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"supplydesk/backend/internal/domain"
	"supplydesk/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const (
	channelInvoices  = "invoices_changed"
	channelInventory = "inventory_items_changed"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables and change-notification triggers if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", classify(err))
	}
	return nil
}

func (s *Store) ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, brand, category_id, available_quantity, sold_quantity, price
		FROM inventory_items
		ORDER BY position
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 128)
	for rows.Next() {
		var it domain.InventoryItem
		if err := rows.Scan(&it.ID, &it.Title, &it.Brand, &it.CategoryID, &it.AvailableQuantity, &it.SoldQuantity, &it.Price); err != nil {
			return nil, err
		}
		it.AvailableQuantity = domain.Finite(it.AvailableQuantity)
		it.SoldQuantity = domain.Finite(it.SoldQuantity)
		it.Price = domain.Finite(it.Price)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return items, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category
		FROM inventory_categories
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return categories, nil
}

func (s *Store) ListRestaurants(ctx context.Context) ([]domain.Restaurant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, restaurant_name, email, phone, address
		FROM restaurants
		ORDER BY position
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	restaurants := make([]domain.Restaurant, 0, 32)
	for rows.Next() {
		var r domain.Restaurant
		if err := rows.Scan(&r.ID, &r.RestaurantName, &r.Email, &r.Phone, &r.Address); err != nil {
			return nil, err
		}
		restaurants = append(restaurants, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return restaurants, nil
}

func (s *Store) ListInvoices(ctx context.Context, filter store.InvoiceFilter) ([]domain.Invoice, error) {
	query := `
		SELECT id, user_id, restaurant_name, created_at, order_status, is_bill_paid, total_price, items
		FROM invoices
	`
	where := []string{}
	args := []any{}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.RestaurantName != "" {
		args = append(args, filter.RestaurantName)
		where = append(where, fmt.Sprintf("restaurant_name = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY position"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, 256)
	for rows.Next() {
		var (
			inv       domain.Invoice
			createdAt sql.NullTime
			items     []byte
		)
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.RestaurantName, &createdAt, &inv.OrderStatus, &inv.IsBillPaid, &inv.TotalPrice, &items); err != nil {
			return nil, err
		}
		if createdAt.Valid {
			inv.CreatedAt = createdAt.Time
		}
		inv.TotalPrice = domain.Finite(inv.TotalPrice)
		inv.Items, err = domain.DecodeLineItems(items)
		if err != nil {
			return nil, fmt.Errorf("invoice %s: %w", inv.ID, err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return invoices, nil
}

func (s *Store) SetInvoiceBillPaid(ctx context.Context, invoiceID string, paid bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invoices
		SET is_bill_paid = $2, updated_at = now()
		WHERE id = $1
	`, invoiceID, paid)
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) PutCategory(ctx context.Context, c domain.Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_categories (id, category)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET category = EXCLUDED.category
	`, c.ID, c.Name)
	return classify(err)
}

func (s *Store) PutInventoryItem(ctx context.Context, it domain.InventoryItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, title, brand, category_id, available_quantity, sold_quantity, price, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			brand = EXCLUDED.brand,
			category_id = EXCLUDED.category_id,
			available_quantity = EXCLUDED.available_quantity,
			sold_quantity = EXCLUDED.sold_quantity,
			price = EXCLUDED.price,
			updated_at = now()
	`, it.ID, it.Title, it.Brand, it.CategoryID, it.AvailableQuantity, it.SoldQuantity, it.Price)
	return classify(err)
}

func (s *Store) PutRestaurant(ctx context.Context, r domain.Restaurant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO restaurants (id, restaurant_name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			restaurant_name = EXCLUDED.restaurant_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address
	`, r.ID, r.RestaurantName, r.Email, r.Phone, r.Address)
	return classify(err)
}

func (s *Store) PutInvoice(ctx context.Context, inv domain.Invoice) error {
	items := inv.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	createdAt := sql.NullTime{Time: inv.CreatedAt, Valid: !inv.CreatedAt.IsZero()}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, user_id, restaurant_name, created_at, order_status, is_bill_paid, total_price, items, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, now())
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			restaurant_name = EXCLUDED.restaurant_name,
			created_at = EXCLUDED.created_at,
			order_status = EXCLUDED.order_status,
			is_bill_paid = EXCLUDED.is_bill_paid,
			total_price = EXCLUDED.total_price,
			items = EXCLUDED.items,
			updated_at = now()
	`, inv.ID, inv.UserID, inv.RestaurantName, createdAt, inv.OrderStatus, inv.IsBillPaid, inv.TotalPrice, string(payload))
	return classify(err)
}

func (s *Store) SubscribeInvoices(ctx context.Context, filter store.InvoiceFilter, push func([]domain.Invoice)) error {
	return s.listen(ctx, channelInvoices, func(ctx context.Context) error {
		invoices, err := s.ListInvoices(ctx, filter)
		if err != nil {
			return err
		}
		push(invoices)
		return nil
	})
}

func (s *Store) SubscribeInventory(ctx context.Context, push func([]domain.InventoryItem)) error {
	return s.listen(ctx, channelInventory, func(ctx context.Context) error {
		items, err := s.ListInventoryItems(ctx)
		if err != nil {
			return err
		}
		push(items)
		return nil
	})
}

// listen holds one pooled connection in LISTEN mode and re-reads the
// collection after each notification. Queries run on other connections.
func (s *Store) listen(ctx context.Context, channel string, emit func(context.Context) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", classify(err))
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		pc := sc.Conn()
		if _, err := pc.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
			return fmt.Errorf("listen %s: %w", channel, classify(err))
		}
		defer func() {
			unlistenCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, _ = pc.Exec(unlistenCtx, "UNLISTEN "+pgx.Identifier{channel}.Sanitize())
		}()

		if err := emit(ctx); err != nil {
			return err
		}
		for {
			if _, err := pc.WaitForNotification(ctx); err != nil {
				return err
			}
			if err := emit(ctx); err != nil {
				return err
			}
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}
