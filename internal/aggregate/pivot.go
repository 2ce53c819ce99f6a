package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"supplydesk/backend/internal/calendar"
	"supplydesk/backend/internal/catalog"
	"supplydesk/backend/internal/domain"
)

type cellRef struct {
	category int
	row      int
}

// BuildPivot cross-tabulates today's ordered quantities by item and
// restaurant. Every restaurant account is a column even when it ordered
// nothing. Items and categories keep their first-seen order across the
// invoice snapshot.
func BuildPivot(invoices []domain.Invoice, cat *catalog.Catalog, policy calendar.Policy, now time.Time) domain.PivotGrid {
	columns := restaurantColumns(cat.Restaurants())
	grid := domain.PivotGrid{
		Date:         policy.DateKey(now),
		Restaurants:  columns,
		Categories:   []domain.PivotCategory{},
		ColumnTotals: make(map[string]decimal.Decimal, len(columns)),
		GrandTotal:   decimal.Zero,
	}
	isColumn := make(map[string]bool, len(columns))
	for _, name := range columns {
		grid.ColumnTotals[name] = decimal.Zero
		isColumn[name] = true
	}

	// Only invoices that land in a column produce rows.
	today := make([]domain.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if isColumn[inv.RestaurantName] && policy.IsToday(inv.CreatedAt, now) {
			today = append(today, inv)
		}
	}
	if len(today) == 0 {
		return grid
	}

	categoryIndex := map[string]int{}
	cells := map[string]cellRef{}
	for _, inv := range today {
		for _, item := range inv.Items {
			if _, seen := cells[item.Title]; seen {
				continue
			}
			name := cat.CategoryNameOf(item.Title)
			ci, ok := categoryIndex[name]
			if !ok {
				ci = len(grid.Categories)
				categoryIndex[name] = ci
				grid.Categories = append(grid.Categories, domain.PivotCategory{Name: name})
			}
			quantities := make(map[string]decimal.Decimal, len(columns))
			for _, col := range columns {
				quantities[col] = decimal.Zero
			}
			grid.Categories[ci].Rows = append(grid.Categories[ci].Rows, domain.PivotRow{
				Title:      item.Title,
				Quantities: quantities,
				Total:      decimal.Zero,
			})
			cells[item.Title] = cellRef{category: ci, row: len(grid.Categories[ci].Rows) - 1}
		}
	}

	for _, inv := range today {
		for _, item := range inv.Items {
			ref := cells[item.Title]
			row := &grid.Categories[ref.category].Rows[ref.row]
			row.Quantities[inv.RestaurantName] = row.Quantities[inv.RestaurantName].Add(amount(item.Quantity))
		}
	}

	for ci := range grid.Categories {
		for ri := range grid.Categories[ci].Rows {
			row := &grid.Categories[ci].Rows[ri]
			for _, col := range columns {
				q := row.Quantities[col]
				row.Total = row.Total.Add(q)
				grid.ColumnTotals[col] = grid.ColumnTotals[col].Add(q)
			}
			grid.GrandTotal = grid.GrandTotal.Add(row.Total)
		}
	}
	return grid
}

func restaurantColumns(restaurants []domain.Restaurant) []string {
	columns := make([]string, 0, len(restaurants))
	seen := make(map[string]bool, len(restaurants))
	for _, r := range restaurants {
		if r.RestaurantName == "" || seen[r.RestaurantName] {
			continue
		}
		seen[r.RestaurantName] = true
		columns = append(columns, r.RestaurantName)
	}
	return columns
}
