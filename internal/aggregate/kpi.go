package aggregate

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"supplydesk/backend/internal/calendar"
	"supplydesk/backend/internal/catalog"
	"supplydesk/backend/internal/domain"
)

const trendDays = 7

// Rollup computes every dashboard metric from one invoice snapshot and one
// inventory snapshot. Categories and restaurant accounts come from cat.
func Rollup(invoices []domain.Invoice, inventory []domain.InventoryItem, cat *catalog.Catalog, policy calendar.Policy, now time.Time) domain.KPIRollup {
	total, paid, pending := RevenueSplit(invoices)
	return domain.KPIRollup{
		GeneratedAt:                  now.UTC(),
		TotalRevenue:                 total,
		PaidRevenue:                  paid,
		PendingRevenue:               pending,
		SalesTrend:                   SalesTrend(invoices, policy, now),
		OrderStatusCounts:            StatusCounts(invoices),
		PerRestaurantRevenue:         Performance(cat.Restaurants(), invoices),
		PerRestaurantOrderCountToday: TodayOrderCounts(invoices, policy, now),
		PerRestaurantUnpaidRevenue:   UnpaidByRestaurant(invoices),
		LowStockItems:                LowStock(inventory),
		CategorySales:                SalesByCategory(cat.Categories(), inventory),
		Inventory:                    StockSummary(inventory, invoices),
	}
}

func RevenueSplit(invoices []domain.Invoice) (total, paid, pending decimal.Decimal) {
	paid, pending = decimal.Zero, decimal.Zero
	for _, inv := range invoices {
		if inv.IsBillPaid {
			paid = paid.Add(InvoiceTotal(inv))
		} else {
			pending = pending.Add(InvoiceTotal(inv))
		}
	}
	return paid.Add(pending), paid, pending
}

// SalesTrend buckets revenue of the trailing seven days by local calendar
// day. Only days with at least one invoice produce a point; points are in
// date order.
func SalesTrend(invoices []domain.Invoice, policy calendar.Policy, now time.Time) []domain.TrendPoint {
	cutoff := policy.DaysBack(now, trendDays)
	byDay := map[string]*domain.TrendPoint{}
	days := []time.Time{}
	for _, inv := range invoices {
		if inv.CreatedAt.IsZero() || inv.CreatedAt.Before(cutoff) {
			continue
		}
		day := policy.StartOfDay(inv.CreatedAt)
		key := policy.DateKey(day)
		point, ok := byDay[key]
		if !ok {
			point = &domain.TrendPoint{Date: key, Label: day.Format("02 Jan"), Sales: decimal.Zero}
			byDay[key] = point
			days = append(days, day)
		}
		point.Sales = point.Sales.Add(InvoiceTotal(inv))
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	trend := make([]domain.TrendPoint, 0, len(days))
	for _, day := range days {
		trend = append(trend, *byDay[policy.DateKey(day)])
	}
	return trend
}

// NormalizeStatus capitalizes the first letter and lowercases the rest.
// A blank status reads as Pending.
func NormalizeStatus(status string) string {
	s := strings.TrimSpace(status)
	if s == "" {
		return domain.DefaultOrderStatus
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}

func StatusCounts(invoices []domain.Invoice) []domain.StatusCount {
	counts := []domain.StatusCount{}
	index := map[string]int{}
	for _, inv := range invoices {
		status := NormalizeStatus(inv.OrderStatus)
		i, ok := index[status]
		if !ok {
			i = len(counts)
			index[status] = i
			counts = append(counts, domain.StatusCount{Status: status})
		}
		counts[i].Count++
	}
	return counts
}

func TodayOrderCounts(invoices []domain.Invoice, policy calendar.Policy, now time.Time) []domain.RestaurantCount {
	counts := []domain.RestaurantCount{}
	index := map[string]int{}
	for _, inv := range invoices {
		if inv.RestaurantName == "" || !policy.IsToday(inv.CreatedAt, now) {
			continue
		}
		i, ok := index[inv.RestaurantName]
		if !ok {
			i = len(counts)
			index[inv.RestaurantName] = i
			counts = append(counts, domain.RestaurantCount{RestaurantName: inv.RestaurantName})
		}
		counts[i].Orders++
	}
	return counts
}

func UnpaidByRestaurant(invoices []domain.Invoice) []domain.RestaurantAmount {
	amounts := []domain.RestaurantAmount{}
	index := map[string]int{}
	for _, inv := range invoices {
		if inv.IsBillPaid || inv.RestaurantName == "" {
			continue
		}
		i, ok := index[inv.RestaurantName]
		if !ok {
			i = len(amounts)
			index[inv.RestaurantName] = i
			amounts = append(amounts, domain.RestaurantAmount{RestaurantName: inv.RestaurantName, Amount: decimal.Zero})
		}
		amounts[i].Amount = amounts[i].Amount.Add(InvoiceTotal(inv))
	}
	for i := range amounts {
		amounts[i].Amount = cents(amounts[i].Amount)
	}
	return amounts
}

// Performance reports all-time orders and revenue per restaurant account,
// matching invoices on userId. Accounts keep their list order.
func Performance(restaurants []domain.Restaurant, invoices []domain.Invoice) []domain.RestaurantPerformance {
	index := map[string]int{}
	out := make([]domain.RestaurantPerformance, 0, len(restaurants))
	for _, r := range restaurants {
		if _, dup := index[r.ID]; dup || r.ID == "" {
			continue
		}
		index[r.ID] = len(out)
		out = append(out, domain.RestaurantPerformance{
			RestaurantID:   r.ID,
			RestaurantName: r.RestaurantName,
			Revenue:        decimal.Zero,
		})
	}
	for _, inv := range invoices {
		i, ok := index[inv.UserID]
		if !ok {
			continue
		}
		out[i].Orders++
		out[i].Revenue = out[i].Revenue.Add(InvoiceTotal(inv))
	}
	for i := range out {
		out[i].Revenue = cents(out[i].Revenue)
	}
	return out
}

func LowStock(items []domain.InventoryItem) []domain.LowStockItem {
	low := []domain.LowStockItem{}
	for _, item := range items {
		if item.AvailableQuantity <= domain.LowStockThreshold {
			low = append(low, domain.LowStockItem{
				Title:     item.Title,
				Quantity:  item.AvailableQuantity,
				Threshold: domain.LowStockThreshold,
			})
		}
	}
	return low
}

// SalesByCategory sums the soldQuantity counters of each category's items.
// Categories with no items report zero.
func SalesByCategory(categories []domain.Category, items []domain.InventoryItem) []domain.CategorySales {
	sold := map[string]decimal.Decimal{}
	for _, item := range items {
		sold[item.CategoryID] = sold[item.CategoryID].Add(amount(item.SoldQuantity))
	}
	out := make([]domain.CategorySales, 0, len(categories))
	for _, c := range categories {
		sales, ok := sold[c.ID]
		if !ok {
			sales = decimal.Zero
		}
		out = append(out, domain.CategorySales{Category: c.Name, Sales: sales})
	}
	return out
}

// StockSummary totals stock on hand from inventory and stock sold from
// invoice line items.
func StockSummary(items []domain.InventoryItem, invoices []domain.Invoice) domain.InventoryTotals {
	available := domain.StockTotals{Cost: decimal.Zero, Quantity: decimal.Zero}
	for _, item := range items {
		available.Items++
		available.Cost = available.Cost.Add(amount(item.Price).Mul(amount(item.AvailableQuantity)))
		available.Quantity = available.Quantity.Add(amount(item.AvailableQuantity))
	}

	sold := domain.SoldTotals{
		StockTotals: domain.StockTotals{Cost: decimal.Zero, Quantity: decimal.Zero},
		TotalPaid:   decimal.Zero,
		TotalUnpaid: decimal.Zero,
	}
	for _, inv := range invoices {
		sold.Items += len(inv.Items)
		sold.Quantity = sold.Quantity.Add(InvoiceQuantity(inv))
		total := InvoiceTotal(inv)
		sold.Cost = sold.Cost.Add(total)
		if inv.IsBillPaid {
			sold.TotalPaid = sold.TotalPaid.Add(total)
		} else {
			sold.TotalUnpaid = sold.TotalUnpaid.Add(total)
		}
	}

	combined := domain.StockTotals{
		Items:    available.Items + sold.Items,
		Cost:     cents(available.Cost.Add(sold.Cost)),
		Quantity: available.Quantity.Add(sold.Quantity),
	}
	available.Cost = cents(available.Cost)
	sold.Cost = cents(sold.Cost)
	sold.TotalPaid = cents(sold.TotalPaid)
	sold.TotalUnpaid = cents(sold.TotalUnpaid)

	return domain.InventoryTotals{Available: available, Sold: sold, Combined: combined}
}
