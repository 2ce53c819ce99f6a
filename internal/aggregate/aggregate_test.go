package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplydesk/backend/internal/calendar"
	"supplydesk/backend/internal/catalog"
	"supplydesk/backend/internal/domain"
)

func london(t *testing.T) calendar.Policy {
	t.Helper()
	p, err := calendar.NewPolicy("Europe/London")
	require.NoError(t, err)
	return p
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s got %s", want, got.String()}, msgAndArgs...)...)
}

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]domain.InventoryItem{
			{ID: "i1", Title: "Rice", CategoryID: "grains", AvailableQuantity: 40, SoldQuantity: 12, Price: 2},
			{ID: "i2", Title: "Flour", CategoryID: "grains", AvailableQuantity: 8, SoldQuantity: 3, Price: 1.5},
			{ID: "i3", Title: "Milk", CategoryID: "dairy", AvailableQuantity: 10, SoldQuantity: 20, Price: 1.2},
		},
		[]domain.Category{{ID: "grains", Name: "Grains"}, {ID: "dairy", Name: "Dairy"}, {ID: "produce", Name: "Produce"}},
		[]domain.Restaurant{
			{ID: "ua", RestaurantName: "A"},
			{ID: "ub", RestaurantName: "B"},
			{ID: "uc", RestaurantName: "C"},
		},
		time.Now(),
	)
}

func line(title string, price, qty float64) domain.LineItem {
	return domain.LineItem{Title: title, Price: price, Quantity: qty}
}

func TestBuildPivotRiceScenario(t *testing.T) {
	p := london(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, p.Location())
	invoices := []domain.Invoice{
		{ID: "1", RestaurantName: "A", CreatedAt: now.Add(-time.Hour), Items: []domain.LineItem{line("Rice", 2, 3)}},
		{ID: "2", RestaurantName: "B", CreatedAt: now.Add(-2 * time.Hour), Items: []domain.LineItem{line("Rice", 2, 5)}},
	}

	grid := BuildPivot(invoices, testCatalog(), p, now)

	assert.Equal(t, "2024-03-15", grid.Date)
	assert.Equal(t, []string{"A", "B", "C"}, grid.Restaurants)
	require.Len(t, grid.Categories, 1)
	assert.Equal(t, "Grains", grid.Categories[0].Name)
	require.Len(t, grid.Categories[0].Rows, 1)
	row := grid.Categories[0].Rows[0]
	assert.Equal(t, "Rice", row.Title)
	assertDecimal(t, "3", row.Quantities["A"])
	assertDecimal(t, "5", row.Quantities["B"])
	assertDecimal(t, "0", row.Quantities["C"], "restaurants without orders still get a column")
	assertDecimal(t, "8", row.Total)
	assertDecimal(t, "8", grid.GrandTotal)
}

func TestBuildPivotUnmatchedItemIsUncategorized(t *testing.T) {
	p := london(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, p.Location())
	invoices := []domain.Invoice{
		{ID: "1", RestaurantName: "A", CreatedAt: now, Items: []domain.LineItem{line("Mystery Sauce", 4, 2), line("Milk", 1.2, 1)}},
		{ID: "2", RestaurantName: "C", CreatedAt: now, Items: []domain.LineItem{line("Mystery Sauce", 4, 1.5)}},
	}

	grid := BuildPivot(invoices, testCatalog(), p, now)

	require.Len(t, grid.Categories, 2)
	assert.Equal(t, domain.UncategorizedName, grid.Categories[0].Name)
	assert.Equal(t, "Dairy", grid.Categories[1].Name)
	sauce := grid.Categories[0].Rows[0]
	assert.Equal(t, "Mystery Sauce", sauce.Title)
	assertDecimal(t, "2", sauce.Quantities["A"])
	assertDecimal(t, "1.5", sauce.Quantities["C"])
	assertDecimal(t, "3.5", sauce.Total)
	assertDecimal(t, "4.5", grid.GrandTotal)
}

func TestBuildPivotOrdersByFirstAppearance(t *testing.T) {
	p := london(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, p.Location())
	invoices := []domain.Invoice{
		{ID: "1", RestaurantName: "A", CreatedAt: now, Items: []domain.LineItem{line("Milk", 1, 1), line("Flour", 1, 1)}},
		{ID: "2", RestaurantName: "B", CreatedAt: now, Items: []domain.LineItem{line("Rice", 1, 1), line("Milk", 1, 2)}},
	}

	grid := BuildPivot(invoices, testCatalog(), p, now)

	require.Len(t, grid.Categories, 2)
	assert.Equal(t, "Dairy", grid.Categories[0].Name)
	assert.Equal(t, "Grains", grid.Categories[1].Name)
	titles := []string{}
	for _, r := range grid.Categories[1].Rows {
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"Flour", "Rice"}, titles)
}

func TestBuildPivotIgnoresOtherDaysAndEmptyIsNotError(t *testing.T) {
	p := london(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, p.Location())
	invoices := []domain.Invoice{
		{ID: "1", RestaurantName: "A", CreatedAt: now.AddDate(0, 0, -1), Items: []domain.LineItem{line("Rice", 1, 1)}},
		{ID: "2", RestaurantName: "A", Items: []domain.LineItem{line("Rice", 1, 1)}},
	}

	grid := BuildPivot(invoices, testCatalog(), p, now)
	assert.True(t, grid.Empty())
	assert.Equal(t, []string{"A", "B", "C"}, grid.Restaurants)
	assert.True(t, grid.GrandTotal.IsZero())
	for _, col := range grid.Restaurants {
		assert.True(t, grid.ColumnTotals[col].IsZero())
	}
}

func TestBuildPivotReconciles(t *testing.T) {
	p := london(t)
	now := time.Date(2024, 3, 15, 18, 0, 0, 0, p.Location())
	titles := []string{"Rice", "Flour", "Milk", "Mystery Sauce", "Saffron"}
	names := []string{"A", "B", "C", "Unknown"}
	invoices := []domain.Invoice{}
	for i := 0; i < 40; i++ {
		items := []domain.LineItem{}
		for j := 0; j <= i%3; j++ {
			items = append(items, line(titles[(i+j)%len(titles)], 1.1, float64(i%7)+0.1*float64(j)))
		}
		invoices = append(invoices, domain.Invoice{
			ID:             string(rune('a' + i)),
			RestaurantName: names[i%len(names)],
			CreatedAt:      now.Add(-time.Duration(i) * 15 * time.Minute),
			Items:          items,
		})
	}

	grid := BuildPivot(invoices, testCatalog(), p, now)
	require.False(t, grid.Empty())

	cellSum, rowSum, colSum := decimal.Zero, decimal.Zero, decimal.Zero
	for _, c := range grid.Categories {
		for _, r := range c.Rows {
			rowSum = rowSum.Add(r.Total)
			rowCells := decimal.Zero
			for _, col := range grid.Restaurants {
				cellSum = cellSum.Add(r.Quantities[col])
				rowCells = rowCells.Add(r.Quantities[col])
			}
			assert.True(t, rowCells.Equal(r.Total), r.Title)
		}
	}
	for _, col := range grid.Restaurants {
		colSum = colSum.Add(grid.ColumnTotals[col])
	}
	assert.True(t, grid.GrandTotal.Equal(cellSum))
	assert.True(t, grid.GrandTotal.Equal(rowSum))
	assert.True(t, grid.GrandTotal.Equal(colSum))
}

func TestConsolidatePeriodBoundary(t *testing.T) {
	p := london(t)
	r := domain.Restaurant{ID: "ua", RestaurantName: "A"}
	invoices := []domain.Invoice{
		{ID: "mar15", UserID: "ua", CreatedAt: time.Date(2024, 3, 15, 22, 0, 0, 0, p.Location()), IsBillPaid: true, Items: []domain.LineItem{line("Rice", 2, 3)}},
		{ID: "mar16", UserID: "ua", CreatedAt: time.Date(2024, 3, 16, 8, 0, 0, 0, p.Location()), IsBillPaid: true, Items: []domain.LineItem{line("Rice", 2, 1)}},
	}

	c := Consolidate(r, invoices, p)

	require.Len(t, c.Periods, 2)
	second, first := c.Periods[0], c.Periods[1]
	assert.Equal(t, "2024-03-second", second.Key)
	assert.Equal(t, "2024-03-16", second.StartDate.Format("2006-01-02"))
	assert.Equal(t, "2024-03-31", second.EndDate.Format("2006-01-02"))
	assert.Equal(t, "mar16", second.Invoices[0].ID)

	assert.Equal(t, "2024-03-first", first.Key)
	assert.Equal(t, 2024, first.Year)
	assert.Equal(t, time.March, first.Month)
	assert.Equal(t, domain.HalfFirst, first.Half)
	assert.Equal(t, "2024-03-15", first.EndDate.Format("2006-01-02"))
	assert.Equal(t, "mar15", first.Invoices[0].ID)
}

func TestConsolidateTotalsRecomputeFromItems(t *testing.T) {
	p := london(t)
	r := domain.Restaurant{ID: "ua", RestaurantName: "A"}
	at := time.Date(2024, 3, 3, 10, 0, 0, 0, p.Location())
	invoices := []domain.Invoice{
		{ID: "1", UserID: "ua", CreatedAt: at, TotalPrice: 999, IsBillPaid: true, Items: []domain.LineItem{line("Rice", 2.5, 4), line("Milk", 1.2, math.NaN())}},
		{ID: "2", RestaurantName: "A", CreatedAt: at.Add(time.Hour), TotalPrice: 1, IsBillPaid: true, Items: []domain.LineItem{line("Flour", 0.1, 3)}},
		{ID: "3", UserID: "someone-else", RestaurantName: "Z", CreatedAt: at, Items: []domain.LineItem{line("Rice", 100, 1)}},
	}

	c := Consolidate(r, invoices, p)

	require.Len(t, c.Periods, 1)
	period := c.Periods[0]
	require.Len(t, period.Invoices, 2, "userId and restaurantName are equivalent join keys")
	assertDecimal(t, "10.3", period.TotalAmount)
	assertDecimal(t, "1000", period.StoredTotal)
	assert.Equal(t, 3, period.TotalItems, "line entries, not quantities")
	assertDecimal(t, "10", period.Invoices[0].Amount)
	assertDecimal(t, "4", period.Invoices[0].Quantity)
	assert.True(t, period.IsPaid)
	assert.Equal(t, domain.PaymentStatusPaid, period.PaymentStatus)
}

func TestConsolidatePaymentStatusMonotonicity(t *testing.T) {
	p := london(t)
	r := domain.Restaurant{ID: "ua"}
	at := time.Date(2024, 5, 20, 10, 0, 0, 0, p.Location())
	invoices := []domain.Invoice{}
	for i := 0; i < 5; i++ {
		invoices = append(invoices, domain.Invoice{ID: string(rune('a' + i)), UserID: "ua", CreatedAt: at, IsBillPaid: true})
	}

	c := Consolidate(r, invoices, p)
	require.Len(t, c.Periods, 1)
	assert.Equal(t, domain.PaymentStatusPaid, c.Periods[0].PaymentStatus)

	for i := range invoices {
		flipped := append([]domain.Invoice(nil), invoices...)
		flipped[i].IsBillPaid = false
		c := Consolidate(r, flipped, p)
		assert.False(t, c.Periods[0].IsPaid)
		assert.Equal(t, domain.PaymentStatusPending, c.Periods[0].PaymentStatus)
	}
}

func TestConsolidatePartition(t *testing.T) {
	p := london(t)
	r := domain.Restaurant{ID: "ua"}
	invoices := []domain.Invoice{}
	start := time.Date(2023, 11, 20, 9, 0, 0, 0, p.Location())
	for i := 0; i < 90; i++ {
		invoices = append(invoices, domain.Invoice{
			ID:        start.AddDate(0, 0, i).Format("20060102"),
			UserID:    "ua",
			CreatedAt: start.AddDate(0, 0, i),
			Items:     []domain.LineItem{line("Rice", 1, 1)},
		})
	}
	invoices = append(invoices, domain.Invoice{ID: "no-date", UserID: "ua"})

	c := Consolidate(r, invoices, p)

	assert.Equal(t, []string{"no-date"}, c.Unbucketed)
	seen := map[string]int{}
	for i, period := range c.Periods {
		for _, inv := range period.Invoices {
			seen[inv.ID]++
			assert.False(t, inv.CreatedAt.Before(period.StartDate))
			assert.True(t, inv.CreatedAt.Before(period.EndDate.AddDate(0, 0, 1)))
		}
		if i > 0 {
			prev := c.Periods[i-1]
			assert.True(t, period.EndDate.Before(prev.StartDate), "periods sorted newest first and disjoint")
			assert.Equal(t, prev.StartDate, period.EndDate.AddDate(0, 0, 1), "periods are contiguous")
		}
	}
	assert.Len(t, seen, 90)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestConsolidateDeduplicatesInvoiceIDs(t *testing.T) {
	p := london(t)
	r := domain.Restaurant{ID: "ua", RestaurantName: "A"}
	inv := domain.Invoice{ID: "1", UserID: "ua", RestaurantName: "A", CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}

	c := Consolidate(r, []domain.Invoice{inv, inv}, p)
	require.Len(t, c.Periods, 1)
	assert.Len(t, c.Periods[0].Invoices, 1)
}

func TestConsolidateListsImplausibleEpochAsUnbucketed(t *testing.T) {
	p := london(t)
	r := domain.Restaurant{ID: "ua", RestaurantName: "A"}
	ms := domain.InvoiceFromDocument("ms", map[string]any{
		"userId":         "ua",
		"restaurantName": "A",
		"createdAt":      int64(1710500000000),
		"items":          []any{map[string]any{"title": "Rice", "price": 2.0, "quantity": 1.0}},
	})
	ok := domain.Invoice{ID: "ok", UserID: "ua", RestaurantName: "A", CreatedAt: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}

	c := Consolidate(r, []domain.Invoice{ms, ok}, p)
	require.Len(t, c.Periods, 1)
	assert.Equal(t, "2024-03-first", c.Periods[0].Key)
	assert.Equal(t, []string{"ms"}, c.Unbucketed)
}

func TestBuildPivotCountsLastMicrosecondOfDay(t *testing.T) {
	p := london(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, p.Location())
	late := time.Date(2024, 3, 15, 23, 59, 59, 999_500_000, p.Location())
	invoices := []domain.Invoice{
		{ID: "1", RestaurantName: "A", CreatedAt: late, Items: []domain.LineItem{line("Rice", 2, 4)}},
	}

	grid := BuildPivot(invoices, testCatalog(), p, now)
	assertDecimal(t, "4", grid.GrandTotal)

	next := BuildPivot(invoices, testCatalog(), p, now.AddDate(0, 0, 1))
	assert.True(t, next.Empty())
}

func TestBuildPivotSkipsTitlesOrderedOnlyByUnknownRestaurants(t *testing.T) {
	p := london(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, p.Location())
	invoices := []domain.Invoice{
		{ID: "1", RestaurantName: "Walk-in", CreatedAt: now, Items: []domain.LineItem{line("Mystery", 3, 2), line("Rice", 2, 1)}},
		{ID: "2", RestaurantName: "A", CreatedAt: now, Items: []domain.LineItem{line("Rice", 2, 5)}},
	}

	grid := BuildPivot(invoices, testCatalog(), p, now)
	require.Len(t, grid.Categories, 1)
	assert.Equal(t, "Grains", grid.Categories[0].Name)
	require.Len(t, grid.Categories[0].Rows, 1)
	assertDecimal(t, "5", grid.Categories[0].Rows[0].Total)

	onlyUnknown := BuildPivot(invoices[:1], testCatalog(), p, now)
	assert.True(t, onlyUnknown.Empty())
	assert.Empty(t, onlyUnknown.Categories)
}

func TestSalesTrendRollsOverYear(t *testing.T) {
	p := london(t)
	now := time.Date(2024, 1, 3, 12, 0, 0, 0, p.Location())
	invoices := []domain.Invoice{
		{ID: "jan2", CreatedAt: time.Date(2024, 1, 2, 9, 0, 0, 0, p.Location()), Items: []domain.LineItem{line("Rice", 10, 3)}},
		{ID: "dec30", CreatedAt: time.Date(2023, 12, 30, 9, 0, 0, 0, p.Location()), Items: []domain.LineItem{line("Rice", 25, 2)}},
		{ID: "old", CreatedAt: time.Date(2023, 12, 20, 9, 0, 0, 0, p.Location()), Items: []domain.LineItem{line("Rice", 1, 1)}},
		{ID: "no-date", Items: []domain.LineItem{line("Rice", 1, 1)}},
	}

	trend := SalesTrend(invoices, p, now)

	require.Len(t, trend, 2)
	assert.Equal(t, "30 Dec", trend[0].Label)
	assertDecimal(t, "50", trend[0].Sales)
	assert.Equal(t, "02 Jan", trend[1].Label)
	assertDecimal(t, "30", trend[1].Sales)
}

func TestRevenueSplitIsAdditive(t *testing.T) {
	invoices := []domain.Invoice{
		{IsBillPaid: true, TotalPrice: 1234, Items: []domain.LineItem{line("Rice", 0.1, 3), line("Milk", 0.2, 1)}},
		{IsBillPaid: false, Items: []domain.LineItem{line("Flour", 1.15, 7)}},
		{IsBillPaid: false, Items: []domain.LineItem{line("Bad", math.Inf(1), 2)}},
		{IsBillPaid: true},
	}

	total, paid, pending := RevenueSplit(invoices)
	assertDecimal(t, "0.5", paid)
	assertDecimal(t, "8.05", pending)
	assert.True(t, paid.Add(pending).Equal(total))
}

func TestStatusCounts(t *testing.T) {
	invoices := []domain.Invoice{
		{OrderStatus: "pending"}, {OrderStatus: "DELIVERED"}, {}, {OrderStatus: " shipped "}, {OrderStatus: "Delivered"},
	}

	counts := StatusCounts(invoices)
	assert.Equal(t, []domain.StatusCount{
		{Status: "Pending", Count: 2},
		{Status: "Delivered", Count: 2},
		{Status: "Shipped", Count: 1},
	}, counts)
}

func TestRestaurantBreakdowns(t *testing.T) {
	p := london(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, p.Location())
	invoices := []domain.Invoice{
		{UserID: "ua", RestaurantName: "A", CreatedAt: now, Items: []domain.LineItem{line("Rice", 1.005, 1)}},
		{UserID: "ua", RestaurantName: "A", CreatedAt: now.AddDate(0, 0, -3), IsBillPaid: true, Items: []domain.LineItem{line("Rice", 2, 2)}},
		{UserID: "ub", RestaurantName: "B", CreatedAt: now, IsBillPaid: true, Items: []domain.LineItem{line("Milk", 3, 1)}},
		{UserID: "ub", RestaurantName: "B", Items: []domain.LineItem{line("Milk", 3, 1)}},
	}
	cat := testCatalog()

	today := TodayOrderCounts(invoices, p, now)
	assert.Equal(t, []domain.RestaurantCount{{RestaurantName: "A", Orders: 1}, {RestaurantName: "B", Orders: 1}}, today)

	unpaid := UnpaidByRestaurant(invoices)
	require.Len(t, unpaid, 2)
	assertDecimal(t, "1.01", unpaid[0].Amount)
	assertDecimal(t, "3", unpaid[1].Amount)

	perf := Performance(cat.Restaurants(), invoices)
	require.Len(t, perf, 3)
	assert.Equal(t, 2, perf[0].Orders)
	assertDecimal(t, "5.01", perf[0].Revenue)
	assert.Equal(t, 2, perf[1].Orders, "undated invoices still count toward all-time performance")
	assertDecimal(t, "6", perf[1].Revenue)
	assert.Equal(t, 0, perf[2].Orders)
}

func TestInventoryRollups(t *testing.T) {
	cat := testCatalog()
	items := cat.Items()
	items = append(items, domain.InventoryItem{Title: "Unknown stock"})

	low := LowStock(items)
	assert.Equal(t, []domain.LowStockItem{
		{Title: "Flour", Quantity: 8, Threshold: 10},
		{Title: "Milk", Quantity: 10, Threshold: 10},
		{Title: "Unknown stock", Quantity: 0, Threshold: 10},
	}, low)

	sales := SalesByCategory(cat.Categories(), items)
	require.Len(t, sales, 3)
	assert.Equal(t, "Grains", sales[0].Category)
	assertDecimal(t, "15", sales[0].Sales)
	assertDecimal(t, "20", sales[1].Sales)
	assertDecimal(t, "0", sales[2].Sales)

	totals := StockSummary(items, []domain.Invoice{
		{IsBillPaid: true, Items: []domain.LineItem{line("Rice", 2, 3)}},
		{Items: []domain.LineItem{line("Milk", 1.2, 1), line("Flour", 1.5, 2)}},
	})
	assert.Equal(t, 4, totals.Available.Items)
	assertDecimal(t, "104", totals.Available.Cost)
	assertDecimal(t, "58", totals.Available.Quantity)
	assert.Equal(t, 3, totals.Sold.Items)
	assertDecimal(t, "10.2", totals.Sold.Cost)
	assertDecimal(t, "6", totals.Sold.TotalPaid)
	assertDecimal(t, "4.2", totals.Sold.TotalUnpaid)
	assert.Equal(t, 7, totals.Combined.Items)
	assertDecimal(t, "114.2", totals.Combined.Cost)
	assertDecimal(t, "64", totals.Combined.Quantity)
}

func TestRecomputationIsIdempotent(t *testing.T) {
	p := london(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, p.Location())
	cat := testCatalog()
	invoices := []domain.Invoice{
		{ID: "1", UserID: "ua", RestaurantName: "A", CreatedAt: now, Items: []domain.LineItem{line("Rice", 2, 3)}},
		{ID: "2", UserID: "ub", RestaurantName: "B", CreatedAt: now.AddDate(0, 0, -2), IsBillPaid: true, OrderStatus: "shipped", Items: []domain.LineItem{line("Mystery Sauce", 4, 1)}},
	}

	assert.Equal(t, BuildPivot(invoices, cat, p, now), BuildPivot(invoices, cat, p, now))
	r := domain.Restaurant{ID: "ua", RestaurantName: "A"}
	assert.Equal(t, Consolidate(r, invoices, p), Consolidate(r, invoices, p))
	assert.Equal(t, Rollup(invoices, cat.Items(), cat, p, now), Rollup(invoices, cat.Items(), cat, p, now))
}

func TestMonthAndDaySales(t *testing.T) {
	p := london(t)
	day := time.Date(2024, 3, 15, 12, 0, 0, 0, p.Location())
	invoices := []domain.Invoice{
		{CreatedAt: day, IsBillPaid: true, Items: []domain.LineItem{line("Rice", 2, 3)}},
		{CreatedAt: day.AddDate(0, 0, -10), Items: []domain.LineItem{line("Rice", 2, 1)}},
		{CreatedAt: day.AddDate(0, -1, 0), Items: []domain.LineItem{line("Rice", 100, 1)}},
		{Items: []domain.LineItem{line("Rice", 100, 1)}},
	}

	month := MonthSales(invoices, p, day)
	assert.Equal(t, "2024-03", month.Period)
	assertDecimal(t, "8", month.Total)
	assertDecimal(t, "6", month.Paid)
	assertDecimal(t, "2", month.Unpaid)

	today := DaySales(invoices, p, day)
	assert.Equal(t, "2024-03-15", today.Period)
	assertDecimal(t, "6", today.Total)
	assertDecimal(t, "0", today.Unpaid)
}
