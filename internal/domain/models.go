package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	UncategorizedName  = "Uncategorized"
	DefaultOrderStatus = "Pending"
	LowStockThreshold  = 10

	PaymentStatusPaid    = "Paid"
	PaymentStatusPending = "Pending"

	RoleStaff = "staff"
	RoleAdmin = "admin"
)

type Half string

const (
	HalfFirst  Half = "first"
	HalfSecond Half = "second"
)

type LineItem struct {
	Title    string  `json:"title"`
	Brand    string  `json:"brand,omitempty"`
	Units    string  `json:"units,omitempty"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Invoice is a single supplier order. CreatedAt is zero when the source
// record carried no readable timestamp.
type Invoice struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	RestaurantName string     `json:"restaurantName"`
	CreatedAt      time.Time  `json:"createdAt"`
	Items          []LineItem `json:"items"`
	OrderStatus    string     `json:"orderStatus"`
	IsBillPaid     bool       `json:"isBillPaid"`
	TotalPrice     float64    `json:"totalPrice"`
}

func (inv Invoice) HasTimestamp() bool {
	return !inv.CreatedAt.IsZero()
}

type InventoryItem struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Brand             string  `json:"brand,omitempty"`
	CategoryID        string  `json:"categoryId"`
	AvailableQuantity float64 `json:"availableQuantity"`
	SoldQuantity      float64 `json:"soldQuantity"`
	Price             float64 `json:"price"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"category"`
}

type Restaurant struct {
	ID             string `json:"id"`
	RestaurantName string `json:"restaurantName"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`
}

type Actor struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
}

type PivotRow struct {
	Title      string                     `json:"title"`
	Quantities map[string]decimal.Decimal `json:"quantities"`
	Total      decimal.Decimal            `json:"rowTotal"`
}

type PivotCategory struct {
	Name string     `json:"category"`
	Rows []PivotRow `json:"items"`
}

type PivotGrid struct {
	Date         string                     `json:"date"`
	Restaurants  []string                   `json:"restaurants"`
	Categories   []PivotCategory            `json:"categories"`
	ColumnTotals map[string]decimal.Decimal `json:"columnTotals"`
	GrandTotal   decimal.Decimal            `json:"grandTotal"`
}

// Empty reports whether no item was ordered today.
func (g PivotGrid) Empty() bool {
	return len(g.Categories) == 0
}

type PeriodInvoice struct {
	Invoice
	Amount   decimal.Decimal `json:"amount"`
	Quantity decimal.Decimal `json:"quantity"`
}

type BillingPeriod struct {
	Key           string          `json:"key"`
	RestaurantID  string          `json:"restaurantId"`
	Year          int             `json:"year"`
	Month         time.Month      `json:"month"`
	MonthName     string          `json:"monthName"`
	Half          Half            `json:"half"`
	StartDate     time.Time       `json:"startDate"`
	EndDate       time.Time       `json:"endDate"`
	Invoices      []PeriodInvoice `json:"invoices"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	StoredTotal   decimal.Decimal `json:"storedTotal"`
	TotalItems    int             `json:"totalItems"`
	IsPaid        bool            `json:"isPaid"`
	PaymentStatus string          `json:"paymentStatus"`
}

type Consolidation struct {
	RestaurantID   string          `json:"restaurantId"`
	RestaurantName string          `json:"restaurantName"`
	Periods        []BillingPeriod `json:"periods"`
	Unbucketed     []string        `json:"unbucketed,omitempty"`
}

type PaymentUpdate struct {
	RestaurantID string   `json:"restaurantId"`
	PeriodKey    string   `json:"periodKey"`
	Paid         bool     `json:"paid"`
	Updated      []string `json:"updated"`
	Failed       []string `json:"failed"`
}

type TrendPoint struct {
	Date  string          `json:"date"`
	Label string          `json:"label"`
	Sales decimal.Decimal `json:"sales"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type RestaurantCount struct {
	RestaurantName string `json:"restaurantName"`
	Orders         int    `json:"orders"`
}

type RestaurantAmount struct {
	RestaurantName string          `json:"restaurantName"`
	Amount         decimal.Decimal `json:"amount"`
}

type RestaurantPerformance struct {
	RestaurantID   string          `json:"restaurantId"`
	RestaurantName string          `json:"restaurantName"`
	Orders         int             `json:"orders"`
	Revenue        decimal.Decimal `json:"revenue"`
}

type LowStockItem struct {
	Title     string  `json:"title"`
	Quantity  float64 `json:"quantity"`
	Threshold float64 `json:"threshold"`
}

type CategorySales struct {
	Category string          `json:"category"`
	Sales    decimal.Decimal `json:"sales"`
}

type StockTotals struct {
	Items    int             `json:"items"`
	Cost     decimal.Decimal `json:"cost"`
	Quantity decimal.Decimal `json:"quantity"`
}

type SoldTotals struct {
	StockTotals
	TotalPaid   decimal.Decimal `json:"totalPaid"`
	TotalUnpaid decimal.Decimal `json:"totalUnpaid"`
}

type InventoryTotals struct {
	Available StockTotals `json:"available"`
	Sold      SoldTotals  `json:"sold"`
	Combined  StockTotals `json:"combined"`
}

type KPIRollup struct {
	GeneratedAt                  time.Time               `json:"generatedAt"`
	TotalRevenue                 decimal.Decimal         `json:"totalRevenue"`
	PaidRevenue                  decimal.Decimal         `json:"paidRevenue"`
	PendingRevenue               decimal.Decimal         `json:"pendingRevenue"`
	SalesTrend                   []TrendPoint            `json:"salesTrend"`
	OrderStatusCounts            []StatusCount           `json:"orderStatusCounts"`
	PerRestaurantRevenue         []RestaurantPerformance `json:"perRestaurantRevenue"`
	PerRestaurantOrderCountToday []RestaurantCount       `json:"perRestaurantOrderCountToday"`
	PerRestaurantUnpaidRevenue   []RestaurantAmount      `json:"perRestaurantUnpaidRevenue"`
	LowStockItems                []LowStockItem          `json:"lowStockItems"`
	CategorySales                []CategorySales         `json:"categorySales"`
	Inventory                    InventoryTotals         `json:"inventory"`
}

type SalesSummary struct {
	Period string          `json:"period"`
	Total  decimal.Decimal `json:"total"`
	Paid   decimal.Decimal `json:"paid"`
	Unpaid decimal.Decimal `json:"unpaid"`
}

type SalesReport struct {
	Month SalesSummary `json:"month"`
	Day   SalesSummary `json:"day"`
}

type OrderWindowStatus struct {
	Start  string `json:"startTime"`
	End    string `json:"endTime"`
	Now    string `json:"now"`
	Active bool   `json:"active"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}
