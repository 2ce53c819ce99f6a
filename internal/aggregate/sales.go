package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"supplydesk/backend/internal/calendar"
	"supplydesk/backend/internal/domain"
)

// MonthSales totals invoices created in the local calendar month of month.
func MonthSales(invoices []domain.Invoice, policy calendar.Policy, month time.Time) domain.SalesSummary {
	key := policy.MonthKey(month)
	return summarize(key, invoices, func(inv domain.Invoice) bool {
		return policy.MonthKey(inv.CreatedAt) == key
	})
}

// DaySales totals invoices created on the local calendar day of day.
func DaySales(invoices []domain.Invoice, policy calendar.Policy, day time.Time) domain.SalesSummary {
	return summarize(policy.DateKey(day), invoices, func(inv domain.Invoice) bool {
		return policy.SameDay(inv.CreatedAt, day)
	})
}

func summarize(period string, invoices []domain.Invoice, include func(domain.Invoice) bool) domain.SalesSummary {
	out := domain.SalesSummary{Period: period, Total: decimal.Zero, Paid: decimal.Zero, Unpaid: decimal.Zero}
	for _, inv := range invoices {
		if inv.CreatedAt.IsZero() || !include(inv) {
			continue
		}
		total := InvoiceTotal(inv)
		out.Total = out.Total.Add(total)
		if inv.IsBillPaid {
			out.Paid = out.Paid.Add(total)
		} else {
			out.Unpaid = out.Unpaid.Add(total)
		}
	}
	out.Total = cents(out.Total)
	out.Paid = cents(out.Paid)
	out.Unpaid = cents(out.Unpaid)
	return out
}
