package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"supplydesk/backend/internal/calendar"
	"supplydesk/backend/internal/domain"
)

// BelongsTo reports whether inv was placed by the restaurant, matching on
// either the account id or the denormalized restaurant name.
func BelongsTo(inv domain.Invoice, r domain.Restaurant) bool {
	if r.ID != "" && inv.UserID == r.ID {
		return true
	}
	return r.RestaurantName != "" && inv.RestaurantName == r.RestaurantName
}

// Consolidate groups a restaurant's invoices into half-month billing
// periods, most recent first. Invoices without a readable timestamp are
// reported in Unbucketed instead of being assigned a period. Invoices with
// a repeated id are counted once.
func Consolidate(r domain.Restaurant, invoices []domain.Invoice, policy calendar.Policy) domain.Consolidation {
	out := domain.Consolidation{
		RestaurantID:   r.ID,
		RestaurantName: r.RestaurantName,
		Periods:        []domain.BillingPeriod{},
	}

	groups := map[calendar.PeriodKey]*domain.BillingPeriod{}
	order := []calendar.PeriodKey{}
	seen := map[string]bool{}

	for _, inv := range invoices {
		if !BelongsTo(inv, r) {
			continue
		}
		if inv.ID != "" {
			if seen[inv.ID] {
				continue
			}
			seen[inv.ID] = true
		}
		key, ok := policy.PeriodOf(inv.CreatedAt)
		if !ok {
			out.Unbucketed = append(out.Unbucketed, inv.ID)
			continue
		}
		period, ok := groups[key]
		if !ok {
			start, end := policy.Window(key)
			period = &domain.BillingPeriod{
				Key:          key.String(),
				RestaurantID: r.ID,
				Year:         key.Year,
				Month:        key.Month,
				MonthName:    key.Month.String(),
				Half:         key.Half,
				StartDate:    start,
				EndDate:      end,
				Invoices:     []domain.PeriodInvoice{},
				TotalAmount:  decimal.Zero,
				StoredTotal:  decimal.Zero,
				IsPaid:       true,
			}
			groups[key] = period
			order = append(order, key)
		}

		total := InvoiceTotal(inv)
		period.Invoices = append(period.Invoices, domain.PeriodInvoice{
			Invoice:  inv,
			Amount:   total,
			Quantity: InvoiceQuantity(inv),
		})
		period.TotalAmount = period.TotalAmount.Add(total)
		period.StoredTotal = period.StoredTotal.Add(amount(inv.TotalPrice))
		period.TotalItems += len(inv.Items)
		period.IsPaid = period.IsPaid && inv.IsBillPaid
	}

	for _, key := range order {
		period := groups[key]
		period.PaymentStatus = PaymentStatus(period.IsPaid)
		out.Periods = append(out.Periods, *period)
	}
	sort.SliceStable(out.Periods, func(i, j int) bool {
		return out.Periods[i].EndDate.After(out.Periods[j].EndDate)
	})
	return out
}

func PaymentStatus(paid bool) string {
	if paid {
		return domain.PaymentStatusPaid
	}
	return domain.PaymentStatusPending
}

// FindPeriod returns the period with the given key, if any.
func FindPeriod(c domain.Consolidation, key calendar.PeriodKey) (domain.BillingPeriod, bool) {
	want := key.String()
	for _, p := range c.Periods {
		if p.Key == want {
			return p, true
		}
	}
	return domain.BillingPeriod{}, false
}
