// Package aggregate turns invoice and inventory snapshots into the derived
// back-office views. Every function here is a pure pass over its inputs.
package aggregate

import (
	"github.com/shopspring/decimal"

	"supplydesk/backend/internal/domain"
)

func amount(f float64) decimal.Decimal {
	return decimal.NewFromFloat(domain.Finite(f))
}

// LineTotal is price times quantity, with non-finite inputs counted as 0.
func LineTotal(item domain.LineItem) decimal.Decimal {
	return amount(item.Price).Mul(amount(item.Quantity))
}

// InvoiceTotal recomputes an invoice's value from its items; the stored
// totalPrice is ignored.
func InvoiceTotal(inv domain.Invoice) decimal.Decimal {
	total := decimal.Zero
	for _, item := range inv.Items {
		total = total.Add(LineTotal(item))
	}
	return total
}

func InvoiceQuantity(inv domain.Invoice) decimal.Decimal {
	total := decimal.Zero
	for _, item := range inv.Items {
		total = total.Add(amount(item.Quantity))
	}
	return total
}

func cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
