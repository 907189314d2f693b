// Package pricing computes item and order totals. It has no I/O.
package pricing

import "github.com/shopspring/decimal"

// ItemTotal returns unitPrice*quantity plus every adjustment multiplied by quantity.
// Adjustments may be negative or zero.
func ItemTotal(unitPrice decimal.Decimal, quantity int, adjustments []decimal.Decimal) decimal.Decimal {
	q := decimal.NewFromInt(int64(quantity))
	total := unitPrice.Mul(q)
	for _, adj := range adjustments {
		total = total.Add(adj.Mul(q))
	}
	return total
}

// OrderTotals returns the sum of item totals and that sum plus the shipping fee.
func OrderTotals(itemTotals []decimal.Decimal, shippingFee decimal.Decimal) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, t := range itemTotals {
		subtotal = subtotal.Add(t)
	}
	return subtotal, subtotal.Add(shippingFee)
}
