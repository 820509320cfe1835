package comanda

import "github.com/shopspring/decimal"

// Recompute derives subtotal and total from the full current item list.
// Courtesy items contribute zero to subtotal but stay on the order (and keep
// their stock reserved). Must be fed the item list read inside the same
// transaction that applied the mutation, never a stale snapshot.
func Recompute(items []OrderItem, discount, tip decimal.Decimal) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		if it.IsCourtesy {
			continue
		}
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	total = subtotal.Sub(discount).Add(tip)
	return subtotal, total
}

// LineTotal is the billable value of a single item.
func LineTotal(it OrderItem) decimal.Decimal {
	if it.IsCourtesy {
		return decimal.Zero
	}
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}
