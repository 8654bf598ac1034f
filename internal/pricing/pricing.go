// Package pricing holds the money rules shared by cart views and order
// creation. All amounts are rounded half-up to two decimal places.
package pricing

import (
	"github.com/shopspring/decimal"
)

const scale = 2

var (
	// FreeShippingThreshold is the subtotal from which shipping is free.
	FreeShippingThreshold = decimal.RequireFromString("100.00")
	FlatShippingFee       = decimal.RequireFromString("9.99")
	TaxRate               = decimal.RequireFromString("0.10")
)

// Round rounds half-up to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(scale)
}

// EffectivePrice returns the discount price when one is set and positive,
// the list price otherwise.
func EffectivePrice(price decimal.Decimal, discount *decimal.Decimal) decimal.Decimal {
	if discount != nil && discount.IsPositive() {
		return *discount
	}
	return price
}

// LineTotal returns unit * quantity.
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return Round(unit.Mul(decimal.NewFromInt(int64(quantity))))
}

func ShippingCost(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShippingFee
}

func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return Round(subtotal.Mul(TaxRate))
}

func Total(subtotal, shipping, tax, discount decimal.Decimal) decimal.Decimal {
	return Round(subtotal.Add(shipping).Add(tax).Sub(discount))
}

// Line is one priced quantity fed into Quote.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Breakdown is the full set of order amounts.
type Breakdown struct {
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Discount     decimal.Decimal
	Total        decimal.Decimal
}

// Quote prices a set of lines. Discount is always zero until coupons exist.
func Quote(lines []Line) Breakdown {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l.UnitPrice, l.Quantity))
	}
	subtotal = Round(subtotal)

	b := Breakdown{
		Subtotal:     subtotal,
		ShippingCost: ShippingCost(subtotal),
		Tax:          Tax(subtotal),
		Discount:     decimal.Zero,
	}
	b.Total = Total(b.Subtotal, b.ShippingCost, b.Tax, b.Discount)
	return b
}
