package cart

import (
	"fmt"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

// Summarize computes the cart totals. Shipping is the flat rate for any
// cart with a positive subtotal and zero otherwise.
func Summarize(c types.Cart) types.Summary {
	var subtotal float64
	for _, item := range c {
		subtotal += item.Price * float64(item.Qty)
	}
	subtotal = types.RoundCents(subtotal)

	var shipping float64
	if subtotal > 0 {
		shipping = types.ShippingFlatRate
	}
	return types.Summary{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    types.RoundCents(subtotal + shipping),
	}
}

// FormatMoney renders an amount the way the storefront displays prices.
func FormatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
