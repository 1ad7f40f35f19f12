package types

import (
	"errors"
	"math"
)

// ShippingFlatRate is charged on every non-empty cart.
const ShippingFlatRate = 5.00

// CartItem is one line of the cart. Its identity for merge purposes is
// (ID, PageKey). Items persisted before page scoping existed carry no
// PageKey; they are legacy items and still match by ID alone.
type CartItem struct {
	ID      string  `json:"id"`
	PageKey string  `json:"page,omitempty"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Image   *string `json:"image"`
	Qty     int     `json:"qty"`
}

// IsLegacy reports whether the item predates page scoping.
func (i CartItem) IsLegacy() bool {
	return i.PageKey == ""
}

// LineTotal returns Price×Qty rounded to cents.
func (i CartItem) LineTotal() float64 {
	return RoundCents(i.Price * float64(i.Qty))
}

// Cart is an ordered sequence of items in add order. Indices are only
// meaningful against the Cart they were read from; any mutation invalidates
// indices held from an earlier read.
type Cart []CartItem

// Find returns the index of the item matching (id, pageKey). When no item
// on that page matches, the first legacy item with the same id is returned.
// Returns -1 when neither exists.
func (c Cart) Find(id, pageKey string) int {
	for i, item := range c {
		if item.ID == id && item.PageKey == pageKey {
			return i
		}
	}
	for i, item := range c {
		if item.ID == id && item.IsLegacy() {
			return i
		}
	}
	return -1
}

// Count returns the sum of quantities over the cart.
func (c Cart) Count() int {
	n := 0
	for _, item := range c {
		n += item.Qty
	}
	return n
}

// Clone returns a copy that shares no item storage with c.
func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Summary holds the cart totals, each rounded to cents.
type Summary struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

// RoundCents rounds v to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cart operation errors.
var (
	ErrInvalidItem     = errors.New("invalid cart item")
	ErrIndexOutOfRange = errors.New("cart index out of range")
	ErrItemNotFound    = errors.New("cart item not found")
)
