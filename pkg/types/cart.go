package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one cart entry: a product plus the selected size variant and
// a quantity. Identity is the VariantKey of (product id, normalized size).
type LineItem struct {
	Product
	SelectedSize *string `json:"selectedSize"`
	Quantity     int     `json:"quantity"`
}

// Key returns the line item's variant identity.
func (li LineItem) Key() string {
	return VariantKey(li.ID, li.SelectedSize)
}

// LineTotal is price multiplied by quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// WishlistItem is a line item without a quantity.
type WishlistItem struct {
	Product
	SelectedSize *string `json:"selectedSize"`
}

// Key returns the wishlist item's variant identity.
func (wi WishlistItem) Key() string {
	return VariantKey(wi.ID, wi.SelectedSize)
}

// Cart is the per-user durable cart document.
type Cart struct {
	UserID    string     `json:"userId"`
	Items     []LineItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Wishlist is the per-user durable wishlist document.
type Wishlist struct {
	UserID    string         `json:"userId"`
	Items     []WishlistItem `json:"items"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// OrderSummary is the derived pricing breakdown for a cart snapshot. It is
// recomputed on every mutation and never persisted by the cart itself.
type OrderSummary struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	DeliveryCharges decimal.Decimal `json:"deliveryCharges"`
	Total           decimal.Decimal `json:"total"`
}

// TotalQuantity sums the quantities across all line items.
func TotalQuantity(items []LineItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// CloneLineItems returns a defensive copy of the slice.
func CloneLineItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	cloned := make([]LineItem, len(items))
	copy(cloned, items)
	return cloned
}

// CloneWishlistItems returns a defensive copy of the slice.
func CloneWishlistItems(items []WishlistItem) []WishlistItem {
	if items == nil {
		return nil
	}
	cloned := make([]WishlistItem, len(items))
	copy(cloned, items)
	return cloned
}
