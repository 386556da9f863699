package cart

import "github.com/aarnajewels/storefront-core/pkg/types"

// The pure merge rules below are shared by the remote store's
// read-modify-write path and the engine's optimistic reducer, so local and
// remote state always converge on the same shape.

// mergeAdd merges a product into the items, incrementing the quantity of
// an existing line with the same variant key or appending a new line with
// quantity 1.
func mergeAdd(items []types.LineItem, product types.Product, selectedSize *string) []types.LineItem {
	size := types.NormalizeSize(selectedSize)
	key := types.VariantKey(product.ID, size)

	next := types.CloneLineItems(items)
	for i := range next {
		if next[i].Key() == key {
			next[i].Quantity++
			return next
		}
	}
	return append(next, types.LineItem{
		Product:      product,
		SelectedSize: size,
		Quantity:     1,
	})
}

// removeProduct drops every line whose product id matches, regardless of
// size. Removing all variants at once is the legacy call-site contract.
func removeProduct(items []types.LineItem, productID string) []types.LineItem {
	var next []types.LineItem
	for _, item := range items {
		if item.ID != productID {
			next = append(next, item)
		}
	}
	return next
}

// setQuantity sets the quantity of every line matching the product id
// (size is ignored, same caveat as removeProduct) and prunes lines whose
// resulting quantity is zero or negative.
func setQuantity(items []types.LineItem, productID string, quantity int) []types.LineItem {
	var next []types.LineItem
	for _, item := range items {
		if item.ID == productID {
			item.Quantity = quantity
		}
		if item.Quantity > 0 {
			next = append(next, item)
		}
	}
	return next
}

// setSize rewrites the selected size in place for every line matching the
// product id.
func setSize(items []types.LineItem, productID string, newSize *string) []types.LineItem {
	size := types.NormalizeSize(newSize)
	next := types.CloneLineItems(items)
	for i := range next {
		if next[i].ID == productID {
			next[i].SelectedSize = size
		}
	}
	return next
}
