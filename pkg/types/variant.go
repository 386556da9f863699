package types

import "strings"

// NormalizeSize maps absent or blank sizes to nil. The document service
// rejects undefined field values, so the coercion happens here, before any
// key construction or persistence call.
func NormalizeSize(size *string) *string {
	if size == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*size)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// VariantKey derives the line identity from (product id, normalized size).
// Two items are the same line iff their keys are equal; a nil size only
// ever matches another nil size.
func VariantKey(productID string, size *string) string {
	if s := NormalizeSize(size); s != nil {
		return productID + "::" + *s
	}
	return productID + "::null"
}

// SameVariant reports whether two (product id, size) pairs identify the
// same line.
func SameVariant(productID string, size *string, otherID string, otherSize *string) bool {
	return VariantKey(productID, size) == VariantKey(otherID, otherSize)
}

// SizePtr is a convenience for building optional size values.
func SizePtr(size string) *string {
	return &size
}
