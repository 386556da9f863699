package pricing

import "github.com/shopspring/decimal"

// Kind discriminates how a promo's value is applied.
type Kind string

const (
	// KindPercentage discounts a fraction of the subtotal (value 0.10 = 10%).
	KindPercentage Kind = "percentage"
	// KindFixed discounts a flat amount.
	KindFixed Kind = "fixed"
)

// PromoCode is a static discount rule keyed by a case-insensitive code.
type PromoCode struct {
	Code        string
	Kind        Kind
	Value       decimal.Decimal
	Description string
}

// DefaultPromoCodes is the static promo table shipped with the storefront.
func DefaultPromoCodes() []PromoCode {
	return []PromoCode{
		{Code: "SAVE10", Kind: KindPercentage, Value: decimal.NewFromFloat(0.10), Description: "10% off your order"},
		{Code: "FESTIVE20", Kind: KindPercentage, Value: decimal.NewFromFloat(0.20), Description: "20% festive season discount"},
		{Code: "FREE100", Kind: KindFixed, Value: decimal.NewFromInt(100), Description: "Flat Rs.100 off"},
		{Code: "WELCOME50", Kind: KindFixed, Value: decimal.NewFromInt(50), Description: "Rs.50 off for new customers"},
	}
}
