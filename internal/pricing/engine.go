package pricing

import (
	"strings"

	pkgerrors "github.com/aarnajewels/storefront-core/pkg/errors"
	"github.com/aarnajewels/storefront-core/pkg/types"
	"github.com/shopspring/decimal"
)

// Defaults for the delivery rule. Free delivery requires the subtotal to be
// strictly greater than the threshold.
var (
	DefaultFreeDeliveryOver = decimal.NewFromInt(1500)
	DefaultDeliveryFee      = decimal.NewFromInt(99)
)

// Params configures the pricing engine. Zero values fall back to defaults.
type Params struct {
	FreeDeliveryOver decimal.Decimal
	DeliveryFee      decimal.Decimal
	Promos           []PromoCode
}

// Engine computes order summaries from cart snapshots. It is pure and
// stateless: identical inputs always produce identical output.
type Engine struct {
	freeDeliveryOver decimal.Decimal
	deliveryFee      decimal.Decimal
	promos           map[string]PromoCode
}

// NewEngine builds a pricing engine, defaulting the delivery rule and the
// promo table when unset.
func NewEngine(params Params) *Engine {
	threshold := params.FreeDeliveryOver
	if threshold.IsZero() {
		threshold = DefaultFreeDeliveryOver
	}
	fee := params.DeliveryFee
	if fee.IsZero() {
		fee = DefaultDeliveryFee
	}
	promos := params.Promos
	if promos == nil {
		promos = DefaultPromoCodes()
	}

	table := make(map[string]PromoCode, len(promos))
	for _, promo := range promos {
		table[strings.ToUpper(strings.TrimSpace(promo.Code))] = promo
	}

	return &Engine{
		freeDeliveryOver: threshold,
		deliveryFee:      fee,
		promos:           table,
	}
}

// Subtotal sums price x quantity across the line items.
func (e *Engine) Subtotal(items []types.LineItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal
}

// DeliveryCharges applies the flat-fee rule: free only when the subtotal
// strictly exceeds the threshold.
func (e *Engine) DeliveryCharges(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(e.freeDeliveryOver) {
		return decimal.Zero
	}
	return e.deliveryFee
}

// ResolvePromo looks up a promo code case-insensitively.
func (e *Engine) ResolvePromo(code string) (PromoCode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return PromoCode{}, pkgerrors.New(pkgerrors.CodeInvalidPromo, "promo code is empty")
	}
	promo, ok := e.promos[normalized]
	if !ok {
		return PromoCode{}, pkgerrors.New(pkgerrors.CodeInvalidPromo, "unknown promo code").WithDetails(map[string]any{
			"code": normalized,
		})
	}
	return promo, nil
}

// Discount computes the promo's deduction for the given subtotal. Fixed
// discounts are clamped to the subtotal so the total never goes negative.
func (e *Engine) Discount(promo PromoCode, subtotal decimal.Decimal) decimal.Decimal {
	switch promo.Kind {
	case KindPercentage:
		return subtotal.Mul(promo.Value)
	case KindFixed:
		if promo.Value.GreaterThan(subtotal) {
			return subtotal
		}
		return promo.Value
	default:
		return decimal.Zero
	}
}

// Quote computes the full order summary for a cart snapshot and an optional
// promo code (empty string means no promo). An unknown code fails the quote
// and leaves the cart untouched.
func (e *Engine) Quote(items []types.LineItem, code string) (types.OrderSummary, error) {
	subtotal := e.Subtotal(items)

	discount := decimal.Zero
	if strings.TrimSpace(code) != "" {
		promo, err := e.ResolvePromo(code)
		if err != nil {
			return types.OrderSummary{}, err
		}
		discount = e.Discount(promo, subtotal)
	}

	delivery := e.DeliveryCharges(subtotal)

	return types.OrderSummary{
		Subtotal:        subtotal,
		Discount:        discount,
		DeliveryCharges: delivery,
		Total:           subtotal.Sub(discount).Add(delivery),
	}, nil
}
