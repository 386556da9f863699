package checkout

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/aarnajewels/storefront-core/pkg/errors"
	"github.com/aarnajewels/storefront-core/pkg/types"
	"github.com/shopspring/decimal"
)

const (
	messagingDomain = "https://wa.me/"
	dateLayout      = "02 Jan 2006"
	currencySymbol  = "₹"
)

// CustomerProfile is the optional contact block included in the order
// message.
type CustomerProfile struct {
	Name  string
	Phone string
	Email string
}

// Input is everything the composer needs to render one order message. Date
// is injected so the output is fully deterministic for identical inputs.
type Input struct {
	Items    []types.LineItem
	Summary  types.OrderSummary
	Customer *CustomerProfile
	Date     time.Time
}

// Composer renders cart snapshots into WhatsApp order messages and builds
// the handoff URL for a configured destination number.
type Composer struct {
	destination string
	clock       func() time.Time
}

// NewComposer builds a composer for the destination number. The number may
// carry formatting; non-digits are stripped at URL construction time.
func NewComposer(destination string, clock func() time.Time) *Composer {
	if clock == nil {
		clock = time.Now
	}
	return &Composer{destination: destination, clock: clock}
}

// Compose renders the order message. The layout is fixed: header with
// date, optional customer block, enumerated items, pricing breakdown,
// closing prompt. Identical inputs produce byte-identical output.
func Compose(input Input) (string, error) {
	if len(input.Items) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeEmptyCart, "cannot compose an order for an empty cart")
	}

	var b strings.Builder
	b.WriteString("*New Order Request*\n")
	b.WriteString("Date: " + input.Date.Format(dateLayout) + "\n\n")

	if c := input.Customer; c != nil {
		b.WriteString("*Customer Details*\n")
		if c.Name != "" {
			b.WriteString("Name: " + c.Name + "\n")
		}
		if c.Phone != "" {
			b.WriteString("Phone: " + c.Phone + "\n")
		}
		if c.Email != "" {
			b.WriteString("Email: " + c.Email + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("*Order Items*\n")
	for i, item := range input.Items {
		size := "Not specified"
		if item.SelectedSize != nil {
			size = *item.SelectedSize
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, item.Name)
		fmt.Fprintf(&b, "   Category: %s\n", item.Category)
		fmt.Fprintf(&b, "   Size: %s\n", size)
		fmt.Fprintf(&b, "   Price: %s x %d = %s\n", money(item.Price), item.Quantity, money(item.LineTotal()))
		fmt.Fprintf(&b, "   Rating: %.1f\n", item.Rating)
		if image := item.FirstImage(); image != "" {
			fmt.Fprintf(&b, "   Image: %s\n", image)
		}
	}

	b.WriteString("\n*Order Summary*\n")
	b.WriteString("Subtotal: " + money(input.Summary.Subtotal) + "\n")
	if input.Summary.Discount.IsPositive() {
		b.WriteString("Discount: -" + money(input.Summary.Discount) + "\n")
	}
	if input.Summary.DeliveryCharges.IsZero() {
		b.WriteString("Delivery: FREE\n")
	} else {
		b.WriteString("Delivery: " + money(input.Summary.DeliveryCharges) + "\n")
	}
	b.WriteString("*Total: " + money(input.Summary.Total) + "*\n")

	b.WriteString("\nPlease confirm this order and share your delivery address.\n")
	b.WriteString("Thank you for shopping with us!")

	return b.String(), nil
}

// HandoffURL builds the messaging URL for a destination and message.
// Non-digit characters are stripped from the destination and the message
// body is percent-encoded.
func HandoffURL(destination, message string) (string, error) {
	digits := digitsOnly(destination)
	if digits == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "destination number must contain digits")
	}
	return messagingDomain + digits + "?text=" + url.QueryEscape(message), nil
}

// ComposeOrder renders the message with the composer's clock and returns
// it alongside the ready handoff URL.
func (c *Composer) ComposeOrder(items []types.LineItem, summary types.OrderSummary, customer *CustomerProfile) (message, handoff string, err error) {
	message, err = Compose(Input{
		Items:    items,
		Summary:  summary,
		Customer: customer,
		Date:     c.clock(),
	})
	if err != nil {
		return "", "", err
	}
	handoff, err = HandoffURL(c.destination, message)
	if err != nil {
		return "", "", err
	}
	return message, handoff, nil
}

func money(amount decimal.Decimal) string {
	return currencySymbol + amount.StringFixed(2)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
