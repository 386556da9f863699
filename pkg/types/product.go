package types

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Product is the catalog entry line items are built from. The legacy data
// allowed numeric ids, so unmarshalling coerces numbers into strings.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Sizes    []string        `json:"sizes,omitempty"`
	Images   []string        `json:"images,omitempty"`
	Rating   float64         `json:"rating"`
	InStock  bool            `json:"inStock"`
}

func (p *Product) UnmarshalJSON(data []byte) error {
	type alias Product
	aux := struct {
		ID any `json:"id"`
		*alias
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch id := aux.ID.(type) {
	case nil:
		p.ID = ""
	case string:
		p.ID = id
	case float64:
		p.ID = strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		p.ID = id.String()
	default:
		return fmt.Errorf("product id: unsupported type %T", aux.ID)
	}
	return nil
}

// HasSizes reports whether the product carries a size chart.
func (p Product) HasSizes() bool {
	return len(p.Sizes) > 0
}

// FirstImage returns the primary image reference, or empty.
func (p Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
