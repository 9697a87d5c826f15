package services

import (
	"strings"

	"github.com/shopspring/decimal"

	"opalpixel/invoicing/internal/models"
)

// RawItem is an unvalidated line item as submitted by a caller.
type RawItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Computation is the result of totalling a set of line items.
type Computation struct {
	Items     []models.InvoiceItem
	Subtotal  float64
	TaxAmount float64
	Total     float64
}

var hundred = decimal.NewFromInt(100)

// Compute drops entries with a blank description, a non-positive quantity or a
// non-positive unit price, then totals the rest. It never fails: an empty
// Items slice means nothing survived.
func Compute(raw []RawItem, taxRate float64) Computation {
	items := make([]models.InvoiceItem, 0, len(raw))
	for _, r := range raw {
		desc := strings.TrimSpace(r.Description)
		if desc == "" || r.Quantity <= 0 || r.UnitPrice <= 0 {
			continue
		}
		items = append(items, models.InvoiceItem{
			Description: desc,
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice,
		})
	}
	return RecomputeTax(items, taxRate)
}

// RecomputeTax totals already validated items. Line totals are rewritten from
// quantity and unit price.
func RecomputeTax(items []models.InvoiceItem, taxRate float64) Computation {
	out := make([]models.InvoiceItem, len(items))
	subtotal := decimal.Zero
	for i, it := range items {
		line := decimal.NewFromFloat(it.UnitPrice).Mul(decimal.NewFromInt(int64(it.Quantity)))
		it.Total = line.InexactFloat64()
		out[i] = it
		subtotal = subtotal.Add(line)
	}
	tax := subtotal.Mul(decimal.NewFromFloat(taxRate)).Div(hundred)
	return Computation{
		Items:     out,
		Subtotal:  subtotal.InexactFloat64(),
		TaxAmount: tax.InexactFloat64(),
		Total:     subtotal.Add(tax).InexactFloat64(),
	}
}
