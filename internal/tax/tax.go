// Package tax prices a single invoice line under the GST rules: the tax is
// split into equal CGST and SGST halves computed on the discounted price.
package tax

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// Line is the input to PriceLine. GSTPercent and HSN come from the product.
type Line struct {
	Quantity        decimal.Decimal
	Rate            decimal.Decimal
	DiscountPercent decimal.Decimal
	HSN             string
	GSTPercent      decimal.Decimal
}

// PricedLine carries every intermediate of the pricing pipeline so receipts
// can show them without recomputing.
type PricedLine struct {
	Quantity        decimal.Decimal `json:"quantity"`
	Rate            decimal.Decimal `json:"rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	HSN             string          `json:"hsn"`
	GSTPercent      decimal.Decimal `json:"gst_percent"`

	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
	Taxable  decimal.Decimal `json:"taxable"`
	CGST     decimal.Decimal `json:"cgst"`
	SGST     decimal.Decimal `json:"sgst"`
	Amount   decimal.Decimal `json:"amount"`
}

// Validate checks the bounds PriceLine relies on.
func (l Line) Validate() error {
	if !l.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if l.Rate.IsNegative() {
		return ErrInvalidRate
	}
	if l.DiscountPercent.IsNegative() || l.DiscountPercent.GreaterThan(hundred) {
		return ErrInvalidDiscount
	}
	if l.GSTPercent.IsNegative() || l.GSTPercent.GreaterThan(hundred) {
		return ErrInvalidGSTPercent
	}
	return nil
}

// PriceLine computes price, discount, taxable value, both GST halves and the
// line amount. No rounding is applied at any step.
func PriceLine(l Line) (PricedLine, error) {
	if err := l.Validate(); err != nil {
		return PricedLine{}, err
	}

	price := l.Rate.Mul(l.Quantity)
	discount := price.Mul(l.DiscountPercent).Div(hundred)
	taxable := price.Sub(discount)
	half := taxable.Mul(l.GSTPercent).Div(two).Div(hundred)

	return PricedLine{
		Quantity:        l.Quantity,
		Rate:            l.Rate,
		DiscountPercent: l.DiscountPercent,
		HSN:             l.HSN,
		GSTPercent:      l.GSTPercent,
		Price:           price,
		Discount:        discount,
		Taxable:         taxable,
		CGST:            half,
		SGST:            half,
		Amount:          taxable.Add(half).Add(half),
	}, nil
}
