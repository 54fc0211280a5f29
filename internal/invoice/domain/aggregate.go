package domain

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/billbook/internal/tax"
)

// Totals are the invoice-level sums shown on a receipt.
type Totals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	TotalDiscount   decimal.Decimal `json:"total_discount"`
	TotalTaxable    decimal.Decimal `json:"total_taxable"`
	TotalCGST       decimal.Decimal `json:"total_cgst"`
	TotalSGST       decimal.Decimal `json:"total_sgst"`
	LinesTotal      decimal.Decimal `json:"lines_total"`
	TransportCharge decimal.Decimal `json:"transport_charge"`
	RoundOff        decimal.Decimal `json:"round_off"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
}

// Aggregate sums priced lines and applies the transport charge and round-off.
// An empty line list is valid.
func Aggregate(lines []tax.PricedLine, transportCharge, roundOff decimal.Decimal) Totals {
	t := Totals{
		Subtotal:        decimal.Zero,
		TotalDiscount:   decimal.Zero,
		TotalTaxable:    decimal.Zero,
		TotalCGST:       decimal.Zero,
		TotalSGST:       decimal.Zero,
		LinesTotal:      decimal.Zero,
		TransportCharge: transportCharge,
		RoundOff:        roundOff,
	}
	for _, line := range lines {
		t.Subtotal = t.Subtotal.Add(line.Price)
		t.TotalDiscount = t.TotalDiscount.Add(line.Discount)
		t.TotalTaxable = t.TotalTaxable.Add(line.Taxable)
		t.TotalCGST = t.TotalCGST.Add(line.CGST)
		t.TotalSGST = t.TotalSGST.Add(line.SGST)
		t.LinesTotal = t.LinesTotal.Add(line.Amount)
	}
	t.GrandTotal = t.LinesTotal.Add(transportCharge).Add(roundOff)
	return t
}

// TotalsOf recomputes the totals of a stored invoice from its items.
func TotalsOf(inv Invoice) Totals {
	lines := make([]tax.PricedLine, 0, len(inv.Items))
	for _, item := range inv.Items {
		lines = append(lines, tax.PricedLine{
			Price:    item.Price,
			Discount: item.Discount,
			Taxable:  item.Taxable,
			CGST:     item.CGST,
			SGST:     item.SGST,
			Amount:   item.Amount,
		})
	}
	return Aggregate(lines, inv.TransportCharge, inv.RoundOff)
}
