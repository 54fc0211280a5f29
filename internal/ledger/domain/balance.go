package domain

import "github.com/shopspring/decimal"

// Balance breaks an outstanding balance into its three summands.
type Balance struct {
	TotalInvoiced decimal.Decimal `json:"total_invoiced"`
	TotalCredit   decimal.Decimal `json:"total_credit"`
	TotalPayment  decimal.Decimal `json:"total_payment"`
	Outstanding   decimal.Decimal `json:"outstanding"`
}

// ComputeBalance derives invoiced + credit - payment. Decimal addition is
// exact, so the result does not depend on the order of either input.
func ComputeBalance(invoices []InvoiceTotal, entries []LedgerEntry) Balance {
	b := Balance{
		TotalInvoiced: decimal.Zero,
		TotalCredit:   decimal.Zero,
		TotalPayment:  decimal.Zero,
	}
	for _, inv := range invoices {
		b.TotalInvoiced = b.TotalInvoiced.Add(inv.TotalAmount)
	}
	for _, entry := range entries {
		switch entry.Kind {
		case KindCredit:
			b.TotalCredit = b.TotalCredit.Add(entry.Amount)
		case KindPayment:
			b.TotalPayment = b.TotalPayment.Add(entry.Amount)
		}
	}
	b.Outstanding = b.TotalInvoiced.Add(b.TotalCredit).Sub(b.TotalPayment)
	return b
}

// AuthorizeCredit rejects a credit that would take the balance above limit.
// Landing exactly on the limit is allowed.
func AuthorizeCredit(outstanding, amount, limit decimal.Decimal) error {
	if outstanding.Add(amount).GreaterThan(limit) {
		return ErrCreditLimitExceeded
	}
	return nil
}
