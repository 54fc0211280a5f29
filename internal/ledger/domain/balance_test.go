package domain

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeBalanceScenario(t *testing.T) {
	invoices := []InvoiceTotal{{TotalAmount: amount("600")}}
	entries := []LedgerEntry{
		{Kind: KindCredit, Amount: amount("100")},
		{Kind: KindPayment, Amount: amount("200")},
	}

	b := ComputeBalance(invoices, entries)

	assert.True(t, amount("600").Equal(b.TotalInvoiced))
	assert.True(t, amount("100").Equal(b.TotalCredit))
	assert.True(t, amount("200").Equal(b.TotalPayment))
	assert.True(t, amount("500").Equal(b.Outstanding), b.Outstanding.String())

	limit := amount("1000")
	assert.ErrorIs(t, AuthorizeCredit(b.Outstanding, amount("600"), limit), ErrCreditLimitExceeded)
	assert.NoError(t, AuthorizeCredit(b.Outstanding, amount("500"), limit))
}

func TestComputeBalanceEmpty(t *testing.T) {
	b := ComputeBalance(nil, nil)
	assert.True(t, b.Outstanding.IsZero())
}

func TestComputeBalanceIsOrderIndependent(t *testing.T) {
	invoices := []InvoiceTotal{
		{TotalAmount: amount("262.0")},
		{TotalAmount: amount("0.1")},
		{TotalAmount: amount("1999.99")},
		{TotalAmount: amount("0.2")},
	}
	entries := []LedgerEntry{
		{Kind: KindCredit, Amount: amount("0.3")},
		{Kind: KindPayment, Amount: amount("100.05")},
		{Kind: KindCredit, Amount: amount("12.345")},
		{Kind: KindPayment, Amount: amount("0.1")},
		{Kind: KindCredit, Amount: amount("7")},
	}
	want := ComputeBalance(invoices, entries).Outstanding

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		rng.Shuffle(len(invoices), func(a, b int) { invoices[a], invoices[b] = invoices[b], invoices[a] })
		rng.Shuffle(len(entries), func(a, b int) { entries[a], entries[b] = entries[b], entries[a] })
		got := ComputeBalance(invoices, entries).Outstanding
		assert.True(t, want.Equal(got), "permutation %d: %s != %s", i, got, want)
	}
}

func TestAuthorizeCreditBoundary(t *testing.T) {
	cases := []struct {
		name        string
		outstanding string
		amount      string
		limit       string
		wantErr     bool
	}{
		{name: "under", outstanding: "0", amount: "999.99", limit: "1000"},
		{name: "exact", outstanding: "400", amount: "600", limit: "1000"},
		{name: "over_by_cent", outstanding: "400", amount: "600.01", limit: "1000", wantErr: true},
		{name: "zero_limit", outstanding: "0", amount: "0.01", limit: "0", wantErr: true},
		{name: "negative_balance_headroom", outstanding: "-50", amount: "1050", limit: "1000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AuthorizeCredit(amount(tc.outstanding), amount(tc.amount), amount(tc.limit))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrCreditLimitExceeded)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEntryKindValid(t *testing.T) {
	assert.True(t, KindCredit.Valid())
	assert.True(t, KindPayment.Valid())
	assert.False(t, EntryKind("refund").Valid())
}
