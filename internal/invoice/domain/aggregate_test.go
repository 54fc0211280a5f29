package domain

import (
	"math/rand"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/billbook/internal/tax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pricedLines(t *testing.T) []tax.PricedLine {
	t.Helper()
	inputs := []tax.Line{
		{Quantity: dec("2"), Rate: dec("100"), DiscountPercent: dec("10"), GSTPercent: dec("18"), HSN: "1001"},
		{Quantity: dec("3"), Rate: dec("49.5"), DiscountPercent: dec("0"), GSTPercent: dec("5"), HSN: "2002"},
		{Quantity: dec("1"), Rate: dec("1000"), DiscountPercent: dec("25"), GSTPercent: dec("28"), HSN: "3003"},
	}
	out := make([]tax.PricedLine, 0, len(inputs))
	for _, in := range inputs {
		line, err := tax.PriceLine(in)
		require.NoError(t, err)
		out = append(out, line)
	}
	return out
}

func TestAggregateMultipleLines(t *testing.T) {
	lines := pricedLines(t)

	totals := Aggregate(lines, dec("50"), dec("-0.325"))

	assert.True(t, dec("1348.5").Equal(totals.Subtotal), totals.Subtotal.String())
	assert.True(t, dec("270").Equal(totals.TotalDiscount), totals.TotalDiscount.String())
	assert.True(t, dec("1078.5").Equal(totals.TotalTaxable), totals.TotalTaxable.String())
	assert.True(t, dec("124.9125").Equal(totals.TotalCGST), totals.TotalCGST.String())
	assert.True(t, totals.TotalCGST.Equal(totals.TotalSGST))
	assert.True(t, dec("1328.325").Equal(totals.LinesTotal), totals.LinesTotal.String())
	assert.True(t, dec("1378").Equal(totals.GrandTotal), totals.GrandTotal.String())

	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Amount)
	}
	assert.True(t, sum.Add(dec("50")).Add(dec("-0.325")).Equal(totals.GrandTotal))
}

func TestAggregateNegativeRoundOffLowersTotal(t *testing.T) {
	lines := pricedLines(t)[:1]

	totals := Aggregate(lines, decimal.Zero, dec("-0.4"))
	assert.True(t, dec("212").Equal(totals.GrandTotal), totals.GrandTotal.String())

	totals = Aggregate(nil, dec("10"), dec("-0.5"))
	assert.True(t, dec("9.5").Equal(totals.GrandTotal))
	assert.True(t, totals.LinesTotal.IsZero())
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	lines := pricedLines(t)
	want := Aggregate(lines, dec("12.5"), dec("0.075"))

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 30; i++ {
		rng.Shuffle(len(lines), func(a, b int) { lines[a], lines[b] = lines[b], lines[a] })
		got := Aggregate(lines, dec("12.5"), dec("0.075"))
		assert.True(t, want.GrandTotal.Equal(got.GrandTotal), "permutation %d: %s != %s", i, got.GrandTotal, want.GrandTotal)
		assert.True(t, want.TotalTaxable.Equal(got.TotalTaxable))
		assert.True(t, want.TotalCGST.Equal(got.TotalCGST))
	}
}

func TestTotalsOfMatchesAggregate(t *testing.T) {
	lines := pricedLines(t)
	want := Aggregate(lines, dec("50"), dec("-0.325"))

	inv := Invoice{
		ID:              snowflake.ID(1),
		TransportCharge: dec("50"),
		RoundOff:        dec("-0.325"),
		TotalAmount:     want.GrandTotal,
	}
	for i, line := range lines {
		inv.Items = append(inv.Items, InvoiceItem{
			Position:        i + 1,
			Quantity:        line.Quantity,
			Rate:            line.Rate,
			DiscountPercent: line.DiscountPercent,
			HSN:             line.HSN,
			GSTPercent:      line.GSTPercent,
			Price:           line.Price,
			Discount:        line.Discount,
			Taxable:         line.Taxable,
			CGST:            line.CGST,
			SGST:            line.SGST,
			Amount:          line.Amount,
		})
	}

	got := TotalsOf(inv)
	assert.True(t, want.GrandTotal.Equal(got.GrandTotal))
	assert.True(t, inv.TotalAmount.Equal(got.GrandTotal))
	assert.True(t, want.Subtotal.Equal(got.Subtotal))
	assert.True(t, want.TotalSGST.Equal(got.TotalSGST))
}

func TestCloneSharesNothing(t *testing.T) {
	vehicle := "KA-01"
	inv := Invoice{
		VehicleNo: &vehicle,
		Metadata:  map[string]any{"note": "first"},
		Items:     []InvoiceItem{{Position: 1, Amount: dec("10")}},
	}

	clone := inv.Clone()
	*inv.VehicleNo = "KA-02"
	inv.Metadata["note"] = "changed"
	inv.Items[0].Amount = dec("99")

	require.NotNil(t, clone.VehicleNo)
	assert.Equal(t, "KA-01", *clone.VehicleNo)
	assert.Equal(t, "first", clone.Metadata["note"])
	assert.True(t, dec("10").Equal(clone.Items[0].Amount))
}
