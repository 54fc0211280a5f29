package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPriceLineScenario(t *testing.T) {
	got, err := PriceLine(Line{
		Quantity:        d("2"),
		Rate:            d("100"),
		DiscountPercent: d("10"),
		HSN:             "1001",
		GSTPercent:      d("18"),
	})
	require.NoError(t, err)

	assert.True(t, d("200").Equal(got.Price), got.Price.String())
	assert.True(t, d("20").Equal(got.Discount), got.Discount.String())
	assert.True(t, d("180").Equal(got.Taxable), got.Taxable.String())
	assert.True(t, d("16.2").Equal(got.CGST), got.CGST.String())
	assert.True(t, d("16.2").Equal(got.SGST), got.SGST.String())
	assert.True(t, d("212.4").Equal(got.Amount), got.Amount.String())
	assert.Equal(t, "1001", got.HSN)
}

func TestPriceLineSplitsGSTEvenly(t *testing.T) {
	cases := []Line{
		{Quantity: d("3"), Rate: d("33.33"), DiscountPercent: d("7.5"), GSTPercent: d("5")},
		{Quantity: d("0.25"), Rate: d("1999.99"), DiscountPercent: d("0"), GSTPercent: d("28")},
		{Quantity: d("7"), Rate: d("0.01"), DiscountPercent: d("100"), GSTPercent: d("12")},
		{Quantity: d("1"), Rate: d("0"), DiscountPercent: d("0"), GSTPercent: d("0")},
		{Quantity: d("11"), Rate: d("9.99"), DiscountPercent: d("33.333"), GSTPercent: d("0.1")},
	}

	for _, line := range cases {
		got, err := PriceLine(line)
		require.NoError(t, err)
		assert.True(t, got.CGST.Equal(got.SGST))
		assert.True(t, got.Amount.Equal(got.Taxable.Add(got.CGST).Add(got.SGST)))
	}
}

func TestPriceLineRejectsInvalidInput(t *testing.T) {
	valid := Line{Quantity: d("1"), Rate: d("10"), DiscountPercent: d("0"), GSTPercent: d("18")}

	cases := []struct {
		name   string
		mutate func(*Line)
		want   error
	}{
		{name: "zero_quantity", mutate: func(l *Line) { l.Quantity = d("0") }, want: ErrInvalidQuantity},
		{name: "negative_quantity", mutate: func(l *Line) { l.Quantity = d("-1") }, want: ErrInvalidQuantity},
		{name: "negative_rate", mutate: func(l *Line) { l.Rate = d("-0.01") }, want: ErrInvalidRate},
		{name: "discount_over_100", mutate: func(l *Line) { l.DiscountPercent = d("100.01") }, want: ErrInvalidDiscount},
		{name: "negative_discount", mutate: func(l *Line) { l.DiscountPercent = d("-5") }, want: ErrInvalidDiscount},
		{name: "negative_gst", mutate: func(l *Line) { l.GSTPercent = d("-1") }, want: ErrInvalidGSTPercent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := valid
			tc.mutate(&line)
			_, err := PriceLine(line)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPriceLineBoundaryDiscounts(t *testing.T) {
	full, err := PriceLine(Line{Quantity: d("2"), Rate: d("50"), DiscountPercent: d("100"), GSTPercent: d("18")})
	require.NoError(t, err)
	assert.True(t, full.Amount.IsZero())

	none, err := PriceLine(Line{Quantity: d("2"), Rate: d("50"), DiscountPercent: d("0"), GSTPercent: d("18")})
	require.NoError(t, err)
	assert.True(t, d("118").Equal(none.Amount))
}
