package usecase

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(id int64, price string, qty int64) ValidatedLine {
	return ValidatedLine{
		Snapshot: CatalogSnapshot{ProductID: id, Name: "p", Price: decimal.RequireFromString(price), Stock: 100},
		Quantity: qty,
	}
}

func TestPriceEngine_Quote_Example(t *testing.T) {
	e := NewPriceEngine(DefaultPricingConfig())

	q := e.Quote([]ValidatedLine{line(1, "100", 2)}, decimal.Zero)

	assert.Equal(t, "200.00", q.Price.Subtotal.StringFixed(2))
	assert.Equal(t, "70.00", q.Price.ShippingFee.StringFixed(2))
	assert.Equal(t, "36.00", q.Price.Tax.StringFixed(2))
	assert.Equal(t, "0.00", q.Price.Discount.StringFixed(2))
	assert.Equal(t, "306.00", q.Price.Total.StringFixed(2))
	assert.Equal(t, int64(2), q.ItemCount)
	require.Len(t, q.Lines, 1)
	assert.Equal(t, "200.00", q.Lines[0].LineTotal.StringFixed(2))
}

// total == subtotal + shipping + tax - discount（端数あり）
func TestPriceEngine_Quote_TotalIsSumOfRoundedParts(t *testing.T) {
	e := NewPriceEngine(DefaultPricingConfig())

	cases := []struct {
		name     string
		lines    []ValidatedLine
		discount string
	}{
		{"fractional prices", []ValidatedLine{line(1, "19.99", 3), line(2, "0.33", 7)}, "0"},
		{"odd tax", []ValidatedLine{line(1, "33.335", 1)}, "1.005"},
		{"many lines", []ValidatedLine{line(1, "1.11", 9), line(2, "2.22", 8), line(3, "3.33", 7)}, "12.34"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := e.Quote(tc.lines, decimal.RequireFromString(tc.discount))
			p := q.Price
			want := p.Subtotal.Add(p.ShippingFee).Add(p.Tax).Sub(p.Discount)
			assert.True(t, want.Equal(p.Total), "total %s want %s", p.Total, want)
			assert.False(t, p.Total.IsNegative())
			for _, v := range []decimal.Decimal{p.Subtotal, p.ShippingFee, p.Tax, p.Discount, p.Total} {
				assert.LessOrEqual(t, -v.Exponent(), int32(2))
			}
		})
	}
}

func TestPriceEngine_Quote_DiscountClamped(t *testing.T) {
	e := NewPriceEngine(DefaultPricingConfig())

	q := e.Quote([]ValidatedLine{line(1, "10", 1)}, decimal.NewFromInt(10000))
	assert.True(t, q.Price.Total.IsZero())
	assert.Equal(t, "71.80", q.Price.Discount.StringFixed(2)) // 10 + 60 + 1.80

	neg := e.Quote([]ValidatedLine{line(1, "10", 1)}, decimal.NewFromInt(-5))
	assert.True(t, neg.Price.Discount.IsZero())
}
