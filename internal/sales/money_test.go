package sales

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"1.234.567,89", 1234567.89},
		{"1,234,567.89", 1234567.89},
		{"$ 2.500,00", 2500},
		{"12,5", 12.5},
		{"1.234", 1.234},
		{"1.234.567", 1.234},
		{"1.000.000", 1},
		{"1,234,567", 1.234},
		{"1,5,9", 1.5},
		{"100", 100},
		{"-45,5", -45.5},
		{"  COP 300 ", 300},
		{"", 0},
		{"abc", 0},
		{"12-3", 0},
		{"1,2.3,4", 0},
		{",5", 0.5},
	}
	for _, c := range cases {
		c := c
		t.Run(c.in, func(t *testing.T) {
			assert.InDelta(t, c.want, ParseAmount(c.in), 1e-9)
		})
	}
}

func TestAmountAccumulatesExactly(t *testing.T) {
	var sum Amount
	for i := 0; i < 10; i++ {
		sum = sum.Add(ParseAmountDecimal("0,1"))
	}
	assert.Equal(t, 0, sum.Cmp(ParseAmountDecimal("1")))
	assert.Equal(t, 1.0, sum.Float64())
}

func TestParseAmountReportsMalformed(t *testing.T) {
	_, ok := parseAmount("n/a")
	assert.False(t, ok)
	_, ok = parseAmount("")
	assert.True(t, ok)
	a, ok := parseAmount("7.000,25")
	assert.True(t, ok)
	assert.Equal(t, "7000.25", a.String())
}
