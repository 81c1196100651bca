package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTotalScenario(t *testing.T) {
	c := Cart{}.AddItem(marg).AddItem(marg).AddItem(pep)

	total := Total(c)
	assert.True(t, total.Equal(decimal.NewFromInt(997)), "got %s", total)
	assert.Equal(t, int64(99700), MinorUnits(total))
	assert.Equal(t, 3, c.Count())
}

func TestMinorUnitsRounding(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"12.345", 1235},
		{"12.344", 1234},
		{"0.005", 1},
		{"349.50", 34950},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, MinorUnits(decimal.RequireFromString(tc.in)))
		})
	}
}

func TestFromMinorUnits(t *testing.T) {
	assert.True(t, FromMinorUnits(99700).Equal(decimal.NewFromInt(997)))
	assert.True(t, FromMinorUnits(34950).Equal(decimal.RequireFromString("349.5")))
}
