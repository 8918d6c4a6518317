package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRound2HalfUp(t *testing.T) {
	require.Equal(t, "2.35", Format(Round2(MustParse("2.345"))))
	require.Equal(t, "2.34", Format(Round2(MustParse("2.3449"))))
	require.Equal(t, "6.00", Format(Round2(MustParse("6"))))
	require.Equal(t, "0.01", Format(Round2(MustParse("0.005"))))
}

func TestWeightedAverage(t *testing.T) {
	// 10 units at 5.00 plus 5 units costing 40.00 in total.
	avg := WeightedAverage(10, MustParse("5.00"), 5, MustParse("40.00"))
	require.Equal(t, "6.00", Format(avg))

	// (3*10 + 20) / 7 = 7.142857...
	avg = WeightedAverage(3, MustParse("10.00"), 4, MustParse("20.00"))
	require.Equal(t, "7.14", Format(avg))

	// (1*0 + 2*0.01) / 3 = 0.00666...
	avg = WeightedAverage(1, decimal.Zero, 2, MustParse("0.02"))
	require.Equal(t, "0.01", Format(avg))

	require.True(t, WeightedAverage(0, decimal.Zero, 0, decimal.Zero).IsZero())
}

func TestLineAndCents(t *testing.T) {
	require.Equal(t, "36.00", Format(Line(3, MustParse("12.00"))))
	require.True(t, HasCents(MustParse("12.5")))
	require.True(t, HasCents(MustParse("12.500")))
	require.False(t, HasCents(MustParse("12.505")))

	_, err := Parse("abc")
	require.Error(t, err)
}
