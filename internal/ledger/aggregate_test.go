package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/money"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

func TestAggregateMergesDuplicatesAndKeepsRawOrder(t *testing.T) {
	items := []LineItem{
		{ProductID: 7, Quantity: 2, UnitPrice: money.MustParse("10.00")},
		{ProductID: 3, Quantity: 1, UnitPrice: money.MustParse("4.50")},
		{ProductID: 7, Quantity: 3, UnitPrice: money.MustParse("12.00")},
	}

	agg, err := Aggregate(items)
	require.NoError(t, err)
	require.Equal(t, items, agg.Items)
	require.Equal(t, []int64{3, 7}, agg.ProductIDs)

	require.Equal(t, int64(5), agg.ByProduct[7].Quantity)
	require.True(t, money.MustParse("56.00").Equal(agg.ByProduct[7].Cost), agg.ByProduct[7].Cost.String())
	require.Equal(t, int64(1), agg.ByProduct[3].Quantity)
	require.True(t, money.MustParse("4.50").Equal(agg.ByProduct[3].Cost))

	require.Equal(t, map[int64]int64{3: 1, 7: 5}, agg.Quantities())
}

func TestAggregateRejectsEmptyInput(t *testing.T) {
	_, err := Aggregate(nil)
	require.ErrorIs(t, err, ErrEmptyItems)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSortedIDs(t *testing.T) {
	require.Equal(t, []int64{1, 2, 9}, SortedIDs([]int64{9, 2, 9, 1, 2}))
	require.Empty(t, SortedIDs(nil))
}

func TestMissingProductsPointsAtEachLine(t *testing.T) {
	agg, err := Aggregate([]LineItem{
		{ProductID: 4, Quantity: 1, UnitPrice: money.MustParse("1.00")},
		{ProductID: 8, Quantity: 1, UnitPrice: money.MustParse("1.00")},
		{ProductID: 4, Quantity: 2, UnitPrice: money.MustParse("1.00")},
	})
	require.NoError(t, err)
	require.NoError(t, agg.MissingProducts(nil))

	err = agg.MissingProducts([]int64{4})
	require.ErrorIs(t, err, shared.ErrValidation)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, map[string]string{
		"items[0].product_id": "product 4 does not exist",
		"items[2].product_id": "product 4 does not exist",
	}, verr.Fields)
}
