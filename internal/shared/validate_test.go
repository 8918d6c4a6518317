package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type priceLine struct {
	Quantity int64           `json:"quantity" validate:"min=1,max=1000000"`
	Price    decimal.Decimal `json:"unit_price" validate:"dmin=0.01,dmax=100000000,cents"`
}

type priceInput struct {
	Name  string      `json:"name" validate:"required,min=2,max=150"`
	Lines []priceLine `json:"items" validate:"required,min=1,dive"`
}

func TestValidateStructReportsJSONPaths(t *testing.T) {
	v := NewValidator()

	err := ValidateStruct(v, priceInput{
		Name: "A",
		Lines: []priceLine{
			{Quantity: 1, Price: decimal.RequireFromString("0.01")},
			{Quantity: 0, Price: decimal.RequireFromString("1.005")},
		},
	})
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "must be at least 2 characters", verr.Fields["name"])
	require.Equal(t, "must be at least 1", verr.Fields["items[1].quantity"])
	require.Equal(t, "must have at most 2 decimal places", verr.Fields["items[1].unit_price"])
	require.NotContains(t, verr.Fields, "items[0].unit_price")
}

func TestValidateStructDecimalBounds(t *testing.T) {
	v := NewValidator()

	err := ValidateStruct(v, priceInput{Name: "Ok", Lines: []priceLine{{Quantity: 1, Price: decimal.Zero}}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "must be at least 0.01", verr.Fields["items[0].unit_price"])

	err = ValidateStruct(v, priceInput{Name: "Ok", Lines: []priceLine{{Quantity: 1, Price: decimal.RequireFromString("100000000.01")}}})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "must be at most 100000000", verr.Fields["items[0].unit_price"])

	require.NoError(t, ValidateStruct(v, priceInput{Name: "Ok", Lines: []priceLine{{Quantity: 1000000, Price: decimal.RequireFromString("100000000")}}}))
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "Loja do João", NormalizeName("  Loja \t do\n  João  "))
	require.Equal(t, "Café", NormalizeName("Café"))
	require.Equal(t, "", NormalizeName("   "))
}

func TestPageRequestBounds(t *testing.T) {
	require.Equal(t, PageRequest{Page: 1, PerPage: DefaultPerPage}, NewPageRequest(0, 0))
	require.Equal(t, PageRequest{Page: 3, PerPage: MaxPerPage}, NewPageRequest(3, 500))
	require.Equal(t, 30, NewPageRequest(3, 15).Offset())

	p := NewPagination(2, 15, 31)
	require.Equal(t, 3, p.TotalPages)
	require.Equal(t, 1, NewPagination(1, 15, 0).TotalPages)
}

func TestParseIdempotencyKey(t *testing.T) {
	key, err := ParseIdempotencyKey("6F9619FF-8B86-D011-B42D-00CF4FC964FF")
	require.NoError(t, err)
	require.Equal(t, "6f9619ff-8b86-d011-b42d-00cf4fc964ff", key)

	_, err = ParseIdempotencyKey("not-a-key")
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, ErrIdempotencyConflict, ErrConflict)
}
