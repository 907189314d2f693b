package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
	"github.com/ariefcatur/go-custom-orders/internal/postgres"
)

type fakeCatalog struct {
	products    map[int64]Product
	variants    map[int64]Variant
	collections map[int64]bool
}

func (f fakeCatalog) Product(_ context.Context, _ postgres.Querier, id int64) (Product, error) {
	p, ok := f.products[id]
	if !ok {
		return Product{}, apperr.NotFound("product %d not found", id)
	}
	return p, nil
}

func (f fakeCatalog) Variant(_ context.Context, _ postgres.Querier, id int64) (Variant, error) {
	v, ok := f.variants[id]
	if !ok {
		return Variant{}, apperr.NotFound("product variant %d not found", id)
	}
	return v, nil
}

func (f fakeCatalog) CollectionExists(_ context.Context, _ postgres.Querier, id int64) (bool, error) {
	return f.collections[id], nil
}

func i64(v int64) *int64 { return &v }

func newFake() fakeCatalog {
	return fakeCatalog{
		products: map[int64]Product{
			1: {ID: 1, Name: "Rose bouquet", ProductType: "custom", Price: decimal.NewFromInt(100000), Active: true},
			2: {ID: 2, Name: "Retired", Price: decimal.NewFromInt(1), Active: false},
		},
		variants: map[int64]Variant{
			10: {ID: 10, ProductID: 1, Name: "Large", Price: decimal.NewNullDecimal(decimal.NewFromInt(150000)), Active: true},
			11: {ID: 11, ProductID: 1, Name: "Small", Active: true},
			20: {ID: 20, ProductID: 2, Name: "Other", Active: true},
		},
		collections: map[int64]bool{5: true},
	}
}

func TestResolve_UnitPrice(t *testing.T) {
	ctx := context.Background()
	c := newFake()

	l, err := Resolve(ctx, c, nil, 1, nil, nil)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100000).Equal(l.UnitPrice()))

	l, err = Resolve(ctx, c, nil, 1, i64(10), i64(5))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(150000).Equal(l.UnitPrice()))

	l, err = Resolve(ctx, c, nil, 1, i64(11), nil)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100000).Equal(l.UnitPrice()), "variant without price falls back to product")
}

func TestResolve_Errors(t *testing.T) {
	ctx := context.Background()
	c := newFake()

	cases := []struct {
		name       string
		product    int64
		variant    *int64
		collection *int64
		want       apperr.Kind
	}{
		{"missing product id", 0, nil, nil, apperr.KindValidation},
		{"unknown product", 99, nil, nil, apperr.KindNotFound},
		{"inactive product", 2, nil, nil, apperr.KindValidation},
		{"unknown variant", 1, i64(99), nil, apperr.KindNotFound},
		{"foreign variant", 1, i64(20), nil, apperr.KindValidation},
		{"unknown collection", 1, nil, i64(6), apperr.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(ctx, c, nil, tc.product, tc.variant, tc.collection)
			assert.Equal(t, tc.want, apperr.KindOf(err))
		})
	}
}
