package orders

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func sampleOrder() *Order {
	o := &Order{ID: "o1", OrderNumber: "SL2603011234", Status: StatusPendingPayment}
	o.ShippingFee = d(20000)
	o.addItem(Item{ID: "i1", ProductID: 1, Quantity: 2, UnitPrice: d(100000)})
	return o
}

func TestRecalculate_BouquetScenario(t *testing.T) {
	o := sampleOrder()
	_, err := o.addVariant("i1", VariantInput{Name: "wrap", Value: "silk", PriceAdjustment: d(5000)})
	require.NoError(t, err)

	o.Recalculate()
	assert.True(t, d(210000).Equal(o.Items[0].TotalPrice))
	assert.True(t, d(210000).Equal(o.SubtotalAmount))
	assert.True(t, d(230000).Equal(o.TotalAmount))
}

func TestAddVariant_DuplicateNameConflicts(t *testing.T) {
	o := sampleOrder()
	_, err := o.addVariant("i1", VariantInput{Name: "ribbon", Value: "red"})
	require.NoError(t, err)
	_, err = o.addVariant("i1", VariantInput{Name: "ribbon", Value: "blue"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Len(t, o.Items[0].Variants, 1)
}

func TestAddVariant_Validation(t *testing.T) {
	o := sampleOrder()
	_, err := o.addVariant("i1", VariantInput{Value: "red"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = o.addVariant("nope", VariantInput{Name: "ribbon", Value: "red"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRemoveItem_KeepsAtLeastOne(t *testing.T) {
	o := sampleOrder()
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(o.removeItem("i1")))

	o.addItem(Item{ID: "i2", ProductID: 2, Quantity: 1, UnitPrice: d(80000)})
	require.NoError(t, o.removeItem("i1"))
	require.Len(t, o.Items, 1)
	assert.Equal(t, "i2", o.Items[0].ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(o.removeItem("i1")))
}

func TestUpdateItem(t *testing.T) {
	o := sampleOrder()
	zero := 0
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(o.updateItem("i1", ItemUpdate{Quantity: &zero})))

	three, note := 3, "extra greenery"
	require.NoError(t, o.updateItem("i1", ItemUpdate{Quantity: &three, Note: &note}))
	o.Recalculate()
	assert.True(t, d(300000).Equal(o.SubtotalAmount))
	assert.Equal(t, note, o.Items[0].Note)
}

func TestEnsureMutable(t *testing.T) {
	o := sampleOrder()
	assert.NoError(t, o.ensureMutable())
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		o.Status = s
		assert.Equal(t, apperr.KindInvalidStatus, apperr.KindOf(o.ensureMutable()))
	}
}

func TestClone_IsIndependent(t *testing.T) {
	o := sampleOrder()
	_, err := o.addVariant("i1", VariantInput{Name: "wrap", Value: "kraft"})
	require.NoError(t, err)

	c := o.clone()
	c.Items[0].Quantity = 9
	require.NoError(t, c.removeVariant("i1", c.Items[0].Variants[0].ID))
	c.addItem(Item{ID: "i2", Quantity: 1})

	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Len(t, o.Items[0].Variants, 1)
	assert.Len(t, o.Items, 1)
}

// Random edit sequences must always leave the totals equal to a sum over the final state.
func TestRecalculate_MatchesSumAfterRandomEdits(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	o := sampleOrder()
	next := 2

	for step := 0; step < 300; step++ {
		switch rng.Intn(4) {
		case 0:
			o.addItem(Item{ID: fmt.Sprintf("i%d", next), Quantity: 1 + rng.Intn(5), UnitPrice: d(int64(rng.Intn(200)) * 1000)})
			next++
		case 1:
			it := o.Items[rng.Intn(len(o.Items))]
			_, _ = o.addVariant(it.ID, VariantInput{
				Name: fmt.Sprintf("opt-%d", rng.Intn(6)), Value: "x",
				PriceAdjustment: d(int64(rng.Intn(2001) - 1000)),
			})
		case 2:
			_ = o.removeItem(o.Items[rng.Intn(len(o.Items))].ID)
		case 3:
			it := o.Items[rng.Intn(len(o.Items))]
			if len(it.Variants) > 0 {
				require.NoError(t, o.removeVariant(it.ID, it.Variants[0].ID))
			}
		}
		o.Recalculate()

		sum := decimal.Zero
		for _, it := range o.Items {
			want := it.UnitPrice.Mul(d(int64(it.Quantity)))
			for _, v := range it.Variants {
				want = want.Add(v.PriceAdjustment.Mul(d(int64(it.Quantity))))
			}
			require.True(t, want.Equal(it.TotalPrice), "item %s", it.ID)
			sum = sum.Add(it.TotalPrice)
		}
		require.True(t, sum.Equal(o.SubtotalAmount))
		require.True(t, o.SubtotalAmount.Add(o.ShippingFee).Equal(o.TotalAmount))
		require.NotEmpty(t, o.Items)
	}
}

func TestValidateItem(t *testing.T) {
	ok := ItemInput{ProductID: 1, Quantity: 1, Variants: []VariantInput{{Name: "a", Value: "b"}}}
	assert.NoError(t, validateItem(ok))

	bad := ok
	bad.Quantity = 0
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(validateItem(bad)))

	dup := ok
	dup.Variants = []VariantInput{{Name: "a", Value: "b"}, {Name: "a", Value: "c"}}
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(validateItem(dup)))
}

func TestValidateHeader(t *testing.T) {
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(validateHeader(Header{})))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(validateHeader(Header{CustomerName: "Ana", ShippingFee: d(-1)})))
	assert.NoError(t, validateHeader(Header{CustomerName: "Ana"}))
}

func TestValidateMoney_CentScale(t *testing.T) {
	fee := decimal.RequireFromString("0.005")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(validateHeader(Header{CustomerName: "Ana", ShippingFee: fee})))
	assert.NoError(t, validateHeader(Header{CustomerName: "Ana", ShippingFee: decimal.RequireFromString("15000.50")}))
	assert.NoError(t, validateHeader(Header{CustomerName: "Ana", ShippingFee: decimal.RequireFromString("1.500")}), "trailing zeros are still whole cents")

	adj := VariantInput{Name: "wrap", Value: "silk", PriceAdjustment: decimal.RequireFromString("0.004")}
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(validateVariant(adj)))
	adj.PriceAdjustment = decimal.RequireFromString("-2500.25")
	assert.NoError(t, validateVariant(adj))
	adj.PriceAdjustment = decimal.New(1, 12)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(validateVariant(adj)))

	o := sampleOrder()
	_, err := o.addVariant("i1", VariantInput{Name: "wrap", Value: "silk", PriceAdjustment: decimal.RequireFromString("0.004")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, o.Items[0].Variants)
}

func TestQuantityBounds(t *testing.T) {
	in := ItemInput{ProductID: 1, Quantity: maxQuantity + 1}
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(validateItem(in)))

	o := sampleOrder()
	q := maxQuantity + 1
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(o.updateItem("i1", ItemUpdate{Quantity: &q})))
	assert.Equal(t, 2, o.Items[0].Quantity)
}

func TestCheckTotals_RejectsUnstorableAmounts(t *testing.T) {
	o := sampleOrder()
	o.Recalculate()
	require.NoError(t, o.checkTotals())

	o.Items[0].Quantity = 10_000_000
	o.Recalculate()
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(o.checkTotals()))
}
