package inventory

import (
	"math"
	"sort"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
)

// MaxQuantity is the largest count a stock column can hold.
const MaxQuantity = math.MaxInt32

type lineKey struct {
	productID  int64
	hasVariant bool
	variantID  int64
}

func keyOf(productID int64, variantID *int64) lineKey {
	if variantID == nil {
		return lineKey{productID: productID}
	}
	return lineKey{productID: productID, hasVariant: true, variantID: *variantID}
}

func (a lineKey) less(b lineKey) bool {
	if a.productID != b.productID {
		return a.productID < b.productID
	}
	if a.hasVariant != b.hasVariant {
		return !a.hasVariant
	}
	return a.variantID < b.variantID
}

// normalize validates lines, merges duplicates of the same (product, variant) and
// returns them in lock order: product id ascending, NULL variant first, then variant id.
// Every batch locks rows in this order, so two overlapping batches cannot wait on each other in a cycle.
func normalize(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}
	merged := make(map[lineKey]*Line, len(lines))
	keys := make([]lineKey, 0, len(lines))
	for idx, ln := range lines {
		if ln.ProductID <= 0 {
			return nil, apperr.Validation("items[%d]: product_id is required", idx)
		}
		if ln.VariantID != nil && *ln.VariantID <= 0 {
			return nil, apperr.Validation("items[%d]: variant_id must be positive", idx)
		}
		if ln.Quantity <= 0 {
			return nil, apperr.Validation("items[%d]: quantity must be at least 1", idx)
		}
		if ln.Quantity > MaxQuantity {
			return nil, apperr.Validation("items[%d]: quantity must not exceed %d", idx, MaxQuantity)
		}
		k := keyOf(ln.ProductID, ln.VariantID)
		if m, ok := merged[k]; ok {
			if m.Quantity > MaxQuantity-ln.Quantity {
				return nil, apperr.Validation("items[%d]: combined quantity for product %d exceeds %d", idx, ln.ProductID, MaxQuantity)
			}
			m.Quantity += ln.Quantity
			continue
		}
		cp := ln
		if ln.VariantID != nil {
			v := *ln.VariantID
			cp.VariantID = &v
		}
		merged[k] = &cp
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].less(keys[b]) })

	out := make([]Line, 0, len(keys))
	for _, k := range keys {
		out = append(out, *merged[k])
	}
	return out, nil
}
