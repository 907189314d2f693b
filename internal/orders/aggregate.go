package orders

import (
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
	"github.com/ariefcatur/go-custom-orders/internal/pricing"
)

func newID() string { return uuid.Must(uuid.NewV7()).String() }

// Amounts are stored as NUMERIC(14,2) and quantities as INT.
const (
	moneyScale  = 2
	maxQuantity = math.MaxInt32
)

var maxAmount = decimal.New(1, 12)

func validateMoney(field string, v decimal.Decimal) error {
	if !v.Equal(v.Round(moneyScale)) {
		return apperr.Validation("%s must have at most %d decimal places", field, moneyScale)
	}
	if v.Abs().GreaterThanOrEqual(maxAmount) {
		return apperr.Validation("%s is out of range", field)
	}
	return nil
}

func validateQuantity(q int) error {
	if q < 1 {
		return apperr.Validation("quantity must be at least 1")
	}
	if q > maxQuantity {
		return apperr.Validation("quantity must not exceed %d", maxQuantity)
	}
	return nil
}

func validateHeader(h Header) error {
	if strings.TrimSpace(h.CustomerName) == "" {
		return apperr.Validation("customer_name is required")
	}
	if h.ShippingFee.IsNegative() {
		return apperr.Validation("shipping_fee must not be negative")
	}
	return validateMoney("shipping_fee", h.ShippingFee)
}

func validateVariant(v VariantInput) error {
	if strings.TrimSpace(v.Name) == "" {
		return apperr.Validation("variant_name is required")
	}
	if strings.TrimSpace(v.Value) == "" {
		return apperr.Validation("variant_value is required")
	}
	return validateMoney("price_adjustment", v.PriceAdjustment)
}

func validateItem(in ItemInput) error {
	if in.ProductID <= 0 {
		return apperr.Validation("product_id is required")
	}
	if err := validateQuantity(in.Quantity); err != nil {
		return err
	}
	seen := make(map[string]bool, len(in.Variants))
	for _, v := range in.Variants {
		if err := validateVariant(v); err != nil {
			return err
		}
		if seen[v.Name] {
			return apperr.Conflict("variant %q given twice", v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}

// Recalculate recomputes every item total and the order totals from scratch.
func (o *Order) Recalculate() {
	totals := make([]decimal.Decimal, len(o.Items))
	for i := range o.Items {
		it := &o.Items[i]
		adj := make([]decimal.Decimal, len(it.Variants))
		for j, v := range it.Variants {
			adj[j] = v.PriceAdjustment
		}
		it.TotalPrice = pricing.ItemTotal(it.UnitPrice, it.Quantity, adj)
		totals[i] = it.TotalPrice
	}
	o.SubtotalAmount, o.TotalAmount = pricing.OrderTotals(totals, o.ShippingFee)
}

// checkTotals rejects totals the amount columns cannot hold.
func (o *Order) checkTotals() error {
	for _, it := range o.Items {
		if err := validateMoney("total_price of item "+it.ID, it.TotalPrice); err != nil {
			return err
		}
	}
	if err := validateMoney("subtotal_amount", o.SubtotalAmount); err != nil {
		return err
	}
	return validateMoney("total_amount", o.TotalAmount)
}

func (o *Order) ensureMutable() error {
	if o.Status.Terminal() {
		return apperr.InvalidStatus("order %s is %s and can no longer be edited", o.OrderNumber, o.Status)
	}
	return nil
}

func (o *Order) item(id string) (*Item, error) {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i], nil
		}
	}
	return nil, apperr.NotFound("item %s not found in order %s", id, o.OrderNumber)
}

func (o *Order) addItem(it Item) {
	it.OrderID = o.ID
	o.Items = append(o.Items, it)
}

func (o *Order) updateItem(id string, upd ItemUpdate) error {
	it, err := o.item(id)
	if err != nil {
		return err
	}
	if upd.Quantity != nil {
		if err := validateQuantity(*upd.Quantity); err != nil {
			return err
		}
		it.Quantity = *upd.Quantity
	}
	if upd.Note != nil {
		it.Note = *upd.Note
	}
	return nil
}

func (o *Order) removeItem(id string) error {
	if _, err := o.item(id); err != nil {
		return err
	}
	if len(o.Items) == 1 {
		return apperr.Validation("order %s must keep at least one item", o.OrderNumber)
	}
	kept := o.Items[:0]
	for _, it := range o.Items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	o.Items = kept
	return nil
}

func (o *Order) addVariant(itemID string, in VariantInput) (ItemVariant, error) {
	if err := validateVariant(in); err != nil {
		return ItemVariant{}, err
	}
	it, err := o.item(itemID)
	if err != nil {
		return ItemVariant{}, err
	}
	for _, v := range it.Variants {
		if v.Name == in.Name {
			return ItemVariant{}, apperr.Conflict("item %s already has variant %q", itemID, in.Name)
		}
	}
	v := ItemVariant{
		ID:              newID(),
		OrderItemID:     it.ID,
		Name:            in.Name,
		Value:           in.Value,
		PriceAdjustment: in.PriceAdjustment,
	}
	it.Variants = append(it.Variants, v)
	return v, nil
}

func (o *Order) removeVariant(itemID, variantID string) error {
	it, err := o.item(itemID)
	if err != nil {
		return err
	}
	for i, v := range it.Variants {
		if v.ID == variantID {
			it.Variants = append(it.Variants[:i], it.Variants[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("variant %s not found on item %s", variantID, itemID)
}

// clone deep-copies the parts of o that mutations touch.
func (o *Order) clone() *Order {
	c := *o
	c.Items = make([]Item, len(o.Items))
	for i, it := range o.Items {
		it.Variants = append([]ItemVariant(nil), it.Variants...)
		c.Items[i] = it
	}
	c.Customizations = append([]Customization(nil), o.Customizations...)
	return &c
}
