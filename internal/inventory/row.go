package inventory

import "github.com/ariefcatur/go-custom-orders/internal/apperr"

// Row mutations work on a locked, in-memory copy; the ledger persists the result.

func (i *Inventory) insufficientStock(q int) *StockError {
	return &StockError{
		Kind: apperr.KindInsufficientStock, ProductID: i.ProductID, VariantID: i.VariantID,
		Requested: q, Available: i.Available(), Reserved: i.ReservedStock,
	}
}

func (i *Inventory) insufficientReservation(q int) *StockError {
	return &StockError{
		Kind: apperr.KindInsufficientReservation, ProductID: i.ProductID, VariantID: i.VariantID,
		Requested: q, Available: i.Available(), Reserved: i.ReservedStock,
	}
}

func (i *Inventory) reserve(q int) error {
	if i.Available() < q {
		return i.insufficientStock(q)
	}
	i.ReservedStock += q
	return nil
}

// complete turns a reservation into a physical deduction.
func (i *Inventory) complete(q int) error {
	if i.ReservedStock < q {
		return i.insufficientReservation(q)
	}
	i.CurrentStock -= q
	i.ReservedStock -= q
	return nil
}

// release returns reserved units to availability.
func (i *Inventory) release(q int) error {
	if i.ReservedStock < q {
		return i.insufficientReservation(q)
	}
	i.ReservedStock -= q
	return nil
}

func (i *Inventory) receive(q int) error {
	if i.CurrentStock > MaxQuantity-q {
		return apperr.Validation("current_stock would exceed %d", MaxQuantity)
	}
	i.CurrentStock += q
	return nil
}

// issue removes unreserved units from physical stock.
func (i *Inventory) issue(q int) error {
	if i.Available() < q {
		return i.insufficientStock(q)
	}
	i.CurrentStock -= q
	return nil
}

func (i *Inventory) set(current, reserved int) error {
	if current < 0 || reserved < 0 {
		return apperr.Validation("stock counters must not be negative")
	}
	if reserved > current {
		return apperr.Validation("reserved_stock %d exceeds current_stock %d", reserved, current)
	}
	if current > MaxQuantity {
		return apperr.Validation("current_stock must not exceed %d", MaxQuantity)
	}
	i.CurrentStock = current
	i.ReservedStock = reserved
	return nil
}
