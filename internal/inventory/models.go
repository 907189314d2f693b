package inventory

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
)

// Line is one requested stock movement for a (product, variant) pair.
type Line struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Inventory is one ledger row.
type Inventory struct {
	ID            string    `json:"id"`
	ProductID     int64     `json:"product_id"`
	VariantID     *int64    `json:"variant_id,omitempty"`
	CurrentStock  int       `json:"current_stock"`
	ReservedStock int       `json:"reserved_stock"`
	MinStockAlert int       `json:"min_stock_alert"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

func (i *Inventory) Available() int { return i.CurrentStock - i.ReservedStock }

func (i *Inventory) IsLowStock() bool {
	return i.MinStockAlert > 0 && i.Available() <= i.MinStockAlert
}

type LineResult struct {
	InventoryID    string `json:"inventory_id"`
	ProductID      int64  `json:"product_id"`
	VariantID      *int64 `json:"variant_id,omitempty"`
	Quantity       int    `json:"quantity"`
	CurrentStock   int    `json:"current_stock"`
	ReservedStock  int    `json:"reserved_stock"`
	AvailableStock int    `json:"available_stock"`
	MinStockAlert  int    `json:"min_stock_alert"`
}

type Shortfall struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Reason    string `json:"reason"`
}

const (
	ReasonNotFound          = "not_found"
	ReasonInsufficientStock = "insufficient_stock"
)

type AvailabilityReport struct {
	Available        bool        `json:"available"`
	UnavailableItems []Shortfall `json:"unavailableItems"`
}

// StockError reports which line broke a business rule inside the locked transaction.
// For insufficient_reservation, Reserved holds the units currently reserved.
type StockError struct {
	Kind      apperr.Kind `json:"-"`
	ProductID int64       `json:"product_id"`
	VariantID *int64      `json:"variant_id,omitempty"`
	Requested int         `json:"requested"`
	Available int         `json:"available"`
	Reserved  int         `json:"reserved"`
}

func (e *StockError) ErrKind() apperr.Kind { return e.Kind }

func (e *StockError) Error() string {
	if e.Kind == apperr.KindInsufficientReservation {
		return fmt.Sprintf("insufficient reservation for %s: requested %d, reserved %d",
			describe(e.ProductID, e.VariantID), e.Requested, e.Reserved)
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		describe(e.ProductID, e.VariantID), e.Requested, e.Available)
}

func describe(productID int64, variantID *int64) string {
	if variantID == nil {
		return fmt.Sprintf("product %d", productID)
	}
	return fmt.Sprintf("product %d variant %d", productID, *variantID)
}

func resultOf(inv *Inventory, qty int) LineResult {
	return LineResult{
		InventoryID:    inv.ID,
		ProductID:      inv.ProductID,
		VariantID:      inv.VariantID,
		Quantity:       qty,
		CurrentStock:   inv.CurrentStock,
		ReservedStock:  inv.ReservedStock,
		AvailableStock: inv.Available(),
		MinStockAlert:  inv.MinStockAlert,
	}
}
