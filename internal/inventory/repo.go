package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
	"github.com/ariefcatur/go-custom-orders/internal/postgres"
)

const inventoryColumns = `id, product_id, variant_id, current_stock, reserved_stock, min_stock_alert, last_updated_at`

func scanInventory(row pgx.Row) (*Inventory, error) {
	var inv Inventory
	if err := row.Scan(&inv.ID, &inv.ProductID, &inv.VariantID, &inv.CurrentStock,
		&inv.ReservedStock, &inv.MinStockAlert, &inv.LastUpdatedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

// byKeyQuery avoids IS NOT DISTINCT FROM so the unique index stays usable.
func byKeyQuery(suffix string, productID int64, variantID *int64) (string, []any) {
	if variantID == nil {
		return `SELECT ` + inventoryColumns + ` FROM inventory WHERE product_id = $1 AND variant_id IS NULL` + suffix,
			[]any{productID}
	}
	return `SELECT ` + inventoryColumns + ` FROM inventory WHERE product_id = $1 AND variant_id = $2` + suffix,
		[]any{productID, *variantID}
}

// lockRow takes the row-level lock for the rest of the transaction.
// Returns pgx.ErrNoRows when the ledger row does not exist.
func lockRow(ctx context.Context, tx pgx.Tx, productID int64, variantID *int64) (*Inventory, error) {
	q, args := byKeyQuery(" FOR UPDATE", productID, variantID)
	return scanInventory(tx.QueryRow(ctx, q, args...))
}

func findRow(ctx context.Context, q postgres.Querier, productID int64, variantID *int64) (*Inventory, error) {
	sql, args := byKeyQuery("", productID, variantID)
	return scanInventory(q.QueryRow(ctx, sql, args...))
}

// lockOrCreateRow lazily creates the ledger row on first stock assignment, then locks it.
// A concurrent creator blocks on the unique index until it commits, so both end up locking one row.
func lockOrCreateRow(ctx context.Context, tx pgx.Tx, productID int64, variantID *int64, now time.Time) (*Inventory, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO inventory (id, product_id, variant_id, current_stock, reserved_stock, min_stock_alert, last_updated_at)
		VALUES ($1, $2, $3, 0, 0, 0, $4)
		ON CONFLICT ON CONSTRAINT inventory_product_variant_key DO NOTHING`,
		uuid.NewString(), productID, variantID, now)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return nil, apperr.NotFound("%s not found in catalog", describe(productID, variantID))
		}
		return nil, fmt.Errorf("create inventory row: %w", err)
	}
	inv, err := lockRow(ctx, tx, productID, variantID)
	if err != nil {
		return nil, fmt.Errorf("lock inventory row: %w", err)
	}
	return inv, nil
}

func updateRow(ctx context.Context, tx pgx.Tx, inv *Inventory) error {
	ct, err := tx.Exec(ctx, `
		UPDATE inventory
		SET current_stock = $2, reserved_stock = $3, min_stock_alert = $4, last_updated_at = $5
		WHERE id = $1`,
		inv.ID, inv.CurrentStock, inv.ReservedStock, inv.MinStockAlert, inv.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("update inventory %s: %w", inv.ID, err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("update inventory %s: %d rows affected", inv.ID, ct.RowsAffected())
	}
	return nil
}

func notFound(productID int64, variantID *int64) error {
	return apperr.NotFound("inventory for %s not found", describe(productID, variantID))
}

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
