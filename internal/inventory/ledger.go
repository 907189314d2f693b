// Package inventory is the stock ledger: per-(product, variant) counters that change only
// through Reserve, Complete, Cancel, Import, Export and Adjust, each batch all-or-nothing
// under row locks and each line recorded in inventory_history.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
	"github.com/ariefcatur/go-custom-orders/internal/audit"
	"github.com/ariefcatur/go-custom-orders/internal/events"
	"github.com/ariefcatur/go-custom-orders/internal/logx"
	"github.com/ariefcatur/go-custom-orders/internal/postgres"
)

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	postgres.TxBeginner
	postgres.Querier
}

// Op carries audit context for one batch.
type Op struct {
	ActorID   string
	Reference string // e.g. an order number
	Note      string
}

type BatchResult struct {
	Action audit.Action `json:"action"`
	Lines  []LineResult `json:"items"`
}

type AdjustInput struct {
	ProductID     int64
	VariantID     *int64
	NewCurrent    int
	NewReserved   int
	MinStockAlert *int
	Note          string
	ActorID       string
}

type Ledger struct {
	DB     DB
	Audit  audit.Recorder
	Events *events.Emitter
	Log    *zap.Logger
	Now    func() time.Time
}

func NewLedger(db DB, em *events.Emitter, log *zap.Logger) *Ledger {
	return &Ledger{DB: db, Events: em, Log: logx.OrNop(log)}
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *Ledger) logger() *zap.Logger { return logx.OrNop(l.Log) }

type mutation struct {
	action        audit.Action
	createMissing bool
	apply         func(inv *Inventory, qty int) error
}

var (
	mutReserve  = mutation{action: audit.ActionOrderReserved, apply: (*Inventory).reserve}
	mutComplete = mutation{action: audit.ActionOrderCompleted, apply: (*Inventory).complete}
	mutCancel   = mutation{action: audit.ActionOrderCancelled, apply: (*Inventory).release}
	mutImport   = mutation{action: audit.ActionInventoryImport, createMissing: true, apply: (*Inventory).receive}
	mutExport   = mutation{action: audit.ActionInventoryExport, apply: (*Inventory).issue}
)

// applyBatch locks each row in lock order, applies m, persists and audits.
// The first failing line aborts the batch; the caller's rollback discards earlier lines.
func (l *Ledger) applyBatch(ctx context.Context, tx pgx.Tx, lines []Line, op Op, m mutation) (BatchResult, error) {
	norm, err := normalize(lines)
	if err != nil {
		return BatchResult{}, err
	}
	now := l.now()
	res := BatchResult{Action: m.action, Lines: make([]LineResult, 0, len(norm))}

	for _, ln := range norm {
		var inv *Inventory
		if m.createMissing {
			inv, err = lockOrCreateRow(ctx, tx, ln.ProductID, ln.VariantID, now)
		} else {
			inv, err = lockRow(ctx, tx, ln.ProductID, ln.VariantID)
			if isNoRows(err) {
				return BatchResult{}, notFound(ln.ProductID, ln.VariantID)
			}
		}
		if err != nil {
			return BatchResult{}, fmt.Errorf("lock inventory for %s: %w", describe(ln.ProductID, ln.VariantID), err)
		}

		before := *inv
		if err := m.apply(inv, ln.Quantity); err != nil {
			return BatchResult{}, err
		}
		inv.LastUpdatedAt = now
		if err := updateRow(ctx, tx, inv); err != nil {
			return BatchResult{}, err
		}
		if err := l.Audit.Inventory(ctx, tx, audit.InventoryEntry{
			InventoryID:      inv.ID,
			Action:           m.action,
			Quantity:         ln.Quantity,
			PreviousStock:    before.CurrentStock,
			NewStock:         inv.CurrentStock,
			PreviousReserved: before.ReservedStock,
			NewReserved:      inv.ReservedStock,
			Reference:        op.Reference,
			Note:             op.Note,
			ActorID:          op.ActorID,
			CreatedAt:        now,
		}); err != nil {
			return BatchResult{}, err
		}
		res.Lines = append(res.Lines, resultOf(inv, ln.Quantity))
	}
	return res, nil
}

func (l *Ledger) runBatch(ctx context.Context, lines []Line, op Op, m mutation) (BatchResult, error) {
	var res BatchResult
	err := postgres.WithinTx(ctx, l.DB, func(tx pgx.Tx) error {
		var err error
		res, err = l.applyBatch(ctx, tx, lines, op, m)
		return err
	})
	if err != nil {
		if apperr.KindOf(err) == "" {
			l.logger().Error("stock batch failed", zap.String("action", string(m.action)), zap.Error(err))
		}
		return BatchResult{}, err
	}
	l.publish(ctx, res, op)
	return res, nil
}

// ReserveTx increments reserved_stock for every line inside the caller's transaction.
// Fails with InsufficientStock when current_stock - reserved_stock < quantity.
func (l *Ledger) ReserveTx(ctx context.Context, tx pgx.Tx, lines []Line, op Op) (BatchResult, error) {
	return l.applyBatch(ctx, tx, lines, op, mutReserve)
}

func (l *Ledger) Reserve(ctx context.Context, lines []Line, op Op) (BatchResult, error) {
	return l.runBatch(ctx, lines, op, mutReserve)
}

// CompleteTx deducts reserved units from both counters. Fails with InsufficientReservation.
func (l *Ledger) CompleteTx(ctx context.Context, tx pgx.Tx, lines []Line, op Op) (BatchResult, error) {
	return l.applyBatch(ctx, tx, lines, op, mutComplete)
}

func (l *Ledger) Complete(ctx context.Context, lines []Line, op Op) (BatchResult, error) {
	return l.runBatch(ctx, lines, op, mutComplete)
}

// CancelTx returns reserved units to availability. Fails with InsufficientReservation.
func (l *Ledger) CancelTx(ctx context.Context, tx pgx.Tx, lines []Line, op Op) (BatchResult, error) {
	return l.applyBatch(ctx, tx, lines, op, mutCancel)
}

func (l *Ledger) Cancel(ctx context.Context, lines []Line, op Op) (BatchResult, error) {
	return l.runBatch(ctx, lines, op, mutCancel)
}

// Import records a goods receipt, creating ledger rows on first use.
func (l *Ledger) Import(ctx context.Context, lines []Line, op Op) (BatchResult, error) {
	return l.runBatch(ctx, lines, op, mutImport)
}

// Export removes unreserved units from physical stock.
func (l *Ledger) Export(ctx context.Context, lines []Line, op Op) (BatchResult, error) {
	return l.runBatch(ctx, lines, op, mutExport)
}

// AdjustTx overwrites both counters after a stock count, creating the row if needed.
// Always logged as manual_adjustment.
func (l *Ledger) AdjustTx(ctx context.Context, tx pgx.Tx, in AdjustInput) (Inventory, error) {
	if in.ProductID <= 0 {
		return Inventory{}, apperr.Validation("product_id is required")
	}
	if in.VariantID != nil && *in.VariantID <= 0 {
		return Inventory{}, apperr.Validation("variant_id must be positive")
	}
	if in.MinStockAlert != nil && (*in.MinStockAlert < 0 || *in.MinStockAlert > MaxQuantity) {
		return Inventory{}, apperr.Validation("min_stock_alert must be between 0 and %d", MaxQuantity)
	}
	now := l.now()
	inv, err := lockOrCreateRow(ctx, tx, in.ProductID, in.VariantID, now)
	if err != nil {
		return Inventory{}, err
	}
	before := *inv
	if err := inv.set(in.NewCurrent, in.NewReserved); err != nil {
		return Inventory{}, err
	}
	if in.MinStockAlert != nil {
		inv.MinStockAlert = *in.MinStockAlert
	}
	inv.LastUpdatedAt = now
	if err := updateRow(ctx, tx, inv); err != nil {
		return Inventory{}, err
	}
	err = l.Audit.Inventory(ctx, tx, audit.InventoryEntry{
		InventoryID:      inv.ID,
		Action:           audit.ActionManualAdjustment,
		Quantity:         inv.CurrentStock - before.CurrentStock,
		PreviousStock:    before.CurrentStock,
		NewStock:         inv.CurrentStock,
		PreviousReserved: before.ReservedStock,
		NewReserved:      inv.ReservedStock,
		Note:             in.Note,
		ActorID:          in.ActorID,
		CreatedAt:        now,
	})
	if err != nil {
		return Inventory{}, err
	}
	return *inv, nil
}

func (l *Ledger) Adjust(ctx context.Context, in AdjustInput) (Inventory, error) {
	var inv Inventory
	err := postgres.WithinTx(ctx, l.DB, func(tx pgx.Tx) error {
		var err error
		inv, err = l.AdjustTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return Inventory{}, err
	}
	l.publish(ctx, BatchResult{
		Action: audit.ActionManualAdjustment,
		Lines:  []LineResult{resultOf(&inv, 0)},
	}, Op{ActorID: in.ActorID, Note: in.Note})
	return inv, nil
}

// CheckAvailability reads without locking. The answer can be stale by the time Reserve
// runs; Reserve re-checks under the row lock.
func (l *Ledger) CheckAvailability(ctx context.Context, lines []Line) (AvailabilityReport, error) {
	norm, err := normalize(lines)
	if err != nil {
		return AvailabilityReport{}, err
	}
	rep := AvailabilityReport{Available: true, UnavailableItems: []Shortfall{}}
	for _, ln := range norm {
		inv, err := findRow(ctx, l.DB, ln.ProductID, ln.VariantID)
		switch {
		case isNoRows(err):
			rep.UnavailableItems = append(rep.UnavailableItems, Shortfall{
				ProductID: ln.ProductID, VariantID: ln.VariantID, Requested: ln.Quantity, Reason: ReasonNotFound,
			})
		case err != nil:
			return AvailabilityReport{}, fmt.Errorf("read inventory for %s: %w", describe(ln.ProductID, ln.VariantID), err)
		case inv.Available() < ln.Quantity:
			rep.UnavailableItems = append(rep.UnavailableItems, Shortfall{
				ProductID: ln.ProductID, VariantID: ln.VariantID, Requested: ln.Quantity,
				Available: inv.Available(), Reason: ReasonInsufficientStock,
			})
		}
	}
	rep.Available = len(rep.UnavailableItems) == 0
	return rep, nil
}

func (l *Ledger) Get(ctx context.Context, productID int64, variantID *int64) (Inventory, error) {
	inv, err := findRow(ctx, l.DB, productID, variantID)
	if isNoRows(err) {
		return Inventory{}, notFound(productID, variantID)
	}
	if err != nil {
		return Inventory{}, fmt.Errorf("read inventory: %w", err)
	}
	return *inv, nil
}

func (l *Ledger) History(ctx context.Context, inventoryID string, limit int) ([]audit.InventoryEntry, error) {
	return l.Audit.InventoryHistory(ctx, l.DB, inventoryID, limit)
}

// publish runs after commit; delivery problems never undo a committed batch.
func (l *Ledger) publish(ctx context.Context, res BatchResult, op Op) {
	payload := events.InventoryChangedPayload{Action: string(res.Action), Reference: op.Reference}
	for _, ln := range res.Lines {
		payload.Lines = append(payload.Lines, events.StockLine{
			InventoryID: ln.InventoryID, ProductID: ln.ProductID, VariantID: ln.VariantID,
			Quantity: ln.Quantity, Current: ln.CurrentStock, Reserved: ln.ReservedStock,
		})
	}
	correlation := op.Reference
	if correlation == "" && len(res.Lines) > 0 {
		correlation = res.Lines[0].InventoryID
	}
	if err := l.Events.Emit(ctx, events.TopicInventoryChanged, events.EventInventoryChanged, correlation, payload); err != nil {
		l.logger().Warn("emit inventory changed", zap.Error(err))
	}
	l.alertLowStock(ctx, res)
}

func (l *Ledger) alertLowStock(ctx context.Context, res BatchResult) {
	if res.Action == audit.ActionOrderCancelled || res.Action == audit.ActionInventoryImport {
		return
	}
	for _, ln := range res.Lines {
		if ln.MinStockAlert <= 0 || ln.AvailableStock > ln.MinStockAlert {
			continue
		}
		l.logger().Info("low stock",
			zap.Int64("product_id", ln.ProductID), zap.Int("available", ln.AvailableStock),
			zap.Int("min_stock_alert", ln.MinStockAlert))
		err := l.Events.Emit(ctx, events.TopicInventoryLowStock, events.EventLowStock, ln.InventoryID, events.LowStockPayload{
			InventoryID: ln.InventoryID, ProductID: ln.ProductID, VariantID: ln.VariantID,
			Available: ln.AvailableStock, MinStockAlert: ln.MinStockAlert,
		})
		if err != nil {
			l.logger().Warn("emit low stock", zap.Error(err))
		}
	}
}
