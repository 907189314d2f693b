package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
	"github.com/ariefcatur/go-custom-orders/internal/audit"
	"github.com/ariefcatur/go-custom-orders/internal/inventory"
	"github.com/ariefcatur/go-custom-orders/internal/postgres/pgtest"
)

func setupLedger(t *testing.T) (*pgxpool.Pool, *inventory.Ledger, context.Context) {
	t.Helper()
	pool := pgtest.Open(t)
	return pool, inventory.NewLedger(pool, nil, nil), context.Background()
}

func seedStock(t *testing.T, ctx context.Context, l *inventory.Ledger, productID int64, variantID *int64, current, reserved int) inventory.Inventory {
	t.Helper()
	inv, err := l.Adjust(ctx, inventory.AdjustInput{
		ProductID: productID, VariantID: variantID, NewCurrent: current, NewReserved: reserved,
		Note: "seed", ActorID: "tester",
	})
	require.NoError(t, err)
	return inv
}

func line(productID int64, qty int) inventory.Line {
	return inventory.Line{ProductID: productID, Quantity: qty}
}

func TestLedger_ReserveCompleteScenario(t *testing.T) {
	_, l, ctx := setupLedger(t)
	seedStock(t, ctx, l, 1, nil, 10, 3)

	res, err := l.Reserve(ctx, []inventory.Line{line(1, 5)}, inventory.Op{ActorID: "u1", Reference: "SL2603010001"})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, 8, res.Lines[0].ReservedStock)

	_, err = l.Reserve(ctx, []inventory.Line{line(1, 3)}, inventory.Op{ActorID: "u1"})
	var se *inventory.StockError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, apperr.KindInsufficientStock, se.Kind)
	assert.Equal(t, int64(1), se.ProductID)
	assert.Equal(t, 3, se.Requested)
	assert.Equal(t, 2, se.Available)

	res, err = l.Complete(ctx, []inventory.Line{line(1, 4)}, inventory.Op{ActorID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Lines[0].CurrentStock)
	assert.Equal(t, 4, res.Lines[0].ReservedStock)

	inv, err := l.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, inv.CurrentStock)
	assert.Equal(t, 4, inv.ReservedStock)

	hist, err := l.History(ctx, inv.ID, 10)
	require.NoError(t, err)
	require.Len(t, hist, 3, "adjust, reserve, complete; the failed reserve leaves no trace")
	actions := map[audit.Action]audit.InventoryEntry{}
	for _, h := range hist {
		actions[h.Action] = h
	}
	reserved := actions[audit.ActionOrderReserved]
	assert.Equal(t, 3, reserved.PreviousReserved)
	assert.Equal(t, 8, reserved.NewReserved)
	assert.Equal(t, "SL2603010001", reserved.Reference)
	assert.Contains(t, actions, audit.ActionOrderCompleted)
	assert.Contains(t, actions, audit.ActionManualAdjustment)
}

func TestLedger_NoOversellUnderConcurrency(t *testing.T) {
	_, l, ctx := setupLedger(t)
	seedStock(t, ctx, l, 1, nil, 5, 0)

	const workers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
		rejected int
		other    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			_, err := l.Reserve(ctx, []inventory.Line{line(1, qty)}, inventory.Op{ActorID: "load"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				reserved += qty
			case apperr.Is(err, apperr.KindInsufficientStock):
				rejected++
			default:
				other = append(other, err)
			}
		}(1 + i%2)
	}
	wg.Wait()

	require.Empty(t, other)
	assert.LessOrEqual(t, reserved, 5)
	assert.Positive(t, rejected)

	inv, err := l.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, reserved, inv.ReservedStock)
	assert.LessOrEqual(t, inv.ReservedStock, inv.CurrentStock)
}

func TestLedger_BatchIsAllOrNothing(t *testing.T) {
	_, l, ctx := setupLedger(t)
	seedStock(t, ctx, l, 1, nil, 10, 0)
	seedStock(t, ctx, l, 2, nil, 1, 0)

	_, err := l.Reserve(ctx, []inventory.Line{line(1, 4), line(2, 2)}, inventory.Op{ActorID: "u1"})
	require.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))

	inv, err := l.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, inv.ReservedStock, "the line that passed must be rolled back")

	hist, err := l.History(ctx, inv.ID, 10)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestLedger_RoundTrips(t *testing.T) {
	_, l, ctx := setupLedger(t)
	seedStock(t, ctx, l, 2, nil, 9, 1)
	lines := []inventory.Line{line(2, 3)}
	op := inventory.Op{ActorID: "u1"}

	_, err := l.Reserve(ctx, lines, op)
	require.NoError(t, err)
	_, err = l.Cancel(ctx, lines, op)
	require.NoError(t, err)
	inv, err := l.Get(ctx, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 9, inv.CurrentStock)
	assert.Equal(t, 1, inv.ReservedStock)

	_, err = l.Reserve(ctx, lines, op)
	require.NoError(t, err)
	_, err = l.Complete(ctx, lines, op)
	require.NoError(t, err)
	inv, err = l.Get(ctx, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, inv.CurrentStock)
	assert.Equal(t, 1, inv.ReservedStock)
}

func TestLedger_CancelWithoutReservation(t *testing.T) {
	_, l, ctx := setupLedger(t)
	seedStock(t, ctx, l, 1, nil, 4, 1)

	_, err := l.Cancel(ctx, []inventory.Line{line(1, 2)}, inventory.Op{})
	var se *inventory.StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, apperr.KindInsufficientReservation, se.Kind)
	assert.Equal(t, 1, se.Reserved)
}

func TestLedger_MissingRowIsNotFound(t *testing.T) {
	_, l, ctx := setupLedger(t)

	_, err := l.Reserve(ctx, []inventory.Line{line(3, 1)}, inventory.Op{})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = l.Get(ctx, 3, nil)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestLedger_VariantRowsAreDistinct(t *testing.T) {
	_, l, ctx := setupLedger(t)
	large := int64(1)

	_, err := l.Import(ctx, []inventory.Line{line(1, 5), {ProductID: 1, VariantID: &large, Quantity: 2}}, inventory.Op{ActorID: "u1"})
	require.NoError(t, err)
	_, err = l.Import(ctx, []inventory.Line{line(1, 1)}, inventory.Op{ActorID: "u1"})
	require.NoError(t, err)

	base, err := l.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, base.CurrentStock)

	v, err := l.Get(ctx, 1, &large)
	require.NoError(t, err)
	assert.Equal(t, 2, v.CurrentStock)
	assert.NotEqual(t, base.ID, v.ID)
}

func TestLedger_ImportUnknownProduct(t *testing.T) {
	_, l, ctx := setupLedger(t)
	_, err := l.Import(ctx, []inventory.Line{line(404, 1)}, inventory.Op{})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestLedger_ExportRespectsReservations(t *testing.T) {
	_, l, ctx := setupLedger(t)
	seedStock(t, ctx, l, 1, nil, 5, 4)

	_, err := l.Export(ctx, []inventory.Line{line(1, 2)}, inventory.Op{})
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))

	res, err := l.Export(ctx, []inventory.Line{line(1, 1)}, inventory.Op{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Lines[0].CurrentStock)
}

func TestLedger_AdjustRejectsBrokenCounters(t *testing.T) {
	_, l, ctx := setupLedger(t)
	_, err := l.Adjust(ctx, inventory.AdjustInput{ProductID: 1, NewCurrent: 2, NewReserved: 3})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = l.Get(ctx, 1, nil)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err), "lazily created row must roll back too")
}

func TestLedger_CheckAvailability(t *testing.T) {
	_, l, ctx := setupLedger(t)
	seedStock(t, ctx, l, 1, nil, 10, 8)

	rep, err := l.CheckAvailability(ctx, []inventory.Line{line(1, 2)})
	require.NoError(t, err)
	assert.True(t, rep.Available)
	assert.Empty(t, rep.UnavailableItems)

	rep, err = l.CheckAvailability(ctx, []inventory.Line{line(1, 3), line(2, 1)})
	require.NoError(t, err)
	assert.False(t, rep.Available)
	require.Len(t, rep.UnavailableItems, 2)
	assert.Equal(t, inventory.ReasonInsufficientStock, rep.UnavailableItems[0].Reason)
	assert.Equal(t, 2, rep.UnavailableItems[0].Available)
	assert.Equal(t, inventory.ReasonNotFound, rep.UnavailableItems[1].Reason)

	inv, err := l.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, inv.ReservedStock, "check must not mutate")
}

// Opposite line orders would deadlock without the fixed lock order.
func TestLedger_OverlappingBatchesDoNotDeadlock(t *testing.T) {
	_, l, ctx := setupLedger(t)
	seedStock(t, ctx, l, 1, nil, 1000, 0)
	seedStock(t, ctx, l, 2, nil, 1000, 0)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := l.Reserve(ctx, []inventory.Line{line(1, 1), line(2, 1)}, inventory.Op{})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := l.Reserve(ctx, []inventory.Line{line(2, 1), line(1, 1)}, inventory.Op{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, p := range []int64{1, 2} {
		inv, err := l.Get(ctx, p, nil)
		require.NoError(t, err)
		assert.Equal(t, 40, inv.ReservedStock)
	}
}
