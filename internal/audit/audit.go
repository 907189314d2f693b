// Package audit appends write-once history rows inside the caller's transaction.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-custom-orders/internal/postgres"
)

// Action is the closed set of inventory_history.action_type values.
type Action string

const (
	ActionOrderReserved    Action = "order_reserved"
	ActionOrderCompleted   Action = "order_completed"
	ActionOrderCancelled   Action = "order_cancelled"
	ActionManualAdjustment Action = "manual_adjustment"
	ActionInventoryImport  Action = "inventory_import"
	ActionInventoryExport  Action = "inventory_export"
)

var validActions = map[Action]struct{}{
	ActionOrderReserved:    {},
	ActionOrderCompleted:   {},
	ActionOrderCancelled:   {},
	ActionManualAdjustment: {},
	ActionInventoryImport:  {},
	ActionInventoryExport:  {},
}

func ParseAction(s string) (Action, bool) {
	a := Action(s)
	_, ok := validActions[a]
	return a, ok
}

type InventoryEntry struct {
	ID               string    `json:"id"`
	InventoryID      string    `json:"inventory_id"`
	Action           Action    `json:"action_type"`
	Quantity         int       `json:"quantity"`
	PreviousStock    int       `json:"previous_stock"`
	NewStock         int       `json:"new_stock"`
	PreviousReserved int       `json:"previous_reserved"`
	NewReserved      int       `json:"new_reserved"`
	Reference        string    `json:"reference,omitempty"`
	Note             string    `json:"note,omitempty"`
	ActorID          string    `json:"actor_id"`
	CreatedAt        time.Time `json:"created_at"`
}

type OrderEntry struct {
	ID        string         `json:"id"`
	OrderID   string         `json:"order_id"`
	Action    string         `json:"action"`
	Detail    map[string]any `json:"detail,omitempty"`
	ActorID   string         `json:"actor_id"`
	CreatedAt time.Time      `json:"created_at"`
}

type Recorder struct{}

func (Recorder) Inventory(ctx context.Context, q postgres.Querier, e InventoryEntry) error {
	if _, ok := validActions[e.Action]; !ok {
		return fmt.Errorf("unknown inventory action %q", e.Action)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO inventory_history (id, inventory_id, action_type, quantity,
			previous_stock, new_stock, previous_reserved, new_reserved,
			reference, note, actor_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.InventoryID, string(e.Action), e.Quantity,
		e.PreviousStock, e.NewStock, e.PreviousReserved, e.NewReserved,
		e.Reference, e.Note, e.ActorID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert inventory history: %w", err)
	}
	return nil
}

func (Recorder) Order(ctx context.Context, q postgres.Querier, e OrderEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	detail := []byte("{}")
	if len(e.Detail) > 0 {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("encode order history detail: %w", err)
		}
		detail = b
	}
	_, err := q.Exec(ctx, `
		INSERT INTO order_history (id, order_id, action, detail, actor_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.OrderID, e.Action, detail, e.ActorID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order history: %w", err)
	}
	return nil
}

func (Recorder) InventoryHistory(ctx context.Context, q postgres.Querier, inventoryID string, limit int) ([]InventoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := q.Query(ctx, `
		SELECT id, inventory_id, action_type, quantity, previous_stock, new_stock,
		       previous_reserved, new_reserved, reference, note, actor_id, created_at
		FROM inventory_history
		WHERE inventory_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, inventoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("query inventory history: %w", err)
	}
	defer rows.Close()

	var out []InventoryEntry
	for rows.Next() {
		var e InventoryEntry
		var action string
		if err := rows.Scan(&e.ID, &e.InventoryID, &action, &e.Quantity, &e.PreviousStock, &e.NewStock,
			&e.PreviousReserved, &e.NewReserved, &e.Reference, &e.Note, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory history: %w", err)
		}
		e.Action = Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
