package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderUpdated       = "OrderUpdated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventInventoryChanged   = "InventoryChanged"
	EventLowStock           = "LowStock"
)

const (
	TopicOrderCreated       = "order.created"
	TopicOrderUpdated       = "order.updated"
	TopicOrderStatusChanged = "order.status.changed"
	TopicInventoryChanged   = "inventory.changed"
	TopicInventoryLowStock  = "inventory.low_stock"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id or inventory_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	ItemCount   int    `json:"item_count"`
	TotalAmount string `json:"total_amount"`
}

type OrderUpdatedPayload struct {
	OrderID        string `json:"order_id"`
	Change         string `json:"change"`
	SubtotalAmount string `json:"subtotal_amount"`
	TotalAmount    string `json:"total_amount"`
}

type OrderStatusChangedPayload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	From        string `json:"from"`
	To          string `json:"to"`
}

type StockLine struct {
	InventoryID string `json:"inventory_id"`
	ProductID   int64  `json:"product_id"`
	VariantID   *int64 `json:"variant_id,omitempty"`
	Quantity    int    `json:"quantity"`
	Current     int    `json:"current_stock"`
	Reserved    int    `json:"reserved_stock"`
}

type InventoryChangedPayload struct {
	Action    string      `json:"action"`
	Reference string      `json:"reference,omitempty"`
	Lines     []StockLine `json:"lines"`
}

type LowStockPayload struct {
	InventoryID   string `json:"inventory_id"`
	ProductID     int64  `json:"product_id"`
	VariantID     *int64 `json:"variant_id,omitempty"`
	Available     int    `json:"available"`
	MinStockAlert int    `json:"min_stock_alert"`
}

// Sink delivers encoded events. kafka.Producer implements it.
type Sink interface {
	Publish(topic string, key, value []byte, headers map[string]string)
}

type traceKey struct{}

// WithTrace attaches the request id that Emit copies into TraceID.
func WithTrace(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// Emitter wraps payloads into versioned envelopes. A nil *Emitter drops events.
type Emitter struct {
	Sink     Sink
	Producer string
	Now      func() time.Time
}

func (e *Emitter) Emit(ctx context.Context, topic, eventType, correlationID string, payload any) error {
	if e == nil || e.Sink == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	trace, _ := ctx.Value(traceKey{}).(string)
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    now().UTC(),
		Producer:      e.Producer,
		TraceID:       trace,
		CorrelationID: correlationID,
		Payload:       body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	// Partition key = correlation id so that events of one order stay ordered.
	e.Sink.Publish(topic, []byte(correlationID), value, map[string]string{
		"x-event-type":    eventType,
		"x-event-version": "1",
	})
	return nil
}

// UnwrapPayload decodes the payload of an envelope into T.
func UnwrapPayload[T any](env Envelope) (T, error) {
	var t T
	err := json.Unmarshal(env.Payload, &t)
	return t, err
}
