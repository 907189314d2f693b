// Package orders builds and edits made-to-order orders. Every mutation locks the order row,
// edits the in-memory aggregate, recomputes totals from scratch and writes the difference
// in one transaction. Stock is not touched here; reservation is a separate ledger call.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
	"github.com/ariefcatur/go-custom-orders/internal/audit"
	"github.com/ariefcatur/go-custom-orders/internal/catalog"
	"github.com/ariefcatur/go-custom-orders/internal/events"
	"github.com/ariefcatur/go-custom-orders/internal/logx"
	"github.com/ariefcatur/go-custom-orders/internal/postgres"
)

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	postgres.TxBeginner
	postgres.Querier
}

// order_history actions
const (
	ActionCreated        = "created"
	ActionItemAdded      = "item_added"
	ActionItemUpdated    = "item_updated"
	ActionItemRemoved    = "item_removed"
	ActionVariantAdded   = "variant_added"
	ActionVariantRemoved = "variant_removed"
	ActionStatusChanged  = "status_changed"
	ActionShipmentBooked = "shipment_booked"
)

type Service struct {
	DB      DB
	Catalog catalog.Catalog
	Audit   audit.Recorder
	Events  *events.Emitter
	Numbers NumberGenerator
	Log     *zap.Logger
	Now     func() time.Time
}

func NewService(db DB, cat catalog.Catalog, em *events.Emitter, log *zap.Logger) *Service {
	return &Service{DB: db, Catalog: cat, Events: em, Log: logx.OrNop(log)}
}

// now is truncated to what timestamptz stores so returned values match a reload.
func (s *Service) now() time.Time {
	t := time.Now()
	if s.Now != nil {
		t = s.Now()
	}
	return t.UTC().Truncate(time.Microsecond)
}

func (s *Service) logger() *zap.Logger { return logx.OrNop(s.Log) }

func parseID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound("%s %s not found", kind, id)
	}
	return nil
}

// buildItem prices an item from the catalog; the client never supplies a unit price.
func (s *Service) buildItem(ctx context.Context, q postgres.Querier, orderID string, in ItemInput, now time.Time) (Item, error) {
	if err := validateItem(in); err != nil {
		return Item{}, err
	}
	line, err := catalog.Resolve(ctx, s.Catalog, q, in.ProductID, in.ProductVariantID, in.CollectionID)
	if err != nil {
		return Item{}, err
	}
	collection := in.CollectionID
	if collection == nil {
		collection = line.Product.CollectionID
	}
	it := Item{
		ID:               newID(),
		OrderID:          orderID,
		ProductID:        in.ProductID,
		ProductVariantID: in.ProductVariantID,
		CollectionID:     collection,
		ProductName:      line.Product.Name,
		ProductType:      line.Product.ProductType,
		Quantity:         in.Quantity,
		UnitPrice:        line.UnitPrice(),
		Note:             in.Note,
		CreatedAt:        now,
		Variants:         make([]ItemVariant, 0, len(in.Variants)),
	}
	for _, v := range in.Variants {
		it.Variants = append(it.Variants, ItemVariant{
			ID:              newID(),
			OrderItemID:     it.ID,
			Name:            v.Name,
			Value:           v.Value,
			PriceAdjustment: v.PriceAdjustment,
		})
	}
	return it, nil
}

// CreateOrder persists the order, its items, variants and customizations in one transaction.
func (s *Service) CreateOrder(ctx context.Context, in CreateInput) (Order, error) {
	if err := validateHeader(in.Header); err != nil {
		return Order{}, err
	}
	if len(in.Items) == 0 {
		return Order{}, apperr.Validation("an order needs at least one item")
	}
	status, err := initialStatus(in.Status)
	if err != nil {
		return Order{}, err
	}
	for i, c := range in.Customizations {
		if c.Type == "" {
			return Order{}, apperr.Validation("customizations[%d]: customization_type is required", i)
		}
		if c.ItemIndex != nil && (*c.ItemIndex < 0 || *c.ItemIndex >= len(in.Items)) {
			return Order{}, apperr.Validation("customizations[%d]: item_index out of range", i)
		}
	}

	now := s.now()
	o := &Order{
		ID:        newID(),
		Header:    in.Header,
		Status:    status,
		CreatedBy: in.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = postgres.WithinTx(ctx, s.DB, func(tx pgx.Tx) error {
		for i, itIn := range in.Items {
			it, err := s.buildItem(ctx, tx, o.ID, itIn, now)
			if err != nil {
				return fmt.Errorf("items[%d]: %w", i, err)
			}
			o.addItem(it)
		}
		for _, c := range in.Customizations {
			cz := Customization{ID: newID(), OrderID: o.ID, Type: c.Type, Content: c.Content, Note: c.Note, CreatedAt: now}
			if c.ItemIndex != nil {
				cz.OrderItemID = &o.Items[*c.ItemIndex].ID
			}
			o.Customizations = append(o.Customizations, cz)
		}
		o.Recalculate()
		if err := o.checkTotals(); err != nil {
			return err
		}

		if err := insertOrderNumbered(ctx, tx, o, s.Numbers); err != nil {
			return err
		}
		for i := range o.Items {
			if err := insertItem(ctx, tx, &o.Items[i]); err != nil {
				return err
			}
		}
		for i := range o.Customizations {
			if err := insertCustomization(ctx, tx, &o.Customizations[i]); err != nil {
				return err
			}
		}
		return s.Audit.Order(ctx, tx, audit.OrderEntry{
			OrderID: o.ID, Action: ActionCreated, ActorID: in.ActorID, CreatedAt: now,
			Detail: map[string]any{"order_number": o.OrderNumber, "status": o.Status, "total_amount": o.TotalAmount},
		})
	})
	if err != nil {
		s.logFailure("create order", err)
		return Order{}, err
	}
	if o.Customizations == nil {
		o.Customizations = []Customization{}
	}

	s.logger().Info("order created", zap.String("order_id", o.ID), zap.String("order_number", o.OrderNumber),
		zap.Int("items", len(o.Items)), zap.Stringer("total", o.TotalAmount))
	s.emit(ctx, events.TopicOrderCreated, events.EventOrderCreated, o.ID, events.OrderCreatedPayload{
		OrderID: o.ID, OrderNumber: o.OrderNumber, Status: string(o.Status),
		ItemCount: len(o.Items), TotalAmount: o.TotalAmount.String(),
	})
	return *o, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (Order, error) {
	if err := parseID("order", id); err != nil {
		return Order{}, err
	}
	o, err := loadOrder(ctx, s.DB, id, false)
	if err != nil {
		return Order{}, err
	}
	return *o, nil
}

// mutate runs one edit against the locked aggregate. edit changes the copy in memory and
// returns audit detail; totals are recomputed and the difference is written afterwards.
func (s *Service) mutate(ctx context.Context, orderID, actorID, action string,
	edit func(ctx context.Context, tx pgx.Tx, o *Order, now time.Time) (map[string]any, error)) (Order, error) {
	if err := parseID("order", orderID); err != nil {
		return Order{}, err
	}
	now := s.now()
	var out *Order

	err := postgres.WithinTx(ctx, s.DB, func(tx pgx.Tx) error {
		before, err := loadOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if err := before.ensureMutable(); err != nil {
			return err
		}
		after := before.clone()
		detail, err := edit(ctx, tx, after, now)
		if err != nil {
			return err
		}
		after.Recalculate()
		if err := after.checkTotals(); err != nil {
			return err
		}
		after.UpdatedAt = now
		if err := saveChanges(ctx, tx, before, after); err != nil {
			return err
		}
		if detail == nil {
			detail = map[string]any{}
		}
		detail["subtotal_amount"] = after.SubtotalAmount
		detail["total_amount"] = after.TotalAmount
		out = after
		return s.Audit.Order(ctx, tx, audit.OrderEntry{
			OrderID: after.ID, Action: action, ActorID: actorID, Detail: detail, CreatedAt: now,
		})
	})
	if err != nil {
		s.logFailure(action, err)
		return Order{}, err
	}

	s.emit(ctx, events.TopicOrderUpdated, events.EventOrderUpdated, out.ID, events.OrderUpdatedPayload{
		OrderID: out.ID, Change: action,
		SubtotalAmount: out.SubtotalAmount.String(), TotalAmount: out.TotalAmount.String(),
	})
	return *out, nil
}

func (s *Service) AddItem(ctx context.Context, orderID string, in ItemInput, actorID string) (Order, error) {
	return s.mutate(ctx, orderID, actorID, ActionItemAdded, func(ctx context.Context, tx pgx.Tx, o *Order, now time.Time) (map[string]any, error) {
		it, err := s.buildItem(ctx, tx, o.ID, in, now)
		if err != nil {
			return nil, err
		}
		o.addItem(it)
		return map[string]any{"item_id": it.ID, "product_id": it.ProductID, "quantity": it.Quantity}, nil
	})
}

func (s *Service) UpdateItem(ctx context.Context, orderID, itemID string, upd ItemUpdate, actorID string) (Order, error) {
	if upd.Quantity == nil && upd.Note == nil {
		return Order{}, apperr.Validation("nothing to update")
	}
	return s.mutate(ctx, orderID, actorID, ActionItemUpdated, func(_ context.Context, _ pgx.Tx, o *Order, _ time.Time) (map[string]any, error) {
		if err := o.updateItem(itemID, upd); err != nil {
			return nil, err
		}
		detail := map[string]any{"item_id": itemID}
		if upd.Quantity != nil {
			detail["quantity"] = *upd.Quantity
		}
		return detail, nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, orderID, itemID, actorID string) (Order, error) {
	return s.mutate(ctx, orderID, actorID, ActionItemRemoved, func(_ context.Context, _ pgx.Tx, o *Order, _ time.Time) (map[string]any, error) {
		if err := o.removeItem(itemID); err != nil {
			return nil, err
		}
		return map[string]any{"item_id": itemID}, nil
	})
}

func (s *Service) AddItemVariant(ctx context.Context, orderID, itemID string, in VariantInput, actorID string) (Order, error) {
	return s.mutate(ctx, orderID, actorID, ActionVariantAdded, func(_ context.Context, _ pgx.Tx, o *Order, _ time.Time) (map[string]any, error) {
		v, err := o.addVariant(itemID, in)
		if err != nil {
			return nil, err
		}
		return map[string]any{"item_id": itemID, "variant_id": v.ID, "variant_name": v.Name, "price_adjustment": v.PriceAdjustment}, nil
	})
}

func (s *Service) RemoveItemVariant(ctx context.Context, orderID, itemID, variantID, actorID string) (Order, error) {
	return s.mutate(ctx, orderID, actorID, ActionVariantRemoved, func(_ context.Context, _ pgx.Tx, o *Order, _ time.Time) (map[string]any, error) {
		if err := o.removeVariant(itemID, variantID); err != nil {
			return nil, err
		}
		return map[string]any{"item_id": itemID, "variant_id": variantID}, nil
	})
}

// UpdateStatus applies one lifecycle transition. Repeating the current status is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status, actorID string) (Order, error) {
	to, err := ParseStatus(status)
	if err != nil {
		return Order{}, err
	}
	if err := parseID("order", orderID); err != nil {
		return Order{}, err
	}
	now := s.now()
	var (
		o       *Order
		from    Status
		changed bool
	)
	err = postgres.WithinTx(ctx, s.DB, func(tx pgx.Tx) error {
		var err error
		if o, err = loadOrder(ctx, tx, orderID, true); err != nil {
			return err
		}
		from = o.Status
		if changed, err = Transition(o, to, now); err != nil || !changed {
			return err
		}
		if err := updateStatus(ctx, tx, o); err != nil {
			return err
		}
		if sh, ok := shippingFor(o, to, now); ok {
			if err := upsertShipping(ctx, tx, sh, now); err != nil {
				return err
			}
			o.Shipping = sh
		}
		return s.Audit.Order(ctx, tx, audit.OrderEntry{
			OrderID: o.ID, Action: ActionStatusChanged, ActorID: actorID, CreatedAt: now,
			Detail: map[string]any{"from": from, "to": to},
		})
	})
	if err != nil {
		s.logFailure("update status", err)
		return Order{}, err
	}
	if !changed {
		return *o, nil
	}

	s.logger().Info("order status changed", zap.String("order_id", o.ID),
		zap.String("from", string(from)), zap.String("to", string(to)))
	s.emit(ctx, events.TopicOrderStatusChanged, events.EventOrderStatusChanged, o.ID, events.OrderStatusChangedPayload{
		OrderID: o.ID, OrderNumber: o.OrderNumber, From: string(from), To: string(to),
	})
	return *o, nil
}

// RecordShipment stores the carrier booking for a shipped order. It reports false when a
// tracking code was already stored or the order has no shipping row yet.
func (s *Service) RecordShipment(ctx context.Context, orderID, provider, trackingCode string) (bool, error) {
	if err := parseID("order", orderID); err != nil {
		return false, err
	}
	now := s.now()
	var stored bool
	err := postgres.WithinTx(ctx, s.DB, func(tx pgx.Tx) error {
		var err error
		if stored, err = setTracking(ctx, tx, orderID, provider, trackingCode, now); err != nil || !stored {
			return err
		}
		return s.Audit.Order(ctx, tx, audit.OrderEntry{
			OrderID: orderID, Action: ActionShipmentBooked, ActorID: "system:" + provider, CreatedAt: now,
			Detail: map[string]any{"provider": provider, "tracking_code": trackingCode},
		})
	})
	return stored, err
}

func (s *Service) emit(ctx context.Context, topic, eventType, orderID string, payload any) {
	if err := s.Events.Emit(ctx, topic, eventType, orderID, payload); err != nil {
		s.logger().Warn("emit order event", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (s *Service) logFailure(op string, err error) {
	if apperr.KindOf(err) == "" {
		s.logger().Error(op+" failed", zap.Error(err))
	}
}
