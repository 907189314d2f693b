package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
	"github.com/ariefcatur/go-custom-orders/internal/postgres"
)

const (
	orderNumberKey = "orders_order_number_key"
	variantNameKey = "order_item_variants_name_key"
	orderColumns   = `id, order_number, customer_name, customer_phone, customer_email, recipient_name,
		recipient_phone, delivery_address, delivery_date, delivery_time_slot, note, status,
		subtotal_amount, shipping_fee, total_amount, is_urgent, created_by, created_at, updated_at,
		finalized_at, completed_at`
)

func insertOrder(ctx context.Context, q postgres.Querier, o *Order) error {
	_, err := q.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		o.ID, o.OrderNumber, o.CustomerName, o.CustomerPhone, o.CustomerEmail, o.RecipientName,
		o.RecipientPhone, o.DeliveryAddress, o.DeliveryDate, o.DeliveryTimeSlot, o.Note, string(o.Status),
		o.SubtotalAmount, o.ShippingFee, o.TotalAmount, o.IsUrgent, o.CreatedBy, o.CreatedAt, o.UpdatedAt,
		o.FinalizedAt, o.CompletedAt,
	)
	return err
}

// insertOrderNumbered drafts order numbers until one inserts. Each attempt runs under a
// savepoint so a collision does not abort the surrounding transaction.
func insertOrderNumbered(ctx context.Context, tx pgx.Tx, o *Order, gen NumberGenerator) error {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		o.OrderNumber = gen.Next()
		sp, err := tx.Begin(ctx)
		if err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
		err = insertOrder(ctx, sp, o)
		if err == nil {
			if err := sp.Commit(ctx); err != nil {
				return fmt.Errorf("release savepoint: %w", err)
			}
			return nil
		}
		_ = sp.Rollback(ctx)
		if !postgres.IsUniqueViolation(err, orderNumberKey) {
			return fmt.Errorf("insert order: %w", err)
		}
	}
	return apperr.Conflict("no free order number after %d attempts", maxNumberAttempts)
}

func insertItem(ctx context.Context, q postgres.Querier, it *Item) error {
	_, err := q.Exec(ctx, `
		INSERT INTO order_items (id, order_id, product_id, product_variant_id, collection_id,
			product_name, product_type, quantity, unit_price, total_price, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		it.ID, it.OrderID, it.ProductID, it.ProductVariantID, it.CollectionID,
		it.ProductName, it.ProductType, it.Quantity, it.UnitPrice, it.TotalPrice, it.Note, it.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	for i := range it.Variants {
		if err := insertVariant(ctx, q, &it.Variants[i]); err != nil {
			return err
		}
	}
	return nil
}

func insertVariant(ctx context.Context, q postgres.Querier, v *ItemVariant) error {
	_, err := q.Exec(ctx, `
		INSERT INTO order_item_variants (id, order_item_id, variant_name, variant_value, price_adjustment)
		VALUES ($1,$2,$3,$4,$5)`,
		v.ID, v.OrderItemID, v.Name, v.Value, v.PriceAdjustment,
	)
	if postgres.IsUniqueViolation(err, variantNameKey) {
		return apperr.Conflict("item %s already has variant %q", v.OrderItemID, v.Name)
	}
	if err != nil {
		return fmt.Errorf("insert item variant: %w", err)
	}
	return nil
}

func insertCustomization(ctx context.Context, q postgres.Querier, c *Customization) error {
	_, err := q.Exec(ctx, `
		INSERT INTO order_customizations (id, order_id, order_item_id, customization_type, content, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.OrderID, c.OrderItemID, c.Type, c.Content, c.Note, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert customization: %w", err)
	}
	return nil
}

// loadOrder reads the full aggregate. With lock set, the order row is held FOR UPDATE
// until the transaction ends, which serializes every mutation of one order.
func loadOrder(ctx context.Context, q postgres.Querier, id string, lock bool) (*Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	var (
		o      Order
		status string
	)
	err := q.QueryRow(ctx, sql, id).Scan(
		&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.RecipientName,
		&o.RecipientPhone, &o.DeliveryAddress, &o.DeliveryDate, &o.DeliveryTimeSlot, &o.Note, &status,
		&o.SubtotalAmount, &o.ShippingFee, &o.TotalAmount, &o.IsUrgent, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
		&o.FinalizedAt, &o.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read order: %w", err)
	}
	o.Status = Status(status)

	if o.Items, err = loadItems(ctx, q, o.ID); err != nil {
		return nil, err
	}
	if o.Customizations, err = loadCustomizations(ctx, q, o.ID); err != nil {
		return nil, err
	}
	if o.Shipping, err = loadShipping(ctx, q, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

func loadItems(ctx context.Context, q postgres.Querier, orderID string) ([]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_variant_id, collection_id, product_name, product_type,
		       quantity, unit_price, total_price, note, created_at
		FROM order_items WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	index := map[string]int{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductVariantID, &it.CollectionID,
			&it.ProductName, &it.ProductType, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.Note, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.Variants = []ItemVariant{}
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	vrows, err := q.Query(ctx, `
		SELECT v.id, v.order_item_id, v.variant_name, v.variant_value, v.price_adjustment
		FROM order_item_variants v
		JOIN order_items i ON i.id = v.order_item_id
		WHERE i.order_id = $1
		ORDER BY v.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query item variants: %w", err)
	}
	defer vrows.Close()
	for vrows.Next() {
		var v ItemVariant
		if err := vrows.Scan(&v.ID, &v.OrderItemID, &v.Name, &v.Value, &v.PriceAdjustment); err != nil {
			return nil, fmt.Errorf("scan item variant: %w", err)
		}
		if i, ok := index[v.OrderItemID]; ok {
			items[i].Variants = append(items[i].Variants, v)
		}
	}
	return items, vrows.Err()
}

func loadCustomizations(ctx context.Context, q postgres.Querier, orderID string) ([]Customization, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, order_item_id, customization_type, content, note, created_at
		FROM order_customizations WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query customizations: %w", err)
	}
	defer rows.Close()

	out := []Customization{}
	for rows.Next() {
		var c Customization
		if err := rows.Scan(&c.ID, &c.OrderID, &c.OrderItemID, &c.Type, &c.Content, &c.Note, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan customization: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadShipping(ctx context.Context, q postgres.Querier, orderID string) (*Shipping, error) {
	s := Shipping{OrderID: orderID}
	err := q.QueryRow(ctx, `
		SELECT provider, tracking_code, status, shipped_at, delivered_at
		FROM order_shippings WHERE order_id = $1`, orderID,
	).Scan(&s.Provider, &s.TrackingCode, &s.Status, &s.ShippedAt, &s.DeliveredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read shipping: %w", err)
	}
	return &s, nil
}

// saveChanges writes the difference between the loaded aggregate and its mutated copy,
// then the recomputed order totals.
func saveChanges(ctx context.Context, tx pgx.Tx, before, after *Order) error {
	old := make(map[string]*Item, len(before.Items))
	for i := range before.Items {
		old[before.Items[i].ID] = &before.Items[i]
	}

	for i := range after.Items {
		it := &after.Items[i]
		prev, ok := old[it.ID]
		if !ok {
			if err := insertItem(ctx, tx, it); err != nil {
				return err
			}
			continue
		}
		delete(old, it.ID)

		if prev.Quantity != it.Quantity || prev.Note != it.Note || !prev.TotalPrice.Equal(it.TotalPrice) {
			if _, err := tx.Exec(ctx, `
				UPDATE order_items SET quantity = $2, note = $3, total_price = $4 WHERE id = $1`,
				it.ID, it.Quantity, it.Note, it.TotalPrice); err != nil {
				return fmt.Errorf("update order item: %w", err)
			}
		}
		if err := saveVariants(ctx, tx, prev.Variants, it.Variants); err != nil {
			return err
		}
	}

	for id := range old {
		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete order item: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET subtotal_amount = $2, total_amount = $3, updated_at = $4 WHERE id = $1`,
		after.ID, after.SubtotalAmount, after.TotalAmount, after.UpdatedAt); err != nil {
		return fmt.Errorf("update order totals: %w", err)
	}
	return nil
}

func saveVariants(ctx context.Context, tx pgx.Tx, before, after []ItemVariant) error {
	old := make(map[string]bool, len(before))
	for _, v := range before {
		old[v.ID] = true
	}
	for i := range after {
		if old[after[i].ID] {
			delete(old, after[i].ID)
			continue
		}
		if err := insertVariant(ctx, tx, &after[i]); err != nil {
			return err
		}
	}
	for id := range old {
		if _, err := tx.Exec(ctx, `DELETE FROM order_item_variants WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete item variant: %w", err)
		}
	}
	return nil
}

func updateStatus(ctx context.Context, tx pgx.Tx, o *Order) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, finalized_at = $3, completed_at = $4, updated_at = $5 WHERE id = $1`,
		o.ID, string(o.Status), o.FinalizedAt, o.CompletedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

func upsertShipping(ctx context.Context, tx pgx.Tx, s *Shipping, now time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_shippings (order_id, provider, tracking_code, status, shipped_at, delivered_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (order_id) DO UPDATE SET
			status = EXCLUDED.status,
			shipped_at = EXCLUDED.shipped_at,
			delivered_at = EXCLUDED.delivered_at,
			updated_at = EXCLUDED.updated_at`,
		s.OrderID, s.Provider, s.TrackingCode, s.Status, s.ShippedAt, s.DeliveredAt, now)
	if err != nil {
		return fmt.Errorf("upsert shipping: %w", err)
	}
	return nil
}

// setTracking stores a carrier tracking code once; replays leave the first code in place.
func setTracking(ctx context.Context, q postgres.Querier, orderID, provider, code string, now time.Time) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE order_shippings SET provider = $2, tracking_code = $3, updated_at = $4
		WHERE order_id = $1 AND tracking_code = ''`,
		orderID, provider, code, now)
	if err != nil {
		return false, fmt.Errorf("set tracking code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
