package orders

import (
	"time"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
)

// Transition moves o to status to and applies the timestamp side effects.
// Moving to the current status is a no-op and reports changed=false.
// finalized_at and completed_at are written on first entry only.
func Transition(o *Order, to Status, now time.Time) (changed bool, err error) {
	if _, ok := validNext[to]; !ok {
		return false, apperr.InvalidStatus("unknown order status %q", to)
	}
	if o.Status == to {
		return false, nil
	}
	if !CanTransition(o.Status, to) {
		return false, apperr.InvalidStatus("cannot move order %s from %s to %s", o.OrderNumber, o.Status, to)
	}

	o.Status = to
	o.UpdatedAt = now
	switch to {
	case StatusDesignApproved:
		if o.FinalizedAt == nil {
			t := now
			o.FinalizedAt = &t
		}
	case StatusCompleted:
		if o.CompletedAt == nil {
			t := now
			o.CompletedAt = &t
		}
	}
	return true, nil
}

// shippingFor returns the shipping row state implied by entering to, if any.
// Cancellation only touches a row that already exists.
func shippingFor(o *Order, to Status, now time.Time) (*Shipping, bool) {
	cur := Shipping{OrderID: o.ID, Status: ShippingPending}
	if o.Shipping != nil {
		cur = *o.Shipping
		cur.OrderID = o.ID
	}
	switch to {
	case StatusShipped:
		cur.Status = ShippingInTransit
		if cur.ShippedAt == nil {
			t := now
			cur.ShippedAt = &t
		}
	case StatusCompleted:
		cur.Status = ShippingDelivered
		if cur.DeliveredAt == nil {
			t := now
			cur.DeliveredAt = &t
		}
	case StatusCancelled:
		if o.Shipping == nil {
			return nil, false
		}
		cur.Status = ShippingCancelled
	default:
		return nil, false
	}
	return &cur, true
}
