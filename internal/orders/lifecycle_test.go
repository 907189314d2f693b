package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func walk(t *testing.T, o *Order, path ...Status) {
	t.Helper()
	for i, s := range path {
		changed, err := Transition(o, s, t0.Add(time.Duration(i+1)*time.Hour))
		require.NoError(t, err, "to %s", s)
		require.True(t, changed)
	}
}

func TestTransition_CompletedAtSetOnce(t *testing.T) {
	o := &Order{Status: StatusPendingPayment}
	walk(t, o, StatusProcessing, StatusShipped, StatusCompleted)
	require.NotNil(t, o.CompletedAt)
	first := *o.CompletedAt

	changed, err := Transition(o, StatusCompleted, t0.Add(48*time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first, *o.CompletedAt)
}

func TestTransition_DesignFlowSetsFinalizedAt(t *testing.T) {
	o := &Order{Status: StatusPendingDesign}
	walk(t, o, StatusDesignApproved)
	require.NotNil(t, o.FinalizedAt)
	assert.Equal(t, t0.Add(time.Hour), *o.FinalizedAt)
	assert.Nil(t, o.CompletedAt)

	walk(t, o, StatusProduction, StatusProcessing)
	assert.Equal(t, t0.Add(time.Hour), *o.FinalizedAt)
}

func TestTransition_KeepsPresetTimestamps(t *testing.T) {
	earlier := t0.Add(-time.Hour)
	o := &Order{Status: StatusPendingDesign, FinalizedAt: &earlier}
	walk(t, o, StatusDesignApproved)
	assert.Equal(t, earlier, *o.FinalizedAt)
}

func TestTransition_Rejects(t *testing.T) {
	o := &Order{Status: StatusPendingPayment}
	_, err := Transition(o, StatusCompleted, t0)
	assert.Equal(t, apperr.KindInvalidStatus, apperr.KindOf(err))
	_, err = Transition(o, Status("teleported"), t0)
	assert.Equal(t, apperr.KindInvalidStatus, apperr.KindOf(err))
	assert.Equal(t, StatusPendingPayment, o.Status)

	c := &Order{Status: StatusCancelled}
	_, err = Transition(c, StatusProcessing, t0)
	assert.Equal(t, apperr.KindInvalidStatus, apperr.KindOf(err))
}

func TestShippingFor(t *testing.T) {
	o := &Order{ID: "o1", Status: StatusProcessing}

	_, ok := shippingFor(o, StatusCancelled, t0)
	assert.False(t, ok, "nothing to cancel before shipping")

	sh, ok := shippingFor(o, StatusShipped, t0)
	require.True(t, ok)
	assert.Equal(t, ShippingInTransit, sh.Status)
	assert.Equal(t, t0, *sh.ShippedAt)
	o.Shipping = sh

	done, ok := shippingFor(o, StatusCompleted, t0.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, ShippingDelivered, done.Status)
	assert.Equal(t, t0, *done.ShippedAt)
	assert.Equal(t, t0.Add(time.Hour), *done.DeliveredAt)

	c, ok := shippingFor(o, StatusCancelled, t0)
	require.True(t, ok)
	assert.Equal(t, ShippingCancelled, c.Status)

	_, ok = shippingFor(o, StatusProduction, t0)
	assert.False(t, ok)
}
