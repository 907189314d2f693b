package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	for _, s := range []string{
		"order_reserved", "order_completed", "order_cancelled",
		"manual_adjustment", "inventory_import", "inventory_export",
	} {
		a, ok := ParseAction(s)
		assert.True(t, ok, s)
		assert.Equal(t, Action(s), a)
	}

	_, ok := ParseAction("ORDER_RESERVED")
	assert.False(t, ok)
	_, ok = ParseAction("restock")
	assert.False(t, ok)
}

func TestRecorder_RejectsUnknownActionBeforeWriting(t *testing.T) {
	// A nil querier would panic if the insert were attempted.
	err := Recorder{}.Inventory(context.Background(), nil, InventoryEntry{Action: "restock"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown inventory action")
}
