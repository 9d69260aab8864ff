package feed_test

import (
	"testing"

	"cart-recovery-service/feed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDecodeSnapshot_SortedAndSkipsMalformed(t *testing.T) {
	raw := []byte(`{
		"b": {"contact": {"name": "Bia", "phone": "2"}},
		"a": {"contact": {"name": "Ana", "phone": "1"}},
		"bad": "not a session",
		"gone": null
	}`)

	snapshot, err := feed.DecodeSnapshot(raw, zap.NewNop())
	require.NoError(t, err)
	if assert.Len(t, snapshot, 2) {
		assert.Equal(t, "a", snapshot[0].ID)
		assert.Equal(t, "b", snapshot[1].ID)
	}
}

func TestDecodeSnapshot_NullAndArray(t *testing.T) {
	snapshot, err := feed.DecodeSnapshot([]byte("null"), zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, snapshot)

	snapshot, err = feed.DecodeSnapshot([]byte(`[null, {"currentStep": "cart"}]`), zap.NewNop())
	require.NoError(t, err)
	if assert.Len(t, snapshot, 1) {
		assert.Equal(t, "1", snapshot[0].ID)
	}

	_, err = feed.DecodeSnapshot([]byte(`"oops"`), zap.NewNop())
	assert.Error(t, err)
}

func TestDecodeSnapshot_KeyOverridesRecordID(t *testing.T) {
	snapshot, err := feed.DecodeSnapshot([]byte(`{"-Nkey1": {"id": "cs_123", "contact": {"name": "Ana", "phone": "11999999999"}}}`), zap.NewNop())
	require.NoError(t, err)
	if assert.Len(t, snapshot, 1) {
		assert.Equal(t, "-Nkey1", snapshot[0].ID)
	}
}

func TestDecodeSnapshot_KeepsSessionWithOddItemTypes(t *testing.T) {
	raw := []byte(`{"s1": {
		"contact": {"name": "Ana", "phone": "11999999999"},
		"cart": {"items": [{"id": "sku-9", "name": "Boné", "quantity": "2", "totalPrice": "80,00"}], "total": "80,00"}
	}}`)

	snapshot, err := feed.DecodeSnapshot(raw, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	require.Len(t, snapshot[0].Cart.Items, 1)
	assert.Equal(t, "sku-9", snapshot[0].Cart.Items[0].ID)
	assert.Equal(t, 2, snapshot[0].Cart.Items[0].Quantity)
}
