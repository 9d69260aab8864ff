package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"cart-recovery-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_AcceptsMillisAndISO(t *testing.T) {
	cases := map[string]time.Time{
		`1735689600000`:               time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		`"1735689600000"`:             time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		`"2025-01-01T00:00:00.000Z"`:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		`"2025-01-01T03:00:00+03:00"`: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		var ts models.Timestamp
		require.NoError(t, json.Unmarshal([]byte(raw), &ts), raw)
		assert.True(t, want.Equal(ts.Time), "%s decoded to %v", raw, ts.Time)
	}
}

func TestTimestamp_GarbageIsZero(t *testing.T) {
	for _, raw := range []string{`null`, `"not a date"`, `""`, `{}`, `true`} {
		var ts models.Timestamp
		require.NoError(t, json.Unmarshal([]byte(raw), &ts), raw)
		assert.True(t, ts.IsZero(), raw)
	}
}

func TestTimestamp_ZonelessISOUsesLocalZone(t *testing.T) {
	models.SetLocalZone(time.FixedZone("BRT", -3*60*60))
	defer models.SetLocalZone(time.UTC)

	var ts models.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2025-03-15T10:00:00"`), &ts))
	assert.True(t, time.Date(2025, 3, 15, 13, 0, 0, 0, time.UTC).Equal(ts.Time), ts.Time.String())

	require.NoError(t, json.Unmarshal([]byte(`"2025-03-15 10:00:00"`), &ts))
	assert.True(t, time.Date(2025, 3, 15, 13, 0, 0, 0, time.UTC).Equal(ts.Time), ts.Time.String())

	require.NoError(t, json.Unmarshal([]byte(`"2025-03-15T10:00:00Z"`), &ts))
	assert.True(t, time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC).Equal(ts.Time), ts.Time.String())
}

func TestMarker_Truthiness(t *testing.T) {
	cases := map[string]bool{
		`true`:                               true,
		`false`:                              false,
		`null`:                               false,
		`{"sent_at":"2025-01-01T00:00:00Z"}`: true,
		`{}`:                                 true,
		`"2025-01-01T00:00:00Z"`:             true,
		`""`:                                 false,
		`[]`:                                 false,
		`["x"]`:                              false,
		`0`:                                  false,
		`1`:                                  false,
	}
	for raw, want := range cases {
		var m models.Marker
		require.NoError(t, json.Unmarshal([]byte(raw), &m), raw)
		assert.Equal(t, want, m.Set, raw)
	}
}

func TestCheckoutSession_DecodeFullRecord(t *testing.T) {
	raw := `{
		"startTime": 1735689600000,
		"lastUpdate": "2025-01-01T00:10:00Z",
		"currentStep": "payment",
		"activity": {"current_step": "payment", "is_active": false, "last_activity": 1735690500000},
		"contact": {"name": "Ana", "phone": "11999999999", "email": "ana@example.com", "cpf": "000"},
		"cart": {
			"items": [{"id": 10, "name": "Camiseta", "quantity": 2, "totalPrice": "119,80", "unitPrice": "59,90"}],
			"itemCount": 2, "total": "1.234,56", "subtotal": 1234.56, "recoveryUrl": "https://shop/r/1"
		},
		"location": {"city": "São Paulo", "region": "SP", "latitude": -23.5},
		"notifications": {"abandoned_cart": {"sent_at": "2025-01-01T00:30:00Z"}}
	}`

	var s models.CheckoutSession
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.True(t, s.HasContact())
	assert.False(t, s.Converted())
	assert.True(t, s.AlreadyNotified())
	assert.Equal(t, "payment", s.Step())

	total, ok := s.Cart.Total.Value()
	assert.True(t, ok)
	assert.InDelta(t, 1234.56, total, 0.0001)

	subtotal, ok := s.Cart.Subtotal.Value()
	assert.True(t, ok)
	assert.InDelta(t, 1234.56, subtotal, 0.0001)

	last, err := s.LastActivityTime()
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1735690500000).UTC(), last)
}

func TestCheckoutSession_LooseFieldTypes(t *testing.T) {
	raw := `{
		"id": 77,
		"contact": {"name": "Ana", "phone": 11999999999},
		"activity": {"is_active": "true"},
		"cart": {
			"items": [
				{"id": "sku-9", "name": "Boné", "quantity": "2", "totalPrice": "80,00", "variationId": 12},
				{"id": 10, "name": "Meia", "quantity": {"n": 1}},
				"garbage"
			],
			"itemCount": "3",
			"total": -12.5
		},
		"address": {"number": 120, "cep": 1310100},
		"location": {"latitude": "-23.55", "longitude": "n/a"},
		"order": {"order_id": 4512, "order_status": "paid"}
	}`

	var s models.CheckoutSession
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.Equal(t, "77", s.ID)
	assert.Equal(t, "11999999999", s.Contact.Phone)
	assert.True(t, s.Activity.IsActive)
	require.Len(t, s.Cart.Items, 3)
	assert.Equal(t, "sku-9", s.Cart.Items[0].ID)
	assert.Equal(t, 2, s.Cart.Items[0].Quantity)
	assert.Equal(t, "12", s.Cart.Items[0].VariationID)
	assert.Equal(t, "10", s.Cart.Items[1].ID)
	assert.Equal(t, 0, s.Cart.Items[1].Quantity)
	assert.Equal(t, models.CartItem{}, s.Cart.Items[2])
	assert.Equal(t, 3, s.Cart.ItemCount)
	assert.Equal(t, "120", s.Address.Number)
	assert.InDelta(t, -23.55, s.Location.Latitude, 0.0001)
	assert.Zero(t, s.Location.Longitude)
	assert.Equal(t, "4512", s.Order.OrderID)
	assert.True(t, s.Paid())

	total, ok := s.Cart.Total.Value()
	assert.True(t, ok)
	assert.InDelta(t, -12.5, total, 0.0001)
}

func TestCheckoutSession_ItemsAsIndexedObject(t *testing.T) {
	var s models.CheckoutSession
	require.NoError(t, json.Unmarshal([]byte(`{"cart": {"items": {"10": {"name": "C"}, "2": {"name": "B"}, "0": {"name": "A"}}}}`), &s))
	require.Len(t, s.Cart.Items, 3)
	assert.Equal(t, "A", s.Cart.Items[0].Name)
	assert.Equal(t, "B", s.Cart.Items[1].Name)
	assert.Equal(t, "C", s.Cart.Items[2].Name)
}

func TestCheckoutSession_LastActivityFallsBackToLastUpdate(t *testing.T) {
	lastUpdate := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := models.CheckoutSession{LastUpdate: models.NewTimestamp(lastUpdate)}

	idle, err := s.IdleFor(lastUpdate.Add(25 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 25*time.Minute, idle)

	_, err = (&models.CheckoutSession{}).IdleFor(time.Now())
	assert.ErrorIs(t, err, models.ErrMissingTimestamp)
}

func TestCheckoutSession_Converted(t *testing.T) {
	assert.True(t, (&models.CheckoutSession{CurrentStep: models.StepSuccess}).Converted())
	assert.True(t, (&models.CheckoutSession{Activity: models.Activity{CurrentStep: models.StepSuccess}}).Converted())
	assert.True(t, (&models.CheckoutSession{Order: &models.Order{}}).Converted())
	assert.False(t, (&models.CheckoutSession{CurrentStep: "shipping"}).Converted())

	var s models.CheckoutSession
	require.NoError(t, json.Unmarshal([]byte(`{"order": null}`), &s))
	assert.False(t, s.Converted())
	require.NoError(t, json.Unmarshal([]byte(`{"order": false}`), &s))
	assert.False(t, s.Converted())
	require.NoError(t, json.Unmarshal([]byte(`{"order": ""}`), &s))
	assert.False(t, s.Converted())
	require.NoError(t, json.Unmarshal([]byte(`{"order": {"order_status": "paid"}}`), &s))
	assert.True(t, s.Paid())
}

func TestCheckoutSession_HasContactRequiresNameAndPhone(t *testing.T) {
	assert.False(t, (&models.CheckoutSession{Contact: models.Contact{Name: "Ana"}}).HasContact())
	assert.False(t, (&models.CheckoutSession{Contact: models.Contact{Phone: "11999999999"}}).HasContact())
	assert.False(t, (&models.CheckoutSession{Contact: models.Contact{Name: "  ", Phone: "1"}}).HasContact())
	assert.True(t, (&models.CheckoutSession{Contact: models.Contact{Name: "Ana", Phone: "1"}}).HasContact())
}
