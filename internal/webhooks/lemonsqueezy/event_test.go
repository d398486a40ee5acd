package lemonsqueezywebhook

import (
	"testing"

	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent_OrderCreated(t *testing.T) {
	payload := orderPayload(t, "order_created", 1001, "user-1", 2499)

	ev, err := ParseEvent(payload)
	require.NoError(t, err)

	created, ok := ev.(*OrderCreated)
	require.True(t, ok, "expected *OrderCreated, got %T", ev)
	assert.Equal(t, "1001", created.OrderID)
	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, int64(2499), created.TotalCents)
	assert.Equal(t, "77", created.ProductID)
	assert.Equal(t, "888", created.VariantID)
	assert.Equal(t, "paid", created.Status)
	assert.Equal(t, "buyer@example.com", created.CustomerEmail)
	assert.True(t, created.TestMode)
	assert.Equal(t, payload, created.Payload())
	assert.Equal(t, "order_created", created.EventName())
}

func TestParseEvent_StringAndNumericIDs(t *testing.T) {
	ev, err := ParseEvent(orderPayload(t, "order_created", "abc-1", 42, 999))
	require.NoError(t, err)
	created := ev.(*OrderCreated)
	assert.Equal(t, "abc-1", created.OrderID)
	assert.Equal(t, "42", created.UserID)
}

func TestParseEvent_OrderRefunded(t *testing.T) {
	ev, err := ParseEvent(orderPayload(t, "order_refunded", 1001, nil, 2499))
	require.NoError(t, err)

	refunded, ok := ev.(*OrderRefunded)
	require.True(t, ok)
	assert.Equal(t, "1001", refunded.OrderID)
	assert.Empty(t, refunded.UserID)
}

func TestParseEvent_Unhandled(t *testing.T) {
	ev, err := ParseEvent(orderPayload(t, "subscription_updated", 5, nil, 0))
	require.NoError(t, err)

	unhandled, ok := ev.(*Unhandled)
	require.True(t, ok)
	assert.Equal(t, "subscription_updated", unhandled.EventName())
}

func TestParseEvent_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{name: "invalid json", payload: []byte(`{"meta":`), want: ErrParse},
		{name: "missing event name", payload: []byte(`{"meta":{},"data":{"id":"1"}}`), want: ErrMissingEventKind},
		{name: "blank event name", payload: []byte(`{"meta":{"event_name":"  "}}`), want: ErrMissingEventKind},
		{name: "missing user", payload: orderPayload(t, "order_created", 1, nil, 999), want: ErrMissingUserReference},
		{name: "empty user", payload: orderPayload(t, "order_created", 1, "", 999), want: ErrMissingUserReference},
		{name: "missing order id", payload: orderPayload(t, "order_created", nil, "user-1", 999), want: ErrParse},
		{name: "refund without order id", payload: orderPayload(t, "order_refunded", nil, nil, 999), want: ErrParse},
		{name: "negative total", payload: orderPayload(t, "order_created", 1, "user-1", -5), want: ErrParse},
		{name: "boolean id", payload: []byte(`{"meta":{"event_name":"order_created"},"data":{"id":true}}`), want: ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvent(tt.payload)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
		})
	}
}

func TestPeekEventName(t *testing.T) {
	assert.Equal(t, "order_created", PeekEventName([]byte(`{"meta":{"event_name":" order_created "},"data":{"id":true}}`)))
	assert.Empty(t, PeekEventName([]byte(`not json`)))
}

func TestOrderRef(t *testing.T) {
	ev, err := ParseEvent(orderPayload(t, "order_refunded", "55", nil, 0))
	require.NoError(t, err)
	assert.Equal(t, "55", ev.OrderRef())
}
