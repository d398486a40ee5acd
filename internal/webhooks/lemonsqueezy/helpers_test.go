package lemonsqueezywebhook

import (
	"encoding/json"
	"testing"
)

// orderPayload builds a provider-shaped order webhook body.
func orderPayload(t *testing.T, eventName string, orderID, userID any, total int64) []byte {
	t.Helper()
	meta := map[string]any{"event_name": eventName, "test_mode": true}
	if userID != nil {
		meta["custom_data"] = map[string]any{"user_id": userID}
	}
	data := map[string]any{
		"type": "orders",
		"attributes": map[string]any{
			"store_id":   12,
			"user_email": "buyer@example.com",
			"currency":   "USD",
			"status":     "paid",
			"total":      total,
			"first_order_item": map[string]any{
				"product_id": 77,
				"variant_id": 888,
				"price":      total,
			},
		},
	}
	if orderID != nil {
		data["id"] = orderID
	}
	body, err := json.Marshal(map[string]any{"meta": meta, "data": data})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return body
}
