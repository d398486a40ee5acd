package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
)

type consumePayload struct {
	Amount      *int   `json:"amount,omitempty"`
	Description string `json:"description,omitempty" validate:"max=10"`
}

type checkoutPayload struct {
	Pack string `json:"pack" validate:"required,oneof=small medium large"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/v1/credits/consume", strings.NewReader(body))
}

func details(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected coded error, got %v", err)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	out, _ := typed.Details().(map[string]string)
	return out
}

func TestDecodeJSONBody(t *testing.T) {
	var payload consumePayload
	require.NoError(t, DecodeJSONBody(post(`{"amount":3,"description":"render"}`), &payload))
	require.NotNil(t, payload.Amount)
	assert.Equal(t, 3, *payload.Amount)
}

func TestDecodeJSONBodyEmptyBodyIsEmptyObject(t *testing.T) {
	var payload consumePayload
	require.NoError(t, DecodeJSONBody(post(""), &payload))
	assert.Nil(t, payload.Amount)

	var checkout checkoutPayload
	err := DecodeJSONBody(post(""), &checkout)
	assert.Equal(t, map[string]string{"pack": "is required"}, details(t, err))
}

func TestDecodeJSONBodyRejections(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		want  string
	}{
		{"unknown field", `{"credits":1}`, "credits", "is not allowed"},
		{"wrong type", `{"amount":"two"}`, "amount", "must be a int"},
		{"too long", `{"description":"much too long for this"}`, "description", "must be at most 10 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload consumePayload
			err := DecodeJSONBody(post(tt.body), &payload)
			assert.Equal(t, tt.want, details(t, err)[tt.field])
		})
	}

	var checkout checkoutPayload
	err := DecodeJSONBody(post(`{"pack":"huge"}`), &checkout)
	assert.Equal(t, "must be one of small medium large", details(t, err)["pack"])
}

func TestDecodeJSONBodyMalformedAndOversized(t *testing.T) {
	var payload consumePayload

	err := DecodeJSONBody(post(`{"amount":`), &payload)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	err = DecodeJSONBody(post(`{"amount":1}{"amount":2}`), &payload)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	big := `{"description":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	err = DecodeJSONBody(post(big), &payload)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	assert.Equal(t, "request body too large", pkgerrors.As(err).Message())
}

func TestIntParam(t *testing.T) {
	limit := IntParam{Name: "limit", Default: 10, Min: 1, Max: 50}

	got, err := limit.Parse(httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.NoError(t, err)
	assert.Equal(t, 10, got)

	got, err = limit.Parse(httptest.NewRequest(http.MethodGet, "/orders?limit=25", nil))
	require.NoError(t, err)
	assert.Equal(t, 25, got)

	_, err = limit.Parse(httptest.NewRequest(http.MethodGet, "/orders?limit=abc", nil))
	assert.Equal(t, "must be an integer", details(t, err)["limit"])

	_, err = limit.Parse(httptest.NewRequest(http.MethodGet, "/orders?limit=51", nil))
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
