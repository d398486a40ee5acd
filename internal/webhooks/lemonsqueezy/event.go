package lemonsqueezywebhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/angelmondragon/creditpacks-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var (
	ErrSignatureInvalid     = errors.New("invalid webhook signature")
	ErrSignatureMissing     = errors.New("webhook signature or secret missing")
	ErrParse                = errors.New("malformed webhook payload")
	ErrMissingEventKind     = errors.New("missing meta.event_name")
	ErrMissingUserReference = errors.New("missing meta.custom_data.user_id")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Event is one of *OrderCreated, *OrderRefunded or *Unhandled.
type Event interface {
	EventName() string
	// OrderRef is the provider order id, empty when the event carries none.
	OrderRef() string
	// Payload is the raw body the event was parsed from.
	Payload() []byte
	isEvent()
}

// OrderCreated grants credits for a paid order.
type OrderCreated struct {
	OrderID       string `validate:"required"`
	UserID        string `validate:"required"`
	TotalCents    int64  `validate:"gte=0"`
	ProductID     string
	VariantID     string
	Status        string
	CustomerEmail string
	TestMode      bool
	raw           []byte
}

// OrderRefunded reverses the credits of a previously recorded order.
type OrderRefunded struct {
	OrderID  string `validate:"required"`
	UserID   string
	TestMode bool
	raw      []byte
}

// Unhandled is any signed event the ledger does not act on.
type Unhandled struct {
	Name    string
	OrderID string
	raw     []byte
}

func (*OrderCreated) EventName() string  { return enums.WebhookEventOrderCreated.String() }
func (*OrderRefunded) EventName() string { return enums.WebhookEventOrderRefunded.String() }
func (u *Unhandled) EventName() string   { return u.Name }

func (e *OrderCreated) OrderRef() string  { return e.OrderID }
func (e *OrderRefunded) OrderRef() string { return e.OrderID }
func (u *Unhandled) OrderRef() string     { return u.OrderID }

func (e *OrderCreated) Payload() []byte  { return e.raw }
func (e *OrderRefunded) Payload() []byte { return e.raw }
func (u *Unhandled) Payload() []byte     { return u.raw }

func (*OrderCreated) isEvent()  {}
func (*OrderRefunded) isEvent() {}
func (*Unhandled) isEvent()     {}

// flexString accepts a JSON string or number. The provider sends numeric ids
// but custom data round-trips whatever the checkout put in.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type webhookEnvelope struct {
	Meta struct {
		EventName  string `json:"event_name"`
		TestMode   bool   `json:"test_mode"`
		CustomData struct {
			UserID flexString `json:"user_id"`
		} `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		Type       string     `json:"type"`
		ID         flexString `json:"id"`
		Attributes struct {
			UserEmail      string `json:"user_email"`
			Status         string `json:"status"`
			Total          *int64 `json:"total"`
			FirstOrderItem *struct {
				ProductID flexString `json:"product_id"`
				VariantID flexString `json:"variant_id"`
			} `json:"first_order_item"`
		} `json:"attributes"`
	} `json:"data"`
}

// ParseEvent decodes a verified body into a typed event. Each variant is
// validated before it is returned.
func ParseEvent(payload []byte) (Event, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, errors.Join(ErrParse, err), "invalid JSON payload")
	}

	name := strings.TrimSpace(env.Meta.EventName)
	if name == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrMissingEventKind, "missing event name")
	}

	switch enums.WebhookEventName(name) {
	case enums.WebhookEventOrderCreated:
		ev := &OrderCreated{
			OrderID:       string(env.Data.ID),
			UserID:        string(env.Meta.CustomData.UserID),
			Status:        strings.TrimSpace(env.Data.Attributes.Status),
			CustomerEmail: strings.TrimSpace(env.Data.Attributes.UserEmail),
			TestMode:      env.Meta.TestMode,
			raw:           payload,
		}
		if env.Data.Attributes.Total != nil {
			ev.TotalCents = *env.Data.Attributes.Total
		}
		if item := env.Data.Attributes.FirstOrderItem; item != nil {
			ev.ProductID = string(item.ProductID)
			ev.VariantID = string(item.VariantID)
		}
		if err := validateEvent(ev); err != nil {
			return nil, err
		}
		return ev, nil
	case enums.WebhookEventOrderRefunded:
		ev := &OrderRefunded{
			OrderID:  string(env.Data.ID),
			UserID:   string(env.Meta.CustomData.UserID),
			TestMode: env.Meta.TestMode,
			raw:      payload,
		}
		if err := validateEvent(ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return &Unhandled{Name: name, OrderID: string(env.Data.ID), raw: payload}, nil
	}
}

// PeekEventName extracts meta.event_name without validating anything else, so
// rejected deliveries can still be labelled.
func PeekEventName(payload []byte) string {
	var env struct {
		Meta struct {
			EventName string `json:"event_name"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return ""
	}
	return strings.TrimSpace(env.Meta.EventName)
}

func validateEvent(ev any) error {
	err := validate.Struct(ev)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "UserID" {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrMissingUserReference, "missing user_id in custom data")
			}
		}
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, errors.Join(ErrParse, err), "invalid webhook payload").
			WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, errors.Join(ErrParse, err), "invalid webhook payload")
}
