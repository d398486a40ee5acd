package enums

import "fmt"

// WebhookEventName is the provider's meta.event_name.
type WebhookEventName string

const (
	WebhookEventOrderCreated  WebhookEventName = "order_created"
	WebhookEventOrderRefunded WebhookEventName = "order_refunded"
)

func (n WebhookEventName) String() string {
	return string(n)
}

// IsHandled reports whether the event changes the ledger.
func (n WebhookEventName) IsHandled() bool {
	return n == WebhookEventOrderCreated || n == WebhookEventOrderRefunded
}

// WebhookOutcome is the journaled result of handling one delivery.
type WebhookOutcome string

const (
	WebhookOutcomeProcessed WebhookOutcome = "processed"
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	WebhookOutcomeIgnored   WebhookOutcome = "ignored"
	WebhookOutcomeRejected  WebhookOutcome = "rejected"
	WebhookOutcomeFailed    WebhookOutcome = "failed"
)

var validWebhookOutcomes = []WebhookOutcome{
	WebhookOutcomeProcessed,
	WebhookOutcomeDuplicate,
	WebhookOutcomeIgnored,
	WebhookOutcomeRejected,
	WebhookOutcomeFailed,
}

func (o WebhookOutcome) String() string {
	return string(o)
}

func (o WebhookOutcome) IsValid() bool {
	for _, candidate := range validWebhookOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseWebhookOutcome converts raw input into a WebhookOutcome.
func ParseWebhookOutcome(value string) (WebhookOutcome, error) {
	for _, candidate := range validWebhookOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook outcome %q", value)
}
