package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/creditpacks-backend/api/responses"
	lemonsqueezywebhook "github.com/angelmondragon/creditpacks-backend/internal/webhooks/lemonsqueezy"
	"github.com/angelmondragon/creditpacks-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
	"github.com/angelmondragon/creditpacks-backend/pkg/logger"
)

const defaultMaxBodyBytes int64 = 1 << 20

type LemonSqueezyWebhookService interface {
	HandleEvent(ctx context.Context, event lemonsqueezywebhook.Event) (enums.WebhookOutcome, error)
	Replayed(ctx context.Context, event lemonsqueezywebhook.Event) enums.WebhookOutcome
	Reject(ctx context.Context, eventName string, payload []byte, cause error)
}

type LemonSqueezyGuard interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// LemonSqueezyWebhookOptions carries the signing secret and body limit.
type LemonSqueezyWebhookOptions struct {
	Secret       string
	MaxBodyBytes int64
}

type webhookAck struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
}

// LemonSqueezyWebhook verifies, parses and applies LemonSqueezy order events.
// The guard is optional; the order table already rejects replays.
func LemonSqueezyWebhook(svc LemonSqueezyWebhookService, guard LemonSqueezyGuard, opts LemonSqueezyWebhookOptions, logg *logger.Logger) http.HandlerFunc {
	limit := opts.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		signature := r.Header.Get(lemonsqueezywebhook.SignatureHeader)
		if opts.Secret == "" || signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, lemonsqueezywebhook.ErrSignatureMissing, "missing signature or secret"))
			return
		}
		if !lemonsqueezywebhook.VerifySignature(payload, opts.Secret, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeSignature, lemonsqueezywebhook.ErrSignatureInvalid, "invalid signature"))
			return
		}

		event, err := lemonsqueezywebhook.ParseEvent(payload)
		if err != nil {
			svc.Reject(ctx, lemonsqueezywebhook.PeekEventName(payload), payload, err)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// Unhandled events never touch the ledger, so they are not guarded.
		key := ""
		if enums.WebhookEventName(event.EventName()).IsHandled() {
			key = lemonsqueezywebhook.DeliveryKey(event.EventName(), event.OrderRef())
		}
		claimed := false
		if guard != nil && key != "" {
			seen, err := guard.CheckAndMark(ctx, key)
			switch {
			case err != nil:
				if logg != nil {
					logg.Error(logg.WithEventName(ctx, event.EventName()), "webhook.guard_unavailable", err)
				}
			case seen:
				outcome := svc.Replayed(ctx, event)
				responses.WriteSuccess(w, webhookAck{Received: true, Outcome: outcome.String()})
				return
			default:
				claimed = true
			}
		}

		outcome, err := svc.HandleEvent(ctx, event)
		if err != nil {
			if claimed {
				if delErr := guard.Delete(ctx, key); delErr != nil && logg != nil {
					logg.Error(ctx, "webhook.guard_release_failed", delErr)
				}
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, webhookAck{Received: true, Outcome: outcome.String()})
	}
}
