package lemonsqueezywebhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/angelmondragon/creditpacks-backend/internal/ledger"
	"github.com/angelmondragon/creditpacks-backend/pkg/db/models"
	"github.com/angelmondragon/creditpacks-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
	"github.com/angelmondragon/creditpacks-backend/pkg/logger"
	"github.com/angelmondragon/creditpacks-backend/pkg/metrics"
	"github.com/google/uuid"
)

// Outcome is the acknowledged result of a delivery.
type Outcome = enums.WebhookOutcome

type reconciler interface {
	Apply(ctx context.Context, input ledger.ApplyInput) (*ledger.Result, error)
	Refund(ctx context.Context, orderID string) (*ledger.Result, error)
}

type ServiceParams struct {
	Reconciler reconciler
	// Journal is optional; without it deliveries are only logged.
	Journal JournalRepository
	Logger  *logger.Logger
	Metrics *metrics.WebhookMetrics
	Clock   func() time.Time
}

// Service routes verified LemonSqueezy events to the ledger.
type Service struct {
	reconciler reconciler
	journal    JournalRepository
	logg       *logger.Logger
	metrics    *metrics.WebhookMetrics
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger reconciler required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		reconciler: params.Reconciler,
		journal:    params.Journal,
		logg:       params.Logger,
		metrics:    params.Metrics,
		now:        clock,
	}, nil
}

// HandleEvent applies order_created, reverses order_refunded and acknowledges
// everything else without touching state.
func (s *Service) HandleEvent(ctx context.Context, event Event) (Outcome, error) {
	if event == nil {
		return enums.WebhookOutcomeRejected, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrParse, "event required")
	}
	started := s.now()

	var (
		result  *ledger.Result
		err     error
		orderID string
		userID  string
	)
	switch ev := event.(type) {
	case *OrderCreated:
		orderID, userID = ev.OrderID, ev.UserID
		result, err = s.reconciler.Apply(ctx, ledger.ApplyInput{
			OrderID:       ev.OrderID,
			UserID:        ev.UserID,
			ProductID:     ev.ProductID,
			VariantID:     ev.VariantID,
			TotalCents:    ev.TotalCents,
			ProviderState: ev.Status,
			CustomerEmail: ev.CustomerEmail,
		})
	case *OrderRefunded:
		orderID, userID = ev.OrderID, ev.UserID
		result, err = s.reconciler.Refund(ctx, ev.OrderID)
	case *Unhandled:
		orderID = ev.OrderID
	default:
		err = pkgerrors.Wrap(pkgerrors.CodeValidation, ErrParse, fmt.Sprintf("unsupported event %T", event))
	}

	outcome := enums.WebhookOutcomeIgnored
	switch {
	case err != nil:
		outcome = outcomeForError(err)
	case result != nil:
		outcome = result.Outcome
		if userID == "" {
			userID = result.UserID
		}
	}

	s.metrics.Observe(event.EventName(), outcome.String(), s.now().Sub(started))
	s.record(ctx, event.EventName(), orderID, userID, outcome, event.Payload(), err)
	return outcome, err
}

// Replayed accounts for a delivery the idempotency guard short-circuited. It is
// counted but not journaled; the first delivery already was.
func (s *Service) Replayed(ctx context.Context, event Event) Outcome {
	if event == nil {
		return enums.WebhookOutcomeDuplicate
	}
	s.metrics.Observe(event.EventName(), enums.WebhookOutcomeDuplicate.String(), 0)
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithEventName(ctx, event.EventName()), event.OrderRef())
		s.logg.Info(logCtx, "webhook.replayed")
	}
	return enums.WebhookOutcomeDuplicate
}

// Reject journals a signed delivery that could not be parsed.
func (s *Service) Reject(ctx context.Context, eventName string, payload []byte, cause error) {
	s.metrics.Observe(eventName, enums.WebhookOutcomeRejected.String(), 0)
	s.record(ctx, eventName, "", "", enums.WebhookOutcomeRejected, payload, cause)
}

func (s *Service) record(ctx context.Context, eventName, orderID, userID string, outcome Outcome, payload []byte, cause error) {
	if s.logg != nil {
		fields := map[string]any{"outcome": outcome.String()}
		if userID != "" {
			fields["user_id"] = userID
		}
		logCtx := s.logg.WithFields(s.logg.WithOrderID(s.logg.WithEventName(ctx, eventName), orderID), fields)
		switch outcome {
		case enums.WebhookOutcomeFailed:
			s.logg.Error(logCtx, "webhook.failed", cause)
		case enums.WebhookOutcomeRejected:
			s.logg.Warn(logCtx, "webhook.rejected")
		default:
			s.logg.Info(logCtx, "webhook.handled")
		}
	}

	if s.journal == nil {
		return
	}
	entry := &models.WebhookEvent{
		ID:        uuid.NewString(),
		EventName: eventName,
		OrderID:   optional(orderID),
		UserID:    optional(userID),
		Outcome:   outcome,
		Payload:   string(payload),
		CreatedAt: s.now().UTC(),
	}
	if cause != nil {
		msg := cause.Error()
		entry.Error = &msg
	}
	if err := s.journal.Create(ctx, entry); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithEventName(ctx, eventName), "webhook.journal_failed", err)
	}
}

func outcomeForError(err error) Outcome {
	if pkgerrors.StatusOf(err) >= http.StatusInternalServerError {
		return enums.WebhookOutcomeFailed
	}
	return enums.WebhookOutcomeRejected
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
