package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/creditpacks-backend/internal/packs"
	"github.com/angelmondragon/creditpacks-backend/internal/users"
	"github.com/angelmondragon/creditpacks-backend/pkg/db"
	"github.com/angelmondragon/creditpacks-backend/pkg/db/models"
	"github.com/angelmondragon/creditpacks-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
	"github.com/angelmondragon/creditpacks-backend/pkg/logger"
	"github.com/angelmondragon/creditpacks-backend/pkg/metrics"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const unknownProductID = "unknown"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Outcome describes what a reconciliation did to the ledger.
type Outcome = enums.WebhookOutcome

// ApplyInput is the order data needed to grant credits.
type ApplyInput struct {
	OrderID       string
	UserID        string
	ProductID     string
	VariantID     string
	TotalCents    int64
	ProviderState string
	CustomerEmail string
}

// Result reports the effect of Apply or Refund.
type Result struct {
	Outcome Outcome
	OrderID string
	UserID  string
	// Credits is the amount granted by Apply or removed by Refund.
	Credits int
	Balance int
}

type ReconcilerParams struct {
	Orders            Repository
	Users             users.Repository
	Catalog           *packs.Catalog
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.CreditMetrics
	Clock             func() time.Time
}

// Reconciler turns provider order events into balance changes. Each call runs
// in one unit of work so the order row and users.credits never diverge.
type Reconciler struct {
	orders   Repository
	users    users.Repository
	catalog  *packs.Catalog
	txRunner txRunner
	logg     *logger.Logger
	metrics  *metrics.CreditMetrics
	now      func() time.Time
}

func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order repository required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repository required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pack catalog required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Reconciler{
		orders:   params.Orders,
		users:    params.Users,
		catalog:  params.Catalog,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      clock,
	}, nil
}

// Apply records a paid order and grants its credits exactly once per order id.
func (r *Reconciler) Apply(ctx context.Context, input ApplyInput) (*Result, error) {
	orderID := strings.TrimSpace(input.OrderID)
	userID := strings.TrimSpace(input.UserID)
	if orderID == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrMissingOrderID, "order id is required")
	}
	if userID == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrMissingUserReference, "missing user_id in custom data")
	}
	result := &Result{OrderID: orderID, UserID: userID}

	existing, err := r.orders.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, errors.Join(ErrTransactionFailure, err), "lookup order")
	}
	if existing != nil {
		result.Outcome = enums.WebhookOutcomeDuplicate
		result.Credits = existing.Credits
		return result, nil
	}

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return nil, r.userLookupError(err)
	}

	credits, source := r.catalog.CreditsFor(input.VariantID, input.TotalCents)
	if credits <= 0 {
		// A paid order nobody can be credited for needs an operator.
		r.fail(ctx, "ledger.apply.unpriced", ErrInvalidCreditAmount, map[string]any{
			"order_id":    orderID,
			"user_id":     userID,
			"order_total": input.TotalCents,
			"variant_id":  input.VariantID,
		})
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidCreditAmount, "invalid credit amount").
			WithDetails(map[string]any{"order_total": input.TotalCents})
	}

	order := &models.CreditOrder{
		OrderID:       orderID,
		UserID:        userID,
		ProductID:     firstNonEmpty(input.ProductID, unknownProductID),
		Credits:       credits,
		OrderTotal:    input.TotalCents,
		Status:        enums.CreditOrderStatusPaid,
		CustomerEmail: firstNonEmpty(input.CustomerEmail, user.Email),
	}
	if variant := strings.TrimSpace(input.VariantID); variant != "" {
		order.VariantID = &variant
	}

	err = r.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := r.orders.WithTx(tx).Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errAlreadyRecorded
			}
			return err
		}
		txUsers := r.users.WithTx(tx)
		if err := txUsers.AddCredits(ctx, userID, credits); err != nil {
			return err
		}
		updated, err := txUsers.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		result.Balance = updated.Credits
		return nil
	})
	switch {
	case errors.Is(err, errAlreadyRecorded):
		result.Outcome = enums.WebhookOutcomeDuplicate
		result.Credits = 0
		return result, nil
	case errors.Is(err, users.ErrNotFound):
		return nil, r.userLookupError(err)
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, errors.Join(ErrTransactionFailure, err), "apply order")
	}

	result.Outcome = enums.WebhookOutcomeProcessed
	result.Credits = credits
	r.metrics.AddGranted(credits)
	r.info(ctx, "ledger.apply.granted", map[string]any{
		"order_id":       orderID,
		"user_id":        userID,
		"credits":        credits,
		"match":          string(source),
		"balance":        result.Balance,
		"provider_state": input.ProviderState,
	})
	return result, nil
}

// Refund removes an order's credits, never taking the balance below zero, and
// marks the order refunded. A second refund of the same order is a duplicate.
func (r *Reconciler) Refund(ctx context.Context, orderID string) (*Result, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrMissingOrderID, "order id is required")
	}

	order, err := r.orders.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, errors.Join(ErrTransactionFailure, err), "lookup order")
	}
	if order == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrOrderNotFound, "order not found")
	}
	result := &Result{OrderID: orderID, UserID: order.UserID}
	if order.Status == enums.CreditOrderStatusRefunded {
		result.Outcome = enums.WebhookOutcomeDuplicate
		return result, nil
	}

	err = r.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txOrders := r.orders.WithTx(tx)
		txUsers := r.users.WithTx(tx)

		locked, err := txOrders.FindByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if locked == nil || locked.Status == enums.CreditOrderStatusRefunded {
			return errAlreadyRecorded
		}

		user, err := txUsers.FindByIDForUpdate(ctx, locked.UserID)
		if err != nil {
			return err
		}
		deduct := min(locked.Credits, user.Credits)
		if deduct > 0 {
			ok, err := txUsers.DebitCredits(ctx, user.ID, deduct)
			if err != nil {
				return err
			}
			if !ok {
				return errBalanceChanged
			}
		}

		flipped, err := txOrders.MarkRefunded(ctx, orderID, r.now().UTC())
		if err != nil {
			return err
		}
		if !flipped {
			return errAlreadyRecorded
		}

		result.Credits = deduct
		result.Balance = user.Credits - deduct
		return nil
	})
	switch {
	case errors.Is(err, errAlreadyRecorded):
		result.Outcome = enums.WebhookOutcomeDuplicate
		result.Credits = 0
		return result, nil
	case errors.Is(err, users.ErrNotFound):
		return nil, r.userLookupError(err)
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, errors.Join(ErrTransactionFailure, err), "refund order")
	}

	result.Outcome = enums.WebhookOutcomeProcessed
	r.metrics.AddRefunded(result.Credits)
	r.info(ctx, "ledger.refund.applied", map[string]any{
		"order_id":      orderID,
		"user_id":       result.UserID,
		"credits":       result.Credits,
		"order_credits": order.Credits,
		"balance":       result.Balance,
	})
	return result, nil
}

func (r *Reconciler) userLookupError(err error) error {
	if errors.Is(err, users.ErrNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, errors.Join(ErrTransactionFailure, err), "lookup user")
}

func (r *Reconciler) info(ctx context.Context, msg string, fields map[string]any) {
	if r.logg == nil {
		return
	}
	r.logg.Event(r.logg.WithFields(ctx, fields), zerolog.InfoLevel).Msg(msg)
}

func (r *Reconciler) fail(ctx context.Context, msg string, err error, fields map[string]any) {
	if r.logg == nil {
		return
	}
	r.logg.Error(r.logg.WithFields(ctx, fields), msg, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
