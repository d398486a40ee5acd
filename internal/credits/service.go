package credits

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/creditpacks-backend/internal/ledger"
	"github.com/angelmondragon/creditpacks-backend/internal/users"
	"github.com/angelmondragon/creditpacks-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
	"github.com/angelmondragon/creditpacks-backend/pkg/logger"
	"github.com/angelmondragon/creditpacks-backend/pkg/metrics"
	"github.com/angelmondragon/creditpacks-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

const maxDescriptionLength = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Users             users.Repository
	Orders            ledger.Repository
	Usages            Repository
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.CreditMetrics
}

// Service answers balance questions and spends credits for authenticated users.
type Service struct {
	users    users.Repository
	orders   ledger.Repository
	usages   Repository
	txRunner txRunner
	logg     *logger.Logger
	metrics  *metrics.CreditMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repository required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order repository required")
	}
	if params.Usages == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "usage repository required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		users:    params.Users,
		orders:   params.Orders,
		usages:   params.Usages,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// Balance returns the stored credit balance.
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

// Check reports whether the balance covers required. It never mutates state.
func (s *Service) Check(ctx context.Context, userID string, required int) (*Sufficiency, error) {
	if required < 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidAmount, "required must not be negative")
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Sufficiency{
		Sufficient:     user.Credits >= required,
		CurrentBalance: user.Credits,
		Required:       required,
	}, nil
}

// Consume spends amount credits. The decrement is a single conditional update,
// so concurrent consumes can never drive the balance negative.
func (s *Service) Consume(ctx context.Context, userID string, amount int, description string) (*ConsumeResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, ErrNotAuthenticated, "not authenticated")
	}
	if amount <= 0 {
		s.metrics.IncRejected("invalid_amount")
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidAmount, "amount must be positive")
	}
	description = truncate(strings.TrimSpace(description), maxDescriptionLength)

	var result ConsumeResult
	var shortBalance int
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txUsers := s.users.WithTx(tx)
		ok, err := txUsers.DebitCredits(ctx, userID, amount)
		if err != nil {
			return err
		}
		user, err := txUsers.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			shortBalance = user.Credits
			return ErrInsufficientCredits
		}

		usage := &models.CreditUsage{
			ID:           uuid.NewString(),
			UserID:       userID,
			Amount:       amount,
			Description:  description,
			BalanceAfter: user.Credits,
		}
		if err := s.usages.WithTx(tx).CreateUsage(ctx, usage); err != nil {
			return err
		}
		result = ConsumeResult{CreditsConsumed: amount, NewBalance: user.Credits}
		return nil
	})
	switch {
	case errors.Is(err, ErrInsufficientCredits):
		s.metrics.IncRejected("insufficient")
		return nil, pkgerrors.Insufficient(err, shortBalance, amount)
	case errors.Is(err, users.ErrNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, errors.Join(ledger.ErrTransactionFailure, err), "consume credits")
	}

	s.metrics.AddConsumed(amount)
	if s.logg != nil {
		logCtx := s.logg.WithUserID(ctx, userID)
		s.logg.Event(logCtx, zerolog.InfoLevel).
			Int("amount", amount).
			Int("new_balance", result.NewBalance).
			Str("description", description).
			Msg("credits.consumed")
	}
	return &result, nil
}

// OrderHistory returns the newest orders first, limited to pagination.MaxLimit.
func (s *Service) OrderHistory(ctx context.Context, userID string, limit int) ([]OrderDTO, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, ErrNotAuthenticated, "not authenticated")
	}
	orders, err := s.orders.ListByUser(ctx, userID, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderFromModel(o))
	}
	return out, nil
}

// UsageHistory returns the caller's most recent consumes, newest first.
func (s *Service) UsageHistory(ctx context.Context, userID string, limit int) ([]UsageDTO, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, ErrNotAuthenticated, "not authenticated")
	}
	usages, err := s.usages.ListUsages(ctx, userID, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list usages")
	}
	out := make([]UsageDTO, 0, len(usages))
	for _, u := range usages {
		out = append(out, usageFromModel(u))
	}
	return out, nil
}

func (s *Service) loadUser(ctx context.Context, userID string) (*models.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, ErrNotAuthenticated, "not authenticated")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return user, nil
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
