package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/creditpacks-backend/api/middleware"
	"github.com/angelmondragon/creditpacks-backend/api/responses"
	"github.com/angelmondragon/creditpacks-backend/api/validators"
	"github.com/angelmondragon/creditpacks-backend/internal/credits"
	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
	"github.com/angelmondragon/creditpacks-backend/pkg/logger"
	"github.com/angelmondragon/creditpacks-backend/pkg/pagination"
)

type CreditsService interface {
	Balance(ctx context.Context, userID string) (int, error)
	Check(ctx context.Context, userID string, required int) (*credits.Sufficiency, error)
	Consume(ctx context.Context, userID string, amount int, description string) (*credits.ConsumeResult, error)
	OrderHistory(ctx context.Context, userID string, limit int) ([]credits.OrderDTO, error)
	UsageHistory(ctx context.Context, userID string, limit int) ([]credits.UsageDTO, error)
}

var (
	requiredParam = validators.IntParam{Name: "required", Default: 1, Min: 0, Max: 1_000_000}
	limitParam    = validators.IntParam{Name: "limit", Default: pagination.DefaultLimit, Min: 1, Max: pagination.MaxLimit}
)

type balanceResponse struct {
	Credits int `json:"credits"`
}

type consumeRequest struct {
	Amount      *int   `json:"amount,omitempty"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

// CreditsBalance returns the caller's balance.
func CreditsBalance(svc CreditsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credits service unavailable"))
			return
		}
		balance, err := svc.Balance(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceResponse{Credits: balance})
	}
}

// CreditsCheck reports whether the caller holds at least `required` credits.
func CreditsCheck(svc CreditsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credits service unavailable"))
			return
		}
		required, err := requiredParam.Parse(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Check(r.Context(), middleware.UserIDFromContext(r.Context()), required)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CreditsConsume debits the caller. Amount defaults to one credit.
func CreditsConsume(svc CreditsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credits service unavailable"))
			return
		}
		var payload consumeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount := 1
		if payload.Amount != nil {
			amount = *payload.Amount
		}

		result, err := svc.Consume(r.Context(), middleware.UserIDFromContext(r.Context()), amount, payload.Description)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CreditsOrders lists the caller's most recent credit orders.
func CreditsOrders(svc CreditsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credits service unavailable"))
			return
		}
		limit, err := limitParam.Parse(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orders, err := svc.OrderHistory(r.Context(), middleware.UserIDFromContext(r.Context()), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

func CreditsUsages(svc CreditsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credits service unavailable"))
			return
		}
		limit, err := limitParam.Parse(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		usages, err := svc.UsageHistory(r.Context(), middleware.UserIDFromContext(r.Context()), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, usages)
	}
}
