package controllers

import (
	"net/http"

	"github.com/angelmondragon/creditpacks-backend/api/middleware"
	"github.com/angelmondragon/creditpacks-backend/api/responses"
	"github.com/angelmondragon/creditpacks-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/creditpacks-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
	"github.com/angelmondragon/creditpacks-backend/pkg/logger"
)

type checkoutRequest struct {
	Pack string `json:"pack" validate:"required"`
}

// Checkout opens a hosted checkout for a credit pack on behalf of the caller.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.CreateCheckout(r.Context(), checkoutsvc.CreateInput{
			PackKey: payload.Pack,
			UserID:  middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}
