package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/creditpacks-backend/internal/packs"
	"github.com/angelmondragon/creditpacks-backend/internal/users"
	"github.com/angelmondragon/creditpacks-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
	"github.com/angelmondragon/creditpacks-backend/pkg/lemonsqueezy"
	"github.com/angelmondragon/creditpacks-backend/pkg/logger"
)

// CustomUserIDKey is the checkout custom-data key echoed back in webhooks.
const CustomUserIDKey = "user_id"

var (
	ErrUnknownPack      = errors.New("unknown credit pack")
	ErrPackUnavailable  = errors.New("credit pack not available for purchase")
	ErrNotAuthenticated = errors.New("authentication required")
)

type checkoutCreator interface {
	CreateCheckout(ctx context.Context, req lemonsqueezy.CheckoutRequest) (*lemonsqueezy.Checkout, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Service opens hosted checkouts for credit packs.
type Service interface {
	CreateCheckout(ctx context.Context, input CreateInput) (*Session, error)
}

// CreateInput identifies the pack and the authenticated buyer.
type CreateInput struct {
	PackKey string
	UserID  string
}

// Session is the provider checkout the client should be redirected to.
type Session struct {
	CheckoutURL string `json:"checkout_url"`
	PackKey     string `json:"pack"`
	Credits     int    `json:"credits"`
}

type ServiceParams struct {
	Catalog  *packs.Catalog
	Provider checkoutCreator
	Users    userLoader
	Logger   *logger.Logger
}

type service struct {
	catalog  *packs.Catalog
	provider checkoutCreator
	users    userLoader
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pack catalog required")
	}
	if params.Provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout provider required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repository required")
	}
	return &service{
		catalog:  params.Catalog,
		provider: params.Provider,
		users:    params.Users,
		logg:     params.Logger,
	}, nil
}

func (s *service) CreateCheckout(ctx context.Context, input CreateInput) (*Session, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, ErrNotAuthenticated, "authentication required")
	}
	pack, ok := s.catalog.Get(input.PackKey)
	if !ok {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrUnknownPack, "invalid pack selected").
			WithDetails(map[string]any{"pack": input.PackKey})
	}
	if pack.VariantID == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ErrPackUnavailable, "pack is not configured for checkout")
	}

	// Orders are credited to the embedded user id, so it must name a real account.
	_, err := s.users.FindByID(ctx, userID)
	switch {
	case errors.Is(err, users.ErrNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, ErrNotAuthenticated, "user not found")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}

	checkout, err := s.provider.CreateCheckout(ctx, lemonsqueezy.CheckoutRequest{
		VariantID: pack.VariantID,
		Custom:    map[string]string{CustomUserIDKey: userID},
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{"user_id": userID, "pack": pack.Key}), "checkout.create_failed", err)
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create checkout")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"user_id": userID, "pack": pack.Key, "checkout_id": checkout.ID}), "checkout.created")
	}
	return &Session{CheckoutURL: checkout.URL, PackKey: pack.Key, Credits: pack.Credits}, nil
}
