// Package lemonsqueezy adapts the LemonSqueezy SDK to the checkout service:
// string variant ids in, hosted checkout URL out, every failure coded.
package lemonsqueezy

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	sdk "github.com/NdoleStudio/lemonsqueezy-go"

	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
)

const (
	defaultTimeout = 10 * time.Second
	// checkoutTTL bounds how long a hosted checkout link stays usable.
	checkoutTTL = 24 * time.Hour
)

var (
	errAPIKeyRequired  = errors.New("lemonsqueezy api key required")
	errStoreIDRequired = errors.New("lemonsqueezy store id required")
	errStoreIDInvalid  = errors.New("lemonsqueezy store id must be numeric")
)

type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
}

func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/") }
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *options) { o.timeout = timeout }
}

// Client opens hosted checkouts for a single store.
type Client struct {
	api     *sdk.Client
	storeID int
	now     func() time.Time
}

func NewClient(apiKey, storeID string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, errStoreIDRequired
	}
	store, err := strconv.Atoi(storeID)
	if err != nil {
		return nil, errStoreIDInvalid
	}

	o := options{timeout: defaultTimeout, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.timeout}
	}

	sdkOpts := []sdk.Option{sdk.WithAPIKey(apiKey), sdk.WithHTTPClient(httpClient)}
	if o.baseURL != "" {
		sdkOpts = append(sdkOpts, sdk.WithBaseURL(o.baseURL))
	}
	return &Client{api: sdk.New(sdkOpts...), storeID: store, now: o.now}, nil
}

// CheckoutRequest selects the variant to sell. Custom is echoed back as
// meta.custom_data on every webhook for the resulting order.
type CheckoutRequest struct {
	VariantID string
	Custom    map[string]string
}

type Checkout struct {
	ID  string
	URL string
}

func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if c == nil || c.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lemonsqueezy client not configured")
	}
	variantID := strings.TrimSpace(req.VariantID)
	if variantID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	variant, err := strconv.Atoi(variantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "variant id must be numeric").
			WithDetails(map[string]any{"variant_id": variantID})
	}

	resp, _, err := c.api.Checkouts.Create(ctx, &sdk.CheckoutCreateParams{
		StoreID:         c.storeID,
		VariantID:       variant,
		EnabledVariants: []int{variant},
		CustomData:      req.Custom,
		ExpiresAt:       c.now().UTC().Add(checkoutTTL),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lemonsqueezy checkout request failed")
	}
	if resp == nil || strings.TrimSpace(resp.Data.Attributes.URL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lemonsqueezy checkout response missing url")
	}
	return &Checkout{ID: resp.Data.ID, URL: resp.Data.Attributes.URL}, nil
}
