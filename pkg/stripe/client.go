package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/gigbroker-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API client. It is the payout rail only; charges and
// refunds run through the escrow gateway.
type Client struct {
	api         *stripe.Client
	environment string
	logger      *logger.Logger
}

// TransferParams describes one payout transfer to a provider's connected account.
type TransferParams struct {
	AmountCents   int64
	Currency      string
	Destination   string
	TransferGroup string
	Description   string
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := stripe.NewClient(apiKey)

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		api:         api,
		environment: env,
		logger:      logg,
	}, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateTransfer initiates a payout transfer and returns the Stripe transfer ID.
// The ID is the reconciliation key for withdrawal webhooks.
func (c *Client) CreateTransfer(ctx context.Context, params TransferParams) (string, error) {
	if c == nil || c.api == nil {
		return "", errors.New("stripe client not initialized")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "brl"
	}

	req := &stripe.TransferCreateParams{
		Amount:      stripe.Int64(params.AmountCents),
		Currency:    stripe.String(currency),
		Destination: stripe.String(params.Destination),
	}
	if trimmed := strings.TrimSpace(params.TransferGroup); trimmed != "" {
		req.TransferGroup = stripe.String(trimmed)
	}
	if trimmed := strings.TrimSpace(params.Description); trimmed != "" {
		req.Description = stripe.String(trimmed)
	}

	transfer, err := c.api.V1Transfers.Create(ctx, req)
	if err != nil {
		return "", mapStripeError(err)
	}
	return transfer.ID, nil
}

func mapStripeError(err error) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeCard:
			return pkgerrors.Wrap(pkgerrors.CodePaymentDeclined, err, "stripe transfer declined")
		case stripe.ErrorTypeInvalidRequest:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "stripe transfer rejected")
		// The SDK has no constant for authentication errors; match the wire value.
		case "authentication_error":
			return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "stripe authentication failed")
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe transfer failed")
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
