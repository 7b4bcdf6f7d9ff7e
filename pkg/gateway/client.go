package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/gigbroker-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired   = errors.New("gateway access token is required")
	errWebhookSecretRequired = errors.New("gateway webhook secret is required")
	errInvalidGatewayEnv     = fmt.Errorf("gateway environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired        = errors.New("gateway logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// ChargeParams carries the inputs for an escrow charge.
type ChargeParams struct {
	AmountCents    int64
	Currency       string
	SourceID       string
	ContractID     uuid.UUID
	IdempotencyKey string
	Note           string
}

// ChargeResult is the normalized outcome of a gateway charge.
type ChargeResult struct {
	ChargeID string
	Status   string
}

// RefundParams carries the inputs for a refund of a prior charge.
type RefundParams struct {
	ChargeID       string
	AmountCents    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

// RefundResult is the normalized outcome of a gateway refund.
type RefundResult struct {
	RefundID string
	Status   string
}

// Client exposes the escrow payment gateway with centralized auth, logging,
// idempotency, and error mapping. Square backs it today.
type Client struct {
	sdk           *sqclient.Client
	accessToken   string
	environment   string
	webhookSecret string
	locationID    string
	currency      string
	baseURL       string
	logger        *logger.Logger
}

// NewClient initializes the gateway wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	baseURL := baseURLs[env]
	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURL),
		sqoption.WithToken(accessToken),
	)

	c := &Client{
		sdk:           sdk,
		accessToken:   accessToken,
		environment:   env,
		webhookSecret: webhookSecret,
		locationID:    strings.TrimSpace(cfg.LocationID),
		currency:      strings.ToUpper(strings.TrimSpace(cfg.Currency)),
		baseURL:       baseURL,
		logger:        logg,
	}

	logg.Info(ctx, "payment gateway client initialized")
	return c, nil
}

// Environment reports the normalized gateway environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the gateway webhook secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// NewIdempotencyKey returns a unique key for gateway operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "gb"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// Charge captures the full contract value from the client's payment source.
func (c *Client) Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: c.ensureIdempotencyKey("escrow.charge", params.IdempotencyKey),
		SourceID:       params.SourceID,
		AmountMoney:    c.money(params.AmountCents, params.Currency),
	}
	if c.locationID != "" {
		req.LocationID = ptrString(c.locationID)
	}
	if trimmed := strings.TrimSpace(params.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	if params.ContractID != uuid.Nil {
		req.ReferenceID = ptrString(params.ContractID.String())
	}

	c.log(ctx, "request", "charge", map[string]any{
		"contract_id": params.ContractID.String(),
		"amount":      params.AmountCents,
	})

	resp, err := c.sdk.Payments.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "charge", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "charge")
	}

	payment := resp.GetPayment()
	result := &ChargeResult{
		ChargeID: stringValue(payment.GetID()),
		Status:   stringValue(payment.GetStatus()),
	}
	c.log(ctx, "response", "charge", map[string]any{
		"charge_id": result.ChargeID,
		"status":    result.Status,
	})
	return result, nil
}

// Refund returns previously charged funds to the payer.
func (c *Client) Refund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: c.ensureIdempotencyKey("escrow.refund", params.IdempotencyKey),
		PaymentID:      ptrString(params.ChargeID),
		AmountMoney:    c.money(params.AmountCents, params.Currency),
	}
	if trimmed := strings.TrimSpace(params.Reason); trimmed != "" {
		req.Reason = ptrString(trimmed)
	}

	c.log(ctx, "request", "refund", map[string]any{
		"charge_id": params.ChargeID,
		"amount":    params.AmountCents,
	})

	resp, err := c.sdk.Refunds.RefundPayment(ctx, req)
	if err != nil {
		c.log(ctx, "error", "refund", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "refund")
	}

	refund := resp.GetRefund()
	result := &RefundResult{
		RefundID: refund.GetID(),
		Status:   stringValue(refund.GetStatus()),
	}
	c.log(ctx, "response", "refund", map[string]any{
		"refund_id": result.RefundID,
		"status":    result.Status,
	})
	return result, nil
}

func (c *Client) money(amount int64, currency string) *sq.Money {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = c.currency
	}
	if code == "" {
		code = "BRL"
	}
	cur := sq.Currency(code)
	return &sq.Money{
		Amount:   &amount,
		Currency: &cur,
	}
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("gateway %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("gateway %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "token", "cvv", "cvc", "secret", "source"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapGatewayError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, sqErr := range c.extractGatewayErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused {
				code = pkgerrors.CodeIdempotency
				break
			}
			if sqErr.Category == sq.ErrorCategoryPaymentMethodError {
				code = pkgerrors.CodePaymentDeclined
				break
			}
			if sqErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeUnauthorized
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("gateway %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("gateway %s failed", op))
}

func (c *Client) extractGatewayErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusPaymentRequired:
		return pkgerrors.CodePaymentDeclined
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidGatewayEnv
	}
}
