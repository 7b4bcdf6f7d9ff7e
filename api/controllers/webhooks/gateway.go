package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/gigbroker-backend/api/responses"
	"github.com/angelmondragon/gigbroker-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
	"github.com/angelmondragon/gigbroker-backend/pkg/metrics"
)

const signatureHeader = "X-Gateway-Signature"

// gatewayEventBody mirrors the payment gateway's webhook envelope.
type gatewayEventBody struct {
	EventID     string `json:"event_id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
}

// GatewayWebhook receives asynchronous charge/refund/payout settlement events.
// The raw body is authenticated with HMAC-SHA256 before anything is decoded.
func GatewayWebhook(svc webhooks.Service, secret string, m *metrics.PlatformMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(signatureHeader))
		if !validateGatewaySignature(payload, secret, signature) {
			if m != nil {
				m.IncWebhookEvent("invalid_signature")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInvalidSignature, "gateway signature mismatch"))
			return
		}

		var body gatewayEventBody
		if err := json.Unmarshal(payload, &body); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		outcome, err := svc.Process(ctx, webhooks.Event{
			EventID:     body.EventID,
			ExternalID:  body.ReferenceID,
			RawStatus:   body.Status,
			AmountCents: body.AmountCents,
			Payload:     payload,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}

func validateGatewaySignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
