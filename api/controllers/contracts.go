package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/api/middleware"
	"github.com/angelmondragon/gigbroker-backend/api/responses"
	"github.com/angelmondragon/gigbroker-backend/api/validators"
	"github.com/angelmondragon/gigbroker-backend/internal/contracts"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
)

type createContractRequest struct {
	ProviderID       string `json:"providerId" validate:"required,uuid"`
	ValueCents       int64  `json:"valueCents" validate:"required,gt=0"`
	EventName        string `json:"eventName" validate:"required,max=200"`
	EventDate        string `json:"eventDate" validate:"required"`
	EventLocation    string `json:"eventLocation" validate:"max=300"`
	ProviderPlanTier string `json:"providerPlanTier" validate:"omitempty,oneof=standard pro"`
}

type contractActionRequest struct {
	Action          string `json:"action" validate:"required"`
	NewValueCents   int64  `json:"newValueCents" validate:"omitempty,gt=0"`
	Reason          string `json:"reason" validate:"max=1000"`
	PaymentSourceID string `json:"paymentSourceId" validate:"max=200"`
}

// CreateContract proposes a contract from the authenticated client.
func CreateContract(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createContractRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid provider id"))
			return
		}

		eventDate, err := time.Parse(time.RFC3339, req.EventDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "eventDate must be RFC3339"))
			return
		}

		input := contracts.CreateInput{
			ClientID:      clientID,
			ProviderID:    providerID,
			ValueCents:    req.ValueCents,
			EventName:     req.EventName,
			EventDate:     eventDate,
			EventLocation: req.EventLocation,
		}
		if tier := strings.TrimSpace(req.ProviderPlanTier); tier != "" {
			parsed, err := enums.ParseProviderPlanTier(tier)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan tier"))
				return
			}
			input.ProviderPlanTier = parsed
		}

		contract, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, contracts.ToDTO(contract))
	}
}

// ApplyContractAction drives the contract through one lifecycle transition.
// When asMediator is set the route must sit behind the staff gate; the flag is
// read from the verified claims, never from the body.
func ApplyContractAction(svc contracts.Service, logg *logger.Logger, asMediator bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contractID, err := uuidParam(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req contractActionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		action, err := enums.ParseContractAction(req.Action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action"))
			return
		}

		if asMediator && !middleware.IsAdminFromContext(r.Context()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "staff access required"))
			return
		}

		contract, err := svc.Apply(r.Context(), contracts.ApplyInput{
			ContractID:      contractID,
			ActorID:         userID,
			Action:          action,
			NewValueCents:   req.NewValueCents,
			Reason:          req.Reason,
			PaymentSourceID: req.PaymentSourceID,
			IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
			AsMediator:      asMediator,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contracts.ToDTO(contract))
	}
}

// GetContract returns a single contract visible to the actor.
func GetContract(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contractID, err := uuidParam(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contract, err := svc.Get(r.Context(), contractID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contracts.ToDTO(contract))
	}
}

// ListContracts pages through the actor's contracts, newest first.
func ListContracts(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contracts.ToDTOs(page))
	}
}

// ContractHistory returns the append-only transition trail.
func ContractHistory(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contractID, err := uuidParam(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.History(r.Context(), contractID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contracts.HistoryToDTOs(entries))
	}
}
