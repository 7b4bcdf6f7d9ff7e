package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/api/responses"
	"github.com/angelmondragon/gigbroker-backend/api/validators"
	"github.com/angelmondragon/gigbroker-backend/internal/withdrawals"
	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
)

type requestWithdrawalRequest struct {
	AmountCents int64  `json:"amountCents" validate:"required,gt=0"`
	PayoutKey   string `json:"payoutKey" validate:"required,max=200"`
}

type withdrawalDTO struct {
	ID            uuid.UUID              `json:"id"`
	AmountCents   int64                  `json:"amountCents"`
	Status        enums.WithdrawalStatus `json:"status"`
	FailureReason *string                `json:"failureReason,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

func toWithdrawalDTO(withdrawal *models.Withdrawal) withdrawalDTO {
	return withdrawalDTO{
		ID:            withdrawal.ID,
		AmountCents:   withdrawal.AmountCents,
		Status:        withdrawal.Status,
		FailureReason: withdrawal.FailureReason,
		CreatedAt:     withdrawal.CreatedAt,
		UpdatedAt:     withdrawal.UpdatedAt,
	}
}

// RequestWithdrawal initiates a payout against the actor's available balance.
func RequestWithdrawal(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req requestWithdrawalRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		withdrawal, err := svc.Request(r.Context(), withdrawals.RequestInput{
			UserID:      userID,
			AmountCents: req.AmountCents,
			PayoutKey:   req.PayoutKey,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toWithdrawalDTO(withdrawal))
	}
}

// GetWithdrawal fetches a single payout owned by the actor.
func GetWithdrawal(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withdrawalID, err := uuidParam(r, "withdrawalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		withdrawal, err := svc.Get(r.Context(), withdrawalID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toWithdrawalDTO(withdrawal))
	}
}

// ListWithdrawals pages through the actor's payouts.
func ListWithdrawals(svc withdrawals.Service, logg *logger.Logger) http.HandlerFunc {
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

		out := make([]withdrawalDTO, 0, len(page))
		for i := range page {
			out = append(out, toWithdrawalDTO(&page[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
