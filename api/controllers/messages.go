package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/api/responses"
	"github.com/angelmondragon/gigbroker-backend/api/validators"
	"github.com/angelmondragon/gigbroker-backend/internal/messaging"
	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
)

type sendMessageRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

// messageDTO never exposes the pre-masking body or the block reason.
type messageDTO struct {
	ID         uuid.UUID `json:"id"`
	ContractID uuid.UUID `json:"contractId"`
	SenderID   uuid.UUID `json:"senderId"`
	ReceiverID uuid.UUID `json:"receiverId"`
	Body       string    `json:"body"`
	Filtered   bool      `json:"filtered"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toMessageDTO(message *models.Message) messageDTO {
	return messageDTO{
		ID:         message.ID,
		ContractID: message.ContractID,
		SenderID:   message.SenderID,
		ReceiverID: message.ReceiverID,
		Body:       message.Body,
		Filtered:   message.OriginalBody != nil || message.BlockReason != nil,
		CreatedAt:  message.CreatedAt,
	}
}

// SendMessage relays one message between the contract parties after the
// gatekeeper's filtering pass.
func SendMessage(svc messaging.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		senderID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contractID, err := uuidParam(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req sendMessageRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		message, err := svc.Send(r.Context(), messaging.SendInput{
			ContractID: contractID,
			SenderID:   senderID,
			Body:       req.Body,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toMessageDTO(message))
	}
}

// ListMessages pages through a contract's conversation.
func ListMessages(svc messaging.Service, logg *logger.Logger) http.HandlerFunc {
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
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		messages, err := svc.List(r.Context(), contractID, userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]messageDTO, 0, len(messages))
		for i := range messages {
			out = append(out, toMessageDTO(&messages[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
