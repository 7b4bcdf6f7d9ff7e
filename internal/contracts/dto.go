package contracts

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
)

// ContractDTO is the API shape of a contract. StatusMaster is the canonical
// state; status and statusV1 carry the Portuguese labels two generations of
// older mobile clients still parse. Both mirrors are derived at serialization
// time and never stored.
type ContractDTO struct {
	ID         uuid.UUID `json:"id"`
	ClientID   uuid.UUID `json:"clientId"`
	ProviderID uuid.UUID `json:"providerId"`

	StatusMaster enums.ContractStatus `json:"statusMaster"`
	Status       string               `json:"status"`
	StatusV1     string               `json:"statusV1"`

	CurrentValueCents  int64 `json:"currentValueCents"`
	OriginalValueCents int64 `json:"originalValueCents"`

	EventName     string    `json:"eventName"`
	EventDate     time.Time `json:"eventDate"`
	EventLocation string    `json:"eventLocation"`

	ProviderPlanTier enums.ProviderPlanTier `json:"providerPlanTier"`

	ClientSignedAt   *time.Time `json:"clientSignedAt,omitempty"`
	ProviderSignedAt *time.Time `json:"providerSignedAt,omitempty"`

	DisputeReason   *string    `json:"disputeReason,omitempty"`
	DisputeOpenedAt *time.Time `json:"disputeOpenedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HistoryEntryDTO is one row of the append-only trail.
type HistoryEntryDTO struct {
	ID          uuid.UUID            `json:"id"`
	Action      enums.ContractAction `json:"action"`
	PerformedBy uuid.UUID            `json:"performedBy"`

	OldStatus       enums.ContractStatus `json:"oldStatus"`
	NewStatus       enums.ContractStatus `json:"newStatus"`
	OldStatusLegacy string               `json:"oldStatusLegacy"`
	NewStatusLegacy string               `json:"newStatusLegacy"`

	OldValueCents int64 `json:"oldValueCents"`
	NewValueCents int64 `json:"newValueCents"`

	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ToDTO converts a contract row to its API shape.
func ToDTO(contract *models.Contract) ContractDTO {
	return ContractDTO{
		ID:                 contract.ID,
		ClientID:           contract.ClientID,
		ProviderID:         contract.ProviderID,
		StatusMaster:       contract.StatusMaster,
		Status:             contract.StatusMaster.LegacyStatus(),
		StatusV1:           contract.StatusMaster.LegacyStatus(),
		CurrentValueCents:  contract.CurrentValueCents,
		OriginalValueCents: contract.OriginalValueCents,
		EventName:          contract.EventName,
		EventDate:          contract.EventDate,
		EventLocation:      contract.EventLocation,
		ProviderPlanTier:   contract.ProviderPlanTier,
		ClientSignedAt:     contract.ClientSignedAt,
		ProviderSignedAt:   contract.ProviderSignedAt,
		DisputeReason:      contract.DisputeReason,
		DisputeOpenedAt:    contract.DisputeOpenedAt,
		CreatedAt:          contract.CreatedAt,
		UpdatedAt:          contract.UpdatedAt,
	}
}

// ToDTOs converts a page of contracts.
func ToDTOs(contracts []models.Contract) []ContractDTO {
	out := make([]ContractDTO, 0, len(contracts))
	for i := range contracts {
		out = append(out, ToDTO(&contracts[i]))
	}
	return out
}

// HistoryToDTO converts a history row to its API shape.
func HistoryToDTO(entry *models.ContractHistoryEntry) HistoryEntryDTO {
	return HistoryEntryDTO{
		ID:              entry.ID,
		Action:          entry.Action,
		PerformedBy:     entry.PerformedBy,
		OldStatus:       entry.OldStatus,
		NewStatus:       entry.NewStatus,
		OldStatusLegacy: entry.OldStatus.LegacyStatus(),
		NewStatusLegacy: entry.NewStatus.LegacyStatus(),
		OldValueCents:   entry.OldValueCents,
		NewValueCents:   entry.NewValueCents,
		Metadata:        entry.Metadata,
		CreatedAt:       entry.CreatedAt,
	}
}

// HistoryToDTOs converts the full trail.
func HistoryToDTOs(entries []models.ContractHistoryEntry) []HistoryEntryDTO {
	out := make([]HistoryEntryDTO, 0, len(entries))
	for i := range entries {
		out = append(out, HistoryToDTO(&entries[i]))
	}
	return out
}
