package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
)

func TestToDTO_LegacyStatusMirrors(t *testing.T) {
	statuses := []enums.ContractStatus{
		enums.ContractStatusProposed,
		enums.ContractStatusCountered,
		enums.ContractStatusAwaitingPayment,
		enums.ContractStatusPaidEscrow,
		enums.ContractStatusInExecution,
		enums.ContractStatusCompleted,
		enums.ContractStatusReleased,
		enums.ContractStatusMediation,
		enums.ContractStatusCancelled,
	}

	for _, status := range statuses {
		contract := &models.Contract{
			ID:           uuid.New(),
			ClientID:     uuid.New(),
			ProviderID:   uuid.New(),
			StatusMaster: status,
		}
		dto := ToDTO(contract)

		if dto.StatusMaster != status {
			t.Fatalf("StatusMaster = %s, want %s", dto.StatusMaster, status)
		}
		want := status.LegacyStatus()
		if dto.Status != want {
			t.Fatalf("%s: Status mirror = %q, want %q", status, dto.Status, want)
		}
		if dto.StatusV1 != want {
			t.Fatalf("%s: StatusV1 mirror = %q, want %q", status, dto.StatusV1, want)
		}
	}
}

func TestToDTO_SerializesBothMirrors(t *testing.T) {
	contract := &models.Contract{
		ID:           uuid.New(),
		ClientID:     uuid.New(),
		ProviderID:   uuid.New(),
		StatusMaster: enums.ContractStatusPaidEscrow,
		EventDate:    time.Now(),
	}

	raw, err := json.Marshal(ToDTO(contract))
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	if payload["statusMaster"] != "PAID_ESCROW" {
		t.Fatalf("statusMaster = %v", payload["statusMaster"])
	}
	if payload["status"] != "PAGO_ESCROW" {
		t.Fatalf("status = %v", payload["status"])
	}
	if payload["statusV1"] != "PAGO_ESCROW" {
		t.Fatalf("statusV1 = %v", payload["statusV1"])
	}
}
