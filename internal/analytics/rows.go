package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// Money direction of a settlement fact, from the platform's point of view.
const (
	DirectionCharge  = "charge"
	DirectionRelease = "release"
	DirectionRefund  = "refund"
	DirectionPayout  = "payout"
)

// SettlementFactRow mirrors the settlement_facts BigQuery schema. One row per
// money movement: escrow charges, releases, refunds, and payouts.
type SettlementFactRow struct {
	EventID      string             `bigquery:"event_id"`
	EventType    string             `bigquery:"event_type"`
	OccurredAt   time.Time          `bigquery:"occurred_at"`
	Direction    string             `bigquery:"direction"`
	ContractID   *string            `bigquery:"contract_id"`
	WithdrawalID *string            `bigquery:"withdrawal_id"`
	ClientID     *string            `bigquery:"client_id"`
	ProviderID   *string            `bigquery:"provider_id"`
	GrossCents   *int64             `bigquery:"gross_cents"`
	FeeCents     *int64             `bigquery:"fee_cents"`
	NetCents     *int64             `bigquery:"net_cents"`
	Status       *string            `bigquery:"status"`
	Payload      cbigquery.NullJSON `bigquery:"payload"`
}

func strPtr(v string) *string { return &v }

func int64Ptr(v int64) *int64 { return &v }

func encodeJSON(payload any) (cbigquery.NullJSON, error) {
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case json.RawMessage:
		if len(value) == 0 {
			return cbigquery.NullJSON{}, nil
		}
		return cbigquery.NullJSON{Valid: true, JSONVal: string(value)}, nil
	}

	marshaled, err := json.Marshal(payload)
	if err != nil {
		return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(marshaled)}, nil
}
