package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox/payloads"
)

type fakeWriter struct {
	rows []SettlementFactRow
	err  error
}

func (f *fakeWriter) Insert(ctx context.Context, row SettlementFactRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

func newTestRouter(t *testing.T, writer *fakeWriter) *Router {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	router, err := NewRouter(writer, logg)
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}
	return router
}

func envelopeFor(t *testing.T, eventType enums.OutboxEventType, payload any) Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    data,
	}
}

func TestRouter_EscrowChargedRow(t *testing.T) {
	writer := &fakeWriter{}
	router := newTestRouter(t, writer)

	event := payloads.EscrowChargedEvent{
		ContractID:          uuid.New(),
		ClientID:            uuid.New(),
		ProviderID:          uuid.New(),
		ValueCents:          100000,
		ProviderAmountCents: 90000,
		PlatformFeeCents:    10000,
	}
	if err := router.Handle(context.Background(), envelopeFor(t, enums.EventEscrowCharged, event)); err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	if len(writer.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(writer.rows))
	}
	row := writer.rows[0]
	if row.Direction != DirectionCharge {
		t.Fatalf("direction = %s", row.Direction)
	}
	if row.GrossCents == nil || *row.GrossCents != 100000 {
		t.Fatalf("gross = %v", row.GrossCents)
	}
	if row.FeeCents == nil || *row.FeeCents != 10000 {
		t.Fatalf("fee = %v", row.FeeCents)
	}
	if row.NetCents == nil || *row.NetCents != 90000 {
		t.Fatalf("net = %v", row.NetCents)
	}
	if row.ContractID == nil || *row.ContractID != event.ContractID.String() {
		t.Fatalf("contract id = %v", row.ContractID)
	}
	if !row.Payload.Valid {
		t.Fatal("payload json missing")
	}
}

func TestRouter_WithdrawalSettledRow(t *testing.T) {
	writer := &fakeWriter{}
	router := newTestRouter(t, writer)

	event := payloads.WithdrawalSettledEvent{
		WithdrawalID: uuid.New(),
		UserID:       uuid.New(),
		AmountCents:  30000,
		Status:       enums.WithdrawalStatusFailed,
		SettledAt:    time.Now(),
	}
	if err := router.Handle(context.Background(), envelopeFor(t, enums.EventWithdrawalSettled, event)); err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	row := writer.rows[0]
	if row.Direction != DirectionPayout {
		t.Fatalf("direction = %s", row.Direction)
	}
	if row.WithdrawalID == nil || *row.WithdrawalID != event.WithdrawalID.String() {
		t.Fatalf("withdrawal id = %v", row.WithdrawalID)
	}
	if row.Status == nil || *row.Status != string(enums.WithdrawalStatusFailed) {
		t.Fatalf("status = %v", row.Status)
	}
}

func TestRouter_RefundAndReleaseRows(t *testing.T) {
	writer := &fakeWriter{}
	router := newTestRouter(t, writer)

	release := payloads.EscrowReleasedEvent{ContractID: uuid.New(), ProviderID: uuid.New(), ProviderAmountCents: 90000}
	if err := router.Handle(context.Background(), envelopeFor(t, enums.EventEscrowReleased, release)); err != nil {
		t.Fatalf("release Handle error: %v", err)
	}
	refund := payloads.EscrowRefundedEvent{ContractID: uuid.New(), ClientID: uuid.New(), ValueCents: 100000}
	if err := router.Handle(context.Background(), envelopeFor(t, enums.EventEscrowRefunded, refund)); err != nil {
		t.Fatalf("refund Handle error: %v", err)
	}

	if writer.rows[0].Direction != DirectionRelease || writer.rows[1].Direction != DirectionRefund {
		t.Fatalf("directions = %s, %s", writer.rows[0].Direction, writer.rows[1].Direction)
	}
}

func TestRouter_UnsupportedEvent(t *testing.T) {
	router := newTestRouter(t, &fakeWriter{})

	if router.Supports(enums.EventContractCreated) {
		t.Fatal("contract_created must not produce settlement rows")
	}
	err := router.Handle(context.Background(), envelopeFor(t, enums.EventContractCreated, map[string]any{"x": 1}))
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported event error, got %v", err)
	}
}

func TestRouter_EmptyPayload(t *testing.T) {
	router := newTestRouter(t, &fakeWriter{})
	err := router.Handle(context.Background(), Envelope{EventID: uuid.NewString(), EventType: enums.EventEscrowCharged})
	if err == nil {
		t.Fatal("expected error for empty payload")
	}
}
