package messaging

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigbroker-backend/internal/contracts"
	"github.com/angelmondragon/gigbroker-backend/pkg/db/models"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox"
	"github.com/angelmondragon/gigbroker-backend/pkg/pagination"
)

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeMessageRepo struct {
	messages []*models.Message
}

func (f *fakeMessageRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeMessageRepo) Create(ctx context.Context, message *models.Message) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeMessageRepo) ListByContractID(ctx context.Context, contractID uuid.UUID, params pagination.Params) ([]models.Message, error) {
	var out []models.Message
	for _, message := range f.messages {
		if message.ContractID == contractID {
			out = append(out, *message)
		}
	}
	return out, nil
}

type fakeStandingRepo struct {
	standings map[uuid.UUID]*models.SenderStanding
}

func newFakeStandingRepo() *fakeStandingRepo {
	return &fakeStandingRepo{standings: make(map[uuid.UUID]*models.SenderStanding)}
}

func (f *fakeStandingRepo) WithTx(tx *gorm.DB) StandingRepository { return f }

func (f *fakeStandingRepo) Find(ctx context.Context, senderID uuid.UUID) (*models.SenderStanding, error) {
	if standing, ok := f.standings[senderID]; ok {
		clone := *standing
		return &clone, nil
	}
	return &models.SenderStanding{SenderID: senderID}, nil
}

func (f *fakeStandingRepo) Upsert(ctx context.Context, standing *models.SenderStanding) error {
	clone := *standing
	f.standings[standing.SenderID] = &clone
	return nil
}

type fakeContractRepo struct {
	contracts map[uuid.UUID]*models.Contract
}

func newFakeContractRepo() *fakeContractRepo {
	return &fakeContractRepo{contracts: make(map[uuid.UUID]*models.Contract)}
}

func (f *fakeContractRepo) WithTx(tx *gorm.DB) contracts.Repository { return f }

func (f *fakeContractRepo) Create(ctx context.Context, contract *models.Contract) error {
	f.contracts[contract.ID] = contract
	return nil
}

func (f *fakeContractRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	contract, ok := f.contracts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return contract, nil
}

func (f *fakeContractRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeContractRepo) Save(ctx context.Context, contract *models.Contract) error {
	f.contracts[contract.ID] = contract
	return nil
}

func (f *fakeContractRepo) ListByParticipant(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Contract, error) {
	return nil, nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type harness struct {
	svc       Service
	repo      *fakeMessageRepo
	standings *fakeStandingRepo
	contracts *fakeContractRepo
	emitter   *fakeEmitter
	contract  *models.Contract
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:      &fakeMessageRepo{},
		standings: newFakeStandingRepo(),
		contracts: newFakeContractRepo(),
		emitter:   &fakeEmitter{},
	}
	h.contract = &models.Contract{
		ID:           uuid.New(),
		ClientID:     uuid.New(),
		ProviderID:   uuid.New(),
		StatusMaster: enums.ContractStatusPaidEscrow,
	}
	h.contracts.contracts[h.contract.ID] = h.contract

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(&fakeTxRunner{}, h.repo, h.standings, h.contracts, h.emitter, nil, logg)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	h.svc = svc
	return h
}

func TestService_SendCleanMessage(t *testing.T) {
	h := newHarness(t)

	message, err := h.svc.Send(context.Background(), SendInput{
		ContractID: h.contract.ID,
		SenderID:   h.contract.ClientID,
		Body:       "can you start at 8pm instead?",
	})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if message.Body != "can you start at 8pm instead?" {
		t.Fatalf("clean body altered: %q", message.Body)
	}
	if message.OriginalBody != nil || message.Blocked {
		t.Fatalf("clean message flagged: %+v", message)
	}
	if message.ReceiverID != h.contract.ProviderID {
		t.Fatalf("receiver = %s, want provider", message.ReceiverID)
	}
}

func TestService_SendMasksAndBlocksFirstViolation(t *testing.T) {
	h := newHarness(t)

	message, err := h.svc.Send(context.Background(), SendInput{
		ContractID: h.contract.ID,
		SenderID:   h.contract.ProviderID,
		Body:       "call me at 1198765432 to talk details",
	})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if message.Body == "call me at 1198765432 to talk details" {
		t.Fatal("contact info not masked")
	}
	if message.OriginalBody == nil || *message.OriginalBody != "call me at 1198765432 to talk details" {
		t.Fatalf("original body not retained: %+v", message.OriginalBody)
	}
	if !message.Blocked {
		t.Fatal("flagged message must be stored blocked")
	}
	if message.BlockReason == nil || *message.BlockReason == "" {
		t.Fatalf("block reason not recorded: %+v", message.BlockReason)
	}
	if message.ReceiverID != h.contract.ClientID {
		t.Fatalf("receiver = %s, want client", message.ReceiverID)
	}

	standing := h.standings.standings[h.contract.ProviderID]
	if standing == nil || standing.WarningCount != 1 {
		t.Fatalf("warning not recorded: %+v", standing)
	}
	// One warning is not yet a suspension.
	if standing.BlockedUntil != nil {
		t.Fatalf("first violation must not suspend: %+v", standing)
	}
	if len(h.emitter.events) != 1 || h.emitter.events[0].EventType != enums.EventMessageBlocked {
		t.Fatalf("expected message_blocked event, got %+v", h.emitter.events)
	}
}

func TestService_SecondViolationSuspends(t *testing.T) {
	h := newHarness(t)
	sender := h.contract.ClientID

	if _, err := h.svc.Send(context.Background(), SendInput{
		ContractID: h.contract.ID,
		SenderID:   sender,
		Body:       "my email is test@example.com",
	}); err != nil {
		t.Fatalf("first violation send error: %v", err)
	}

	_, err := h.svc.Send(context.Background(), SendInput{
		ContractID: h.contract.ID,
		SenderID:   sender,
		Body:       "fine, whatsapp me at 11987654321",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeTemporarilyBlocked) {
		t.Fatalf("expected temporarily blocked, got %v", err)
	}

	// The blocked row is still stored for moderation.
	blocked := h.repo.messages[len(h.repo.messages)-1]
	if !blocked.Blocked {
		t.Fatalf("second violation not stored as blocked: %+v", blocked)
	}

	standing := h.standings.standings[sender]
	if standing.WarningCount != 2 {
		t.Fatalf("warnings = %d, want 2", standing.WarningCount)
	}
	if standing.BlockedUntil == nil || !standing.BlockedUntil.After(time.Now()) {
		t.Fatalf("sender not suspended: %+v", standing)
	}

	// While suspended, even clean messages bounce.
	if _, err := h.svc.Send(context.Background(), SendInput{
		ContractID: h.contract.ID,
		SenderID:   sender,
		Body:       "sorry about that",
	}); !pkgerrors.HasCode(err, pkgerrors.CodeTemporarilyBlocked) {
		t.Fatalf("expected suspension to hold, got %v", err)
	}
}

func TestService_SuspensionExpires(t *testing.T) {
	h := newHarness(t)
	sender := h.contract.ClientID
	past := time.Now().Add(-time.Hour)
	h.standings.standings[sender] = &models.SenderStanding{
		SenderID:     sender,
		WarningCount: 1,
		BlockedUntil: &past,
	}

	if _, err := h.svc.Send(context.Background(), SendInput{
		ContractID: h.contract.ID,
		SenderID:   sender,
		Body:       "back again, all good",
	}); err != nil {
		t.Fatalf("expired suspension must allow sending, got %v", err)
	}
}

func TestService_SendCancelledContract(t *testing.T) {
	h := newHarness(t)
	h.contract.StatusMaster = enums.ContractStatusCancelled

	_, err := h.svc.Send(context.Background(), SendInput{
		ContractID: h.contract.ID,
		SenderID:   h.contract.ClientID,
		Body:       "hello?",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestService_SendStrangerForbidden(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Send(context.Background(), SendInput{
		ContractID: h.contract.ID,
		SenderID:   uuid.New(),
		Body:       "let me in",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestService_ListHidesOriginalBody(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.Send(context.Background(), SendInput{
		ContractID: h.contract.ID,
		SenderID:   h.contract.ClientID,
		Body:       "mail me at a@b.co",
	}); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	messages, err := h.svc.List(context.Background(), h.contract.ID, h.contract.ProviderID, pagination.Params{})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].OriginalBody != nil {
		t.Fatal("raw body leaked through List")
	}

	if _, err := h.svc.List(context.Background(), h.contract.ID, uuid.New(), pagination.Params{}); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for stranger, got %v", err)
	}
}
