package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a contract-scoped peer-to-peer message. Body is stored after the
// gatekeeper's masking pass; OriginalBody keeps the raw text for moderation
// review only when the message was flagged.
type Message struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContractID uuid.UUID `gorm:"column:contract_id;type:uuid;not null;index"`
	SenderID   uuid.UUID `gorm:"column:sender_id;type:uuid;not null;index"`
	ReceiverID uuid.UUID `gorm:"column:receiver_id;type:uuid;not null"`

	Body         string  `gorm:"column:body;type:text;not null"`
	OriginalBody *string `gorm:"column:original_body;type:text"`
	Blocked      bool    `gorm:"column:blocked;not null;default:false"`
	BlockReason  *string `gorm:"column:block_reason;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
