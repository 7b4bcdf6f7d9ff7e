package enums

import "fmt"

// LedgerEntryKind maps to the ledger_entry_kind enum in Postgres.
type LedgerEntryKind string

const (
	LedgerEntryKindDebit   LedgerEntryKind = "debit"
	LedgerEntryKindHold    LedgerEntryKind = "hold"
	LedgerEntryKindRelease LedgerEntryKind = "release"
	LedgerEntryKindCredit  LedgerEntryKind = "credit"
)

var validLedgerEntryKinds = []LedgerEntryKind{
	LedgerEntryKindDebit,
	LedgerEntryKindHold,
	LedgerEntryKindRelease,
	LedgerEntryKindCredit,
}

// IsValid reports whether the value matches the canonical ledger entry kind enum.
func (k LedgerEntryKind) IsValid() bool {
	for _, candidate := range validLedgerEntryKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseLedgerEntryKind converts raw input into LedgerEntryKind.
func ParseLedgerEntryKind(value string) (LedgerEntryKind, error) {
	for _, candidate := range validLedgerEntryKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry kind %q", value)
}

// LedgerEntryStatus tracks settlement of an individual entry.
type LedgerEntryStatus string

const (
	LedgerEntryStatusPending   LedgerEntryStatus = "pending"
	LedgerEntryStatusHeld      LedgerEntryStatus = "held"
	LedgerEntryStatusCompleted LedgerEntryStatus = "completed"
	LedgerEntryStatusFailed    LedgerEntryStatus = "failed"
)

var validLedgerEntryStatuses = []LedgerEntryStatus{
	LedgerEntryStatusPending,
	LedgerEntryStatusHeld,
	LedgerEntryStatusCompleted,
	LedgerEntryStatusFailed,
}

// IsValid reports whether the value is a known LedgerEntryStatus.
func (s LedgerEntryStatus) IsValid() bool {
	for _, candidate := range validLedgerEntryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseLedgerEntryStatus converts raw input into LedgerEntryStatus.
func ParseLedgerEntryStatus(value string) (LedgerEntryStatus, error) {
	for _, candidate := range validLedgerEntryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry status %q", value)
}
