package enums

import "fmt"

// ContractStatus is the canonical booking lifecycle state. Legacy readers still
// expect the Portuguese status strings the platform shipped with, so DTOs mirror
// the canonical value through LegacyStatus — the mirrors are never written
// independently.
type ContractStatus string

const (
	ContractStatusProposed        ContractStatus = "PROPOSED"
	ContractStatusCountered       ContractStatus = "COUNTERED"
	ContractStatusAwaitingPayment ContractStatus = "AWAITING_PAYMENT"
	ContractStatusPaidEscrow      ContractStatus = "PAID_ESCROW"
	ContractStatusInExecution     ContractStatus = "IN_EXECUTION"
	ContractStatusCompleted       ContractStatus = "COMPLETED"
	ContractStatusReleased        ContractStatus = "RELEASED"
	ContractStatusMediation       ContractStatus = "MEDIATION"
	ContractStatusCancelled       ContractStatus = "CANCELLED"
)

var validContractStatuses = []ContractStatus{
	ContractStatusProposed,
	ContractStatusCountered,
	ContractStatusAwaitingPayment,
	ContractStatusPaidEscrow,
	ContractStatusInExecution,
	ContractStatusCompleted,
	ContractStatusReleased,
	ContractStatusMediation,
	ContractStatusCancelled,
}

var legacyContractStatuses = map[ContractStatus]string{
	ContractStatusProposed:        "PROPOSTA",
	ContractStatusCountered:       "CONTRAPROPOSTA",
	ContractStatusAwaitingPayment: "AGUARDANDO_PAGAMENTO",
	ContractStatusPaidEscrow:      "PAGO_ESCROW",
	ContractStatusInExecution:     "EM_EXECUCAO",
	ContractStatusCompleted:       "CONCLUIDO",
	ContractStatusReleased:        "LIBERADO_FINANCEIRO",
	ContractStatusMediation:       "MEDIACAO",
	ContractStatusCancelled:       "CANCELADO",
}

// String implements fmt.Stringer.
func (s ContractStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ContractStatus.
func (s ContractStatus) IsValid() bool {
	for _, candidate := range validContractStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s ContractStatus) IsTerminal() bool {
	return s == ContractStatusReleased || s == ContractStatusCancelled
}

// LegacyStatus returns the Portuguese status string older readers expect.
func (s ContractStatus) LegacyStatus() string {
	if legacy, ok := legacyContractStatuses[s]; ok {
		return legacy
	}
	return string(s)
}

// ParseContractStatus converts raw input into a ContractStatus.
func ParseContractStatus(value string) (ContractStatus, error) {
	for _, candidate := range validContractStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid contract status %q", value)
}
