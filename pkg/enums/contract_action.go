package enums

import "fmt"

// ContractAction enumerates every mutation the transition authority accepts.
type ContractAction string

const (
	ActionAccept            ContractAction = "ACCEPT"
	ActionReject            ContractAction = "REJECT"
	ActionCounter           ContractAction = "COUNTER"
	ActionApproveCounter    ContractAction = "APPROVE_COUNTER"
	ActionPay               ContractAction = "PAY"
	ActionSign              ContractAction = "SIGN"
	ActionStartExecution    ContractAction = "START_EXECUTION"
	ActionConfirmCompletion ContractAction = "CONFIRM_COMPLETION"
	ActionOpenMediation     ContractAction = "OPEN_MEDIATION"
	ActionResolveRelease    ContractAction = "RESOLVE_RELEASE"
	ActionCancel            ContractAction = "CANCEL"
)

var validContractActions = []ContractAction{
	ActionAccept,
	ActionReject,
	ActionCounter,
	ActionApproveCounter,
	ActionPay,
	ActionSign,
	ActionStartExecution,
	ActionConfirmCompletion,
	ActionOpenMediation,
	ActionResolveRelease,
	ActionCancel,
}

// IsValid reports whether the value is a known ContractAction.
func (a ContractAction) IsValid() bool {
	for _, candidate := range validContractActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseContractAction converts raw input into a ContractAction.
func ParseContractAction(value string) (ContractAction, error) {
	for _, candidate := range validContractActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid contract action %q", value)
}
