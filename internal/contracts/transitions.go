package contracts

import (
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
)

// transitionRule describes one edge of the contract lifecycle. Target equal to
// the source status means the action mutates the row (signatures) without
// moving the state machine.
type transitionRule struct {
	Target        enums.ContractStatus
	AllowedRoles  []enums.PartyRole
	RequiresValue bool
}

// roleTargets lets one action land on different statuses per actor role.
// CONFIRM_COMPLETION is the only such action: the provider marks work done,
// the client's confirmation releases the funds.
type roleTarget struct {
	Role   enums.PartyRole
	Target enums.ContractStatus
}

var confirmCompletionTargets = map[enums.ContractStatus][]roleTarget{
	enums.ContractStatusInExecution: {
		{Role: enums.PartyRoleProvider, Target: enums.ContractStatusCompleted},
		{Role: enums.PartyRoleClient, Target: enums.ContractStatusReleased},
	},
	enums.ContractStatusCompleted: {
		{Role: enums.PartyRoleClient, Target: enums.ContractStatusReleased},
	},
}

var (
	eitherParty  = []enums.PartyRole{enums.PartyRoleClient, enums.PartyRoleProvider}
	clientOnly   = []enums.PartyRole{enums.PartyRoleClient}
	providerOnly = []enums.PartyRole{enums.PartyRoleProvider}
	mediatorOnly = []enums.PartyRole{enums.PartyRoleMediator}
	anyone       = []enums.PartyRole{enums.PartyRoleClient, enums.PartyRoleProvider, enums.PartyRoleMediator}
)

// The client proposes and counters; the provider accepts, rejects, or approves
// a counter. Mediation and cancellation stay open from every non-terminal
// status, and execution can start from any point past the escrow payment but
// never before funds are captured.
var transitionTable = map[enums.ContractStatus]map[enums.ContractAction]transitionRule{
	enums.ContractStatusProposed: {
		enums.ActionAccept: {
			Target:       enums.ContractStatusAwaitingPayment,
			AllowedRoles: providerOnly,
		},
		enums.ActionReject: {
			Target:       enums.ContractStatusCancelled,
			AllowedRoles: providerOnly,
		},
		enums.ActionCounter: {
			Target:        enums.ContractStatusCountered,
			AllowedRoles:  clientOnly,
			RequiresValue: true,
		},
		enums.ActionOpenMediation: {
			Target:       enums.ContractStatusMediation,
			AllowedRoles: eitherParty,
		},
		enums.ActionCancel: {
			Target:       enums.ContractStatusCancelled,
			AllowedRoles: eitherParty,
		},
	},
	enums.ContractStatusCountered: {
		enums.ActionAccept: {
			Target:       enums.ContractStatusAwaitingPayment,
			AllowedRoles: providerOnly,
		},
		enums.ActionReject: {
			Target:       enums.ContractStatusCancelled,
			AllowedRoles: providerOnly,
		},
		enums.ActionCounter: {
			Target:        enums.ContractStatusCountered,
			AllowedRoles:  clientOnly,
			RequiresValue: true,
		},
		enums.ActionApproveCounter: {
			Target:       enums.ContractStatusAwaitingPayment,
			AllowedRoles: providerOnly,
		},
		enums.ActionOpenMediation: {
			Target:       enums.ContractStatusMediation,
			AllowedRoles: eitherParty,
		},
		enums.ActionCancel: {
			Target:       enums.ContractStatusCancelled,
			AllowedRoles: eitherParty,
		},
	},
	enums.ContractStatusAwaitingPayment: {
		enums.ActionPay: {
			Target:       enums.ContractStatusPaidEscrow,
			AllowedRoles: clientOnly,
		},
		enums.ActionSign: {
			Target:       enums.ContractStatusAwaitingPayment,
			AllowedRoles: eitherParty,
		},
		enums.ActionOpenMediation: {
			Target:       enums.ContractStatusMediation,
			AllowedRoles: eitherParty,
		},
		enums.ActionCancel: {
			Target:       enums.ContractStatusCancelled,
			AllowedRoles: eitherParty,
		},
	},
	enums.ContractStatusPaidEscrow: {
		enums.ActionSign: {
			Target:       enums.ContractStatusPaidEscrow,
			AllowedRoles: eitherParty,
		},
		enums.ActionStartExecution: {
			Target:       enums.ContractStatusInExecution,
			AllowedRoles: eitherParty,
		},
		enums.ActionOpenMediation: {
			Target:       enums.ContractStatusMediation,
			AllowedRoles: eitherParty,
		},
		enums.ActionCancel: {
			Target:       enums.ContractStatusCancelled,
			AllowedRoles: eitherParty,
		},
	},
	enums.ContractStatusInExecution: {
		enums.ActionStartExecution: {
			Target:       enums.ContractStatusInExecution,
			AllowedRoles: eitherParty,
		},
		enums.ActionConfirmCompletion: {
			AllowedRoles: eitherParty,
		},
		enums.ActionOpenMediation: {
			Target:       enums.ContractStatusMediation,
			AllowedRoles: eitherParty,
		},
		enums.ActionCancel: {
			Target:       enums.ContractStatusCancelled,
			AllowedRoles: eitherParty,
		},
	},
	enums.ContractStatusCompleted: {
		enums.ActionStartExecution: {
			Target:       enums.ContractStatusInExecution,
			AllowedRoles: eitherParty,
		},
		enums.ActionConfirmCompletion: {
			AllowedRoles: clientOnly,
		},
		enums.ActionOpenMediation: {
			Target:       enums.ContractStatusMediation,
			AllowedRoles: eitherParty,
		},
		enums.ActionCancel: {
			Target:       enums.ContractStatusCancelled,
			AllowedRoles: eitherParty,
		},
	},
	enums.ContractStatusMediation: {
		enums.ActionResolveRelease: {
			Target:       enums.ContractStatusReleased,
			AllowedRoles: mediatorOnly,
		},
		enums.ActionCancel: {
			Target:       enums.ContractStatusCancelled,
			AllowedRoles: anyone,
		},
	},
}

// resolveTransition returns the target status for the action, or false when
// the action is not legal from the current status for the given role.
func resolveTransition(status enums.ContractStatus, action enums.ContractAction, role enums.PartyRole) (enums.ContractStatus, bool) {
	rules, ok := transitionTable[status]
	if !ok {
		return "", false
	}
	rule, ok := rules[action]
	if !ok {
		return "", false
	}
	if !roleAllowed(rule.AllowedRoles, role) {
		return "", false
	}

	if action == enums.ActionConfirmCompletion {
		for _, rt := range confirmCompletionTargets[status] {
			if rt.Role == role {
				return rt.Target, true
			}
		}
		return "", false
	}
	return rule.Target, true
}

// actionAllowedFromStatus reports whether the action is wired from the status
// for any role. Used to distinguish a state conflict from a role violation.
func actionAllowedFromStatus(status enums.ContractStatus, action enums.ContractAction) bool {
	rules, ok := transitionTable[status]
	if !ok {
		return false
	}
	_, ok = rules[action]
	return ok
}

// actionRequiresValue reports whether the action must carry a new value.
func actionRequiresValue(status enums.ContractStatus, action enums.ContractAction) bool {
	if rules, ok := transitionTable[status]; ok {
		if rule, ok := rules[action]; ok {
			return rule.RequiresValue
		}
	}
	return false
}

func roleAllowed(allowed []enums.PartyRole, role enums.PartyRole) bool {
	for _, candidate := range allowed {
		if candidate == role {
			return true
		}
	}
	return false
}
