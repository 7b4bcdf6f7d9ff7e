package enums

import "fmt"

// PartyRole identifies which side of a contract an actor is on.
type PartyRole string

const (
	PartyRoleClient   PartyRole = "client"
	PartyRoleProvider PartyRole = "provider"
	PartyRoleMediator PartyRole = "mediator"
)

var validPartyRoles = []PartyRole{
	PartyRoleClient,
	PartyRoleProvider,
	PartyRoleMediator,
}

// String implements fmt.Stringer.
func (r PartyRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known PartyRole.
func (r PartyRole) IsValid() bool {
	for _, candidate := range validPartyRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParsePartyRole converts raw input into a PartyRole.
func ParsePartyRole(value string) (PartyRole, error) {
	for _, candidate := range validPartyRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid party role %q", value)
}
