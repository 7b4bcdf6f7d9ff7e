package enums

import "fmt"

// ProviderPlanTier selects the platform fee schedule applied to a provider.
type ProviderPlanTier string

const (
	PlanTierStandard ProviderPlanTier = "standard"
	PlanTierPro      ProviderPlanTier = "pro"
)

var validPlanTiers = []ProviderPlanTier{
	PlanTierStandard,
	PlanTierPro,
}

// IsValid reports whether the value is a known ProviderPlanTier.
func (t ProviderPlanTier) IsValid() bool {
	for _, candidate := range validPlanTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseProviderPlanTier converts raw input into ProviderPlanTier.
func ParseProviderPlanTier(value string) (ProviderPlanTier, error) {
	for _, candidate := range validPlanTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider plan tier %q", value)
}
