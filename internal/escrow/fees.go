package escrow

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigbroker-backend/pkg/config"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
)

// FeeSplit is the division of a charged contract value between the provider
// and the platform. ProviderAmountCents + PlatformFeeCents always equals the
// charged value.
type FeeSplit struct {
	ValueCents          int64
	ProviderAmountCents int64
	PlatformFeeCents    int64
	FeeBPS              int64
}

// FeePolicy resolves the platform fee in basis points per provider plan tier.
type FeePolicy struct {
	standardBPS int64
	proBPS      int64
}

// NewFeePolicy validates the configured basis points and builds a policy.
func NewFeePolicy(cfg config.FeesConfig) (*FeePolicy, error) {
	for name, bps := range map[string]int64{"standard": cfg.StandardBPS, "pro": cfg.ProBPS} {
		if bps < 0 || bps >= 10000 {
			return nil, fmt.Errorf("%s fee bps out of range: %d", name, bps)
		}
	}
	return &FeePolicy{
		standardBPS: cfg.StandardBPS,
		proBPS:      cfg.ProBPS,
	}, nil
}

// BPSFor returns the basis points applied to the given plan tier.
func (p *FeePolicy) BPSFor(tier enums.ProviderPlanTier) int64 {
	if tier == enums.PlanTierPro {
		return p.proBPS
	}
	return p.standardBPS
}

// Split computes the provider/platform division of the charged value. The fee
// is rounded half-up to whole cents and the provider amount absorbs the
// remainder so the split always sums back to the value.
func (p *FeePolicy) Split(valueCents int64, tier enums.ProviderPlanTier) (FeeSplit, error) {
	if valueCents <= 0 {
		return FeeSplit{}, fmt.Errorf("value must be positive, got %d", valueCents)
	}
	bps := p.BPSFor(tier)

	fee := decimal.NewFromInt(valueCents).
		Mul(decimal.NewFromInt(bps)).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()

	return FeeSplit{
		ValueCents:          valueCents,
		ProviderAmountCents: valueCents - fee,
		PlatformFeeCents:    fee,
		FeeBPS:              bps,
	}, nil
}
