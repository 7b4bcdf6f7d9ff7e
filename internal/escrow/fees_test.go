package escrow

import (
	"testing"

	"github.com/angelmondragon/gigbroker-backend/pkg/config"
	"github.com/angelmondragon/gigbroker-backend/pkg/enums"
)

func testFeePolicy(t *testing.T) *FeePolicy {
	t.Helper()
	policy, err := NewFeePolicy(config.FeesConfig{StandardBPS: 1000, ProBPS: 500})
	if err != nil {
		t.Fatalf("unexpected policy error: %v", err)
	}
	return policy
}

func TestFeePolicy_Split(t *testing.T) {
	policy := testFeePolicy(t)

	tests := []struct {
		name         string
		valueCents   int64
		tier         enums.ProviderPlanTier
		wantFee      int64
		wantProvider int64
	}{
		{
			name:         "standard tier 10 percent",
			valueCents:   100000,
			tier:         enums.PlanTierStandard,
			wantFee:      10000,
			wantProvider: 90000,
		},
		{
			name:         "pro tier 5 percent",
			valueCents:   100000,
			tier:         enums.PlanTierPro,
			wantFee:      5000,
			wantProvider: 95000,
		},
		{
			name:         "odd value rounds half up",
			valueCents:   99999,
			tier:         enums.PlanTierStandard,
			wantFee:      10000,
			wantProvider: 89999,
		},
		{
			name:         "small value",
			valueCents:   1,
			tier:         enums.PlanTierStandard,
			wantFee:      0,
			wantProvider: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			split, err := policy.Split(tc.valueCents, tc.tier)
			if err != nil {
				t.Fatalf("Split error: %v", err)
			}
			if split.PlatformFeeCents != tc.wantFee {
				t.Fatalf("fee = %d, want %d", split.PlatformFeeCents, tc.wantFee)
			}
			if split.ProviderAmountCents != tc.wantProvider {
				t.Fatalf("provider = %d, want %d", split.ProviderAmountCents, tc.wantProvider)
			}
			if split.ProviderAmountCents+split.PlatformFeeCents != tc.valueCents {
				t.Fatalf("split does not conserve value: %+v", split)
			}
		})
	}
}

func TestFeePolicy_SplitRejectsNonPositive(t *testing.T) {
	policy := testFeePolicy(t)
	for _, value := range []int64{0, -1} {
		if _, err := policy.Split(value, enums.PlanTierStandard); err == nil {
			t.Fatalf("expected error for value %d", value)
		}
	}
}

func TestNewFeePolicyValidation(t *testing.T) {
	if _, err := NewFeePolicy(config.FeesConfig{StandardBPS: 10000, ProBPS: 500}); err == nil {
		t.Fatal("expected error for bps >= 10000")
	}
	if _, err := NewFeePolicy(config.FeesConfig{StandardBPS: -1, ProBPS: 500}); err == nil {
		t.Fatal("expected error for negative bps")
	}
}
