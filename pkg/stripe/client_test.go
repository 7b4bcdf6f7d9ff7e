package stripe

import (
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
)

func TestMapStripeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want pkgerrors.Code
	}{
		{
			name: "card error maps to payment declined",
			err:  &stripe.Error{Type: stripe.ErrorTypeCard},
			want: pkgerrors.CodePaymentDeclined,
		},
		{
			name: "invalid request maps to validation",
			err:  &stripe.Error{Type: stripe.ErrorTypeInvalidRequest},
			want: pkgerrors.CodeValidation,
		},
		{
			name: "authentication error maps to unauthorized",
			err:  &stripe.Error{Type: "authentication_error"},
			want: pkgerrors.CodeUnauthorized,
		},
		{
			name: "api error falls through to dependency",
			err:  &stripe.Error{Type: stripe.ErrorTypeAPI},
			want: pkgerrors.CodeDependency,
		},
		{
			name: "plain error falls through to dependency",
			err:  errors.New("connection reset"),
			want: pkgerrors.CodeDependency,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapStripeError(tc.err); !pkgerrors.HasCode(got, tc.want) {
				t.Fatalf("mapStripeError(%v) = %v, want code %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(""); err != nil || env != testEnv {
		t.Fatalf("empty env = %q, %v, want test", env, err)
	}
	if env, err := normalizeEnv(" LIVE "); err != nil || env != liveEnv {
		t.Fatalf("live env = %q, %v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatal("unknown env must be rejected")
	}
}

func TestValidateAPIKey(t *testing.T) {
	if err := validateAPIKey(testEnv, "sk_test_abc"); err != nil {
		t.Fatalf("test key rejected: %v", err)
	}
	if err := validateAPIKey(testEnv, "sk_live_abc"); err == nil {
		t.Fatal("live key must be rejected in test env")
	}
	if err := validateAPIKey(liveEnv, "rk_live_abc"); err != nil {
		t.Fatalf("live key rejected: %v", err)
	}
}
