package messaging

import (
	"strings"
	"testing"
)

func TestFilterBody_CleanTextPasses(t *testing.T) {
	for _, body := range []string{
		"can you arrive an hour early for soundcheck?",
		"the venue holds 200 people",
		"set ends at 11pm sharp",
	} {
		result := filterBody(body)
		if result.Flagged() {
			t.Fatalf("clean body flagged: %q -> %+v", body, result.Violations)
		}
		if result.Masked != body {
			t.Fatalf("clean body altered: %q -> %q", body, result.Masked)
		}
	}
}

func TestFilterBody_MasksContactInfo(t *testing.T) {
	tests := []struct {
		name string
		body string
		want violation
	}{
		{
			name: "phone with separators",
			body: "call me at +55 (11) 98765-4321 tomorrow",
			want: violationPhone,
		},
		{
			name: "bare digits",
			body: "my number is 11987654321",
			want: violationPhone,
		},
		{
			name: "email",
			body: "send the setlist to dj.mike@example.com please",
			want: violationEmail,
		},
		{
			name: "url",
			body: "portfolio at https://mysite.example/work",
			want: violationURL,
		},
		{
			name: "www link",
			body: "see www.example.com for photos",
			want: violationURL,
		},
		{
			name: "social handle",
			body: "find me @dj_mike_oficial there",
			want: violationHandle,
		},
		{
			name: "messenger keyword",
			body: "lets move this to WhatsApp",
			want: violationHandle,
		},
		{
			name: "pix keyword",
			body: "just pay me by pix on the day",
			want: violationPayment,
		},
		{
			name: "paypal keyword",
			body: "PayPal works for the rest",
			want: violationPayment,
		},
		{
			name: "cash keyword",
			body: "bring the other half in cash",
			want: violationPayment,
		},
		{
			name: "transfer keyword",
			body: "a bank transfer would be easier",
			want: violationPayment,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := filterBody(tc.body)
			if !result.Flagged() {
				t.Fatalf("body not flagged: %q", tc.body)
			}
			var found bool
			for _, v := range result.Violations {
				if v == tc.want {
					found = true
				}
			}
			if !found {
				t.Fatalf("violations = %v, want %s", result.Violations, tc.want)
			}
			if !strings.Contains(result.Masked, maskToken) {
				t.Fatalf("masked body missing token: %q", result.Masked)
			}
		})
	}
}

func TestFilterBody_EmailMaskedBeforePhone(t *testing.T) {
	result := filterBody("reach me at band123456789@example.com")
	if !result.Flagged() {
		t.Fatal("body not flagged")
	}
	if strings.Contains(result.Masked, "example.com") {
		t.Fatalf("email leaked: %q", result.Masked)
	}
}

func TestViolationSummary_Dedupes(t *testing.T) {
	got := violationSummary([]violation{violationHandle, violationPhone, violationHandle})
	if got != "social_handle,phone_number" {
		t.Fatalf("summary = %q", got)
	}
}
