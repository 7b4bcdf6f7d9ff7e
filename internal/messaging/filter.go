package messaging

import (
	"regexp"
	"strings"
)

const maskToken = "[redacted]"

// violation names which rule a message body tripped.
type violation string

const (
	violationPhone   violation = "phone_number"
	violationEmail   violation = "email_address"
	violationURL     violation = "external_link"
	violationHandle  violation = "social_handle"
	violationPayment violation = "off_platform_payment"
)

// The patterns are deliberately greedy: a false positive masks a fragment of
// text, a false negative leaks a contact channel around the escrow.
var (
	// At least eight digits allowing common separators, with or without a
	// country prefix.
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{6,}\d`)

	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	urlPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)

	// Social handles and messenger invitations: @name plus the usual "find
	// me on" keywords.
	handlePattern  = regexp.MustCompile(`(?i)(?:^|\s)@[a-zA-Z0-9_.]{3,}`)
	keywordPattern = regexp.MustCompile(`(?i)\b(?:whatsapp|telegram|instagram|insta|zap|signal)\b`)

	// Settlement rails that would move the money around the escrow.
	paymentPattern = regexp.MustCompile(`(?i)\b(?:pix|paypal|venmo|zelle|cash\s?app|cash|wire|bank\s+transfer|transfer)\b`)
)

// filterResult is one masking pass over a message body.
type filterResult struct {
	Masked     string
	Violations []violation
}

// Flagged reports whether anything was masked.
func (r filterResult) Flagged() bool {
	return len(r.Violations) > 0
}

// filterBody masks contact information so negotiation stays on-platform until
// the contract settles. Email runs before phone so the digits inside an
// address do not split the match.
func filterBody(body string) filterResult {
	result := filterResult{Masked: body}

	apply := func(pattern *regexp.Regexp, kind violation) {
		if !pattern.MatchString(result.Masked) {
			return
		}
		result.Masked = pattern.ReplaceAllString(result.Masked, maskToken)
		result.Violations = append(result.Violations, kind)
	}

	apply(emailPattern, violationEmail)
	apply(urlPattern, violationURL)
	apply(phonePattern, violationPhone)
	apply(handlePattern, violationHandle)
	apply(keywordPattern, violationHandle)
	apply(paymentPattern, violationPayment)

	result.Masked = strings.TrimSpace(result.Masked)
	return result
}

// violationSummary joins the tripped rules for the block reason column.
func violationSummary(violations []violation) string {
	seen := make(map[violation]bool, len(violations))
	var parts []string
	for _, v := range violations {
		if seen[v] {
			continue
		}
		seen[v] = true
		parts = append(parts, string(v))
	}
	return strings.Join(parts, ",")
}
