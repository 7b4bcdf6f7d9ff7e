package webhooks

import "strings"

// statusClass buckets the gateway's free-form status strings.
type statusClass int

const (
	statusUnknown statusClass = iota
	statusSuccess
	statusFailure
	statusPending
)

var successKeywords = []string{
	"completed",
	"succeeded",
	"success",
	"paid",
	"captured",
	"approved",
	"settled",
}

var failureKeywords = []string{
	"failed",
	"failure",
	"declined",
	"canceled",
	"cancelled",
	"rejected",
	"error",
	"reversed",
}

var pendingKeywords = []string{
	"pending",
	"processing",
	"in_transit",
	"awaiting",
}

// classifyStatus normalizes the raw webhook status. Pending states are
// acknowledged without touching the ledger; anything that matches no keyword
// set goes to the review queue instead of being guessed at.
func classifyStatus(raw string) statusClass {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return statusUnknown
	}
	for _, keyword := range failureKeywords {
		if strings.Contains(normalized, keyword) {
			return statusFailure
		}
	}
	for _, keyword := range successKeywords {
		if strings.Contains(normalized, keyword) {
			return statusSuccess
		}
	}
	for _, keyword := range pendingKeywords {
		if strings.Contains(normalized, keyword) {
			return statusPending
		}
	}
	return statusUnknown
}
