package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationContractUpdated  NotificationType = "contract_updated"
	NotificationPaymentReceived  NotificationType = "payment_received"
	NotificationPaymentReleased  NotificationType = "payment_released"
	NotificationMediationOpened  NotificationType = "mediation_opened"
	NotificationMessageBlocked   NotificationType = "message_blocked"
	NotificationWithdrawalUpdate NotificationType = "withdrawal_update"
)

var validNotificationTypes = []NotificationType{
	NotificationContractUpdated,
	NotificationPaymentReceived,
	NotificationPaymentReleased,
	NotificationMediationOpened,
	NotificationMessageBlocked,
	NotificationWithdrawalUpdate,
}

// IsValid reports whether the value is a known NotificationType.
func (t NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
