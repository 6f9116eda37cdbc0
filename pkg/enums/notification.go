package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeVerificationStarted  NotificationType = "verification_started"
	NotificationTypeVerificationApproved NotificationType = "verification_approved"
	NotificationTypeVerificationRejected NotificationType = "verification_rejected"
	NotificationTypeInfoRequested        NotificationType = "info_requested"
	NotificationTypeCredentialExpiry     NotificationType = "credential_expiry"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeVerificationStarted,
	NotificationTypeVerificationApproved,
	NotificationTypeVerificationRejected,
	NotificationTypeInfoRequested,
	NotificationTypeCredentialExpiry,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
