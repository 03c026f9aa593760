package enums

import "fmt"

// NotificationLevel tags messages pushed to the customer-facing sink.
type NotificationLevel string

const (
	NotificationLevelSuccess NotificationLevel = "success"
	NotificationLevelFailure NotificationLevel = "failure"
)

var validNotificationLevels = []NotificationLevel{
	NotificationLevelSuccess,
	NotificationLevelFailure,
}

// String implements fmt.Stringer.
func (n NotificationLevel) String() string {
	return string(n)
}

// IsValid checks whether the given level matches a known value.
func (n NotificationLevel) IsValid() bool {
	for _, candidate := range validNotificationLevels {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationLevel converts raw strings into NotificationLevel.
func ParseNotificationLevel(value string) (NotificationLevel, error) {
	for _, candidate := range validNotificationLevels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification level %q", value)
}
