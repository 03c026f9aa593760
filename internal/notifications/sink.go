package notifications

import (
	"context"

	"github.com/angelmondragon/bakeshop-backend/pkg/enums"
	"github.com/angelmondragon/bakeshop-backend/pkg/logger"
)

// Notification is a customer-facing message about a cart or kit action.
type Notification struct {
	Level   enums.NotificationLevel `json:"level"`
	Message string                  `json:"message"`
	CartID  string                  `json:"cart_id,omitempty"`
	KitID   string                  `json:"kit_id,omitempty"`
}

// Sink receives notifications. Delivery is fire-and-forget: implementations
// must not block the caller and report no errors.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// Success builds a success notification.
func Success(message string) Notification {
	return Notification{Level: enums.NotificationLevelSuccess, Message: message}
}

// Failure builds a validation-failure notification.
func Failure(message string) Notification {
	return Notification{Level: enums.NotificationLevelFailure, Message: message}
}

// LogSink writes notifications to the structured logger.
type LogSink struct {
	logg *logger.Logger
}

// NewLogSink returns a sink backed by logg.
func NewLogSink(logg *logger.Logger) *LogSink {
	return &LogSink{logg: logg}
}

func (s *LogSink) Notify(ctx context.Context, n Notification) {
	if s == nil || s.logg == nil {
		return
	}
	fields := map[string]any{
		"notification_level": n.Level.String(),
	}
	if n.CartID != "" {
		fields["cart_id"] = n.CartID
	}
	if n.KitID != "" {
		fields["kit_id"] = n.KitID
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), n.Message)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Notify(context.Context, Notification) {}
