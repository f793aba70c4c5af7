package logger

import "log/slog"

// Common attribute constructors so log keys stay consistent across packages.

// Error returns a standard error attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// RecipientID returns the attribute identifying a notification recipient.
func RecipientID(id string) slog.Attr {
	return slog.String("recipient_id", id)
}

// NotificationID returns the attribute identifying a notification.
func NotificationID(id string) slog.Attr {
	return slog.String("notification_id", id)
}

// Channel returns the attribute identifying a delivery channel.
func Channel(ch string) slog.Attr {
	return slog.String("channel", ch)
}
