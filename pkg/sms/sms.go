// Package sms sends notification text messages through AWS SNS.
package sms

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrInvalidConfig is returned when a sender is constructed with
	// missing configuration.
	ErrInvalidConfig = errors.New("invalid sms config")

	// ErrInvalidNumber is returned for phone numbers that are not E.164.
	ErrInvalidNumber = errors.New("invalid phone number")

	// ErrSendFailed wraps provider failures.
	ErrSendFailed = errors.New("failed to send sms")
)

// MaxLength is the single-segment GSM-7 message limit. Longer bodies are
// truncated by the caller before they reach a sender.
const MaxLength = 160

var e164Regex = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// Config holds the SNS configuration for outbound SMS.
type Config struct {
	Region   string `env:"AWS_REGION" envDefault:"eu-west-1"`
	SenderID string `env:"SMS_SENDER_ID"`
}

// ValidNumber reports whether the phone number is plausibly E.164.
func ValidNumber(phone string) bool {
	return e164Regex.MatchString(phone)
}

// Sender delivers one SMS and returns the provider message ID.
type Sender interface {
	Send(ctx context.Context, phone, message string) (messageID string, err error)
}

func validate(phone, message string) error {
	if !ValidNumber(phone) {
		return fmt.Errorf("%w: %q is not E.164", ErrInvalidNumber, phone)
	}
	if message == "" {
		return fmt.Errorf("%w: empty message", ErrSendFailed)
	}
	return nil
}
