// Package push delivers mobile push notifications through AWS SNS
// platform endpoints and tracks per-recipient device tokens.
package push

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidConfig is returned when a provider is constructed with
	// missing configuration.
	ErrInvalidConfig = errors.New("invalid push config")

	// ErrInvalidToken marks a device token the provider reports as dead
	// or unknown. Callers prune the token from the registry.
	ErrInvalidToken = errors.New("invalid device token")

	// ErrSendFailed wraps retryable provider failures.
	ErrSendFailed = errors.New("failed to send push notification")

	// ErrTokenNotFound is returned by registries for unknown tokens.
	ErrTokenNotFound = errors.New("device token not found")
)

// Config holds the SNS platform application configuration.
type Config struct {
	Region             string `env:"AWS_REGION" envDefault:"eu-west-1"`
	PlatformAppARN     string `env:"PUSH_PLATFORM_APP_ARN"`
	DefaultTTLSeconds  int    `env:"PUSH_TTL_SECONDS" envDefault:"3600"`
}

// Payload is the cross-platform push content.
type Payload struct {
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}

// Provider sends one push message to one device endpoint.
type Provider interface {
	// RegisterDevice exchanges a raw device token for a provider
	// endpoint identifier.
	RegisterDevice(ctx context.Context, token string) (endpoint string, err error)

	// Send publishes the payload to an endpoint, returning the provider
	// message ID. Dead endpoints surface ErrInvalidToken.
	Send(ctx context.Context, endpoint string, payload Payload) (messageID string, err error)
}

// DeviceToken is one registered device of a recipient.
type DeviceToken struct {
	Recipient string
	Token     string
	Endpoint  string
	Platform  string
	CreatedAt time.Time
}

// TokenRegistry tracks device tokens per recipient.
type TokenRegistry interface {
	Register(ctx context.Context, dt DeviceToken) error
	ListByRecipient(ctx context.Context, recipientID string) ([]DeviceToken, error)
	Remove(ctx context.Context, recipientID, token string) error
}
