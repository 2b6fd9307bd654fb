// Package notify delivers operational alerts to webhook-style channels.
package notify

import "context"

// Channel represents a notification channel type.
type Channel string

const ChannelWebhook Channel = "webhook"

// Level is the severity attached to a message.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Message represents a notification message.
type Message struct {
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Level  Level             `json:"level,omitempty"`
	URL    string            `json:"url,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Channel() Channel
}
