// Package transport defines the messaging-platform seam. Delivery,
// logging, and assembly depend on these types instead of a concrete
// chat platform; the telegram subpackage implements Adapter.
package transport

import "context"

// ChatTarget addresses a chat, optionally a forum topic thread inside it.
// Per-user direct messages are plain chat IDs.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// IsZero reports whether the target addresses nothing.
func (t ChatTarget) IsZero() bool { return t.ChatID == 0 }

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Notification is one outbound message handed to the delivery pipeline.
type Notification struct {
	Channel string // "telegram" now
	Target  ChatTarget
	Text    string
	Options *SendOptions
}

// Adapter is an outbound-only messaging client.
type Adapter interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	Stop(ctx context.Context) error
}
