package ports

import (
	"context"
	"time"

	"github.com/aretw0/warden/pkg/domain"
)

// Moderator applies privileged member actions.
// Implementations wrap failures in domain.ErrPermissionDenied, domain.ErrTargetNotFound
// or domain.ErrRateLimited so the engine can classify them.
type Moderator interface {
	Ban(ctx context.Context, guildID, userID, reason string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	// SetTimeout mutes the member until the given instant. A nil until lifts the timeout.
	SetTimeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error
}

// Messenger sends, renders and deletes chat messages.
type Messenger interface {
	SendDirectMessage(ctx context.Context, userID, text string) error
	SendMessage(ctx context.Context, channelID, text string) (messageID string, err error)

	// SendPrompt renders an interactive prompt and returns the anchor message id.
	// Interactions from anyone but p.AllowedActorID may still be delivered; the engine
	// authorizes them.
	SendPrompt(ctx context.Context, channelID string, p domain.Prompt) (messageID string, err error)
	// ClosePrompt removes the affordances of a prompt. An empty summary deletes the message.
	ClosePrompt(ctx context.Context, channelID, messageID, summary string) error

	// History returns up to limit messages, most recent first.
	History(ctx context.Context, channelID string, limit int) ([]domain.Message, error)
	// DeleteMessages bulk deletes at most domain.BulkDeleteLimit ids.
	DeleteMessages(ctx context.Context, channelID string, ids []string) error
}

// ChannelManager performs structural channel operations.
type ChannelManager interface {
	// CloneChannel creates a copy of the channel (name, topic, permissions) and returns its id.
	CloneChannel(ctx context.Context, channelID string) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
}

// Platform is the complete chat platform collaborator.
type Platform interface {
	Moderator
	Messenger
	ChannelManager
}
