// Package confirm implements the confirmation gate placed in front of irreversible actions.
//
// A gate renders a confirm/cancel prompt restricted to the initiator and settles exactly
// once: Confirmed, Cancelled or, when nobody answers in time, Expired.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/aretw0/warden/pkg/session"
)

// DefaultTimeout applies when a Request carries no timeout.
const DefaultTimeout = 30 * time.Second

const (
	DefaultCancelledText = "Cancelled."
	DefaultExpiredText   = "Cancelled (timeout)."
)

// Request opens a gate.
type Request struct {
	InitiatorID string        `json:"initiator_id"`
	ChannelID   string        `json:"channel_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`

	// Summaries the prompt is replaced with once settled. Confirmed prompts are deleted.
	CancelledText string `json:"cancelled_text,omitempty"`
	ExpiredText   string `json:"expired_text,omitempty"`
}

// Gate opens and resolves confirmation sessions.
type Gate struct {
	registry       *session.Registry
	messenger      ports.Messenger
	logger         *slog.Logger
	defaultTimeout time.Duration
}

// Option configures the Gate.
type Option func(*Gate)

// WithLogger configures a logger for the Gate.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithDefaultTimeout overrides DefaultTimeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.defaultTimeout = d
		}
	}
}

// New creates a gate on top of a shared registry.
func New(registry *session.Registry, messenger ports.Messenger, opts ...Option) *Gate {
	g := &Gate{
		registry:       registry,
		messenger:      messenger,
		logger:         logging.NewNop(),
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Open registers the session, renders the prompt and arms the timer.
// If the prompt cannot be rendered the session is discarded and the error returned.
func (g *Gate) Open(ctx context.Context, req Request) (domain.Session, error) {
	if req.ChannelID == "" {
		return domain.Session{}, fmt.Errorf("%w: channel is required", domain.ErrInvalidRequest)
	}
	if req.Timeout <= 0 {
		req.Timeout = g.defaultTimeout
	}
	if req.CancelledText == "" {
		req.CancelledText = DefaultCancelledText
	}
	if req.ExpiredText == "" {
		req.ExpiredText = DefaultExpiredText
	}

	s, err := g.registry.Open(ctx, domain.Session{
		Kind:        domain.KindConfirmation,
		InitiatorID: req.InitiatorID,
		ChannelID:   req.ChannelID,
		Timeout:     req.Timeout,
		Title:       req.Title,
		Description: req.Description,
	}, func(ctx context.Context, s domain.Session) error {
		return g.closePrompt(ctx, s, req)
	})
	if err != nil {
		return domain.Session{}, err
	}

	anchor, err := g.messenger.SendPrompt(ctx, req.ChannelID, domain.Prompt{
		SessionID:      s.ID,
		Title:          req.Title,
		Body:           req.Description,
		AllowedActorID: req.InitiatorID,
		Reactions:      true,
		Options: []domain.PromptOption{
			{CustomID: domain.CustomID(s.ID, domain.ChoiceAffirm), Label: "Confirm", Emoji: domain.EmojiAffirm, Choice: domain.ChoiceAffirm, Danger: true},
			{CustomID: domain.CustomID(s.ID, domain.ChoiceDeny), Label: "Cancel", Emoji: domain.EmojiDeny, Choice: domain.ChoiceDeny},
		},
	})
	if err != nil {
		g.registry.Discard(s.ID)
		return domain.Session{}, fmt.Errorf("failed to render confirmation: %w", err)
	}

	if err := g.registry.SetAnchor(s.ID, anchor); err != nil {
		// Settled while rendering; its settle callback had no anchor to close.
		if settled, getErr := g.registry.Get(s.ID); getErr == nil {
			settled.AnchorMessageID = anchor
			_ = g.closePrompt(ctx, settled, req)
		}
	}
	s.AnchorMessageID = anchor

	g.logger.Info("Confirmation opened", "session_id", s.ID, "channel_id", req.ChannelID,
		"initiator_id", req.InitiatorID, "timeout", req.Timeout)
	return s, nil
}

// Resolve answers a pending confirmation on behalf of actorID.
// Only ChoiceAffirm and ChoiceDeny are accepted.
func (g *Gate) Resolve(ctx context.Context, id, actorID string, choice domain.Choice) (domain.SessionState, error) {
	if err := g.owns(id); err != nil {
		return "", err
	}
	res, err := g.registry.Resolve(ctx, id, actorID, choice)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			g.logger.Debug("Confirmation answered by someone else", "session_id", id, "actor_id", actorID)
		}
		return "", err
	}
	return res.Session.State, nil
}

// Await blocks until the confirmation is Confirmed, Cancelled or Expired.
func (g *Gate) Await(ctx context.Context, id string) (domain.SessionState, error) {
	if err := g.owns(id); err != nil {
		return "", err
	}
	s, err := g.registry.Await(ctx, id)
	if err != nil {
		return "", err
	}
	return s.State, nil
}

func (g *Gate) owns(id string) error {
	s, err := g.registry.Get(id)
	if err != nil {
		return err
	}
	if s.Kind != domain.KindConfirmation {
		return fmt.Errorf("%w: %s is not a confirmation", domain.ErrNotFound, id)
	}
	return nil
}

func (g *Gate) closePrompt(ctx context.Context, s domain.Session, req Request) error {
	if s.AnchorMessageID == "" {
		return nil
	}
	var summary string
	switch s.State {
	case domain.StateCancelled:
		summary = req.CancelledText
	case domain.StateExpired:
		summary = req.ExpiredText
	}
	if err := g.messenger.ClosePrompt(ctx, s.ChannelID, s.AnchorMessageID, summary); err != nil {
		g.logger.Warn("Failed to close confirmation prompt", "session_id", s.ID, "err", err)
		return err
	}
	return nil
}
