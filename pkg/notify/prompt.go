// Package notify offers the initiator of a completed action the choice to tell the
// affected user about it privately.
//
// The prompt never gates the action, which has already happened. Only an explicit
// Notify sends the direct message; Suppress and timeouts send nothing.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/aretw0/warden/pkg/session"
)

// DefaultTimeout applies when a Request carries no timeout.
const DefaultTimeout = 60 * time.Second

// Request opens a notification prompt.
type Request struct {
	InitiatorID  string            `json:"initiator_id"`
	ChannelID    string            `json:"channel_id"`
	GuildID      string            `json:"guild_id,omitempty"`
	GuildName    string            `json:"guild_name,omitempty"`
	TargetUserID string            `json:"target_user_id"`
	TargetName   string            `json:"target_name,omitempty"`
	Kind         domain.ActionKind `json:"kind"`
	Reason       string            `json:"reason,omitempty"`
	Timeout      time.Duration     `json:"timeout,omitempty"`
}

func (r Request) target() string {
	if r.TargetName != "" {
		return r.TargetName
	}
	return "<@" + r.TargetUserID + ">"
}

func (r Request) reason() string {
	if r.Reason == "" {
		return domain.DefaultReason
	}
	return r.Reason
}

func (r Request) guild() string {
	if r.GuildName != "" {
		return r.GuildName
	}
	return r.GuildID
}

// Outcome is the result of resolving a prompt.
type Outcome struct {
	State domain.SessionState `json:"state"`
	// Delivered is true when the direct message went out.
	Delivered bool               `json:"delivered"`
	Failure   domain.FailureKind `json:"failure,omitempty"`
}

// Prompter opens and resolves notification prompts.
type Prompter struct {
	registry       *session.Registry
	messenger      ports.Messenger
	logger         *slog.Logger
	defaultTimeout time.Duration
}

// Option configures the Prompter.
type Option func(*Prompter)

// WithLogger configures a logger for the Prompter.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prompter) {
		p.logger = logger
	}
}

// WithDefaultTimeout overrides DefaultTimeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(p *Prompter) {
		if d > 0 {
			p.defaultTimeout = d
		}
	}
}

// New creates a prompter on top of a shared registry.
func New(registry *session.Registry, messenger ports.Messenger, opts ...Option) *Prompter {
	p := &Prompter{
		registry:       registry,
		messenger:      messenger,
		logger:         logging.NewNop(),
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open renders the notify/don't-notify prompt for a completed action.
func (p *Prompter) Open(ctx context.Context, req Request) (domain.Session, error) {
	if req.ChannelID == "" || req.TargetUserID == "" {
		return domain.Session{}, fmt.Errorf("%w: channel and target are required", domain.ErrInvalidRequest)
	}
	if !req.Kind.Notifiable() {
		return domain.Session{}, fmt.Errorf("%w: %q actions do not notify", domain.ErrInvalidRequest, req.Kind)
	}
	if req.Timeout <= 0 {
		req.Timeout = p.defaultTimeout
	}

	s, err := p.registry.Open(ctx, domain.Session{
		Kind:         domain.KindNotification,
		InitiatorID:  req.InitiatorID,
		ChannelID:    req.ChannelID,
		Timeout:      req.Timeout,
		GuildID:      req.GuildID,
		GuildName:    req.GuildName,
		TargetUserID: req.TargetUserID,
		Action:       req.Kind,
		Reason:       req.Reason,
	}, func(ctx context.Context, s domain.Session) error {
		return p.settle(ctx, s, req)
	})
	if err != nil {
		return domain.Session{}, err
	}

	anchor, err := p.messenger.SendPrompt(ctx, req.ChannelID, domain.Prompt{
		SessionID:      s.ID,
		Title:          "User " + req.Kind.Headline(),
		Body:           announcement(req),
		AllowedActorID: req.InitiatorID,
		Options: []domain.PromptOption{
			{CustomID: domain.CustomID(s.ID, domain.ChoiceNotify), Label: "Notify User", Emoji: domain.EmojiAffirm, Choice: domain.ChoiceNotify},
			{CustomID: domain.CustomID(s.ID, domain.ChoiceSuppress), Label: "Don't Notify", Emoji: domain.EmojiDeny, Choice: domain.ChoiceSuppress, Danger: true},
		},
	})
	if err != nil {
		p.registry.Discard(s.ID)
		return domain.Session{}, fmt.Errorf("failed to render notification prompt: %w", err)
	}
	if err := p.registry.SetAnchor(s.ID, anchor); err != nil {
		// Settled while rendering; its settle callback had no anchor to close.
		if settled, getErr := p.registry.Get(s.ID); getErr == nil {
			settled.AnchorMessageID = anchor
			_ = p.closePrompt(ctx, settled, req)
		}
	}
	s.AnchorMessageID = anchor

	p.logger.Info("Notification prompt opened", "session_id", s.ID, "user_id", req.TargetUserID,
		"action", req.Kind, "timeout", req.Timeout)
	return s, nil
}

// Resolve answers a pending prompt on behalf of actorID. On Notify exactly one direct
// message is attempted; a delivery failure is reported in the channel and in the Outcome,
// never retried.
func (p *Prompter) Resolve(ctx context.Context, id, actorID string, choice domain.Choice) (Outcome, error) {
	if err := p.owns(id); err != nil {
		return Outcome{}, err
	}
	res, err := p.registry.Resolve(ctx, id, actorID, choice)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{State: res.Session.State}
	if out.State == domain.StateNotified {
		out.Delivered = res.SettleErr == nil
		out.Failure = domain.Classify(res.SettleErr)
	}
	return out, nil
}

// Await blocks until the prompt is Notified, Suppressed or Expired.
func (p *Prompter) Await(ctx context.Context, id string) (domain.SessionState, error) {
	if err := p.owns(id); err != nil {
		return "", err
	}
	s, err := p.registry.Await(ctx, id)
	if err != nil {
		return "", err
	}
	return s.State, nil
}

func (p *Prompter) owns(id string) error {
	s, err := p.registry.Get(id)
	if err != nil {
		return err
	}
	if s.Kind != domain.KindNotification {
		return fmt.Errorf("%w: %s is not a notification prompt", domain.ErrNotFound, id)
	}
	return nil
}

// settle closes the prompt and, for Notified, delivers the direct message.
// Only the delivery error is returned.
func (p *Prompter) settle(ctx context.Context, s domain.Session, req Request) error {
	_ = p.closePrompt(ctx, s, req)
	if s.State != domain.StateNotified {
		return nil
	}

	err := p.messenger.SendDirectMessage(ctx, req.TargetUserID, directMessage(req))
	if err == nil {
		p.logger.Info("User notified", "session_id", s.ID, "user_id", req.TargetUserID)
		return nil
	}

	p.logger.Warn("Direct message failed", "session_id", s.ID, "user_id", req.TargetUserID, "err", err)
	notice := fmt.Sprintf("I couldn't send a DM to the user. They have been %s, but I don't have permission to DM them.",
		req.Kind.PastTense())
	if _, sendErr := p.messenger.SendMessage(ctx, req.ChannelID, notice); sendErr != nil {
		p.logger.Warn("Failed to report DM failure", "session_id", s.ID, "err", sendErr)
	}
	return err
}

func (p *Prompter) closePrompt(ctx context.Context, s domain.Session, req Request) error {
	if s.AnchorMessageID == "" {
		return nil
	}
	var summary string
	switch s.State {
	case domain.StateNotified:
		summary = fmt.Sprintf("%s %s. They will be notified.", req.Kind.Headline(), req.target())
	case domain.StateSuppressed:
		summary = fmt.Sprintf("%s %s. They will not be notified.", req.Kind.Headline(), req.target())
	default:
		// Expired: keep the announcement, drop the buttons.
		summary = announcement(req)
	}
	if err := p.messenger.ClosePrompt(ctx, s.ChannelID, s.AnchorMessageID, summary); err != nil {
		p.logger.Warn("Failed to close notification prompt", "session_id", s.ID, "err", err)
		return err
	}
	return nil
}

func announcement(req Request) string {
	return fmt.Sprintf("%s has been %s %s the server for the following reason: %s",
		req.target(), req.Kind.PastTense(), preposition(req.Kind), req.reason())
}

func preposition(kind domain.ActionKind) string {
	if kind == domain.ActionMute {
		return "in"
	}
	return "from"
}

func directMessage(req Request) string {
	where := preposition(req.Kind) + " the server"
	if g := req.guild(); g != "" {
		where += " `" + g + "`"
	}
	return fmt.Sprintf("You have been %s %s for the following reason: %s", req.Kind.PastTense(), where, req.reason())
}
