// Package action applies single privileged moderation actions through the platform.
//
// The Executor owns a closed registry of handlers keyed by domain.ActionKind. Every
// kind must have a handler when the Executor is built; a request never reaches the
// platform more than once, and failures come back as values rather than errors.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
)

// Handler performs one kind of action. now is the executor clock.
type Handler func(ctx context.Context, m ports.Moderator, req domain.ActionRequest, now time.Time) error

// DefaultHandlers returns the handler for every supported kind.
func DefaultHandlers() map[domain.ActionKind]Handler {
	return map[domain.ActionKind]Handler{
		domain.ActionBan: func(ctx context.Context, m ports.Moderator, req domain.ActionRequest, _ time.Time) error {
			return m.Ban(ctx, req.GuildID, req.TargetUserID, req.EffectiveReason())
		},
		domain.ActionKick: func(ctx context.Context, m ports.Moderator, req domain.ActionRequest, _ time.Time) error {
			return m.Kick(ctx, req.GuildID, req.TargetUserID, req.EffectiveReason())
		},
		domain.ActionMute: func(ctx context.Context, m ports.Moderator, req domain.ActionRequest, now time.Time) error {
			until := now.Add(req.EffectiveDuration())
			return m.SetTimeout(ctx, req.GuildID, req.TargetUserID, &until, req.EffectiveReason())
		},
		domain.ActionUnmute: func(ctx context.Context, m ports.Moderator, req domain.ActionRequest, _ time.Time) error {
			return m.SetTimeout(ctx, req.GuildID, req.TargetUserID, nil, req.EffectiveReason())
		},
	}
}

// Executor runs action requests against a Moderator.
type Executor struct {
	moderator ports.Moderator
	handlers  map[domain.ActionKind]Handler
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	now       func() time.Time
}

// Option configures the Executor.
type Option func(*Executor)

// WithLogger configures a logger for the Executor.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Executor) {
		x.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(x *Executor) {
		x.hooks = hooks
	}
}

// WithHandler replaces the handler of one kind.
func WithHandler(kind domain.ActionKind, h Handler) Option {
	return func(x *Executor) {
		x.handlers[kind] = h
	}
}

// WithClock overrides time.Now, used to compute mute deadlines.
func WithClock(now func() time.Time) Option {
	return func(x *Executor) {
		x.now = now
	}
}

// NewExecutor builds the registry. It fails if any kind lacks a handler or a handler
// is registered for an unknown kind.
func NewExecutor(moderator ports.Moderator, opts ...Option) (*Executor, error) {
	if moderator == nil {
		return nil, fmt.Errorf("%w: moderator is required", domain.ErrInvalidRequest)
	}
	x := &Executor{
		moderator: moderator,
		handlers:  DefaultHandlers(),
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(x)
	}

	for kind, h := range x.handlers {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: handler registered for unknown action %q", domain.ErrInvalidRequest, kind)
		}
		if h == nil {
			return nil, fmt.Errorf("%w: nil handler for action %q", domain.ErrInvalidRequest, kind)
		}
	}
	for _, kind := range domain.ActionKinds() {
		if _, ok := x.handlers[kind]; !ok {
			return nil, fmt.Errorf("%w: no handler for action %q", domain.ErrInvalidRequest, kind)
		}
	}
	return x, nil
}

// Execute applies req exactly once. It never panics and never returns an error:
// failures are reported through ActionOutcome.Failure.
func (x *Executor) Execute(ctx context.Context, req domain.ActionRequest) domain.ActionOutcome {
	start := x.now()
	out := domain.ActionOutcome{
		Kind:         req.Kind,
		TargetUserID: req.TargetUserID,
		Reason:       req.EffectiveReason(),
	}

	err := x.run(ctx, req, start)
	out.Success = err == nil
	out.Failure = domain.Classify(err)

	logger := x.logger.With("guild_id", req.GuildID, "user_id", req.TargetUserID, "action", req.Kind)
	if err != nil {
		logger.Warn("Action failed", "failure", out.Failure, "err", err)
	} else {
		logger.Info("Action applied")
	}
	if x.hooks.OnAction != nil {
		x.hooks.OnAction(ctx, &domain.ActionEvent{
			Timestamp: start,
			GuildID:   req.GuildID,
			Outcome:   out,
			Duration:  x.now().Sub(start),
		})
	}
	return out
}

func (x *Executor) run(ctx context.Context, req domain.ActionRequest, now time.Time) (err error) {
	h, ok := x.handlers[req.Kind]
	if !ok {
		return fmt.Errorf("%w: unsupported action %q", domain.ErrUnknown, req.Kind)
	}
	if req.TargetUserID == "" {
		return fmt.Errorf("%w: no target user", domain.ErrTargetNotFound)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: platform panicked: %v", domain.ErrUnknown, r)
		}
	}()
	return h(ctx, x.moderator, req, now)
}
