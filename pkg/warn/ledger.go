// Package warn keeps per (guild, user) warning counters and escalates to a mute.
package warn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/keylock"
	"github.com/aretw0/warden/pkg/ports"
)

// ConfigSource supplies and updates guild thresholds. Implemented by guildconfig.Cache.
type ConfigSource interface {
	Get(guildID string) domain.GuildConfig
	Set(ctx context.Context, guildID string, maxWarns int) (domain.GuildConfig, error)
}

// Executor applies the escalation mute. Implemented by action.Executor.
type Executor interface {
	Execute(ctx context.Context, req domain.ActionRequest) domain.ActionOutcome
}

// Ledger owns the warning counters.
type Ledger struct {
	store        ports.WarnStore
	configs      ConfigSource
	executor     Executor
	locks        *keylock.Manager
	muteDuration time.Duration
	logger       *slog.Logger
	hooks        domain.LifecycleHooks
}

// Option configures the Ledger.
type Option func(*Ledger)

// WithLogger configures a logger for the Ledger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(l *Ledger) {
		l.hooks = hooks
	}
}

// WithLocks shares a lock manager, e.g. one backed by a distributed locker.
func WithLocks(locks *keylock.Manager) Option {
	return func(l *Ledger) {
		l.locks = locks
	}
}

// WithMuteDuration sets how long an escalation mute lasts.
func WithMuteDuration(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.muteDuration = d
		}
	}
}

// New creates a ledger.
func New(store ports.WarnStore, configs ConfigSource, executor Executor, opts ...Option) *Ledger {
	l := &Ledger{
		store:        store,
		configs:      configs,
		executor:     executor,
		muteDuration: domain.DefaultMuteDuration,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.locks == nil {
		l.locks = keylock.New(keylock.WithLogger(l.logger))
	}
	return l
}

func lockKey(guildID, userID string) string {
	return "warn:" + guildID + ":" + userID
}

// Warn records one warning. When the new count reaches the guild threshold the counter
// is reset and the user is muted; AutoMuted is reported even if the mute itself fails.
// Warnings issued while the user is already muted still count.
func (l *Ledger) Warn(ctx context.Context, guildID, userID string) (domain.WarnResult, error) {
	if guildID == "" || userID == "" {
		return domain.WarnResult{}, fmt.Errorf("%w: guild and user are required", domain.ErrInvalidRequest)
	}

	res := domain.WarnResult{GuildID: guildID, UserID: userID}
	err := l.locks.Do(ctx, lockKey(guildID, userID), func(ctx context.Context) error {
		n, err := l.store.Increment(ctx, guildID, userID)
		if err != nil {
			return fmt.Errorf("failed to increment warns: %w", err)
		}
		res.NewCount = n
		res.MaxWarns = l.configs.Get(guildID).MaxWarns
		if n < res.MaxWarns {
			return nil
		}
		// The escalation is consumed before the mute so a failing mute is not retried
		// on every later warning.
		if err := l.store.Reset(ctx, guildID, userID); err != nil {
			return fmt.Errorf("failed to reset warns: %w", err)
		}
		res.AutoMuted = true
		return nil
	})
	if err != nil {
		l.logger.Error("Warn failed", "guild_id", guildID, "user_id", userID, "err", err)
		return domain.WarnResult{}, err
	}

	if res.AutoMuted {
		out := l.executor.Execute(ctx, domain.ActionRequest{
			Kind:         domain.ActionMute,
			GuildID:      guildID,
			TargetUserID: userID,
			Reason:       domain.EscalationReason,
			Duration:     l.muteDuration,
		})
		res.Mute = &out
		l.logger.Info("Warn limit reached", "guild_id", guildID, "user_id", userID,
			"count", res.NewCount, "mute_success", out.Success)
	} else {
		l.logger.Info("User warned", "guild_id", guildID, "user_id", userID, "count", res.NewCount)
	}

	if l.hooks.OnWarn != nil {
		l.hooks.OnWarn(ctx, &domain.WarnEvent{Timestamp: time.Now(), Result: res})
	}
	return res, nil
}

// SetMaxWarns updates the guild threshold. n < 1 fails with domain.ErrInvalidConfig.
func (l *Ledger) SetMaxWarns(ctx context.Context, guildID string, n int) (domain.GuildConfig, error) {
	return l.configs.Set(ctx, guildID, n)
}

// Count returns the current warning count.
func (l *Ledger) Count(ctx context.Context, guildID, userID string) (int, error) {
	n, err := l.store.Get(ctx, guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to read warns: %w", err)
	}
	return n, nil
}

// Clear resets the warning count explicitly.
func (l *Ledger) Clear(ctx context.Context, guildID, userID string) error {
	return l.locks.Do(ctx, lockKey(guildID, userID), func(ctx context.Context) error {
		if err := l.store.Reset(ctx, guildID, userID); err != nil {
			return fmt.Errorf("failed to clear warns: %w", err)
		}
		l.logger.Info("Warns cleared", "guild_id", guildID, "user_id", userID)
		return nil
	})
}
