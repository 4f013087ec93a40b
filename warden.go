package warden

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/action"
	"github.com/aretw0/warden/pkg/adapters/memory"
	"github.com/aretw0/warden/pkg/confirm"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/guildconfig"
	"github.com/aretw0/warden/pkg/keylock"
	"github.com/aretw0/warden/pkg/notify"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/aretw0/warden/pkg/purge"
	"github.com/aretw0/warden/pkg/session"
	"github.com/aretw0/warden/pkg/warn"
)

// Engine is the high-level entry point of Warden.
// It composes the guild config cache, the warn ledger, the action executor, both
// interactive session kinds and the purge engine around one platform.
type Engine struct {
	platform    ports.Platform
	configStore ports.GuildConfigStore
	warnStore   ports.WarnStore
	locker      ports.DistributedLocker
	hooks       domain.LifecycleHooks
	logger      *slog.Logger

	muteDuration   time.Duration
	confirmTimeout time.Duration
	notifyTimeout  time.Duration
	retentionSize  int
	retentionTTL   time.Duration

	locks    *keylock.Manager
	configs  *guildconfig.Cache
	executor *action.Executor
	ledger   *warn.Ledger
	registry *session.Registry
	gate     *confirm.Gate
	prompter *notify.Prompter
	purger   *purge.Purger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithPlatform sets the chat platform collaborator. Required.
func WithPlatform(p ports.Platform) Option {
	return func(e *Engine) {
		e.platform = p
	}
}

// WithConfigStore sets the durable guild config store (default: in memory).
func WithConfigStore(s ports.GuildConfigStore) Option {
	return func(e *Engine) {
		e.configStore = s
	}
}

// WithWarnStore sets the durable warn store (default: in memory).
func WithWarnStore(s ports.WarnStore) Option {
	return func(e *Engine) {
		e.warnStore = s
	}
}

// WithLocker enables distributed locking of warn and config critical sections.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithMuteDuration sets the duration of escalation mutes.
func WithMuteDuration(d time.Duration) Option {
	return func(e *Engine) {
		e.muteDuration = d
	}
}

// WithConfirmTimeout sets the default confirmation timeout.
func WithConfirmTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.confirmTimeout = d
	}
}

// WithNotifyTimeout sets the default notification prompt timeout.
func WithNotifyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.notifyTimeout = d
	}
}

// WithSettledRetention sets how many settled sessions stay queryable, and for how long.
func WithSettledRetention(size int, ttl time.Duration) Option {
	return func(e *Engine) {
		e.retentionSize = size
		e.retentionTTL = ttl
	}
}

// New initializes a new Warden Engine.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		muteDuration:   domain.DefaultMuteDuration,
		confirmTimeout: confirm.DefaultTimeout,
		notifyTimeout:  notify.DefaultTimeout,
		retentionSize:  session.DefaultRetentionSize,
		retentionTTL:   session.DefaultRetentionTTL,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.platform == nil {
		return nil, fmt.Errorf("%w: a platform is required", domain.ErrInvalidRequest)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.configStore == nil {
		eng.configStore = memory.NewConfigStore()
	}
	if eng.warnStore == nil {
		eng.warnStore = memory.NewWarnStore()
	}

	lockOpts := []keylock.Option{keylock.WithLogger(eng.logger)}
	if eng.locker != nil {
		lockOpts = append(lockOpts, keylock.WithLocker(eng.locker))
	}
	eng.locks = keylock.New(lockOpts...)

	eng.configs = guildconfig.New(eng.configStore,
		guildconfig.WithLogger(eng.logger.With("component", "guildconfig")),
		guildconfig.WithLocks(eng.locks),
	)

	executor, err := action.NewExecutor(eng.platform,
		action.WithLogger(eng.logger.With("component", "action")),
		action.WithLifecycleHooks(eng.hooks),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build action executor: %w", err)
	}
	eng.executor = executor

	eng.ledger = warn.New(eng.warnStore, eng.configs, eng.executor,
		warn.WithLogger(eng.logger.With("component", "warn")),
		warn.WithLifecycleHooks(eng.hooks),
		warn.WithLocks(eng.locks),
		warn.WithMuteDuration(eng.muteDuration),
	)

	eng.registry = session.NewRegistry(
		session.WithLogger(eng.logger.With("component", "session")),
		session.WithLifecycleHooks(eng.hooks),
		session.WithRetention(eng.retentionSize, eng.retentionTTL),
	)
	eng.gate = confirm.New(eng.registry, eng.platform,
		confirm.WithLogger(eng.logger.With("component", "confirm")),
		confirm.WithDefaultTimeout(eng.confirmTimeout),
	)
	eng.prompter = notify.New(eng.registry, eng.platform,
		notify.WithLogger(eng.logger.With("component", "notify")),
		notify.WithDefaultTimeout(eng.notifyTimeout),
	)
	eng.purger = purge.New(eng.platform,
		purge.WithLogger(eng.logger.With("component", "purge")),
		purge.WithLifecycleHooks(eng.hooks),
	)

	return eng, nil
}

// Start loads the guild config cache from the store.
func (e *Engine) Start(ctx context.Context) error {
	return e.configs.Load(ctx)
}

// Close expires every pending session.
func (e *Engine) Close() error {
	e.registry.Shutdown()
	return nil
}

// Warn records a warning and escalates to a mute at the guild threshold.
func (e *Engine) Warn(ctx context.Context, guildID, userID string) (domain.WarnResult, error) {
	return e.ledger.Warn(ctx, guildID, userID)
}

// SetMaxWarns updates a guild's warn threshold.
func (e *Engine) SetMaxWarns(ctx context.Context, guildID string, n int) (domain.GuildConfig, error) {
	return e.ledger.SetMaxWarns(ctx, guildID, n)
}

// GuildConfig returns the cached settings of a guild.
func (e *Engine) GuildConfig(guildID string) domain.GuildConfig {
	return e.configs.Get(guildID)
}

// GuildConfigs returns every cached guild config.
func (e *Engine) GuildConfigs() []domain.GuildConfig {
	return e.configs.All()
}

// WarnCount returns a user's current warning count.
func (e *Engine) WarnCount(ctx context.Context, guildID, userID string) (int, error) {
	return e.ledger.Count(ctx, guildID, userID)
}

// ClearWarns resets a user's warning count.
func (e *Engine) ClearWarns(ctx context.Context, guildID, userID string) error {
	return e.ledger.Clear(ctx, guildID, userID)
}

// ExecuteAction applies a single action without any prompt.
func (e *Engine) ExecuteAction(ctx context.Context, req domain.ActionRequest) domain.ActionOutcome {
	return e.executor.Execute(ctx, req)
}

// OpenConfirmation opens a confirmation gate.
func (e *Engine) OpenConfirmation(ctx context.Context, req confirm.Request) (domain.Session, error) {
	return e.gate.Open(ctx, req)
}

// OpenNotification opens a notify/don't-notify prompt for an action that already happened.
func (e *Engine) OpenNotification(ctx context.Context, req notify.Request) (domain.Session, error) {
	return e.prompter.Open(ctx, req)
}

// Purge bulk deletes messages.
func (e *Engine) Purge(ctx context.Context, req domain.PurgeRequest) (domain.PurgeResult, error) {
	return e.purger.Purge(ctx, req)
}

// Session returns a pending or recently settled session.
func (e *Engine) Session(id string) (domain.Session, error) {
	return e.registry.Get(id)
}

// Sessions lists pending sessions, oldest first.
func (e *Engine) Sessions() []domain.Session {
	return e.registry.Pending()
}

// Await blocks until the session is terminal.
func (e *Engine) Await(ctx context.Context, id string) (domain.SessionState, error) {
	s, err := e.registry.Await(ctx, id)
	if err != nil {
		return "", err
	}
	return s.State, nil
}
