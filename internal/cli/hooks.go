package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/persistence/middleware"
)

// SlowStoreCall is the latency above which store calls are logged at warn level.
const SlowStoreCall = 250 * time.Millisecond

// LogHooks reports every lifecycle event at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionOpen: func(ctx context.Context, e *domain.SessionEvent) {
			logger.DebugContext(ctx, "Session Opened", "session_id", e.SessionID, "kind", e.Kind)
		},
		OnSessionSettle: func(ctx context.Context, e *domain.SessionEvent) {
			logger.DebugContext(ctx, "Session Settled", "session_id", e.SessionID, "state", e.State, "elapsed", e.Elapsed)
		},
		OnAction: func(ctx context.Context, e *domain.ActionEvent) {
			if e.Outcome.Success {
				logger.DebugContext(ctx, "Action Applied", "guild_id", e.GuildID, "kind", e.Outcome.Kind, "user_id", e.Outcome.TargetUserID)
				return
			}
			logger.DebugContext(ctx, "Action Failed", "guild_id", e.GuildID, "kind", e.Outcome.Kind, "failure", e.Outcome.Failure)
		},
		OnWarn: func(ctx context.Context, e *domain.WarnEvent) {
			logger.DebugContext(ctx, "Warn Recorded", "guild_id", e.Result.GuildID, "user_id", e.Result.UserID,
				"count", e.Result.NewCount, "auto_muted", e.Result.AutoMuted)
		},
		OnPurge: func(ctx context.Context, e *domain.PurgeEvent) {
			if e.Err != nil {
				logger.DebugContext(ctx, "Purge Failed", "channel_id", e.ChannelID, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "Purge Done", "channel_id", e.ChannelID, "filter", e.Filter.String(), "deleted", e.Deleted)
		},
	}
}

// LogStoreCalls logs failed and slow store calls. Missing configs are not failures.
func LogStoreCalls(logger *slog.Logger) middleware.Observer {
	return func(ctx context.Context, op string, elapsed time.Duration, err error) {
		switch {
		case err != nil && !errors.Is(err, domain.ErrConfigNotFound):
			logger.WarnContext(ctx, "Store Call Failed", "op", op, "elapsed", elapsed, "err", err)
		case elapsed > SlowStoreCall:
			logger.WarnContext(ctx, "Slow Store Call", "op", op, "elapsed", elapsed)
		}
	}
}
