// Package purge computes and executes bounded bulk deletes.
package purge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
)

// Purger deletes qualifying messages from a channel.
type Purger struct {
	messenger ports.Messenger
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
}

// Option configures the Purger.
type Option func(*Purger)

// WithLogger configures a logger for the Purger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Purger) {
		p.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(p *Purger) {
		p.hooks = hooks
	}
}

// New creates a purger.
func New(messenger ports.Messenger, opts ...Option) *Purger {
	p := &Purger{messenger: messenger, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Purge scans the count+1 most recent messages, deletes up to count of them matching
// the filter and reports how many were deleted. The trigger message is swept with the
// batch when it is inside the window but never counted. Repeating a call purges a new
// batch.
func (p *Purger) Purge(ctx context.Context, req domain.PurgeRequest) (res domain.PurgeResult, err error) {
	count := req.ClampedCount()
	defer func() {
		if p.hooks.OnPurge != nil {
			p.hooks.OnPurge(ctx, &domain.PurgeEvent{
				Timestamp: time.Now(),
				ChannelID: req.ChannelID,
				Filter:    req.Filter,
				Requested: count,
				Deleted:   res.Deleted,
				Err:       err,
			})
		}
	}()

	if req.ChannelID == "" {
		return domain.PurgeResult{}, fmt.Errorf("%w: channel is required", domain.ErrInvalidRequest)
	}
	if err := req.Filter.Validate(); err != nil {
		return domain.PurgeResult{}, err
	}

	window, err := p.messenger.History(ctx, req.ChannelID, count+1)
	if err != nil {
		return domain.PurgeResult{}, fmt.Errorf("failed to read history: %w", err)
	}

	ids, selected := Select(window, req.Filter, count, req.ExcludeMessageID)
	for _, batch := range Batches(ids, domain.BulkDeleteLimit) {
		if err := p.messenger.DeleteMessages(ctx, req.ChannelID, batch); err != nil {
			p.logger.Warn("Purge aborted", "channel_id", req.ChannelID, "err", err)
			return domain.PurgeResult{}, fmt.Errorf("failed to delete messages: %w", err)
		}
	}

	p.logger.Info("Messages purged", "channel_id", req.ChannelID, "filter", req.Filter.String(),
		"requested", count, "deleted", selected)
	return domain.PurgeResult{Deleted: selected}, nil
}

// Select picks the ids to delete from a most-recent-first window. It returns the ids
// (trigger included) and the number of qualifying messages among them.
func Select(window []domain.Message, filter domain.PurgeFilter, count int, triggerID string) ([]string, int) {
	ids := make([]string, 0, count+1)
	selected := 0
	for _, m := range window {
		if triggerID != "" && m.ID == triggerID {
			ids = append(ids, m.ID)
			continue
		}
		if selected < count && filter.Matches(m) {
			ids = append(ids, m.ID)
			selected++
		}
	}
	return ids, selected
}

// Batches splits ids into the fewest calls of at most limit ids each, sized evenly so a
// full window plus the trigger never leaves a one-id remainder.
func Batches(ids []string, limit int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	n := (len(ids) + limit - 1) / limit
	size := (len(ids) + n - 1) / n
	out := make([][]string, 0, n)
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}

// Summary is the report shown to the operator after a purge.
func Summary(filter domain.PurgeFilter, res domain.PurgeResult) string {
	switch filter.Kind {
	case domain.FilterBot:
		return fmt.Sprintf("Cleared %d bot messages.", res.Deleted)
	case domain.FilterHuman:
		return fmt.Sprintf("Cleared %d human messages.", res.Deleted)
	case domain.FilterByUser:
		return fmt.Sprintf("Cleared %d messages from <@%s>.", res.Deleted, filter.UserID)
	default:
		return fmt.Sprintf("Cleared %d messages.", res.Deleted)
	}
}
