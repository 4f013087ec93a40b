package domain

import (
	"context"
	"time"
)

// SessionEvent is emitted when a session opens or settles.
type SessionEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	SessionID string        `json:"session_id"`
	Kind      SessionKind   `json:"kind"`
	State     SessionState  `json:"state"`
	Elapsed   time.Duration `json:"elapsed,omitempty"`
}

// ActionEvent is emitted after every action execution.
type ActionEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	GuildID   string        `json:"guild_id"`
	Outcome   ActionOutcome `json:"outcome"`
	Duration  time.Duration `json:"duration"`
}

// WarnEvent is emitted after every warning.
type WarnEvent struct {
	Timestamp time.Time  `json:"timestamp"`
	Result    WarnResult `json:"result"`
}

// PurgeEvent is emitted after every purge.
type PurgeEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	ChannelID string      `json:"channel_id"`
	Filter    PurgeFilter `json:"filter"`
	Requested int         `json:"requested"`
	Deleted   int         `json:"deleted"`
	Err       error       `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnSessionOpen   func(context.Context, *SessionEvent)
	OnSessionSettle func(context.Context, *SessionEvent)
	OnAction        func(context.Context, *ActionEvent)
	OnWarn          func(context.Context, *WarnEvent)
	OnPurge         func(context.Context, *PurgeEvent)
}

// Merge combines two hook sets; both callbacks fire when both are set.
func (h LifecycleHooks) Merge(o LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnSessionOpen:   chain(h.OnSessionOpen, o.OnSessionOpen),
		OnSessionSettle: chain(h.OnSessionSettle, o.OnSessionSettle),
		OnAction:        chain(h.OnAction, o.OnAction),
		OnWarn:          chain(h.OnWarn, o.OnWarn),
		OnPurge:         chain(h.OnPurge, o.OnPurge),
	}
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}
