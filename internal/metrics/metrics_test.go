package metrics_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/warden/internal/metrics"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	hooks := metrics.New(reg).Hooks()
	ctx := context.Background()

	hooks.OnSessionOpen(ctx, &domain.SessionEvent{Kind: domain.KindConfirmation})
	hooks.OnSessionSettle(ctx, &domain.SessionEvent{Kind: domain.KindConfirmation, State: domain.StateExpired, Elapsed: time.Second})
	hooks.OnAction(ctx, &domain.ActionEvent{Outcome: domain.ActionOutcome{Kind: domain.ActionBan, Success: true}})
	hooks.OnAction(ctx, &domain.ActionEvent{Outcome: domain.ActionOutcome{Kind: domain.ActionKick, Failure: domain.FailureRateLimited}})
	hooks.OnWarn(ctx, &domain.WarnEvent{Result: domain.WarnResult{NewCount: 1}})
	hooks.OnWarn(ctx, &domain.WarnEvent{Result: domain.WarnResult{AutoMuted: true}})
	hooks.OnPurge(ctx, &domain.PurgeEvent{Filter: domain.PurgeFilter{Kind: domain.FilterBot}, Deleted: 4})
	hooks.OnPurge(ctx, &domain.PurgeEvent{Err: errors.New("boom")})

	expected := `
# HELP warden_warns_total Warnings recorded
# TYPE warden_warns_total counter
warden_warns_total 2
# HELP warden_warn_escalations_total Warnings that reached the guild threshold
# TYPE warden_warn_escalations_total counter
warden_warn_escalations_total 1
# HELP warden_purged_messages_total Messages removed by purges, by filter
# TYPE warden_purged_messages_total counter
warden_purged_messages_total{filter="bot"} 4
# HELP warden_sessions_settled_total Prompt sessions settled, by kind and terminal state
# TYPE warden_sessions_settled_total counter
warden_sessions_settled_total{kind="confirmation",state="expired"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"warden_warns_total", "warden_warn_escalations_total",
		"warden_purged_messages_total", "warden_sessions_settled_total")
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "warden_actions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per kind and result")
}

func TestObserveStore(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	ctx := context.Background()

	m.ObserveStore(ctx, "config.load", time.Millisecond, domain.ErrConfigNotFound)
	m.ObserveStore(ctx, "warn.increment", time.Millisecond, nil)
	m.ObserveStore(ctx, "warn.increment", time.Millisecond, errors.New("down"))

	n, err := testutil.GatherAndCount(reg, "warden_store_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNewPanicsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	assert.Panics(t, func() { metrics.New(reg) })
}
