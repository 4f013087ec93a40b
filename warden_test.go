package warden_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/warden"
	"github.com/aretw0/warden/pkg/adapters/memory"
	"github.com/aretw0/warden/pkg/confirm"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, opts ...warden.Option) (*warden.Engine, *memory.Platform) {
	t.Helper()
	p := memory.NewPlatform()
	eng, err := warden.New(append([]warden.Option{warden.WithPlatform(p)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Close() })
	return eng, p
}

func TestNew_RequiresPlatform(t *testing.T) {
	_, err := warden.New()
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestEngine_StartLoadsConfigs(t *testing.T) {
	store := memory.NewConfigStore(domain.GuildConfig{GuildID: "g1", MaxWarns: 7})
	eng, _ := newEngine(t, warden.WithConfigStore(store))
	assert.Equal(t, 7, eng.GuildConfig("g1").MaxWarns)
	assert.Len(t, eng.GuildConfigs(), 1)
}

func TestEngine_WarnEscalation(t *testing.T) {
	eng, p := newEngine(t, warden.WithMuteDuration(time.Hour))
	ctx := context.Background()

	_, err := eng.SetMaxWarns(ctx, "g1", 3)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		res, err := eng.Warn(ctx, "g1", "u1")
		require.NoError(t, err)
		assert.Equal(t, i == 3, res.AutoMuted, "warn %d", i)
	}

	n, err := eng.WarnCount(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, p.Events(memory.OpSetTimeout), 1)
}

func TestEngine_SetMaxWarnsZeroKeepsPrevious(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()

	_, err := eng.SetMaxWarns(ctx, "g1", 5)
	require.NoError(t, err)
	_, err = eng.SetMaxWarns(ctx, "g1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Equal(t, 5, eng.GuildConfig("g1").MaxWarns)
}

func TestEngine_ClearWarns(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()

	_, err := eng.Warn(ctx, "g1", "u1")
	require.NoError(t, err)
	require.NoError(t, eng.ClearWarns(ctx, "g1", "u1"))
	n, err := eng.WarnCount(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEngine_MuteThenNotify(t *testing.T) {
	eng, p := newEngine(t)
	ctx := context.Background()

	out := eng.ExecuteAction(ctx, domain.ActionRequest{
		Kind: domain.ActionMute, GuildID: "g1", TargetUserID: "u1", Reason: "spam",
	})
	require.True(t, out.Success)

	s, err := eng.OpenNotification(ctx, notify.Request{
		InitiatorID:  "mod",
		ChannelID:    "c1",
		TargetUserID: "u1",
		Kind:         domain.ActionMute,
		Reason:       "spam",
		Timeout:      30 * time.Second,
	})
	require.NoError(t, err)

	res, err := eng.Resolve(ctx, s.ID, "mod", domain.ChoiceNotify)
	require.NoError(t, err)
	assert.Equal(t, domain.KindNotification, res.Kind)
	assert.Equal(t, domain.StateNotified, res.State)
	assert.True(t, res.Delivered)

	dms := p.Events(memory.OpDirectMessage)
	require.Len(t, dms, 1)
	assert.Equal(t, "u1", dms[0].UserID)

	state, err := eng.Await(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNotified, state)
}

func TestEngine_ModerateOpensPrompt(t *testing.T) {
	eng, p := newEngine(t)
	ctx := context.Background()

	res, err := eng.Moderate(ctx, warden.ModerateRequest{
		ActionRequest: domain.ActionRequest{Kind: domain.ActionKick, GuildID: "g1", TargetUserID: "u1"},
		InitiatorID:   "mod",
		ChannelID:     "c1",
		TargetName:    "troll",
	})
	require.NoError(t, err)
	assert.True(t, res.Outcome.Success)
	assert.Equal(t, "Kicked troll.", res.Message)
	require.NotNil(t, res.Notification)
	assert.Equal(t, domain.StatePending, res.Notification.State)
	assert.Len(t, eng.Sessions(), 1)

	resolution, err := eng.ResolveInteraction(ctx, domain.CustomID(res.Notification.ID, domain.ChoiceSuppress), "mod")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSuppressed, resolution.State)
	assert.Empty(t, p.Events(memory.OpDirectMessage))
	assert.Empty(t, eng.Sessions())
}

func TestEngine_ModerateSilentAndFailed(t *testing.T) {
	eng, p := newEngine(t)
	ctx := context.Background()

	res, err := eng.Moderate(ctx, warden.ModerateRequest{
		ActionRequest: domain.ActionRequest{Kind: domain.ActionBan, GuildID: "g1", TargetUserID: "u1", Silent: true},
		InitiatorID:   "mod",
		ChannelID:     "c1",
	})
	require.NoError(t, err)
	assert.True(t, res.Outcome.Success)
	assert.Nil(t, res.Notification)

	p.FailOn(memory.OpBan, domain.ErrRateLimited)
	res, err = eng.Moderate(ctx, warden.ModerateRequest{
		ActionRequest: domain.ActionRequest{Kind: domain.ActionBan, GuildID: "g1", TargetUserID: "u2"},
		InitiatorID:   "mod",
		ChannelID:     "c1",
	})
	require.NoError(t, err)
	assert.False(t, res.Outcome.Success)
	assert.Nil(t, res.Notification)
	assert.Equal(t, domain.FailureRateLimited.Message(), res.Message)
	assert.Empty(t, p.Events(memory.OpSendPrompt))
}

func TestEngine_ModerateRejectsMissingPromptTarget(t *testing.T) {
	eng, p := newEngine(t)
	ctx := context.Background()

	_, err := eng.Moderate(ctx, warden.ModerateRequest{
		ActionRequest: domain.ActionRequest{Kind: domain.ActionBan, GuildID: "g1", TargetUserID: "u1"},
		InitiatorID:   "mod",
	})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = eng.Moderate(ctx, warden.ModerateRequest{
		ActionRequest: domain.ActionRequest{Kind: domain.ActionKick, GuildID: "g1", TargetUserID: "u1"},
		ChannelID:     "c1",
	})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Empty(t, p.Events(memory.OpBan))
	assert.Empty(t, p.Events(memory.OpKick))

	res, err := eng.Moderate(ctx, warden.ModerateRequest{
		ActionRequest: domain.ActionRequest{Kind: domain.ActionBan, GuildID: "g1", TargetUserID: "u1", Silent: true},
	})
	require.NoError(t, err, "silent actions open no prompt")
	assert.True(t, res.Outcome.Success)
	assert.Len(t, p.Events(memory.OpBan), 1)
}

func TestEngine_ResolveUnknownSession(t *testing.T) {
	eng, _ := newEngine(t)
	_, err := eng.Resolve(context.Background(), "missing", "mod", domain.ChoiceAffirm)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEngine_ConfirmationWrongActorThenExpiry(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()

	s, err := eng.OpenConfirmation(ctx, confirm.Request{InitiatorID: "mod", ChannelID: "c1", Timeout: 30 * time.Millisecond})
	require.NoError(t, err)

	_, err = eng.Resolve(ctx, s.ID, "other", domain.ChoiceAffirm)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	state, err := eng.Await(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExpired, state)
}

func TestEngine_Purge(t *testing.T) {
	eng, p := newEngine(t)
	for i := 0; i < 3; i++ {
		p.Post("c1", "bot", true)
	}
	for i := 0; i < 7; i++ {
		p.Post("c1", "human", false)
	}

	res, err := eng.Purge(context.Background(), domain.PurgeRequest{
		ChannelID:      "c1",
		RequestedCount: 10,
		Filter:         domain.PurgeFilter{Kind: domain.FilterBot},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Deleted)
}

func TestEngine_ReplaceChannelConfirmed(t *testing.T) {
	eng, p := newEngine(t)
	ctx := context.Background()
	p.AddChannel("c1")

	r, err := eng.OpenReplaceChannel(ctx, warden.ReplaceRequest{InitiatorID: "mod", ChannelID: "c1"})
	require.NoError(t, err)

	_, err = eng.ResolveInteraction(ctx, r.Session.ID+":"+domain.EmojiAffirm, "mod")
	require.NoError(t, err)

	res, err := r.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirmed, res.State)
	require.NotEmpty(t, res.NewChannelID)
	assert.False(t, p.HasChannel("c1"))
	assert.True(t, p.HasChannel(res.NewChannelID))

	msgs := p.Events(memory.OpSendMessage)
	require.Len(t, msgs, 1)
	assert.Equal(t, res.NewChannelID, msgs[0].ChannelID)
	assert.Equal(t, "<#"+res.NewChannelID+"> has been nuked! 💥💣", msgs[0].Text)
}

func TestEngine_ReplaceChannelCancelled(t *testing.T) {
	eng, p := newEngine(t)
	ctx := context.Background()
	p.AddChannel("c1")

	r, err := eng.OpenReplaceChannel(ctx, warden.ReplaceRequest{InitiatorID: "mod", ChannelID: "c1"})
	require.NoError(t, err)
	_, err = eng.Resolve(ctx, r.Session.ID, "mod", domain.ChoiceDeny)
	require.NoError(t, err)

	res, err := r.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, res.State)
	assert.True(t, p.HasChannel("c1"))
	assert.Empty(t, p.Events(memory.OpCloneChannel))

	closed := p.Events(memory.OpClosePrompt)
	require.Len(t, closed, 1)
	assert.Equal(t, "Nuke cancelled.", closed[0].Text)
}

func TestEngine_ReplaceChannelTimeout(t *testing.T) {
	eng, p := newEngine(t)
	p.AddChannel("c1")

	res, err := eng.ReplaceChannel(context.Background(), warden.ReplaceRequest{
		InitiatorID: "mod", ChannelID: "c1", Timeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateExpired, res.State)
	assert.True(t, p.HasChannel("c1"))

	closed := p.Events(memory.OpClosePrompt)
	require.Len(t, closed, 1)
	assert.Equal(t, "Nuke cancelled (timeout).", closed[0].Text)
}

func TestEngine_ReplaceChannelPermissionDenied(t *testing.T) {
	eng, p := newEngine(t)
	ctx := context.Background()
	p.AddChannel("c1")
	p.FailOn(memory.OpDeleteChannel, domain.ErrPermissionDenied)

	r, err := eng.OpenReplaceChannel(ctx, warden.ReplaceRequest{InitiatorID: "mod", ChannelID: "c1"})
	require.NoError(t, err)
	_, err = eng.Resolve(ctx, r.Session.ID, "mod", domain.ChoiceAffirm)
	require.NoError(t, err)

	res, err := r.Wait(ctx)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Equal(t, domain.FailurePermissionDenied, res.Failure)

	msgs := p.Events(memory.OpSendMessage)
	require.NotEmpty(t, msgs)
	assert.Equal(t, domain.FailurePermissionDenied.Message(), msgs[0].Text)
}

func TestEngine_CloseExpiresPending(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()

	s, err := eng.OpenConfirmation(ctx, confirm.Request{InitiatorID: "mod", ChannelID: "c1", Timeout: time.Hour})
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	state, err := eng.Await(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExpired, state)
}

func TestEngine_Hooks(t *testing.T) {
	var mu sync.Mutex
	counts := map[string]int{}
	bump := func(k string) {
		mu.Lock()
		counts[k]++
		mu.Unlock()
	}
	hooks := domain.LifecycleHooks{
		OnSessionOpen:   func(context.Context, *domain.SessionEvent) { bump("open") },
		OnSessionSettle: func(context.Context, *domain.SessionEvent) { bump("settle") },
		OnAction:        func(context.Context, *domain.ActionEvent) { bump("action") },
		OnWarn:          func(context.Context, *domain.WarnEvent) { bump("warn") },
		OnPurge:         func(context.Context, *domain.PurgeEvent) { bump("purge") },
	}
	eng, p := newEngine(t, warden.WithLifecycleHooks(hooks))
	ctx := context.Background()
	p.Post("c1", "u1", false)

	_, err := eng.Warn(ctx, "g1", "u1")
	require.NoError(t, err)
	res, err := eng.Moderate(ctx, warden.ModerateRequest{
		ActionRequest: domain.ActionRequest{Kind: domain.ActionBan, GuildID: "g1", TargetUserID: "u1"},
		InitiatorID:   "mod",
		ChannelID:     "c1",
	})
	require.NoError(t, err)
	_, err = eng.Resolve(ctx, res.Notification.ID, "mod", domain.ChoiceSuppress)
	require.NoError(t, err)
	_, err = eng.Purge(ctx, domain.PurgeRequest{ChannelID: "c1", RequestedCount: 1, Filter: domain.PurgeFilter{Kind: domain.FilterAll}})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"open": 1, "settle": 1, "action": 1, "warn": 1, "purge": 1}, counts)
}
