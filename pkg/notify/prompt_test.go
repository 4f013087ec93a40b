package notify_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/adapters/memory"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/notify"
	"github.com/aretw0/warden/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPrompter() (*notify.Prompter, *memory.Platform) {
	p := memory.NewPlatform()
	return notify.New(session.NewRegistry(), p), p
}

func banRequest(timeout time.Duration) notify.Request {
	return notify.Request{
		InitiatorID:  "mod",
		ChannelID:    "c1",
		GuildName:    "Cozy Corner",
		TargetUserID: "u1",
		TargetName:   "spammer",
		Kind:         domain.ActionBan,
		Reason:       "spam",
		Timeout:      timeout,
	}
}

func TestPrompter_Notify(t *testing.T) {
	pr, p := newPrompter()
	ctx := context.Background()

	s, err := pr.Open(ctx, banRequest(time.Minute))
	require.NoError(t, err)

	prompts := p.Events(memory.OpSendPrompt)
	require.Len(t, prompts, 1)
	assert.Equal(t, "User Banned", prompts[0].Prompt.Title)
	assert.Contains(t, prompts[0].Prompt.Body, "spammer has been banned from the server")
	assert.Equal(t, domain.ChoiceNotify, prompts[0].Prompt.Options[0].Choice)

	out, err := pr.Resolve(ctx, s.ID, "mod", domain.ChoiceNotify)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNotified, out.State)
	assert.True(t, out.Delivered)
	assert.Equal(t, domain.FailureNone, out.Failure)

	dms := p.Events(memory.OpDirectMessage)
	require.Len(t, dms, 1)
	assert.Equal(t, "u1", dms[0].UserID)
	assert.Equal(t, "You have been banned from the server `Cozy Corner` for the following reason: spam", dms[0].Text)

	closed := p.Events(memory.OpClosePrompt)
	require.Len(t, closed, 1)
	assert.Equal(t, "Banned spammer. They will be notified.", closed[0].Text)
}

func TestPrompter_Suppress(t *testing.T) {
	pr, p := newPrompter()
	ctx := context.Background()

	s, err := pr.Open(ctx, banRequest(time.Minute))
	require.NoError(t, err)

	out, err := pr.Resolve(ctx, s.ID, "mod", domain.ChoiceSuppress)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSuppressed, out.State)
	assert.False(t, out.Delivered)
	assert.Empty(t, p.Events(memory.OpDirectMessage))

	closed := p.Events(memory.OpClosePrompt)
	require.Len(t, closed, 1)
	assert.Equal(t, "Banned spammer. They will not be notified.", closed[0].Text)
}

func TestPrompter_DeliveryFailureReportedNotRetried(t *testing.T) {
	pr, p := newPrompter()
	ctx := context.Background()
	p.FailOn(memory.OpDirectMessage, domain.ErrPermissionDenied)

	s, err := pr.Open(ctx, banRequest(time.Minute))
	require.NoError(t, err)

	out, err := pr.Resolve(ctx, s.ID, "mod", domain.ChoiceNotify)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNotified, out.State)
	assert.False(t, out.Delivered)
	assert.Equal(t, domain.FailurePermissionDenied, out.Failure)

	assert.Len(t, p.Events(memory.OpDirectMessage), 1)
	notices := p.Events(memory.OpSendMessage)
	require.Len(t, notices, 1)
	assert.Equal(t, "c1", notices[0].ChannelID)
	assert.Contains(t, notices[0].Text, "I couldn't send a DM to the user")

	// The prompt is not re-opened.
	_, err = pr.Resolve(ctx, s.ID, "mod", domain.ChoiceNotify)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, p.Events(memory.OpDirectMessage), 1)
}

func TestPrompter_ExpiresSilently(t *testing.T) {
	pr, p := newPrompter()
	ctx := context.Background()

	s, err := pr.Open(ctx, banRequest(20*time.Millisecond))
	require.NoError(t, err)

	state, err := pr.Await(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExpired, state)
	assert.Empty(t, p.Events(memory.OpDirectMessage))
	assert.Empty(t, p.Events(memory.OpSendMessage))

	closed := p.Events(memory.OpClosePrompt)
	require.Len(t, closed, 1)
	assert.Contains(t, closed[0].Text, "has been banned")
}

func TestPrompter_WrongActor(t *testing.T) {
	pr, p := newPrompter()
	ctx := context.Background()

	s, err := pr.Open(ctx, banRequest(time.Minute))
	require.NoError(t, err)

	_, err = pr.Resolve(ctx, s.ID, "u1", domain.ChoiceNotify)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, p.Events(memory.OpDirectMessage))
}

func TestPrompter_RejectsConfirmationChoices(t *testing.T) {
	pr, _ := newPrompter()
	s, err := pr.Open(context.Background(), banRequest(time.Minute))
	require.NoError(t, err)

	_, err = pr.Resolve(context.Background(), s.ID, "mod", domain.ChoiceAffirm)
	assert.ErrorIs(t, err, domain.ErrInvalidChoice)
}

func TestPrompter_MuteWording(t *testing.T) {
	pr, p := newPrompter()
	ctx := context.Background()
	req := banRequest(time.Minute)
	req.Kind = domain.ActionMute
	req.Reason = ""

	s, err := pr.Open(ctx, req)
	require.NoError(t, err)
	_, err = pr.Resolve(ctx, s.ID, "mod", domain.ChoiceNotify)
	require.NoError(t, err)

	dms := p.Events(memory.OpDirectMessage)
	require.Len(t, dms, 1)
	assert.Equal(t, "You have been muted in the server `Cozy Corner` for the following reason: No reason provided.", dms[0].Text)
}

func TestPrompter_OpenValidation(t *testing.T) {
	pr, _ := newPrompter()
	req := banRequest(time.Minute)
	req.Kind = domain.ActionUnmute
	_, err := pr.Open(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	req = banRequest(time.Minute)
	req.TargetUserID = ""
	_, err = pr.Open(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestPrompter_DefaultTimeout(t *testing.T) {
	pr, _ := newPrompter()
	s, err := pr.Open(context.Background(), banRequest(0))
	require.NoError(t, err)
	assert.Equal(t, notify.DefaultTimeout, s.Timeout)
}

func TestPrompter_ClosesPromptSettledWhileRendering(t *testing.T) {
	var pr *notify.Prompter
	p := memory.NewPlatform(memory.WithObserver(func(e memory.Event) {
		if e.Op == memory.OpSendPrompt {
			_, _ = pr.Resolve(context.Background(), e.Prompt.SessionID, "mod", domain.ChoiceSuppress)
		}
	}))
	var logs bytes.Buffer
	pr = notify.New(session.NewRegistry(), p,
		notify.WithLogger(logging.NewWithWriter(&logs, slog.LevelDebug, "text")))
	p.FailOn(memory.OpClosePrompt, errors.New("unknown message"))

	s, err := pr.Open(context.Background(), banRequest(time.Minute))
	require.NoError(t, err)

	closed := p.Events(memory.OpClosePrompt)
	require.Len(t, closed, 1)
	assert.Equal(t, s.AnchorMessageID, closed[0].MessageID)
	assert.Equal(t, "Banned spammer. They will not be notified.", closed[0].Text)
	assert.Contains(t, logs.String(), "Failed to close notification prompt")
	assert.Empty(t, p.Events(memory.OpDirectMessage))
}
