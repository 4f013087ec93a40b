package console_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/warden"
	"github.com/aretw0/warden/pkg/adapters/console"
	"github.com/aretw0/warden/pkg/adapters/memory"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newShell(t *testing.T) (*console.Shell, *console.Platform, *warden.Engine, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	p := console.New(out, console.WithMarkdown(false))
	eng, err := warden.New(warden.WithPlatform(p))
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Close() })
	return console.NewShell(eng, p), p, eng, out
}

func TestDescribe(t *testing.T) {
	until := time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		event memory.Event
		want  string
	}{
		{"ban", memory.Event{Op: memory.OpBan, GuildID: "g", UserID: "u", Text: "spam"}, "**ban** <@u> in `g`: spam"},
		{"mute", memory.Event{Op: memory.OpSetTimeout, GuildID: "g", UserID: "u", Until: &until, Text: "x"}, "until 12:30:00"},
		{"unmute", memory.Event{Op: memory.OpSetTimeout, GuildID: "g", UserID: "u"}, "**unmute** <@u>"},
		{"dm", memory.Event{Op: memory.OpDirectMessage, UserID: "u", Text: "hi"}, "**DM to <@u>**: hi"},
		{"closed", memory.Event{Op: memory.OpClosePrompt, ChannelID: "c", MessageID: "m"}, "removed"},
		{"failure", memory.Event{Op: memory.OpKick, UserID: "u", Err: errors.New("boom")}, "(failed: boom)"},
		{"history", memory.Event{Op: memory.OpHistory, ChannelID: "c"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := console.Describe(tt.event)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestDescribe_PromptListsResolveCommands(t *testing.T) {
	got := console.Describe(memory.Event{
		Op: memory.OpSendPrompt,
		Prompt: &domain.Prompt{
			SessionID:      "s1",
			Title:          "User Banned",
			Body:           "body",
			AllowedActorID: "mod",
			Options: []domain.PromptOption{
				{Label: "Notify User", Emoji: "✅", Choice: domain.ChoiceNotify},
			},
		},
	})
	assert.Contains(t, got, "### User Banned")
	assert.Contains(t, got, "`resolve s1 notify`")
	assert.Contains(t, got, "only <@mod> may answer")
}

func TestPlatform_EchoesCalls(t *testing.T) {
	out := &syncBuffer{}
	p := console.New(out, console.WithMarkdown(false))

	require.NoError(t, p.Ban(context.Background(), "g", "u", "spam"))
	assert.Contains(t, out.String(), "**ban** <@u>")
	assert.Len(t, p.Events(memory.OpBan), 1)
}

func TestShell_WarnEscalation(t *testing.T) {
	sh, p, _, out := newShell(t)
	script := "maxwarns 2\nwarn bob\nwarns bob\nwarn bob\nquit\nwarn bob\n"

	require.NoError(t, sh.Run(context.Background(), strings.NewReader(script)))

	text := out.String()
	assert.Contains(t, text, "Max warns set to 2.")
	assert.Contains(t, text, "<@bob> has been warned. (1/2)")
	assert.Contains(t, text, "<@bob> has 1/2 warnings.")
	assert.Contains(t, text, "<@bob> reached 2 warnings and was muted.")
	assert.Len(t, p.Events(memory.OpSetTimeout), 1, "commands after quit are ignored")
}

func TestShell_BanAndNotify(t *testing.T) {
	sh, p, eng, out := newShell(t)
	ctx := context.Background()

	require.NoError(t, sh.Exec(ctx, "ban bob being rude"))
	pending := eng.Sessions()
	require.Len(t, pending, 1)

	err := sh.Exec(ctx, "resolve "+pending[0].ID+" notify mallory")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, sh.Exec(ctx, "resolve "+pending[0].ID+" notify"))
	assert.Contains(t, out.String(), "Banned <@bob>.")
	dms := p.Events(memory.OpDirectMessage)
	require.Len(t, dms, 1)
	assert.Contains(t, dms[0].Text, "being rude")
}

func TestShell_PurgeAndNuke(t *testing.T) {
	sh, p, eng, out := newShell(t)
	ctx := context.Background()

	require.NoError(t, sh.Exec(ctx, "post general bot1 bot"))
	require.NoError(t, sh.Exec(ctx, "post general alice"))
	require.NoError(t, sh.Exec(ctx, "purge 10 bot"))
	assert.Contains(t, out.String(), "Cleared 1 bot messages.")

	require.NoError(t, sh.Exec(ctx, "nuke"))
	pending := eng.Sessions()
	require.Len(t, pending, 1)
	require.NoError(t, sh.Exec(ctx, "resolve "+pending[0].ID+" yes"))

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "now in #")
	}, time.Second, 10*time.Millisecond)
	assert.False(t, p.HasChannel(console.DefaultChannel))
}

func TestShell_Errors(t *testing.T) {
	sh, _, _, out := newShell(t)
	ctx := context.Background()

	assert.Error(t, sh.Exec(ctx, "frobnicate"))
	assert.ErrorIs(t, sh.Exec(ctx, "maxwarns x"), domain.ErrInvalidRequest)
	assert.ErrorIs(t, sh.Exec(ctx, "resolve nope maybe"), domain.ErrInvalidChoice)

	require.NoError(t, sh.Run(ctx, strings.NewReader("warn\n")))
	assert.Contains(t, out.String(), "error: ")
}
