// Package console is a local stand-in for a chat platform. It keeps the state in
// the memory adapter and prints every platform effect to a terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/warden/pkg/adapters/memory"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Platform is a memory.Platform whose calls are echoed to a writer.
type Platform struct {
	*memory.Platform

	mu     sync.Mutex
	out    io.Writer
	render func(string) (string, error)
}

// Option configures the console platform.
type Option func(*Platform)

// WithMarkdown forces glamour rendering on or off. By default it is on only when
// the writer is a terminal.
func WithMarkdown(enabled bool) Option {
	return func(p *Platform) {
		if enabled {
			p.render = newRenderer()
		} else {
			p.render = nil
		}
	}
}

// New creates a console platform writing to out.
func New(out io.Writer, opts ...Option) *Platform {
	p := &Platform{out: out}
	if IsTerminal(out) {
		p.render = newRenderer()
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Platform = memory.NewPlatform(memory.WithObserver(p.print))
	return p
}

// IsTerminal reports whether w is attached to a TTY.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return nil
	}
	return r.Render
}

// Println writes a line through the same lock as platform output.
func (p *Platform) Println(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, text)
}

func (p *Platform) print(e memory.Event) {
	md := Describe(e)
	if md == "" {
		return
	}

	out := md + "\n"
	if p.render != nil {
		if rendered, err := p.render(md); err == nil {
			out = rendered
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.out, out)
}

// Describe renders a platform event as markdown. History reads return "".
func Describe(e memory.Event) string {
	var b strings.Builder
	switch e.Op {
	case memory.OpBan:
		fmt.Fprintf(&b, "🔨 **ban** <@%s> in `%s`: %s", e.UserID, e.GuildID, e.Text)
	case memory.OpKick:
		fmt.Fprintf(&b, "👢 **kick** <@%s> from `%s`: %s", e.UserID, e.GuildID, e.Text)
	case memory.OpSetTimeout:
		if e.Until == nil {
			fmt.Fprintf(&b, "🔈 **unmute** <@%s> in `%s`", e.UserID, e.GuildID)
		} else {
			fmt.Fprintf(&b, "🔇 **mute** <@%s> in `%s` until %s: %s",
				e.UserID, e.GuildID, e.Until.Format("15:04:05"), e.Text)
		}
	case memory.OpDirectMessage:
		fmt.Fprintf(&b, "✉️ **DM to <@%s>**: %s", e.UserID, e.Text)
	case memory.OpSendMessage:
		fmt.Fprintf(&b, "💬 **#%s**: %s", e.ChannelID, e.Text)
	case memory.OpSendPrompt:
		describePrompt(&b, e)
	case memory.OpClosePrompt:
		if e.Text == "" {
			fmt.Fprintf(&b, "🗑️ prompt `%s` in #%s removed", e.MessageID, e.ChannelID)
		} else {
			fmt.Fprintf(&b, "📌 prompt `%s` in #%s: %s", e.MessageID, e.ChannelID, e.Text)
		}
	case memory.OpDeleteMessage:
		fmt.Fprintf(&b, "🧹 deleted %d messages in #%s", len(e.IDs), e.ChannelID)
	case memory.OpCloneChannel:
		fmt.Fprintf(&b, "📋 cloned #%s as #%s", e.ChannelID, e.MessageID)
	case memory.OpDeleteChannel:
		fmt.Fprintf(&b, "💥 deleted #%s", e.ChannelID)
	default:
		return ""
	}
	if e.Err != nil {
		fmt.Fprintf(&b, " (failed: %v)", e.Err)
	}
	return b.String()
}

func describePrompt(b *strings.Builder, e memory.Event) {
	if e.Prompt == nil {
		fmt.Fprintf(b, "❔ prompt in #%s", e.ChannelID)
		return
	}
	pr := e.Prompt
	fmt.Fprintf(b, "### %s\n\n%s\n\n", pr.Title, pr.Body)
	for _, opt := range pr.Options {
		fmt.Fprintf(b, "- %s %s: `resolve %s %s`\n", opt.Emoji, opt.Label, pr.SessionID, opt.Choice)
	}
	if pr.Reactions {
		fmt.Fprintf(b, "- or react %s / %s\n", domain.EmojiAffirm, domain.EmojiDeny)
	}
	if pr.AllowedActorID != "" {
		fmt.Fprintf(b, "\n_only <@%s> may answer_", pr.AllowedActorID)
	}
}
