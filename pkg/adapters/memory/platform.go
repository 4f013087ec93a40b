package memory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/warden/pkg/domain"
)

// Op names a platform call, for failure injection and observation.
type Op string

const (
	OpBan           Op = "ban"
	OpKick          Op = "kick"
	OpSetTimeout    Op = "set_timeout"
	OpDirectMessage Op = "direct_message"
	OpSendMessage   Op = "send_message"
	OpSendPrompt    Op = "send_prompt"
	OpClosePrompt   Op = "close_prompt"
	OpHistory       Op = "history"
	OpDeleteMessage Op = "delete_messages"
	OpCloneChannel  Op = "clone_channel"
	OpDeleteChannel Op = "delete_channel"
)

// Event records one platform call. Failed calls are recorded too, with Err set.
type Event struct {
	Op        Op
	GuildID   string
	ChannelID string
	UserID    string
	MessageID string
	Text      string
	Until     *time.Time
	IDs       []string
	Prompt    *domain.Prompt
	Err       error
}

// Platform is an in-memory ports.Platform. It keeps channel histories, records every
// call and can be told to fail specific operations.
// Safe for concurrent use.
type Platform struct {
	mu       sync.Mutex
	seq      int
	channels map[string][]domain.Message // oldest first
	events   []Event
	failures map[Op]error
	observer func(Event)
}

// PlatformOption configures the Platform.
type PlatformOption func(*Platform)

// WithObserver registers a callback invoked (outside the lock) for every call.
func WithObserver(fn func(Event)) PlatformOption {
	return func(p *Platform) {
		p.observer = fn
	}
}

// NewPlatform creates an empty platform.
func NewPlatform(opts ...PlatformOption) *Platform {
	p := &Platform{
		channels: make(map[string][]domain.Message),
		failures: make(map[Op]error),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FailOn makes every subsequent op call return err. A nil err clears the failure.
func (p *Platform) FailOn(op Op, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

func (p *Platform) nextID(prefix string) string {
	p.seq++
	return prefix + "-" + strconv.Itoa(p.seq)
}

// record appends the event and returns the injected failure, if any.
// Callers hold p.mu.
func (p *Platform) record(e Event) (Event, error) {
	e.Err = p.failures[e.Op]
	p.events = append(p.events, e)
	return e, e.Err
}

func (p *Platform) notify(e Event) {
	if p.observer != nil {
		p.observer(e)
	}
}

// do records a call with no state change and reports it.
func (p *Platform) do(e Event) error {
	p.mu.Lock()
	e, err := p.record(e)
	p.mu.Unlock()
	p.notify(e)
	return err
}

// Post appends a message to a channel's history and returns its id.
func (p *Platform) Post(channelID, authorID string, bot bool) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID("msg")
	p.channels[channelID] = append(p.channels[channelID], domain.Message{ID: id, AuthorID: authorID, AuthorBot: bot})
	return id
}

// Ban implements ports.Moderator.
func (p *Platform) Ban(ctx context.Context, guildID, userID, reason string) error {
	return p.do(Event{Op: OpBan, GuildID: guildID, UserID: userID, Text: reason})
}

// Kick implements ports.Moderator.
func (p *Platform) Kick(ctx context.Context, guildID, userID, reason string) error {
	return p.do(Event{Op: OpKick, GuildID: guildID, UserID: userID, Text: reason})
}

// SetTimeout implements ports.Moderator.
func (p *Platform) SetTimeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error {
	return p.do(Event{Op: OpSetTimeout, GuildID: guildID, UserID: userID, Until: until, Text: reason})
}

// SendDirectMessage implements ports.Messenger.
func (p *Platform) SendDirectMessage(ctx context.Context, userID, text string) error {
	return p.do(Event{Op: OpDirectMessage, UserID: userID, Text: text})
}

// SendMessage implements ports.Messenger. The message is not added to the channel history.
func (p *Platform) SendMessage(ctx context.Context, channelID, text string) (string, error) {
	p.mu.Lock()
	id := p.nextID("msg")
	e, err := p.record(Event{Op: OpSendMessage, ChannelID: channelID, MessageID: id, Text: text})
	p.mu.Unlock()
	p.notify(e)
	if err != nil {
		return "", err
	}
	return id, nil
}

// SendPrompt implements ports.Messenger.
func (p *Platform) SendPrompt(ctx context.Context, channelID string, prompt domain.Prompt) (string, error) {
	p.mu.Lock()
	id := p.nextID("prompt")
	e, err := p.record(Event{Op: OpSendPrompt, ChannelID: channelID, MessageID: id, Prompt: &prompt})
	p.mu.Unlock()
	p.notify(e)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ClosePrompt implements ports.Messenger.
func (p *Platform) ClosePrompt(ctx context.Context, channelID, messageID, summary string) error {
	return p.do(Event{Op: OpClosePrompt, ChannelID: channelID, MessageID: messageID, Text: summary})
}

// History implements ports.Messenger, most recent first.
func (p *Platform) History(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	p.mu.Lock()
	e, err := p.record(Event{Op: OpHistory, ChannelID: channelID})
	var out []domain.Message
	if err == nil {
		msgs, ok := p.channels[channelID]
		if !ok {
			err = fmt.Errorf("channel %s: %w", channelID, domain.ErrTargetNotFound)
			p.events[len(p.events)-1].Err = err
			e.Err = err
		}
		for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
			out = append(out, msgs[i])
		}
	}
	p.mu.Unlock()
	p.notify(e)
	return out, err
}

// DeleteMessages implements ports.Messenger.
func (p *Platform) DeleteMessages(ctx context.Context, channelID string, ids []string) error {
	if len(ids) > domain.BulkDeleteLimit {
		return fmt.Errorf("bulk delete of %d messages exceeds %d: %w", len(ids), domain.BulkDeleteLimit, domain.ErrUnknown)
	}
	p.mu.Lock()
	e, err := p.record(Event{Op: OpDeleteMessage, ChannelID: channelID, IDs: slices.Clone(ids)})
	if err == nil {
		p.channels[channelID] = slices.DeleteFunc(p.channels[channelID], func(m domain.Message) bool {
			return slices.Contains(ids, m.ID)
		})
	}
	p.mu.Unlock()
	p.notify(e)
	return err
}

// CloneChannel implements ports.ChannelManager. The clone starts with an empty history.
func (p *Platform) CloneChannel(ctx context.Context, channelID string) (string, error) {
	p.mu.Lock()
	id := p.nextID("channel")
	e, err := p.record(Event{Op: OpCloneChannel, ChannelID: channelID, MessageID: id})
	if err == nil {
		if _, ok := p.channels[channelID]; !ok {
			err = fmt.Errorf("channel %s: %w", channelID, domain.ErrTargetNotFound)
			p.events[len(p.events)-1].Err = err
			e.Err = err
		} else {
			p.channels[id] = nil
		}
	}
	p.mu.Unlock()
	p.notify(e)
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteChannel implements ports.ChannelManager.
func (p *Platform) DeleteChannel(ctx context.Context, channelID string) error {
	p.mu.Lock()
	e, err := p.record(Event{Op: OpDeleteChannel, ChannelID: channelID})
	if err == nil {
		delete(p.channels, channelID)
	}
	p.mu.Unlock()
	p.notify(e)
	return err
}

// Events returns every recorded call matching op, or all calls when op is empty.
func (p *Platform) Events(op Op) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []Event
	for _, e := range p.events {
		if op == "" || e.Op == op {
			out = append(out, e)
		}
	}
	return out
}

// Messages returns a channel's history, oldest first.
func (p *Platform) Messages(channelID string) []domain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.channels[channelID])
}

// HasChannel reports whether the channel exists.
func (p *Platform) HasChannel(channelID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.channels[channelID]
	return ok
}

// AddChannel creates an empty channel.
func (p *Platform) AddChannel(channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.channels[channelID]; !ok {
		p.channels[channelID] = nil
	}
}
