package domain

import (
	"fmt"
	"strings"
	"time"
)

// SessionKind distinguishes the two interactive session flavours.
type SessionKind string

const (
	KindConfirmation SessionKind = "confirmation"
	KindNotification SessionKind = "notification"
)

// SessionState is the lifecycle state of an interactive session.
// A session leaves StatePending exactly once.
type SessionState string

const (
	StatePending    SessionState = "pending"
	StateConfirmed  SessionState = "confirmed"
	StateCancelled  SessionState = "cancelled"
	StateNotified   SessionState = "notified"
	StateSuppressed SessionState = "suppressed"
	StateExpired    SessionState = "expired"
)

// Terminal reports whether the state is final.
func (s SessionState) Terminal() bool {
	return s != StatePending && s != ""
}

// Choice is the operator's answer to a session prompt.
type Choice string

const (
	ChoiceAffirm   Choice = "affirm"
	ChoiceDeny     Choice = "deny"
	ChoiceNotify   Choice = "notify"
	ChoiceSuppress Choice = "suppress"
)

// Reaction emojis accepted in addition to buttons on confirmation prompts.
const (
	EmojiAffirm = "✅"
	EmojiDeny   = "❌"
)

// ParseChoice maps button ids, reaction emojis and common words onto a Choice.
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ChoiceAffirm), "confirm", "yes", "y", EmojiAffirm:
		return ChoiceAffirm, nil
	case string(ChoiceDeny), "cancel", "no", "n", EmojiDeny:
		return ChoiceDeny, nil
	case string(ChoiceNotify):
		return ChoiceNotify, nil
	case string(ChoiceSuppress), "dont_notify", "don't notify", "silent":
		return ChoiceSuppress, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChoice, s)
}

// Transition returns the terminal state a choice leads to for the given session kind.
func (c Choice) Transition(kind SessionKind) (SessionState, error) {
	switch {
	case kind == KindConfirmation && c == ChoiceAffirm:
		return StateConfirmed, nil
	case kind == KindConfirmation && c == ChoiceDeny:
		return StateCancelled, nil
	case kind == KindNotification && c == ChoiceNotify:
		return StateNotified, nil
	case kind == KindNotification && c == ChoiceSuppress:
		return StateSuppressed, nil
	}
	return "", fmt.Errorf("%w: %q does not apply to %s sessions", ErrInvalidChoice, c, kind)
}

// Session is an interactive, single-use prompt addressed by ID.
// It carries everything needed to authorize and settle it, independent of the call
// stack that opened it.
type Session struct {
	ID              string        `json:"id"`
	Kind            SessionKind   `json:"kind"`
	InitiatorID     string        `json:"initiator_id"`
	ChannelID       string        `json:"channel_id"`
	AnchorMessageID string        `json:"anchor_message_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	Timeout         time.Duration `json:"timeout"`
	State           SessionState  `json:"state"`
	SettledAt       time.Time     `json:"settled_at,omitempty"`

	// Notification fields.
	GuildID      string     `json:"guild_id,omitempty"`
	GuildName    string     `json:"guild_name,omitempty"`
	TargetUserID string     `json:"target_user_id,omitempty"`
	Action       ActionKind `json:"action,omitempty"`
	Reason       string     `json:"reason,omitempty"`

	// Confirmation fields.
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Deadline is the instant at which a pending session expires.
func (s Session) Deadline() time.Time {
	return s.CreatedAt.Add(s.Timeout)
}

// PromptOption is one selectable answer rendered by the messenger.
type PromptOption struct {
	// CustomID is the interaction id the platform echoes back, "<session>:<choice>".
	CustomID string `json:"custom_id"`
	Label    string `json:"label"`
	Emoji    string `json:"emoji,omitempty"`
	Choice   Choice `json:"choice"`
	Danger   bool   `json:"danger,omitempty"`
}

// Prompt is the interactive message a session is anchored to.
type Prompt struct {
	SessionID      string         `json:"session_id"`
	Title          string         `json:"title"`
	Body           string         `json:"body,omitempty"`
	AllowedActorID string         `json:"allowed_actor_id"`
	Options        []PromptOption `json:"options"`
	// Reactions asks the messenger to also seed the option emojis as reactions.
	Reactions bool `json:"reactions,omitempty"`
}

// CustomID builds the interaction id for a session option.
func CustomID(sessionID string, c Choice) string {
	return sessionID + ":" + string(c)
}

// ParseCustomID splits an interaction id produced by CustomID.
func ParseCustomID(customID string) (string, Choice, error) {
	i := strings.LastIndex(customID, ":")
	if i <= 0 || i == len(customID)-1 {
		return "", "", fmt.Errorf("%w: malformed interaction id %q", ErrInvalidRequest, customID)
	}
	c, err := ParseChoice(customID[i+1:])
	if err != nil {
		return "", "", err
	}
	return customID[:i], c, nil
}
