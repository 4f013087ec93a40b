package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActionKind identifies a privileged moderation action.
type ActionKind string

const (
	ActionBan    ActionKind = "ban"
	ActionKick   ActionKind = "kick"
	ActionMute   ActionKind = "mute"
	ActionUnmute ActionKind = "unmute"
)

// DefaultReason is applied to human-facing actions issued without a reason.
const DefaultReason = "No reason provided."

// EscalationReason is the system-generated reason for a mute triggered by the warn ledger.
const EscalationReason = "exceeded warning limit"

const (
	// DefaultMuteDuration is used when a mute is requested without a duration.
	DefaultMuteDuration = 10 * time.Minute
	// MaxMuteDuration is the longest timeout the platform accepts.
	MaxMuteDuration = 28 * 24 * time.Hour
)

// ActionKinds returns the closed set of supported action kinds.
func ActionKinds() []ActionKind {
	return []ActionKind{ActionBan, ActionKick, ActionMute, ActionUnmute}
}

// Valid reports whether k belongs to the closed set of action kinds.
func (k ActionKind) Valid() bool {
	for _, known := range ActionKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Notifiable reports whether a completed action of this kind offers a notification prompt.
func (k ActionKind) Notifiable() bool {
	return k == ActionBan || k == ActionKick || k == ActionMute
}

// PastTense renders the kind for user-facing messages ("banned", "kicked", ...).
func (k ActionKind) PastTense() string {
	switch k {
	case ActionBan:
		return "banned"
	case ActionKick:
		return "kicked"
	case ActionMute:
		return "muted"
	case ActionUnmute:
		return "unmuted"
	default:
		return string(k)
	}
}

// Headline is PastTense with its first letter upper-cased ("Banned").
func (k ActionKind) Headline() string {
	return Capitalize(k.PastTense())
}

// Capitalize upper-cases the first byte of an ASCII word.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseActionKind maps a case-insensitive name onto an ActionKind.
func ParseActionKind(s string) (ActionKind, error) {
	k := ActionKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown action kind %q", ErrInvalidRequest, s)
	}
	return k, nil
}

// ActionRequest describes a single privileged action to apply through the platform.
type ActionRequest struct {
	Kind         ActionKind    `json:"kind"`
	GuildID      string        `json:"guild_id"`
	TargetUserID string        `json:"target_user_id"`
	Reason       string        `json:"reason,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"` // Mute only
	// Silent requests skip the default reason and the notification prompt.
	Silent bool `json:"silent,omitempty"`
}

// EffectiveReason returns the reason that is sent to the platform.
func (r ActionRequest) EffectiveReason() string {
	if r.Reason != "" || r.Silent {
		return r.Reason
	}
	return DefaultReason
}

// EffectiveDuration returns the mute duration, defaulted and capped.
func (r ActionRequest) EffectiveDuration() time.Duration {
	switch {
	case r.Duration <= 0:
		return DefaultMuteDuration
	case r.Duration > MaxMuteDuration:
		return MaxMuteDuration
	default:
		return r.Duration
	}
}

// ActionOutcome is the normalized result of an ActionRequest. It is never persisted.
type ActionOutcome struct {
	Kind         ActionKind  `json:"kind"`
	TargetUserID string      `json:"target_user_id"`
	Reason       string      `json:"reason,omitempty"`
	Success      bool        `json:"success"`
	Failure      FailureKind `json:"failure,omitempty"`
}
