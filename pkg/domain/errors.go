package domain

import (
	"context"
	"errors"
)

// Collaborator failures. Platform adapters wrap these so the engine can classify them.
var (
	// ErrPermissionDenied is returned when the operator or the bot lacks the required rights.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTargetNotFound is returned when the referenced user, message or channel no longer exists.
	ErrTargetNotFound = errors.New("target not found")

	// ErrRateLimited is returned when the platform throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnknown is the catch-all collaborator failure.
	ErrUnknown = errors.New("unknown failure")
)

// Caller and session errors.
var (
	// ErrInvalidConfig is returned when a configuration write is rejected.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidRequest is returned for malformed inbound requests.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnauthorized is returned when someone other than the initiator resolves a session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when no pending session exists for an id.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidChoice is returned when a choice does not apply to the session kind.
	ErrInvalidChoice = errors.New("invalid choice")

	// ErrConfigNotFound is returned by stores when a guild has no persisted config.
	ErrConfigNotFound = errors.New("guild config not found")
)

// FailureKind classifies why a collaborator call failed.
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailurePermissionDenied FailureKind = "permission_denied"
	FailureTargetNotFound   FailureKind = "target_not_found"
	FailureRateLimited      FailureKind = "rate_limited"
	FailureUnknown          FailureKind = "unknown"
)

// Classify maps a collaborator error onto a FailureKind.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrPermissionDenied):
		return FailurePermissionDenied
	case errors.Is(err, ErrTargetNotFound):
		return FailureTargetNotFound
	case errors.Is(err, ErrRateLimited):
		return FailureRateLimited
	default:
		return FailureUnknown
	}
}

// Err returns the sentinel error matching the failure kind, or nil for FailureNone.
func (f FailureKind) Err() error {
	switch f {
	case FailureNone:
		return nil
	case FailurePermissionDenied:
		return ErrPermissionDenied
	case FailureTargetNotFound:
		return ErrTargetNotFound
	case FailureRateLimited:
		return ErrRateLimited
	default:
		return ErrUnknown
	}
}

// Message is the explanation shown to operators when an action fails.
func (f FailureKind) Message() string {
	switch f {
	case FailureNone:
		return ""
	case FailurePermissionDenied:
		return "I don't have permission to do that."
	case FailureTargetNotFound:
		return "That user, message or channel no longer exists."
	case FailureRateLimited:
		return "The platform is rate limiting requests. Please try again later."
	default:
		return "Something went wrong. Please try again."
	}
}

// IsContextError reports whether err came from a cancelled or expired context.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
