package domain

import (
	"fmt"
	"strings"
)

const (
	// MinPurgeCount and MaxPurgeCount bound PurgeRequest.RequestedCount.
	MinPurgeCount = 1
	MaxPurgeCount = 100
	// BulkDeleteLimit is the largest id batch the platform accepts in one delete call.
	BulkDeleteLimit = 100
)

// FilterKind tags the purge predicate.
type FilterKind string

const (
	FilterAll    FilterKind = "all"
	FilterBot    FilterKind = "bot"
	FilterHuman  FilterKind = "human"
	FilterByUser FilterKind = "user"
)

// PurgeFilter selects which messages a purge removes.
type PurgeFilter struct {
	Kind   FilterKind `json:"kind"`
	UserID string     `json:"user_id,omitempty"` // FilterByUser only
}

func (f PurgeFilter) String() string {
	if f.Kind == FilterByUser {
		return string(f.Kind) + ":" + f.UserID
	}
	return string(f.Kind)
}

// Matches reports whether a message qualifies for deletion.
func (f PurgeFilter) Matches(m Message) bool {
	switch f.Kind {
	case FilterAll:
		return true
	case FilterBot:
		return m.AuthorBot
	case FilterHuman:
		return !m.AuthorBot
	case FilterByUser:
		return m.AuthorID == f.UserID
	default:
		return false
	}
}

// Validate rejects unknown kinds and user filters without a user.
func (f PurgeFilter) Validate() error {
	switch f.Kind {
	case FilterAll, FilterBot, FilterHuman:
		return nil
	case FilterByUser:
		if f.UserID == "" {
			return fmt.Errorf("%w: user filter requires a user id", ErrInvalidRequest)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown purge filter %q", ErrInvalidRequest, f.Kind)
}

// ParseFilter maps the clear subcommand names onto a filter.
// An empty name selects every message.
func ParseFilter(name, userID string) (PurgeFilter, error) {
	var f PurgeFilter
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "all":
		f = PurgeFilter{Kind: FilterAll}
	case "bot", "bots":
		f = PurgeFilter{Kind: FilterBot}
	case "human", "humans":
		f = PurgeFilter{Kind: FilterHuman}
	case "user", "member":
		f = PurgeFilter{Kind: FilterByUser, UserID: userID}
	default:
		return PurgeFilter{}, fmt.Errorf("%w: unknown purge filter %q", ErrInvalidRequest, name)
	}
	return f, f.Validate()
}

// Message is the slice of a chat message the purge engine needs.
type Message struct {
	ID        string `json:"id"`
	AuthorID  string `json:"author_id"`
	AuthorBot bool   `json:"author_bot"`
}

// PurgeRequest describes one bulk delete.
type PurgeRequest struct {
	ChannelID      string      `json:"channel_id"`
	RequestedCount int         `json:"requested_count"`
	Filter         PurgeFilter `json:"filter"`
	// ExcludeMessageID is the triggering command message. It is deleted with the batch
	// but never counted.
	ExcludeMessageID string `json:"exclude_message_id,omitempty"`
}

// ClampedCount returns RequestedCount bounded to [MinPurgeCount, MaxPurgeCount].
func (r PurgeRequest) ClampedCount() int {
	return min(max(r.RequestedCount, MinPurgeCount), MaxPurgeCount)
}

// PurgeResult reports how many qualifying messages were removed.
type PurgeResult struct {
	Deleted int `json:"deleted"`
}
