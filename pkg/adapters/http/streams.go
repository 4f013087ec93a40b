package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/warden/pkg/domain"
)

// StreamEvent is one server-sent event.
type StreamEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// StreamManager fans engine lifecycle events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	logger      *slog.Logger
	subscribers map[chan<- string]struct{}
}

// NewStreamManager creates an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		logger:      logger,
		subscribers: make(map[chan<- string]struct{}),
	}
}

// Subscribe registers a subscriber. The returned func unregisters it.
func (sm *StreamManager) Subscribe() (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Broadcast sends an event to every subscriber. Slow subscribers miss events.
func (sm *StreamManager) Broadcast(eventType string, data any) {
	payload, err := json.Marshal(StreamEvent{Type: eventType, Data: data})
	if err != nil {
		sm.logger.Error("failed to encode stream event", "type", eventType, "err", err)
		return
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subscribers {
		select {
		case ch <- string(payload):
		default:
			sm.logger.Warn("SSE: client buffer full, dropping event", "type", eventType)
		}
	}
}

// Hooks returns lifecycle hooks that broadcast every engine event.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionOpen: func(_ context.Context, e *domain.SessionEvent) {
			sm.Broadcast("session_open", e)
		},
		OnSessionSettle: func(_ context.Context, e *domain.SessionEvent) {
			sm.Broadcast("session_settle", e)
		},
		OnAction: func(_ context.Context, e *domain.ActionEvent) {
			sm.Broadcast("action", e)
		},
		OnWarn: func(_ context.Context, e *domain.WarnEvent) {
			sm.Broadcast("warn", e)
		},
		OnPurge: func(_ context.Context, e *domain.PurgeEvent) {
			sm.Broadcast("purge", e)
		},
	}
}

// SubscribeEvents handles GET /events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
