package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/domain"
)

const (
	DefaultRetentionSize = 1024
	DefaultRetentionTTL  = 10 * time.Minute
)

// SettleFunc runs exactly once, outside the registry lock, after a session leaves
// Pending. Its error is handed back to the resolver; timer-driven errors are only logged.
type SettleFunc func(ctx context.Context, s domain.Session) error

// Result is what a successful Resolve returns.
type Result struct {
	Session domain.Session
	// SettleErr is the error returned by the session's SettleFunc.
	SettleErr error
}

type entry struct {
	session  domain.Session
	timer    *time.Timer
	done     chan struct{}
	onSettle SettleFunc
}

// Registry owns every interactive session of an engine.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*entry
	// settling holds claimed sessions whose settle callback is still running.
	settling map[string]*entry
	settled *expirable.LRU[string, domain.Session]

	logger *slog.Logger
	hooks  domain.LifecycleHooks
	now    func() time.Time
}

// Option configures the Registry.
type Option func(*registryConfig)

type registryConfig struct {
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	retentionSize int
	retentionTTL  time.Duration
}

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(c *registryConfig) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *registryConfig) {
		c.hooks = hooks
	}
}

// WithRetention sets how many settled sessions are kept, and for how long.
func WithRetention(size int, ttl time.Duration) Option {
	return func(c *registryConfig) {
		if size > 0 {
			c.retentionSize = size
		}
		if ttl > 0 {
			c.retentionTTL = ttl
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	cfg := registryConfig{
		logger:        logging.NewNop(),
		retentionSize: DefaultRetentionSize,
		retentionTTL:  DefaultRetentionTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{
		pending:  make(map[string]*entry),
		settling: make(map[string]*entry),
		settled:  expirable.NewLRU[string, domain.Session](cfg.retentionSize, nil, cfg.retentionTTL),
		logger:   cfg.logger,
		hooks:    cfg.hooks,
		now:      time.Now,
	}
}

// Open registers a pending session and arms its expiry timer.
// ID, CreatedAt and State are assigned by the registry.
func (r *Registry) Open(ctx context.Context, s domain.Session, onSettle SettleFunc) (domain.Session, error) {
	if s.Timeout <= 0 {
		return domain.Session{}, fmt.Errorf("%w: session timeout must be positive", domain.ErrInvalidRequest)
	}
	if s.InitiatorID == "" {
		return domain.Session{}, fmt.Errorf("%w: initiator is required", domain.ErrInvalidRequest)
	}

	s.ID = uuid.NewString()
	s.CreatedAt = r.now()
	s.State = domain.StatePending

	e := &entry{session: s, done: make(chan struct{}), onSettle: onSettle}

	r.mu.Lock()
	r.pending[s.ID] = e
	id := s.ID
	e.timer = time.AfterFunc(s.Timeout, func() { r.expire(id) })
	r.mu.Unlock()

	r.logger.Debug("Session opened", "session_id", s.ID, "kind", s.Kind, "timeout", s.Timeout)
	if r.hooks.OnSessionOpen != nil {
		r.hooks.OnSessionOpen(ctx, &domain.SessionEvent{
			Timestamp: s.CreatedAt,
			SessionID: s.ID,
			Kind:      s.Kind,
			State:     s.State,
		})
	}
	return s, nil
}

// SetAnchor records the message the session prompt was rendered into.
// It fails with domain.ErrNotFound if the session already settled.
func (r *Registry) SetAnchor(id, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pending[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	e.session.AnchorMessageID = messageID
	return nil
}

// Discard drops a pending session without settling it. Used when its prompt could not
// be rendered.
func (r *Registry) Discard(id string) {
	r.mu.Lock()
	e, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
		e.timer.Stop()
	}
	r.mu.Unlock()

	if ok {
		close(e.done)
		r.logger.Debug("Session discarded", "session_id", id)
	}
}

// Resolve settles a pending session on behalf of actorID.
//
// It fails with domain.ErrNotFound when no pending session has this id,
// domain.ErrUnauthorized when actorID is not the initiator and domain.ErrInvalidChoice
// when the choice does not apply to the session kind. Failures never change state.
func (r *Registry) Resolve(ctx context.Context, id, actorID string, choice domain.Choice) (Result, error) {
	e, err := r.claim(id, func(s domain.Session) (domain.SessionState, error) {
		if actorID != s.InitiatorID {
			return "", fmt.Errorf("%w: only the initiator can answer this prompt", domain.ErrUnauthorized)
		}
		return choice.Transition(s.Kind)
	})
	if err != nil {
		return Result{}, err
	}
	settleErr := r.settle(ctx, e)
	return Result{Session: e.session, SettleErr: settleErr}, nil
}

// expire is the timer path. Losing the claim is silent.
func (r *Registry) expire(id string) {
	e, err := r.claim(id, func(domain.Session) (domain.SessionState, error) {
		return domain.StateExpired, nil
	})
	if err != nil {
		return
	}
	if err := r.settle(context.Background(), e); err != nil {
		r.logger.Warn("Session expiry follow-up failed", "session_id", id, "err", err)
	}
}

// claim performs the single Pending -> terminal transition.
func (r *Registry) claim(id string, decide func(domain.Session) (domain.SessionState, error)) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pending[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	to, err := decide(e.session)
	if err != nil {
		return nil, err
	}

	delete(r.pending, id)
	e.timer.Stop()
	e.session.State = to
	e.session.SettledAt = r.now()
	r.settling[id] = e
	return e, nil
}

// settle runs the callback and then releases awaiters. The session only becomes
// visible as settled once the callback returned.
func (r *Registry) settle(ctx context.Context, e *entry) error {
	defer func() {
		r.mu.Lock()
		delete(r.settling, e.session.ID)
		r.settled.Add(e.session.ID, e.session)
		r.mu.Unlock()
		close(e.done)
	}()

	s := e.session
	r.logger.Info("Session settled", "session_id", s.ID, "kind", s.Kind, "state", s.State)
	if r.hooks.OnSessionSettle != nil {
		r.hooks.OnSessionSettle(ctx, &domain.SessionEvent{
			Timestamp: s.SettledAt,
			SessionID: s.ID,
			Kind:      s.Kind,
			State:     s.State,
			Elapsed:   s.SettledAt.Sub(s.CreatedAt),
		})
	}
	if e.onSettle == nil {
		return nil
	}
	return e.onSettle(ctx, s)
}

// Await blocks until the session is terminal and returns its final snapshot.
// It never returns a pending session; ctx.Err() is returned if the caller gives up.
func (r *Registry) Await(ctx context.Context, id string) (domain.Session, error) {
	r.mu.Lock()
	e, ok := r.pending[id]
	if !ok {
		e, ok = r.settling[id]
	}
	if !ok {
		s, found := r.settled.Get(id)
		r.mu.Unlock()
		if !found {
			return domain.Session{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
		}
		return s, nil
	}
	r.mu.Unlock()

	select {
	case <-e.done:
		if !e.session.State.Terminal() {
			return domain.Session{}, fmt.Errorf("%w: %s was discarded", domain.ErrNotFound, id)
		}
		return e.session, nil
	case <-ctx.Done():
		return domain.Session{}, ctx.Err()
	}
}

// Get returns the current snapshot of a pending or recently settled session.
func (r *Registry) Get(id string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.pending[id]; ok {
		return e.session, nil
	}
	if e, ok := r.settling[id]; ok {
		return e.session, nil
	}
	if s, ok := r.settled.Get(id); ok {
		return s, nil
	}
	return domain.Session{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
}

// Pending lists open sessions, oldest first.
func (r *Registry) Pending() []domain.Session {
	r.mu.Lock()
	out := make([]domain.Session, 0, len(r.pending))
	for _, e := range r.pending {
		out = append(out, e.session)
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b domain.Session) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// Shutdown expires every pending session, running their settle callbacks.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.expire(id)
	}
}
