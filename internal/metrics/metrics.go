// Package metrics records engine lifecycle events as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine collectors.
type Metrics struct {
	sessionsOpened  *prometheus.CounterVec
	sessionsSettled *prometheus.CounterVec
	sessionLifetime *prometheus.HistogramVec
	actions         *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec
	warns           prometheus.Counter
	escalations     prometheus.Counter
	purged          *prometheus.CounterVec
	purgeErrors     prometheus.Counter
	storeOps        *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sessionsOpened: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_sessions_opened_total",
			Help: "Prompt sessions opened, by kind",
		}, []string{"kind"}),
		sessionsSettled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_sessions_settled_total",
			Help: "Prompt sessions settled, by kind and terminal state",
		}, []string{"kind", "state"}),
		sessionLifetime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_session_lifetime_seconds",
			Help:    "Time from opening a prompt to its settlement",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_actions_total",
			Help: "Moderation actions executed, by kind and failure kind",
		}, []string{"kind", "result"}),
		actionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "warden_action_duration_seconds",
			Help: "Duration of platform calls made by moderation actions",
		}, []string{"kind"}),
		warns: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_warns_total",
			Help: "Warnings recorded",
		}),
		escalations: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_warn_escalations_total",
			Help: "Warnings that reached the guild threshold",
		}),
		purged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_purged_messages_total",
			Help: "Messages removed by purges, by filter",
		}, []string{"filter"}),
		purgeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_purge_errors_total",
			Help: "Purges that failed",
		}),
		storeOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_store_operation_duration_seconds",
			Help:    "Latency of guild config and warn store calls",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"op", "result"}),
	}
}

// ObserveStore records one store call. It satisfies middleware.Observer.
func (m *Metrics) ObserveStore(_ context.Context, op string, elapsed time.Duration, err error) {
	result := "ok"
	switch {
	case errors.Is(err, domain.ErrConfigNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	m.storeOps.WithLabelValues(op, result).Observe(elapsed.Seconds())
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionOpen: func(_ context.Context, e *domain.SessionEvent) {
			m.sessionsOpened.WithLabelValues(string(e.Kind)).Inc()
		},
		OnSessionSettle: func(_ context.Context, e *domain.SessionEvent) {
			m.sessionsSettled.WithLabelValues(string(e.Kind), string(e.State)).Inc()
			m.sessionLifetime.WithLabelValues(string(e.Kind)).Observe(e.Elapsed.Seconds())
		},
		OnAction: func(_ context.Context, e *domain.ActionEvent) {
			result := "success"
			if !e.Outcome.Success {
				result = string(e.Outcome.Failure)
			}
			m.actions.WithLabelValues(string(e.Outcome.Kind), result).Inc()
			m.actionDuration.WithLabelValues(string(e.Outcome.Kind)).Observe(e.Duration.Seconds())
		},
		OnWarn: func(_ context.Context, e *domain.WarnEvent) {
			m.warns.Inc()
			if e.Result.AutoMuted {
				m.escalations.Inc()
			}
		},
		OnPurge: func(_ context.Context, e *domain.PurgeEvent) {
			if e.Err != nil {
				m.purgeErrors.Inc()
				return
			}
			m.purged.WithLabelValues(string(e.Filter.Kind)).Add(float64(e.Deleted))
		},
	}
}
