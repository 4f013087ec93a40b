// Package cli wires configuration, stores, metrics and the engine together for the
// warden binary.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/warden"
	"github.com/aretw0/warden/internal/config"
	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/internal/metrics"
	"github.com/aretw0/warden/pkg/adapters/memory"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/persistence/middleware"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is a started engine plus everything it owns.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Engine   *warden.Engine
	Backend  *Backend
	Registry *prometheus.Registry // nil when metrics are disabled
}

type appOptions struct {
	platform  ports.Platform
	hooks     domain.LifecycleHooks
	hookFuncs []func(*slog.Logger) domain.LifecycleHooks
	logWriter io.Writer
}

// Option customises NewApp.
type Option func(*appOptions)

// WithPlatform replaces the default in-memory platform.
func WithPlatform(p ports.Platform) Option {
	return func(o *appOptions) {
		o.platform = p
	}
}

// WithHooks adds lifecycle hooks next to the logging and metrics ones.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(o *appOptions) {
		o.hooks = o.hooks.Merge(h)
	}
}

// WithHooksFrom adds hooks built from the app logger, for components that must log
// alongside the engine.
func WithHooksFrom(fn func(*slog.Logger) domain.LifecycleHooks) Option {
	return func(o *appOptions) {
		o.hookFuncs = append(o.hookFuncs, fn)
	}
}

// WithLogWriter sends logs somewhere other than stderr.
func WithLogWriter(w io.Writer) Option {
	return func(o *appOptions) {
		o.logWriter = w
	}
}

// NewApp opens the configured backend, builds the engine and warms its config cache.
func NewApp(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := appOptions{logWriter: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if o.platform == nil {
		o.platform = memory.NewPlatform()
	}

	logger := logging.NewWithWriter(o.logWriter, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	backend, err := OpenBackend(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	hooks := LogHooks(logger)
	observers := []middleware.Observer{LogStoreCalls(logger.With("component", "store"))}
	var reg *prometheus.Registry
	if cfg.Metrics {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New(reg)
		hooks = hooks.Merge(m.Hooks())
		observers = append(observers, m.ObserveStore)
	}
	hooks = hooks.Merge(o.hooks)
	for _, fn := range o.hookFuncs {
		hooks = hooks.Merge(fn(logger))
	}

	var configMW []middleware.ConfigMiddleware
	var warnMW []middleware.WarnMiddleware
	for _, obs := range observers {
		configMW = append(configMW, middleware.Observe(obs))
		warnMW = append(warnMW, middleware.ObserveWarns(obs))
	}

	engineOpts := []warden.Option{
		warden.WithLogger(logger),
		warden.WithLifecycleHooks(hooks),
		warden.WithPlatform(o.platform),
		warden.WithConfigStore(middleware.ChainConfigs(backend.Configs, configMW...)),
		warden.WithWarnStore(middleware.ChainWarns(backend.Warns, warnMW...)),
		warden.WithConfirmTimeout(cfg.ConfirmTimeout),
		warden.WithNotifyTimeout(cfg.NotifyTimeout),
		warden.WithMuteDuration(cfg.MuteDuration),
	}
	if backend.Locker != nil {
		engineOpts = append(engineOpts, warden.WithLocker(backend.Locker))
	}

	engine, err := warden.New(engineOpts...)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	if err := engine.Start(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to load guild configs: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Engine:   engine,
		Backend:  backend,
		Registry: reg,
	}, nil
}

// Gatherer returns the metrics registry, or nil when metrics are off.
func (a *App) Gatherer() prometheus.Gatherer {
	if a.Registry == nil {
		return nil
	}
	return a.Registry
}

// Close stops the engine and releases the backend.
func (a *App) Close() error {
	_ = a.Engine.Close()
	return a.Backend.Close()
}
