package cli_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/warden/internal/cli"
	"github.com/aretw0/warden/internal/config"
	"github.com/aretw0/warden/pkg/adapters/memory"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, backend string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.LogLevel = "debug"
	cfg.Store.Backend = backend
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "warden.db")
	cfg.Store.LoamDir = filepath.Join(t.TempDir(), "guilds")
	if backend == config.BackendRedis {
		mr := miniredis.RunT(t)
		cfg.Store.RedisURL = "redis://" + mr.Addr()
	}
	return cfg
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{config.BackendMemory, config.BackendRedis, config.BackendSQLite, config.BackendLoam} {
		t.Run(backend, func(t *testing.T) {
			b, err := cli.OpenBackend(ctx, testConfig(t, backend).Store, testLogger(&bytes.Buffer{}))
			require.NoError(t, err)
			defer func() { assert.NoError(t, b.Close()) }()

			assert.Equal(t, backend, b.Name)
			assert.NotNil(t, b.Configs)
			assert.NotNil(t, b.Warns)
			assert.Equal(t, backend == config.BackendRedis, b.Locker != nil)

			require.NoError(t, b.Configs.Save(ctx, domain.GuildConfig{GuildID: "g1", MaxWarns: 4, UpdatedAt: time.Now()}))
			got, err := b.Configs.Load(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, 4, got.MaxWarns)
		})
	}
}

func TestOpenBackendErrors(t *testing.T) {
	ctx := context.Background()

	_, err := cli.OpenBackend(ctx, config.StoreConfig{Backend: "etcd"}, testLogger(&bytes.Buffer{}))
	assert.ErrorContains(t, err, "unknown store backend")

	_, err = cli.OpenBackend(ctx, config.StoreConfig{Backend: config.BackendRedis, RedisURL: "redis://127.0.0.1:1/0"}, testLogger(&bytes.Buffer{}))
	assert.ErrorContains(t, err, "failed to reach redis")
}

func TestNewApp(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendSQLite)
	cfg.MuteDuration = time.Minute

	var logs bytes.Buffer
	platform := memory.NewPlatform()
	var warned int
	app, err := cli.NewApp(ctx, cfg,
		cli.WithPlatform(platform),
		cli.WithLogWriter(&logs),
		cli.WithHooks(domain.LifecycleHooks{
			OnWarn: func(context.Context, *domain.WarnEvent) { warned++ },
		}),
	)
	require.NoError(t, err)
	defer func() { assert.NoError(t, app.Close()) }()

	_, err = app.Engine.SetMaxWarns(ctx, "g1", 1)
	require.NoError(t, err)
	res, err := app.Engine.Warn(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.True(t, res.AutoMuted)
	assert.Len(t, platform.Events(memory.OpSetTimeout), 1)
	assert.Equal(t, 1, warned)

	assert.Contains(t, logs.String(), "Warn Recorded")

	require.NotNil(t, app.Gatherer())
	families, err := app.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "warden_warns_total")
	assert.Contains(t, names, "warden_warn_escalations_total")
	assert.Contains(t, names, "warden_store_operation_duration_seconds")
}

func TestNewAppHooksFromShareLogger(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendMemory)
	cfg.Metrics = false

	var logs bytes.Buffer
	var warned int
	app, err := cli.NewApp(ctx, cfg,
		cli.WithLogWriter(&logs),
		cli.WithHooksFrom(func(logger *slog.Logger) domain.LifecycleHooks {
			streams := logger.With("component", "streams")
			return domain.LifecycleHooks{
				OnWarn: func(context.Context, *domain.WarnEvent) {
					warned++
					streams.Info("Event broadcast")
				},
			}
		}),
	)
	require.NoError(t, err)
	defer func() { assert.NoError(t, app.Close()) }()

	_, err = app.Engine.Warn(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, warned)
	assert.Contains(t, logs.String(), "Event broadcast")
	assert.Contains(t, logs.String(), "component=streams")
}

func TestLogStoreCalls(t *testing.T) {
	var logs bytes.Buffer
	obs := cli.LogStoreCalls(testLogger(&logs))
	ctx := context.Background()

	obs(ctx, "config.load", time.Millisecond, domain.ErrConfigNotFound)
	obs(ctx, "warn.get", time.Millisecond, nil)
	assert.Empty(t, logs.String())

	obs(ctx, "warn.increment", time.Millisecond, errors.New("down"))
	assert.Contains(t, logs.String(), "Store Call Failed")

	obs(ctx, "config.save", time.Second, nil)
	assert.Contains(t, logs.String(), "Slow Store Call")
}

func TestNewAppReloadsConfigs(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendLoam)
	cfg.Metrics = false

	first, err := cli.NewApp(ctx, cfg, cli.WithLogWriter(&bytes.Buffer{}))
	require.NoError(t, err)
	_, err = first.Engine.SetMaxWarns(ctx, "g1", 7)
	require.NoError(t, err)
	require.NoError(t, first.Close())
	assert.Nil(t, first.Gatherer())

	second, err := cli.NewApp(ctx, cfg, cli.WithLogWriter(&bytes.Buffer{}))
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, 7, second.Engine.GuildConfig("g1").MaxWarns)
}

func TestSignalContextCancel(t *testing.T) {
	sc := cli.NewSignalContext(context.Background())
	sc.Cancel()
	<-sc.Done()
	assert.Nil(t, sc.Signal())
}
