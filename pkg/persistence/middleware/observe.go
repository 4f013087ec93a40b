package middleware

import (
	"context"
	"time"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
)

// Observe reports every call on a GuildConfigStore to obs.
func Observe(obs Observer) ConfigMiddleware {
	return func(next ports.GuildConfigStore) ports.GuildConfigStore {
		return &observedConfigs{next: next, obs: obs}
	}
}

// ObserveWarns reports every call on a WarnStore to obs.
func ObserveWarns(obs Observer) WarnMiddleware {
	return func(next ports.WarnStore) ports.WarnStore {
		return &observedWarns{next: next, obs: obs}
	}
}

type observedConfigs struct {
	next ports.GuildConfigStore
	obs  Observer
}

func (s *observedConfigs) Load(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	start := time.Now()
	cfg, err := s.next.Load(ctx, guildID)
	s.obs(ctx, "config.load", time.Since(start), err)
	return cfg, err
}

func (s *observedConfigs) Save(ctx context.Context, cfg domain.GuildConfig) error {
	start := time.Now()
	err := s.next.Save(ctx, cfg)
	s.obs(ctx, "config.save", time.Since(start), err)
	return err
}

func (s *observedConfigs) List(ctx context.Context) ([]domain.GuildConfig, error) {
	start := time.Now()
	cfgs, err := s.next.List(ctx)
	s.obs(ctx, "config.list", time.Since(start), err)
	return cfgs, err
}

type observedWarns struct {
	next ports.WarnStore
	obs  Observer
}

func (s *observedWarns) Get(ctx context.Context, guildID, userID string) (int, error) {
	start := time.Now()
	n, err := s.next.Get(ctx, guildID, userID)
	s.obs(ctx, "warn.get", time.Since(start), err)
	return n, err
}

func (s *observedWarns) Increment(ctx context.Context, guildID, userID string) (int, error) {
	start := time.Now()
	n, err := s.next.Increment(ctx, guildID, userID)
	s.obs(ctx, "warn.increment", time.Since(start), err)
	return n, err
}

func (s *observedWarns) Reset(ctx context.Context, guildID, userID string) error {
	start := time.Now()
	err := s.next.Reset(ctx, guildID, userID)
	s.obs(ctx, "warn.reset", time.Since(start), err)
	return err
}
