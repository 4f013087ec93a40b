// Package middleware decorates guild config and warn stores with cross-cutting behaviour.
package middleware

import (
	"context"
	"time"

	"github.com/aretw0/warden/pkg/ports"
)

// ConfigMiddleware wraps a GuildConfigStore to add behavior.
type ConfigMiddleware func(ports.GuildConfigStore) ports.GuildConfigStore

// WarnMiddleware wraps a WarnStore to add behavior.
type WarnMiddleware func(ports.WarnStore) ports.WarnStore

// Observer receives the outcome of every store call. op is "<store>.<method>",
// e.g. "config.save" or "warn.increment".
type Observer func(ctx context.Context, op string, elapsed time.Duration, err error)

// ChainConfigs applies middlewares so the first one is the outermost.
func ChainConfigs(store ports.GuildConfigStore, mws ...ConfigMiddleware) ports.GuildConfigStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// ChainWarns applies middlewares so the first one is the outermost.
func ChainWarns(store ports.WarnStore, mws ...WarnMiddleware) ports.WarnStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
