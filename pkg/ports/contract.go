package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGuildConfigStoreContract verifies that a GuildConfigStore implementation
// adheres to the interface contract.
func RunGuildConfigStoreContract(t *testing.T, store GuildConfigStore) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")
	guildID := "contract-guild-" + suffix

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+guildID)
		assert.ErrorIs(t, err, domain.ErrConfigNotFound)
	})

	t.Run("Save and Load", func(t *testing.T) {
		cfg := domain.GuildConfig{GuildID: guildID, MaxWarns: 5, UpdatedAt: time.Now().UTC()}
		require.NoError(t, store.Save(ctx, cfg), "Save should not return error")

		loaded, err := store.Load(ctx, guildID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, guildID, loaded.GuildID)
		assert.Equal(t, 5, loaded.MaxWarns)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.GuildConfig{GuildID: guildID, MaxWarns: 2}))

		loaded, err := store.Load(ctx, guildID)
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.MaxWarns)
	})

	t.Run("List", func(t *testing.T) {
		other := guildID + "-other"
		require.NoError(t, store.Save(ctx, domain.GuildConfig{GuildID: other, MaxWarns: 7}))

		configs, err := store.List(ctx)
		require.NoError(t, err)

		found := make(map[string]int)
		for _, c := range configs {
			found[c.GuildID] = c.MaxWarns
		}
		assert.Equal(t, 2, found[guildID])
		assert.Equal(t, 7, found[other])
	})
}

// RunWarnStoreContract verifies that a WarnStore implementation adheres to the
// interface contract, including atomic increments under concurrency.
func RunWarnStoreContract(t *testing.T, store WarnStore) {
	ctx := context.Background()
	guildID := "contract-guild-" + time.Now().Format("20060102150405.000000000")

	t.Run("Get Non-Existent", func(t *testing.T) {
		n, err := store.Get(ctx, guildID, "nobody")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Increment", func(t *testing.T) {
		for want := 1; want <= 3; want++ {
			n, err := store.Increment(ctx, guildID, "u1")
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}
		n, err := store.Get(ctx, guildID, "u1")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("Scoped Per Guild", func(t *testing.T) {
		n, err := store.Get(ctx, guildID+"-other", "u1")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Reset", func(t *testing.T) {
		require.NoError(t, store.Reset(ctx, guildID, "u1"))
		n, err := store.Get(ctx, guildID, "u1")
		require.NoError(t, err)
		assert.Zero(t, n)

		// Reset of an unknown record is a no-op.
		require.NoError(t, store.Reset(ctx, guildID, "nobody"))
	})

	t.Run("Concurrent Increment", func(t *testing.T) {
		const workers = 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Increment(ctx, guildID, "racer")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		n, err := store.Get(ctx, guildID, "racer")
		require.NoError(t, err)
		assert.Equal(t, workers, n)
	})
}
