package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/warden/pkg/adapters/redis"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

var (
	_ ports.GuildConfigStore  = (*redis.ConfigStore)(nil)
	_ ports.WarnStore         = (*redis.WarnStore)(nil)
	_ ports.DistributedLocker = (*redis.Locker)(nil)
)

func TestConfigStore_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunGuildConfigStoreContract(t, redis.NewConfigStore(client))
}

func TestWarnStore_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunWarnStoreContract(t, redis.NewWarnStore(client))
}

func TestConfigStore_Prefix(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewConfigStore(client, redis.WithPrefix("test:"))

	require.NoError(t, store.Save(context.Background(), domain.GuildConfig{GuildID: "g1", MaxWarns: 4}))
	assert.True(t, mr.Exists("test:guild:g1"))
	members, err := mr.Members("test:guild:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, members)
}

func TestConfigStore_ListSkipsDanglingIndex(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewConfigStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.GuildConfig{GuildID: "g1", MaxWarns: 4}))
	require.NoError(t, store.Save(ctx, domain.GuildConfig{GuildID: "g2", MaxWarns: 5}))
	mr.Del(redis.DefaultPrefix + "guild:g2")

	configs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "g1", configs[0].GuildID)
}

func TestConfigStore_RejectsInvalid(t *testing.T) {
	_, client := setup(t)
	err := redis.NewConfigStore(client).Save(context.Background(), domain.GuildConfig{GuildID: "g1", MaxWarns: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestWarnStore_HashLayout(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewWarnStore(client)

	_, err := store.Increment(context.Background(), "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "1", mr.HGet(redis.DefaultPrefix+"warns:g1", "u1"))
}

func TestLocker_LockUnlock(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "resource1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:resource1"), "Lock key should be set in Redis")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:resource1"), "Lock key should be removed after unlock")
}

func TestLocker_Contention(t *testing.T) {
	_, client := setup(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker1.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = locker2.Lock(shortCtx, "shared", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestLocker_UnlockDoesNotStealForeignLock(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)

	// Our lease expired and someone else took the lock.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("test:lock:k", "someone-else"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get("test:lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
