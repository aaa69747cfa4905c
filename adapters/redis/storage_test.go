package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"just3sec/core"
)

// newTestClient spins up a miniredis server and returns a client plus cleanup.
func newTestClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return client, cleanup
}

func int64p(v int64) *int64 { return &v }

func TestStore_SaveAndLoad(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	userID := core.UserID("test-user")

	snap := core.Snapshot{History: []int64{300, 12, 2999}, TotalGames: 140, BestRecord: int64p(3)}
	require.NoError(t, store.Save(ctx, userID, snap))
	require.NoError(t, store.SaveUnlocked(ctx, userID, core.NewUnlockedSet("play_100", "3sec_1")))

	// stored layout
	samples, err := client.LRange(ctx, historyKey(userID), 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"300", "12", "2999"}, samples)
	total, err := client.HGet(ctx, statsKey(userID), fieldTotalGames).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(140), total)

	rec, err := store.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, rec.UserID)
	assert.Equal(t, []int64{300, 12, 2999}, rec.History)
	assert.Equal(t, int64(140), rec.TotalGames)
	require.NotNil(t, rec.BestRecord)
	assert.Equal(t, int64(3), *rec.BestRecord)
	assert.True(t, rec.Unlocked.Has("play_100"))
	assert.True(t, time.Since(rec.Updated) < time.Minute)
}

func TestStore_SaveReplacesWindow(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "u", core.Snapshot{History: []int64{1, 2, 3}, TotalGames: 3, BestRecord: int64p(1)}))
	require.NoError(t, store.Save(ctx, "u", core.Snapshot{History: []int64{2, 3, 4}, TotalGames: 4, BestRecord: int64p(1)}))

	rec, err := store.Load(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, rec.History)
	assert.Equal(t, int64(4), rec.TotalGames)
}

func TestStore_LoadMissing(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	_, err := store.Load(context.Background(), "nonexistent-user")
	assert.ErrorIs(t, err, core.ErrRecordNotFound)
}

func TestStore_ClearKeepsAchievements(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "u", core.Snapshot{History: []int64{0}, TotalGames: 1, BestRecord: int64p(0)}))
	require.NoError(t, store.SaveUnlocked(ctx, "u", core.NewUnlockedSet("3sec_1")))
	require.NoError(t, store.Clear(ctx, "u"))

	rec, err := store.Load(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, rec.History)
	assert.Zero(t, rec.TotalGames)
	assert.Nil(t, rec.BestRecord)
	assert.True(t, rec.Unlocked.Has("3sec_1"))
}

func TestStore_LoadCache(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	userID := core.UserID("test-user-cache")

	require.NoError(t, store.Save(ctx, userID, core.Snapshot{History: []int64{10}, TotalGames: 1, BestRecord: int64p(10)}))

	// First load should build from keys and cache
	rec1, err := store.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec1.TotalGames)

	exists, err := client.Exists(ctx, recordKey(userID)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	// Modify underlying data directly (simulating external change)
	require.NoError(t, client.HSet(ctx, statsKey(userID), fieldTotalGames, 99).Err())

	rec2, err := store.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec2.TotalGames) // Should be cached value

	// A write invalidates the cache
	require.NoError(t, store.SaveUnlocked(ctx, userID, core.NewUnlockedSet("play_1")))

	rec3, err := store.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(99), rec3.TotalGames)
	assert.True(t, rec3.Unlocked.Has("play_1"))
}

func TestStore_LoadDoesNotCacheOverConcurrentWrite(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	userID := core.UserID("test-user-race")
	require.NoError(t, store.Save(ctx, userID, core.Snapshot{History: []int64{10}, TotalGames: 1}))

	// a load builds its record, then a save lands before the cache write
	stale, version, err := store.buildRecordFromKeys(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, userID, core.Snapshot{History: []int64{10, 20}, TotalGames: 2}))

	written, err := store.updateRecordCache(ctx, userID, stale, version)
	require.NoError(t, err)
	assert.False(t, written)
	exists, err := client.Exists(ctx, recordKey(userID)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	rec, err := store.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.TotalGames)
	assert.Equal(t, []int64{10, 20}, rec.History)

	// the version bump covers every kind of write
	_, version, err = store.buildRecordFromKeys(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx, userID))
	written, err = store.updateRecordCache(ctx, userID, rec, version)
	require.NoError(t, err)
	assert.False(t, written)

	_, version, err = store.buildRecordFromKeys(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, store.SaveUnlocked(ctx, userID, core.NewUnlockedSet("play_1")))
	written, err = store.updateRecordCache(ctx, userID, rec, version)
	require.NoError(t, err)
	assert.False(t, written)
}

func TestStore_SaveUnlockedOnlyGrows(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	require.NoError(t, store.SaveUnlocked(ctx, "u", core.NewUnlockedSet("play_1", "play_10")))
	require.NoError(t, store.SaveUnlocked(ctx, "u", core.NewUnlockedSet("play_1")))
	require.NoError(t, store.SaveUnlocked(ctx, "u", nil))

	members, err := client.SMembers(ctx, achievementsKey("u")).Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"play_1", "play_10"}, members)
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "localhost:6379", config.Addr)
	assert.Equal(t, "", config.Password)
	assert.Equal(t, 0, config.DB)
	assert.Equal(t, 10, config.PoolSize)
	assert.Equal(t, 2, config.MinIdleConns)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, 3*time.Second, config.ReadTimeout)
	assert.Equal(t, 3*time.Second, config.WriteTimeout)
}
