package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"just3sec/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" toml:"addr" env:"JUST3SEC_REDIS_ADDR"`
	Password     string        `json:"password,omitempty" toml:"password" env:"JUST3SEC_REDIS_PASSWORD"`
	DB           int           `json:"db" toml:"db" env:"JUST3SEC_REDIS_DB"`
	PoolSize     int           `json:"pool_size" toml:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns" toml:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout" toml:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" toml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" toml:"write_timeout"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements the engine.Storage interface using Redis as the backend.
// Data structure:
// - user:{user_id}:history -> list of error samples, oldest first
// - user:{user_id}:stats -> hash with total_games, best_record, updated and
//   version, bumped by every write
// - user:{user_id}:achievements -> set of unlocked achievement ids
// - user:{user_id}:record -> JSON blob of core.Record for quick retrieval
type Store struct {
	client   *redis.Client
	cacheTTL time.Duration
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, cacheTTL: 5 * time.Minute}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func historyKey(userID core.UserID) string {
	return fmt.Sprintf("user:%s:history", userID)
}

func statsKey(userID core.UserID) string {
	return fmt.Sprintf("user:%s:stats", userID)
}

func achievementsKey(userID core.UserID) string {
	return fmt.Sprintf("user:%s:achievements", userID)
}

func recordKey(userID core.UserID) string {
	return fmt.Sprintf("user:%s:record", userID)
}

const (
	fieldTotalGames = "total_games"
	fieldBestRecord = "best_record"
	fieldUpdated    = "updated"
	fieldVersion    = "version"
)

// Replaces the history list and the counters in one step so readers never
// see a window that disagrees with total_games.
var saveSnapshotScript = redis.NewScript(`
	local history = KEYS[1]
	local stats = KEYS[2]
	redis.call('DEL', history)
	if #ARGV > 3 then
		redis.call('RPUSH', history, unpack(ARGV, 4))
	end
	redis.call('HSET', stats, 'total_games', ARGV[1], 'updated', ARGV[3])
	redis.call('HINCRBY', stats, 'version', 1)
	if ARGV[2] == '' then
		redis.call('HDEL', stats, 'best_record')
	else
		redis.call('HSET', stats, 'best_record', ARGV[2])
	end
	return redis.call('LLEN', history)
`)

// Writes the cached record only while the stats version still matches the
// one it was built from, so a write racing the load cannot be cached over.
var cacheRecordScript = redis.NewScript(`
	local current = redis.call('HGET', KEYS[1], 'version') or ''
	if current ~= ARGV[1] then
		return 0
	end
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
	return 1
`)

// Save replaces the stored history window and counters of userID.
func (s *Store) Save(ctx context.Context, userID core.UserID, snap core.Snapshot) error {
	args := make([]interface{}, 0, 3+len(snap.History))
	best := ""
	if snap.BestRecord != nil {
		best = strconv.FormatInt(*snap.BestRecord, 10)
	}
	args = append(args, snap.TotalGames, best, time.Now().UTC().UnixMilli())
	for _, v := range snap.History {
		args = append(args, v)
	}
	keys := []string{historyKey(userID), statsKey(userID)}
	if err := saveSnapshotScript.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}

	// Invalidate cached record since it changed
	s.invalidateRecordCache(ctx, userID)
	return nil
}

// SaveUnlocked adds the unlocked ids to the user's achievement set.
// The set only grows.
func (s *Store) SaveUnlocked(ctx context.Context, userID core.UserID, unlocked core.UnlockedSet) error {
	if len(unlocked) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(unlocked))
	for _, id := range unlocked.IDs() {
		members = append(members, string(id))
	}
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, achievementsKey(userID), members...)
	pipe.HSet(ctx, statsKey(userID), fieldUpdated, time.Now().UTC().UnixMilli())
	pipe.HIncrBy(ctx, statsKey(userID), fieldVersion, 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save achievements: %w", err)
	}

	s.invalidateRecordCache(ctx, userID)
	return nil
}

// Clear drops the history window and resets the counters. Achievements are
// kept.
func (s *Store) Clear(ctx context.Context, userID core.UserID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, historyKey(userID))
	pipe.HDel(ctx, statsKey(userID), fieldBestRecord)
	pipe.HSet(ctx, statsKey(userID), fieldTotalGames, 0, fieldUpdated, time.Now().UTC().UnixMilli())
	pipe.HIncrBy(ctx, statsKey(userID), fieldVersion, 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	s.invalidateRecordCache(ctx, userID)
	return nil
}

// Load retrieves the complete record, using cache when possible
func (s *Store) Load(ctx context.Context, userID core.UserID) (core.Record, error) {
	// Try to get from cache first
	cached, err := s.getCachedRecord(ctx, userID)
	if err == nil {
		return cached, nil
	}

	// Cache miss or error, rebuild from individual keys
	rec, version, err := s.buildRecordFromKeys(ctx, userID)
	if err != nil {
		return core.Record{}, err
	}

	// Update cache (best-effort); keep it synchronous for determinism.
	ctxCache, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	_, _ = s.updateRecordCache(ctxCache, userID, rec, version)

	return rec, nil
}

// getCachedRecord attempts to retrieve the cached record
func (s *Store) getCachedRecord(ctx context.Context, userID core.UserID) (core.Record, error) {
	data, err := s.client.Get(ctx, recordKey(userID)).Bytes()
	if err != nil {
		return core.Record{}, err
	}

	var rec core.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.Record{}, err
	}
	return rec, nil
}

// updateRecordCache stores the record in cache with a TTL unless the stats
// moved past version meanwhile. It reports whether the cache was written.
func (s *Store) updateRecordCache(ctx context.Context, userID core.UserID, rec core.Record, version string) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	keys := []string{statsKey(userID), recordKey(userID)}
	n, err := cacheRecordScript.Run(ctx, s.client, keys, version, data, s.cacheTTL.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// invalidateRecordCache removes the cached record
func (s *Store) invalidateRecordCache(ctx context.Context, userID core.UserID) {
	s.client.Del(ctx, recordKey(userID))
}

// buildRecordFromKeys reconstructs the record from individual Redis keys
func (s *Store) buildRecordFromKeys(ctx context.Context, userID core.UserID) (rec core.Record, version string, err error) {
	pipe := s.client.Pipeline()
	historyCmd := pipe.LRange(ctx, historyKey(userID), 0, -1)
	statsCmd := pipe.HGetAll(ctx, statsKey(userID))
	achievementsCmd := pipe.SMembers(ctx, achievementsKey(userID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return core.Record{}, "", fmt.Errorf("failed to load record: %w", err)
	}

	stats := statsCmd.Val()
	members := achievementsCmd.Val()
	if len(stats) == 0 && len(members) == 0 {
		return core.Record{}, "", core.ErrRecordNotFound
	}

	rec = core.NewRecord(userID)
	for _, raw := range historyCmd.Val() {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return core.Record{}, "", fmt.Errorf("corrupt history sample %q: %w", raw, err)
		}
		rec.History = append(rec.History, v)
	}
	if raw, ok := stats[fieldTotalGames]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return core.Record{}, "", fmt.Errorf("corrupt total_games %q: %w", raw, err)
		}
		rec.TotalGames = n
	}
	if raw, ok := stats[fieldBestRecord]; ok {
		if best, err := strconv.ParseInt(raw, 10, 64); err == nil {
			rec.BestRecord = &best
		}
	}
	if raw, ok := stats[fieldUpdated]; ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			rec.Updated = time.UnixMilli(ms).UTC()
		}
	}
	for _, m := range members {
		rec.Unlocked[core.AchievementID(m)] = struct{}{}
	}
	return rec, stats[fieldVersion], nil
}
