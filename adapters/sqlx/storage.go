package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"just3sec/core"
)

// Driver names a supported SQL backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver        `json:"driver" toml:"driver" env:"JUST3SEC_SQL_DRIVER"`
	DSN             string        `json:"dsn" toml:"dsn" env:"JUST3SEC_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" toml:"conn_max_lifetime"`
	AutoMigrate     bool          `json:"auto_migrate" toml:"auto_migrate" env:"JUST3SEC_SQL_AUTO_MIGRATE"`
}

// DefaultConfig returns sensible defaults for driver.
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
	switch driver {
	case DriverPostgres:
		cfg.DSN = "postgres://localhost:5432/just3sec?sslmode=disable"
	case DriverMySQL:
		cfg.DSN = "root@tcp(localhost:3306)/just3sec?parseTime=true"
	case DriverSQLite:
		cfg.DSN = "just3sec.db"
		// one writer keeps sqlite free of SQLITE_BUSY
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	}
	return cfg
}

// Store implements the engine.Storage interface on top of a SQL database.
// Tables:
// - player_stats: one row per player with the history window as a JSON array
// - player_achievements: one row per unlocked achievement
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens the database described by cfg and creates the tables when
// AutoMigrate is set.
func New(cfg Config) (*Store, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := NewWithDB(db, cfg.Driver)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing connection (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.driver) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func schema(driver Driver) []string {
	idType := "TEXT"
	tsType := "TIMESTAMP"
	if driver == DriverMySQL {
		idType = "VARCHAR(191)"
		tsType = "DATETIME(3)"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS player_stats (
			user_id ` + idType + ` PRIMARY KEY,
			history TEXT NOT NULL,
			total_games BIGINT NOT NULL DEFAULT 0,
			best_record BIGINT NULL,
			updated_at ` + tsType + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS player_achievements (
			user_id ` + idType + ` NOT NULL,
			achievement_id ` + idType + ` NOT NULL,
			unlocked_at ` + tsType + ` NOT NULL,
			PRIMARY KEY (user_id, achievement_id)
		)`,
	}
}

type statsRow struct {
	History    string        `db:"history"`
	TotalGames int64         `db:"total_games"`
	BestRecord sql.NullInt64 `db:"best_record"`
	UpdatedAt  time.Time     `db:"updated_at"`
}

func (s *Store) Load(ctx context.Context, user core.UserID) (core.Record, error) {
	var row statsRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(
		`SELECT history, total_games, best_record, updated_at FROM player_stats WHERE user_id = ?`), string(user))
	found := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, fmt.Errorf("load stats: %w", err)
	}

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, s.db.Rebind(
		`SELECT achievement_id FROM player_achievements WHERE user_id = ? ORDER BY achievement_id`), string(user)); err != nil {
		return core.Record{}, fmt.Errorf("load achievements: %w", err)
	}
	if !found && len(ids) == 0 {
		return core.Record{}, core.ErrRecordNotFound
	}

	rec := core.NewRecord(user)
	if found {
		if err := json.Unmarshal([]byte(row.History), &rec.History); err != nil {
			return core.Record{}, fmt.Errorf("corrupt history of %s: %w", user, err)
		}
		if rec.History == nil {
			rec.History = []int64{}
		}
		rec.TotalGames = row.TotalGames
		if row.BestRecord.Valid {
			best := row.BestRecord.Int64
			rec.BestRecord = &best
		}
		rec.Updated = row.UpdatedAt.UTC()
	}
	for _, id := range ids {
		rec.Unlocked[core.AchievementID(id)] = struct{}{}
	}
	return rec, nil
}

func (s *Store) Save(ctx context.Context, user core.UserID, snap core.Snapshot) error {
	history := snap.History
	if history == nil {
		history = []int64{}
	}
	b, err := json.Marshal(history)
	if err != nil {
		return err
	}
	var best sql.NullInt64
	if snap.BestRecord != nil {
		best = sql.NullInt64{Int64: *snap.BestRecord, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(s.upsertStats()),
		string(user), string(b), snap.TotalGames, best, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

func (s *Store) upsertStats() string {
	const insert = `INSERT INTO player_stats (user_id, history, total_games, best_record, updated_at) VALUES (?, ?, ?, ?, ?)`
	if s.driver == DriverMySQL {
		return insert + ` ON DUPLICATE KEY UPDATE history = VALUES(history), total_games = VALUES(total_games), best_record = VALUES(best_record), updated_at = VALUES(updated_at)`
	}
	return insert + ` ON CONFLICT (user_id) DO UPDATE SET history = excluded.history, total_games = excluded.total_games, best_record = excluded.best_record, updated_at = excluded.updated_at`
}

func (s *Store) insertAchievement() string {
	if s.driver == DriverMySQL {
		return `INSERT IGNORE INTO player_achievements (user_id, achievement_id, unlocked_at) VALUES (?, ?, ?)`
	}
	return `INSERT INTO player_achievements (user_id, achievement_id, unlocked_at) VALUES (?, ?, ?) ON CONFLICT (user_id, achievement_id) DO NOTHING`
}

// SaveUnlocked inserts the ids that are not stored yet. Rows are never
// deleted.
func (s *Store) SaveUnlocked(ctx context.Context, user core.UserID, unlocked core.UnlockedSet) error {
	if len(unlocked) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := tx.Rebind(s.insertAchievement())
	now := time.Now().UTC()
	for _, id := range unlocked.IDs() {
		if _, err := tx.ExecContext(ctx, query, string(user), string(id), now); err != nil {
			return fmt.Errorf("save achievement %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Clear resets the history and counters. Achievements are kept.
func (s *Store) Clear(ctx context.Context, user core.UserID) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE player_stats SET history = ?, total_games = 0, best_record = NULL, updated_at = ? WHERE user_id = ?`),
		"[]", time.Now().UTC(), string(user))
	if err != nil {
		return fmt.Errorf("clear stats: %w", err)
	}
	return nil
}
