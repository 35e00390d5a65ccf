// Package sqlstore persists analysis results in one SQL table through gorm.
//
// SQLite is the default and is opened in WAL mode with a busy timeout, so
// reads from request goroutines proceed while a finished generation writes.
// Postgres and MySQL are supported for deployments that already run one.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/unkn0wn-root/analysiscache/store"
)

type Driver string

const (
	SQLite   Driver = "sqlite"
	Postgres Driver = "postgres"
	MySQL    Driver = "mysql"
)

const defaultBusyTimeout = 5 * time.Second

type Config struct {
	Driver   Driver // "" => sqlite
	FilePath string // sqlite only
	DSN      string // postgres / mysql

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration // sqlite; 0 => 5s

	LogLevel logger.LogLevel // 0 => Silent
}

// cacheRow is the persisted layout: one row per cache key.
type cacheRow struct {
	ID           uint      `gorm:"primaryKey"`
	CacheKey     string    `gorm:"size:255;uniqueIndex;not null"`
	JobID        string    `gorm:"size:255;index;not null"`
	UnitCount    int       `gorm:"not null"`
	Payload      []byte    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	CostEstimate float64   `gorm:"not null;default:0"`
}

func (cacheRow) TableName() string { return "analysis_cache" }

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// Open connects with cfg and migrates the cache table.
func Open(cfg Config) (*Store, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if level == 0 {
		level = logger.Silent
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driverName(cfg.Driver), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", driverName(cfg.Driver), err)
	}

	s, err := New(db)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing gorm handle and migrates the cache table.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlstore: nil db")
	}
	if err := db.AutoMigrate(&cacheRow{}); err != nil {
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", SQLite:
		if cfg.FilePath == "" {
			return nil, errors.New("sqlstore: file_path is required for sqlite")
		}
		busy := cfg.BusyTimeout
		if busy <= 0 {
			busy = defaultBusyTimeout
		}
		dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL", cfg.FilePath, busy.Milliseconds())
		return sqlite.Open(dsn), nil
	case Postgres:
		if cfg.DSN == "" {
			return nil, errors.New("sqlstore: dsn is required for postgres")
		}
		return postgres.Open(cfg.DSN), nil
	case MySQL:
		if cfg.DSN == "" {
			return nil, errors.New("sqlstore: dsn is required for mysql")
		}
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}
}

func driverName(d Driver) string {
	if d == "" {
		return string(SQLite)
	}
	return string(d)
}

func (s *Store) Get(ctx context.Context, key string) (store.Entry, bool, error) {
	var rows []cacheRow
	res := s.db.WithContext(ctx).Where("cache_key = ?", key).Limit(1).Find(&rows)
	if res.Error != nil {
		return store.Entry{}, false, fmt.Errorf("sqlstore: get %q: %w", key, res.Error)
	}
	if len(rows) == 0 {
		return store.Entry{}, false, nil
	}
	r := rows[0]
	return store.Entry{
		Key:       r.CacheKey,
		JobID:     r.JobID,
		UnitCount: r.UnitCount,
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt,
		Cost:      r.CostEstimate,
	}, true, nil
}

func (s *Store) Put(ctx context.Context, e store.Entry) error {
	if e.Key == "" {
		return errors.New("sqlstore: empty key")
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	row := cacheRow{
		CacheKey:     e.Key,
		JobID:        e.JobID,
		UnitCount:    e.UnitCount,
		Payload:      e.Payload,
		CreatedAt:    created.UTC(),
		CostEstimate: e.Cost,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"job_id", "unit_count", "payload", "created_at", "cost_estimate"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("sqlstore: put %q: %w", e.Key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&cacheRow{}).Error; err != nil {
		return fmt.Errorf("sqlstore: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&cacheRow{}).Error
	if err != nil {
		return fmt.Errorf("sqlstore: delete all: %w", err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var out struct {
		Count int64
		Cost  float64
	}
	err := s.db.WithContext(ctx).
		Model(&cacheRow{}).
		Select("COUNT(*) AS count, COALESCE(SUM(cost_estimate), 0) AS cost").
		Scan(&out).Error
	if err != nil {
		return store.Stats{}, fmt.Errorf("sqlstore: stats: %w", err)
	}
	return store.Stats{Count: out.Count, Cost: out.Cost}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
