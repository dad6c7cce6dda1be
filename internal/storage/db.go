package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection and provides health checks
type DB struct {
	conn *sqlx.DB

	// Cache for frequently accessed data
	modelCache *LRUCache
	grantCache *LRUCache
}

// DBConfig holds database configuration
type DBConfig struct {
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	ModelCacheSize int
	ModelCacheTTL  time.Duration
	GrantCacheSize int
	GrantCacheTTL  time.Duration
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() DBConfig {
	return DBConfig{
		DSN: "host=localhost port=5432 dbname=modelbroker user=postgres sslmode=disable",

		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,

		ModelCacheSize: 500,
		ModelCacheTTL:  15 * time.Minute,
		GrantCacheSize: 1000,
		GrantCacheTTL:  5 * time.Minute,
	}
}

// NewDB creates a new database connection with caching
func NewDB(cfg DBConfig) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	db := &DB{
		conn:       conn,
		modelCache: NewLRUCache(cfg.ModelCacheSize, cfg.ModelCacheTTL),
		grantCache: NewLRUCache(cfg.GrantCacheSize, cfg.GrantCacheTTL),
	}

	return db, nil
}

// Close closes the database connection and clears caches
func (db *DB) Close() error {
	db.modelCache.Clear()
	db.grantCache.Clear()
	return db.conn.Close()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	err := db.conn.GetContext(ctx, &result, "SELECT 1")
	if err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return db.conn.BeginTxx(ctx, opts)
}

// Conn returns the underlying sqlx connection
// Use this for custom queries not covered by repositories
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}

// GetModelCache returns the model cache
func (db *DB) GetModelCache() *LRUCache {
	return db.modelCache
}

// GetGrantCache returns the grant cache
func (db *DB) GetGrantCache() *LRUCache {
	return db.grantCache
}

// CleanupExpiredCacheEntries removes expired entries from all caches
// Should be called periodically (e.g., every minute)
func (db *DB) CleanupExpiredCacheEntries() (modelRemoved, grantRemoved int) {
	modelRemoved = db.modelCache.CleanupExpired()
	grantRemoved = db.grantCache.CleanupExpired()
	return
}
