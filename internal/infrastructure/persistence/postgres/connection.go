// Package postgres persists challenge progress in PostgreSQL through pgx.
// It is the durable alternative to the in-memory store and is selected with
// STORAGE_BACKEND=postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/createathon/challenge-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrConnectionClosed  = errors.New("postgres: connection pool is closed")
	ErrMigrationFailed   = errors.New("postgres: migration failed")
	ErrTransactionFailed = errors.New("postgres: transaction failed")
)

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION POOL
// ══════════════════════════════════════════════════════════════════════════════

// PoolSettings are applied on top of whatever the DATABASE_URL specifies.
type PoolSettings struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultPoolSettings suit a single bot process.
func DefaultPoolSettings() PoolSettings {
	return PoolSettings{
		MaxConns:          10,
		MinConns:          1,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

func (s PoolSettings) apply(cfg *pgxpool.Config) {
	if s.MaxConns > 0 {
		cfg.MaxConns = s.MaxConns
	}
	if s.MinConns > 0 {
		cfg.MinConns = s.MinConns
	}
	if s.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = s.MaxConnLifetime
	}
	if s.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = s.MaxConnIdleTime
	}
	if s.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = s.HealthCheckPeriod
	}
}

// Connection wraps a pgx pool and refuses work once closed.
type Connection struct {
	mu      sync.RWMutex
	pool    *pgxpool.Pool
	closed  bool
	retrier *retry.Retrier
}

// Connect parses databaseURL, opens a pool and pings it.
func Connect(ctx context.Context, databaseURL string, settings PoolSettings) (*Connection, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse database URL: %w", err)
	}
	settings.apply(poolConfig)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Connection{pool: pool}, nil
}

// SetRetrier makes WithTx rerun a transaction that lost a serialization
// conflict or a deadlock. Such transactions are rolled back by the server,
// so running fn again is safe.
func (c *Connection) SetRetrier(r *retry.Retrier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retrier = r
}

func (c *Connection) Pool() *pgxpool.Pool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pool
}

// Close is idempotent.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.pool.Close()
}

// Ping backs the /ready probe.
func (c *Connection) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}
	return c.pool.Ping(ctx)
}

// Stats is a trimmed view of pgxpool.Stat for the metrics endpoint.
type Stats struct {
	TotalConns    int32
	IdleConns     int32
	AcquiredConns int32
	MaxConns      int32
}

func (c *Connection) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return Stats{}
	}
	s := c.pool.Stat()
	return Stats{
		TotalConns:    s.TotalConns(),
		IdleConns:     s.IdleConns(),
		AcquiredConns: s.AcquiredConns(),
		MaxConns:      s.MaxConns(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx runs fn in a read-committed transaction. fn's error rolls back.
func (c *Connection) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return c.runTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// WithReadTx runs fn in a read-only repeatable-read transaction, so every
// query inside fn sees the same snapshot.
func (c *Connection) WithReadTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return c.runTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (c *Connection) runTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrConnectionClosed
	}
	pool, retrier := c.pool, c.retrier
	c.mu.RUnlock()

	if retrier == nil {
		return execTx(ctx, pool, opts, fn)
	}
	return retrier.Do(ctx, func(ctx context.Context) error {
		err := execTx(ctx, pool, opts, fn)
		if IsTxConflict(err) {
			return retry.Retryable(err)
		}
		return err
	})
}

func execTx(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrTransactionFailed, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeCannotConnectNow     = "57P03"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool     { return pgCode(err) == codeUniqueViolation }
func IsForeignKeyViolation(err error) bool { return pgCode(err) == codeForeignKeyViolation }
func IsCheckViolation(err error) bool      { return pgCode(err) == codeCheckViolation }

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsTxConflict reports a transaction the server aborted on its own and that
// can simply be run again.
func IsTxConflict(err error) bool {
	code := pgCode(err)
	return code == codeSerializationFailure || code == codeDeadlockDetected
}

// IsTransient reports errors worth another connection attempt: the server is
// unreachable, still starting up, or dropped the connection. Bad URLs and
// bad credentials are not transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	code := pgCode(err)
	if code != "" {
		return strings.HasPrefix(code, "08") || code == codeCannotConnectNow
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
