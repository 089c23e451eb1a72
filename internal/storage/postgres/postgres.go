// Package postgres archives combat sessions in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/idlebattle/internal/config"
)

// DefaultHealthTimeout bounds a single archive liveness ping.
const DefaultHealthTimeout = 5 * time.Second

// ErrArchiveUnavailable wraps every failed liveness check.
var ErrArchiveUnavailable = errors.New("combat archive unavailable")

// Pool is the connection pool backing the combat session archive.
type Pool struct {
	db *pgxpool.Pool
}

// NewPool opens the archive pool described by cfg and verifies it with a ping.
//
// Precondition: cfg passes config validation.
// Postcondition: Returns a reachable Pool, or an error and no open connections.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing archive dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening archive pool: %w", err)
	}
	p := &Pool{db: db}
	if err := p.Health(ctx, DefaultHealthTimeout); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// Health pings the archive within timeout (<= 0 ⇒ DefaultHealthTimeout).
//
// Postcondition: Returns nil, or an error wrapping ErrArchiveUnavailable that
// carries the pool's connection counts.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.db.Ping(ctx); err != nil {
		st := p.db.Stat()
		return fmt.Errorf("%w (total=%d idle=%d acquired=%d): %w",
			ErrArchiveUnavailable, st.TotalConns(), st.IdleConns(), st.AcquiredConns(), err)
	}
	return nil
}

// HealthJob adapts Health to a periodic job such as server.TickerService.
func (p *Pool) HealthJob(timeout time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		return p.Health(ctx, timeout)
	}
}

// Close releases every connection. Safe to call more than once.
func (p *Pool) Close() {
	p.db.Close()
}

// DB exposes the pgx pool to repositories and migrations.
func (p *Pool) DB() *pgxpool.Pool {
	return p.db
}
