// Package gamedb is the resilient gateway to the game server's database.
// The game store is owned by another process and is periodically overloaded,
// so every access goes through a bounded pool with aggressive timeouts, an
// overload breaker and a health probe that never blocks the caller beyond its
// own timeout.
package gamedb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

const mysqlTooManyConnections = 1040

// Row is one fully materialized result row.
type Row map[string]any

// Config holds connection and pool settings for the game database.
type Config struct {
	Enabled  bool
	User     string
	Password string
	Host     string
	Port     string
	Name     string

	PoolSize    int
	MaxOverflow int

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PoolTimeout    time.Duration
	PingTimeout    time.Duration

	CacheTTL time.Duration
}

// Gateway provides parameterized access to the game database. The underlying
// pool is built lazily and can be disposed by the breaker; no connection is
// ever held across caller logic.
type Gateway struct {
	cfg    Config
	health *Health
	cache  *queryCache

	mu sync.Mutex
	db *sqlx.DB
}

func New(cfg Config, health *Health) *Gateway {
	return &Gateway{
		cfg:    cfg,
		health: health,
		cache:  newQueryCache(cfg.CacheTTL),
	}
}

// Enabled reports whether the game database is switched on by configuration.
func (g *Gateway) Enabled() bool {
	return g.cfg.Enabled
}

// Health exposes the injected health component.
func (g *Gateway) Health() *Health {
	return g.health
}

func (g *Gateway) dsn() string {
	mc := mysql.NewConfig()
	mc.User = g.cfg.User
	mc.Passwd = g.cfg.Password
	mc.Net = "tcp"
	mc.Addr = g.cfg.Host + ":" + g.cfg.Port
	mc.DBName = g.cfg.Name
	mc.Timeout = g.cfg.ConnectTimeout
	mc.ReadTimeout = g.cfg.ReadTimeout
	mc.WriteTimeout = g.cfg.WriteTimeout
	return mc.FormatDSN()
}

// conn returns the pool, building it lazily after a dispose.
func (g *Gateway) conn() (*sqlx.DB, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.db != nil {
		return g.db, nil
	}

	db, err := sqlx.Open("mysql", g.dsn())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(g.cfg.PoolSize + g.cfg.MaxOverflow)
	db.SetMaxIdleConns(g.cfg.PoolSize)
	db.SetConnMaxLifetime(3 * time.Minute)

	g.db = db
	log.Info().
		Int("pool_size", g.cfg.PoolSize).
		Int("max_overflow", g.cfg.MaxOverflow).
		Str("database", g.cfg.Name).
		Msg("game db pool created")
	return db, nil
}

// dispose throws the pool away. The next operation rebuilds it.
func (g *Gateway) dispose() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.db == nil {
		return
	}
	if err := g.db.Close(); err != nil {
		log.Error().Err(err).Msg("game db pool close failed")
	}
	g.db = nil
}

// expand resolves named parameters and expands slice values into IN (...)
// placeholder lists.
func expand(query string, params map[string]any) (string, []any, error) {
	if params == nil {
		params = map[string]any{}
	}
	q, args, err := sqlx.Named(query, params)
	if err != nil {
		return "", nil, err
	}
	q, args, err = sqlx.In(q, args...)
	if err != nil {
		return "", nil, err
	}
	return q, args, nil
}

// Select runs a read query and returns fully materialized rows. With useCache
// the result is served from (and stored into) the TTL read cache.
func (g *Gateway) Select(ctx context.Context, query string, params map[string]any, useCache bool) ([]Row, error) {
	if !g.cfg.Enabled {
		return nil, ErrDisabled
	}

	key := cacheKey(query, params)
	if useCache {
		if rows, ok := g.cache.get(key); ok {
			return rows, nil
		}
	}

	rows, err := g.selectRows(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if useCache {
		g.cache.set(key, rows)
	}
	return rows, nil
}

func (g *Gateway) selectRows(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	if g.health.Open() {
		return nil, ErrCircuitOpen
	}

	db, err := g.conn()
	if err != nil {
		return nil, g.classify(err)
	}

	q, args, err := expand(query, params)
	if err != nil {
		return nil, err
	}

	ctx, cancel := g.opContext(ctx, g.cfg.ReadTimeout)
	defer cancel()

	rows, err := db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, g.classify(err)
	}
	defer rows.Close()

	// Materialize everything before returning so the connection goes back to
	// the pool and is never held across caller logic.
	var out []Row
	for rows.Next() {
		row := Row{}
		if err := rows.MapScan(row); err != nil {
			return nil, g.classify(err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, g.classify(err)
	}

	g.health.RecordSuccess()
	return out, nil
}

// Insert runs an INSERT and returns the last insert id.
func (g *Gateway) Insert(ctx context.Context, query string, params map[string]any) (int64, error) {
	res, err := g.exec(ctx, query, params)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, nil
	}
	return id, nil
}

// Update runs an UPDATE/DELETE and returns the number of affected rows.
func (g *Gateway) Update(ctx context.Context, query string, params map[string]any) (int64, error) {
	res, err := g.exec(ctx, query, params)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

type execResult interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

func (g *Gateway) exec(ctx context.Context, query string, params map[string]any) (execResult, error) {
	if !g.cfg.Enabled {
		return nil, ErrDisabled
	}
	if g.health.Open() {
		return nil, ErrCircuitOpen
	}

	db, err := g.conn()
	if err != nil {
		return nil, g.classify(err)
	}

	q, args, err := expand(query, params)
	if err != nil {
		return nil, err
	}

	ctx, cancel := g.opContext(ctx, g.cfg.WriteTimeout)
	defer cancel()

	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, g.classify(err)
	}

	g.health.RecordSuccess()
	return res, nil
}

// opContext bounds an operation when the caller did not set a deadline.
// Pool wait plus the network timeout is the worst honest case.
func (g *Gateway) opContext(ctx context.Context, ioTimeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.cfg.PoolTimeout+ioTimeout)
}

// classify maps a driver error to the gateway taxonomy and drives the breaker.
func (g *Gateway) classify(err error) error {
	if isOverload(err) {
		if g.health.RecordOverload() {
			g.dispose()
		}
		return ErrUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// A hung statement may leave the connection in an indeterminate
		// state; throw the pool away rather than reuse it.
		log.Warn().Err(err).Msg("game db operation timed out, discarding pool")
		g.dispose()
		return ErrUnavailable
	}
	log.Error().Err(err).Msg("game db query failed")
	return err
}

func isOverload(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlTooManyConnections {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "Too many connections")
}

// IsConnected probes the game database with its own bounded timeout. The probe
// runs on a separate goroutine so a hung server cannot stall the caller; on
// timeout the pool is treated as poisoned and discarded. A negative result is
// cached for the check cooldown to avoid probe storms.
func (g *Gateway) IsConnected(ctx context.Context) bool {
	if !g.cfg.Enabled {
		return false
	}
	if g.health.SkipProbe() {
		return false
	}

	db, err := g.conn()
	if err != nil {
		g.health.RecordProbe(false)
		return false
	}

	done := make(chan bool, 1)
	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), g.cfg.PingTimeout)
		defer cancel()
		done <- db.PingContext(pingCtx) == nil
	}()

	select {
	case ok := <-done:
		g.health.RecordProbe(ok)
		return ok
	case <-time.After(g.cfg.PingTimeout):
		log.Warn().Dur("timeout", g.cfg.PingTimeout).Msg("game db healthcheck timed out, discarding pool")
		g.dispose()
		g.health.RecordProbe(false)
		return false
	case <-ctx.Done():
		g.health.RecordProbe(false)
		return false
	}
}

// ClearCache drops every cached read result.
func (g *Gateway) ClearCache() {
	g.cache.clear()
}

// Close shuts the pool down for process exit.
func (g *Gateway) Close() {
	g.dispose()
}
