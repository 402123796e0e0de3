package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/authgate/authgate/internal/apperr"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/model"
)

// PostgresProvider composes AuthConfig snapshots from the auth_config and
// routes tables (§6, §4.1 "Database variant"). Each mutation invalidates
// the cached snapshot so the next Current rebuilds it.
type PostgresProvider struct {
	pool *pgxpool.Pool

	mu       sync.Mutex // serializes rebuild attempts
	snapshot atomic.Pointer[model.AuthConfig]
	lastGood atomic.Pointer[model.AuthConfig] // kept across invalidate, served on rebuild failure
}

// NewPostgresProvider connects to databaseURL and builds the initial
// snapshot. Startup with an unreachable database aborts the process per
// §4.1's failure semantics — the caller should treat a non-nil error here
// as fatal.
func NewPostgresProvider(ctx context.Context, databaseURL string) (*PostgresProvider, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	p := &PostgresProvider{pool: pool}
	if _, err := p.rebuild(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresProvider) Current(ctx context.Context) (model.AuthConfig, error) {
	if cached := p.snapshot.Load(); cached != nil {
		return *cached, nil
	}
	return p.rebuild(ctx)
}

func (p *PostgresProvider) rebuild(ctx context.Context) (model.AuthConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Another goroutine may have rebuilt while we waited for the lock.
	if cached := p.snapshot.Load(); cached != nil {
		return *cached, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var cfg model.AuthConfig
	row := p.pool.QueryRow(queryCtx,
		`SELECT session_url, login_redirect, cookie_name FROM auth_config ORDER BY id ASC LIMIT 1`)
	if err := row.Scan(&cfg.SessionURL, &cfg.LoginRedirect, &cfg.CookieName); err != nil {
		if cached := p.lastGood.Load(); cached != nil {
			logging.CtxWarn(ctx).Err(err).Msg("config unavailable, serving last-known-good snapshot")
			return *cached, nil
		}
		return model.AuthConfig{}, apperr.Wrap(apperr.KindConfigUnavailable, err, "loading auth_config")
	}

	routes, err := p.queryRoutes(queryCtx)
	if err != nil {
		if cached := p.lastGood.Load(); cached != nil {
			logging.CtxWarn(ctx).Err(err).Msg("config unavailable, serving last-known-good snapshot")
			return *cached, nil
		}
		return model.AuthConfig{}, apperr.Wrap(apperr.KindConfigUnavailable, err, "loading routes")
	}
	cfg.Routes = routes

	p.snapshot.Store(&cfg)
	p.lastGood.Store(&cfg)
	return cfg, nil
}

func (p *PostgresProvider) queryRoutes(ctx context.Context) ([]model.RouteDef, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, host, path, require FROM routes ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []model.RouteDef
	for rows.Next() {
		var (
			id      int
			rawReq  []byte
			route   model.RouteDef
			require model.RequireBlock
		)
		if err := rows.Scan(&id, &route.Host, &route.Path, &rawReq); err != nil {
			return nil, err
		}
		if len(rawReq) > 0 {
			if err := json.Unmarshal(rawReq, &require); err != nil {
				return nil, fmt.Errorf("route %d: decoding require: %w", id, err)
			}
		}
		route.ID = &id
		route.Require = require
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

func (p *PostgresProvider) invalidate() {
	p.snapshot.Store(nil)
}

func (p *PostgresProvider) RouteList(ctx context.Context) ([]model.RouteDef, error) {
	return p.queryRoutes(ctx)
}

func (p *PostgresProvider) RouteGet(ctx context.Context, id int) (model.RouteDef, bool, error) {
	var (
		route  model.RouteDef
		rawReq []byte
	)
	row := p.pool.QueryRow(ctx, `SELECT host, path, require FROM routes WHERE id = $1`, id)
	if err := row.Scan(&route.Host, &route.Path, &rawReq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RouteDef{}, false, nil
		}
		return model.RouteDef{}, false, err
	}
	var require model.RequireBlock
	if len(rawReq) > 0 {
		if err := json.Unmarshal(rawReq, &require); err != nil {
			return model.RouteDef{}, false, err
		}
	}
	route.ID = &id
	route.Require = require
	return route, true, nil
}

func (p *PostgresProvider) RouteCreate(ctx context.Context, route model.RouteDef) (model.RouteDef, error) {
	rawReq, err := json.Marshal(route.Require)
	if err != nil {
		return model.RouteDef{}, err
	}

	var id int
	row := p.pool.QueryRow(ctx,
		`INSERT INTO routes (host, path, require) VALUES ($1, $2, $3) RETURNING id`,
		route.Host, route.Path, rawReq)
	if err := row.Scan(&id); err != nil {
		return model.RouteDef{}, err
	}

	route.ID = &id
	p.invalidate()
	return route, nil
}

func (p *PostgresProvider) RouteUpdate(ctx context.Context, id int, route model.RouteDef) (model.RouteDef, bool, error) {
	rawReq, err := json.Marshal(route.Require)
	if err != nil {
		return model.RouteDef{}, false, err
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE routes SET host = $1, path = $2, require = $3, updated_at = now() WHERE id = $4`,
		route.Host, route.Path, rawReq, id)
	if err != nil {
		return model.RouteDef{}, false, err
	}
	if tag.RowsAffected() == 0 {
		return model.RouteDef{}, false, nil
	}

	route.ID = &id
	p.invalidate()
	return route, true, nil
}

func (p *PostgresProvider) RouteDelete(ctx context.Context, id int) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	p.invalidate()
	return true, nil
}

func (p *PostgresProvider) Close() error {
	p.pool.Close()
	return nil
}
