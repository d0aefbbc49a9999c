package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"
	"github.com/nsmonitor/apiserver/config"
)

const (
	driverName  = "postgres"
	pingTimeout = 5 * time.Second
	connMaxIdle = 2 * time.Minute
	connMaxLife = 30 * time.Minute
)

// DSN renders the postgres:// URL shared by the pool and the migrator.
func DSN(cfg config.DatabaseConfig) string {
	sslmode := "disable"
	if cfg.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		User:   url.UserPassword(cfg.User, cfg.Password),
		Path:   cfg.DBName,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Open returns a pool that has answered a ping within pingTimeout.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	pool, err := sql.Open(driverName, DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBName, err)
	}
	configurePool(pool, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping %s at %s:%d: %w", cfg.DBName, cfg.Host, cfg.Port, err)
	}
	return pool, nil
}

func configurePool(pool *sql.DB, cfg config.DatabaseConfig) {
	pool.SetConnMaxIdleTime(connMaxIdle)
	pool.SetConnMaxLifetime(connMaxLife)
	if cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		idle := cfg.MaxIdleConns
		if cfg.MaxOpenConns > 0 && idle > cfg.MaxOpenConns {
			idle = cfg.MaxOpenConns
		}
		pool.SetMaxIdleConns(idle)
	}
}
