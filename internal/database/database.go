// Package database centralises sqlx connection helpers for the SQL record
// store.  Two drivers are registered:
//
//	mysql  – go-sql-driver/mysql, also fine for MariaDB.
//	sqlite – modernc.org/sqlite, pure Go, handy for single-host installs.
//
// Public entry points:
//
//	Open(ctx, driver, dsn)                 – conservative pool sizes.
//	OpenWithOptions(ctx, driver, dsn, opt) – fine-grained control.
//
// Both helpers Ping the database before returning so callers can fail fast
// during bootstrap.  Callers should Close() the returned *sqlx.DB when no
// longer needed.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Options tunes the pool and the bootstrap ping.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Retries         int           // extra ping attempts after the first
	RetryBackoff    time.Duration // wait between ping attempts
}

// DefaultOptions mirrors a small process-wide pool.
var DefaultOptions = Options{
	MaxOpenConns:    15,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
	Retries:         2,
	RetryBackoff:    500 * time.Millisecond,
}

// Open returns a *sqlx.DB with DefaultOptions.  SQLite pools are pinned to
// one connection so an in-memory database is shared by every query.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	opt := DefaultOptions
	if driver == "sqlite" {
		opt.MaxOpenConns, opt.MaxIdleConns = 1, 1
	}
	return OpenWithOptions(ctx, driver, dsn, opt)
}

// OpenWithOptions opens and pings a pool, retrying the ping as configured.
func OpenWithOptions(ctx context.Context, driver, dsn string, opt Options) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(opt.MaxOpenConns)
	db.SetMaxIdleConns(opt.MaxIdleConns)
	db.SetConnMaxLifetime(opt.ConnMaxLifetime)

	for attempt := 0; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if attempt >= opt.Retries {
			break
		}
		t := time.NewTimer(opt.RetryBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			db.Close()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	db.Close()
	return nil, fmt.Errorf("ping %s: %w", driver, err)
}

// ExpandDSN substitutes password into a DSN template that carries exactly
// one %s verb.  Templates without a verb are returned unchanged.
func ExpandDSN(template, password string) (string, error) {
	switch n := strings.Count(template, "%s"); n {
	case 0:
		return template, nil
	case 1:
		return fmt.Sprintf(template, password), nil
	default:
		return "", fmt.Errorf("dsn template has %d %%s verbs, want at most 1", n)
	}
}
