// internal/record/sql.go
//
// SQL-backed record store.
//
// Context
// -------
// Records live in one table:
//
//	dns_record (domain PK, ip)
//
// The queries stick to `?` placeholders and plain INSERT / UPDATE so the
// same store runs on MySQL (go-sql-driver/mysql) and SQLite
// (modernc.org/sqlite).  Open the pool with internal/database.
//
// Notes
// -----
//   - sql.ErrNoRows maps to ErrNotFound; every other driver error is
//     wrapped with ErrUnavailable.
//   - Upsert reads and writes inside one transaction.
package record

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

const schema = `
    CREATE TABLE IF NOT EXISTS dns_record (
        domain VARCHAR(253) NOT NULL PRIMARY KEY,
        ip     VARCHAR(45)  NOT NULL
    )`

// SQLStore implements Store over the dns_record table.
type SQLStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open pool.  The caller owns db.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// EnsureSchema creates dns_record when it does not exist yet.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return unavailable("create schema", err)
	}
	return nil
}

// Lookup fetches the IP for one domain.
func (s *SQLStore) Lookup(ctx context.Context, domain string) (string, error) {
	const q = `
        SELECT ip
        FROM   dns_record
        WHERE  domain = ?
        LIMIT  1`
	var ip string
	if err := s.db.GetContext(ctx, &ip, q, domain); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", unavailable("lookup", err)
	}
	return ip, nil
}

// Snapshot returns every row as a map.
func (s *SQLStore) Snapshot(ctx context.Context) (map[string]string, error) {
	const q = `
        SELECT domain, ip
        FROM   dns_record`
	rows := make([]Record, 0, 16)
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, unavailable("snapshot", err)
	}

	snap := make(map[string]string, len(rows))
	for _, r := range rows {
		snap[r.Domain] = r.IP
	}
	return snap, nil
}

// Upsert inserts or updates one row.
func (s *SQLStore) Upsert(ctx context.Context, domain, ip string) (Change, error) {
	if err := (Record{Domain: domain, IP: ip}).Validate(); err != nil {
		return Unchanged, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Unchanged, unavailable("begin", err)
	}
	defer tx.Rollback() // no-op after Commit

	var current string
	err = tx.GetContext(ctx, &current, `SELECT ip FROM dns_record WHERE domain = ?`, domain)
	var change Change
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dns_record (domain, ip) VALUES (?, ?)`, domain, ip); err != nil {
			return Unchanged, unavailable("insert", err)
		}
		change = Added
	case err != nil:
		return Unchanged, unavailable("select", err)
	case current == ip:
		return Unchanged, nil
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE dns_record SET ip = ? WHERE domain = ?`, ip, domain); err != nil {
			return Unchanged, unavailable("update", err)
		}
		change = Updated
	}

	if err := tx.Commit(); err != nil {
		return Unchanged, unavailable("commit", err)
	}
	return change, nil
}
