// Package db holds the optional Postgres store: the command audit trail and the
// rotated chat refresh token. The relay runs without it when DB_DSN is empty.
package db

import (
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// ErrNoDSN is returned by Connect when no DSN is configured.
var ErrNoDSN = errors.New("no database DSN configured")

// Connect opens a Postgres pool for dsn and checks nothing else; callers ping or
// migrate to find out whether the server is reachable.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	return db, nil
}
