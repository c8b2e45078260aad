// Package store is the Postgres repository behind the feed: it materialises
// post snapshots, the viewer's social graph and the influencer roster, and
// performs the writes that change them.
package store

import (
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("already exists")
	ErrForbidden = errors.New("not allowed")
	ErrInvalid   = errors.New("invalid request")
)

type Store struct {
	db   *sql.DB
	psql sq.StatementBuilderType
}

func New(db *sql.DB) *Store {
	return &Store{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func affected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
