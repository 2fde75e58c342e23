package sqlstore

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"library-ledger/library"
)

// PostgreSQL SQLSTATE codes for constraint violations.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// translate maps driver constraint errors onto ledger sentinels. A unique violation
// becomes dup (or is passed through when dup is nil); a broken foreign key means a
// referenced record does not exist.
func translate(err error, dup error) error {
	var code string

	var sqliteErr sqlite3.Error
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &sqliteErr):
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			code = pgUniqueViolation
		case sqlite3.ErrConstraintForeignKey:
			code = pgForeignKeyViolation
		case sqlite3.ErrConstraintCheck:
			code = pgCheckViolation
		}
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	}

	switch code {
	case pgUniqueViolation:
		if dup != nil {
			return dup
		}
	case pgForeignKeyViolation:
		return library.ErrNotFound
	case pgCheckViolation:
		return library.ErrInvalidArgument
	}
	return err
}
