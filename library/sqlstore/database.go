// Package sqlstore keeps the ledger in SQLite or PostgreSQL. Queries are built with goqu
// in the dialect of the opened driver and run through sqlx.
package sqlstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"library-ledger/library"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// Database is a ledger store over one *sqlx.DB handle. It is opened once at startup and
// closed at exit; every write runs in a request-scoped transaction.
type Database struct {
	db     *sqlx.DB
	logger *slog.Logger

	q queries
}

var _ library.Store = (*Database)(nil)

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger. SQL statements are logged at debug level with their duration.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Database) { d.logger = logger }
}

// Open connects to the database, applies schema migrations and pings it.
// For DriverSQLite the dsn is a file path; missing parent directories are created.
// For DriverPgx and DriverPostgres it is a PostgreSQL connection string.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Database, error) {
	d := &Database{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(d)
	}

	var dialect string
	switch driver {
	case DriverSQLite:
		// Ensure directory exists so first-run succeeds.
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		// Busy timeout, foreign keys, and write locks taken at BEGIN so two
		// transactions never both read stock before either writes.
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", dsn)
		dialect = "sqlite3"
	case DriverPgx, DriverPostgres:
		dialect = "postgres"
	default:
		return nil, fmt.Errorf("%w: unsupported driver %q", library.ErrInvalidArgument, driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := applyMigrations(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}

	d.db = db
	d.q = queries{
		ext:       db,
		dialect:   goqu.Dialect(dialect),
		returning: dialect == "postgres",
		logger:    d.logger,
	}
	d.logger.DebugContext(ctx, "ledger store opened", "driver", driver)
	return d, nil
}

// Close closes the connection pool.
func (d *Database) Close() error { return d.db.Close() }

func (d *Database) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// WithTx runs fn in a database transaction, committing only when fn succeeds.
func (d *Database) WithTx(ctx context.Context, fn func(tx library.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	q := d.q
	q.ext = tx
	if err := fn(&q); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Reads outside a transaction go straight to the pool.

func (d *Database) GetAuthor(ctx context.Context, id int64) (*library.Author, error) {
	return d.q.GetAuthor(ctx, id)
}

func (d *Database) ListAuthors(ctx context.Context) ([]*library.Author, error) {
	return d.q.ListAuthors(ctx)
}

func (d *Database) GetCategory(ctx context.Context, id int64) (*library.Category, error) {
	return d.q.GetCategory(ctx, id)
}

func (d *Database) ListCategories(ctx context.Context) ([]*library.Category, error) {
	return d.q.ListCategories(ctx)
}

func (d *Database) GetMember(ctx context.Context, id int64) (*library.Member, error) {
	return d.q.GetMember(ctx, id)
}

func (d *Database) ListMembers(ctx context.Context) ([]*library.Member, error) {
	return d.q.ListMembers(ctx)
}

func (d *Database) GetBook(ctx context.Context, id int64) (*library.Book, error) {
	return d.q.GetBook(ctx, id)
}

func (d *Database) ListBooks(ctx context.Context, f library.BookFilter) ([]*library.BookDetail, error) {
	return d.q.ListBooks(ctx, f)
}

func (d *Database) GetLoan(ctx context.Context, id int64) (*library.Loan, error) {
	return d.q.GetLoan(ctx, id)
}

func (d *Database) ListLoans(ctx context.Context, f library.LoanFilter) ([]*library.LoanDetail, error) {
	return d.q.ListLoans(ctx, f)
}
