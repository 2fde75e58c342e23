package sqlstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
)

const schemaVersion = 1

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS authors (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            surname TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS categories (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL COLLATE NOCASE UNIQUE
        );`,
	`CREATE TABLE IF NOT EXISTS members (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            surname TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL UNIQUE
        );`,
	`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            author_id INTEGER REFERENCES authors(id) ON DELETE SET NULL,
            category_id INTEGER REFERENCES categories(id) ON DELETE SET NULL,
            stock_count INTEGER NOT NULL DEFAULT 0 CHECK (stock_count >= 0),
            initial_stock INTEGER NOT NULL DEFAULT 0 CHECK (initial_stock >= 0)
        );`,
	`CREATE TABLE IF NOT EXISTS loans (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
            member_id INTEGER NOT NULL REFERENCES members(id) ON DELETE CASCADE,
            loan_date DATE NOT NULL,
            return_date DATE,
            is_returned BOOLEAN NOT NULL DEFAULT 0,
            CHECK ((is_returned = 0 AND return_date IS NULL)
                OR (is_returned = 1 AND return_date IS NOT NULL AND return_date >= loan_date))
        );`,
	`CREATE INDEX IF NOT EXISTS idx_loans_book ON loans(book_id);`,
	`CREATE INDEX IF NOT EXISTS idx_loans_member ON loans(member_id);`,
	`CREATE INDEX IF NOT EXISTS idx_books_stock ON books(stock_count);`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS authors (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            surname TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS categories (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS categories_name_key ON categories (lower(name));`,
	`CREATE TABLE IF NOT EXISTS members (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            surname TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL UNIQUE
        );`,
	`CREATE TABLE IF NOT EXISTS books (
            id BIGSERIAL PRIMARY KEY,
            title TEXT NOT NULL,
            author_id BIGINT REFERENCES authors(id) ON DELETE SET NULL,
            category_id BIGINT REFERENCES categories(id) ON DELETE SET NULL,
            stock_count INTEGER NOT NULL DEFAULT 0 CHECK (stock_count >= 0),
            initial_stock INTEGER NOT NULL DEFAULT 0 CHECK (initial_stock >= 0)
        );`,
	`CREATE TABLE IF NOT EXISTS loans (
            id BIGSERIAL PRIMARY KEY,
            book_id BIGINT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
            member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
            loan_date DATE NOT NULL,
            return_date DATE,
            is_returned BOOLEAN NOT NULL DEFAULT FALSE,
            CHECK ((NOT is_returned AND return_date IS NULL)
                OR (is_returned AND return_date IS NOT NULL AND return_date >= loan_date))
        );`,
	`CREATE INDEX IF NOT EXISTS idx_loans_book ON loans(book_id);`,
	`CREATE INDEX IF NOT EXISTS idx_loans_member ON loans(member_id);`,
	`CREATE INDEX IF NOT EXISTS idx_books_stock ON books(stock_count);`,
}

func applyMigrations(ctx context.Context, db *sqlx.DB, driver string) error {
	schema := postgresSchema
	if driver == DriverSQLite {
		// WAL lets report reads run alongside a writer.
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
		schema = sqliteSchema
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return fmt.Errorf("create meta: %w", err)
	}

	var current int
	_ = db.QueryRowxContext(ctx, `SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	setVersion := tx.Rebind(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`)
	if _, err := tx.ExecContext(ctx, setVersion, strconv.Itoa(schemaVersion)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}
