package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"library-ledger/library"
)

const (
	tableAuthors    = "authors"
	tableCategories = "categories"
	tableMembers    = "members"
	tableBooks      = "books"
	tableLoans      = "loans"
)

// queries implements library.Tx over either the pool or an open transaction.
type queries struct {
	ext       sqlx.ExtContext
	dialect   goqu.DialectWrapper
	returning bool
	logger    *slog.Logger
}

var _ library.Tx = (*queries)(nil)

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func (q *queries) build(b sqlBuilder) (string, []interface{}, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return query, args, nil
}

func (q *queries) logSQL(ctx context.Context, op, query string, start time.Time) {
	q.logger.DebugContext(ctx, "executed sql for: "+op, "sql", query, "duration_ms", time.Since(start).Milliseconds())
}

func (q *queries) get(ctx context.Context, op string, dest interface{}, b sqlBuilder) error {
	query, args, err := q.build(b)
	if err != nil {
		return err
	}
	start := time.Now()
	err = sqlx.GetContext(ctx, q.ext, dest, query, args...)
	q.logSQL(ctx, op, query, start)
	if errors.Is(err, sql.ErrNoRows) {
		return library.ErrNotFound
	}
	return err
}

func (q *queries) selectAll(ctx context.Context, op string, dest interface{}, b sqlBuilder) error {
	query, args, err := q.build(b)
	if err != nil {
		return err
	}
	start := time.Now()
	err = sqlx.SelectContext(ctx, q.ext, dest, query, args...)
	q.logSQL(ctx, op, query, start)
	return err
}

func (q *queries) exec(ctx context.Context, op string, b sqlBuilder) (int64, error) {
	query, args, err := q.build(b)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	res, err := q.ext.ExecContext(ctx, query, args...)
	q.logSQL(ctx, op, query, start)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// insert adds one row and returns its generated id. PostgreSQL hands the id back with
// RETURNING; SQLite through LastInsertId.
func (q *queries) insert(ctx context.Context, table string, rec goqu.Record) (int64, error) {
	ds := q.dialect.Insert(table).Prepared(true).Rows(rec)
	op := "insert " + table
	if q.returning {
		var id int64
		if err := q.get(ctx, op, &id, ds.Returning("id")); err != nil {
			return 0, err
		}
		return id, nil
	}

	query, args, err := q.build(ds)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	res, err := q.ext.ExecContext(ctx, query, args...)
	q.logSQL(ctx, op, query, start)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *queries) count(ctx context.Context, table string, where exp.Expression) (int, error) {
	var n int
	ds := q.dialect.From(table).Prepared(true).Select(goqu.COUNT(goqu.Star())).Where(where)
	if err := q.get(ctx, "count "+table, &n, ds); err != nil {
		return 0, err
	}
	return n, nil
}

func nullable(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// ---------------------------------------------------------------------------
// Authors and categories
// ---------------------------------------------------------------------------

func (q *queries) GetAuthor(ctx context.Context, id int64) (*library.Author, error) {
	var a library.Author
	ds := q.dialect.From(tableAuthors).Prepared(true).
		Select("id", "name", "surname").
		Where(goqu.C("id").Eq(id))
	if err := q.get(ctx, "get author", &a, ds); err != nil {
		return nil, err
	}
	return &a, nil
}

func (q *queries) ListAuthors(ctx context.Context) ([]*library.Author, error) {
	authors := []*library.Author{}
	ds := q.dialect.From(tableAuthors).Prepared(true).
		Select("id", "name", "surname").
		Order(goqu.C("id").Asc())
	if err := q.selectAll(ctx, "list authors", &authors, ds); err != nil {
		return nil, err
	}
	return authors, nil
}

func (q *queries) InsertAuthor(ctx context.Context, a *library.Author) error {
	id, err := q.insert(ctx, tableAuthors, goqu.Record{"name": a.Name, "surname": a.Surname})
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// DeleteAuthor relies on ON DELETE SET NULL to detach the author's books.
func (q *queries) DeleteAuthor(ctx context.Context, id int64) error {
	n, err := q.exec(ctx, "delete author", q.dialect.Delete(tableAuthors).Prepared(true).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return err
	}
	if n == 0 {
		return library.ErrNotFound
	}
	return nil
}

func (q *queries) GetCategory(ctx context.Context, id int64) (*library.Category, error) {
	var c library.Category
	ds := q.dialect.From(tableCategories).Prepared(true).
		Select("id", "name").
		Where(goqu.C("id").Eq(id))
	if err := q.get(ctx, "get category", &c, ds); err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *queries) ListCategories(ctx context.Context) ([]*library.Category, error) {
	categories := []*library.Category{}
	ds := q.dialect.From(tableCategories).Prepared(true).
		Select("id", "name").
		Order(goqu.C("id").Asc())
	if err := q.selectAll(ctx, "list categories", &categories, ds); err != nil {
		return nil, err
	}
	return categories, nil
}

func (q *queries) InsertCategory(ctx context.Context, c *library.Category) error {
	id, err := q.insert(ctx, tableCategories, goqu.Record{"name": c.Name})
	if err != nil {
		return translate(err, fmt.Errorf("category %q: %w", c.Name, library.ErrDuplicateCategory))
	}
	c.ID = id
	return nil
}

func (q *queries) DeleteCategory(ctx context.Context, id int64) error {
	n, err := q.exec(ctx, "delete category", q.dialect.Delete(tableCategories).Prepared(true).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return err
	}
	if n == 0 {
		return library.ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

func (q *queries) GetMember(ctx context.Context, id int64) (*library.Member, error) {
	var m library.Member
	ds := q.dialect.From(tableMembers).Prepared(true).
		Select("id", "name", "surname", "email").
		Where(goqu.C("id").Eq(id))
	if err := q.get(ctx, "get member", &m, ds); err != nil {
		return nil, err
	}
	return &m, nil
}

func (q *queries) ListMembers(ctx context.Context) ([]*library.Member, error) {
	members := []*library.Member{}
	ds := q.dialect.From(tableMembers).Prepared(true).
		Select("id", "name", "surname", "email").
		Order(goqu.C("id").Asc())
	if err := q.selectAll(ctx, "list members", &members, ds); err != nil {
		return nil, err
	}
	return members, nil
}

func (q *queries) InsertMember(ctx context.Context, m *library.Member) error {
	id, err := q.insert(ctx, tableMembers, goqu.Record{"name": m.Name, "surname": m.Surname, "email": m.Email})
	if err != nil {
		return translate(err, fmt.Errorf("email %q: %w", m.Email, library.ErrDuplicateEmail))
	}
	m.ID = id
	return nil
}

// DeleteMember relies on ON DELETE CASCADE to remove the member's loans.
func (q *queries) DeleteMember(ctx context.Context, id int64) (int, error) {
	loans, err := q.count(ctx, tableLoans, goqu.C("member_id").Eq(id))
	if err != nil {
		return 0, err
	}
	n, err := q.exec(ctx, "delete member", q.dialect.Delete(tableMembers).Prepared(true).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, library.ErrNotFound
	}
	return loans, nil
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

func (q *queries) GetBook(ctx context.Context, id int64) (*library.Book, error) {
	var b library.Book
	ds := q.dialect.From(tableBooks).Prepared(true).
		Select("id", "title", "author_id", "category_id", "stock_count", "initial_stock").
		Where(goqu.C("id").Eq(id))
	if err := q.get(ctx, "get book", &b, ds); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBooks joins authors and categories; missing references come back as empty names.
func (q *queries) ListBooks(ctx context.Context, f library.BookFilter) ([]*library.BookDetail, error) {
	ds := q.dialect.From(goqu.T(tableBooks).As("b")).Prepared(true).
		LeftJoin(goqu.T(tableAuthors).As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("b.author_id")))).
		LeftJoin(goqu.T(tableCategories).As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("b.category_id")))).
		Select(
			goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.author_id"), goqu.I("b.category_id"),
			goqu.I("b.stock_count"), goqu.I("b.initial_stock"),
			goqu.L("COALESCE(a.name || ' ' || a.surname, '')").As("author_name"),
			goqu.L("COALESCE(c.name, '')").As("category_name"),
		).
		Order(goqu.I("b.id").Asc())

	if f.MaxStock != nil {
		ds = ds.Where(goqu.I("b.stock_count").Lte(*f.MaxStock))
	}
	if f.AuthorID != nil {
		ds = ds.Where(goqu.I("b.author_id").Eq(*f.AuthorID))
	}
	if f.CategoryID != nil {
		ds = ds.Where(goqu.I("b.category_id").Eq(*f.CategoryID))
	}

	books := []*library.BookDetail{}
	if err := q.selectAll(ctx, "list books", &books, ds); err != nil {
		return nil, err
	}
	return books, nil
}

func (q *queries) InsertBook(ctx context.Context, b *library.Book) error {
	id, err := q.insert(ctx, tableBooks, goqu.Record{
		"title":         b.Title,
		"author_id":     nullable(b.AuthorID),
		"category_id":   nullable(b.CategoryID),
		"stock_count":   b.StockCount,
		"initial_stock": b.InitialStock,
	})
	if err != nil {
		return translate(err, nil)
	}
	b.ID = id
	return nil
}

// DeleteBook relies on ON DELETE CASCADE to remove the book's loans.
func (q *queries) DeleteBook(ctx context.Context, id int64) (int, error) {
	loans, err := q.count(ctx, tableLoans, goqu.C("book_id").Eq(id))
	if err != nil {
		return 0, err
	}
	n, err := q.exec(ctx, "delete book", q.dialect.Delete(tableBooks).Prepared(true).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, library.ErrNotFound
	}
	return loans, nil
}

// AdjustStock is a single guarded UPDATE, so two transactions can never both take the
// last copy.
func (q *queries) AdjustStock(ctx context.Context, bookID int64, delta int) error {
	ds := q.dialect.Update(tableBooks).Prepared(true).
		Set(goqu.Record{"stock_count": goqu.L("stock_count + ?", delta)}).
		Where(goqu.C("id").Eq(bookID), goqu.L("stock_count + ? >= 0", delta))
	n, err := q.exec(ctx, "adjust stock", ds)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := q.GetBook(ctx, bookID); err != nil {
		return err
	}
	return library.ErrOutOfStock
}

// ---------------------------------------------------------------------------
// Loans
// ---------------------------------------------------------------------------

func (q *queries) GetLoan(ctx context.Context, id int64) (*library.Loan, error) {
	var l library.Loan
	ds := q.dialect.From(tableLoans).Prepared(true).
		Select("id", "book_id", "member_id", "loan_date", "return_date", "is_returned").
		Where(goqu.C("id").Eq(id))
	if err := q.get(ctx, "get loan", &l, ds); err != nil {
		return nil, err
	}
	return &l, nil
}

func (q *queries) ListLoans(ctx context.Context, f library.LoanFilter) ([]*library.LoanDetail, error) {
	ds := q.dialect.From(goqu.T(tableLoans).As("l")).Prepared(true).
		InnerJoin(goqu.T(tableBooks).As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		InnerJoin(goqu.T(tableMembers).As("m"), goqu.On(goqu.I("m.id").Eq(goqu.I("l.member_id")))).
		Select(
			goqu.I("l.id"), goqu.I("l.book_id"), goqu.I("l.member_id"),
			goqu.I("l.loan_date"), goqu.I("l.return_date"), goqu.I("l.is_returned"),
			goqu.I("b.title").As("book_title"),
			goqu.I("m.name").As("member_name"),
			goqu.I("m.surname").As("member_surname"),
			goqu.I("m.email").As("member_email"),
		).
		Order(goqu.I("l.id").Asc())

	switch f.Status {
	case library.LoansOpen:
		ds = ds.Where(goqu.I("l.is_returned").Eq(false))
	case library.LoansReturned:
		ds = ds.Where(goqu.I("l.is_returned").Eq(true))
	}
	if f.BookID != nil {
		ds = ds.Where(goqu.I("l.book_id").Eq(*f.BookID))
	}
	if f.MemberID != nil {
		ds = ds.Where(goqu.I("l.member_id").Eq(*f.MemberID))
	}

	loans := []*library.LoanDetail{}
	if err := q.selectAll(ctx, "list loans", &loans, ds); err != nil {
		return nil, err
	}
	return loans, nil
}

func (q *queries) InsertLoan(ctx context.Context, l *library.Loan) error {
	id, err := q.insert(ctx, tableLoans, goqu.Record{
		"book_id":     l.BookID,
		"member_id":   l.MemberID,
		"loan_date":   library.Date(l.LoanDate),
		"is_returned": false,
	})
	if err != nil {
		return translate(err, nil)
	}
	l.ID = id
	return nil
}

// CloseLoan only touches a loan that is still open, so a loan is returned at most once
// even under concurrent returns.
func (q *queries) CloseLoan(ctx context.Context, id int64, returned time.Time) error {
	ds := q.dialect.Update(tableLoans).Prepared(true).
		Set(goqu.Record{"is_returned": true, "return_date": library.Date(returned)}).
		Where(goqu.C("id").Eq(id), goqu.C("is_returned").Eq(false))
	n, err := q.exec(ctx, "close loan", ds)
	if err != nil {
		return translate(err, nil)
	}
	if n > 0 {
		return nil
	}
	if _, err := q.GetLoan(ctx, id); err != nil {
		return err
	}
	return library.ErrAlreadyReturned
}
