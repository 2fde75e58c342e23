package library

import (
	"context"
	"time"
)

// Reader is the read side of the ledger. Get methods return ErrNotFound for unknown ids.
type Reader interface {
	GetAuthor(ctx context.Context, id int64) (*Author, error)
	ListAuthors(ctx context.Context) ([]*Author, error)

	GetCategory(ctx context.Context, id int64) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)

	GetMember(ctx context.Context, id int64) (*Member, error)
	ListMembers(ctx context.Context) ([]*Member, error)

	GetBook(ctx context.Context, id int64) (*Book, error)
	ListBooks(ctx context.Context, f BookFilter) ([]*BookDetail, error)

	GetLoan(ctx context.Context, id int64) (*Loan, error)
	ListLoans(ctx context.Context, f LoanFilter) ([]*LoanDetail, error)
}

// Tx is a unit of work. Every write goes through a Tx; the writes of one Tx become
// visible together or not at all.
type Tx interface {
	Reader

	InsertAuthor(ctx context.Context, a *Author) error
	// DeleteAuthor clears author_id on the author's books.
	DeleteAuthor(ctx context.Context, id int64) error

	// InsertCategory fails with ErrDuplicateCategory on a name already in use.
	InsertCategory(ctx context.Context, c *Category) error
	// DeleteCategory clears category_id on the category's books.
	DeleteCategory(ctx context.Context, id int64) error

	// InsertMember fails with ErrDuplicateEmail when the email is taken.
	InsertMember(ctx context.Context, m *Member) error
	// DeleteMember removes the member and their loans, returning the number of loans removed.
	DeleteMember(ctx context.Context, id int64) (int, error)

	InsertBook(ctx context.Context, b *Book) error
	// DeleteBook removes the book and its loans, returning the number of loans removed.
	DeleteBook(ctx context.Context, id int64) (int, error)

	InsertLoan(ctx context.Context, l *Loan) error
	// CloseLoan marks an open loan returned on the given date.
	// A loan that is already closed yields ErrAlreadyReturned.
	CloseLoan(ctx context.Context, id int64, returned time.Time) error

	// AdjustStock adds delta to the book's stock_count. A result below zero is
	// ErrOutOfStock and leaves the count untouched.
	AdjustStock(ctx context.Context, bookID int64, delta int) error
}

// Store is a ledger backend. It is constructed once, shared by every component and
// closed at exit.
type Store interface {
	Reader

	// WithTx runs fn in a transaction. An error from fn rolls back every write fn made.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}
