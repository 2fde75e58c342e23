package library

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultTxTimeout = 5 * time.Second

// LibraryManager is the circulation engine. It owns the rules that tie loans to stock
// and runs every write against the store in a single transaction.
type LibraryManager struct {
	store     Store
	now       func() time.Time
	logger    *slog.Logger
	txTimeout time.Duration
}

// Option configures a LibraryManager.
type Option func(*LibraryManager)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(lm *LibraryManager) { lm.now = now }
}

// WithLogger sets the logger for write operations. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(lm *LibraryManager) { lm.logger = logger }
}

// WithTxTimeout bounds how long a single operation may hold the store.
func WithTxTimeout(d time.Duration) Option {
	return func(lm *LibraryManager) { lm.txTimeout = d }
}

// NewLibraryManager wires the engine to an open store.
func NewLibraryManager(store Store, opts ...Option) *LibraryManager {
	lm := &LibraryManager{
		store:     store,
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		txTimeout: defaultTxTimeout,
	}
	for _, opt := range opts {
		opt(lm)
	}
	return lm
}

// Close closes the underlying store.
func (lm *LibraryManager) Close() error { return lm.store.Close() }

func (lm *LibraryManager) today() time.Time { return Date(lm.now()) }

// write runs fn in a bounded transaction and logs the outcome under a fresh op id.
func (lm *LibraryManager) write(ctx context.Context, op string, fn func(ctx context.Context, tx Tx) error, attrs ...any) error {
	ctx, cancel := context.WithTimeout(ctx, lm.txTimeout)
	defer cancel()

	opID := uuid.NewString()
	start := time.Now()
	err := lm.store.WithTx(ctx, func(tx Tx) error { return fn(ctx, tx) })

	attrs = append(attrs, "op", op, "op_id", opID, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		lm.logger.WarnContext(ctx, "ledger write rejected", append(attrs, "error", err)...)
		return err
	}
	lm.logger.InfoContext(ctx, "ledger write committed", attrs...)
	return nil
}

func (lm *LibraryManager) read(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, lm.txTimeout)
}

// ------------------ Circulation ------------------

// CreateLoan lends one copy of a book to a member, dated today.
// It fails with ErrNotFound when either id does not resolve and with ErrOutOfStock when
// no copy is on the shelf; nothing is written on failure.
func (lm *LibraryManager) CreateLoan(ctx context.Context, bookID, memberID int64) (*Loan, error) {
	var loan *Loan
	err := lm.write(ctx, "create_loan", func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetBook(ctx, bookID); err != nil {
			return fmt.Errorf("book %d: %w", bookID, err)
		}
		if _, err := tx.GetMember(ctx, memberID); err != nil {
			return fmt.Errorf("member %d: %w", memberID, err)
		}
		if err := tx.AdjustStock(ctx, bookID, -1); err != nil {
			return fmt.Errorf("book %d: %w", bookID, err)
		}
		l := &Loan{BookID: bookID, MemberID: memberID, LoanDate: lm.today()}
		if err := tx.InsertLoan(ctx, l); err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}
		loan = l
		return nil
	}, "book_id", bookID, "member_id", memberID)
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// ReturnLoan closes an open loan, dated today, and puts the copy back on the shelf.
// A second return of the same loan fails with ErrAlreadyReturned and leaves stock alone.
func (lm *LibraryManager) ReturnLoan(ctx context.Context, loanID int64) error {
	return lm.write(ctx, "return_loan", func(ctx context.Context, tx Tx) error {
		loan, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return fmt.Errorf("loan %d: %w", loanID, err)
		}
		if loan.IsReturned {
			return fmt.Errorf("loan %d: %w", loanID, ErrAlreadyReturned)
		}

		returned := lm.today()
		if returned.Before(loan.LoanDate) {
			returned = loan.LoanDate
		}
		if err := tx.CloseLoan(ctx, loanID, returned); err != nil {
			return fmt.Errorf("loan %d: %w", loanID, err)
		}
		if err := tx.AdjustStock(ctx, loan.BookID, 1); err != nil {
			return fmt.Errorf("book %d: %w", loan.BookID, err)
		}
		return nil
	}, "loan_id", loanID)
}

// ActiveLoans lists every open loan, overdue or not.
func (lm *LibraryManager) ActiveLoans(ctx context.Context) ([]*LoanDetail, error) {
	ctx, cancel := lm.read(ctx)
	defer cancel()
	return lm.store.ListLoans(ctx, LoanFilter{Status: LoansOpen})
}

// LoanHistory lists every loan ever made, returned or not, in loan id order.
func (lm *LibraryManager) LoanHistory(ctx context.Context) ([]*LoanDetail, error) {
	ctx, cancel := lm.read(ctx)
	defer cancel()
	return lm.store.ListLoans(ctx, LoanFilter{Status: LoansAny})
}

// ------------------ Book helpers ------------------

// AddBook registers a title with nb.InitialStock copies on the shelf.
func (lm *LibraryManager) AddBook(ctx context.Context, nb NewBook) (*Book, error) {
	nb.Title = strings.TrimSpace(nb.Title)
	if err := check(nb); err != nil {
		return nil, err
	}
	title := nb.Title

	book := &Book{
		Title:        title,
		AuthorID:     nb.AuthorID,
		CategoryID:   nb.CategoryID,
		StockCount:   nb.InitialStock,
		InitialStock: nb.InitialStock,
	}
	err := lm.write(ctx, "add_book", func(ctx context.Context, tx Tx) error {
		if nb.AuthorID != nil {
			if _, err := tx.GetAuthor(ctx, *nb.AuthorID); err != nil {
				return fmt.Errorf("author %d: %w", *nb.AuthorID, err)
			}
		}
		if nb.CategoryID != nil {
			if _, err := tx.GetCategory(ctx, *nb.CategoryID); err != nil {
				return fmt.Errorf("category %d: %w", *nb.CategoryID, err)
			}
		}
		return tx.InsertBook(ctx, book)
	}, "title", title, "stock", nb.InitialStock)
	if err != nil {
		return nil, err
	}
	return book, nil
}

// DeleteBook removes a book together with all of its loans, open ones included.
// It returns how many loans went with it.
func (lm *LibraryManager) DeleteBook(ctx context.Context, id int64) (int, error) {
	var removed int
	err := lm.write(ctx, "delete_book", func(ctx context.Context, tx Tx) error {
		n, err := tx.DeleteBook(ctx, id)
		if err != nil {
			return fmt.Errorf("book %d: %w", id, err)
		}
		removed = n
		return nil
	}, "book_id", id)
	return removed, err
}

func (lm *LibraryManager) GetBook(ctx context.Context, id int64) (*Book, error) {
	ctx, cancel := lm.read(ctx)
	defer cancel()
	return lm.store.GetBook(ctx, id)
}

func (lm *LibraryManager) ListBooks(ctx context.Context) ([]*BookDetail, error) {
	ctx, cancel := lm.read(ctx)
	defer cancel()
	return lm.store.ListBooks(ctx, BookFilter{})
}

// LowStock lists books with at most threshold copies on the shelf.
func (lm *LibraryManager) LowStock(ctx context.Context, threshold int) ([]*BookDetail, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("%w: threshold %d is negative", ErrInvalidArgument, threshold)
	}
	ctx, cancel := lm.read(ctx)
	defer cancel()
	return lm.store.ListBooks(ctx, BookFilter{MaxStock: &threshold})
}

// ------------------ Member helpers ------------------

// AddMember registers a member. Emails are stored lower-cased, so they compare
// case-insensitively.
func (lm *LibraryManager) AddMember(ctx context.Context, nm NewMember) (*Member, error) {
	nm.Name, nm.Surname = strings.TrimSpace(nm.Name), strings.TrimSpace(nm.Surname)
	nm.Email = strings.ToLower(strings.TrimSpace(nm.Email))
	if err := check(nm); err != nil {
		return nil, err
	}

	email := nm.Email
	member := &Member{Name: nm.Name, Surname: nm.Surname, Email: email}
	err := lm.write(ctx, "add_member", func(ctx context.Context, tx Tx) error {
		return tx.InsertMember(ctx, member)
	}, "email", email)
	if err != nil {
		return nil, err
	}
	return member, nil
}

// DeleteMember removes a member and their loans. Copies still out on the member's open
// loans are put back on the shelf first so the stock invariant survives the cascade.
func (lm *LibraryManager) DeleteMember(ctx context.Context, id int64) (int, error) {
	var removed int
	err := lm.write(ctx, "delete_member", func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetMember(ctx, id); err != nil {
			return fmt.Errorf("member %d: %w", id, err)
		}
		open, err := tx.ListLoans(ctx, LoanFilter{Status: LoansOpen, MemberID: &id})
		if err != nil {
			return err
		}
		for _, l := range open {
			if err := tx.AdjustStock(ctx, l.BookID, 1); err != nil {
				return fmt.Errorf("book %d: %w", l.BookID, err)
			}
		}
		n, err := tx.DeleteMember(ctx, id)
		if err != nil {
			return fmt.Errorf("member %d: %w", id, err)
		}
		removed = n
		return nil
	}, "member_id", id)
	return removed, err
}

func (lm *LibraryManager) GetMember(ctx context.Context, id int64) (*Member, error) {
	ctx, cancel := lm.read(ctx)
	defer cancel()
	return lm.store.GetMember(ctx, id)
}

func (lm *LibraryManager) ListMembers(ctx context.Context) ([]*Member, error) {
	ctx, cancel := lm.read(ctx)
	defer cancel()
	return lm.store.ListMembers(ctx)
}

// ------------------ Catalogue helpers ------------------

func (lm *LibraryManager) AddAuthor(ctx context.Context, name, surname string) (*Author, error) {
	author := &Author{Name: strings.TrimSpace(name), Surname: strings.TrimSpace(surname)}
	if err := check(author); err != nil {
		return nil, err
	}
	err := lm.write(ctx, "add_author", func(ctx context.Context, tx Tx) error {
		return tx.InsertAuthor(ctx, author)
	}, "name", author.FullName())
	if err != nil {
		return nil, err
	}
	return author, nil
}

// DeleteAuthor removes an author; their books stay, without an author.
func (lm *LibraryManager) DeleteAuthor(ctx context.Context, id int64) error {
	return lm.write(ctx, "delete_author", func(ctx context.Context, tx Tx) error {
		if err := tx.DeleteAuthor(ctx, id); err != nil {
			return fmt.Errorf("author %d: %w", id, err)
		}
		return nil
	}, "author_id", id)
}

func (lm *LibraryManager) ListAuthors(ctx context.Context) ([]*Author, error) {
	ctx, cancel := lm.read(ctx)
	defer cancel()
	return lm.store.ListAuthors(ctx)
}

func (lm *LibraryManager) AddCategory(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	category := &Category{Name: name}
	if err := check(category); err != nil {
		return nil, err
	}
	err := lm.write(ctx, "add_category", func(ctx context.Context, tx Tx) error {
		return tx.InsertCategory(ctx, category)
	}, "name", name)
	if err != nil {
		return nil, err
	}
	return category, nil
}

// DeleteCategory removes a category; its books stay, uncategorised.
func (lm *LibraryManager) DeleteCategory(ctx context.Context, id int64) error {
	return lm.write(ctx, "delete_category", func(ctx context.Context, tx Tx) error {
		if err := tx.DeleteCategory(ctx, id); err != nil {
			return fmt.Errorf("category %d: %w", id, err)
		}
		return nil
	}, "category_id", id)
}

func (lm *LibraryManager) ListCategories(ctx context.Context) ([]*Category, error) {
	ctx, cancel := lm.read(ctx)
	defer cancel()
	return lm.store.ListCategories(ctx)
}
