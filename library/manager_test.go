package library_test

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-ledger/library"
	"library-ledger/library/memstore"
	"library-ledger/library/sqlstore"
)

var today = time.Date(2025, time.March, 3, 10, 30, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time   { return c.now }
func (c *clock) advance(days int) { c.now = c.now.AddDate(0, 0, days) }

func fixedClock(t time.Time) *clock { return &clock{now: t} }

// backends runs fn once per store implementation.
func backends(t *testing.T, fn func(t *testing.T, mgr *library.LibraryManager, c *clock)) {
	t.Run("memory", func(t *testing.T) {
		c := fixedClock(today)
		mgr := library.NewLibraryManager(memstore.New(), library.WithClock(c.Now))
		t.Cleanup(func() { mgr.Close() })
		fn(t, mgr, c)
	})
	t.Run("sqlite", func(t *testing.T) {
		db, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "lib.db"))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		c := fixedClock(today)
		mgr := library.NewLibraryManager(db, library.WithClock(c.Now))
		t.Cleanup(func() { mgr.Close() })
		fn(t, mgr, c)
	})
}

func addBook(t *testing.T, mgr *library.LibraryManager, title string, stock int) *library.Book {
	t.Helper()
	b, err := mgr.AddBook(context.Background(), library.NewBook{Title: title, InitialStock: stock})
	require.NoError(t, err)
	return b
}

func addMember(t *testing.T, mgr *library.LibraryManager, email string) *library.Member {
	t.Helper()
	m, err := mgr.AddMember(context.Background(), library.NewMember{Name: "Reader", Surname: "Test", Email: email})
	require.NoError(t, err)
	return m
}

func stockOf(t *testing.T, mgr *library.LibraryManager, id int64) int {
	t.Helper()
	b, err := mgr.GetBook(context.Background(), id)
	require.NoError(t, err)
	return b.StockCount
}

func TestCheckoutFlow(t *testing.T) {
	backends(t, func(t *testing.T, mgr *library.LibraryManager, _ *clock) {
		ctx := context.Background()
		book := addBook(t, mgr, "Book", 2)
		member := addMember(t, mgr, "alice@example.com")

		loan, err := mgr.CreateLoan(ctx, book.ID, member.ID)
		require.NoError(t, err)
		assert.False(t, loan.IsReturned)
		assert.Equal(t, "2025-03-03", loan.LoanDate.Format(library.DateLayout))
		assert.Equal(t, 1, stockOf(t, mgr, book.ID))

		require.NoError(t, mgr.ReturnLoan(ctx, loan.ID))
		assert.Equal(t, 2, stockOf(t, mgr, book.ID))

		active, err := mgr.ActiveLoans(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)
	})
}

// TestStockInvariantHolds drives a sequence of loans and returns on one book and checks
// stock = initial - open loans after every step.
func TestStockInvariantHolds(t *testing.T) {
	backends(t, func(t *testing.T, mgr *library.LibraryManager, _ *clock) {
		ctx := context.Background()
		const initial = 3
		book := addBook(t, mgr, "Invariant", initial)
		member := addMember(t, mgr, "inv@example.com")

		var open []*library.Loan
		check := func() {
			t.Helper()
			stock := stockOf(t, mgr, book.ID)
			assert.GreaterOrEqual(t, stock, 0)
			assert.Equal(t, initial-len(open), stock)
		}

		// lend out, over-lend, return two, lend again, return all
		steps := []string{"lend", "lend", "lend", "lend", "return", "return", "lend", "return", "return"}
		for _, step := range steps {
			switch step {
			case "lend":
				l, err := mgr.CreateLoan(ctx, book.ID, member.ID)
				if len(open) == initial {
					assert.ErrorIs(t, err, library.ErrOutOfStock)
				} else {
					require.NoError(t, err)
					open = append(open, l)
				}
			case "return":
				require.NoError(t, mgr.ReturnLoan(ctx, open[0].ID))
				open = open[1:]
			}
			check()
		}

		bad, err := mgr.Audit(ctx)
		require.NoError(t, err)
		assert.Empty(t, bad)
	})
}

func TestCreateLoanOutOfStockChangesNothing(t *testing.T) {
	backends(t, func(t *testing.T, mgr *library.LibraryManager, _ *clock) {
		ctx := context.Background()
		book := addBook(t, mgr, "Empty Shelf", 0)
		member := addMember(t, mgr, "bob@example.com")

		_, err := mgr.CreateLoan(ctx, book.ID, member.ID)
		assert.ErrorIs(t, err, library.ErrOutOfStock)
		assert.Equal(t, 0, stockOf(t, mgr, book.ID))

		history, err := mgr.LoanHistory(ctx)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestCreateLoanUnknownIDs(t *testing.T) {
	backends(t, func(t *testing.T, mgr *library.LibraryManager, _ *clock) {
		ctx := context.Background()
		book := addBook(t, mgr, "Known", 1)
		member := addMember(t, mgr, "known@example.com")

		_, err := mgr.CreateLoan(ctx, 999, member.ID)
		assert.ErrorIs(t, err, library.ErrNotFound)
		_, err = mgr.CreateLoan(ctx, book.ID, 999)
		assert.ErrorIs(t, err, library.ErrNotFound)

		assert.Equal(t, 1, stockOf(t, mgr, book.ID), "a failed loan must not take stock")
	})
}

func TestReturnTwiceFails(t *testing.T) {
	backends(t, func(t *testing.T, mgr *library.LibraryManager, _ *clock) {
		ctx := context.Background()
		book := addBook(t, mgr, "Once", 1)
		member := addMember(t, mgr, "once@example.com")

		loan, err := mgr.CreateLoan(ctx, book.ID, member.ID)
		require.NoError(t, err)
		require.NoError(t, mgr.ReturnLoan(ctx, loan.ID))

		err = mgr.ReturnLoan(ctx, loan.ID)
		assert.ErrorIs(t, err, library.ErrAlreadyReturned)
		assert.Equal(t, 1, stockOf(t, mgr, book.ID), "second return must not add stock")

		err = mgr.ReturnLoan(ctx, 999)
		assert.ErrorIs(t, err, library.ErrNotFound)
		assert.Equal(t, 1, stockOf(t, mgr, book.ID))
	})
}

func TestReturnDateFollowsClock(t *testing.T) {
	backends(t, func(t *testing.T, mgr *library.LibraryManager, c *clock) {
		ctx := context.Background()
		book := addBook(t, mgr, "Dated", 1)
		member := addMember(t, mgr, "dated@example.com")

		loan, err := mgr.CreateLoan(ctx, book.ID, member.ID)
		require.NoError(t, err)

		c.advance(4)
		require.NoError(t, mgr.ReturnLoan(ctx, loan.ID))

		history, err := mgr.LoanHistory(ctx)
		require.NoError(t, err)
		require.Len(t, history, 1)
		require.NotNil(t, history[0].ReturnDate)
		assert.Equal(t, "2025-03-07", history[0].ReturnDate.Format(library.DateLayout))
		assert.Equal(t, "2025-03-03", history[0].LoanDate.Format(library.DateLayout))
	})
}

func TestReturnNeverPredatesLoan(t *testing.T) {
	c := fixedClock(today)
	mgr := library.NewLibraryManager(memstore.New(), library.WithClock(c.Now))
	ctx := context.Background()
	book := addBook(t, mgr, "Skewed", 1)
	member := addMember(t, mgr, "skew@example.com")

	loan, err := mgr.CreateLoan(ctx, book.ID, member.ID)
	require.NoError(t, err)

	c.advance(-2)
	require.NoError(t, mgr.ReturnLoan(ctx, loan.ID))

	history, err := mgr.LoanHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].ReturnDate)
	assert.Equal(t, history[0].LoanDate, *history[0].ReturnDate)
}

func TestAddBook(t *testing.T) {
	backends(t, func(t *testing.T, mgr *library.LibraryManager, _ *clock) {
		ctx := context.Background()

		_, err := mgr.AddBook(ctx, library.NewBook{Title: "Negative", InitialStock: -1})
		assert.ErrorIs(t, err, library.ErrInvalidArgument)
		_, err = mgr.AddBook(ctx, library.NewBook{Title: "  ", InitialStock: 1})
		assert.ErrorIs(t, err, library.ErrInvalidArgument)

		missing := int64(42)
		_, err = mgr.AddBook(ctx, library.NewBook{Title: "Ghost", AuthorID: &missing, InitialStock: 1})
		assert.ErrorIs(t, err, library.ErrNotFound)
		_, err = mgr.AddBook(ctx, library.NewBook{Title: "Ghost", CategoryID: &missing, InitialStock: 1})
		assert.ErrorIs(t, err, library.ErrNotFound)

		author, err := mgr.AddAuthor(ctx, "Lewis", "Carroll")
		require.NoError(t, err)

		// no category: the call predates category support
		b, err := mgr.AddBook(ctx, library.NewBook{Title: "Alice in Wonderland", AuthorID: &author.ID, InitialStock: 10})
		require.NoError(t, err)
		assert.Equal(t, 10, b.StockCount)
		assert.Equal(t, 10, b.InitialStock)
		assert.Nil(t, b.CategoryID)

		books, err := mgr.ListBooks(ctx)
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, "Lewis Carroll", books[0].AuthorName)
	})
}

func TestDeleteBookCascadesLoans(t *testing.T) {
	backends(t, func(t *testing.T, mgr *library.LibraryManager, _ *clock) {
		ctx := context.Background()
		book := addBook(t, mgr, "Doomed", 3)
		other := addBook(t, mgr, "Survivor", 1)
		member := addMember(t, mgr, "cascade@example.com")

		first, err := mgr.CreateLoan(ctx, book.ID, member.ID)
		require.NoError(t, err)
		_, err = mgr.CreateLoan(ctx, book.ID, member.ID)
		require.NoError(t, err)
		require.NoError(t, mgr.ReturnLoan(ctx, first.ID))
		kept, err := mgr.CreateLoan(ctx, other.ID, member.ID)
		require.NoError(t, err)

		removed, err := mgr.DeleteBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		history, err := mgr.LoanHistory(ctx)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, kept.ID, history[0].ID)

		_, err = mgr.DeleteBook(ctx, book.ID)
		assert.ErrorIs(t, err, library.ErrNotFound)
	})
}

func TestAddMemberDuplicateEmail(t *testing.T) {
	backends(t, func(t *testing.T, mgr *library.LibraryManager, _ *clock) {
		ctx := context.Background()
		addMember(t, mgr, "alice@example.com")

		before, err := mgr.ListMembers(ctx)
		require.NoError(t, err)

		_, err = mgr.AddMember(ctx, library.NewMember{Name: "Alice", Surname: "Again", Email: " Alice@Example.com "})
		assert.ErrorIs(t, err, library.ErrDuplicateEmail)

		after, err := mgr.ListMembers(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(before), len(after))
	})
}

func TestAddMemberValidation(t *testing.T) {
	tests := []struct {
		name    string
		in      library.NewMember
		wantErr bool
	}{
		{name: "missing name", in: library.NewMember{Surname: "Nobody", Email: "nobody@example.com"}, wantErr: true},
		{name: "blank name", in: library.NewMember{Name: "   ", Email: "blank@example.com"}, wantErr: true},
		{name: "missing email", in: library.NewMember{Name: "Quiet"}, wantErr: true},
		{name: "malformed email", in: library.NewMember{Name: "Bad", Email: "not-an-email"}, wantErr: true},
		{name: "display name form", in: library.NewMember{Name: "Bad", Email: "Bad <bad@example.com>"}, wantErr: true},
		{name: "no surname", in: library.NewMember{Name: "Cher", Email: "cher@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := library.NewLibraryManager(memstore.New())
			_, err := mgr.AddMember(context.Background(), tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, library.ErrInvalidArgument)
				return
			}
			assert.NoError(t, err)
		})
	}

	mgr := library.NewLibraryManager(memstore.New())
	m, err := mgr.AddMember(context.Background(), library.NewMember{Name: " Grace ", Surname: "Hopper", Email: " Grace@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Grace", m.Name)
	assert.Equal(t, "grace@example.com", m.Email)
}

func TestDeleteMemberRestocksOpenLoans(t *testing.T) {
	backends(t, func(t *testing.T, mgr *library.LibraryManager, _ *clock) {
		ctx := context.Background()
		book := addBook(t, mgr, "Borrowed", 2)
		leaving := addMember(t, mgr, "leaving@example.com")
		staying := addMember(t, mgr, "staying@example.com")

		_, err := mgr.CreateLoan(ctx, book.ID, leaving.ID)
		require.NoError(t, err)
		_, err = mgr.CreateLoan(ctx, book.ID, staying.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stockOf(t, mgr, book.ID))

		removed, err := mgr.DeleteMember(ctx, leaving.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
		assert.Equal(t, 1, stockOf(t, mgr, book.ID))

		bad, err := mgr.Audit(ctx)
		require.NoError(t, err)
		assert.Empty(t, bad)

		_, err = mgr.DeleteMember(ctx, leaving.ID)
		assert.ErrorIs(t, err, library.ErrNotFound)
	})
}

func TestCatalogue(t *testing.T) {
	backends(t, func(t *testing.T, mgr *library.LibraryManager, _ *clock) {
		ctx := context.Background()

		_, err := mgr.AddAuthor(ctx, "Solo", "")
		assert.ErrorIs(t, err, library.ErrInvalidArgument)
		_, err = mgr.AddCategory(ctx, " ")
		assert.ErrorIs(t, err, library.ErrInvalidArgument)

		author, err := mgr.AddAuthor(ctx, "Mary", "Shelley")
		require.NoError(t, err)
		category, err := mgr.AddCategory(ctx, "Gothic")
		require.NoError(t, err)
		_, err = mgr.AddCategory(ctx, "gothic")
		assert.ErrorIs(t, err, library.ErrDuplicateCategory)

		book, err := mgr.AddBook(ctx, library.NewBook{
			Title: "Frankenstein", AuthorID: &author.ID, CategoryID: &category.ID, InitialStock: 1,
		})
		require.NoError(t, err)

		require.NoError(t, mgr.DeleteAuthor(ctx, author.ID))
		require.NoError(t, mgr.DeleteCategory(ctx, category.ID))
		assert.ErrorIs(t, mgr.DeleteAuthor(ctx, author.ID), library.ErrNotFound)
		assert.ErrorIs(t, mgr.DeleteCategory(ctx, category.ID), library.ErrNotFound)

		got, err := mgr.GetBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Nil(t, got.AuthorID)
		assert.Nil(t, got.CategoryID)

		authors, err := mgr.ListAuthors(ctx)
		require.NoError(t, err)
		assert.Empty(t, authors)
		categories, err := mgr.ListCategories(ctx)
		require.NoError(t, err)
		assert.Empty(t, categories)
	})
}

func TestLowStock(t *testing.T) {
	backends(t, func(t *testing.T, mgr *library.LibraryManager, _ *clock) {
		ctx := context.Background()
		addBook(t, mgr, "Plenty", 10)
		scarce := addBook(t, mgr, "Scarce", 2)
		gone := addBook(t, mgr, "Gone", 0)

		low, err := mgr.LowStock(ctx, 2)
		require.NoError(t, err)
		require.Len(t, low, 2)
		assert.Equal(t, scarce.ID, low[0].ID)
		assert.Equal(t, gone.ID, low[1].ID)

		_, err = mgr.LowStock(ctx, -1)
		assert.ErrorIs(t, err, library.ErrInvalidArgument)
	})
}

func TestWritesAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	mgr := library.NewLibraryManager(memstore.New(), library.WithLogger(logger))
	ctx := context.Background()

	book := addBook(t, mgr, "Logged", 0)
	member := addMember(t, mgr, "log@example.com")
	_, err := mgr.CreateLoan(ctx, book.ID, member.ID)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "ledger write committed")
	assert.Contains(t, out, "op=add_book")
	assert.Contains(t, out, "ledger write rejected")
	assert.Contains(t, out, "op=create_loan")
	assert.Contains(t, out, "op_id=")
}

func TestTxTimeoutBoundsOperations(t *testing.T) {
	mgr := library.NewLibraryManager(memstore.New(), library.WithTxTimeout(-time.Second))
	_, err := mgr.AddAuthor(context.Background(), "Late", "Writer")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
