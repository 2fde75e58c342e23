// Package storetest is a behavioural test suite every library.Store backend must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-ledger/library"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) library.Store

var day = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

// Run exercises the store contract against stores made by open.
func Run(t *testing.T, open Factory) {
	t.Run("ids are assigned in order", func(t *testing.T) { testIDs(t, open(t)) })
	t.Run("unknown ids are not found", func(t *testing.T) { testNotFound(t, open(t)) })
	t.Run("duplicate email is rejected", func(t *testing.T) { testDuplicateEmail(t, open(t)) })
	t.Run("duplicate category is rejected", func(t *testing.T) { testDuplicateCategory(t, open(t)) })
	t.Run("stock never goes negative", func(t *testing.T) { testStockGuard(t, open(t)) })
	t.Run("loan closes once", func(t *testing.T) { testCloseLoan(t, open(t)) })
	t.Run("failed transaction leaves no trace", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("book delete cascades to loans", func(t *testing.T) { testDeleteBookCascade(t, open(t)) })
	t.Run("member delete cascades to loans", func(t *testing.T) { testDeleteMemberCascade(t, open(t)) })
	t.Run("author and category delete set null", func(t *testing.T) { testSetNull(t, open(t)) })
	t.Run("filtered scans", func(t *testing.T) { testFilters(t, open(t)) })
}

type fixture struct {
	author   *library.Author
	category *library.Category
	member   *library.Member
	book     *library.Book
}

func seed(t *testing.T, s library.Store, stock int) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{
		author:   &library.Author{Name: "Lewis", Surname: "Carroll"},
		category: &library.Category{Name: "Fiction"},
		member:   &library.Member{Name: "Alice", Surname: "Liddell", Email: "alice@example.com"},
	}
	require.NoError(t, s.WithTx(ctx, func(tx library.Tx) error {
		if err := tx.InsertAuthor(ctx, f.author); err != nil {
			return err
		}
		if err := tx.InsertCategory(ctx, f.category); err != nil {
			return err
		}
		if err := tx.InsertMember(ctx, f.member); err != nil {
			return err
		}
		f.book = &library.Book{
			Title:        "Alice in Wonderland",
			AuthorID:     &f.author.ID,
			CategoryID:   &f.category.ID,
			StockCount:   stock,
			InitialStock: stock,
		}
		return tx.InsertBook(ctx, f.book)
	}))
	return f
}

func lend(t *testing.T, s library.Store, bookID, memberID int64) *library.Loan {
	t.Helper()
	ctx := context.Background()
	l := &library.Loan{BookID: bookID, MemberID: memberID, LoanDate: day}
	require.NoError(t, s.WithTx(ctx, func(tx library.Tx) error {
		if err := tx.AdjustStock(ctx, bookID, -1); err != nil {
			return err
		}
		return tx.InsertLoan(ctx, l)
	}))
	return l
}

func testIDs(t *testing.T, s library.Store) {
	defer s.Close()
	ctx := context.Background()

	var first, second library.Author
	first = library.Author{Name: "Mary", Surname: "Shelley"}
	second = library.Author{Name: "Bram", Surname: "Stoker"}
	require.NoError(t, s.WithTx(ctx, func(tx library.Tx) error {
		if err := tx.InsertAuthor(ctx, &first); err != nil {
			return err
		}
		return tx.InsertAuthor(ctx, &second)
	}))
	assert.Greater(t, first.ID, int64(0))
	assert.Greater(t, second.ID, first.ID)

	got, err := s.GetAuthor(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bram Stoker", got.FullName())

	authors, err := s.ListAuthors(ctx)
	require.NoError(t, err)
	require.Len(t, authors, 2)
	assert.Equal(t, first.ID, authors[0].ID)
}

func testNotFound(t *testing.T, s library.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.GetBook(ctx, 404)
	assert.ErrorIs(t, err, library.ErrNotFound)
	_, err = s.GetMember(ctx, 404)
	assert.ErrorIs(t, err, library.ErrNotFound)
	_, err = s.GetLoan(ctx, 404)
	assert.ErrorIs(t, err, library.ErrNotFound)
	_, err = s.GetAuthor(ctx, 404)
	assert.ErrorIs(t, err, library.ErrNotFound)
	_, err = s.GetCategory(ctx, 404)
	assert.ErrorIs(t, err, library.ErrNotFound)

	err = s.WithTx(ctx, func(tx library.Tx) error {
		_, err := tx.DeleteBook(ctx, 404)
		return err
	})
	assert.ErrorIs(t, err, library.ErrNotFound)

	err = s.WithTx(ctx, func(tx library.Tx) error { return tx.AdjustStock(ctx, 404, 1) })
	assert.ErrorIs(t, err, library.ErrNotFound)

	err = s.WithTx(ctx, func(tx library.Tx) error { return tx.CloseLoan(ctx, 404, day) })
	assert.ErrorIs(t, err, library.ErrNotFound)

	missing := int64(404)
	err = s.WithTx(ctx, func(tx library.Tx) error {
		return tx.InsertBook(ctx, &library.Book{Title: "Orphan", AuthorID: &missing})
	})
	assert.ErrorIs(t, err, library.ErrNotFound)
}

func testDuplicateEmail(t *testing.T, s library.Store) {
	defer s.Close()
	ctx := context.Background()
	seed(t, s, 1)

	err := s.WithTx(ctx, func(tx library.Tx) error {
		return tx.InsertMember(ctx, &library.Member{Name: "Other", Email: "alice@example.com"})
	})
	assert.ErrorIs(t, err, library.ErrDuplicateEmail)

	members, err := s.ListMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func testDuplicateCategory(t *testing.T, s library.Store) {
	defer s.Close()
	ctx := context.Background()
	seed(t, s, 1)

	err := s.WithTx(ctx, func(tx library.Tx) error {
		return tx.InsertCategory(ctx, &library.Category{Name: "fiction"})
	})
	assert.ErrorIs(t, err, library.ErrDuplicateCategory)
}

func testStockGuard(t *testing.T, s library.Store) {
	defer s.Close()
	ctx := context.Background()
	f := seed(t, s, 1)

	require.NoError(t, s.WithTx(ctx, func(tx library.Tx) error { return tx.AdjustStock(ctx, f.book.ID, -1) }))
	err := s.WithTx(ctx, func(tx library.Tx) error { return tx.AdjustStock(ctx, f.book.ID, -1) })
	assert.ErrorIs(t, err, library.ErrOutOfStock)

	b, err := s.GetBook(ctx, f.book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, b.StockCount)
	assert.Equal(t, 1, b.InitialStock)
}

func testCloseLoan(t *testing.T, s library.Store) {
	defer s.Close()
	ctx := context.Background()
	f := seed(t, s, 2)
	l := lend(t, s, f.book.ID, f.member.ID)

	got, err := s.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, got.IsReturned)
	assert.Nil(t, got.ReturnDate)
	assert.Equal(t, day.Format(library.DateLayout), got.LoanDate.Format(library.DateLayout))

	returned := day.AddDate(0, 0, 3)
	require.NoError(t, s.WithTx(ctx, func(tx library.Tx) error { return tx.CloseLoan(ctx, l.ID, returned) }))
	err = s.WithTx(ctx, func(tx library.Tx) error { return tx.CloseLoan(ctx, l.ID, returned) })
	assert.ErrorIs(t, err, library.ErrAlreadyReturned)

	got, err = s.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, got.IsReturned)
	require.NotNil(t, got.ReturnDate)
	assert.Equal(t, returned.Format(library.DateLayout), got.ReturnDate.Format(library.DateLayout))
}

func testRollback(t *testing.T, s library.Store) {
	defer s.Close()
	ctx := context.Background()
	f := seed(t, s, 1)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx library.Tx) error {
		if err := tx.AdjustStock(ctx, f.book.ID, -1); err != nil {
			return err
		}
		if err := tx.InsertLoan(ctx, &library.Loan{BookID: f.book.ID, MemberID: f.member.ID, LoanDate: day}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	b, err := s.GetBook(ctx, f.book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, b.StockCount)

	loans, err := s.ListLoans(ctx, library.LoanFilter{})
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func testDeleteBookCascade(t *testing.T, s library.Store) {
	defer s.Close()
	ctx := context.Background()
	f := seed(t, s, 3)
	lend(t, s, f.book.ID, f.member.ID)
	lend(t, s, f.book.ID, f.member.ID)

	var removed int
	require.NoError(t, s.WithTx(ctx, func(tx library.Tx) error {
		var err error
		removed, err = tx.DeleteBook(ctx, f.book.ID)
		return err
	}))
	assert.Equal(t, 2, removed)

	loans, err := s.ListLoans(ctx, library.LoanFilter{})
	require.NoError(t, err)
	assert.Empty(t, loans)

	_, err = s.GetMember(ctx, f.member.ID)
	assert.NoError(t, err, "members survive book deletion")
}

func testDeleteMemberCascade(t *testing.T, s library.Store) {
	defer s.Close()
	ctx := context.Background()
	f := seed(t, s, 3)
	lend(t, s, f.book.ID, f.member.ID)

	var removed int
	require.NoError(t, s.WithTx(ctx, func(tx library.Tx) error {
		var err error
		removed, err = tx.DeleteMember(ctx, f.member.ID)
		return err
	}))
	assert.Equal(t, 1, removed)

	loans, err := s.ListLoans(ctx, library.LoanFilter{})
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func testSetNull(t *testing.T, s library.Store) {
	defer s.Close()
	ctx := context.Background()
	f := seed(t, s, 1)

	require.NoError(t, s.WithTx(ctx, func(tx library.Tx) error {
		if err := tx.DeleteAuthor(ctx, f.author.ID); err != nil {
			return err
		}
		return tx.DeleteCategory(ctx, f.category.ID)
	}))

	b, err := s.GetBook(ctx, f.book.ID)
	require.NoError(t, err, "books survive author and category deletion")
	assert.Nil(t, b.AuthorID)
	assert.Nil(t, b.CategoryID)

	books, err := s.ListBooks(ctx, library.BookFilter{})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Empty(t, books[0].AuthorName)
	assert.Empty(t, books[0].CategoryName)
}

func testFilters(t *testing.T, s library.Store) {
	defer s.Close()
	ctx := context.Background()
	f := seed(t, s, 5)

	scarce := &library.Book{Title: "Through the Looking-Glass", StockCount: 1, InitialStock: 1}
	require.NoError(t, s.WithTx(ctx, func(tx library.Tx) error { return tx.InsertBook(ctx, scarce) }))

	books, err := s.ListBooks(ctx, library.BookFilter{})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Lewis Carroll", books[0].AuthorName)
	assert.Equal(t, "Fiction", books[0].CategoryName)

	threshold := 2
	low, err := s.ListBooks(ctx, library.BookFilter{MaxStock: &threshold})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, scarce.ID, low[0].ID)

	byAuthor, err := s.ListBooks(ctx, library.BookFilter{AuthorID: &f.author.ID})
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, f.book.ID, byAuthor[0].ID)

	first := lend(t, s, f.book.ID, f.member.ID)
	second := lend(t, s, scarce.ID, f.member.ID)
	require.NoError(t, s.WithTx(ctx, func(tx library.Tx) error { return tx.CloseLoan(ctx, first.ID, day) }))

	open, err := s.ListLoans(ctx, library.LoanFilter{Status: library.LoansOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)
	assert.Equal(t, "Through the Looking-Glass", open[0].BookTitle)
	assert.Equal(t, "Alice Liddell", open[0].Borrower())
	assert.Equal(t, "alice@example.com", open[0].MemberEmail)

	returned, err := s.ListLoans(ctx, library.LoanFilter{Status: library.LoansReturned})
	require.NoError(t, err)
	require.Len(t, returned, 1)
	assert.Equal(t, first.ID, returned[0].ID)

	forBook, err := s.ListLoans(ctx, library.LoanFilter{BookID: &f.book.ID})
	require.NoError(t, err)
	require.Len(t, forBook, 1)

	all, err := s.ListLoans(ctx, library.LoanFilter{MemberID: &f.member.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Less(t, all[0].ID, all[1].ID)
}
