// Package memstore is an in-process ledger store. It keeps nothing on disk; the CLI
// opens it with --driver memory for a session that is discarded on exit.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"library-ledger/library"
)

type state struct {
	authors    map[int64]library.Author
	categories map[int64]library.Category
	members    map[int64]library.Member
	books      map[int64]library.Book
	loans      map[int64]library.Loan
	nextID     map[string]int64
}

func newState() state {
	return state{
		authors:    make(map[int64]library.Author),
		categories: make(map[int64]library.Category),
		members:    make(map[int64]library.Member),
		books:      make(map[int64]library.Book),
		loans:      make(map[int64]library.Loan),
		nextID:     make(map[string]int64),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.authors {
		c.authors[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	for k, v := range s.nextID {
		c.nextID[k] = v
	}
	return c
}

// Store holds the ledger in maps guarded by one mutex. A transaction holds the mutex
// for its whole run, so transactions are serial.
type Store struct {
	mu     sync.RWMutex
	data   state
	closed bool
}

var _ library.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: newState()}
}

// WithTx runs fn against the live state and restores a snapshot if fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(tx library.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	snapshot := s.data.clone()
	if err := fn(&tx{data: &s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var errClosed = errors.New("memstore: store is closed")

func (s *Store) view() *tx { return &tx{data: &s.data} }

// Reads take the read lock and delegate to a tx over the live state.

func (s *Store) GetAuthor(ctx context.Context, id int64) (*library.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetAuthor(ctx, id)
}

func (s *Store) ListAuthors(ctx context.Context) ([]*library.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListAuthors(ctx)
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*library.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetCategory(ctx, id)
}

func (s *Store) ListCategories(ctx context.Context) ([]*library.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListCategories(ctx)
}

func (s *Store) GetMember(ctx context.Context, id int64) (*library.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetMember(ctx, id)
}

func (s *Store) ListMembers(ctx context.Context) ([]*library.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListMembers(ctx)
}

func (s *Store) GetBook(ctx context.Context, id int64) (*library.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetBook(ctx, id)
}

func (s *Store) ListBooks(ctx context.Context, f library.BookFilter) ([]*library.BookDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListBooks(ctx, f)
}

func (s *Store) GetLoan(ctx context.Context, id int64) (*library.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetLoan(ctx, id)
}

func (s *Store) ListLoans(ctx context.Context, f library.LoanFilter) ([]*library.LoanDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListLoans(ctx, f)
}

// tx operates directly on the store's state; the caller holds the lock.
type tx struct {
	data *state
}

func (t *tx) next(kind string) int64 {
	t.data.nextID[kind]++
	return t.data.nextID[kind]
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (t *tx) GetAuthor(_ context.Context, id int64) (*library.Author, error) {
	a, ok := t.data.authors[id]
	if !ok {
		return nil, library.ErrNotFound
	}
	return &a, nil
}

func (t *tx) ListAuthors(context.Context) ([]*library.Author, error) {
	out := make([]*library.Author, 0, len(t.data.authors))
	for _, k := range sortedKeys(t.data.authors) {
		a := t.data.authors[k]
		out = append(out, &a)
	}
	return out, nil
}

func (t *tx) GetCategory(_ context.Context, id int64) (*library.Category, error) {
	c, ok := t.data.categories[id]
	if !ok {
		return nil, library.ErrNotFound
	}
	return &c, nil
}

func (t *tx) ListCategories(context.Context) ([]*library.Category, error) {
	out := make([]*library.Category, 0, len(t.data.categories))
	for _, k := range sortedKeys(t.data.categories) {
		c := t.data.categories[k]
		out = append(out, &c)
	}
	return out, nil
}

func (t *tx) GetMember(_ context.Context, id int64) (*library.Member, error) {
	m, ok := t.data.members[id]
	if !ok {
		return nil, library.ErrNotFound
	}
	return &m, nil
}

func (t *tx) ListMembers(context.Context) ([]*library.Member, error) {
	out := make([]*library.Member, 0, len(t.data.members))
	for _, k := range sortedKeys(t.data.members) {
		m := t.data.members[k]
		out = append(out, &m)
	}
	return out, nil
}

func (t *tx) GetBook(_ context.Context, id int64) (*library.Book, error) {
	b, ok := t.data.books[id]
	if !ok {
		return nil, library.ErrNotFound
	}
	return &b, nil
}

func (t *tx) ListBooks(_ context.Context, f library.BookFilter) ([]*library.BookDetail, error) {
	out := make([]*library.BookDetail, 0)
	for _, k := range sortedKeys(t.data.books) {
		b := t.data.books[k]
		if f.MaxStock != nil && b.StockCount > *f.MaxStock {
			continue
		}
		if f.AuthorID != nil && (b.AuthorID == nil || *b.AuthorID != *f.AuthorID) {
			continue
		}
		if f.CategoryID != nil && (b.CategoryID == nil || *b.CategoryID != *f.CategoryID) {
			continue
		}
		d := &library.BookDetail{Book: b}
		if b.AuthorID != nil {
			if a, ok := t.data.authors[*b.AuthorID]; ok {
				d.AuthorName = a.FullName()
			}
		}
		if b.CategoryID != nil {
			if c, ok := t.data.categories[*b.CategoryID]; ok {
				d.CategoryName = c.Name
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func (t *tx) GetLoan(_ context.Context, id int64) (*library.Loan, error) {
	l, ok := t.data.loans[id]
	if !ok {
		return nil, library.ErrNotFound
	}
	return &l, nil
}

func (t *tx) ListLoans(_ context.Context, f library.LoanFilter) ([]*library.LoanDetail, error) {
	out := make([]*library.LoanDetail, 0)
	for _, k := range sortedKeys(t.data.loans) {
		l := t.data.loans[k]
		switch {
		case f.Status == library.LoansOpen && l.IsReturned,
			f.Status == library.LoansReturned && !l.IsReturned,
			f.BookID != nil && l.BookID != *f.BookID,
			f.MemberID != nil && l.MemberID != *f.MemberID:
			continue
		}
		m := t.data.members[l.MemberID]
		out = append(out, &library.LoanDetail{
			Loan:          l,
			BookTitle:     t.data.books[l.BookID].Title,
			MemberName:    m.Name,
			MemberSurname: m.Surname,
			MemberEmail:   m.Email,
		})
	}
	return out, nil
}

func (t *tx) InsertAuthor(_ context.Context, a *library.Author) error {
	a.ID = t.next("author")
	t.data.authors[a.ID] = *a
	return nil
}

func (t *tx) DeleteAuthor(_ context.Context, id int64) error {
	if _, ok := t.data.authors[id]; !ok {
		return library.ErrNotFound
	}
	delete(t.data.authors, id)
	for k, b := range t.data.books {
		if b.AuthorID != nil && *b.AuthorID == id {
			b.AuthorID = nil
			t.data.books[k] = b
		}
	}
	return nil
}

func (t *tx) InsertCategory(_ context.Context, c *library.Category) error {
	for _, existing := range t.data.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return fmt.Errorf("category %q: %w", c.Name, library.ErrDuplicateCategory)
		}
	}
	c.ID = t.next("category")
	t.data.categories[c.ID] = *c
	return nil
}

func (t *tx) DeleteCategory(_ context.Context, id int64) error {
	if _, ok := t.data.categories[id]; !ok {
		return library.ErrNotFound
	}
	delete(t.data.categories, id)
	for k, b := range t.data.books {
		if b.CategoryID != nil && *b.CategoryID == id {
			b.CategoryID = nil
			t.data.books[k] = b
		}
	}
	return nil
}

func (t *tx) InsertMember(_ context.Context, m *library.Member) error {
	for _, existing := range t.data.members {
		if strings.EqualFold(existing.Email, m.Email) {
			return fmt.Errorf("email %q: %w", m.Email, library.ErrDuplicateEmail)
		}
	}
	m.ID = t.next("member")
	t.data.members[m.ID] = *m
	return nil
}

func (t *tx) DeleteMember(_ context.Context, id int64) (int, error) {
	if _, ok := t.data.members[id]; !ok {
		return 0, library.ErrNotFound
	}
	delete(t.data.members, id)
	removed := 0
	for k, l := range t.data.loans {
		if l.MemberID == id {
			delete(t.data.loans, k)
			removed++
		}
	}
	return removed, nil
}

func (t *tx) InsertBook(_ context.Context, b *library.Book) error {
	if b.AuthorID != nil {
		if _, ok := t.data.authors[*b.AuthorID]; !ok {
			return library.ErrNotFound
		}
	}
	if b.CategoryID != nil {
		if _, ok := t.data.categories[*b.CategoryID]; !ok {
			return library.ErrNotFound
		}
	}
	if b.StockCount < 0 || b.InitialStock < 0 {
		return fmt.Errorf("%w: negative stock", library.ErrInvalidArgument)
	}
	b.ID = t.next("book")
	t.data.books[b.ID] = *b
	return nil
}

func (t *tx) DeleteBook(_ context.Context, id int64) (int, error) {
	if _, ok := t.data.books[id]; !ok {
		return 0, library.ErrNotFound
	}
	delete(t.data.books, id)
	removed := 0
	for k, l := range t.data.loans {
		if l.BookID == id {
			delete(t.data.loans, k)
			removed++
		}
	}
	return removed, nil
}

func (t *tx) InsertLoan(_ context.Context, l *library.Loan) error {
	if _, ok := t.data.books[l.BookID]; !ok {
		return library.ErrNotFound
	}
	if _, ok := t.data.members[l.MemberID]; !ok {
		return library.ErrNotFound
	}
	l.ID = t.next("loan")
	t.data.loans[l.ID] = *l
	return nil
}

func (t *tx) CloseLoan(_ context.Context, id int64, returned time.Time) error {
	l, ok := t.data.loans[id]
	if !ok {
		return library.ErrNotFound
	}
	if l.IsReturned {
		return library.ErrAlreadyReturned
	}
	l.IsReturned = true
	l.ReturnDate = &returned
	t.data.loans[id] = l
	return nil
}

func (t *tx) AdjustStock(_ context.Context, bookID int64, delta int) error {
	b, ok := t.data.books[bookID]
	if !ok {
		return library.ErrNotFound
	}
	if b.StockCount+delta < 0 {
		return library.ErrOutOfStock
	}
	b.StockCount += delta
	t.data.books[bookID] = b
	return nil
}
