package library

import (
	"context"
	"strconv"
)

// StockDiscrepancy is a book whose shelf count disagrees with its loans.
type StockDiscrepancy struct {
	BookID     int64  `json:"book_id"`
	Title      string `json:"title"`
	StockCount int    `json:"stock_count"`
	Expected   int    `json:"expected"`
	OpenLoans  int    `json:"open_loans"`
}

// Audit checks stock_count = initial_stock - open loans for every book.
// An empty result means the ledger is consistent.
func (lm *LibraryManager) Audit(ctx context.Context) ([]StockDiscrepancy, error) {
	ctx, cancel := lm.read(ctx)
	defer cancel()

	books, err := lm.store.ListBooks(ctx, BookFilter{})
	if err != nil {
		return nil, err
	}
	open, err := lm.store.ListLoans(ctx, LoanFilter{Status: LoansOpen})
	if err != nil {
		return nil, err
	}

	out := make(map[int64]int, len(books))
	for _, l := range open {
		out[l.BookID]++
	}
	var bad []StockDiscrepancy
	for _, b := range books {
		want := b.InitialStock - out[b.ID]
		if b.StockCount != want {
			bad = append(bad, StockDiscrepancy{
				BookID:     b.ID,
				Title:      b.Title,
				StockCount: b.StockCount,
				Expected:   want,
				OpenLoans:  out[b.ID],
			})
		}
	}
	return bad, nil
}

// AuditTable renders an audit result; a consistent ledger is a NoData table.
func AuditTable(bad []StockDiscrepancy) Table {
	t := Table{
		Title:   "Stock audit",
		Columns: []string{"Book", "Title", "Stock", "Expected", "Open loans"},
		NoData:  len(bad) == 0,
	}
	for _, d := range bad {
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(d.BookID, 10),
			d.Title,
			strconv.Itoa(d.StockCount),
			strconv.Itoa(d.Expected),
			strconv.Itoa(d.OpenLoans),
		})
	}
	return t
}
