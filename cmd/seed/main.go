// Command seed rebuilds the SQLite ledger with a demo catalogue and a few months of
// back-dated loans, so the overdue and analysis reports have something to show.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"library-ledger/config"
	"library-ledger/library"
	"library-ledger/library/sqlstore"
	"library-ledger/report"
)

type seedBook struct {
	title    string
	author   [2]string
	category string
	copies   int
	loans    int
}

var catalogue = []seedBook{
	{"1984", [2]string{"George", "Orwell"}, "Dystopia", 4, 9},
	{"Animal Farm", [2]string{"George", "Orwell"}, "Satire", 3, 6},
	{"The Diary of a Young Girl", [2]string{"Anne", "Frank"}, "Memoir", 2, 2},
	{"The Art of War", [2]string{"Sun", "Tzu"}, "Strategy", 1, 1},
	{"The Fellowship of the Ring", [2]string{"J.R.R.", "Tolkien"}, "Fantasy", 5, 8},
	{"The Two Towers", [2]string{"J.R.R.", "Tolkien"}, "Fantasy", 3, 4},
	{"The Return of the King", [2]string{"J.R.R.", "Tolkien"}, "Fantasy", 3, 3},
	{"Romeo and Juliet", [2]string{"William", "Shakespeare"}, "Drama", 2, 2},
	{"The Three Musketeers", [2]string{"Alexandre", "Dumas"}, "Adventure", 2, 1},
	{"The Three Little Pigs", [2]string{"Joseph", "Jacobs"}, "", 1, 0},
}

var members = [][3]string{
	{"Ada", "Lovelace", "ada@example.com"},
	{"Alan", "Turing", "alan@example.com"},
	{"Grace", "Hopper", "grace@example.com"},
	{"Edsger", "Dijkstra", "edsger@example.com"},
	{"Barbara", "Liskov", "barbara@example.com"},
}

// clock lets the seed walk backwards in time while lending.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Driver != sqlstore.DriverSQLite {
		fmt.Fprintf(os.Stderr, "Error: seed only rebuilds sqlite3 ledgers, not %s\n", cfg.Driver)
		os.Exit(1)
	}

	// Clean up any existing database files
	fmt.Println("Cleaning up existing database files...")
	for _, file := range []string{cfg.DSN, cfg.DSN + "-shm", cfg.DSN + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
		}
	}

	ctx := context.Background()
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)
	db, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN, sqlstore.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating database: %v\n", err)
		os.Exit(1)
	}
	c := &clock{now: time.Now()}
	manager := library.NewLibraryManager(db, library.WithClock(c.Now), library.WithLogger(logger))
	defer manager.Close()

	if err := seed(ctx, manager, c); err != nil {
		fmt.Fprintf(os.Stderr, "Error seeding: %v\n", err)
		os.Exit(1)
	}

	books, err := manager.ListBooks(ctx)
	if err != nil {
		fmt.Printf("Error retrieving books: %v\n", err)
		return
	}
	fmt.Println()
	if err := report.NewTextSink(os.Stdout).WriteTable(library.BooksTable("Seeded books", books)); err != nil {
		fmt.Printf("Error printing books: %v\n", err)
	}
}

func seed(ctx context.Context, mgr *library.LibraryManager, c *clock) error {
	authors := make(map[[2]string]int64)
	categories := make(map[string]int64)
	var bookIDs []int64

	for _, sb := range catalogue {
		nb := library.NewBook{Title: sb.title, InitialStock: sb.copies}
		id, ok := authors[sb.author]
		if !ok {
			a, err := mgr.AddAuthor(ctx, sb.author[0], sb.author[1])
			if err != nil {
				return err
			}
			id = a.ID
			authors[sb.author] = id
		}
		nb.AuthorID = &id

		if sb.category != "" {
			cid, ok := categories[sb.category]
			if !ok {
				cat, err := mgr.AddCategory(ctx, sb.category)
				if err != nil {
					return err
				}
				cid = cat.ID
				categories[sb.category] = cid
			}
			nb.CategoryID = &cid
		}

		b, err := mgr.AddBook(ctx, nb)
		if err != nil {
			return err
		}
		fmt.Printf("Added: %s by %s %s (ID: %d)\n", b.Title, sb.author[0], sb.author[1], b.ID)
		bookIDs = append(bookIDs, b.ID)
	}

	var memberIDs []int64
	for _, m := range members {
		member, err := mgr.AddMember(ctx, library.NewMember{Name: m[0], Surname: m[1], Email: m[2]})
		if err != nil {
			return err
		}
		memberIDs = append(memberIDs, member.ID)
	}

	// Lend each book its share of loans, spread over the last ninety days in date
	// order, and return all but the most recent loan of every book.
	today := c.now
	lent, returned := 0, 0
	for i, sb := range catalogue {
		var last *library.Loan
		for n := 0; n < sb.loans; n++ {
			c.now = today.AddDate(0, 0, seedOffset(i, n))
			loan, err := mgr.CreateLoan(ctx, bookIDs[i], memberIDs[(i+n)%len(memberIDs)])
			if err != nil {
				return fmt.Errorf("lend %q: %w", sb.title, err)
			}
			lent++
			if last != nil {
				c.now = c.now.AddDate(0, 0, 3)
				if err := mgr.ReturnLoan(ctx, last.ID); err != nil {
					return fmt.Errorf("return %q: %w", sb.title, err)
				}
				returned++
			}
			last = loan
		}
	}
	c.now = today

	fmt.Printf("\nSeed complete: %d books, %d members, %d loans (%d returned)\n",
		len(bookIDs), len(memberIDs), lent, returned)
	return nil
}

const loanSpacing = 8

// seedOffset is the day, relative to today, of a book's n-th loan. Offsets grow with n,
// so a returned loan is always closed on or after the day it was lent.
func seedOffset(book, n int) int { return -90 + book + n*loanSpacing }
