package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"library-ledger/library"
)

const menuHelp = `Available commands:
  Books:       add book, delete book, list books, low stock
  Catalogue:   add author, list authors, add category, list categories
  Members:     add member, delete member, list members
  Circulation: checkout, return, active loans, loan history
  Reports:     overdue, analysis, audit
  System:      help, exit`

// menu is one interactive session reading commands line by line.
type menu struct {
	a   *app
	mgr *library.LibraryManager
	sc  *bufio.Scanner
}

func (a *app) runMenu(ctx context.Context) error {
	mgr, err := a.manager(ctx)
	if err != nil {
		return err
	}
	m := &menu{a: a, mgr: mgr, sc: bufio.NewScanner(a.in)}

	fmt.Fprintln(a.out, "Welcome to the library ledger!")
	fmt.Fprintln(a.out, menuHelp)

	for {
		fmt.Fprint(a.out, "\n> ")
		if !m.sc.Scan() {
			return m.sc.Err()
		}
		cmd := strings.ToLower(strings.TrimSpace(m.sc.Text()))

		var err error
		switch cmd {
		case "":
			continue
		case "add book":
			err = m.addBook(ctx)
		case "delete book":
			err = m.deleteBook(ctx)
		case "list books":
			err = m.listBooks(ctx)
		case "low stock":
			err = m.lowStock(ctx)
		case "add author":
			err = m.addAuthor(ctx)
		case "list authors":
			err = m.listAuthors(ctx)
		case "add category":
			err = m.addCategory(ctx)
		case "list categories":
			err = m.listCategories(ctx)
		case "add member":
			err = m.addMember(ctx)
		case "delete member":
			err = m.deleteMember(ctx)
		case "list members":
			err = m.listMembers(ctx)
		case "checkout":
			err = m.checkout(ctx)
		case "return":
			err = m.returnLoan(ctx)
		case "active loans":
			err = m.activeLoans(ctx)
		case "loan history":
			err = m.loanHistory(ctx)
		case "overdue":
			err = m.overdue(ctx)
		case "analysis":
			err = m.analysis(ctx)
		case "audit":
			err = m.audit(ctx)
		case "help":
			fmt.Fprintln(a.out, menuHelp)
		case "exit", "quit":
			fmt.Fprintln(a.out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(a.out, "Unknown command. Type 'help' to see the available commands.")
		}
		if err != nil {
			fmt.Fprintf(a.out, "Error: %v\n", err)
		}
	}
}

// errInputClosed stops a prompt when stdin runs dry mid-command.
var errInputClosed = errors.New("input closed")

func (m *menu) prompt(label string) (string, error) {
	fmt.Fprint(m.a.out, label)
	if !m.sc.Scan() {
		return "", errInputClosed
	}
	return strings.TrimSpace(m.sc.Text()), nil
}

func (m *menu) promptID(kind string) (int64, error) {
	s, err := m.prompt(strings.ToUpper(kind[:1]) + kind[1:] + " ID: ")
	if err != nil {
		return 0, err
	}
	return parseID(kind, s)
}

// promptOptionalID returns nil when the answer is blank.
func (m *menu) promptOptionalID(kind string) (*int64, error) {
	s, err := m.prompt(strings.ToUpper(kind[:1]) + kind[1:] + " ID (optional): ")
	if err != nil || s == "" {
		return nil, err
	}
	id, err := parseID(kind, s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (m *menu) promptInt(label string, def int) (int, error) {
	s, err := m.prompt(fmt.Sprintf("%s [%d]: ", label, def))
	if err != nil || s == "" {
		return def, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", library.ErrInvalidArgument, s)
	}
	return n, nil
}

// ------------------ Book helpers ------------------

func (m *menu) addBook(ctx context.Context) error {
	title, err := m.prompt("Title: ")
	if err != nil {
		return err
	}
	authorID, err := m.promptOptionalID("author")
	if err != nil {
		return err
	}
	categoryID, err := m.promptOptionalID("category")
	if err != nil {
		return err
	}
	stock, err := m.promptInt("Copies", 1)
	if err != nil {
		return err
	}

	b, err := m.mgr.AddBook(ctx, library.NewBook{Title: title, AuthorID: authorID, CategoryID: categoryID, InitialStock: stock})
	if err != nil {
		return err
	}
	return m.a.done(b, "Added book ID %d '%s' with %d copies", b.ID, b.Title, b.StockCount)
}

func (m *menu) deleteBook(ctx context.Context) error {
	id, err := m.promptID("book")
	if err != nil {
		return err
	}
	removed, err := m.mgr.DeleteBook(ctx, id)
	if err != nil {
		return err
	}
	return m.a.done(map[string]any{"book_id": id, "removed_loans": removed}, "Deleted book ID %d and %d loan(s)", id, removed)
}

func (m *menu) listBooks(ctx context.Context) error {
	books, err := m.mgr.ListBooks(ctx)
	if err != nil {
		return err
	}
	return m.a.sink.WriteTable(library.BooksTable("Books", books))
}

func (m *menu) lowStock(ctx context.Context) error {
	threshold, err := m.promptInt("Threshold", m.a.cfg.LowStock)
	if err != nil {
		return err
	}
	books, err := m.mgr.LowStock(ctx, threshold)
	if err != nil {
		return err
	}
	return m.a.sink.WriteTable(library.BooksTable(fmt.Sprintf("Books with at most %d copies in stock", threshold), books))
}

// ------------------ Catalogue helpers ------------------

func (m *menu) addAuthor(ctx context.Context) error {
	name, err := m.prompt("Name: ")
	if err != nil {
		return err
	}
	surname, err := m.prompt("Surname: ")
	if err != nil {
		return err
	}
	au, err := m.mgr.AddAuthor(ctx, name, surname)
	if err != nil {
		return err
	}
	return m.a.done(au, "Added author ID %d %s", au.ID, au.FullName())
}

func (m *menu) listAuthors(ctx context.Context) error {
	authors, err := m.mgr.ListAuthors(ctx)
	if err != nil {
		return err
	}
	return m.a.sink.WriteTable(library.AuthorsTable(authors))
}

func (m *menu) addCategory(ctx context.Context) error {
	name, err := m.prompt("Name: ")
	if err != nil {
		return err
	}
	c, err := m.mgr.AddCategory(ctx, name)
	if err != nil {
		return err
	}
	return m.a.done(c, "Added category ID %d %s", c.ID, c.Name)
}

func (m *menu) listCategories(ctx context.Context) error {
	categories, err := m.mgr.ListCategories(ctx)
	if err != nil {
		return err
	}
	return m.a.sink.WriteTable(library.CategoriesTable(categories))
}

// ------------------ Member helpers ------------------

func (m *menu) addMember(ctx context.Context) error {
	name, err := m.prompt("Name: ")
	if err != nil {
		return err
	}
	surname, err := m.prompt("Surname: ")
	if err != nil {
		return err
	}
	email, err := m.prompt("Email: ")
	if err != nil {
		return err
	}
	member, err := m.mgr.AddMember(ctx, library.NewMember{Name: name, Surname: surname, Email: email})
	if err != nil {
		return err
	}
	return m.a.done(member, "Added member '%s' with ID %d", member.FullName(), member.ID)
}

func (m *menu) deleteMember(ctx context.Context) error {
	id, err := m.promptID("member")
	if err != nil {
		return err
	}
	removed, err := m.mgr.DeleteMember(ctx, id)
	if err != nil {
		return err
	}
	return m.a.done(map[string]any{"member_id": id, "removed_loans": removed}, "Deleted member ID %d and %d loan(s)", id, removed)
}

func (m *menu) listMembers(ctx context.Context) error {
	members, err := m.mgr.ListMembers(ctx)
	if err != nil {
		return err
	}
	return m.a.sink.WriteTable(library.MembersTable(members))
}

// ------------------ Circulation helpers ------------------

func (m *menu) checkout(ctx context.Context) error {
	bookID, err := m.promptID("book")
	if err != nil {
		return err
	}
	memberID, err := m.promptID("member")
	if err != nil {
		return err
	}
	loan, err := m.mgr.CreateLoan(ctx, bookID, memberID)
	if err != nil {
		return err
	}

	// Get member and book info for confirmation
	member, _ := m.mgr.GetMember(ctx, memberID)
	book, _ := m.mgr.GetBook(ctx, bookID)
	if member != nil && book != nil {
		return m.a.done(loan, "Book '%s' checked out to %s (loan ID %d)", book.Title, member.FullName(), loan.ID)
	}
	return m.a.done(loan, "Loan ID %d created", loan.ID)
}

func (m *menu) returnLoan(ctx context.Context) error {
	id, err := m.promptID("loan")
	if err != nil {
		return err
	}
	if err := m.mgr.ReturnLoan(ctx, id); err != nil {
		return err
	}
	return m.a.done(map[string]any{"loan_id": id, "returned": true}, "Loan ID %d returned", id)
}

func (m *menu) activeLoans(ctx context.Context) error {
	loans, err := m.mgr.ActiveLoans(ctx)
	if err != nil {
		return err
	}
	return m.a.sink.WriteTable(library.LoansTable("Active loans", loans))
}

func (m *menu) loanHistory(ctx context.Context) error {
	loans, err := m.mgr.LoanHistory(ctx)
	if err != nil {
		return err
	}
	return m.a.sink.WriteTable(library.LoansTable("Loan history", loans))
}

// ------------------ Report helpers ------------------

func (m *menu) overdue(ctx context.Context) error {
	policy := m.a.cfg.Fines
	var err error
	if policy.GraceDays, err = m.promptInt("Grace days", policy.GraceDays); err != nil {
		return err
	}
	rate, err := m.promptInt("Fine per day", int(policy.DailyRate))
	if err != nil {
		return err
	}
	policy.DailyRate = int64(rate)

	r, err := m.mgr.OverdueReport(ctx, policy)
	if err != nil {
		return err
	}
	return m.a.sink.WriteTable(r.Table())
}

func (m *menu) analysis(ctx context.Context) error {
	an, err := m.mgr.Analysis(ctx)
	if err != nil {
		return err
	}
	if err := m.a.sink.WriteTable(an.Classification.Table()); err != nil {
		return err
	}
	return m.a.sink.WriteHistogram(an.Density)
}

func (m *menu) audit(ctx context.Context) error {
	bad, err := m.mgr.Audit(ctx)
	if err != nil {
		return err
	}
	return m.a.sink.WriteTable(library.AuditTable(bad))
}
