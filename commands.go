package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"library-ledger/library"
)

// run adapts a ledger action into a cobra RunE, opening the ledger first.
func (a *app) run(fn func(ctx context.Context, mgr *library.LibraryManager, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr, err := a.manager(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, mgr, args)
	}
}

// ------------------ Books ------------------

func (a *app) bookCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "book", Short: "Manage the catalogue of books"}

	var (
		title      string
		authorID   int64
		categoryID int64
		stock      int
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a book",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, _ []string) error {
			nb := library.NewBook{Title: title, InitialStock: stock}
			if authorID != 0 {
				nb.AuthorID = &authorID
			}
			if categoryID != 0 {
				nb.CategoryID = &categoryID
			}
			b, err := mgr.AddBook(ctx, nb)
			if err != nil {
				return err
			}
			return a.done(b, "Added book ID %d '%s' with %d copies", b.ID, b.Title, b.StockCount)
		}),
	}
	add.Flags().StringVar(&title, "title", "", "book title")
	add.Flags().Int64Var(&authorID, "author", 0, "author ID")
	add.Flags().Int64Var(&categoryID, "category", 0, "category ID")
	add.Flags().IntVar(&stock, "stock", 1, "number of copies")
	_ = add.MarkFlagRequired("title")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a book and every loan of it",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			removed, err := mgr.DeleteBook(ctx, id)
			if err != nil {
				return err
			}
			return a.done(map[string]any{"book_id": id, "removed_loans": removed},
				"Deleted book ID %d and %d loan(s)", id, removed)
		}),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every book",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, _ []string) error {
			books, err := mgr.ListBooks(ctx)
			if err != nil {
				return err
			}
			return a.sink.WriteTable(library.BooksTable("Books", books))
		}),
	}

	cmd.AddCommand(add, del, list)
	return cmd
}

// ------------------ Authors and categories ------------------

func (a *app) authorCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "author", Short: "Manage authors"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add NAME SURNAME",
			Short: "Register an author",
			Args:  cobra.ExactArgs(2),
			RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, args []string) error {
				au, err := mgr.AddAuthor(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return a.done(au, "Added author ID %d %s", au.ID, au.FullName())
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List authors",
			Args:  cobra.NoArgs,
			RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, _ []string) error {
				authors, err := mgr.ListAuthors(ctx)
				if err != nil {
					return err
				}
				return a.sink.WriteTable(library.AuthorsTable(authors))
			}),
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Remove an author; their books are kept without one",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, args []string) error {
				id, err := parseID("author", args[0])
				if err != nil {
					return err
				}
				if err := mgr.DeleteAuthor(ctx, id); err != nil {
					return err
				}
				return a.done(map[string]any{"author_id": id}, "Deleted author ID %d", id)
			}),
		},
	)
	return cmd
}

func (a *app) categoryCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "category", Short: "Manage categories"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add NAME",
			Short: "Register a category",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, args []string) error {
				c, err := mgr.AddCategory(ctx, args[0])
				if err != nil {
					return err
				}
				return a.done(c, "Added category ID %d %s", c.ID, c.Name)
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List categories",
			Args:  cobra.NoArgs,
			RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, _ []string) error {
				categories, err := mgr.ListCategories(ctx)
				if err != nil {
					return err
				}
				return a.sink.WriteTable(library.CategoriesTable(categories))
			}),
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Remove a category; its books are kept uncategorised",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, args []string) error {
				id, err := parseID("category", args[0])
				if err != nil {
					return err
				}
				if err := mgr.DeleteCategory(ctx, id); err != nil {
					return err
				}
				return a.done(map[string]any{"category_id": id}, "Deleted category ID %d", id)
			}),
		},
	)
	return cmd
}

// ------------------ Members ------------------

func (a *app) memberCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "member", Short: "Manage members"}

	var name, surname, email string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a member",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, _ []string) error {
			m, err := mgr.AddMember(ctx, library.NewMember{Name: name, Surname: surname, Email: email})
			if err != nil {
				return err
			}
			return a.done(m, "Added member '%s' with ID %d", m.FullName(), m.ID)
		}),
	}
	add.Flags().StringVar(&name, "name", "", "first name")
	add.Flags().StringVar(&surname, "surname", "", "surname")
	add.Flags().StringVar(&email, "email", "", "email address, unique per member")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("email")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "list",
			Short: "List members",
			Args:  cobra.NoArgs,
			RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, _ []string) error {
				members, err := mgr.ListMembers(ctx)
				if err != nil {
					return err
				}
				return a.sink.WriteTable(library.MembersTable(members))
			}),
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Remove a member and their loans, restocking open ones",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, args []string) error {
				id, err := parseID("member", args[0])
				if err != nil {
					return err
				}
				removed, err := mgr.DeleteMember(ctx, id)
				if err != nil {
					return err
				}
				return a.done(map[string]any{"member_id": id, "removed_loans": removed},
					"Deleted member ID %d and %d loan(s)", id, removed)
			}),
		},
	)
	return cmd
}

// ------------------ Loans ------------------

func (a *app) loanCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "loan", Short: "Lend and return books"}

	var bookID, memberID int64
	create := &cobra.Command{
		Use:   "create",
		Short: "Lend a copy of a book to a member",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, _ []string) error {
			loan, err := mgr.CreateLoan(ctx, bookID, memberID)
			if err != nil {
				return err
			}
			return a.done(loan, "Loan ID %d: book %d lent to member %d on %s",
				loan.ID, loan.BookID, loan.MemberID, loan.LoanDate.Format(library.DateLayout))
		}),
	}
	create.Flags().Int64Var(&bookID, "book", 0, "book ID")
	create.Flags().Int64Var(&memberID, "member", 0, "member ID")
	_ = create.MarkFlagRequired("book")
	_ = create.MarkFlagRequired("member")

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List open loans, or every loan with --all",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, _ []string) error {
			if all {
				loans, err := mgr.LoanHistory(ctx)
				if err != nil {
					return err
				}
				return a.sink.WriteTable(library.LoansTable("Loan history", loans))
			}
			loans, err := mgr.ActiveLoans(ctx)
			if err != nil {
				return err
			}
			return a.sink.WriteTable(library.LoansTable("Active loans", loans))
		}),
	}
	list.Flags().BoolVar(&all, "all", false, "include returned loans")

	cmd.AddCommand(
		create,
		&cobra.Command{
			Use:   "return ID",
			Short: "Return a loan",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, args []string) error {
				id, err := parseID("loan", args[0])
				if err != nil {
					return err
				}
				if err := mgr.ReturnLoan(ctx, id); err != nil {
					return err
				}
				return a.done(map[string]any{"loan_id": id, "returned": true}, "Loan ID %d returned", id)
			}),
		},
		list,
	)
	return cmd
}

// ------------------ Reports ------------------

func (a *app) reportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Stock, overdue and popularity reports"}

	var threshold int
	var lowStock *cobra.Command
	lowStock = &cobra.Command{
		Use:   "low-stock",
		Short: "Books with few copies left on the shelf",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, _ []string) error {
			limit := a.cfg.LowStock
			if lowStock.Flags().Changed("threshold") {
				limit = threshold
			}
			books, err := mgr.LowStock(ctx, limit)
			if err != nil {
				return err
			}
			return a.sink.WriteTable(library.BooksTable(fmt.Sprintf("Books with at most %d copies in stock", limit), books))
		}),
	}
	lowStock.Flags().IntVar(&threshold, "threshold", 0, "list books with at most this many copies in stock (default from config)")

	var grace int
	var rate int64
	var overdue *cobra.Command
	overdue = &cobra.Command{
		Use:   "overdue",
		Short: "Open loans past the grace period, with fines",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, _ []string) error {
			policy := a.cfg.Fines
			if overdue.Flags().Changed("grace") {
				policy.GraceDays = grace
			}
			if overdue.Flags().Changed("rate") {
				policy.DailyRate = rate
			}
			r, err := mgr.OverdueReport(ctx, policy)
			if err != nil {
				return err
			}
			return a.sink.WriteTable(r.Table())
		}),
	}
	overdue.Flags().IntVar(&grace, "grace", 0, "grace period in days (default from config)")
	overdue.Flags().Int64Var(&rate, "rate", 0, "fine per overdue day (default from config)")

	analysis := &cobra.Command{
		Use:   "analysis",
		Short: "ABC popularity analysis and loans per weekday",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, _ []string) error {
			an, err := mgr.Analysis(ctx)
			if err != nil {
				return err
			}
			if err := a.sink.WriteTable(an.Classification.Table()); err != nil {
				return err
			}
			return a.sink.WriteHistogram(an.Density)
		}),
	}

	cmd.AddCommand(lowStock, overdue, analysis)
	return cmd
}

func (a *app) auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check every book's stock against its open loans",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, mgr *library.LibraryManager, _ []string) error {
			bad, err := mgr.Audit(ctx)
			if err != nil {
				return err
			}
			if err := a.sink.WriteTable(library.AuditTable(bad)); err != nil {
				return err
			}
			if len(bad) > 0 {
				return fmt.Errorf("%d book(s) out of balance", len(bad))
			}
			return nil
		}),
	}
}

func (a *app) menuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMenu(cmd.Context())
		},
	}
}
