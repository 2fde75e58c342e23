package library

import "strconv"

func fmtID(v int64) string { return strconv.FormatInt(v, 10) }

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// BooksTable lists books with author and category names.
func BooksTable(title string, books []*BookDetail) Table {
	t := Table{
		Title:   title,
		Columns: []string{"ID", "Title", "Author", "Category", "Stock", "Copies"},
		NoData:  len(books) == 0,
	}
	for _, b := range books {
		t.Rows = append(t.Rows, []string{
			fmtID(b.ID), b.Title, orUnknown(b.AuthorName), orUnknown(b.CategoryName),
			strconv.Itoa(b.StockCount), strconv.Itoa(b.InitialStock),
		})
	}
	return t
}

// LoansTable lists loans with their borrower.
func LoansTable(title string, loans []*LoanDetail) Table {
	t := Table{
		Title:   title,
		Columns: []string{"Loan", "Book", "Title", "Member", "Email", "Loan date", "Returned"},
		NoData:  len(loans) == 0,
	}
	for _, l := range loans {
		returned := "-"
		if l.ReturnDate != nil {
			returned = l.ReturnDate.Format(DateLayout)
		}
		t.Rows = append(t.Rows, []string{
			fmtID(l.ID), fmtID(l.BookID), l.BookTitle, l.Borrower(), l.MemberEmail,
			l.LoanDate.Format(DateLayout), returned,
		})
	}
	return t
}

func MembersTable(members []*Member) Table {
	t := Table{Title: "Members", Columns: []string{"ID", "Name", "Surname", "Email"}, NoData: len(members) == 0}
	for _, m := range members {
		t.Rows = append(t.Rows, []string{fmtID(m.ID), m.Name, m.Surname, m.Email})
	}
	return t
}

func AuthorsTable(authors []*Author) Table {
	t := Table{Title: "Authors", Columns: []string{"ID", "Name", "Surname"}, NoData: len(authors) == 0}
	for _, a := range authors {
		t.Rows = append(t.Rows, []string{fmtID(a.ID), a.Name, a.Surname})
	}
	return t
}

func CategoriesTable(categories []*Category) Table {
	t := Table{Title: "Categories", Columns: []string{"ID", "Name"}, NoData: len(categories) == 0}
	for _, c := range categories {
		t.Rows = append(t.Rows, []string{fmtID(c.ID), c.Name})
	}
	return t
}
