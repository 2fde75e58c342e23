package library

import "time"

// Author writes books. Deleting an author leaves their books in place with no author.
type Author struct {
	ID      int64  `json:"id" db:"id"`
	Name    string `json:"name" db:"name" validate:"required"`
	Surname string `json:"surname" db:"surname" validate:"required"`
}

// FullName joins name and surname.
func (a *Author) FullName() string { return joinName(a.Name, a.Surname) }

// Category groups books. Deleting a category leaves its books uncategorised.
type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name" validate:"required"`
}

// Member represents a registered library member. Email is unique across members.
type Member struct {
	ID      int64  `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Surname string `json:"surname" db:"surname"`
	Email   string `json:"email" db:"email"`
}

// FullName joins name and surname.
func (m *Member) FullName() string { return joinName(m.Name, m.Surname) }

// Book is a title held in one or more physical copies.
// StockCount is the number of copies on the shelf; InitialStock is the number the
// book was registered with, so StockCount = InitialStock - open loans.
type Book struct {
	ID           int64  `json:"id" db:"id"`
	Title        string `json:"title" db:"title"`
	AuthorID     *int64 `json:"author_id,omitempty" db:"author_id"`
	CategoryID   *int64 `json:"category_id,omitempty" db:"category_id"`
	StockCount   int    `json:"stock_count" db:"stock_count"`
	InitialStock int    `json:"initial_stock" db:"initial_stock"`
}

// BookDetail is a book joined with the display names of its author and category.
// Empty names mean the reference is unset.
type BookDetail struct {
	Book
	AuthorName   string `json:"author_name" db:"author_name"`
	CategoryName string `json:"category_name" db:"category_name"`
}

// Loan is one copy of a book lent to a member. LoanDate never changes after creation;
// ReturnDate is set exactly when IsReturned is.
type Loan struct {
	ID         int64      `json:"id" db:"id"`
	BookID     int64      `json:"book_id" db:"book_id"`
	MemberID   int64      `json:"member_id" db:"member_id"`
	LoanDate   time.Time  `json:"loan_date" db:"loan_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
	IsReturned bool       `json:"is_returned" db:"is_returned"`
}

// LoanDetail is a loan joined with its book title and borrower.
type LoanDetail struct {
	Loan
	BookTitle     string `json:"book_title" db:"book_title"`
	MemberName    string `json:"member_name" db:"member_name"`
	MemberSurname string `json:"member_surname" db:"member_surname"`
	MemberEmail   string `json:"member_email" db:"member_email"`
}

// Borrower returns the member's full name.
func (d *LoanDetail) Borrower() string { return joinName(d.MemberName, d.MemberSurname) }

// NewBook carries the arguments of AddBook. AuthorID and CategoryID are optional.
type NewBook struct {
	Title        string `validate:"required"`
	AuthorID     *int64
	CategoryID   *int64
	InitialStock int `validate:"min=0"`
}

// NewMember carries the arguments of AddMember. Surname may be empty.
type NewMember struct {
	Name    string `validate:"required"`
	Surname string
	Email   string `validate:"required,email"`
}

// LoanStatus selects loans by return state in a LoanFilter.
type LoanStatus int

const (
	LoansAny LoanStatus = iota
	LoansOpen
	LoansReturned
)

// BookFilter narrows ListBooks. Nil fields do not filter.
type BookFilter struct {
	MaxStock   *int
	AuthorID   *int64
	CategoryID *int64
}

// LoanFilter narrows ListLoans. Results are ordered by loan id.
type LoanFilter struct {
	Status   LoanStatus
	BookID   *int64
	MemberID *int64
}

func joinName(name, surname string) string {
	switch {
	case name == "":
		return surname
	case surname == "":
		return name
	}
	return name + " " + surname
}
