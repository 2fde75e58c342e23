package library

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"
)

const (
	DefaultGraceDays = 15
	DefaultDailyRate = 5
)

// FinePolicy sets how long a loan may stay out before fines accrue and what each day
// beyond that costs. Amounts are whole currency units.
type FinePolicy struct {
	GraceDays int   `json:"grace_days"`
	DailyRate int64 `json:"daily_rate"`
}

// DefaultFinePolicy is fifteen days of grace, then five per day.
func DefaultFinePolicy() FinePolicy {
	return FinePolicy{GraceDays: DefaultGraceDays, DailyRate: DefaultDailyRate}
}

// Validate rejects negative grace periods and rates.
func (p FinePolicy) Validate() error {
	if p.GraceDays < 0 {
		return fmt.Errorf("%w: grace days %d is negative", ErrInvalidArgument, p.GraceDays)
	}
	if p.DailyRate < 0 {
		return fmt.Errorf("%w: daily rate %d is negative", ErrInvalidArgument, p.DailyRate)
	}
	return nil
}

// Fine is the lateness of one loan.
type Fine struct {
	OverdueDays int   `json:"overdue_days"`
	Amount      int64 `json:"amount"`
}

// ComputeFine charges the days a loan dated loanDate has been out beyond the grace
// period, as of now. Loans inside the grace period, or dated after now, owe nothing.
func ComputeFine(loanDate time.Time, p FinePolicy, now time.Time) Fine {
	days := DaysBetween(loanDate, now) - p.GraceDays
	if days <= 0 {
		return Fine{}
	}
	return Fine{OverdueDays: days, Amount: int64(days) * p.DailyRate}
}

// OverdueLoan is an open loan past its grace period.
type OverdueLoan struct {
	LoanDetail
	Fine
}

// FineReport lists overdue open loans, most overdue first, with the grand total owed.
type FineReport struct {
	Policy FinePolicy     `json:"policy"`
	AsOf   time.Time      `json:"as_of"`
	Loans  []*OverdueLoan `json:"loans"`
	Total  int64          `json:"total"`
	NoData bool           `json:"no_data"`
}

// BuildFineReport computes fines for open loans as of now. Returned loans are ignored,
// and so are open loans still within the grace period.
func BuildFineReport(loans []*LoanDetail, p FinePolicy, now time.Time) (*FineReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r := &FineReport{Policy: p, AsOf: Date(now)}
	for _, l := range loans {
		if l.IsReturned {
			continue
		}
		f := ComputeFine(l.LoanDate, p, now)
		if f.OverdueDays == 0 {
			continue
		}
		r.Loans = append(r.Loans, &OverdueLoan{LoanDetail: *l, Fine: f})
		r.Total += f.Amount
	}
	sortOverdue(r.Loans)
	r.NoData = len(r.Loans) == 0
	return r, nil
}

// sortOverdue keeps loan id order among equally late loans.
func sortOverdue(loans []*OverdueLoan) {
	sort.SliceStable(loans, func(i, j int) bool { return loans[i].OverdueDays > loans[j].OverdueDays })
}

// Table renders the report for a Sink.
func (r *FineReport) Table() Table {
	t := Table{
		Title:   fmt.Sprintf("Overdue loans as of %s (grace %d days, %d per day)", r.AsOf.Format(DateLayout), r.Policy.GraceDays, r.Policy.DailyRate),
		Columns: []string{"Loan", "Title", "Member", "Email", "Loan date", "Days overdue", "Fine"},
		NoData:  r.NoData,
	}
	for _, l := range r.Loans {
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(l.ID, 10),
			l.BookTitle,
			l.Borrower(),
			l.MemberEmail,
			l.LoanDate.Format(DateLayout),
			strconv.Itoa(l.OverdueDays),
			strconv.FormatInt(l.Amount, 10),
		})
	}
	if !r.NoData {
		t.Footer = []string{"", "", "", "", "", "Total", strconv.FormatInt(r.Total, 10)}
	}
	return t
}

// OverdueReport computes fines over every open loan as of today.
func (lm *LibraryManager) OverdueReport(ctx context.Context, p FinePolicy) (*FineReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	loans, err := lm.ActiveLoans(ctx)
	if err != nil {
		return nil, err
	}
	return BuildFineReport(loans, p, lm.now())
}
