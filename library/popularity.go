package library

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Tier boundaries of the ABC analysis, as cumulative percentages of all loans.
// Each bound is inclusive.
const (
	TierALimit = 70.0
	TierBLimit = 90.0
)

// Tier is a popularity class.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// TierFor classifies a cumulative share given in percent.
func TierFor(cumulative float64) Tier {
	switch {
	case cumulative <= TierALimit:
		return TierA
	case cumulative <= TierBLimit:
		return TierB
	}
	return TierC
}

// Popularity is one title's row in the ABC analysis.
type Popularity struct {
	Title      string  `json:"title"`
	LoanCount  int     `json:"loan_count"`
	Share      float64 `json:"share"`
	Cumulative float64 `json:"cumulative_share"`
	Tier       Tier    `json:"tier"`
}

// Classification is the ABC analysis of a loan history.
// NoData is set when there were no loans to classify.
type Classification struct {
	TotalLoans int           `json:"total_loans"`
	Rows       []*Popularity `json:"rows"`
	NoData     bool          `json:"no_data"`
}

// ClassifyABC groups loans by book title and ranks titles by loan count, most borrowed
// first. Titles with equal counts keep the order in which they first appear in loans,
// so callers pass the history in loan id order.
// Returned and open loans count alike.
func ClassifyABC(loans []*LoanDetail) *Classification {
	c := &Classification{TotalLoans: len(loans)}
	if len(loans) == 0 {
		c.NoData = true
		return c
	}

	index := make(map[string]*Popularity)
	for _, l := range loans {
		p, ok := index[l.BookTitle]
		if !ok {
			p = &Popularity{Title: l.BookTitle}
			index[l.BookTitle] = p
			c.Rows = append(c.Rows, p)
		}
		p.LoanCount++
	}
	sort.SliceStable(c.Rows, func(i, j int) bool { return c.Rows[i].LoanCount > c.Rows[j].LoanCount })

	running := 0
	total := float64(c.TotalLoans)
	for _, p := range c.Rows {
		running += p.LoanCount
		p.Share = float64(p.LoanCount) / total * 100
		p.Cumulative = float64(running) / total * 100
		p.Tier = TierFor(p.Cumulative)
	}
	return c
}

// Tiers returns the tier of every row, in rank order.
func (c *Classification) Tiers() []Tier {
	tiers := make([]Tier, len(c.Rows))
	for i, p := range c.Rows {
		tiers[i] = p.Tier
	}
	return tiers
}

// Table renders the classification for a Sink.
func (c *Classification) Table() Table {
	t := Table{
		Title:   "ABC analysis of loans by title",
		Columns: []string{"Title", "Loans", "Share %", "Cumulative %", "Tier"},
		NoData:  c.NoData,
	}
	for _, p := range c.Rows {
		t.Rows = append(t.Rows, []string{
			p.Title,
			strconv.Itoa(p.LoanCount),
			strconv.FormatFloat(p.Share, 'f', 1, 64),
			strconv.FormatFloat(p.Cumulative, 'f', 1, 64),
			string(p.Tier),
		})
	}
	if !c.NoData {
		t.Footer = []string{"Total", strconv.Itoa(c.TotalLoans), "", "", ""}
	}
	return t
}

var weekdays = [...]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// WeekdayDensity counts loans per day of the week of their loan date, Monday through
// Sunday, with zero bins for days nobody borrowed on.
func WeekdayDensity(loans []*LoanDetail) Histogram {
	var counts [7]int
	for _, l := range loans {
		// time.Weekday starts at Sunday; shift so Monday is bin 0.
		counts[(int(l.LoanDate.Weekday())+6)%7]++
	}
	h := Histogram{Title: "Loans by day of week", Bins: make([]Bin, len(weekdays))}
	for i, d := range weekdays {
		h.Bins[i] = Bin{Label: d.String(), Count: counts[i]}
	}
	return h
}

// Analysis bundles the ABC classification and weekday histogram of the loan history.
type Analysis struct {
	Classification *Classification `json:"classification"`
	Density        Histogram       `json:"density"`
}

// Analysis classifies the whole loan history, returned loans included.
func (lm *LibraryManager) Analysis(ctx context.Context) (*Analysis, error) {
	loans, err := lm.LoanHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load loan history: %w", err)
	}
	return &Analysis{Classification: ClassifyABC(loans), Density: WeekdayDensity(loans)}, nil
}
