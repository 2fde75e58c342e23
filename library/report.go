package library

// Sink renders analytics output. It consumes what the ledger produces and never
// feeds anything back; the medium (terminal table, JSON, chart) is its own concern.
type Sink interface {
	WriteTable(t Table) error
	WriteHistogram(h Histogram) error
}

// Table is an ordered set of rows under named columns.
// NoData is set whenever there are no rows to show, whether the ledger was empty or a
// filter matched nothing; sinks print a "No data." line in place of the grid.
type Table struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Footer  []string   `json:"footer,omitempty"`
	NoData  bool       `json:"no_data"`
}

// Bin is one bar of a histogram.
type Bin struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Histogram is an ordered sequence of bins.
type Histogram struct {
	Title string `json:"title"`
	Bins  []Bin  `json:"bins"`
}

// Total sums every bin.
func (h Histogram) Total() int {
	total := 0
	for _, b := range h.Bins {
		total += b.Count
	}
	return total
}
