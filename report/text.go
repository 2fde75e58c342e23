package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"golang.org/x/term"

	"library-ledger/library"
)

const (
	// DefaultWidth is used when the output is not a terminal.
	DefaultWidth = 80
	maxCell      = 30
	barRune      = "#"
)

// TextSink prints tables as aligned columns and histograms as horizontal bars.
type TextSink struct {
	w     io.Writer
	width int
}

// NewTextSink writes to w. When w is a terminal its width bounds the bar charts.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w, width: terminalWidth(w)}
}

// NewTextSinkWidth fixes the output width.
func NewTextSinkWidth(w io.Writer, width int) *TextSink {
	if width <= 0 {
		width = DefaultWidth
	}
	return &TextSink{w: w, width: width}
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return DefaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultWidth
	}
	return width
}

func (s *TextSink) rule() string {
	return strings.Repeat("-", s.width)
}

func (s *TextSink) WriteTable(t library.Table) error {
	if _, err := fmt.Fprintf(s.w, "%s\n%s\n", t.Title, s.rule()); err != nil {
		return err
	}
	if t.NoData {
		_, err := fmt.Fprintln(s.w, "No data.")
		return err
	}

	tw := tabwriter.NewWriter(s.w, 0, 0, 2, ' ', 0)
	writeRow(tw, t.Columns)
	for _, row := range t.Rows {
		writeRow(tw, row)
	}
	if len(t.Footer) > 0 {
		dashes := make([]string, len(t.Footer))
		for i, cell := range t.Footer {
			if cell != "" {
				dashes[i] = strings.Repeat("-", utf8.RuneCountInString(cell))
			}
		}
		writeRow(tw, dashes)
		writeRow(tw, t.Footer)
	}
	return tw.Flush()
}

func writeRow(w io.Writer, cells []string) {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = truncate(c, maxCell)
	}
	fmt.Fprintln(w, strings.Join(out, "\t"))
}

func (s *TextSink) WriteHistogram(h library.Histogram) error {
	if _, err := fmt.Fprintf(s.w, "%s\n%s\n", h.Title, s.rule()); err != nil {
		return err
	}
	if h.Total() == 0 {
		_, err := fmt.Fprintln(s.w, "No data.")
		return err
	}

	labelWidth, countWidth, peak := 0, 0, 0
	for _, b := range h.Bins {
		labelWidth = max(labelWidth, utf8.RuneCountInString(b.Label))
		countWidth = max(countWidth, len(fmt.Sprint(b.Count)))
		peak = max(peak, b.Count)
	}
	// label, count and two separating spaces come off the width
	room := max(s.width-labelWidth-countWidth-3, 1)

	for _, b := range h.Bins {
		bar := strings.Repeat(barRune, b.Count*room/peak)
		if _, err := fmt.Fprintf(s.w, "%-*s %*d %s\n", labelWidth, b.Label, countWidth, b.Count, bar); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, maxLength int) string {
	if utf8.RuneCountInString(s) <= maxLength {
		return s
	}
	r := []rune(s)
	return string(r[:maxLength-3]) + "..."
}
