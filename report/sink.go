package report

import (
	"fmt"
	"io"

	"library-ledger/library"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// New returns the sink for a named output format.
func New(format string, w io.Writer) (library.Sink, error) {
	switch format {
	case FormatTable, "":
		return NewTextSink(w), nil
	case FormatJSON:
		return NewJSONSink(w), nil
	}
	return nil, fmt.Errorf("unknown output format %q (want %s or %s)", format, FormatTable, FormatJSON)
}
