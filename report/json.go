package report

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"library-ledger/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONSink writes each table or histogram as one indented JSON document.
type JSONSink struct {
	enc *jsoniter.Encoder
}

func NewJSONSink(w io.Writer) *JSONSink {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return &JSONSink{enc: enc}
}

type document struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

func (s *JSONSink) WriteTable(t library.Table) error {
	if t.Rows == nil {
		t.Rows = [][]string{}
	}
	return s.enc.Encode(document{Kind: "table", Data: t})
}

func (s *JSONSink) WriteHistogram(h library.Histogram) error {
	return s.enc.Encode(document{Kind: "histogram", Data: h})
}

// Encode writes any value, such as a full report, as a JSON document.
func (s *JSONSink) Encode(kind string, v any) error {
	return s.enc.Encode(document{Kind: kind, Data: v})
}
