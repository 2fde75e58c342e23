package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-ledger/library"
)

func sampleTable() library.Table {
	return library.Table{
		Title:   "Books",
		Columns: []string{"ID", "Title", "Stock"},
		Rows: [][]string{
			{"1", "Alice in Wonderland", "10"},
			{"2", "A Very Long Title That Will Not Fit In One Cell", "0"},
		},
		Footer: []string{"", "Total", "10"},
	}
}

func TestTextSinkTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextSinkWidth(&buf, 40).WriteTable(sampleTable()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "Books", lines[0])
	assert.Equal(t, strings.Repeat("-", 40), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "ID  Title"))
	assert.Contains(t, lines[4], "A Very Long Title That Will...")
	assert.Contains(t, lines[6], "Total")

	// columns line up
	assert.Equal(t, strings.Index(lines[2], "Stock"), strings.Index(lines[3], "10"))
}

func TestTextSinkNoData(t *testing.T) {
	var buf bytes.Buffer
	sink := NewTextSinkWidth(&buf, 20)
	require.NoError(t, sink.WriteTable(library.Table{Title: "Overdue", Columns: []string{"Loan"}, NoData: true}))
	assert.Equal(t, "Overdue\n"+strings.Repeat("-", 20)+"\nNo data.\n", buf.String())

	buf.Reset()
	require.NoError(t, sink.WriteHistogram(library.Histogram{Title: "Empty", Bins: []library.Bin{{Label: "Monday"}}}))
	assert.Contains(t, buf.String(), "No data.")
}

func TestTextSinkHistogramScalesToWidth(t *testing.T) {
	var buf bytes.Buffer
	h := library.Histogram{Title: "Loans", Bins: []library.Bin{
		{Label: "Monday", Count: 10},
		{Label: "Tuesday", Count: 5},
		{Label: "Sunday", Count: 0},
	}}
	require.NoError(t, NewTextSinkWidth(&buf, 30).WriteHistogram(h))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	for _, l := range lines[2:] {
		assert.LessOrEqual(t, len(l), 30)
	}
	// 30 - 7 (label) - 2 (count) - 3 spaces leaves 18 columns for the longest bar
	assert.Equal(t, 18, strings.Count(lines[2], "#"))
	assert.Equal(t, 9, strings.Count(lines[3], "#"))
	assert.Equal(t, 0, strings.Count(lines[4], "#"))
	assert.True(t, strings.HasPrefix(lines[4], "Sunday   0"))
}

func TestTextSinkDefaultsWidthOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, DefaultWidth, NewTextSink(&buf).width)
	assert.Equal(t, DefaultWidth, NewTextSinkWidth(&buf, 0).width)
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONSink(&buf)
	require.NoError(t, sink.WriteTable(library.Table{Title: "Empty", Columns: []string{"ID"}, NoData: true}))

	var doc struct {
		Kind string        `json:"kind"`
		Data library.Table `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "table", doc.Kind)
	assert.True(t, doc.Data.NoData)
	assert.NotNil(t, doc.Data.Rows)
	assert.Contains(t, buf.String(), `"rows": []`)

	buf.Reset()
	require.NoError(t, sink.WriteHistogram(library.Histogram{Title: "h", Bins: []library.Bin{{Label: "Monday", Count: 3}}}))
	assert.Contains(t, buf.String(), `"kind": "histogram"`)
	assert.Contains(t, buf.String(), `"count": 3`)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	s, err := New("json", &buf)
	require.NoError(t, err)
	assert.IsType(t, &JSONSink{}, s)

	s, err = New("", &buf)
	require.NoError(t, err)
	assert.IsType(t, &TextSink{}, s)

	_, err = New("xml", &buf)
	assert.Error(t, err)
}
