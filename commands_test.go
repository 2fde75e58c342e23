package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-ledger/library"
)

// ledger runs one command against dbPath and returns stdout and stderr.
func ledger(t *testing.T, dbPath, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := &app{
		in:       strings.NewReader(stdin),
		out:      &out,
		errOut:   &errOut,
		envFiles: []string{filepath.Join(t.TempDir(), "none.env")},
	}
	root := a.rootCmd()
	root.SetArgs(append([]string{"--db", dbPath}, args...))
	err := root.Execute()
	require.NoError(t, a.close())
	return out.String(), errOut.String(), err
}

func mustLedger(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	out, errOut, err := ledger(t, dbPath, "", args...)
	require.NoError(t, err, errOut)
	return out
}

func TestCirculationCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "library.db")

	assert.Contains(t, mustLedger(t, db, "author", "add", "Lewis", "Carroll"), "Added author ID 1 Lewis Carroll")
	assert.Contains(t, mustLedger(t, db, "category", "add", "Fantasy"), "Added category ID 1 Fantasy")
	assert.Contains(t, mustLedger(t, db, "book", "add", "--title", "Alice in Wonderland", "--author", "1", "--category", "1", "--stock", "1"),
		"Added book ID 1")
	assert.Contains(t, mustLedger(t, db, "member", "add", "--name", "Ada", "--surname", "Lovelace", "--email", "ada@example.com"),
		"Added member 'Ada Lovelace' with ID 1")

	assert.Contains(t, mustLedger(t, db, "loan", "create", "--book", "1", "--member", "1"), "Loan ID 1")

	_, errOut, err := ledger(t, db, "", "loan", "create", "--book", "1", "--member", "1")
	assert.ErrorIs(t, err, library.ErrOutOfStock)
	assert.Contains(t, errOut, "out of stock")

	books := mustLedger(t, db, "book", "list")
	assert.Contains(t, books, "Alice in Wonderland")
	assert.Contains(t, books, "Lewis Carroll")
	assert.Contains(t, books, "Fantasy")

	assert.Contains(t, mustLedger(t, db, "loan", "list"), "Ada Lovelace")
	assert.Contains(t, mustLedger(t, db, "loan", "return", "1"), "Loan ID 1 returned")

	_, _, err = ledger(t, db, "", "loan", "return", "1")
	assert.ErrorIs(t, err, library.ErrAlreadyReturned)

	assert.Contains(t, mustLedger(t, db, "loan", "list"), "No data.")
	assert.Contains(t, mustLedger(t, db, "loan", "list", "--all"), "Alice in Wonderland")
	assert.Contains(t, mustLedger(t, db, "audit"), "No data.")
}

func TestMemberDuplicateEmailCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "library.db")
	mustLedger(t, db, "member", "add", "--name", "Ada", "--email", "ada@example.com")

	_, _, err := ledger(t, db, "", "member", "add", "--name", "Other", "--email", "ADA@example.com")
	assert.ErrorIs(t, err, library.ErrDuplicateEmail)

	members := mustLedger(t, db, "member", "list")
	assert.Equal(t, 1, strings.Count(members, "ada@example.com"))
}

func TestInvalidIDArgument(t *testing.T) {
	db := filepath.Join(t.TempDir(), "library.db")
	_, _, err := ledger(t, db, "", "book", "delete", "abc")
	assert.ErrorIs(t, err, library.ErrInvalidArgument)

	_, _, err = ledger(t, db, "", "book", "delete", "7")
	assert.ErrorIs(t, err, library.ErrNotFound)
}

func TestReportCommandsOnEmptyLedger(t *testing.T) {
	db := filepath.Join(t.TempDir(), "library.db")

	assert.Contains(t, mustLedger(t, db, "report", "overdue"), "No data.")
	out := mustLedger(t, db, "report", "analysis")
	assert.Contains(t, out, "ABC analysis")
	assert.Contains(t, out, "Loans by day of week")

	_, _, err := ledger(t, db, "", "report", "overdue", "--grace=-1")
	assert.ErrorIs(t, err, library.ErrInvalidArgument)
}

func TestLowStockThreshold(t *testing.T) {
	db := filepath.Join(t.TempDir(), "library.db")
	mustLedger(t, db, "book", "add", "--title", "Plenty", "--stock", "9")
	mustLedger(t, db, "book", "add", "--title", "Scarce", "--stock", "2")

	out := mustLedger(t, db, "report", "low-stock")
	assert.Contains(t, out, "Scarce")
	assert.NotContains(t, out, "Plenty")

	out = mustLedger(t, db, "report", "low-stock", "--threshold", "10")
	assert.Contains(t, out, "Plenty")
}

func TestJSONFormat(t *testing.T) {
	db := filepath.Join(t.TempDir(), "library.db")
	out := mustLedger(t, db, "--format", "json", "book", "add", "--title", "Dune", "--stock", "3")

	var doc struct {
		Kind string       `json:"kind"`
		Data library.Book `json:"data"`
	}
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "result", doc.Kind)
	assert.Equal(t, "Dune", doc.Data.Title)
	assert.Equal(t, 3, doc.Data.StockCount)

	out = mustLedger(t, db, "--format", "json", "book", "list")
	assert.Contains(t, out, `"kind": "table"`)
	assert.Contains(t, out, "Dune")

	_, _, err := ledger(t, db, "", "--format", "xml", "book", "list")
	assert.Error(t, err)
}

func TestHelpDoesNotOpenDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "never", "library.db")
	out := mustLedger(t, db)
	assert.Contains(t, out, "Track books, members and loans")
	assert.NoFileExists(t, db)
}

func TestMenuSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "library.db")
	script := strings.Join([]string{
		"add book", "Frankenstein", "", "", "1",
		"add member", "Mary", "Shelley", "mary@example.com",
		"checkout", "1", "1",
		"checkout", "1", "1",
		"active loans",
		"return", "1",
		"audit",
		"bogus",
		"exit",
	}, "\n") + "\n"

	out, _, err := ledger(t, db, script, "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "Added book ID 1 'Frankenstein' with 1 copies")
	assert.Contains(t, out, "Added member 'Mary Shelley' with ID 1")
	assert.Contains(t, out, "Book 'Frankenstein' checked out to Mary Shelley (loan ID 1)")
	assert.Contains(t, out, "Error: book 1: library: out of stock")
	assert.Contains(t, out, "Loan ID 1 returned")
	assert.Contains(t, out, "Unknown command.")
	assert.Contains(t, out, "Goodbye!")
}

func TestMenuJSONConfirmations(t *testing.T) {
	db := filepath.Join(t.TempDir(), "library.db")
	script := strings.Join([]string{
		"add book", "Frankenstein", "", "", "1",
		"add member", "Mary", "Shelley", "mary@example.com",
		"checkout", "1", "1",
		"return", "1",
		"exit",
	}, "\n") + "\n"

	out, _, err := ledger(t, db, script, "--format", "json", "menu")
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, `"kind": "result"`))
	assert.Contains(t, out, `"title": "Frankenstein"`)
	assert.Contains(t, out, `"email": "mary@example.com"`)
	assert.Contains(t, out, `"returned": true`)
	assert.NotContains(t, out, "Added book ID")
	assert.NotContains(t, out, "checked out to")
	assert.NotContains(t, out, "Loan ID 1 returned")
}

func TestMemoryDriver(t *testing.T) {
	db := filepath.Join(t.TempDir(), "library.db")
	script := strings.Join([]string{
		"add book", "Dracula", "", "", "2",
		"add member", "Bram", "Stoker", "bram@example.com",
		"checkout", "1", "1",
		"active loans",
		"exit",
	}, "\n") + "\n"

	out, _, err := ledger(t, db, script, "--driver", "memory", "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "Book 'Dracula' checked out to Bram Stoker (loan ID 1)")
	assert.NoFileExists(t, db)

	// nothing carries over to the next command
	assert.Contains(t, mustLedger(t, db, "--driver", "memory", "book", "list"), "No data.")
	assert.NoFileExists(t, db)
}

func TestMenuStopsAtEndOfInput(t *testing.T) {
	db := filepath.Join(t.TempDir(), "library.db")
	out, _, err := ledger(t, db, "add author\nOnly\n", "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "Error: input closed")
}
