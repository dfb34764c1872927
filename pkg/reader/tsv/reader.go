// Package tsv reads tab separated tables with a header row and gives access to fields by
// column name.
package tsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Reader streams the data rows of a tab separated table
type Reader struct {
	csv     *csv.Reader
	columns map[string]int
	header  []string
	row     []string
	line    int
	rows    int
	err     error
}

// NewReader reads the header row and checks that every required column is present.
func NewReader(r io.Reader, required ...string) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty table: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := &Reader{csv: cr, columns: make(map[string]int, len(header)), header: header, line: 1}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		header[i] = name
		if _, dup := t.columns[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		t.columns[name] = i
	}
	var missing []string
	for _, name := range required {
		if !t.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return t, nil
}

// Header returns the column names in file order
func (t *Reader) Header() []string {
	return t.header
}

// Has reports whether the table has the named column
func (t *Reader) Has(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Next advances to the next non-blank row. Returns false at the end or on error.
func (t *Reader) Next() bool {
	for {
		row, err := t.csv.Read()
		if err == io.EOF {
			return false
		}
		if err != nil {
			t.err = err
			return false
		}
		t.line, _ = t.csv.FieldPos(0)
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		t.row = row
		t.rows++
		return true
	}
}

// Field returns the trimmed value of the named column in the current row. Missing
// columns and short rows yield "".
func (t *Reader) Field(name string) string {
	i, ok := t.columns[name]
	if !ok || i >= len(t.row) {
		return ""
	}
	return strings.TrimSpace(t.row[i])
}

// Line returns the 1-based line number of the current row
func (t *Reader) Line() int {
	return t.line
}

// Row returns the 1-based data row number of the current row
func (t *Reader) Row() int {
	return t.rows
}

// Err returns any error encountered during reading
func (t *Reader) Err() error {
	return t.err
}
