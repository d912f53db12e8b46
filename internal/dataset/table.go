// Package dataset provides a CSV-backed tabular dataset for binding real
// files to the bus. The first record is the header; every subsequent record
// is one row.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Table is an in-memory tabular dataset. It satisfies the bus.Dataset
// interface (NumRows, Column).
type Table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// Load reads a CSV file from disk into a Table.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return t, nil
}

// Read parses CSV data into a Table. The input must have a header record.
func Read(r io.Reader) (*Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset has no header record")
	}

	header := records[0]
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column name: %q", name)
		}
		index[name] = i
	}

	return &Table{
		header: header,
		index:  index,
		rows:   records[1:],
	}, nil
}

// NumRows returns the number of data rows (excluding the header).
func (t *Table) NumRows() int {
	return len(t.rows)
}

// Columns returns the column names in file order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.header))
	copy(out, t.header)
	return out
}

// Column returns the values of the named column, one per row.
func (t *Table) Column(name string) ([]string, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("no such column: %q", name)
	}
	out := make([]string, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, nil
}
