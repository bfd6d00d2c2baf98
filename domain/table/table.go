package table

import (
	"fmt"
	"sort"
	"strings"

	"flowdash/internal/errors"
)

// Table is an ordered set of named columns of equal length. Cells are kept
// as the text the loader produced; numeric coercion happens where a column
// is used as a magnitude.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// New builds a table, padding or truncating every row to the header width
func New(headers []string, rows [][]string) *Table {
	width := len(headers)
	normalized := make([][]string, len(rows))
	for i, row := range rows {
		r := make([]string, width)
		copy(r, row)
		normalized[i] = r
	}
	h := make([]string, width)
	copy(h, headers)
	return &Table{Headers: h, Rows: normalized}
}

// RowCount returns the number of data rows
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ColumnCount returns the number of columns
func (t *Table) ColumnCount() int {
	return len(t.Headers)
}

// ColumnIndex returns the position of a header, or -1
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether name is a header
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column returns a copy of the named column's cells
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, errors.MissingColumn(name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Filter returns the rows whose column equals value. The returned table
// shares row slices with t; tables are treated as immutable.
func (t *Table) Filter(column, value string) (*Table, error) {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return nil, errors.MissingColumn(column)
	}
	rows := make([][]string, 0)
	for _, row := range t.Rows {
		if row[idx] == value {
			rows = append(rows, row)
		}
	}
	return &Table{Headers: t.Headers, Rows: rows}, nil
}

// UniqueValues returns the sorted distinct non-empty values of a column
func (t *Table) UniqueValues(column string) ([]string, error) {
	values, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(values))
	unique := make([]string, 0)
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		unique = append(unique, v)
	}
	sort.Strings(unique)
	return unique, nil
}

// Head returns at most n rows for previews
func (t *Table) Head(n int) *Table {
	if n < 0 || n >= len(t.Rows) {
		return t
	}
	return &Table{Headers: t.Headers, Rows: t.Rows[:n]}
}

// NormalizeHeaders turns every label into trimmed text. Blank labels become
// "Unnamed: <i>" and repeated labels get a ".<n>" suffix so every column
// stays addressable by name.
func (t *Table) NormalizeHeaders() {
	seen := make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		label := strings.TrimSpace(h)
		if label == "" {
			label = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[label]; dup {
			seen[label] = n + 1
			label = fmt.Sprintf("%s.%d", label, n)
		} else {
			seen[label] = 1
		}
		t.Headers[i] = label
	}
}
