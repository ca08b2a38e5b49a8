// Package table implements the in-memory column table the merge pipeline
// operates on, plus load/save of gzip-compressed CSV batch files.
//
// Cells are stored as strings, matching their CSV representation; numeric
// interpretation happens at the point of use.
package table

import (
	"fmt"
	"strconv"
)

// Table is an ordered set of named columns of equal length.
type Table struct {
	cols []string
	data map[string][]string
	rows int
}

// New creates an empty table with the given column order.
func New(cols ...string) *Table {
	t := &Table{
		cols: append([]string(nil), cols...),
		data: make(map[string][]string, len(cols)),
	}
	for _, c := range cols {
		t.data[c] = nil
	}
	return t
}

// Columns returns the column names in order. The slice is a copy.
func (t *Table) Columns() []string {
	return append([]string(nil), t.cols...)
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.data[name]
	return ok
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return t.rows
}

// AppendRow appends one row of values in column order.
func (t *Table) AppendRow(values []string) error {
	if len(values) != len(t.cols) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.cols))
	}
	for i, c := range t.cols {
		t.data[c] = append(t.data[c], values[i])
	}
	t.rows++
	return nil
}

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []string {
	vals := make([]string, len(t.cols))
	for j, c := range t.cols {
		vals[j] = t.data[c][i]
	}
	return vals
}

// Cell returns the value at the given column and row.
func (t *Table) Cell(col string, row int) string {
	return t.data[col][row]
}

// IntCell parses the value at the given column and row as an integer.
func (t *Table) IntCell(col string, row int) (int, error) {
	v, err := strconv.Atoi(t.data[col][row])
	if err != nil {
		return 0, fmt.Errorf("column %s row %d: %w", col, row, err)
	}
	return v, nil
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]string, error) {
	vals, ok := t.data[name]
	if !ok {
		return nil, fmt.Errorf("no such column: %s", name)
	}
	return vals, nil
}

// SetColumn replaces the values of an existing column.
func (t *Table) SetColumn(name string, values []string) error {
	if _, ok := t.data[name]; !ok {
		return fmt.Errorf("no such column: %s", name)
	}
	if len(values) != t.rows {
		return fmt.Errorf("column %s: %d values for %d rows", name, len(values), t.rows)
	}
	t.data[name] = values
	return nil
}

// InsertColumnFront adds a new column at position 0.
func (t *Table) InsertColumnFront(name string, values []string) error {
	if _, ok := t.data[name]; ok {
		return fmt.Errorf("column already exists: %s", name)
	}
	if len(values) != t.rows {
		return fmt.Errorf("column %s: %d values for %d rows", name, len(values), t.rows)
	}
	t.cols = append([]string{name}, t.cols...)
	t.data[name] = values
	return nil
}

// RenameColumns renames columns per the old→new mapping, preserving column
// order. Names absent from the table are ignored.
func (t *Table) RenameColumns(mapping map[string]string) {
	for i, c := range t.cols {
		newName, ok := mapping[c]
		if !ok {
			continue
		}
		t.cols[i] = newName
		t.data[newName] = t.data[c]
		delete(t.data, c)
	}
}

// DropColumns removes the named columns. Names absent from the table are
// ignored.
func (t *Table) DropColumns(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := t.cols[:0]
	for _, c := range t.cols {
		if drop[c] {
			delete(t.data, c)
			continue
		}
		kept = append(kept, c)
	}
	t.cols = kept
}

// FilterRows returns a new table containing the rows for which keep returns
// true, in their original order.
func (t *Table) FilterRows(keep func(row int) bool) *Table {
	out := New(t.cols...)
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			out.AppendRow(t.Row(i))
		}
	}
	return out
}

// Append concatenates the rows of other onto t. The tables must have
// identical column names in identical order.
func (t *Table) Append(other *Table) error {
	if len(t.cols) != len(other.cols) {
		return fmt.Errorf("cannot append: %d columns vs %d", len(other.cols), len(t.cols))
	}
	for i, c := range t.cols {
		if other.cols[i] != c {
			return fmt.Errorf("cannot append: column %d is %s, want %s", i, other.cols[i], c)
		}
	}
	for _, c := range t.cols {
		t.data[c] = append(t.data[c], other.data[c]...)
	}
	t.rows += other.rows
	return nil
}

// CoerceIntColumns rewrites the named columns as truncated integers. Values
// are parsed as floats, so "12.7" becomes "12".
func (t *Table) CoerceIntColumns(names ...string) error {
	for _, name := range names {
		vals, ok := t.data[name]
		if !ok {
			return fmt.Errorf("no such column: %s", name)
		}
		out := make([]string, len(vals))
		for i, v := range vals {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("column %s row %d: %w", name, i, err)
			}
			out[i] = strconv.Itoa(int(f))
		}
		t.data[name] = out
	}
	return nil
}
