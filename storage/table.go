package storage

import (
	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a named table does not exist.
var ErrNotFound = eris.New("storage: table not found")

// Table is a header row plus data rows, every row padded to the header width.
type Table struct {
	Header []string
	Rows   [][]string
}

// NewTable returns an empty table with the given header.
func NewTable(header ...string) *Table {
	return &Table{Header: append([]string(nil), header...)}
}

// Column returns the index of name in the header, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// AddColumn appends a column filled with fill for every existing row.
func (t *Table) AddColumn(name, fill string) {
	t.Header = append(t.Header, name)
	for i, r := range t.Rows {
		row := t.normalize(r)
		row[len(row)-1] = fill
		t.Rows[i] = row
	}
}

// Append adds a row, padding or truncating it to the header width.
func (t *Table) Append(row []string) {
	t.Rows = append(t.Rows, t.normalize(row))
}

// Get returns the cell of row under column name, or "" when absent.
func (t *Table) Get(row []string, name string) string {
	i := t.Column(name)
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func (t *Table) normalize(row []string) []string {
	out := make([]string, len(t.Header))
	copy(out, row)
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := &Table{Header: append([]string(nil), t.Header...)}
	for _, r := range t.Rows {
		c.Rows = append(c.Rows, append([]string(nil), r...))
	}
	return c
}

// TableStore persists named tables. Write replaces the whole table and
// never leaves a partially written table behind.
type TableStore interface {
	Read(name string) (*Table, error)
	Write(name string, t *Table) error
	Exists(name string) bool
}
