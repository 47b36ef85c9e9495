package storage

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const sheetName = "Sheet1"

// XLSXStore keeps each table as a single-sheet .xlsx file under Dir.
// Numeric columns listed in IntColumns are written as number cells.
type XLSXStore struct {
	Dir        string
	IntColumns map[string]bool
}

// NewXLSXStore returns a store rooted at dir.
func NewXLSXStore(dir string) *XLSXStore {
	return &XLSXStore{
		Dir:        dir,
		IntColumns: map[string]bool{ColYear: true, ColMonth: true, ColDate: true},
	}
}

// Path returns the file backing name.
func (s *XLSXStore) Path(name string) string {
	return filepath.Join(s.Dir, filepath.FromSlash(name)+".xlsx")
}

func (s *XLSXStore) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

func (s *XLSXStore) Read(name string) (*Table, error) {
	path := s.Path(name)
	if !s.Exists(name) {
		return nil, eris.Wrapf(ErrNotFound, "xlsx: %s", path)
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open file %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	t := &Table{}
	for i, row := range sheet.Rows {
		cells := rowToStrings(row)
		if i == 0 {
			t.Header = cells
			continue
		}
		if isBlank(cells) {
			continue
		}
		t.Append(cells)
	}
	return t, nil
}

// Write saves t to a temporary file next to the target and renames it into
// place, so readers see either the old or the new table.
func (s *XLSXStore) Write(name string, t *Table) error {
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "xlsx: create output dir")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range t.Header {
		header.AddCell().SetString(h)
	}
	for _, r := range t.Rows {
		row := sheet.AddRow()
		for i, v := range r {
			cell := row.AddCell()
			if i < len(t.Header) && s.IntColumns[t.Header[i]] {
				if n, err := strconv.Atoi(v); err == nil {
					cell.SetInt(n)
					continue
				}
			}
			cell.SetString(v)
		}
	}

	tmp := path + ".tmp"
	if err := f.Save(tmp); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "xlsx: save %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "xlsx: replace %s", path)
	}
	return nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
