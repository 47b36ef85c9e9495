package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// CSVStore keeps each table as a UTF-8 CSV file under Dir. It is the
// lightweight alternative to XLSXStore for environments that post-process
// the datasets with shell tooling.
type CSVStore struct {
	Dir string
}

// NewCSVStore returns a store rooted at dir.
func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{Dir: dir}
}

// Path returns the file backing name.
func (s *CSVStore) Path(name string) string {
	return filepath.Join(s.Dir, filepath.FromSlash(name)+".csv")
}

func (s *CSVStore) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

func (s *CSVStore) Read(name string) (*Table, error) {
	path := s.Path(name)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, eris.Wrapf(ErrNotFound, "csv: %s", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open file %q", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "csv: read %q", path)
	}

	t := &Table{}
	for i, rec := range records {
		if i == 0 {
			t.Header = rec
			continue
		}
		t.Append(rec)
	}
	return t, nil
}

// Write replaces the file through a temporary sibling and a rename.
func (s *CSVStore) Write(name string, t *Table) error {
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "csv: create output dir")
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrapf(err, "csv: create file %q", tmp)
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return eris.Wrap(err, "csv: write header")
	}
	if err := w.WriteAll(t.Rows); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return eris.Wrap(err, "csv: write rows")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrap(err, "csv: close file")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "csv: replace %q", path)
	}
	return nil
}
