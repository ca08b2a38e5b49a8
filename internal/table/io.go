package table

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/cellmerge/internal/fsutil"
)

// Load reads a gzip-compressed CSV batch file into a Table. The first column
// is a written-out row index and is dropped; positions are renumbered on the
// next Save.
func Load(fsys fsutil.FileSystem, path string) (*Table, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open gzip %s: %w", path, err)
	}
	defer gz.Close()

	r := csv.NewReader(gz)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("read header %s: expected index column plus data columns, got %d columns", path, len(header))
	}

	t := New(header[1:]...)
	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := t.AppendRow(record[1:]); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return t, nil
}

// Save writes a Table as a gzip-compressed CSV file with a fresh 0..n-1 row
// index in the first column.
func Save(fsys fsutil.FileSystem, t *Table, path string) error {
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(f)
	w := csv.NewWriter(gz)

	header := append([]string{""}, t.Columns()...)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write header %s: %w", path, err)
	}
	for i := 0; i < t.NumRows(); i++ {
		record := append([]string{strconv.Itoa(i)}, t.Row(i)...)
		if err := w.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("write row %d of %s: %w", i, path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close gzip %s: %w", path, err)
	}
	return f.Close()
}
