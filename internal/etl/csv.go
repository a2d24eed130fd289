package etl

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/wattmap-nz/wattmap/internal/core/period"
)

// processedHeader is the fixed column order of every processed-layer file.
var processedHeader = []string{"period", "region", "category", "sector", "value"}

// WriteRecords writes the processed-layer CSV for one pipeline run,
// fully replacing any previous file. The write goes through a temp file
// in the same directory so readers never observe a half-written layer.
func WriteRecords(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.csv")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(processedHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{r.Period.String(), r.Region, r.Category, r.Sector, r.Value.String()}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp output: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace output: %w", err)
	}
	return nil
}

// ReadRecords loads a processed-layer CSV back into normalized records.
// The metrics stage is the only consumer.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open processed file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read processed file %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("processed file %s is empty", path)
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(processedHeader) {
			return nil, fmt.Errorf("processed file %s row %d: want %d columns, got %d",
				path, i+2, len(processedHeader), len(row))
		}
		p, err := period.Parse(row[0])
		if err != nil {
			return nil, fmt.Errorf("processed file %s row %d: %w", path, i+2, err)
		}
		v, err := decimal.NewFromString(row[4])
		if err != nil {
			return nil, fmt.Errorf("processed file %s row %d: invalid value %q: %w", path, i+2, row[4], err)
		}
		records = append(records, Record{
			Period:   p,
			Region:   row[1],
			Category: row[2],
			Sector:   row[3],
			Value:    v,
		})
	}
	return records, nil
}

// ReadRawCSV reads an arbitrary source CSV and returns its header and
// data rows. The first row defines the columns; no further shared schema
// is assumed.
func ReadRawCSV(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // sources are ragged; pipelines validate per row
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read source file %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("source file %s is empty", path)
	}
	return all[0], all[1:], nil
}

// ColumnIndex resolves required column names to their positions in a raw
// header. Missing columns are a configuration-class error.
func ColumnIndex(header []string, names ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	out := make(map[string]int, len(names))
	for _, n := range names {
		i, ok := idx[n]
		if !ok {
			return nil, fmt.Errorf("source is missing required column %q", n)
		}
		out[n] = i
	}
	return out, nil
}
