package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LoadCSV reads one series from a CSV file with a "date,close" header.
// Dates are YYYY-MM-DD and interpreted as UTC midnight. The symbol is the
// file name without extension, upper-cased.
func LoadCSV(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open series file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read series file %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("series file %s has no data rows", path)
	}

	bars := make([]Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 2 {
			return nil, fmt.Errorf("series file %s row %d: expected date,close", path, i+2)
		}
		ts, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(rec[0]), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("series file %s row %d: %w", path, i+2, err)
		}
		close, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("series file %s row %d: %w", path, i+2, err)
		}
		bars = append(bars, Bar{Time: ts, Close: close})
	}

	symbol := strings.ToUpper(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	return NewSeries(symbol, bars)
}

// LoadDir builds a snapshot from every *.csv file in dir.
func LoadDir(dir string) (*Snapshot, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to list series files: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no series files found in %s", dir)
	}

	series := make([]*Series, 0, len(paths))
	for _, p := range paths {
		s, err := LoadCSV(p)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return NewSnapshot(series...), nil
}
