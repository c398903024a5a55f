// Package datasource implements scenario.DataSource backends. CSVSource
// reads the whole file once at load time and cycles through rows
// lock-free with an atomic counter, never touching the filesystem again
// per iteration.
package datasource

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync/atomic"
)

// CSVSource cycles through the rows of a CSV file, keyed by its header
// row, satisfying scenario.DataSource.
type CSVSource struct {
	idx     atomic.Uint64
	records []map[string]string
}

// NewCSVSource reads and validates path once; the whole file lives in
// memory for the run's duration.
func NewCSVSource(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("datasource: open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("datasource: read %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("datasource: %s must have a header and at least one data row", path)
	}

	headers := rows[0]
	for _, h := range headers {
		if h == "" {
			return nil, fmt.Errorf("datasource: %s has an empty header field", path)
		}
	}

	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]string, len(headers))
		for i, val := range row {
			if i < len(headers) {
				record[headers[i]] = val
			}
		}
		records = append(records, record)
	}

	return &CSVSource{records: records}, nil
}

// Next returns the next row, wrapping back to the start once exhausted.
func (s *CSVSource) Next() map[string]string {
	i := s.idx.Add(1) - 1
	return s.records[i%uint64(len(s.records))]
}
