package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is the tabular form rosters are flattened into before rendering.
// Headers fix the column order; each row maps header name to cell value.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// recordFor projects a row onto the header order. Missing cells render empty.
func (d Dataset) recordFor(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}

// CSVExporter renders a dataset as RFC 4180 CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the header line followed by one line per row.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		if err := writer.Write(data.recordFor(row)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
