package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CSVAdapter reads comma-separated tables with a header row
type CSVAdapter struct{}

// NewCSVAdapter creates a CSV adapter
func NewCSVAdapter() *CSVAdapter {
	return &CSVAdapter{}
}

// Name returns the adapter name
func (a *CSVAdapter) Name() string {
	return "csv"
}

// Extensions returns the handled extensions
func (a *CSVAdapter) Extensions() []string {
	return []string{".csv"}
}

// Read loads a CSV file
func (a *CSVAdapter) Read(ctx context.Context, path string) (*RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	table, err := readCSV(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	table.Name = tableName(path)
	table.Path = path
	return table, nil
}

func readCSV(ctx context.Context, r io.Reader) (*RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	table := &RawTable{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if table.Header == nil {
			if len(record) > 0 {
				record[0] = strings.TrimPrefix(record[0], "\ufeff")
			}
			table.Header = record
			continue
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

func tableName(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}
