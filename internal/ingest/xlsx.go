package ingest

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXAdapter reads the first sheet of a workbook; its first row is the header
type XLSXAdapter struct{}

// NewXLSXAdapter creates an XLSX adapter
func NewXLSXAdapter() *XLSXAdapter {
	return &XLSXAdapter{}
}

// Name returns the adapter name
func (a *XLSXAdapter) Name() string {
	return "xlsx"
}

// Extensions returns the handled extensions
func (a *XLSXAdapter) Extensions() []string {
	return []string{".xlsx"}
}

// Read loads the first sheet of an XLSX workbook
func (a *XLSXAdapter) Read(ctx context.Context, path string) (*RawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("read %s: workbook has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := &RawTable{Name: tableName(path), Path: path}
	if len(rows) == 0 {
		return table, nil
	}
	table.Header = rows[0]
	for _, row := range rows[1:] {
		// GetRows trims trailing empty cells; skip fully blank lines
		if len(row) == 0 {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
