// Package excel copies worksheet rows between the feed service and local
// .xlsx workbooks.
package excel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	sheetfeed "github.com/ideamans/go-sheetfeed"
)

// RowSource is a one-pass sequence of rows; *sheetfeed.Cursor[*sheetfeed.Row]
// satisfies it.
type RowSource interface {
	Next(ctx context.Context) (*sheetfeed.Row, error)
	Close()
}

// Exporter writes rows into a sheet of a workbook
type Exporter struct {
	config Config
	logger *zap.Logger
}

// NewExporter creates an exporter. A nil logger discards output.
func NewExporter(config *Config, logger *zap.Logger) (*Exporter, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{config: *config, logger: logger}, nil
}

// Export drains rows into the sheet, replacing its contents, and returns the
// number of data rows written. When columns is empty the first row's columns
// are used as the header. rows is always closed.
func (e *Exporter) Export(ctx context.Context, rows RowSource, columns []string) (int, error) {
	defer rows.Close()

	var first *sheetfeed.Row
	done := false
	if len(columns) == 0 {
		row, err := rows.Next(ctx)
		switch {
		case errors.Is(err, iterator.Done):
			// the source is exhausted and must not be read again
			done = true
		case err != nil:
			return 0, err
		default:
			first = row
			columns = row.Columns()
		}
	}

	f, err := e.openWorkbook()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sw, err := f.NewStreamWriter(e.config.SheetName)
	if err != nil {
		return 0, fmt.Errorf("failed to open sheet for writing: %w", err)
	}

	if len(columns) > 0 {
		header := make([]interface{}, len(columns))
		for i, col := range columns {
			header[i] = col
		}
		if err := sw.SetRow("A1", header); err != nil {
			return 0, fmt.Errorf("failed to write header: %w", err)
		}
	}

	written := 0
	write := func(row *sheetfeed.Row) error {
		cell, err := excelize.CoordinatesToCellName(1, written+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(columns))
		for i, col := range columns {
			values[i] = cellValue(row.Get(col))
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", written+2, err)
		}
		written++
		return nil
	}

	if first != nil {
		if err := write(first); err != nil {
			return 0, err
		}
	}
	for !done {
		row, err := rows.Next(ctx)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return written, err
		}
		if err := write(row); err != nil {
			return written, err
		}
	}

	if err := sw.Flush(); err != nil {
		return written, fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(e.config.FilePath), 0755); err != nil {
		return written, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(e.config.FilePath); err != nil {
		return written, fmt.Errorf("failed to save Excel file: %w", err)
	}

	e.logger.Info("exported rows",
		zap.String("file", e.config.FilePath),
		zap.String("sheet", e.config.SheetName),
		zap.Int("rows", written))
	return written, nil
}

// openWorkbook opens the target file, or creates one, and makes sure the
// configured sheet exists.
func (e *Exporter) openWorkbook() (*excelize.File, error) {
	var f *excelize.File
	fresh := false
	if _, err := os.Stat(e.config.FilePath); err == nil {
		f, err = excelize.OpenFile(e.config.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open Excel file: %w", err)
		}
	} else {
		f = excelize.NewFile()
		fresh = true
	}

	index, err := f.GetSheetIndex(e.config.SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to get sheet index: %w", err)
	}
	if index != -1 {
		return f, nil
	}

	index, err = f.NewSheet(e.config.SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	// a fresh workbook carries a default sheet we don't want
	if defaultSheet := f.GetSheetName(0); fresh && defaultSheet != e.config.SheetName {
		_ = f.DeleteSheet(defaultSheet)
	}
	return f, nil
}

// cellValue stores numbers and booleans as typed cells so the workbook sorts
// and sums them; everything else stays text.
func cellValue(s string) interface{} {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "TRUE", "true":
		return true
	case "FALSE", "false":
		return false
	}
	return s
}

// Importer reads a sheet of a workbook as batch items
type Importer struct {
	config Config
}

// NewImporter creates an importer
func NewImporter(config *Config) (*Importer, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Importer{config: *config}, nil
}

// Load returns the sheet's header row and one batch item per non-empty data
// row. Item rows keep their position in the sheet, so uploading them with
// Worksheet.Populate reproduces the layout. Short rows are padded to the
// header width, which clears cells the sheet leaves empty. Header names and
// cells come back XML-escaped, ready for upload.
func (im *Importer) Load(ctx context.Context) ([]string, []*sheetfeed.BatchItem, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	f, err := excelize.OpenFile(im.config.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	index, err := f.GetSheetIndex(im.config.SheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sheet index: %w", err)
	}
	if index == -1 {
		return nil, nil, fmt.Errorf("%s: %w", im.config.SheetName, ErrSheetNotFound)
	}

	rows, err := f.GetRows(im.config.SheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get rows: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, nil, ErrNoHeader
	}

	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = sheetfeed.EncodeXML(name)
	}
	items := make([]*sheetfeed.BatchItem, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) == 0 {
			continue
		}
		width := len(header)
		if len(row) > width {
			width = len(row)
		}
		cells := make([]string, width)
		for j, v := range row {
			cells[j] = sheetfeed.EncodeXML(v)
		}
		items = append(items, sheetfeed.NewBatchItem(i+1, cells...))
	}
	return header, items, nil
}
