// Package export writes list rows to XLSX or CSV using the same cell text
// the list table shows.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// Format is an export file format.
type Format string

// Export formats.
const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat parses a format name. Empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "xlsx", "excel":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want xlsx or csv)", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename returns a download name for a resource export.
func (f Format) Filename(resource string) string {
	return resource + "." + string(f)
}

// CellFunc renders one column of one row.
type CellFunc func(col core.Column, row core.Record) (string, error)

// Table is the header and cell text of an export.
type Table struct {
	Header []string
	Rows   [][]string
}

// Build renders every displayed column of rows.
func Build(columns []core.Column, rows []core.Record, cell CellFunc) (Table, error) {
	var cols []core.Column
	for _, c := range columns {
		if c.Displays() {
			cols = append(cols, c)
		}
	}

	t := Table{Header: make([]string, len(cols)), Rows: make([][]string, len(rows))}
	for i, c := range cols {
		t.Header[i] = c.Header
	}
	for r, row := range rows {
		line := make([]string, len(cols))
		for i, c := range cols {
			text, err := cell(c, row)
			if err != nil {
				return Table{}, fmt.Errorf("row %d column %q: %w", r, c.Header, err)
			}
			line[i] = text
		}
		t.Rows[r] = line
	}
	return t, nil
}

// Write encodes t in the given format.
func Write(w io.Writer, format Format, sheet string, t Table) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatXLSX:
		return WriteXLSX(w, sheet, t)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteCSV writes the header and rows as CSV.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes one sheet with a bold header row.
func WriteXLSX(w io.Writer, sheet string, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = "Export"
	}
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for i, h := range t.Header {
		axis, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, axis, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, axis, axis, bold); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for i, v := range row {
			axis, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, axis, v); err != nil {
				return err
			}
		}
	}

	_, err = f.WriteTo(w)
	return err
}

// Getter loads one record.
type Getter func(ctx context.Context, id string) (core.Record, error)

// Collect fetches the selected records concurrently, keeping the order of
// ids. Any failure aborts the export.
func Collect(ctx context.Context, ids []string, get Getter, concurrency int) ([]core.Record, error) {
	if concurrency <= 0 {
		concurrency = 4
	}
	rows := make([]core.Record, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := get(ctx, id)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", id, err)
			}
			rows[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
