package render

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/bft-labs/reportship/internal/aggregate"
	"github.com/bft-labs/reportship/internal/domain"
)

// Workbook sheet names.
const (
	SheetCleaned = "Cleaned_Data"
	SheetPivot   = "Pivot_Table"
)

var errNoAggregate = errors.New("render: no aggregate available")

func exportCSV(table *domain.Table, agg *aggregate.Table, src Source) ([]byte, error) {
	var records [][]string
	switch src {
	case SourceTable:
		records = tableRecords(table)
	case SourceAggregate, "":
		if agg == nil {
			return nil, errNoAggregate
		}
		records = aggregateRecords(agg)
	default:
		return nil, fmt.Errorf("render csv: unknown source %q", src)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}
	return buf.Bytes(), nil
}

func tableRecords(t *domain.Table) [][]string {
	records := [][]string{t.ColumnNames()}
	for r := 0; r < t.Len(); r++ {
		row := t.Row(r)
		rec := make([]string, len(row))
		for c, v := range row {
			rec[c] = v.Text()
		}
		records = append(records, rec)
	}
	return records
}

func aggregateRecords(agg *aggregate.Table) [][]string {
	_, hasTotal := agg.TotalName()
	records := [][]string{agg.Header()}
	for i := 0; i < agg.Len(); i++ {
		row := agg.Row(i)
		rec := append([]string(nil), row.Keys...)
		for _, v := range row.Values {
			rec = append(rec, formatCell(v))
		}
		if hasTotal {
			rec = append(rec, formatCell(row.Total))
		}
		records = append(records, rec)
	}
	return records
}

// formatCell writes missing aggregate cells as empty fields.
func formatCell(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return domain.FormatNumber(f)
}

// exportWorkbook writes the cleaned table and, when present, the aggregate as
// two sheets with a bold header row.
func exportWorkbook(table *domain.Table, agg *aggregate.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCleaned); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}

	if err := writeSheet(f, SheetCleaned, bold, tableCells(table)); err != nil {
		return nil, err
	}

	if agg != nil {
		if _, err := f.NewSheet(SheetPivot); err != nil {
			return nil, fmt.Errorf("render xlsx: %w", err)
		}
		if err := writeSheet(f, SheetPivot, bold, aggregateCells(agg)); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("render xlsx: %w", err)
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("render xlsx: sheet %s: %w", sheet, err)
		}
	}
	if len(rows) > 0 {
		if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
			return fmt.Errorf("render xlsx: sheet %s: %w", sheet, err)
		}
	}
	return nil
}

func tableCells(t *domain.Table) [][]interface{} {
	header := make([]interface{}, 0, len(t.Columns()))
	for _, name := range t.ColumnNames() {
		header = append(header, name)
	}
	rows := [][]interface{}{header}
	for r := 0; r < t.Len(); r++ {
		values := t.Row(r)
		row := make([]interface{}, len(values))
		for c, v := range values {
			row[c] = cellValue(v)
		}
		rows = append(rows, row)
	}
	return rows
}

func cellValue(v domain.Value) interface{} {
	switch v.Kind() {
	case domain.KindNull:
		return nil
	case domain.KindNumber:
		f, _ := v.Float()
		return f
	default:
		return v.Text()
	}
}

func aggregateCells(agg *aggregate.Table) [][]interface{} {
	_, hasTotal := agg.TotalName()
	header := make([]interface{}, 0)
	for _, h := range agg.Header() {
		header = append(header, h)
	}
	rows := [][]interface{}{header}
	for i := 0; i < agg.Len(); i++ {
		r := agg.Row(i)
		row := make([]interface{}, 0, len(header))
		for _, k := range r.Keys {
			row = append(row, k)
		}
		for _, v := range r.Values {
			row = append(row, numberCell(v))
		}
		if hasTotal {
			row = append(row, numberCell(r.Total))
		}
		rows = append(rows, row)
	}
	return rows
}

func numberCell(f float64) interface{} {
	if math.IsNaN(f) {
		return nil
	}
	return f
}
