// Package loader reads delimited text and workbook files into record tables.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/bft-labs/reportship/internal/domain"
)

// Options controls how a source is parsed.
type Options struct {
	// Delimiter separates fields in text sources. Zero means ','.
	Delimiter rune

	// Sheet selects a workbook sheet. Empty means the first sheet.
	Sheet string
}

// missingTokens are cell texts read as missing values.
var missingTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
}

// Load reads the table at path. Files ending in .xlsx are read as workbooks;
// anything else is parsed as delimited text with a header row.
func Load(path string, opts Options) (*domain.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return loadWorkbook(path, opts.Sheet)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, openError(path, err)
	}
	defer f.Close()

	t, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}

// Read parses delimited text with a header row.
func Read(r io.Reader, opts Options) (*domain.Table, error) {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	// Zero means every record must match the header's field count.
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header row", domain.ErrParse)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
		}
		records = append(records, rec)
	}

	return Build(header, records)
}

// Build infers column kinds from raw cell text and assembles a table.
// A column is Number when every present cell parses as a float, Bool when
// every present cell is a True/False literal, and String otherwise. Columns
// with no present cells are Number.
func Build(header []string, records [][]string) (*domain.Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: empty header row", domain.ErrParse)
	}

	names := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if !utf8.ValidString(h) {
			return nil, fmt.Errorf("%w: header %d is not valid UTF-8", domain.ErrParse, i)
		}
		names[i] = strings.TrimSpace(h)
	}

	for r, rec := range records {
		if len(rec) != len(names) {
			return nil, fmt.Errorf("%w: row %d has %d fields, want %d", domain.ErrParse, r+1, len(rec), len(names))
		}
		for c, cell := range rec {
			if !utf8.ValidString(cell) {
				return nil, fmt.Errorf("%w: row %d column %q is not valid UTF-8", domain.ErrParse, r+1, names[c])
			}
		}
	}

	columns := make([]domain.Column, len(names))
	for c, name := range names {
		columns[c] = domain.Column{Name: name, Kind: inferKind(records, c)}
	}

	rows := make([][]domain.Value, len(records))
	for r, rec := range records {
		row := make([]domain.Value, len(rec))
		for c, cell := range rec {
			row[c] = convert(cell, columns[c].Kind)
		}
		rows[r] = row
	}

	t, err := domain.NewTable(columns, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return t, nil
}

func inferKind(records [][]string, c int) domain.Kind {
	present, allNumber, allBool := false, true, true
	for _, rec := range records {
		cell := strings.TrimSpace(rec[c])
		if isMissing(cell) {
			continue
		}
		present = true
		if _, ok := parseNumber(cell); !ok {
			allNumber = false
		}
		if _, ok := parseBool(cell); !ok {
			allBool = false
		}
		if !allNumber && !allBool {
			return domain.KindString
		}
	}
	switch {
	case !present, allNumber:
		return domain.KindNumber
	case allBool:
		return domain.KindBool
	default:
		return domain.KindString
	}
}

func convert(cell string, kind domain.Kind) domain.Value {
	trimmed := strings.TrimSpace(cell)
	if isMissing(trimmed) {
		return domain.Null()
	}
	switch kind {
	case domain.KindNumber:
		f, _ := parseNumber(trimmed)
		return domain.Number(f)
	case domain.KindBool:
		b, _ := parseBool(trimmed)
		return domain.Bool(b)
	default:
		return domain.String(cell)
	}
}

func isMissing(cell string) bool {
	_, ok := missingTokens[cell]
	return ok
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

func openError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	return fmt.Errorf("open %s: %w", path, err)
}

func loadWorkbook(path, sheet string) (*domain.Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, openError(path, err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook %s: %v", domain.ErrParse, path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook %s has no sheets", domain.ErrParse, path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", domain.ErrParse, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q has no header row", domain.ErrParse, sheet)
	}

	header := rows[0]
	records := make([][]string, 0, len(rows)-1)
	for i, row := range rows[1:] {
		// Trailing empty cells are not returned by GetRows.
		if len(row) > len(header) {
			return nil, fmt.Errorf("%w: sheet %q row %d has %d cells, want %d", domain.ErrParse, sheet, i+2, len(row), len(header))
		}
		padded := make([]string, len(header))
		copy(padded, row)
		records = append(records, padded)
	}

	t, err := Build(header, records)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}
