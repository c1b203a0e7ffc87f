package domain

import (
	"fmt"
	"math"
	"strconv"
)

// Kind is the scalar type of a value or column.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a typed scalar cell. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// Null returns the missing value.
func Null() Value { return Value{} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a float64. NaN is treated as missing.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Bool wraps a bool.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is missing.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric value and whether v holds a number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Text returns the canonical string representation: "True"/"False" for
// booleans, the shortest round-trip decimal for numbers, "" for null.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return FormatNumber(v.num)
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	default:
		return ""
	}
}

// FormatNumber renders f with the fewest digits that parse back to f.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Column describes one named, typed column.
type Column struct {
	Name string
	Kind Kind
}

// Table is an ordered, rectangular collection of rows over named columns.
// A Table is never mutated after construction; transformations build a new one.
type Table struct {
	columns []Column
	index   map[string]int
	rows    [][]Value
}

// NewTable validates and builds a table. Every row must have one value per
// column, column names must be unique and non-empty, and non-null values must
// match their column kind.
func NewTable(columns []Column, rows [][]Value) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrSchema, i)
		}
		if _, dup := index[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchema, c.Name)
		}
		index[c.Name] = i
	}

	copied := make([][]Value, len(rows))
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrSchema, r, len(row), len(columns))
		}
		for c, v := range row {
			if !v.IsNull() && v.Kind() != columns[c].Kind {
				return nil, fmt.Errorf("%w: row %d column %q holds %s, want %s",
					ErrSchema, r, columns[c].Name, v.Kind(), columns[c].Kind)
			}
		}
		copied[r] = append([]Value(nil), row...)
	}

	return &Table{
		columns: append([]Column(nil), columns...),
		index:   index,
		rows:    copied,
	}, nil
}

// Columns returns a copy of the column descriptors.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Lookup returns the position and descriptor of the named column.
func (t *Table) Lookup(name string) (int, Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return 0, Column{}, false
	}
	return i, t.columns[i], true
}

// Require returns the position of the named column or an ErrSchema error.
func (t *Table) Require(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: column %q not found", ErrSchema, name)
	}
	return i, nil
}

// At returns the value at row r, column c.
func (t *Table) At(r, c int) Value { return t.rows[r][c] }

// Row returns a copy of row r.
func (t *Table) Row(r int) []Value {
	return append([]Value(nil), t.rows[r]...)
}

// ColumnValues returns a copy of the named column's values.
func (t *Table) ColumnValues(name string) ([]Value, error) {
	c, err := t.Require(name)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(t.rows))
	for r := range t.rows {
		out[r] = t.rows[r][c]
	}
	return out, nil
}

// Equal reports whether two tables hold the same columns and values.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.columns) != len(o.columns) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.columns {
		if t.columns[i] != o.columns[i] {
			return false
		}
	}
	for r := range t.rows {
		for c := range t.rows[r] {
			if t.rows[r][c] != o.rows[r][c] {
				return false
			}
		}
	}
	return true
}
