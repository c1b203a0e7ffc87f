// Package recipients decides who receives a run's report.
package recipients

import (
	"fmt"
	"strings"

	"github.com/bft-labs/reportship/internal/domain"
)

// Source is one recipient resolution strategy: Static, FromTableColumn or
// FromAddressFile.
type Source interface {
	source()
	String() string
}

// Static is a fixed address list.
type Static struct {
	Addresses []string
}

// FromTableColumn takes the first address found in the report's own table.
type FromTableColumn struct{}

// FromAddressFile reads a separate CSV or workbook address list.
type FromAddressFile struct {
	Path string
}

func (Static) source()          {}
func (FromTableColumn) source() {}
func (FromAddressFile) source() {}

func (s Static) String() string          { return fmt.Sprintf("static(%d)", len(s.Addresses)) }
func (FromTableColumn) String() string   { return "table-column" }
func (s FromAddressFile) String() string { return "address-file(" + s.Path + ")" }

// LoadFunc loads an address list table.
type LoadFunc func(path string) (*domain.Table, error)

// Resolve produces the recipient set for src. table is the cleaned report
// table, used by FromTableColumn. When no email column exists the empty set
// is returned together with ErrNoRecipientColumn, which callers treat as
// "skip delivery" rather than a failure. Invalid addresses are dropped.
func Resolve(src Source, table *domain.Table, load LoadFunc) (domain.RecipientSet, error) {
	switch s := src.(type) {
	case Static:
		return domain.NewRecipientSet(s.Addresses...), nil

	case FromTableColumn:
		if table == nil {
			return domain.RecipientSet{}, fmt.Errorf("resolve recipients: %w", domain.ErrNoRecipientColumn)
		}
		values, err := emailColumn(table)
		if err != nil {
			return domain.RecipientSet{}, err
		}
		for _, v := range values {
			if strings.TrimSpace(v) != "" {
				return domain.NewRecipientSet(v), nil
			}
		}
		return domain.RecipientSet{}, nil

	case FromAddressFile:
		if load == nil {
			return domain.RecipientSet{}, fmt.Errorf("resolve recipients: no loader for %s", s.Path)
		}
		list, err := load(s.Path)
		if err != nil {
			return domain.RecipientSet{}, fmt.Errorf("resolve recipients: %w", err)
		}
		values, err := emailColumn(list)
		if err != nil {
			return domain.RecipientSet{}, err
		}
		return domain.NewRecipientSet(values...), nil

	default:
		return domain.RecipientSet{}, fmt.Errorf("resolve recipients: unknown source %T", src)
	}
}

// emailColumn returns the text of the first column whose name contains
// "email", ignoring case. Null cells become empty strings.
func emailColumn(t *domain.Table) ([]string, error) {
	for _, name := range t.ColumnNames() {
		if !strings.Contains(strings.ToLower(name), "email") {
			continue
		}
		values, err := t.ColumnValues(name)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(values))
		for i, v := range values {
			out[i] = v.Text()
		}
		return out, nil
	}
	return nil, fmt.Errorf("resolve recipients: %w", domain.ErrNoRecipientColumn)
}
