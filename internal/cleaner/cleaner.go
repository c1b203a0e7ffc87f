// Package cleaner normalizes record tables before aggregation.
package cleaner

import (
	"fmt"

	"github.com/bft-labs/reportship/internal/domain"
)

// Options lists the columns to normalize.
type Options struct {
	// Categorical columns are stored as strings. Boolean and numeric flag
	// columns listed here are coerced to their canonical text.
	Categorical []string
}

// DefaultOptions returns the categorical columns of the shoppers dataset.
func DefaultOptions() Options {
	return Options{Categorical: []string{"Weekend", "Revenue"}}
}

// Clean returns a new table where every categorical column holds strings and
// every numeric column has its missing values replaced with zero. The input is
// not modified. Clean is idempotent.
func Clean(t *domain.Table, opts Options) (*domain.Table, error) {
	columns := t.Columns()

	categorical := make(map[int]bool, len(opts.Categorical))
	for _, name := range opts.Categorical {
		c, err := t.Require(name)
		if err != nil {
			return nil, fmt.Errorf("clean: %w", err)
		}
		categorical[c] = true
	}

	for c := range columns {
		if categorical[c] {
			columns[c].Kind = domain.KindString
		}
	}

	rows := make([][]domain.Value, t.Len())
	for r := range rows {
		row := t.Row(r)
		for c, v := range row {
			switch {
			case categorical[c]:
				if !v.IsNull() && v.Kind() != domain.KindString {
					row[c] = domain.String(v.Text())
				}
			case columns[c].Kind == domain.KindNumber && v.IsNull():
				row[c] = domain.Number(0)
			}
		}
		rows[r] = row
	}

	cleaned, err := domain.NewTable(columns, rows)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	return cleaned, nil
}
