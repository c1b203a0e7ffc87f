// Package aggregate computes pivoted summaries over cleaned record tables.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bft-labs/reportship/internal/domain"
)

// Statistic is a summary computed per measure within each partition.
type Statistic string

const (
	Mean  Statistic = "mean"
	Sum   Statistic = "sum"
	Count Statistic = "count"
)

// ParseStatistic validates a statistic name.
func ParseStatistic(s string) (Statistic, error) {
	switch st := Statistic(strings.ToLower(strings.TrimSpace(s))); st {
	case Mean, Sum, Count:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown statistic %q", domain.ErrSchema, s)
	}
}

// GrandTotal labels the margin row and the margin split column. With margins
// requested, a group key or split value spelled GrandTotal is a schema error.
const GrandTotal = "Grand Total"

// FillMode decides what empty partitions hold.
type FillMode string

const (
	// FillValue writes FillPolicy.Value into every statistic of an empty partition.
	FillValue FillMode = "value"
	// FillMissing leaves empty partitions as missing (NaN, exported as empty cells).
	FillMissing FillMode = "missing"
)

// FillPolicy is fixed for a whole aggregate. The zero value fills with 0.
type FillPolicy struct {
	Mode  FillMode
	Value float64
}

func (p FillPolicy) fill() float64 {
	if p.Mode == FillMissing {
		return math.NaN()
	}
	return p.Value
}

// Total adds a derived column summing one (statistic, measure) across split
// values, optionally sorting rows by it in descending order.
type Total struct {
	Name      string
	Statistic Statistic
	Measure   string
	Sort      bool
}

// Request describes one aggregation.
type Request struct {
	GroupKeys  []string
	SplitKey   string
	Measures   []string
	Statistics []Statistic
	Fill       FillPolicy

	// Cartesian emits every combination of observed group key values, filling
	// the ones with no rows. Otherwise only observed combinations appear.
	Cartesian bool

	// Margins appends a Grand Total row and, with a split key, a Grand Total
	// split column per statistic and measure.
	Margins bool

	Total *Total

	// RejectEmpty turns an empty input table into ErrEmptyInput instead of
	// an empty aggregate.
	RejectEmpty bool
}

// ColumnKey identifies one derived column.
type ColumnKey struct {
	Statistic Statistic
	Measure   string
	Split     string
}

// Row is one grouping key combination with its derived values.
type Row struct {
	Keys   []string
	Values []float64
	Total  float64
}

// Table is an immutable aggregate indexed by grouping keys.
type Table struct {
	keyNames   []string
	splitKey   string
	statistics []Statistic
	measures   []string
	columns    []ColumnKey
	rows       []Row
	totalName  string
}

// accumulator holds per-measure running sums for one partition.
type accumulator struct {
	sums   []float64
	counts []int
}

func newAccumulator(n int) *accumulator {
	return &accumulator{sums: make([]float64, n), counts: make([]int, n)}
}

func (a *accumulator) add(m int, v float64) {
	a.sums[m] += v
	a.counts[m]++
}

func (a *accumulator) value(st Statistic, m int, fill float64) float64 {
	if a == nil {
		return fill
	}
	switch st {
	case Count:
		return float64(a.counts[m])
	case Sum:
		return a.sums[m]
	default:
		if a.counts[m] == 0 {
			return fill
		}
		return a.sums[m] / float64(a.counts[m])
	}
}

const sep = "\x1f"

// Aggregate partitions t by the group keys and split key and computes every
// requested statistic for every measure.
func Aggregate(t *domain.Table, req Request) (*Table, error) {
	keyIdx, splitIdx, measureIdx, err := validate(t, req)
	if err != nil {
		return nil, err
	}
	if t.Len() == 0 && req.RejectEmpty {
		return nil, fmt.Errorf("aggregate: %w", domain.ErrEmptyInput)
	}

	nm := len(measureIdx)
	cells := map[string]*accumulator{}
	rowMargins := map[string]*accumulator{}
	splitMargins := map[string]*accumulator{}
	overall := newAccumulator(nm)

	observed := map[string][]string{}
	distinct := make([]map[string]struct{}, len(keyIdx))
	for i := range distinct {
		distinct[i] = map[string]struct{}{}
	}
	splits := map[string]struct{}{}

	for r := 0; r < t.Len(); r++ {
		keys, ok := keyTuple(t, r, keyIdx)
		if !ok {
			continue
		}
		split := ""
		if splitIdx >= 0 {
			v := t.At(r, splitIdx)
			if v.IsNull() {
				continue
			}
			split = v.Text()
		}
		if req.Margins {
			if err := checkMarginLabel(req, keys, split); err != nil {
				return nil, err
			}
		}

		rowID := strings.Join(keys, sep)
		observed[rowID] = keys
		for i, k := range keys {
			distinct[i][k] = struct{}{}
		}
		splits[split] = struct{}{}

		targets := []*accumulator{
			lookup(cells, rowID+sep+split, nm),
			lookup(rowMargins, rowID, nm),
			lookup(splitMargins, split, nm),
			overall,
		}
		for m, c := range measureIdx {
			f, ok := t.At(r, c).Float()
			if !ok {
				continue
			}
			for _, acc := range targets {
				acc.add(m, f)
			}
		}
	}

	var keyRows [][]string
	if req.Cartesian {
		keyRows = cartesian(distinct)
	} else {
		for _, keys := range observed {
			keyRows = append(keyRows, keys)
		}
		sort.Slice(keyRows, func(i, j int) bool { return lessTuple(keyRows[i], keyRows[j]) })
	}

	splitValues := sortedSet(splits)
	if req.SplitKey != "" && req.Margins {
		splitValues = append(splitValues, GrandTotal)
	}

	out := &Table{
		keyNames:   append([]string(nil), req.GroupKeys...),
		splitKey:   req.SplitKey,
		statistics: append([]Statistic(nil), req.Statistics...),
		measures:   append([]string(nil), req.Measures...),
	}
	for _, st := range req.Statistics {
		for _, m := range req.Measures {
			for _, s := range splitValues {
				out.columns = append(out.columns, ColumnKey{Statistic: st, Measure: m, Split: s})
			}
		}
	}

	fill := req.Fill.fill()
	measurePos := make(map[string]int, nm)
	for i, m := range req.Measures {
		measurePos[m] = i
	}

	for _, keys := range keyRows {
		rowID := strings.Join(keys, sep)
		values := make([]float64, len(out.columns))
		for i, col := range out.columns {
			acc := cells[rowID+sep+col.Split]
			if col.Split == GrandTotal {
				acc = rowMargins[rowID]
			}
			values[i] = acc.value(col.Statistic, measurePos[col.Measure], fill)
		}
		out.rows = append(out.rows, Row{Keys: append([]string(nil), keys...), Values: values})
	}

	if req.Total != nil {
		out.totalName = req.Total.Name
		for r := range out.rows {
			out.rows[r].Total = out.sumTotal(out.rows[r].Values, *req.Total)
		}
		if req.Total.Sort {
			sort.SliceStable(out.rows, func(i, j int) bool {
				return out.rows[i].Total > out.rows[j].Total
			})
		}
	}

	if req.Margins && t.Len() > 0 {
		keys := make([]string, len(req.GroupKeys))
		for i := range keys {
			keys[i] = GrandTotal
		}
		values := make([]float64, len(out.columns))
		for i, col := range out.columns {
			acc := splitMargins[col.Split]
			if col.Split == GrandTotal || req.SplitKey == "" {
				acc = overall
			}
			values[i] = acc.value(col.Statistic, measurePos[col.Measure], fill)
		}
		margin := Row{Keys: keys, Values: values}
		if req.Total != nil {
			margin.Total = out.sumTotal(values, *req.Total)
		}
		out.rows = append(out.rows, margin)
	}

	return out, nil
}

func checkMarginLabel(req Request, keys []string, split string) error {
	for i, k := range keys {
		if k == GrandTotal {
			return fmt.Errorf("aggregate: %w: %s value %q collides with the margin label",
				domain.ErrSchema, req.GroupKeys[i], k)
		}
	}
	if req.SplitKey != "" && split == GrandTotal {
		return fmt.Errorf("aggregate: %w: %s value %q collides with the margin label",
			domain.ErrSchema, req.SplitKey, split)
	}
	return nil
}

func validate(t *domain.Table, req Request) (keys []int, split int, measures []int, err error) {
	if len(req.GroupKeys) == 0 {
		return nil, 0, nil, fmt.Errorf("aggregate: %w: no group keys", domain.ErrSchema)
	}
	if len(req.Measures) == 0 {
		return nil, 0, nil, fmt.Errorf("aggregate: %w: no measures", domain.ErrSchema)
	}
	if len(req.Statistics) == 0 {
		return nil, 0, nil, fmt.Errorf("aggregate: %w: no statistics", domain.ErrSchema)
	}
	for _, st := range req.Statistics {
		if _, err := ParseStatistic(string(st)); err != nil {
			return nil, 0, nil, fmt.Errorf("aggregate: %w", err)
		}
	}

	for _, k := range req.GroupKeys {
		c, err := t.Require(k)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("aggregate: %w", err)
		}
		keys = append(keys, c)
	}

	split = -1
	if req.SplitKey != "" {
		if split, err = t.Require(req.SplitKey); err != nil {
			return nil, 0, nil, fmt.Errorf("aggregate: %w", err)
		}
	}

	for _, m := range req.Measures {
		c, col, ok := t.Lookup(m)
		if !ok {
			return nil, 0, nil, fmt.Errorf("aggregate: %w: column %q not found", domain.ErrSchema, m)
		}
		if col.Kind != domain.KindNumber {
			return nil, 0, nil, fmt.Errorf("aggregate: %w: measure %q is %s, want number", domain.ErrSchema, m, col.Kind)
		}
		measures = append(measures, c)
	}

	if tot := req.Total; tot != nil {
		if tot.Name == "" {
			return nil, 0, nil, fmt.Errorf("aggregate: %w: total column has no name", domain.ErrSchema)
		}
		if !containsStat(req.Statistics, tot.Statistic) || !containsString(req.Measures, tot.Measure) {
			return nil, 0, nil, fmt.Errorf("aggregate: %w: total %s(%s) is not an output column",
				domain.ErrSchema, tot.Statistic, tot.Measure)
		}
	}
	return keys, split, measures, nil
}

func (t *Table) sumTotal(values []float64, tot Total) float64 {
	var sum float64
	for i, col := range t.columns {
		if col.Statistic != tot.Statistic || col.Measure != tot.Measure || col.Split == GrandTotal {
			continue
		}
		if !math.IsNaN(values[i]) {
			sum += values[i]
		}
	}
	return sum
}

func keyTuple(t *domain.Table, r int, idx []int) ([]string, bool) {
	keys := make([]string, len(idx))
	for i, c := range idx {
		v := t.At(r, c)
		if v.IsNull() {
			return nil, false
		}
		keys[i] = v.Text()
	}
	return keys, true
}

func lookup(m map[string]*accumulator, id string, n int) *accumulator {
	acc, ok := m[id]
	if !ok {
		acc = newAccumulator(n)
		m[id] = acc
	}
	return acc
}

func cartesian(distinct []map[string]struct{}) [][]string {
	out := [][]string{{}}
	for _, set := range distinct {
		values := sortedSet(set)
		var next [][]string
		for _, prefix := range out {
			for _, v := range values {
				tuple := append(append([]string(nil), prefix...), v)
				next = append(next, tuple)
			}
		}
		out = next
	}
	if len(out) == 1 && len(out[0]) == 0 {
		return nil
	}
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func lessTuple(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func containsStat(list []Statistic, s Statistic) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// KeyNames returns the grouping key column names.
func (t *Table) KeyNames() []string { return append([]string(nil), t.keyNames...) }

// SplitKey returns the split column name, or "".
func (t *Table) SplitKey() string { return t.splitKey }

// Columns returns the derived column keys in output order.
func (t *Table) Columns() []ColumnKey { return append([]ColumnKey(nil), t.columns...) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns a copy of row i.
func (t *Table) Row(i int) Row {
	r := t.rows[i]
	return Row{
		Keys:   append([]string(nil), r.Keys...),
		Values: append([]float64(nil), r.Values...),
		Total:  r.Total,
	}
}

// TotalName returns the derived total column name, if one was requested.
func (t *Table) TotalName() (string, bool) {
	return t.totalName, t.totalName != ""
}

// Find returns the row whose keys equal keys.
func (t *Table) Find(keys ...string) (Row, bool) {
	for i, r := range t.rows {
		if len(r.Keys) == len(keys) && !lessTuple(r.Keys, keys) && !lessTuple(keys, r.Keys) {
			return t.Row(i), true
		}
	}
	return Row{}, false
}

// Value returns the cell of row r for the given column key.
func (t *Table) Value(r int, key ColumnKey) (float64, bool) {
	for i, c := range t.columns {
		if c == key {
			return t.rows[r].Values[i], true
		}
	}
	return 0, false
}

// Label names a derived column for export. With one statistic and one
// measure the split value alone is used, as a spreadsheet pivot would.
func (t *Table) Label(key ColumnKey) string {
	single := len(t.statistics) == 1 && len(t.measures) == 1
	switch {
	case single && t.splitKey != "":
		return key.Split
	case single:
		return key.Measure
	case t.splitKey != "":
		return string(key.Statistic) + "_" + key.Measure + "_" + key.Split
	default:
		return string(key.Statistic) + "_" + key.Measure
	}
}

// Header returns the export header: key names, derived labels, and the total.
func (t *Table) Header() []string {
	header := t.KeyNames()
	for _, c := range t.columns {
		header = append(header, t.Label(c))
	}
	if t.totalName != "" {
		header = append(header, t.totalName)
	}
	return header
}
