package render

import (
	"fmt"
	"math"
	"sort"

	"github.com/bft-labs/reportship/internal/domain"
)

// prepareChart computes the chart data for spec from the cleaned table.
func prepareChart(t *domain.Table, spec Spec) (domain.Chart, error) {
	switch spec.Kind {
	case KindPie:
		return pieChart(t, spec)
	case KindBar:
		return barChart(t, spec)
	case KindCount:
		return countChart(t, spec)
	case KindBox:
		return boxChart(t, spec)
	case KindLine:
		return lineChart(t, spec)
	case KindHeatmap:
		return heatmapChart(t, spec)
	default:
		return domain.Chart{}, fmt.Errorf("render: unknown kind %q", spec.Kind)
	}
}

func needColumns(spec Spec, n int) error {
	if len(spec.Columns) < n {
		return fmt.Errorf("render %s: %w: need %d columns, got %d", spec.Kind, domain.ErrSchema, n, len(spec.Columns))
	}
	return nil
}

func title(spec Spec, fallback string) string {
	if spec.Title != "" {
		return spec.Title
	}
	return fallback
}

// categoryIndex resolves a column used for grouping; any kind is accepted.
func categoryIndex(t *domain.Table, spec Spec, name string) (int, error) {
	c, err := t.Require(name)
	if err != nil {
		return 0, fmt.Errorf("render %s: %w", spec.Kind, err)
	}
	return c, nil
}

func numericIndex(t *domain.Table, spec Spec, name string) (int, error) {
	c, col, ok := t.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("render %s: %w: column %q not found", spec.Kind, domain.ErrSchema, name)
	}
	if col.Kind != domain.KindNumber {
		return 0, fmt.Errorf("render %s: %w: column %q is %s, want number", spec.Kind, domain.ErrSchema, name, col.Kind)
	}
	return c, nil
}

func nonEmpty(t *domain.Table, spec Spec) error {
	if t.Len() == 0 {
		return fmt.Errorf("render %s: %w", spec.Kind, domain.ErrEmptyInput)
	}
	return nil
}

// pieChart gives each category its share of all rows, in percent rounded to
// one decimal.
func pieChart(t *domain.Table, spec Spec) (domain.Chart, error) {
	if err := needColumns(spec, 1); err != nil {
		return domain.Chart{}, err
	}
	c, err := categoryIndex(t, spec, spec.Columns[0])
	if err != nil {
		return domain.Chart{}, err
	}
	if err := nonEmpty(t, spec); err != nil {
		return domain.Chart{}, err
	}

	counts := map[string]int{}
	for r := 0; r < t.Len(); r++ {
		if v := t.At(r, c); !v.IsNull() {
			counts[v.Text()]++
		}
	}
	labels := sortedKeys(counts)
	values := make([]float64, len(labels))
	for i, l := range labels {
		values[i] = math.Round(float64(counts[l])/float64(t.Len())*1000) / 10
	}
	return domain.Chart{
		Kind:   domain.ChartPie,
		Title:  title(spec, "Distribution of "+spec.Columns[0]),
		Labels: labels,
		Values: values,
	}, nil
}

// barChart shows the mean of a measure per category.
func barChart(t *domain.Table, spec Spec) (domain.Chart, error) {
	if err := needColumns(spec, 2); err != nil {
		return domain.Chart{}, err
	}
	cat, err := categoryIndex(t, spec, spec.Columns[0])
	if err != nil {
		return domain.Chart{}, err
	}
	m, err := numericIndex(t, spec, spec.Columns[1])
	if err != nil {
		return domain.Chart{}, err
	}
	if err := nonEmpty(t, spec); err != nil {
		return domain.Chart{}, err
	}

	samples := groupSamples(t, cat, m)
	labels := sortedKeys(samples)
	values := make([]float64, len(labels))
	for i, l := range labels {
		values[i] = mean(samples[l])
	}
	return domain.Chart{
		Kind:   domain.ChartBar,
		Title:  title(spec, "Average "+spec.Columns[1]+" by "+spec.Columns[0]),
		XLabel: spec.Columns[0],
		YLabel: spec.Columns[1],
		Labels: labels,
		Values: values,
	}, nil
}

// countChart counts rows per category, split into one series per hue value.
func countChart(t *domain.Table, spec Spec) (domain.Chart, error) {
	if err := needColumns(spec, 2); err != nil {
		return domain.Chart{}, err
	}
	cat, err := categoryIndex(t, spec, spec.Columns[0])
	if err != nil {
		return domain.Chart{}, err
	}
	hue, err := categoryIndex(t, spec, spec.Columns[1])
	if err != nil {
		return domain.Chart{}, err
	}
	if err := nonEmpty(t, spec); err != nil {
		return domain.Chart{}, err
	}

	cats, hues := map[string]int{}, map[string]int{}
	type pair struct{ cat, hue string }
	counts := map[pair]int{}
	for r := 0; r < t.Len(); r++ {
		cv, hv := t.At(r, cat), t.At(r, hue)
		if cv.IsNull() || hv.IsNull() {
			continue
		}
		cats[cv.Text()]++
		hues[hv.Text()]++
		counts[pair{cv.Text(), hv.Text()}]++
	}

	labels, series := sortedKeys(cats), sortedKeys(hues)
	groups := make([][]float64, len(series))
	for h, hv := range series {
		groups[h] = make([]float64, len(labels))
		for i, l := range labels {
			groups[h][i] = float64(counts[pair{l, hv}])
		}
	}
	return domain.Chart{
		Kind:   domain.ChartCount,
		Title:  title(spec, spec.Columns[0]+" by "+spec.Columns[1]),
		XLabel: spec.Columns[0],
		YLabel: "count",
		Labels: labels,
		Series: series,
		Groups: groups,
	}, nil
}

// boxChart collects the measure samples of each category.
func boxChart(t *domain.Table, spec Spec) (domain.Chart, error) {
	if err := needColumns(spec, 2); err != nil {
		return domain.Chart{}, err
	}
	cat, err := categoryIndex(t, spec, spec.Columns[0])
	if err != nil {
		return domain.Chart{}, err
	}
	m, err := numericIndex(t, spec, spec.Columns[1])
	if err != nil {
		return domain.Chart{}, err
	}
	if err := nonEmpty(t, spec); err != nil {
		return domain.Chart{}, err
	}

	samples := groupSamples(t, cat, m)
	labels := sortedKeys(samples)
	groups := make([][]float64, len(labels))
	for i, l := range labels {
		groups[i] = samples[l]
	}
	return domain.Chart{
		Kind:   domain.ChartBox,
		Title:  title(spec, spec.Columns[1]+" by "+spec.Columns[0]),
		XLabel: spec.Columns[0],
		YLabel: spec.Columns[1],
		Labels: labels,
		Groups: groups,
	}, nil
}

// lineChart plots the mean y for each distinct x, ordered by x.
func lineChart(t *domain.Table, spec Spec) (domain.Chart, error) {
	if err := needColumns(spec, 2); err != nil {
		return domain.Chart{}, err
	}
	xc, err := numericIndex(t, spec, spec.Columns[0])
	if err != nil {
		return domain.Chart{}, err
	}
	yc, err := numericIndex(t, spec, spec.Columns[1])
	if err != nil {
		return domain.Chart{}, err
	}
	if err := nonEmpty(t, spec); err != nil {
		return domain.Chart{}, err
	}

	ys := map[float64][]float64{}
	for r := 0; r < t.Len(); r++ {
		x, okx := t.At(r, xc).Float()
		y, oky := t.At(r, yc).Float()
		if okx && oky {
			ys[x] = append(ys[x], y)
		}
	}
	xs := make([]float64, 0, len(ys))
	for x := range ys {
		xs = append(xs, x)
	}
	sort.Float64s(xs)
	points := make([]domain.Point, len(xs))
	for i, x := range xs {
		points[i] = domain.Point{X: x, Y: mean(ys[x])}
	}
	return domain.Chart{
		Kind:   domain.ChartLine,
		Title:  title(spec, spec.Columns[1]+" vs "+spec.Columns[0]),
		XLabel: spec.Columns[0],
		YLabel: spec.Columns[1],
		Points: points,
	}, nil
}

// heatmapChart computes pairwise Pearson correlation. Named columns must be
// numeric; with no columns named every numeric column is used. An undefined
// coefficient (a constant column) is drawn as 0.
func heatmapChart(t *domain.Table, spec Spec) (domain.Chart, error) {
	names := spec.Columns
	if len(names) == 0 {
		for _, col := range t.Columns() {
			if col.Kind == domain.KindNumber {
				names = append(names, col.Name)
			}
		}
	}
	if len(names) == 0 {
		return domain.Chart{}, fmt.Errorf("render heatmap: %w: no numeric columns", domain.ErrSchema)
	}
	idx := make([]int, len(names))
	for i, n := range names {
		c, err := numericIndex(t, spec, n)
		if err != nil {
			return domain.Chart{}, err
		}
		idx[i] = c
	}
	if err := nonEmpty(t, spec); err != nil {
		return domain.Chart{}, err
	}

	cols := make([][]float64, len(idx))
	for i, c := range idx {
		cols[i] = make([]float64, t.Len())
		for r := 0; r < t.Len(); r++ {
			f, ok := t.At(r, c).Float()
			if !ok {
				f = math.NaN()
			}
			cols[i][r] = f
		}
	}

	matrix := make([][]float64, len(cols))
	for i := range cols {
		matrix[i] = make([]float64, len(cols))
		for j := range cols {
			if i == j {
				matrix[i][j] = 1
				continue
			}
			matrix[i][j] = pearson(cols[i], cols[j])
		}
	}
	return domain.Chart{
		Kind:   domain.ChartHeatmap,
		Title:  title(spec, "Correlation Heatmap"),
		Labels: append([]string(nil), names...),
		Matrix: matrix,
	}, nil
}

// pearson uses only rows where both samples are present.
func pearson(x, y []float64) float64 {
	var n, sx, sy float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		n++
		sx += x[i]
		sy += y[i]
	}
	if n < 2 {
		return 0
	}
	mx, my := sx/n, sy/n
	var cov, vx, vy float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

func groupSamples(t *domain.Table, cat, measure int) map[string][]float64 {
	out := map[string][]float64{}
	for r := 0; r < t.Len(); r++ {
		cv := t.At(r, cat)
		f, ok := t.At(r, measure).Float()
		if cv.IsNull() || !ok {
			continue
		}
		out[cv.Text()] = append(out[cv.Text()], f)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
