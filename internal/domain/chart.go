package domain

// ChartKind selects how a chart backend draws a Chart.
type ChartKind string

const (
	ChartPie     ChartKind = "pie"
	ChartBar     ChartKind = "bar"
	ChartCount   ChartKind = "count"
	ChartBox     ChartKind = "box"
	ChartLine    ChartKind = "line"
	ChartHeatmap ChartKind = "heatmap"
)

// Point is one (x, y) sample of a line chart.
type Point struct {
	X, Y float64
}

// Chart is backend-neutral chart data. All numbers are final: a backend only
// draws, it never recomputes statistics.
//
// Field use per kind:
//   - pie: Labels, Values (percentages, one decimal)
//   - bar: Labels, Values
//   - count: Labels (x categories), Series (hue names), Groups[hue][label] counts
//   - box: Labels, Groups[label] samples
//   - line: Points sorted by X
//   - heatmap: Labels (both axes), Matrix (row-major, len(Labels) square)
type Chart struct {
	Kind   ChartKind
	Title  string
	XLabel string
	YLabel string

	Labels []string
	Values []float64
	Series []string
	Groups [][]float64
	Points []Point
	Matrix [][]float64
}
