// Package chart implements ports.ChartBackend with gonum/plot, encoding PNG.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/bft-labs/reportship/internal/domain"
)

// Default image size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

// Backend draws charts as PNG images.
type Backend struct {
	width, height vg.Length
}

// NewBackend creates a Backend. Zero sizes use the defaults.
func NewBackend(width, height vg.Length) *Backend {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Backend{width: width, height: height}
}

// Draw implements ports.ChartBackend.
func (b *Backend) Draw(c domain.Chart) ([]byte, string, error) {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = c.YLabel

	var err error
	switch c.Kind {
	case domain.ChartPie:
		err = drawPie(p, c)
	case domain.ChartBar:
		err = drawBar(p, c)
	case domain.ChartCount:
		err = drawCount(p, c)
	case domain.ChartBox:
		err = drawBox(p, c)
	case domain.ChartLine:
		err = drawLine(p, c)
	case domain.ChartHeatmap:
		err = drawHeatmap(p, c)
	default:
		err = fmt.Errorf("unsupported chart kind %q", c.Kind)
	}
	if err != nil {
		return nil, "", fmt.Errorf("chart %s: %w", c.Kind, err)
	}

	w, err := p.WriterTo(b.width, b.height, "png")
	if err != nil {
		return nil, "", fmt.Errorf("chart %s: %w", c.Kind, err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, "", fmt.Errorf("chart %s: encode: %w", c.Kind, err)
	}
	return buf.Bytes(), domain.MIMEPNG, nil
}

func drawBar(p *plot.Plot, c domain.Chart) error {
	if len(c.Labels) == 0 || len(c.Labels) != len(c.Values) {
		return errors.New("bar chart needs one value per label")
	}
	bars, err := plotter.NewBarChart(plotter.Values(c.Values), vg.Points(30))
	if err != nil {
		return err
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(c.Labels...)
	return nil
}

func drawCount(p *plot.Plot, c domain.Chart) error {
	if len(c.Labels) == 0 || len(c.Series) == 0 || len(c.Groups) != len(c.Series) {
		return errors.New("count chart needs one group per series")
	}
	width := vg.Points(20)
	n := len(c.Series)
	for i, counts := range c.Groups {
		if len(counts) != len(c.Labels) {
			return fmt.Errorf("series %q has %d counts, want %d", c.Series[i], len(counts), len(c.Labels))
		}
		bars, err := plotter.NewBarChart(plotter.Values(counts), width)
		if err != nil {
			return err
		}
		bars.Color = plotutil.Color(i)
		bars.LineStyle.Width = 0
		bars.Offset = vg.Length(float64(i)-float64(n-1)/2) * width
		p.Add(bars)
		p.Legend.Add(c.Series[i], bars)
	}
	p.Legend.Top = true
	p.NominalX(c.Labels...)
	return nil
}

func drawBox(p *plot.Plot, c domain.Chart) error {
	if len(c.Labels) == 0 || len(c.Labels) != len(c.Groups) {
		return errors.New("box chart needs one sample group per label")
	}
	for i, samples := range c.Groups {
		if len(samples) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(30), float64(i), plotter.Values(samples))
		if err != nil {
			return err
		}
		box.FillColor = plotutil.Color(i)
		p.Add(box)
	}
	p.NominalX(c.Labels...)
	return nil
}

func drawLine(p *plot.Plot, c domain.Chart) error {
	if len(c.Points) == 0 {
		return errors.New("line chart has no points")
	}
	xys := make(plotter.XYs, len(c.Points))
	for i, pt := range c.Points {
		xys[i].X, xys[i].Y = pt.X, pt.Y
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.Color = plotutil.Color(0)
	p.Add(line, plotter.NewGrid())
	return nil
}

// corrGrid exposes a square matrix as plotter.GridXYZ.
type corrGrid [][]float64

func (g corrGrid) Dims() (c, r int)   { return len(g), len(g) }
func (g corrGrid) Z(c, r int) float64 { return g[r][c] }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

func drawHeatmap(p *plot.Plot, c domain.Chart) error {
	n := len(c.Labels)
	if n < 2 || len(c.Matrix) != n {
		return errors.New("heatmap needs a square matrix of at least two columns")
	}
	for _, row := range c.Matrix {
		if len(row) != n {
			return errors.New("heatmap matrix is not square")
		}
	}

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)
	hm := plotter.NewHeatMap(corrGrid(c.Matrix), cm.Palette(255))
	hm.Min, hm.Max = -1, 1
	p.Add(hm)

	var cells plotter.XYLabels
	for r := 0; r < n; r++ {
		for col := 0; col < n; col++ {
			cells.XYs = append(cells.XYs, plotter.XY{X: float64(col), Y: float64(r)})
			cells.Labels = append(cells.Labels, fmt.Sprintf("%.2f", c.Matrix[r][col]))
		}
	}
	labels, err := plotter.NewLabels(cells)
	if err != nil {
		return err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Color = color.Black
		labels.TextStyle[i].XAlign = -0.5
		labels.TextStyle[i].YAlign = -0.5
	}
	p.Add(labels)

	p.NominalX(c.Labels...)
	p.NominalY(c.Labels...)
	return nil
}
