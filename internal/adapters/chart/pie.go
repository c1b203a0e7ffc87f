package chart

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/bft-labs/reportship/internal/domain"
)

// pieChart draws wedges clockwise from twelve o'clock, each labelled with
// its percentage to one decimal. Values are percentages of the whole table;
// when they sum to less than 100 the remainder is left unfilled.
type pieChart struct {
	labels []string
	values []float64
}

func drawPie(p *plot.Plot, c domain.Chart) error {
	if len(c.Labels) == 0 || len(c.Labels) != len(c.Values) {
		return errors.New("pie chart needs one value per label")
	}
	var total float64
	for _, v := range c.Values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("pie chart value %v is not a share", v)
		}
		total += v
	}
	if total == 0 {
		return errors.New("pie chart has no data")
	}

	pie := pieChart{labels: c.Labels, values: c.Values}
	p.Add(pie)
	p.HideAxes()
	for i, l := range c.Labels {
		p.Legend.Add(l, swatch{plotutil.Color(i)})
	}
	p.Legend.Top = true
	return nil
}

// Plot implements plot.Plotter.
func (pc pieChart) Plot(c draw.Canvas, plt *plot.Plot) {
	total := 100.0
	var sum float64
	for _, v := range pc.values {
		sum += v
	}
	if sum > total {
		total = sum
	}

	center := vg.Point{X: (c.Min.X + c.Max.X) / 2, Y: (c.Min.Y + c.Max.Y) / 2}
	radius := c.Size().X
	if h := c.Size().Y; h < radius {
		radius = h
	}
	radius = radius / 2 * 0.85

	sty := plt.Legend.TextStyle
	sty.XAlign = -0.5
	sty.YAlign = -0.5

	start := math.Pi / 2
	for i, v := range pc.values {
		sweep := 2 * math.Pi * v / total
		steps := int(math.Ceil(sweep / (2 * math.Pi) * 120))
		if steps < 2 {
			steps = 2
		}

		pts := []vg.Point{center}
		for s := 0; s <= steps; s++ {
			a := start - sweep*float64(s)/float64(steps)
			pts = append(pts, vg.Point{
				X: center.X + radius*vg.Length(math.Cos(a)),
				Y: center.Y + radius*vg.Length(math.Sin(a)),
			})
		}
		c.FillPolygon(plotutil.Color(i), pts)

		mid := start - sweep/2
		at := vg.Point{
			X: center.X + radius*0.6*vg.Length(math.Cos(mid)),
			Y: center.Y + radius*0.6*vg.Length(math.Sin(mid)),
		}
		c.FillText(sty, at, fmt.Sprintf("%.1f%%", v))

		start -= sweep
	}
}

// swatch is a legend thumbnail filled with one colour.
type swatch struct {
	color color.Color
}

// Thumbnail implements plot.Thumbnailer.
func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.color, pts)
}
