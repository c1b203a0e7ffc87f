package chart

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/recorder"

	"github.com/bft-labs/reportship/internal/domain"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestBackend_DrawsEveryKind(t *testing.T) {
	charts := []domain.Chart{
		{Kind: domain.ChartPie, Title: "Visitor Type", Labels: []string{"New", "Returning"}, Values: []float64{13.7, 86.3}},
		{Kind: domain.ChartBar, Title: "Avg PageValues", Labels: []string{"New", "Returning"}, Values: []float64{10.8, 5.1}},
		{Kind: domain.ChartCount, Labels: []string{"New", "Returning"}, Series: []string{"False", "True"}, Groups: [][]float64{{3, 9}, {1, 4}}},
		{Kind: domain.ChartBox, Labels: []string{"False", "True"}, Groups: [][]float64{{0, 1, 2, 8}, {5, 12, 30}}},
		{Kind: domain.ChartLine, Points: []domain.Point{{X: 0.01, Y: 0}, {X: 0.05, Y: 0.02}, {X: 0.2, Y: 0.2}}},
		{Kind: domain.ChartHeatmap, Labels: []string{"a", "b"}, Matrix: [][]float64{{1, -0.3}, {-0.3, 1}}},
	}

	b := NewBackend(0, 0)
	for _, c := range charts {
		t.Run(string(c.Kind), func(t *testing.T) {
			data, mime, err := b.Draw(c)
			require.NoError(t, err)
			assert.Equal(t, domain.MIMEPNG, mime)
			assert.True(t, bytes.HasPrefix(data, pngMagic), "not a PNG")
		})
	}
}

func TestBackend_Deterministic(t *testing.T) {
	c := domain.Chart{Kind: domain.ChartBar, Labels: []string{"x", "y"}, Values: []float64{1, 2}}
	b := NewBackend(4*72, 3*72)

	first, _, err := b.Draw(c)
	require.NoError(t, err)
	second, _, err := b.Draw(c)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBackend_RejectsMalformedData(t *testing.T) {
	b := NewBackend(0, 0)
	bad := []domain.Chart{
		{Kind: "radar"},
		{Kind: domain.ChartPie, Labels: []string{"a"}, Values: []float64{0}},
		{Kind: domain.ChartBar, Labels: []string{"a", "b"}, Values: []float64{1}},
		{Kind: domain.ChartHeatmap, Labels: []string{"a"}, Matrix: [][]float64{{1}}},
		{Kind: domain.ChartLine},
	}
	for _, c := range bad {
		_, _, err := b.Draw(c)
		assert.Error(t, err, "kind %s", c.Kind)
	}
}

func pieLabels(t *testing.T, values []float64) []string {
	t.Helper()
	p := plot.New()
	labels := make([]string, len(values))
	for i := range labels {
		labels[i] = fmt.Sprintf("category %d", i)
	}
	require.NoError(t, drawPie(p, domain.Chart{Kind: domain.ChartPie, Labels: labels, Values: values}))

	var rec recorder.Canvas
	p.Draw(draw.NewCanvas(&rec, 4*vg.Inch, 4*vg.Inch))

	var got []string
	for _, a := range rec.Actions {
		if fs, ok := a.(*recorder.FillString); ok && strings.HasSuffix(fs.String, "%") {
			got = append(got, fs.String)
		}
	}
	return got
}

func TestPie_LabelsShowGivenShares(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   []string
	}{
		{"shares summing to 100", []float64{13.7, 86.3}, []string{"13.7%", "86.3%"}},
		{"rows with missing category", []float64{33.3, 33.3}, []string{"33.3%", "33.3%"}},
		{"rounding already applied", []float64{66.7, 33.3}, []string{"66.7%", "33.3%"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pieLabels(t, tt.values))
		})
	}
}
