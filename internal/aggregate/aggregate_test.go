package aggregate

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/reportship/internal/cleaner"
	"github.com/bft-labs/reportship/internal/domain"
	"github.com/bft-labs/reportship/internal/loader"
)

func mustTable(t *testing.T, csv string) *domain.Table {
	t.Helper()
	raw, err := loader.Read(strings.NewReader(csv), loader.Options{})
	require.NoError(t, err)
	cleaned, err := cleaner.Clean(raw, cleaner.Options{Categorical: []string{"Weekend"}})
	require.NoError(t, err)
	return cleaned
}

const twoVisitors = "VisitorType,Weekend,PageValues\nNew,True,0\nReturning,False,10\n"

func TestAggregate_SplitFillsAbsentCells(t *testing.T) {
	tbl := mustTable(t, twoVisitors)

	agg, err := Aggregate(tbl, Request{
		GroupKeys:  []string{"VisitorType"},
		SplitKey:   "Weekend",
		Measures:   []string{"PageValues"},
		Statistics: []Statistic{Mean},
	})
	require.NoError(t, err)

	require.Equal(t, 2, agg.Len())
	assert.Equal(t, []string{"VisitorType", "False", "True"}, agg.Header())

	newRow, ok := agg.Find("New")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0}, newRow.Values)

	returning, ok := agg.Find("Returning")
	require.True(t, ok)
	assert.Equal(t, []float64{10, 0}, returning.Values)
}

func TestAggregate_CartesianGroupKeys(t *testing.T) {
	tbl := mustTable(t, twoVisitors)

	agg, err := Aggregate(tbl, Request{
		GroupKeys:  []string{"VisitorType", "Weekend"},
		Measures:   []string{"PageValues"},
		Statistics: []Statistic{Mean},
		Cartesian:  true,
	})
	require.NoError(t, err)
	require.Equal(t, 4, agg.Len())

	want := map[[2]string]float64{
		{"New", "False"}:       0,
		{"New", "True"}:        0,
		{"Returning", "False"}: 10,
		{"Returning", "True"}:  0,
	}
	for i := 0; i < agg.Len(); i++ {
		row := agg.Row(i)
		key := [2]string{row.Keys[0], row.Keys[1]}
		assert.Equal(t, want[key], row.Values[0], "cell %v", key)
	}
}

func TestAggregate_OnlyObservedKeys(t *testing.T) {
	tbl := mustTable(t, twoVisitors)

	agg, err := Aggregate(tbl, Request{
		GroupKeys:  []string{"VisitorType", "Weekend"},
		Measures:   []string{"PageValues"},
		Statistics: []Statistic{Mean},
	})
	require.NoError(t, err)
	require.Equal(t, 2, agg.Len())

	for i := 0; i < agg.Len(); i++ {
		keys := agg.Row(i).Keys
		found := false
		for r := 0; r < tbl.Len(); r++ {
			if tbl.At(r, 0).Text() == keys[0] && tbl.At(r, 1).Text() == keys[1] {
				found = true
			}
		}
		assert.True(t, found, "key %v not present in input", keys)
	}
}

func TestAggregate_FillMissing(t *testing.T) {
	tbl := mustTable(t, twoVisitors)

	agg, err := Aggregate(tbl, Request{
		GroupKeys:  []string{"VisitorType"},
		SplitKey:   "Weekend",
		Measures:   []string{"PageValues"},
		Statistics: []Statistic{Mean},
		Fill:       FillPolicy{Mode: FillMissing},
	})
	require.NoError(t, err)

	row, ok := agg.Find("New")
	require.True(t, ok)
	assert.True(t, math.IsNaN(row.Values[0]))
	assert.Equal(t, 0.0, row.Values[1])
}

func TestAggregate_StatisticsAndLabels(t *testing.T) {
	tbl := mustTable(t, "VisitorType,Weekend,PageValues,ExitRates\nA,True,2,0.1\nA,True,4,0.3\nB,False,6,0.5\n")

	agg, err := Aggregate(tbl, Request{
		GroupKeys:  []string{"VisitorType"},
		Measures:   []string{"PageValues", "ExitRates"},
		Statistics: []Statistic{Sum, Count},
	})
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"VisitorType", "sum_PageValues", "sum_ExitRates", "count_PageValues", "count_ExitRates"},
		agg.Header())

	a, ok := agg.Find("A")
	require.True(t, ok)
	assert.InDelta(t, 6, a.Values[0], 1e-9)
	assert.InDelta(t, 0.4, a.Values[1], 1e-9)
	assert.Equal(t, 2.0, a.Values[2])
}

func TestAggregate_TotalSortsDescendingWithMargins(t *testing.T) {
	tbl := mustTable(t, "VisitorType,Weekend,PageValues\nA,True,1\nB,True,8\nB,False,4\nC,False,3\n")

	agg, err := Aggregate(tbl, Request{
		GroupKeys:  []string{"VisitorType"},
		SplitKey:   "Weekend",
		Measures:   []string{"PageValues"},
		Statistics: []Statistic{Mean},
		Margins:    true,
		Total:      &Total{Name: "Total_Mean_PageValues", Statistic: Mean, Measure: "PageValues", Sort: true},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"VisitorType", "False", "True", GrandTotal, "Total_Mean_PageValues"}, agg.Header())
	require.Equal(t, 4, agg.Len())

	var order []string
	for i := 0; i < agg.Len(); i++ {
		order = append(order, agg.Row(i).Keys[0])
	}
	assert.Equal(t, []string{"B", "C", "A", GrandTotal}, order)

	b := agg.Row(0)
	assert.Equal(t, 12.0, b.Total)
	assert.Equal(t, 6.0, b.Values[2])

	margin := agg.Row(3)
	assert.InDelta(t, 3.5, margin.Values[0], 1e-9)
	assert.InDelta(t, 4.5, margin.Values[1], 1e-9)
	assert.InDelta(t, 4.0, margin.Values[2], 1e-9)
}

func TestAggregate_SchemaErrors(t *testing.T) {
	tbl := mustTable(t, twoVisitors)

	tests := []struct {
		name string
		req  Request
	}{
		{"missing group key", Request{GroupKeys: []string{"Nope"}, Measures: []string{"PageValues"}, Statistics: []Statistic{Mean}}},
		{"missing split key", Request{GroupKeys: []string{"VisitorType"}, SplitKey: "Nope", Measures: []string{"PageValues"}, Statistics: []Statistic{Mean}}},
		{"missing measure", Request{GroupKeys: []string{"VisitorType"}, Measures: []string{"Nope"}, Statistics: []Statistic{Mean}}},
		{"non-numeric measure", Request{GroupKeys: []string{"Weekend"}, Measures: []string{"VisitorType"}, Statistics: []Statistic{Mean}}},
		{"unknown statistic", Request{GroupKeys: []string{"VisitorType"}, Measures: []string{"PageValues"}, Statistics: []Statistic{"median"}}},
		{"no group keys", Request{Measures: []string{"PageValues"}, Statistics: []Statistic{Mean}}},
		{"total not an output", Request{
			GroupKeys: []string{"VisitorType"}, Measures: []string{"PageValues"}, Statistics: []Statistic{Mean},
			Total: &Total{Name: "T", Statistic: Sum, Measure: "PageValues"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(tbl, tt.req)
			require.ErrorIs(t, err, domain.ErrSchema)
		})
	}
}

func TestAggregate_MarginLabelCollision(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		margins bool
		wantErr bool
	}{
		{"group value", "VisitorType,Weekend,PageValues\nGrand Total,True,5\nNew,False,1\n", true, true},
		{"split value", "VisitorType,Weekend,PageValues\nNew,Grand Total,5\nNew,False,1\n", true, true},
		{"no margins", "VisitorType,Weekend,PageValues\nGrand Total,Grand Total,5\nNew,False,1\n", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, err := Aggregate(mustTable(t, tt.csv), Request{
				GroupKeys:  []string{"VisitorType"},
				SplitKey:   "Weekend",
				Measures:   []string{"PageValues"},
				Statistics: []Statistic{Sum},
				Margins:    tt.margins,
			})
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrSchema)
				assert.Contains(t, err.Error(), GrandTotal)
				return
			}
			require.NoError(t, err)
			row, ok := agg.Find(GrandTotal)
			require.True(t, ok)
			assert.Equal(t, []float64{0, 5}, row.Values)
		})
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	tbl := mustTable(t, "VisitorType,Weekend,PageValues\n")
	req := Request{
		GroupKeys:  []string{"VisitorType"},
		Measures:   []string{"PageValues"},
		Statistics: []Statistic{Mean},
		Margins:    true,
	}

	agg, err := Aggregate(tbl, req)
	require.NoError(t, err)
	assert.Equal(t, 0, agg.Len())

	req.RejectEmpty = true
	_, err = Aggregate(tbl, req)
	require.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestParseStatistic(t *testing.T) {
	st, err := ParseStatistic(" MEAN ")
	require.NoError(t, err)
	assert.Equal(t, Mean, st)

	_, err = ParseStatistic("mode")
	require.ErrorIs(t, err, domain.ErrSchema)
}
