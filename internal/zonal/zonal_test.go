package zonal

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/epigeo/geofeatures/internal/infrastructure/logging"
	"github.com/epigeo/geofeatures/internal/raster"
	"github.com/epigeo/geofeatures/internal/vector"
)

// testGrid builds a 4x4 raster over (0,0)-(4,4) with 1-unit cells and values
// 1..16 row by row from the top.
func testGrid() *raster.Grid {
	g := raster.NewGrid(4, 4, raster.NorthUp(0, 4, 1, 1))
	g.EPSG = vector.EPSGWGS84
	for i := range g.Data {
		g.Data[i] = float64(i + 1)
	}
	return g
}

func square(minX, minY, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY},
		{minX + size, minY},
		{minX + size, minY + size},
		{minX, minY + size},
		{minX, minY},
	}}
}

func collection(features ...vector.Feature) *vector.Collection {
	return &vector.Collection{EPSG: vector.EPSGWGS84, Features: features}
}

// The upper-left quadrant covers cells with values 1, 2, 5, 6.
func upperLeft() *vector.Collection {
	return collection(vector.Feature{Location: "ul", Geometry: square(0, 2, 2)})
}

func TestSummarizeStats(t *testing.T) {
	g := testGrid()

	tests := []struct {
		stat Stat
		want float64
	}{
		{Mean, 3.5},
		{Sum, 14},
		{Min, 1},
		{Max, 6},
		{Count, 4},
		{Median, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.stat), func(t *testing.T) {
			results, err := Summarize(g, upperLeft(), tt.stat, Options{})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "ul", results[0].Location)
			assert.InDelta(t, tt.want, results[0].Value, 1e-9)
		})
	}
}

func TestSummarizeStd(t *testing.T) {
	results, err := Summarize(testGrid(), upperLeft(), Std, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 2.3805, results[0].Value, 1e-3)
}

func TestSummarizeSkipsNoData(t *testing.T) {
	g := testGrid()
	g.SetNoData(-9)
	g.Set(0, 0, -9) // was 1

	results, err := Summarize(g, upperLeft(), Mean, Options{})
	require.NoError(t, err)
	assert.InDelta(t, (2.0+5+6)/3, results[0].Value, 1e-9)
}

func TestSummarizeEmptyPolygon(t *testing.T) {
	g := testGrid()
	far := collection(vector.Feature{Location: "far", Geometry: square(100, 100, 1)})

	results, err := Summarize(g, far, Mean, Options{})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(results[0].Value))

	results, err = Summarize(g, far, Count, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, results[0].Value)
}

func TestSummarizeUnknownStat(t *testing.T) {
	_, err := Summarize(testGrid(), upperLeft(), Stat("variance"), Options{})
	assert.ErrorIs(t, err, ErrUnknownStat)
}

func TestAllTouchedSelectsMoreCells(t *testing.T) {
	g := testGrid()
	// Small polygon between cell centers: no center inside, but it touches
	// cell corners.
	small := collection(vector.Feature{Location: "s", Geometry: square(0.6, 2.6, 0.8)})

	center, err := Summarize(g, small, Count, Options{AllTouched: false})
	require.NoError(t, err)
	touched, err := Summarize(g, small, Count, Options{AllTouched: true})
	require.NoError(t, err)

	assert.Equal(t, 0.0, center[0].Value)
	assert.Greater(t, touched[0].Value, 0.0)
}

func TestSummarizeCategoricalCounts(t *testing.T) {
	g := raster.NewGrid(4, 4, raster.NorthUp(0, 4, 1, 1))
	g.EPSG = vector.EPSGWGS84
	// Left half category 10, right half category 20.
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			if col < 2 {
				g.Set(row, col, 10)
			} else {
				g.Set(row, col, 20)
			}
		}
	}

	polys := collection(
		vector.Feature{Location: "left", Geometry: square(0, 0, 2)},
		vector.Feature{Location: "right", Geometry: square(2, 0, 2)},
	)

	results, err := SummarizeCategorical(g, polys, CategoricalOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Categories absent from a polygon are back-filled with zero.
	assert.Equal(t, 4.0, results[0].Values["10"])
	assert.Equal(t, 0.0, results[0].Values["20"])
	assert.Equal(t, 0.0, results[1].Values["10"])
	assert.Equal(t, 4.0, results[1].Values["20"])
}

func TestSummarizeCategoricalProportionAccountsForNoData(t *testing.T) {
	g := raster.NewGrid(2, 2, raster.NorthUp(0, 2, 1, 1))
	g.EPSG = vector.EPSGWGS84
	g.SetNoData(0)
	g.Set(0, 0, 7)
	g.Set(0, 1, 7)
	g.Set(1, 0, 7)
	g.Set(1, 1, 0) // nodata

	polys := collection(vector.Feature{Location: "all", Geometry: square(0, 0, 2)})

	results, err := SummarizeCategorical(g, polys, CategoricalOptions{Proportion: true})
	require.NoError(t, err)

	// Three of four cells are category 7; the nodata cell stays in the
	// denominator, so the proportions do not sum to one.
	assert.InDelta(t, 0.75, results[0].Values["7"], 1e-9)
}

func TestSummarizeCategoricalValueMap(t *testing.T) {
	g := raster.NewGrid(2, 2, raster.NorthUp(0, 2, 1, 1))
	g.EPSG = vector.EPSGWGS84
	for i := range g.Data {
		g.Data[i] = 40
	}

	polys := collection(vector.Feature{Location: "all", Geometry: square(0, 0, 2)})

	results, err := SummarizeCategorical(g, polys, CategoricalOptions{
		ValueMap: map[float64]string{40: "cropland"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4.0, results[0].Values["cropland"])
}

func TestSummarizeWarnsOnMissingCRS(t *testing.T) {
	g := testGrid()
	g.EPSG = 0

	core, logs := observer.New(zapcore.WarnLevel)
	log := &logging.Logger{Logger: zap.New(core)}

	results, err := Summarize(g, upperLeft(), Mean, Options{Logger: log})
	require.NoError(t, err)
	assert.InDelta(t, 3.5, results[0].Value, 1e-9, "summary proceeds under the WGS84 assumption")

	entries := logs.FilterMessageSnippet("assuming WGS84").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, vector.EPSGWGS84, entries[0].ContextMap()["polygons_epsg"])
}
