package zonal

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/epigeo/geofeatures/internal/infrastructure/logging"
	"github.com/epigeo/geofeatures/internal/infrastructure/monitoring"
	"github.com/epigeo/geofeatures/internal/raster"
	"github.com/epigeo/geofeatures/internal/vector"
)

// Stat identifies a summary statistic.
type Stat string

const (
	Mean   Stat = "mean"
	Sum    Stat = "sum"
	Min    Stat = "min"
	Max    Stat = "max"
	Count  Stat = "count"
	Median Stat = "median"
	Std    Stat = "std"
)

// ValidStats lists the supported summary statistics.
var ValidStats = []Stat{Mean, Sum, Min, Max, Count, Median, Std}

var ErrUnknownStat = errors.New("unknown summary statistic")

// Options controls a zonal summary.
type Options struct {
	// AllTouched includes every cell touched by a polygon rather than only
	// cells whose centers fall inside it.
	AllTouched bool
	Logger     *logging.Logger
	Metrics    *monitoring.Metrics
}

// Result is the summary value for one polygon.
type Result struct {
	Location string
	Value    float64
}

// Summarize computes a per-polygon summary of raster values. Polygons are
// reprojected to the raster's CRS first; missing cells are excluded.
// Polygons covering no valid cells yield NaN (except Count, which yields 0).
func Summarize(g *raster.Grid, polygons *vector.Collection, statName Stat, opts Options) ([]Result, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if !validStat(statName) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStat, statName)
	}

	log := logging.OrNop(opts.Logger)
	adapted, err := adaptCRS(polygons, g, log)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	visited := 0

	results := make([]Result, len(adapted.Features))
	for i, f := range adapted.Features {
		var values []float64
		n := forEachCell(g, f.Geometry, opts.AllTouched, func(v float64) {
			if !g.IsNoData(v) {
				values = append(values, v)
			}
		})
		visited += n

		results[i] = Result{
			Location: f.Location,
			Value:    apply(statName, values),
		}
	}

	if opts.Metrics != nil {
		opts.Metrics.ObserveSummary("continuous", time.Since(start), visited)
	}
	return results, nil
}

// CategoricalOptions controls a categorical zonal summary.
type CategoricalOptions struct {
	// ValueMap maps raster values to labels. Unmapped values keep their
	// numeric representation.
	ValueMap map[float64]string
	// Proportion returns the fraction of each polygon covered by each
	// category instead of cell counts. Nodata and NaN cells count toward
	// the denominator, so proportions may sum to less than one.
	Proportion bool
	AllTouched bool
	Logger     *logging.Logger
	Metrics    *monitoring.Metrics
}

// CategoricalResult holds per-category values for one polygon.
type CategoricalResult struct {
	Location string
	Values   map[string]float64
}

// SummarizeCategorical counts occurrences of each raster category within
// each polygon. Categories present anywhere in the collection are reported
// for every polygon, back-filled with zero.
func SummarizeCategorical(g *raster.Grid, polygons *vector.Collection, opts CategoricalOptions) ([]CategoricalResult, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	log := logging.OrNop(opts.Logger)
	adapted, err := adaptCRS(polygons, g, log)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	visited := 0

	type polygonCounts struct {
		categories map[float64]float64
		valid      float64
		nodata     float64
		nan        float64
	}

	counts := make([]polygonCounts, len(adapted.Features))
	seen := make(map[float64]struct{})

	for i, f := range adapted.Features {
		pc := polygonCounts{categories: make(map[float64]float64)}
		n := forEachCell(g, f.Geometry, opts.AllTouched, func(v float64) {
			switch {
			case math.IsNaN(v):
				pc.nan++
			case g.HasNoData && v == g.NoData:
				pc.nodata++
			default:
				pc.categories[v]++
				pc.valid++
				seen[v] = struct{}{}
			}
		})
		visited += n
		counts[i] = pc
	}

	categories := make([]float64, 0, len(seen))
	for v := range seen {
		categories = append(categories, v)
	}
	sort.Float64s(categories)

	results := make([]CategoricalResult, len(adapted.Features))
	for i, f := range adapted.Features {
		values := make(map[string]float64, len(categories))
		total := counts[i].valid + counts[i].nodata + counts[i].nan

		for _, cat := range categories {
			v := counts[i].categories[cat]
			if opts.Proportion {
				if total > 0 {
					v /= total
				} else {
					v = 0
				}
			}
			values[label(cat, opts.ValueMap)] = v
		}
		results[i] = CategoricalResult{Location: f.Location, Values: values}
	}

	if opts.Metrics != nil {
		opts.Metrics.ObserveSummary("categorical", time.Since(start), visited)
	}
	return results, nil
}

// adaptCRS reprojects polygons to the raster's CRS. A raster with no
// declared CRS is assumed WGS84, with a warning.
func adaptCRS(polygons *vector.Collection, g *raster.Grid, log *logging.Logger) (*vector.Collection, error) {
	epsg := g.EPSG
	if epsg == 0 {
		log.Warn("raster does not specify a CRS, assuming WGS84",
			zap.Int("polygons_epsg", polygons.EPSG))
		epsg = vector.EPSGWGS84
	}
	adapted, err := polygons.ToCRS(epsg)
	if err != nil {
		return nil, fmt.Errorf("adapt polygons to raster CRS: %w", err)
	}
	return adapted, nil
}

// forEachCell visits every raster cell selected by the geometry and returns
// the number of cells inspected. With allTouched, a cell is selected when
// its center or any corner lies inside the geometry; otherwise only the
// center counts.
func forEachCell(g *raster.Grid, geom orb.Geometry, allTouched bool, visit func(v float64)) int {
	bound := geom.Bound()

	r0, c0 := g.Transform.RowCol(bound.Min[0], bound.Max[1])
	r1, c1 := g.Transform.RowCol(bound.Max[0], bound.Min[1])
	if r0 > r1 {
		r0, r1 = r1, r0
	}
	if c0 > c1 {
		c0, c1 = c1, c0
	}
	r0 = max(r0, 0)
	c0 = max(c0, 0)
	r1 = min(r1, g.Height-1)
	c1 = min(c1, g.Width-1)

	inspected := 0
	halfW := g.Transform.A / 2
	halfH := g.Transform.E / 2

	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			inspected++
			x, y := g.Transform.XY(row, col)

			selected := vector.Contains(geom, orb.Point{x, y})
			if !selected && allTouched {
				corners := [4]orb.Point{
					{x - halfW, y - halfH},
					{x + halfW, y - halfH},
					{x - halfW, y + halfH},
					{x + halfW, y + halfH},
				}
				for _, corner := range corners {
					if vector.Contains(geom, corner) {
						selected = true
						break
					}
				}
			}
			if selected {
				visit(g.At(row, col))
			}
		}
	}
	return inspected
}

func apply(statName Stat, values []float64) float64 {
	if len(values) == 0 {
		if statName == Count {
			return 0
		}
		return math.NaN()
	}

	switch statName {
	case Mean:
		return stat.Mean(values, nil)
	case Sum:
		return floats.Sum(values)
	case Min:
		return floats.Min(values)
	case Max:
		return floats.Max(values)
	case Count:
		return float64(len(values))
	case Median:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	case Std:
		if len(values) < 2 {
			return math.NaN()
		}
		return stat.StdDev(values, nil)
	default:
		return math.NaN()
	}
}

func label(v float64, valueMap map[float64]string) string {
	if name, ok := valueMap[v]; ok {
		return name
	}
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

func validStat(s Stat) bool {
	for _, v := range ValidStats {
		if v == s {
			return true
		}
	}
	return false
}
