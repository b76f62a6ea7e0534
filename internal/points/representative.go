// Package points places representative points for polygons when parts of
// the landscape are unusable, such as areas above an altitude threshold.
package points

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/epigeo/geofeatures/internal/infrastructure/logging"
	"github.com/epigeo/geofeatures/internal/raster"
	"github.com/epigeo/geofeatures/internal/vector"
)

// maxRounds caps the shift search; exceeding it means the thresholded area
// around some polygon is larger than any plausible shift.
const maxRounds = 100000

// Options controls FindRepresentative.
type Options struct {
	// Increment is the number of raster cells each failed point is shifted
	// by per round. Defaults to 1.
	Increment int
	Logger    *logging.Logger
}

// FindRepresentative returns one point per polygon, guaranteed to start
// inside the polygon and to end below any altitude threshold. Thresholded
// cells are marked in the altitude raster with negative or +Inf values.
// Points landing on a thresholded cell are shifted along the four cell axes
// toward the highest valid neighbour, with the shift growing every round.
//
// Because shifting snaps to cell centers, even valid points move slightly
// to the center of their cell. Results are returned in the polygons' CRS.
func FindRepresentative(polygons *vector.Collection, altitude *raster.Grid, opts Options) (*vector.Collection, error) {
	if err := altitude.Validate(); err != nil {
		return nil, err
	}
	increment := opts.Increment
	if increment == 0 {
		increment = 1
	}
	if increment < 0 {
		return nil, fmt.Errorf("increment must be positive, got %d", increment)
	}
	log := logging.OrNop(opts.Logger)

	rasterEPSG := altitude.EPSG
	if rasterEPSG == 0 {
		log.Warn("altitude raster does not specify a CRS, assuming WGS84",
			zap.Int("polygons_epsg", polygons.EPSG))
		rasterEPSG = vector.EPSGWGS84
	}

	toRaster, err := vector.NewTransformer(polygons.EPSG, rasterEPSG)
	if err != nil {
		return nil, err
	}
	fromRaster, err := vector.NewTransformer(rasterEPSG, polygons.EPSG)
	if err != nil {
		return nil, err
	}

	// Altitude thresholds may apply outside the polygons too, so anchor
	// points must start inside each polygon rather than at centroids.
	type anchor struct {
		row, col int
		value    float64
	}

	anchors := make([]anchor, len(polygons.Features))
	for i, f := range polygons.Features {
		p, err := vector.RepresentativePoint(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("polygon %q: %w", f.Location, err)
		}
		rp := toRaster(p)

		row, col := altitude.Transform.RowCol(rp[0], rp[1])
		if !altitude.InBounds(row, col) {
			return nil, fmt.Errorf("polygon %q: representative point falls outside the altitude raster", f.Location)
		}
		anchors[i] = anchor{row: row, col: col, value: valueAt(altitude, row, col)}
	}

	shift := increment
	for round := 0; round < maxRounds && anyInvalid(anchors, func(a anchor) bool { return a.value < 0 }); round++ {
		for i := range anchors {
			if anchors[i].value >= 0 {
				continue
			}

			row, col := anchors[i].row, anchors[i].col
			candidates := [4]struct{ row, col int }{
				{row, col - shift},
				{row, col + shift},
				{row - shift, col},
				{row + shift, col},
			}

			bestValue := math.Inf(-1)
			best := -1
			for ci, c := range candidates {
				if !altitude.InBounds(c.row, c.col) {
					continue
				}
				if v := valueAt(altitude, c.row, c.col); v > bestValue {
					bestValue = v
					best = ci
				}
			}

			if best >= 0 && bestValue > 0 {
				anchors[i] = anchor{
					row:   candidates[best].row,
					col:   candidates[best].col,
					value: bestValue,
				}
			}
		}
		shift += increment
	}

	if anyInvalid(anchors, func(a anchor) bool { return a.value < 0 }) {
		return nil, fmt.Errorf("some points remain in thresholded areas after %d rounds", maxRounds)
	}

	out := &vector.Collection{EPSG: polygons.EPSG, Features: make([]vector.Feature, len(polygons.Features))}
	for i, f := range polygons.Features {
		x, y := altitude.Transform.XY(anchors[i].row, anchors[i].col)
		out.Features[i] = vector.Feature{
			Location:   f.Location,
			Geometry:   fromRaster(orb.Point{x, y}),
			Properties: f.Properties,
		}
	}
	return out, nil
}

// valueAt reads a cell, collapsing +Inf thresholds to -1 so a single "is
// negative" test identifies unusable cells.
func valueAt(g *raster.Grid, row, col int) float64 {
	v := g.At(row, col)
	if math.IsInf(v, 1) {
		return -1
	}
	return v
}

func anyInvalid[T any](items []T, pred func(T) bool) bool {
	for _, item := range items {
		if pred(item) {
			return true
		}
	}
	return false
}
