package costpath

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"

	"github.com/epigeo/geofeatures/internal/distance"
	"github.com/epigeo/geofeatures/internal/raster"
)

// HexConfig configures least-cost distances between H3 hexagons.
type HexConfig struct {
	// Resolution of the search endpoints. When it matches the resolution of
	// the node cells, costs run between cell centers; when finer, the
	// minimum cost over all child-cell centers of both endpoints is used.
	Resolution int
	// KDistance is the neighbour ring for which distances will be needed.
	// It bounds redundant work for callers that iterate rings; it must be
	// at least 1.
	KDistance int
}

// NewHexLeastCost builds an edge cache that computes least-cost distances
// over the given cost raster between H3 hexagons. Node names are H3 cell
// identifiers, all at the same resolution.
func NewHexLeastCost(cells []string, costRaster *raster.Grid, cfg HexConfig) (*distance.EdgeCache, error) {
	if len(cells) == 0 {
		return nil, errors.New("need at least one cell")
	}
	if cfg.KDistance < 1 {
		return nil, errors.New("k distance must be >= 1")
	}

	base := h3.Cell(h3.IndexFromString(cells[0]))
	if !base.IsValid() {
		return nil, fmt.Errorf("invalid H3 cell %q", cells[0])
	}
	baseResolution := base.Resolution()
	if cfg.Resolution < baseResolution {
		return nil, fmt.Errorf("resolution must be at least as fine as the node cells (>= %d)", baseResolution)
	}

	surface, err := NewSurface(costRaster)
	if err != nil {
		return nil, err
	}

	calc := &hexCalculator{
		surface:        surface,
		resolution:     cfg.Resolution,
		baseResolution: baseResolution,
	}
	return distance.NewEdgeCache(cells, calc)
}

type hexCalculator struct {
	surface        *Surface
	resolution     int
	baseResolution int
}

// Calculate returns the least cost between two hexagons. At matching
// resolution this is the cost between cell centers. At finer resolution all
// child centers of the destination are targeted in one search, since they
// are encountered while expanding from the origin anyway, and the minimum
// is returned.
func (c *hexCalculator) Calculate(from, to string) (float64, error) {
	fromCell := h3.Cell(h3.IndexFromString(from))
	toCell := h3.Cell(h3.IndexFromString(to))
	if !fromCell.IsValid() {
		return 0, fmt.Errorf("invalid H3 cell %q", from)
	}
	if !toCell.IsValid() {
		return 0, fmt.Errorf("invalid H3 cell %q", to)
	}

	if c.resolution == c.baseResolution {
		return c.surface.MinGeoCost(
			[]orb.Point{cellPoint(fromCell)},
			[]orb.Point{cellPoint(toCell)},
		)
	}

	return c.surface.MinGeoCost(
		childCenters(fromCell, c.resolution),
		childCenters(toCell, c.resolution),
	)
}

func cellPoint(c h3.Cell) orb.Point {
	ll := h3.CellToLatLng(c)
	return orb.Point{ll.Lng, ll.Lat}
}

func childCenters(c h3.Cell, resolution int) []orb.Point {
	children := c.Children(resolution)
	points := make([]orb.Point, len(children))
	for i, child := range children {
		points[i] = cellPoint(child)
	}
	return points
}
