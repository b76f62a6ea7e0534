package vector

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// GridOptions controls GenerateGrid.
type GridOptions struct {
	// ValueProperty names the property each cell is initialized with.
	// Defaults to "value".
	ValueProperty string
	// FillValue is the initial value of each cell. May be nil.
	FillValue interface{}
}

// GenerateGrid creates a grid of square polygons covering the total bounds
// of the collection. Cell size is in the units of the collection's CRS; the
// last row and column may extend past the bounds so the cover is complete.
func GenerateGrid(c *Collection, cellSize float64, opts GridOptions) (*Collection, error) {
	if cellSize <= 0 {
		return nil, errors.New("cell size must be positive")
	}
	if opts.ValueProperty == "" {
		opts.ValueProperty = "value"
	}

	bound, err := c.TotalBounds()
	if err != nil {
		return nil, err
	}

	out := &Collection{EPSG: c.EPSG}
	i := 0
	for y := bound.Min[1]; y < bound.Max[1]; y += cellSize {
		for x := bound.Min[0]; x < bound.Max[0]; x += cellSize {
			cell := orb.Polygon{orb.Ring{
				{x, y},
				{x + cellSize, y},
				{x + cellSize, y + cellSize},
				{x, y + cellSize},
				{x, y},
			}}
			out.Features = append(out.Features, Feature{
				Location:   fmt.Sprintf("cell_%d", i),
				Geometry:   cell,
				Properties: map[string]interface{}{opts.ValueProperty: opts.FillValue},
			})
			i++
		}
	}
	return out, nil
}
