package raster

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrOutOfBounds = errors.New("raster index out of bounds")
	ErrEmptyClip   = errors.New("clip window does not intersect raster")
)

// Affine holds rasterio-style geotransform coefficients mapping pixel space
// to world space:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// For north-up rasters B and D are zero, A is the pixel width and E the
// (negative) pixel height. C and F locate the outer corner of the top-left
// pixel.
type Affine struct {
	A, B, C, D, E, F float64
}

// NorthUp returns the usual north-up transform for a raster whose top-left
// corner is at (originX, originY) with the given pixel sizes.
func NorthUp(originX, originY, pixelWidth, pixelHeight float64) Affine {
	return Affine{A: pixelWidth, C: originX, E: -pixelHeight, F: originY}
}

// XY returns the world coordinates of the center of the cell at (row, col).
func (t Affine) XY(row, col int) (x, y float64) {
	fc := float64(col) + 0.5
	fr := float64(row) + 0.5
	return t.A*fc + t.B*fr + t.C, t.D*fc + t.E*fr + t.F
}

// RowCol returns the cell containing the world coordinate (x, y).
func (t Affine) RowCol(x, y float64) (row, col int) {
	det := t.A*t.E - t.B*t.D
	fc := (t.E*(x-t.C) - t.B*(y-t.F)) / det
	fr := (t.A*(y-t.F) - t.D*(x-t.C)) / det
	return int(math.Floor(fr)), int(math.Floor(fc))
}

// Bounds holds a rectangular extent in world coordinates.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether (x, y) falls inside b.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Grid is a dense single-band raster with georeferencing.
type Grid struct {
	Data      []float64 // row-major, Height*Width values
	Width     int
	Height    int
	Transform Affine
	EPSG      int // 0 when the source did not declare a CRS

	NoData    float64
	HasNoData bool
}

// NewGrid allocates a zero-filled grid.
func NewGrid(width, height int, transform Affine) *Grid {
	return &Grid{
		Data:      make([]float64, width*height),
		Width:     width,
		Height:    height,
		Transform: transform,
	}
}

// At returns the value at (row, col).
func (g *Grid) At(row, col int) float64 {
	return g.Data[row*g.Width+col]
}

// Set stores v at (row, col).
func (g *Grid) Set(row, col int, v float64) {
	g.Data[row*g.Width+col] = v
}

// InBounds reports whether (row, col) addresses a cell.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.Height && col >= 0 && col < g.Width
}

// IsNoData reports whether v is missing: NaN, or equal to the declared
// nodata value.
func (g *Grid) IsNoData(v float64) bool {
	if math.IsNaN(v) {
		return true
	}
	return g.HasNoData && v == g.NoData
}

// SetNoData declares the nodata value.
func (g *Grid) SetNoData(v float64) {
	g.NoData = v
	g.HasNoData = true
}

// Bounds returns the grid's extent in world coordinates. Only north-up
// transforms are supported.
func (g *Grid) Bounds() Bounds {
	x0 := g.Transform.C
	y0 := g.Transform.F
	x1 := x0 + g.Transform.A*float64(g.Width)
	y1 := y0 + g.Transform.E*float64(g.Height)
	return Bounds{
		MinX: math.Min(x0, x1),
		MinY: math.Min(y0, y1),
		MaxX: math.Max(x0, x1),
		MaxY: math.Max(y0, y1),
	}
}

// Clip returns a new grid restricted to the cells whose centers fall inside
// b. The clip is aligned to the source cell grid.
func (g *Grid) Clip(b Bounds) (*Grid, error) {
	r0, c0 := g.Transform.RowCol(b.MinX, b.MaxY)
	r1, c1 := g.Transform.RowCol(b.MaxX, b.MinY)

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

	if r0 > r1 || c0 > c1 {
		return nil, ErrEmptyClip
	}

	width := c1 - c0 + 1
	height := r1 - r0 + 1

	out := &Grid{
		Data:      make([]float64, width*height),
		Width:     width,
		Height:    height,
		EPSG:      g.EPSG,
		NoData:    g.NoData,
		HasNoData: g.HasNoData,
		Transform: Affine{
			A: g.Transform.A,
			B: g.Transform.B,
			D: g.Transform.D,
			E: g.Transform.E,
			C: g.Transform.A*float64(c0) + g.Transform.B*float64(r0) + g.Transform.C,
			F: g.Transform.D*float64(c0) + g.Transform.E*float64(r0) + g.Transform.F,
		},
	}

	for r := 0; r < height; r++ {
		src := (r0+r)*g.Width + c0
		copy(out.Data[r*width:(r+1)*width], g.Data[src:src+width])
	}

	return out, nil
}

// Scale multiplies every non-missing cell by f in place.
func (g *Grid) Scale(f float64) {
	for i, v := range g.Data {
		if !g.IsNoData(v) {
			g.Data[i] = v * f
		}
	}
}

// Validate checks structural consistency.
func (g *Grid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("invalid raster dimensions %dx%d", g.Width, g.Height)
	}
	if len(g.Data) != g.Width*g.Height {
		return fmt.Errorf("raster data length %d does not match %dx%d", len(g.Data), g.Width, g.Height)
	}
	return nil
}
