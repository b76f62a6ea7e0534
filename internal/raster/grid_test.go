package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffineRoundTrip(t *testing.T) {
	// 0.1 degree cells, top-left corner at (-10, 60).
	tr := NorthUp(-10, 60, 0.1, 0.1)

	x, y := tr.XY(0, 0)
	assert.InDelta(t, -9.95, x, 1e-9)
	assert.InDelta(t, 59.95, y, 1e-9)

	row, col := tr.RowCol(x, y)
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)

	row, col = tr.RowCol(-8.01, 58.99)
	assert.Equal(t, 10, row)
	assert.Equal(t, 19, col)
}

func TestGridNoData(t *testing.T) {
	g := NewGrid(2, 2, NorthUp(0, 2, 1, 1))
	g.SetNoData(-9999)

	assert.True(t, g.IsNoData(-9999))
	assert.True(t, g.IsNoData(math.NaN()))
	assert.False(t, g.IsNoData(0))
}

func TestGridBounds(t *testing.T) {
	g := NewGrid(10, 5, NorthUp(100, 50, 1, 2))

	b := g.Bounds()
	assert.Equal(t, 100.0, b.MinX)
	assert.Equal(t, 110.0, b.MaxX)
	assert.Equal(t, 50.0, b.MaxY)
	assert.Equal(t, 40.0, b.MinY)
}

func TestGridClip(t *testing.T) {
	g := NewGrid(10, 10, NorthUp(0, 10, 1, 1))
	for row := 0; row < 10; row++ {
		for col := 0; col < 10; col++ {
			g.Set(row, col, float64(row*10+col))
		}
	}

	clipped, err := g.Clip(Bounds{MinX: 2.5, MinY: 5.5, MaxX: 4.5, MaxY: 7.5})
	require.NoError(t, err)

	assert.Equal(t, 3, clipped.Width)
	assert.Equal(t, 3, clipped.Height)
	// Top-left of the clip is row 2, col 2 of the source.
	assert.Equal(t, g.At(2, 2), clipped.At(0, 0))

	// Cell centers must be preserved.
	x0, y0 := clipped.Transform.XY(0, 0)
	x1, y1 := g.Transform.XY(2, 2)
	assert.InDelta(t, x1, x0, 1e-9)
	assert.InDelta(t, y1, y0, 1e-9)
}

func TestGridClipDisjoint(t *testing.T) {
	g := NewGrid(4, 4, NorthUp(0, 4, 1, 1))

	_, err := g.Clip(Bounds{MinX: 100, MinY: 100, MaxX: 101, MaxY: 101})
	assert.ErrorIs(t, err, ErrEmptyClip)
}

func TestGridScaleSkipsNoData(t *testing.T) {
	g := NewGrid(2, 1, NorthUp(0, 1, 1, 1))
	g.SetNoData(-1)
	g.Set(0, 0, 5)
	g.Set(0, 1, -1)

	g.Scale(2)

	assert.Equal(t, 10.0, g.At(0, 0))
	assert.Equal(t, -1.0, g.At(0, 1))
}

func TestValidate(t *testing.T) {
	g := NewGrid(3, 3, Affine{A: 1, E: -1})
	require.NoError(t, g.Validate())

	g.Data = g.Data[:4]
	assert.Error(t, g.Validate())
}
