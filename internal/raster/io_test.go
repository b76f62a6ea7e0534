package raster

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNPYRoundTrip(t *testing.T) {
	data := []float64{1.5, -2.25, math.NaN(), 4, 5, 6}

	var buf bytes.Buffer
	require.NoError(t, WriteNPY(&buf, data, 2, 3))

	// Preamble must be 64-byte aligned per the npy spec.
	assert.Equal(t, 0, (buf.Len()-len(data)*8)%64)

	got, rows, cols, err := ReadNPY(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)

	for i := range data {
		if math.IsNaN(data[i]) {
			assert.True(t, math.IsNaN(got[i]))
		} else {
			assert.Equal(t, data[i], got[i])
		}
	}
}

func TestNPYRejectsLengthMismatch(t *testing.T) {
	var buf bytes.Buffer
	err := WriteNPY(&buf, []float64{1, 2, 3}, 2, 2)
	assert.Error(t, err)
}

func TestNPYRejectsBadMagic(t *testing.T) {
	_, _, _, err := ReadNPY(bytes.NewReader([]byte("notanpyfile....")))
	assert.ErrorIs(t, err, ErrNPYFormat)
}

func TestNPYFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matrix.npy")

	data := []float64{0, 1, 2, 3}
	require.NoError(t, SaveNPY(path, data, 2, 2))

	got, rows, cols, err := LoadNPY(path)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, data, got)
}

func TestTIFFRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "landcover.tif")

	g := NewGrid(4, 3, NorthUp(10, 55, 0.25, 0.25))
	g.EPSG = 4326
	g.SetNoData(0)
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			g.Set(row, col, float64(10+row*4+col))
		}
	}

	require.NoError(t, WriteTIFF(path, g))

	got, err := ReadTIFF(path)
	require.NoError(t, err)

	assert.Equal(t, g.Width, got.Width)
	assert.Equal(t, g.Height, got.Height)
	assert.Equal(t, 4326, got.EPSG)
	assert.Equal(t, g.Data, got.Data)

	assert.InDelta(t, g.Transform.A, got.Transform.A, 1e-12)
	assert.InDelta(t, g.Transform.C, got.Transform.C, 1e-9)
	assert.InDelta(t, g.Transform.F, got.Transform.F, 1e-9)
}

func TestTIFFRejectsOutOfRange(t *testing.T) {
	g := NewGrid(1, 1, Affine{A: 1, E: -1})
	g.Set(0, 0, -5)

	err := WriteTIFF(filepath.Join(t.TempDir(), "bad.tif"), g)
	assert.Error(t, err)
}
