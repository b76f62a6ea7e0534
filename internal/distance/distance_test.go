package distance

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetersAlongEquator(t *testing.T) {
	// One degree of longitude on the WGS84 equator is ~111.32 km.
	d := Meters(orb.Point{0, 0}, orb.Point{1, 0})
	assert.InDelta(t, 111319.49, d, 10)
}

func TestMetersSymmetricAndZero(t *testing.T) {
	a := orb.Point{-0.1276, 51.5072} // London
	b := orb.Point{2.3522, 48.8566}  // Paris

	assert.InDelta(t, Meters(a, b), Meters(b, a), 1e-6)
	assert.Equal(t, 0.0, Meters(a, a))

	// The London-Paris geodesic is roughly 344 km.
	assert.InDelta(t, 344000, Meters(a, b), 2000)
}

func TestGeometryMetersUsesCentroid(t *testing.T) {
	// Unit squares centered on (0.5, 0.5) and (2.5, 0.5).
	sq1 := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	sq2 := orb.Polygon{orb.Ring{{2, 0}, {3, 0}, {3, 1}, {2, 1}, {2, 0}}}

	d, err := GeometryMeters(sq1, sq2, true)
	require.NoError(t, err)

	want := Meters(orb.Point{0.5, 0.5}, orb.Point{2.5, 0.5})
	assert.InDelta(t, want, d, 1e-6)
}

func TestPairwiseSymmetry(t *testing.T) {
	geoms := []orb.Geometry{
		orb.Point{0, 0},
		orb.Point{1, 0},
		orb.Point{1, 1},
	}

	dists, err := Pairwise(geoms, true)
	require.NoError(t, err)

	n, _ := dists.Dims()
	require.Equal(t, 3, n)

	for i := 0; i < n; i++ {
		assert.Equal(t, 0.0, dists.At(i, i))
		for j := 0; j < n; j++ {
			assert.Equal(t, dists.At(i, j), dists.At(j, i))
		}
	}
	assert.InDelta(t, Meters(orb.Point{0, 0}, orb.Point{1, 0}), dists.At(0, 1), 1e-6)
}

type countingCalc struct {
	calls int
	err   error
}

func (c *countingCalc) Calculate(from, to string) (float64, error) {
	c.calls++
	if c.err != nil {
		return 0, c.err
	}
	return float64(len(from) + len(to)), nil
}

func TestEdgeCacheMemoizes(t *testing.T) {
	calc := &countingCalc{}
	cache, err := NewEdgeCache([]string{"a", "bb", "ccc"}, calc)
	require.NoError(t, err)

	v1, err := cache.Get("a", "bb")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v1)
	assert.Equal(t, 1, calc.calls)

	v2, err := cache.Get("a", "bb")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, calc.calls, "second Get should hit the cache")
}

func TestEdgeCacheSetPreemptsCalculation(t *testing.T) {
	calc := &countingCalc{}
	cache, err := NewEdgeCache([]string{"x", "y"}, calc)
	require.NoError(t, err)

	require.NoError(t, cache.Set("x", "y", 42))

	v, err := cache.Get("x", "y")
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)
	assert.Equal(t, 0, calc.calls)
}

func TestEdgeCacheUnknownNode(t *testing.T) {
	cache, err := NewEdgeCache([]string{"x"}, &countingCalc{})
	require.NoError(t, err)

	_, err = cache.Get("x", "nope")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestEdgeCacheRejectsDuplicates(t *testing.T) {
	_, err := NewEdgeCache([]string{"a", "a"}, &countingCalc{})
	assert.Error(t, err)
}

func TestEdgeCachePropagatesCalculatorError(t *testing.T) {
	boom := errors.New("boom")
	cache, err := NewEdgeCache([]string{"x", "y"}, &countingCalc{err: boom})
	require.NoError(t, err)

	_, err = cache.Get("x", "y")
	assert.ErrorIs(t, err, boom)
}

func TestEdgeCacheSaveRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.npy")

	calc := &countingCalc{}
	cache, err := NewEdgeCache([]string{"a", "b"}, calc)
	require.NoError(t, err)
	require.NoError(t, cache.Set("a", "b", 7))
	require.NoError(t, cache.Save(path))

	restored, err := NewEdgeCache([]string{"a", "b"}, calc)
	require.NoError(t, err)
	require.NoError(t, restored.Restore(path))

	v, err := restored.Get("a", "b")
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
	assert.Equal(t, 0, calc.calls, "restored value should not be recomputed")

	// Unset entries stay NaN misses.
	_, err = restored.Get("b", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, calc.calls)
}

func TestEdgeCacheRestoreShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.npy")

	big, err := NewEdgeCache([]string{"a", "b", "c"}, &countingCalc{})
	require.NoError(t, err)
	require.NoError(t, big.Save(path))

	small, err := NewEdgeCache([]string{"a", "b"}, &countingCalc{})
	require.NoError(t, err)
	assert.Error(t, small.Restore(path))
}

func TestHexGeodesicRoundTrip(t *testing.T) {
	// Two neighbouring resolution-7 cells over London; centers are on the
	// order of a kilometre apart.
	cells := []string{"87195da49ffffff", "87195da48ffffff"}

	cache, err := NewHexGeodesic(cells)
	require.NoError(t, err)

	d, err := cache.Get(cells[0], cells[1])
	require.NoError(t, err)
	assert.Greater(t, d, 100.0)
	assert.Less(t, d, 10000.0)
	assert.False(t, math.IsNaN(d))
}

func TestCellCenterInvalid(t *testing.T) {
	_, err := CellCenter("not-a-cell")
	assert.Error(t, err)
}
