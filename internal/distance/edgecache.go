package distance

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/epigeo/geofeatures/internal/raster"
)

var ErrUnknownNode = errors.New("node not present in cache")

// Calculator computes an edge feature between two named nodes.
type Calculator interface {
	Calculate(from, to string) (float64, error)
}

// CalculatorFunc adapts a function to the Calculator interface.
type CalculatorFunc func(from, to string) (float64, error)

func (f CalculatorFunc) Calculate(from, to string) (float64, error) { return f(from, to) }

// EdgeCache memoizes edge features between named nodes. Values are held in
// an N x N matrix initialized to NaN; Get computes misses through the
// supplied Calculator and stores the result. The matrix persists in NumPy
// ".npy" format, so caches written by earlier tooling remain loadable.
type EdgeCache struct {
	nodes  []string
	index  map[string]int
	values *mat.Dense
	calc   Calculator
}

// NewEdgeCache creates a cache over the given node names.
func NewEdgeCache(nodes []string, calc Calculator) (*EdgeCache, error) {
	if len(nodes) == 0 {
		return nil, errors.New("edge cache needs at least one node")
	}

	index := make(map[string]int, len(nodes))
	for i, name := range nodes {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate node name %q", name)
		}
		index[name] = i
	}

	n := len(nodes)
	data := make([]float64, n*n)
	for i := range data {
		data[i] = math.NaN()
	}

	return &EdgeCache{
		nodes:  append([]string(nil), nodes...),
		index:  index,
		values: mat.NewDense(n, n, data),
		calc:   calc,
	}, nil
}

// Nodes returns the node names in index order.
func (c *EdgeCache) Nodes() []string {
	return append([]string(nil), c.nodes...)
}

// Get returns the cached edge feature, computing and storing it on a miss.
func (c *EdgeCache) Get(from, to string) (float64, error) {
	i, j, err := c.indices(from, to)
	if err != nil {
		return 0, err
	}

	if v := c.values.At(i, j); !math.IsNaN(v) {
		return v, nil
	}

	v, err := c.calc.Calculate(from, to)
	if err != nil {
		return 0, fmt.Errorf("calculate %s -> %s: %w", from, to, err)
	}
	c.values.Set(i, j, v)
	return v, nil
}

// Set stores a value directly.
func (c *EdgeCache) Set(from, to string, v float64) error {
	i, j, err := c.indices(from, to)
	if err != nil {
		return err
	}
	c.values.Set(i, j, v)
	return nil
}

// Save writes the stored matrix to disk in ".npy" format.
func (c *EdgeCache) Save(filename string) error {
	n := len(c.nodes)
	return raster.SaveNPY(filename, c.values.RawMatrix().Data, n, n)
}

// Restore replaces the stored matrix with one previously saved. The file
// must hold a square matrix matching the cache's node count.
func (c *EdgeCache) Restore(filename string) error {
	data, rows, cols, err := raster.LoadNPY(filename)
	if err != nil {
		return err
	}

	n := len(c.nodes)
	if rows != n || cols != n {
		return fmt.Errorf("stored matrix is %dx%d, cache has %d nodes", rows, cols, n)
	}

	c.values = mat.NewDense(n, n, data)
	return nil
}

func (c *EdgeCache) indices(from, to string) (int, int, error) {
	i, ok := c.index[from]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownNode, from)
	}
	j, ok := c.index[to]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownNode, to)
	}
	return i, j, nil
}
