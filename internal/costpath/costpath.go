package costpath

import (
	"container/heap"
	"errors"
	"math"

	"github.com/paulmach/orb"

	"github.com/epigeo/geofeatures/internal/raster"
)

var (
	ErrNoStart     = errors.New("no usable start cell")
	ErrUnreachable = errors.New("end cell unreachable")
)

// Cell addresses a raster cell.
type Cell struct {
	Row, Col int
}

// Surface is a cost raster prepared for least-cost searches. Cells that are
// NaN, infinite or flagged nodata are impassable.
type Surface struct {
	grid *raster.Grid
}

// NewSurface wraps a cost raster.
func NewSurface(g *raster.Grid) (*Surface, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Surface{grid: g}, nil
}

func (s *Surface) passable(row, col int) bool {
	if !s.grid.InBounds(row, col) {
		return false
	}
	v := s.grid.At(row, col)
	return !s.grid.IsNoData(v) && !math.IsInf(v, 0) && v >= 0
}

// Costs runs a single multi-source search and returns the cumulative least
// cost from the cheapest start to each end cell. Moves are 8-connected;
// stepping between cells costs the mean of the two cell values times the
// step length (sqrt 2 for diagonals). Unreachable ends yield +Inf.
func (s *Surface) Costs(starts, ends []Cell) ([]float64, error) {
	if len(starts) == 0 || len(ends) == 0 {
		return nil, errors.New("need at least one start and one end cell")
	}

	width := s.grid.Width
	dist := make([]float64, width*s.grid.Height)
	for i := range dist {
		dist[i] = math.Inf(1)
	}

	pq := &cellQueue{}
	heap.Init(pq)

	usable := 0
	for _, c := range starts {
		if !s.passable(c.Row, c.Col) {
			continue
		}
		usable++
		idx := c.Row*width + c.Col
		if dist[idx] > 0 {
			dist[idx] = 0
			heap.Push(pq, queued{index: idx, cost: 0})
		}
	}
	if usable == 0 {
		return nil, ErrNoStart
	}

	remaining := make(map[int]int)
	for _, c := range ends {
		if s.grid.InBounds(c.Row, c.Col) {
			remaining[c.Row*width+c.Col]++
		}
	}

	for pq.Len() > 0 && len(remaining) > 0 {
		item := heap.Pop(pq).(queued)
		if item.cost > dist[item.index] {
			continue
		}
		delete(remaining, item.index)

		row := item.index / width
		col := item.index % width
		here := s.grid.At(row, col)

		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if dr == 0 && dc == 0 {
					continue
				}
				nr, nc := row+dr, col+dc
				if !s.passable(nr, nc) {
					continue
				}

				step := 1.0
				if dr != 0 && dc != 0 {
					step = math.Sqrt2
				}
				next := item.cost + step*(here+s.grid.At(nr, nc))/2

				nIdx := nr*width + nc
				if next < dist[nIdx] {
					dist[nIdx] = next
					heap.Push(pq, queued{index: nIdx, cost: next})
				}
			}
		}
	}

	out := make([]float64, len(ends))
	for i, c := range ends {
		if !s.grid.InBounds(c.Row, c.Col) {
			out[i] = math.Inf(1)
			continue
		}
		out[i] = dist[c.Row*width+c.Col]
	}
	return out, nil
}

// GeoCosts maps world coordinates (x = longitude, y = latitude in the cost
// raster's CRS) to cells and runs Costs.
func (s *Surface) GeoCosts(starts, ends []orb.Point) ([]float64, error) {
	return s.Costs(s.toCells(starts), s.toCells(ends))
}

// MinGeoCost returns the cheapest cost between any start and any end point.
func (s *Surface) MinGeoCost(starts, ends []orb.Point) (float64, error) {
	costs, err := s.GeoCosts(starts, ends)
	if err != nil {
		return 0, err
	}

	best := math.Inf(1)
	for _, c := range costs {
		if c < best {
			best = c
		}
	}
	if math.IsInf(best, 1) {
		return 0, ErrUnreachable
	}
	return best, nil
}

func (s *Surface) toCells(points []orb.Point) []Cell {
	cells := make([]Cell, len(points))
	for i, p := range points {
		row, col := s.grid.Transform.RowCol(p[0], p[1])
		cells[i] = Cell{Row: row, Col: col}
	}
	return cells
}

// queued is a priority queue entry.
type queued struct {
	index int
	cost  float64
}

type cellQueue []queued

func (q cellQueue) Len() int            { return len(q) }
func (q cellQueue) Less(i, j int) bool  { return q[i].cost < q[j].cost }
func (q cellQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *cellQueue) Push(x interface{}) { *q = append(*q, x.(queued)) }
func (q *cellQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
