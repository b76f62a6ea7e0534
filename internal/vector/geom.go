package vector

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Contains reports whether point falls inside a polygonal geometry.
func Contains(g orb.Geometry, point orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, point)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, point)
	case orb.Ring:
		return planar.RingContains(geom, point)
	default:
		return false
	}
}

// Centroid returns the area-weighted centroid of a geometry.
func Centroid(g orb.Geometry) orb.Point {
	c, _ := planar.CentroidArea(g)
	return c
}

// RepresentativePoint returns a point guaranteed to lie inside a polygonal
// geometry. The centroid is used when it is interior; otherwise the midpoint
// of the widest interior span on the horizontal line through the centroid.
func RepresentativePoint(g orb.Geometry) (orb.Point, error) {
	centroid := Centroid(g)
	if Contains(g, centroid) {
		return centroid, nil
	}

	xs := scanlineCrossings(g, centroid[1])
	if len(xs) < 2 {
		return orb.Point{}, fmt.Errorf("cannot place interior point in geometry %T", g)
	}
	sort.Float64s(xs)

	best := orb.Point{}
	bestWidth := -1.0
	for i := 0; i+1 < len(xs); i += 2 {
		width := xs[i+1] - xs[i]
		mid := orb.Point{(xs[i] + xs[i+1]) / 2, centroid[1]}
		if width > bestWidth && Contains(g, mid) {
			best = mid
			bestWidth = width
		}
	}
	if bestWidth < 0 {
		return orb.Point{}, fmt.Errorf("cannot place interior point in geometry %T", g)
	}
	return best, nil
}

// scanlineCrossings collects the x coordinates at which polygon boundaries
// cross the horizontal line at y.
func scanlineCrossings(g orb.Geometry, y float64) []float64 {
	var xs []float64

	var ring func(r orb.Ring)
	ring = func(r orb.Ring) {
		for i := 0; i+1 < len(r); i++ {
			p1, p2 := r[i], r[i+1]
			if (p1[1] > y) == (p2[1] > y) {
				continue
			}
			t := (y - p1[1]) / (p2[1] - p1[1])
			xs = append(xs, p1[0]+t*(p2[0]-p1[0]))
		}
	}

	switch geom := g.(type) {
	case orb.Ring:
		ring(geom)
	case orb.Polygon:
		for _, r := range geom {
			ring(r)
		}
	case orb.MultiPolygon:
		for _, p := range geom {
			for _, r := range p {
				ring(r)
			}
		}
	}
	return xs
}

// DistanceTo returns the planar distance from point to the nearest boundary
// or interior of a polygonal geometry. Points inside the geometry are at
// distance zero.
func DistanceTo(g orb.Geometry, point orb.Point) float64 {
	if Contains(g, point) {
		return 0
	}

	best := math.Inf(1)

	var ring func(r orb.Ring)
	ring = func(r orb.Ring) {
		for i := 0; i+1 < len(r); i++ {
			if d := segmentDistance(point, r[i], r[i+1]); d < best {
				best = d
			}
		}
	}

	switch geom := g.(type) {
	case orb.Ring:
		ring(geom)
	case orb.Polygon:
		for _, r := range geom {
			ring(r)
		}
	case orb.MultiPolygon:
		for _, p := range geom {
			for _, r := range p {
				ring(r)
			}
		}
	case orb.Point:
		return planar.Distance(geom, point)
	}
	return best
}

// segmentDistance returns the distance from p to segment ab.
func segmentDistance(p, a, b orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]

	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return planar.Distance(p, a)
	}

	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	closest := orb.Point{a[0] + t*dx, a[1] + t*dy}
	return planar.Distance(p, closest)
}
