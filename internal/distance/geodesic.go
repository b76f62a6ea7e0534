package distance

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/pymaxion/geographiclib-go/geodesic"
	"gonum.org/v1/gonum/mat"

	"github.com/epigeo/geofeatures/internal/vector"
)

// Meters returns the geodesic distance in meters between two WGS84
// coordinates given as orb points (x = longitude, y = latitude).
func Meters(origin, destination orb.Point) float64 {
	r := geodesic.WGS84.Inverse(origin[1], origin[0], destination[1], destination[0])
	return r.S12
}

// GeometryMeters returns the geodesic distance between two geometries,
// reduced to points first: centroids when useCentroids is true, interior
// representative points otherwise. Point geometries are used as-is.
func GeometryMeters(origin, destination orb.Geometry, useCentroids bool) (float64, error) {
	from, err := anchor(origin, useCentroids)
	if err != nil {
		return 0, err
	}
	to, err := anchor(destination, useCentroids)
	if err != nil {
		return 0, err
	}
	return Meters(from, to), nil
}

func anchor(g orb.Geometry, useCentroid bool) (orb.Point, error) {
	if p, ok := g.(orb.Point); ok {
		return p, nil
	}
	if useCentroid {
		return vector.Centroid(g), nil
	}
	return vector.RepresentativePoint(g)
}

// Pairwise computes geodesic distances between all pairs of geometries,
// returning a symmetric matrix in input order with a zero diagonal.
func Pairwise(geoms []orb.Geometry, useCentroids bool) (*mat.SymDense, error) {
	n := len(geoms)
	dists := mat.NewSymDense(n, nil)

	// Resolve anchors once; the upper triangle drives the fill and symmetry
	// gives the lower triangle for free.
	anchors := make([]orb.Point, n)
	for i, g := range geoms {
		p, err := anchor(g, useCentroids)
		if err != nil {
			return nil, fmt.Errorf("geometry %d: %w", i, err)
		}
		anchors[i] = p
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dists.SetSym(i, j, Meters(anchors[i], anchors[j]))
		}
	}
	return dists, nil
}
