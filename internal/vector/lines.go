package vector

import (
	"errors"

	"github.com/paulmach/orb"
)

// RandomLines generates n random origin-destination connections between
// every ordered pair of distinct locations. For each location n random
// interior points are drawn; the i-th point of the origin connects to the
// i-th point of the destination, giving n linear paths per pair.
func RandomLines(polygons *Collection, n int, opts SampleOptions) (*Collection, error) {
	if len(polygons.Features) < 2 {
		return nil, errors.New("need at least two polygons to connect")
	}

	points, err := SamplePoints(polygons, n, opts)
	if err != nil {
		return nil, err
	}

	byLocation := make(map[string][]orb.Point)
	var order []string
	for _, f := range points.Features {
		if _, seen := byLocation[f.Location]; !seen {
			order = append(order, f.Location)
		}
		byLocation[f.Location] = append(byLocation[f.Location], f.Geometry.(orb.Point))
	}

	out := &Collection{EPSG: polygons.EPSG}
	for _, origin := range order {
		for _, destination := range order {
			if origin == destination {
				continue
			}

			from := byLocation[origin]
			to := byLocation[destination]
			pairs := min(len(from), len(to))

			for i := 0; i < pairs; i++ {
				out.Features = append(out.Features, Feature{
					Geometry: orb.LineString{from[i], to[i]},
					Properties: map[string]interface{}{
						"origin":      origin,
						"destination": destination,
					},
				})
			}
		}
	}
	return out, nil
}
