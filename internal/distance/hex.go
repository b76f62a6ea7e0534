package distance

import (
	"fmt"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"
)

// CellCenter returns the WGS84 center of an H3 cell identifier given in its
// string form.
func CellCenter(id string) (orb.Point, error) {
	cell := h3.Cell(h3.IndexFromString(id))
	if !cell.IsValid() {
		return orb.Point{}, fmt.Errorf("invalid H3 cell %q", id)
	}

	ll := h3.CellToLatLng(cell)
	return orb.Point{ll.Lng, ll.Lat}, nil
}

// NewHexGeodesic creates an edge cache computing geodesic distances between
// the centers of H3 hexagons. Node names are H3 cell identifiers.
func NewHexGeodesic(cells []string) (*EdgeCache, error) {
	calc := CalculatorFunc(func(from, to string) (float64, error) {
		origin, err := CellCenter(from)
		if err != nil {
			return 0, err
		}
		destination, err := CellCenter(to)
		if err != nil {
			return 0, err
		}
		return Meters(origin, destination), nil
	})

	return NewEdgeCache(cells, calc)
}
