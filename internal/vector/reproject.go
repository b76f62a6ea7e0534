package vector

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

// Transformer converts a coordinate between two coordinate reference systems.
type Transformer func(orb.Point) orb.Point

// NewTransformer builds a point transformer between two EPSG codes.
func NewTransformer(fromEPSG, toEPSG int) (Transformer, error) {
	if fromEPSG == toEPSG {
		return func(p orb.Point) orb.Point { return p }, nil
	}

	from := wgs84.EPSG().Code(fromEPSG)
	if from == nil {
		return nil, fmt.Errorf("unsupported source CRS EPSG:%d", fromEPSG)
	}
	to := wgs84.EPSG().Code(toEPSG)
	if to == nil {
		return nil, fmt.Errorf("unsupported target CRS EPSG:%d", toEPSG)
	}

	f := wgs84.Transform(from, to)
	return func(p orb.Point) orb.Point {
		x, y, _ := f(p[0], p[1], 0)
		return orb.Point{x, y}
	}, nil
}

// ToCRS returns a copy of the collection with all geometries reprojected to
// the given EPSG code. A collection without a declared CRS cannot be
// reprojected.
func (c *Collection) ToCRS(epsg int) (*Collection, error) {
	if c.EPSG == 0 {
		return nil, fmt.Errorf("collection has no CRS, cannot reproject to EPSG:%d", epsg)
	}
	if c.EPSG == epsg {
		return c.Clone(), nil
	}

	transform, err := NewTransformer(c.EPSG, epsg)
	if err != nil {
		return nil, err
	}

	out := &Collection{EPSG: epsg, Features: make([]Feature, len(c.Features))}
	for i, f := range c.Features {
		out.Features[i] = Feature{
			Location:   f.Location,
			Geometry:   MapPoints(f.Geometry, transform),
			Properties: f.Properties,
		}
	}
	return out, nil
}

// Clone returns a deep copy of the collection's geometries. Properties maps
// are shared.
func (c *Collection) Clone() *Collection {
	out := &Collection{EPSG: c.EPSG, Features: make([]Feature, len(c.Features))}
	for i, f := range c.Features {
		out.Features[i] = Feature{
			Location:   f.Location,
			Geometry:   orb.Clone(f.Geometry),
			Properties: f.Properties,
		}
	}
	return out
}

// MapPoints applies fn to every coordinate of g, returning a new geometry.
func MapPoints(g orb.Geometry, fn Transformer) orb.Geometry {
	switch geom := g.(type) {
	case orb.Point:
		return fn(geom)
	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(geom))
		for i, p := range geom {
			out[i] = fn(p)
		}
		return out
	case orb.LineString:
		out := make(orb.LineString, len(geom))
		for i, p := range geom {
			out[i] = fn(p)
		}
		return out
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(geom))
		for i, ls := range geom {
			out[i] = MapPoints(ls, fn).(orb.LineString)
		}
		return out
	case orb.Ring:
		out := make(orb.Ring, len(geom))
		for i, p := range geom {
			out[i] = fn(p)
		}
		return out
	case orb.Polygon:
		out := make(orb.Polygon, len(geom))
		for i, r := range geom {
			out[i] = MapPoints(r, fn).(orb.Ring)
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(geom))
		for i, p := range geom {
			out[i] = MapPoints(p, fn).(orb.Polygon)
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, len(geom))
		for i, sub := range geom {
			out[i] = MapPoints(sub, fn)
		}
		return out
	default:
		return g
	}
}
