package vector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultLocationProperty is the feature property naming a location.
const DefaultLocationProperty = "location"

// EPSGWGS84 is the geographic WGS84 coordinate reference system.
const EPSGWGS84 = 4326

var ErrNoFeatures = errors.New("collection has no features")

// Feature is a single located geometry with its source properties.
type Feature struct {
	Location   string
	Geometry   orb.Geometry
	Properties map[string]interface{}
}

// Collection is a set of features sharing a coordinate reference system.
type Collection struct {
	Features []Feature
	EPSG     int
}

// Locations returns the location identifier of every feature, in order.
func (c *Collection) Locations() []string {
	out := make([]string, len(c.Features))
	for i, f := range c.Features {
		out[i] = f.Location
	}
	return out
}

// TotalBounds returns the envelope of all feature geometries.
func (c *Collection) TotalBounds() (orb.Bound, error) {
	if len(c.Features) == 0 {
		return orb.Bound{}, ErrNoFeatures
	}

	bound := c.Features[0].Geometry.Bound()
	for _, f := range c.Features[1:] {
		bound = bound.Union(f.Geometry.Bound())
	}
	return bound, nil
}

// FromGeoJSON parses a GeoJSON feature collection. The property named by
// locationProperty (DefaultLocationProperty when empty) becomes each
// feature's location identifier; features without it get an empty location.
// GeoJSON is geographic by definition, so the collection is tagged WGS84.
func FromGeoJSON(data []byte, locationProperty string) (*Collection, error) {
	if locationProperty == "" {
		locationProperty = DefaultLocationProperty
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	out := &Collection{EPSG: EPSGWGS84}
	for _, f := range fc.Features {
		feature := Feature{
			Geometry:   f.Geometry,
			Properties: map[string]interface{}(f.Properties),
		}
		if loc, ok := f.Properties[locationProperty].(string); ok {
			feature.Location = loc
		}
		out.Features = append(out.Features, feature)
	}
	return out, nil
}

// ReadGeoJSON reads a collection from a file.
func ReadGeoJSON(filename, locationProperty string) (*Collection, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return FromGeoJSON(data, locationProperty)
}

// ToGeoJSON serializes the collection. Collections in a projected CRS are
// reprojected to WGS84 first, since GeoJSON mandates geographic coordinates.
func (c *Collection) ToGeoJSON(locationProperty string) ([]byte, error) {
	if locationProperty == "" {
		locationProperty = DefaultLocationProperty
	}

	src := c
	if c.EPSG != 0 && c.EPSG != EPSGWGS84 {
		reprojected, err := c.ToCRS(EPSGWGS84)
		if err != nil {
			return nil, err
		}
		src = reprojected
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range src.Features {
		gf := geojson.NewFeature(f.Geometry)
		for k, v := range f.Properties {
			gf.Properties[k] = v
		}
		if f.Location != "" {
			gf.Properties[locationProperty] = f.Location
		}
		fc.Append(gf)
	}
	return json.Marshal(fc)
}

// WriteGeoJSON writes the collection to a file.
func (c *Collection) WriteGeoJSON(filename, locationProperty string) error {
	data, err := c.ToGeoJSON(locationProperty)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}
