// Package vector provides polygon feature collections and the synthetic
// geometry used by the feature pipelines: covering grids, random point
// samples with exclusion zones, and random origin-destination lines.
//
// Geometries are paulmach/orb values; collections carry an EPSG code and a
// location identifier per feature, and round-trip through GeoJSON.
package vector
