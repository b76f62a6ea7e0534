// Package distance computes edge features describing connections between
// locations: ellipsoidal geodesic distances between coordinates, geometries
// or H3 hexagons, with a cached matrix store so pairwise features are only
// computed once and can be persisted between runs.
package distance
