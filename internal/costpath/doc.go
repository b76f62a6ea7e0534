// Package costpath computes least-cost distances over a cost raster.
//
// The search is an 8-connected Dijkstra with geometric edge weights: moving
// between adjacent cells costs the mean of the two cell values scaled by
// the step length. Endpoints can be raw cells, world coordinates, or H3
// hexagons, with optional refinement to child-hexagon centers.
package costpath
