// Package zonal summarises raster values within polygon boundaries.
//
// Continuous summaries reduce the cells covered by each polygon to a single
// statistic (mean, sum, min, max, count, median, std). Categorical summaries
// count cells per category, optionally as the proportion of the polygon
// covered; nodata and NaN cells stay in the denominator, so proportions can
// sum to less than one.
package zonal
