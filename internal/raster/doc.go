// Package raster provides an in-memory gridded-data model with affine
// georeferencing, plus readers and writers for the formats the pipelines
// exchange.
//
// A Grid couples a dense float64 array with a rasterio-style geotransform,
// an optional nodata value and an EPSG code. Continuous rasters and cached
// matrices round-trip through NumPy ".npy" files; categorical rasters
// round-trip through grayscale TIFF with ESRI world-file georeferencing.
package raster
