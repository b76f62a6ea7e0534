// Package cds retrieves data from the Copernicus Climate Data Store.
//
// The store works asynchronously: a request is submitted, queued on the
// remote side, and its result downloaded once processing completes. The
// Client handles one request end to end with authentication, rate limiting,
// retries and a circuit breaker; the Scheduler runs many requests with
// bounded concurrency while piggybacking per-file summarisation work onto
// completed downloads.
//
// Dataset-specific helpers (currently the satellite land-cover product)
// build queries, validate availability and turn downloaded archives into
// rasters.
package cds
