// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Retrieval and summarisation pipelines log structured fields (dataset,
// year, file, duration) so long-running batch jobs can be followed from
// aggregated logs.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("request complete", zap.String("dataset", "satellite-land-cover"))
//	logger.Warn("year unavailable", zap.Int("year", 2031))
package logging
