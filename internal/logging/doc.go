// Package logging assembles structured slog loggers and formatting helpers used
// across keyframer.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline stages can tag log
// lines with run IDs, video IDs, and stage names. A no-op logger is available
// for tests and library callers that do not care about output.
package logging
