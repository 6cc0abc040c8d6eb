// Package config loads, normalizes, and validates keyframer configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// KEYFRAMER_FFMPEG. The Config type centralizes every knob the extraction
// pipeline and CLI need, from scene detection search bounds to the quality
// gate thresholds.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
