// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no keyframer-specific dependencies.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties including frame rate and frame count
//   - Format: container-level metadata (duration, size)
//
// Helper methods on Result resolve the video stream's frame rate (from the
// rational avg_frame_rate/r_frame_rate strings) and total frame count, which
// the frame reader and scene detector need to map between time and frame
// indices.
package ffprobe
