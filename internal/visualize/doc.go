// Package visualize renders human-facing artifacts from a finished run: a
// JPEG contact sheet of the final keyframes and a standalone HTML report.
// Both are optional and never affect the JSON report or keyframe files.
package visualize
