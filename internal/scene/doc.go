// Package scene turns a video into an ordered list of scenes.
//
// A Detector reports raw scene boundaries at a given sensitivity threshold.
// Two strategies sit on top of it: Fixed runs the detector once at the
// configured threshold, and Adaptive binary-searches the threshold until the
// scene count lands within tolerance of a target (or the iteration budget runs
// out, in which case the closest probe wins). Lower thresholds are assumed to
// yield more scenes; the search does not verify this.
//
// The strategies never log. Adaptive exposes an OnProbe callback and returns
// the full iteration trace so callers can report progress.
package scene
