// Package pipeline sequences a single keyframe extraction run.
//
// A run probes the video, asks the configured scene strategy for scenes,
// pulls the middle frame of every scene, passes each frame through the
// quality gate, removes near-duplicates among the survivors, writes the
// remaining keyframes as JPEG files, and finally persists a JSON report. Files
// written during a run are removed again when a later stage fails, so a failed
// run leaves neither keyframes nor a report behind.
//
// Every collaborator is a small port so tests can substitute deterministic
// fakes. Concrete ffmpeg adapters live in internal/media and are wired by the
// CLI.
package pipeline
