// Package preflight provides readiness checks for the filesystem paths and
// external tools keyframer depends on.
//
// The extract command calls RunAll before touching a video so a missing
// output directory or a stripped-down ffmpeg build fails fast instead of
// after a long scene-detection pass. The doctor command renders the same
// results alongside CheckSystemDeps.
package preflight
