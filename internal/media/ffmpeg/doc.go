// Package ffmpeg drives the ffmpeg and ffprobe binaries on behalf of the
// pipeline.
//
// Source implements random-access frame reads by seeking with -ss and piping a
// single PNG-encoded frame back over stdout, and probes videos through the
// ffprobe wrapper. SceneCuts runs the select/showinfo scene filter and returns
// the timestamps where the scene score exceeded the requested level.
package ffmpeg
