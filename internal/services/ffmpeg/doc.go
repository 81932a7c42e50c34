// Package ffmpeg drives the external transcoder used to produce the short
// faded sub-clips the prefetch scheduler warms for each track.
package ffmpeg
