// Package prefetch warms video clips for tracks before their deck goes
// active. A SQLite journal keys jobs by track signature so scheduling is
// idempotent and survives restarts; a bounded worker pool cuts the clips
// through the ffmpeg client. The enrichment pass only ever submits work and
// reads readiness, it never waits on a warm.
package prefetch
