// Package dedup remembers which media identifiers were already shown per
// artist so the same visuals are not repeated across a set. Granularity is
// deliberately artist-level: one artist's visuals are treated as fungible
// across their tracks. BucketKey isolates that policy so per-track scoping
// would be a one-line change.
package dedup
