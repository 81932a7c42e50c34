// Package media defines the shared vocabulary of the enrichment engine:
// track signatures, deck snapshots, media items, pools, and rotations.
// Everything here is a plain value type; behavior lives in the packages
// that operate on these values.
package media
