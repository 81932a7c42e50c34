// Package giphy implements the primary GIF provider client. Calls are
// batched (one search per pass), timeout-bounded, and classified through the
// services error taxonomy so the pool builder can degrade per source.
package giphy
