// Package budget tracks remaining calls to the primary GIF provider inside a
// rolling time window. The ledger is a pure admission check: it never blocks,
// never retries, and favors availability over historical accuracy when its
// persisted state cannot be read.
package budget
