// Package daemon wires the enrichment pipeline together: budget ledger,
// dedup history, provider clients, offline banks, prefetch scheduler, and
// the orchestrator, plus the read-only status API and single-instance lock.
package daemon
