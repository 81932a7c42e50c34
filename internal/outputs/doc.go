// Package outputs owns the enriched record schema written for the
// presentation layer and the atomic JSON persistence helpers shared by the
// ledger, the history, and the record writer itself. Readers must never
// observe a partial document, so every write goes through a temp file and
// rename.
package outputs
