// Package record defines the opaque entity model shared by the store,
// the pending-change ledger, and the reconciler.
//
// A Record is a stable string ID plus a generic field map. The engine
// never interprets field meaning: merges are field overlays, comparisons
// are strict per-field equality. This keeps the reconciliation core
// independent of business semantics (scoring, placements, check-in).
//
// Canonical serialization (UTF-16 key ordering, NFC-normalized strings)
// lives here too, used to fingerprint persisted state so unchanged maps
// are not rewritten.
package record
