// Package persist provides durable local key-value storage used only to
// survive process restarts.
//
// The Adapter interface is the consumed contract (get/set/delete, all
// context-aware). SQLite is the production implementation, configured
// with WAL mode for concurrent reads, NORMAL synchronous mode, a 5-second
// busy timeout, and a single-writer connection pool. Memory backs tests
// and ephemeral runs.
//
// Codec writes the engine's entity store and pending ledger as two keys,
// each a full rewrite of the whole map. Call frequency is low relative to
// map size; an incremental log can replace this without changing the
// Adapter contract. Canonical fingerprints skip rewrites of unchanged
// maps.
package persist
