package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rbeezley/myk9q-sync/internal/ledger"
	"github.com/rbeezley/myk9q-sync/internal/record"
)

// Storage keys for the two persisted maps.
const (
	KeyEntityStore   = "entity_store"
	KeyPendingLedger = "pending_ledger"
)

// State is the durable snapshot of the engine: the entity store and the
// pending-change ledger, persisted as full map rewrites.
type State struct {
	Records map[string]record.Record        `json:"records"`
	Changes map[string]ledger.PendingChange `json:"changes"`
}

// Codec reads and writes engine State through an Adapter. It remembers
// the fingerprint of the last successful write per key and skips
// rewrites of unchanged maps.
type Codec struct {
	adapter Adapter

	mu       sync.Mutex
	storeFP  string
	ledgerFP string
}

// NewCodec wraps an adapter.
func NewCodec(a Adapter) *Codec {
	return &Codec{adapter: a}
}

// Load reads both maps. Missing keys yield empty maps, not errors, so a
// first run starts clean.
func (c *Codec) Load(ctx context.Context) (State, error) {
	st := State{
		Records: make(map[string]record.Record),
		Changes: make(map[string]ledger.PendingChange),
	}

	data, err := c.adapter.Get(ctx, KeyEntityStore)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return st, fmt.Errorf("load entity store: %w", err)
	default:
		if err := json.Unmarshal(data, &st.Records); err != nil {
			return st, fmt.Errorf("decode entity store: %w", err)
		}
	}

	data, err = c.adapter.Get(ctx, KeyPendingLedger)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return st, fmt.Errorf("load pending ledger: %w", err)
	default:
		if err := json.Unmarshal(data, &st.Changes); err != nil {
			return st, fmt.Errorf("decode pending ledger: %w", err)
		}
	}

	c.mu.Lock()
	c.storeFP = storeFingerprint(st.Records)
	c.ledgerFP = ledgerFingerprint(st.Changes)
	c.mu.Unlock()

	return st, nil
}

// Save writes both maps as full rewrites, skipping any map whose
// fingerprint matches the last successful write.
func (c *Codec) Save(ctx context.Context, st State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fp := storeFingerprint(st.Records); fp != c.storeFP {
		data, err := json.Marshal(st.Records)
		if err != nil {
			return fmt.Errorf("encode entity store: %w", err)
		}
		if err := c.adapter.Set(ctx, KeyEntityStore, data); err != nil {
			return fmt.Errorf("save entity store: %w", err)
		}
		c.storeFP = fp
	}

	if fp := ledgerFingerprint(st.Changes); fp != c.ledgerFP {
		data, err := json.Marshal(st.Changes)
		if err != nil {
			return fmt.Errorf("encode pending ledger: %w", err)
		}
		if err := c.adapter.Set(ctx, KeyPendingLedger, data); err != nil {
			return fmt.Errorf("save pending ledger: %w", err)
		}
		c.ledgerFP = fp
	}

	return nil
}

// Reset clears both keys and the cached fingerprints.
func (c *Codec) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.adapter.Delete(ctx, KeyEntityStore); err != nil {
		return fmt.Errorf("reset entity store: %w", err)
	}
	if err := c.adapter.Delete(ctx, KeyPendingLedger); err != nil {
		return fmt.Errorf("reset pending ledger: %w", err)
	}
	c.storeFP = ""
	c.ledgerFP = ""
	return nil
}

// storeFingerprint canonicalizes the record map (UTF-16 key order, NFC
// strings) so logically equal stores fingerprint identically.
func storeFingerprint(records map[string]record.Record) string {
	m := make(map[string]any, len(records))
	for id, r := range records {
		m[id] = r
	}
	fp, err := record.Fingerprint(m)
	if err != nil {
		// Unfingerprintable state falls back to always-write.
		return ""
	}
	return fp
}

// ledgerFingerprint hashes the ledger's JSON form. encoding/json sorts
// map keys and struct fields are ordered, so the bytes are stable.
func ledgerFingerprint(changes map[string]ledger.PendingChange) string {
	data, err := json.Marshal(changes)
	if err != nil {
		return ""
	}
	fp, err := record.Fingerprint(string(data))
	if err != nil {
		return ""
	}
	return fp
}
