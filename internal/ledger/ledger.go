// Package ledger tracks uncommitted local mutations awaiting backend
// confirmation. Each entity holds at most one pending change: a newer
// local mutation supersedes any unconfirmed prior one for the same id.
package ledger

import (
	"time"

	"github.com/rbeezley/myk9q-sync/internal/record"
)

// Status is the lifecycle state of a pending change.
type Status string

const (
	// StatusPending means the change has not yet been picked up by the
	// sync dispatcher.
	StatusPending Status = "pending"
	// StatusSyncing means a write is in flight.
	StatusSyncing Status = "syncing"
	// StatusRetrying means a user or the dispatcher requested another
	// attempt after a failure.
	StatusRetrying Status = "retrying"
	// StatusFailed means the last attempt failed; the change is kept for
	// inspection and retry until garbage collection.
	StatusFailed Status = "failed"
)

// DefaultMaxRetries is the retry budget recorded on new changes. The
// dispatcher owns actual scheduling; this is bookkeeping it reads.
const DefaultMaxRetries = 3

// ChangeType tags the kind of mutation for routing and diagnostics.
// Merge logic never inspects it.
type ChangeType string

const (
	ChangeScore   ChangeType = "score"
	ChangeStatus  ChangeType = "status"
	ChangeCheckin ChangeType = "checkin"
	ChangeReset   ChangeType = "reset"
)

// PendingChange is one uncommitted local mutation.
type PendingChange struct {
	ID        string         `json:"id"`
	EntityID  string         `json:"entity_id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      ChangeType     `json:"type"`
	Changes   map[string]any `json:"changes"`

	Status        Status     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// Clone returns a deep copy safe to hand to callers and persistence.
func (c PendingChange) Clone() PendingChange {
	out := c
	out.Changes = record.CloneFields(c.Changes)
	if c.FailedAt != nil {
		t := *c.FailedAt
		out.FailedAt = &t
	}
	if c.LastAttemptAt != nil {
		t := *c.LastAttemptAt
		out.LastAttemptAt = &t
	}
	return out
}

// Age returns how long the change has been unconfirmed as of now.
func (c PendingChange) Age(now time.Time) time.Duration {
	return now.Sub(c.Timestamp)
}

// validTransitions encodes the status state machine. Deletion is not a
// status: any change may be removed by confirmation, stale sweep, or GC
// regardless of dispatcher state.
var validTransitions = map[Status][]Status{
	StatusPending:  {StatusSyncing},
	StatusSyncing:  {StatusFailed},
	StatusFailed:   {StatusRetrying},
	StatusRetrying: {StatusSyncing},
}

// CanTransition reports whether the status state machine permits
// from → to.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Ledger maps entity id to its single pending change. Not safe for
// concurrent use; the engine serializes access under its mutex.
type Ledger struct {
	changes map[string]PendingChange
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{changes: make(map[string]PendingChange)}
}

// FromSnapshot rebuilds a ledger from persisted state.
func FromSnapshot(changes map[string]PendingChange) *Ledger {
	l := New()
	for id, c := range changes {
		c.EntityID = id
		l.changes[id] = c.Clone()
	}
	return l
}

// Put records a change, replacing any prior one for the same entity.
// Last local intent wins.
func (l *Ledger) Put(c PendingChange) {
	l.changes[c.EntityID] = c
}

// Get returns the pending change for an entity, if any.
func (l *Ledger) Get(entityID string) (PendingChange, bool) {
	c, ok := l.changes[entityID]
	return c, ok
}

// Delete removes the pending change for an entity. Returns true if one
// existed.
func (l *Ledger) Delete(entityID string) bool {
	if _, ok := l.changes[entityID]; !ok {
		return false
	}
	delete(l.changes, entityID)
	return true
}

// Len returns the number of tracked changes.
func (l *Ledger) Len() int {
	return len(l.changes)
}

// All returns clones of every tracked change.
func (l *Ledger) All() []PendingChange {
	out := make([]PendingChange, 0, len(l.changes))
	for _, c := range l.changes {
		out = append(out, c.Clone())
	}
	return out
}

// StaleBefore returns the entity ids of changes created before cutoff.
func (l *Ledger) StaleBefore(cutoff time.Time) []string {
	var ids []string
	for id, c := range l.changes {
		if c.Timestamp.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Clear drops every tracked change and returns how many were dropped.
func (l *Ledger) Clear() int {
	n := len(l.changes)
	l.changes = make(map[string]PendingChange)
	return n
}

// Snapshot returns a deep copy of the full map for persistence.
func (l *Ledger) Snapshot() map[string]PendingChange {
	out := make(map[string]PendingChange, len(l.changes))
	for id, c := range l.changes {
		out[id] = c.Clone()
	}
	return out
}
