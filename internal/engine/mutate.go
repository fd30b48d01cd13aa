package engine

import (
	"context"
	"sort"

	"github.com/rbeezley/myk9q-sync/internal/ledger"
	"github.com/rbeezley/myk9q-sync/internal/notify"
	"github.com/rbeezley/myk9q-sync/internal/record"
)

// UpdateEntity applies an optimistic local mutation: the visible state
// reflects the change immediately, before any backend confirmation.
//
// A new pending change replaces any existing one for the entity - the
// latest local intent wins, never a union of both. If the entity has no
// record yet, a changes-only placeholder is synthesized so the UI still
// reflects intent before the first snapshot arrives.
//
// Local mutations always notify.
func (e *Engine) UpdateEntity(ctx context.Context, entityID string, changes map[string]any, typ ledger.ChangeType) error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return errNotInitialized()
	}

	chg := ledger.PendingChange{
		ID:         e.idgen.NewID(),
		EntityID:   entityID,
		Timestamp:  e.clock.Now(),
		Type:       typ,
		Changes:    record.CloneFields(changes),
		Status:     ledger.StatusPending,
		MaxRetries: ledger.DefaultMaxRetries,
	}
	e.pending.Put(chg)

	if r, ok := e.records[entityID]; ok {
		r.Fields = record.Merge(r.Fields, changes)
		e.records[entityID] = r
	} else {
		// Changes-only placeholder: not yet trusted as canonical, but
		// visible until the first real snapshot arrives.
		e.records[entityID] = record.New(entityID, changes)
	}

	e.persistLocked(ctx)
	e.mu.Unlock()

	e.hub.Publish(notify.Event{
		Kind:      notify.KindLocalMutation,
		EntityIDs: []string{entityID},
		Cleared:   0,
	})
	return nil
}

// GetEntity returns the entity with any live pending change's fields
// overlaid. This is the single read path every consumer must use.
func (e *Engine) GetEntity(entityID string) (record.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.overlaidLocked(entityID)
}

// GetEntitiesByParent returns all entities whose parent field matches
// parentID, each with its pending overlay, sorted by id.
func (e *Engine) GetEntitiesByParent(parentID string) []record.Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []record.Record
	for id, r := range e.records {
		key, ok := record.ParentKey(r.Fields, e.parentField)
		if !ok || key != parentID {
			continue
		}
		if overlaid, ok := e.overlaidLocked(id); ok {
			out = append(out, overlaid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EntityCount returns the number of cached records.
func (e *Engine) EntityCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

// overlaidLocked builds the read view for one entity. Caller holds e.mu.
func (e *Engine) overlaidLocked(entityID string) (record.Record, bool) {
	r, ok := e.records[entityID]
	if !ok {
		return record.Record{}, false
	}
	out := r.Clone()
	if chg, ok := e.pending.Get(entityID); ok {
		out.Fields = record.Merge(out.Fields, chg.Changes)
	}
	return out, true
}

// PendingChanges returns clones of every tracked pending change,
// ordered by entity id. Read by the sync dispatcher.
func (e *Engine) PendingChanges() []ledger.PendingChange {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.pending.All()
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// PendingChangesForParent returns pending changes whose target entity
// belongs to parentID.
func (e *Engine) PendingChangesForParent(parentID string) []ledger.PendingChange {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []ledger.PendingChange
	for _, chg := range e.pending.All() {
		r, ok := e.records[chg.EntityID]
		if !ok {
			continue
		}
		if key, ok := record.ParentKey(r.Fields, e.parentField); ok && key == parentID {
			out = append(out, chg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// FailedChanges returns pending changes with status failed. The worst
// failure mode of this core - an optimistic write dropped after its
// staleness window - stays visible to the user through this accessor.
func (e *Engine) FailedChanges() []ledger.PendingChange {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []ledger.PendingChange
	for _, chg := range e.pending.All() {
		if chg.Status == ledger.StatusFailed {
			out = append(out, chg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// PendingChange returns the pending change for one entity, if any.
func (e *Engine) PendingChange(entityID string) (ledger.PendingChange, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	chg, ok := e.pending.Get(entityID)
	if !ok {
		return ledger.PendingChange{}, false
	}
	return chg.Clone(), true
}

// MarkSyncing records that the dispatcher has picked the change up and
// a write is in flight.
func (e *Engine) MarkSyncing(ctx context.Context, entityID string) error {
	return e.transition(ctx, entityID, ledger.StatusSyncing, func(chg *ledger.PendingChange) {
		now := e.clock.Now()
		chg.LastAttemptAt = &now
	})
}

// MarkAsFailed records a sync failure: status failed, retry count
// incremented, error captured. Resolution is deferred to the dispatcher
// or a user-initiated retry.
func (e *Engine) MarkAsFailed(ctx context.Context, entityID string, errMsg string) error {
	return e.transition(ctx, entityID, ledger.StatusFailed, func(chg *ledger.PendingChange) {
		now := e.clock.Now()
		chg.RetryCount++
		chg.LastError = errMsg
		chg.FailedAt = &now
	})
}

// RetryFailedChange marks a failed change for another attempt. Actual
// resubmission is performed by the dispatcher.
func (e *Engine) RetryFailedChange(ctx context.Context, entityID string) error {
	return e.transition(ctx, entityID, ledger.StatusRetrying, func(chg *ledger.PendingChange) {
		now := e.clock.Now()
		chg.LastAttemptAt = &now
	})
}

// ClearPendingChange removes the pending change after the dispatcher
// reports a successful write. The store keeps the optimistic value
// until the next snapshot confirms or corrects it. Does not notify:
// the visible overlay value is unchanged.
func (e *Engine) ClearPendingChange(ctx context.Context, entityID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return errNotInitialized()
	}

	if !e.pending.Delete(entityID) {
		return errNoPendingChange(entityID)
	}
	e.persistLocked(ctx)
	return nil
}

// transition applies a status change under the ledger's state machine.
func (e *Engine) transition(ctx context.Context, entityID string, to ledger.Status, mutate func(*ledger.PendingChange)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return errNotInitialized()
	}

	chg, ok := e.pending.Get(entityID)
	if !ok {
		return errNoPendingChange(entityID)
	}
	if !ledger.CanTransition(chg.Status, to) {
		return errBadTransition(entityID, string(chg.Status), string(to))
	}

	chg.Status = to
	mutate(&chg)
	e.pending.Put(chg)
	e.persistLocked(ctx)

	e.logger.Debug("pending change status",
		"entity", entityID, "change", chg.ID, "status", to, "retries", chg.RetryCount)
	return nil
}
