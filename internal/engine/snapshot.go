package engine

import (
	"context"
	"sort"

	"github.com/rbeezley/myk9q-sync/internal/notify"
	"github.com/rbeezley/myk9q-sync/internal/record"
)

// ApplyServerSnapshot merges an authoritative backend snapshot into the
// store, resolving each record against any outstanding pending change.
//
// The stale sweep runs first so expired pending changes never block
// reconciliation. Then, per incoming record:
//
//   - no pending change: adopt the snapshot as-is
//   - every field named in the change matches the snapshot: confirmed -
//     adopt the snapshot, delete the pending change
//   - a field differs and the change is still live: divergent - store
//     the snapshot overlaid by the change (pending wins), keep pending
//   - a field differs and the change is stale: abandoned - adopt the
//     snapshot, delete the pending change
//
// Field comparison is strict per-field equality; a field the snapshot
// omits compares as nil, so a pending nil matches an absent field.
//
// Listeners fire only when at least one pending change was cleared this
// pass (confirmed or discarded as stale). A snapshot that changes only
// unpended fields, or is absorbed without touching the ledger, is a
// background no-op: notifying there would let background polling
// re-trigger UI refresh, which re-triggers fetch, indefinitely.
//
// The returned event reports what the pass did; it has already been
// published (or suppressed) by the time this returns.
func (e *Engine) ApplyServerSnapshot(ctx context.Context, records []record.Record) (notify.Event, error) {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return notify.Event{}, errNotInitialized()
	}

	cleared := e.sweepStaleLocked(e.cfg.StaleMaxAge)
	now := e.clock.Now()

	for _, snap := range records {
		chg, ok := e.pending.Get(snap.ID)
		if !ok {
			e.records[snap.ID] = snap.Clone()
			continue
		}

		allMatch := true
		for field, want := range chg.Changes {
			if !record.FieldEqual(want, snap.Fields[field]) {
				allMatch = false
				break
			}
		}

		switch {
		case allMatch:
			// Backend confirms the local intent.
			e.records[snap.ID] = snap.Clone()
			e.pending.Delete(snap.ID)
			cleared = append(cleared, snap.ID)

		case chg.Age(now) <= e.cfg.StaleMaxAge:
			// Divergent but live: pending still wins until confirmed
			// or stale.
			merged := snap.Clone()
			merged.Fields = record.Merge(merged.Fields, chg.Changes)
			e.records[snap.ID] = merged

		default:
			// Divergent and stale: presumed abandoned. Documented
			// availability-over-durability trade-off; observable, not
			// swallowed.
			e.records[snap.ID] = snap.Clone()
			e.pending.Delete(snap.ID)
			cleared = append(cleared, snap.ID)
			e.logger.Warn("stale pending change lost to snapshot",
				"entity", snap.ID,
				"change", chg.ID,
				"type", chg.Type,
				"age", chg.Age(now).String())
		}
	}

	e.persistLocked(ctx)
	e.mu.Unlock()

	sort.Strings(cleared)
	ev := notify.Event{EntityIDs: cleared, Cleared: len(cleared)}
	if len(cleared) > 0 {
		ev.Kind = notify.KindConfirmation
	} else {
		ev.Kind = notify.KindBackgroundNoop
	}
	e.hub.Publish(ev)
	return ev, nil
}
