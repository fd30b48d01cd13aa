package engine

import (
	"context"
	"time"

	"github.com/rbeezley/myk9q-sync/internal/ledger"
	"github.com/rbeezley/myk9q-sync/internal/notify"
)

// GCResult reports what a long-term garbage collection pass did.
// Kept counts the failed changes inside the retry window, old enough
// to be judged but not yet past the discard age.
type GCResult struct {
	Discarded int `json:"discarded"`
	Kept      int `json:"kept"`
}

// ClearStalePending unconditionally removes pending changes older than
// maxAge (0 means the configured default). Runs at initialization and
// as the first step of every snapshot pass; also available directly for
// the background sweeper.
//
// Returns the entity ids cleared. Clearing notifies: the UI was showing
// unconfirmed data that just got dropped.
func (e *Engine) ClearStalePending(ctx context.Context, maxAge time.Duration) []string {
	if maxAge <= 0 {
		maxAge = e.cfg.StaleMaxAge
	}

	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return nil
	}
	cleared := e.sweepStaleLocked(maxAge)
	if len(cleared) > 0 {
		e.persistLocked(ctx)
	}
	e.mu.Unlock()

	e.publishCleared(notify.KindDiscard, cleared)
	return cleared
}

// GarbageCollect applies the long-term retention policy to failed
// changes: younger than the minimum age they are untouchable, between
// the minimum and maximum age they are kept for user-initiated retry,
// beyond the maximum age they are auto-discarded.
func (e *Engine) GarbageCollect(ctx context.Context) GCResult {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return GCResult{}
	}

	now := e.clock.Now()
	var discarded []string
	kept := 0
	for _, chg := range e.pending.All() {
		if chg.Status != ledger.StatusFailed {
			continue
		}
		age := chg.Age(now)
		if age <= e.cfg.GCMinAge {
			// Too recent to judge.
			continue
		}
		if age > e.cfg.GCMaxAge {
			discarded = append(discarded, chg.EntityID)
		} else {
			kept++
		}
	}
	for _, id := range discarded {
		chg, _ := e.pending.Get(id)
		e.pending.Delete(id)
		e.logger.Warn("failed change aged out",
			"entity", id,
			"change", chg.ID,
			"retries", chg.RetryCount,
			"last_error", chg.LastError)
	}

	res := GCResult{Discarded: len(discarded), Kept: kept}
	if res.Discarded > 0 {
		e.persistLocked(ctx)
	}
	e.mu.Unlock()

	e.publishCleared(notify.KindDiscard, discarded)
	return res
}

// ClearAllPending drops every pending change. Emergency escape hatch
// for operators and debugging.
func (e *Engine) ClearAllPending(ctx context.Context) int {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return 0
	}

	var ids []string
	for _, chg := range e.pending.All() {
		ids = append(ids, chg.EntityID)
	}
	n := e.pending.Clear()
	if n > 0 {
		e.persistLocked(ctx)
	}
	e.mu.Unlock()

	e.logger.Warn("all pending changes cleared", "count", n)
	e.publishCleared(notify.KindDiscard, ids)
	return n
}
