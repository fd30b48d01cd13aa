// Package engine implements the local-first reconciliation core: an
// authoritative-as-of-last-sync entity cache, a pending-change ledger,
// and the reconciler that merges backend snapshots against outstanding
// local mutations.
package engine

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rbeezley/myk9q-sync/internal/ledger"
	"github.com/rbeezley/myk9q-sync/internal/notify"
	"github.com/rbeezley/myk9q-sync/internal/persist"
	"github.com/rbeezley/myk9q-sync/internal/record"
)

// Defaults for time-based policies.
const (
	// DefaultStaleMaxAge is how long an unconfirmed change is trusted
	// before it is presumed abandoned.
	DefaultStaleMaxAge = 60 * time.Second

	// DefaultGCMinAge is the age below which failed changes are always
	// kept (the user may still retry).
	DefaultGCMinAge = 24 * time.Hour

	// DefaultGCMaxAge is the age beyond which failed changes are
	// auto-discarded.
	DefaultGCMaxAge = 7 * 24 * time.Hour

	// DefaultSweepInterval is how often the background stale sweep runs.
	DefaultSweepInterval = 30 * time.Second

	// DefaultGCInterval is how often the background long-term GC runs.
	DefaultGCInterval = 24 * time.Hour

	// DefaultParentField names the record field that groups entities
	// (competition entries group by class).
	DefaultParentField = "class_id"
)

// Config holds the engine's time-based policies.
type Config struct {
	StaleMaxAge   time.Duration
	GCMinAge      time.Duration
	GCMaxAge      time.Duration
	SweepInterval time.Duration
	GCInterval    time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		StaleMaxAge:   DefaultStaleMaxAge,
		GCMinAge:      DefaultGCMinAge,
		GCMaxAge:      DefaultGCMaxAge,
		SweepInterval: DefaultSweepInterval,
		GCInterval:    DefaultGCInterval,
	}
}

// Engine is the single logical owner of the entity store and the
// pending-change ledger.
//
// Thread-safety model: one mutex guards both maps. Every public
// operation acquires it, so a live push update and a manual refresh
// firing simultaneously cannot interleave partial updates. Listener
// notification happens synchronously inside the mutating call, after
// the mutex is released; re-entrant mutation from a listener is safe
// (it re-acquires the mutex) and re-entrant notification is queued by
// the hub rather than recursed.
//
// Persistence is best-effort during normal operation: a write failure
// is logged and the engine continues in memory. Close flushes a final
// rewrite and surfaces the error so shutdown loss is visible.
type Engine struct {
	mu      sync.Mutex
	records map[string]record.Record
	pending *ledger.Ledger

	codec       *persist.Codec
	hub         *notify.Hub
	clock       Clock
	idgen       IDGenerator
	logger      *slog.Logger
	parentField string
	cfg         Config

	initialized bool

	// Background sweeper lifecycle.
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects a clock. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator injects a change-id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.idgen = g }
}

// WithLogger injects a structured logger. Default: discard (the core is
// silent unless told otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNotifier injects a shared notification hub. Default: a private hub.
func WithNotifier(h *notify.Hub) Option {
	return func(e *Engine) { e.hub = h }
}

// WithConfig overrides the time-based policies. Zero fields fall back
// to defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		if cfg.StaleMaxAge > 0 {
			e.cfg.StaleMaxAge = cfg.StaleMaxAge
		}
		if cfg.GCMinAge > 0 {
			e.cfg.GCMinAge = cfg.GCMinAge
		}
		if cfg.GCMaxAge > 0 {
			e.cfg.GCMaxAge = cfg.GCMaxAge
		}
		if cfg.SweepInterval > 0 {
			e.cfg.SweepInterval = cfg.SweepInterval
		}
		if cfg.GCInterval > 0 {
			e.cfg.GCInterval = cfg.GCInterval
		}
	}
}

// WithParentField names the record field used by GetEntitiesByParent.
func WithParentField(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.parentField = name
		}
	}
}

// New creates an Engine over the given persistence adapter. Call
// Initialize before any other operation.
func New(adapter persist.Adapter, opts ...Option) *Engine {
	e := &Engine{
		records:     make(map[string]record.Record),
		pending:     ledger.New(),
		codec:       persist.NewCodec(adapter),
		hub:         notify.NewHub(),
		clock:       SystemClock{},
		idgen:       UUIDv7Generator{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		parentField: DefaultParentField,
		cfg:         DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize loads the persisted store and ledger, then runs the stale
// sweep before serving any read. A change that silently failed while
// the process was down must not lock the UI into showing unconfirmed
// data.
func (e *Engine) Initialize(ctx context.Context) error {
	st, err := e.codec.Load(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.records = make(map[string]record.Record, len(st.Records))
	for id, r := range st.Records {
		r.ID = id
		e.records[id] = r
	}
	e.pending = ledger.FromSnapshot(st.Changes)
	e.initialized = true

	cleared := e.sweepStaleLocked(e.cfg.StaleMaxAge)
	e.persistLocked(ctx)
	e.mu.Unlock()

	e.publishCleared(notify.KindDiscard, cleared)

	e.logger.Info("engine initialized",
		"records", len(st.Records),
		"pending", len(st.Changes),
		"stale_cleared", len(cleared))
	return nil
}

// Subscribe registers a change listener and returns its unsubscribe
// function. Listeners run synchronously on the mutating goroutine.
func (e *Engine) Subscribe(l notify.Listener) func() {
	return e.hub.Subscribe(l)
}

// Run executes the periodic background tasks - stale sweep and
// long-term GC - until ctx is cancelled. Blocks; run it on its own
// goroutine.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.cancel = cancel
	done := make(chan struct{})
	e.done = done
	e.mu.Unlock()
	defer close(done)

	sweep := time.NewTicker(e.cfg.SweepInterval)
	defer sweep.Stop()
	gc := time.NewTicker(e.cfg.GCInterval)
	defer gc.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			e.ClearStalePending(ctx, e.cfg.StaleMaxAge)
		case <-gc.C:
			res := e.GarbageCollect(ctx)
			e.logger.Info("garbage collect", "discarded", res.Discarded, "kept", res.Kept)
		}
	}
}

// Close stops background work and flushes a final persistence rewrite.
// The flush error is returned: losing confirmed state at shutdown must
// be visible.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil
	}
	return e.codec.Save(ctx, e.stateLocked())
}

// stateLocked assembles the durable snapshot. Caller holds e.mu.
func (e *Engine) stateLocked() persist.State {
	records := make(map[string]record.Record, len(e.records))
	for id, r := range e.records {
		records[id] = r.Clone()
	}
	return persist.State{Records: records, Changes: e.pending.Snapshot()}
}

// persistLocked writes both maps, logging instead of failing: a
// persistence error must never crash the reconciliation path. Caller
// holds e.mu.
func (e *Engine) persistLocked(ctx context.Context) {
	if err := e.codec.Save(ctx, e.stateLocked()); err != nil {
		e.logger.Error("persistence failed, continuing in memory", "error", err)
	}
}

// sweepStaleLocked removes pending changes older than maxAge and
// returns the affected entity ids. Caller holds e.mu.
func (e *Engine) sweepStaleLocked(maxAge time.Duration) []string {
	cutoff := e.clock.Now().Add(-maxAge)
	ids := e.pending.StaleBefore(cutoff)
	for _, id := range ids {
		chg, _ := e.pending.Get(id)
		e.pending.Delete(id)
		e.logger.Warn("stale pending change discarded",
			"entity", id,
			"change", chg.ID,
			"type", chg.Type,
			"status", chg.Status,
			"age", e.clock.Now().Sub(chg.Timestamp).String())
	}
	sort.Strings(ids)
	return ids
}

// publishCleared emits an event of the given kind when any pending
// change was cleared. Must be called without holding e.mu.
func (e *Engine) publishCleared(kind notify.Kind, entityIDs []string) {
	if len(entityIDs) == 0 {
		return
	}
	sort.Strings(entityIDs)
	e.hub.Publish(notify.Event{
		Kind:      kind,
		EntityIDs: entityIDs,
		Cleared:   len(entityIDs),
	})
}
