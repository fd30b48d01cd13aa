// Package subs tracks the lifecycle of live push subscriptions,
// independent of their delivery mechanism. The delivery transport calls
// Register/Unregister as subscriptions open and close; the registry
// only does bookkeeping so teardown is deterministic and leaks are
// detectable.
package subs

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Type tags what a subscription watches.
type Type string

const (
	// TypeEntity is a per-entity subscription (one record's row).
	TypeEntity Type = "entity"
	// TypeGroup is a per-group subscription (all records of a class).
	TypeGroup Type = "group"
	// TypeGeneric covers everything else (announcements, presence).
	TypeGeneric Type = "generic"
)

// Clock supplies wall time; injected for deterministic age tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Subscription is one tracked live subscription.
type Subscription struct {
	Key       string    `json:"key"`
	Type      Type      `json:"type"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Config holds the leak heuristics and sweep policy.
type Config struct {
	// MaxActive flags a leak when more subscriptions are simultaneously
	// active.
	MaxActive int
	// MaxAged flags a leak when more subscriptions are older than
	// AgedThreshold.
	MaxAged int
	// AgedThreshold is the age past which a subscription counts toward
	// MaxAged.
	AgedThreshold time.Duration
	// MaxAge is the age at which the periodic auto-cleanup removes a
	// subscription.
	MaxAge time.Duration
	// CleanupInterval is how often the auto-cleanup task runs.
	CleanupInterval time.Duration
}

// DefaultConfig returns the documented thresholds.
func DefaultConfig() Config {
	return Config{
		MaxActive:       10,
		MaxAged:         5,
		AgedThreshold:   time.Hour,
		MaxAge:          30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// CleanupStats counts recent teardowns by cause.
type CleanupStats struct {
	ByOwner   int `json:"by_owner"`
	ByContext int `json:"by_context"`
	Auto      int `json:"auto"`
}

// Registry tracks active subscriptions. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	subs     map[string]Subscription
	cleanups CleanupStats

	clock    Clock
	logger   *slog.Logger
	cfg      Config
	teardown func(Subscription)
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock injects a clock. Default: system time.
func WithClock(c Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithLogger injects a structured logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithConfig overrides the leak and sweep thresholds. Zero fields keep
// defaults.
func WithConfig(cfg Config) Option {
	return func(r *Registry) {
		if cfg.MaxActive > 0 {
			r.cfg.MaxActive = cfg.MaxActive
		}
		if cfg.MaxAged > 0 {
			r.cfg.MaxAged = cfg.MaxAged
		}
		if cfg.AgedThreshold > 0 {
			r.cfg.AgedThreshold = cfg.AgedThreshold
		}
		if cfg.MaxAge > 0 {
			r.cfg.MaxAge = cfg.MaxAge
		}
		if cfg.CleanupInterval > 0 {
			r.cfg.CleanupInterval = cfg.CleanupInterval
		}
	}
}

// WithTeardown sets a callback invoked for each subscription the
// registry removes, so the transport can close the underlying channel.
// Called outside the registry lock.
func WithTeardown(fn func(Subscription)) Option {
	return func(r *Registry) { r.teardown = fn }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		subs:   make(map[string]Subscription),
		clock:  systemClock{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register tracks a newly opened subscription. Re-registering a key
// refreshes its creation time and ownership.
func (r *Registry) Register(key string, typ Type, ownerID string) {
	r.mu.Lock()
	r.subs[key] = Subscription{
		Key:       key,
		Type:      typ,
		OwnerID:   ownerID,
		CreatedAt: r.clock.Now(),
	}
	n := len(r.subs)
	r.mu.Unlock()

	r.logger.Debug("subscription registered", "key", key, "type", typ, "owner", ownerID, "active", n)
}

// Unregister stops tracking a subscription. Returns true if it was
// tracked.
func (r *Registry) Unregister(key string) bool {
	r.mu.Lock()
	_, ok := r.subs[key]
	delete(r.subs, key)
	r.mu.Unlock()

	if ok {
		r.logger.Debug("subscription unregistered", "key", key)
	}
	return ok
}

// ActiveCount returns the number of tracked subscriptions.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Active returns the tracked subscriptions sorted by key.
func (r *Registry) Active() []Subscription {
	r.mu.Lock()
	out := make([]Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CleanupByOwner tears down every subscription held by ownerID - bulk
// teardown on logout or tenant switch. Returns how many were removed.
func (r *Registry) CleanupByOwner(ownerID string) int {
	removed := r.removeIf(func(s Subscription) bool { return s.OwnerID == ownerID })
	r.mu.Lock()
	r.cleanups.ByOwner += len(removed)
	r.mu.Unlock()

	if len(removed) > 0 {
		r.logger.Info("subscriptions cleaned up by owner", "owner", ownerID, "count", len(removed))
	}
	r.invokeTeardown(removed)
	return len(removed)
}

// CleanupOnContextChange tears down all subscriptions when navigation
// moves between unrelated contexts. Same-context navigation - switching
// between sibling records, stepping into or out of a child path - must
// not tear down subscriptions.
func (r *Registry) CleanupOnContextChange(fromContext, toContext string) int {
	if RelatedContexts(fromContext, toContext) {
		return 0
	}

	removed := r.removeIf(func(Subscription) bool { return true })
	r.mu.Lock()
	r.cleanups.ByContext += len(removed)
	r.mu.Unlock()

	if len(removed) > 0 {
		r.logger.Info("subscriptions cleaned up on context change",
			"from", fromContext, "to", toContext, "count", len(removed))
	}
	r.invokeTeardown(removed)
	return len(removed)
}

// RelatedContexts judges two navigation contexts by a path-prefix
// heuristic: related when one path is an ancestor of the other, or when
// both share the same parent path (siblings).
func RelatedContexts(from, to string) bool {
	fa := segments(from)
	ta := segments(to)
	if len(fa) == 0 && len(ta) == 0 {
		return true
	}
	if isPathPrefix(fa, ta) || isPathPrefix(ta, fa) {
		return true
	}
	if len(fa) == len(ta) && len(fa) > 0 && isPathPrefix(fa[:len(fa)-1], ta[:len(ta)-1]) && isPathPrefix(ta[:len(ta)-1], fa[:len(fa)-1]) {
		return true
	}
	return false
}

func segments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isPathPrefix(prefix, full []string) bool {
	if len(prefix) > len(full) {
		return false
	}
	for i := range prefix {
		if prefix[i] != full[i] {
			return false
		}
	}
	return true
}

// removeIf deletes matching subscriptions and returns them.
func (r *Registry) removeIf(match func(Subscription) bool) []Subscription {
	r.mu.Lock()
	var removed []Subscription
	for key, s := range r.subs {
		if match(s) {
			removed = append(removed, s)
			delete(r.subs, key)
		}
	}
	r.mu.Unlock()

	sort.Slice(removed, func(i, j int) bool { return removed[i].Key < removed[j].Key })
	return removed
}

func (r *Registry) invokeTeardown(removed []Subscription) {
	if r.teardown == nil {
		return
	}
	for _, s := range removed {
		r.teardown(s)
	}
}

// Run executes the periodic auto-cleanup until ctx is cancelled: it
// sweeps subscriptions older than MaxAge and logs any detected leak.
// Blocks; run it on its own goroutine.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := r.SweepExpired()
			if n > 0 {
				r.logger.Info("expired subscriptions swept", "count", n)
			}
			if h := r.Health(); h.HasLeaks {
				r.logger.Warn("subscription leak detected",
					"active", h.ActiveCount, "reasons", strings.Join(h.LeakReasons, "; "))
			}
		}
	}
}

// SweepExpired removes subscriptions older than MaxAge and returns how
// many were removed.
func (r *Registry) SweepExpired() int {
	cutoff := r.clock.Now().Add(-r.cfg.MaxAge)
	removed := r.removeIf(func(s Subscription) bool { return s.CreatedAt.Before(cutoff) })

	r.mu.Lock()
	r.cleanups.Auto += len(removed)
	r.mu.Unlock()

	r.invokeTeardown(removed)
	return len(removed)
}
