package subs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbeezley/myk9q-sync/internal/testutil"
)

var testEpoch = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newRegistry(opts ...Option) (*Registry, *testutil.ManualClock) {
	clock := testutil.NewManualClock(testEpoch)
	r := New(append([]Option{WithClock(clock)}, opts...)...)
	return r, clock
}

func TestRegisterUnregister(t *testing.T) {
	r, _ := newRegistry()

	r.Register("entry:101", TypeEntity, "judge-1")
	r.Register("class:340", TypeGroup, "judge-1")
	assert.Equal(t, 2, r.ActiveCount())

	assert.True(t, r.Unregister("entry:101"))
	assert.False(t, r.Unregister("entry:101"), "second unregister is a no-op")
	assert.Equal(t, 1, r.ActiveCount())
}

func TestRegister_SameKeyRefreshes(t *testing.T) {
	r, clock := newRegistry()

	r.Register("entry:101", TypeEntity, "judge-1")
	clock.Advance(10 * time.Minute)
	r.Register("entry:101", TypeEntity, "judge-2")

	require.Equal(t, 1, r.ActiveCount())
	subs := r.Active()
	assert.Equal(t, "judge-2", subs[0].OwnerID)
	assert.True(t, subs[0].CreatedAt.Equal(testEpoch.Add(10*time.Minute)))
}

func TestCleanupByOwner(t *testing.T) {
	var torn []string
	r, _ := newRegistry(WithTeardown(func(s Subscription) { torn = append(torn, s.Key) }))

	r.Register("entry:101", TypeEntity, "judge-1")
	r.Register("entry:102", TypeEntity, "judge-1")
	r.Register("announcements", TypeGeneric, "gate-1")

	assert.Equal(t, 2, r.CleanupByOwner("judge-1"))
	assert.Equal(t, 1, r.ActiveCount())
	assert.Equal(t, []string{"entry:101", "entry:102"}, torn)

	assert.Equal(t, 0, r.CleanupByOwner("judge-1"), "repeat cleanup removes nothing")
}

func TestRelatedContexts(t *testing.T) {
	tests := []struct {
		from, to string
		related  bool
	}{
		{"/class/340/entry/1", "/class/340/entry/2", true}, // siblings
		{"/class/340", "/class/340/entry/1", true},         // ancestor/descendant
		{"/class/340/entry/1", "/class/340", true},
		{"/class/340", "/class/999", true}, // sibling classes
		{"/class/340/entry/1", "/settings", false},
		{"/class/340/entry/1", "/class/999/entry/1", false}, // different parents
		{"/", "/", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.related, RelatedContexts(tt.from, tt.to))
		})
	}
}

func TestCleanupOnContextChange(t *testing.T) {
	r, _ := newRegistry()
	r.Register("entry:101", TypeEntity, "judge-1")
	r.Register("class:340", TypeGroup, "judge-1")

	// Sibling navigation keeps subscriptions alive.
	assert.Equal(t, 0, r.CleanupOnContextChange("/class/340/entry/1", "/class/340/entry/2"))
	assert.Equal(t, 2, r.ActiveCount())

	// Unrelated navigation tears everything down.
	assert.Equal(t, 2, r.CleanupOnContextChange("/class/340/entry/1", "/settings"))
	assert.Equal(t, 0, r.ActiveCount())
}

func TestLeakDetection_CountThreshold(t *testing.T) {
	r, _ := newRegistry()

	for i := 0; i < 9; i++ {
		r.Register(fmt.Sprintf("entry:%d", i), TypeEntity, "judge-1")
	}
	assert.False(t, r.Health().HasLeaks, "9 active subscriptions are fine")

	r.Register("entry:9", TypeEntity, "judge-1")
	r.Register("entry:10", TypeEntity, "judge-1")
	h := r.Health()
	assert.True(t, h.HasLeaks, "11 active subscriptions flag a leak")
	assert.Equal(t, 11, h.ActiveCount)
	require.NotEmpty(t, h.LeakReasons)
}

func TestLeakDetection_AgeThreshold(t *testing.T) {
	r, clock := newRegistry()

	for i := 0; i < 6; i++ {
		r.Register(fmt.Sprintf("entry:%d", i), TypeEntity, "judge-1")
	}
	clock.Advance(61 * time.Minute)

	h := r.Health()
	assert.True(t, h.HasLeaks, "6 subscriptions older than an hour flag a leak")
	require.NotNil(t, h.OldestSubscription)
	assert.Equal(t, "1h1m0s", h.OldestSubscription.Age)
}

func TestSweepExpired(t *testing.T) {
	r, clock := newRegistry()

	r.Register("old", TypeEntity, "judge-1")
	clock.Advance(31 * time.Minute)
	r.Register("fresh", TypeEntity, "judge-1")

	assert.Equal(t, 1, r.SweepExpired())
	assert.Equal(t, 1, r.ActiveCount())
	_, found := find(r.Active(), "fresh")
	assert.True(t, found)
}

func TestRun_PeriodicCleanupStopsOnCancel(t *testing.T) {
	clock := testutil.NewManualClock(testEpoch)
	r := New(WithClock(clock), WithConfig(Config{CleanupInterval: 5 * time.Millisecond}))

	r.Register("old", TypeEntity, "judge-1")
	clock.Advance(31 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return r.ActiveCount() == 0 },
		time.Second, 5*time.Millisecond, "auto-cleanup sweeps the expired subscription")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}

func find(subs []Subscription, key string) (Subscription, bool) {
	for _, s := range subs {
		if s.Key == key {
			return s, true
		}
	}
	return Subscription{}, false
}
