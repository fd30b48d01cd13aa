package persist

import (
	"context"
	"testing"
	"time"

	"github.com/rbeezley/myk9q-sync/internal/ledger"
	"github.com/rbeezley/myk9q-sync/internal/record"
)

// countingAdapter wraps Memory and counts writes.
type countingAdapter struct {
	*Memory
	sets int
}

func (c *countingAdapter) Set(ctx context.Context, key string, value []byte) error {
	c.sets++
	return c.Memory.Set(ctx, key, value)
}

func testState() State {
	return State{
		Records: map[string]record.Record{
			"e1": record.New("e1", map[string]any{"score": 10, "class_id": "340"}),
		},
		Changes: map[string]ledger.PendingChange{
			"e1": {
				ID:        "chg-1",
				EntityID:  "e1",
				Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
				Type:      ledger.ChangeScore,
				Changes:   map[string]any{"score": 5},
				Status:    ledger.StatusPending,
			},
		},
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewCodec(NewMemory())

	if err := c.Save(ctx, testState()); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	st, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	r, ok := st.Records["e1"]
	if !ok {
		t.Fatal("record e1 missing after round trip")
	}
	if !record.FieldEqual(r.Fields["score"], 10) {
		t.Errorf("score = %v, want 10", r.Fields["score"])
	}

	chg, ok := st.Changes["e1"]
	if !ok {
		t.Fatal("pending change e1 missing after round trip")
	}
	if chg.Status != ledger.StatusPending {
		t.Errorf("status = %q, want pending", chg.Status)
	}
	if !record.FieldEqual(chg.Changes["score"], 5) {
		t.Errorf("pending score = %v, want 5", chg.Changes["score"])
	}
}

func TestCodec_LoadEmptyAdapter(t *testing.T) {
	st, err := NewCodec(NewMemory()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() on empty adapter failed: %v", err)
	}
	if len(st.Records) != 0 || len(st.Changes) != 0 {
		t.Errorf("expected empty state, got %d records, %d changes", len(st.Records), len(st.Changes))
	}
}

func TestCodec_SkipsUnchangedRewrite(t *testing.T) {
	ctx := context.Background()
	a := &countingAdapter{Memory: NewMemory()}
	c := NewCodec(a)

	st := testState()
	if err := c.Save(ctx, st); err != nil {
		t.Fatalf("first Save() failed: %v", err)
	}
	writes := a.sets
	if writes != 2 {
		t.Fatalf("first Save() wrote %d keys, want 2", writes)
	}

	// Identical state: both writes skipped.
	if err := c.Save(ctx, st); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}
	if a.sets != writes {
		t.Errorf("unchanged Save() performed %d extra writes", a.sets-writes)
	}

	// Touch only the store: one write.
	st.Records["e2"] = record.New("e2", map[string]any{"score": 1})
	if err := c.Save(ctx, st); err != nil {
		t.Fatalf("third Save() failed: %v", err)
	}
	if a.sets != writes+1 {
		t.Errorf("store-only change wrote %d keys, want 1", a.sets-writes)
	}
}

func TestCodec_Reset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	c := NewCodec(m)

	if err := c.Save(ctx, testState()); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset() failed: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("adapter still holds %d keys after Reset()", m.Len())
	}

	// After Reset, saving the same state must write again.
	if err := c.Save(ctx, testState()); err != nil {
		t.Fatalf("Save() after Reset failed: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("adapter holds %d keys, want 2", m.Len())
	}
}
