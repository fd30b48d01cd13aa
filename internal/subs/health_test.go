package subs

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// TestHealthReport_Golden pins the JSON shape of the health report.
// Operational dashboards consume this; field renames are breaking.
//
// To regenerate: go test ./internal/subs -update
func TestHealthReport_Golden(t *testing.T) {
	r, clock := newRegistry()

	r.Register("entry:101", TypeEntity, "judge-1")
	clock.Advance(10 * time.Minute)
	r.Register("class:340", TypeGroup, "judge-1")
	clock.Advance(50 * time.Minute)
	r.Register("announcements", TypeGeneric, "gate-1")
	r.CleanupByOwner("gate-1")

	report := r.Health()
	data, err := json.MarshalIndent(report, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "health_report", data)
}
