package requirement

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/placement-core/internal/registry"
)

func TestMatcherEvaluateEmptyClausesIsUniverse(t *testing.T) {
	m := NewMatcher(registry.NewMemoryRegistry())

	got, err := m.Evaluate(context.Background(), nil, []string{"n1", "n2"})
	require.NoError(t, err)
	assert.True(t, got.IsUniverse())
}

func TestMatcherEvaluateNodeAttrMatch(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	ctx := context.Background()

	path := registry.AttrIndexPath([]string{"node", "attribute"}, map[string]string{"zone": "eu"})
	require.NoError(t, reg.AddIndex(ctx, path, "n1", 2))

	m := NewMatcher(reg)

	clause := NewNodeAttrMatch(map[string]string{"zone": "eu"})

	got, err := m.Evaluate(ctx, []Clause{clause}, []string{"n1", "n2"})
	require.NoError(t, err)

	assert.True(t, got.Contains("n1"))
	assert.False(t, got.Contains("n2"))
}

func TestMatcherEvaluateNodeAttrMatchNoneIndexedIsEmpty(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	m := NewMatcher(reg)

	clause := NewNodeAttrMatch(map[string]string{"zone": "eu"})

	got, err := m.Evaluate(context.Background(), []Clause{clause}, []string{"n1"})
	require.NoError(t, err)

	assert.Equal(t, 0, got.Len())
}

func TestMatcherEvaluateNodeResourceMin(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	ctx := context.Background()

	setResource(t, reg, ctx, "n1", "cpu", 50, 1000) // 500 available units
	setResource(t, reg, ctx, "n2", "cpu", 10, 1000)  // 100 available units

	m := NewMatcher(reg)

	clause := NewNodeResourceMin(map[string]float64{"cpu": 200})

	got, err := m.Evaluate(ctx, []Clause{clause}, []string{"n1", "n2"})
	require.NoError(t, err)

	assert.True(t, got.Contains("n1"))
	assert.False(t, got.Contains("n2"))
}

func TestMatcherEvaluateNodeResourceMinMissingReadingIsZero(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	m := NewMatcher(reg)

	clause := NewNodeResourceMin(map[string]float64{"cpu": 1})

	got, err := m.Evaluate(context.Background(), []Clause{clause}, []string{"unknown"})
	require.NoError(t, err)

	assert.False(t, got.Contains("unknown"))
}

func TestMatcherEvaluateIntersectsMultipleClauses(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	ctx := context.Background()

	path := registry.AttrIndexPath([]string{"node", "attribute"}, map[string]string{"zone": "eu"})
	require.NoError(t, reg.AddIndex(ctx, path, "n1", 2))
	require.NoError(t, reg.AddIndex(ctx, path, "n2", 2))

	setResource(t, reg, ctx, "n1", "cpu", 50, 1000)
	setResource(t, reg, ctx, "n2", "cpu", 0, 1000)

	m := NewMatcher(reg)

	clauses := []Clause{
		NewNodeAttrMatch(map[string]string{"zone": "eu"}),
		NewNodeResourceMin(map[string]float64{"cpu": 100}),
	}

	got, err := m.Evaluate(ctx, clauses, []string{"n1", "n2"})
	require.NoError(t, err)

	assert.True(t, got.Contains("n1"))
	assert.False(t, got.Contains("n2"))
}

func setResource(t *testing.T, reg registry.Registry, ctx context.Context, nodeID, kind string, availPct, total float64) {
	t.Helper()

	var availPrefix, totalPrefix string

	switch kind {
	case "cpu":
		availPrefix, totalPrefix = registry.PrefixNodeCPUAvail, registry.PrefixNodeCPUTotal
	case "ram":
		availPrefix, totalPrefix = registry.PrefixNodeMemAvail, registry.PrefixNodeMemTotal
	}

	require.NoError(t, reg.Set(ctx, availPrefix, nodeID, strconv.FormatFloat(availPct, 'f', -1, 64)))
	require.NoError(t, reg.Set(ctx, totalPrefix, nodeID, strconv.FormatFloat(total, 'f', -1, 64)))
}
