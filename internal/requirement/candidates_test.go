package requirement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidatesUniverseIsDistinctFromEmpty(t *testing.T) {
	u := AnyNode()
	e := Empty()

	assert.True(t, u.IsUniverse())
	assert.False(t, e.IsUniverse())
	assert.Equal(t, -1, u.Len())
	assert.Equal(t, 0, e.Len())
}

func TestCandidatesResolveSubstitutesUniverse(t *testing.T) {
	universe := map[string]struct{}{"a": {}, "b": {}, "c": {}}

	resolved := AnyNode().Resolve(universe)

	assert.False(t, resolved.IsUniverse())
	assert.Equal(t, 3, resolved.Len())
	assert.True(t, resolved.Contains("a"))
}

func TestCandidatesResolveLeavesConcreteSetUnchanged(t *testing.T) {
	set := Set(map[string]struct{}{"a": {}})
	universe := map[string]struct{}{"a": {}, "b": {}}

	resolved := set.Resolve(universe)

	assert.Equal(t, 1, resolved.Len())
	assert.True(t, resolved.Contains("a"))
	assert.False(t, resolved.Contains("b"))
}

func TestCandidatesIntersect(t *testing.T) {
	a := Set(map[string]struct{}{"x": {}, "y": {}})
	b := Set(map[string]struct{}{"y": {}, "z": {}})

	got := a.Intersect(b)

	assert.Equal(t, 1, got.Len())
	assert.True(t, got.Contains("y"))
}

func TestCandidatesIntersectWithUniverseIsIdentity(t *testing.T) {
	a := Set(map[string]struct{}{"x": {}, "y": {}})

	got := a.Intersect(AnyNode())
	assert.Equal(t, a.Len(), got.Len())
	assert.True(t, got.Contains("x"))

	got = AnyNode().Intersect(a)
	assert.Equal(t, a.Len(), got.Len())
}

func TestCandidatesIntersectOfUniversesIsUniverse(t *testing.T) {
	got := AnyNode().Intersect(AnyNode())
	assert.True(t, got.IsUniverse())
}

func TestCandidatesUnion(t *testing.T) {
	a := Set(map[string]struct{}{"x": {}})
	b := Set(map[string]struct{}{"y": {}})

	got := a.Union(b)

	assert.Equal(t, 2, got.Len())
	assert.True(t, got.Contains("x"))
	assert.True(t, got.Contains("y"))
}

func TestCandidatesUnionWithUniverseIsUniverse(t *testing.T) {
	a := Set(map[string]struct{}{"x": {}})

	got := a.Union(AnyNode())
	assert.True(t, got.IsUniverse())
}

func TestCandidatesEmptyIntersectConcreteIsEmpty(t *testing.T) {
	a := Empty()
	b := Set(map[string]struct{}{"x": {}})

	got := a.Intersect(b)
	assert.Equal(t, 0, got.Len())
	assert.False(t, got.Contains("x"))
}

func TestCandidatesIDsOnUniversePanics(t *testing.T) {
	assert.Panics(t, func() {
		AnyNode().IDs()
	})
}
