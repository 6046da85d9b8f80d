package requirement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenExpandsCompositeAndDropsReplication(t *testing.T) {
	attr := NewNodeAttrMatch(map[string]string{"zone": "eu"})
	res := NewNodeResourceMin(map[string]float64{"cpu": 2})
	repl := NewReplication("r1")
	composite := NewComposite(attr, res)

	flat := Flatten([]Clause{composite, repl})

	assert.Len(t, flat, 2)
	assert.Equal(t, NodeAttrMatch, flat[0].Kind)
	assert.Equal(t, NodeResourceMin, flat[1].Kind)
}

func TestFlattenIsIdempotentOnNonCompositeClauses(t *testing.T) {
	attr := NewNodeAttrMatch(map[string]string{"zone": "eu"})

	flat := Flatten([]Clause{attr})

	assert.Len(t, flat, 1)
	assert.Equal(t, attr, flat[0])
}

func TestCumulativeResourceDemandSumsAcrossClauses(t *testing.T) {
	a := NewNodeResourceMin(map[string]float64{"cpu": 1, "ram": 2})
	b := NewNodeResourceMin(map[string]float64{"cpu": 3})
	composite := NewComposite(a, b)

	demand := CumulativeResourceDemand([]Clause{composite})

	assert.InDelta(t, 4, demand["cpu"], 1e-9)
	assert.InDelta(t, 2, demand["ram"], 1e-9)
}

func TestCumulativeResourceDemandIgnoresNonResourceClauses(t *testing.T) {
	a := NewNodeAttrMatch(map[string]string{"zone": "eu"})

	demand := CumulativeResourceDemand([]Clause{a})

	assert.Empty(t, demand)
}
