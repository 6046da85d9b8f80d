package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoneyScoreSumsCPUAndRAMCostPerNode(t *testing.T) {
	in := ScoreInput{
		Option: Option{
			"a1": {Runtime: "n1"},
			"a2": {Runtime: "n1"},
		},
		Nodes: map[string]NodeView{
			"n1": {ID: "n1", CostCPU: 0.1, CostRAM: 0.01},
		},
		Demand: map[string]map[string]float64{
			"a1": {"cpu": 1, "ram": 1024},
			"a2": {"cpu": 2, "ram": 512},
		},
	}

	got := Money{}.Score(in)
	want := (1+2)*0.1 + (1024+512)*0.01
	assert.InDelta(t, want, got, 1e-9)
}

func TestMoneyScoreIncludesLinkBandwidthCost(t *testing.T) {
	in := ScoreInput{
		Option: Option{
			"a1": {Runtime: "n1", PhysLinkUsed: "l1"},
		},
		Nodes: map[string]NodeView{
			"n1": {ID: "n1"},
		},
		Links: map[string]LinkView{
			"l1": {ID: "l1", BandwidthKbit: 1000, CostPerKbit: 0.0001},
		},
		Demand: map[string]map[string]float64{"a1": {}},
	}

	assert.InDelta(t, 0.1, Money{}.Score(in), 1e-9)
}

func TestMoneyScoreMoveBiasPenalizesSwitchingRuntime(t *testing.T) {
	base := ScoreInput{
		Nodes: map[string]NodeView{
			"n1": {ID: "n1", CostCPU: 1, CostRAM: 1},
			"n2": {ID: "n2", CostCPU: 1, CostRAM: 1},
		},
		Demand: map[string]map[string]float64{"a1": {}},
		Move:   true,
		Current: map[string]string{
			"a1": "n1",
		},
	}

	stayed := base
	stayed.Option = Option{"a1": {Runtime: "n1"}}

	moved := base
	moved.Option = Option{"a1": {Runtime: "n2"}}

	stayedScore := Money{}.Score(stayed)
	movedScore := Money{}.Score(moved)

	assert.InDelta(t, stayedScore+2*(1+1), movedScore, 1e-9, "moving away from the current runtime must add the 2*(max_cpu_cost+max_ram_cost) penalty")
}

func TestMoneyScoreMoveBiasIsNoopWithoutMoveFlag(t *testing.T) {
	in := ScoreInput{
		Option: Option{"a1": {Runtime: "n2"}},
		Nodes: map[string]NodeView{
			"n1": {ID: "n1", CostCPU: 1, CostRAM: 1},
			"n2": {ID: "n2", CostCPU: 1, CostRAM: 1},
		},
		Demand:  map[string]map[string]float64{"a1": {}},
		Move:    false,
		Current: map[string]string{"a1": "n1"},
	}

	assert.InDelta(t, 0, Money{}.Score(in), 1e-9)
}

func TestMoneyScoreMoveBiasIgnoresUnplacedActors(t *testing.T) {
	in := ScoreInput{
		Option: Option{"a1": {Runtime: "n1"}},
		Nodes: map[string]NodeView{
			"n1": {ID: "n1", CostCPU: 1, CostRAM: 1},
		},
		Demand:  map[string]map[string]float64{"a1": {}},
		Move:    true,
		Current: map[string]string{},
	}

	assert.InDelta(t, 0, Money{}.Score(in), 1e-9, "an actor with no prior placement must never be penalized")
}
