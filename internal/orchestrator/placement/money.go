package placement

// Money minimizes Σ(cpu_demand·cost_cpu + ram_demand·cost_ram) per
// node, plus link bandwidth used × a per-kbit unit cost. GRASP
// post-optimization (v0/v1/v2) runs as a separate pass over Money's
// output — see grasp.go. When in.Move is set (migrate_with_requirements
// move=True, §4.6), assigning an actor away from its current runtime
// is penalized by 2·(max_cpu_cost+max_ram_cost) so that only a larger
// gain elsewhere makes the move worthwhile.
type Money struct{}

func (Money) Name() string { return "money" }

func (Money) Score(in ScoreInput) float64 {
	total := 0.0

	perNodeDemand := make(map[string]map[string]float64)

	for actorID, a := range in.Option {
		if _, ok := in.Nodes[a.Runtime]; !ok {
			continue
		}

		d := in.Demand[actorID]

		if perNodeDemand[a.Runtime] == nil {
			perNodeDemand[a.Runtime] = map[string]float64{}
		}

		perNodeDemand[a.Runtime]["cpu"] += d["cpu"]
		perNodeDemand[a.Runtime]["ram"] += d["ram"]

		if a.PhysLinkUsed != "" {
			if link, ok := in.Links[a.PhysLinkUsed]; ok {
				total += float64(link.BandwidthKbit) * link.CostPerKbit
			}
		}
	}

	for runtime, demand := range perNodeDemand {
		node := in.Nodes[runtime]
		total += demand["cpu"]*node.CostCPU + demand["ram"]*node.CostRAM
	}

	if in.Move {
		total += moveBiasPenalty(in)
	}

	return total
}

// moveBiasPenalty adds 2·(max_cpu_cost+max_ram_cost), the maximums
// taken across every candidate node in this run, for each actor whose
// option runtime differs from its entry in in.Current.
func moveBiasPenalty(in ScoreInput) float64 {
	if len(in.Current) == 0 {
		return 0
	}

	var maxCPUCost, maxRAMCost float64

	for _, node := range in.Nodes {
		if node.CostCPU > maxCPUCost {
			maxCPUCost = node.CostCPU
		}

		if node.CostRAM > maxRAMCost {
			maxRAMCost = node.CostRAM
		}
	}

	penalty := 2 * (maxCPUCost + maxRAMCost)
	if penalty == 0 {
		return 0
	}

	total := 0.0

	for actorID, a := range in.Option {
		currentRuntime, placed := in.Current[actorID]
		if placed && currentRuntime != a.Runtime {
			total += penalty
		}
	}

	return total
}
