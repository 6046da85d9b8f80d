package placement

import "math/rand"

// Random performs N independent random walks respecting link
// feasibility, rather than minimizing a cost function. Its Score
// always returns 0 so it participates in the generic beam/tie-break
// machinery without biasing selection toward any particular option;
// the Planner drives the N walks via RandomWalks.
type Random struct{}

func (Random) Name() string { return "random" }

func (Random) Score(ScoreInput) float64 { return 0 }

// RandomWalks runs n independent randomized constructions over the
// same actor order/candidate function used by the generic beam, each
// a width-1 "beam" whose per-step choice is uniform over the feasible
// candidates instead of cost-minimizing.
func RandomWalks(
	order []string,
	candidatesFor func(actorID string, partial Option) []candidateExt,
	n int,
	rng *rand.Rand,
) []Option {
	out := make([]Option, 0, n)

	for i := 0; i < n; i++ {
		opt := Option{}
		ok := true

		for _, actorID := range order {
			exts := candidatesFor(actorID, opt)
			if len(exts) == 0 {
				ok = false

				break
			}

			choice := exts[rng.Intn(len(exts))]
			opt[actorID] = choice.assignment
		}

		if ok {
			out = append(out, opt)
		}
	}

	return out
}
