package placement

import "math/rand"

// GRASP scores exactly like Money; what distinguishes the "grasp"
// deployment algorithm is the construction/local-search procedure in
// GraspConstruct/GraspOptimize below, not the scoring function.
type GRASP struct {
	money Money
}

func NewGRASP() Algorithm { return GRASP{} }

func (GRASP) Name() string { return "grasp" }

func (g GRASP) Score(in ScoreInput) float64 { return g.money.Score(in) }

// GraspConstruct builds one Option via a restricted-candidate-list
// randomized greedy construction: at each step, score every feasible
// candidate for the current actor with Money, keep those within alpha
// of the best (the RCL), and pick uniformly among them.
func GraspConstruct(
	order []string,
	candidatesFor func(actorID string, partial Option) []candidateExt,
	scoreExtension func(actorID string, partial Option, ext candidateExt) float64,
	alpha float64,
	rng *rand.Rand,
) Option {
	opt := Option{}

	for _, actorID := range order {
		exts := candidatesFor(actorID, opt)
		if len(exts) == 0 {
			return nil
		}

		best, worst := scoreExtension(actorID, opt, exts[0]), scoreExtension(actorID, opt, exts[0])

		scores := make([]float64, len(exts))
		for i, e := range exts {
			s := scoreExtension(actorID, opt, e)
			scores[i] = s

			if s < best {
				best = s
			}

			if s > worst {
				worst = s
			}
		}

		threshold := best + alpha*(worst-best)

		rcl := make([]candidateExt, 0, len(exts))
		for i, e := range exts {
			if scores[i] <= threshold {
				rcl = append(rcl, e)
			}
		}

		choice := rcl[rng.Intn(len(rcl))]
		opt[actorID] = choice.assignment
	}

	return opt
}

// GraspOptimize runs up to 10 rounds of pairwise-swap local search
// over a constructed Option: for every pair of actors currently on
// different runtimes, try swapping their runtimes and keep the swap
// only if it strictly lowers the score. A swap with an equal score is
// not taken; ties are not broken by remaining capacity or load.
func GraspOptimize(opt Option, algo Algorithm, scoreCtx func(Option) ScoreInput, maxRounds int) Option {
	current := opt.Clone()
	currentScore := algo.Score(scoreCtx(current))

	actorIDs := make([]string, 0, len(current))
	for id := range current {
		actorIDs = append(actorIDs, id)
	}

	for round := 0; round < maxRounds; round++ {
		improved := false

		for i := 0; i < len(actorIDs); i++ {
			for j := i + 1; j < len(actorIDs); j++ {
				a, b := actorIDs[i], actorIDs[j]
				if current[a].Runtime == current[b].Runtime {
					continue
				}

				candidate := current.Clone()
				ra, rb := candidate[a], candidate[b]
				ra.Runtime, rb.Runtime = rb.Runtime, ra.Runtime
				candidate[a], candidate[b] = ra, rb

				score := algo.Score(scoreCtx(candidate))
				if score < currentScore {
					current = candidate
					currentScore = score
					improved = true
				}
			}
		}

		if !improved {
			break
		}
	}

	return current
}
