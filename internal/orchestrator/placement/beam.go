package placement

import (
	"container/heap"
	"math/rand"
	"sort"
)

// actorOrder computes the per-actor processing order the beam walks:
// every actor starts in a priority queue at rank 0 (orphan actors are
// not singled out, so the first actor popped is the lowest id); at each
// step the actor with the most already-ordered neighbors is popped
// next, so link-feasibility constraints from placed neighbors are
// maximally informative by the time an actor is extended.
func actorOrder(actors []string, neighbors map[string][]string) []string {
	placedRank := make(map[string]int, len(actors))
	for _, a := range actors {
		placedRank[a] = 0
	}

	pq := &actorPQ{}
	heap.Init(pq)

	for _, a := range actors {
		heap.Push(pq, &pqItem{actorID: a, rank: 0})
	}

	order := make([]string, 0, len(actors))
	done := make(map[string]bool, len(actors))

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		if done[item.actorID] {
			continue
		}

		if item.rank != placedRank[item.actorID] {
			// stale entry from before a neighbor was ordered; re-push
			// with the current rank instead of acting on stale data.
			heap.Push(pq, &pqItem{actorID: item.actorID, rank: placedRank[item.actorID]})

			continue
		}

		done[item.actorID] = true
		order = append(order, item.actorID)

		for _, nb := range neighbors[item.actorID] {
			if done[nb] {
				continue
			}

			placedRank[nb]++
			heap.Push(pq, &pqItem{actorID: nb, rank: placedRank[nb]})
		}
	}

	return order
}

type pqItem struct {
	actorID string
	rank    int
}

// actorPQ is a max-heap on rank (most already-ordered neighbors first),
// ties broken by actor id for determinism.
type actorPQ []*pqItem

func (pq actorPQ) Len() int { return len(pq) }
func (pq actorPQ) Less(i, j int) bool {
	if pq[i].rank != pq[j].rank {
		return pq[i].rank > pq[j].rank
	}

	return pq[i].actorID < pq[j].actorID
}
func (pq actorPQ) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *actorPQ) Push(x any) {
	*pq = append(*pq, x.(*pqItem))
}

func (pq *actorPQ) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]

	return item
}

// beamEntry is one partial placement carried through the walk, plus
// the running score used to rank and truncate the beam.
type beamEntry struct {
	option Option
	score  float64
}

// runBeam extends a beam of partial placements actor-by-actor in
// order, scoring each extension with algo.Score and truncating to
// width after every step, per §4.4.4's beam description.
func runBeam(
	order []string,
	candidatesFor func(actorID string, partial Option) []candidateExt,
	algo Algorithm,
	scoreCtx func(partial Option) ScoreInput,
	width int,
) []Option {
	beam := []beamEntry{{option: Option{}, score: 0}}

	for _, actorID := range order {
		next := make([]beamEntry, 0, len(beam)*4)

		for _, entry := range beam {
			exts := candidatesFor(actorID, entry.option)
			if len(exts) == 0 {
				// actor has no feasible candidate given this partial
				// placement; drop this beam entry.
				continue
			}

			for _, ext := range exts {
				opt := entry.option.Clone()
				opt[actorID] = ext.assignment

				score := algo.Score(scoreCtx(opt))
				next = append(next, beamEntry{option: opt, score: score})
			}
		}

		if len(next) == 0 {
			return nil
		}

		sort.SliceStable(next, func(i, j int) bool { return next[i].score < next[j].score })

		if len(next) > width {
			next = next[:width]
		}

		beam = next
	}

	out := make([]Option, len(beam))
	for i, e := range beam {
		out[i] = e.option
	}

	return out
}

type candidateExt struct {
	assignment Assignment
}

// shuffleStrings returns a copy of ids in random order, used by the
// random deployment algorithm's independent walks.
func shuffleStrings(ids []string, rng *rand.Rand) []string {
	out := append([]string(nil), ids...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })

	return out
}
