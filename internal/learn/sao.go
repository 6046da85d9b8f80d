package learn

import (
	"math"
	"time"
)

// SAO implements app_sao: a UCB-style consistency test that
// deactivates arms falling too far behind the best observed mean, and
// falls back to EXP3 once the active set can no longer certify a
// single best arm (the "three consistency tests" referenced in §4.5
// are not individually specified there; this core treats "the active
// set shrinks to one arm or fewer" as the trigger and switches
// permanently to EXP3 — an Open Question resolution recorded in the
// design ledger). Arm means are gains (negated elapsed seconds), so
// the highest mean is the lowest-latency arm.
type SAO struct {
	arms   []string
	active []bool
	hTilde []float64 // optimistic mean estimate
	hHat   []float64 // pessimistic mean estimate
	n      []int
	sum    []float64
	t      int
	beta   float64

	exp3      bool
	exp3Inner *exp3

	current int
}

func NewSAO(arms []string, beta float64) *SAO {
	active := make([]bool, len(arms))
	for i := range active {
		active[i] = true
	}

	return &SAO{
		arms:   append([]string(nil), arms...),
		active: active,
		hTilde: make([]float64, len(arms)),
		hHat:   make([]float64, len(arms)),
		n:      make([]int, len(arms)),
		sum:    make([]float64, len(arms)),
		beta:   beta,
	}
}

func (s *SAO) Feedback(elapsed time.Duration) {
	if s.exp3 {
		s.exp3Inner.Feedback(elapsed)

		return
	}

	s.n[s.current]++
	s.sum[s.current] -= elapsed.Seconds()
	s.t++

	mean := s.sum[s.current] / float64(s.n[s.current])
	s.hHat[s.current] = mean
	s.hTilde[s.current] = mean

	s.deactivateLaggards()
}

// deactivateLaggards implements §4.5's deactivation rule: arm i drops
// out of the active set when the best active arm's optimistic mean
// exceeds i's by more than the stated confidence radius.
func (s *SAO) deactivateLaggards() {
	k := float64(len(s.arms))

	best := math.Inf(-1)

	for i, a := range s.active {
		if a && s.hTilde[i] > best {
			best = s.hTilde[i]
		}
	}

	activeCount := 0

	for i, a := range s.active {
		if !a {
			continue
		}

		if s.n[i] == 0 {
			activeCount++

			continue
		}

		radius := 6 * math.Sqrt(4*k*math.Log(s.beta)/float64(s.t)+5*math.Pow(k*math.Log(s.beta)/float64(s.t), 2))
		if best-s.hTilde[i] > radius {
			s.active[i] = false

			continue
		}

		activeCount++
	}

	if activeCount <= 1 {
		s.switchToExp3()
	}
}

func (s *SAO) switchToExp3() {
	if s.exp3 {
		return
	}

	s.exp3 = true
	s.exp3Inner = newExp3(s.arms)
}

func (s *SAO) Choose(needMigrate bool) (string, bool) {
	if len(s.arms) == 0 {
		return "", false
	}

	if s.exp3 {
		return s.exp3Inner.Choose(needMigrate)
	}

	for i, played := range s.n {
		if s.active[i] && played == 0 {
			migrated := i != s.current || needMigrate
			s.current = i

			return s.arms[i], migrated
		}
	}

	best := -1

	for i, a := range s.active {
		if a && (best == -1 || s.hTilde[i] > s.hTilde[best]) {
			best = i
		}
	}

	if best == -1 {
		best = s.current
	}

	migrated := best != s.current || needMigrate
	s.current = best

	return s.arms[best], migrated
}

// exp3 is the fallback adversarial bandit SAO switches to once it can
// no longer certify a stochastic winner.
type exp3 struct {
	arms    []string
	weights []float64
	gamma   float64
	rng     randSource
	current int
}

func newExp3(arms []string) *exp3 {
	w := make([]float64, len(arms))
	for i := range w {
		w[i] = 1
	}

	return &exp3{arms: arms, weights: w, gamma: 0.1, rng: newRand(11)}
}

func (e *exp3) probabilities() []float64 {
	sum := 0.0
	for _, w := range e.weights {
		sum += w
	}

	k := float64(len(e.arms))
	p := make([]float64, len(e.arms))

	for i, w := range e.weights {
		p[i] = (1-e.gamma)*(w/sum) + e.gamma/k
	}

	return p
}

func (e *exp3) Feedback(elapsed time.Duration) {
	p := e.probabilities()

	// Reward low latency: map elapsed into (0,1] via 1/(1+elapsed) so
	// an unbounded latency observation never blows up the exponential
	// weight update.
	reward := 1 / (1 + elapsed.Seconds())

	estReward := reward / p[e.current]
	k := float64(len(e.arms))
	e.weights[e.current] *= math.Exp(e.gamma * estReward / k)
}

func (e *exp3) Choose(needMigrate bool) (string, bool) {
	if len(e.arms) == 0 {
		return "", false
	}

	p := e.probabilities()

	r := e.rng.Float64()

	cum := 0.0
	choice := len(p) - 1

	for i, v := range p {
		cum += v
		if r <= cum {
			choice = i

			break
		}
	}

	migrated := choice != e.current || needMigrate
	e.current = choice

	return e.arms[choice], migrated
}
