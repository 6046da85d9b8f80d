// Package learn implements the per-application online bandit that
// chooses which node hosts the "workload actor" and decides when to
// migrate it, generalizing the teacher's health-check feedback loop
// (orchestrator/nodemanager's periodic status reconciliation) from a
// binary healthy/unhealthy signal into a multi-armed node-selection
// policy driven by observed latency.
package learn

import (
	"math"
	"time"

	"github.com/flowmesh/placement-core/internal/cfg"
)

// Bandit is one application's arm-selection policy. Feedback ingests
// one observed elapsed time for the arm currently in play; Choose
// asks the policy to either stay or name a new arm, gated by an
// external migration hint.
type Bandit interface {
	Feedback(elapsed time.Duration)
	Choose(needMigrate bool) (arm string, migrate bool)
}

// Snapshot is the CPU-ratio hint the EW estimator's full-info term
// needs: how much of an arm's CPU the workload actor would use if
// placed there, versus that node's total. Callers without a resource
// model may omit it; the estimator term then degrades to zero, which
// simply means only the importance-weighted observation drives y.
type Snapshot struct {
	UsedCPU  float64
	TotalCPU float64
}

// New builds the Bandit selected by algo over arms, the node ids the
// workload actor is allowed to land on.
func New(algo cfg.ReconfigAlgorithm, arms []string, conf cfg.Config) Bandit {
	switch algo {
	case cfg.ReconfigNone:
		return NewNone(arms)
	case cfg.ReconfigCooldown, cfg.ReconfigGreedy:
		return NewGreedy(arms)
	case cfg.ReconfigUCB:
		return NewUCB(arms, conf.LearnAlpha)
	case cfg.ReconfigUCB2:
		return NewUCB2(arms, conf.LearnAlpha)
	case cfg.ReconfigSAO:
		return NewSAO(arms, conf.LearnBeta)
	case cfg.ReconfigFarseeing:
		return NewFarseeing(arms)
	default:
		return NewEW(arms, conf)
	}
}

// None never migrates: Choose always reports the first arm with
// migrate=false, matching app_none's "no learning, no migration".
type None struct{ arm string }

func NewNone(arms []string) *None {
	if len(arms) == 0 {
		return &None{}
	}

	return &None{arm: arms[0]}
}

func (n *None) Feedback(time.Duration)     {}
func (n *None) Choose(bool) (string, bool) { return n.arm, false }

// Greedy explores uniformly at random on every call, matching
// app_cooldown/app_greedy's "random exploration each step".
type Greedy struct {
	arms []string
	rng  randSource
	last string
}

func NewGreedy(arms []string) *Greedy {
	g := &Greedy{arms: append([]string(nil), arms...), rng: newRand(3)}
	if len(arms) > 0 {
		g.last = arms[0]
	}

	return g
}

func (g *Greedy) Feedback(time.Duration) {}

func (g *Greedy) Choose(needMigrate bool) (string, bool) {
	if len(g.arms) == 0 {
		return "", false
	}

	next := g.arms[g.rng.Intn(len(g.arms))]
	migrated := next != g.last
	g.last = next

	return next, migrated
}

// softmax returns the normalized exponential distribution over y.
func softmax(y []float64) []float64 {
	max := y[0]
	for _, v := range y[1:] {
		if v > max {
			max = v
		}
	}

	exp := make([]float64, len(y))

	sum := 0.0
	for i, v := range y {
		exp[i] = math.Exp(v - max)
		sum += exp[i]
	}

	for i := range exp {
		exp[i] /= sum
	}

	return exp
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}

	return best
}
