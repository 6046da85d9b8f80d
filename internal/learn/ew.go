package learn

import (
	"math"
	"time"

	"github.com/flowmesh/placement-core/internal/cfg"
)

// EW implements the app_learn_v0..v3 family: an exponential-weights
// bandit over node arms with an importance-weighted observed gain
// blended with an optional full-info estimator, per §4.5's EW update
// step. New in bandit.go builds this same EW for all four v0..v3
// names; it does not wrap any of them in the Trial-and-Error FSM
// (trial.go), and the variants do not differ in behaviour. EW always
// computes both terms and lets Lambda weight them, so Lambda=1
// degrades to the pure bandit form.
type EW struct {
	arms    []string
	n       []int
	y       []float64
	t       int
	epsilon float64
	fMax    float64
	lambda  float64
	rate    float64

	current int
	rng     randSource

	snapshots map[string]Snapshot
}

func NewEW(arms []string, conf cfg.Config) *EW {
	return &EW{
		arms:      append([]string(nil), arms...),
		n:         make([]int, len(arms)),
		y:         make([]float64, len(arms)),
		epsilon:   conf.LearnEpsilon,
		fMax:      conf.LearnFMax,
		lambda:    conf.LearnLambda,
		rate:      conf.LearnRate,
		rng:       newRand(7),
		snapshots: make(map[string]Snapshot),
	}
}

// SetSnapshot records the CPU-usage hint EW's full-info estimator uses
// for arm i; callers without a resource model may skip this entirely.
func (e *EW) SetSnapshot(arm string, snap Snapshot) {
	e.snapshots[arm] = snap
}

func (e *EW) probabilities() []float64 {
	x := softmax(e.y)

	k := float64(len(e.arms))
	for i := range x {
		x[i] = (1-e.epsilon)*x[i] + e.epsilon/k
	}

	return x
}

func (e *EW) Feedback(elapsed time.Duration) {
	if len(e.arms) == 0 {
		return
	}

	f := elapsed.Seconds()
	if f < 0 {
		f = 0
	}

	if f > e.fMax {
		f = e.fMax
	}

	x := e.probabilities()

	gObs := make([]float64, len(e.arms))
	gObs[e.current] = (e.fMax - f) / e.fMax / x[e.current]

	gEst := e.estimateFullInfo(f)

	e.t++

	step := e.rate / math.Sqrt(float64(e.t))

	for i := range e.y {
		g := e.lambda*gObs[i] + (1-e.lambda)*gEst[i]
		e.y[i] += step * g
	}

	e.n[e.current]++
}

// estimateFullInfo computes the piecewise-linear full-info gain
// estimate for every arm from its recorded CPU-usage snapshot: 0 at
// f_max, a peak at good_elapsed=0.5*f_max proportional to how much
// headroom the arm has (1 - used/total), tapering to 0 at f=0. Arms
// without a snapshot contribute 0, which is absorbed by Lambda.
func (e *EW) estimateFullInfo(f float64) []float64 {
	good := 0.5 * e.fMax

	out := make([]float64, len(e.arms))

	for i, arm := range e.arms {
		snap, ok := e.snapshots[arm]
		if !ok || snap.TotalCPU <= 0 {
			continue
		}

		headroom := 1 - snap.UsedCPU/snap.TotalCPU
		if headroom < 0 {
			headroom = 0
		}

		var shape float64

		switch {
		case f <= good:
			shape = f / good
		case f <= e.fMax:
			shape = 1 - (f-good)/(e.fMax-good)
		}

		out[i] = headroom * shape
	}

	return out
}

func (e *EW) Choose(needMigrate bool) (string, bool) {
	if len(e.arms) == 0 {
		return "", false
	}

	x := e.probabilities()

	r := e.rng.Float64()

	cum := 0.0
	choice := len(x) - 1

	for i, p := range x {
		cum += p
		if r <= cum {
			choice = i

			break
		}
	}

	migrated := choice != e.current || needMigrate
	e.current = choice

	return e.arms[choice], migrated
}
