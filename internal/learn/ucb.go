package learn

import (
	"math"
	"time"
)

// UCB implements app_ucb (UCB1): pick the arm maximizing
// -mean_latency + sqrt(alpha*ln(t) / (2*n[k])), per §4.5.
type UCB struct {
	arms  []string
	n     []int
	sum   []float64
	t     int
	alpha float64

	current int
}

func NewUCB(arms []string, alpha float64) *UCB {
	return &UCB{
		arms:  append([]string(nil), arms...),
		n:     make([]int, len(arms)),
		sum:   make([]float64, len(arms)),
		alpha: alpha,
	}
}

func (u *UCB) Feedback(elapsed time.Duration) {
	if len(u.arms) == 0 {
		return
	}

	u.n[u.current]++
	u.sum[u.current] += elapsed.Seconds()
	u.t++
}

func (u *UCB) Choose(needMigrate bool) (string, bool) {
	if len(u.arms) == 0 {
		return "", false
	}

	for i, played := range u.n {
		if played == 0 {
			migrated := i != u.current || needMigrate
			u.current = i

			return u.arms[i], migrated
		}
	}

	scores := make([]float64, len(u.arms))

	for i := range u.arms {
		mean := u.sum[i] / float64(u.n[i])
		bonus := math.Sqrt(u.alpha * math.Log(float64(u.t)) / (2 * float64(u.n[i])))
		// UCB1 prefers low observed latency, so score by -(mean) plus
		// exploration bonus, then argmax.
		scores[i] = -mean + bonus
	}

	choice := argmax(scores)
	migrated := choice != u.current || needMigrate
	u.current = choice

	return u.arms[choice], migrated
}

// UCB2 batches plays into epochs τ(r) = ceil((1+alpha)^r): once an arm
// is chosen it is replayed for τ(r+1)-τ(r) consecutive steps before
// UCB2 re-selects, per §4.5.
type UCB2 struct {
	inner        *UCB
	alpha        float64
	epochCounter map[string]int
	remaining    int
	locked       string
}

func NewUCB2(arms []string, alpha float64) *UCB2 {
	return &UCB2{
		inner:        NewUCB(arms, alpha),
		alpha:        alpha,
		epochCounter: make(map[string]int),
	}
}

func (u *UCB2) tau(r int) int {
	return int(math.Ceil(math.Pow(1+u.alpha, float64(r))))
}

func (u *UCB2) Feedback(elapsed time.Duration) {
	u.inner.Feedback(elapsed)
}

func (u *UCB2) Choose(needMigrate bool) (string, bool) {
	if u.remaining > 0 && !needMigrate {
		u.remaining--

		return u.locked, false
	}

	arm, migrated := u.inner.Choose(needMigrate)

	r := u.epochCounter[arm]
	u.remaining = u.tau(r+1) - u.tau(r) - 1
	u.epochCounter[arm] = r + 1
	u.locked = arm

	return arm, migrated
}
