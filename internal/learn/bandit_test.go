package learn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/placement-core/internal/cfg"
)

func TestNewDispatchesByAlgorithm(t *testing.T) {
	arms := []string{"n1", "n2"}

	cases := []struct {
		algo cfg.ReconfigAlgorithm
		want any
	}{
		{cfg.ReconfigNone, &None{}},
		{cfg.ReconfigCooldown, &Greedy{}},
		{cfg.ReconfigGreedy, &Greedy{}},
		{cfg.ReconfigUCB, &UCB{}},
		{cfg.ReconfigUCB2, &UCB2{}},
		{cfg.ReconfigSAO, &SAO{}},
		{cfg.ReconfigFarseeing, &Farseeing{}},
		{cfg.ReconfigLearnV0, &EW{}},
	}

	for _, c := range cases {
		got := New(c.algo, arms, cfg.Config{LearnAlpha: 2, LearnBeta: 2})
		assert.IsType(t, c.want, got, "algo=%s", c.algo)
	}
}

func TestNoneNeverMigrates(t *testing.T) {
	n := NewNone([]string{"n1", "n2"})

	arm, migrate := n.Choose(true)
	assert.Equal(t, "n1", arm)
	assert.False(t, migrate)

	n.Feedback(time.Second)

	arm, migrate = n.Choose(true)
	assert.Equal(t, "n1", arm)
	assert.False(t, migrate)
}

func TestNoneWithNoArms(t *testing.T) {
	n := NewNone(nil)

	arm, migrate := n.Choose(false)
	assert.Equal(t, "", arm)
	assert.False(t, migrate)
}

func TestUCBPlaysEachArmOnceBeforeScoring(t *testing.T) {
	u := NewUCB([]string{"n1", "n2", "n3"}, 2)

	seen := map[string]bool{}

	for i := 0; i < 3; i++ {
		arm, _ := u.Choose(false)
		seen[arm] = true
		u.Feedback(100 * time.Millisecond)
	}

	require.Len(t, seen, 3, "every arm must be tried once before UCB scores")
}

func TestUCBPrefersLowerObservedLatency(t *testing.T) {
	u := NewUCB([]string{"slow", "fast"}, 0.01)

	// Force through the initial round-robin.
	arm, _ := u.Choose(false)
	if arm == "slow" {
		u.Feedback(1 * time.Second)
	} else {
		u.Feedback(10 * time.Millisecond)
	}

	arm, _ = u.Choose(false)
	if arm == "slow" {
		u.Feedback(1 * time.Second)
	} else {
		u.Feedback(10 * time.Millisecond)
	}

	// Feed several more rounds so "fast" pulls ahead decisively.
	for i := 0; i < 5; i++ {
		choice, _ := u.Choose(false)
		if choice == "fast" {
			u.Feedback(10 * time.Millisecond)
		} else {
			u.Feedback(1 * time.Second)
		}
	}

	choice, _ := u.Choose(false)
	assert.Equal(t, "fast", choice)
}
