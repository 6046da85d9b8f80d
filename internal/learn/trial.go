package learn

import "time"

// TrialState is one of the Trial-and-Error FSM states from §4.5.
type TrialState int

const (
	Content TrialState = iota
	Watchful
	Discontent
	Giveup
)

func (s TrialState) String() string {
	switch s {
	case Content:
		return "content"
	case Watchful:
		return "watchful"
	case Discontent:
		return "discontent"
	case Giveup:
		return "giveup"
	default:
		return "unknown"
	}
}

// TrialAndError wraps any Bandit with the CONTENT/WATCHFUL/DISCONTENT
// (/GIVEUP) state machine: it layers a migration-readiness signal on
// top of the inner bandit's arm choice rather than replacing it.
type TrialAndError struct {
	inner Bandit

	state TrialState

	nWatch       int
	nGiveup      int
	timeGiveup   time.Duration
	niceMode     bool
	dumpRuntime  string

	badObservations int
	discontentTimes []time.Time
	giveupUntil     time.Time

	bestObserved   time.Duration
	lastObserved   time.Duration
	haveBest       bool
}

// NewTrialAndError wraps inner with the FSM. nWatch is how many
// worse-than-best observations, counted since entering WATCHFUL (a
// better observation does not reset the count), move WATCHFUL to
// DISCONTENT. When niceMode is true, nGiveup discontents inside
// timeGiveup push the FSM into GIVEUP for timeGiveup, routing to
// dumpRuntime instead of the inner bandit's choice.
func NewTrialAndError(inner Bandit, nWatch, nGiveup int, timeGiveup time.Duration, niceMode bool, dumpRuntime string) *TrialAndError {
	return &TrialAndError{
		inner:      inner,
		state:      Content,
		nWatch:     nWatch,
		nGiveup:    nGiveup,
		timeGiveup: timeGiveup,
		niceMode:   niceMode,
		dumpRuntime: dumpRuntime,
	}
}

func (t *TrialAndError) Feedback(elapsed time.Duration) {
	t.inner.Feedback(elapsed)

	t.lastObserved = elapsed

	if !t.haveBest || elapsed < t.bestObserved {
		t.bestObserved = elapsed
		t.haveBest = true
	}
}

// ShouldMigrate evaluates and advances the FSM, per §4.5's transition
// rules, and reports whether this tick should force a migration.
func (t *TrialAndError) ShouldMigrate(now time.Time, anyArmBeatsCurrent bool) bool {
	switch t.state {
	case Giveup:
		if now.After(t.giveupUntil) {
			t.state = Content
			t.badObservations = 0
		}

		return false

	case Content:
		if anyArmBeatsCurrent {
			t.state = Watchful
			t.badObservations = 0
		}

		return false

	case Watchful:
		if !t.haveBest || t.lastObserved > t.bestObserved {
			t.badObservations++
		}

		if t.badObservations >= t.nWatch {
			t.state = Discontent

			return true
		}

		return false

	case Discontent:
		t.discontentTimes = append(t.discontentTimes, now)
		t.pruneDiscontents(now)

		if t.niceMode && len(t.discontentTimes) >= t.nGiveup {
			t.state = Giveup
			t.giveupUntil = now.Add(t.timeGiveup)
			t.discontentTimes = nil

			return false
		}

		t.state = Content

		return false

	default:
		return false
	}
}

func (t *TrialAndError) pruneDiscontents(now time.Time) {
	cutoff := now.Add(-t.timeGiveup)

	kept := t.discontentTimes[:0]

	for _, ts := range t.discontentTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	t.discontentTimes = kept
}

// Choose defers to the inner bandit unless GIVEUP is active, in which
// case it routes to dumpRuntime.
func (t *TrialAndError) Choose(needMigrate bool) (string, bool) {
	if t.state == Giveup && t.dumpRuntime != "" {
		return t.dumpRuntime, true
	}

	return t.inner.Choose(needMigrate || t.state == Discontent)
}

func (t *TrialAndError) State() TrialState { return t.state }
